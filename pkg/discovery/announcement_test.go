// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"testing"
)

func TestAnnouncementRoundTrip(t *testing.T) {
	var tests = []Announcement{
		{Name: "camrelay", Port: 4223},
		{Name: "lab relay", Port: 65535},
		{Name: "a", Port: 1},
	}

	for _, announcementIn := range tests {
		buff, err := MarshalAnnouncement(announcementIn)
		if err != nil {
			t.Fatalf("Encoding failed: %v", err)
		}

		announcementOut, err := UnmarshalAnnouncement(buff)
		if err != nil {
			t.Fatalf("Decoding failed: %v", err)
		}

		if announcementIn != announcementOut {
			t.Fatalf("Decoded Announcement differs: %v became %v", announcementIn, announcementOut)
		}
	}
}

func TestAnnouncementInvalid(t *testing.T) {
	var marshals = []Announcement{
		{Name: "", Port: 4223},
		{Name: "camrelay", Port: 0},
		{Name: "camrelay", Port: 70000},
	}

	for _, announcement := range marshals {
		if _, err := MarshalAnnouncement(announcement); err == nil {
			t.Fatalf("Encoding %v must fail", announcement)
		}
	}

	var unmarshals = []string{
		"",
		"no json at all",
		`{"name":"","port":4223}`,
		`{"name":"camrelay","port":0}`,
		`{"name":"camrelay"}`,
	}

	for _, data := range unmarshals {
		if _, err := UnmarshalAnnouncement([]byte(data)); err == nil {
			t.Fatalf("Decoding %q must fail", data)
		}
	}
}
