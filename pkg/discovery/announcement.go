// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"encoding/json"
	"fmt"
)

// Announcement of a running relay: its human-readable name and the UDP port
// its datagram endpoint listens on.
type Announcement struct {
	Name string `json:"name"`
	Port uint   `json:"port"`
}

// MarshalAnnouncement into a JSON byte string.
func MarshalAnnouncement(announcement Announcement) ([]byte, error) {
	if announcement.Name == "" {
		return nil, fmt.Errorf("discovery: Announcement needs a name")
	}
	if announcement.Port == 0 || announcement.Port > 65535 {
		return nil, fmt.Errorf("discovery: Announcement port %d is out of range", announcement.Port)
	}

	return json.Marshal(announcement)
}

// UnmarshalAnnouncement creates an Announcement from its JSON byte string.
func UnmarshalAnnouncement(data []byte) (announcement Announcement, err error) {
	if err = json.Unmarshal(data, &announcement); err != nil {
		return
	}

	if announcement.Name == "" {
		err = fmt.Errorf("discovery: Announcement lacks a name")
	} else if announcement.Port == 0 || announcement.Port > 65535 {
		err = fmt.Errorf("discovery: Announcement port %d is out of range", announcement.Port)
	}
	return
}

func (announcement Announcement) String() string {
	return fmt.Sprintf("Announcement(%s,%d)", announcement.Name, announcement.Port)
}
