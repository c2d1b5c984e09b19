// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package discovery lets agents find a relay on the local network through UDP
// multicast announcements, so small fleets need no hand-configured relay
// address.
package discovery

const (
	// address4 is the default multicast IPv4 address used for discovery.
	address4 = "224.42.23.23"

	// address6 is the default multicast IPv6 address used for discovery.
	address6 = "ff02::42"

	// port is the default multicast UDP port used for discovery.
	port = 35042
)
