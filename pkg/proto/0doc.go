// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package proto implements the text-based datagram protocol spoken between
// the relay, its agents and the requester.
//
// A datagram holds exactly one message: a tag, optionally followed by
// colon-separated fields, terminated by a newline. Response payloads are the
// only fields which may span multiple lines; they are carried verbatim up to
// the end of the datagram. Parsed messages are represented as a tagged
// variant type, so no other package has to scan strings.
package proto
