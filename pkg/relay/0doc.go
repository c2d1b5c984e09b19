// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package relay implements the mediator between one requester and a fleet of
// registered agents.
//
// The Engine owns the two pieces of state this system has: the agent Registry
// and the at most one in-flight Round. Every inbound datagram and every
// periodic tick is funneled through the Engine, which drives both structures
// and emits outbound datagrams through a Sender. The Server binds an Engine
// to a UDP socket; the Monitor exposes read-only snapshots and a live event
// stream over HTTP and WebSocket.
package relay
