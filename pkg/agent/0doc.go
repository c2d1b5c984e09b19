// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent implements the process sitting on each camera node.
//
// A Client registers with the relay, keeps its registration alive with
// heartbeats and answers broadcast requests through its Capabilities: wall
// clock, directory listing, camera capture. Side effects beyond that run
// next to the protocol loop: the Watcher uploads freshly captured images and
// the Journal keeps book over them.
package agent
