// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"net"
	"time"

	"github.com/camrelay/camrelay-go/pkg/proto"
)

// RoundStatus is the result of recording one agent reply.
type RoundStatus uint8

const (
	// RoundInProgress means more replies are outstanding.
	RoundInProgress RoundStatus = iota

	// RoundComplete means every expected reply arrived; the round is over.
	RoundComplete
)

// Round tracks the one broadcast request currently awaiting replies. The
// relay supports a single round at a time; starting a new one overwrites a
// pending one, last writer wins. Like the Registry, a Round is driven
// exclusively by the Engine.
//
// A Round remembers which agent ids the request was fanned out to. Replies
// from other ids, e.g. stragglers of an earlier round, are forwarded by the
// Engine but never counted here, so they cannot complete a round they were
// not part of.
type Round struct {
	active bool

	requester *net.UDPAddr
	kind      proto.Kind
	members   map[string]struct{}
	expected  int
	received  int
	deadline  time.Time

	// dedup, when enabled, stops duplicate replies from the same member
	// from counting towards received. Off by default to match the
	// original relay.
	dedup bool
	seen  map[string]struct{}
}

// NewRound in its idle state. With dedup enabled, a second reply from the
// same agent id is still forwarded but no longer counted.
func NewRound(dedup bool) *Round {
	return &Round{dedup: dedup}
}

// Start a round for the given member agent ids, replacing whatever round was
// pending before. Returns true if an unfinished round was thrown away.
func (round *Round) Start(kind proto.Kind, requester *net.UDPAddr, memberIds []string, now time.Time, timeout time.Duration) (replaced bool) {
	replaced = round.active

	round.active = true
	round.requester = requester
	round.kind = kind
	round.expected = len(memberIds)
	round.received = 0
	round.deadline = now.Add(timeout)

	round.members = make(map[string]struct{}, len(memberIds))
	for _, id := range memberIds {
		round.members[id] = struct{}{}
	}

	if round.dedup {
		round.seen = make(map[string]struct{}, len(memberIds))
	}

	return
}

// Active reports whether a round is pending.
func (round *Round) Active() bool {
	return round.active
}

// Requester is the address replies are forwarded to. Only valid while Active.
func (round *Round) Requester() *net.UDPAddr {
	return round.requester
}

// Kind of the outstanding broadcast request. Only valid while Active.
func (round *Round) Kind() proto.Kind {
	return round.kind
}

// RecordReply counts one reply from the given agent id. The caller must
// Clear the round once RoundComplete is returned.
func (round *Round) RecordReply(id string) RoundStatus {
	if !round.active {
		return RoundInProgress
	}

	if _, member := round.members[id]; !member {
		return RoundInProgress
	}

	if round.dedup {
		if _, duplicate := round.seen[id]; duplicate {
			return RoundInProgress
		}
		round.seen[id] = struct{}{}
	}

	round.received++

	// A zero-agent round never completes; it runs into its deadline.
	if round.expected > 0 && round.received >= round.expected {
		return RoundComplete
	}
	return RoundInProgress
}

// IsExpired reports whether the round's deadline has passed.
func (round *Round) IsExpired(now time.Time) bool {
	return round.active && !now.Before(round.deadline)
}

// Clear returns the round to its idle state.
func (round *Round) Clear() {
	round.active = false
	round.requester = nil
	round.members = nil
	round.expected = 0
	round.received = 0
	round.seen = nil
}
