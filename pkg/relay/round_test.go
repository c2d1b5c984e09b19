// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"testing"
	"time"

	"github.com/camrelay/camrelay-go/pkg/proto"
)

func TestRoundLifecycle(t *testing.T) {
	round := NewRound(false)
	now := time.Now()

	if round.Active() {
		t.Fatal("a fresh round must be idle")
	}

	round.Start(proto.KindTime, testAddr(5000), []string{"cam0", "cam1"}, now, 2*time.Second)
	if !round.Active() {
		t.Fatal("round must be active after Start")
	}

	if status := round.RecordReply("cam0"); status != RoundInProgress {
		t.Fatal("first of two replies must not complete the round")
	}
	if status := round.RecordReply("cam1"); status != RoundComplete {
		t.Fatal("second of two replies must complete the round")
	}

	round.Clear()
	if round.Active() {
		t.Fatal("round must be idle after Clear")
	}
}

func TestRoundDuplicateRepliesCount(t *testing.T) {
	round := NewRound(false)
	round.Start(proto.KindTime, testAddr(5000), []string{"cam0", "cam1"}, time.Now(), 2*time.Second)

	// The original relay does not deduplicate; two replies from one agent
	// complete a two-agent round.
	round.RecordReply("cam0")
	if status := round.RecordReply("cam0"); status != RoundComplete {
		t.Fatal("without dedup, duplicate replies count")
	}
}

func TestRoundDedupReplies(t *testing.T) {
	round := NewRound(true)
	round.Start(proto.KindTime, testAddr(5000), []string{"cam0", "cam1"}, time.Now(), 2*time.Second)

	round.RecordReply("cam0")
	if status := round.RecordReply("cam0"); status != RoundInProgress {
		t.Fatal("with dedup, a duplicate reply must not count")
	}
	if status := round.RecordReply("cam1"); status != RoundComplete {
		t.Fatal("a reply of a second agent must complete the round")
	}
}

func TestRoundNonMemberRepliesDoNotCount(t *testing.T) {
	round := NewRound(false)
	round.Start(proto.KindTime, testAddr(5000), []string{"cam0"}, time.Now(), 2*time.Second)

	// A straggler of an earlier round must not complete this one.
	if status := round.RecordReply("other"); status != RoundInProgress {
		t.Fatal("a non-member reply must not count")
	}
	if status := round.RecordReply("cam0"); status != RoundComplete {
		t.Fatal("the member's reply must complete the round")
	}
}

func TestRoundReplacement(t *testing.T) {
	round := NewRound(false)
	now := time.Now()

	if replaced := round.Start(proto.KindTime, testAddr(5000), []string{"cam0", "cam1", "cam2"}, now, 2*time.Second); replaced {
		t.Fatal("starting on an idle tracker replaces nothing")
	}

	round.RecordReply("cam0")

	// Last writer wins; the pending round's progress is gone.
	if replaced := round.Start(proto.KindListing, testAddr(5001), []string{"cam1"}, now, 2*time.Second); !replaced {
		t.Fatal("starting over a pending round must report the replacement")
	}
	if round.Kind() != proto.KindListing {
		t.Fatal("replacement must overwrite the round's kind")
	}
	if round.Requester().Port != 5001 {
		t.Fatal("replacement must overwrite the requester")
	}
	if status := round.RecordReply("cam1"); status != RoundComplete {
		t.Fatal("the prior round's replies must not linger in the counter")
	}
}

func TestRoundExpiry(t *testing.T) {
	round := NewRound(false)
	now := time.Now()

	round.Start(proto.KindTime, testAddr(5000), []string{"cam0"}, now, 2*time.Second)

	if round.IsExpired(now.Add(time.Second)) {
		t.Fatal("round must not expire before its deadline")
	}
	if !round.IsExpired(now.Add(2 * time.Second)) {
		t.Fatal("round must expire at its deadline")
	}

	round.Clear()
	if round.IsExpired(now.Add(time.Minute)) {
		t.Fatal("an idle round never expires")
	}
}

func TestRoundZeroExpected(t *testing.T) {
	round := NewRound(false)
	now := time.Now()

	round.Start(proto.KindTime, testAddr(5000), nil, now, 2*time.Second)

	// With no active agents the round can only run into its deadline.
	if status := round.RecordReply("stray"); status == RoundComplete {
		t.Fatal("a zero-agent round must never complete")
	}
	if !round.IsExpired(now.Add(3 * time.Second)) {
		t.Fatal("a zero-agent round must still expire")
	}
}
