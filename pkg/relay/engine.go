// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hashicorp/go-multierror"

	"github.com/camrelay/camrelay-go/pkg/proto"
)

// Sender pushes one datagram towards a peer. Sends are fire-and-forget; a
// failed send is reported back, logged and otherwise ignored.
type Sender interface {
	Send(data []byte, addr *net.UDPAddr) error
}

// Config carries the externally supplied constants of a relay instance.
type Config struct {
	// Capacity is the fixed maximum number of agent ids in the Registry.
	Capacity int

	// LivenessThreshold is the maximum silence before an agent is marked
	// inactive.
	LivenessThreshold time.Duration

	// ResponseTimeout bounds the reply collection of one round.
	ResponseTimeout time.Duration

	// TickInterval drives the periodic expiry checks.
	TickInterval time.Duration

	// DedupReplies stops duplicate replies from one agent from counting
	// towards a round's completion. The original relay counted them, so
	// this is off by default.
	DedupReplies bool
}

// DefaultConfig mirrors the constants of the original deployment.
func DefaultConfig() Config {
	return Config{
		Capacity:          10,
		LivenessThreshold: 90 * time.Second,
		ResponseTimeout:   2 * time.Second,
		TickInterval:      time.Second,
	}
}

// Engine is the relay's orchestrator. It exclusively owns the Registry and
// the Round; one mutex serializes datagram handling, ticks and Monitor
// snapshots.
type Engine struct {
	sync.Mutex

	conf     Config
	sender   Sender
	registry *Registry
	round    *Round

	// lastRequester outlives the round it belongs to: replies arriving
	// after completion or timeout are still forwarded there.
	lastRequester *net.UDPAddr

	eventChan chan Event
}

// NewEngine with the given Config, emitting datagrams through the Sender.
func NewEngine(conf Config, sender Sender) *Engine {
	return &Engine{
		conf:     conf,
		sender:   sender,
		registry: NewRegistry(conf.Capacity),
		round:    NewRound(conf.DedupReplies),

		eventChan: make(chan Event, 64),
	}
}

// Events emitted by this Engine. The channel is buffered; if no one listens,
// events are dropped, never blocking the Engine.
func (engine *Engine) Events() <-chan Event {
	return engine.eventChan
}

func (engine *Engine) emit(event Event) {
	select {
	case engine.eventChan <- event:
	default:
	}
}

// Handle one inbound datagram. Malformed and foreign datagrams are dropped
// without a reply.
func (engine *Engine) Handle(data []byte, from *net.UDPAddr, now time.Time) {
	msg, err := proto.Parse(data)
	if err != nil {
		if errors.Is(err, proto.ErrUnknownTag) {
			log.WithField("peer", from).Debug("Ignoring datagram with foreign tag")
		} else {
			log.WithError(err).WithField("peer", from).Debug("Dropping malformed datagram")
		}
		return
	}

	engine.Lock()
	defer engine.Unlock()

	switch msg := msg.(type) {
	case proto.Register:
		engine.handleRegister(msg, from, now)

	case proto.Heartbeat:
		if engine.registry.TouchHeartbeat(msg.Id, from, now) {
			log.WithField("agent", msg.Id).Debug("Heartbeat")
		} else {
			log.WithField("agent", msg.Id).Debug("Dropping heartbeat of unregistered agent")
		}

	case proto.Unregister:
		if engine.registry.Unregister(msg.Id) {
			log.WithField("agent", msg.Id).Info("Agent unregistered")
		}

	case proto.Request:
		engine.handleRequest(msg, from, now)

	case proto.Reply:
		engine.handleReply(msg, from, now)

	case proto.RegisterAck:
		// Relays do not register anywhere; a stray ack means nothing.
	}
}

func (engine *Engine) handleRegister(msg proto.Register, from *net.UDPAddr, now time.Time) {
	if _, err := engine.registry.Register(msg.Id, from, now); err != nil {
		// No nack on the wire; the agent sees silence and retries,
		// matching the original relay's behavior.
		log.WithError(err).WithFields(log.Fields{
			"agent": msg.Id,
			"peer":  from,
		}).Warn("Rejecting registration")
		return
	}

	log.WithFields(log.Fields{
		"agent": msg.Id,
		"peer":  from,
		"total": engine.registry.Len(),
	}).Info("Agent registered")

	engine.emit(Event{Type: EventAgentRegistered, Time: now, AgentId: msg.Id})

	if err := engine.sender.Send(proto.RegisterAck{}.Encode(), from); err != nil {
		log.WithError(err).WithField("peer", from).Warn("Sending registration ack errored")
	}
}

func (engine *Engine) handleRequest(msg proto.Request, from *net.UDPAddr, now time.Time) {
	entries := engine.registry.ActiveEntries()

	memberIds := make([]string, len(entries))
	for i, entry := range entries {
		memberIds[i] = entry.Id
	}

	engine.lastRequester = from

	if replaced := engine.round.Start(msg.Kind, from, memberIds, now, engine.conf.ResponseTimeout); replaced {
		log.WithFields(log.Fields{
			"kind":      msg.Kind,
			"requester": from,
		}).Warn("Replacing unfinished round; late replies no longer count")

		engine.emit(Event{Type: EventRoundReplaced, Time: now})
	}

	log.WithFields(log.Fields{
		"kind":      msg.Kind,
		"requester": from,
		"expected":  len(entries),
	}).Info("Starting round, fanning out request")

	engine.emit(Event{
		Type:     EventRoundStarted,
		Time:     now,
		Kind:     msg.Kind.String(),
		Expected: len(entries),
	})

	var errs error
	data := msg.Encode()
	for _, entry := range entries {
		if err := engine.sender.Send(data, entry.Address); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs != nil {
		log.WithError(errs).Warn("Fan-out reached not every agent")
	}
}

func (engine *Engine) handleReply(msg proto.Reply, from *net.UDPAddr, now time.Time) {
	// Forwarding does not depend on a pending round: a reply arriving
	// after completion or timeout still reaches the last requester. It
	// merely no longer counts.
	if engine.lastRequester == nil {
		log.WithFields(log.Fields{
			"agent": msg.Id,
			"kind":  msg.Kind,
		}).Debug("Dropping reply, no requester was ever seen")
		return
	}

	if engine.round.Active() && msg.Kind != engine.round.Kind() {
		log.WithFields(log.Fields{
			"agent":    msg.Id,
			"kind":     msg.Kind,
			"expected": engine.round.Kind(),
		}).Debug("Reply kind differs from the pending request; forwarding anyway")
	}

	// Forward first, in arrival order; counting never delays the requester.
	if err := engine.sender.Send(msg.Encode(), engine.lastRequester); err != nil {
		log.WithError(err).WithField("agent", msg.Id).Warn("Forwarding reply errored")
	} else {
		log.WithFields(log.Fields{
			"agent": msg.Id,
			"peer":  from,
		}).Info("Forwarded reply")
	}

	status := engine.round.RecordReply(msg.Id)

	engine.emit(Event{Type: EventReplyForwarded, Time: now, AgentId: msg.Id, Kind: msg.Kind.String()})

	if status == RoundComplete {
		log.WithField("kind", engine.round.Kind()).Info("All expected replies arrived, closing round")

		engine.emit(Event{Type: EventRoundCompleted, Time: now, Kind: engine.round.Kind().String()})
		engine.round.Clear()
	}
}

// Tick runs the periodic housekeeping: registry expiry and the round
// deadline. Partial results already forwarded stand; the requester is not
// notified of a timeout.
func (engine *Engine) Tick(now time.Time) {
	engine.Lock()
	defer engine.Unlock()

	for _, id := range engine.registry.Expire(now, engine.conf.LivenessThreshold) {
		log.WithField("agent", id).Warn("Agent went silent, marked inactive")
		engine.emit(Event{Type: EventAgentExpired, Time: now, AgentId: id})
	}

	if engine.round.IsExpired(now) {
		log.WithFields(log.Fields{
			"kind": engine.round.Kind(),
		}).Info("Round timed out, closing with partial results")

		engine.emit(Event{Type: EventRoundExpired, Time: now, Kind: engine.round.Kind().String()})
		engine.round.Clear()
	}
}

// RegistrySnapshot for the Monitor.
func (engine *Engine) RegistrySnapshot() []Entry {
	engine.Lock()
	defer engine.Unlock()

	return engine.registry.Entries()
}

// RoundSnapshot for the Monitor.
func (engine *Engine) RoundSnapshot() RoundSnapshot {
	engine.Lock()
	defer engine.Unlock()

	if !engine.round.Active() {
		return RoundSnapshot{}
	}

	return RoundSnapshot{
		Active:    true,
		Kind:      engine.round.kind.String(),
		Requester: engine.round.requester.String(),
		Expected:  engine.round.expected,
		Received:  engine.round.received,
		Deadline:  engine.round.deadline,
	}
}
