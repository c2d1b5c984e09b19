// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/camrelay/camrelay-go/pkg/proto"
)

// testPeer is a raw UDP socket speaking to the Server under test.
type testPeer struct {
	t    *testing.T
	conn *net.UDPConn
}

func newTestPeer(t *testing.T, relay *net.UDPAddr) *testPeer {
	t.Helper()

	conn, err := net.DialUDP("udp", nil, relay)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &testPeer{t: t, conn: conn}
}

func (peer *testPeer) send(msg proto.Message) {
	peer.t.Helper()

	if _, err := peer.conn.Write(msg.Encode()); err != nil {
		peer.t.Fatal(err)
	}
}

func (peer *testPeer) expect(timeout time.Duration) proto.Message {
	peer.t.Helper()

	if err := peer.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		peer.t.Fatal(err)
	}

	buff := make([]byte, maxDatagramSize)
	n, err := peer.conn.Read(buff)
	if err != nil {
		peer.t.Fatalf("reading from relay errored: %v", err)
	}

	msg, err := proto.Parse(buff[:n])
	if err != nil {
		peer.t.Fatalf("relay sent an unparsable datagram: %v", err)
	}
	return msg
}

func TestServerRoundTrip(t *testing.T) {
	conf := DefaultConfig()
	conf.TickInterval = 100 * time.Millisecond

	serv, err := NewServer("127.0.0.1:0", conf)
	if err != nil {
		t.Fatal(err)
	}
	serv.Start()
	defer func() { _ = serv.Close() }()

	agent := newTestPeer(t, serv.LocalAddr())
	requester := newTestPeer(t, serv.LocalAddr())

	// Agent registration is acknowledged.
	agent.send(proto.Register{Id: "cam0"})
	if _, ok := agent.expect(time.Second).(proto.RegisterAck); !ok {
		t.Fatal("agent did not receive a registration ack")
	}

	// The requester's broadcast reaches the agent.
	requester.send(proto.Request{Kind: proto.KindTime})
	if msg, ok := agent.expect(time.Second).(proto.Request); !ok || msg.Kind != proto.KindTime {
		t.Fatalf("agent did not receive the forwarded request, got %v", msg)
	}

	// The agent's reply comes back to the requester, verbatim.
	agent.send(proto.Reply{Id: "cam0", Kind: proto.KindTime, Payload: "2026-08-30 12:00:01"})

	reply, ok := requester.expect(time.Second).(proto.Reply)
	if !ok {
		t.Fatal("requester did not receive the forwarded reply")
	}
	if reply.Id != "cam0" || !strings.HasPrefix(reply.Payload, "2026-08-30") {
		t.Fatalf("forwarded reply differs: %+v", reply)
	}
}

func TestServerRoundTimeoutViaTicks(t *testing.T) {
	conf := DefaultConfig()
	conf.TickInterval = 50 * time.Millisecond
	conf.ResponseTimeout = 200 * time.Millisecond

	serv, err := NewServer("127.0.0.1:0", conf)
	if err != nil {
		t.Fatal(err)
	}
	serv.Start()
	defer func() { _ = serv.Close() }()

	requester := newTestPeer(t, serv.LocalAddr())
	requester.send(proto.Request{Kind: proto.KindTime})

	waitFor := func(active bool, complaint string) {
		deadline := time.Now().Add(2 * time.Second)
		for serv.Engine().RoundSnapshot().Active != active {
			if time.Now().After(deadline) {
				t.Fatal(complaint)
			}
			time.Sleep(25 * time.Millisecond)
		}
	}

	waitFor(true, "zero-agent round was never started")
	waitFor(false, "zero-agent round was never expired by the tick loop")
}
