// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"net"
	"testing"
	"time"

	"github.com/camrelay/camrelay-go/pkg/proto"
)

// fakeRelay is a bare UDP socket playing the relay's part.
type fakeRelay struct {
	t    *testing.T
	conn *net.UDPConn
	peer *net.UDPAddr
}

func newFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &fakeRelay{t: t, conn: conn}
}

func (relay *fakeRelay) address() string {
	return relay.conn.LocalAddr().String()
}

// expect the next datagram within the timeout, remembering its sender.
func (relay *fakeRelay) expect(timeout time.Duration) proto.Message {
	relay.t.Helper()

	if err := relay.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		relay.t.Fatal(err)
	}

	buff := make([]byte, maxDatagramSize)
	n, from, err := relay.conn.ReadFromUDP(buff)
	if err != nil {
		relay.t.Fatalf("fake relay read errored: %v", err)
	}
	relay.peer = from

	msg, err := proto.Parse(buff[:n])
	if err != nil {
		relay.t.Fatalf("fake relay received junk: %v", err)
	}
	return msg
}

func (relay *fakeRelay) send(msg proto.Message) {
	relay.t.Helper()

	if _, err := relay.conn.WriteToUDP(msg.Encode(), relay.peer); err != nil {
		relay.t.Fatal(err)
	}
}

func startTestClient(t *testing.T, relay *fakeRelay, capabilities ...Capability) *Client {
	t.Helper()

	conf := DefaultClientConfig("cam0", relay.address())
	conf.HeartbeatInterval = 100 * time.Millisecond
	conf.RegisterTimeout = time.Second
	conf.RegisterAttempts = 1

	client, err := NewClient(conf, capabilities...)
	if err != nil {
		t.Fatal(err)
	}

	// Acknowledge the registration from the fake relay's side.
	ackDone := make(chan struct{})
	go func() {
		defer close(ackDone)

		if _, ok := relay.expect(2 * time.Second).(proto.Register); !ok {
			t.Error("client did not register")
			return
		}
		relay.send(proto.RegisterAck{})
	}()

	client.Start()
	<-ackDone
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestClientAnswersRequest(t *testing.T) {
	relay := newFakeRelay(t)
	startTestClient(t, relay, TimeCapability{})

	relay.send(proto.Request{Kind: proto.KindTime})

	deadline := time.Now().Add(2 * time.Second)
	for {
		msg := relay.expect(2 * time.Second)
		if reply, ok := msg.(proto.Reply); ok {
			if reply.Id != "cam0" || reply.Kind != proto.KindTime {
				t.Fatalf("unexpected reply: %+v", reply)
			}
			return
		}

		// Heartbeats may interleave; skip them.
		if time.Now().After(deadline) {
			t.Fatal("client never answered the request")
		}
	}
}

func TestClientStaysSilentWithoutCapability(t *testing.T) {
	relay := newFakeRelay(t)
	startTestClient(t, relay, TimeCapability{})

	relay.send(proto.Request{Kind: proto.KindCapture})

	// Only heartbeats must arrive from now on.
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if err := relay.conn.SetReadDeadline(deadline); err != nil {
			t.Fatal(err)
		}

		buff := make([]byte, maxDatagramSize)
		n, _, err := relay.conn.ReadFromUDP(buff)
		if err != nil {
			break
		}

		if msg, err := proto.Parse(buff[:n]); err == nil {
			if _, isHeartbeat := msg.(proto.Heartbeat); !isHeartbeat {
				t.Fatalf("client answered an unsupported request with %v", msg)
			}
		}
	}
}

func TestClientHeartbeats(t *testing.T) {
	relay := newFakeRelay(t)
	startTestClient(t, relay, TimeCapability{})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := relay.expect(2 * time.Second).(proto.Heartbeat); ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("client never heartbeated")
		}
	}
}

func TestClientUnregistersOnClose(t *testing.T) {
	relay := newFakeRelay(t)
	client := startTestClient(t, relay, TimeCapability{})

	if err := client.Close(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		msg := relay.expect(2 * time.Second)
		if unreg, ok := msg.(proto.Unregister); ok {
			if unreg.Id != "cam0" {
				t.Fatalf("unexpected unregister: %+v", unreg)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
	}
}

func TestClientRejectsBrokenConfig(t *testing.T) {
	if _, err := NewClient(DefaultClientConfig("", "localhost:8080")); err == nil {
		t.Fatal("an empty id must be rejected")
	}

	longId := make([]byte, proto.MaxIdLen+1)
	for i := range longId {
		longId[i] = 'x'
	}
	if _, err := NewClient(DefaultClientConfig(string(longId), "localhost:8080")); err == nil {
		t.Fatal("an oversized id must be rejected")
	}
}
