// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camrelay/camrelay-go/pkg/proto"
)

func TestMonitorSnapshots(t *testing.T) {
	engine, _ := testEngine(false)
	monitor := NewMonitor(engine)
	defer func() { _ = monitor.Close() }()

	httpServer := httptest.NewServer(monitor)
	defer httpServer.Close()

	now := time.Now()
	engine.Handle(proto.Register{Id: "cam0"}.Encode(), testAddr(4000), now)
	engine.Handle(proto.Request{Kind: proto.KindTime}.Encode(), testAddr(6000), now)

	resp, err := http.Get(httpServer.URL + "/registry")
	if err != nil {
		t.Fatal(err)
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if len(entries) != 1 || entries[0].Id != "cam0" || !entries[0].Active {
		t.Fatalf("registry snapshot: %+v", entries)
	}

	resp, err = http.Get(httpServer.URL + "/round")
	if err != nil {
		t.Fatal(err)
	}

	var snapshot RoundSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if !snapshot.Active || snapshot.Kind != "time" || snapshot.Expected != 1 {
		t.Fatalf("round snapshot: %+v", snapshot)
	}
}

func TestMonitorEventStream(t *testing.T) {
	engine, _ := testEngine(false)
	monitor := NewMonitor(engine)
	defer func() { _ = monitor.Close() }()

	httpServer := httptest.NewServer(monitor)
	defer httpServer.Close()

	wsUrl := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsUrl, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	// Let the observer be registered before events are produced.
	time.Sleep(100 * time.Millisecond)

	engine.Handle(proto.Register{Id: "cam0"}.Encode(), testAddr(4000), time.Now())

	if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatal(err)
	}
	if event.Type != EventAgentRegistered || event.AgentId != "cam0" {
		t.Fatalf("unexpected event: %+v", event)
	}
}
