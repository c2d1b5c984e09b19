// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"encoding/json"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Monitor exposes an Engine's state over HTTP: registry and round snapshots
// as JSON, plus a WebSocket stream of Events under /ws. The Monitor is
// strictly read-only; it never drives the Engine.
type Monitor struct {
	engine *Engine
	router *mux.Router

	upgrader websocket.Upgrader

	observerLock sync.Mutex
	observers    map[*websocket.Conn]chan Event

	stopSyn chan struct{}
	stopAck chan struct{}
}

// NewMonitor for the given Engine. The returned Monitor is an http.Handler;
// its broadcast loop is already running.
func NewMonitor(engine *Engine) *Monitor {
	monitor := &Monitor{
		engine: engine,
		router: mux.NewRouter(),

		observers: make(map[*websocket.Conn]chan Event),

		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	monitor.router.HandleFunc("/registry", monitor.handleRegistry).Methods(http.MethodGet)
	monitor.router.HandleFunc("/round", monitor.handleRound).Methods(http.MethodGet)
	monitor.router.HandleFunc("/ws", monitor.handleWebSocket)

	go monitor.broadcast()

	return monitor
}

// ServeHTTP dispatches to the Monitor's routes.
func (monitor *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	monitor.router.ServeHTTP(w, r)
}

func (monitor *Monitor) handleRegistry(w http.ResponseWriter, _ *http.Request) {
	entries := monitor.engine.RegistrySnapshot()
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		log.WithError(err).Warn("Monitor failed to write the registry snapshot")
	}
}

func (monitor *Monitor) handleRound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(monitor.engine.RoundSnapshot()); err != nil {
		log.WithError(err).Warn("Monitor failed to write the round snapshot")
	}
}

func (monitor *Monitor) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := monitor.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Upgrading monitor request to WebSocket errored")
		return
	}

	eventChan := make(chan Event, 16)

	monitor.observerLock.Lock()
	monitor.observers[conn] = eventChan
	monitor.observerLock.Unlock()

	log.WithField("observer", conn.RemoteAddr()).Debug("Monitor observer connected")

	go monitor.writeObserver(conn, eventChan)
	monitor.readObserver(conn)
}

// readObserver drains the connection until it dies; observers only listen.
func (monitor *Monitor) readObserver(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			monitor.dropObserver(conn)
			return
		}
	}
}

func (monitor *Monitor) writeObserver(conn *websocket.Conn, eventChan chan Event) {
	for event := range eventChan {
		if err := conn.WriteJSON(event); err != nil {
			log.WithError(err).WithField("observer", conn.RemoteAddr()).Debug("Monitor observer write errored")

			monitor.dropObserver(conn)
			return
		}
	}
}

func (monitor *Monitor) dropObserver(conn *websocket.Conn) {
	monitor.observerLock.Lock()
	defer monitor.observerLock.Unlock()

	if eventChan, ok := monitor.observers[conn]; ok {
		delete(monitor.observers, conn)
		close(eventChan)
		_ = conn.Close()
	}
}

// broadcast fans Engine events out to every observer. A slow observer loses
// events instead of stalling the others.
func (monitor *Monitor) broadcast() {
	defer close(monitor.stopAck)

	for {
		select {
		case <-monitor.stopSyn:
			return

		case event := <-monitor.engine.Events():
			monitor.observerLock.Lock()
			for _, eventChan := range monitor.observers {
				select {
				case eventChan <- event:
				default:
				}
			}
			monitor.observerLock.Unlock()
		}
	}
}

// Close the Monitor and disconnect all observers.
func (monitor *Monitor) Close() error {
	close(monitor.stopSyn)
	<-monitor.stopAck

	monitor.observerLock.Lock()
	defer monitor.observerLock.Unlock()

	for conn, eventChan := range monitor.observers {
		delete(monitor.observers, conn)
		close(eventChan)
		_ = conn.Close()
	}

	return nil
}
