// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxDatagramSize bounds one read; the protocol itself carries no length.
const maxDatagramSize = 65507

// Server binds an Engine to a UDP socket. One goroutine reads datagrams, a
// second one multiplexes them with the periodic tick into the Engine, so all
// state transitions stay serialized.
type Server struct {
	conn   *net.UDPConn
	engine *Engine

	tickInterval time.Duration

	packetChan chan packet
	stopSyn    chan struct{}
	stopAck    chan struct{}
}

type packet struct {
	data []byte
	from *net.UDPAddr
}

// NewServer listening on the given UDP address, like ":8080". The returned
// Server is not yet running; call Start.
func NewServer(listenAddress string, conf Config) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp", listenAddress)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	serv := &Server{
		conn:         conn,
		tickInterval: conf.TickInterval,

		packetChan: make(chan packet, 32),
		stopSyn:    make(chan struct{}),
		stopAck:    make(chan struct{}),
	}
	serv.engine = NewEngine(conf, serv)

	return serv, nil
}

// Engine driven by this Server, e.g., for attaching a Monitor.
func (serv *Server) Engine() *Engine {
	return serv.engine
}

// LocalAddr of the bound UDP socket.
func (serv *Server) LocalAddr() *net.UDPAddr {
	return serv.conn.LocalAddr().(*net.UDPAddr)
}

// Start the read loop and the dispatch loop.
func (serv *Server) Start() {
	log.WithField("address", serv.LocalAddr()).Info("Relay server is listening")

	go serv.readLoop()
	go serv.dispatchLoop()
}

func (serv *Server) readLoop() {
	defer close(serv.packetChan)

	buff := make([]byte, maxDatagramSize)
	for {
		select {
		case <-serv.stopSyn:
			return

		default:
			if err := serv.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
				log.WithError(err).Error("Relay server failed to set a read deadline")
				return
			}

			n, from, err := serv.conn.ReadFromUDP(buff)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}

				log.WithError(err).Warn("Relay server failed to read a datagram")
				continue
			}

			data := make([]byte, n)
			copy(data, buff[:n])

			serv.packetChan <- packet{data: data, from: from}
		}
	}
}

func (serv *Server) dispatchLoop() {
	ticker := time.NewTicker(serv.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case p, ok := <-serv.packetChan:
			if !ok {
				_ = serv.conn.Close()
				close(serv.stopAck)
				return
			}
			serv.engine.Handle(p.data, p.from, time.Now())

		case <-ticker.C:
			serv.engine.Tick(time.Now())
		}
	}
}

// Send implements the Engine's Sender on the listening socket. A send is
// bounded by a short write deadline, never blocking the loop for long.
func (serv *Server) Send(data []byte, addr *net.UDPAddr) error {
	if err := serv.conn.SetWriteDeadline(time.Now().Add(time.Second)); err != nil {
		return err
	}

	_, err := serv.conn.WriteToUDP(data, addr)
	return err
}

// Close the Server and its socket.
func (serv *Server) Close() error {
	close(serv.stopSyn)
	<-serv.stopAck

	return nil
}
