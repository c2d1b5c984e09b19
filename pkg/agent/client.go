// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/camrelay/camrelay-go/pkg/proto"
)

const maxDatagramSize = 65507

// Config of one agent Client.
type Config struct {
	// Id is this agent's identifier within the relay's registry.
	Id string

	// RelayAddress is the relay's UDP endpoint, host:port.
	RelayAddress string

	// HeartbeatInterval between liveness signals.
	HeartbeatInterval time.Duration

	// RegisterTimeout bounds one wait for the registration ack.
	RegisterTimeout time.Duration

	// RegisterAttempts before the Client gives up waiting for an ack and
	// carries on regardless, like the original client did.
	RegisterAttempts int
}

// DefaultClientConfig matching the original deployment's constants.
func DefaultClientConfig(id, relayAddress string) Config {
	return Config{
		Id:                id,
		RelayAddress:      relayAddress,
		HeartbeatInterval: 30 * time.Second,
		RegisterTimeout:   5 * time.Second,
		RegisterAttempts:  3,
	}
}

// Client connects one camera node to the relay. It registers, heartbeats and
// dispatches inbound broadcast requests to its Capabilities.
type Client struct {
	conf         Config
	conn         *net.UDPConn
	capabilities map[proto.Kind]Capability

	packetChan chan []byte
	stopSyn    chan struct{}
	stopAck    chan struct{}

	shutdownOnce sync.Once
}

// NewClient for the given Config and Capabilities. The connection is
// established immediately; call Start to register and begin serving.
func NewClient(conf Config, capabilities ...Capability) (*Client, error) {
	if conf.Id == "" {
		return nil, fmt.Errorf("agent: an agent needs an id")
	}
	if len(conf.Id) > proto.MaxIdLen {
		return nil, fmt.Errorf("agent: id exceeds %d bytes", proto.MaxIdLen)
	}

	addr, err := net.ResolveUDPAddr("udp", conf.RelayAddress)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}

	client := &Client{
		conf:         conf,
		conn:         conn,
		capabilities: make(map[proto.Kind]Capability),

		packetChan: make(chan []byte, 32),
		stopSyn:    make(chan struct{}),
		stopAck:    make(chan struct{}),
	}

	for _, capability := range capabilities {
		client.capabilities[capability.Kind()] = capability
	}

	return client, nil
}

// Start registers with the relay and launches the protocol loop. A missing
// registration ack is logged, not fatal; the relay might come up later and
// the next heartbeat or registration retry will reach it.
func (client *Client) Start() {
	client.register()

	go client.readLoop()
	go client.handler()
}

func (client *Client) log() *log.Entry {
	return log.WithField("agent", client.conf.Id)
}

// register sends REGISTER and waits a bounded time for the relay's ack,
// retrying a configured number of times.
func (client *Client) register() {
	for attempt := 1; attempt <= client.conf.RegisterAttempts; attempt++ {
		if _, err := client.conn.Write(proto.Register{Id: client.conf.Id}.Encode()); err != nil {
			client.log().WithError(err).Warn("Sending registration errored")
			continue
		}

		if client.awaitAck() {
			client.log().WithField("relay", client.conf.RelayAddress).Info("Registered with relay")
			return
		}

		client.log().WithField("attempt", attempt).Warn("No registration ack, retrying")
	}

	client.log().Warn("Carrying on without a registration ack")
}

func (client *Client) awaitAck() bool {
	if err := client.conn.SetReadDeadline(time.Now().Add(client.conf.RegisterTimeout)); err != nil {
		return false
	}

	buff := make([]byte, maxDatagramSize)
	for {
		n, err := client.conn.Read(buff)
		if err != nil {
			return false
		}

		if _, ok := parsePacket(buff[:n]).(proto.RegisterAck); ok {
			return true
		}
	}
}

func (client *Client) readLoop() {
	defer close(client.packetChan)

	buff := make([]byte, maxDatagramSize)
	for {
		select {
		case <-client.stopSyn:
			return

		default:
			if err := client.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
				client.log().WithError(err).Error("Setting a read deadline errored")
				return
			}

			n, err := client.conn.Read(buff)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}

				client.log().WithError(err).Warn("Reading from relay errored")
				continue
			}

			data := make([]byte, n)
			copy(data, buff[:n])

			client.packetChan <- data
		}
	}
}

func (client *Client) handler() {
	ticker := time.NewTicker(client.conf.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-client.packetChan:
			if !ok {
				_ = client.conn.Close()
				close(client.stopAck)
				return
			}
			client.handlePacket(data)

		case <-ticker.C:
			if _, err := client.conn.Write(proto.Heartbeat{Id: client.conf.Id}.Encode()); err != nil {
				client.log().WithError(err).Warn("Sending heartbeat errored")
			} else {
				client.log().Debug("Sent heartbeat")
			}
		}
	}
}

func (client *Client) handlePacket(data []byte) {
	switch msg := parsePacket(data).(type) {
	case proto.Request:
		client.handleRequest(msg)

	case proto.RegisterAck:
		client.log().Debug("Received a late registration ack")

	case nil:
		// Unparsable datagram, already logged.

	default:
		client.log().WithField("message", msg).Debug("Ignoring unexpected message")
	}
}

// handleRequest runs the matching Capability and replies to the relay. The
// execution happens aside, so a slow camera never stalls heartbeats.
func (client *Client) handleRequest(msg proto.Request) {
	capability, ok := client.capabilities[msg.Kind]
	if !ok {
		client.log().WithField("kind", msg.Kind).Debug("No capability for request, staying silent")
		return
	}

	go func() {
		payload, err := capability.Execute()
		if err != nil {
			client.log().WithError(err).WithField("kind", msg.Kind).Warn("Capability errored")
			payload = fmt.Sprintf("ERROR: %v", err)
		}

		reply := proto.Reply{Id: client.conf.Id, Kind: msg.Kind, Payload: payload}
		if _, err := client.conn.Write(reply.Encode()); err != nil {
			client.log().WithError(err).WithField("kind", msg.Kind).Warn("Sending reply errored")
		} else {
			client.log().WithField("kind", msg.Kind).Info("Sent reply")
		}
	}()
}

// Close unregisters from the relay and shuts the Client down. Closing twice
// is harmless.
func (client *Client) Close() error {
	client.shutdownOnce.Do(func() {
		if _, err := client.conn.Write(proto.Unregister{Id: client.conf.Id}.Encode()); err != nil {
			client.log().WithError(err).Warn("Sending unregister errored")
		}

		close(client.stopSyn)
		<-client.stopAck
	})

	return nil
}

// parsePacket wraps proto.Parse with drop-and-log semantics.
func parsePacket(data []byte) proto.Message {
	msg, err := proto.Parse(data)
	if err != nil {
		log.WithError(err).Debug("Dropping unparsable datagram")
		return nil
	}
	return msg
}
