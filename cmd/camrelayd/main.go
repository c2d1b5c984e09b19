// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// camrelayd is the relay daemon: it keeps the agent registry, fans incoming
// requests out to the registered agents and forwards their replies back to the
// requester.
package main

import (
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
)

// waitSigint blocks the current thread until a SIGINT appears.
func waitSigint() {
	signalSyn := make(chan os.Signal, 1)
	signalAck := make(chan struct{})

	signal.Notify(signalSyn, os.Interrupt)

	go func() {
		<-signalSyn
		close(signalAck)
	}()

	<-signalAck
}

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	serv, monitor, disco, err := parseRelay(os.Args[1])
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Failed to parse config")
	}

	waitSigint()
	log.Info("Shutting down..")

	if err := serv.Close(); err != nil {
		log.WithError(err).Warn("Closing the relay server errored")
	}

	if monitor != nil {
		_ = monitor.Close()
	}

	if disco != nil {
		disco.Close()
	}
}
