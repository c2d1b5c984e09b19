// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// camrelay-agent is the camera node daemon: it registers with a relay, keeps
// alive through heartbeats, answers broadcast requests and pushes captured
// images towards their destination.
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

	client, watcher, journal, err := parseAgent(os.Args[1])
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Failed to parse config")
	}

	waitSigint()
	log.Info("Shutting down..")

	if err := client.Close(); err != nil {
		log.WithError(err).Warn("Closing the relay client errored")
	}

	if watcher != nil {
		_ = watcher.Close()
	}
	if journal != nil {
		_ = journal.Close()
	}
}
