// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// camrelay-tool is an operator's helper to poke a running relay: it plays the
// requester role for one broadcast round, prints a relay's registry, or tails
// the event stream of a relay's Monitor.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// printUsage of camrelay-tool and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s time|ls|capture|registry|watch:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s time|ls|capture relay-address\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Broadcasts one request through the relay at relay-address (host:port) and\n")
	_, _ = fmt.Fprintf(os.Stderr, "  prints every agent reply until the replies dry up.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s registry monitor-url\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Fetches and prints the agent registry from a relay's Monitor, e.g.,\n")
	_, _ = fmt.Fprintf(os.Stderr, "  http://localhost:8080.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s watch monitor-ws-url\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Tails the relay's event stream, e.g., ws://localhost:8080/ws.\n\n")

	os.Exit(1)
}

// printFatal a message alongside an error and exit.
func printFatal(err error, message string) {
	log.WithError(err).Fatal(message)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	switch os.Args[1] {
	case "time", "ls", "capture":
		request(os.Args[1], os.Args[2:])

	case "registry":
		showRegistry(os.Args[2:])

	case "watch":
		watch(os.Args[2:])

	default:
		printUsage()
	}
}
