// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camrelay/camrelay-go/pkg/relay"
)

// showRegistry fetches a relay Monitor's registry and prints it as a table.
func showRegistry(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	resp, err := http.Get(strings.TrimSuffix(args[0], "/") + "/registry")
	if err != nil {
		printFatal(err, "Fetching the registry errored")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		printFatal(fmt.Errorf("status %s", resp.Status), "Monitor answered unexpectedly")
	}

	var entries []relay.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		printFatal(err, "Decoding the registry errored")
	}

	table := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(table, "ID\tADDRESS\tLAST SEEN\tACTIVE")
	for _, entry := range entries {
		_, _ = fmt.Fprintf(table, "%s\t%v\t%s\t%t\n",
			entry.Id, entry.Address, entry.LastSeen.Format(time.RFC3339), entry.Active)
	}
	_ = table.Flush()
}

// watch tails a relay Monitor's event stream until interrupted.
func watch(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	conn, _, err := websocket.DefaultDialer.Dial(args[0], nil)
	if err != nil {
		printFatal(err, "Connecting to the Monitor errored")
	}

	closeChan := make(chan os.Signal, 1)
	signal.Notify(closeChan, os.Interrupt)
	go func() {
		<-closeChan
		_ = conn.Close()
	}()

	for {
		var event relay.Event
		if err := conn.ReadJSON(&event); err != nil {
			// Either the interrupt above closed the connection or the
			// Monitor went away; both end the watch.
			return
		}

		fmt.Printf("%s %s", event.Time.Format("15:04:05.000"), event.Type)
		if event.AgentId != "" {
			fmt.Printf(" agent=%s", event.AgentId)
		}
		if event.Kind != "" {
			fmt.Printf(" kind=%s", event.Kind)
		}
		fmt.Println()
	}
}
