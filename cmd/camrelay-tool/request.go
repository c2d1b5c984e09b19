// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/camrelay/camrelay-go/pkg/proto"
)

// quietTimeout after which a requester stops waiting for further replies. It
// exceeds the relay's default response timeout, so even stragglers the relay
// still forwards are printed.
const quietTimeout = 3 * time.Second

func requestKind(name string) proto.Kind {
	switch name {
	case "time":
		return proto.KindTime
	case "ls":
		return proto.KindListing
	case "capture":
		return proto.KindCapture
	default:
		printUsage()
		panic("unreachable")
	}
}

// request plays the requester: one broadcast through the relay, printing every
// forwarded reply until quietTimeout passes without one.
func request(name string, args []string) {
	if len(args) != 1 {
		printUsage()
	}

	addr, err := net.ResolveUDPAddr("udp", args[0])
	if err != nil {
		printFatal(err, "Resolving the relay address errored")
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		printFatal(err, "Connecting to the relay errored")
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write(proto.Request{Kind: requestKind(name)}.Encode()); err != nil {
		printFatal(err, "Sending the request errored")
	}

	buff := make([]byte, 65507)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(quietTimeout)); err != nil {
			printFatal(err, "Setting a read deadline errored")
		}

		n, err := conn.Read(buff)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return
			}
			printFatal(err, "Reading a reply errored")
		}

		msg, err := proto.Parse(buff[:n])
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "! unparsable reply: %v\n", err)
			continue
		}

		reply, ok := msg.(proto.Reply)
		if !ok {
			_, _ = fmt.Fprintf(os.Stderr, "! unexpected %T from the relay\n", msg)
			continue
		}

		fmt.Printf("%s: %s\n", reply.Id, reply.Payload)
	}
}
