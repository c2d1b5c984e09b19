// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package proto

import (
	"errors"
	"fmt"
	"strings"
)

const (
	tagRegister        = "REGISTER"
	tagRegisterAck     = "REGISTERED:OK"
	tagUnregister      = "UNREGISTER"
	tagHeartbeat       = "HEARTBEAT"
	tagTimeRequest     = "TIME_REQUEST"
	tagLsRequest       = "LS_REQUEST"
	tagCaptureRequest  = "CAPTURE_REQUEST"
	tagTimeResponse    = "TIME_RESPONSE"
	tagLsResponse      = "LS_RESPONSE"
	tagCaptureResponse = "CAPTURE_RESPONSE"
)

// MaxIdLen bounds the length of an agent identifier on the wire.
const MaxIdLen = 32

// ErrUnknownTag marks a datagram whose tag is not part of this protocol.
// Receivers are expected to drop such datagrams silently.
var ErrUnknownTag = errors.New("proto: unknown message tag")

// Message is one parsed datagram. The implementations below, one struct per
// tag, are the only ones.
type Message interface {
	// Encode this Message back into its wire form, including the
	// terminating newline.
	Encode() []byte
}

// Register is an agent's request to join the relay's registry.
type Register struct {
	Id string
}

func (reg Register) Encode() []byte {
	return []byte(fmt.Sprintf("%s:%s\n", tagRegister, reg.Id))
}

// RegisterAck confirms a Register; sent from the relay back to the agent.
type RegisterAck struct{}

func (ack RegisterAck) Encode() []byte {
	return []byte(tagRegisterAck + "\n")
}

// Unregister is an agent's request to be marked inactive immediately.
type Unregister struct {
	Id string
}

func (unreg Unregister) Encode() []byte {
	return []byte(fmt.Sprintf("%s:%s\n", tagUnregister, unreg.Id))
}

// Heartbeat is an agent's periodic liveness signal.
type Heartbeat struct {
	Id string
}

func (hb Heartbeat) Encode() []byte {
	return []byte(fmt.Sprintf("%s:%s\n", tagHeartbeat, hb.Id))
}

// Request is a broadcast request of some Kind. The relay forwards it verbatim
// to every active agent; the original sender becomes the round's requester.
type Request struct {
	Kind Kind
}

func (req Request) Encode() []byte {
	return []byte(req.Kind.requestTag() + "\n")
}

// Reply is an agent's answer to a Request. The Payload is an opaque text
// blob; for listing and capture replies it may span multiple lines.
type Reply struct {
	Id      string
	Kind    Kind
	Payload string
}

func (rep Reply) Encode() []byte {
	return []byte(fmt.Sprintf("%s:%s:%s\n", rep.Kind.responseTag(), rep.Id, rep.Payload))
}

// Parse a raw datagram into a Message. A foreign tag is reported as
// ErrUnknownTag; a known tag with broken fields is reported with a
// descriptive error. Parse accepts exactly what Encode produces.
func Parse(data []byte) (Message, error) {
	raw := strings.TrimSuffix(string(data), "\n")

	// Tags without fields first; REGISTERED:OK contains the delimiter itself.
	switch raw {
	case tagRegisterAck:
		return RegisterAck{}, nil
	case tagTimeRequest:
		return Request{Kind: KindTime}, nil
	case tagLsRequest:
		return Request{Kind: KindListing}, nil
	case tagCaptureRequest:
		return Request{Kind: KindCapture}, nil
	}

	tag, rest, found := strings.Cut(raw, ":")
	if !found {
		return nil, ErrUnknownTag
	}

	switch tag {
	case tagRegister:
		if id, err := parseId(tag, rest); err != nil {
			return nil, err
		} else {
			return Register{Id: id}, nil
		}

	case tagUnregister:
		if id, err := parseId(tag, rest); err != nil {
			return nil, err
		} else {
			return Unregister{Id: id}, nil
		}

	case tagHeartbeat:
		if id, err := parseId(tag, rest); err != nil {
			return nil, err
		} else {
			return Heartbeat{Id: id}, nil
		}

	// The C relay matched requests by prefix; trailing fields are ignored.
	case tagTimeRequest:
		return Request{Kind: KindTime}, nil
	case tagLsRequest:
		return Request{Kind: KindListing}, nil
	case tagCaptureRequest:
		return Request{Kind: KindCapture}, nil

	case tagTimeResponse:
		return parseReply(tag, KindTime, rest)
	case tagLsResponse:
		return parseReply(tag, KindListing, rest)
	case tagCaptureResponse:
		return parseReply(tag, KindCapture, rest)

	default:
		return nil, ErrUnknownTag
	}
}

// parseId checks an identifier field which must be the message's last one.
func parseId(tag, field string) (string, error) {
	if field == "" {
		return "", fmt.Errorf("proto: %s carries an empty agent id", tag)
	}
	if len(field) > MaxIdLen {
		return "", fmt.Errorf("proto: %s agent id exceeds %d bytes", tag, MaxIdLen)
	}
	if strings.ContainsAny(field, ":\n") {
		return "", fmt.Errorf("proto: %s agent id contains a delimiter", tag)
	}
	return field, nil
}

// parseReply splits "id:payload", where payload runs verbatim to the end of
// the datagram and may contain both delimiters.
func parseReply(tag string, kind Kind, rest string) (Message, error) {
	id, payload, found := strings.Cut(rest, ":")
	if !found {
		return nil, fmt.Errorf("proto: %s misses its payload field", tag)
	}

	if id == "" {
		return nil, fmt.Errorf("proto: %s carries an empty agent id", tag)
	}
	if len(id) > MaxIdLen {
		return nil, fmt.Errorf("proto: %s agent id exceeds %d bytes", tag, MaxIdLen)
	}

	return Reply{Id: id, Kind: kind, Payload: payload}, nil
}
