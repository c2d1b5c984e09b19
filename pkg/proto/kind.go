// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package proto

import "fmt"

// Kind enumerates the request families a relay fans out to its agents.
type Kind uint8

const (
	// KindTime asks every agent for its local wall clock.
	KindTime Kind = iota

	// KindListing asks every agent for a directory listing.
	KindListing

	// KindCapture asks every agent to trigger a camera capture.
	KindCapture
)

// requestTag is the wire tag of this Kind's broadcast request.
func (kind Kind) requestTag() string {
	switch kind {
	case KindTime:
		return tagTimeRequest
	case KindListing:
		return tagLsRequest
	case KindCapture:
		return tagCaptureRequest
	default:
		panic(fmt.Sprintf("proto: no request tag for kind %d", kind))
	}
}

// responseTag is the wire tag of this Kind's agent response.
func (kind Kind) responseTag() string {
	switch kind {
	case KindTime:
		return tagTimeResponse
	case KindListing:
		return tagLsResponse
	case KindCapture:
		return tagCaptureResponse
	default:
		panic(fmt.Sprintf("proto: no response tag for kind %d", kind))
	}
}

func (kind Kind) String() string {
	switch kind {
	case KindTime:
		return "time"
	case KindListing:
		return "listing"
	case KindCapture:
		return "capture"
	default:
		return fmt.Sprintf("Kind(%d)", kind)
	}
}
