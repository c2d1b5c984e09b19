// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/camrelay/camrelay-go/pkg/proto"
)

// timestampLayout is the human-readable clock format the original fleet used.
const timestampLayout = "2006-01-02 15:04:05"

// Capability answers one Kind of broadcast request. Execute may block, e.g.,
// on a camera; the Client runs it apart from its protocol loop.
type Capability interface {
	// Kind of request this Capability answers.
	Kind() proto.Kind

	// Execute the side effect and return the reply payload. The payload
	// is opaque to the relay and may span multiple lines.
	Execute() (string, error)
}

// TimeCapability reports the node's local wall clock.
type TimeCapability struct{}

func (TimeCapability) Kind() proto.Kind {
	return proto.KindTime
}

func (TimeCapability) Execute() (string, error) {
	return time.Now().Format(timestampLayout), nil
}

// ListingCapability reports the contents of one directory, line by line.
type ListingCapability struct {
	Directory string
}

func (ListingCapability) Kind() proto.Kind {
	return proto.KindListing
}

func (listing ListingCapability) Execute() (string, error) {
	entries, err := os.ReadDir(listing.Directory)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\ntotal %d\n", len(entries)))

	for _, entry := range entries {
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}

		sb.WriteString(fmt.Sprintf("%s %8d %s %s\n",
			info.Mode(), info.Size(), info.ModTime().Format(timestampLayout), info.Name()))
	}

	return sb.String(), nil
}

// CaptureCapability triggers the node's camera by running an external capture
// tool, libcamera-still or alike, and drops the image into the spool
// directory, where the Watcher picks it up.
type CaptureCapability struct {
	// Command is the capture tool's argument vector; every "{file}" is
	// replaced with the output path.
	Command []string

	// Directory receives the captured images.
	Directory string

	// Timeout bounds one capture run; zero means a minute.
	Timeout time.Duration
}

func (CaptureCapability) Kind() proto.Kind {
	return proto.KindCapture
}

func (capture CaptureCapability) Execute() (string, error) {
	if len(capture.Command) == 0 {
		return "", fmt.Errorf("agent: no capture command configured")
	}

	filename := time.Now().Format("20060102_150405") + ".png"
	file := filepath.Join(capture.Directory, filename)

	args := make([]string, len(capture.Command))
	for i, arg := range capture.Command {
		args[i] = strings.ReplaceAll(arg, "{file}", file)
	}

	timeout := capture.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}

	cmd := exec.Command(args[0], args[1:]...)
	output, err := runBounded(cmd, timeout)
	if err != nil {
		return "", fmt.Errorf("agent: capture command errored: %w", err)
	}

	payload := fmt.Sprintf("captured %s", filename)
	if trimmed := strings.TrimSpace(string(output)); trimmed != "" {
		payload += "\n" + trimmed
	}
	return payload, nil
}

// runBounded runs cmd and kills it after the timeout.
func runBounded(cmd *exec.Cmd, timeout time.Duration) ([]byte, error) {
	timer := time.AfterFunc(timeout, func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	})
	defer timer.Stop()

	return cmd.CombinedOutput()
}
