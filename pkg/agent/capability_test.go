// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/camrelay/camrelay-go/pkg/proto"
)

func TestTimeCapability(t *testing.T) {
	capability := TimeCapability{}
	if capability.Kind() != proto.KindTime {
		t.Fatal("wrong kind")
	}

	payload, err := capability.Execute()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := time.Parse(timestampLayout, payload); err != nil {
		t.Fatalf("payload %q is no timestamp: %v", payload, err)
	}
}

func TestListingCapability(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("image"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	payload, err := ListingCapability{Directory: dir}.Execute()
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"a.png", "b.png"} {
		if !strings.Contains(payload, name) {
			t.Fatalf("listing misses %s:\n%s", name, payload)
		}
	}
	if !strings.HasPrefix(payload, "\ntotal 2\n") {
		t.Fatalf("listing misses its summary line:\n%s", payload)
	}
}

func TestListingCapabilityMissingDirectory(t *testing.T) {
	if _, err := (ListingCapability{Directory: "/does/not/exist"}).Execute(); err == nil {
		t.Fatal("listing a missing directory must error")
	}
}

func TestCaptureCapability(t *testing.T) {
	dir := t.TempDir()

	capability := CaptureCapability{
		// A stand-in for libcamera-still.
		Command:   []string{"/bin/sh", "-c", "echo fake-image > {file}"},
		Directory: dir,
		Timeout:   5 * time.Second,
	}

	payload, err := capability.Execute()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(payload, "captured ") {
		t.Fatalf("unexpected payload: %q", payload)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".png") {
		t.Fatalf("capture did not leave an image in the spool: %v", entries)
	}
}

func TestCaptureCapabilityUnconfigured(t *testing.T) {
	if _, err := (CaptureCapability{}).Execute(); err == nil {
		t.Fatal("a capture without a command must error")
	}
}
