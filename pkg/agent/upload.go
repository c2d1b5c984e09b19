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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"
)

// Uploader pushes one captured file towards its off-node destination.
type Uploader interface {
	Upload(path string) error
}

// ExecUploader hands each file to an external upload tool, the way the
// original fleet shelled out for its cloud storage.
type ExecUploader struct {
	// Command is the tool's argument vector; every "{file}" is replaced
	// with the file's path, or the path is appended if no placeholder is
	// present.
	Command []string

	// Timeout bounds one upload run; zero means five minutes.
	Timeout time.Duration
}

func (uploader ExecUploader) Upload(path string) error {
	if len(uploader.Command) == 0 {
		return fmt.Errorf("agent: no upload command configured")
	}

	args := make([]string, len(uploader.Command))
	placeholder := false
	for i, arg := range uploader.Command {
		if strings.Contains(arg, "{file}") {
			placeholder = true
		}
		args[i] = strings.ReplaceAll(arg, "{file}", path)
	}
	if !placeholder {
		args = append(args, path)
	}

	timeout := uploader.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	cmd := exec.Command(args[0], args[1:]...)
	if output, err := runBounded(cmd, timeout); err != nil {
		return fmt.Errorf("agent: upload tool errored: %w; output: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Watcher observes the capture spool directory. Every file appearing there is
// recorded in the Journal, uploaded and marked as delivered.
type Watcher struct {
	directory string
	uploader  Uploader
	journal   *Journal

	watcher    *fsnotify.Watcher
	knownFiles sync.Map

	stopSyn chan struct{}
	stopAck chan struct{}
}

// NewWatcher on the given spool directory. Files already recorded in the
// Journal with a pending upload are retried first; then the directory is
// watched for new captures.
func NewWatcher(directory string, uploader Uploader, journal *Journal) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(directory); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	watcher := &Watcher{
		directory: directory,
		uploader:  uploader,
		journal:   journal,

		watcher: fsWatcher,

		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	go watcher.handler()

	return watcher, nil
}

func (watcher *Watcher) handler() {
	defer close(watcher.stopAck)

	watcher.retryPending()

	for {
		select {
		case <-watcher.stopSyn:
			_ = watcher.watcher.Close()
			return

		case event, ok := <-watcher.watcher.Events:
			if !ok {
				log.Error("fsnotify's event channel was closed")
				return
			}

			if event.Op&fsnotify.Create == 0 {
				continue
			}
			if _, known := watcher.knownFiles.Load(event.Name); known {
				continue
			}
			watcher.knownFiles.Store(event.Name, struct{}{})

			watcher.handleFile(event.Name)

		case err, ok := <-watcher.watcher.Errors:
			if !ok {
				log.Error("fsnotify's error channel was closed")
				return
			}
			log.WithError(err).Warn("Watching the spool directory errored")
		}
	}
}

// retryPending uploads everything the Journal still lists as outstanding,
// e.g., after a crash between capture and upload.
func (watcher *Watcher) retryPending() {
	records, err := watcher.journal.Pending()
	if err != nil {
		log.WithError(err).Warn("Querying pending uploads errored")
		return
	}

	for _, record := range records {
		path := filepath.Join(watcher.directory, record.Name)
		watcher.knownFiles.Store(path, struct{}{})

		if _, err := os.Stat(path); err != nil {
			log.WithField("file", record.Name).Warn("Pending upload vanished from the spool")
			continue
		}

		watcher.upload(path)
	}
}

// handleFile journals and uploads one fresh capture.
func (watcher *Watcher) handleFile(path string) {
	// The capture tool might still be writing; fsnotify reports the
	// creation, not the completion.
	time.Sleep(100 * time.Millisecond)

	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("file", path).Warn("Reading fresh capture errored")
		return
	}

	if _, err := watcher.journal.Record(filepath.Base(path), data, time.Now()); err != nil {
		log.WithError(err).WithField("file", path).Warn("Journaling fresh capture errored")
		return
	}

	watcher.upload(path)
}

func (watcher *Watcher) upload(path string) {
	name := filepath.Base(path)

	if err := watcher.uploader.Upload(path); err != nil {
		// The record stays pending; the next start retries it.
		log.WithError(err).WithField("file", name).Warn("Upload errored")
		return
	}

	if err := watcher.journal.MarkUploaded(name); err != nil {
		log.WithError(err).WithField("file", name).Warn("Marking upload errored")
		return
	}

	log.WithField("file", name).Info("Uploaded capture")
}

// Close the Watcher.
func (watcher *Watcher) Close() error {
	close(watcher.stopSyn)
	<-watcher.stopAck

	return nil
}
