// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"os"
	"time"

	"github.com/howeyc/crc16"
	"github.com/timshannon/badgerhold"
)

// CaptureRecord is the Journal's bookkeeping for one captured image.
type CaptureRecord struct {
	Name       string `badgerhold:"key"`
	Size       int64
	Checksum   uint16
	CapturedAt time.Time
	Uploaded   bool
}

// Journal keeps persistent book over captured images and their uploads, so a
// restarted agent can pick up where it left off. Protocol state is never
// journaled; only the capture pipeline is.
type Journal struct {
	bh *badgerhold.Store
}

var crc16table = crc16.MakeTable(crc16.CCITT)

// OpenJournal in the given directory, creating it if necessary.
func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	bh, err := badgerhold.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Journal{bh: bh}, nil
}

// Record a freshly captured file. The file is read once to take its size and
// checksum. Recording the same name twice updates the entry.
func (journal *Journal) Record(name string, data []byte, capturedAt time.Time) (CaptureRecord, error) {
	record := CaptureRecord{
		Name:       name,
		Size:       int64(len(data)),
		Checksum:   crc16.Checksum(data, crc16table),
		CapturedAt: capturedAt,
	}

	return record, journal.bh.Upsert(record.Name, record)
}

// MarkUploaded flags a recorded file as delivered.
func (journal *Journal) MarkUploaded(name string) error {
	var record CaptureRecord
	if err := journal.bh.Get(name, &record); err != nil {
		return err
	}

	record.Uploaded = true
	return journal.bh.Update(name, record)
}

// Pending returns all recorded files whose upload is still outstanding, in
// capture order.
func (journal *Journal) Pending() (records []CaptureRecord, err error) {
	err = journal.bh.Find(&records,
		badgerhold.Where("Uploaded").Eq(false).SortBy("CapturedAt"))
	return
}

// Lookup one record by file name.
func (journal *Journal) Lookup(name string) (record CaptureRecord, err error) {
	err = journal.bh.Get(name, &record)
	return
}

// Close the Journal's underlying store.
func (journal *Journal) Close() error {
	return journal.bh.Close()
}
