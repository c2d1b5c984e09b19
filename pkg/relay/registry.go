// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"errors"
	"net"
	"time"
)

// ErrRegistryFull is returned for a registration of a new agent id after the
// Registry reached its fixed capacity.
var ErrRegistryFull = errors.New("relay: registry reached its capacity")

// Entry describes one registered agent. An Entry is never removed; an agent
// which went silent is marked inactive and revives on its next registration.
type Entry struct {
	Id       string       `json:"id"`
	Address  *net.UDPAddr `json:"address"`
	LastSeen time.Time    `json:"last_seen"`
	Active   bool         `json:"active"`
}

// Registry is the relay's bounded collection of known agents, kept in
// registration order. It is not safe for concurrent use; the Engine
// serializes all access.
type Registry struct {
	entries  []*Entry
	index    map[string]*Entry
	capacity int
}

// NewRegistry with a fixed maximum number of agent ids.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		index:    make(map[string]*Entry, capacity),
		capacity: capacity,
	}
}

// Register an agent id under the given address. A known id is updated in
// place, whatever its current address is; agents roam. A new id occupies a
// fresh slot or fails with ErrRegistryFull.
func (registry *Registry) Register(id string, address *net.UDPAddr, now time.Time) (*Entry, error) {
	if entry, known := registry.index[id]; known {
		entry.Address = address
		entry.LastSeen = now
		entry.Active = true
		return entry, nil
	}

	if len(registry.entries) >= registry.capacity {
		return nil, ErrRegistryFull
	}

	entry := &Entry{
		Id:       id,
		Address:  address,
		LastSeen: now,
		Active:   true,
	}
	registry.entries = append(registry.entries, entry)
	registry.index[id] = entry

	return entry, nil
}

// TouchHeartbeat refreshes an agent's liveness and address. A heartbeat from
// an unknown id is dropped silently; such an agent must register first.
func (registry *Registry) TouchHeartbeat(id string, address *net.UDPAddr, now time.Time) bool {
	entry, known := registry.index[id]
	if !known {
		return false
	}

	entry.Address = address
	entry.LastSeen = now
	entry.Active = true
	return true
}

// Unregister marks an agent inactive right away instead of waiting for the
// liveness threshold to run out.
func (registry *Registry) Unregister(id string) bool {
	entry, known := registry.index[id]
	if !known {
		return false
	}

	entry.Active = false
	return true
}

// Expire marks every active agent inactive whose last sign of life is older
// than the threshold. Idempotent.
func (registry *Registry) Expire(now time.Time, threshold time.Duration) (expired []string) {
	for _, entry := range registry.entries {
		if entry.Active && now.Sub(entry.LastSeen) > threshold {
			entry.Active = false
			expired = append(expired, entry.Id)
		}
	}
	return
}

// ActiveEntries returns copies of all active entries in registration order.
func (registry *Registry) ActiveEntries() (entries []Entry) {
	for _, entry := range registry.entries {
		if entry.Active {
			entries = append(entries, *entry)
		}
	}
	return
}

// Entries returns copies of all entries, active or not, in registration order.
func (registry *Registry) Entries() (entries []Entry) {
	for _, entry := range registry.entries {
		entries = append(entries, *entry)
	}
	return
}

// Len is the number of occupied slots, active or not.
func (registry *Registry) Len() int {
	return len(registry.entries)
}
