// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/schollz/peerdiscovery"
)

// Manager publishes a relay's Announcement over UDP multicast and notifies
// about Announcements received from the network.
type Manager struct {
	// NotifyFunc is called for every freshly discovered relay with its
	// Announcement and the address it was seen from, e.g., "10.0.0.1:4223".
	NotifyFunc func(Announcement, string)

	announcement Announcement

	stopChan4 chan struct{}
	stopChan6 chan struct{}
}

// NewManager starts announcing and listening. An empty Announcement name
// disables the publishing side; a nil notifyFunc disables the listening side's
// callbacks, but announcing continues.
func NewManager(
	announcement Announcement, notifyFunc func(Announcement, string),
	announcementInterval time.Duration, ipv4, ipv6 bool) (*Manager, error) {

	var manager = &Manager{
		NotifyFunc:   notifyFunc,
		announcement: announcement,
	}
	if ipv4 {
		manager.stopChan4 = make(chan struct{})
	}
	if ipv6 {
		manager.stopChan6 = make(chan struct{})
	}

	log.WithFields(log.Fields{
		"interval":     announcementInterval,
		"IPv4":         ipv4,
		"IPv6":         ipv6,
		"announcement": announcement,
	}).Info("Starting discovery Manager")

	var msg []byte
	if announcement.Name != "" {
		var err error
		if msg, err = MarshalAnnouncement(announcement); err != nil {
			return nil, err
		}
	}

	sets := []struct {
		active           bool
		multicastAddress string
		stopChan         chan struct{}
		ipVersion        peerdiscovery.IPVersion
		notify           func(discovered peerdiscovery.Discovered)
	}{
		{ipv4, address4, manager.stopChan4, peerdiscovery.IPv4, manager.notify},
		{ipv6, address6, manager.stopChan6, peerdiscovery.IPv6, manager.notify6},
	}

	for _, set := range sets {
		if !set.active {
			continue
		}

		set := peerdiscovery.Settings{
			Limit:            -1,
			Port:             fmt.Sprintf("%d", port),
			MulticastAddress: set.multicastAddress,
			Payload:          msg,
			Delay:            announcementInterval,
			TimeLimit:        -1,
			StopChan:         set.stopChan,
			AllowSelf:        true,
			IPVersion:        set.ipVersion,
			Notify:           set.notify,
		}

		discoverErrChan := make(chan error)
		go func() {
			_, discoverErr := peerdiscovery.Discover(set)
			discoverErrChan <- discoverErr
		}()

		select {
		case discoverErr := <-discoverErrChan:
			if discoverErr != nil {
				return nil, discoverErr
			}

		case <-time.After(time.Second):
			break
		}
	}

	return manager, nil
}

func (manager *Manager) notify6(discovered peerdiscovery.Discovered) {
	discovered.Address = fmt.Sprintf("[%s]", discovered.Address)

	manager.notify(discovered)
}

func (manager *Manager) notify(discovered peerdiscovery.Discovered) {
	if len(discovered.Payload) == 0 {
		// A listen-only peer; nothing to learn from it.
		return
	}

	announcement, err := UnmarshalAnnouncement(discovered.Payload)
	if err != nil {
		log.WithError(err).WithField(
			"peer", discovered.Address,
		).Warn("Relay discovery failed to parse incoming package")

		return
	}

	if announcement == manager.announcement {
		return
	}

	log.WithFields(log.Fields{
		"peer":    discovered.Address,
		"message": announcement,
	}).Debug("Relay discovery received a message")

	if manager.NotifyFunc != nil {
		go manager.NotifyFunc(announcement,
			fmt.Sprintf("%s:%d", discovered.Address, announcement.Port))
	}
}

// Close this Manager.
func (manager *Manager) Close() {
	for _, c := range []chan struct{}{manager.stopChan4, manager.stopChan6} {
		if c != nil {
			c <- struct{}{}
		}
	}
}
