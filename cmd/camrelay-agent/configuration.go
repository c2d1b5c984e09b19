// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"

	"github.com/camrelay/camrelay-go/pkg/agent"
	"github.com/camrelay/camrelay-go/pkg/discovery"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Agent     agentConf
	Logging   logConf
	Time      timeConf
	Listing   listingConf
	Capture   captureConf
	Upload    uploadConf
	Discovery discoveryConf
}

// agentConf describes the Agent-configuration block.
type agentConf struct {
	Id                string
	Relay             string
	HeartbeatInterval uint `toml:"heartbeat-interval"`
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// timeConf enables answering time requests.
type timeConf struct {
	Enabled bool
}

// listingConf enables answering listing requests for one directory.
type listingConf struct {
	Directory string
}

// captureConf enables answering capture requests through an external tool.
type captureConf struct {
	Command   []string
	Directory string
	Timeout   uint
}

// uploadConf describes the capture upload pipeline.
type uploadConf struct {
	Command []string
	Timeout uint
	Journal string
}

// discoveryConf describes the Discovery-configuration block.
type discoveryConf struct {
	IPv4    bool
	IPv6    bool
	Timeout uint
}

// configureLogging applies the Logging block to logrus.
func configureLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

// discoverRelay waits for a relay Announcement on the local network and
// returns its address.
func discoverRelay(conf discoveryConf) (string, error) {
	timeout := time.Duration(conf.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	addrChan := make(chan string, 1)

	manager, err := discovery.NewManager(
		discovery.Announcement{},
		func(announcement discovery.Announcement, addr string) {
			log.WithFields(log.Fields{
				"relay":   announcement,
				"address": addr,
			}).Info("Discovered a relay")

			select {
			case addrChan <- addr:
			default:
			}
		},
		time.Second, conf.IPv4, conf.IPv6)
	if err != nil {
		return "", err
	}
	defer manager.Close()

	select {
	case addr := <-addrChan:
		return addr, nil

	case <-time.After(timeout):
		return "", fmt.Errorf("no relay appeared within %v", timeout)
	}
}

// parseCapabilities assembles the Capability list from the configuration.
func parseCapabilities(conf tomlConfig) (capabilities []agent.Capability) {
	if conf.Time.Enabled {
		capabilities = append(capabilities, agent.TimeCapability{})
	}

	if conf.Listing.Directory != "" {
		capabilities = append(capabilities, agent.ListingCapability{
			Directory: conf.Listing.Directory,
		})
	}

	if len(conf.Capture.Command) != 0 {
		capabilities = append(capabilities, agent.CaptureCapability{
			Command:   conf.Capture.Command,
			Directory: conf.Capture.Directory,
			Timeout:   time.Duration(conf.Capture.Timeout) * time.Second,
		})
	}

	return
}

// parseAgent creates the agent's components based on the given TOML
// configuration: the relay Client and, if uploads are configured, the spool
// Watcher with its Journal.
func parseAgent(filename string) (client *agent.Client, watcher *agent.Watcher, journal *agent.Journal, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	configureLogging(conf.Logging)

	if conf.Agent.Id == "" {
		err = fmt.Errorf("agent.id is empty")
		return
	}

	relayAddress := conf.Agent.Relay
	if relayAddress == "" {
		if !conf.Discovery.IPv4 && !conf.Discovery.IPv6 {
			err = fmt.Errorf("agent.relay is empty and discovery is disabled")
			return
		}

		if relayAddress, err = discoverRelay(conf.Discovery); err != nil {
			return
		}
	}

	clientConf := agent.DefaultClientConfig(conf.Agent.Id, relayAddress)
	if conf.Agent.HeartbeatInterval != 0 {
		clientConf.HeartbeatInterval = time.Duration(conf.Agent.HeartbeatInterval) * time.Second
	}

	if client, err = agent.NewClient(clientConf, parseCapabilities(conf)...); err != nil {
		return
	}

	if len(conf.Upload.Command) != 0 {
		if conf.Capture.Directory == "" {
			err = fmt.Errorf("upload.command is set, but capture.directory is empty")
			return
		}

		journalDir := conf.Upload.Journal
		if journalDir == "" {
			journalDir = conf.Capture.Directory + "/.journal"
		}

		if journal, err = agent.OpenJournal(journalDir); err != nil {
			return
		}

		uploader := agent.ExecUploader{
			Command: conf.Upload.Command,
			Timeout: time.Duration(conf.Upload.Timeout) * time.Second,
		}

		if watcher, err = agent.NewWatcher(conf.Capture.Directory, uploader, journal); err != nil {
			return
		}
	}

	client.Start()

	return
}
