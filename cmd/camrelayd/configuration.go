// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"

	"github.com/camrelay/camrelay-go/pkg/discovery"
	"github.com/camrelay/camrelay-go/pkg/relay"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Relay     relayConf
	Logging   logConf
	Monitor   monitorConf
	Discovery discoveryConf
}

// relayConf describes the Relay-configuration block.
type relayConf struct {
	Listen            string
	Capacity          int
	LivenessThreshold uint `toml:"liveness-threshold"`
	ResponseTimeout   uint `toml:"response-timeout"`
	TickInterval      uint `toml:"tick-interval"`
	DedupReplies      bool `toml:"dedup-replies"`
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// monitorConf describes the Monitor-configuration block.
type monitorConf struct {
	Listen string
}

// discoveryConf describes the Discovery-configuration block.
type discoveryConf struct {
	Name     string
	IPv4     bool
	IPv6     bool
	Interval uint
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

// relayConfig converts the Relay block into the relay's Config, falling back
// to the defaults for empty fields.
func relayConfig(conf relayConf) relay.Config {
	relayConfig := relay.DefaultConfig()

	if conf.Capacity != 0 {
		relayConfig.Capacity = conf.Capacity
	}
	if conf.LivenessThreshold != 0 {
		relayConfig.LivenessThreshold = time.Duration(conf.LivenessThreshold) * time.Second
	}
	if conf.ResponseTimeout != 0 {
		relayConfig.ResponseTimeout = time.Duration(conf.ResponseTimeout) * time.Second
	}
	if conf.TickInterval != 0 {
		relayConfig.TickInterval = time.Duration(conf.TickInterval) * time.Second
	}
	relayConfig.DedupReplies = conf.DedupReplies

	return relayConfig
}

// parseRelay creates the relay's components based on the given TOML
// configuration: the datagram Server, an optional Monitor with its HTTP
// server, and an optional discovery Manager.
func parseRelay(filename string) (serv *relay.Server, monitor *relay.Monitor, disco *discovery.Manager, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	configureLogging(conf.Logging)

	if conf.Relay.Listen == "" {
		err = fmt.Errorf("relay.listen is empty")
		return
	}

	serv, err = relay.NewServer(conf.Relay.Listen, relayConfig(conf.Relay))
	if err != nil {
		return
	}

	if conf.Monitor.Listen != "" {
		monitor = relay.NewMonitor(serv.Engine())

		httpServer := &http.Server{Addr: conf.Monitor.Listen, Handler: monitor}
		go func() {
			if httpErr := httpServer.ListenAndServe(); httpErr != nil && httpErr != http.ErrServerClosed {
				log.WithError(httpErr).Fatal("Monitor's HTTP server errored")
			}
		}()

		log.WithField("listen", conf.Monitor.Listen).Info("Started Monitor")
	}

	if conf.Discovery.IPv4 || conf.Discovery.IPv6 {
		if conf.Discovery.Interval == 0 {
			conf.Discovery.Interval = 10
		}
		if conf.Discovery.Name == "" {
			conf.Discovery.Name = "camrelay"
		}

		var port int
		if port, err = parseListenPort(conf.Relay.Listen); err != nil {
			return
		}

		disco, err = discovery.NewManager(
			discovery.Announcement{Name: conf.Discovery.Name, Port: uint(port)},
			nil, time.Duration(conf.Discovery.Interval)*time.Second,
			conf.Discovery.IPv4, conf.Discovery.IPv6)
		if err != nil {
			return
		}
	}

	serv.Start()

	return
}

func parseListenPort(endpoint string) (port int, err error) {
	var portStr string
	_, portStr, err = net.SplitHostPort(endpoint)
	if err != nil {
		return
	}
	port, err = strconv.Atoi(portStr)
	return
}
