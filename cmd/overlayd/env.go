package main

import (
	"os"
	"strconv"
	"time"
)

// applyEnvironment reads environment variables and overrides option fields.
// Variables use the prefix OVERLAYD_ (e.g. OVERLAYD_LISTEN,
// OVERLAYD_IO_TIMEOUT). CLI flags parsed afterwards take precedence.
func applyEnvironment(opts *options) {
	if v := os.Getenv("OVERLAYD_LISTEN"); v != "" {
		opts.cfg.ListenAddr = v
	}
	if v := os.Getenv("OVERLAYD_MAX_PEERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.cfg.MaxPeers = n
		}
	}
	if v := os.Getenv("OVERLAYD_IO_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			opts.cfg.IOTimeout = d
		}
	}
	if v := os.Getenv("OVERLAYD_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			opts.cfg.DialTimeout = d
		}
	}
	if v := os.Getenv("OVERLAYD_LOG_LEVEL"); v != "" {
		opts.logLevel = v
	}
}
