package main

import (
	"testing"
	"time"

	"github.com/mcntech/stellar-core/overlay"
)

func TestParseFlags_Defaults(t *testing.T) {
	opts, exit, code := parseFlags([]string{})
	if exit {
		t.Fatalf("unexpected exit with code %d", code)
	}

	defaults := overlay.DefaultConfig()
	if opts.cfg.ListenAddr != defaults.ListenAddr {
		t.Errorf("ListenAddr = %q, want %q", opts.cfg.ListenAddr, defaults.ListenAddr)
	}
	if opts.cfg.MaxPeers != defaults.MaxPeers {
		t.Errorf("MaxPeers = %d, want %d", opts.cfg.MaxPeers, defaults.MaxPeers)
	}
	if opts.cfg.IOTimeout != defaults.IOTimeout {
		t.Errorf("IOTimeout = %v, want %v", opts.cfg.IOTimeout, defaults.IOTimeout)
	}
	if opts.logLevel != "info" {
		t.Errorf("logLevel = %q, want info", opts.logLevel)
	}
	if len(opts.peers) != 0 {
		t.Errorf("peers = %v, want none", opts.peers)
	}
}

func TestParseFlags_AllFlags(t *testing.T) {
	args := []string{
		"--listen", ":12000",
		"--peer", "192.0.2.1:11625",
		"--peer", "192.0.2.2:11625",
		"--maxpeers", "10",
		"--io-timeout", "45s",
		"--log-level", "debug",
	}

	opts, exit, _ := parseFlags(args)
	if exit {
		t.Fatal("unexpected exit")
	}

	if opts.cfg.ListenAddr != ":12000" {
		t.Errorf("ListenAddr = %q, want :12000", opts.cfg.ListenAddr)
	}
	if len(opts.peers) != 2 {
		t.Fatalf("peers = %v, want 2 entries", opts.peers)
	}
	if opts.peers[0] != "192.0.2.1:11625" || opts.peers[1] != "192.0.2.2:11625" {
		t.Errorf("peers = %v", opts.peers)
	}
	if opts.cfg.MaxPeers != 10 {
		t.Errorf("MaxPeers = %d, want 10", opts.cfg.MaxPeers)
	}
	if opts.cfg.IOTimeout != 45*time.Second {
		t.Errorf("IOTimeout = %v, want 45s", opts.cfg.IOTimeout)
	}
	if opts.logLevel != "debug" {
		t.Errorf("logLevel = %q, want debug", opts.logLevel)
	}
}

func TestParseFlags_BadPeerAddress(t *testing.T) {
	_, exit, code := parseFlags([]string{"--peer", "no-port"})
	if !exit || code != 2 {
		t.Fatalf("exit = %v, code = %d, want exit with 2", exit, code)
	}
}

func TestParseFlags_InvalidValues(t *testing.T) {
	cases := [][]string{
		{"--maxpeers", "0"},
		{"--maxpeers", "-3"},
		{"--io-timeout", "0s"},
		{"--io-timeout", "-10s"},
	}
	for _, args := range cases {
		_, exit, code := parseFlags(args)
		if !exit || code != 2 {
			t.Errorf("args %v: exit = %v, code = %d, want exit with 2", args, exit, code)
		}
	}
}

func TestParseFlags_Version(t *testing.T) {
	_, exit, code := parseFlags([]string{"--version"})
	if !exit || code != 0 {
		t.Fatalf("exit = %v, code = %d, want clean exit", exit, code)
	}
}
