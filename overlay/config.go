package overlay

import "time"

// Config holds the tunable parameters of the overlay connection engine.
type Config struct {
	// IOTimeout is the idle watchdog interval. A connection with no read
	// progress (or no write progress) for longer than this is dropped.
	IOTimeout time.Duration

	// DialTimeout bounds outbound connection attempts.
	DialTimeout time.Duration

	// MaxPeers is the maximum number of connections the Manager tracks.
	MaxPeers int

	// ListenAddr is the TCP address to listen on (e.g. ":11625").
	ListenAddr string
}

// DefaultConfig returns the standard production configuration.
func DefaultConfig() Config {
	return Config{
		IOTimeout:   30 * time.Second,
		DialTimeout: 10 * time.Second,
		MaxPeers:    25,
		ListenAddr:  ":11625",
	}
}

// withDefaults fills in zero fields so a partially populated Config is safe
// to use.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IOTimeout <= 0 {
		c.IOTimeout = def.IOTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.MaxPeers <= 0 {
		c.MaxPeers = def.MaxPeers
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	return c
}
