// Command overlayd runs a standalone overlay node: it listens for inbound
// peer connections, dials any configured outbound peers and keeps the
// connection set alive.
//
// Usage:
//
//	overlayd [flags]
//
// Flags:
//
//	--listen      Listen address (default: :11625)
//	--peer        Outbound peer as host:port, repeatable
//	--maxpeers    Max peer connections (default: 25)
//	--io-timeout  Per-connection idle timeout (default: 30s)
//	--log-level   Log level: debug, info, warn, error (default: info)
//	--version     Print version and exit
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mcntech/stellar-core/log"
	"github.com/mcntech/stellar-core/overlay"
	"github.com/mcntech/stellar-core/wire"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// options holds the parsed CLI configuration.
type options struct {
	cfg      overlay.Config
	peers    peerList
	logLevel string
}

// peerList collects repeated --peer flags.
type peerList []string

func (l *peerList) String() string { return fmt.Sprint([]string(*l)) }

func (l *peerList) Set(v string) error {
	if _, _, err := net.SplitHostPort(v); err != nil {
		return fmt.Errorf("peer %q: %w", v, err)
	}
	*l = append(*l, v)
	return nil
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	opts, exit, code := parseFlags(args)
	if exit {
		return code
	}

	logger := log.New(log.LevelFromString(opts.logLevel).ToSlog())
	log.SetDefault(logger)
	l := logger.Module("main")

	l.Info("overlayd starting",
		"version", version,
		"listen", opts.cfg.ListenAddr,
		"max_peers", opts.cfg.MaxPeers,
		"io_timeout", opts.cfg.IOTimeout.String(),
		"outbound_peers", len(opts.peers))

	manager := overlay.NewManager(opts.cfg.MaxPeers)
	sink := overlay.NewDecodingSink(loggingHandler{log: logger.Module("overlay")})

	ln, err := net.Listen("tcp", opts.cfg.ListenAddr)
	if err != nil {
		l.Error("listen failed", "addr", opts.cfg.ListenAddr, "err", err)
		return 1
	}
	listener := overlay.NewTCPListener(ln)
	l.Info("listening", "addr", listener.Addr().String())

	go acceptLoop(listener, opts.cfg, manager, sink, l)

	dialer := &overlay.TCPDialer{Timeout: opts.cfg.DialTimeout}
	for _, addr := range opts.peers {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			l.Error("bad peer address", "addr", addr, "err", err)
			return 1
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			l.Error("bad peer port", "addr", addr, "err", err)
			return 1
		}
		p, err := overlay.Initiate(opts.cfg, dialer, host, uint16(port), manager, sink)
		if err != nil {
			l.Warn("outbound connect failed", "addr", addr, "err", err)
			continue
		}
		if err := manager.Add(p); err != nil {
			l.Warn("register peer failed", "addr", addr, "err", err)
			p.Drop()
		}
	}

	// Wait for SIGINT or SIGTERM to initiate graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	l.Info("shutting down", "signal", sig.String())

	listener.Close()
	manager.Close()

	l.Info("shutdown complete")
	return 0
}

// acceptLoop registers every inbound connection until the listener closes.
func acceptLoop(listener overlay.Listener, cfg overlay.Config, manager *overlay.Manager, sink overlay.Sink, l *log.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			l.Debug("accept loop exiting", "err", err)
			return
		}
		p := overlay.Accept(cfg, conn, manager, sink)
		if err := manager.Add(p); err != nil {
			l.Warn("rejecting inbound peer", "addr", conn.RemoteAddr(), "err", err)
			p.Drop()
		}
	}
}

// loggingHandler logs every decoded message. A full node would route them to
// the subsystems interested in each type.
type loggingHandler struct {
	log *log.Logger
}

func (h loggingHandler) HandleMessage(msg wire.Message) error {
	h.log.Debug("message received", "type", msg.Type.String(), "bytes", len(msg.Body))
	return nil
}

// parseFlags parses CLI arguments into options. Returns the options, whether
// the caller should exit immediately, and the exit code.
func parseFlags(args []string) (options, bool, int) {
	opts := options{cfg: overlay.DefaultConfig(), logLevel: "info"}
	applyEnvironment(&opts)

	fs := flag.NewFlagSet("overlayd", flag.ContinueOnError)
	fs.StringVar(&opts.cfg.ListenAddr, "listen", opts.cfg.ListenAddr, "listen address")
	fs.Var(&opts.peers, "peer", "outbound peer as host:port (repeatable)")
	fs.IntVar(&opts.cfg.MaxPeers, "maxpeers", opts.cfg.MaxPeers, "maximum number of peer connections")
	fs.DurationVar(&opts.cfg.IOTimeout, "io-timeout", opts.cfg.IOTimeout, "per-connection idle timeout")
	fs.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return opts, true, 2
	}

	if *showVersion {
		fmt.Printf("overlayd %s (commit %s)\n", version, commit)
		return opts, true, 0
	}

	if opts.cfg.MaxPeers <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --maxpeers must be positive")
		return opts, true, 2
	}
	if opts.cfg.IOTimeout <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --io-timeout must be positive")
		return opts, true, 2
	}

	return opts, false, 0
}
