package overlay

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mcntech/stellar-core/log"
	"github.com/mcntech/stellar-core/metrics"
)

// Role records which side opened the connection.
type Role int

const (
	// RoleInitiator means we dialed the remote peer.
	RoleInitiator Role = iota
	// RoleAcceptor means the remote peer dialed us.
	RoleAcceptor
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleAcceptor:
		return "acceptor"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// State is the connection lifecycle state.
type State int

const (
	// StateConnecting means the outbound connect is still in progress.
	StateConnecting State = iota
	// StateConnected means the stream is established and both pipelines run.
	StateConnected
	// StateClosing is terminal. Entering it is idempotent.
	StateClosing
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrPeerClosed is returned when sending on a peer that is closing.
	ErrPeerClosed = errors.New("overlay: peer closed")

	// ErrReadTimeout reports that no read progress was made within the
	// watchdog interval.
	ErrReadTimeout = errors.New("overlay: read timeout")

	// ErrWriteTimeout reports that no write progress was made within the
	// watchdog interval.
	ErrWriteTimeout = errors.New("overlay: write timeout")
)

// Peer owns exactly one byte-stream connection to a single remote peer and
// turns it into a sequence of framed messages in both directions.
//
// Inbound frames are dispatched to the Sink in exact receive order; outbound
// frames are transmitted in exact enqueue order with a single write in
// flight. Every fatal condition (I/O error, framing error, decode fault,
// watchdog timeout, external drop request) converges on Drop, which tears
// the connection down exactly once.
type Peer struct {
	role     Role
	cfg      Config
	conn     Conn
	registry Registry
	sink     Sink
	queue    *writeQueue
	watchdog *idleWatchdog
	meters   *peerMeters
	log      *log.Logger

	mu            sync.Mutex
	state         State
	lastRead      time.Time
	lastWrite     time.Time
	authenticated bool
	remotePort    uint16
	closeReason   error
}

// Initiate dials the remote peer at host:port and returns a connected Peer
// in the Initiator role. A failed connect is surfaced to the caller; nothing
// is registered and no pipelines start. On success the peer is Connected,
// the watchdog is armed and the read pipeline is running.
func Initiate(cfg Config, d Dialer, host string, port uint16, registry Registry, sink Sink) (*Peer, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	metrics.ConnectAttempts.Inc()
	conn, err := d.Dial(addr)
	if err != nil {
		metrics.ConnectFailures.Inc()
		return nil, fmt.Errorf("overlay: connect to %s: %w", addr, err)
	}
	p := newPeer(cfg, RoleInitiator, conn, registry, sink)
	p.remotePort = port
	p.log.Debug("initiated connection", "addr", addr)
	p.start()
	return p, nil
}

// Accept wraps an already-connected inbound stream as a Peer in the Acceptor
// role. The peer is immediately Connected, the watchdog armed and the read
// pipeline running.
func Accept(cfg Config, conn Conn, registry Registry, sink Sink) *Peer {
	metrics.AcceptedConns.Inc()
	p := newPeer(cfg, RoleAcceptor, conn, registry, sink)
	p.log.Debug("accepted connection", "addr", conn.RemoteAddr())
	p.start()
	return p
}

func newPeer(cfg Config, role Role, conn Conn, registry Registry, sink Sink) *Peer {
	cfg = cfg.withDefaults()
	now := time.Now()
	p := &Peer{
		role:      role,
		cfg:       cfg,
		conn:      conn,
		registry:  registry,
		sink:      sink,
		watchdog:  newIdleWatchdog(cfg.IOTimeout),
		meters:    newPeerMeters(metrics.DefaultRegistry),
		log:       log.Default().Module("overlay").With("peer", conn.RemoteAddr(), "role", role.String()),
		state:     StateConnecting,
		lastRead:  now,
		lastWrite: now,
	}
	p.queue = newWriteQueue(conn, p.touchWrite, p.writeDone, p.writeFailed)
	return p
}

// start transitions to Connected, arms the watchdog and starts the read
// pipeline.
func (p *Peer) start() {
	p.mu.Lock()
	p.state = StateConnected
	p.mu.Unlock()
	p.watchdog.arm(p.idleTick)
	go p.readLoop()
}

// Role returns which side opened the connection.
func (p *Peer) Role() Role { return p.role }

// State returns the current lifecycle state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// RemoteAddr returns the remote network address of the stream.
func (p *Peer) RemoteAddr() string { return p.conn.RemoteAddr() }

// RemoteListeningPort returns the port the remote peer listens on. For an
// acceptor this is learned from the remote's hello, not the ephemeral source
// port, and is zero until SetRemoteListeningPort is called.
func (p *Peer) RemoteListeningPort() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remotePort
}

// SetRemoteListeningPort records the listening port learned from the remote.
func (p *Peer) SetRemoteListeningPort(port uint16) {
	p.mu.Lock()
	p.remotePort = port
	p.mu.Unlock()
}

// Authenticated reports whether the handshake has completed, selecting the
// schema inbound payloads are decoded with.
func (p *Peer) Authenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authenticated
}

// SetAuthenticated marks the handshake as completed. Subsequent inbound
// frames are delivered with the authenticated flag set.
func (p *Peer) SetAuthenticated() {
	p.mu.Lock()
	p.authenticated = true
	p.mu.Unlock()
}

// LastRead returns the time of the most recent read activity.
func (p *Peer) LastRead() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRead
}

// LastWrite returns the time of the most recent write activity.
func (p *Peer) LastWrite() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastWrite
}

// CloseReason returns the error that triggered teardown, or nil if the peer
// is still live or was dropped on request.
func (p *Peer) CloseReason() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeReason
}

// String identifies the peer in logs.
func (p *Peer) String() string {
	return p.conn.RemoteAddr() + "#" + p.role.String()
}

// SendMessage frames payload and appends it to the outbound queue. Frames
// are transmitted strictly in enqueue order. Returns ErrPeerClosed once
// teardown has begun and ErrFrameTooLarge for oversized payloads.
func (p *Peer) SendMessage(payload []byte) error {
	if p.State() == StateClosing {
		return ErrPeerClosed
	}
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	if err := p.queue.enqueue(frame); err != nil {
		return ErrPeerClosed
	}
	return nil
}

// Drop tears the connection down: the watchdog is cancelled, the registry
// notified, the stream force-closed (aborting any outstanding I/O) and the
// outbound queue discarded. Drop is idempotent; every fatal path converges
// here and only the first trigger has any effect.
func (p *Peer) Drop() {
	p.drop(nil)
}

func (p *Peer) drop(reason error) {
	p.mu.Lock()
	if p.state == StateClosing {
		p.mu.Unlock()
		return
	}
	p.state = StateClosing
	p.closeReason = reason
	state := p.state
	p.mu.Unlock()

	p.log.Debug("dropping peer", "state", state.String(), "reason", reason)

	p.watchdog.stop()

	if p.registry != nil {
		p.registry.OnDrop(p)
	}

	// Force-close the stream. Outstanding reads and writes complete with an
	// error; their completions observe StateClosing and take no action.
	// Close errors during teardown are never treated as a new failure.
	if err := p.conn.Close(); err != nil {
		p.log.Error("close stream failed", "err", err)
	}

	p.queue.close()
}

// touchRead stamps read activity for the watchdog.
func (p *Peer) touchRead() {
	p.mu.Lock()
	p.lastRead = time.Now()
	p.mu.Unlock()
}

// touchWrite stamps write activity for the watchdog. Runs just before each
// queued write is issued.
func (p *Peer) touchWrite() {
	p.mu.Lock()
	p.lastWrite = time.Now()
	p.mu.Unlock()
}

// writeDone records a completed outbound frame.
func (p *Peer) writeDone(n int) {
	p.meters.messageWrite.Mark(1)
	p.meters.byteWrite.Mark(int64(n))
}

// writeFailed handles a failed outbound write. Errors during shutdown are
// expected and not counted.
func (p *Peer) writeFailed(err error) {
	if p.State() == StateConnected {
		p.meters.errorWrite.Mark(1)
		p.log.Error("write failed", "err", err)
	}
	p.drop(err)
}

// readLoop is the read pipeline: header, body, dispatch, repeat. It is the
// single reader of the stream, so reads never overlap. It exits when the
// peer enters StateClosing (a closed stream fails the pending read).
func (p *Peer) readLoop() {
	var header [frameHeaderSize]byte
	for {
		if p.State() == StateClosing {
			return
		}
		p.touchRead()

		if _, err := io.ReadFull(p.conn, header[:]); err != nil {
			p.readFailed("read header", err)
			return
		}
		p.meters.byteRead.Mark(frameHeaderSize)

		length, err := DecodeFrameHeader(header)
		if err != nil {
			// Reject before any body-sized allocation or read is issued.
			p.meters.errorRead.Mark(1)
			p.log.Error("unacceptable frame length", "err", err)
			p.drop(err)
			return
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(p.conn, body); err != nil {
			p.readFailed("read body", err)
			return
		}
		p.meters.byteRead.Mark(int64(length))
		p.meters.messageRead.Mark(1)

		timer := metrics.NewTimer(metrics.DispatchTime)
		err = p.sink.Deliver(body, p.Authenticated())
		timer.Stop()
		if err != nil {
			p.log.Error("corrupt payload", "err", err)
			p.drop(err)
			return
		}
	}
}

// readFailed handles a failed read. Errors during shutdown or connect are
// expected and not counted.
func (p *Peer) readFailed(op string, err error) {
	if p.State() == StateConnected {
		p.meters.errorRead.Mark(1)
		p.log.Debug(op+" failed", "err", err)
	}
	p.drop(err)
}

// idleTick runs once per watchdog interval. Read and write liveness are
// judged independently so a connection carrying traffic in only one
// direction is not falsely considered dead. A half-open socket may take up
// to one extra interval to be detected, since the check fires once per
// period.
func (p *Peer) idleTick() {
	p.mu.Lock()
	if p.state != StateConnected {
		p.mu.Unlock()
		return
	}
	lastRead, lastWrite := p.lastRead, p.lastWrite
	p.mu.Unlock()

	now := time.Now()
	switch {
	case now.Sub(lastRead) > p.cfg.IOTimeout:
		p.meters.timeoutRead.Mark(1)
		p.log.Warn("read timeout")
		p.drop(ErrReadTimeout)
	case now.Sub(lastWrite) > p.cfg.IOTimeout:
		p.meters.timeoutWrite.Mark(1)
		p.log.Warn("write timeout")
		p.drop(ErrWriteTimeout)
	default:
		p.watchdog.arm(p.idleTick)
	}
}
