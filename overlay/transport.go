package overlay

import (
	"fmt"
	"net"
	"time"
)

// Conn is the bidirectional byte stream a Peer exclusively owns. It is the
// only surface the engine needs from the underlying network: exact-size
// reads are built with io.ReadFull, writes are expected to be all-or-error
// (as net.Conn guarantees), and Close aborts any outstanding I/O.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// Close shuts the stream down. Outstanding reads and writes complete
	// with an error after Close returns.
	Close() error
	// RemoteAddr returns the remote network address of the stream.
	RemoteAddr() string
}

// Dialer is the interface for establishing outbound connections to peers.
type Dialer interface {
	// Dial connects to the given address and returns a Conn.
	Dial(addr string) (Conn, error)
}

// Listener is the interface for accepting inbound connections from peers.
type Listener interface {
	// Accept blocks until an inbound connection arrives and returns a Conn.
	Accept() (Conn, error)
	// Close stops the listener.
	Close() error
	// Addr returns the listener's network address.
	Addr() net.Addr
}

// NetConn adapts a net.Conn to the Conn interface.
type NetConn struct {
	net.Conn
	remoteAddr string
}

// NewNetConn wraps an established net.Conn as a Conn.
func NewNetConn(c net.Conn) *NetConn {
	return &NetConn{Conn: c, remoteAddr: c.RemoteAddr().String()}
}

// RemoteAddr returns the remote network address.
func (c *NetConn) RemoteAddr() string {
	return c.remoteAddr
}

// TCPDialer dials TCP connections with an optional timeout.
type TCPDialer struct {
	// Timeout bounds the connection attempt. Zero means no timeout.
	Timeout time.Duration
}

// Dial connects to addr via TCP.
func (d *TCPDialer) Dial(addr string) (Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, d.Timeout)
	if err != nil {
		return nil, fmt.Errorf("overlay: dial error: %w", err)
	}
	return NewNetConn(conn), nil
}

// TCPListener wraps a net.Listener to accept connections as Conns.
type TCPListener struct {
	ln net.Listener
}

// NewTCPListener creates a TCPListener from a net.Listener.
func NewTCPListener(ln net.Listener) *TCPListener {
	return &TCPListener{ln: ln}
}

// Accept blocks until an inbound TCP connection arrives.
func (l *TCPListener) Accept() (Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewNetConn(conn), nil
}

// Close stops the listener.
func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// Addr returns the listener's network address.
func (l *TCPListener) Addr() net.Addr {
	return l.ln.Addr()
}
