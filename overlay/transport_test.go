package overlay

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"
)

func TestNetConn_RemoteAddr(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewNetConn(server)
	if c.RemoteAddr() != server.RemoteAddr().String() {
		t.Fatalf("RemoteAddr = %q, want %q", c.RemoteAddr(), server.RemoteAddr().String())
	}
}

func TestTCPDialer_DialAndExchange(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	d := &TCPDialer{Timeout: 5 * time.Second}
	conn, err := d.Dial(ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	server := <-accepted
	defer server.Close()

	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf, []byte("ping")) {
		t.Fatalf("read %q, want 'ping'", buf)
	}
}

func TestTCPDialer_Refused(t *testing.T) {
	// Grab a port, close the listener, then dial the now-dead address.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	d := &TCPDialer{Timeout: time.Second}
	if _, err := d.Dial(addr); err == nil {
		t.Fatal("dial to closed port succeeded")
	}
}

func TestTCPListener_AcceptAndClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	l := NewTCPListener(ln)

	if l.Addr().String() != ln.Addr().String() {
		t.Fatalf("Addr = %v, want %v", l.Addr(), ln.Addr())
	}

	done := make(chan error, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			done <- err
			return
		}
		conn.Close()
		done <- nil
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client.Close()

	if err := <-done; err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := l.Accept(); err == nil {
		t.Fatal("accept on closed listener succeeded")
	}
}

var (
	_ Conn     = (*NetConn)(nil)
	_ Dialer   = (*TCPDialer)(nil)
	_ Listener = (*TCPListener)(nil)
)
