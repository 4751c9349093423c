package overlay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mcntech/stellar-core/auth"
	"github.com/mcntech/stellar-core/wire"
)

// Sink receives the body bytes of every inbound frame. The authenticated
// flag selects the schema: the authenticated envelope once the handshake has
// completed, the plain schema before. A non-nil error reports a decode fault
// and is fatal to the connection.
type Sink interface {
	Deliver(payload []byte, authenticated bool) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(payload []byte, authenticated bool) error

// Deliver calls f.
func (f SinkFunc) Deliver(payload []byte, authenticated bool) error {
	return f(payload, authenticated)
}

// ErrNoAuthSession is returned when an authenticated frame arrives before a
// MAC session has been installed.
var ErrNoAuthSession = errors.New("overlay: no auth session installed")

// Handler consumes fully decoded wire messages.
type Handler interface {
	HandleMessage(msg wire.Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(msg wire.Message) error

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(msg wire.Message) error {
	return f(msg)
}

// DecodingSink is the standard Sink: it decodes each payload according to
// the authentication state and forwards the inner message to a Handler.
// Authenticated envelopes are verified (sequence and MAC) against the
// session installed by the handshake layer.
type DecodingSink struct {
	handler Handler

	mu      sync.Mutex
	session *auth.Session
}

// NewDecodingSink creates a DecodingSink forwarding to handler.
func NewDecodingSink(handler Handler) *DecodingSink {
	return &DecodingSink{handler: handler}
}

// SetSession installs the MAC session derived during the handshake. It must
// be called before the peer is marked authenticated.
func (s *DecodingSink) SetSession(session *auth.Session) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
}

// Deliver decodes payload and forwards the message. Any decode or
// verification failure is returned and dooms the connection.
func (s *DecodingSink) Deliver(payload []byte, authenticated bool) error {
	if !authenticated {
		msg, err := wire.DecodeMessage(payload)
		if err != nil {
			return fmt.Errorf("overlay: decode message: %w", err)
		}
		return s.handler.HandleMessage(msg)
	}

	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return ErrNoAuthSession
	}

	am, err := wire.DecodeAuthenticated(payload)
	if err != nil {
		return fmt.Errorf("overlay: decode authenticated envelope: %w", err)
	}
	if err := session.Verify(am); err != nil {
		return fmt.Errorf("overlay: verify envelope: %w", err)
	}
	return s.handler.HandleMessage(am.Message)
}
