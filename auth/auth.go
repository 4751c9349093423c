// Package auth provides the per-peer MAC session behind the authenticated
// message envelope. Both sides derive directional HMAC keys from a
// curve25519 shared secret; every envelope is sequenced and MACed so a
// tampered or replayed message fails verification and dooms the connection.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/mcntech/stellar-core/wire"
)

// KeySize is the size of curve25519 keys and derived MAC keys.
const KeySize = 32

var (
	// ErrBadMAC is returned when an envelope's MAC does not verify.
	ErrBadMAC = errors.New("auth: MAC verification failed")

	// ErrBadSequence is returned when an envelope arrives out of order.
	ErrBadSequence = errors.New("auth: unexpected sequence number")
)

// Keypair is a curve25519 key pair used for the session key agreement.
type Keypair struct {
	Private [KeySize]byte
	Public  [KeySize]byte
}

// GenerateKeypair creates a fresh curve25519 key pair.
func GenerateKeypair() (*Keypair, error) {
	var kp Keypair
	if _, err := io.ReadFull(rand.Reader, kp.Private[:]); err != nil {
		return nil, fmt.Errorf("auth: generate key: %w", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("auth: derive public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return &kp, nil
}

// hkdf info strings select the two directional keys. The initiator sends
// with the "initiator" key and receives with the "acceptor" key; the
// acceptor does the opposite.
var (
	infoInitiator = []byte("overlay-mac-initiator")
	infoAcceptor  = []byte("overlay-mac-acceptor")
)

// Session holds the directional MAC keys and sequence counters for one
// connection. Seal and Verify are safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	sendKey [KeySize]byte
	recvKey [KeySize]byte
	sendSeq uint64
	recvSeq uint64
}

// NewSession derives a MAC session from our key pair and the remote public
// key. Both sides compute the same shared secret; the initiator flag splits
// it into distinct send and receive keys per direction.
func NewSession(local *Keypair, remotePublic [KeySize]byte, initiator bool) (*Session, error) {
	shared, err := curve25519.X25519(local.Private[:], remotePublic[:])
	if err != nil {
		return nil, fmt.Errorf("auth: key agreement: %w", err)
	}

	s := &Session{}
	if initiator {
		if err := deriveKey(shared, infoInitiator, s.sendKey[:]); err != nil {
			return nil, err
		}
		if err := deriveKey(shared, infoAcceptor, s.recvKey[:]); err != nil {
			return nil, err
		}
	} else {
		if err := deriveKey(shared, infoAcceptor, s.sendKey[:]); err != nil {
			return nil, err
		}
		if err := deriveKey(shared, infoInitiator, s.recvKey[:]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func deriveKey(secret, info, out []byte) error {
	r := hkdf.New(sha256.New, secret, nil, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return fmt.Errorf("auth: derive MAC key: %w", err)
	}
	return nil
}

// Seal wraps msg in an authenticated envelope, assigning the next send
// sequence number and computing the MAC.
func (s *Session) Seal(msg wire.Message) (wire.AuthenticatedMessage, error) {
	s.mu.Lock()
	seq := s.sendSeq
	s.sendSeq++
	s.mu.Unlock()

	mac, err := computeMAC(s.sendKey[:], seq, msg)
	if err != nil {
		return wire.AuthenticatedMessage{}, err
	}
	return wire.AuthenticatedMessage{
		Sequence: seq,
		Message:  msg,
		MAC:      mac,
	}, nil
}

// Verify checks an inbound envelope: the sequence number must be exactly the
// next one expected and the MAC must match. On success the expected sequence
// advances.
func (s *Session) Verify(am wire.AuthenticatedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if am.Sequence != s.recvSeq {
		return fmt.Errorf("%w: got %d, want %d", ErrBadSequence, am.Sequence, s.recvSeq)
	}
	mac, err := computeMAC(s.recvKey[:], am.Sequence, am.Message)
	if err != nil {
		return err
	}
	if !hmac.Equal(mac, am.MAC) {
		return ErrBadMAC
	}
	s.recvSeq++
	return nil
}

// computeMAC is HMAC-SHA256 over the big-endian sequence number followed by
// the canonical encoding of the inner message.
func computeMAC(key []byte, seq uint64, msg wire.Message) ([]byte, error) {
	encoded, err := wire.EncodeMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("auth: encode message for MAC: %w", err)
	}
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)

	h := hmac.New(sha256.New, key)
	h.Write(seqBuf[:])
	h.Write(encoded)
	return h.Sum(nil), nil
}
