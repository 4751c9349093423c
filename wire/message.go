// Package wire defines the overlay message schemas and their CBOR encoding.
//
// Two mutually exclusive schemas exist on the wire. Before the peer
// handshake completes, frames carry a bare Message. Afterwards every frame
// carries an AuthenticatedMessage: a monotonically sequenced envelope whose
// MAC binds the inner message to the session keys both sides derived.
package wire

import "fmt"

// MessageType identifies what a Message carries.
type MessageType uint32

// Overlay message types.
const (
	TypeError       MessageType = 0
	TypeHello       MessageType = 1
	TypeAuth        MessageType = 2
	TypeGetPeers    MessageType = 3
	TypePeers       MessageType = 4
	TypeTransaction MessageType = 5
)

// String returns a human-readable message type name.
func (t MessageType) String() string {
	switch t {
	case TypeError:
		return "error"
	case TypeHello:
		return "hello"
	case TypeAuth:
		return "auth"
	case TypeGetPeers:
		return "get_peers"
	case TypePeers:
		return "peers"
	case TypeTransaction:
		return "transaction"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Message is the plain overlay message, used before authentication.
//
// CBOR encoding (integer keys, canonical ordering):
//
//	{
//	  1: type,   // uint32
//	  2: body    // type-specific bytes
//	}
type Message struct {
	Type MessageType `cbor:"1,keyasint"`
	Body []byte      `cbor:"2,keyasint,omitempty"`
}

// AuthenticatedMessage is the post-handshake envelope. The sequence number
// increases by one per message per direction; the MAC is an HMAC-SHA256 over
// the sequence and the canonical encoding of the inner message.
//
// CBOR encoding:
//
//	{
//	  1: sequence,  // uint64
//	  2: message,   // inner Message
//	  3: mac        // 32 bytes
//	}
type AuthenticatedMessage struct {
	Sequence uint64  `cbor:"1,keyasint"`
	Message  Message `cbor:"2,keyasint"`
	MAC      []byte  `cbor:"3,keyasint"`
}
