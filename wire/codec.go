package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for overlay messages. Canonical encoding
// keeps the byte representation deterministic, which the MAC computation
// depends on.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for overlay messages. Decoding is strict:
// frames come from untrusted peers and anything malformed is fatal to the
// connection.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: decoder mode: %v", err))
	}
}

// Marshal encodes a value to canonical CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeMessage encodes a plain message.
func EncodeMessage(msg Message) ([]byte, error) {
	return Marshal(msg)
}

// DecodeMessage decodes a plain message.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("wire: decode message: %w", err)
	}
	return msg, nil
}

// EncodeAuthenticated encodes an authenticated envelope.
func EncodeAuthenticated(am AuthenticatedMessage) ([]byte, error) {
	return Marshal(am)
}

// DecodeAuthenticated decodes an authenticated envelope.
func DecodeAuthenticated(data []byte) (AuthenticatedMessage, error) {
	var am AuthenticatedMessage
	if err := Unmarshal(data, &am); err != nil {
		return AuthenticatedMessage{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	return am, nil
}
