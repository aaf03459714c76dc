// Package address defines the 20-byte participant identifiers used by the
// custody pool and the asset ledger.
//
// Addresses are rendered as lower-case 0x-prefixed hex. They are derived
// from a public key (or, for development fixtures, an arbitrary seed string)
// by taking the last 20 bytes of its Keccak-256 digest.
package address

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Length is the byte length of an Address.
const Length = 20

// ErrInvalidAddress is returned by Parse for malformed input.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies a participant or a custody account.
type Address [Length]byte

// Zero is the all-zero address. It never identifies a real participant.
var Zero Address

// Parse decodes a 0x-prefixed (or bare) 40-character hex string.
func Parse(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*Length {
		return a, fmt.Errorf("%w: want %d hex characters, got %d", ErrInvalidAddress, 2*Length, len(s))
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return a, nil
}

// MustParse is like Parse but panics on error. Intended for tests and fixtures.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromPublicKey derives an address from an uncompressed public key.
func FromPublicKey(pub []byte) Address {
	return fromDigest(keccak256(pub))
}

// FromSeed derives a deterministic address from an arbitrary string.
// Used for the pool's own custody address and for development accounts.
func FromSeed(seed string) Address {
	return fromDigest(keccak256([]byte(seed)))
}

func fromDigest(d []byte) Address {
	var a Address
	copy(a[:], d[len(d)-Length:])
	return a
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// Hex returns the lower-case 0x-prefixed encoding.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == Zero }

// Compare orders addresses bytewise.
func (a Address) Compare(b Address) int { return bytes.Compare(a[:], b[:]) }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
