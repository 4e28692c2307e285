package composability

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	// WordSize is the width of a PublicKeyWord and a Salt.
	WordSize = 32

	// NullAddress is the text form of the all-zero word, which is the System
	// program id. It represents "no delegate" or a revoked approval.
	NullAddress = "11111111111111111111111111111111"
)

// PublicKeyWord is a Solana public key held as the fixed 32 byte word passed
// to the bridge contract.
type PublicKeyWord [WordSize]byte

// Salt is a caller-chosen nonce scoping a derived resource address. The zero
// value is the default salt.
type Salt [WordSize]byte

// EncodeAddress decodes a base-58 address and left-pads it to a 32 byte word.
func EncodeAddress(text string) (PublicKeyWord, error) {
	var word PublicKeyWord

	if len(text) == 0 {
		return word, errors.Wrap(ErrInvalidAddress, "empty address")
	}

	raw, err := base58.Decode(text)
	if err != nil {
		return word, errors.Wrapf(ErrInvalidAddress, "%q is not base-58: %v", text, err)
	}
	if len(raw) > WordSize {
		return word, errors.Wrapf(ErrInvalidAddress, "%q decodes to %d bytes", text, len(raw))
	}

	copy(word[WordSize-len(raw):], raw)
	return word, nil
}

// MustEncodeAddress is EncodeAddress for compile-time constants. It panics on
// invalid input.
func MustEncodeAddress(text string) PublicKeyWord {
	word, err := EncodeAddress(text)
	if err != nil {
		panic(err)
	}
	return word
}

// DecodeAddress returns the base-58 text form of a word. The all-zero word
// yields NullAddress.
func DecodeAddress(word PublicKeyWord) string {
	return base58.Encode(word[:])
}

// WordFromPublicKey converts an ed25519 public key into a word.
func WordFromPublicKey(pub ed25519.PublicKey) (PublicKeyWord, error) {
	var word PublicKeyWord
	if len(pub) != ed25519.PublicKeySize {
		return word, errors.Wrapf(ErrInvalidAddress, "public key has %d bytes", len(pub))
	}

	copy(word[:], pub)
	return word, nil
}

// WordFromEVMAddress left-pads a 20 byte EVM address into a word, the same way
// the ABI encodes an address argument.
func WordFromEVMAddress(addr common.Address) PublicKeyWord {
	var word PublicKeyWord
	copy(word[WordSize-common.AddressLength:], addr.Bytes())
	return word
}

func (w PublicKeyWord) String() string {
	return DecodeAddress(w)
}

// IsNull reports whether w is the all-zero word.
func (w PublicKeyWord) IsNull() bool {
	return w == PublicKeyWord{}
}

// PublicKey returns a copy of w as an ed25519 public key.
func (w PublicKeyWord) PublicKey() ed25519.PublicKey {
	pub := make(ed25519.PublicKey, WordSize)
	copy(pub, w[:])
	return pub
}

// Equal reports whether w and other hold the same bytes.
func (w PublicKeyWord) Equal(other PublicKeyWord) bool {
	return bytes.Equal(w[:], other[:])
}

// SaltFromBytes left-pads b into a salt. Inputs longer than 32 bytes are
// rejected.
func SaltFromBytes(b []byte) (Salt, error) {
	var salt Salt
	if len(b) > WordSize {
		return salt, errors.Errorf("salt has %d bytes, maximum is %d", len(b), WordSize)
	}

	copy(salt[WordSize-len(b):], b)
	return salt, nil
}

// SaltFromHex parses an optionally 0x-prefixed hex string into a salt.
func SaltFromHex(s string) (Salt, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return Salt{}, errors.Wrap(err, "invalid hex salt")
	}
	return SaltFromBytes(raw)
}

// IsZero reports whether s is the default salt.
func (s Salt) IsZero() bool {
	return s == Salt{}
}

func (s Salt) String() string {
	return "0x" + hex.EncodeToString(s[:])
}
