package composability

import (
	"encoding/binary"
)

const (
	lengthPrefixSize  = 8
	flagSize          = 1
	accountRecordSize = WordSize + 2*flagSize
)

// Codec encodes and decodes instructions in the bridge wire format. The zero
// configuration uses big-endian length prefixes.
//
// A Codec holds no mutable state and is safe for concurrent use.
type Codec struct {
	order binary.ByteOrder
}

// Option configures a Codec.
type Option func(*Codec)

// WithByteOrder sets the byte order of the account count and data length
// prefixes. Word fields are never reordered.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(c *Codec) {
		if order != nil {
			c.order = order
		}
	}
}

// NewCodec returns a Codec with the provided options applied.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		order: binary.BigEndian,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCodec = NewCodec()

// ByteOrder returns the byte order used for length prefixes.
func (c *Codec) ByteOrder() binary.ByteOrder {
	return c.order
}

func (c *Codec) putWord(dst []byte, src [WordSize]byte, offset *int) {
	copy(dst[*offset:], src[:])
	*offset += WordSize
}

func (c *Codec) putUint64(dst []byte, v uint64, offset *int) {
	c.order.PutUint64(dst[*offset:], v)
	*offset += lengthPrefixSize
}

func (c *Codec) putFlag(dst []byte, v bool, offset *int) {
	if v {
		dst[*offset] = 1
	} else {
		dst[*offset] = 0
	}
	*offset += flagSize
}

func (c *Codec) getWord(src []byte, dst *[WordSize]byte, offset *int) {
	copy(dst[:], src[*offset:*offset+WordSize])
	*offset += WordSize
}

func (c *Codec) getUint64(src []byte, dst *uint64, offset *int) {
	*dst = c.order.Uint64(src[*offset:])
	*offset += lengthPrefixSize
}

func (c *Codec) getFlag(src []byte, dst *bool, offset *int) bool {
	switch src[*offset] {
	case 0:
		*dst = false
	case 1:
		*dst = true
	default:
		return false
	}
	*offset += flagSize
	return true
}
