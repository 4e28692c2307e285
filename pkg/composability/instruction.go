package composability

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// Instruction is the canonical form of a Solana instruction before it is
// encoded for the bridge. Account order matches the program's expected
// account layout and is preserved by every codec operation.
type Instruction struct {
	ProgramID PublicKeyWord
	Accounts  []AccountMeta
	Data      []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(programID PublicKeyWord, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		ProgramID: programID,
		Accounts:  accounts,
		Data:      data,
	}
}

// Marshal encodes the instruction with the default codec.
func (i Instruction) Marshal() []byte {
	return defaultCodec.Encode(i)
}

// Unmarshal decodes b into the instruction with the default codec.
func (i *Instruction) Unmarshal(b []byte) error {
	decoded, err := defaultCodec.Decode(b)
	if err != nil {
		return err
	}

	*i = decoded
	return nil
}

// Size returns the encoded length of the instruction.
func (i Instruction) Size() int {
	return WordSize + accountsSize(len(i.Accounts)) + lengthPrefixSize + len(i.Data)
}

// Equal reports whether i and other encode to the same bytes. Nil and empty
// account lists or data are equal.
func (i Instruction) Equal(other Instruction) bool {
	if i.ProgramID != other.ProgramID {
		return false
	}
	if len(i.Accounts) != len(other.Accounts) {
		return false
	}
	for idx := range i.Accounts {
		if i.Accounts[idx] != other.Accounts[idx] {
			return false
		}
	}
	return bytes.Equal(i.Data, other.Data)
}

func (i Instruction) String() string {
	return fmt.Sprintf("Instruction{program=%s, accounts=%d, data=%d bytes}", i.ProgramID, len(i.Accounts), len(i.Data))
}

// EncodeInstruction encodes the instruction parts with the default codec.
func EncodeInstruction(programID PublicKeyWord, accounts []AccountMeta, data []byte) []byte {
	return defaultCodec.EncodeInstruction(programID, accounts, data)
}

// DecodeInstruction decodes an encoded instruction with the default codec.
func DecodeInstruction(b []byte) (Instruction, error) {
	return defaultCodec.Decode(b)
}

// EncodeInstruction returns program_id || accounts || data_len || data. The
// data is copied verbatim.
func (c *Codec) EncodeInstruction(programID PublicKeyWord, accounts []AccountMeta, data []byte) []byte {
	b := make([]byte, WordSize+accountsSize(len(accounts))+lengthPrefixSize+len(data))

	var offset int
	c.putWord(b, programID, &offset)
	c.putAccounts(b, accounts, &offset)
	c.putUint64(b, uint64(len(data)), &offset)
	copy(b[offset:], data)

	return b
}

// Encode encodes i.
func (c *Codec) Encode(i Instruction) []byte {
	return c.EncodeInstruction(i.ProgramID, i.Accounts, i.Data)
}

// Decode inverts Encode. Every length prefix is checked against the remaining
// buffer and the buffer must be consumed exactly.
func (c *Codec) Decode(b []byte) (Instruction, error) {
	var i Instruction
	var offset int

	if len(b) < WordSize {
		return Instruction{}, truncated("program_id", -1, WordSize, len(b))
	}
	var programID [WordSize]byte
	c.getWord(b, &programID, &offset)
	i.ProgramID = programID

	accounts, err := c.getAccounts(b, &offset)
	if err != nil {
		return Instruction{}, err
	}
	i.Accounts = accounts

	if remaining := len(b) - offset; remaining < lengthPrefixSize {
		return Instruction{}, truncated("data_len", -1, lengthPrefixSize, remaining)
	}
	var dataLen uint64
	c.getUint64(b, &dataLen, &offset)

	remaining := len(b) - offset
	if dataLen > uint64(remaining) {
		return Instruction{}, truncated("data", -1, dataLen, remaining)
	}
	if dataLen < uint64(remaining) {
		return Instruction{}, malformed("data", -1, fmt.Sprintf("%d trailing bytes after data", uint64(remaining)-dataLen))
	}

	if dataLen > 0 {
		i.Data = make([]byte, dataLen)
		copy(i.Data, b[offset:])
	}

	return i, nil
}

// DecodeBatch decodes each encoded instruction, reporting the failing batch
// position.
func (c *Codec) DecodeBatch(encoded [][]byte) ([]Instruction, error) {
	instructions := make([]Instruction, len(encoded))
	for idx, b := range encoded {
		ix, err := c.Decode(b)
		if err != nil {
			return nil, errors.Wrapf(err, "instruction %d", idx)
		}
		instructions[idx] = ix
	}
	return instructions, nil
}

// EncodeBatch encodes each instruction in order.
func (c *Codec) EncodeBatch(instructions []Instruction) [][]byte {
	encoded := make([][]byte, len(instructions))
	for idx, ix := range instructions {
		encoded[idx] = c.Encode(ix)
	}
	return encoded
}
