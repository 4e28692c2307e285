package system

import (
	"crypto/ed25519"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/composability-codec/pkg/solana"
)

func TestProgramKey(t *testing.T) {
	assert.Equal(t, "11111111111111111111111111111111", base58.Encode(ProgramKey))
}

func TestCreateAccount(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)

	command := make([]byte, 4)
	lamports := make([]byte, 8)
	binary.LittleEndian.PutUint64(lamports, 12345)
	size := make([]byte, 8)
	binary.LittleEndian.PutUint64(size, 67890)

	assert.Equal(t, command, instruction.Data[0:4])
	assert.Equal(t, lamports, instruction.Data[4:12])
	assert.Equal(t, size, instruction.Data[12:20])
	assert.Equal(t, []byte(keys[2]), instruction.Data[20:52])

	require.Len(t, instruction.Accounts, 2)
	assert.True(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsSigner)
	assert.True(t, instruction.Accounts[1].IsWritable)

	decoded, err := DecodeCreateAccount(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decoded.Funder)
	assert.Equal(t, keys[1], decoded.Address)
	assert.Equal(t, keys[2], decoded.Owner)
	assert.EqualValues(t, 12345, decoded.Lamports)
	assert.EqualValues(t, 67890, decoded.Size)
}

func TestDecodeCreateAccount_Invalid(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)
	instruction.Accounts = instruction.Accounts[:1]
	_, err := DecodeCreateAccount(instruction)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid number of accounts"), err)

	instruction = CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)
	binary.LittleEndian.PutUint32(instruction.Data, commandTransfer)
	_, err = DecodeCreateAccount(instruction)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction.Data = make([]byte, 3)
	_, err = DecodeCreateAccount(instruction)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction = CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)
	instruction.Program = keys[0]
	_, err = DecodeCreateAccount(instruction)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}

func TestAssign(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Assign(keys[0], keys[1])
	assert.Equal(t, []byte{1, 0, 0, 0}, instruction.Data[0:4])

	decoded, err := DecodeAssign(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decoded.Account)
	assert.Equal(t, keys[1], decoded.Owner)

	_, err = DecodeTransfer(instruction)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Transfer(keys[0], keys[1], 42)
	assert.Equal(t, []byte{2, 0, 0, 0, 42, 0, 0, 0, 0, 0, 0, 0}, instruction.Data)

	require.Len(t, instruction.Accounts, 2)
	assert.True(t, instruction.Accounts[0].IsSigner)
	assert.False(t, instruction.Accounts[1].IsSigner)
	assert.True(t, instruction.Accounts[1].IsWritable)

	decoded, err := DecodeTransfer(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decoded.From)
	assert.Equal(t, keys[1], decoded.To)
	assert.EqualValues(t, 42, decoded.Lamports)

	instruction.Data = append(instruction.Data, 0)
	_, err = DecodeTransfer(instruction)
	assert.Error(t, err)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		keys[i] = pub
	}

	return keys
}
