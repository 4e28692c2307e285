package composability

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/composability-codec/pkg/solana"
)

var (
	ErrInvalidAddress       = errors.New("invalid address")
	ErrTruncatedInput       = errors.New("truncated input")
	ErrMalformedInstruction = errors.New("malformed instruction")
	ErrBatchLengthMismatch  = errors.New("batch length mismatch")

	ErrDerivationExhausted   = solana.ErrDerivationExhausted
	ErrMaxSeedLengthExceeded = solana.ErrMaxSeedLengthExceeded
	ErrTooManySeeds          = solana.ErrTooManySeeds
	ErrIllegalOwner          = solana.ErrIllegalOwner
)

// TruncatedInputError reports a buffer that ended before the named field could
// be read. Index is the account index for per-account fields and -1 otherwise.
type TruncatedInputError struct {
	Field    string
	Index    int
	Expected uint64
	Actual   int
}

func (e *TruncatedInputError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: %s of account %d requires %d bytes, %d remaining", ErrTruncatedInput, e.Field, e.Index, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: %s requires %d bytes, %d remaining", ErrTruncatedInput, e.Field, e.Expected, e.Actual)
}

func (e *TruncatedInputError) Is(target error) bool {
	return target == ErrTruncatedInput
}

// MalformedInstructionError reports a structurally invalid field. Index is the
// account index for per-account fields and -1 otherwise.
type MalformedInstructionError struct {
	Field  string
	Index  int
	Reason string
}

func (e *MalformedInstructionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: %s of account %d: %s", ErrMalformedInstruction, e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedInstruction, e.Field, e.Reason)
}

func (e *MalformedInstructionError) Is(target error) bool {
	return target == ErrMalformedInstruction
}

// BatchLengthMismatchError reports batch inputs whose lengths differ.
type BatchLengthMismatchError struct {
	Instructions int
	Lamports     int
	Salts        int
}

func (e *BatchLengthMismatchError) Error() string {
	return fmt.Sprintf("%s: %d instructions, %d lamport amounts, %d salts", ErrBatchLengthMismatch, e.Instructions, e.Lamports, e.Salts)
}

func (e *BatchLengthMismatchError) Is(target error) bool {
	return target == ErrBatchLengthMismatch
}

// CheckBatchLengths returns a *BatchLengthMismatchError unless all three
// lengths are equal.
func CheckBatchLengths(instructions, lamports, salts int) error {
	if instructions == lamports && lamports == salts {
		return nil
	}

	return &BatchLengthMismatchError{
		Instructions: instructions,
		Lamports:     lamports,
		Salts:        salts,
	}
}

func truncated(field string, index int, expected uint64, actual int) error {
	return &TruncatedInputError{
		Field:    field,
		Index:    index,
		Expected: expected,
		Actual:   actual,
	}
}

func malformed(field string, index int, reason string) error {
	return &MalformedInstructionError{
		Field:  field,
		Index:  index,
		Reason: reason,
	}
}
