package bridge

import (
	"github.com/pkg/errors"

	"github.com/code-payments/composability-codec/pkg/composability"
)

var (
	// ErrExecutionReverted indicates the bridge transaction was mined with a
	// failed status.
	ErrExecutionReverted = errors.New("bridge execution reverted")

	// ErrUnexpectedLogCount indicates the receipt did not carry one LogData
	// event per submitted instruction.
	ErrUnexpectedLogCount = errors.New("unexpected number of LogData events")

	ErrNotLogData   = errors.New("log is not a LogData event")
	ErrEmptyBatch   = errors.New("batch contains no instructions")
	ErrNoPrivateKey = errors.New("client has no signing key")

	ErrBatchLengthMismatch = composability.ErrBatchLengthMismatch

	errConfirmationsNotReached = errors.New("confirmations not reached")
)
