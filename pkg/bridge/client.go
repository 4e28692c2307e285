package bridge

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/composability-codec/pkg/cache"
	"github.com/code-payments/composability-codec/pkg/composability"
	"github.com/code-payments/composability-codec/pkg/metrics"
	"github.com/code-payments/composability-codec/pkg/rate"
	"github.com/code-payments/composability-codec/pkg/retry"
	"github.com/code-payments/composability-codec/pkg/retry/backoff"
	"github.com/code-payments/composability-codec/pkg/sync"
)

const (
	metricsStructName = "bridge.client"

	submissionCountMetricName   = "Bridge/SubmittedInstructions"
	confirmationWaitMetricName  = "Bridge/ConfirmationWait"
	submissionEventName         = "BridgeSubmission"
	neonAddressCacheEntryWeight = 1
	readBackoffBase             = 100 * time.Millisecond
	maxReadBackoff              = 2 * time.Second
	senderLockStripes           = 64
)

// defaultSenderLocks serializes nonce assignment per sending address across
// clients that are not given their own lock.
var defaultSenderLocks = sync.NewStripedLock(senderLockStripes)

// SubmissionResult is the LogData event emitted for one executed instruction.
type SubmissionResult struct {
	// ID correlates every result of one SubmitSingle or SubmitBatch call.
	ID uuid.UUID

	// Index is the position of the instruction within its submission.
	Index int

	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint

	// Response is the raw payload of the LogData event.
	Response []byte
}

// Client submits encoded instructions to the composability bridge contract.
//
// A Client is safe for concurrent use. Submissions signed by the same key are
// serialized from nonce lookup through send, including across Clients that
// share a sender lock.
type Client struct {
	log     *logrus.Entry
	conf    *conf
	backend Backend
	codec   *composability.Codec
	limiter rate.Limiter

	contract common.Address
	chainID  *big.Int
	signer   types.Signer
	key      *ecdsa.PrivateKey
	from     common.Address

	senderLocks   *sync.StripedLock
	neonAddresses cache.Cache
}

// Option configures a Client.
type Option func(*Client)

// WithCodec overrides the default big-endian instruction codec.
func WithCodec(codec *composability.Codec) Option {
	return func(c *Client) {
		c.codec = codec
	}
}

// WithRateLimiter limits backend reads, keyed by method.
func WithRateLimiter(limiter rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithSenderLock sets the lock that serializes submissions per sending address.
// Clients signing with the same key must share a lock to avoid nonce reuse.
func WithSenderLock(locks *sync.StripedLock) Option {
	return func(c *Client) {
		c.senderLocks = locks
	}
}

// WithPrivateKey sets the key that signs submissions. Clients without a key
// can only perform reads.
func WithPrivateKey(key *ecdsa.PrivateKey) Option {
	return func(c *Client) {
		c.key = key
		if key != nil {
			c.from = crypto.PubkeyToAddress(key.PublicKey)
		}
	}
}

// NewClient returns a client for the bridge contract deployed at contract on
// the chain identified by chainID.
func NewClient(backend Backend, contract common.Address, chainID *big.Int, configProvider ConfigProvider, opts ...Option) *Client {
	c := &Client{
		log:      logrus.StandardLogger().WithField("type", "bridge/client"),
		conf:     configProvider(),
		backend:  backend,
		codec:    composability.NewCodec(),
		limiter:  &rate.NoLimiter{},
		contract: contract,
		chainID:  new(big.Int).Set(chainID),
		signer:   types.NewEIP155Signer(chainID),

		senderLocks: defaultSenderLocks,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.neonAddresses = cache.NewCache(int(c.conf.neonAddressCacheSize.Get(context.Background())) * neonAddressCacheEntryWeight)
	return c
}

// Contract returns the bridge contract address.
func (c *Client) Contract() common.Address {
	return c.contract
}

// From returns the address submissions are signed by.
func (c *Client) From() common.Address {
	return c.from
}

// SubmitSingle encodes ix and calls execute with its funding amount and salt.
// A nil salt submits the default zero salt. It blocks until the transaction
// reaches the configured confirmation depth and returns the LogData event it
// emitted.
func (c *Client) SubmitSingle(ctx context.Context, ix composability.Instruction, lamports uint64, salt *composability.Salt) (result *SubmissionResult, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SubmitSingle")
	defer func() { tracer.EndWithError(err) }()

	var saltWord composability.Salt
	if salt != nil {
		saltWord = *salt
	}

	data, err := bridgeABI.Pack(executeMethod, lamports, [32]byte(saltWord), c.codec.Encode(ix))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack execute call")
	}

	results, err := c.submit(ctx, executeMethod, data, 1)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// SubmitBatch encodes ixs in order and calls batchExecute. When salts is nil a
// distinct zero salt is used for every instruction. Lengths are validated
// before anything is sent to the backend.
func (c *Client) SubmitBatch(ctx context.Context, ixs []composability.Instruction, lamports []uint64, salts []composability.Salt) (results []*SubmissionResult, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SubmitBatch")
	defer func() { tracer.EndWithError(err) }()

	if salts == nil {
		salts = make([]composability.Salt, len(ixs))
	}
	if err := composability.CheckBatchLengths(len(ixs), len(lamports), len(salts)); err != nil {
		return nil, err
	}
	if len(ixs) == 0 {
		return nil, ErrEmptyBatch
	}

	saltWords := make([][32]byte, len(salts))
	for i, salt := range salts {
		saltWords[i] = salt
	}

	data, err := bridgeABI.Pack(batchExecuteMethod, lamports, saltWords, c.codec.EncodeBatch(ixs))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack batchExecute call")
	}

	return c.submit(ctx, batchExecuteMethod, data, len(ixs))
}

func (c *Client) submit(ctx context.Context, method string, data []byte, instructionCount int) ([]*SubmissionResult, error) {
	if c.key == nil {
		return nil, ErrNoPrivateKey
	}

	id := uuid.New()
	log := c.log.WithFields(logrus.Fields{
		"method":        "submit",
		"submission_id": id.String(),
		"bridge_method": method,
		"instructions":  instructionCount,
	})

	tx, err := c.send(ctx, method, data, log)
	if err != nil {
		return nil, err
	}
	log = log.WithField("tx", tx.Hash().Hex())

	metrics.RecordCount(ctx, submissionCountMetricName, uint64(instructionCount))

	start := time.Now()
	receipt, err := c.waitForConfirmation(ctx, tx.Hash())
	metrics.RecordDuration(ctx, confirmationWaitMetricName, time.Since(start))
	if err != nil {
		log.WithError(err).Warn("failure waiting for bridge transaction confirmation")
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Info("bridge transaction reverted")
		return nil, errors.Wrapf(ErrExecutionReverted, "tx %s", tx.Hash().Hex())
	}

	results, err := c.parseReceipt(id, receipt, instructionCount)
	if err != nil {
		log.WithError(err).Warn("failure parsing bridge transaction receipt")
		return nil, err
	}

	metrics.RecordEvent(ctx, submissionEventName, map[string]interface{}{
		"submission_id": id.String(),
		"method":        method,
		"instructions":  instructionCount,
		"tx":            tx.Hash().Hex(),
		"block":         receipt.BlockNumber.Uint64(),
	})
	log.WithField("block", receipt.BlockNumber.Uint64()).Debug("bridge transaction confirmed")

	return results, nil
}

// send builds, signs and sends one transaction while holding the sender's
// lock, so that concurrent submissions never reuse a pending nonce.
func (c *Client) send(ctx context.Context, method string, data []byte, log *logrus.Entry) (*types.Transaction, error) {
	mu := c.senderLocks.Get(c.from.Bytes())
	mu.Lock()
	defer mu.Unlock()

	tx, err := c.buildTransaction(ctx, data)
	if err != nil {
		log.WithError(err).Warn("failure building bridge transaction")
		return nil, err
	}

	// Submissions mutate chain state and are never retried.
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		log.WithError(err).Warn("failure sending bridge transaction")
		return nil, errors.Wrapf(err, "failed to send %s transaction", method)
	}
	log.WithField("tx", tx.Hash().Hex()).Debug("sent bridge transaction")

	return tx, nil
}

func (c *Client) buildTransaction(ctx context.Context, data []byte) (*types.Transaction, error) {
	var nonce uint64
	err := c.read(ctx, "PendingNonceAt", func() (err error) {
		nonce, err = c.backend.PendingNonceAt(ctx, c.from)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get nonce")
	}

	var gasPrice *big.Int
	err = c.read(ctx, "SuggestGasPrice", func() (err error) {
		gasPrice, err = c.backend.SuggestGasPrice(ctx)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}

	gasLimit := c.conf.gasLimit.Get(ctx)
	if gasLimit == 0 {
		msg := ethereum.CallMsg{
			From: c.from,
			To:   &c.contract,
			Data: data,
		}

		// Estimation failures usually mean the call would revert, so they are
		// surfaced rather than retried.
		gasLimit, err = c.backend.EstimateGas(ctx, msg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to estimate gas")
		}
	}

	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}
	return signed, nil
}

// waitForConfirmation polls until the receipt for txHash is buried under the
// configured confirmation depth. Every failed read is retried until ctx or the
// confirmation timeout ends the wait, since the transaction has already been
// sent. Abandoning the wait does not affect the transaction itself.
func (c *Client) waitForConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	depth := c.conf.confirmationDepth.Get(ctx)
	if depth == 0 {
		depth = 1
	}
	pollInterval := c.conf.pollInterval.Get(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, c.conf.confirmationTimeout.Get(ctx))
	defer cancel()

	var receipt *types.Receipt
	_, err := retry.RetryContext(
		waitCtx,
		func() error {
			var err error
			receipt, err = c.backend.TransactionReceipt(waitCtx, txHash)
			if err != nil {
				return err
			}

			head, err := c.backend.BlockNumber(waitCtx)
			if err != nil {
				return err
			}

			included := receipt.BlockNumber.Uint64()
			if head < included || head-included+1 < depth {
				return errConfirmationsNotReached
			}
			return nil
		},
		retry.NonRetriableErrors(context.Canceled, context.DeadlineExceeded),
		retry.BackoffContext(waitCtx, backoff.Constant(pollInterval), pollInterval),
	)
	if err != nil {
		if ctxErr := waitCtx.Err(); ctxErr != nil {
			return nil, errors.Wrapf(ctxErr, "stopped waiting for confirmation of tx %s", txHash.Hex())
		}
		return nil, errors.Wrapf(err, "failed to get receipt for tx %s", txHash.Hex())
	}

	return receipt, nil
}

func (c *Client) parseReceipt(id uuid.UUID, receipt *types.Receipt, expected int) ([]*SubmissionResult, error) {
	var results []*SubmissionResult
	for _, log := range receipt.Logs {
		if log.Address != c.contract || len(log.Topics) == 0 || log.Topics[0] != LogDataTopic {
			continue
		}

		result, err := ParseLogData(log)
		if err != nil {
			return nil, err
		}
		result.ID = id
		result.Index = len(results)
		results = append(results, result)
	}

	if len(results) != expected {
		return nil, errors.Wrapf(ErrUnexpectedLogCount, "expected %d, found %d in tx %s", expected, len(results), receipt.TxHash.Hex())
	}
	return results, nil
}

// ParseLogData decodes a LogData event.
func ParseLogData(log *types.Log) (*SubmissionResult, error) {
	if log == nil || len(log.Topics) == 0 || log.Topics[0] != LogDataTopic {
		return nil, ErrNotLogData
	}

	values, err := bridgeABI.Unpack(logDataEvent, log.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack LogData event")
	}
	if len(values) != 1 {
		return nil, errors.Errorf("LogData event has %d values", len(values))
	}

	response, ok := values[0].([]byte)
	if !ok {
		return nil, errors.Errorf("unexpected LogData response type %T", values[0])
	}

	return &SubmissionResult{
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
		Response:    response,
	}, nil
}

// GetNeonAddress returns the Solana account the bridge derives for evm.
// Mappings are deterministic and cached.
func (c *Client) GetNeonAddress(ctx context.Context, evm common.Address) (address composability.PublicKeyWord, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetNeonAddress")
	defer func() { tracer.EndWithError(err) }()

	key := evm.Hex()
	if cached, ok := c.neonAddresses.Retrieve(key); ok {
		return cached.(composability.PublicKeyWord), nil
	}

	address, err = c.callWord(ctx, getNeonAddressMethod, evm)
	if err != nil {
		return address, err
	}

	if err := c.neonAddresses.Insert(key, address, neonAddressCacheEntryWeight); err != nil && err != cache.ErrKeyExists {
		c.log.WithError(err).Warn("failure caching neon address")
	}
	return address, nil
}

// GetPayer returns the account that pays for bridge operations.
func (c *Client) GetPayer(ctx context.Context) (address composability.PublicKeyWord, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetPayer")
	defer func() { tracer.EndWithError(err) }()

	return c.callWord(ctx, getPayerMethod)
}

func (c *Client) callWord(ctx context.Context, method string, args ...interface{}) (composability.PublicKeyWord, error) {
	var word composability.PublicKeyWord

	data, err := bridgeABI.Pack(method, args...)
	if err != nil {
		return word, errors.Wrapf(err, "failed to pack %s call", method)
	}

	var raw []byte
	err = c.read(ctx, method, func() (err error) {
		raw, err = c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
		return err
	})
	if err != nil {
		return word, errors.Wrapf(err, "%s call failed", method)
	}

	values, err := bridgeABI.Unpack(method, raw)
	if err != nil {
		return word, errors.Wrapf(err, "failed to unpack %s result", method)
	}
	if len(values) != 1 {
		return word, errors.Errorf("%s returned %d values", method, len(values))
	}

	result, ok := values[0].([32]byte)
	if !ok {
		return word, errors.Errorf("unexpected %s result type %T", method, values[0])
	}
	return composability.PublicKeyWord(result), nil
}

// read performs a side-effect free backend call, honouring the rate limiter
// and retrying failures other than context cancellation.
func (c *Client) read(ctx context.Context, method string, action retry.Action) error {
	attempts := c.conf.readAttempts.Get(ctx)
	if attempts == 0 {
		attempts = 1
	}

	_, err := retry.RetryContext(
		ctx,
		func() error {
			if err := c.limiter.Wait(ctx, method); err != nil {
				return err
			}
			return action()
		},
		retry.Limit(uint(attempts)),
		retry.NonRetriableErrors(context.Canceled, context.DeadlineExceeded),
		retry.BackoffContext(ctx, backoff.BinaryExponential(readBackoffBase), maxReadBackoff),
	)
	return err
}
