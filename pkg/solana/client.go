package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/composability-codec/pkg/metrics"
	"github.com/code-payments/composability-codec/pkg/rate"
	"github.com/code-payments/composability-codec/pkg/retry"
	"github.com/code-payments/composability-codec/pkg/retry/backoff"
)

const (
	metricsStructName = "solana.client"

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	invalidParamCode = -32602

	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 5 * time.Second
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

var (
	CommitmentProcessed = Commitment{Commitment: "processed"}
	CommitmentConfirmed = Commitment{Commitment: "confirmed"}
	CommitmentFinalized = Commitment{Commitment: "finalized"}
)

var (
	ErrNoAccountInfo = errors.New("no account info")
	ErrNoBalance     = errors.New("no balance")
)

// AccountInfo is the state of a Solana account.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// Client provides read-only access to the Solana JSON RPC API. Callers use it
// to decide instruction parameters, such as rent and whether a derived account
// already exists, before encoding instructions for a bridge.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (AccountInfo, error)
	GetBalance(ctx context.Context, account ed25519.PublicKey) (uint64, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (lamports uint64, err error)
	GetSlot(ctx context.Context, commitment Commitment) (uint64, error)
}

var (
	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

type client struct {
	log     *logrus.Entry
	client  jsonrpc.RPCClient
	limiter rate.Limiter
}

// New returns a client using the specified endpoint.
func New(endpoint string) Client {
	return NewWithRPCOptions(endpoint, nil, &rate.NoLimiter{})
}

// NewWithRPCOptions returns a client configured with the specified RPC options
// and a per-method rate limiter.
func NewWithRPCOptions(endpoint string, opts *jsonrpc.RPCClientOpts, limiter rate.Limiter) Client {
	return &client{
		log:     logrus.StandardLogger().WithField("type", "solana/client"),
		client:  jsonrpc.NewClientWithOpts(endpoint, opts),
		limiter: limiter,
	}
}

// NewRateLimitedClient returns a client that allows at most requestsPerSecond
// calls per RPC method.
func NewRateLimitedClient(endpoint string, requestsPerSecond float64) Client {
	return NewWithRPCOptions(endpoint, nil, rate.NewLocalRateLimiter(xrate.Limit(requestsPerSecond)))
}

// call waits on the method's limiter and retries rate limited or unhealthy
// node responses with backoff.
func (c *client) call(ctx context.Context, out interface{}, method string, params ...interface{}) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, method)
	defer func() { tracer.EndWithError(err) }()

	attempts, err := retry.RetryContext(
		ctx,
		func() error {
			if err := c.limiter.Wait(ctx, method); err != nil {
				return err
			}

			err := c.client.CallFor(out, method, params...)
			if err == nil {
				return nil
			}
			return c.classify(method, err)
		},
		retry.RetriableErrors(errRateLimited, errServiceError),
		retry.Limit(maxAttempts),
		retry.BackoffContext(ctx, backoff.BinaryExponential(baseBackoff), maxBackoff),
	)
	tracer.AddAttribute("attempts", attempts)

	return err
}

func (c *client) classify(method string, err error) error {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return err
	}

	switch {
	case rpcErr.Code == 429:
		c.log.WithField("method", method).Warn("rate limited by rpc node")
		return errRateLimited
	case rpcErr.Code >= 500, rpcErr.Code == rpcNodeUnhealthyCode:
		return errServiceError
	default:
		return rpcErr
	}
}

func (c *client) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (lamports uint64, err error) {
	if err := c.call(ctx, &lamports, "getMinimumBalanceForRentExemption", dataSize); err != nil {
		return 0, errors.Wrap(err, "getMinimumBalanceForRentExemption() failed to send request")
	}

	return lamports, nil
}

func (c *client) GetSlot(ctx context.Context, commitment Commitment) (slot uint64, err error) {
	// The commitment must be wrapped in an array, otherwise the node rejects
	// the request.
	if err := c.call(ctx, &slot, "getSlot", []interface{}{commitment}); err != nil {
		return 0, errors.Wrap(err, "getSlot() failed to send request")
	}

	return slot, nil
}

func (c *client) GetBalance(ctx context.Context, account ed25519.PublicKey) (uint64, error) {
	var resp struct {
		Value *uint64 `json:"value"`
	}
	if err := c.call(ctx, &resp, "getBalance", base58.Encode(account), CommitmentProcessed); err != nil {
		if rpcErr, ok := errors.Cause(err).(*jsonrpc.RPCError); ok && rpcErr.Code == invalidParamCode {
			return 0, ErrNoBalance
		}

		return 0, errors.Wrap(err, "getBalance() failed to send request")
	}

	if resp.Value == nil {
		return 0, errors.New("invalid value in response")
	}
	return *resp.Value, nil
}

func (c *client) GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (info AccountInfo, err error) {
	var resp struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"`
			Executable bool     `json:"executable"`
		} `json:"value"`
	}

	params := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	if err := c.call(ctx, &resp, "getAccountInfo", base58.Encode(account), params); err != nil {
		return info, errors.Wrap(err, "getAccountInfo() failed to send request")
	}
	if resp.Value == nil {
		return info, ErrNoAccountInfo
	}

	info.Owner, err = base58.Decode(resp.Value.Owner)
	if err != nil {
		return info, errors.Wrap(err, "invalid base58 encoded owner")
	}

	if len(resp.Value.Data) == 0 {
		return info, errors.New("missing account data in response")
	}
	info.Data, err = base64.StdEncoding.DecodeString(resp.Value.Data[0])
	if err != nil {
		return info, errors.Wrap(err, "invalid base64 encoded data")
	}

	info.Lamports = resp.Value.Lamports
	info.Executable = resp.Value.Executable

	return info, nil
}
