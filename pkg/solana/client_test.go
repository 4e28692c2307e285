package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     int               `json:"id"`
}

func newTestServer(t *testing.T, handler func(req rpcRequest) (interface{}, map[string]interface{})) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestClient_GetMinimumBalanceForRentExemption(t *testing.T) {
	server := newTestServer(t, func(req rpcRequest) (interface{}, map[string]interface{}) {
		assert.Equal(t, "getMinimumBalanceForRentExemption", req.Method)
		return 1461600, nil
	})

	lamports, err := New(server.URL).GetMinimumBalanceForRentExemption(context.Background(), 82)
	require.NoError(t, err)
	assert.EqualValues(t, 1461600, lamports)
}

func TestClient_GetAccountInfo(t *testing.T) {
	owner, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	account, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	data := []byte{1, 2, 3, 4}

	server := newTestServer(t, func(req rpcRequest) (interface{}, map[string]interface{}) {
		assert.Equal(t, "getAccountInfo", req.Method)

		var requested string
		require.NoError(t, json.Unmarshal(req.Params[0], &requested))
		if requested != base58.Encode(account) {
			return map[string]interface{}{"value": nil}, nil
		}

		return map[string]interface{}{
			"value": map[string]interface{}{
				"lamports":   1000,
				"owner":      base58.Encode(owner),
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": false,
			},
		}, nil
	})

	c := New(server.URL)

	info, err := c.GetAccountInfo(context.Background(), account, CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, owner, info.Owner)
	assert.Equal(t, data, info.Data)
	assert.EqualValues(t, 1000, info.Lamports)
	assert.False(t, info.Executable)

	_, err = c.GetAccountInfo(context.Background(), owner, CommitmentConfirmed)
	assert.Equal(t, ErrNoAccountInfo, err)
}

func TestClient_GetBalance(t *testing.T) {
	account, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	server := newTestServer(t, func(req rpcRequest) (interface{}, map[string]interface{}) {
		assert.Equal(t, "getBalance", req.Method)

		var requested string
		require.NoError(t, json.Unmarshal(req.Params[0], &requested))
		if requested != base58.Encode(account) {
			return nil, map[string]interface{}{
				"code":    invalidParamCode,
				"message": "Invalid param: could not find account",
			}
		}

		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 42},
			"value":   uint64(49801500000),
		}, nil
	})

	c := New(server.URL)

	balance, err := c.GetBalance(context.Background(), account)
	require.NoError(t, err)
	assert.EqualValues(t, 49801500000, balance)

	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, err = c.GetBalance(context.Background(), other)
	assert.Equal(t, ErrNoBalance, err)
}

func TestClient_GetSlot(t *testing.T) {
	server := newTestServer(t, func(req rpcRequest) (interface{}, map[string]interface{}) {
		assert.Equal(t, "getSlot", req.Method)
		require.Len(t, req.Params, 1)
		assert.JSONEq(t, `{"commitment":"finalized"}`, string(req.Params[0]))
		return 1234, nil
	})

	slot, err := New(server.URL).GetSlot(context.Background(), CommitmentFinalized)
	require.NoError(t, err)
	assert.EqualValues(t, 1234, slot)
}

func TestClient_RetriesUnhealthyNode(t *testing.T) {
	var calls int32
	server := newTestServer(t, func(req rpcRequest) (interface{}, map[string]interface{}) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, map[string]interface{}{
				"code":    rpcNodeUnhealthyCode,
				"message": "Node is unhealthy",
			}
		}
		return 7, nil
	})

	slot, err := New(server.URL).GetSlot(context.Background(), CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 7, slot)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryInvalidParams(t *testing.T) {
	var calls int32
	server := newTestServer(t, func(req rpcRequest) (interface{}, map[string]interface{}) {
		atomic.AddInt32(&calls, 1)
		return nil, map[string]interface{}{
			"code":    invalidParamCode,
			"message": "Invalid param",
		}
	})

	_, err := New(server.URL).GetMinimumBalanceForRentExemption(context.Background(), 10)
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_CancelledContext(t *testing.T) {
	var calls int32
	server := newTestServer(t, func(req rpcRequest) (interface{}, map[string]interface{}) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRateLimitedClient(server.URL, 1).GetSlot(ctx, CommitmentConfirmed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
}
