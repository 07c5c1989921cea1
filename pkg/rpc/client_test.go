package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, handler func(method string, params json.RawMessage) (any, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JSONRPC string          `json:"jsonrpc"`
			Method  string          `json:"method"`
			Params  json.RawMessage `json:"params"`
			ID      uint64          `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)

		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestChainHead(t *testing.T) {
	srv := rpcServer(t, func(method string, _ json.RawMessage) (any, *rpcError) {
		assert.Equal(t, "starknet_blockNumber", method)
		return uint64(42), nil
	})
	defer srv.Close()

	c := New(Opts{Endpoints: []string{srv.URL}})
	head, err := c.ChainHead(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint64(42), head)
}

func TestBlockWithTxs(t *testing.T) {
	srv := rpcServer(t, func(method string, params json.RawMessage) (any, *rpcError) {
		assert.Equal(t, "starknet_getBlockWithTxs", method)
		assert.Contains(t, string(params), `"block_number":7`)
		return map[string]any{
			"block_number": 7,
			"block_hash":   "0xabc",
			"timestamp":    1700000000,
			"transactions": []map[string]any{
				{"transaction_hash": "0xtx", "type": "INVOKE", "sender_address": "0xsender"},
			},
		}, nil
	})
	defer srv.Close()

	c := New(Opts{Endpoints: []string{srv.URL}})
	blk, err := c.BlockWithTxs(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, uint64(7), blk.Number)
	assert.Equal(t, "0xabc", blk.Hash)
	require.Len(t, blk.Transactions, 1)
	assert.Equal(t, "0xtx", blk.Transactions[0].Hash)
}

func TestNodeErrorIsSurfaced(t *testing.T) {
	srv := rpcServer(t, func(string, json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: 24, Message: "Block not found"}
	})
	defer srv.Close()

	c := New(Opts{Endpoints: []string{srv.URL}})
	_, err := c.BlockWithTxs(context.Background(), 999)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Block not found")
}

func TestFailoverToSecondEndpoint(t *testing.T) {
	var badHits atomic.Int64
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		badHits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := rpcServer(t, func(string, json.RawMessage) (any, *rpcError) {
		return uint64(10), nil
	})
	defer good.Close()

	c := New(Opts{Endpoints: []string{bad.URL, good.URL}, BreakerFailures: 2})

	head, err := c.ChainHead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), head)

	// Keep calling until the breaker opens, then the bad endpoint is skipped.
	for i := 0; i < 3; i++ {
		_, err = c.ChainHead(context.Background())
		require.NoError(t, err)
	}
	hitsWhenOpen := badHits.Load()
	for i := 0; i < 3; i++ {
		_, err = c.ChainHead(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, hitsWhenOpen, badHits.Load(), "open breaker short-circuits the failing endpoint")
}

func TestTokenBucketRefillsForElapsedTime(t *testing.T) {
	// 2ms per token, small burst; the bucket starts full.
	c := New(Opts{Endpoints: []string{"http://node"}, RPS: 500, Burst: 4})

	for i := 0; i < 4; i++ {
		require.True(t, c.takeToken(), "initial burst token %d", i)
	}
	require.False(t, c.takeToken(), "bucket drained")

	// An idle period worth many intervals credits multiple tokens at once,
	// capped at the burst size.
	time.Sleep(20 * time.Millisecond)
	got := 0
	for i := 0; i < 10; i++ {
		if c.takeToken() {
			got++
		}
	}
	assert.GreaterOrEqual(t, got, 4, "idle time refills more than one token")
	assert.LessOrEqual(t, got, 5, "refill is capped at the burst size")
}

func TestNoEndpointsConfigured(t *testing.T) {
	c := New(Opts{})
	_, err := c.ChainHead(context.Background())
	require.Error(t, err)
}
