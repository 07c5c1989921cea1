// Package rpc is the chain-RPC collaborator: a JSON-RPC 2.0 client over HTTP
// with a token bucket for request pacing and a per-endpoint circuit breaker
// for failover across replica endpoints.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chainlens-network/chainlensx/pkg/utils"
)

// ChainClient is the surface the indexer depends on. The HTTP implementation
// below is the production one; tests substitute fakes.
type ChainClient interface {
	// ChainHead returns the current head block number.
	ChainHead(ctx context.Context) (uint64, error)
	// BlockWithTxs fetches one block with its full transactions.
	BlockWithTxs(ctx context.Context, number uint64) (*BlockWithTxs, error)
	// TransactionReceipt fetches the receipt for one transaction.
	TransactionReceipt(ctx context.Context, hash string) (*Receipt, error)
}

// HTTPClient implements ChainClient against one or more node endpoints.
type HTTPClient struct {
	endpoints []string
	client    *http.Client
	reqID     atomic.Uint64

	// token bucket
	tokMu       sync.Mutex
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  time.Time

	// circuit breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts configures a new HTTPClient. Zero values pick sane defaults.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// New creates an HTTPClient with the given options.
func New(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 10
	}
	if o.Burst <= 0 {
		o.Burst = 20
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &HTTPClient{
		endpoints:        utils.Dedup(o.Endpoints),
		client:           client,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	c.tokens = c.maxTokens
	c.lastRefill = time.Now()
	return c
}

// takeToken credits the bucket for the time elapsed since the last refill,
// capped at the burst size, then consumes one token if available.
func (c *HTTPClient) takeToken() bool {
	c.tokMu.Lock()
	defer c.tokMu.Unlock()

	if n := int64(time.Since(c.lastRefill) / c.refillEvery); n > 0 {
		c.tokens += n
		if c.tokens > c.maxTokens {
			c.tokens = c.maxTokens
		}
		// Advance by whole intervals so fractional elapsed time is not lost.
		c.lastRefill = c.lastRefill.Add(time.Duration(n) * c.refillEvery)
	}
	if c.tokens > 0 {
		c.tokens--
		return true
	}
	return false
}

// acquire blocks until a token is available or ctx is done.
func (c *HTTPClient) acquire(ctx context.Context) error {
	for {
		if c.takeToken() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.refillEvery / 2):
		}
	}
}

// isOpen reports whether the endpoint's breaker is currently OPEN.
func (c *HTTPClient) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

func (c *HTTPClient) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
	}
}

// call sends one JSON-RPC request, trying endpoints in order and skipping
// any whose breaker is open. The result payload is unmarshalled into out.
func (c *HTTPClient) call(ctx context.Context, method string, params any, out any) error {
	if len(c.endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.reqID.Add(1),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < len(c.endpoints); i++ {
		ep := c.endpoints[i%len(c.endpoints)]
		if c.isOpen(ep) {
			continue
		}

		if err := c.acquire(ctx); err != nil {
			return err
		}

		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(payload))
		if reqErr != nil {
			return reqErr
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, doErr := c.client.Do(httpReq)
		if doErr != nil {
			lastErr = doErr
			c.noteFailure(ep)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server %d", resp.StatusCode)
			c.noteFailure(ep)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("http %d", resp.StatusCode)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		var envelope rpcResponse
		decErr := json.NewDecoder(resp.Body).Decode(&envelope)
		if cerr := utils.DrainAndClose(resp.Body); cerr != nil && decErr == nil {
			decErr = cerr
		}
		if decErr != nil {
			lastErr = decErr
			continue
		}
		if envelope.Error != nil {
			// Node-level errors are not endpoint failures; surface directly.
			return fmt.Errorf("rpc %s: %d %s", method, envelope.Error.Code, envelope.Error.Message)
		}
		if out != nil {
			if err := json.Unmarshal(envelope.Result, out); err != nil {
				lastErr = err
				continue
			}
		}
		return nil
	}

	return lastErr
}

// ChainHead returns the head block number.
func (c *HTTPClient) ChainHead(ctx context.Context) (uint64, error) {
	var head uint64
	if err := c.call(ctx, "starknet_blockNumber", []any{}, &head); err != nil {
		return 0, err
	}
	return head, nil
}

// BlockWithTxs fetches the block at number with its full transactions.
func (c *HTTPClient) BlockWithTxs(ctx context.Context, number uint64) (*BlockWithTxs, error) {
	var block BlockWithTxs
	params := []any{map[string]uint64{"block_number": number}}
	if err := c.call(ctx, "starknet_getBlockWithTxs", params, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// TransactionReceipt fetches the receipt for hash.
func (c *HTTPClient) TransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	var receipt Receipt
	if err := c.call(ctx, "starknet_getTransactionReceipt", []any{hash}, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}
