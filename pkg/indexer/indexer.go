// Package indexer synchronizes ledger data from a chain node into the query
// store. It runs periodic sync passes on a cron schedule and supports manual
// backfills over historical ranges.
package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chainlens-network/chainlensx/pkg/rpc"
	"github.com/chainlens-network/chainlensx/pkg/storage"
	"github.com/chainlens-network/chainlensx/pkg/utils"
)

// Config tunes the sync loop. Zero values fall back to env-driven defaults.
type Config struct {
	// StartBlock is the first block to index on an empty store.
	StartBlock uint64
	// BatchSize caps how many blocks one sync pass indexes.
	BatchSize uint64
	// Interval is the delay between scheduled sync passes.
	Interval time.Duration
	// BackfillBatch is the per-batch block count during backfills.
	BackfillBatch uint64
	// BackfillDelay is the pause between backfill batches.
	BackfillDelay time.Duration
	// BackfillWorkers bounds per-batch concurrency during backfills.
	BackfillWorkers int
	// Endpoint is reported in status payloads only.
	Endpoint string
}

// ConfigFromEnv builds a Config from the process environment.
func ConfigFromEnv() Config {
	return Config{
		StartBlock:      uint64(utils.EnvInt("START_BLOCK", 0)),
		BatchSize:       uint64(utils.EnvInt("SYNC_BATCH_SIZE", 50)),
		Interval:        time.Duration(utils.EnvInt("SYNC_INTERVAL_MS", 30_000)) * time.Millisecond,
		BackfillBatch:   uint64(utils.EnvInt("BACKFILL_BATCH_SIZE", 25)),
		BackfillDelay:   time.Duration(utils.EnvInt("BACKFILL_DELAY_MS", 500)) * time.Millisecond,
		BackfillWorkers: utils.EnvInt("BACKFILL_WORKERS", 4),
		Endpoint:        utils.Env("CHAIN_RPC", "http://localhost:9545"),
	}
}

func (c *Config) normalize() {
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BackfillBatch == 0 {
		c.BackfillBatch = 25
	}
	if c.BackfillWorkers <= 0 {
		c.BackfillWorkers = 4
	}
}

// Indexer owns the sync state machine. All state transitions happen under mu;
// passes themselves run outside the lock so status reads never block on RPC.
type Indexer struct {
	logger *zap.Logger
	store  storage.Store
	chain  rpc.ChainClient
	cfg    Config

	mu     sync.Mutex
	state  State
	sync   SyncState
	cron   *cron.Cron
	cancel context.CancelFunc

	// passMu serializes sync passes; a slow pass must not overlap the next tick.
	passMu sync.Mutex
}

// New creates an Indexer in the Stopped state.
func New(logger *zap.Logger, store storage.Store, chain rpc.ChainClient, cfg Config) *Indexer {
	cfg.normalize()
	return &Indexer{
		logger: logger.With(zap.String("component", "indexer")),
		store:  store,
		chain:  chain,
		cfg:    cfg,
		state:  StateStopped,
		sync:   SyncState{State: StateStopped, Endpoint: cfg.Endpoint},
	}
}

// Status returns a snapshot of the current sync state.
func (ix *Indexer) Status() SyncState {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	s := ix.sync
	s.State = ix.state
	return s
}

// Running reports whether the indexer is currently running.
func (ix *Indexer) Running() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.state == StateRunning
}

// ErrAlreadyRunning is returned by Start when the indexer is not stopped.
var ErrAlreadyRunning = fmt.Errorf("indexer already running")

// Start connects to the chain, resumes from the highest indexed block, runs
// one immediate pass in the background and schedules periodic passes. A
// connection failure leaves the indexer Stopped with LastError set.
func (ix *Indexer) Start(ctx context.Context) error {
	ix.mu.Lock()
	if ix.state != StateStopped {
		ix.mu.Unlock()
		ix.logger.Warn("start requested while not stopped", zap.String("state", string(ix.state)))
		return ErrAlreadyRunning
	}
	ix.state = StateStarting
	ix.mu.Unlock()

	head, err := ix.chain.ChainHead(ctx)
	if err != nil {
		ix.mu.Lock()
		ix.state = StateStopped
		ix.sync.Connected = false
		ix.sync.LastError = err.Error()
		ix.mu.Unlock()
		return fmt.Errorf("chain head: %w", err)
	}

	last, err := ix.store.HighestBlock(ctx)
	if err != nil {
		ix.mu.Lock()
		ix.state = StateStopped
		ix.sync.LastError = err.Error()
		ix.mu.Unlock()
		return fmt.Errorf("highest indexed block: %w", err)
	}
	if last == 0 && ix.cfg.StartBlock > 0 {
		last = ix.cfg.StartBlock - 1
	}

	runCtx, cancel := context.WithCancel(ctx)

	ix.mu.Lock()
	ix.cancel = cancel
	ix.sync.Connected = true
	ix.sync.LastError = ""
	ix.sync.CurrentChainHeight = head
	ix.sync.LastSyncedHeight = last
	ix.sync.ProgressPercent = progress(last, head)

	ix.cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	spec := fmt.Sprintf("@every %s", ix.cfg.Interval)
	if _, err := ix.cron.AddFunc(spec, func() { ix.runPass(runCtx) }); err != nil {
		ix.state = StateStopped
		ix.sync.LastError = err.Error()
		ix.mu.Unlock()
		cancel()
		return fmt.Errorf("schedule sync pass: %w", err)
	}
	ix.state = StateRunning
	ix.mu.Unlock()

	ix.cron.Start()
	go ix.runPass(runCtx)

	ix.logger.Info("indexer started",
		zap.Uint64("chain_height", head),
		zap.Uint64("last_synced", last),
		zap.Duration("interval", ix.cfg.Interval))
	return nil
}

// Stop cancels the schedule and waits for the in-flight pass to finish.
func (ix *Indexer) Stop() error {
	ix.mu.Lock()
	if ix.state != StateRunning {
		ix.mu.Unlock()
		ix.logger.Warn("stop requested while not running", zap.String("state", string(ix.state)))
		return fmt.Errorf("indexer not running")
	}
	ix.state = StateStopping
	cronRef := ix.cron
	cancel := ix.cancel
	ix.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cronRef != nil {
		<-cronRef.Stop().Done()
	}

	// Block until any in-flight pass drains.
	ix.passMu.Lock()
	ix.passMu.Unlock() //nolint:staticcheck // lock/unlock pair is a drain barrier

	ix.mu.Lock()
	ix.state = StateStopped
	ix.sync.Connected = false
	ix.mu.Unlock()

	ix.logger.Info("indexer stopped")
	return nil
}

// runPass executes one sync pass, swallowing errors into SyncState.LastError.
func (ix *Indexer) runPass(ctx context.Context) {
	ix.passMu.Lock()
	defer ix.passMu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if err := ix.syncPass(ctx); err != nil {
		ix.logger.Warn("sync pass failed", zap.Error(err))
		ix.mu.Lock()
		ix.sync.LastError = err.Error()
		ix.mu.Unlock()
	}
}

// syncPass indexes up to BatchSize blocks above the last synced height. The
// synced height only advances after a block is fully persisted, so a failed
// block is retried on the next pass.
func (ix *Indexer) syncPass(ctx context.Context) error {
	head, err := ix.chain.ChainHead(ctx)
	if err != nil {
		ix.mu.Lock()
		ix.sync.Connected = false
		ix.mu.Unlock()
		return fmt.Errorf("chain head: %w", err)
	}

	ix.mu.Lock()
	ix.sync.Connected = true
	ix.sync.CurrentChainHeight = head
	ix.sync.LastPassAt = time.Now().UTC()
	last := ix.sync.LastSyncedHeight
	ix.mu.Unlock()

	if last >= head {
		return nil
	}

	pending := head - last
	if pending > ix.cfg.BatchSize {
		pending = ix.cfg.BatchSize
	}

	for n := last + 1; n <= last+pending; n++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := ix.indexBlock(ctx, n); err != nil {
			return fmt.Errorf("index block %d: %w", n, err)
		}
		ix.mu.Lock()
		ix.sync.LastSyncedHeight = n
		ix.sync.ProgressPercent = progress(n, head)
		ix.sync.LastError = ""
		ix.mu.Unlock()
	}

	ix.logger.Info("sync pass complete",
		zap.Uint64("from", last+1),
		zap.Uint64("to", last+pending),
		zap.Uint64("chain_height", head))
	return nil
}

// indexBlock fetches one block and persists it with its transactions, events
// and contract deployments. Upserts are idempotent so re-running a height is
// safe.
func (ix *Indexer) indexBlock(ctx context.Context, number uint64) error {
	blk, err := ix.chain.BlockWithTxs(ctx, number)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	ts := time.Unix(blk.Timestamp, 0).UTC()
	if err := ix.store.UpsertBlock(ctx, &storage.Block{
		Number:           blk.Number,
		Hash:             blk.Hash,
		Timestamp:        ts,
		ParentHash:       blk.ParentHash,
		SequencerAddress: blk.SequencerAddress,
		StateRoot:        blk.NewRoot,
		TransactionCount: uint32(len(blk.Transactions)),
	}); err != nil {
		return fmt.Errorf("upsert block: %w", err)
	}

	for i := range blk.Transactions {
		tx := &blk.Transactions[i]
		if err := ix.indexTransaction(ctx, blk, uint32(i), tx, ts); err != nil {
			return fmt.Errorf("tx %s: %w", tx.Hash, err)
		}
	}
	return nil
}

func (ix *Indexer) indexTransaction(ctx context.Context, blk *rpc.BlockWithTxs, index uint32, tx *rpc.Tx, ts time.Time) error {
	if err := ix.store.UpsertTransaction(ctx, &storage.Transaction{
		Hash:          tx.Hash,
		BlockNumber:   blk.Number,
		Index:         index,
		Type:          tx.Type,
		SenderAddress: tx.SenderAddress,
		Calldata:      tx.Calldata,
		Signature:     tx.Signature,
		MaxFee:        tx.MaxFee,
		Version:       tx.Version,
		Nonce:         utils.ParseUint(tx.Nonce),
	}); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	receipt, err := ix.chain.TransactionReceipt(ctx, tx.Hash)
	if err != nil {
		return fmt.Errorf("receipt: %w", err)
	}

	if raw := rpc.ExtractEvents(receipt); len(raw) > 0 {
		events := make([]*storage.Event, 0, len(raw))
		for i, ev := range raw {
			events = append(events, &storage.Event{
				TxHash:      tx.Hash,
				Index:       uint32(i),
				FromAddress: ev.FromAddress,
				Keys:        ev.Keys,
				Data:        ev.Data,
				BlockNumber: blk.Number,
				Timestamp:   ts,
			})
		}
		if err := ix.store.UpsertEvents(ctx, events); err != nil {
			return fmt.Errorf("upsert events: %w", err)
		}
	}

	if tx.IsDeploy() && rpc.Succeeded(receipt) {
		if err := ix.store.UpsertContract(ctx, &storage.Contract{
			Address:             tx.ContractAddress,
			ClassHash:           tx.ClassHash,
			DeployedAtBlock:     blk.Number,
			DeployerAddress:     tx.SenderAddress,
			ConstructorCalldata: tx.ConstructorCalldata,
		}); err != nil {
			return fmt.Errorf("upsert contract: %w", err)
		}
	}
	return nil
}
