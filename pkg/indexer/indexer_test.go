package indexer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"

	"github.com/chainlens-network/chainlensx/pkg/rpc"
	"github.com/chainlens-network/chainlensx/pkg/storage"
)

// fakeChain serves synthetic blocks up to head. Receipts succeed unless the
// tx hash is listed in reverted; block fetches fail for numbers in broken.
type fakeChain struct {
	mu       sync.Mutex
	head     uint64
	reverted map[string]bool
	broken   map[uint64]bool
	headErr  error
}

func (f *fakeChain) ChainHead(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return 0, f.headErr
	}
	return f.head, nil
}

func (f *fakeChain) BlockWithTxs(_ context.Context, number uint64) (*rpc.BlockWithTxs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[number] {
		return nil, fmt.Errorf("node error at block %d", number)
	}
	txType := "INVOKE"
	if number%5 == 0 {
		txType = "DEPLOY"
	}
	return &rpc.BlockWithTxs{
		Number:     number,
		Hash:       fmt.Sprintf("0xblock%d", number),
		ParentHash: fmt.Sprintf("0xblock%d", number-1),
		Timestamp:  1700000000 + int64(number),
		Transactions: []rpc.Tx{
			{
				Hash:            fmt.Sprintf("0xtx%d", number),
				Type:            txType,
				SenderAddress:   "0xsender",
				ContractAddress: fmt.Sprintf("0xcontract%d", number),
				ClassHash:       "0xclass",
				Nonce:           fmt.Sprintf("%d", number),
			},
		},
	}, nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash string) (*rpc.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := "SUCCEEDED"
	if f.reverted[hash] {
		status = "REVERTED"
	}
	return &rpc.Receipt{
		TxHash:          hash,
		ExecutionStatus: status,
		Events: []rpc.RawEvent{
			{FromAddress: "0xemitter", Keys: []string{"0xkey"}, Data: []string{"0x1"}},
		},
	}, nil
}

// memStore keeps upserted records keyed so duplicate writes overwrite.
type memStore struct {
	mu        sync.Mutex
	blocks    map[uint64]*storage.Block
	txs       map[string]*storage.Transaction
	events    map[string]*storage.Event
	contracts map[string]*storage.Contract
	highest   uint64
}

func newMemStore() *memStore {
	return &memStore{
		blocks:    map[uint64]*storage.Block{},
		txs:       map[string]*storage.Transaction{},
		events:    map[string]*storage.Event{},
		contracts: map[string]*storage.Contract{},
	}
}

func (m *memStore) Execute(context.Context, string, ...any) ([]storage.Row, error) {
	return nil, nil
}

func (m *memStore) UpsertBlock(_ context.Context, b *storage.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[b.Number] = b
	if b.Number > m.highest {
		m.highest = b.Number
	}
	return nil
}

func (m *memStore) UpsertTransaction(_ context.Context, tx *storage.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[tx.Hash] = tx
	return nil
}

func (m *memStore) UpsertEvents(_ context.Context, events []*storage.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		m.events[fmt.Sprintf("%s:%d", e.TxHash, e.Index)] = e
	}
	return nil
}

func (m *memStore) UpsertContract(_ context.Context, c *storage.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[c.Address] = c
	return nil
}

func (m *memStore) UpsertStorageDiffs(_ context.Context, diffs []*storage.StorageDiff) error {
	return nil
}

func (m *memStore) TableExists(context.Context, string) (bool, error) { return true, nil }

func (m *memStore) HighestBlock(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highest, nil
}

func (m *memStore) DataCounts(context.Context) (storage.DataCounts, error) {
	return storage.DataCounts{}, nil
}
func (m *memStore) RecordQueryExecution(context.Context, *storage.QueryExecution) error { return nil }
func (m *memStore) QueryExecutions(context.Context, int, int) ([]storage.QueryExecution, error) {
	return nil, nil
}
func (m *memStore) CountQueryExecutions(context.Context) (uint64, error) { return 0, nil }
func (m *memStore) Ping(context.Context) error                           { return nil }
func (m *memStore) Close() error                                         { return nil }

func (m *memStore) counts() (blocks, txs, events, contracts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blocks), len(m.txs), len(m.events), len(m.contracts)
}

func testIndexer(store storage.Store, chain rpc.ChainClient, cfg Config) *Indexer {
	return New(zap.NewNop(), store, chain, cfg)
}

func TestSyncPassIndexesUpToHead(t *testing.T) {
	chain := &fakeChain{head: 4}
	store := newMemStore()
	ix := testIndexer(store, chain, Config{BatchSize: 10})

	require.NoError(t, ix.syncPass(context.Background()))

	blocks, txs, events, _ := store.counts()
	assert.Equal(t, 4, blocks)
	assert.Equal(t, 4, txs)
	assert.Equal(t, 4, events, "each succeeding tx emits one event")

	st := ix.Status()
	assert.Equal(t, uint64(4), st.LastSyncedHeight)
	assert.Equal(t, uint64(4), st.CurrentChainHeight)
	assert.Equal(t, float64(100), st.ProgressPercent)
}

func TestSyncPassRespectsBatchSize(t *testing.T) {
	chain := &fakeChain{head: 100}
	store := newMemStore()
	ix := testIndexer(store, chain, Config{BatchSize: 10})

	require.NoError(t, ix.syncPass(context.Background()))

	st := ix.Status()
	assert.Equal(t, uint64(10), st.LastSyncedHeight)
	assert.Equal(t, float64(10), st.ProgressPercent)
}

func TestSyncPassIsIdempotent(t *testing.T) {
	chain := &fakeChain{head: 3}
	store := newMemStore()
	ix := testIndexer(store, chain, Config{BatchSize: 10})

	require.NoError(t, ix.syncPass(context.Background()))
	blocks1, txs1, _, _ := store.counts()

	// Reset the cursor and replay the same range.
	ix.mu.Lock()
	ix.sync.LastSyncedHeight = 0
	ix.mu.Unlock()
	require.NoError(t, ix.syncPass(context.Background()))

	blocks2, txs2, _, _ := store.counts()
	assert.Equal(t, blocks1, blocks2, "replaying blocks must not duplicate rows")
	assert.Equal(t, txs1, txs2)
}

func TestSyncPassStopsAtFailedBlock(t *testing.T) {
	chain := &fakeChain{head: 5, broken: map[uint64]bool{3: true}}
	store := newMemStore()
	ix := testIndexer(store, chain, Config{BatchSize: 10})

	err := ix.syncPass(context.Background())

	require.Error(t, err)
	st := ix.Status()
	assert.Equal(t, uint64(2), st.LastSyncedHeight, "cursor stops before the failed block")

	// Once the node recovers the same pass resumes from block 3.
	chain.mu.Lock()
	chain.broken = nil
	chain.mu.Unlock()
	require.NoError(t, ix.syncPass(context.Background()))
	assert.Equal(t, uint64(5), ix.Status().LastSyncedHeight)
}

func TestRevertedReceiptEmitsNoEvents(t *testing.T) {
	chain := &fakeChain{head: 2, reverted: map[string]bool{"0xtx1": true}}
	store := newMemStore()
	ix := testIndexer(store, chain, Config{BatchSize: 10})

	require.NoError(t, ix.syncPass(context.Background()))

	_, txs, events, _ := store.counts()
	assert.Equal(t, 2, txs, "reverted transactions are still recorded")
	assert.Equal(t, 1, events, "reverted transactions contribute no events")
}

func TestDeployTransactionUpsertsContract(t *testing.T) {
	chain := &fakeChain{head: 5}
	store := newMemStore()
	ix := testIndexer(store, chain, Config{BatchSize: 10})

	require.NoError(t, ix.syncPass(context.Background()))

	_, _, _, contracts := store.counts()
	assert.Equal(t, 1, contracts, "block 5 carries the only deploy")

	store.mu.Lock()
	c := store.contracts["0xcontract5"]
	store.mu.Unlock()
	require.NotNil(t, c)
	assert.Equal(t, uint64(5), c.DeployedAtBlock)
	assert.Equal(t, "0xclass", c.ClassHash)
}

func TestStartFailsWhenChainUnreachable(t *testing.T) {
	chain := &fakeChain{headErr: fmt.Errorf("connection refused")}
	ix := testIndexer(newMemStore(), chain, Config{})

	err := ix.Start(context.Background())

	require.Error(t, err)
	st := ix.Status()
	assert.Equal(t, StateStopped, st.State)
	assert.False(t, st.Connected)
	assert.Contains(t, st.LastError, "connection refused")
}

func TestStartStopLifecycle(t *testing.T) {
	chain := &fakeChain{head: 2}
	ix := testIndexer(newMemStore(), chain, Config{BatchSize: 10, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ix.Start(ctx))
	assert.True(t, ix.Running())

	assert.ErrorIs(t, ix.Start(ctx), ErrAlreadyRunning)

	require.NoError(t, ix.Stop())
	assert.Equal(t, StateStopped, ix.Status().State)
	assert.Error(t, ix.Stop(), "stopping a stopped indexer is an error")

	// A stopped indexer can be started again.
	require.NoError(t, ix.Start(ctx))
	require.NoError(t, ix.Stop())
}

func TestStartResumesFromStoredHeight(t *testing.T) {
	chain := &fakeChain{head: 10}
	store := newMemStore()
	require.NoError(t, store.UpsertBlock(context.Background(), &storage.Block{Number: 7}))

	ix := testIndexer(store, chain, Config{BatchSize: 10, Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ix.Start(ctx))
	defer func() { _ = ix.Stop() }()

	require.Eventually(t, func() bool {
		return ix.Status().LastSyncedHeight == 10
	}, 2*time.Second, 10*time.Millisecond)

	store.mu.Lock()
	_, hasBlock8 := store.blocks[8]
	_, hasBlock1 := store.blocks[1]
	store.mu.Unlock()
	assert.True(t, hasBlock8, "blocks above the stored height are indexed")
	assert.False(t, hasBlock1, "blocks below the stored height are skipped")
}

func TestBackfillSkipsFailedBlocks(t *testing.T) {
	chain := &fakeChain{head: 20, broken: map[uint64]bool{5: true, 7: true}}
	store := newMemStore()
	ix := testIndexer(store, chain, Config{BackfillBatch: 4, BackfillWorkers: 2, BackfillDelay: time.Millisecond})

	res, err := ix.Backfill(context.Background(), 1, 10)

	require.NoError(t, err)
	assert.Equal(t, uint64(8), res.Indexed)
	assert.Equal(t, uint64(2), res.Failed)

	blocks, _, _, _ := store.counts()
	assert.Equal(t, 8, blocks)
}

func TestBackfillRejectsInvertedRange(t *testing.T) {
	ix := testIndexer(newMemStore(), &fakeChain{head: 5}, Config{})

	_, err := ix.Backfill(context.Background(), 9, 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid range")
}
