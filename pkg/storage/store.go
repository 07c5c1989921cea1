// Package storage defines the storage collaborator contract. The engine only
// assumes SQL-with-LIMIT semantics from it; the ClickHouse implementation
// lives in the clickhouse subpackage.
package storage

import "context"

// Store is the persistence surface shared by the query sandbox (reads, audit
// log) and the indexer (ledger upserts).
type Store interface {
	// Execute runs a parameterized SELECT and returns typed rows.
	Execute(ctx context.Context, query string, args ...any) ([]Row, error)

	// Ledger upserts. Each is independently atomic and idempotent.
	UpsertBlock(ctx context.Context, b *Block) error
	UpsertTransaction(ctx context.Context, tx *Transaction) error
	UpsertEvents(ctx context.Context, events []*Event) error
	UpsertContract(ctx context.Context, c *Contract) error
	UpsertStorageDiffs(ctx context.Context, diffs []*StorageDiff) error

	// TableExists reports whether a ledger table is present.
	TableExists(ctx context.Context, name string) (bool, error)

	// HighestBlock returns the highest indexed block number, 0 when empty.
	HighestBlock(ctx context.Context) (uint64, error)

	// DataCounts returns per-table row counts for the stats endpoint.
	DataCounts(ctx context.Context) (DataCounts, error)

	// Query audit log.
	RecordQueryExecution(ctx context.Context, rec *QueryExecution) error
	QueryExecutions(ctx context.Context, limit, offset int) ([]QueryExecution, error)
	CountQueryExecutions(ctx context.Context) (uint64, error)

	// Ping reports backend liveness for health checks.
	Ping(ctx context.Context) error

	Close() error
}
