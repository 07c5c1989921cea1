package clickhouse

import (
	"context"
	"fmt"
)

// Ledger DDL. ReplacingMergeTree with the natural unique key makes inserts
// behave as upserts after merges; readers that need exact dedup add FINAL.
var tableDDL = map[string]string{
	"blocks": `(
		block_number UInt64 CODEC(DoubleDelta, LZ4),
		block_hash String CODEC(ZSTD(1)),
		timestamp DateTime64(6) CODEC(DoubleDelta, LZ4),
		parent_hash String CODEC(ZSTD(1)),
		sequencer_address String CODEC(ZSTD(1)),
		state_root String CODEC(ZSTD(1)),
		transaction_count UInt32 CODEC(Delta, ZSTD(3))
	) ENGINE = ReplacingMergeTree
	ORDER BY (block_number)`,

	"transactions": `(
		tx_hash String CODEC(ZSTD(1)),
		block_number UInt64 CODEC(DoubleDelta, LZ4),
		tx_index UInt32 CODEC(Delta, ZSTD(3)),
		tx_type LowCardinality(String),
		sender_address String CODEC(ZSTD(1)),
		calldata Array(String) CODEC(ZSTD(1)),
		signature Array(String) CODEC(ZSTD(1)),
		max_fee String CODEC(ZSTD(1)),
		version LowCardinality(String),
		nonce UInt64 CODEC(Delta, ZSTD(3)),
		INDEX idx_sender sender_address TYPE bloom_filter GRANULARITY 4
	) ENGINE = ReplacingMergeTree
	ORDER BY (tx_hash)`,

	"events": `(
		tx_hash String CODEC(ZSTD(1)),
		event_index UInt32 CODEC(Delta, ZSTD(3)),
		from_address String CODEC(ZSTD(1)),
		keys Array(String) CODEC(ZSTD(1)),
		data Array(String) CODEC(ZSTD(1)),
		block_number UInt64 CODEC(DoubleDelta, LZ4),
		timestamp DateTime64(6) CODEC(DoubleDelta, LZ4),
		INDEX idx_from from_address TYPE bloom_filter GRANULARITY 4
	) ENGINE = ReplacingMergeTree
	ORDER BY (tx_hash, event_index)`,

	"contracts": `(
		contract_address String CODEC(ZSTD(1)),
		class_hash String CODEC(ZSTD(1)),
		deployed_at_block UInt64 CODEC(DoubleDelta, LZ4),
		deployer_address String CODEC(ZSTD(1)),
		constructor_calldata Array(String) CODEC(ZSTD(1))
	) ENGINE = ReplacingMergeTree
	ORDER BY (contract_address)`,

	"storage_diffs": `(
		contract_address String CODEC(ZSTD(1)),
		storage_key String CODEC(ZSTD(1)),
		old_value String CODEC(ZSTD(1)),
		new_value String CODEC(ZSTD(1)),
		block_number UInt64 CODEC(DoubleDelta, LZ4),
		tx_hash String CODEC(ZSTD(1))
	) ENGINE = ReplacingMergeTree
	ORDER BY (contract_address, storage_key, block_number)`,

	"query_executions": `(
		id String CODEC(ZSTD(1)),
		user_id String CODEC(ZSTD(1)),
		query_text String CODEC(ZSTD(1)),
		execution_time_ms Float64,
		result_size_bytes Int64,
		row_count Int32,
		cached UInt8,
		timestamp DateTime64(6) CODEC(DoubleDelta, LZ4)
	) ENGINE = MergeTree
	ORDER BY (timestamp, id)`,
}

// table creation order keeps foreign-key-shaped relations readable in logs
// even though ClickHouse enforces none of them.
var tableOrder = []string{
	"blocks", "transactions", "events", "contracts", "storage_diffs", "query_executions",
}

func (c *Client) initTables(ctx context.Context) error {
	for _, name := range tableOrder {
		query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s"."%s" %s`,
			c.Database, name, tableDDL[name])
		if err := c.Exec(ctx, query); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}
	return nil
}
