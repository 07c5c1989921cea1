package storage

import "time"

// Ledger records mirror the tables in pkg/schema. They are created by the
// indexer and never deleted by the engine; upserts are idempotent so
// re-indexing a block cannot duplicate rows.

type Block struct {
	Number           uint64    `ch:"block_number" json:"block_number"`
	Hash             string    `ch:"block_hash" json:"block_hash"`
	Timestamp        time.Time `ch:"timestamp" json:"timestamp"`
	ParentHash       string    `ch:"parent_hash" json:"parent_hash"`
	SequencerAddress string    `ch:"sequencer_address" json:"sequencer_address"`
	StateRoot        string    `ch:"state_root" json:"state_root"`
	TransactionCount uint32    `ch:"transaction_count" json:"transaction_count"`
}

type Transaction struct {
	Hash          string   `ch:"tx_hash" json:"tx_hash"`
	BlockNumber   uint64   `ch:"block_number" json:"block_number"`
	Index         uint32   `ch:"tx_index" json:"tx_index"`
	Type          string   `ch:"tx_type" json:"tx_type"`
	SenderAddress string   `ch:"sender_address" json:"sender_address"`
	Calldata      []string `ch:"calldata" json:"calldata"`
	Signature     []string `ch:"signature" json:"signature"`
	MaxFee        string   `ch:"max_fee" json:"max_fee"`
	Version       string   `ch:"version" json:"version"`
	Nonce         uint64   `ch:"nonce" json:"nonce"`
}

type Event struct {
	TxHash      string    `ch:"tx_hash" json:"tx_hash"`
	Index       uint32    `ch:"event_index" json:"event_index"`
	FromAddress string    `ch:"from_address" json:"from_address"`
	Keys        []string  `ch:"keys" json:"keys"`
	Data        []string  `ch:"data" json:"data"`
	BlockNumber uint64    `ch:"block_number" json:"block_number"`
	Timestamp   time.Time `ch:"timestamp" json:"timestamp"`
}

type Contract struct {
	Address             string   `ch:"contract_address" json:"contract_address"`
	ClassHash           string   `ch:"class_hash" json:"class_hash"`
	DeployedAtBlock     uint64   `ch:"deployed_at_block" json:"deployed_at_block"`
	DeployerAddress     string   `ch:"deployer_address" json:"deployer_address"`
	ConstructorCalldata []string `ch:"constructor_calldata" json:"constructor_calldata"`
}

type StorageDiff struct {
	ContractAddress string `ch:"contract_address" json:"contract_address"`
	StorageKey      string `ch:"storage_key" json:"storage_key"`
	OldValue        string `ch:"old_value" json:"old_value"`
	NewValue        string `ch:"new_value" json:"new_value"`
	BlockNumber     uint64 `ch:"block_number" json:"block_number"`
	TxHash          string `ch:"tx_hash" json:"tx_hash"`
}

// QueryExecution is one row of the query audit log.
type QueryExecution struct {
	ID              string    `ch:"id" json:"id"`
	UserID          string    `ch:"user_id" json:"user_id"`
	QueryText       string    `ch:"query_text" json:"query_text"`
	ExecutionTimeMs float64   `ch:"execution_time_ms" json:"execution_time_ms"`
	ResultSizeBytes int64     `ch:"result_size_bytes" json:"result_size_bytes"`
	RowCount        int       `ch:"row_count" json:"row_count"`
	Cached          bool      `ch:"cached" json:"cached"`
	Timestamp       time.Time `ch:"timestamp" json:"timestamp"`
}

// DataCounts summarizes ledger table sizes for the stats endpoint.
type DataCounts struct {
	Blocks       uint64 `json:"blocks"`
	Transactions uint64 `json:"transactions"`
	Events       uint64 `json:"events"`
	Contracts    uint64 `json:"contracts"`
	StorageDiffs uint64 `json:"storage_diffs"`
}
