// Package schema is the static registry of tables the query sandbox may touch.
// It is pure data: the parser checks table names against it, the optimizer reads
// its index catalog and cardinality hints, and the sandbox uses it as the
// allowlist. Nothing here mutates at runtime.
package schema

import "strings"

// Index describes one indexed column and why the index exists.
type Index struct {
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// Table describes a single queryable ledger table.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Indexes []Index  `json:"indexes"`
	// RowMultiplier scales the optimizer's baseline row estimate. Blocks are
	// few, events and storage diffs dominate.
	RowMultiplier float64 `json:"row_multiplier"`
	// Large marks tables where an unbounded scan is worth warning about.
	Large bool `json:"large"`
}

var tables = []Table{
	{
		Name: "blocks",
		Columns: []string{
			"block_number", "block_hash", "timestamp", "parent_hash",
			"sequencer_address", "state_root", "transaction_count",
		},
		Indexes: []Index{
			{Column: "block_number", Reason: "primary ordering, range scans"},
			{Column: "block_hash", Reason: "hash lookups"},
			{Column: "timestamp", Reason: "time-window queries"},
		},
		RowMultiplier: 1,
	},
	{
		Name: "transactions",
		Columns: []string{
			"tx_hash", "block_number", "tx_index", "tx_type", "sender_address",
			"calldata", "signature", "max_fee", "version", "nonce",
		},
		Indexes: []Index{
			{Column: "tx_hash", Reason: "hash lookups"},
			{Column: "block_number", Reason: "join to blocks, range scans"},
			{Column: "sender_address", Reason: "address activity lookups"},
		},
		RowMultiplier: 20,
		Large:         true,
	},
	{
		Name: "events",
		Columns: []string{
			"tx_hash", "event_index", "from_address", "keys", "data",
			"block_number", "timestamp",
		},
		Indexes: []Index{
			{Column: "tx_hash", Reason: "join to transactions"},
			{Column: "from_address", Reason: "contract activity lookups"},
			{Column: "block_number", Reason: "range scans"},
		},
		RowMultiplier: 100,
		Large:         true,
	},
	{
		Name: "contracts",
		Columns: []string{
			"contract_address", "class_hash", "deployed_at_block",
			"deployer_address", "constructor_calldata",
		},
		Indexes: []Index{
			{Column: "contract_address", Reason: "address lookups"},
			{Column: "class_hash", Reason: "class grouping"},
		},
		RowMultiplier: 5,
	},
	{
		Name: "storage_diffs",
		Columns: []string{
			"contract_address", "storage_key", "old_value", "new_value",
			"block_number", "tx_hash",
		},
		Indexes: []Index{
			{Column: "contract_address", Reason: "per-contract state history"},
			{Column: "block_number", Reason: "range scans"},
		},
		RowMultiplier: 200,
		Large:         true,
	},
}

var byName = func() map[string]*Table {
	m := make(map[string]*Table, len(tables))
	for i := range tables {
		m[tables[i].Name] = &tables[i]
	}
	return m
}()

// Lookup returns the table definition for name (case-insensitive).
func Lookup(name string) (*Table, bool) {
	t, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// IsAllowed reports whether name is a queryable table.
func IsAllowed(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// Tables returns all table definitions in registry order.
func Tables() []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	return out
}

// TableNames returns the allowed table names in registry order.
func TableNames() []string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	return names
}

// IndexedColumn reports whether column is covered by an index on table.
func IndexedColumn(table, column string) bool {
	t, ok := Lookup(table)
	if !ok {
		return false
	}
	col := strings.ToLower(strings.TrimSpace(column))
	// Strip a table qualifier if present (e.g. "transactions.sender_address").
	if i := strings.LastIndex(col, "."); i >= 0 {
		col = col[i+1:]
	}
	for _, idx := range t.Indexes {
		if idx.Column == col {
			return true
		}
	}
	return false
}
