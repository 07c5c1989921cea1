package clickhouse

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/chainlens-network/chainlensx/pkg/storage"
	"github.com/chainlens-network/chainlensx/pkg/utils"
)

// compile-time contract check
var _ storage.Store = (*Client)(nil)

// Execute runs a parameterized SELECT and converts the result set into typed
// rows. Column types are discovered from the driver so arbitrary sandbox
// queries can be scanned without a static model.
func (c *Client) Execute(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols := rows.Columns()
	types := rows.ColumnTypes()

	var out []storage.Row
	for rows.Next() {
		dest := make([]any, len(types))
		for i, ct := range types {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(storage.Row, len(cols))
		for i, name := range cols {
			row[name] = storage.FromAny(reflect.ValueOf(dest[i]).Elem().Interface())
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func (c *Client) UpsertBlock(ctx context.Context, b *storage.Block) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."blocks" (
		block_number, block_hash, timestamp, parent_hash,
		sequencer_address, state_root, transaction_count
	) VALUES`, c.Database)
	batch, err := c.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	if err := batch.Append(
		b.Number, b.Hash, b.Timestamp, b.ParentHash,
		b.SequencerAddress, b.StateRoot, b.TransactionCount,
	); err != nil {
		return err
	}
	return batch.Send()
}

func (c *Client) UpsertTransaction(ctx context.Context, tx *storage.Transaction) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."transactions" (
		tx_hash, block_number, tx_index, tx_type, sender_address,
		calldata, signature, max_fee, version, nonce
	) VALUES`, c.Database)
	batch, err := c.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	if err := batch.Append(
		tx.Hash, tx.BlockNumber, tx.Index, tx.Type, tx.SenderAddress,
		tx.Calldata, tx.Signature, tx.MaxFee, tx.Version, tx.Nonce,
	); err != nil {
		return err
	}
	return batch.Send()
}

func (c *Client) UpsertEvents(ctx context.Context, events []*storage.Event) error {
	if len(events) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO "%s"."events" (
		tx_hash, event_index, from_address, keys, data, block_number, timestamp
	) VALUES`, c.Database)
	batch, err := c.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	for _, e := range events {
		if err := batch.Append(
			e.TxHash, e.Index, e.FromAddress, e.Keys, e.Data,
			e.BlockNumber, e.Timestamp,
		); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (c *Client) UpsertContract(ctx context.Context, ct *storage.Contract) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."contracts" (
		contract_address, class_hash, deployed_at_block,
		deployer_address, constructor_calldata
	) VALUES`, c.Database)
	batch, err := c.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	if err := batch.Append(
		ct.Address, ct.ClassHash, ct.DeployedAtBlock,
		ct.DeployerAddress, ct.ConstructorCalldata,
	); err != nil {
		return err
	}
	return batch.Send()
}

func (c *Client) UpsertStorageDiffs(ctx context.Context, diffs []*storage.StorageDiff) error {
	if len(diffs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO "%s"."storage_diffs" (
		contract_address, storage_key, old_value, new_value, block_number, tx_hash
	) VALUES`, c.Database)
	batch, err := c.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	for _, d := range diffs {
		if err := batch.Append(
			d.ContractAddress, d.StorageKey, d.OldValue, d.NewValue,
			d.BlockNumber, d.TxHash,
		); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (c *Client) TableExists(ctx context.Context, name string) (bool, error) {
	var count uint64
	err := c.QueryRow(ctx,
		`SELECT count() FROM system.tables WHERE database = ? AND name = ?`,
		c.Database, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return count > 0, nil
}

func (c *Client) HighestBlock(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.QueryRow(ctx,
		fmt.Sprintf(`SELECT max(block_number) FROM "%s"."blocks"`, c.Database),
	).Scan(&height)
	if err != nil {
		if IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("query highest block: %w", err)
	}
	return height, nil
}

func (c *Client) DataCounts(ctx context.Context) (storage.DataCounts, error) {
	counts := storage.DataCounts{}
	for _, t := range []struct {
		name string
		dest *uint64
	}{
		{"blocks", &counts.Blocks},
		{"transactions", &counts.Transactions},
		{"events", &counts.Events},
		{"contracts", &counts.Contracts},
		{"storage_diffs", &counts.StorageDiffs},
	} {
		err := c.QueryRow(ctx,
			fmt.Sprintf(`SELECT count() FROM "%s"."%s"`, c.Database, t.name),
		).Scan(t.dest)
		if err != nil {
			return counts, fmt.Errorf("count %s: %w", t.name, err)
		}
	}
	return counts, nil
}

func (c *Client) RecordQueryExecution(ctx context.Context, rec *storage.QueryExecution) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO "%s"."query_executions" (
		id, user_id, query_text, execution_time_ms,
		result_size_bytes, row_count, cached, timestamp
	) VALUES`, c.Database)
	batch, err := c.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	if err := batch.Append(
		rec.ID, rec.UserID, rec.QueryText, rec.ExecutionTimeMs,
		rec.ResultSizeBytes, int32(rec.RowCount), utils.BoolToUInt8(rec.Cached), rec.Timestamp,
	); err != nil {
		return err
	}
	return batch.Send()
}

func (c *Client) QueryExecutions(ctx context.Context, limit, offset int) ([]storage.QueryExecution, error) {
	rows, err := c.Query(ctx, fmt.Sprintf(`
		SELECT id, user_id, query_text, execution_time_ms,
		       result_size_bytes, row_count, cached, timestamp
		FROM "%s"."query_executions"
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`, c.Database), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var out []storage.QueryExecution
	for rows.Next() {
		var rec storage.QueryExecution
		var rowCount int32
		var cached uint8
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.QueryText, &rec.ExecutionTimeMs,
			&rec.ResultSizeBytes, &rowCount, &cached, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		rec.RowCount = int(rowCount)
		rec.Cached = cached != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (c *Client) CountQueryExecutions(ctx context.Context) (uint64, error) {
	var count uint64
	err := c.QueryRow(ctx,
		fmt.Sprintf(`SELECT count() FROM "%s"."query_executions"`, c.Database),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count query executions: %w", err)
	}
	return count, nil
}
