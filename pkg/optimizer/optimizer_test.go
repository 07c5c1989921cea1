package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlens-network/chainlensx/pkg/sqlparse"
)

func mustParse(t *testing.T, text string) *sqlparse.ParsedQuery {
	t.Helper()
	q := sqlparse.Parse(text)
	require.True(t, q.Valid, "errors: %v", q.Errors)
	return q
}

func TestOptimizeSuggestsIndexForWhereColumn(t *testing.T) {
	res := Optimize(mustParse(t, "SELECT tx_hash FROM transactions WHERE sender_address = '0xabc' LIMIT 10"))

	assert.True(t, res.UseIndex)
	require.Len(t, res.SuggestedIndexes, 1)
	assert.Equal(t, "transactions", res.SuggestedIndexes[0].Table)
	assert.Equal(t, "sender_address", res.SuggestedIndexes[0].Column)
}

func TestOptimizeNoIndexForUnindexedColumn(t *testing.T) {
	res := Optimize(mustParse(t, "SELECT tx_hash FROM transactions WHERE max_fee = '0' LIMIT 10"))

	assert.False(t, res.UseIndex)
	assert.Empty(t, res.SuggestedIndexes)
}

func TestOptimizeQualifiedJoinColumns(t *testing.T) {
	res := Optimize(mustParse(t,
		"SELECT block_number FROM blocks JOIN transactions ON blocks.block_number = transactions.block_number LIMIT 10"))

	assert.True(t, res.UseIndex)
	tables := map[string]bool{}
	for _, idx := range res.SuggestedIndexes {
		tables[idx.Table] = true
		assert.Equal(t, "block_number", idx.Column)
	}
	assert.True(t, tables["blocks"])
	assert.True(t, tables["transactions"])
}

func TestEstimateRows(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int64
	}{
		{
			name:  "baseline single table",
			query: "SELECT block_number FROM blocks",
			want:  10000, // baseline x1, no conditions
		},
		{
			name:  "table multiplier",
			query: "SELECT tx_hash FROM events",
			want:  1000000, // baseline x100
		},
		{
			name:  "conditions shrink the estimate",
			query: "SELECT tx_hash FROM events WHERE block_number > 5 AND from_address = '0x1'",
			want:  10000, // baseline x100 x0.01
		},
		{
			name:  "limit clamps",
			query: "SELECT block_number FROM blocks LIMIT 25",
			want:  25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Optimize(mustParse(t, tt.query))
			assert.Equal(t, tt.want, res.EstimatedRows)
		})
	}
}

func TestRewriteNormalizesStatement(t *testing.T) {
	res := Optimize(mustParse(t,
		"select Block_Number from  BLOCKS where block_number>10 order by block_number desc limit 5"))

	assert.Equal(t,
		"SELECT block_number FROM blocks WHERE block_number > 10 ORDER BY block_number DESC LIMIT 5",
		res.OptimizedQuery)
}

func TestRewriteQuotesStringValues(t *testing.T) {
	res := Optimize(mustParse(t,
		"SELECT tx_hash FROM transactions WHERE tx_type = 'INVOKE' LIMIT 5"))

	assert.Contains(t, res.OptimizedQuery, "tx_type = 'INVOKE'")
}

func TestWarnings(t *testing.T) {
	res := Optimize(mustParse(t, "SELECT tx_hash FROM events"))
	assert.Contains(t, res.Warnings, "full scan of large table events, add WHERE conditions")
	assert.Contains(t, res.Warnings, "no LIMIT clause, results may be truncated by the sandbox")

	res = Optimize(mustParse(t, "SELECT block_number FROM blocks LIMIT 5000"))
	assert.Contains(t, res.Warnings, "LIMIT 5000 is large, consider paginating")

	res = Optimize(mustParse(t, "SELECT tx_hash FROM transactions ORDER BY max_fee LIMIT 10"))
	assert.Contains(t, res.Warnings, "ORDER BY max_fee is not backed by an index, sort will be in-memory")

	// Indexed ORDER BY draws no sort warning.
	res = Optimize(mustParse(t, "SELECT tx_hash FROM transactions ORDER BY block_number LIMIT 10"))
	for _, w := range res.Warnings {
		assert.NotContains(t, w, "not backed by an index")
	}
}
