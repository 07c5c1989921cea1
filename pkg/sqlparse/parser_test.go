package sqlparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleSelect(t *testing.T) {
	q := Parse("SELECT block_number, timestamp FROM blocks ORDER BY block_number DESC LIMIT 10")

	require.True(t, q.Valid, "errors: %v", q.Errors)
	assert.Equal(t, "SELECT", q.Kind)
	assert.Equal(t, []string{"block_number", "timestamp"}, q.Columns)
	assert.Equal(t, []string{"blocks"}, q.Tables)
	require.Len(t, q.OrderBy, 1)
	assert.Equal(t, OrderBy{Column: "block_number", Direction: "DESC"}, q.OrderBy[0])
	assert.Equal(t, 10, q.Limit)
	assert.True(t, q.HasLimit)
	// 1 base + 2 table + 2 order-by column, limit within bounds
	assert.Equal(t, 5, q.Complexity)
}

func TestParseWhereChain(t *testing.T) {
	q := Parse("SELECT tx_hash FROM transactions WHERE block_number > 100 AND tx_type = 'INVOKE' OR sender_address = '0xabc'")

	require.True(t, q.Valid, "errors: %v", q.Errors)
	require.Len(t, q.Where, 3)
	assert.Equal(t, WhereCondition{Column: "block_number", Operator: ">", Value: "100"}, q.Where[0])
	assert.Equal(t, WhereCondition{Column: "tx_type", Operator: "=", Value: "INVOKE", Logical: "AND"}, q.Where[1])
	assert.Equal(t, WhereCondition{Column: "sender_address", Operator: "=", Value: "0xabc", Logical: "OR"}, q.Where[2])
}

func TestParseJoin(t *testing.T) {
	q := Parse("SELECT block_number FROM blocks LEFT JOIN transactions ON blocks.block_number = transactions.block_number LIMIT 5")

	require.True(t, q.Valid, "errors: %v", q.Errors)
	assert.Equal(t, []string{"blocks", "transactions"}, q.Tables)
	require.Len(t, q.Joins, 1)
	assert.Equal(t, "LEFT", q.Joins[0].Kind)
	assert.Equal(t, "transactions", q.Joins[0].Table)
	assert.Contains(t, q.Joins[0].On, "blocks.block_number")
}

func TestParseGroupByAndOffset(t *testing.T) {
	q := Parse("SELECT tx_type FROM transactions GROUP BY tx_type ORDER BY tx_type LIMIT 20 OFFSET 40")

	require.True(t, q.Valid, "errors: %v", q.Errors)
	assert.Equal(t, []string{"tx_type"}, q.GroupBy)
	assert.Equal(t, 20, q.Limit)
	assert.Equal(t, 40, q.Offset)
	assert.True(t, q.HasOffset)
}

func TestParseLimitZero(t *testing.T) {
	q := Parse("SELECT block_number FROM blocks LIMIT 0")

	require.True(t, q.Valid, "errors: %v", q.Errors)
	assert.True(t, q.HasLimit, "LIMIT 0 is an explicit limit, not an absent one")
	assert.Equal(t, 0, q.Limit)
	// 1 base + 2 table; a bounded statement takes no unbounded-scan penalty.
	assert.Equal(t, 3, q.Complexity)
}

func TestParseOffsetWithoutLimit(t *testing.T) {
	q := Parse("SELECT block_number FROM blocks OFFSET 40")

	require.True(t, q.Valid, "errors: %v", q.Errors)
	assert.False(t, q.HasLimit)
	assert.True(t, q.HasOffset)
	assert.Equal(t, 40, q.Offset)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{
			name:    "empty",
			query:   "   ",
			wantErr: "empty query",
		},
		{
			name:    "not a select",
			query:   "DELETE FROM blocks",
			wantErr: "only SELECT statements are supported, got DELETE",
		},
		{
			name:    "missing from",
			query:   "SELECT block_number",
			wantErr: "missing FROM clause",
		},
		{
			name:    "unknown table",
			query:   "SELECT id FROM users",
			wantErr: "unknown table",
		},
		{
			name:    "dangling where",
			query:   "SELECT block_number FROM blocks WHERE",
			wantErr: "WHERE clause ends without a condition",
		},
		{
			name:    "bad limit",
			query:   "SELECT block_number FROM blocks LIMIT ten",
			wantErr: "LIMIT requires a non-negative integer",
		},
		{
			name:    "join without on",
			query:   "SELECT block_number FROM blocks JOIN transactions LIMIT 5",
			wantErr: "missing ON clause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Parse(tt.query)
			assert.False(t, q.Valid)
			require.NotEmpty(t, q.Errors)
			found := false
			for _, e := range q.Errors {
				if strings.Contains(e, tt.wantErr) {
					found = true
				}
			}
			assert.True(t, found, "expected error containing %q, got %v", tt.wantErr, q.Errors)
		})
	}
}

func TestComplexityModel(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{
			name:  "minimal with limit",
			query: "SELECT block_number FROM blocks LIMIT 1",
			want:  3, // 1 + 2 table
		},
		{
			name:  "no limit adds full-scan penalty",
			query: "SELECT block_number FROM blocks",
			want:  13, // 1 + 2 table + 10
		},
		{
			name:  "oversized limit counts as unbounded",
			query: "SELECT block_number FROM blocks LIMIT 5000",
			want:  13,
		},
		{
			name:  "join and conditions add up",
			query: "SELECT block_number FROM blocks JOIN transactions ON blocks.block_number = transactions.block_number WHERE block_number > 5 LIMIT 10",
			want:  12, // 1 + 4 tables + 5 join + 2 condition
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Parse(tt.query)
			require.True(t, q.Valid, "errors: %v", q.Errors)
			assert.Equal(t, tt.want, q.Complexity)
		})
	}
}

func TestParseStopsAtStatementTerminator(t *testing.T) {
	q := Parse("SELECT block_number FROM blocks LIMIT 7;")
	require.True(t, q.Valid, "errors: %v", q.Errors)
	assert.Equal(t, 7, q.Limit)

	// Everything after the first statement is ignored by the parser; the
	// validator is responsible for flagging the stacked text.
	q = Parse("SELECT block_number FROM blocks LIMIT 7; SELECT 1")
	require.True(t, q.Valid, "errors: %v", q.Errors)
	assert.Equal(t, []string{"blocks"}, q.Tables)
}

func TestTokenizeLiteralsAndOperators(t *testing.T) {
	q := Parse("SELECT tx_hash FROM transactions WHERE sender_address != 'it''s' LIMIT 1")

	require.True(t, q.Valid, "errors: %v", q.Errors)
	require.Len(t, q.Where, 1)
	assert.Equal(t, "!=", q.Where[0].Operator)
	assert.Equal(t, "it''s", q.Where[0].Value)
}
