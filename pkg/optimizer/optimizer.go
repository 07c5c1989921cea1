// Package optimizer produces advisory guidance for a parsed plan: which
// indexes apply, a rough result-size estimate, and a normalized rewrite of
// the statement. Nothing here ever changes the query that actually executes.
package optimizer

import (
	"fmt"
	"math"
	"strings"

	"github.com/chainlens-network/chainlensx/pkg/schema"
	"github.com/chainlens-network/chainlensx/pkg/sqlparse"
)

const (
	// baselineRows is the starting estimate before table and predicate scaling.
	baselineRows = 10000
	// conditionSelectivity shrinks the estimate per WHERE condition.
	conditionSelectivity = 0.1
	// largeLimitThreshold is where a LIMIT stops being a meaningful bound.
	largeLimitThreshold = 1000
	maxJoinsBeforeWarn  = 2
)

// SuggestedIndex names an index the plan could use and why it exists.
type SuggestedIndex struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// Result is the advisory output of Optimize.
type Result struct {
	UseIndex         bool             `json:"use_index"`
	SuggestedIndexes []SuggestedIndex `json:"suggested_indexes,omitempty"`
	EstimatedRows    int64            `json:"estimated_rows"`
	OptimizedQuery   string           `json:"optimized_query"`
	Warnings         []string         `json:"warnings,omitempty"`
}

// Optimize analyzes plan and returns advice. It assumes the plan is valid;
// callers gate on plan.Valid first.
func Optimize(plan *sqlparse.ParsedQuery) Result {
	res := Result{}
	res.SuggestedIndexes = suggestIndexes(plan)
	res.UseIndex = len(res.SuggestedIndexes) > 0
	res.EstimatedRows = estimateRows(plan)
	res.OptimizedQuery = rewrite(plan)
	res.Warnings = warnings(plan)
	return res
}

// suggestIndexes matches WHERE and JOIN-ON columns against the schema's
// index catalog.
func suggestIndexes(plan *sqlparse.ParsedQuery) []SuggestedIndex {
	var out []SuggestedIndex
	seen := map[string]bool{}

	add := func(table, column string) {
		col := column
		if i := strings.LastIndex(col, "."); i >= 0 {
			// Qualified column names resolve to their own table.
			table = col[:i]
			col = col[i+1:]
		}
		t, ok := schema.Lookup(table)
		if !ok {
			return
		}
		for _, idx := range t.Indexes {
			if idx.Column != col {
				continue
			}
			key := t.Name + "." + col
			if seen[key] {
				return
			}
			seen[key] = true
			out = append(out, SuggestedIndex{Table: t.Name, Column: col, Reason: idx.Reason})
		}
	}

	for _, cond := range plan.Where {
		for _, table := range plan.Tables {
			add(table, cond.Column)
		}
	}
	for _, join := range plan.Joins {
		for _, side := range strings.Fields(join.On) {
			if strings.Contains(side, ".") {
				add(join.Table, side)
			}
		}
	}
	return out
}

// estimateRows scales a fixed baseline by relative table cardinality, shrinks
// it geometrically per condition, and clamps to LIMIT when present.
func estimateRows(plan *sqlparse.ParsedQuery) int64 {
	est := float64(baselineRows)

	multiplier := 1.0
	for _, name := range plan.Tables {
		if t, ok := schema.Lookup(name); ok && t.RowMultiplier > multiplier {
			multiplier = t.RowMultiplier
		}
	}
	est *= multiplier
	est *= math.Pow(conditionSelectivity, float64(len(plan.Where)))

	if est < 1 {
		est = 1
	}
	if plan.HasLimit && float64(plan.Limit) < est {
		est = float64(plan.Limit)
	}
	return int64(est)
}

// rewrite renders the plan back to normalized SQL text. This is the advisory
// rewrite returned to the caller; the sandbox still executes the original.
func rewrite(plan *sqlparse.ParsedQuery) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(plan.Columns, ", "))
	b.WriteString(" FROM ")

	// Joined tables appear through their JOIN clause, not the FROM list.
	joined := map[string]bool{}
	for _, j := range plan.Joins {
		joined[j.Table] = true
	}
	var from []string
	for _, t := range plan.Tables {
		if !joined[t] {
			from = append(from, t)
		}
	}
	b.WriteString(strings.Join(from, ", "))

	for _, j := range plan.Joins {
		fmt.Fprintf(&b, " %s JOIN %s ON %s", j.Kind, j.Table, j.On)
	}
	for i, c := range plan.Where {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" " + c.Logical + " ")
		}
		val := c.Value
		if !isNumeric(val) {
			val = "'" + val + "'"
		}
		fmt.Fprintf(&b, "%s %s %s", c.Column, c.Operator, val)
	}
	if len(plan.GroupBy) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(plan.GroupBy, ", "))
	}
	if len(plan.OrderBy) > 0 {
		parts := make([]string, 0, len(plan.OrderBy))
		for _, o := range plan.OrderBy {
			parts = append(parts, o.Column+" "+o.Direction)
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if plan.HasLimit {
		fmt.Fprintf(&b, " LIMIT %d", plan.Limit)
	}
	if plan.HasOffset {
		fmt.Fprintf(&b, " OFFSET %d", plan.Offset)
	}
	return b.String()
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' {
			return false
		}
	}
	return true
}

func warnings(plan *sqlparse.ParsedQuery) []string {
	var out []string

	if len(plan.Where) == 0 {
		for _, name := range plan.Tables {
			if t, ok := schema.Lookup(name); ok && t.Large {
				out = append(out, fmt.Sprintf(
					"full scan of large table %s, add WHERE conditions", t.Name))
			}
		}
	}
	if len(plan.Joins) > maxJoinsBeforeWarn {
		out = append(out, fmt.Sprintf(
			"%d joins is expensive, consider splitting the query", len(plan.Joins)))
	}
	switch {
	case !plan.HasLimit:
		out = append(out, "no LIMIT clause, results may be truncated by the sandbox")
	case plan.Limit > largeLimitThreshold:
		out = append(out, fmt.Sprintf(
			"LIMIT %d is large, consider paginating", plan.Limit))
	}
	for _, o := range plan.OrderBy {
		sorted := false
		for _, table := range plan.Tables {
			if schema.IndexedColumn(table, o.Column) {
				sorted = true
				break
			}
		}
		if !sorted {
			out = append(out, fmt.Sprintf(
				"ORDER BY %s is not backed by an index, sort will be in-memory", o.Column))
		}
	}
	return out
}
