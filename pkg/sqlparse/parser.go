// Package sqlparse turns a restricted SELECT statement into a structured plan.
// The grammar is deliberately small: one flat WHERE chain (no parenthesized
// boolean trees), simple JOIN ... ON clauses, GROUP BY, ORDER BY, LIMIT and
// OFFSET. Parse never returns a Go error; every failure is collected on the
// plan and flips its Valid flag.
package sqlparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chainlens-network/chainlensx/pkg/schema"
)

// WhereCondition is one predicate in the flat WHERE chain. Logical is the
// operator ("AND"/"OR") joining this condition to the previous one; it is
// empty on the first condition.
type WhereCondition struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Logical  string `json:"logical,omitempty"`
}

// JoinClause is one JOIN ... ON clause.
type JoinClause struct {
	Kind  string `json:"kind"` // INNER, LEFT, RIGHT, FULL
	Table string `json:"table"`
	On    string `json:"on"`
}

// OrderBy is one ORDER BY entry.
type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction"` // ASC or DESC
}

// ParsedQuery is the plan produced by Parse. It is request-scoped and
// immutable once returned.
type ParsedQuery struct {
	Kind       string           `json:"kind"`
	Columns    []string         `json:"columns"`
	Tables     []string         `json:"tables"`
	Where      []WhereCondition `json:"where,omitempty"`
	Joins      []JoinClause     `json:"joins,omitempty"`
	GroupBy    []string         `json:"group_by,omitempty"`
	OrderBy    []OrderBy        `json:"order_by,omitempty"`
	Limit      int              `json:"limit,omitempty"`  // meaningful only when HasLimit
	Offset     int              `json:"offset,omitempty"` // meaningful only when HasOffset
	HasLimit   bool             `json:"has_limit"`
	HasOffset  bool             `json:"has_offset"`
	Valid      bool             `json:"valid"`
	Errors     []string         `json:"errors,omitempty"`
	Complexity int              `json:"complexity"`
}

// clause keywords that terminate a free-form token run.
var clauseKeywords = map[string]bool{
	"FROM": true, "WHERE": true, "GROUP": true, "ORDER": true,
	"LIMIT": true, "OFFSET": true, "JOIN": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
}

type parser struct {
	tokens []string
	pos    int
	q      *ParsedQuery
}

// Parse parses text into a plan. It never returns an error: malformed input
// yields Valid=false with one entry in Errors per problem found.
func Parse(text string) *ParsedQuery {
	q := &ParsedQuery{Kind: "SELECT"}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		q.errf("empty query")
		q.finish()
		return q
	}

	tokens := tokenize(trimmed)
	// Everything after the first statement terminator is ignored; the
	// validator separately warns about stacked statements.
	for i, t := range tokens {
		if t == ";" {
			tokens = tokens[:i]
			break
		}
	}

	p := &parser{tokens: tokens, q: q}

	if len(p.tokens) == 0 {
		q.errf("empty query")
		q.finish()
		return q
	}
	if !keywordAt(p.tokens, 0, "SELECT") {
		q.Kind = strings.ToUpper(p.tokens[0])
		q.errf("only SELECT statements are supported, got %s", q.Kind)
		q.finish()
		return q
	}
	p.pos = 1

	p.parseColumns()
	p.parseTables()
	p.parseWhere()
	p.parseGroupBy()
	p.parseOrderBy()
	p.parseLimitOffset()

	if p.pos < len(p.tokens) {
		q.errf("unexpected input after statement: %q", p.tokens[p.pos])
	}

	q.finish()
	return q
}

func (q *ParsedQuery) errf(format string, args ...any) {
	q.Errors = append(q.Errors, fmt.Sprintf(format, args...))
}

func (q *ParsedQuery) finish() {
	q.Valid = len(q.Errors) == 0
	q.Complexity = q.score()
}

// score implements the fixed complexity model used for resource gating.
func (q *ParsedQuery) score() int {
	s := 1
	s += 2 * len(q.Tables)
	s += 5 * len(q.Joins)
	s += 2 * len(q.Where)
	s += 3 * len(q.GroupBy)
	s += 2 * len(q.OrderBy)
	if !q.HasLimit || q.Limit > 1000 {
		s += 10
	}
	return s
}

func (p *parser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) atClause() bool {
	t := p.peek()
	if t == "" || isLiteral(t) {
		return t == ""
	}
	return clauseKeywords[strings.ToUpper(t)]
}

// parseColumns reads the output column list up to FROM.
func (p *parser) parseColumns() {
	for p.pos < len(p.tokens) && !keywordAt(p.tokens, p.pos, "FROM") {
		t := p.next()
		if t == "," {
			continue
		}
		p.q.Columns = append(p.q.Columns, strings.ToLower(t))
	}
	if len(p.q.Columns) == 0 {
		p.q.errf("no output columns before FROM")
	}
	if p.pos >= len(p.tokens) {
		p.q.errf("missing FROM clause")
		return
	}
	p.pos++ // consume FROM
}

// parseTables reads the comma-separated source tables and any JOIN clauses.
// Joined tables are appended to Tables as well so the allowlist and the
// complexity score see every relation the statement touches.
func (p *parser) parseTables() {
	for p.pos < len(p.tokens) {
		if p.atClause() {
			break
		}
		t := p.next()
		if t == "," {
			continue
		}
		p.addTable(t)
	}

	for p.parseJoin() {
	}

	if len(p.q.Tables) == 0 {
		p.q.errf("no source table after FROM")
	}
}

func (p *parser) addTable(name string) {
	name = strings.ToLower(name)
	if !schema.IsAllowed(name) {
		p.q.errf("unknown table %q, allowed tables: %s",
			name, strings.Join(schema.TableNames(), ", "))
	}
	p.q.Tables = append(p.q.Tables, name)
}

// parseJoin consumes one [INNER|LEFT|RIGHT|FULL] JOIN table ON expr clause.
// Returns false when the next tokens are not a join.
func (p *parser) parseJoin() bool {
	kind := "INNER"
	start := p.pos
	switch {
	case keywordAt(p.tokens, p.pos, "INNER"), keywordAt(p.tokens, p.pos, "LEFT"),
		keywordAt(p.tokens, p.pos, "RIGHT"), keywordAt(p.tokens, p.pos, "FULL"):
		kind = strings.ToUpper(p.next())
		if keywordAt(p.tokens, p.pos, "OUTER") {
			p.pos++
		}
		if !keywordAt(p.tokens, p.pos, "JOIN") {
			p.pos = start
			return false
		}
		p.pos++
	case keywordAt(p.tokens, p.pos, "JOIN"):
		p.pos++
	default:
		return false
	}

	table := p.next()
	if table == "" {
		p.q.errf("JOIN missing table name")
		return false
	}
	p.addTable(table)

	if !keywordAt(p.tokens, p.pos, "ON") {
		p.q.errf("JOIN %s missing ON clause", strings.ToLower(table))
		return true
	}
	p.pos++

	var on []string
	for p.pos < len(p.tokens) && !p.atClause() {
		on = append(on, p.next())
	}
	if len(on) == 0 {
		p.q.errf("JOIN %s has empty ON expression", strings.ToLower(table))
	}

	p.q.Joins = append(p.q.Joins, JoinClause{
		Kind:  kind,
		Table: strings.ToLower(table),
		On:    strings.Join(on, " "),
	})
	return true
}

// parseWhere reads the flat condition chain: col op value (AND|OR col op value)*.
func (p *parser) parseWhere() {
	if !keywordAt(p.tokens, p.pos, "WHERE") {
		return
	}
	p.pos++

	logical := ""
	for {
		col := p.next()
		if col == "" || (clauseKeywords[strings.ToUpper(col)] && !isLiteral(col)) {
			p.q.errf("WHERE clause ends without a condition")
			p.pos--
			return
		}
		op := p.next()
		if op == "" {
			p.q.errf("condition on %q missing operator", col)
			return
		}
		val := p.next()
		if val == "" {
			p.q.errf("condition %q %s missing value", col, op)
			return
		}

		p.q.Where = append(p.q.Where, WhereCondition{
			Column:   strings.ToLower(col),
			Operator: strings.ToUpper(op),
			Value:    strings.Trim(val, "'"),
			Logical:  logical,
		})

		switch {
		case keywordAt(p.tokens, p.pos, "AND"):
			logical = "AND"
			p.pos++
		case keywordAt(p.tokens, p.pos, "OR"):
			logical = "OR"
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) parseGroupBy() {
	if !keywordAt(p.tokens, p.pos, "GROUP") {
		return
	}
	p.pos++
	if !keywordAt(p.tokens, p.pos, "BY") {
		p.q.errf("GROUP must be followed by BY")
		return
	}
	p.pos++

	for p.pos < len(p.tokens) && !p.atClause() {
		t := p.next()
		if t == "," {
			continue
		}
		p.q.GroupBy = append(p.q.GroupBy, strings.ToLower(t))
	}
	if len(p.q.GroupBy) == 0 {
		p.q.errf("GROUP BY lists no columns")
	}
}

func (p *parser) parseOrderBy() {
	if !keywordAt(p.tokens, p.pos, "ORDER") {
		return
	}
	p.pos++
	if !keywordAt(p.tokens, p.pos, "BY") {
		p.q.errf("ORDER must be followed by BY")
		return
	}
	p.pos++

	for p.pos < len(p.tokens) && !p.atClause() {
		col := p.next()
		if col == "," {
			continue
		}
		dir := "ASC"
		if keywordAt(p.tokens, p.pos, "ASC") || keywordAt(p.tokens, p.pos, "DESC") {
			dir = strings.ToUpper(p.next())
		}
		p.q.OrderBy = append(p.q.OrderBy, OrderBy{
			Column:    strings.ToLower(col),
			Direction: dir,
		})
	}
	if len(p.q.OrderBy) == 0 {
		p.q.errf("ORDER BY lists no columns")
	}
}

func (p *parser) parseLimitOffset() {
	if keywordAt(p.tokens, p.pos, "LIMIT") {
		p.pos++
		n, err := strconv.Atoi(p.peek())
		if err != nil || n < 0 {
			p.q.errf("LIMIT requires a non-negative integer, got %q", p.peek())
		} else {
			p.q.Limit = n
			p.q.HasLimit = true
		}
		p.pos++
	}
	if keywordAt(p.tokens, p.pos, "OFFSET") {
		p.pos++
		n, err := strconv.Atoi(p.peek())
		if err != nil || n < 0 {
			p.q.errf("OFFSET requires a non-negative integer, got %q", p.peek())
		} else {
			p.q.Offset = n
			p.q.HasOffset = true
		}
		p.pos++
	}
}
