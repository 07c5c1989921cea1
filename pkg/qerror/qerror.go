// Package qerror defines the error taxonomy shared by the validator, the
// sandbox and the indexer. Every failure in the engine maps to exactly one
// Kind; each Kind carries a deterministic user-facing message template and a
// fixed set of remediation suggestions.
package qerror

import (
	"time"
)

// Kind classifies a query failure.
type Kind string

const (
	SyntaxError     Kind = "SYNTAX_ERROR"
	ValidationError Kind = "VALIDATION_ERROR"
	ExecutionError  Kind = "EXECUTION_ERROR"
	TimeoutError    Kind = "TIMEOUT_ERROR"
	RateLimitError  Kind = "RATE_LIMIT_ERROR"
	PermissionError Kind = "PERMISSION_ERROR"
	ResourceError   Kind = "RESOURCE_ERROR"
	ConnectionError Kind = "CONNECTION_ERROR"
	DataError       Kind = "DATA_ERROR"
)

// Error is one classified query failure.
type Error struct {
	Kind        Kind      `json:"kind"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Details     string    `json:"details,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Query       string    `json:"query,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

type template struct {
	code        string
	message     string
	suggestions []string
}

var templates = map[Kind]template{
	SyntaxError: {
		code:    "QRY-001",
		message: "The query could not be parsed",
		suggestions: []string{
			"Check the query syntax near the reported position",
			"Only SELECT statements are supported",
		},
	},
	ValidationError: {
		code:    "QRY-002",
		message: "The query failed validation",
		suggestions: []string{
			"Remove any data-modifying keywords (INSERT, UPDATE, DROP, ...)",
			"Query only the published ledger tables",
		},
	},
	ExecutionError: {
		code:    "QRY-003",
		message: "The query failed during execution",
		suggestions: []string{
			"Simplify the query and retry",
			"Check column names against the table schema",
		},
	},
	TimeoutError: {
		code:    "QRY-004",
		message: "The query exceeded its time budget",
		suggestions: []string{
			"Add a LIMIT clause",
			"Narrow the WHERE conditions",
			"Filter on an indexed column such as block_number",
		},
	},
	RateLimitError: {
		code:    "QRY-005",
		message: "Too many queries, slow down",
		suggestions: []string{
			"Wait for the current one-minute window to roll over",
			"Enable result caching to reuse recent results",
		},
	},
	PermissionError: {
		code:    "QRY-006",
		message: "The query touches a table that is not available",
		suggestions: []string{
			"Query only the published ledger tables",
		},
	},
	ResourceError: {
		code:    "QRY-007",
		message: "The query is too expensive to run",
		suggestions: []string{
			"Reduce the number of joined tables",
			"Add a LIMIT clause",
			"Split the query into smaller ones",
		},
	},
	ConnectionError: {
		code:    "QRY-008",
		message: "A backing service is unreachable",
		suggestions: []string{
			"Retry shortly",
		},
	},
	DataError: {
		code:    "QRY-009",
		message: "The query returned malformed data",
		suggestions: []string{
			"Retry shortly",
			"Report the query if the problem persists",
		},
	},
}

// New builds a classified error for kind with details appended to the
// canonical message. Unknown kinds fall back to ExecutionError.
func New(kind Kind, details string) *Error {
	tpl, ok := templates[kind]
	if !ok {
		kind = ExecutionError
		tpl = templates[ExecutionError]
	}
	return &Error{
		Kind:        kind,
		Code:        tpl.code,
		Message:     tpl.message,
		Details:     details,
		Suggestions: append([]string(nil), tpl.suggestions...),
		Timestamp:   time.Now().UTC(),
	}
}

// WithQuery attaches query context to the error and returns it.
func (e *Error) WithQuery(query, userID string) *Error {
	e.Query = query
	e.UserID = userID
	return e
}

// Suggestions returns the canonical remediation suggestions for kind.
func Suggestions(kind Kind) []string {
	tpl, ok := templates[kind]
	if !ok {
		return nil
	}
	return append([]string(nil), tpl.suggestions...)
}

// Code returns the canonical machine-readable code for kind.
func Code(kind Kind) string {
	tpl, ok := templates[kind]
	if !ok {
		return templates[ExecutionError].code
	}
	return tpl.code
}
