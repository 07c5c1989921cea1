// Package validator is the security gate in front of the parser. It works on
// raw query text so it still flags danger in statements the parser cannot
// make sense of. Every rule is evaluated; nothing short-circuits, so the
// caller sees all problems in one pass.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/chainlens-network/chainlensx/pkg/qerror"
	"github.com/chainlens-network/chainlensx/pkg/schema"
)

// Result is the outcome of a validation pass. Errors make the query
// unrunnable, warnings and suggestions are advisory.
type Result struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	// Kind carries the taxonomy class of the first error, if any.
	Kind qerror.Kind `json:"kind,omitempty"`
}

// blockedKeywords are DDL/DML keywords rejected anywhere in the text. The
// scan is positional-blind on purpose: a blocked keyword inside a string
// literal is a tolerated false positive, never a false negative.
var blockedKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE",
	"TRUNCATE", "REPLACE", "MERGE", "GRANT", "REVOKE", "EXEC", "EXECUTE",
}

var (
	wordSplit         = regexp.MustCompile(`[^A-Za-z_]+`)
	commentAfterQuote = regexp.MustCompile(`'\s*(--|#|/\*)`)
	boolPredicate     = regexp.MustCompile(`(?i)\b(?:OR|AND)\s+('[^']*'|\w+)\s*=\s*('[^']*'|\w+)`)
	selectStar        = regexp.MustCompile(`(?i)SELECT\s+\*`)
)

// hasTautology reports whether text contains an always-true predicate such as
// OR 1=1 or OR 'a'='a'. RE2 has no backreferences, so the operand comparison
// happens here.
func hasTautology(text string) bool {
	for _, m := range boolPredicate.FindAllStringSubmatch(text, -1) {
		if strings.EqualFold(m[1], m[2]) {
			return true
		}
	}
	return false
}

// Validate applies every security rule to text and returns the merged result.
func Validate(text string) Result {
	res := Result{}
	upper := strings.ToUpper(text)
	trimmed := strings.TrimSpace(text)

	// 1. Empty input.
	if trimmed == "" {
		res.fail(qerror.ValidationError, "query is empty")
	}

	// 2. Blocked DDL/DML keywords, matched as whole words.
	words := map[string]bool{}
	for _, w := range wordSplit.Split(upper, -1) {
		if w != "" {
			words[w] = true
		}
	}
	for _, kw := range blockedKeywords {
		if words[kw] {
			res.fail(qerror.PermissionError,
				fmt.Sprintf("keyword %s is not allowed", kw))
		}
	}

	// 3. Only SELECT statements can run.
	if trimmed != "" && !words["SELECT"] {
		res.fail(qerror.ValidationError, "statement must be a SELECT")
	}

	// 4. Injection heuristics: advisory only.
	if commentAfterQuote.MatchString(text) {
		res.warn("comment marker after a quote looks like an injection attempt")
	}
	if hasTautology(text) {
		res.warn("tautological condition (e.g. OR 1=1) detected")
	}
	if strings.Contains(trimmed, ";") && !strings.HasSuffix(trimmed, ";") {
		res.warn("stacked statements via ';' are ignored after the first statement")
	}

	// 5. Unbounded scan over a known-large table.
	hasLimit := words["LIMIT"]
	hasWhere := words["WHERE"]
	if !hasLimit && !hasWhere {
		for _, t := range schema.Tables() {
			if t.Large && words[strings.ToUpper(t.Name)] {
				res.warn(fmt.Sprintf(
					"query on large table %s has neither WHERE nor LIMIT", t.Name))
			}
		}
	}

	// 6. SELECT * advisory.
	if selectStar.MatchString(text) {
		res.suggest("name the columns you need instead of SELECT *")
	}

	// 7. ORDER BY without LIMIT advisory.
	if words["ORDER"] && !hasLimit {
		res.suggest("add a LIMIT when using ORDER BY to bound the sort")
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func (r *Result) fail(kind qerror.Kind, msg string) {
	r.Errors = append(r.Errors, msg)
	if r.Kind == "" {
		r.Kind = kind
	}
}

func (r *Result) warn(msg string)    { r.Warnings = append(r.Warnings, msg) }
func (r *Result) suggest(msg string) { r.Suggestions = append(r.Suggestions, msg) }
