package sqlparse

import "strings"

// tokenize splits a statement into tokens. Single-quoted string literals are
// kept as one token (quotes included), commas and parens are their own tokens,
// everything else splits on whitespace. Comparison operators glued to their
// operands ("a=1") are split out so the parser sees three tokens.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	inString := false
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inString {
			cur.WriteRune(r)
			if r == '\'' {
				// '' inside a literal is an escaped quote, not a terminator.
				if i+1 < len(runes) && runes[i+1] == '\'' {
					cur.WriteRune(runes[i+1])
					i++
					continue
				}
				inString = false
				flush()
			}
			continue
		}

		switch {
		case r == '\'':
			flush()
			inString = true
			cur.WriteRune(r)
		case r == ',' || r == '(' || r == ')' || r == ';':
			flush()
			tokens = append(tokens, string(r))
		case r == '=' || r == '<' || r == '>' || r == '!':
			flush()
			op := string(r)
			if i+1 < len(runes) && (runes[i+1] == '=' || (r == '<' && runes[i+1] == '>')) {
				op += string(runes[i+1])
				i++
			}
			tokens = append(tokens, op)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// isLiteral reports whether tok is a quoted string literal.
func isLiteral(tok string) bool {
	return len(tok) >= 2 && strings.HasPrefix(tok, "'") && strings.HasSuffix(tok, "'")
}

// keywordAt reports whether tokens[i] equals kw, case-insensitively, and is
// not a string literal.
func keywordAt(tokens []string, i int, kw string) bool {
	if i < 0 || i >= len(tokens) || isLiteral(tokens[i]) {
		return false
	}
	return strings.EqualFold(tokens[i], kw)
}
