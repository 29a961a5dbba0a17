package relational

import (
	"strings"
)

// forbiddenKeywords mark a statement as mutating, DDL or transaction
// control. "into" covers INSERT INTO, REPLACE INTO and SELECT ... INTO
// without flagging the replace() string function.
var forbiddenKeywords = map[string]bool{
	"insert":    true,
	"update":    true,
	"delete":    true,
	"drop":      true,
	"create":    true,
	"alter":     true,
	"attach":    true,
	"detach":    true,
	"pragma":    true,
	"reindex":   true,
	"vacuum":    true,
	"truncate":  true,
	"grant":     true,
	"revoke":    true,
	"begin":     true,
	"commit":    true,
	"rollback":  true,
	"savepoint": true,
	"into":      true,
}

// fromTerminators end a FROM table list; an identifier in this set is a
// clause keyword, not a table alias.
var fromTerminators = map[string]bool{
	"where":     true,
	"group":     true,
	"order":     true,
	"limit":     true,
	"having":    true,
	"union":     true,
	"intersect": true,
	"except":    true,
	"join":      true,
	"inner":     true,
	"left":      true,
	"right":     true,
	"full":      true,
	"cross":     true,
	"natural":   true,
	"on":        true,
	"using":     true,
	"window":    true,
	"as":        true,
}

// ValidateQuery checks that the statement is a single read-only SELECT
// (or WITH...SELECT) referencing only registered tables. It never touches
// the store. Violations return ErrInvalidQuery wrapped in a *QueryError
// carrying the offending SQL.
func (r *Registry) ValidateQuery(query string) error {
	cleaned := stripLiterals(stripComments(query))
	tokens := tokenize(cleaned)

	if len(tokens) == 0 {
		return invalidQuery(query, "empty statement")
	}

	// A single trailing semicolon is tolerated; anything after one is a
	// second statement
	for i, tok := range tokens {
		if tok == ";" && i != len(tokens)-1 {
			return invalidQuery(query, "multiple statements are not allowed")
		}
	}
	if tokens[len(tokens)-1] == ";" {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return invalidQuery(query, "empty statement")
	}

	// Keyword scan first so "INSERT ..." reports the keyword rather than
	// the generic not-a-SELECT message
	for _, tok := range tokens {
		if forbiddenKeywords[tok] {
			return invalidQuery(query, "forbidden keyword %q", strings.ToUpper(tok))
		}
	}

	if tokens[0] != "select" && tokens[0] != "with" {
		return invalidQuery(query, "only read-only SELECT statements are allowed")
	}

	// Tables a FROM/JOIN may name: the registry plus any CTE declared in
	// this statement (pattern: name AS ( ... ))
	allowed := make(map[string]bool, len(r.tables))
	for _, name := range r.Names() {
		allowed[strings.ToLower(name)] = true
	}
	for i := 0; i+2 < len(tokens); i++ {
		if isIdentifier(tokens[i]) && tokens[i+1] == "as" && tokens[i+2] == "(" {
			allowed[tokens[i]] = true
		}
	}

	for i := 0; i < len(tokens); i++ {
		if tokens[i] != "from" && tokens[i] != "join" {
			continue
		}
		j := i + 1
		for j < len(tokens) {
			if tokens[j] == "(" {
				// Subquery; its own FROM is checked by this same scan
				break
			}
			name := tokens[j]
			if !isIdentifier(name) {
				break
			}
			if !allowed[name] {
				return invalidQuery(query, "unknown table %q (known tables: %s)",
					name, strings.Join(r.Names(), ", "))
			}
			j++
			// Skip an optional alias: "AS alias" or a bare alias
			if j < len(tokens) && tokens[j] == "as" {
				j += 2
			} else if j < len(tokens) && isIdentifier(tokens[j]) && !fromTerminators[tokens[j]] {
				j++
			}
			// A comma at this position continues the table list
			if j < len(tokens) && tokens[j] == "," {
				j++
				continue
			}
			break
		}
	}

	return nil
}

// stripComments removes -- line comments and /* */ block comments.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '-' && i+1 < len(s) && s[i+1] == '-' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
			continue
		}
		if s[i] == '/' && i+1 < len(s) && s[i+1] == '*' {
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i += 2
			if i > len(s) {
				i = len(s)
			}
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// stripLiterals removes the content of single-quoted string literals
// (keyword scanning must not trip on data) and unwraps double-quoted
// identifiers so quoting cannot hide a table reference.
func stripLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		switch s[i] {
		case '\'':
			i++
			for i < len(s) {
				if s[i] == '\'' {
					// '' is an escaped quote inside the literal
					if i+1 < len(s) && s[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			b.WriteString("''")
		case '"':
			i++
			for i < len(s) && s[i] != '"' {
				b.WriteByte(s[i])
				i++
			}
			i++
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// tokenize splits the cleaned statement into lowercased word tokens and
// the punctuation the validator cares about.
func tokenize(s string) []string {
	var tokens []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '(' || c == ')' || c == ',' || c == ';':
			tokens = append(tokens, string(c))
			i++
		case isWordChar(c):
			j := i
			for j < len(s) && isWordChar(s[j]) {
				j++
			}
			tokens = append(tokens, strings.ToLower(s[i:j]))
			i = j
		default:
			i++
		}
	}
	return tokens
}

func isWordChar(c byte) bool {
	return c == '_' || c == '.' || c == '$' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}

// isIdentifier reports whether a token could name a table: it starts with
// a letter or underscore and is not punctuation.
func isIdentifier(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
