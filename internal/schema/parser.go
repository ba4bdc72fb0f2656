// Package schema handles teacher-imported SQL dumps: splitting them into
// statements, rewriting table names under a per-import prefix, and deploying
// the result into the shared MySQL database.
package schema

import (
	"strings"
)

// linePrefixFilters are dropped line-by-line before statement splitting.
// Dump tools emit SET/transaction/USE noise and comment banners that must not
// reach the target connection.
var linePrefixFilters = []string{
	"--",
	"/*", // also covers MySQL conditional comments (/*!...)
	"SET ",
	"START TRANSACTION",
	"COMMIT",
	"USE ",
}

// bannerMarkers identify vendor banner lines (phpMyAdmin dumps) that
// occasionally appear without a comment prefix.
var bannerMarkers = []string{
	"phpMyAdmin SQL Dump",
}

func dropLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	upper := strings.ToUpper(trimmed)
	for _, prefix := range linePrefixFilters {
		if strings.HasPrefix(upper, strings.ToUpper(prefix)) {
			return true
		}
	}
	for _, marker := range bannerMarkers {
		if strings.Contains(trimmed, marker) {
			return true
		}
	}
	return false
}

// dropStatement filters statements that survived the line pass but must not
// execute: empty fragments, pure comments, and database-level admin
// statements from dump tools.
func dropStatement(stmt string) bool {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return true
	}
	if strings.HasPrefix(trimmed, "--") || strings.HasPrefix(trimmed, "/*") {
		return true
	}
	upper := strings.ToUpper(trimmed)
	for _, prefix := range []string{"CREATE DATABASE", "CREATE SCHEMA", "USE "} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return upper == "USE"
}

// SplitStatements parses a raw multi-statement SQL dump into individual
// statements, in original order. Full-line comments, SET/USE/transaction
// control, conditional-comment markers and blank lines are stripped first;
// the remaining text is split on semicolons by a single-pass scanner that
// tracks single-quoted string state, so semicolons inside literals do not
// split a statement. The unterminated tail after the last semicolon is
// treated as one more statement.
func SplitStatements(raw string) []string {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		if !dropLine(line) {
			kept = append(kept, line)
		}
	}
	text := strings.Join(kept, "\n")

	var statements []string
	var current strings.Builder
	inString := false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '\'':
			// A backslash-escaped quote does not toggle string state.
			if inString && i > 0 && text[i-1] == '\\' {
				current.WriteByte(ch)
				continue
			}
			inString = !inString
			current.WriteByte(ch)
		case ch == ';' && !inString:
			if stmt := current.String(); !dropStatement(stmt) {
				statements = append(statements, strings.TrimSpace(stmt))
			}
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if stmt := current.String(); !dropStatement(stmt) {
		statements = append(statements, strings.TrimSpace(stmt))
	}

	return statements
}

// TableNames extracts the table identifiers of every CREATE TABLE statement
// in a raw schema dump, in definition order.
func TableNames(raw string) []string {
	var names []string
	for _, stmt := range SplitStatements(raw) {
		if name, ok := CreateTableName(stmt); ok {
			names = append(names, name)
		}
	}
	return names
}

// CreateTableName returns the table identifier of a CREATE TABLE statement,
// with backticks and IF NOT EXISTS noise trimmed. ok is false for any other
// statement.
func CreateTableName(stmt string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	if !strings.HasPrefix(upper, "CREATE TABLE") {
		return "", false
	}
	rest := strings.TrimSpace(stmt[strings.Index(upper, "TABLE")+len("TABLE"):])
	if upperRest := strings.ToUpper(rest); strings.HasPrefix(upperRest, "IF NOT EXISTS") {
		rest = strings.TrimSpace(rest[len("IF NOT EXISTS"):])
	}
	if rest == "" {
		return "", false
	}
	// Identifier ends at whitespace or the column list opening paren.
	end := len(rest)
	for i, r := range rest {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' {
			end = i
			break
		}
	}
	name := strings.Trim(rest[:end], "`")
	if name == "" {
		return "", false
	}
	return name, true
}
