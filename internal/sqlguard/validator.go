// Package sqlguard enforces the DQL-only policy on user-submitted SQL.
//
// Students and teachers run arbitrary SQL text against shared databases, so
// anything that is not a plain read or inspection query has to be rejected
// before it ever reaches a connection.
package sqlguard

import (
	"fmt"
	"strings"
)

// Rule identifies which validation rule a query violated.
type Rule string

const (
	RuleEmpty          Rule = "empty"
	RuleNotReadOnly    Rule = "not_read_only"
	RuleKeyword        Rule = "forbidden_keyword"
	RulePhrase         Rule = "forbidden_phrase"
	RuleComment        Rule = "comment"
	RuleMultiStatement Rule = "multi_statement"
	RuleSystemSchema   Rule = "system_schema"
)

// ValidationError reports the specific rule a query violated, so handlers
// can surface the message verbatim as a 4xx rejection.
type ValidationError struct {
	Rule   Rule
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

func violation(rule Rule, format string, args ...interface{}) error {
	return &ValidationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// allowedStarts are the only command prefixes a query may begin with.
var allowedStarts = []string{
	"SELECT",
	"SHOW TABLES",
	"SHOW COLUMNS",
	"SHOW FIELDS",
	"SHOW DATABASES",
	"SHOW SCHEMAS",
	"DESCRIBE",
	"DESC",
	"EXPLAIN",
	"SHOW CREATE TABLE",
	"SHOW INDEX",
	"SHOW INDEXES",
	"SHOW KEYS",
}

// forbiddenKeywords covers DDL, DML, DCL, TCL, administrative, procedural,
// and lock/file operations. Membership is checked against the set of
// whitespace-delimited tokens of the uppercased query, which means a keyword
// inside a string literal still trips the check. That is deliberate current
// behavior, pinned by tests.
var forbiddenKeywords = []string{
	// DDL
	"CREATE", "DROP", "ALTER", "TRUNCATE", "RENAME",
	// DML
	"INSERT", "UPDATE", "DELETE", "REPLACE", "MERGE",
	// DCL
	"GRANT", "REVOKE", "DENY",
	// TCL
	"COMMIT", "ROLLBACK", "SAVEPOINT", "BEGIN",
	// administrative
	"USE", "SET", "RESET", "FLUSH", "KILL", "SHUTDOWN", "RESTART",
	// procedural
	"PROCEDURE", "FUNCTION", "TRIGGER", "EVENT", "CALL",
	// locks and file access
	"LOCK", "UNLOCK", "LOAD", "LOAD_FILE",
}

// forbiddenPhrases are multi-word operations checked as substrings of the
// uppercased query, independently of the token scan.
var forbiddenPhrases = []string{
	"INTO OUTFILE", "INTO DUMPFILE", "LOAD DATA", "SELECT INTO OUTFILE",
	"CREATE USER", "DROP USER", "ALTER USER", "RENAME USER", "SET PASSWORD",
	"CREATE DATABASE", "CREATE SCHEMA", "DROP DATABASE", "DROP SCHEMA",
	"ALTER DATABASE", "ALTER SCHEMA",
	"START TRANSACTION", "SET TRANSACTION",
	// LOAD_FILE as a call glues the argument onto the token, so the token
	// scan alone would miss it.
	"LOAD_FILE(",
}

// sensitiveSchemas may not appear as a FROM target.
var sensitiveSchemas = []string{
	"INFORMATION_SCHEMA", "PERFORMANCE_SCHEMA", "SYS", "MYSQL",
}

// ValidateReadOnly checks that query is a pure read/inspection statement.
// It returns nil for valid queries and a *ValidationError describing the
// violated rule otherwise. The check is purely textual and has no side
// effects.
func ValidateReadOnly(query string) error {
	if strings.TrimSpace(query) == "" {
		return violation(RuleEmpty, "query cannot be empty")
	}

	upper := strings.ToUpper(strings.TrimSpace(query))

	allowed := false
	for _, prefix := range allowedStarts {
		if strings.HasPrefix(upper, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return violation(RuleNotReadOnly,
			"only SELECT and information queries are allowed; DDL, DML, DCL, and TCL operations are forbidden")
	}

	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(upper) {
		tokens[tok] = true
	}
	for _, keyword := range forbiddenKeywords {
		if !tokens[keyword] {
			continue
		}
		// SHOW CREATE TABLE legitimately contains CREATE.
		if keyword == "CREATE" && strings.Contains(upper, "SHOW CREATE TABLE") {
			continue
		}
		return violation(RuleKeyword,
			"query contains forbidden keyword %s; only DQL queries are allowed", keyword)
	}

	for _, phrase := range forbiddenPhrases {
		if strings.Contains(upper, phrase) {
			return violation(RulePhrase,
				"query contains forbidden operation %s; only DQL queries are allowed", phrase)
		}
	}

	if strings.Contains(query, "--") {
		return violation(RuleComment, "SQL comments (--) are not allowed")
	}
	if strings.Contains(query, "#") {
		return violation(RuleComment, "SQL comments (#) are not allowed")
	}
	if strings.Contains(query, "/*") || strings.Contains(query, "*/") {
		return violation(RuleComment, "multi-line SQL comments (/* */) are not allowed")
	}

	// One trailing semicolon is fine, anything after it is statement stacking.
	parts := strings.Split(query, ";")
	if len(parts) > 2 {
		return violation(RuleMultiStatement, "multiple SQL statements are not allowed")
	}
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		return violation(RuleMultiStatement, "multiple SQL statements are not allowed")
	}

	for _, schema := range sensitiveSchemas {
		if strings.Contains(upper, "FROM "+schema) {
			return violation(RuleSystemSchema, "access to %s is restricted", schema)
		}
	}

	return nil
}
