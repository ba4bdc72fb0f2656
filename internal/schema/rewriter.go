package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Namespace identifies one teacher's deployment of one imported schema inside
// the shared database. All isolation between tenants hangs off the prefix it
// derives, so the mapping must be deterministic and collision-free per
// (owner, schema) pair.
type Namespace struct {
	OwnerID  int64
	SchemaID int64
}

// Prefix returns the table-name prefix for this namespace.
func (n Namespace) Prefix() string {
	return fmt.Sprintf("schema_%d_%d_", n.OwnerID, n.SchemaID)
}

var referencesPattern = regexp.MustCompile("(?i)REFERENCES\\s+`?([A-Za-z0-9_]+)`?\\s*\\(")

// PrefixCreateTable rewrites a CREATE TABLE statement so the table name and
// any inline foreign-key REFERENCES targets carry prefix. It returns the
// rewritten statement and the original table name. Statements that are not
// CREATE TABLE pass through unchanged with ok=false.
func PrefixCreateTable(stmt, prefix string) (rewritten, table string, ok bool) {
	table, ok = CreateTableName(stmt)
	if !ok {
		return stmt, "", false
	}

	namePattern := regexp.MustCompile("(?i)(CREATE\\s+TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?)`?" + regexp.QuoteMeta(table) + "`?")
	rewritten = namePattern.ReplaceAllString(stmt, "${1}`"+prefix+table+"`")

	rewritten = referencesPattern.ReplaceAllStringFunc(rewritten, func(match string) string {
		sub := referencesPattern.FindStringSubmatch(match)
		ref := sub[1]
		if strings.HasPrefix(ref, prefix) {
			return match
		}
		return "REFERENCES `" + prefix + ref + "` ("
	})

	return rewritten, table, true
}

// RewriteQuery replaces every occurrence of the known logical table names in
// query with the backtick-quoted prefixed name. Backticked occurrences are
// replaced before bare word-boundary occurrences, which keeps the rewrite
// idempotent: a name that already carries the prefix is preceded by an
// underscore, so neither pattern matches it again.
//
// The bare-word replacement is heuristic. A table name appearing inside a
// quoted string value is rewritten too; callers accept that known
// false-positive rather than paying for a full SQL tokenizer.
func RewriteQuery(query string, tables []string, prefix string) string {
	rewritten := query
	for _, table := range tables {
		prefixed := "`" + prefix + table + "`"

		backticked := regexp.MustCompile("(?i)`" + regexp.QuoteMeta(table) + "`")
		rewritten = backticked.ReplaceAllString(rewritten, prefixed)

		bare := regexp.MustCompile("(?i)\\b" + regexp.QuoteMeta(table) + "\\b")
		rewritten = bare.ReplaceAllLiteralString(rewritten, prefixed)
	}
	return rewritten
}
