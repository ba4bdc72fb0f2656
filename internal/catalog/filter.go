// Package catalog presents a clean virtual catalog over the shared
// deployment database: SHOW TABLES answers hide table prefixes and foreign
// tenants' tables, SHOW DATABASES answers present deployed schemas as
// pseudo-databases next to the admin allowlist.
package catalog

import (
	"sort"
	"strings"

	"github.com/sqlroom/sqlroom/internal/engine"
)

// DeployedSchema is one schema the caller may see: its display name and the
// table prefix of its current deployment.
type DeployedSchema struct {
	Name   string
	Prefix string
}

// IsShowTables reports whether a query is a SHOW TABLES variant whose result
// needs catalog filtering.
func IsShowTables(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SHOW TABLES")
}

// IsShowDatabases reports whether a query lists databases.
func IsShowDatabases(query string) bool {
	upper := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(upper, "SHOW DATABASES") || strings.HasPrefix(upper, "SHOW SCHEMAS")
}

// FilterShowTables post-processes a SHOW TABLES result. It only applies when
// the query ran against the shared deployment database; any other database
// passes through unchanged. If exactly one of the caller's deployed schemas
// has tables in the result, those tables are returned with the prefix
// stripped and the column header replaced with a generic "Tables" label.
// When nothing matches, the raw result is returned unchanged: failing open
// to raw visibility beats hiding everything.
func FilterShowTables(result *engine.Result, targetDatabase, sharedDatabase string, schemas []DeployedSchema) *engine.Result {
	if targetDatabase != sharedDatabase || len(result.Columns) == 0 {
		return result
	}

	var matched *DeployedSchema
	for i := range schemas {
		if schemas[i].Prefix == "" {
			continue
		}
		for _, row := range result.Rows {
			if name, ok := row[0].(string); ok && strings.HasPrefix(name, schemas[i].Prefix) {
				if matched != nil && matched.Prefix != schemas[i].Prefix {
					// Ambiguous: more than one schema matches. Leave the
					// raw result alone rather than guess.
					return result
				}
				matched = &schemas[i]
			}
		}
	}
	if matched == nil {
		return result
	}

	filtered := &engine.Result{Columns: []string{"Tables"}, Rows: [][]interface{}{}}
	for _, row := range result.Rows {
		name, ok := row[0].(string)
		if !ok || !strings.HasPrefix(name, matched.Prefix) {
			continue
		}
		filtered.Rows = append(filtered.Rows, []interface{}{strings.TrimPrefix(name, matched.Prefix)})
	}
	return filtered
}

// FilterShowDatabases unions the admin allowlist with the names of schemas
// the caller may access and filters the raw SHOW DATABASES rows down to
// them. Deployed schema names appear as pseudo-databases even though they
// physically live inside the shared database.
func FilterShowDatabases(result *engine.Result, allowed []string, schemas []DeployedSchema) *engine.Result {
	visible := make(map[string]bool, len(allowed))
	for _, db := range allowed {
		visible[db] = true
	}

	names := make(map[string]bool)
	for _, row := range result.Rows {
		if name, ok := row[0].(string); ok && visible[name] {
			names[name] = true
		}
	}
	for _, schema := range schemas {
		if schema.Prefix != "" {
			names[schema.Name] = true
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	filtered := &engine.Result{Columns: []string{"Database"}, Rows: [][]interface{}{}}
	for _, name := range sorted {
		filtered.Rows = append(filtered.Rows, []interface{}{name})
	}
	return filtered
}
