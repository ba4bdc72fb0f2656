package store

import "strings"

type DatabaseType string

const (
	DBTypeMySQL    DatabaseType = "mysql"
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

// DetectType infers the store flavour from the DSN scheme. Anything that is
// not postgres or mysql is treated as a sqlite path.
func DetectType(dsn string) DatabaseType {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DBTypePostgres
	case strings.HasPrefix(dsn, "mysql://"):
		return DBTypeMySQL
	default:
		return DBTypeSQLite
	}
}
