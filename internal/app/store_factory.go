package app

import (
	"fmt"
	"strings"

	"github.com/sqlroom/sqlroom/internal/store"
	"github.com/sqlroom/sqlroom/internal/store/mysql"
	"github.com/sqlroom/sqlroom/internal/store/postgres"
	"github.com/sqlroom/sqlroom/internal/store/sqlite"
)

// NewStore picks the metadata store flavour from the DSN scheme.
func NewStore(dsn, migrationsDir string) (store.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	switch store.DetectType(dsn) {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(dsn, migrationsDir)
	case store.DBTypeMySQL:
		return mysql.NewMySQLStore(strings.TrimPrefix(dsn, "mysql://"), migrationsDir)
	default:
		return sqlite.NewSQLiteStore(dsn, migrationsDir)
	}
}
