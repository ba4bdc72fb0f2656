// Package engine executes validated queries against one of two backends: a
// throwaway in-memory SQLite database loaded from a schema script, or the
// shared MySQL server. Results come back in one normalized shape and errors
// in one stable taxonomy no matter which backend ran the query.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shrimpsizemoose/trekker/logger"
)

// Kind selects the backend a Target describes.
type Kind int

const (
	// KindSQLiteEphemeral runs against a fresh in-memory database created
	// from SchemaScript for this execution only.
	KindSQLiteEphemeral Kind = iota + 1
	// KindMySQLShared runs against an existing database on the shared
	// MySQL server, named by Database.
	KindMySQLShared
)

// Target describes where a query executes. Exactly one of SchemaScript or
// Database is meaningful, selected by Kind.
type Target struct {
	Kind         Kind
	SchemaScript string
	Database     string
}

// MySQLConfig carries the environment-supplied connection parameters for the
// shared MySQL server.
type MySQLConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	// SharedDatabase is the single database all imported schemas deploy
	// into, table-name prefixed.
	SharedDatabase string `toml:"shared_database"`
}

// DSN renders a go-sql-driver DSN for the given database ("" for none).
func (c MySQLConfig) DSN(database string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=false",
		c.User, c.Password, c.Host, c.Port, database)
}

// Engine executes queries. A zero Timeout means no deadline; grading and
// playground callers always set one, since students can and do submit
// unbounded cross joins.
type Engine struct {
	MySQL   MySQLConfig
	Timeout time.Duration
}

func New(cfg MySQLConfig, timeout time.Duration) *Engine {
	return &Engine{MySQL: cfg, Timeout: timeout}
}

// Execute runs a validated (and, for imported schemas, already rewritten)
// query against the target backend and returns a normalized result set.
func (e *Engine) Execute(ctx context.Context, query string, target Target) (*Result, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	switch target.Kind {
	case KindSQLiteEphemeral:
		return e.executeSQLite(ctx, query, target.SchemaScript)
	case KindMySQLShared:
		return e.executeMySQL(ctx, query, target.Database)
	default:
		return nil, fmt.Errorf("unsupported backend kind: %d", target.Kind)
	}
}

// executeSQLite creates a brand-new in-memory database, loads the schema
// script inside one transaction, then runs the query. Nothing persists
// between calls; isolation between concurrent students is the whole point of
// paying the schema-load cost every time.
//
// The database gets a unique shared-cache name so that the pool's
// connections all see the same in-memory database; with a plain :memory:
// DSN every new connection would be an empty database.
func (e *Engine) executeSQLite(ctx context.Context, query, schemaScript string) (*Result, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, newError(CategoryConnection, fmt.Sprintf("failed to open sqlite database: %v", err))
	}
	defer db.Close()

	if err := loadSchema(ctx, db, schemaScript); err != nil {
		return nil, err
	}

	result, err := runQuery(ctx, db, query)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return result, nil
}

// loadSchema replays the schema script in one transaction and rolls the
// whole load back on any statement error.
func loadSchema(ctx context.Context, db *sqlx.DB, script string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return newError(CategoryConnection, fmt.Sprintf("failed to begin schema transaction: %v", err))
	}

	for _, stmt := range strings.Split(script, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			logger.Error.Printf("Schema statement failed: %.80q: %v", stmt, err)
			return newError(CategorySchema, fmt.Sprintf("error in schema: %v", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return newError(CategorySchema, fmt.Sprintf("failed to commit schema: %v", err))
	}
	return nil
}

// executeMySQL opens a connection scoped to this call against the resolved
// database, executes, and closes.
func (e *Engine) executeMySQL(ctx context.Context, query, database string) (*Result, error) {
	db, err := sqlx.Open("mysql", e.MySQL.DSN(database))
	if err != nil {
		return nil, newError(CategoryConnection, fmt.Sprintf("failed to open mysql connection: %v", err))
	}
	defer db.Close()

	result, err := runQuery(ctx, db, query)
	if err != nil {
		return nil, mapMySQLError(err)
	}
	return result, nil
}

// resultShaped reports whether a statement is expected to produce a result
// set. Everything the validator lets through is; the exec path below is the
// defensive fallback.
func resultShaped(query string) bool {
	upper := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "PRAGMA", "WITH"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

func runQuery(ctx context.Context, db *sqlx.DB, query string) (*Result, error) {
	if !resultShaped(query) {
		res, err := db.ExecContext(ctx, query)
		if err != nil {
			return nil, err
		}
		affected, _ := res.RowsAffected()
		return affectedResult(affected), nil
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: columns, Rows: [][]interface{}{}}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(columns))
		for i, v := range values {
			row[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ErrReferenceQuery marks a failure of the teacher's reference query during
// grading. It indicates a content-authoring bug, not a student mistake, and
// callers must surface it differently.
var ErrReferenceQuery = fmt.Errorf("reference query failed")

// ExecutePair runs a student query and the reference query under equivalent
// conditions for grading. On the SQLite path both run against the same
// freshly-loaded database; on the MySQL path they run on separate
// connections against the same committed state. A reference-query failure
// comes back wrapped in ErrReferenceQuery.
func (e *Engine) ExecutePair(ctx context.Context, studentQuery, referenceQuery string, target Target) (student, reference *Result, err error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	switch target.Kind {
	case KindSQLiteEphemeral:
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		db, openErr := sqlx.Open("sqlite3", dsn)
		if openErr != nil {
			return nil, nil, newError(CategoryConnection, fmt.Sprintf("failed to open sqlite database: %v", openErr))
		}
		defer db.Close()

		if err := loadSchema(ctx, db, target.SchemaScript); err != nil {
			return nil, nil, err
		}
		student, err = runQuery(ctx, db, studentQuery)
		if err != nil {
			return nil, nil, mapSQLiteError(err)
		}
		reference, err = runQuery(ctx, db, referenceQuery)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrReferenceQuery, mapSQLiteError(err).Message)
		}
		return student, reference, nil

	case KindMySQLShared:
		student, err = e.executeMySQL(ctx, studentQuery, target.Database)
		if err != nil {
			return nil, nil, err
		}
		reference, err = e.executeMySQL(ctx, referenceQuery, target.Database)
		if err != nil {
			var ee *Error
			if errors.As(err, &ee) {
				return nil, nil, fmt.Errorf("%w: %s", ErrReferenceQuery, ee.Message)
			}
			return nil, nil, fmt.Errorf("%w: %v", ErrReferenceQuery, err)
		}
		return student, reference, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend kind: %d", target.Kind)
	}
}

// ResolveDatabase finds the physical database backing a logical name. Course
// databases may exist verbatim or under the assignment/template prefixes
// that provisioning scripts use, so all three spellings are checked against
// SHOW DATABASES.
func (e *Engine) ResolveDatabase(ctx context.Context, name string, prefixes []string) (string, error) {
	databases, err := e.ListDatabases(ctx)
	if err != nil {
		return "", err
	}

	existing := make(map[string]bool, len(databases))
	for _, db := range databases {
		existing[db] = true
	}

	candidates := []string{name}
	for _, prefix := range prefixes {
		candidates = append(candidates, prefix+name)
	}
	for _, candidate := range candidates {
		if existing[candidate] {
			return candidate, nil
		}
	}
	return "", newError(CategoryUnknownDatabase,
		fmt.Sprintf("database %q (or a prefixed version) does not exist", name))
}

// ListDatabases returns all databases on the shared server, sorted, with the
// MySQL system schemas removed.
func (e *Engine) ListDatabases(ctx context.Context) ([]string, error) {
	db, err := sqlx.Open("mysql", e.MySQL.DSN(""))
	if err != nil {
		return nil, newError(CategoryConnection, fmt.Sprintf("failed to open mysql connection: %v", err))
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, mapMySQLError(err)
	}
	defer rows.Close()

	system := map[string]bool{
		"information_schema": true,
		"performance_schema": true,
		"mysql":              true,
		"sys":                true,
	}

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapMySQLError(err)
		}
		if !system[strings.ToLower(name)] {
			databases = append(databases, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, mapMySQLError(err)
	}
	sort.Strings(databases)
	return databases, nil
}
