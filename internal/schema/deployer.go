package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/trekker/logger"
)

// ErrNoTables is returned when a schema dump yields no CREATE TABLE
// statements after parsing. Deploying such a dump would record an active
// prefix with zero tables behind it.
var ErrNoTables = fmt.Errorf("schema contains no CREATE TABLE statements")

// Locker serializes deployments per namespace. Two concurrent deployments of
// the same namespace race on DROP/CREATE of the same prefixed tables; the
// lock closes that race. Unlock is returned as a closure so callers can
// defer it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// GrantConfig optionally grants read-only access on every created table to a
// fixed role after deployment. Grant failures are warnings, not deployment
// failures.
type GrantConfig struct {
	Enabled bool   `toml:"enabled"`
	Grantee string `toml:"grantee"`
}

// DeployResult reports what a deployment actually did. TablesCreated holds
// the prefixed tables verified to exist afterwards; StatementErrors holds
// per-statement failures that were skipped.
type DeployResult struct {
	Prefix          string   `json:"prefix"`
	TablesCreated   []string `json:"tables_created"`
	StatementErrors []string `json:"statement_errors,omitempty"`
}

// Deployer replays parsed schema dumps into the shared MySQL database under
// a namespace prefix. Deployment is partial-failure-tolerant at the
// statement level: a broken statement is logged and skipped, a broken
// connection aborts the whole deployment.
type Deployer struct {
	db     *sqlx.DB
	locker Locker
	grants GrantConfig
}

func NewDeployer(db *sqlx.DB, locker Locker, grants GrantConfig) *Deployer {
	return &Deployer{db: db, locker: locker, grants: grants}
}

// Deploy drops any stale tables under the namespace prefix, creates the
// schema's tables with prefixed names, and replays the remaining statements
// (inserts, alters) with table references rewritten. It returns the prefix
// and the list of tables that verifiably exist afterwards.
func (d *Deployer) Deploy(ctx context.Context, ns Namespace, content string) (*DeployResult, error) {
	unlock, err := d.locker.Lock(ctx, ns.Prefix())
	if err != nil {
		return nil, fmt.Errorf("failed to acquire deploy lock: %w", err)
	}
	defer unlock()

	prefix := ns.Prefix()

	if err := d.dropPrefixed(ctx, prefix); err != nil {
		return nil, err
	}

	statements := SplitStatements(content)
	result := &DeployResult{Prefix: prefix}

	// Pass 1: CREATE TABLE statements, recording original -> prefixed names.
	tables := make(map[string]string)
	var tableOrder []string
	for _, stmt := range statements {
		rewritten, original, ok := PrefixCreateTable(stmt, prefix)
		if !ok {
			continue
		}
		if _, err := d.db.ExecContext(ctx, rewritten); err != nil {
			logger.Error.Printf("Failed to create table %s%s: %v", prefix, original, err)
			result.StatementErrors = append(result.StatementErrors,
				fmt.Sprintf("create %s: %v", original, err))
			continue
		}
		tables[original] = prefix + original
		tableOrder = append(tableOrder, original)
	}
	if len(tableOrder) == 0 && len(result.StatementErrors) == 0 {
		return nil, ErrNoTables
	}

	// Pass 2: everything else, with known table references rewritten.
	// Statements that mention no known table execute unmodified.
	for _, stmt := range statements {
		if _, ok := CreateTableName(stmt); ok {
			continue
		}
		rewritten := RewriteQuery(stmt, tableOrder, prefix)
		if _, err := d.db.ExecContext(ctx, rewritten); err != nil {
			logger.Error.Printf("Failed to replay statement %.60q: %v", stmt, err)
			result.StatementErrors = append(result.StatementErrors,
				fmt.Sprintf("replay: %v", err))
		}
	}

	created, err := d.ListPrefixed(ctx, prefix)
	if err != nil {
		return nil, err
	}
	result.TablesCreated = created

	if d.grants.Enabled {
		for _, table := range created {
			grant := fmt.Sprintf("GRANT SELECT ON `%s` TO %s", table, d.grants.Grantee)
			if _, err := d.db.ExecContext(ctx, grant); err != nil {
				logger.Error.Printf("Warning: could not grant SELECT on %s to %s: %v",
					table, d.grants.Grantee, err)
			}
		}
	}

	logger.Info.Printf("Deployed namespace %s: %d tables, %d statement errors",
		prefix, len(result.TablesCreated), len(result.StatementErrors))

	return result, nil
}

// Teardown drops every table under the namespace prefix.
func (d *Deployer) Teardown(ctx context.Context, ns Namespace) error {
	unlock, err := d.locker.Lock(ctx, ns.Prefix())
	if err != nil {
		return fmt.Errorf("failed to acquire deploy lock: %w", err)
	}
	defer unlock()

	return d.dropPrefixed(ctx, ns.Prefix())
}

// ListPrefixed returns the tables currently deployed under prefix.
func (d *Deployer) ListPrefixed(ctx context.Context, prefix string) ([]string, error) {
	rows, err := d.db.QueryxContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		if strings.HasPrefix(name, prefix) {
			tables = append(tables, name)
		}
	}
	return tables, rows.Err()
}

// GlobalPrefix is the common prefix of every namespaced table, used to sweep
// for orphans without touching unmanaged tables in the shared database.
const GlobalPrefix = "schema_"

// namespacedTable matches the exact shape Namespace.Prefix produces. The
// sweep must never classify application tables that merely share the word
// (schema_imports lives in the same database when the metadata store points
// at it) as namespaced.
var namespacedTable = regexp.MustCompile(`^schema_[0-9]+_[0-9]+_`)

// DropOrphans removes namespaced tables whose prefix is not in the active
// set. Orphans accumulate when an import row is deleted without a teardown or
// a deployment dies between DROP and the prefix update.
func (d *Deployer) DropOrphans(ctx context.Context, activePrefixes []string) ([]string, error) {
	tables, err := d.ListPrefixed(ctx, GlobalPrefix)
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, table := range tables {
		if !namespacedTable.MatchString(table) {
			continue
		}
		live := false
		for _, prefix := range activePrefixes {
			if prefix != "" && strings.HasPrefix(table, prefix) {
				live = true
				break
			}
		}
		if !live {
			orphans = append(orphans, table)
		}
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	if _, err := d.db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return nil, fmt.Errorf("failed to disable foreign key checks: %w", err)
	}
	defer func() {
		if _, err := d.db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1"); err != nil {
			logger.Error.Printf("Failed to re-enable foreign key checks: %v", err)
		}
	}()

	var dropped []string
	for _, table := range orphans {
		if _, err := d.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table)); err != nil {
			logger.Error.Printf("Failed to drop orphan table %s: %v", table, err)
			continue
		}
		dropped = append(dropped, table)
	}
	return dropped, nil
}

// dropPrefixed removes all tables under prefix with foreign-key checking
// disabled; prefixed tables reference each other and drop order is otherwise
// significant.
func (d *Deployer) dropPrefixed(ctx context.Context, prefix string) error {
	stale, err := d.ListPrefixed(ctx, prefix)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	if _, err := d.db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return fmt.Errorf("failed to disable foreign key checks: %w", err)
	}
	defer func() {
		if _, err := d.db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1"); err != nil {
			logger.Error.Printf("Failed to re-enable foreign key checks: %v", err)
		}
	}()

	for _, table := range stale {
		if _, err := d.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table)); err != nil {
			return fmt.Errorf("failed to drop stale table %s: %w", table, err)
		}
	}
	logger.Debug.Printf("Dropped %d stale tables under prefix %s", len(stale), prefix)
	return nil
}
