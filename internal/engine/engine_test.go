package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	balance REAL
);
INSERT INTO users (id, name, balance) VALUES (1, 'Ana', 10.5);
INSERT INTO users (id, name, balance) VALUES (2, 'Bob', NULL);
`

func sqliteTarget(schema string) Target {
	return Target{Kind: KindSQLiteEphemeral, SchemaScript: schema}
}

func TestExecute_SQLite(t *testing.T) {
	e := New(MySQLConfig{}, 0)

	result, err := e.Execute(context.Background(), "SELECT id, name, balance FROM users ORDER BY id", sqliteTarget(testSchema))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "balance"}, result.Columns)
	require.Equal(t, 2, result.RowCount())
	assert.Equal(t, int64(1), result.Rows[0][0])
	assert.Equal(t, "Ana", result.Rows[0][1])
	assert.Equal(t, 10.5, result.Rows[0][2])
	assert.Nil(t, result.Rows[1][2])
}

func TestExecute_SQLite_FreshDatabasePerCall(t *testing.T) {
	e := New(MySQLConfig{}, 0)
	target := sqliteTarget(testSchema)

	// Each execution loads the schema from scratch, so row counts do not
	// accumulate across calls.
	for i := 0; i < 3; i++ {
		result, err := e.Execute(context.Background(), "SELECT count(*) AS n FROM users", target)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Rows[0][0])
	}
}

func TestExecute_SQLite_ErrorCategories(t *testing.T) {
	e := New(MySQLConfig{}, 0)

	testCases := []struct {
		name     string
		query    string
		category string
	}{
		{"unknown table", "SELECT * FROM missing", CategoryUnknownTable},
		{"unknown column", "SELECT nope FROM users", CategoryUnknownColumn},
		{"syntax error", "SELEC id FROM users", CategorySyntax},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Execute(context.Background(), tc.query, sqliteTarget(testSchema))
			require.Error(t, err)
			var ee *Error
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tc.category, ee.Category)
		})
	}
}

func TestExecute_SQLite_BrokenSchema(t *testing.T) {
	e := New(MySQLConfig{}, 0)

	_, err := e.Execute(context.Background(), "SELECT 1", sqliteTarget("CREATE TABLE ("))
	require.Error(t, err)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, CategorySchema, ee.Category)
}

func TestExecute_UnsupportedKind(t *testing.T) {
	e := New(MySQLConfig{}, 0)
	_, err := e.Execute(context.Background(), "SELECT 1", Target{})
	assert.Error(t, err)
}

func TestExecutePair_SQLite(t *testing.T) {
	e := New(MySQLConfig{}, 0)

	student, reference, err := e.ExecutePair(context.Background(),
		"SELECT name FROM users ORDER BY id",
		"SELECT name FROM users ORDER BY id DESC",
		sqliteTarget(testSchema))
	require.NoError(t, err)

	assert.Equal(t, "Ana", student.Rows[0][0])
	assert.Equal(t, "Bob", reference.Rows[0][0])
}

func TestExecutePair_SQLite_ReferenceFailure(t *testing.T) {
	e := New(MySQLConfig{}, 0)

	_, _, err := e.ExecutePair(context.Background(),
		"SELECT * FROM users",
		"SELECT * FROM broken_reference",
		sqliteTarget(testSchema))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReferenceQuery)
}

func TestExecutePair_SQLite_StudentFailureIsNotReferenceFailure(t *testing.T) {
	e := New(MySQLConfig{}, 0)

	_, _, err := e.ExecutePair(context.Background(),
		"SELECT * FROM broken_student",
		"SELECT * FROM users",
		sqliteTarget(testSchema))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReferenceQuery)
}

func TestResultShaped(t *testing.T) {
	assert.True(t, resultShaped("SELECT 1"))
	assert.True(t, resultShaped("  show tables"))
	assert.True(t, resultShaped("EXPLAIN SELECT 1"))
	assert.False(t, resultShaped("INSERT INTO t VALUES (1)"))
}
