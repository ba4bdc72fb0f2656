package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReadOnly_Allowed(t *testing.T) {
	queries := []string{
		"SELECT * FROM users",
		"  select name, email from users where id = 1  ",
		"SHOW TABLES",
		"SHOW DATABASES",
		"SHOW COLUMNS FROM users",
		"SHOW CREATE TABLE users",
		"DESCRIBE users",
		"DESC users",
		"EXPLAIN SELECT * FROM users",
		"SELECT count(*) FROM orders; ",
	}
	for _, q := range queries {
		assert.NoError(t, ValidateReadOnly(q), "query should be allowed: %s", q)
	}
}

func TestValidateReadOnly_Rejections(t *testing.T) {
	testCases := []struct {
		name  string
		query string
		rule  Rule
	}{
		{"empty", "", RuleEmpty},
		{"whitespace only", "   \n\t ", RuleEmpty},
		{"insert", "INSERT INTO users VALUES (1)", RuleNotReadOnly},
		{"update", "UPDATE users SET name = 'x'", RuleNotReadOnly},
		{"delete", "DELETE FROM users", RuleNotReadOnly},
		{"drop", "DROP TABLE users", RuleNotReadOnly},
		{"cte", "WITH x AS (SELECT 1) SELECT * FROM x", RuleNotReadOnly},
		{"embedded drop", "SELECT * FROM users WHERE id IN (SELECT 1); DROP TABLE users", RuleKeyword},
		{"into outfile", "SELECT * FROM users INTO OUTFILE '/tmp/x'", RulePhrase},
		{"into dumpfile", "SELECT * FROM users INTO DUMPFILE '/tmp/x'", RulePhrase},
		{"load_file call", "SELECT LOAD_FILE('/etc/passwd')", RulePhrase},
		{"load_file spaced", "SELECT LOAD_FILE ('/etc/passwd')", RuleKeyword},
		{"line comment", "SELECT 1 -- sneaky", RuleComment},
		{"hash comment", "SELECT 1 # sneaky", RuleComment},
		{"block comment", "SELECT /* hidden */ 1", RuleComment},
		{"stacked statements", "SELECT 1; SELECT 2", RuleMultiStatement},
		{"mysql schema", "SELECT * FROM mysql.user", RuleSystemSchema},
		{"information_schema", "SELECT * FROM information_schema.tables", RuleSystemSchema},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateReadOnly(tc.query)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.rule, verr.Rule)
		})
	}
}

func TestValidateReadOnly_ShowCreateTableContainsCreate(t *testing.T) {
	// SHOW CREATE TABLE is the one legitimate appearance of CREATE.
	assert.NoError(t, ValidateReadOnly("SHOW CREATE TABLE orders"))
	assert.Error(t, ValidateReadOnly("SELECT 1 UNION SELECT 'CREATE TABLE x' CREATE"))
}

func TestValidateReadOnly_TrailingSemicolon(t *testing.T) {
	// One trailing semicolon is fine; content after it is not.
	assert.NoError(t, ValidateReadOnly("SELECT * FROM users;"))
	assert.Error(t, ValidateReadOnly("SELECT * FROM users; SELECT 1"))
}
