// internal/store/sqlite/store_test.go
package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlroom/sqlroom/internal/models"
)

// setupTestDB creates an in-memory store with the real migrations applied,
// which also exercises the MySQL-to-SQLite dialect translation.
func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	s, err := NewSQLiteStore(":memory:", "../../../migrations")
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		err := s.Close()
		require.NoError(t, err, "Failed to close database")
	}
	return s, cleanup
}

func seedQuestion(t *testing.T, s *SQLiteStore) int64 {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res, err := s.DB.Exec(`
		INSERT INTO questions (title, description, difficulty, correct_answer, sample_db_schema, db_type, author_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"Count users", "How many users are there?", 1,
		"SELECT count(*) FROM users", "CREATE TABLE users (id int);", models.DBTypeSQLite,
		int64(10), now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestGetQuestion(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	id := seedQuestion(t, s)

	q, err := s.GetQuestion(id)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "Count users", q.Title)
	assert.Equal(t, models.DBTypeSQLite, q.DBType)
	require.NotNil(t, q.SampleDBSchema)
	assert.Contains(t, *q.SampleDBSchema, "CREATE TABLE users")
	assert.Nil(t, q.MySQLDBName)

	missing, err := s.GetQuestion(9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertSubmission_OverwritesLatestAttempt(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	first := &models.Submission{
		StudentID:       1,
		QuestionID:      2,
		AssignmentID:    3,
		SubmittedAnswer: "SELECT 1",
		IsCorrect:       false,
		Feedback:        "Incorrect. Your query does not produce the expected result.",
		SubmittedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.UpsertSubmission(first))

	second := &models.Submission{
		StudentID:       1,
		QuestionID:      2,
		AssignmentID:    3,
		SubmittedAnswer: "SELECT count(*) FROM users",
		IsCorrect:       true,
		Feedback:        "Correct! Your query produces the expected result.",
		SubmittedAt:     time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
	}
	require.NoError(t, s.UpsertSubmission(second))

	got, err := s.GetSubmission(1, 2, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsCorrect)
	assert.Equal(t, "SELECT count(*) FROM users", got.SubmittedAnswer)

	var count int
	require.NoError(t, s.DB.Get(&count, "SELECT count(*) FROM submissions"))
	assert.Equal(t, 1, count)
}

func TestGetAssignmentQuestion(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := s.DB.Exec(`
		INSERT INTO assignment_questions (assignment_id, question_id, score, position)
		VALUES (?, ?, ?, ?)`, 5, 7, 25, 1)
	require.NoError(t, err)

	aq, err := s.GetAssignmentQuestion(5, 7)
	require.NoError(t, err)
	require.NotNil(t, aq)
	assert.Equal(t, 25, aq.Score)

	missing, err := s.GetAssignmentQuestion(5, 8)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSchemaImportLifecycle(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res, err := s.DB.Exec(`
		INSERT INTO schema_imports (name, schema_content, owner_id, created_at)
		VALUES (?, ?, ?, ?)`, "shop", "CREATE TABLE users (id int);", int64(10), now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	imp, err := s.GetSchemaImport(id)
	require.NoError(t, err)
	require.NotNil(t, imp)
	assert.False(t, imp.Deployed())

	prefix := "schema_10_1_"
	require.NoError(t, s.SetActiveSchemaName(id, &prefix))

	imp, err = s.GetSchemaImport(id)
	require.NoError(t, err)
	assert.True(t, imp.Deployed())
	assert.Equal(t, prefix, *imp.ActiveSchemaName)

	prefixes, err := s.ListActivePrefixes()
	require.NoError(t, err)
	assert.Equal(t, []string{prefix}, prefixes)

	require.NoError(t, s.SetActiveSchemaName(id, nil))
	imp, err = s.GetSchemaImport(id)
	require.NoError(t, err)
	assert.False(t, imp.Deployed())
}

func TestAccessibleSchemas(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Teacher 10 owns a schema; student 20 is enrolled in teacher 10's
	// section; student 30 is not.
	_, err := s.DB.Exec(`
		INSERT INTO schema_imports (name, schema_content, owner_id, created_at)
		VALUES (?, ?, ?, ?)`, "shop", "CREATE TABLE users (id int);", int64(10), now)
	require.NoError(t, err)

	_, err = s.DB.Exec(`
		INSERT INTO sections (name, creator_id, created_at) VALUES (?, ?, ?)`,
		"SQL 101", int64(10), now)
	require.NoError(t, err)

	_, err = s.DB.Exec(`
		INSERT INTO student_enrollments (student_id, section_id, is_active) VALUES (?, 1, 1)`,
		int64(20))
	require.NoError(t, err)

	owned, err := s.AccessibleSchemas(10)
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	enrolled, err := s.AccessibleSchemas(20)
	require.NoError(t, err)
	assert.Len(t, enrolled, 1)

	stranger, err := s.AccessibleSchemas(30)
	require.NoError(t, err)
	assert.Empty(t, stranger)
}

func TestListAllowedDatabases(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, row := range []struct {
		name   string
		active bool
	}{
		{"sakila", true},
		{"hr_course", true},
		{"retired_db", false},
	} {
		_, err := s.DB.Exec(`
			INSERT INTO allowed_databases (database_name, is_active, created_by, created_at)
			VALUES (?, ?, ?, ?)`, row.name, row.active, int64(1), now)
		require.NoError(t, err)
	}

	databases, err := s.ListAllowedDatabases()
	require.NoError(t, err)
	require.Len(t, databases, 2)
	assert.Equal(t, "hr_course", databases[0].DatabaseName)
	assert.Equal(t, "sakila", databases[1].DatabaseName)
	assert.True(t, databases[0].IsActive)
}
