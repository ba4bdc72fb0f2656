package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sqlroom/sqlroom/internal/models"
)

// Store is the metadata store behind the grading core: questions, schema
// imports, submissions, and the admin database allowlist. The student-facing
// query databases are not behind this interface; those belong to the
// execution engine.
type Store interface {
	Close() error
	ApplyMigrations(dir string) error

	GetQuestion(id int64) (*models.Question, error)
	GetAssignmentQuestion(assignmentID, questionID int64) (*models.AssignmentQuestion, error)

	GetSchemaImport(id int64) (*models.SchemaImport, error)
	ListSchemaImportsByOwner(ownerID int64) ([]models.SchemaImport, error)
	SetActiveSchemaName(id int64, name *string) error

	UpsertSubmission(sub *models.Submission) error
	GetSubmission(studentID, questionID, assignmentID int64) (*models.Submission, error)

	ListAllowedDatabases() ([]models.AllowedDatabase, error)
	AccessibleSchemas(userID int64) ([]models.SchemaImport, error)
	ListActivePrefixes() ([]string, error)
}

// BaseStore provides the dialect-independent queries. Converter rewrites
// `?` placeholders for backends that use a different style.
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating
// dialect if needed.
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		migration := string(content)
		if translateSQL != nil {
			migration = translateSQL(migration)
		}

		for _, stmt := range strings.Split(migration, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := s.DB.Exec(stmt); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
			}
		}
	}

	return nil
}

func (s *BaseStore) GetQuestion(id int64) (*models.Question, error) {
	var question models.Question
	query := s.Converter(`
		SELECT id, title, description, difficulty, correct_answer,
		       sample_db_schema, db_type, mysql_db_name, schema_import_id,
		       author_id, created_at
		FROM questions
		WHERE id = ?
	`)

	err := s.DB.Get(&question, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

func (s *BaseStore) GetAssignmentQuestion(assignmentID, questionID int64) (*models.AssignmentQuestion, error) {
	var aq models.AssignmentQuestion
	query := s.Converter(`
		SELECT assignment_id, question_id, score, position
		FROM assignment_questions
		WHERE assignment_id = ? AND question_id = ?
	`)

	err := s.DB.Get(&aq, query, assignmentID, questionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment question: %w", err)
	}
	return &aq, nil
}

func (s *BaseStore) GetSchemaImport(id int64) (*models.SchemaImport, error) {
	var imp models.SchemaImport
	query := s.Converter(`
		SELECT id, name, description, schema_content, owner_id,
		       active_schema_name, created_at
		FROM schema_imports
		WHERE id = ?
	`)

	err := s.DB.Get(&imp, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema import: %w", err)
	}
	return &imp, nil
}

func (s *BaseStore) ListSchemaImportsByOwner(ownerID int64) ([]models.SchemaImport, error) {
	var imports []models.SchemaImport
	query := s.Converter(`
		SELECT id, name, description, schema_content, owner_id,
		       active_schema_name, created_at
		FROM schema_imports
		WHERE owner_id = ?
		ORDER BY id
	`)

	err := s.DB.Select(&imports, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema imports: %w", err)
	}
	return imports, nil
}

func (s *BaseStore) SetActiveSchemaName(id int64, name *string) error {
	query := s.Converter(`
		UPDATE schema_imports
		SET active_schema_name = ?
		WHERE id = ?
	`)

	if _, err := s.DB.Exec(query, name, id); err != nil {
		return fmt.Errorf("failed to set active schema name: %w", err)
	}
	return nil
}

func (s *BaseStore) GetSubmission(studentID, questionID, assignmentID int64) (*models.Submission, error) {
	var sub models.Submission
	query := s.Converter(`
		SELECT student_id, question_id, assignment_id, submitted_answer,
		       is_correct, feedback, submitted_at
		FROM submissions
		WHERE student_id = ? AND question_id = ? AND assignment_id = ?
	`)

	err := s.DB.Get(&sub, query, studentID, questionID, assignmentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &sub, nil
}

func (s *BaseStore) ListAllowedDatabases() ([]models.AllowedDatabase, error) {
	var databases []models.AllowedDatabase
	query := s.Converter(`
		SELECT id, database_name, description, is_active, created_by, created_at
		FROM allowed_databases
		WHERE is_active = ?
		ORDER BY database_name
	`)

	err := s.DB.Select(&databases, query, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list allowed databases: %w", err)
	}
	return databases, nil
}

// AccessibleSchemas returns the schema imports a user may query: their own,
// plus those owned by teachers of sections the user is actively enrolled in.
func (s *BaseStore) AccessibleSchemas(userID int64) ([]models.SchemaImport, error) {
	var imports []models.SchemaImport
	query := s.Converter(`
		SELECT DISTINCT si.id, si.name, si.description, si.schema_content,
		       si.owner_id, si.active_schema_name, si.created_at
		FROM schema_imports si
		WHERE si.owner_id = ?
		   OR si.owner_id IN (
			SELECT sec.creator_id
			FROM sections sec
			JOIN student_enrollments enr ON enr.section_id = sec.id
			WHERE enr.student_id = ? AND enr.is_active = ?
		   )
		ORDER BY si.id
	`)

	err := s.DB.Select(&imports, query, userID, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list accessible schemas: %w", err)
	}
	return imports, nil
}

// ListActivePrefixes returns the active_schema_name of every deployed
// import. The janitor diffs this against the live tables in the shared
// database to find orphans.
func (s *BaseStore) ListActivePrefixes() ([]string, error) {
	var prefixes []string
	err := s.DB.Select(&prefixes, `
		SELECT active_schema_name
		FROM schema_imports
		WHERE active_schema_name IS NOT NULL
		ORDER BY active_schema_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active prefixes: %w", err)
	}
	return prefixes, nil
}
