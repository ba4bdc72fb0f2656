package postgres

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sqlroom/sqlroom/internal/models"
	"github.com/sqlroom/sqlroom/internal/store"
)

type PostgresStore struct {
	store.BaseStore
}

func NewPostgresStore(dsn, migrationsDir string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStore{BaseStore: store.BaseStore{
		DB: db,
		Converter: func(query string) string {
			out := query
			for i := 1; strings.Contains(out, "?"); i++ {
				out = strings.Replace(out, "?", fmt.Sprintf("$%d", i), 1)
			}
			return out
		},
	}}

	if err := s.ApplyMigrations(migrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) ApplyMigrations(dir string) error {
	return s.BaseStore.ApplyMigrations(dir, translateToPostgres)
}

// translateToPostgres converts the MySQL migration dialect to Postgres.
// Replacements are ordered: the longer forms must rewrite before their
// substrings do.
func translateToPostgres(sql string) string {
	replacements := [][2]string{
		{"BIGINT AUTO_INCREMENT PRIMARY KEY", "BIGSERIAL PRIMARY KEY"},
		{"INT AUTO_INCREMENT PRIMARY KEY", "SERIAL PRIMARY KEY"},
		{"DATETIME", "TIMESTAMP"},
		{"MEDIUMTEXT", "TEXT"},
		{"LONGTEXT", "TEXT"},
		// Boolean columns carry integer defaults in the MySQL dialect;
		// Postgres rejects BOOLEAN DEFAULT 0, so the default rewrites
		// together with the type.
		{"TINYINT(1) NOT NULL DEFAULT 0", "BOOLEAN NOT NULL DEFAULT FALSE"},
		{"TINYINT(1) NOT NULL DEFAULT 1", "BOOLEAN NOT NULL DEFAULT TRUE"},
		{"TINYINT(1) DEFAULT 0", "BOOLEAN DEFAULT FALSE"},
		{"TINYINT(1) DEFAULT 1", "BOOLEAN DEFAULT TRUE"},
		{"TINYINT(1)", "BOOLEAN"},
		{"ENGINE=InnoDB", ""},
		{"DEFAULT CHARSET=utf8mb4", ""},
	}
	result := sql
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r[0], r[1])
	}
	return result
}

func (s *PostgresStore) UpsertSubmission(sub *models.Submission) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO submissions
			(student_id, question_id, assignment_id, submitted_answer, is_correct, feedback, submitted_at)
		VALUES
			(:student_id, :question_id, :assignment_id, :submitted_answer, :is_correct, :feedback, :submitted_at)
		ON CONFLICT(student_id, question_id, assignment_id) DO UPDATE SET
			submitted_answer = :submitted_answer,
			is_correct = :is_correct,
			feedback = :feedback,
			submitted_at = :submitted_at
	`, sub)
	if err != nil {
		return fmt.Errorf("failed to upsert submission: %w", err)
	}
	return nil
}
