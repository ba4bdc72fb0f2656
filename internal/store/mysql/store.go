package mysql

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/sqlroom/sqlroom/internal/models"
	"github.com/sqlroom/sqlroom/internal/store"
)

type MySQLStore struct {
	store.BaseStore
}

func NewMySQLStore(dsn, migrationsDir string) (*MySQLStore, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	s := &MySQLStore{BaseStore: store.BaseStore{
		DB: db,
		Converter: func(query string) string {
			return query
		},
	}}

	if err := s.ApplyMigrations(migrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return s, nil
}

func (s *MySQLStore) ApplyMigrations(dir string) error {
	return s.BaseStore.ApplyMigrations(dir, nil)
}

func (s *MySQLStore) UpsertSubmission(sub *models.Submission) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO submissions
			(student_id, question_id, assignment_id, submitted_answer, is_correct, feedback, submitted_at)
		VALUES
			(:student_id, :question_id, :assignment_id, :submitted_answer, :is_correct, :feedback, :submitted_at)
		ON DUPLICATE KEY UPDATE
			submitted_answer = VALUES(submitted_answer),
			is_correct = VALUES(is_correct),
			feedback = VALUES(feedback),
			submitted_at = VALUES(submitted_at)
	`, sub)
	if err != nil {
		return fmt.Errorf("failed to upsert submission: %w", err)
	}
	return nil
}
