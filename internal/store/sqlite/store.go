package sqlite

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlroom/sqlroom/internal/models"
	"github.com/sqlroom/sqlroom/internal/store"
)

type SQLiteStore struct {
	store.BaseStore
}

func NewSQLiteStore(dsn, migrationsDir string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	// One connection keeps :memory: databases coherent; a second pooled
	// connection would see its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{BaseStore: store.BaseStore{
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

func (s *SQLiteStore) ApplyMigrations(dir string) error {
	return s.BaseStore.ApplyMigrations(dir, translateToSQLite)
}

// translateToSQLite converts the MySQL migration dialect to SQLite.
// Replacements are ordered: the longer forms must rewrite before their
// substrings do.
func translateToSQLite(sql string) string {
	replacements := [][2]string{
		{"BIGINT AUTO_INCREMENT PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT"},
		{"INT AUTO_INCREMENT PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT"},
		{"BIGINT", "INTEGER"},
		{"DATETIME", "TIMESTAMP"},
		{"MEDIUMTEXT", "TEXT"},
		{"LONGTEXT", "TEXT"},
		{"VARCHAR(100)", "TEXT"},
		{"VARCHAR(200)", "TEXT"},
		{"TINYINT(1)", "INTEGER"},
		{"ENGINE=InnoDB", ""},
		{"DEFAULT CHARSET=utf8mb4", ""},
	}
	result := sql
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r[0], r[1])
	}
	return result
}

func (s *SQLiteStore) UpsertSubmission(sub *models.Submission) error {
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
