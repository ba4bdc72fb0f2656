package models

import "time"

// AllowedDatabase is an admin-curated allowlist entry naming a raw MySQL
// database that students and teachers may browse directly, independent of
// the schema-import mechanism.
type AllowedDatabase struct {
	ID           int64     `db:"id" json:"id"`
	DatabaseName string    `db:"database_name" json:"database_name" validate:"required,max=100"`
	Description  *string   `db:"description" json:"description,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedBy    int64     `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
