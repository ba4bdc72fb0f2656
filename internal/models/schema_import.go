package models

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sqlroom/sqlroom/internal/schema"
)

// SchemaImport is a teacher-uploaded SQL dump. ActiveSchemaName holds the
// table prefix of the current deployment and is the single source of truth
// for "is this schema deployed": nil means never deployed or torn down.
type SchemaImport struct {
	ID               int64     `db:"id" json:"id"`
	Name             string    `db:"name" json:"name" validate:"required,max=100"`
	Description      *string   `db:"description" json:"description,omitempty"`
	SchemaContent    string    `db:"schema_content" json:"schema_content" validate:"required"`
	OwnerID          int64     `db:"owner_id" json:"owner_id"`
	ActiveSchemaName *string   `db:"active_schema_name" json:"active_schema_name,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Namespace returns the deployment namespace for this import. The prefix it
// derives is deterministic in (owner, schema id), so redeploys reuse the
// same prefix.
func (s *SchemaImport) Namespace() schema.Namespace {
	return schema.Namespace{OwnerID: s.OwnerID, SchemaID: s.ID}
}

// Deployed reports whether the import currently has live tables.
func (s *SchemaImport) Deployed() bool {
	return s.ActiveSchemaName != nil && *s.ActiveSchemaName != ""
}

func (s *SchemaImport) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}
