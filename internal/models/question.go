package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Question backend types. Exactly one of SampleDBSchema, MySQLDBName, or
// SchemaImportID is meaningful, selected by DBType.
const (
	DBTypeSQLite         = "sqlite"
	DBTypeMySQL          = "mysql"
	DBTypeImportedSchema = "imported_schema"
)

type Question struct {
	ID             int64     `db:"id" json:"id"`
	Title          string    `db:"title" json:"title" validate:"required,max=200"`
	Description    string    `db:"description" json:"description"`
	Difficulty     int       `db:"difficulty" json:"difficulty" validate:"min=1,max=5"`
	CorrectAnswer  string    `db:"correct_answer" json:"correct_answer" validate:"required"`
	SampleDBSchema *string   `db:"sample_db_schema" json:"sample_db_schema,omitempty"`
	DBType         string    `db:"db_type" json:"db_type" validate:"required,oneof=sqlite mysql imported_schema"`
	MySQLDBName    *string   `db:"mysql_db_name" json:"mysql_db_name,omitempty"`
	SchemaImportID *int64    `db:"schema_import_id" json:"schema_import_id,omitempty"`
	AuthorID       int64     `db:"author_id" json:"author_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// UsesMySQL reports whether the question executes against the shared MySQL
// server, which covers both plain mysql questions and imported schemas.
func (q *Question) UsesMySQL() bool {
	return q.DBType == DBTypeMySQL || q.DBType == DBTypeImportedSchema
}

func (q *Question) Validate() error {
	validate := validator.New()
	return validate.Struct(q)
}

// AssignmentQuestion links a question into an assignment with a score. The
// surrounding application owns assignment CRUD; the grading core only needs
// the link to exist and the score to report.
type AssignmentQuestion struct {
	AssignmentID int64 `db:"assignment_id" json:"assignment_id"`
	QuestionID   int64 `db:"question_id" json:"question_id"`
	Score        int   `db:"score" json:"score"`
	Position     int   `db:"position" json:"position"`
}
