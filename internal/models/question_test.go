package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validQuestion() *Question {
	schema := "CREATE TABLE users (id int);"
	return &Question{
		Title:          "Count users",
		Difficulty:     2,
		CorrectAnswer:  "SELECT count(*) FROM users",
		DBType:         DBTypeSQLite,
		SampleDBSchema: &schema,
		AuthorID:       1,
	}
}

func TestQuestionValidate(t *testing.T) {
	assert.NoError(t, validQuestion().Validate())

	q := validQuestion()
	q.CorrectAnswer = ""
	assert.Error(t, q.Validate())

	q = validQuestion()
	q.DBType = "oracle"
	assert.Error(t, q.Validate())

	q = validQuestion()
	q.Difficulty = 9
	assert.Error(t, q.Validate())
}

func TestQuestionUsesMySQL(t *testing.T) {
	q := validQuestion()
	assert.False(t, q.UsesMySQL())

	q.DBType = DBTypeMySQL
	assert.True(t, q.UsesMySQL())

	q.DBType = DBTypeImportedSchema
	assert.True(t, q.UsesMySQL())
}

func TestSchemaImportDeployedAndNamespace(t *testing.T) {
	imp := &SchemaImport{ID: 4, OwnerID: 12, Name: "shop", SchemaContent: "CREATE TABLE t (id int);"}
	assert.False(t, imp.Deployed())
	assert.Equal(t, "schema_12_4_", imp.Namespace().Prefix())

	empty := ""
	imp.ActiveSchemaName = &empty
	assert.False(t, imp.Deployed())

	prefix := "schema_12_4_"
	imp.ActiveSchemaName = &prefix
	assert.True(t, imp.Deployed())

	assert.NoError(t, imp.Validate())
	imp.SchemaContent = ""
	assert.Error(t, imp.Validate())
}
