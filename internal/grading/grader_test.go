package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sqlroom/sqlroom/internal/engine"
)

func result(columns []string, rows ...[]interface{}) *engine.Result {
	return &engine.Result{Columns: columns, Rows: rows}
}

func TestGrade_ExactMatch(t *testing.T) {
	g := &Grader{OrderSensitive: true}
	reference := result([]string{"id", "name"},
		[]interface{}{int64(1), "Ana"},
		[]interface{}{int64(2), "Bob"},
	)
	student := result([]string{"id", "name"},
		[]interface{}{int64(1), "Ana"},
		[]interface{}{int64(2), "Bob"},
	)

	verdict := g.Grade(student, reference)
	assert.True(t, verdict.IsCorrect)
	assert.Equal(t, "Correct! Your query produces the expected result.", verdict.Feedback)
}

func TestGrade_ShapeMismatchFeedback(t *testing.T) {
	g := &Grader{}
	reference := result([]string{"id", "name"},
		[]interface{}{int64(1), "Ana"},
		[]interface{}{int64(2), "Bob"},
	)
	student := result([]string{"id"},
		[]interface{}{int64(1)},
	)

	verdict := g.Grade(student, reference)
	assert.False(t, verdict.IsCorrect)
	assert.Equal(t,
		"Incorrect. Expected result has 2 rows and 2 columns, but your query returned 1 rows and 1 columns.",
		verdict.Feedback)
}

func TestGrade_ColumnFeedback(t *testing.T) {
	g := &Grader{}
	reference := result([]string{"id", "name"}, []interface{}{int64(1), "Ana"})
	student := result([]string{"id", "email"}, []interface{}{int64(1), "a@x.io"})

	verdict := g.Grade(student, reference)
	assert.False(t, verdict.IsCorrect)
	assert.Contains(t, verdict.Feedback, "Missing columns: name")
	assert.Contains(t, verdict.Feedback, "Extra columns: email")
}

func TestGrade_ColumnOrderDoesNotMatter(t *testing.T) {
	g := &Grader{}
	reference := result([]string{"a", "b"}, []interface{}{int64(1), int64(2)})
	student := result([]string{"b", "a"}, []interface{}{int64(1), int64(2)})

	// Same column set in a different order passes the column check; the
	// cell comparison is positional.
	verdict := g.Grade(student, reference)
	assert.True(t, verdict.IsCorrect)
}

func TestGrade_OrderSensitivity(t *testing.T) {
	reference := result([]string{"id"},
		[]interface{}{int64(1)},
		[]interface{}{int64(2)},
	)
	reversed := result([]string{"id"},
		[]interface{}{int64(2)},
		[]interface{}{int64(1)},
	)

	t.Run("order sensitive rejects reordered rows", func(t *testing.T) {
		g := &Grader{OrderSensitive: true}
		verdict := g.Grade(reversed, reference)
		assert.False(t, verdict.IsCorrect)
	})

	t.Run("order insensitive accepts reordered rows", func(t *testing.T) {
		g := &Grader{OrderSensitive: false}
		verdict := g.Grade(reversed, reference)
		assert.True(t, verdict.IsCorrect)
	})
}

func TestGrade_NumericStringEqualsNumber(t *testing.T) {
	g := &Grader{}
	// One backend returns DECIMAL columns as strings, the other as floats.
	reference := result([]string{"total"}, []interface{}{"3.00"})
	student := result([]string{"total"}, []interface{}{float64(3)})

	verdict := g.Grade(student, reference)
	assert.True(t, verdict.IsCorrect)
}

func TestGrade_FloatEpsilon(t *testing.T) {
	g := &Grader{}

	reference := result([]string{"avg"}, []interface{}{float64(0.333333)})
	near := result([]string{"avg"}, []interface{}{float64(0.3333331)})
	far := result([]string{"avg"}, []interface{}{float64(0.334)})

	assert.True(t, g.Grade(near, reference).IsCorrect)
	assert.False(t, g.Grade(far, reference).IsCorrect)
}

func TestGrade_NullHandling(t *testing.T) {
	g := &Grader{}

	reference := result([]string{"v"}, []interface{}{nil})
	matching := result([]string{"v"}, []interface{}{nil})
	nonNull := result([]string{"v"}, []interface{}{int64(0)})

	assert.True(t, g.Grade(matching, reference).IsCorrect)
	assert.False(t, g.Grade(nonNull, reference).IsCorrect)
}

func TestGrade_StringVsNumberMismatch(t *testing.T) {
	g := &Grader{}

	reference := result([]string{"v"}, []interface{}{"abc"})
	student := result([]string{"v"}, []interface{}{int64(1)})

	assert.False(t, g.Grade(student, reference).IsCorrect)
}

func TestGrade_WrongValuesFeedback(t *testing.T) {
	g := &Grader{}
	reference := result([]string{"id"}, []interface{}{int64(1)})
	student := result([]string{"id"}, []interface{}{int64(2)})

	verdict := g.Grade(student, reference)
	assert.False(t, verdict.IsCorrect)
	assert.Equal(t, "Incorrect. Your query does not produce the expected result.", verdict.Feedback)
}
