// Package grading compares a student's query result against the reference
// result and produces a verdict with human-readable feedback.
package grading

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sqlroom/sqlroom/internal/engine"
)

// epsilon absorbs backend-specific float precision and formatting
// differences between SQLite and MySQL.
const epsilon = 1e-4

// Verdict is the outcome of one grading attempt.
type Verdict struct {
	IsCorrect bool   `json:"is_correct"`
	Feedback  string `json:"feedback"`
}

// Grader decides result-set equality. OrderSensitive controls whether rows
// are compared positionally or as a sorted set. The MySQL grading path is
// order-sensitive and the SQLite path is not; that asymmetry is inherited
// behavior kept behind this explicit flag rather than silently unified.
type Grader struct {
	OrderSensitive bool
}

// Grade compares the student result to the reference result.
func (g *Grader) Grade(student, reference *engine.Result) Verdict {
	if student.RowCount() != reference.RowCount() || student.ColumnCount() != reference.ColumnCount() {
		return Verdict{
			IsCorrect: false,
			Feedback: fmt.Sprintf(
				"Incorrect. Expected result has %d rows and %d columns, but your query returned %d rows and %d columns.",
				reference.RowCount(), reference.ColumnCount(),
				student.RowCount(), student.ColumnCount()),
		}
	}

	if missing, extra := columnDiff(student.Columns, reference.Columns); len(missing) > 0 || len(extra) > 0 {
		feedback := "Incorrect. Your query does not return the expected columns."
		if len(missing) > 0 {
			feedback += fmt.Sprintf(" Missing columns: %s.", strings.Join(missing, ", "))
		}
		if len(extra) > 0 {
			feedback += fmt.Sprintf(" Extra columns: %s.", strings.Join(extra, ", "))
		}
		return Verdict{IsCorrect: false, Feedback: feedback}
	}

	studentRows := canonicalRows(student)
	referenceRows := canonicalRows(reference)
	if !g.OrderSensitive {
		sortRows(studentRows)
		sortRows(referenceRows)
	}

	for i := range referenceRows {
		if !rowsEqual(studentRows[i], referenceRows[i]) {
			return Verdict{
				IsCorrect: false,
				Feedback:  "Incorrect. Your query does not produce the expected result.",
			}
		}
	}

	return Verdict{
		IsCorrect: true,
		Feedback:  "Correct! Your query produces the expected result.",
	}
}

// columnDiff compares column name sets, order-insensitively.
func columnDiff(student, reference []string) (missing, extra []string) {
	studentSet := make(map[string]bool, len(student))
	for _, c := range student {
		studentSet[c] = true
	}
	referenceSet := make(map[string]bool, len(reference))
	for _, c := range reference {
		referenceSet[c] = true
	}
	for _, c := range reference {
		if !studentSet[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range student {
		if !referenceSet[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

// value is the canonical form a cell is normalized to before comparison:
// either a float64 or a string. Strings that parse cleanly as numbers
// become numeric, so "3.00" from one backend equals 3 from the other.
type value struct {
	num     float64
	str     string
	numeric bool
	isNull  bool
}

func canonicalValue(v interface{}) value {
	switch val := v.(type) {
	case nil:
		return value{isNull: true}
	case int64:
		return value{num: float64(val), numeric: true}
	case float64:
		return value{num: val, numeric: true}
	case bool:
		if val {
			return value{num: 1, numeric: true}
		}
		return value{num: 0, numeric: true}
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil && strings.TrimSpace(val) != "" {
			return value{num: n, numeric: true}
		}
		return value{str: val}
	default:
		return value{str: fmt.Sprint(val)}
	}
}

func canonicalRows(r *engine.Result) [][]value {
	rows := make([][]value, len(r.Rows))
	for i, row := range r.Rows {
		canonical := make([]value, len(row))
		for j, cell := range row {
			canonical[j] = canonicalValue(cell)
		}
		rows[i] = canonical
	}
	return rows
}

func valuesEqual(a, b value) bool {
	if a.isNull || b.isNull {
		return a.isNull == b.isNull
	}
	if a.numeric && b.numeric {
		return math.Abs(a.num-b.num) < epsilon
	}
	if a.numeric != b.numeric {
		return false
	}
	return a.str == b.str
}

func rowsEqual(a, b []value) bool {
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sortRows orders rows by a stable key so order-insensitive comparison can
// run positionally afterwards.
func sortRows(rows [][]value) {
	sort.Slice(rows, func(i, j int) bool {
		return rowKey(rows[i]) < rowKey(rows[j])
	})
}

func rowKey(row []value) string {
	var b strings.Builder
	for _, v := range row {
		switch {
		case v.isNull:
			b.WriteString("\x00null")
		case v.numeric:
			fmt.Fprintf(&b, "\x00n%021.6f", v.num)
		default:
			b.WriteString("\x00s" + v.str)
		}
	}
	return b.String()
}
