package engine

import (
	"fmt"
	"time"
)

// Result is a normalized query result: column names in driver order and rows
// of values ordered to match Columns. Values are JSON-primitive: numbers,
// strings, booleans, nil. Anything the driver returns beyond those (dates,
// binary, decimals) is coerced to string.
type Result struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"data"`
}

// RowCount returns the number of rows.
func (r *Result) RowCount() int { return len(r.Rows) }

// ColumnCount returns the number of columns.
func (r *Result) ColumnCount() int { return len(r.Columns) }

// affectedResult is the pseudo-result for a statement that produced no
// result set. The validator keeps such statements out of the normal flow,
// but the engine still answers with a clean shape if one slips through.
func affectedResult(n int64) *Result {
	return &Result{
		Columns: []string{"Result"},
		Rows:    [][]interface{}{{fmt.Sprintf("%d row(s) affected", n)}},
	}
}

// normalizeValue coerces a driver value to a JSON-primitive value.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, int64, float64, string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(val)
	}
}
