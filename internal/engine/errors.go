package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Error categories, stable across backends. Callers dispatch on Category and
// show Message; they never see a raw driver error.
const (
	CategorySyntax          = "syntax_error"
	CategoryUnknownColumn   = "unknown_column"
	CategoryUnknownTable    = "unknown_table"
	CategoryUnknownDatabase = "unknown_database"
	CategoryAccessDenied    = "access_denied"
	CategorySchema          = "schema_error"
	CategoryConnection      = "connection_error"
	CategoryTimeout         = "timeout"
	CategoryExecution       = "execution_error"
)

// Error is the single error shape the engine surfaces, regardless of which
// backend produced it.
type Error struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func cleanMessage(msg string) string {
	return strings.TrimSpace(strings.ReplaceAll(msg, "\n", " "))
}

func newError(category, msg string) *Error {
	return &Error{Category: category, Message: cleanMessage(msg)}
}

// mapMySQLError translates a go-sql-driver error into a stable category.
func mapMySQLError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CategoryTimeout, "query timed out")
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		msg := cleanMessage(myErr.Message)
		switch myErr.Number {
		case 1064:
			return newError(CategorySyntax, "SQL syntax error: "+msg)
		case 1054:
			return newError(CategoryUnknownColumn, "unknown column: "+msg)
		case 1146:
			return newError(CategoryUnknownTable, "table not found: "+msg)
		case 1049:
			return newError(CategoryUnknownDatabase, "unknown database: "+msg)
		case 1044, 1045, 1142:
			return newError(CategoryAccessDenied, "access denied: "+msg)
		default:
			return newError(CategoryExecution, "SQL error: "+msg)
		}
	}

	if isConnectionError(err) {
		return newError(CategoryConnection, err.Error())
	}
	return newError(CategoryExecution, err.Error())
}

// mapSQLiteError translates a mattn/go-sqlite3 error into a stable category.
// The driver exposes error text, not numeric classes, so this matches on the
// well-known message fragments.
func mapSQLiteError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CategoryTimeout, "query timed out")
	}

	msg := cleanMessage(err.Error())
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "syntax error"):
		return newError(CategorySyntax, "SQL syntax error: check your query syntax")
	case strings.Contains(lower, "no such column"):
		return newError(CategoryUnknownColumn, "unknown column: "+msg)
	case strings.Contains(lower, "no such table"):
		return newError(CategoryUnknownTable, "table not found: "+msg)
	default:
		return newError(CategoryExecution, "SQL error: "+msg)
	}
}

func isConnectionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "i/o timeout")
}
