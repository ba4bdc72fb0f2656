package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phpMyAdminDump = `-- phpMyAdmin SQL Dump
-- version 5.2.0
SET SQL_MODE = "NO_AUTO_VALUE_ON_ZERO";
START TRANSACTION;
SET time_zone = "+00:00";

/*!40101 SET @OLD_CHARACTER_SET_CLIENT=@@CHARACTER_SET_CLIENT */;

CREATE DATABASE IF NOT EXISTS shop;
USE shop;

CREATE TABLE users (
  id int NOT NULL,
  name varchar(50) NOT NULL
);

INSERT INTO users (id, name) VALUES (1, 'Ana; Banana'), (2, 'Bob');

CREATE TABLE orders (
  id int NOT NULL,
  user_id int NOT NULL
);

COMMIT;
`

func TestSplitStatements_PhpMyAdminDump(t *testing.T) {
	statements := SplitStatements(phpMyAdminDump)
	require.Len(t, statements, 3)

	assert.Contains(t, statements[0], "CREATE TABLE users")
	assert.Contains(t, statements[1], "INSERT INTO users")
	assert.Contains(t, statements[2], "CREATE TABLE orders")
}

func TestSplitStatements_SemicolonInsideLiteral(t *testing.T) {
	statements := SplitStatements(`INSERT INTO t (v) VALUES ('a;b');INSERT INTO t (v) VALUES ('c')`)
	require.Len(t, statements, 2)
	assert.Equal(t, `INSERT INTO t (v) VALUES ('a;b')`, statements[0])
	assert.Equal(t, `INSERT INTO t (v) VALUES ('c')`, statements[1])
}

func TestSplitStatements_EscapedQuote(t *testing.T) {
	statements := SplitStatements(`INSERT INTO t (v) VALUES ('it\'s; fine'); SELECT 1`)
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], `it\'s; fine`)
	assert.Equal(t, "SELECT 1", statements[1])
}

func TestSplitStatements_UnterminatedTail(t *testing.T) {
	statements := SplitStatements("CREATE TABLE a (id int);\nCREATE TABLE b (id int)")
	require.Len(t, statements, 2)
	assert.Contains(t, statements[1], "CREATE TABLE b")
}

func TestSplitStatements_DropsDatabaseLevelStatements(t *testing.T) {
	raw := "CREATE DATABASE foo; CREATE SCHEMA bar; USE foo; CREATE TABLE t (id int)"
	statements := SplitStatements(raw)
	require.Len(t, statements, 1)
	assert.Contains(t, statements[0], "CREATE TABLE t")
}

func TestTableNames(t *testing.T) {
	names := TableNames(phpMyAdminDump)
	assert.Equal(t, []string{"users", "orders"}, names)
}

func TestCreateTableName(t *testing.T) {
	testCases := []struct {
		name string
		stmt string
		want string
		ok   bool
	}{
		{"plain", "CREATE TABLE users (id int)", "users", true},
		{"backticked", "CREATE TABLE `users` (id int)", "users", true},
		{"if not exists", "CREATE TABLE IF NOT EXISTS orders (id int)", "orders", true},
		{"lowercase", "create table if not exists `Order_Items` (id int)", "Order_Items", true},
		{"no space before paren", "CREATE TABLE users(id int)", "users", true},
		{"not create table", "INSERT INTO users VALUES (1)", "", false},
		{"create index", "CREATE INDEX idx ON users (id)", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CreateTableName(tc.stmt)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
