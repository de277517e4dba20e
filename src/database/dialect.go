package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour spoken by the connected server
type Dialect string

// Supported dialects
const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	MSSQL    Dialect = "sqlserver"
)

// Rebind rewrites ? placeholders into the dialect's native form.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	var prefix string
	switch d {
	case Postgres:
		prefix = "$"
	case MSSQL:
		prefix = "@p"
	default:
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteString(prefix)
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// insertStatement builds an INSERT that yields the generated id as a row
// where the dialect supports it. The second return value reports whether
// the caller must scan the id from the statement or use LastInsertId.
func (d Dialect) insertStatement(table string, columns []string) (string, bool) {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	cols := strings.Join(columns, ", ")

	switch d {
	case Postgres:
		return d.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", table, cols, marks)), true
	case MSSQL:
		return d.Rebind(fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.id VALUES (%s)", table, cols, marks)), true
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, cols, marks), false
	}
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Insert adds one row to table and returns its generated id
func (db *DB) Insert(ctx context.Context, table string, columns []string, args ...interface{}) (int64, error) {
	return insert(ctx, db.DB, db.Dialect, table, columns, args)
}

func insert(ctx context.Context, q execer, d Dialect, table string, columns []string, args []interface{}) (int64, error) {
	if len(columns) != len(args) {
		return 0, fmt.Errorf("insert into %s: %d columns but %d values", table, len(columns), len(args))
	}

	query, returnsRow := d.insertStatement(table, columns)
	if returnsRow {
		var id int64
		if err := q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// IsUniqueViolation reports whether err comes from a unique constraint
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"unique constraint",  // sqlite
		"sqlstate 23505",     // postgres
		"duplicate key",      // postgres, sqlserver
		"error 1062",         // mysql
		"duplicate entry",    // mysql
		"cannot insert duplicate",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
