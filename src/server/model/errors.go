// Package models holds the persisted domain types and their queries
package models

import (
	"database/sql"
	"errors"
	"time"

	"github.com/apimgr/ecogarden/src/server/metrics"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when an email is already registered
	ErrDuplicateEmail = errors.New("email already registered")
)

// observe records query metrics. A missing row is not a database error.
func observe(operation, table string, start time.Time, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
}
