package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// SchemaVersion is the latest migration known to this build
const SchemaVersion = 2

// migration is one forward step of the schema
type migration struct {
	version int
	name    string
	up      func(d Dialect) []string
}

var migrations = []migration{
	{1, "create users and advices", createTables},
	{2, "index advices by month", createMonthIndex},
}

// column types per dialect
type columnTypes struct {
	id        string
	fk        string
	text      string
	timestamp string
}

func typesFor(d Dialect) columnTypes {
	switch d {
	case Postgres:
		return columnTypes{"BIGSERIAL PRIMARY KEY", "BIGINT", "TEXT", "TIMESTAMP"}
	case MySQL:
		return columnTypes{"BIGINT AUTO_INCREMENT PRIMARY KEY", "BIGINT", "TEXT", "DATETIME(6)"}
	case MSSQL:
		return columnTypes{"BIGINT IDENTITY(1,1) PRIMARY KEY", "BIGINT", "NVARCHAR(MAX)", "DATETIME2"}
	default:
		return columnTypes{"INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER", "TEXT", "DATETIME"}
	}
}

func createTables(d Dialect) []string {
	t := typesFor(d)
	return []string{
		fmt.Sprintf(`CREATE TABLE users (
	id %s,
	email VARCHAR(180) NOT NULL UNIQUE,
	roles %s NOT NULL,
	password VARCHAR(255) NOT NULL,
	postal_code VARCHAR(10) NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL
)`, t.id, t.text, t.timestamp, t.timestamp),

		fmt.Sprintf(`CREATE TABLE advices (
	id %s,
	text %s NOT NULL,
	month SMALLINT NOT NULL,
	created_by %s NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL,
	CONSTRAINT fk_advices_created_by FOREIGN KEY (created_by) REFERENCES users (id) ON DELETE SET NULL
)`, t.id, t.text, t.fk, t.timestamp, t.timestamp),
	}
}

func createMonthIndex(Dialect) []string {
	return []string{"CREATE INDEX idx_advices_month ON advices (month)"}
}

// schemaVersionTable returns the DDL for the version bookkeeping table
func schemaVersionTable(d Dialect) string {
	t := typesFor(d)
	if d == MSSQL {
		return fmt.Sprintf(`IF OBJECT_ID(N'schema_version', N'U') IS NULL
CREATE TABLE schema_version (version INT NOT NULL PRIMARY KEY, name NVARCHAR(255) NOT NULL, applied_at %s NOT NULL)`, t.timestamp)
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at %s NOT NULL
)`, t.timestamp)
}

// CurrentVersion returns the highest applied migration, 0 for a new database
func (db *DB) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to check schema version: %w", err)
	}
	return version, nil
}

// Migrate brings the schema up to SchemaVersion. Applied steps are
// recorded in schema_version so running it again is a no-op.
func (db *DB) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, TimeoutMigration)
	defer cancel()

	if _, err := db.ExecContext(ctx, schemaVersionTable(db.Dialect)); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := db.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		log.Printf("Applying migration %d: %s", m.version, m.name)
		for _, stmt := range m.up(db.Dialect) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d failed: %w (statement: %s)", m.version, err, firstLine(stmt))
			}
		}

		insert := db.Dialect.Rebind("INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)")
		if _, err := db.ExecContext(ctx, insert, m.version, m.name, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", m.version, err)
		}
	}

	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
