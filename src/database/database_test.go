package database

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite::memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		dialect  Dialect
		host     string
		port     int
		database string
		user     string
		wantErr  bool
	}{
		{name: "sqlite short", input: "sqlite:ecogarden.db", dialect: SQLite, database: "ecogarden.db"},
		{name: "sqlite absolute", input: "sqlite:///var/lib/ecogarden.db", dialect: SQLite, database: "/var/lib/ecogarden.db"},
		{name: "sqlite memory", input: "sqlite::memory:", dialect: SQLite, database: ":memory:"},
		{name: "bare path", input: "data/ecogarden.db", dialect: SQLite, database: "data/ecogarden.db"},
		{name: "postgres", input: "postgres://eco:secret@db:5433/garden?sslmode=require", dialect: Postgres, host: "db", port: 5433, database: "garden", user: "eco"},
		{name: "postgres default port", input: "postgresql://eco@db/garden", dialect: Postgres, host: "db", port: 5432, database: "garden", user: "eco"},
		{name: "mysql", input: "mysql://eco:secret@db/garden", dialect: MySQL, host: "db", port: 3306, database: "garden", user: "eco"},
		{name: "sqlserver database param", input: "sqlserver://sa:pw@db:1434?database=garden", dialect: MSSQL, host: "db", port: 1434, database: "garden", user: "sa"},
		{name: "empty", input: "", wantErr: true},
		{name: "sqlite without path", input: "sqlite:", wantErr: true},
		{name: "mongo", input: "mongodb://db/garden", wantErr: true},
		{name: "unknown scheme", input: "redis://db/0", wantErr: true},
		{name: "postgres without database", input: "postgres://db:5432/", wantErr: true},
		{name: "bad port", input: "mysql://db:abc/garden", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConnectionString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseConnectionString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Dialect != tt.dialect || got.Host != tt.host || got.Port != tt.port ||
				got.Database != tt.database || got.Username != tt.user {
				t.Errorf("ParseConnectionString(%q) = %+v", tt.input, got)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	config, err := ParseConnectionString("postgres://eco:secret@db/garden")
	if err != nil {
		t.Fatal(err)
	}
	driver, dsn := config.DSN()
	if driver != "pgx" || dsn != "host=db port=5432 user=eco password=secret dbname=garden sslmode=disable" {
		t.Errorf("DSN() = %q, %q", driver, dsn)
	}

	config, _ = ParseConnectionString("mysql://eco:secret@db/garden")
	if driver, dsn := config.DSN(); driver != "mysql" || dsn != "eco:secret@tcp(db:3306)/garden?charset=utf8mb4&parseTime=true&loc=UTC" {
		t.Errorf("DSN() = %q, %q", driver, dsn)
	}

	config, _ = ParseConnectionString("sqlserver://sa:pw@db?database=garden")
	if driver, _ := config.DSN(); driver != "sqlserver" {
		t.Errorf("driver = %q, want sqlserver", driver)
	}
}

func TestRebind(t *testing.T) {
	query := "SELECT id FROM advices WHERE month = ? AND text <> '?' AND id > ?"
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, query},
		{MySQL, query},
		{Postgres, "SELECT id FROM advices WHERE month = $1 AND text <> '?' AND id > $2"},
		{MSSQL, "SELECT id FROM advices WHERE month = @p1 AND text <> '?' AND id > @p2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			if got := tt.dialect.Rebind(query); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInsertStatement(t *testing.T) {
	cols := []string{"text", "month"}
	tests := []struct {
		dialect    Dialect
		want       string
		returnsRow bool
	}{
		{SQLite, "INSERT INTO advices (text, month) VALUES (?, ?)", false},
		{MySQL, "INSERT INTO advices (text, month) VALUES (?, ?)", false},
		{Postgres, "INSERT INTO advices (text, month) VALUES ($1, $2) RETURNING id", true},
		{MSSQL, "INSERT INTO advices (text, month) OUTPUT INSERTED.id VALUES (@p1, @p2)", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			got, returnsRow := tt.dialect.insertStatement("advices", cols)
			if got != tt.want || returnsRow != tt.returnsRow {
				t.Errorf("insertStatement() = %q, %v", got, returnsRow)
			}
		})
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	version, err := db.CurrentVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if version != SchemaVersion {
		t.Errorf("CurrentVersion() = %d, want %d", version, SchemaVersion)
	}

	var rows int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != len(migrations) {
		t.Errorf("schema_version has %d rows, want %d", rows, len(migrations))
	}
}

func TestInsert_AndUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	cols := []string{"email", "roles", "password", "created_at", "updated_at"}

	id, err := db.Insert(ctx, "users", cols, "a@ecogarden.com", `["ROLE_USER"]`, "x", "2024-01-01 00:00:00", "2024-01-01 00:00:00")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if id <= 0 {
		t.Errorf("Insert() id = %d", id)
	}

	_, err = db.Insert(ctx, "users", cols, "a@ecogarden.com", `["ROLE_USER"]`, "x", "2024-01-01 00:00:00", "2024-01-01 00:00:00")
	if !IsUniqueViolation(err) {
		t.Errorf("duplicate email error = %v, want unique violation", err)
	}

	if _, err := db.Insert(ctx, "users", cols, "only-one-value"); err == nil {
		t.Error("Insert() with mismatched values should fail")
	}
}

func TestForeignKey_SetNullOnDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	userID, err := db.Insert(ctx, "users", []string{"email", "roles", "password", "created_at", "updated_at"},
		"gone@ecogarden.com", `["ROLE_USER"]`, "x", "2024-01-01 00:00:00", "2024-01-01 00:00:00")
	if err != nil {
		t.Fatal(err)
	}
	adviceID, err := db.Insert(ctx, "advices", []string{"text", "month", "created_by", "created_at", "updated_at"},
		"Pailler les fraisiers", 5, userID, "2024-01-01 00:00:00", "2024-01-01 00:00:00")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID); err != nil {
		t.Fatal(err)
	}

	var author *int64
	if err := db.QueryRowContext(ctx, "SELECT created_by FROM advices WHERE id = ?", adviceID).Scan(&author); err != nil {
		t.Fatal(err)
	}
	if author != nil {
		t.Errorf("created_by = %d, want NULL after author deletion", *author)
	}
}

func TestLoadFixtures(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	opts := FixtureOptions{Rand: rand.New(rand.NewPCG(1, 2))}

	result, err := db.LoadFixtures(ctx, opts)
	if err != nil {
		t.Fatalf("LoadFixtures() error = %v", err)
	}
	if result.Users != 2 || result.Advices != FixtureAdvices {
		t.Errorf("LoadFixtures() = %+v", result)
	}

	var outOfRange int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM advices WHERE month < 1 OR month > 12").Scan(&outOfRange); err != nil {
		t.Fatal(err)
	}
	if outOfRange != 0 {
		t.Errorf("%d advices have a month outside 1..12", outOfRange)
	}

	var byAdmin int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM advices a JOIN users u ON u.id = a.created_by WHERE u.email = ?`, FixtureAdminEmail).Scan(&byAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if byAdmin != FixtureAdvices/2 {
		t.Errorf("admin authored %d advices, want %d", byAdmin, FixtureAdvices/2)
	}

	if _, err := db.LoadFixtures(ctx, opts); !errors.Is(err, ErrNotEmpty) {
		t.Errorf("second LoadFixtures() error = %v, want ErrNotEmpty", err)
	}

	if _, err := db.LoadFixtures(ctx, FixtureOptions{Force: true, Rand: opts.Rand}); err != nil {
		t.Fatalf("forced LoadFixtures() error = %v", err)
	}
	var users int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		t.Fatal(err)
	}
	if users != 2 {
		t.Errorf("users after forced reload = %d, want 2", users)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	status, _, err := db.HealthCheck(context.Background())
	if err != nil || status != "connected" {
		t.Errorf("HealthCheck() = %q, %v", status, err)
	}
}
