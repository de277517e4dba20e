package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Query timeouts
const (
	TimeoutSimpleSelect = 5 * time.Second
	TimeoutWrite        = 10 * time.Second
	TimeoutMigration    = 5 * time.Minute
	TimeoutTransaction  = 30 * time.Second
	TimeoutPing         = 5 * time.Second
)

// PoolConfig holds connection pool settings
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultPoolConfig returns pool settings for a small deployment
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpen:     25,
		MaxIdle:     5,
		MaxLifetime: 5 * time.Minute,
		MaxIdleTime: 1 * time.Minute,
	}
}

// ApplyPoolConfig applies pool configuration to database
func ApplyPoolConfig(db *sql.DB, cfg PoolConfig) {
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)
}

// WithTransaction executes fn within a transaction with timeout
func (db *DB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, TimeoutTransaction)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
