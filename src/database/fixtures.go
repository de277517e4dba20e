package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/apimgr/ecogarden/src/utils"
)

// ErrNotEmpty is returned when fixtures would overwrite existing users
var ErrNotEmpty = errors.New("database already contains users")

// Demo accounts created by LoadFixtures
const (
	FixtureUserEmail  = "user@ecogarden.com"
	FixtureAdminEmail = "admin@ecogarden.com"
	FixturePassword   = "password123"
	FixtureAdvices    = 30
)

// FixtureOptions controls LoadFixtures
type FixtureOptions struct {
	// Force purges users and advices before loading
	Force bool
	// Rand picks advice months; nil uses a time-seeded source
	Rand *rand.Rand
}

// FixtureResult reports what LoadFixtures wrote
type FixtureResult struct {
	Users   int
	Advices int
}

// LoadFixtures seeds the demo data set: one regular user, one admin and
// thirty advices with random months whose authors alternate between them.
func (db *DB) LoadFixtures(ctx context.Context, opts FixtureOptions) (FixtureResult, error) {
	var result FixtureResult

	rng := opts.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}

	// Hash outside the transaction, argon2 is slow on purpose
	hash, err := utils.HashPassword(FixturePassword)
	if err != nil {
		return result, err
	}

	err = db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		if count > 0 {
			if !opts.Force {
				return fmt.Errorf("%w (%d rows); use --force to purge", ErrNotEmpty, count)
			}
			for _, table := range []string{"advices", "users"} {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					return fmt.Errorf("failed to purge %s: %w", table, err)
				}
			}
		}

		now := time.Now().UTC()
		userID, err := insertFixtureUser(ctx, tx, db.Dialect, FixtureUserEmail, hash, []string{"ROLE_USER"}, now)
		if err != nil {
			return err
		}
		adminID, err := insertFixtureUser(ctx, tx, db.Dialect, FixtureAdminEmail, hash, []string{"ROLE_ADMIN"}, now)
		if err != nil {
			return err
		}
		result.Users = 2

		columns := []string{"text", "month", "created_by", "created_at", "updated_at"}
		for i := 0; i < FixtureAdvices; i++ {
			author := userID
			if i%2 == 1 {
				author = adminID
			}
			args := []interface{}{fmt.Sprintf("Lorem Ipsum%d", i), rng.IntN(12) + 1, author, now, now}
			if _, err := insert(ctx, tx, db.Dialect, "advices", columns, args); err != nil {
				return fmt.Errorf("failed to insert advice %d: %w", i, err)
			}
			result.Advices++
		}
		return nil
	})
	if err != nil {
		return FixtureResult{}, err
	}

	return result, nil
}

func insertFixtureUser(ctx context.Context, tx *sql.Tx, d Dialect, email, hash string, roles []string, now time.Time) (int64, error) {
	encoded, err := json.Marshal(roles)
	if err != nil {
		return 0, err
	}
	columns := []string{"email", "roles", "password", "postal_code", "created_at", "updated_at"}
	id, err := insert(ctx, tx, d, "users", columns, []interface{}{email, string(encoded), hash, nil, now, now})
	if err != nil {
		return 0, fmt.Errorf("failed to insert user %s: %w", email, err)
	}
	return id, nil
}
