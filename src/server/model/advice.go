package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apimgr/ecogarden/src/database"
)

// Author is the public view of the user who wrote an advice
type Author struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Advice is a gardening tip attached to a calendar month
type Advice struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Month     int       `json:"month"`
	CreatedBy *Author   `json:"createdBy"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// AdviceModel handles advice database operations
type AdviceModel struct {
	DB *database.DB
}

const adviceSelect = `SELECT a.id, a.text, a.month, a.created_by, u.email, a.created_at, a.updated_at
FROM advices a LEFT JOIN users u ON u.id = a.created_by`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAdvice(row rowScanner) (*Advice, error) {
	var advice Advice
	var authorID sql.NullInt64
	var authorEmail sql.NullString

	err := row.Scan(&advice.ID, &advice.Text, &advice.Month, &authorID, &authorEmail, &advice.CreatedAt, &advice.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if authorID.Valid {
		advice.CreatedBy = &Author{ID: authorID.Int64, Email: authorEmail.String}
	}
	return &advice, nil
}

// ListByMonth returns every advice for month, oldest first
func (m *AdviceModel) ListByMonth(ctx context.Context, month int) ([]*Advice, error) {
	ctx, cancel := context.WithTimeout(ctx, database.TimeoutSimpleSelect)
	defer cancel()

	query := m.DB.Dialect.Rebind(adviceSelect + " WHERE a.month = ? ORDER BY a.id")

	start := time.Now()
	rows, err := m.DB.QueryContext(ctx, query, month)
	if err != nil {
		observe("select", "advices", start, err)
		return nil, fmt.Errorf("failed to list advices: %w", err)
	}
	defer rows.Close()

	advices := []*Advice{}
	for rows.Next() {
		advice, err := scanAdvice(rows)
		if err != nil {
			observe("select", "advices", start, err)
			return nil, fmt.Errorf("failed to scan advice: %w", err)
		}
		advices = append(advices, advice)
	}
	err = rows.Err()
	observe("select", "advices", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list advices: %w", err)
	}

	return advices, nil
}

// GetByID retrieves an advice by ID
func (m *AdviceModel) GetByID(ctx context.Context, id int64) (*Advice, error) {
	ctx, cancel := context.WithTimeout(ctx, database.TimeoutSimpleSelect)
	defer cancel()

	query := m.DB.Dialect.Rebind(adviceSelect + " WHERE a.id = ?")

	start := time.Now()
	advice, err := scanAdvice(m.DB.QueryRowContext(ctx, query, id))
	observe("select", "advices", start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get advice: %w", err)
	}
	return advice, nil
}

// Create stores a new advice written by author
func (m *AdviceModel) Create(ctx context.Context, text string, month int, author *User) (*Advice, error) {
	ctx, cancel := context.WithTimeout(ctx, database.TimeoutWrite)
	defer cancel()

	now := time.Now().UTC()
	advice := &Advice{Text: text, Month: month, CreatedBy: authorOf(author), CreatedAt: now, UpdatedAt: now}

	start := time.Now()
	id, err := m.DB.Insert(ctx, "advices",
		[]string{"text", "month", "created_by", "created_at", "updated_at"},
		text, month, authorID(advice.CreatedBy), now, now)
	observe("insert", "advices", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create advice: %w", err)
	}

	advice.ID = id
	return advice, nil
}

// Update writes text, month and author of an existing advice
func (m *AdviceModel) Update(ctx context.Context, advice *Advice) error {
	ctx, cancel := context.WithTimeout(ctx, database.TimeoutWrite)
	defer cancel()

	advice.UpdatedAt = time.Now().UTC()
	query := m.DB.Dialect.Rebind(`UPDATE advices SET text = ?, month = ?, created_by = ?, updated_at = ? WHERE id = ?`)

	start := time.Now()
	result, err := m.DB.ExecContext(ctx, query, advice.Text, advice.Month, authorID(advice.CreatedBy), advice.UpdatedAt, advice.ID)
	observe("update", "advices", start, err)
	if err != nil {
		return fmt.Errorf("failed to update advice: %w", err)
	}
	return requireAffected(result)
}

// Delete removes an advice
func (m *AdviceModel) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, database.TimeoutWrite)
	defer cancel()

	start := time.Now()
	result, err := m.DB.ExecContext(ctx, m.DB.Dialect.Rebind(`DELETE FROM advices WHERE id = ?`), id)
	observe("delete", "advices", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete advice: %w", err)
	}
	return requireAffected(result)
}

// Count returns the number of stored advices
func (m *AdviceModel) Count(ctx context.Context) (int, error) {
	return count(ctx, m.DB, "advices")
}

func authorOf(u *User) *Author {
	if u == nil {
		return nil
	}
	return &Author{ID: u.ID, Email: u.Email}
}

func authorID(a *Author) *int64 {
	if a == nil {
		return nil
	}
	return &a.ID
}
