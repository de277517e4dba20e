package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/apimgr/ecogarden/src/database"
	"github.com/apimgr/ecogarden/src/utils"
)

// Role names
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// User represents a user account
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	StoredRoles  []string  `json:"-"`
	PostalCode   *string   `json:"postalCode"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Roles returns the stored roles plus ROLE_USER, which every account has
func (u *User) Roles() []string {
	roles := make([]string, 0, len(u.StoredRoles)+1)
	for _, r := range u.StoredRoles {
		if !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	if !slices.Contains(roles, RoleUser) {
		roles = append(roles, RoleUser)
	}
	return roles
}

// HasRole reports whether the user holds role
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles(), role)
}

// IsAdmin reports whether the user holds ROLE_ADMIN
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// UserUpdate carries a partial update; nil fields are left unchanged.
// An empty PostalCode clears it.
type UserUpdate struct {
	Email      *string
	Password   *string
	PostalCode *string
	Roles      []string
}

// UserModel handles user database operations
type UserModel struct {
	DB *database.DB
}

const userColumns = "id, email, roles, password, postal_code, created_at, updated_at"

// Create creates a new user account. The password is hashed with Argon2id.
func (m *UserModel) Create(ctx context.Context, email, password string, roles []string, postalCode *string) (*User, error) {
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}
	encodedRoles, err := json.Marshal(roles)
	if err != nil {
		return nil, fmt.Errorf("failed to encode roles: %w", err)
	}

	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, database.TimeoutWrite)
	defer cancel()

	now := time.Now().UTC()
	start := time.Now()
	id, err := m.DB.Insert(ctx, "users",
		[]string{"email", "roles", "password", "postal_code", "created_at", "updated_at"},
		email, string(encodedRoles), passwordHash, nullString(postalCode), now, now)
	observe("insert", "users", start, err)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		StoredRoles:  roles,
		PostalCode:   nullString(postalCode),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetByID retrieves a user by ID
func (m *UserModel) GetByID(ctx context.Context, id int64) (*User, error) {
	return m.getOne(ctx, "id = ?", id)
}

// GetByEmail retrieves a user by email
func (m *UserModel) GetByEmail(ctx context.Context, email string) (*User, error) {
	return m.getOne(ctx, "email = ?", email)
}

func (m *UserModel) getOne(ctx context.Context, where string, arg interface{}) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, database.TimeoutSimpleSelect)
	defer cancel()

	query := m.DB.Dialect.Rebind("SELECT " + userColumns + " FROM users WHERE " + where)

	start := time.Now()
	user, err := scanUser(m.DB.QueryRowContext(ctx, query, arg))
	observe("select", "users", start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var roles string
	var postalCode sql.NullString

	err := row.Scan(&user.ID, &user.Email, &roles, &user.PasswordHash, &postalCode, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(roles), &user.StoredRoles); err != nil {
		return nil, fmt.Errorf("invalid roles for user %d: %w", user.ID, err)
	}
	if postalCode.Valid {
		user.PostalCode = &postalCode.String
	}
	return &user, nil
}

// Update applies a partial update to a user
func (m *UserModel) Update(ctx context.Context, id int64, upd UserUpdate) (*User, error) {
	user, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.Password != nil {
		hash, err := utils.HashPassword(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if upd.PostalCode != nil {
		user.PostalCode = nullString(upd.PostalCode)
	}
	if upd.Roles != nil {
		user.StoredRoles = upd.Roles
	}
	user.UpdatedAt = time.Now().UTC()

	encodedRoles, err := json.Marshal(user.StoredRoles)
	if err != nil {
		return nil, fmt.Errorf("failed to encode roles: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, database.TimeoutWrite)
	defer cancel()

	query := m.DB.Dialect.Rebind(`UPDATE users SET email = ?, roles = ?, password = ?, postal_code = ?, updated_at = ? WHERE id = ?`)

	start := time.Now()
	_, err = m.DB.ExecContext(ctx, query, user.Email, string(encodedRoles), user.PasswordHash, user.PostalCode, user.UpdatedAt, id)
	observe("update", "users", start, err)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// Delete deletes a user account. Advices they wrote keep a NULL author.
func (m *UserModel) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, database.TimeoutWrite)
	defer cancel()

	start := time.Now()
	result, err := m.DB.ExecContext(ctx, m.DB.Dialect.Rebind(`DELETE FROM users WHERE id = ?`), id)
	observe("delete", "users", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireAffected(result)
}

// Count returns the number of registered users
func (m *UserModel) Count(ctx context.Context) (int, error) {
	return count(ctx, m.DB, "users")
}

// VerifyCredentials returns the user when email and password match.
// Unknown email and wrong password both yield ErrNotFound.
func (m *UserModel) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := m.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	valid, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, ErrNotFound
	}
	return user, nil
}

func count(ctx context.Context, db *database.DB, table string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, database.TimeoutSimpleSelect)
	defer cancel()

	var n int
	start := time.Now()
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	observe("count", table, start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// nullString maps nil and "" to NULL
func nullString(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
