package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/stock-run-tracker/internal/models"
)

const userColumns = `id, email, name, password, is_active, is_staff, is_superuser, date_joined`

// CreateUser inserts a new user
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (email, name, password, is_active, is_staff, is_superuser, date_joined)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now().UTC()

	err := db.conn.QueryRowContext(ctx, query,
		u.Email, u.Name, u.Password, u.IsActive, u.IsStaff, u.IsSuperuser, now,
	).Scan(&u.ID)

	if isUniqueViolation(err) {
		return fmt.Errorf("failed to create user %s: %w", u.Email, ErrDuplicateEmail)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.DateJoined = now
	return nil
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, err
}

// GetUserByEmail retrieves a user by exact email
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(db.conn.QueryRowContext(ctx, query, email))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return u, err
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Password,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.DateJoined,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// UpdateUser saves the profile fields and password hash of an existing user
func (db *DB) UpdateUser(ctx context.Context, u *models.User) error {
	query := `
		UPDATE users SET
			email = $2, name = $3, password = $4,
			is_active = $5, is_staff = $6, is_superuser = $7
		WHERE id = $1
	`
	result, err := db.conn.ExecContext(ctx, query,
		u.ID, u.Email, u.Name, u.Password, u.IsActive, u.IsStaff, u.IsSuperuser,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to update user %d: %w", u.ID, ErrDuplicateEmail)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", u.ID, ErrNotFound)
	}
	return nil
}

// DeleteUser removes a user together with its stocks and token.
// It fails with ErrProtected while the user still owns stock bases.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("failed to delete user %d: %w", id, ErrProtected)
	}
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}
