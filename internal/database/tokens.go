package database

import (
	"context"
	"fmt"

	"github.com/trogers1052/stock-run-tracker/internal/models"
)

// GetOrCreateToken returns the user's API token, issuing one on first use
func (db *DB) GetOrCreateToken(ctx context.Context, userID int64) (*models.AuthToken, error) {
	key, err := models.GenerateTokenKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	// the no-op update makes RETURNING yield the existing row on conflict
	query := `
		INSERT INTO auth_tokens (key, user_id, created)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING key, user_id, created
	`
	var t models.AuthToken
	err = db.conn.QueryRowContext(ctx, query, key, userID).Scan(&t.Key, &t.UserID, &t.Created)
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get or create token: %w", err)
	}
	return &t, nil
}

// GetUserByToken resolves the owner of an API token
func (db *DB) GetUserByToken(ctx context.Context, key string) (*models.User, error) {
	query := `
		SELECT u.id, u.email, u.name, u.password, u.is_active, u.is_staff, u.is_superuser, u.date_joined
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.key = $1
	`
	u, err := scanUser(db.conn.QueryRowContext(ctx, query, key))
	if err == ErrNotFound {
		return nil, fmt.Errorf("token: %w", ErrNotFound)
	}
	return u, err
}
