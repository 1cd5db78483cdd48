package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/skyanki/internal/models"
)

// TokenRepository persists the Skyeng bearer token per login so a restart does not force a
// new login while the token is still valid.
type TokenRepository struct {
	store
}

// NewTokenRepository creates a new [TokenRepository] for the given connection and driver.
func NewTokenRepository(db *sql.DB, driver string) *TokenRepository {
	return &TokenRepository{store: newStore(db, driver)}
}

// Get returns the token saved for login. An unknown login yields the zero token.
func (r *TokenRepository) Get(login string) (models.Token, error) {
	query := r.q(`SELECT value, expires_at FROM tokens WHERE login = ?`)

	var (
		value     string
		expiresAt int64
	)

	err := r.db.QueryRow(query, login).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Token{}, nil
	}
	if err != nil {
		return models.Token{}, fmt.Errorf("failed to query token: %w", err)
	}

	return models.NewToken(value, expiresAt), nil
}

// Save stores token for login, replacing any previous one.
func (r *TokenRepository) Save(login string, token models.Token) error {
	query := r.q(`
		INSERT INTO tokens (login, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (login) DO UPDATE
		SET value = excluded.value, expires_at = excluded.expires_at, updated_at = excluded.updated_at
	`)

	_, err := r.db.Exec(query, login, token.Value, token.ExpiresAtMillis(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

// Delete removes the token saved for login. Deleting an unknown login is not an error.
func (r *TokenRepository) Delete(login string) error {
	if _, err := r.db.Exec(r.q(`DELETE FROM tokens WHERE login = ?`), login); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
