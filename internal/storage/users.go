package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetUserByMail retrieves an enabled user by login mail
func (p *PostgresClient) GetUserByMail(ctx context.Context, mail string) (*User, error) {
	var user User
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, mail, password_hash, is_admin, enabled, created_at
		FROM users
		WHERE mail = $1 AND enabled = true
	`, mail).Scan(
		&user.ID, &user.Name, &user.Mail, &user.PasswordHash,
		&user.IsAdmin, &user.Enabled, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (p *PostgresClient) GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	var user User
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, mail, password_hash, is_admin, enabled, created_at
		FROM users
		WHERE id = $1 AND enabled = true
	`, userID).Scan(
		&user.ID, &user.Name, &user.Mail, &user.PasswordHash,
		&user.IsAdmin, &user.Enabled, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateUser creates a new user account
func (p *PostgresClient) CreateUser(ctx context.Context, name, mail, passwordHash string) (*User, error) {
	var user User
	err := p.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, mail, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, mail, password_hash, is_admin, enabled, created_at
	`, uuid.New(), name, mail, passwordHash).Scan(
		&user.ID, &user.Name, &user.Mail, &user.PasswordHash,
		&user.IsAdmin, &user.Enabled, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (p *PostgresClient) UpdateUserMail(ctx context.Context, userID uuid.UUID, mail string) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE users SET mail = $1 WHERE id = $2 AND enabled = true
	`, mail, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update mail: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (p *PostgresClient) UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1 WHERE id = $2 AND enabled = true
	`, passwordHash, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update password: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// SetUserEnabled flips the enabled flag. Admin accounts never match the
// predicate, so enabling or disabling an admin reports zero rows.
func (p *PostgresClient) SetUserEnabled(ctx context.Context, userID uuid.UUID, enabled bool) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE users SET enabled = $1 WHERE id = $2 AND is_admin = false
	`, enabled, userID)
	if err != nil {
		return false, fmt.Errorf("failed to set user enabled: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Refresh token methods

func (p *PostgresClient) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, tokenHash, userID, expiresAt)
	return err
}

func (p *PostgresClient) GetRefreshToken(ctx context.Context, tokenHash string) (*uuid.UUID, error) {
	var userID uuid.UUID
	var expiresAt time.Time
	var revokedAt *time.Time

	err := p.pool.QueryRow(ctx, `
		SELECT user_id, expires_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&userID, &expiresAt, &revokedAt)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("refresh token not found")
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if revokedAt != nil {
		return nil, fmt.Errorf("refresh token revoked")
	}

	if time.Now().After(expiresAt) {
		return nil, fmt.Errorf("refresh token expired")
	}

	return &userID, nil
}

func (p *PostgresClient) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW() WHERE token_hash = $1
	`, tokenHash)
	return err
}

func (p *PostgresClient) RevokeAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	return err
}
