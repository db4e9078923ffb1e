package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhomelab/smartserver/internal/config"
	"github.com/openhomelab/smartserver/internal/storage"
)

// ErrWrongPassword reports a failed old-password check on password change.
// Callers map it to a forbidden response, not an authentication failure.
var ErrWrongPassword = errors.New("wrong password")

// Store is the slice of persistence the auth service needs.
// *storage.PostgresClient satisfies it.
type Store interface {
	GetUserByMail(ctx context.Context, mail string) (*storage.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error)
	CreateUser(ctx context.Context, name, mail, passwordHash string) (*storage.User, error)
	UpdateUserMail(ctx context.Context, userID uuid.UUID, mail string) (bool, error)
	UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) (bool, error)

	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*uuid.UUID, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error

	GetHostByAPIKeyHash(ctx context.Context, apiKeyHash string) (*storage.Host, error)
}

type AuthService struct {
	store          Store
	jwtHandler     *JWTHandler
	passwordHasher *PasswordHasher
	hostKeyGen     *HostKeyGenerator
	logger         *zap.Logger
}

func NewAuthService(store Store, cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:          store,
		jwtHandler:     NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		passwordHasher: NewPasswordHasher(),
		hostKeyGen:     NewHostKeyGenerator(),
		logger:         logger,
	}
}

// LoginUser authenticates a user by mail and password and returns tokens
func (a *AuthService) LoginUser(ctx context.Context, mail, password string) (accessToken, refreshToken string, err error) {
	user, err := a.store.GetUserByMail(ctx, mail)
	if err != nil {
		return "", "", fmt.Errorf("invalid credentials")
	}

	valid, err := a.passwordHasher.VerifyPassword(password, user.PasswordHash)
	if err != nil || !valid {
		a.logger.Warn("login failed", zap.String("mail", mail))
		return "", "", fmt.Errorf("invalid credentials")
	}

	accessToken, err = a.jwtHandler.GenerateAccessToken(user.ID, user.Mail)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = a.jwtHandler.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	tokenHash := a.hashRefreshToken(refreshToken)
	expiresAt := time.Now().Add(a.jwtHandler.refreshTokenTTL)
	if err := a.store.StoreRefreshToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// RefreshAccessToken rotates the refresh token and issues a new access token
func (a *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, string, error) {
	tokenHash := a.hashRefreshToken(refreshToken)

	userID, err := a.store.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}

	user, err := a.store.GetUserByID(ctx, *userID)
	if err != nil {
		return "", "", fmt.Errorf("user not found: %w", err)
	}

	a.store.RevokeRefreshToken(ctx, tokenHash)

	accessToken, err := a.jwtHandler.GenerateAccessToken(user.ID, user.Mail)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	newRefreshToken, err := a.jwtHandler.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	newTokenHash := a.hashRefreshToken(newRefreshToken)
	expiresAt := time.Now().Add(a.jwtHandler.refreshTokenTTL)
	if err := a.store.StoreRefreshToken(ctx, user.ID, newTokenHash, expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return accessToken, newRefreshToken, nil
}

// RevokeRefreshToken revokes a refresh token (logout)
func (a *AuthService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return a.store.RevokeRefreshToken(ctx, a.hashRefreshToken(refreshToken))
}

// RegisterUser creates a new user account
func (a *AuthService) RegisterUser(ctx context.Context, name, mail, password string) (*storage.User, error) {
	passwordHash, err := a.passwordHasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return a.store.CreateUser(ctx, name, mail, passwordHash)
}

// GetUserByID retrieves a user by ID
func (a *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error) {
	return a.store.GetUserByID(ctx, userID)
}

// ChangeMail updates the login mail of a user
func (a *AuthService) ChangeMail(ctx context.Context, userID uuid.UUID, newMail string) (bool, error) {
	return a.store.UpdateUserMail(ctx, userID, newMail)
}

// ChangePassword verifies the old password before storing the new one.
// All refresh tokens of the user are revoked on success.
func (a *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	user, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	valid, err := a.passwordHasher.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !valid {
		return ErrWrongPassword
	}

	passwordHash, err := a.passwordHasher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	updated, err := a.store.UpdateUserPassword(ctx, userID, passwordHash)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("user not found")
	}

	if err := a.store.RevokeAllUserRefreshTokens(ctx, userID); err != nil {
		a.logger.Warn("failed to revoke refresh tokens after password change",
			zap.String("user_id", userID.String()), zap.Error(err))
	}
	return nil
}

// ResolveUserToken resolves a bearer JWT to its (enabled) user record
func (a *AuthService) ResolveUserToken(ctx context.Context, token string) (*storage.User, error) {
	claims, err := a.jwtHandler.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return a.store.GetUserByID(ctx, claims.UserID)
}

// ResolveHostKey resolves a bearer API key to its (enabled) host record
func (a *AuthService) ResolveHostKey(ctx context.Context, key string) (*storage.Host, error) {
	if !a.hostKeyGen.ValidateKeyFormat(key) {
		return nil, fmt.Errorf("invalid key format")
	}
	return a.store.GetHostByAPIKeyHash(ctx, a.hostKeyGen.HashKey(key))
}

// NewHostCredential generates a fresh host API key and its storage hash
func (a *AuthService) NewHostCredential() (string, string, error) {
	return a.hostKeyGen.GenerateHostKey()
}

func (a *AuthService) hashRefreshToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
