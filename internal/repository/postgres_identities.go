package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-patient-status/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// PostgresIdentityProvider 从 users 表解析账号
//
//	users(user_id, username, password_hash, role, status)
type PostgresIdentityProvider struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresIdentityProvider(db *sql.DB, logger *zap.Logger) *PostgresIdentityProvider {
	return &PostgresIdentityProvider{db: db, logger: logger}
}

func (p *PostgresIdentityProvider) Resolve(ctx context.Context, username, password string) (*domain.Identity, error) {
	var (
		userID       string
		passwordHash string
		role         string
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT user_id, password_hash, role
		 FROM users
		 WHERE username = $1 AND status = 'active'
		 LIMIT 1`,
		username,
	).Scan(&userID, &passwordHash, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return nil, nil
	}

	r := domain.Role(role)
	if !r.Valid() {
		p.logger.Warn("User has unknown role, rejecting", zap.String("username", username), zap.String("role", role))
		return nil, nil
	}
	return &domain.Identity{ID: userID, Username: username, Role: r}, nil
}
