package repository

import (
	"context"

	"wisefido-patient-status/internal/domain"
)

// IdentityProvider 用户名/密码 → Identity
// 未匹配返回 (nil, nil)；后端故障返回 error
type IdentityProvider interface {
	Resolve(ctx context.Context, username, password string) (*domain.Identity, error)
}

// ProvisionedUser 预置账号（密码以 bcrypt hash 保存）
type ProvisionedUser struct {
	ID           string
	Username     string
	PasswordHash string
	Role         domain.Role
	Name         string
}
