package repository

import (
	"context"
	"fmt"
	"sync"

	"wisefido-patient-status/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// MemoryIdentityProvider is an in-memory identity table for dev/stub mode.
type MemoryIdentityProvider struct {
	mu         sync.RWMutex
	byUsername map[string]ProvisionedUser
}

func NewMemoryIdentityProvider(users ...ProvisionedUser) *MemoryIdentityProvider {
	p := &MemoryIdentityProvider{byUsername: map[string]ProvisionedUser{}}
	for _, u := range users {
		p.byUsername[u.Username] = u
	}
	return p
}

// UpsertUser hashes password with bcrypt and stores the account.
func (p *MemoryIdentityProvider) UpsertUser(id, username, password string, role domain.Role, name string) (ProvisionedUser, error) {
	if !role.Valid() {
		return ProvisionedUser{}, fmt.Errorf("invalid role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return ProvisionedUser{}, fmt.Errorf("failed to hash password: %w", err)
	}
	u := ProvisionedUser{ID: id, Username: username, PasswordHash: string(hash), Role: role, Name: name}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.byUsername[username] = u
	return u, nil
}

func (p *MemoryIdentityProvider) Resolve(_ context.Context, username, password string) (*domain.Identity, error) {
	p.mu.RLock()
	u, ok := p.byUsername[username]
	p.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return &domain.Identity{ID: u.ID, Username: u.Username, Role: u.Role}, nil
}

// DemoUsers 开发环境预置账号
var DemoUsers = []struct {
	ID, Username, Password, Name string
	Role                         domain.Role
}{
	{"user-a", "user-a", "password123", "User A (Operator)", domain.RoleOperator},
	{"user-b", "user-b", "password123", "User B (Admin)", domain.RoleAdmin},
	{"user-c", "user-c", "password123", "User C (Viewer)", domain.RoleViewer},
}

// SeedDemoUsers provisions DemoUsers into p.
func SeedDemoUsers(p *MemoryIdentityProvider) error {
	for _, u := range DemoUsers {
		if _, err := p.UpsertUser(u.ID, u.Username, u.Password, u.Role, u.Name); err != nil {
			return fmt.Errorf("seed %s: %w", u.Username, err)
		}
	}
	return nil
}
