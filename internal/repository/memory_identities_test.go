package repository

import (
	"context"
	"testing"

	"wisefido-patient-status/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdentityProvider_SeedDemoUsers(t *testing.T) {
	p := NewMemoryIdentityProvider()
	require.NoError(t, SeedDemoUsers(p))

	ctx := context.Background()

	id, err := p.Resolve(ctx, "user-a", "password123")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, domain.RoleOperator, id.Role)

	id, err = p.Resolve(ctx, "user-c", "password123")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, domain.RoleViewer, id.Role)

	id, err = p.Resolve(ctx, "user-c", "wrong")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = p.Resolve(ctx, "nobody", "password123")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestMemoryIdentityProvider_UpsertUser_RejectsUnknownRole(t *testing.T) {
	p := NewMemoryIdentityProvider()
	_, err := p.UpsertUser("u1", "u1", "pw", domain.Role("ROOT"), "Root")
	assert.Error(t, err)
}
