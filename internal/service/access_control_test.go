package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"wisefido-patient-status/internal/domain"
	"wisefido-patient-status/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingIdentities struct{}

func (failingIdentities) Resolve(context.Context, string, string) (*domain.Identity, error) {
	return nil, errors.New("db down")
}

func setupAccessControl(t *testing.T, tokens ...TokenCodec) *AccessControl {
	p := repository.NewMemoryIdentityProvider()
	require.NoError(t, repository.SeedDemoUsers(p))
	return NewAccessControl(p, zap.NewNop(), tokens...)
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func demoBearer(t *testing.T, id domain.Identity) string {
	tok, err := DemoTokenCodec{}.Issue(id)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestAuthenticate(t *testing.T) {
	ac := setupAccessControl(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		header  string
		role    domain.Role
		message string
	}{
		{"missing header", "", "", "Authorization header is required"},
		{"unknown scheme", "Digest abc", "", `Invalid authorization format. Use "Bearer <token>" or "Basic <base64>"`},
		{"basic ok", basic("user-b", "password123"), domain.RoleAdmin, ""},
		{"basic wrong password", basic("user-b", "nope"), "", "Invalid username or password"},
		{"basic not base64", "Basic %%%", "", "Invalid username or password"},
		{"basic without colon", "Basic " + base64.StdEncoding.EncodeToString([]byte("user-b")), "", "Invalid username or password"},
		{"bearer demo token", demoBearer(t, domain.Identity{ID: "user-c", Username: "user-c", Role: domain.RoleViewer}), domain.RoleViewer, ""},
		{"bearer unknown role", demoBearer(t, domain.Identity{ID: "x", Username: "x", Role: "ROOT"}), "", "Invalid or expired token"},
		{"bearer garbage", "Bearer !!!", "", "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ac.Authenticate(ctx, tt.header)
			if tt.message != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnauthenticated)
				assert.Equal(t, tt.message, AsError(err).Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.role, id.Role)
		})
	}
}

func TestAuthenticate_PasswordWithColon(t *testing.T) {
	p := repository.NewMemoryIdentityProvider()
	_, err := p.UpsertUser("u1", "ops", "a:b", domain.RoleOperator, "Ops")
	require.NoError(t, err)
	ac := NewAccessControl(p, zap.NewNop())

	id, err := ac.Authenticate(context.Background(), basic("ops", "a:b"))
	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)
}

func TestAuthenticate_IdentityBackendFailureIsInternal(t *testing.T) {
	ac := NewAccessControl(failingIdentities{}, zap.NewNop())
	_, err := ac.Authenticate(context.Background(), basic("user-b", "password123"))
	assert.ErrorIs(t, err, ErrInternal)
}

func TestAuthorize_RoleTable(t *testing.T) {
	ac := setupAccessControl(t)

	admin := &domain.Identity{ID: "b", Role: domain.RoleAdmin}
	operator := &domain.Identity{ID: "a", Role: domain.RoleOperator}
	viewer := &domain.Identity{ID: "c", Role: domain.RoleViewer}

	for _, op := range []Operation{OpList, OpGet, OpStatistics, OpExport} {
		assert.NoError(t, ac.Authorize(op, admin), op)
		assert.NoError(t, ac.Authorize(op, viewer), op)
		assert.ErrorIs(t, ac.Authorize(op, operator), ErrUnauthorized, op)
	}
	for _, op := range []Operation{OpCreate, OpUpdate, OpSoftDelete, OpRestore} {
		assert.NoError(t, ac.Authorize(op, admin), op)
		assert.NoError(t, ac.Authorize(op, operator), op)
		assert.ErrorIs(t, ac.Authorize(op, viewer), ErrUnauthorized, op)
	}

	err := ac.Authorize(OpList, operator)
	assert.Equal(t, "Access denied. Required roles: [ADMIN, VIEWER]. Your role: OPERATOR", AsError(err).Message)
	err = ac.Authorize(OpCreate, viewer)
	assert.Equal(t, "Access denied. Required roles: [ADMIN, OPERATOR]. Your role: VIEWER", AsError(err).Message)

	// operations without a table entry are denied, even for ADMIN
	assert.ErrorIs(t, ac.Authorize(Operation("purge"), admin), ErrUnauthorized)
}

func TestJWTTokenCodec(t *testing.T) {
	codec := NewJWTTokenCodec("secret", "wisefido", time.Hour)
	id := domain.Identity{ID: "user-b", Username: "user-b", Role: domain.RoleAdmin}

	tok, err := codec.Issue(id)
	require.NoError(t, err)

	got, err := codec.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, id, *got)

	other := NewJWTTokenCodec("other-secret", "wisefido", time.Hour)
	_, err = other.Parse(tok)
	assert.Error(t, err)

	wrongIssuer := NewJWTTokenCodec("secret", "someone-else", time.Hour)
	_, err = wrongIssuer.Parse(tok)
	assert.Error(t, err)

	codec.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = codec.Parse(tok)
	assert.Error(t, err, "expired")
}

func TestIssueToken_UsesPrimaryCodecAndRoundTrips(t *testing.T) {
	jwtCodec := NewJWTTokenCodec("secret", "wisefido", time.Hour)
	ac := setupAccessControl(t, jwtCodec, DemoTokenCodec{})
	ctx := context.Background()

	tok, id, err := ac.IssueToken(ctx, basic("user-a", "password123"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOperator, id.Role)

	_, err = jwtCodec.Parse(tok)
	require.NoError(t, err)

	got, err := ac.Authenticate(ctx, "Bearer "+tok)
	require.NoError(t, err)
	assert.Equal(t, "user-a", got.ID)

	// demo tokens accepted when explicitly chained
	got, err = ac.Authenticate(ctx, demoBearer(t, domain.Identity{ID: "user-c", Role: domain.RoleViewer}))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleViewer, got.Role)

	_, _, err = ac.IssueToken(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, _, err = ac.IssueToken(ctx, "Bearer "+tok)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, _, err = ac.IssueToken(ctx, basic("user-a", "bad"))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIssueToken_DemoCodecDefault(t *testing.T) {
	ac := setupAccessControl(t)
	tok, _, err := ac.IssueToken(context.Background(), basic("user-b", "password123"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"user-b","username":"user-b","role":"ADMIN"}`, string(raw))
}

func TestNewTokenCodecs_SignedModeRejectsDemoTokens(t *testing.T) {
	ctx := context.Background()
	forged := demoBearer(t, domain.Identity{ID: "attacker", Role: domain.RoleAdmin})

	ac := setupAccessControl(t, NewTokenCodecs("s3cret", "wisefido", time.Hour, false)...)
	_, err := ac.Authenticate(ctx, forged)
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "Invalid or expired token", AsError(err).Message)

	tok, _, err := ac.IssueToken(ctx, basic("user-b", "password123"))
	require.NoError(t, err)
	got, err := ac.Authenticate(ctx, "Bearer "+tok)
	require.NoError(t, err)
	assert.Equal(t, "user-b", got.ID)

	dev := setupAccessControl(t, NewTokenCodecs("s3cret", "wisefido", time.Hour, true)...)
	got, err = dev.Authenticate(ctx, forged)
	require.NoError(t, err)
	assert.Equal(t, "attacker", got.ID)

	unsigned := setupAccessControl(t, NewTokenCodecs("", "wisefido", time.Hour, false)...)
	_, err = unsigned.Authenticate(ctx, forged)
	assert.NoError(t, err)
}
