package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"wisefido-patient-status/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresIdentityProvider) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresIdentityProvider(db, zap.NewNop())
	return db, mock, repo
}

func bcryptHash(t *testing.T, password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestPostgresIdentityProvider_Resolve_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id", "password_hash", "role"}).
		AddRow("user-b", bcryptHash(t, "password123"), "ADMIN")
	mock.ExpectQuery(`SELECT user_id, password_hash, role`).
		WithArgs("user-b").
		WillReturnRows(rows)

	id, err := repo.Resolve(context.Background(), "user-b", "password123")

	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "user-b", id.ID)
	assert.Equal(t, domain.RoleAdmin, id.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIdentityProvider_Resolve_WrongPassword(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id", "password_hash", "role"}).
		AddRow("user-b", bcryptHash(t, "password123"), "ADMIN")
	mock.ExpectQuery(`SELECT user_id, password_hash, role`).
		WithArgs("user-b").
		WillReturnRows(rows)

	id, err := repo.Resolve(context.Background(), "user-b", "nope")

	require.NoError(t, err)
	assert.Nil(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIdentityProvider_Resolve_UnknownUser(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT user_id, password_hash, role`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	id, err := repo.Resolve(context.Background(), "ghost", "x")

	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestPostgresIdentityProvider_Resolve_UnknownRole(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id", "password_hash", "role"}).
		AddRow("user-x", bcryptHash(t, "pw"), "Caregiver")
	mock.ExpectQuery(`SELECT user_id, password_hash, role`).
		WithArgs("user-x").
		WillReturnRows(rows)

	id, err := repo.Resolve(context.Background(), "user-x", "pw")

	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestPostgresIdentityProvider_Resolve_DBError(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT user_id, password_hash, role`).
		WithArgs("user-b").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.Resolve(context.Background(), "user-b", "password123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
