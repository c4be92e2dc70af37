package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-results-api/internal/models"
)

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("admin@school.test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at"}).
			AddRow("u-1", "admin@school.test", "hash", "Ada Admin", "ADMIN", true, nil, now, now))

	user, err := repo.FindByEmail(context.Background(), "admin@school.test")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Nil(t, user.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1)")).
		WithArgs("ghost@school.test").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@school.test")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateLastLogin(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	ts := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login = $2 WHERE id = $1")).
		WithArgs("u-1", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login = $2 WHERE id = $1")).
		WithArgs("u-gone", ts).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateLastLogin(context.Background(), "u-1", ts))
	assert.ErrorIs(t, repo.UpdateLastLogin(context.Background(), "u-gone", ts), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
