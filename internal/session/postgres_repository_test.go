package session

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/authcore/shared/models"
)

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgresRepository(sqlxDB), mock
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(1, 1))

	s := &models.Session{
		SessionToken:   "tok",
		IPAddress:      "127.0.0.1",
		StartedAt:      time.Now().UTC(),
		LastActivityAt: time.Now().UTC(),
		ExpiresAt:      time.Now().Add(time.Hour),
		IsActive:       true,
		Metadata:       models.JSONMap{},
		Version:        1,
	}
	require.NoError(t, repo.Create(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_FindByToken_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT (.|\n)* FROM sessions").WillReturnRows(sqlmock.NewRows(nil))

	_, err := repo.FindByToken(context.Background(), "missing")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
