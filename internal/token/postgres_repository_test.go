package token

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
)

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgresRepository(sqlxDB), mock
}

func TestPostgresRepository_Store(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Store(context.Background(), uuid.New(), "deadbeef", time.Now().Add(7*24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_FindByHash_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT (.|\n)* FROM refresh_tokens").WillReturnRows(sqlmock.NewRows(nil))

	_, err := repo.FindByHash(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.NotFound), "Manager.Refresh relies on this kind to translate the miss to Authentication")
	require.NoError(t, mock.ExpectationsWereMet())
}
