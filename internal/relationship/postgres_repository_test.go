package relationship

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
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

	mock.ExpectExec("INSERT INTO relationships").WillReturnResult(sqlmock.NewResult(1, 1))

	rel := &models.Relationship{
		User:      "user:alice",
		Relation:  "view",
		Object:    "doc:1",
		ValidFrom: time.Now().UTC(),
		IsActive:  true,
		Metadata:  models.JSONMap{},
		Version:   1,
	}
	require.NoError(t, repo.Create(context.Background(), rel))
	require.NotEqual(t, uuid.Nil, rel.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_FindByTuple_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT (.|\n)* FROM relationships").
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := repo.FindByTuple(context.Background(), "user:alice", "view", "doc:1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
