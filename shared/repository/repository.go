// Package repository provides the generic sqlx helpers every
// Postgres-backed repository in authcore builds on.
package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/logx"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
)

// BaseRepository provides common database operations shared by the
// relationship, token, and session repositories.
type BaseRepository struct {
	db *sqlx.DB
}

func NewBaseRepository(db *sqlx.DB) *BaseRepository {
	return &BaseRepository{db: db}
}

func (r *BaseRepository) DB() *sqlx.DB {
	return r.db
}

// Create runs a named-parameter insert.
func (r *BaseRepository) Create(ctx context.Context, query string, args interface{}) error {
	_, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		logx.WithContext(ctx).Errorf("Failed to create record: %v", err)
		return apperrors.Wrap(apperrors.Database, "failed to create record", err)
	}
	return nil
}

// GetByID retrieves a single record, translating sql.ErrNoRows into a
// NotFound kind.
func (r *BaseRepository) GetByID(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := r.db.GetContext(ctx, dest, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperrors.NotFoundf("record not found")
		}
		logx.WithContext(ctx).Errorf("Failed to get record: %v", err)
		return apperrors.Wrap(apperrors.Database, "failed to get record", err)
	}
	return nil
}

// Update runs a named-parameter update and reports how many rows it
// touched, so version-guarded callers can treat zero rows as a
// benign optimistic-concurrency race rather than an error.
func (r *BaseRepository) Update(ctx context.Context, query string, args interface{}) (int64, error) {
	result, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		logx.WithContext(ctx).Errorf("Failed to update record: %v", err)
		return 0, apperrors.Wrap(apperrors.Database, "failed to update record", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.Database, "failed to read rows affected", err)
	}
	return n, nil
}

// Delete executes a delete-by-id statement.
func (r *BaseRepository) Delete(ctx context.Context, query string, id interface{}) error {
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		logx.WithContext(ctx).Errorf("Failed to delete record: %v", err)
		return apperrors.Wrap(apperrors.Database, "failed to delete record", err)
	}
	return nil
}

// List retrieves multiple records into dest (a pointer to a slice).
func (r *BaseRepository) List(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := r.db.SelectContext(ctx, dest, query, args...)
	if err != nil {
		logx.WithContext(ctx).Errorf("Failed to list records: %v", err)
		return apperrors.Wrap(apperrors.Database, "failed to list records", err)
	}
	return nil
}

// Transaction runs fn within a database transaction, rolling back on
// error or panic and committing otherwise.
func (r *BaseRepository) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		logx.WithContext(ctx).Errorf("Failed to begin transaction: %v", err)
		return apperrors.Wrap(apperrors.Database, "failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}
