package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quangtmn/visitreg/internal/models"
)

func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		case "53300", "57P01", "57P02", "57P03": // too_many_connections, shutdown states
			return models.ErrStoreUnavailable
		}
	}

	if pgconn.Timeout(err) {
		return models.ErrStoreUnavailable
	}

	return err
}

func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return models.ErrStoreUnavailable
	}
	return runInTx(ctx, tx, fn)
}

// runInTx runs fn and commits, rolling back on error or panic. Nothing is
// persisted until COMMIT returns, so a commit failure surfaces to the caller.
func runInTx(ctx context.Context, tx pgx.Tx, fn func(pgx.Tx) error) error {
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return MapPostgresError(err)
	}
	return nil
}
