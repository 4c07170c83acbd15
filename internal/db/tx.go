package db

import (
	"context"
	"database/sql"
	"errors"
)

// MakeTx begins a transaction. discard rolls it back and is a no-op once
// commit succeeded, so it can always be deferred.
type MakeTx = func(ctx context.Context) (tx *Queries, discard, commit func() error, err error)

func NewMakeTx(database *sql.DB) MakeTx {
	return func(ctx context.Context) (*Queries, func() error, func() error, error) {
		sqltx, err := database.BeginTx(ctx, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		discard := func() error {
			err := sqltx.Rollback()
			if errors.Is(err, sql.ErrTxDone) {
				return nil
			}
			return err
		}
		return New(sqltx), discard, sqltx.Commit, nil
	}
}
