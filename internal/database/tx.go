package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/citenet/internal/model"
)

// inTx runs fn in one transaction. Any error rolls the transaction back and
// is returned as a *model.StorageError naming op.
func (g *GraphDB) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.StorageError{Op: op, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, rbErr)
			}
			var se *model.StorageError
			if !errors.As(err, &se) {
				err = &model.StorageError{Op: op, Err: err}
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
