package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx groups statements so a mid-sequence failure leaves no partial
// writes. Used by the patch-style operations that update one column at
// a time.
type Tx struct {
	tx     *sql.Tx
	flavor Flavor
}

// Begin starts a transaction.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx, flavor: d.flavor}, nil
}

// Exec runs a statement inside the transaction and returns the number
// of affected rows.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if t.flavor == FlavorPostgres {
		query = rebind(query)
	}
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rows, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit; the
// resulting error is ignored by callers on that path.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
