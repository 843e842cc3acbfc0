package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

// Batch is a single database transaction whose work can be split into
// savepoints, each of which may be rolled back on its own.
type Batch struct {
	tx interface {
		queryer
		Commit() error
		Rollback() error
	}
}

// BeginBatch starts a transaction. Callers must end it with Commit or
// Rollback.
func (r *SQLiteRepository) BeginBatch(ctx context.Context) (*Batch, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &Batch{tx: tx}, nil
}

// Savepoint opens a named savepoint. name must be a plain identifier.
func (b *Batch) Savepoint(ctx context.Context, name string) error {
	if _, err := b.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	return nil
}

// Release keeps the work done since the savepoint.
func (b *Batch) Release(ctx context.Context, name string) error {
	if _, err := b.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}

// RollbackTo discards the work done since the savepoint and closes it.
func (b *Batch) RollbackTo(ctx context.Context, name string) error {
	if _, err := b.tx.ExecContext(ctx, "ROLLBACK TO "+name); err != nil {
		return fmt.Errorf("rollback to %s: %w", name, err)
	}
	return b.Release(ctx, name)
}

// TransactionExists reports whether a row with the same date, category and
// description is already stored. Amount and direction are not compared.
func (b *Batch) TransactionExists(ctx context.Context, date core.Date, category, description string) (bool, error) {
	var one int
	err := b.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM expenses WHERE date = ? AND category IS ? AND description IS ?)`,
		date.String(), nullString(category), description).Scan(&one)
	if err != nil {
		return false, fmt.Errorf("check existing transaction: %w", err)
	}
	return one == 1, nil
}

func (b *Batch) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	return insertTransaction(ctx, b.tx, t)
}

func (b *Batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Rollback aborts the batch. It is safe to call after Commit.
func (b *Batch) Rollback() error {
	return b.tx.Rollback()
}
