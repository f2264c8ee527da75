package actum

import (
	"context"
	"errors"
	"fmt"
)

// savepointName returns the name for the savepoint opened at the given
// nesting level.
func savepointName(level int) string {
	return fmt.Sprintf("trans_%d", level)
}

// Begin enters a logical transaction. At depth zero a real transaction
// is started; at any deeper level a named savepoint is issued instead,
// so inner logical transactions can roll back independently of the
// outer one.
func (s *Session) Begin(ctx context.Context) error {
	if s.drv == nil {
		return ErrNotConfigured
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txDepth == 0 {
		tx, err := s.drv.Tx(ctx)
		if err != nil {
			return NewExecError("begin", "BEGIN", err)
		}
		s.tx = tx
		s.txDepth = 1
		return nil
	}
	stmt := "SAVEPOINT " + savepointName(s.txDepth)
	if err := s.tx.Exec(ctx, stmt, []any{}, nil); err != nil {
		return NewExecError("savepoint", stmt, err)
	}
	s.txDepth++
	return nil
}

// Commit leaves the innermost logical transaction. The real COMMIT is
// issued only when unwinding the outermost level; inner levels release
// their savepoint.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txDepth == 0 {
		return ErrNoTransaction
	}
	s.txDepth--
	if s.txDepth == 0 {
		tx := s.tx
		s.tx = nil
		if err := tx.Commit(); err != nil {
			return NewExecError("commit", "COMMIT", err)
		}
		return nil
	}
	stmt := "RELEASE SAVEPOINT " + savepointName(s.txDepth)
	if err := s.tx.Exec(ctx, stmt, []any{}, nil); err != nil {
		return NewExecError("commit", stmt, err)
	}
	return nil
}

// Rollback undoes the innermost logical transaction. Inner levels roll
// back to their savepoint; the outermost level issues a real ROLLBACK.
func (s *Session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txDepth == 0 {
		return ErrNoTransaction
	}
	s.txDepth--
	if s.txDepth == 0 {
		tx := s.tx
		s.tx = nil
		if err := tx.Rollback(); err != nil {
			return &RollbackError{Err: err}
		}
		return nil
	}
	stmt := "ROLLBACK TO SAVEPOINT " + savepointName(s.txDepth)
	if err := s.tx.Exec(ctx, stmt, []any{}, nil); err != nil {
		return NewExecError("rollback", stmt, err)
	}
	return nil
}

// TxDepth returns the current logical transaction depth.
func (s *Session) TxDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txDepth
}

// Transaction runs fn inside a logical transaction. The transaction is
// committed when fn returns nil and rolled back when it returns an
// error or panics. Nested calls map onto savepoints.
func (s *Session) Transaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := s.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = s.Rollback(ctx)
			panic(r)
		}
	}()
	if err := fn(ctx); err != nil {
		if rerr := s.Rollback(ctx); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return s.Commit(ctx)
}
