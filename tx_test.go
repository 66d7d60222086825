package pgnative

import (
	"context"
	"testing"
)

func TestTransactionNesting(t *testing.T) {
	t.Parallel()

	s := connectFake(t, nil)
	ctx := context.Background()

	tx1, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin depth 1: %v", err)
	}
	if tx1.Depth() != 1 {
		t.Fatalf("tx1 depth = %d, want 1", tx1.Depth())
	}
	if got := s.State(); got != StateInTransaction {
		t.Fatalf("state after begin = %v, want InTransaction", got)
	}

	tx2, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin depth 2: %v", err)
	}
	if tx2.Depth() != 2 {
		t.Fatalf("tx2 depth = %d, want 2", tx2.Depth())
	}
	if s.txDepth != 2 {
		t.Fatalf("session txDepth = %d, want 2", s.txDepth)
	}

	// The outer handle can't be finished while the inner one is still open.
	if err := tx1.Commit(ctx); err == nil {
		t.Fatal("expected TransactionActiveError committing tx1 while tx2 is open")
	} else if _, ok := err.(*TransactionActiveError); !ok {
		t.Fatalf("err = %T, want *TransactionActiveError", err)
	}

	// Nor can it run a query: only the innermost handle may operate.
	if _, err := tx1.Query(ctx, "SELECT 1"); err == nil {
		t.Fatal("expected TransactionActiveError querying tx1 while tx2 is open")
	} else if _, ok := err.(*TransactionActiveError); !ok {
		t.Fatalf("err = %T, want *TransactionActiveError", err)
	}

	if err := tx2.Commit(ctx); err != nil {
		t.Fatalf("commit tx2: %v", err)
	}
	if tx2.Demoted() {
		t.Fatal("tx2 should not have been demoted")
	}
	if s.txDepth != 1 {
		t.Fatalf("session txDepth after tx2 commit = %d, want 1", s.txDepth)
	}

	if err := tx1.Commit(ctx); err != nil {
		t.Fatalf("commit tx1: %v", err)
	}
	if s.txDepth != 0 {
		t.Fatalf("session txDepth after tx1 commit = %d, want 0", s.txDepth)
	}
	if got := s.State(); got != StateReady {
		t.Fatalf("state after outer commit = %v, want Ready", got)
	}
}

func TestTransactionRollback(t *testing.T) {
	t.Parallel()

	s := connectFake(t, nil)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if got := s.State(); got != StateReady {
		t.Fatalf("state after rollback = %v, want Ready", got)
	}

	// A second Commit/Rollback on an already-finished Tx is a no-op.
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("second rollback should be a no-op, got: %v", err)
	}
}

func TestCommitDemotedWhenTransactionFailed(t *testing.T) {
	t.Parallel()

	const sql = "SELECT 1 / 0"
	s := connectFake(t, func(srv *scriptedPostgres) {
		srv.failFor[sql] = true
	})
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if _, err := tx.Query(ctx, sql); err == nil {
		t.Fatal("expected the scripted division-by-zero error")
	}
	if got := s.State(); got != StateInFailedTransaction {
		t.Fatalf("state after failed query = %v, want InFailedTransaction", got)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit of a failed transaction should demote, not error: %v", err)
	}
	if !tx.Demoted() {
		t.Fatal("expected Commit to report Demoted() after a failed transaction")
	}
	if got := s.State(); got != StateReady {
		t.Fatalf("state after demoted commit = %v, want Ready", got)
	}
}
