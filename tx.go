package pgnative

import "context"

// Tx is a handle to one level of the Session's transaction nesting
// (spec.md §4.7). The outermost Tx issues BEGIN/COMMIT/ROLLBACK; nested
// Tx values issue SAVEPOINT/RELEASE SAVEPOINT/ROLLBACK TO SAVEPOINT, named
// "sp<depth>". Only the innermost live Tx may be committed or rolled
// back — using an outer handle while an inner one is still open returns
// TransactionActiveError.
type Tx struct {
	session *Session
	depth   int
	done    bool
	demoted bool
}

// Begin starts a new transaction, or a new savepoint if one is already
// open on this Session.
func (s *Session) Begin(ctx context.Context) (*Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	depth := s.txDepth + 1
	var sql string
	if depth == 1 {
		sql = "BEGIN"
	} else {
		sql = "SAVEPOINT sp" + itoa(depth)
	}

	if _, err := s.executeSimpleLocked(ctx, sql); err != nil {
		return nil, err
	}
	s.txDepth = depth

	return &Tx{session: s, depth: depth}, nil
}

// Commit commits this transaction level: COMMIT at depth 1, RELEASE
// SAVEPOINT at deeper levels. If the session is InFailedTransaction, the
// commit is silently demoted to a rollback per spec.md §4.6 — check
// Demoted after Commit returns to see whether that happened. Returns
// TransactionActiveError if a more deeply nested Tx is still open.
func (tx *Tx) Commit(ctx context.Context) error {
	return tx.finish(ctx, true)
}

// Rollback rolls back this transaction level: ROLLBACK at depth 1,
// ROLLBACK TO SAVEPOINT at deeper levels. Returns TransactionActiveError
// if a more deeply nested Tx is still open.
func (tx *Tx) Rollback(ctx context.Context) error {
	return tx.finish(ctx, false)
}

// Demoted reports whether the most recent Commit was silently downgraded
// to a rollback because the session was InFailedTransaction at release
// time (spec.md §4.6).
func (tx *Tx) Demoted() bool { return tx.demoted }

func (tx *Tx) finish(ctx context.Context, commit bool) error {
	s := tx.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.done {
		return nil
	}
	if s.txDepth != tx.depth {
		return &TransactionActiveError{}
	}

	if commit && s.state == StateInFailedTransaction {
		commit = false
		tx.demoted = true
	}

	var sql string
	switch {
	case commit && tx.depth == 1:
		sql = "COMMIT"
	case commit:
		sql = "RELEASE SAVEPOINT sp" + itoa(tx.depth)
	case tx.depth == 1:
		sql = "ROLLBACK"
	default:
		sql = "ROLLBACK TO SAVEPOINT sp" + itoa(tx.depth) + "; RELEASE SAVEPOINT sp" + itoa(tx.depth)
	}

	if _, err := s.executeSimpleLocked(ctx, sql); err != nil {
		return err
	}

	tx.done = true
	if tx.depth == 1 {
		s.txDepth = 0
	} else {
		s.txDepth = tx.depth - 1
	}
	return nil
}

// Depth returns this Tx's nesting level (1 for the outermost transaction).
func (tx *Tx) Depth() int { return tx.depth }

// innermost reports whether tx is still the live handle for its Session:
// only the innermost open Tx may perform operations (spec.md §4.6) — an
// outer handle used while a deeper one is open gets TransactionActiveError
// instead of silently racing ahead of the nested scope.
func (tx *Tx) innermost() error {
	if tx.done {
		return &TransactionActiveError{}
	}
	if tx.session.txDepth != tx.depth {
		return &TransactionActiveError{}
	}
	return nil
}

// Prepare is Session.Prepare, restricted to this Tx's scope: it fails with
// TransactionActiveError once a more deeply nested Tx has been opened, so
// callers cannot bypass the nesting by reaching for the Session directly.
func (tx *Tx) Prepare(ctx context.Context, sql string) (*Statement, error) {
	s := tx.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := tx.innermost(); err != nil {
		return nil, err
	}
	return s.prepareLocked(ctx, sql)
}

// Execute is Session.Execute, restricted to this Tx's scope (spec.md §4.6).
func (tx *Tx) Execute(ctx context.Context, stmt *Statement, params []any) (*ExecResult, error) {
	s := tx.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := tx.innermost(); err != nil {
		return nil, err
	}
	return s.executeLocked(ctx, stmt, params, "")
}

// Query is Session.Query, restricted to this Tx's scope (spec.md §4.6).
func (tx *Tx) Query(ctx context.Context, sql string, params ...any) (*ExecResult, error) {
	s := tx.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := tx.innermost(); err != nil {
		return nil, err
	}
	stmt, err := s.prepareLocked(ctx, sql)
	if err != nil {
		return nil, err
	}
	return s.executeLocked(ctx, stmt, params, "")
}
