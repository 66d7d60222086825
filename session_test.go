package pgnative

import (
	"context"
	"net"
	"testing"
	"time"

	pgproto "github.com/jackc/pgproto3/v2"
	"github.com/rs/zerolog"

	"github.com/mickamy/pgnative/dsn"
	"github.com/mickamy/pgnative/internal/detect"
	"github.com/mickamy/pgnative/types"
	"github.com/mickamy/pgnative/wire"
)

// connectFake wires a Session to one end of a net.Pipe whose other end is
// served by a scriptedPostgres, bypassing wire.Dial and the real network
// (spec.md §8's invariants are about message sequencing, not sockets).
// Callers configure srv before returning it so its rowsFor/failFor maps are
// populated before the handshake goroutine starts reading.
func connectFake(t *testing.T, configure func(srv *scriptedPostgres)) *Session {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	srv := newScriptedPostgres(serverConn)
	if configure != nil {
		configure(srv)
	}
	go srv.run(t)

	tr := wire.NewTransportFromConn(clientConn)
	if err := tr.Negotiate(wire.SSLNone, nil); err != nil {
		t.Fatalf("negotiate: %v", err)
	}

	cfg := &dsn.Config{
		// Network/Address deliberately point nowhere real: this Session
		// never dials them directly (the pipe above stands in for that),
		// and TestCancelUsesDisjointConnection relies on port 1 refusing
		// the connection immediately instead of timing out on DNS.
		Network:           "tcp",
		Address:           "127.0.0.1:1",
		User:              "test",
		Database:          "test",
		StartupParameters: map[string]string{"user": "test", "database": "test"},
	}

	s := &Session{
		transport:  tr,
		registry:   types.NewDefault(),
		logger:     zerolog.Nop(),
		cfg:        cfg,
		state:      StateConnecting,
		params:     make(map[string]string),
		statements: newStatementCache(),
		portals:    newPortalCache(),
		detector:   detect.New(nPlus1Threshold, nPlus1Window, nPlus1Cooldown),
	}

	if err := tr.SendStartup(cfg.StartupParameters); err != nil {
		t.Fatalf("send startup: %v", err)
	}
	if err := s.runAuthHandshake(context.Background(), ""); err != nil {
		t.Fatalf("auth handshake: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConnectReachesReady(t *testing.T) {
	t.Parallel()

	s := connectFake(t, nil)
	if got := s.State(); got != StateReady {
		t.Fatalf("state = %v, want Ready", got)
	}
	if s.BackendPID() != 4242 {
		t.Fatalf("backend pid = %d, want 4242", s.BackendPID())
	}
	if v, ok := s.Parameter("server_version"); !ok || v != "16.0" {
		t.Fatalf("server_version = %q, ok=%v", v, ok)
	}
}

func TestPrepareCachesByText(t *testing.T) {
	t.Parallel()

	s := connectFake(t, nil)
	ctx := context.Background()

	st1, err := s.Prepare(ctx, "SELECT 1")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	st2, err := s.Prepare(ctx, "SELECT 1")
	if err != nil {
		t.Fatalf("prepare (cached): %v", err)
	}
	if st1 != st2 {
		t.Fatal("expected the second Prepare of identical SQL to return the cached Statement")
	}
	if st1.Name() != "s1" {
		t.Fatalf("statement name = %q, want s1", st1.Name())
	}
}

func TestQueryReturnsRows(t *testing.T) {
	t.Parallel()

	const sql = "SELECT id, name FROM widgets"
	s := connectFake(t, func(srv *scriptedPostgres) {
		srv.rowsFor[sql] = scriptedRows{
			columns: textColumns("id", "name"),
			rows: [][][]byte{
				{[]byte("1"), []byte("alpha")},
				{[]byte("2"), []byte("beta")},
			},
		}
	})

	res, err := s.Query(context.Background(), sql)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Rows == nil {
		t.Fatal("expected a row set")
	}
	if got := res.Rows.Len(); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}

	var names []string
	for res.Rows.Next() {
		v, err := res.Rows.Row().Scan(1)
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		s, _ := v.(string)
		names = append(names, s)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("names = %v", names)
	}
}

func TestQueryAffectedRows(t *testing.T) {
	t.Parallel()

	const sql = "UPDATE widgets SET name = $1 WHERE false"
	s := connectFake(t, func(srv *scriptedPostgres) {
		srv.rowsFor[sql] = scriptedRows{tag: "UPDATE 0", paramOIDs: []uint32{types.OIDText}}
	})

	res, err := s.Query(context.Background(), sql, "renamed")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Rows != nil {
		t.Fatal("expected no row set for an UPDATE")
	}
	if res.RowsAffected != 0 {
		t.Fatalf("rows affected = %d, want 0", res.RowsAffected)
	}
	if res.CommandTag != "UPDATE 0" {
		t.Fatalf("command tag = %q", res.CommandTag)
	}
}

func TestDrainNotifications(t *testing.T) {
	t.Parallel()

	s := connectFake(t, nil)
	s.notifications = append(s.notifications, Notification{PID: 99, Channel: "chan", Payload: "hi"})

	got := s.DrainNotifications()
	if len(got) != 1 || got[0].Channel != "chan" {
		t.Fatalf("DrainNotifications() = %v", got)
	}
	if rest := s.DrainNotifications(); len(rest) != 0 {
		t.Fatalf("expected drain to clear the buffer, got %v", rest)
	}
}

func TestCancelUsesDisjointConnection(t *testing.T) {
	t.Parallel()

	// Cancel dials cfg.Network/cfg.Address again; against the fake in-memory
	// "tcp" address this must fail fast rather than hang, proving Cancel
	// never reuses the live Session's pipe connection.
	s := connectFake(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := s.Cancel(ctx); err == nil {
		t.Fatal("expected Cancel to fail dialing the fake address, proving it didn't reuse the pipe")
	}
}

// textColumns builds RowDescription fields for TEXT-typed columns, so
// tests read as column-name lists instead of full FieldDescription
// literals.
func textColumns(names ...string) []pgproto.FieldDescription {
	fields := make([]pgproto.FieldDescription, len(names))
	for i, name := range names {
		fields[i] = pgproto.FieldDescription{
			Name:        []byte(name),
			DataTypeOID: types.OIDText,
			DataTypeSize: -1,
			Format:      int16(types.Text),
		}
	}
	return fields
}
