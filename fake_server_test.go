package pgnative

import (
	"net"
	"strings"
	"testing"

	pgproto "github.com/jackc/pgproto3/v2"
)

// scriptedRows is the canned response a scriptedPostgres gives when a
// prepared statement's SQL text matches one of its keys: the column
// descriptors from RowDescription plus zero or more DataRow payloads.
type scriptedRows struct {
	columns   []pgproto.FieldDescription
	rows      [][][]byte
	tag       string
	paramOIDs []uint32
}

// scriptedPostgres is a minimal backend half of protocol v3: a scripted
// Parse/Describe/Sync, Bind/Execute/Close/Sync responder built directly on
// pgproto3.Backend. It exists only to drive this package's Session through
// the wire protocol in tests without a real server: it is not a SQL
// engine, it replies by verb/prefix and by a caller-supplied rows table
// keyed on SQL text.
type scriptedPostgres struct {
	conn    net.Conn
	backend *pgproto.Backend

	rowsFor map[string]scriptedRows
	failFor map[string]bool

	stmtSQL map[string]string // statement name -> SQL text, from Parse
	portal  map[string]string // portal name -> statement name, from Bind

	txStatus byte
}

func newScriptedPostgres(conn net.Conn) *scriptedPostgres {
	return &scriptedPostgres{
		conn:     conn,
		backend:  pgproto.NewBackend(pgproto.NewChunkReader(conn), conn),
		rowsFor:  make(map[string]scriptedRows),
		failFor:  make(map[string]bool),
		stmtSQL:  make(map[string]string),
		portal:   make(map[string]string),
		txStatus: 'I',
	}
}

// run completes the startup handshake and then answers messages until the
// connection closes. Any protocol-level failure is reported through t so a
// broken test fails loudly instead of hanging.
func (s *scriptedPostgres) run(t *testing.T) {
	t.Helper()
	if err := s.handshake(); err != nil {
		t.Errorf("fake server handshake: %v", err)
		return
	}
	for {
		msg, err := s.backend.Receive()
		if err != nil {
			return // client closed the connection; nothing left to serve
		}
		if err := s.dispatch(msg); err != nil {
			if err == errClientTerminated {
				return
			}
			t.Errorf("fake server dispatch %T: %v", msg, err)
			return
		}
	}
}

func (s *scriptedPostgres) handshake() error {
	if _, err := s.backend.ReceiveStartupMessage(); err != nil {
		return err
	}
	s.backend.Send(&pgproto.AuthenticationOk{})
	s.backend.Send(&pgproto.ParameterStatus{Name: "server_version", Value: "16.0"})
	s.backend.Send(&pgproto.BackendKeyData{ProcessID: 4242, SecretKey: 24242})
	s.backend.Send(&pgproto.ReadyForQuery{TxStatus: s.txStatus})
	return s.backend.Flush()
}

func (s *scriptedPostgres) dispatch(msg pgproto.FrontendMessage) error {
	switch m := msg.(type) {
	case *pgproto.Parse:
		s.stmtSQL[m.Name] = m.Query
		s.backend.Send(&pgproto.ParseComplete{})
		return nil

	case *pgproto.Describe:
		sql := s.stmtSQL[m.Name]
		rows, ok := s.rowsFor[sql]
		s.backend.Send(&pgproto.ParameterDescription{ParameterOIDs: rows.paramOIDs})
		if ok && rows.columns != nil {
			s.backend.Send(&pgproto.RowDescription{Fields: rows.columns})
		} else {
			s.backend.Send(&pgproto.NoData{})
		}
		return nil

	case *pgproto.Bind:
		s.portal[m.DestinationPortal] = m.PreparedStatement
		sql := s.stmtSQL[m.PreparedStatement]
		if s.failFor[sql] {
			return nil // error is reported from Execute, matching real postgres
		}
		s.backend.Send(&pgproto.BindComplete{})
		return nil

	case *pgproto.Execute:
		stmtName := s.portal[m.Portal]
		sql := s.stmtSQL[stmtName]
		if s.failFor[sql] {
			if s.txStatus == 'T' {
				s.txStatus = 'E'
			}
			s.backend.Send(&pgproto.ErrorResponse{
				Severity: "ERROR",
				Code:     "22012",
				Message:  "division by zero",
			})
			return nil
		}
		rows := s.rowsFor[sql]
		for _, row := range rows.rows {
			s.backend.Send(&pgproto.DataRow{Values: row})
		}
		tag := rows.tag
		if tag == "" {
			tag = commandTagFor(sql, len(rows.rows))
		}
		s.backend.Send(&pgproto.CommandComplete{CommandTag: []byte(tag)})
		return nil

	case *pgproto.Close:
		s.backend.Send(&pgproto.CloseComplete{})
		return nil

	case *pgproto.Sync:
		s.backend.Send(&pgproto.ReadyForQuery{TxStatus: s.txStatus})
		return s.backend.Flush()

	case *pgproto.Query:
		return s.handleSimpleQuery(m.String)

	case *pgproto.Terminate:
		return errClientTerminated

	default:
		return nil
	}
}

var errClientTerminated = errTerminated{}

type errTerminated struct{}

func (errTerminated) Error() string { return "client sent Terminate" }

// handleSimpleQuery answers the transaction-control statements this
// package's Tx issues over the simple query protocol, and canned SELECTs
// registered via rowsFor.
func (s *scriptedPostgres) handleSimpleQuery(sql string) error {
	upper := strings.ToUpper(strings.TrimSpace(sql))

	if rows, ok := s.rowsFor[sql]; ok {
		if rows.columns != nil {
			s.backend.Send(&pgproto.RowDescription{Fields: rows.columns})
		}
		for _, row := range rows.rows {
			s.backend.Send(&pgproto.DataRow{Values: row})
		}
		tag := rows.tag
		if tag == "" {
			tag = commandTagFor(sql, len(rows.rows))
		}
		s.backend.Send(&pgproto.CommandComplete{CommandTag: []byte(tag)})
		s.backend.Send(&pgproto.ReadyForQuery{TxStatus: s.txStatus})
		return s.backend.Flush()
	}

	switch {
	case strings.HasPrefix(upper, "BEGIN"):
		s.txStatus = 'T'
		s.sendTagAndReady("BEGIN")
	case strings.HasPrefix(upper, "COMMIT"):
		s.txStatus = 'I'
		s.sendTagAndReady("COMMIT")
	case strings.HasPrefix(upper, "SAVEPOINT"):
		s.sendTagAndReady("SAVEPOINT")
	case strings.HasPrefix(upper, "RELEASE SAVEPOINT"):
		s.sendTagAndReady("RELEASE")
	case strings.Contains(upper, "ROLLBACK TO SAVEPOINT"):
		// one or two statements: "ROLLBACK TO SAVEPOINT spN[; RELEASE SAVEPOINT spN]"
		s.backend.Send(&pgproto.CommandComplete{CommandTag: []byte("ROLLBACK")})
		if strings.Contains(upper, "RELEASE SAVEPOINT") {
			s.backend.Send(&pgproto.CommandComplete{CommandTag: []byte("RELEASE")})
		}
		s.txStatus = 'T'
		s.backend.Send(&pgproto.ReadyForQuery{TxStatus: s.txStatus})
		return s.backend.Flush()
	case strings.HasPrefix(upper, "ROLLBACK"):
		s.txStatus = 'I'
		s.sendTagAndReady("ROLLBACK")
	default:
		s.sendTagAndReady(commandTagFor(sql, 0))
	}
	return s.backend.Flush()
}

func (s *scriptedPostgres) sendTagAndReady(tag string) {
	s.backend.Send(&pgproto.CommandComplete{CommandTag: []byte(tag)})
	s.backend.Send(&pgproto.ReadyForQuery{TxStatus: s.txStatus})
}

// commandTagFor fabricates a plausible CommandComplete tag from a SQL
// verb, e.g. "SELECT 3", "UPDATE 0", matching spec.md §4.6's tag forms.
func commandTagFor(sql string, nrows int) string {
	fields := strings.Fields(strings.ToUpper(strings.TrimSpace(sql)))
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "SELECT":
		return "SELECT " + itoa(nrows)
	case "INSERT":
		return "INSERT 0 " + itoa(nrows)
	case "UPDATE":
		return "UPDATE " + itoa(nrows)
	case "DELETE":
		return "DELETE " + itoa(nrows)
	default:
		return fields[0]
	}
}
