package pgnative

import (
	"context"
	"strconv"
	"strings"
	"time"

	pgproto "github.com/jackc/pgproto3/v2"

	"github.com/mickamy/pgnative/internal/normalize"
	"github.com/mickamy/pgnative/types"
)

// normalizedFor folds literal values out of sql so that repeated calls
// with different constants still share one N+1-detector bucket.
func normalizedFor(sql string) string {
	return normalize.Normalize(sql)
}

// Prepare parses and describes sql against the server, returning a cached
// Statement. A second Prepare call with the same literal text returns the
// cached Statement without round-tripping (spec.md §4.4).
func (s *Session) Prepare(ctx context.Context, sql string) (*Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepareLocked(ctx, sql)
}

func (s *Session) prepareLocked(ctx context.Context, sql string) (*Statement, error) {
	if st, ok := s.statements.lookup(sql); ok {
		return st, nil
	}

	name := s.statements.nextName()
	if err := s.transport.Send(&pgproto.Parse{Name: name, Query: sql}); err != nil {
		return nil, wrapWireErr(err)
	}
	if err := s.transport.Send(&pgproto.Describe{ObjectType: 'S', Name: name}); err != nil {
		return nil, wrapWireErr(err)
	}
	if err := s.transport.Send(&pgproto.Sync{}); err != nil {
		return nil, wrapWireErr(err)
	}

	st := &Statement{session: s, name: name, sql: sql}

	for {
		msg, err := s.transport.Receive()
		if err != nil {
			return nil, wrapWireErr(err)
		}
		if s.recordBackendMessage(msg) {
			continue
		}

		switch m := msg.(type) {
		case *pgproto.ParseComplete:
			continue
		case *pgproto.ParameterDescription:
			st.paramOIDs = m.ParameterOIDs
		case *pgproto.RowDescription:
			st.columns = columnsFromRowDescription(m)
		case *pgproto.NoData:
			st.returnsNoData = true
		case *pgproto.ErrorResponse:
			// Drain to ReadyForQuery before surfacing the error so the
			// session is usable for the next operation.
			s.drainToReady()
			return nil, errorToDbError(m)
		case *pgproto.ReadyForQuery:
			s.applyReadyForQuery(m.TxStatus)
			s.statements.store(st)
			return st, nil
		default:
			return nil, &ProtocolError{Reason: "unexpected message preparing statement"}
		}
	}
}

// Close releases the server-side resources for this Statement and evicts
// it from the cache.
func (st *Statement) Close(ctx context.Context) error {
	s := st.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.closed {
		return nil
	}
	if err := s.closeNamed(ctx, 'S', st.name); err != nil {
		return err
	}
	st.closed = true
	s.statements.remove(st)
	return nil
}

func (s *Session) closeNamed(ctx context.Context, objType byte, name string) error {
	if err := s.transport.Send(&pgproto.Close{ObjectType: objType, Name: name}); err != nil {
		return wrapWireErr(err)
	}
	if err := s.transport.Send(&pgproto.Sync{}); err != nil {
		return wrapWireErr(err)
	}
	for {
		msg, err := s.transport.Receive()
		if err != nil {
			return wrapWireErr(err)
		}
		if s.recordBackendMessage(msg) {
			continue
		}
		switch m := msg.(type) {
		case *pgproto.CloseComplete:
			continue
		case *pgproto.ErrorResponse:
			s.drainToReady()
			return errorToDbError(m)
		case *pgproto.ReadyForQuery:
			s.applyReadyForQuery(m.TxStatus)
			return nil
		default:
			return &ProtocolError{Reason: "unexpected message closing"}
		}
	}
}

// Execute binds params to stmt's unnamed portal and runs it to completion,
// buffering every DataRow in memory (spec.md §4.6's simpler synchronous
// alternative to server-side streaming). Results decode in text format by
// default.
func (s *Session) Execute(ctx context.Context, stmt *Statement, params []any) (*ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeLocked(ctx, stmt, params, "")
}

// ExecuteNamed is Execute, but binds to a named portal instead of the
// unnamed one (spec.md §4.4's "caller opts into a named portal to preserve
// it across Sync boundaries"). This engine still closes the portal before
// its own Sync, so the named portal never actually outlives this call; the
// name only distinguishes it in server-side logging/diagnostics.
func (s *Session) ExecuteNamed(ctx context.Context, stmt *Statement, name string, params []any) (*ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeLocked(ctx, stmt, params, s.portals.nextName(name))
}

func (s *Session) executeLocked(ctx context.Context, stmt *Statement, params []any, portalName string) (*ExecResult, error) {
	encoded := make([][]byte, len(params))
	for i, p := range params {
		if p == nil {
			continue
		}
		var targetOID uint32
		if i < len(stmt.paramOIDs) {
			targetOID = stmt.paramOIDs[i]
		}
		v, err := s.registry.EncodeValue(p, targetOID, types.Text)
		if err != nil {
			return nil, err
		}
		encoded[i] = v
	}

	portal := &Portal{name: portalName, stmt: stmt}

	bind := &pgproto.Bind{
		DestinationPortal:    portalName,
		PreparedStatement:    stmt.name,
		ParameterFormatCodes: []int16{0},
		Parameters:           encoded,
		ResultFormatCodes:    []int16{0},
	}
	if err := s.transport.Send(bind); err != nil {
		return nil, wrapWireErr(err)
	}
	if err := s.transport.Send(&pgproto.Execute{Portal: portalName, MaxRows: 0}); err != nil {
		return nil, wrapWireErr(err)
	}
	if err := s.transport.Send(&pgproto.Close{ObjectType: 'P', Name: portalName}); err != nil {
		return nil, wrapWireErr(err)
	}
	if err := s.transport.Send(&pgproto.Sync{}); err != nil {
		return nil, wrapWireErr(err)
	}
	s.portals.store(portal)

	start := time.Now()
	result := &ExecResult{}
	var rows [][][]byte

	for {
		msg, err := s.transport.Receive()
		if err != nil {
			return nil, wrapWireErr(err)
		}
		if s.recordBackendMessage(msg) {
			continue
		}

		switch m := msg.(type) {
		case *pgproto.BindComplete:
			continue
		case *pgproto.DataRow:
			row := make([][]byte, len(m.Values))
			copy(row, m.Values)
			rows = append(rows, row)
		case *pgproto.CommandComplete:
			result.CommandTag = string(m.CommandTag)
			result.RowsAffected = parseRowsAffected(result.CommandTag)
		case *pgproto.EmptyQueryResponse:
			continue
		case *pgproto.PortalSuspended:
			s.drainToReady()
			return nil, &BadResponseError{Reason: "unexpected PortalSuspended with MaxRows=0"}
		case *pgproto.CloseComplete:
			continue
		case *pgproto.ErrorResponse:
			s.drainToReady()
			return nil, errorToDbError(m)
		case *pgproto.ReadyForQuery:
			s.applyReadyForQuery(m.TxStatus)
			s.portals.remove(portal)
			if len(stmt.columns) > 0 {
				result.Rows = &Rows{cols: stmt.columns, data: rows, reg: s.registry}
			}
			s.recordQuery(stmt.sql, time.Since(start))
			return result, nil
		default:
			return nil, &ProtocolError{Reason: "unexpected message executing portal"}
		}
	}
}

// Query is a convenience wrapper: prepare then execute in one call.
func (s *Session) Query(ctx context.Context, sql string, params ...any) (*ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stmt, err := s.prepareLocked(ctx, sql)
	if err != nil {
		return nil, err
	}
	return s.executeLocked(ctx, stmt, params, "")
}

// executeSimpleLocked runs sql through the simple query protocol ('Q'),
// used internally for control statements (BEGIN/COMMIT/SAVEPOINT/…) that
// take no parameters and need no cached Statement. Caller must hold mu.
func (s *Session) executeSimpleLocked(ctx context.Context, sql string) (*ExecResult, error) {
	if err := s.transport.Send(&pgproto.Query{String: sql}); err != nil {
		return nil, wrapWireErr(err)
	}

	result := &ExecResult{}
	var cols []ColumnDescriptor
	var rows [][][]byte

	for {
		msg, err := s.transport.Receive()
		if err != nil {
			return nil, wrapWireErr(err)
		}
		if s.recordBackendMessage(msg) {
			continue
		}

		switch m := msg.(type) {
		case *pgproto.RowDescription:
			cols = columnsFromRowDescription(m)
		case *pgproto.DataRow:
			row := make([][]byte, len(m.Values))
			copy(row, m.Values)
			rows = append(rows, row)
		case *pgproto.CommandComplete:
			result.CommandTag = string(m.CommandTag)
			result.RowsAffected = parseRowsAffected(result.CommandTag)
		case *pgproto.EmptyQueryResponse:
			continue
		case *pgproto.ErrorResponse:
			s.drainToReady()
			return nil, errorToDbError(m)
		case *pgproto.ReadyForQuery:
			s.applyReadyForQuery(m.TxStatus)
			if len(cols) > 0 {
				result.Rows = &Rows{cols: cols, data: rows, reg: s.registry}
			}
			return result, nil
		default:
			return nil, &ProtocolError{Reason: "unexpected message in simple query"}
		}
	}
}

// drainToReady consumes and discards messages until ReadyForQuery, used
// after an ErrorResponse aborts an extended-query pipeline mid-flight.
func (s *Session) drainToReady() {
	for {
		msg, err := s.transport.Receive()
		if err != nil {
			return
		}
		if s.recordBackendMessage(msg) {
			continue
		}
		if rfq, ok := msg.(*pgproto.ReadyForQuery); ok {
			s.applyReadyForQuery(rfq.TxStatus)
			return
		}
	}
}

func (s *Session) recordQuery(sql string, d time.Duration) {
	s.queryLog = append(s.queryLog, QueryLogEntry{SQL: sql, DurationNote: d.String()})
	res := s.detector.Record(normalizedFor(sql), time.Now())
	if res.Alert != nil {
		for _, fn := range s.nplus1Watchers {
			fn(*res.Alert)
		}
	}
}

func columnsFromRowDescription(m *pgproto.RowDescription) []ColumnDescriptor {
	cols := make([]ColumnDescriptor, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = ColumnDescriptor{
			Name:          string(f.Name),
			TableOID:      f.TableOID,
			ColumnAttrNum: int16(f.TableAttributeNumber),
			TypeOID:       f.DataTypeOID,
			TypeSize:      f.DataTypeSize,
			TypeMod:       f.TypeModifier,
			Format:        types.FormatCode(f.Format),
		}
	}
	return cols
}

// parseRowsAffected extracts the trailing integer from a CommandComplete
// tag such as "UPDATE 3" or "INSERT 0 1". Tags with no trailing integer
// (e.g. "CREATE TABLE") yield zero.
func parseRowsAffected(tag string) int64 {
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return 0
	}
	last := fields[len(fields)-1]
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
