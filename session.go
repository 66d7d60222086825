// Package pgnative is a from-scratch client library for the PostgreSQL
// frontend/backend wire protocol v3. A Session owns exactly one TCP or
// Unix connection and serializes every operation issued against it — no
// background goroutines drive the protocol state machine, mirroring the
// teacher's single-goroutine-per-connection design (proxy/postgres/conn.go)
// generalized from a relaying proxy into an active client.
package pgnative

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	pgproto "github.com/jackc/pgproto3/v2"
	"github.com/rs/zerolog"

	"github.com/mickamy/pgnative/dsn"
	"github.com/mickamy/pgnative/internal/detect"
	"github.com/mickamy/pgnative/types"
	"github.com/mickamy/pgnative/wire"
)

// Default N+1 detector tuning: 5 occurrences of the same normalized query
// within a 1s window, at most one alert per 10s (spec.md §4.9's detector
// component, grounded on internal/detect's own doc comments).
const (
	nPlus1Threshold = 5
	nPlus1Window    = time.Second
	nPlus1Cooldown  = 10 * time.Second
)

// State is the Session's coarse-grained protocol state, driven by the
// TxStatus byte of every ReadyForQuery message (spec.md §3 "Session").
type State byte

const (
	StateConnecting State = iota
	StateReady
	StateInTransaction
	StateInFailedTransaction
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateInTransaction:
		return "in-transaction"
	case StateInFailedTransaction:
		return "in-failed-transaction"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Notification is a LISTEN/NOTIFY delivery, buffered FIFO until the caller
// drains it (spec.md §3 "Notification").
type Notification struct {
	PID     uint32
	Channel string
	Payload string
}

// QueryLogEntry records one completed Execute call, consumed by
// WatchNPlus1 and available for general diagnostics.
type QueryLogEntry struct {
	SQL          string
	DurationNote string
}

// Session is the spec.md §3 "Session": the cooperative, single-threaded
// facade over one connection, its statement/portal caches, and its
// transaction depth.
type Session struct {
	mu sync.Mutex // component G's internal token: one operation in flight at a time

	transport *wire.Transport
	registry  *types.Registry
	logger    zerolog.Logger

	cfg *dsn.Config

	state      State
	backendPID uint32
	secretKey  uint32
	params     map[string]string

	notices       []*DbError
	notifications []Notification

	statements *statementCache
	portals    *portalCache

	txDepth int

	detector       *detect.Detector
	queryLog       []QueryLogEntry
	nplus1Watchers []func(detect.Alert)
}

// WatchNPlus1 registers fn to be called whenever the query-frequency
// detector crosses its threshold for a normalized query shape (spec.md
// §4.5 supplement, adapted from internal/detect.Detector). fn is called
// synchronously from whichever goroutine is holding the Session at the
// time, so it must not call back into the Session.
func (s *Session) WatchNPlus1(fn func(detect.Alert)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nplus1Watchers = append(s.nplus1Watchers, fn)
}

// QueryLog returns the entries recorded since the Session was opened.
func (s *Session) QueryLog() []QueryLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueryLogEntry, len(s.queryLog))
	copy(out, s.queryLog)
	return out
}

// Connect dials, negotiates SSL per cfg.SSLMode, performs the startup/auth
// handshake, and returns a Session in StateReady. A minimal tls.Config is
// used when SSL is negotiated; use ConnectWithTLS to supply your own (e.g.
// to pin a server certificate).
func Connect(ctx context.Context, cfg *dsn.Config) (*Session, error) {
	return ConnectWithTLS(ctx, cfg, &tls.Config{ServerName: hostOf(cfg.Address)})
}

// ConnectWithTLS is Connect with an explicit tls.Config, used when
// cfg.SSLMode requests or requires SSL.
func ConnectWithTLS(ctx context.Context, cfg *dsn.Config, tlsCfg *tls.Config) (*Session, error) {
	mode := translateSSLMode(cfg.SSLMode)

	t, err := wire.Dial(cfg.Network, cfg.Address)
	if err != nil {
		return nil, wrapWireErr(err)
	}
	if nerr := t.Negotiate(mode, tlsCfg); nerr != nil {
		t.Close()
		return nil, wrapWireErr(nerr)
	}

	s := &Session{
		transport:  t,
		registry:   types.NewDefault(),
		logger:     zerolog.Nop(),
		cfg:        cfg,
		state:      StateConnecting,
		params:     make(map[string]string),
		statements: newStatementCache(),
		portals:    newPortalCache(),
		detector:   detect.New(nPlus1Threshold, nPlus1Window, nPlus1Cooldown),
	}

	if err := t.SendStartup(cfg.StartupParameters); err != nil {
		t.Close()
		return nil, wrapWireErr(err)
	}

	if err := s.runAuthHandshake(ctx, cfg.Password); err != nil {
		t.Close()
		return nil, err
	}

	s.logger.Debug().Uint32("pid", s.backendPID).Msg("session ready")
	return s, nil
}

func translateSSLMode(mode dsn.SSLMode) wire.SSLMode {
	switch mode {
	case dsn.SSLNone:
		return wire.SSLNone
	case dsn.SSLRequire:
		return wire.SSLRequire
	default:
		return wire.SSLPrefer
	}
}

// hostOf strips a trailing ":port" from a tcp address for use as a TLS
// ServerName; unix socket addresses pass through unchanged (SSL is never
// negotiated over them in practice, but Negotiate only runs if requested).
func hostOf(address string) string {
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == ':' {
			return address[:i]
		}
	}
	return address
}

// State reports the Session's current coarse-grained state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BackendPID returns the server process ID reported in BackendKeyData.
func (s *Session) BackendPID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backendPID
}

// Parameter returns a ParameterStatus value (e.g. "server_version",
// "TimeZone"), and whether it has been reported yet.
func (s *Session) Parameter(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.params[name]
	return v, ok
}

// DrainNotifications returns and clears all buffered LISTEN/NOTIFY
// deliveries received since the last drain.
func (s *Session) DrainNotifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notifications
	s.notifications = nil
	return out
}

// DrainNotices returns and clears all buffered NoticeResponse messages.
func (s *Session) DrainNotices() []*DbError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// Close sends Terminate and closes the underlying connection. Close is
// idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	_ = s.transport.Send(&pgproto.Terminate{})
	return wrapWireErr(s.transport.Close())
}

// Cancel issues a best-effort CancelRequest over a fresh, disjoint
// connection, per spec.md §4.8. It does not wait for the in-flight
// operation to observe the cancellation.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	network, address := s.cfg.Network, s.cfg.Address
	pid, secret := s.backendPID, s.secretKey
	s.mu.Unlock()

	ct, err := wire.Dial(network, address)
	if err != nil {
		return wrapWireErr(err)
	}
	defer ct.Close()
	return wrapWireErr(ct.SendCancelRequest(pid, secret))
}

// recordBackendMessage applies the effect of an asynchronous backend
// message that can arrive interleaved with any response (ParameterStatus,
// NoticeResponse, NotificationResponse), per spec.md §4.1.
func (s *Session) recordBackendMessage(msg pgproto.BackendMessage) bool {
	switch m := msg.(type) {
	case *pgproto.ParameterStatus:
		s.params[m.Name] = m.Value
		return true
	case *pgproto.NoticeResponse:
		s.notices = append(s.notices, noticeToDbError(m))
		return true
	case *pgproto.NotificationResponse:
		s.notifications = append(s.notifications, Notification{PID: m.PID, Channel: m.Channel, Payload: m.Payload})
		return true
	default:
		return false
	}
}

// applyReadyForQuery updates Session.state from the TxStatus byte.
func (s *Session) applyReadyForQuery(txStatus byte) {
	switch txStatus {
	case 'I':
		s.state = StateReady
		s.txDepth = 0
	case 'T':
		s.state = StateInTransaction
	case 'E':
		s.state = StateInFailedTransaction
	}
}

// noticeToDbError converts a wire NoticeResponse (or, via errorToDbError,
// an ErrorResponse) into the DbField-keyed map newDbError expects.
func noticeToDbError(m *pgproto.NoticeResponse) *DbError {
	return newDbError(map[DbField]string{
		FieldSeverity:         m.Severity,
		FieldCode:             m.Code,
		FieldMessage:          m.Message,
		FieldDetail:           m.Detail,
		FieldHint:             m.Hint,
		FieldPosition:         formatPos(m.Position),
		FieldInternalPosition: formatPos(m.InternalPosition),
		FieldInternalQuery:    m.InternalQuery,
		FieldWhere:            m.Where,
		FieldSchema:           m.SchemaName,
		FieldTable:            m.TableName,
		FieldColumn:           m.ColumnName,
		FieldDataType:         m.DataTypeName,
		FieldConstraint:       m.ConstraintName,
		FieldFile:             m.File,
		FieldLine:             formatPos(m.Line),
		FieldRoutine:          m.Routine,
	})
}

func errorToDbError(m *pgproto.ErrorResponse) *DbError {
	return newDbError(map[DbField]string{
		FieldSeverity:         m.Severity,
		FieldCode:             m.Code,
		FieldMessage:          m.Message,
		FieldDetail:           m.Detail,
		FieldHint:             m.Hint,
		FieldPosition:         formatPos(m.Position),
		FieldInternalPosition: formatPos(m.InternalPosition),
		FieldInternalQuery:    m.InternalQuery,
		FieldWhere:            m.Where,
		FieldSchema:           m.SchemaName,
		FieldTable:            m.TableName,
		FieldColumn:           m.ColumnName,
		FieldDataType:         m.DataTypeName,
		FieldConstraint:       m.ConstraintName,
		FieldFile:             m.File,
		FieldLine:             formatPos(m.Line),
		FieldRoutine:          m.Routine,
	})
}

func formatPos(v int32) string {
	if v == 0 {
		return ""
	}
	return itoa(int(v))
}
