// Package wire implements the message codec (spec component A): framing and
// the startup/SSL negotiation handshake, built on top of jackc/pgproto3/v2's
// typed message structs rather than a hand-rolled byte parser.
package wire

import (
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	pgproto "github.com/jackc/pgproto3/v2"
)

// SSLMode selects whether and how TLS is negotiated before the startup
// message is sent, per spec.md §4.2/§6.
type SSLMode int

const (
	SSLNone SSLMode = iota
	SSLPrefer
	SSLRequire
)

const (
	// sslRequestCode is the 32-bit code PostgreSQL uses to recognize an
	// SSLRequest frame (0x04D2162F, spec.md §3).
	sslRequestCode = 80877103
)

// encoder is satisfied by every pgproto3 FrontendMessage.
type encoder interface {
	Encode(dst []byte) ([]byte, error)
}

// Transport owns the single duplex byte stream a Session speaks PostgreSQL
// protocol 3 over. It is a thin wrapper around pgproto3.Frontend: messages
// are written by encoding them directly (mirroring how a relay would forward
// them) and read through Frontend.Receive, which already implements framed,
// length-prefixed decoding per spec.md §4.1.
type Transport struct {
	conn     net.Conn
	frontend *pgproto.Frontend
}

// Dial opens the underlying connection (tcp or unix, chosen by network) and
// returns a Transport with no protocol state yet negotiated; call Negotiate
// next.
func Dial(network, address string) (*Transport, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, &ioError{Op: "dial", Err: err}
	}
	return &Transport{conn: conn}, nil
}

// NewTransportFromConn wraps an already-established connection (e.g. one
// obtained through an SSH tunnel, a test net.Pipe, or any other non-Dial
// path) the same way Dial would. Call Negotiate next.
func NewTransportFromConn(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

// Negotiate performs the optional SSLRequest exchange of spec.md §4.2 and
// then wires up the pgproto3.Frontend that will read BackendMessages for the
// rest of the connection's life.
func (t *Transport) Negotiate(mode SSLMode, tlsConfig *tls.Config) error {
	if mode != SSLNone {
		ok, err := t.requestSSL()
		if err != nil {
			return err
		}
		switch {
		case ok:
			if tlsConfig == nil {
				tlsConfig = &tls.Config{} //nolint:gosec // caller-supplied mode decides verification
			}
			t.conn = tls.Client(t.conn, tlsConfig)
		case mode == SSLRequire:
			return &protocolError{Reason: "server declined SSL but sslmode=require"}
		}
		// SSLPrefer with ok == false: continue in plaintext.
	}

	t.frontend = pgproto.NewFrontend(pgproto.NewChunkReader(t.conn), t.conn)
	return nil
}

// requestSSL writes the untagged SSLRequest frame and reads the server's
// single-byte reply: 'S' to proceed with TLS, 'N' for plaintext only.
func (t *Transport) requestSSL() (bool, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], 8)
	binary.BigEndian.PutUint32(buf[4:8], sslRequestCode)
	if _, err := t.conn.Write(buf); err != nil {
		return false, &ioError{Op: "write sslrequest", Err: err}
	}

	var resp [1]byte
	if _, err := io.ReadFull(t.conn, resp[:]); err != nil {
		return false, &ioError{Op: "read sslrequest reply", Err: err}
	}
	switch resp[0] {
	case 'S':
		return true, nil
	case 'N':
		return false, nil
	default:
		return false, &protocolError{Reason: fmt.Sprintf("unexpected sslrequest reply byte %q", resp[0])}
	}
}

// Send encodes and writes a single FrontendMessage. Frames are atomic: the
// whole encoded buffer is written in one Write call.
func (t *Transport) Send(msg encoder) error {
	buf, err := msg.Encode(nil)
	if err != nil {
		return &protocolError{Reason: "encode frontend message", Err: err}
	}
	if _, err := t.conn.Write(buf); err != nil {
		return &ioError{Op: "write", Err: err}
	}
	return nil
}

// Receive reads the next BackendMessage. Partial frames are never observed:
// pgproto3.Frontend buffers until a full length-prefixed message is
// available.
func (t *Transport) Receive() (pgproto.BackendMessage, error) {
	if t.frontend == nil {
		return nil, &protocolError{Reason: "receive before negotiate"}
	}
	msg, err := t.frontend.Receive()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ioError{Op: "receive", Err: err}
		}
		return nil, &protocolError{Reason: "receive", Err: err}
	}
	return msg, nil
}

// Conn returns the underlying stream. Nothing in this module calls it:
// Session.Cancel dials its own disjoint connection instead.
func (t *Transport) Conn() net.Conn { return t.conn }

// Close closes the underlying stream.
func (t *Transport) Close() error {
	if err := t.conn.Close(); err != nil {
		return &ioError{Op: "close", Err: err}
	}
	return nil
}

// ioError and protocolError are unexported mirrors of the root package's
// IoError/ProtocolError: this package cannot import the root package
// (it would cycle), so the root package re-wraps these by matching on
// the exported Is* helpers below when it surfaces errors to callers.
type ioError struct {
	Op  string
	Err error
}

func (e *ioError) Error() string { return fmt.Sprintf("wire: io: %s: %v", e.Op, e.Err) }
func (e *ioError) Unwrap() error { return e.Err }

type protocolError struct {
	Reason string
	Err    error
}

func (e *protocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: protocol: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("wire: protocol: %s", e.Reason)
}
func (e *protocolError) Unwrap() error { return e.Err }

// IsIoError reports whether err originated as a transport failure, and if so
// returns the operation name and underlying cause so the root package can
// rebuild its own exported IoError from them.
func IsIoError(err error) (op string, cause error, ok bool) {
	var e *ioError
	if errors.As(err, &e) {
		return e.Op, e.Err, true
	}
	return "", nil, false
}

// IsProtocolError reports whether err originated as a framing/protocol
// failure, and if so returns the reason and underlying cause so the root
// package can rebuild its own exported ProtocolError from them.
func IsProtocolError(err error) (reason string, cause error, ok bool) {
	var e *protocolError
	if errors.As(err, &e) {
		return e.Reason, e.Err, true
	}
	return "", nil, false
}
