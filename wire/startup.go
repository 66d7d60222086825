package wire

import pgproto "github.com/jackc/pgproto3/v2"

// ProtocolVersion is the protocol version code this client speaks
// (0x00030000, spec.md §3/§6). Re-exported from pgproto3 so callers never
// need to import it directly.
const ProtocolVersion = pgproto.ProtocolVersionNumber

// SendStartup sends the untagged startup frame carrying the given startup
// parameters (at minimum "user", and "database" / "application_name" /
// "client_encoding" / "options" / passthrough options when provided).
func (t *Transport) SendStartup(params map[string]string) error {
	msg := &pgproto.StartupMessage{
		ProtocolVersion: ProtocolVersion,
		Parameters:      params,
	}
	return t.Send(msg)
}
