package wire

import pgproto "github.com/jackc/pgproto3/v2"

// SendCancelRequest writes the untagged 16-byte CancelRequest frame (spec.md
// §6) on a transport that has not yet sent a startup message. Callers are
// expected to open a fresh, short-lived connection for this (spec.md §4.7),
// write the request, then close.
func (t *Transport) SendCancelRequest(pid, secretKey uint32) error {
	msg := &pgproto.CancelRequest{
		ProcessID: pid,
		SecretKey: secretKey,
	}
	return t.Send(msg)
}
