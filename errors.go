package pgnative

import (
	"fmt"

	"github.com/mickamy/pgnative/wire"
)

// IoError wraps a transport failure. The session is permanently poisoned
// once one of these is returned.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("pgnative: io: %s: %v", e.Op, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// wrapWireErr re-wraps an error surfaced by the wire package's unexported
// ioError/protocolError into this package's exported IoError/ProtocolError,
// so callers of Session/Tx/Statement never see a wire-internal type.
// Anything else (DbError, context errors, errors this package already
// constructed) passes through unchanged.
func wrapWireErr(err error) error {
	if err == nil {
		return nil
	}
	if op, cause, ok := wire.IsIoError(err); ok {
		return &IoError{Op: op, Err: cause}
	}
	if reason, cause, ok := wire.IsProtocolError(err); ok {
		return &ProtocolError{Reason: reason, Err: cause}
	}
	return err
}

// ProtocolError indicates a frame or message did not conform to protocol
// version 3: an unexpected frame, a bad length, or a field that failed to
// decode. The session is poisoned.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pgnative: protocol: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("pgnative: protocol: %s", e.Reason)
}
func (e *ProtocolError) Unwrap() error { return e.Err }

// DbField names one of the fields PostgreSQL may include on an ErrorResponse
// or NoticeResponse, keyed by the single-byte field identifier used on the
// wire (see protocol-error-fields in the PostgreSQL documentation).
type DbField byte

const (
	FieldSeverity         DbField = 'S'
	FieldSeverityV        DbField = 'V' // severity not localized, protocol >= 3.0 only
	FieldCode             DbField = 'C'
	FieldMessage          DbField = 'M'
	FieldDetail           DbField = 'D'
	FieldHint             DbField = 'H'
	FieldPosition         DbField = 'P'
	FieldInternalPosition DbField = 'p'
	FieldInternalQuery    DbField = 'q'
	FieldWhere            DbField = 'W'
	FieldSchema           DbField = 's'
	FieldTable            DbField = 't'
	FieldColumn           DbField = 'c'
	FieldDataType         DbField = 'd'
	FieldConstraint       DbField = 'n'
	FieldFile             DbField = 'F'
	FieldLine             DbField = 'L'
	FieldRoutine          DbField = 'R'
)

// DbError is the Go representation of a server-reported ErrorResponse.
// The session is usable again once the following ReadyForQuery has been
// observed, though it may be InFailedTransaction.
type DbError struct {
	Severity         string
	Code             string // SQLSTATE
	Message          string
	Detail           string
	Hint             string
	Position         string
	InternalPosition string
	InternalQuery    string
	Where            string
	Schema           string
	Table            string
	Column           string
	DataTypeName     string
	Constraint       string
	File             string
	Line             string
	Routine          string
}

func (e *DbError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("pgnative: db: %s (%s): %s (%s)", e.Severity, e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("pgnative: db: %s (%s): %s", e.Severity, e.Code, e.Message)
}

// newDbError builds a DbError from the raw field map of an ErrorResponse or
// NoticeResponse frame.
func newDbError(fields map[DbField]string) *DbError {
	return &DbError{
		Severity:         fields[FieldSeverity],
		Code:             fields[FieldCode],
		Message:          fields[FieldMessage],
		Detail:           fields[FieldDetail],
		Hint:             fields[FieldHint],
		Position:         fields[FieldPosition],
		InternalPosition: fields[FieldInternalPosition],
		InternalQuery:    fields[FieldInternalQuery],
		Where:            fields[FieldWhere],
		Schema:           fields[FieldSchema],
		Table:            fields[FieldTable],
		Column:           fields[FieldColumn],
		DataTypeName:     fields[FieldDataType],
		Constraint:       fields[FieldConstraint],
		File:             fields[FieldFile],
		Line:             fields[FieldLine],
		Routine:          fields[FieldRoutine],
	}
}

// SQLSTATE for "query_canceled", surfaced when a server-side cancel request
// interrupts an in-flight query.
const SQLStateQueryCanceled = "57014"

// ConversionError reports that a value codec rejected an application value
// while encoding a parameter. Local to the call.
type ConversionError struct {
	Kind string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("pgnative: conversion: %s: %v", e.Kind, e.Err)
}
func (e *ConversionError) Unwrap() error { return e.Err }

// WrongTypeError reports that no codec matched a requested Go type against a
// column's or parameter's OID. Local to the call.
type WrongTypeError struct {
	Requested string
	ActualOID uint32
}

func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("pgnative: wrong type: cannot produce %s from oid %d", e.Requested, e.ActualOID)
}

// OutOfBoundsError reports an invalid row/column access.
type OutOfBoundsError struct {
	Index any
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("pgnative: out of bounds: column %v", e.Index)
}

// UnsupportedAuthError is fatal at connect time: the server requested an
// authentication method this client does not implement.
type UnsupportedAuthError struct {
	Method string
}

func (e *UnsupportedAuthError) Error() string {
	return fmt.Sprintf("pgnative: unsupported authentication method: %s", e.Method)
}

// BadResponseError indicates the server's response sequence did not satisfy
// the protocol contract this operation relies on (e.g. a spontaneous
// PortalSuspended). Poisons the session.
type BadResponseError struct {
	Reason string
}

func (e *BadResponseError) Error() string {
	return fmt.Sprintf("pgnative: bad response: %s", e.Reason)
}

// TransactionActiveError is returned when an outer transaction handle is
// used while an inner (nested) handle is still live.
type TransactionActiveError struct{}

func (e *TransactionActiveError) Error() string {
	return "pgnative: transaction active: an inner transaction handle must finish first"
}
