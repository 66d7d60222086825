// Package types implements the bidirectional type registry and value codecs
// of spec.md §4.3: the mapping between application values and PostgreSQL's
// typed wire representations, keyed by OID and negotiated per call as text
// or binary.
package types

import "fmt"

// FormatCode is the per-parameter/per-column format negotiated in Bind:
// text (0) or binary (1), per spec.md §4.3.
type FormatCode int16

const (
	Text   FormatCode = 0
	Binary FormatCode = 1
)

// Well-known OIDs, spec.md §3/§6.
const (
	OIDBool        uint32 = 16
	OIDBytea       uint32 = 17
	OIDChar        uint32 = 18
	OIDName        uint32 = 19
	OIDInt8        uint32 = 20
	OIDInt2        uint32 = 21
	OIDInt4        uint32 = 23
	OIDText        uint32 = 25
	OIDOID         uint32 = 26
	OIDJSON        uint32 = 114
	OIDFloat4      uint32 = 700
	OIDFloat8      uint32 = 701
	OIDBPChar      uint32 = 1042
	OIDVarchar     uint32 = 1043
	OIDDate        uint32 = 1082
	OIDTime        uint32 = 1083
	OIDTimestamp   uint32 = 1114
	OIDTimestampTZ uint32 = 1184
	OIDUUID        uint32 = 2950
	OIDJSONB       uint32 = 3802
)

// pgEpoch is the point PostgreSQL measures date/time OIDs relative to:
// 2000-01-01 00:00:00 UTC, spec.md §6.

// Codec is the pair (encode, decode) for one logical type, together with an
// accepts predicate over OIDs, per spec.md §4.3's Design Notes (§9):
// "capability-polymorphic over {accepts(oid), encode(value,out),
// decode(oid, bytes)}".
type Codec interface {
	// Name identifies the codec for error messages (e.g. "int4", "uuid").
	Name() string
	// Accepts reports whether this codec can decode columns or bind
	// parameters declared with the given OID.
	Accepts(oid uint32) bool
	// EncodeOID is the OID this codec advertises for parameter description
	// when no target OID has been negotiated yet.
	EncodeOID() uint32
	// Encode converts an application value to wire bytes in the requested
	// format. Returns ErrUnsupportedValue if v's concrete type cannot be
	// produced by this codec.
	Encode(v any, format FormatCode) ([]byte, error)
	// Decode converts wire bytes (already stripped of the null sentinel) for
	// the given oid/format into an application value.
	Decode(oid uint32, data []byte, format FormatCode) (any, error)
}

// ErrUnsupportedValue is returned by a Codec's Encode when v's concrete type
// is not one it can produce.
type ErrUnsupportedValue struct {
	Codec string
	Value any
}

func (e *ErrUnsupportedValue) Error() string {
	return fmt.Sprintf("types: %s codec cannot encode %T", e.Codec, e.Value)
}

// Registry is a lookup table from OID to Codec. NewDefault builds a fresh
// table of the built-in codecs on every call, so each Session has its own;
// Register and BindOID change the table in place, and Clone gives a copy
// that can be extended without changing the original.
type Registry struct {
	byOID map[uint32]Codec
	named map[string]Codec // extension types without a stable OID until discovered
}

// NewRegistry returns an empty registry. Use NewDefault for the built-in set.
func NewRegistry() *Registry {
	return &Registry{
		byOID: make(map[uint32]Codec),
		named: make(map[string]Codec),
	}
}

// Clone returns a shallow copy whose byOID/named maps can be extended
// independently of the receiver, used to layer per-session codecs on top of
// the shared default registry (spec.md §9).
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for oid, codec := range r.byOID {
		c.byOID[oid] = codec
	}
	for name, codec := range r.named {
		c.named[name] = codec
	}
	return c
}

// Register adds (or replaces) a codec for a stable, well-known OID.
func (r *Registry) Register(oid uint32, codec Codec) {
	r.byOID[oid] = codec
}

// RegisterNamed adds a codec for an extension type whose OID is only known
// at runtime (e.g. hstore, citext), keyed by its pg_type.typname. Call
// BindOID once the OID has been discovered, e.g. via
// `SELECT oid FROM pg_type WHERE typname = $1`.
func (r *Registry) RegisterNamed(typeName string, codec Codec) {
	r.named[typeName] = codec
}

// BindOID promotes a named codec to a concrete OID once discovered at
// runtime.
func (r *Registry) BindOID(typeName string, oid uint32) bool {
	codec, ok := r.named[typeName]
	if !ok {
		return false
	}
	r.byOID[oid] = codec
	return true
}

// Lookup finds the codec registered for oid: a built-in OID, one added with
// Register, or one bound with BindOID. Named codecs not yet bound to an OID
// are not consulted.
func (r *Registry) Lookup(oid uint32) (Codec, bool) {
	c, ok := r.byOID[oid]
	return c, ok
}

// EncodeValue finds the codec registered under targetOID (or, failing
// that, one whose Accepts(targetOID) is true) and encodes v through it.
// EncodeOID is not consulted.
func (r *Registry) EncodeValue(v any, targetOID uint32, format FormatCode) ([]byte, error) {
	if codec, ok := r.byOID[targetOID]; ok {
		b, err := codec.Encode(v, format)
		if err == nil {
			return b, nil
		}
		return nil, err
	}
	for _, codec := range r.byOID {
		if codec.Accepts(targetOID) {
			return codec.Encode(v, format)
		}
	}
	return nil, &WrongTypeError{Requested: fmt.Sprintf("%T", v), ActualOID: targetOID}
}

// Decode finds a codec whose Accepts(oid) is true and decodes data through
// it.
func (r *Registry) Decode(oid uint32, data []byte, format FormatCode) (any, error) {
	if codec, ok := r.byOID[oid]; ok {
		return codec.Decode(oid, data, format)
	}
	for _, codec := range r.byOID {
		if codec.Accepts(oid) {
			return codec.Decode(oid, data, format)
		}
	}
	return nil, &WrongTypeError{Requested: "any", ActualOID: oid}
}

// WrongTypeError mirrors the root package's error of the same name (this
// package cannot import it without cycling). Session and Row return it as
// is; it is not converted into pgnative.WrongTypeError.
type WrongTypeError struct {
	Requested string
	ActualOID uint32
}

func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("types: no codec produces %s for oid %d", e.Requested, e.ActualOID)
}

// NewDefault returns the built-in codec table of spec.md §6.
func NewDefault() *Registry {
	r := NewRegistry()
	r.Register(OIDBool, boolCodec{})
	r.Register(OIDChar, charCodec{})
	r.Register(OIDInt2, int2Codec{})
	r.Register(OIDInt4, int4Codec{})
	r.Register(OIDOID, oidCodec{})
	r.Register(OIDInt8, int8Codec{})
	r.Register(OIDFloat4, float4Codec{})
	r.Register(OIDFloat8, float8Codec{})
	textC := textCodec{}
	r.Register(OIDText, textC)
	r.Register(OIDVarchar, textC)
	r.Register(OIDBPChar, textC)
	r.Register(OIDName, textC)
	r.Register(OIDBytea, byteaCodec{})
	r.Register(OIDJSON, jsonCodec{jsonb: false})
	r.Register(OIDJSONB, jsonCodec{jsonb: true})
	r.Register(OIDTimestamp, timestampCodec{tz: false})
	r.Register(OIDTimestampTZ, timestampCodec{tz: true})
	r.Register(OIDDate, dateCodec{})
	r.Register(OIDTime, timeCodec{})
	r.Register(OIDUUID, uuidCodec{})
	r.RegisterNamed("hstore", hstoreCodec{})
	r.RegisterNamed("citext", textC)
	return r
}
