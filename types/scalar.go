package types

import (
	"encoding/binary"
	"math"
	"strconv"
)

// boolCodec: BOOL (16) <-> bool.
type boolCodec struct{}

func (boolCodec) Name() string          { return "bool" }
func (boolCodec) Accepts(oid uint32) bool { return oid == OIDBool }
func (boolCodec) EncodeOID() uint32     { return OIDBool }

func (boolCodec) Encode(v any, format FormatCode) ([]byte, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "bool", Value: v}
	}
	if format == Text {
		if b {
			return []byte("t"), nil
		}
		return []byte("f"), nil
	}
	if b {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (boolCodec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		return len(data) > 0 && (data[0] == 't' || data[0] == 'T'), nil
	}
	return len(data) > 0 && data[0] != 0, nil
}

// charCodec: "char" (18) <-> int8 (single byte).
type charCodec struct{}

func (charCodec) Name() string          { return "char" }
func (charCodec) Accepts(oid uint32) bool { return oid == OIDChar }
func (charCodec) EncodeOID() uint32     { return OIDChar }

func (charCodec) Encode(v any, format FormatCode) ([]byte, error) {
	i, ok := asInt64(v)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "char", Value: v}
	}
	return []byte{byte(i)}, nil
}

func (charCodec) Decode(_ uint32, data []byte, _ FormatCode) (any, error) {
	if len(data) == 0 {
		return int8(0), nil
	}
	return int8(data[0]), nil
}

// int2Codec: INT2 (21) <-> int16.
type int2Codec struct{}

func (int2Codec) Name() string          { return "int2" }
func (int2Codec) Accepts(oid uint32) bool { return oid == OIDInt2 }
func (int2Codec) EncodeOID() uint32     { return OIDInt2 }

func (int2Codec) Encode(v any, format FormatCode) ([]byte, error) {
	i, ok := asInt64(v)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "int2", Value: v}
	}
	if format == Text {
		return strconv.AppendInt(nil, i, 10), nil
	}
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(int16(i)))
	return buf, nil
}

func (int2Codec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		n, err := strconv.ParseInt(string(data), 10, 16)
		if err != nil {
			return nil, &ConversionError{Kind: "int2", Err: err}
		}
		return int16(n), nil
	}
	if len(data) != 2 {
		return nil, &ConversionError{Kind: "int2", Err: errBadLength(2, len(data))}
	}
	return int16(binary.BigEndian.Uint16(data)), nil
}

// int4Codec: INT4/regtype-like (23) <-> int32.
type int4Codec struct{}

func (int4Codec) Name() string          { return "int4" }
func (int4Codec) Accepts(oid uint32) bool { return oid == OIDInt4 }
func (int4Codec) EncodeOID() uint32     { return OIDInt4 }

func (int4Codec) Encode(v any, format FormatCode) ([]byte, error) {
	i, ok := asInt64(v)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "int4", Value: v}
	}
	if format == Text {
		return strconv.AppendInt(nil, i, 10), nil
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(int32(i)))
	return buf, nil
}

func (int4Codec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		n, err := strconv.ParseInt(string(data), 10, 32)
		if err != nil {
			return nil, &ConversionError{Kind: "int4", Err: err}
		}
		return int32(n), nil
	}
	if len(data) != 4 {
		return nil, &ConversionError{Kind: "int4", Err: errBadLength(4, len(data))}
	}
	return int32(binary.BigEndian.Uint32(data)), nil
}

// oidCodec: OID (26) <-> uint32.
type oidCodec struct{}

func (oidCodec) Name() string          { return "oid" }
func (oidCodec) Accepts(oid uint32) bool { return oid == OIDOID }
func (oidCodec) EncodeOID() uint32     { return OIDOID }

func (oidCodec) Encode(v any, format FormatCode) ([]byte, error) {
	u, ok := asUint64(v)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "oid", Value: v}
	}
	if format == Text {
		return strconv.AppendUint(nil, u, 10), nil
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(u))
	return buf, nil
}

func (oidCodec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		n, err := strconv.ParseUint(string(data), 10, 32)
		if err != nil {
			return nil, &ConversionError{Kind: "oid", Err: err}
		}
		return uint32(n), nil
	}
	if len(data) != 4 {
		return nil, &ConversionError{Kind: "oid", Err: errBadLength(4, len(data))}
	}
	return binary.BigEndian.Uint32(data), nil
}

// int8Codec: INT8 (20) <-> int64.
type int8Codec struct{}

func (int8Codec) Name() string          { return "int8" }
func (int8Codec) Accepts(oid uint32) bool { return oid == OIDInt8 }
func (int8Codec) EncodeOID() uint32     { return OIDInt8 }

func (int8Codec) Encode(v any, format FormatCode) ([]byte, error) {
	i, ok := asInt64(v)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "int8", Value: v}
	}
	if format == Text {
		return strconv.AppendInt(nil, i, 10), nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(i))
	return buf, nil
}

func (int8Codec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return nil, &ConversionError{Kind: "int8", Err: err}
		}
		return n, nil
	}
	if len(data) != 8 {
		return nil, &ConversionError{Kind: "int8", Err: errBadLength(8, len(data))}
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

// float4Codec: FLOAT4 (700) <-> float32.
type float4Codec struct{}

func (float4Codec) Name() string          { return "float4" }
func (float4Codec) Accepts(oid uint32) bool { return oid == OIDFloat4 }
func (float4Codec) EncodeOID() uint32     { return OIDFloat4 }

func (float4Codec) Encode(v any, format FormatCode) ([]byte, error) {
	f, ok := v.(float32)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "float4", Value: v}
	}
	if format == Text {
		return strconv.AppendFloat(nil, float64(f), 'g', -1, 32), nil
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, math.Float32bits(f))
	return buf, nil
}

func (float4Codec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		f, err := strconv.ParseFloat(string(data), 32)
		if err != nil {
			return nil, &ConversionError{Kind: "float4", Err: err}
		}
		return float32(f), nil
	}
	if len(data) != 4 {
		return nil, &ConversionError{Kind: "float4", Err: errBadLength(4, len(data))}
	}
	return math.Float32frombits(binary.BigEndian.Uint32(data)), nil
}

// float8Codec: FLOAT8 (701) <-> float64.
type float8Codec struct{}

func (float8Codec) Name() string          { return "float8" }
func (float8Codec) Accepts(oid uint32) bool { return oid == OIDFloat8 }
func (float8Codec) EncodeOID() uint32     { return OIDFloat8 }

func (float8Codec) Encode(v any, format FormatCode) ([]byte, error) {
	f, ok := v.(float64)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "float8", Value: v}
	}
	if format == Text {
		return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(f))
	return buf, nil
}

func (float8Codec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return nil, &ConversionError{Kind: "float8", Err: err}
		}
		return f, nil
	}
	if len(data) != 8 {
		return nil, &ConversionError{Kind: "float8", Err: errBadLength(8, len(data))}
	}
	return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case int32:
		return uint64(n), true
	case int64:
		return uint64(n), true
	default:
		return 0, false
	}
}

func errBadLength(want, got int) error {
	return &lengthError{want: want, got: got}
}

type lengthError struct{ want, got int }

func (e *lengthError) Error() string {
	return "wire value has wrong length: want " + strconv.Itoa(e.want) + " got " + strconv.Itoa(e.got)
}
