package types

// textCodec covers TEXT, VARCHAR, BPCHAR, NAME and CITEXT: all are UTF-8
// strings on the wire in both formats, spec.md §6.
type textCodec struct{}

func (textCodec) Name() string { return "text" }
func (textCodec) Accepts(oid uint32) bool {
	switch oid {
	case OIDText, OIDVarchar, OIDBPChar, OIDName:
		return true
	default:
		return false
	}
}
func (textCodec) EncodeOID() uint32 { return OIDText }

func (textCodec) Encode(v any, _ FormatCode) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	default:
		return nil, &ErrUnsupportedValue{Codec: "text", Value: v}
	}
}

func (textCodec) Decode(_ uint32, data []byte, _ FormatCode) (any, error) {
	return string(data), nil
}

// byteaCodec: BYTEA (17) <-> opaque byte sequence. Binary format is the raw
// bytes; text format is Postgres's "\x"-prefixed hex escape (the modern
// "hex format", default since server 9.0).
type byteaCodec struct{}

func (byteaCodec) Name() string          { return "bytea" }
func (byteaCodec) Accepts(oid uint32) bool { return oid == OIDBytea }
func (byteaCodec) EncodeOID() uint32     { return OIDBytea }

func (byteaCodec) Encode(v any, format FormatCode) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "bytea", Value: v}
	}
	if format == Text {
		return encodeHexBytea(b), nil
	}
	return b, nil
}

func (byteaCodec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		b, err := decodeHexBytea(data)
		if err != nil {
			return nil, &ConversionError{Kind: "bytea", Err: err}
		}
		return b, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

const hexDigits = "0123456789abcdef"

func encodeHexBytea(b []byte) []byte {
	out := make([]byte, 2+len(b)*2)
	out[0], out[1] = '\\', 'x'
	for i, c := range b {
		out[2+i*2] = hexDigits[c>>4]
		out[2+i*2+1] = hexDigits[c&0xf]
	}
	return out
}

func decodeHexBytea(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != '\\' || data[1] != 'x' {
		return nil, &lengthError{want: 2, got: len(data)}
	}
	hexPart := data[2:]
	if len(hexPart)%2 != 0 {
		return nil, &lengthError{want: len(hexPart) + 1, got: len(hexPart)}
	}
	out := make([]byte, len(hexPart)/2)
	for i := range out {
		hi, err := hexVal(hexPart[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexVal(hexPart[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexVal(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, &lengthError{want: 0, got: int(c)}
	}
}
