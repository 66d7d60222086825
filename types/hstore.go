package types

import "encoding/binary"

// hstoreCodec: hstore (dynamic OID, bound at runtime via Registry.BindOID)
// <-> map[string]*string, where a nil value represents SQL NULL, per
// spec.md §6 ("mapping from non-null string to optional string"). Binary
// wire format: int32 count, then per entry: int32 key length + key bytes,
// int32 value length (-1 for NULL) + value bytes. Only this binary layout is
// produced and parsed: the format argument is ignored, and the text form
// ("k"=>"v") is not supported.
type hstoreCodec struct{}

func (hstoreCodec) Name() string            { return "hstore" }
func (hstoreCodec) Accepts(_ uint32) bool    { return false } // only reachable via the named/BindOID path
func (hstoreCodec) EncodeOID() uint32       { return 0 }

func (hstoreCodec) Encode(v any, _ FormatCode) ([]byte, error) {
	m, ok := v.(map[string]*string)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "hstore", Value: v}
	}
	var buf []byte
	buf = appendInt32(buf, int32(len(m)))
	for k, val := range m {
		buf = appendInt32(buf, int32(len(k)))
		buf = append(buf, k...)
		if val == nil {
			buf = appendInt32(buf, -1)
			continue
		}
		buf = appendInt32(buf, int32(len(*val)))
		buf = append(buf, *val...)
	}
	return buf, nil
}

func (hstoreCodec) Decode(_ uint32, data []byte, _ FormatCode) (any, error) {
	if len(data) < 4 {
		return nil, &ConversionError{Kind: "hstore", Err: errBadLength(4, len(data))}
	}
	count := int(int32(binary.BigEndian.Uint32(data)))
	data = data[4:]
	out := make(map[string]*string, count)
	for i := 0; i < count; i++ {
		if len(data) < 4 {
			return nil, &ConversionError{Kind: "hstore", Err: errBadLength(4, len(data))}
		}
		keyLen := int(int32(binary.BigEndian.Uint32(data)))
		data = data[4:]
		if len(data) < keyLen {
			return nil, &ConversionError{Kind: "hstore", Err: errBadLength(keyLen, len(data))}
		}
		key := string(data[:keyLen])
		data = data[keyLen:]

		if len(data) < 4 {
			return nil, &ConversionError{Kind: "hstore", Err: errBadLength(4, len(data))}
		}
		valLen := int(int32(binary.BigEndian.Uint32(data)))
		data = data[4:]
		if valLen < 0 {
			out[key] = nil
			continue
		}
		if len(data) < valLen {
			return nil, &ConversionError{Kind: "hstore", Err: errBadLength(valLen, len(data))}
		}
		val := string(data[:valLen])
		data = data[valLen:]
		out[key] = &val
	}
	return out, nil
}

func appendInt32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}
