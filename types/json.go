package types

// jsonCodec covers JSON (114) and JSONB (3802). In binary format JSONB
// prefixes a one-byte version marker (always 1) ahead of the document, per
// spec.md §6; JSON, and JSONB in text format, have no such prefix. Both
// types carry the document as UTF-8 text.
type jsonCodec struct {
	jsonb bool
}

func (c jsonCodec) Name() string {
	if c.jsonb {
		return "jsonb"
	}
	return "json"
}

func (c jsonCodec) Accepts(oid uint32) bool {
	if c.jsonb {
		return oid == OIDJSONB
	}
	return oid == OIDJSON
}

func (c jsonCodec) EncodeOID() uint32 {
	if c.jsonb {
		return OIDJSONB
	}
	return OIDJSON
}

const jsonbVersion = 1

func (c jsonCodec) Encode(v any, format FormatCode) ([]byte, error) {
	var doc []byte
	switch s := v.(type) {
	case []byte:
		doc = s
	case string:
		doc = []byte(s)
	default:
		return nil, &ErrUnsupportedValue{Codec: c.Name(), Value: v}
	}
	if !c.jsonb || format == Text {
		return doc, nil
	}
	out := make([]byte, 1+len(doc))
	out[0] = jsonbVersion
	copy(out[1:], doc)
	return out, nil
}

func (c jsonCodec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if !c.jsonb || format == Text {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	if len(data) == 0 {
		return nil, &ConversionError{Kind: c.Name(), Err: &lengthError{want: 1, got: 0}}
	}
	if data[0] != jsonbVersion {
		return nil, &ConversionError{Kind: c.Name(), Err: &lengthError{want: jsonbVersion, got: int(data[0])}}
	}
	out := make([]byte, len(data)-1)
	copy(out, data[1:])
	return out, nil
}
