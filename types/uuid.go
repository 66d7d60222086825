package types

import "github.com/google/uuid"

// uuidCodec: UUID (2950) <-> github.com/google/uuid.UUID, 16 raw bytes on
// the wire in binary format; text format is the canonical dashed hex string.
type uuidCodec struct{}

func (uuidCodec) Name() string          { return "uuid" }
func (uuidCodec) Accepts(oid uint32) bool { return oid == OIDUUID }
func (uuidCodec) EncodeOID() uint32     { return OIDUUID }

func (uuidCodec) Encode(v any, format FormatCode) ([]byte, error) {
	u, ok := v.(uuid.UUID)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "uuid", Value: v}
	}
	if format == Text {
		return []byte(u.String()), nil
	}
	out := make([]byte, 16)
	copy(out, u[:])
	return out, nil
}

func (uuidCodec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		u, err := uuid.Parse(string(data))
		if err != nil {
			return nil, &ConversionError{Kind: "uuid", Err: err}
		}
		return u, nil
	}
	if len(data) != 16 {
		return nil, &ConversionError{Kind: "uuid", Err: errBadLength(16, len(data))}
	}
	var u uuid.UUID
	copy(u[:], data)
	return u, nil
}
