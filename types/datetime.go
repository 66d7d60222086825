package types

import (
	"encoding/binary"
	"strconv"
	"time"
)

// pgEpoch is the point PostgreSQL measures TIMESTAMP/TIMESTAMPTZ/DATE
// against: 2000-01-01 00:00:00 UTC, spec.md §6.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// timestampCodec: TIMESTAMP (1114) / TIMESTAMPTZ (1184) <-> time.Time,
// wire value is microseconds since pgEpoch.
type timestampCodec struct {
	tz bool
}

func (c timestampCodec) Name() string {
	if c.tz {
		return "timestamptz"
	}
	return "timestamp"
}

func (c timestampCodec) Accepts(oid uint32) bool {
	if c.tz {
		return oid == OIDTimestampTZ
	}
	return oid == OIDTimestamp
}

func (c timestampCodec) EncodeOID() uint32 {
	if c.tz {
		return OIDTimestampTZ
	}
	return OIDTimestamp
}

func (c timestampCodec) Encode(v any, format FormatCode) ([]byte, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: c.Name(), Value: v}
	}
	micros := t.UTC().Sub(pgEpoch).Microseconds()
	if format == Text {
		return []byte(t.UTC().Format("2006-01-02 15:04:05.999999")), nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(micros))
	return buf, nil
}

func (c timestampCodec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		t, err := time.Parse("2006-01-02 15:04:05.999999", string(data))
		if err != nil {
			return nil, &ConversionError{Kind: c.Name(), Err: err}
		}
		return t, nil
	}
	if len(data) != 8 {
		return nil, &ConversionError{Kind: c.Name(), Err: errBadLength(8, len(data))}
	}
	micros := int64(binary.BigEndian.Uint64(data))
	return pgEpoch.Add(time.Duration(micros) * time.Microsecond), nil
}

// dateCodec: DATE (1082) <-> time.Time (midnight UTC), wire value is days
// since pgEpoch.
type dateCodec struct{}

func (dateCodec) Name() string          { return "date" }
func (dateCodec) Accepts(oid uint32) bool { return oid == OIDDate }
func (dateCodec) EncodeOID() uint32     { return OIDDate }

func (dateCodec) Encode(v any, format FormatCode) ([]byte, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "date", Value: v}
	}
	days := int32(t.UTC().Sub(pgEpoch).Hours() / 24)
	if format == Text {
		return []byte(t.UTC().Format("2006-01-02")), nil
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(days))
	return buf, nil
}

func (dateCodec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		t, err := time.Parse("2006-01-02", string(data))
		if err != nil {
			return nil, &ConversionError{Kind: "date", Err: err}
		}
		return t, nil
	}
	if len(data) != 4 {
		return nil, &ConversionError{Kind: "date", Err: errBadLength(4, len(data))}
	}
	days := int32(binary.BigEndian.Uint32(data))
	return pgEpoch.Add(time.Duration(days) * 24 * time.Hour), nil
}

// timeCodec: TIME (1083) <-> time.Duration, wire value is microseconds since
// midnight.
type timeCodec struct{}

func (timeCodec) Name() string          { return "time" }
func (timeCodec) Accepts(oid uint32) bool { return oid == OIDTime }
func (timeCodec) EncodeOID() uint32     { return OIDTime }

func (timeCodec) Encode(v any, format FormatCode) ([]byte, error) {
	d, ok := v.(time.Duration)
	if !ok {
		return nil, &ErrUnsupportedValue{Codec: "time", Value: v}
	}
	micros := d.Microseconds()
	if format == Text {
		return []byte(formatTimeOfDay(d)), nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(micros))
	return buf, nil
}

func (timeCodec) Decode(_ uint32, data []byte, format FormatCode) (any, error) {
	if format == Text {
		d, err := parseTimeOfDay(string(data))
		if err != nil {
			return nil, &ConversionError{Kind: "time", Err: err}
		}
		return d, nil
	}
	if len(data) != 8 {
		return nil, &ConversionError{Kind: "time", Err: errBadLength(8, len(data))}
	}
	micros := int64(binary.BigEndian.Uint64(data))
	return time.Duration(micros) * time.Microsecond, nil
}

func formatTimeOfDay(d time.Duration) string {
	total := d.Microseconds()
	h := total / 3_600_000_000
	total %= 3_600_000_000
	m := total / 60_000_000
	total %= 60_000_000
	s := total / 1_000_000
	us := total % 1_000_000
	return pad2(h) + ":" + pad2(m) + ":" + pad2(s) + "." + pad6(us)
}

func parseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04:05.999999", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()), nil
}

func pad2(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func pad6(n int64) string {
	s := strconv.FormatInt(n, 10)
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}
