package types_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mickamy/pgnative/types"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	reg := types.NewDefault()

	tests := []struct {
		name   string
		oid    uint32
		value  any
		equal  func(a, b any) bool
		format []types.FormatCode
	}{
		{"bool true", types.OIDBool, true, nil, []types.FormatCode{types.Text, types.Binary}},
		{"bool false", types.OIDBool, false, nil, []types.FormatCode{types.Text, types.Binary}},
		{"int2", types.OIDInt2, int16(-1234), nil, []types.FormatCode{types.Text, types.Binary}},
		{"int4", types.OIDInt4, int32(123456), nil, []types.FormatCode{types.Text, types.Binary}},
		{"int8", types.OIDInt8, int64(-9876543210), nil, []types.FormatCode{types.Text, types.Binary}},
		{"oid", types.OIDOID, uint32(42), nil, []types.FormatCode{types.Text, types.Binary}},
		{"float4", types.OIDFloat4, float32(3.5), nil, []types.FormatCode{types.Binary}},
		{"float8", types.OIDFloat8, 2.71828, nil, []types.FormatCode{types.Binary}},
		{"text", types.OIDText, "hello, world", nil, []types.FormatCode{types.Text, types.Binary}},
		{"bytea", types.OIDBytea, []byte{0xde, 0xad, 0xbe, 0xef}, func(a, b any) bool {
			x, ok := a.([]byte)
			y, _ := b.([]byte)
			return ok && bytes.Equal(x, y)
		}, []types.FormatCode{types.Text, types.Binary}},
		{"uuid", types.OIDUUID, uuid.MustParse("123e4567-e89b-12d3-a456-426614174000"), nil, []types.FormatCode{types.Text, types.Binary}},
	}

	for _, tt := range tests {
		for _, format := range tt.format {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				encoded, err := reg.EncodeValue(tt.value, tt.oid, format)
				if err != nil {
					t.Fatalf("encode: %v", err)
				}
				decoded, err := reg.Decode(tt.oid, encoded, format)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				if tt.equal != nil {
					if !tt.equal(decoded, tt.value) {
						t.Errorf("round trip mismatch: got %#v, want %#v", decoded, tt.value)
					}
				} else if decoded != tt.value {
					t.Errorf("round trip mismatch: got %#v, want %#v", decoded, tt.value)
				}
			})
		}
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	t.Parallel()

	reg := types.NewDefault()
	want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	encoded, err := reg.EncodeValue(want, types.OIDTimestampTZ, types.Binary)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := reg.Decode(types.OIDTimestampTZ, encoded, types.Binary)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(time.Time)
	if !ok || !got.Equal(want) {
		t.Errorf("got %v, want %v", decoded, want)
	}
}

func TestEncodeRejectsUnsupportedValue(t *testing.T) {
	t.Parallel()

	reg := types.NewDefault()
	_, err := reg.EncodeValue("not an int", types.OIDInt4, types.Binary)
	if err == nil {
		t.Fatal("expected an error encoding a string as int4")
	}
}

func TestHstoreRoundTrip(t *testing.T) {
	t.Parallel()

	reg := types.NewDefault()
	reg.BindOID("hstore", 16000)

	v1 := "bar"
	want := map[string]*string{"foo": &v1, "baz": nil}

	encoded, err := reg.EncodeValue(want, 16000, types.Binary)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := reg.Decode(16000, encoded, types.Binary)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(map[string]*string)
	if !ok || len(got) != len(want) {
		t.Fatalf("got %#v, want %#v", decoded, want)
	}
	if got["baz"] != nil {
		t.Errorf("expected baz to be nil, got %v", got["baz"])
	}
	if got["foo"] == nil || *got["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %v", got["foo"])
	}
}
