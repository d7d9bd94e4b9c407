package codec

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    any
	}{
		{"float64 array", []float64{1.5, 2.5, 3.5}},
		{"int32 array", []int32{1, 2, 3}},
		{"blob", []byte{0x01, 0x02, 0xff}},
		{"string", "hello"},
		{"nested", []any{int64(1), "two", []any{int64(3)}}},
		{"map", map[string]any{"a": int64(1), "b": "two"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := Encode(tc.v)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			dec, err := Decode(enc)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(dec, tc.v) {
				t.Fatalf("round trip mismatch: got %#v, want %#v", dec, tc.v)
			}
		})
	}
}

func TestEncodeNilIsEmpty(t *testing.T) {
	enc, err := Encode(nil)
	if err != nil {
		t.Fatalf("encode nil: %v", err)
	}
	if len(enc) != 0 {
		t.Fatalf("expected empty encoding for nil, got %d bytes", len(enc))
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if dec != nil {
		t.Fatalf("expected nil, got %#v", dec)
	}
}
