package record

import (
	"errors"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values []Value
	}{
		{"empty", []Value{}},
		{"single int", []Value{Integer(42)}},
		{"negative int", []Value{Integer(-1), Integer(-9223372036854775808)}},
		{"max int", []Value{Integer(9223372036854775807)}},
		{"null", []Value{Null()}},
		{"text", []Value{Text("hello")}},
		{"empty text", []Value{Text("")}},
		{"unicode text", []Value{Text("héllo wörld")}},
		{"long text", []Value{Text(strings.Repeat("x", 500))}},
		{"blob", []Value{Blob([]byte{0x00, 0xff, 0x7f})}},
		{"empty blob", []Value{Blob(nil)}},
		{"mixed row", []Value{Integer(1), Text("fred"), Null(), Integer(-7), Blob([]byte("raw"))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Encode(tt.values)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(payload)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(got) != len(tt.values) {
				t.Fatalf("Decode returned %d values, want %d", len(got), len(tt.values))
			}
			for i := range got {
				if !got[i].Equal(tt.values[i]) {
					t.Errorf("value %d: got %v, want %v", i, got[i], tt.values[i])
				}
			}
		})
	}
}

func TestDecodeCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty payload", nil},
		{"count with no values", []byte{2}},
		{"unknown tag", []byte{1, 0x99}},
		{"truncated integer", []byte{1, byte(TypeInteger), 0, 0}},
		{"truncated text body", []byte{1, byte(TypeText), 10, 'h', 'i'}},
		{"trailing bytes", append(mustEncode(Integer(1)), 0xaa)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, ErrCorruptRecord) {
				t.Errorf("Decode error = %v, want ErrCorruptRecord", err)
			}
		})
	}
}

func mustEncode(values ...Value) []byte {
	payload, err := Encode(values)
	if err != nil {
		panic(err)
	}
	return payload
}

func TestValueEqual(t *testing.T) {
	if Integer(1).Equal(Text("1")) {
		t.Error("Integer(1) should not equal Text(\"1\")")
	}
	if !Null().Equal(Null()) {
		t.Error("NULL should equal NULL")
	}
	if Blob([]byte{1}).Equal(Blob([]byte{1, 2})) {
		t.Error("blobs of different length should differ")
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Integer(-5), "-5"},
		{Text("abc"), "abc"},
		{Null(), "NULL"},
		{Blob([]byte{0xde, 0xad}), "x'dead'"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
