// Package record implements the row serialization format: a typed value
// list encoded to a flat byte payload stored in B+Tree leaf cells.
//
// Layout: uvarint value count, then one value after another. Each value
// is a 1-byte type tag followed by its body: integers are 8 bytes
// big-endian, text and blob carry a uvarint length prefix, null has no
// body.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DataType tags a serialized value.
type DataType byte

const (
	TypeNull DataType = iota
	TypeInteger
	TypeText
	TypeBlob
)

func (t DataType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return "INTEGER"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	}
	return fmt.Sprintf("DataType(%d)", byte(t))
}

var (
	// ErrCorruptRecord is returned when a payload cannot be decoded.
	ErrCorruptRecord = errors.New("record: corrupt record")
)

// Value is one field of a row.
type Value struct {
	Type DataType
	Int  int64
	Text string
	Blob []byte
}

// Null returns the NULL value.
func Null() Value { return Value{Type: TypeNull} }

// Integer returns an integer value.
func Integer(v int64) Value { return Value{Type: TypeInteger, Int: v} }

// Text returns a text value.
func Text(s string) Value { return Value{Type: TypeText, Text: s} }

// Blob returns a blob value.
func Blob(b []byte) Value { return Value{Type: TypeBlob, Blob: b} }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.Type == TypeNull }

// Equal reports whether two values have the same type and contents.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeNull:
		return true
	case TypeInteger:
		return v.Int == o.Int
	case TypeText:
		return v.Text == o.Text
	case TypeBlob:
		if len(v.Blob) != len(o.Blob) {
			return false
		}
		for i := range v.Blob {
			if v.Blob[i] != o.Blob[i] {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for display (shell output, Explain).
func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return fmt.Sprintf("%d", v.Int)
	case TypeText:
		return v.Text
	case TypeBlob:
		return fmt.Sprintf("x'%x'", v.Blob)
	}
	return "?"
}

// Encode serializes values into a record payload.
func Encode(values []Value) ([]byte, error) {
	var tmp [binary.MaxVarintLen64]byte
	out := make([]byte, 0, 16*len(values)+2)
	n := binary.PutUvarint(tmp[:], uint64(len(values)))
	out = append(out, tmp[:n]...)

	for i, v := range values {
		out = append(out, byte(v.Type))
		switch v.Type {
		case TypeNull:
		case TypeInteger:
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], uint64(v.Int))
			out = append(out, buf[:]...)
		case TypeText:
			n = binary.PutUvarint(tmp[:], uint64(len(v.Text)))
			out = append(out, tmp[:n]...)
			out = append(out, v.Text...)
		case TypeBlob:
			n = binary.PutUvarint(tmp[:], uint64(len(v.Blob)))
			out = append(out, tmp[:n]...)
			out = append(out, v.Blob...)
		default:
			return nil, fmt.Errorf("record: encode value %d: unknown type %d", i, v.Type)
		}
	}
	return out, nil
}

// Decode parses a record payload back into its values. Decode(Encode(vs))
// yields values equal to vs.
func Decode(data []byte) ([]Value, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad value count", ErrCorruptRecord)
	}
	data = data[n:]

	values := make([]Value, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: truncated at value %d", ErrCorruptRecord, i)
		}
		tag := DataType(data[0])
		data = data[1:]
		switch tag {
		case TypeNull:
			values = append(values, Null())
		case TypeInteger:
			if len(data) < 8 {
				return nil, fmt.Errorf("%w: truncated integer at value %d", ErrCorruptRecord, i)
			}
			values = append(values, Integer(int64(binary.BigEndian.Uint64(data[:8]))))
			data = data[8:]
		case TypeText, TypeBlob:
			size, n := binary.Uvarint(data)
			if n <= 0 {
				return nil, fmt.Errorf("%w: bad length at value %d", ErrCorruptRecord, i)
			}
			data = data[n:]
			if uint64(len(data)) < size {
				return nil, fmt.Errorf("%w: truncated body at value %d", ErrCorruptRecord, i)
			}
			if tag == TypeText {
				values = append(values, Text(string(data[:size])))
			} else {
				values = append(values, Blob(append([]byte(nil), data[:size]...)))
			}
			data = data[size:]
		default:
			return nil, fmt.Errorf("%w: unknown type tag %d at value %d", ErrCorruptRecord, tag, i)
		}
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptRecord, len(data))
	}
	return values, nil
}
