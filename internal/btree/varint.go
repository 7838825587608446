package btree

// SQLite-style variable-length integers: 7 bits per byte, high bit set on
// every byte except the last, most significant group first. A 9th byte,
// when present, carries a full 8 bits.

const maxVarintLen = 9

// putVarint encodes v into p and returns the number of bytes written.
// p must have room for maxVarintLen bytes.
func putVarint(p []byte, v uint64) int {
	if v <= 0x7f {
		p[0] = byte(v)
		return 1
	}
	if v > 0x00ffffffffffffff {
		// 9-byte form: the last byte holds 8 bits.
		p[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			p[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		return 9
	}
	n := varintLen(v)
	for i := n - 1; i >= 0; i-- {
		b := byte(v>>(uint(i)*7)) & 0x7f
		if i > 0 {
			b |= 0x80
		}
		p[n-1-i] = b
	}
	return n
}

// getVarint decodes a varint from p, returning the value and the number
// of bytes consumed. A zero byte count means p held no complete varint.
func getVarint(p []byte) (uint64, int) {
	var v uint64
	for i := 0; i < maxVarintLen && i < len(p); i++ {
		if i == 8 {
			return v<<8 | uint64(p[i]), 9
		}
		v = v<<7 | uint64(p[i]&0x7f)
		if p[i]&0x80 == 0 {
			return v, i + 1
		}
	}
	return 0, 0
}

// varintLen returns the encoded size of v in bytes.
func varintLen(v uint64) int {
	if v > 0x00ffffffffffffff {
		return 9
	}
	n := 1
	for v >>= 7; v > 0; v >>= 7 {
		n++
	}
	return n
}
