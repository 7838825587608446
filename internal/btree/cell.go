package btree

import (
	"encoding/binary"
	"fmt"
)

// cell is a decoded page cell. Leaf cells carry a key and a payload;
// interior cells carry a separator key and the child page holding keys
// strictly less than it.
type cell struct {
	key     int64
	payload []byte // leaf only
	child   int    // interior only
}

// Leaf cell: varint payload length, varint key, payload bytes.
func encodeLeafCell(key int64, payload []byte) []byte {
	buf := make([]byte, 2*maxVarintLen+len(payload))
	n := putVarint(buf, uint64(len(payload)))
	n += putVarint(buf[n:], uint64(key))
	n += copy(buf[n:], payload)
	return buf[:n]
}

func decodeLeafCell(data []byte) (cell, int, error) {
	size, n := getVarint(data)
	if n == 0 {
		return cell{}, 0, fmt.Errorf("%w: bad payload length", ErrCorruptPage)
	}
	key, m := getVarint(data[n:])
	if m == 0 {
		return cell{}, 0, fmt.Errorf("%w: bad cell key", ErrCorruptPage)
	}
	n += m
	if uint64(len(data)-n) < size {
		return cell{}, 0, fmt.Errorf("%w: truncated payload", ErrCorruptPage)
	}
	return cell{key: int64(key), payload: data[n : n+int(size)]}, n + int(size), nil
}

// Interior cell: 4-byte big-endian left child page, varint separator key.
func encodeInteriorCell(child int, key int64) []byte {
	buf := make([]byte, 4+maxVarintLen)
	binary.BigEndian.PutUint32(buf, uint32(child))
	n := 4 + putVarint(buf[4:], uint64(key))
	return buf[:n]
}

func decodeInteriorCell(data []byte) (cell, int, error) {
	if len(data) < 5 {
		return cell{}, 0, fmt.Errorf("%w: short interior cell", ErrCorruptPage)
	}
	child := int(binary.BigEndian.Uint32(data))
	key, n := getVarint(data[4:])
	if n == 0 {
		return cell{}, 0, fmt.Errorf("%w: bad separator key", ErrCorruptPage)
	}
	return cell{key: int64(key), child: child}, 4 + n, nil
}

func (c cell) encodedSize(pageType byte) int {
	if pageType == pageTypeLeaf {
		return varintLen(uint64(len(c.payload))) + varintLen(uint64(c.key)) + len(c.payload)
	}
	return 4 + varintLen(uint64(c.key))
}

func (c cell) encode(pageType byte) []byte {
	if pageType == pageTypeLeaf {
		return encodeLeafCell(c.key, c.payload)
	}
	return encodeInteriorCell(c.child, c.key)
}
