package btree

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// On-disk page layout, big-endian throughout:
//
//	offset 0: page type (1 byte)
//	offset 1: cell count (2 bytes)
//	offset 3: cell content start (2 bytes, 0 means end of page)
//	offset 5: right-most child page (4 bytes, interior pages only)
//
// The cell pointer array (2 bytes per cell, offsets into the page) follows
// the header. Cell bodies are packed downward from the end of the page.
const (
	pageTypeInterior = 0x05
	pageTypeLeaf     = 0x0d

	headerSizeLeaf     = 5
	headerSizeInterior = 9

	cellPointerSize = 2
)

// ErrCorruptPage is returned when a page fails structural validation.
var ErrCorruptPage = errors.New("btree: corrupt page")

// page is the in-memory form of one B+Tree page. Cells are kept decoded
// and sorted by key; encode lays them back out in disk order.
type page struct {
	num        int
	typ        byte
	rightChild int // interior only
	cells      []cell
}

func newLeafPage(num int) *page {
	return &page{num: num, typ: pageTypeLeaf}
}

func newInteriorPage(num int) *page {
	return &page{num: num, typ: pageTypeInterior}
}

func (p *page) isLeaf() bool { return p.typ == pageTypeLeaf }

func decodePage(num int, data []byte) (*page, error) {
	if len(data) < headerSizeLeaf {
		return nil, fmt.Errorf("%w: page %d too small", ErrCorruptPage, num)
	}
	p := &page{num: num, typ: data[0]}

	headerSize := headerSizeLeaf
	switch p.typ {
	case pageTypeLeaf:
	case pageTypeInterior:
		headerSize = headerSizeInterior
		p.rightChild = int(binary.BigEndian.Uint32(data[5:9]))
	default:
		return nil, fmt.Errorf("%w: page %d has unknown type 0x%02x", ErrCorruptPage, num, data[0])
	}

	numCells := int(binary.BigEndian.Uint16(data[1:3]))
	p.cells = make([]cell, 0, numCells)
	for i := 0; i < numCells; i++ {
		ptrOff := headerSize + i*cellPointerSize
		if ptrOff+cellPointerSize > len(data) {
			return nil, fmt.Errorf("%w: page %d cell pointer %d out of range", ErrCorruptPage, num, i)
		}
		off := int(binary.BigEndian.Uint16(data[ptrOff:]))
		if off >= len(data) {
			return nil, fmt.Errorf("%w: page %d cell %d offset %d out of range", ErrCorruptPage, num, i, off)
		}
		var c cell
		var err error
		if p.isLeaf() {
			c, _, err = decodeLeafCell(data[off:])
		} else {
			c, _, err = decodeInteriorCell(data[off:])
		}
		if err != nil {
			return nil, fmt.Errorf("page %d cell %d: %w", num, i, err)
		}
		p.cells = append(p.cells, c)
	}
	return p, nil
}

func (p *page) headerSize() int {
	if p.isLeaf() {
		return headerSizeLeaf
	}
	return headerSizeInterior
}

// usedBytes returns the byte footprint of the page with its current cells.
func (p *page) usedBytes() int {
	used := p.headerSize()
	for _, c := range p.cells {
		used += cellPointerSize + c.encodedSize(p.typ)
	}
	return used
}

// fits reports whether the page could additionally hold extra, once added
// to the current cells, within pageSize bytes and maxCells cells.
// maxCells <= 0 means unbounded by count.
func (p *page) fits(pageSize, maxCells int, extra cell) bool {
	if maxCells > 0 && len(p.cells)+1 > maxCells {
		return false
	}
	return p.usedBytes()+cellPointerSize+extra.encodedSize(p.typ) <= pageSize
}

func (p *page) encode(pageSize int) ([]byte, error) {
	data := make([]byte, pageSize)
	data[0] = p.typ
	binary.BigEndian.PutUint16(data[1:3], uint16(len(p.cells)))
	if !p.isLeaf() {
		binary.BigEndian.PutUint32(data[5:9], uint32(p.rightChild))
	}

	content := pageSize
	for i, c := range p.cells {
		raw := c.encode(p.typ)
		content -= len(raw)
		ptrOff := p.headerSize() + i*cellPointerSize
		if content < ptrOff+cellPointerSize {
			return nil, fmt.Errorf("btree: page %d overflow: %d cells do not fit in %d bytes",
				p.num, len(p.cells), pageSize)
		}
		copy(data[content:], raw)
		binary.BigEndian.PutUint16(data[ptrOff:], uint16(content))
	}
	binary.BigEndian.PutUint16(data[3:5], uint16(content%pageSize))
	return data, nil
}

// findCell returns the index of the first cell whose key is >= key.
func (p *page) findCell(key int64) int {
	lo, hi := 0, len(p.cells)
	for lo < hi {
		mid := (lo + hi) / 2
		if p.cells[mid].key < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// childFor returns the child page to descend into for key. Keys equal to
// a separator live in the subtree to its right.
func (p *page) childFor(key int64) int {
	for _, c := range p.cells {
		if key < c.key {
			return c.child
		}
	}
	return p.rightChild
}

// children returns all child pages in key order.
func (p *page) children() []int {
	out := make([]int, 0, len(p.cells)+1)
	for _, c := range p.cells {
		out = append(out, c.child)
	}
	return append(out, p.rightChild)
}
