package btree

import "errors"

// ErrCursorInvalid is returned when reading from a cursor that is not
// positioned on a row.
var ErrCursorInvalid = errors.New("btree: cursor not positioned on a row")

// Cursor iterates the rows of a tree in ascending key order. It keeps a
// stack of (page, child index) frames from the root down to the current
// leaf; Next walks the stack when a leaf is exhausted. Every descent
// re-reads pages through the pager, so a cursor rewound after a write to
// the same tree observes that write.
type Cursor struct {
	tree  *Tree
	stack []cursorFrame
	leaf  *page
	idx   int
	valid bool
}

type cursorFrame struct {
	page *page
	// child index last descended into; len(page.cells) means rightChild.
	child int
}

// Cursor returns an unpositioned cursor over the tree. Call Rewind or
// Seek before reading.
func (t *Tree) Cursor() *Cursor {
	return &Cursor{tree: t}
}

// Rewind positions the cursor on the first row. It reports false for an
// empty tree.
func (c *Cursor) Rewind() (bool, error) {
	c.reset()
	p, err := c.tree.readPage(c.tree.root)
	if err != nil {
		return false, err
	}
	for !p.isLeaf() {
		c.stack = append(c.stack, cursorFrame{page: p, child: 0})
		if p, err = c.tree.readPage(p.children()[0]); err != nil {
			return false, err
		}
	}
	c.leaf = p
	c.idx = 0
	c.valid = len(p.cells) > 0
	if !c.valid {
		// A multi-level tree never has an empty leaf; only an empty
		// root can land here.
		return false, nil
	}
	return true, nil
}

// Seek positions the cursor on the row with exactly the given key. It
// reports false, leaving the cursor invalid, when the key is absent.
func (c *Cursor) Seek(key int64) (bool, error) {
	c.reset()
	p, err := c.tree.readPage(c.tree.root)
	if err != nil {
		return false, err
	}
	for !p.isLeaf() {
		child := p.childFor(key)
		idx := len(p.cells)
		for i, cl := range p.cells {
			if cl.child == child {
				idx = i
				break
			}
		}
		c.stack = append(c.stack, cursorFrame{page: p, child: idx})
		if p, err = c.tree.readPage(child); err != nil {
			return false, err
		}
	}
	i := p.findCell(key)
	if i >= len(p.cells) || p.cells[i].key != key {
		return false, nil
	}
	c.leaf = p
	c.idx = i
	c.valid = true
	return true, nil
}

// Next advances to the following row, reporting false once the scan is
// exhausted.
func (c *Cursor) Next() (bool, error) {
	if !c.valid {
		return false, nil
	}
	c.idx++
	if c.idx < len(c.leaf.cells) {
		return true, nil
	}

	// Leaf exhausted: climb to the nearest ancestor with an unvisited
	// child, then descend to the leftmost leaf under it.
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		if top.child < len(top.page.cells) {
			top.child++
			p, err := c.tree.readPage(top.page.children()[top.child])
			if err != nil {
				c.valid = false
				return false, err
			}
			for !p.isLeaf() {
				c.stack = append(c.stack, cursorFrame{page: p, child: 0})
				if p, err = c.tree.readPage(p.children()[0]); err != nil {
					c.valid = false
					return false, err
				}
			}
			c.leaf = p
			c.idx = 0
			return true, nil
		}
		c.stack = c.stack[:len(c.stack)-1]
	}
	c.valid = false
	return false, nil
}

// Valid reports whether the cursor is positioned on a row.
func (c *Cursor) Valid() bool { return c.valid }

// Key returns the current row's key.
func (c *Cursor) Key() (int64, error) {
	if !c.valid {
		return 0, ErrCursorInvalid
	}
	return c.leaf.cells[c.idx].key, nil
}

// Payload returns the current row's payload.
func (c *Cursor) Payload() ([]byte, error) {
	if !c.valid {
		return nil, ErrCursorInvalid
	}
	return c.leaf.cells[c.idx].payload, nil
}

func (c *Cursor) reset() {
	c.stack = c.stack[:0]
	c.leaf = nil
	c.idx = 0
	c.valid = false
}
