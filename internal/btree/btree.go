// Package btree implements an on-disk B+Tree keyed by int64 rowids. All
// rows live in leaf pages; interior pages hold separator keys and child
// pointers. Inserting into a full page splits it and propagates the
// separator upward, growing a new root when the root itself splits.
package btree

import (
	"errors"
	"fmt"

	"github.com/hobochild/toysql/internal/pager"
)

var (
	// ErrNotFound is returned by Search when no row has the given key.
	ErrNotFound = errors.New("btree: key not found")

	// ErrPageFull is returned when a single cell cannot fit on an empty
	// page. There are no overflow pages; such rows are unstorable.
	ErrPageFull = errors.New("btree: cell too large for page")

	// ErrDuplicateKey is returned when inserting a key that already exists.
	ErrDuplicateKey = errors.New("btree: duplicate key")
)

// Tree is a B+Tree rooted at a fixed page. The root page number never
// changes: when the root splits, its cells move to fresh pages and the
// root page is rewritten as an interior page over them.
type Tree struct {
	pager *pager.Pager
	root  int

	// maxCells, when positive, caps cells per page below the byte
	// capacity. Production trees leave it zero; tests use small values
	// to force deep trees on few rows.
	maxCells int
}

// New returns a tree over the given root page.
func New(p *pager.Pager, root int) *Tree {
	return &Tree{pager: p, root: root}
}

// NewWithMaxCells returns a tree whose pages hold at most maxCells cells.
func NewWithMaxCells(p *pager.Pager, root, maxCells int) *Tree {
	return &Tree{pager: p, root: root, maxCells: maxCells}
}

// CreateRoot allocates a fresh page, initializes it as an empty leaf, and
// returns its page number.
func CreateRoot(p *pager.Pager) (int, error) {
	pgno, err := p.Allocate()
	if err != nil {
		return 0, err
	}
	t := &Tree{pager: p, root: pgno}
	if err := t.writePage(newLeafPage(pgno)); err != nil {
		return 0, err
	}
	return pgno, nil
}

// Root returns the root page number.
func (t *Tree) Root() int { return t.root }

// EnsureRoot materializes the root as an empty leaf if it lies at or
// beyond the end of the file. The schema bootstrap relies on this: the
// catalog's write cursor opens root page 0 before any page exists.
func (t *Tree) EnsureRoot() error {
	for t.pager.PageCount() <= t.root {
		pgno, err := t.pager.Allocate()
		if err != nil {
			return err
		}
		if err := t.writePage(newLeafPage(pgno)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) readPage(pgno int) (*page, error) {
	data, err := t.pager.Read(pgno)
	if err != nil {
		return nil, err
	}
	return decodePage(pgno, data)
}

func (t *Tree) writePage(p *page) error {
	data, err := p.encode(t.pager.PageSize())
	if err != nil {
		return err
	}
	return t.pager.Write(p.num, data)
}

// Search returns the payload stored under key, or ErrNotFound.
func (t *Tree) Search(key int64) ([]byte, error) {
	p, err := t.readPage(t.root)
	if err != nil {
		return nil, err
	}
	for !p.isLeaf() {
		if p, err = t.readPage(p.childFor(key)); err != nil {
			return nil, err
		}
	}
	i := p.findCell(key)
	if i < len(p.cells) && p.cells[i].key == key {
		return p.cells[i].payload, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, key)
}

// Insert stores payload under key. Keys must be unique; full pages split
// on the way back up.
func (t *Tree) Insert(key int64, payload []byte) error {
	c := cell{key: key, payload: payload}
	empty := newLeafPage(0)
	if !empty.fits(t.pager.PageSize(), 0, c) {
		return fmt.Errorf("%w: payload of %d bytes", ErrPageFull, len(payload))
	}

	split, err := t.insertInto(t.root, c)
	if err != nil {
		return err
	}
	if split != nil {
		return t.growRoot(split)
	}
	return nil
}

// splitResult describes the right half produced by splitting a child:
// keys >= sepKey moved to page right.
type splitResult struct {
	sepKey int64
	right  int
}

func (t *Tree) insertInto(pgno int, c cell) (*splitResult, error) {
	p, err := t.readPage(pgno)
	if err != nil {
		return nil, err
	}

	if p.isLeaf() {
		i := p.findCell(c.key)
		if i < len(p.cells) && p.cells[i].key == c.key {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateKey, c.key)
		}
		p.cells = insertAt(p.cells, i, c)
		return t.splitIfNeeded(p)
	}

	child := p.childFor(c.key)
	split, err := t.insertInto(child, c)
	if err != nil {
		return nil, err
	}
	if split == nil {
		return nil, nil
	}

	// The child kept keys < sepKey; hang the new right sibling next to it.
	sep := cell{key: split.sepKey, child: child}
	i := p.findCell(split.sepKey)
	if i < len(p.cells) {
		p.cells = insertAt(p.cells, i, sep)
		p.cells[i+1].child = split.right
	} else {
		p.cells = append(p.cells, sep)
		p.rightChild = split.right
	}
	return t.splitIfNeeded(p)
}

// splitIfNeeded writes p back, splitting it first when over capacity.
// The left half keeps ceil((n+1)/2) of the n cells.
func (t *Tree) splitIfNeeded(p *page) (*splitResult, error) {
	if t.pageFits(p) {
		return nil, t.writePage(p)
	}

	rightPgno, err := t.pager.Allocate()
	if err != nil {
		return nil, err
	}

	cells := p.cells
	nLeft := (len(cells) + 1) / 2

	if p.isLeaf() {
		right := newLeafPage(rightPgno)
		right.cells = append(right.cells, cells[nLeft:]...)
		p.cells = cells[:nLeft:nLeft]
		if err := t.writePage(right); err != nil {
			return nil, err
		}
		if err := t.writePage(p); err != nil {
			return nil, err
		}
		return &splitResult{sepKey: right.cells[0].key, right: rightPgno}, nil
	}

	// Interior split pushes the median separator up instead of copying it:
	// its child becomes the left page's right-most child.
	mid := nLeft - 1
	right := newInteriorPage(rightPgno)
	right.cells = append(right.cells, cells[mid+1:]...)
	right.rightChild = p.rightChild
	sepKey := cells[mid].key
	p.rightChild = cells[mid].child
	p.cells = cells[:mid:mid]
	if err := t.writePage(right); err != nil {
		return nil, err
	}
	if err := t.writePage(p); err != nil {
		return nil, err
	}
	return &splitResult{sepKey: sepKey, right: rightPgno}, nil
}

// growRoot rewrites the root as an interior page over its two halves.
// The old root's cells have to move to a fresh page first so the root
// page number stays stable.
func (t *Tree) growRoot(split *splitResult) error {
	old, err := t.readPage(t.root)
	if err != nil {
		return err
	}
	leftPgno, err := t.pager.Allocate()
	if err != nil {
		return err
	}
	left := *old
	left.num = leftPgno
	if err := t.writePage(&left); err != nil {
		return err
	}

	root := newInteriorPage(t.root)
	root.cells = []cell{{key: split.sepKey, child: leftPgno}}
	root.rightChild = split.right
	return t.writePage(root)
}

func (t *Tree) pageFits(p *page) bool {
	if t.maxCells > 0 && len(p.cells) > t.maxCells {
		return false
	}
	return p.usedBytes() <= t.pager.PageSize()
}

// NewRowid returns the next monotonic rowid: one past the largest key in
// the tree, or 1 for an empty tree.
func (t *Tree) NewRowid() (int64, error) {
	p, err := t.readPage(t.root)
	if err != nil {
		return 0, err
	}
	for !p.isLeaf() {
		if p, err = t.readPage(p.rightChild); err != nil {
			return 0, err
		}
	}
	if len(p.cells) == 0 {
		return 1, nil
	}
	return p.cells[len(p.cells)-1].key + 1, nil
}

func insertAt(cells []cell, i int, c cell) []cell {
	cells = append(cells, cell{})
	copy(cells[i+1:], cells[i:])
	cells[i] = c
	return cells
}
