// Package vdbe is the bytecode layer: the opcode set, the buildable
// program representation with forward-reference labels, and the virtual
// machine that executes finalized programs against the B+Tree engine.
package vdbe

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hobochild/toysql/internal/btree"
	"github.com/hobochild/toysql/internal/pager"
	"github.com/hobochild/toysql/internal/record"
)

var (
	// ErrTypeMismatch is returned when a register holds the wrong type
	// for an operation (MustBeInt, Insert key, OpenWrite root).
	ErrTypeMismatch = errors.New("vdbe: type mismatch")

	// ErrNoSuchCursor is returned when an instruction names a cursor
	// that was never opened or was closed.
	ErrNoSuchCursor = errors.New("vdbe: no such cursor")

	// ErrReadOnlyCursor is returned when writing through a cursor opened
	// with OpenRead.
	ErrReadOnlyCursor = errors.New("vdbe: cursor is read-only")
)

// HaltError is the failure signaled by a Halt instruction with a nonzero
// error code.
type HaltError struct {
	Code    int
	Message string
}

func (e *HaltError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vdbe: halt with error code %d", e.Code)
	}
	return fmt.Sprintf("vdbe: %s (code %d)", e.Message, e.Code)
}

// VM executes finalized programs. It is stateless between executions; all
// per-run state lives in the Rows it hands out.
type VM struct {
	pager *pager.Pager
}

// New returns a VM over the given pager.
func New(p *pager.Pager) *VM {
	return &VM{pager: p}
}

type cursor struct {
	tree     *btree.Tree
	it       *btree.Cursor
	writable bool
}

// Rows is a suspended execution. Each Next call resumes the program until
// the next ResultRow or until it halts.
type Rows struct {
	vm   *VM
	prog *Program
	pc   int
	regs []record.Value
	curs map[int]*cursor
	// trees caches open trees by root page so every cursor on the same
	// root shares one view within this execution.
	trees map[int]*btree.Tree
	row   []record.Value
	done  bool
	err   error
}

// Execute starts running prog. No instruction is executed until the first
// call to Next on the returned Rows.
func (vm *VM) Execute(prog *Program) (*Rows, error) {
	if !prog.Finalized() {
		return nil, ErrNotFinalized
	}
	return &Rows{
		vm:    vm,
		prog:  prog,
		regs:  make([]record.Value, prog.NumRegs()),
		curs:  make(map[int]*cursor),
		trees: make(map[int]*btree.Tree),
	}, nil
}

// Next resumes execution. It reports true with a row available, or false
// once the program has halted; check Err after a false return.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	row, err := r.run()
	if err != nil {
		r.err = err
		r.done = true
		return false
	}
	if row == nil {
		r.done = true
		return false
	}
	r.row = row
	return true
}

// Row returns the values produced by the last successful Next.
func (r *Rows) Row() []record.Value { return r.row }

// Err returns the error that stopped execution, if any.
func (r *Rows) Err() error { return r.err }

// Close abandons the execution.
func (r *Rows) Close() {
	r.done = true
	r.curs = nil
	r.trees = nil
}

// Drain runs the program to completion and returns every result row.
func (r *Rows) Drain() ([][]record.Value, error) {
	var out [][]record.Value
	for r.Next() {
		row := make([]record.Value, len(r.Row()))
		copy(row, r.Row())
		out = append(out, row)
	}
	return out, r.Err()
}

func (r *Rows) cursor(id int) (*cursor, error) {
	c, ok := r.curs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchCursor, id)
	}
	return c, nil
}

// openTree returns the cached tree for a root page, creating it on first
// use. Sharing the tree keeps read cursors consistent with writes made
// earlier in the same execution.
func (r *Rows) openTree(root int) *btree.Tree {
	t, ok := r.trees[root]
	if !ok {
		t = btree.New(r.vm.pager, root)
		r.trees[root] = t
	}
	return t
}

func (r *Rows) intReg(reg int) (int64, error) {
	v := r.regs[reg]
	if v.Type != record.TypeInteger {
		return 0, fmt.Errorf("%w: register %d holds %s, want INTEGER", ErrTypeMismatch, reg, v.Type)
	}
	return v.Int, nil
}

// run executes instructions until a ResultRow (returning the row), a
// clean halt (returning nil, nil), or a failure.
func (r *Rows) run() ([]record.Value, error) {
	for r.pc >= 0 && r.pc < r.prog.Len() {
		ins := r.prog.Op(r.pc)
		jumped := false

		switch ins.Opcode {
		case OpNoop, OpTransaction:
			// No-ops: Transaction is a placeholder, there is no journal.

		case OpInit:
			if ins.P2 > 0 {
				r.pc = ins.P2
				jumped = true
			}

		case OpGoto:
			r.pc = ins.P2
			jumped = true

		case OpOpenRead:
			r.curs[ins.P1] = &cursor{tree: r.openTree(ins.P2)}

		case OpOpenWrite:
			root, err := r.intReg(ins.P2)
			if err != nil {
				return nil, err
			}
			t := r.openTree(int(root))
			if err := t.EnsureRoot(); err != nil {
				return nil, err
			}
			r.curs[ins.P1] = &cursor{tree: t, writable: true}

		case OpCreateTable:
			root, err := btree.CreateRoot(r.vm.pager)
			if err != nil {
				return nil, err
			}
			r.regs[ins.P1] = record.Integer(int64(root))

		case OpInteger:
			r.regs[ins.P2] = record.Integer(int64(ins.P1))

		case OpString:
			r.regs[ins.P2] = record.Text(ins.P4)

		case OpNull:
			r.regs[ins.P2] = record.Null()

		case OpSCopy:
			r.regs[ins.P2] = r.regs[ins.P1]

		case OpIsNull:
			if r.regs[ins.P1].IsNull() {
				r.pc = ins.P2
				jumped = true
			}

		case OpNotNull:
			if !r.regs[ins.P1].IsNull() {
				r.pc = ins.P2
				jumped = true
			}

		case OpMustBeInt:
			v := r.regs[ins.P1]
			switch {
			case v.Type == record.TypeInteger:
			case v.Type == record.TypeText && isIntegerText(v.Text):
				n, _ := strconv.ParseInt(v.Text, 10, 64)
				r.regs[ins.P1] = record.Integer(n)
			case ins.P2 == 0:
				return nil, fmt.Errorf("%w: register %d holds %s, want INTEGER",
					ErrTypeMismatch, ins.P1, v.Type)
			default:
				r.pc = ins.P2
				jumped = true
			}

		case OpRewind:
			c, err := r.cursor(ins.P1)
			if err != nil {
				return nil, err
			}
			c.it = c.tree.Cursor()
			ok, err := c.it.Rewind()
			if err != nil {
				return nil, err
			}
			if !ok {
				r.pc = ins.P2
				jumped = true
			}

		case OpNext:
			c, err := r.cursor(ins.P1)
			if err != nil {
				return nil, err
			}
			ok, err := c.it.Next()
			if err != nil {
				return nil, err
			}
			if ok {
				r.pc = ins.P2
				jumped = true
			}

		case OpSeekRowid:
			c, err := r.cursor(ins.P1)
			if err != nil {
				return nil, err
			}
			key, err := r.intReg(ins.P3)
			if err != nil {
				return nil, err
			}
			c.it = c.tree.Cursor()
			ok, err := c.it.Seek(key)
			if err != nil {
				return nil, err
			}
			if !ok {
				r.pc = ins.P2
				jumped = true
			}

		case OpRowid:
			c, err := r.cursor(ins.P1)
			if err != nil {
				return nil, err
			}
			key, err := c.it.Key()
			if err != nil {
				return nil, err
			}
			r.regs[ins.P2] = record.Integer(key)

		case OpColumn:
			c, err := r.cursor(ins.P1)
			if err != nil {
				return nil, err
			}
			payload, err := c.it.Payload()
			if err != nil {
				return nil, err
			}
			values, err := record.Decode(payload)
			if err != nil {
				return nil, err
			}
			if ins.P2 < len(values) {
				r.regs[ins.P3] = values[ins.P2]
			} else {
				r.regs[ins.P3] = record.Null()
			}

		case OpMakeRecord:
			payload, err := record.Encode(r.regs[ins.P1 : ins.P1+ins.P2])
			if err != nil {
				return nil, err
			}
			r.regs[ins.P3] = record.Blob(payload)

		case OpNewRowid:
			c, err := r.cursor(ins.P1)
			if err != nil {
				return nil, err
			}
			rowid, err := c.tree.NewRowid()
			if err != nil {
				return nil, err
			}
			r.regs[ins.P2] = record.Integer(rowid)

		case OpInsert:
			c, err := r.cursor(ins.P1)
			if err != nil {
				return nil, err
			}
			if !c.writable {
				return nil, fmt.Errorf("%w: cursor %d", ErrReadOnlyCursor, ins.P1)
			}
			key, err := r.intReg(ins.P3)
			if err != nil {
				return nil, err
			}
			blob := r.regs[ins.P2]
			if blob.Type != record.TypeBlob {
				return nil, fmt.Errorf("%w: register %d holds %s, want record",
					ErrTypeMismatch, ins.P2, blob.Type)
			}
			if err := c.tree.Insert(key, blob.Blob); err != nil {
				return nil, err
			}

		case OpResultRow:
			row := make([]record.Value, ins.P2)
			copy(row, r.regs[ins.P1:ins.P1+ins.P2])
			r.pc++
			return row, nil

		case OpClose:
			delete(r.curs, ins.P1)

		case OpHalt:
			if ins.P1 != 0 {
				return nil, &HaltError{Code: ins.P1, Message: ins.P4}
			}
			return nil, nil

		default:
			return nil, fmt.Errorf("vdbe: unknown opcode %s at %d", ins.Opcode, r.pc)
		}

		if !jumped {
			r.pc++
		}
	}
	// Running off the end halts cleanly.
	return nil, nil
}

// isIntegerText reports whether s parses as a base-10 integer.
func isIntegerText(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
