package vdbe

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFinalized is returned when executing a program whose labels
	// have not been resolved.
	ErrNotFinalized = errors.New("vdbe: program not finalized")

	// ErrFinalized is returned when mutating a finalized program.
	ErrFinalized = errors.New("vdbe: program already finalized")

	// ErrUnresolvedLabel is returned by Finalize when a jump targets a
	// label that was never marked.
	ErrUnresolvedLabel = errors.New("vdbe: unresolved label")
)

// Instruction is one VM operation. Operand meaning depends on the opcode;
// for jumps, P2 is the target instruction index once finalized.
type Instruction struct {
	Opcode Opcode
	P1     int
	P2     int
	P3     int
	P4     string
	P5     uint16
}

// Label is a forward-reference handle for a jump target. Labels are
// created before the target address is known and marked once it is;
// Finalize rewrites every referring P2 to the absolute index.
type Label int

const unmarked = -1

// Program is a buildable instruction list. Construction appends
// instructions and allocates registers and labels; Finalize resolves
// labels exactly once and freezes the program.
type Program struct {
	ops       []Instruction
	labels    []int         // label -> instruction index, unmarked until set
	pending   map[int]Label // instruction index -> label its P2 awaits
	numRegs   int
	finalized bool
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{pending: make(map[int]Label)}
}

// AddOp appends an instruction and returns its index.
func (p *Program) AddOp(op Opcode, p1, p2, p3 int) int {
	return p.addOp(Instruction{Opcode: op, P1: p1, P2: p2, P3: p3})
}

// AddOp4 appends an instruction carrying a P4 string operand.
func (p *Program) AddOp4(op Opcode, p1, p2, p3 int, p4 string) int {
	return p.addOp(Instruction{Opcode: op, P1: p1, P2: p2, P3: p3, P4: p4})
}

// AddJump appends a jump instruction whose P2 will be resolved to target.
func (p *Program) AddJump(op Opcode, p1 int, target Label, p3 int) int {
	addr := p.addOp(Instruction{Opcode: op, P1: p1, P3: p3})
	p.pending[addr] = target
	return addr
}

// AddJump4 is AddJump with a P4 string operand.
func (p *Program) AddJump4(op Opcode, p1 int, target Label, p3 int, p4 string) int {
	addr := p.addOp(Instruction{Opcode: op, P1: p1, P3: p3, P4: p4})
	p.pending[addr] = target
	return addr
}

func (p *Program) addOp(ins Instruction) int {
	if p.finalized {
		panic(ErrFinalized)
	}
	p.ops = append(p.ops, ins)
	return len(p.ops) - 1
}

// NewLabel allocates an unmarked label.
func (p *Program) NewLabel() Label {
	p.labels = append(p.labels, unmarked)
	return Label(len(p.labels) - 1)
}

// MarkLabel binds a label to the address of the next instruction added.
func (p *Program) MarkLabel(l Label) {
	p.labels[l] = len(p.ops)
}

// AllocReg returns the next free register index. Registers are allocated
// monotonically per program.
func (p *Program) AllocReg() int {
	r := p.numRegs
	p.numRegs++
	return r
}

// NumRegs returns how many registers the program uses.
func (p *Program) NumRegs() int { return p.numRegs }

// Len returns the instruction count.
func (p *Program) Len() int { return len(p.ops) }

// Finalized reports whether Finalize has run.
func (p *Program) Finalized() bool { return p.finalized }

// Finalize resolves every pending jump to its label's address and freezes
// the program. It must be called exactly once, after all instructions and
// label marks are in place.
func (p *Program) Finalize() error {
	if p.finalized {
		return ErrFinalized
	}
	for addr, l := range p.pending {
		target := p.labels[l]
		if target == unmarked {
			return fmt.Errorf("%w: label %d referenced at %d", ErrUnresolvedLabel, l, addr)
		}
		if target > len(p.ops) {
			return fmt.Errorf("vdbe: label %d resolves past program end", l)
		}
		p.ops[addr].P2 = target
	}
	p.pending = nil
	p.finalized = true
	return nil
}

// Op returns the instruction at addr.
func (p *Program) Op(addr int) Instruction { return p.ops[addr] }

// Ops returns the instruction list. Callers must not mutate it.
func (p *Program) Ops() []Instruction { return p.ops }

// Explain renders the program as an EXPLAIN-style table.
func (p *Program) Explain() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-12s %-5s %-5s %-5s %s\n", "addr", "opcode", "p1", "p2", "p3", "p4")
	for i, ins := range p.ops {
		fmt.Fprintf(&b, "%-4d %-12s %-5d %-5d %-5d %s\n",
			i, ins.Opcode, ins.P1, ins.P2, ins.P3, ins.P4)
	}
	return b.String()
}
