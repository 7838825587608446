package vdbe

import "fmt"

// Opcode identifies a VM instruction.
type Opcode uint8

const (
	OpNoop Opcode = iota
	OpInit
	OpGoto
	OpTransaction
	OpOpenRead
	OpOpenWrite
	OpCreateTable
	OpInteger
	OpString
	OpNull
	OpSCopy
	OpIsNull
	OpNotNull
	OpMustBeInt
	OpRewind
	OpNext
	OpRowid
	OpColumn
	OpMakeRecord
	OpInsert
	OpNewRowid
	OpSeekRowid
	OpResultRow
	OpClose
	OpHalt
)

var opcodeNames = map[Opcode]string{
	OpNoop:        "Noop",
	OpInit:        "Init",
	OpGoto:        "Goto",
	OpTransaction: "Transaction",
	OpOpenRead:    "OpenRead",
	OpOpenWrite:   "OpenWrite",
	OpCreateTable: "CreateTable",
	OpInteger:     "Integer",
	OpString:      "String",
	OpNull:        "Null",
	OpSCopy:       "SCopy",
	OpIsNull:      "IsNull",
	OpNotNull:     "NotNull",
	OpMustBeInt:   "MustBeInt",
	OpRewind:      "Rewind",
	OpNext:        "Next",
	OpRowid:       "Rowid",
	OpColumn:      "Column",
	OpMakeRecord:  "MakeRecord",
	OpInsert:      "Insert",
	OpNewRowid:    "NewRowid",
	OpSeekRowid:   "SeekRowid",
	OpResultRow:   "ResultRow",
	OpClose:       "Close",
	OpHalt:        "Halt",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}
