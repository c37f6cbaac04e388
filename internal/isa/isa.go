// Package isa is the single source of truth for the RobotVM instruction
// set from spec.md §4.2: the opcode enumeration, each mnemonic's
// register-operand count, and the fixed four-byte encoding shape.
// asm, vm, and disasm all import this table so the assembler, the
// interpreter, and the disassembler can never disagree about what an
// opcode byte means.
package isa

// Opcode is the one-byte tag in the first byte of every instruction.
type Opcode byte

const (
	Nop Opcode = iota
	Load
	Ext
	Write8
	Read8
	Write16
	Read16
	Write32
	Read32
	Stop
	Move
	MoveIf
	MoveIfZ
	Swap
	LShift
	RShift
	SShift
	And
	Or
	Xor
	Neg
	Incr
	Decr
	Incr4
	Decr4
	Add
	Sub
	Mul
	Div
	Out
	In

	Count
)

// Def is one instruction's static shape: its mnemonic and how many of
// the three operand bytes are meaningful register indices.
type Def struct {
	Mnemonic string
	Opcode   Opcode
	NumArgs  int
}

// Table is indexed by Opcode.
var Table = [Count]Def{
	Nop:     {"nop", Nop, 0},
	Load:    {"load", Load, 1},
	Ext:     {"ext", Ext, 1},
	Write8:  {"write8", Write8, 2},
	Read8:   {"read8", Read8, 2},
	Write16: {"write16", Write16, 2},
	Read16:  {"read16", Read16, 2},
	Write32: {"write32", Write32, 2},
	Read32:  {"read32", Read32, 2},
	Stop:    {"stop", Stop, 1},
	Move:    {"move", Move, 2},
	MoveIf:  {"moveif", MoveIf, 3},
	MoveIfZ: {"moveifz", MoveIfZ, 3},
	Swap:    {"swap", Swap, 2},
	LShift:  {"lshift", LShift, 3},
	RShift:  {"rshift", RShift, 3},
	SShift:  {"sshift", SShift, 3},
	And:     {"and", And, 3},
	Or:      {"or", Or, 3},
	Xor:     {"xor", Xor, 3},
	Neg:     {"neg", Neg, 2},
	Incr:    {"incr", Incr, 1},
	Decr:    {"decr", Decr, 1},
	Incr4:   {"incr4", Incr4, 1},
	Decr4:   {"decr4", Decr4, 1},
	Add:     {"add", Add, 3},
	Sub:     {"sub", Sub, 3},
	Mul:     {"mul", Mul, 3},
	Div:     {"div", Div, 3},
	Out:     {"out", Out, 1},
	In:      {"in", In, 1},
}

// Lookup finds an instruction definition by mnemonic.
func Lookup(mnemonic string) (Def, bool) {
	for _, d := range Table {
		if d.Mnemonic == mnemonic {
			return d, true
		}
	}
	return Def{}, false
}

// Name returns the mnemonic for an opcode, or "" if op is out of range.
func Name(op Opcode) string {
	if int(op) >= len(Table) {
		return ""
	}
	return Table[op].Mnemonic
}

// NumRegisters is how many of R0..R31 take part in register addressing.
const NumRegisters = 32
