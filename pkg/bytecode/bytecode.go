// Package bytecode defines the relocatable module format produced by the
// compiler and consumed by the script runtime: the code cell stream, the
// fixup (relocation) records, the string repository, and the export table.
// The numeric values here are a fixed external contract; the runtime reads
// them bit-for-bit.
package bytecode

import "fmt"

// CodeCell is one 32-bit cell of emitted code, either an opcode or an operand.
type CodeCell = int32

// CodeLoc is an offset into the code array. It may be negative while a
// location is still unresolved.
type CodeLoc = int32

// StringsLoc is an offset into the string repository blob.
type StringsLoc = int32

// GlobalLoc is an offset into the global data segment.
type GlobalLoc = int32

// FixupType tells the loader how to interpret and patch a fixed-up cell.
type FixupType = byte

// Sizes of the primitive types in the global data segment and on the stack.
// These must match the runtime exactly.
const (
	SizeOfChar       = 1
	SizeOfShort      = 2
	SizeOfInt        = 4
	SizeOfLong       = 4
	SizeOfFloat      = 4
	SizeOfDynPointer = 4
	SizeOfStackCell  = 4
	StructAlignTo    = 4

	MaxFunctionParameters = 15
)

// Fixup kinds. The value in the fixed-up cell is interpreted per kind:
// a GlobalLoc, a CodeLoc, a StringsLoc, an import slot index, or a stack
// frame offset.
const (
	FixupGlobalData FixupType = 1 // cell += base of globals
	FixupFunction   FixupType = 2 // cell += base of code
	FixupString     FixupType = 3 // cell += base of strings
	FixupImport     FixupType = 4 // cell = address bound by import name lookup
	FixupDataData   FixupType = 5 // fixup within the global data segment itself
	FixupStack      FixupType = 6 // cell += base of the stack frame
)

var fixupNames = map[FixupType]string{
	FixupGlobalData: "globaldata",
	FixupFunction:   "function",
	FixupString:     "string",
	FixupImport:     "import",
	FixupDataData:   "datadata",
	FixupStack:      "stack",
}

// FixupName returns a human-readable name for a fixup kind.
func FixupName(ft FixupType) string {
	if n, ok := fixupNames[ft]; ok {
		return n
	}
	return fmt.Sprintf("fixup(%d)", ft)
}

// Registers of the runtime's virtual machine.
const (
	RegSP  CodeCell = 1 // stack pointer
	RegMAR CodeCell = 2 // memory address register
	RegAX  CodeCell = 3 // accumulator
	RegBX  CodeCell = 4
	RegCX  CodeCell = 5
	RegOP  CodeCell = 6 // current "this" object
	RegDX  CodeCell = 7
)

var regNames = [...]string{RegSP: "sp", RegMAR: "mar", RegAX: "ax", RegBX: "bx", RegCX: "cx", RegOP: "op", RegDX: "dx"}

// RegisterName returns the mnemonic for a register operand.
func RegisterName(r CodeCell) string {
	if r > 0 && int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("r%d", r)
}

// Opcodes. Operand cells follow the opcode cell; see Args.
const (
	OpAdd           CodeCell = 1 // reg1 += lit
	OpSub           CodeCell = 2 // reg1 -= lit
	OpRegToReg      CodeCell = 3 // reg2 = reg1
	OpWriteLit      CodeCell = 4 // m[MAR] = lit (size arg1)
	OpRet           CodeCell = 5
	OpLitToReg      CodeCell = 6 // reg1 = lit
	OpMemRead       CodeCell = 7 // reg1 = m[MAR] (4 bytes)
	OpMemWrite      CodeCell = 8 // m[MAR] = reg1 (4 bytes)
	OpMulReg        CodeCell = 9 // reg1 *= reg2
	OpDivReg        CodeCell = 10
	OpAddReg        CodeCell = 11
	OpSubReg        CodeCell = 12
	OpBitAnd        CodeCell = 13
	OpBitOr         CodeCell = 14
	OpIsEqual       CodeCell = 15
	OpNotEqual      CodeCell = 16
	OpGreater       CodeCell = 17
	OpLessThan      CodeCell = 18
	OpGTE           CodeCell = 19
	OpLTE           CodeCell = 20
	OpAnd           CodeCell = 21 // reg1 = reg1 && reg2
	OpOr            CodeCell = 22
	OpCall          CodeCell = 23 // call code address in reg1
	OpMemReadB      CodeCell = 24 // reg1 = m[MAR] (1 byte)
	OpMemReadW      CodeCell = 25 // reg1 = m[MAR] (2 bytes)
	OpMemWriteB     CodeCell = 26
	OpMemWriteW     CodeCell = 27
	OpJZ            CodeCell = 28 // jump if AX == 0, relative
	OpPushReg       CodeCell = 29
	OpPopReg        CodeCell = 30
	OpJmp           CodeCell = 31 // unconditional, relative
	OpMul           CodeCell = 32 // reg1 *= lit
	OpCallExt       CodeCell = 33 // call external (import) address in reg1
	OpPushReal      CodeCell = 34 // push onto the external call arg stack
	OpSubRealStack  CodeCell = 35
	OpLineNum       CodeCell = 36 // source line marker
	OpCallAs        CodeCell = 37
	OpThisBase      CodeCell = 38
	OpNumFuncArgs   CodeCell = 39
	OpModReg        CodeCell = 40
	OpXorReg        CodeCell = 41
	OpNotReg        CodeCell = 42 // reg1 = !reg1
	OpShiftLeft     CodeCell = 43
	OpShiftRight    CodeCell = 44
	OpCallObj       CodeCell = 45 // set OP for the following call
	OpCheckBounds   CodeCell = 46
	OpMemWritePtr   CodeCell = 47 // write managed handle at m[MAR]
	OpMemReadPtr    CodeCell = 48 // read managed handle from m[MAR]
	OpMemZeroPtr    CodeCell = 49 // release managed handle at m[MAR]
	OpMemInitPtr    CodeCell = 50 // first write of a managed handle at m[MAR]
	OpLoadSPOffs    CodeCell = 51 // MAR = SP - arg
	OpCheckNull     CodeCell = 52 // error if MAR == 0
	OpFAdd          CodeCell = 53 // float: reg1 += lit
	OpFSub          CodeCell = 54
	OpFMulReg       CodeCell = 55
	OpFDivReg       CodeCell = 56
	OpFAddReg       CodeCell = 57
	OpFSubReg       CodeCell = 58
	OpFGreater      CodeCell = 59
	OpFLessThan     CodeCell = 60
	OpFGTE          CodeCell = 61
	OpFLTE          CodeCell = 62
	OpZeroMemory    CodeCell = 63 // zero arg1 bytes at MAR
	OpCreateString  CodeCell = 64
	OpStringsEqual  CodeCell = 65
	OpStringsNotEq  CodeCell = 66
	OpCheckNullReg  CodeCell = 67
	OpLoopCheckOff  CodeCell = 68
	OpMemZeroPtrND  CodeCell = 69
	OpJNZ           CodeCell = 70
	OpDynamicBounds CodeCell = 71
	OpNewArray      CodeCell = 72
	OpNewUserObject CodeCell = 73
)

type opInfo struct {
	name string
	args int
}

var opTable = map[CodeCell]opInfo{
	OpAdd:           {"add", 2},
	OpSub:           {"sub", 2},
	OpRegToReg:      {"mov", 2},
	OpWriteLit:      {"memwritelit", 2},
	OpRet:           {"ret", 0},
	OpLitToReg:      {"mov", 2},
	OpMemRead:       {"memread4", 1},
	OpMemWrite:      {"memwrite4", 1},
	OpMulReg:        {"mul", 2},
	OpDivReg:        {"div", 2},
	OpAddReg:        {"add", 2},
	OpSubReg:        {"sub", 2},
	OpBitAnd:        {"bit_and", 2},
	OpBitOr:         {"bit_or", 2},
	OpIsEqual:       {"cmp", 2},
	OpNotEqual:      {"ncmp", 2},
	OpGreater:       {"gt", 2},
	OpLessThan:      {"lt", 2},
	OpGTE:           {"gte", 2},
	OpLTE:           {"lte", 2},
	OpAnd:           {"and", 2},
	OpOr:            {"or", 2},
	OpCall:          {"call", 1},
	OpMemReadB:      {"memread1", 1},
	OpMemReadW:      {"memread2", 1},
	OpMemWriteB:     {"memwrite1", 1},
	OpMemWriteW:     {"memwrite2", 1},
	OpJZ:            {"jz", 1},
	OpPushReg:       {"push", 1},
	OpPopReg:        {"pop", 1},
	OpJmp:           {"jmp", 1},
	OpMul:           {"mul", 2},
	OpCallExt:       {"farcall", 1},
	OpPushReal:      {"farpush", 1},
	OpSubRealStack:  {"farsubsp", 1},
	OpLineNum:       {"sourceline", 1},
	OpCallAs:        {"callscr", 1},
	OpThisBase:      {"thisaddr", 1},
	OpNumFuncArgs:   {"setfuncargs", 1},
	OpModReg:        {"mod", 2},
	OpXorReg:        {"xor", 2},
	OpNotReg:        {"not", 1},
	OpShiftLeft:     {"shl", 2},
	OpShiftRight:    {"shr", 2},
	OpCallObj:       {"callobj", 1},
	OpCheckBounds:   {"checkbounds", 2},
	OpMemWritePtr:   {"memwrite.ptr", 1},
	OpMemReadPtr:    {"memread.ptr", 1},
	OpMemZeroPtr:    {"memwrite.ptr.0", 0},
	OpMemInitPtr:    {"mem.init.ptr", 1},
	OpLoadSPOffs:    {"load.sp.offs", 1},
	OpCheckNull:     {"checknull.ptr", 0},
	OpFAdd:          {"f.add", 2},
	OpFSub:          {"f.sub", 2},
	OpFMulReg:       {"f.mul", 2},
	OpFDivReg:       {"f.div", 2},
	OpFAddReg:       {"f.add", 2},
	OpFSubReg:       {"f.sub", 2},
	OpFGreater:      {"f.gt", 2},
	OpFLessThan:     {"f.lt", 2},
	OpFGTE:          {"f.gte", 2},
	OpFLTE:          {"f.lte", 2},
	OpZeroMemory:    {"zeromem", 1},
	OpCreateString:  {"newstring", 1},
	OpStringsEqual:  {"strcmp", 2},
	OpStringsNotEq:  {"strnotcmp", 2},
	OpCheckNullReg:  {"checknull", 1},
	OpLoopCheckOff:  {"loopcheckoff", 0},
	OpMemZeroPtrND:  {"memwrite.ptr.0.nd", 0},
	OpJNZ:           {"jnz", 1},
	OpDynamicBounds: {"dynamicbounds", 1},
	OpNewArray:      {"newarray", 3},
	OpNewUserObject: {"newuserobject", 2},
}

// Args returns the number of operand cells following op, or -1 for an
// unknown opcode.
func Args(op CodeCell) int {
	info, ok := opTable[op]
	if !ok {
		return -1
	}
	return info.args
}

// OpName returns the disassembly mnemonic for op.
func OpName(op CodeCell) string {
	info, ok := opTable[op]
	if !ok {
		return fmt.Sprintf("op(%d)", op)
	}
	return info.name
}

// ExportType distinguishes what kind of thing an export table entry names.
type ExportType int

const (
	ExportFunction ExportType = iota + 1
	ExportVariable
)

func (et ExportType) String() string {
	switch et {
	case ExportFunction:
		return "function"
	case ExportVariable:
		return "variable"
	}
	return fmt.Sprintf("ExportType(%d)", int(et))
}

// Export is one entry of the export table: a symbol the module exposes to
// external callers, bound by name at load time.
type Export struct {
	Name    string
	Type    ExportType
	Loc     int32 // CodeLoc of the entry point, or GlobalLoc of the variable
	NumArgs int32 // parameter count for functions, 0 for variables
}

// Fixup records one cell whose value must be patched by the loader. The
// cell at Loc holds the unrelocated value (a GlobalLoc, CodeLoc,
// StringsLoc, import slot index or frame offset, depending on Type).
type Fixup struct {
	Loc  CodeLoc
	Type FixupType
}

// Module is the complete compiled artifact for one compilation unit.
type Module struct {
	Code           []CodeCell
	Fixups         []Fixup
	Strings        []byte   // NUL-terminated string literals, back to back
	Imports        []string // import slot index -> name
	Exports        []Export
	GlobalDataSize int32
}

// StringAt returns the NUL-terminated string starting at loc.
func (m *Module) StringAt(loc StringsLoc) (string, error) {
	if loc < 0 || int(loc) >= len(m.Strings) {
		return "", fmt.Errorf("string offset %d outside repository (%d bytes)", loc, len(m.Strings))
	}
	end := int(loc)
	for end < len(m.Strings) && m.Strings[end] != 0 {
		end++
	}
	return string(m.Strings[loc:end]), nil
}
