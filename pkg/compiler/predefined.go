package compiler

import "scriptc/pkg/bytecode"

// Operator precedence levels; a larger value binds tighter.
const (
	precLogicalOr = iota + 1
	precLogicalAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
)

// predefs holds the well-known symbols the parser compares against. They
// are seeded into every fresh symbol table before scanning starts.
type predefs struct {
	semicolon, comma, dot        Symbol
	lparen, rparen               Symbol
	lbrace, rbrace               Symbol
	star                         Symbol
	assign                       Symbol
	minus, not, tilde            Symbol
	increment, decrement         Symbol
	kwIf, kwElse, kwWhile, kwDo  Symbol
	kwFor, kwBreak, kwContinue   Symbol
	kwReturn, kwStruct, kwExport Symbol
	kwNew, kwNull, kwNoLoopCheck Symbol
	kwImport, kwTryImport        Symbol
	eof                          Symbol
	vartypes                     map[Symbol]Vartype
	qualifiers                   map[Symbol]TypeQualifier
}

// seedSymbols pre-registers every keyword, delimiter, operator and built-in
// vartype so the scanner resolves them to stable symbol ids.
func seedSymbols(st *SymbolTable) predefs {
	var p predefs
	p.vartypes = make(map[Symbol]Vartype)
	p.qualifiers = make(map[Symbol]TypeQualifier)

	delim := func(name string) Symbol {
		sym := st.FindOrAdd(name)
		st.Get(sym).SType = SymDelimiter
		return sym
	}
	keyword := func(name string) Symbol {
		sym := st.FindOrAdd(name)
		st.Get(sym).SType = SymKeyword
		return sym
	}
	binOp := func(name string, prec int, opInt, opFloat bytecode.CodeCell) Symbol {
		sym := st.FindOrAdd(name)
		si := st.Get(sym)
		si.SType = SymOperator
		si.Prec = prec
		si.OpcodeInt = opInt
		si.OpcodeFloat = opFloat
		return sym
	}

	p.semicolon = delim(";")
	p.comma = delim(",")
	p.dot = delim(".")
	p.lparen = delim("(")
	p.rparen = delim(")")
	p.lbrace = delim("{")
	p.rbrace = delim("}")
	delim("[")
	delim("]")

	binOp("||", precLogicalOr, bytecode.OpOr, 0)
	binOp("&&", precLogicalAnd, bytecode.OpAnd, 0)
	binOp("|", precBitOr, bytecode.OpBitOr, 0)
	binOp("^", precBitXor, bytecode.OpXorReg, 0)
	binOp("&", precBitAnd, bytecode.OpBitAnd, 0)
	binOp("==", precEquality, bytecode.OpIsEqual, bytecode.OpIsEqual)
	binOp("!=", precEquality, bytecode.OpNotEqual, bytecode.OpNotEqual)
	binOp("<", precRelational, bytecode.OpLessThan, bytecode.OpFLessThan)
	binOp(">", precRelational, bytecode.OpGreater, bytecode.OpFGreater)
	binOp("<=", precRelational, bytecode.OpLTE, bytecode.OpFLTE)
	binOp(">=", precRelational, bytecode.OpGTE, bytecode.OpFGTE)
	binOp("<<", precShift, bytecode.OpShiftLeft, 0)
	binOp(">>", precShift, bytecode.OpShiftRight, 0)
	binOp("+", precAdditive, bytecode.OpAddReg, bytecode.OpFAddReg)
	p.minus = binOp("-", precAdditive, bytecode.OpSubReg, bytecode.OpFSubReg)
	p.star = binOp("*", precMultiplicative, bytecode.OpMulReg, bytecode.OpFMulReg)
	binOp("/", precMultiplicative, bytecode.OpDivReg, bytecode.OpFDivReg)
	binOp("%", precMultiplicative, bytecode.OpModReg, 0)

	// unary-only operators carry no precedence
	p.not = binOp("!", 0, bytecode.OpNotReg, 0)
	p.tilde = binOp("~", 0, bytecode.OpXorReg, 0)

	p.assign = st.FindOrAdd("=")
	st.Get(p.assign).SType = SymAssign

	modAssign := func(name string, opInt, opFloat bytecode.CodeCell) {
		sym := st.FindOrAdd(name)
		si := st.Get(sym)
		si.SType = SymAssignMod
		si.OpcodeInt = opInt
		si.OpcodeFloat = opFloat
	}
	modAssign("+=", bytecode.OpAddReg, bytecode.OpFAddReg)
	modAssign("-=", bytecode.OpSubReg, bytecode.OpFSubReg)
	modAssign("*=", bytecode.OpMulReg, bytecode.OpFMulReg)
	modAssign("/=", bytecode.OpDivReg, bytecode.OpFDivReg)

	sop := func(name string, opInt bytecode.CodeCell) Symbol {
		sym := st.FindOrAdd(name)
		si := st.Get(sym)
		si.SType = SymAssignSOp
		si.OpcodeInt = opInt
		return sym
	}
	p.increment = sop("++", bytecode.OpAdd)
	p.decrement = sop("--", bytecode.OpSub)

	p.kwIf = keyword("if")
	p.kwElse = keyword("else")
	p.kwWhile = keyword("while")
	p.kwDo = keyword("do")
	p.kwFor = keyword("for")
	p.kwBreak = keyword("break")
	p.kwContinue = keyword("continue")
	p.kwReturn = keyword("return")
	p.kwStruct = keyword("struct")
	p.kwExport = keyword("export")
	p.kwNew = keyword("new")
	p.kwNoLoopCheck = keyword("noloopcheck")

	p.kwImport = st.FindOrAdd("import")
	st.Get(p.kwImport).SType = SymImport
	p.kwTryImport = st.FindOrAdd("_tryimport")
	st.Get(p.kwTryImport).SType = SymImport

	p.kwNull = st.FindOrAdd("null")
	{
		si := st.Get(p.kwNull)
		si.SType = SymConstant
		si.Value = 0
		si.IsPointer = true
	}

	qual := func(name string, tq TypeQualifier) {
		sym := st.FindOrAdd(name)
		st.Get(sym).SType = SymKeyword
		p.qualifiers[sym] = tq
	}
	qual("attribute", TQAttribute)
	qual("autoptr", TQAutoptr)
	qual("builtin", TQBuiltin)
	qual("const", TQConst)
	qual("managed", TQManaged)
	qual("protected", TQProtected)
	qual("readonly", TQReadonly)
	qual("static", TQStatic)
	qual("internalstring", TQStringstruct)
	qual("writeprotected", TQWriteprotected)

	vartype := func(name string, vt Vartype) {
		sym := st.FindOrAdd(name)
		si := st.Get(sym)
		si.SType = SymVartype
		si.Vartype = vt
	}
	vartype("int", VTInt)
	vartype("char", VTChar)
	vartype("short", VTShort)
	vartype("long", VTLong)
	vartype("float", VTFloat)
	vartype("string", VTString)
	vartype("void", VTVoid)

	p.eof = st.FindOrAdd("end of input")
	st.Get(p.eof).SType = SymDelimiter

	return p
}
