package compiler

import "fmt"

// Symbol identifies one classified name/literal/operator slot in a
// compilation unit. Ids are stable for the lifetime of the unit; the
// scanner's output is a sequence of Symbols.
type Symbol int

// NoSymbol is returned by lookups that find nothing.
const NoSymbol Symbol = -1

// SymbolType classifies what a Symbol denotes. The numeric order is load
// bearing: every type up to and including SymOperator may appear as an
// expression operand, everything after may not.
type SymbolType int

const (
	SymNoType SymbolType = iota
	SymAttribute
	SymDelimiter
	SymConstant
	SymFunction
	SymGlobalVar
	SymLiteralFloat
	SymLiteralInt
	SymLiteralString
	SymLocalVar
	SymOperator
	SymStructComponent
	SymAssign
	SymAssignMod // modifying assign, e.g. "+="
	SymAssignSOp // single-op assign, e.g. "++", "--"
	SymKeyword
	SymImport
	SymUndefinedStruct // forward-declared struct
	SymVartype
)

// Symbol types from SymStructComponent on cannot be expression operands.
const SymLastInExpression = SymStructComponent

var symbolTypeNames = [...]string{
	SymNoType:          "undefined symbol",
	SymAttribute:       "attribute",
	SymDelimiter:       "delimiter",
	SymConstant:        "constant",
	SymFunction:        "function",
	SymGlobalVar:       "global variable",
	SymLiteralFloat:    "float literal",
	SymLiteralInt:      "integer literal",
	SymLiteralString:   "string literal",
	SymLocalVar:        "local variable",
	SymOperator:        "operator",
	SymStructComponent: "struct component",
	SymAssign:          "assignment",
	SymAssignMod:       "modifying assignment",
	SymAssignSOp:       "increment/decrement",
	SymKeyword:         "keyword",
	SymImport:          "import",
	SymUndefinedStruct: "forward-declared struct",
	SymVartype:         "type",
}

func (st SymbolType) String() string {
	if int(st) >= 0 && int(st) < len(symbolTypeNames) {
		return symbolTypeNames[st]
	}
	return fmt.Sprintf("SymbolType(%d)", int(st))
}

// canBeExpressionOperand reports whether a symbol of this type is legal
// inside an expression.
func (st SymbolType) canBeExpressionOperand() bool {
	return st > SymNoType && st < SymLastInExpression
}

// TypeQualifier is one orthogonal declaration modifier. The bit values are
// part of the serialized module contract and must not be renumbered.
type TypeQualifier uint32

const (
	TQAttribute      TypeQualifier = 1 << 0
	TQAutoptr        TypeQualifier = 1 << 1
	TQBuiltin        TypeQualifier = 1 << 2
	TQConst          TypeQualifier = 1 << 3
	TQImportStd      TypeQualifier = 1 << 4
	TQImportTry      TypeQualifier = 1 << 5
	TQManaged        TypeQualifier = 1 << 6
	TQProtected      TypeQualifier = 1 << 7
	TQReadonly       TypeQualifier = 1 << 8
	TQStatic         TypeQualifier = 1 << 9
	TQStringstruct   TypeQualifier = 1 << 10
	TQWriteprotected TypeQualifier = 1 << 11

	// TQImport is the union of both import flavors, so "is imported" is a
	// single mask test.
	TQImport = TQImportStd | TQImportTry
)

var qualifierNames = map[TypeQualifier]string{
	TQAttribute:      "attribute",
	TQAutoptr:        "autoptr",
	TQBuiltin:        "builtin",
	TQConst:          "const",
	TQImportStd:      "import",
	TQImportTry:      "_tryimport",
	TQManaged:        "managed",
	TQProtected:      "protected",
	TQReadonly:       "readonly",
	TQStatic:         "static",
	TQStringstruct:   "internalstring",
	TQWriteprotected: "writeprotected",
}

func (tq TypeQualifier) String() string {
	if n, ok := qualifierNames[tq]; ok {
		return n
	}
	return fmt.Sprintf("TypeQualifier(%#x)", uint32(tq))
}

// TypeQualifierSet is a set of TypeQualifier values. The zero value is the
// empty set.
type TypeQualifierSet uint32

func (s TypeQualifierSet) Has(tq TypeQualifier) bool {
	return s&TypeQualifierSet(tq) != 0
}

func (s TypeQualifierSet) With(tq TypeQualifier) TypeQualifierSet {
	return s | TypeQualifierSet(tq)
}

func (s TypeQualifierSet) Without(tq TypeQualifier) TypeQualifierSet {
	return s &^ TypeQualifierSet(tq)
}

// IsImported reports whether either import flavor is in the set.
func (s TypeQualifierSet) IsImported() bool {
	return s.Has(TQImport)
}

// Bits returns the serialized bit layout of the set.
func (s TypeQualifierSet) Bits() uint32 {
	return uint32(s)
}

// SymbolFlag holds per-symbol bits orthogonal to the type qualifiers.
type SymbolFlag uint32

const (
	FlagAccessed      SymbolFlag = 1 << 0 // used at least once
	FlagNoLoopCheck   SymbolFlag = 1 << 1 // function exempt from long-loop guards
	FlagStructAutoPtr SymbolFlag = 1 << 2 // "*" is implied
	FlagStructBuiltin SymbolFlag = 1 << 3 // cannot be instantiated with "new"
	FlagStructMember  SymbolFlag = 1 << 4
	FlagStructManaged SymbolFlag = 1 << 5
	FlagStructVartype SymbolFlag = 1 << 6 // the vartype is a struct
)

// SymbolFlagSet is a set of SymbolFlag values.
type SymbolFlagSet uint32

func (s SymbolFlagSet) Has(f SymbolFlag) bool { return s&SymbolFlagSet(f) != 0 }

func (s *SymbolFlagSet) Set(f SymbolFlag) { *s |= SymbolFlagSet(f) }

// ScopeType says in what kind of memory a variable lives. It determines the
// addressing mode the code generator uses and which fixup kind, if any, a
// reference needs.
type ScopeType int

const (
	ScopeNone ScopeType = iota
	ScopeGlobal
	ScopeImport
	ScopeLocal
	ScopeStrings
)

func (sc ScopeType) String() string {
	switch sc {
	case ScopeNone:
		return "none"
	case ScopeGlobal:
		return "global"
	case ScopeImport:
		return "import"
	case ScopeLocal:
		return "local"
	case ScopeStrings:
		return "strings"
	}
	return fmt.Sprintf("ScopeType(%d)", int(sc))
}
