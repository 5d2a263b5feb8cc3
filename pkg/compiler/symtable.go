package compiler

import (
	"fmt"

	"scriptc/pkg/bytecode"
)

// SymbolInfo is everything the compiler knows about one symbol. Which
// fields are meaningful depends on SType; e.g. Prec and the opcode fields
// are only set for operators, FuncLoc only for functions.
type SymbolInfo struct {
	Name  string
	SType SymbolType
	TQ    TypeQualifierSet
	Flags SymbolFlagSet
	Scope ScopeType

	Vartype   Vartype // variable/component type, function return type, or the type a SymVartype names
	IsPointer bool
	SOffset   int32 // GlobalLoc, frame offset, import slot or StringsLoc per Scope
	SSize     int32
	Value     int32 // literal value; float literals store their bit pattern
	DeclLine  int
	Depth     int // nesting depth of the current declaration

	// functions
	NumArgs  int
	Params   []ParamType
	FuncLoc  bytecode.CodeLoc // entry point; -1 until the body is emitted
	Exported bool             // named in an export statement, or a public function

	// struct components
	Parent Vartype // owning struct

	// operators
	Prec        int
	OpcodeInt   bytecode.CodeCell
	OpcodeFloat bytecode.CodeCell

	// declarations from outer scopes hidden by this one
	shadowed []SymbolInfo
}

// ParamType is the declared type of one function parameter.
type ParamType struct {
	Vartype   Vartype
	IsPointer bool
}

// isDeclared reports whether the symbol currently denotes a declared thing
// (as opposed to a fresh identifier the scanner interned).
func (si *SymbolInfo) isDeclared() bool {
	return si.SType != SymNoType
}

// SymbolTable is the canonical registry mapping each distinct identifier,
// literal and operator to a Symbol id. Ids are never reused or deleted
// within one compilation unit; local declarations shadow outer ones and
// the outer information is restored when their scope ends.
type SymbolTable struct {
	entries  []SymbolInfo
	byName   map[string]Symbol
	depth    int
	declared [][]Symbol // symbols declared at each nesting depth
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName:   make(map[string]Symbol),
		declared: [][]Symbol{nil}, // depth 0: globals
	}
}

// FindOrAdd interns name, creating a fresh SymNoType entry on first sight.
// This is how the scanner turns every token into a Symbol.
func (st *SymbolTable) FindOrAdd(name string) Symbol {
	if sym, ok := st.byName[name]; ok {
		return sym
	}
	sym := Symbol(len(st.entries))
	st.entries = append(st.entries, SymbolInfo{Name: name})
	st.byName[name] = sym
	return sym
}

// Find returns the symbol interned for name, or NoSymbol.
func (st *SymbolTable) Find(name string) Symbol {
	if sym, ok := st.byName[name]; ok {
		return sym
	}
	return NoSymbol
}

// Get returns the current info for sym. The pointer stays valid until the
// next FindOrAdd, so callers must not hold it across interning.
func (st *SymbolTable) Get(sym Symbol) *SymbolInfo {
	if sym < 0 || int(sym) >= len(st.entries) {
		return nil
	}
	return &st.entries[sym]
}

// Name returns the interned name of sym, tolerating bad ids for diagnostics.
func (st *SymbolTable) Name(sym Symbol) string {
	if si := st.Get(sym); si != nil {
		return si.Name
	}
	return fmt.Sprintf("symbol(%d)", int(sym))
}

// Len returns the number of interned symbols; valid ids are [0, Len).
func (st *SymbolTable) Len() int {
	return len(st.entries)
}

// Depth returns the current nesting depth (0 = global scope).
func (st *SymbolTable) Depth() int {
	return st.depth
}

// PushScope opens a nested local scope.
func (st *SymbolTable) PushScope() {
	st.depth++
	st.declared = append(st.declared, nil)
}

// PopScope closes the innermost scope and returns the symbols that were
// declared in it, in declaration order, so the caller can check for unused
// locals. Each popped symbol reverts to whatever it denoted outside the
// scope (or back to undeclared).
func (st *SymbolTable) PopScope() []Symbol {
	if st.depth == 0 {
		return nil
	}
	gone := st.declared[st.depth]
	st.declared = st.declared[:st.depth]
	st.depth--

	for _, sym := range gone {
		si := &st.entries[sym]
		if n := len(si.shadowed); n > 0 {
			outer := si.shadowed[n-1]
			outer.shadowed = si.shadowed[:n-1]
			st.entries[sym] = outer
		} else {
			st.entries[sym] = SymbolInfo{Name: si.Name}
		}
	}
	return gone
}

// Declare marks sym as denoting a newly declared entity of the given kind
// in the current scope. A symbol already declared at the same depth is a
// redeclaration error (callers handle the permitted import-confirmation
// case before declaring); one declared in an outer scope is shadowed and
// restored when this scope ends.
func (st *SymbolTable) Declare(sym Symbol, sType SymbolType) error {
	si := st.Get(sym)
	if si == nil {
		return fmt.Errorf("declare of unknown symbol id %d", int(sym))
	}
	if si.isDeclared() {
		if si.Depth == st.depth {
			return fmt.Errorf("'%s' is already declared as a %v", si.Name, si.SType)
		}
		saved := *si
		*si = SymbolInfo{Name: si.Name, shadowed: append(saved.shadowed, saved)}
	}
	si.SType = sType
	si.Depth = st.depth
	st.declared[st.depth] = append(st.declared[st.depth], sym)
	return nil
}
