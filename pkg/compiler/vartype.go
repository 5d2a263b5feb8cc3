package compiler

import (
	"fmt"

	"scriptc/pkg/bytecode"
)

// Vartype identifies a registered type (built-in or struct).
type Vartype int

// NoVartype marks "no type known yet".
const NoVartype Vartype = 0

// Built-in vartypes, in registration order.
const (
	VTInt Vartype = iota + 1
	VTChar
	VTShort
	VTLong
	VTFloat
	VTString
	VTVoid
	firstUserVartype
)

// Member is one data member of a completed struct, with its byte offset
// inside the struct.
type Member struct {
	Name      string
	Sym       Symbol // the interned "Struct::member" component symbol
	Vartype   Vartype
	IsPointer bool
	Offset    int32
	TQ        TypeQualifierSet
}

// VartypeInfo describes one registered type. A struct starts out incomplete
// (a forward declaration) and is completed exactly once with its member
// layout and size.
type VartypeInfo struct {
	Name     string
	Size     int32
	Complete bool
	Flags    SymbolFlagSet
	Members  []Member
}

// IsStruct reports whether the vartype was declared as a struct.
func (vi *VartypeInfo) IsStruct() bool { return vi.Flags.Has(FlagStructVartype) }

// IsManaged reports whether values of the type live on the managed heap.
func (vi *VartypeInfo) IsManaged() bool { return vi.Flags.Has(FlagStructManaged) }

// IsAutoptr reports whether the pointer indirection is implicit at use sites.
func (vi *VartypeInfo) IsAutoptr() bool { return vi.Flags.Has(FlagStructAutoPtr) }

// FindMember returns the member with the given name, if any.
func (vi *VartypeInfo) FindMember(name string) (Member, bool) {
	for _, m := range vi.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// TypeRegistry holds every vartype of one compilation unit, indexed by
// Vartype id. Built-in types are pre-registered with their fixed sizes.
type TypeRegistry struct {
	types []VartypeInfo // index 0 is the NoVartype placeholder
}

func NewTypeRegistry() *TypeRegistry {
	tr := &TypeRegistry{types: []VartypeInfo{{Name: "(no type)"}}}
	builtin := func(name string, size int32) {
		tr.types = append(tr.types, VartypeInfo{Name: name, Size: size, Complete: true})
	}
	builtin("int", bytecode.SizeOfInt)
	builtin("char", bytecode.SizeOfChar)
	builtin("short", bytecode.SizeOfShort)
	builtin("long", bytecode.SizeOfLong)
	builtin("float", bytecode.SizeOfFloat)
	builtin("string", bytecode.SizeOfDynPointer)
	builtin("void", 0)
	return tr
}

// Get returns the registered info for vt, or nil for an invalid id.
func (tr *TypeRegistry) Get(vt Vartype) *VartypeInfo {
	if vt <= NoVartype || int(vt) >= len(tr.types) {
		return nil
	}
	return &tr.types[vt]
}

// Name returns the declared name of vt, tolerating invalid ids for use in
// diagnostics.
func (tr *TypeRegistry) Name(vt Vartype) string {
	if vi := tr.Get(vt); vi != nil {
		return vi.Name
	}
	return fmt.Sprintf("vartype(%d)", int(vt))
}

// DeclareStruct registers a forward-declared struct and returns its id.
// The type stays incomplete until CompleteStruct supplies its layout.
func (tr *TypeRegistry) DeclareStruct(name string) Vartype {
	vt := Vartype(len(tr.types))
	vi := VartypeInfo{Name: name}
	vi.Flags.Set(FlagStructVartype)
	tr.types = append(tr.types, vi)
	return vt
}

// CompleteStruct fills in a forward-declared struct exactly once.
// Completing a type twice, or one that is not a struct, is a compiler
// invariant violation.
func (tr *TypeRegistry) CompleteStruct(vt Vartype, members []Member, size int32, flags SymbolFlagSet) error {
	vi := tr.Get(vt)
	if vi == nil || !vi.IsStruct() {
		return fmt.Errorf("CompleteStruct on non-struct vartype %d", int(vt))
	}
	if vi.Complete {
		return fmt.Errorf("struct '%s' completed twice", vi.Name)
	}
	vi.Members = members
	vi.Size = size
	vi.Flags |= flags
	vi.Complete = true
	return nil
}

// SizeOf returns the concrete size of vt. Asking for the size of an
// incomplete struct is an error; such a type may only be used behind a
// pointer until completed.
func (tr *TypeRegistry) SizeOf(vt Vartype) (int32, error) {
	vi := tr.Get(vt)
	if vi == nil {
		return 0, fmt.Errorf("unknown vartype %d", int(vt))
	}
	if !vi.Complete {
		return 0, fmt.Errorf("struct '%s' is only forward-declared here", vi.Name)
	}
	return vi.Size, nil
}

// alignUp rounds size up to the struct member alignment boundary.
func alignUp(size int32) int32 {
	rem := size % bytecode.StructAlignTo
	if rem == 0 {
		return size
	}
	return size + bytecode.StructAlignTo - rem
}
