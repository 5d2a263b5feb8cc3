package bytecode

import "fmt"

// Bases supplies the runtime addresses a loader has assigned to each
// segment of a module, plus the import bindings resolved by name.
type Bases struct {
	Code    int32
	Globals int32
	Strings int32
	Stack   int32
	Imports map[string]int32 // import name -> bound address
}

// Validate checks the structural invariants every well-formed module must
// satisfy: each fixup targets a cell inside the code array, no cell carries
// two fixups of different kinds, and every import fixup's slot index names
// an entry of the import table. A violation means the module was produced
// by a broken compiler, not that the script was wrong.
func Validate(m *Module) error {
	kinds := make(map[CodeLoc]FixupType, len(m.Fixups))
	for _, fx := range m.Fixups {
		if fx.Loc < 0 || int(fx.Loc) >= len(m.Code) {
			return fmt.Errorf("fixup %s at cell %d outside code array (%d cells)",
				FixupName(fx.Type), fx.Loc, len(m.Code))
		}
		if prev, ok := kinds[fx.Loc]; ok && prev != fx.Type {
			return fmt.Errorf("cell %d carries both %s and %s fixups",
				fx.Loc, FixupName(prev), FixupName(fx.Type))
		}
		kinds[fx.Loc] = fx.Type
		switch fx.Type {
		case FixupGlobalData:
			if v := m.Code[fx.Loc]; v < 0 || v >= m.GlobalDataSize {
				return fmt.Errorf("globaldata fixup at cell %d references offset %d outside global segment (%d bytes)",
					fx.Loc, v, m.GlobalDataSize)
			}
		case FixupFunction:
			if v := m.Code[fx.Loc]; v < 0 || int(v) >= len(m.Code) {
				return fmt.Errorf("function fixup at cell %d references code offset %d outside code array", fx.Loc, v)
			}
		case FixupString:
			if v := m.Code[fx.Loc]; v < 0 || int(v) >= len(m.Strings) {
				return fmt.Errorf("string fixup at cell %d references offset %d outside string repository", fx.Loc, v)
			}
		case FixupImport:
			if v := m.Code[fx.Loc]; v < 0 || int(v) >= len(m.Imports) {
				return fmt.Errorf("import fixup at cell %d references slot %d, have %d imports",
					fx.Loc, v, len(m.Imports))
			}
		case FixupStack:
			// frame offsets are validated against the frame at runtime
		default:
			return fmt.Errorf("unknown fixup kind %d at cell %d", fx.Type, fx.Loc)
		}
	}
	return nil
}

// Resolve patches every fixed-up cell of m in place against the supplied
// bases, the step a loader performs before handing the code to the VM.
// Import fixups require every referenced import name to be present in
// bases.Imports.
func Resolve(m *Module, bases Bases) error {
	if err := Validate(m); err != nil {
		return err
	}
	for _, fx := range m.Fixups {
		cell := m.Code[fx.Loc]
		switch fx.Type {
		case FixupGlobalData:
			m.Code[fx.Loc] = bases.Globals + cell
		case FixupFunction:
			m.Code[fx.Loc] = bases.Code + cell
		case FixupString:
			m.Code[fx.Loc] = bases.Strings + cell
		case FixupStack:
			m.Code[fx.Loc] = bases.Stack + cell
		case FixupImport:
			name := m.Imports[cell]
			addr, ok := bases.Imports[name]
			if !ok {
				return fmt.Errorf("unresolved import %q (slot %d)", name, cell)
			}
			m.Code[fx.Loc] = addr
		}
	}
	return nil
}
