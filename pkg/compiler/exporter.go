package compiler

import "scriptc/pkg/bytecode"

// buildExports walks the symbol table in id order and collects the export
// table: functions defined in this unit that were not hidden with static
// or protected, plus globals named in an export statement. Id order makes
// the table deterministic.
func (c *compilation) buildExports() ([]bytecode.Export, error) {
	var exports []bytecode.Export
	for sym := Symbol(0); int(sym) < c.sym.Len(); sym++ {
		si := c.sym.Get(sym)
		if !si.Exported || si.TQ.IsImported() {
			continue
		}
		switch si.SType {
		case SymFunction:
			if si.FuncLoc < 0 {
				continue
			}
			exports = append(exports, bytecode.Export{
				Name:    si.Name,
				Type:    bytecode.ExportFunction,
				Loc:     si.FuncLoc,
				NumArgs: int32(si.NumArgs),
			})
		case SymGlobalVar:
			if si.Scope != ScopeGlobal {
				continue
			}
			if vi := c.types.Get(si.Vartype); vi != nil && !vi.Complete {
				return nil, c.userError(si.DeclLine,
					"cannot export '%s': struct '%s' is only forward-declared", si.Name, vi.Name)
			}
			exports = append(exports, bytecode.Export{
				Name: si.Name,
				Type: bytecode.ExportVariable,
				Loc:  si.SOffset,
			})
		}
	}
	return exports, nil
}
