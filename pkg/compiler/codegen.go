package compiler

import (
	"fmt"

	"scriptc/pkg/bytecode"
)

// emitter owns the growing code cell array and the fixup list. All code
// reaches the module through it, so the fixup invariants (in-bounds
// locations, one kind per cell) are enforced in one place.
type emitter struct {
	code       []bytecode.CodeCell
	fixups     []bytecode.Fixup
	fixupKinds map[bytecode.CodeLoc]bytecode.FixupType
	lastLine   int
}

func newEmitter() *emitter {
	return &emitter{fixupKinds: make(map[bytecode.CodeLoc]bytecode.FixupType)}
}

// here returns the location the next cell will be written to.
func (e *emitter) here() bytecode.CodeLoc {
	return bytecode.CodeLoc(len(e.code))
}

// writeCell appends one cell and returns its location.
func (e *emitter) writeCell(v bytecode.CodeCell) bytecode.CodeLoc {
	loc := e.here()
	e.code = append(e.code, v)
	return loc
}

// writeCmd appends an opcode with its operand cells.
func (e *emitter) writeCmd(op bytecode.CodeCell, args ...bytecode.CodeCell) {
	e.writeCell(op)
	for _, a := range args {
		e.writeCell(a)
	}
}

// lineNum emits a source line marker when the line has changed since the
// last marker. The runtime uses these for error reports and loop guards.
func (e *emitter) lineNum(line int) {
	if line == e.lastLine {
		return
	}
	e.lastLine = line
	e.writeCmd(bytecode.OpLineNum, bytecode.CodeCell(line))
}

// addFixup registers loc for patching at load time. A location already
// registered with a different kind means the code generator itself went
// wrong; the caller reports that as an internal error.
func (e *emitter) addFixup(loc bytecode.CodeLoc, ft bytecode.FixupType) error {
	if loc < 0 || loc >= e.here() {
		return fmt.Errorf("fixup %s at cell %d outside emitted code (%d cells)",
			bytecode.FixupName(ft), loc, len(e.code))
	}
	if prev, ok := e.fixupKinds[loc]; ok && prev != ft {
		return fmt.Errorf("cell %d already carries a %s fixup, cannot add %s",
			loc, bytecode.FixupName(prev), bytecode.FixupName(ft))
	}
	e.fixupKinds[loc] = ft
	e.fixups = append(e.fixups, bytecode.Fixup{Loc: loc, Type: ft})
	return nil
}

// writeFixedUp appends a cell holding an unrelocated value and registers
// its fixup in one step.
func (e *emitter) writeFixedUp(v bytecode.CodeCell, ft bytecode.FixupType) error {
	loc := e.writeCell(v)
	return e.addFixup(loc, ft)
}

// Jumps are relative to the cell following the operand, so a distance of 0
// falls through.

// jumpSrc emits a jump instruction with a placeholder operand and returns
// the operand's location for later patching.
func (e *emitter) jumpSrc(op bytecode.CodeCell) bytecode.CodeLoc {
	e.writeCell(op)
	return e.writeCell(0)
}

// patchJumpToHere resolves a placeholder emitted by jumpSrc to the current
// location.
func (e *emitter) patchJumpToHere(operandLoc bytecode.CodeLoc) {
	e.code[operandLoc] = e.here() - (operandLoc + 1)
}

// jumpTo emits a backward jump to a known location.
func (e *emitter) jumpTo(op bytecode.CodeCell, dest bytecode.CodeLoc) {
	e.writeCell(op)
	loc := e.writeCell(0)
	e.code[loc] = dest - (loc + 1)
}

// patchCell overwrites the cell at loc; used to resolve forward function
// references once the body's entry point is known.
func (e *emitter) patchCell(loc bytecode.CodeLoc, v bytecode.CodeCell) {
	e.code[loc] = v
}
