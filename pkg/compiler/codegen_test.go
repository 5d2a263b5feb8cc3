package compiler

import (
	"testing"

	"scriptc/pkg/bytecode"
)

func TestJumpForwardPatch(t *testing.T) {
	em := newEmitter()
	operand := em.jumpSrc(bytecode.OpJZ)
	em.writeCmd(bytecode.OpRet)
	em.writeCmd(bytecode.OpRet)
	em.patchJumpToHere(operand)

	// relative to the cell after the operand
	want := em.here() - (operand + 1)
	if em.code[operand] != want {
		t.Errorf("patched offset %d, want %d", em.code[operand], want)
	}
	if em.code[operand-1] != bytecode.OpJZ {
		t.Errorf("opcode cell holds %d, want JZ", em.code[operand-1])
	}
}

func TestJumpBackward(t *testing.T) {
	em := newEmitter()
	top := em.here()
	em.writeCmd(bytecode.OpRet)
	em.jumpTo(bytecode.OpJmp, top)

	operand := em.here() - 1
	if got := em.code[operand]; got != top-(operand+1) {
		t.Errorf("backward offset %d, want %d", got, top-(operand+1))
	}
	if got := em.code[operand]; got >= 0 {
		t.Errorf("backward jump offset %d is not negative", got)
	}
}

func TestLineNumDeduplicated(t *testing.T) {
	em := newEmitter()
	em.lineNum(3)
	em.lineNum(3)
	em.lineNum(4)

	count := 0
	for i := 0; i < len(em.code); i += 1 + bytecode.Args(em.code[i]) {
		if em.code[i] == bytecode.OpLineNum {
			count++
		}
	}
	if count != 2 {
		t.Errorf("%d linenum markers, want 2", count)
	}
}

func TestFixupConflictRejected(t *testing.T) {
	em := newEmitter()
	loc := em.writeCell(0)
	if err := em.addFixup(loc, bytecode.FixupGlobalData); err != nil {
		t.Fatalf("first fixup: %v", err)
	}
	if err := em.addFixup(loc, bytecode.FixupImport); err == nil {
		t.Error("conflicting fixup kinds on one cell accepted")
	}
	if err := em.addFixup(bytecode.CodeLoc(99), bytecode.FixupGlobalData); err == nil {
		t.Error("fixup outside the code array accepted")
	}
}

func TestWriteFixedUp(t *testing.T) {
	em := newEmitter()
	em.writeCell(bytecode.OpLitToReg)
	em.writeCell(bytecode.RegAX)
	if err := em.writeFixedUp(12, bytecode.FixupString); err != nil {
		t.Fatalf("writeFixedUp: %v", err)
	}
	if len(em.fixups) != 1 {
		t.Fatalf("%d fixups recorded, want 1", len(em.fixups))
	}
	fx := em.fixups[0]
	if fx.Type != bytecode.FixupString || em.code[fx.Loc] != 12 {
		t.Errorf("fixup %+v over cell %d", fx, em.code[fx.Loc])
	}
}
