package compiler

import (
	"strings"
	"testing"
)

func TestFindOrAddStableIds(t *testing.T) {
	st := NewSymbolTable()
	a := st.FindOrAdd("alpha")
	b := st.FindOrAdd("beta")
	if a == b {
		t.Fatalf("distinct names share id %d", a)
	}
	if again := st.FindOrAdd("alpha"); again != a {
		t.Errorf("re-interning alpha gave %d, want %d", again, a)
	}
	if st.Find("gamma") != NoSymbol {
		t.Errorf("Find invented a symbol for an unseen name")
	}
	if st.Name(a) != "alpha" {
		t.Errorf("Name(%d) = %q", a, st.Name(a))
	}
}

func TestDeclareAndShadow(t *testing.T) {
	st := NewSymbolTable()
	x := st.FindOrAdd("x")

	if err := st.Declare(x, SymGlobalVar); err != nil {
		t.Fatalf("global declare: %v", err)
	}
	st.Get(x).Vartype = VTInt
	st.Get(x).SOffset = 40

	st.PushScope()
	if err := st.Declare(x, SymLocalVar); err != nil {
		t.Fatalf("shadowing declare: %v", err)
	}
	st.Get(x).Vartype = VTFloat
	if st.Get(x).SType != SymLocalVar {
		t.Fatalf("inner x is %v, want a local", st.Get(x).SType)
	}

	gone := st.PopScope()
	if len(gone) != 1 || gone[0] != x {
		t.Fatalf("PopScope returned %v, want [x]", gone)
	}
	si := st.Get(x)
	if si.SType != SymGlobalVar || si.Vartype != VTInt || si.SOffset != 40 {
		t.Errorf("outer declaration not restored: %+v", si)
	}
}

func TestDeclareSameDepthFails(t *testing.T) {
	st := NewSymbolTable()
	x := st.FindOrAdd("x")
	if err := st.Declare(x, SymGlobalVar); err != nil {
		t.Fatalf("first declare: %v", err)
	}
	err := st.Declare(x, SymGlobalVar)
	if err == nil {
		t.Fatal("redeclaration at the same depth succeeded")
	}
	if !strings.Contains(err.Error(), "already declared") {
		t.Errorf("error %q does not mention the redeclaration", err)
	}
}

func TestPopScopeRevertsToUndeclared(t *testing.T) {
	st := NewSymbolTable()
	st.PushScope()
	y := st.FindOrAdd("y")
	if err := st.Declare(y, SymLocalVar); err != nil {
		t.Fatalf("declare: %v", err)
	}
	st.PopScope()
	if st.Get(y).SType != SymNoType {
		t.Errorf("y still declared as %v after its scope closed", st.Get(y).SType)
	}
	if st.Name(y) != "y" {
		t.Errorf("y lost its name: %q", st.Name(y))
	}
}

func TestNestedScopeDepth(t *testing.T) {
	st := NewSymbolTable()
	if st.Depth() != 0 {
		t.Fatalf("fresh table at depth %d", st.Depth())
	}
	st.PushScope()
	st.PushScope()
	if st.Depth() != 2 {
		t.Fatalf("depth %d after two pushes", st.Depth())
	}
	st.PopScope()
	st.PopScope()
	if st.Depth() != 0 {
		t.Errorf("depth %d after balanced pops", st.Depth())
	}
	if st.PopScope() != nil {
		t.Errorf("popping the global scope returned symbols")
	}
}
