package compiler

import (
	"strings"
	"testing"

	"scriptc/pkg/bytecode"
)

func TestBuiltinSizes(t *testing.T) {
	tr := NewTypeRegistry()
	tests := []struct {
		vt   Vartype
		size int32
	}{
		{VTInt, bytecode.SizeOfInt},
		{VTChar, bytecode.SizeOfChar},
		{VTShort, bytecode.SizeOfShort},
		{VTLong, bytecode.SizeOfLong},
		{VTFloat, bytecode.SizeOfFloat},
	}
	for _, tc := range tests {
		got, err := tr.SizeOf(tc.vt)
		if err != nil {
			t.Fatalf("SizeOf(%s): %v", tr.Name(tc.vt), err)
		}
		if got != tc.size {
			t.Errorf("SizeOf(%s) = %d, want %d", tr.Name(tc.vt), got, tc.size)
		}
	}
}

func TestStructLifecycle(t *testing.T) {
	tr := NewTypeRegistry()
	vt := tr.DeclareStruct("Critter")

	if _, err := tr.SizeOf(vt); err == nil {
		t.Fatal("SizeOf succeeded on a forward-declared struct")
	} else if !strings.Contains(err.Error(), "Critter") {
		t.Errorf("incomplete-struct error %q does not name the struct", err)
	}

	members := []Member{
		{Name: "health", Vartype: VTInt, Offset: 0},
		{Name: "name", Vartype: VTString, Offset: 4},
	}
	var flags SymbolFlagSet
	flags.Set(FlagStructVartype)
	flags.Set(FlagStructManaged)
	if err := tr.CompleteStruct(vt, members, 8, flags); err != nil {
		t.Fatalf("CompleteStruct: %v", err)
	}

	vi := tr.Get(vt)
	if !vi.Complete || !vi.IsManaged() || vi.Size != 8 {
		t.Fatalf("completed struct: %+v", vi)
	}
	m, ok := vi.FindMember("name")
	if !ok || m.Offset != 4 {
		t.Errorf("FindMember(name) = %+v, %v", m, ok)
	}
	if _, ok := vi.FindMember("tail"); ok {
		t.Errorf("FindMember found a member that was never declared")
	}

	if err := tr.CompleteStruct(vt, nil, 0, flags); err == nil {
		t.Error("completing the same struct twice succeeded")
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct{ in, want int32 }{
		{0, 0}, {1, 4}, {3, 4}, {4, 4}, {5, 8}, {8, 8}, {9, 12},
	}
	for _, tc := range tests {
		if got := alignUp(tc.in); got != tc.want {
			t.Errorf("alignUp(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestAlignOffset(t *testing.T) {
	// char packs tightly, short to 2, cell-sized members to 4
	if got := alignOffset(1, bytecode.SizeOfChar); got != 1 {
		t.Errorf("char after 1 byte lands at %d, want 1", got)
	}
	if got := alignOffset(1, bytecode.SizeOfShort); got != 2 {
		t.Errorf("short after 1 byte lands at %d, want 2", got)
	}
	if got := alignOffset(3, bytecode.SizeOfInt); got != 4 {
		t.Errorf("int after 3 bytes lands at %d, want 4", got)
	}
	if got := alignOffset(8, bytecode.SizeOfInt); got != 8 {
		t.Errorf("aligned int moved from 8 to %d", got)
	}
}
