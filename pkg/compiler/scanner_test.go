package compiler

import (
	"math"
	"testing"
)

func scanSource(t *testing.T, src string) ([]Lexeme, *SymbolTable, *stringPool) {
	t.Helper()
	sym := NewSymbolTable()
	seedSymbols(sym)
	pool := newStringPool()
	lex, err := newScanner(src, sym, pool).ScanAll()
	if err != nil {
		t.Fatalf("scan %q: %v", src, err)
	}
	return lex, sym, pool
}

func TestScanIdentifiersAndKeywords(t *testing.T) {
	lex, sym, _ := scanSource(t, "int foo; while (foo) foo = foo;")

	names := make([]string, len(lex))
	for i, lx := range lex {
		names[i] = sym.Name(lx.Sym)
	}
	want := []string{"int", "foo", ";", "while", "(", "foo", ")", "foo", "=", "foo", ";"}
	if len(names) != len(want) {
		t.Fatalf("got %d lexemes %v, want %d", len(names), names, len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("lexeme %d = %q, want %q", i, names[i], want[i])
		}
	}

	// every "foo" must resolve to the same symbol id
	foo := sym.Find("foo")
	for i, lx := range lex {
		if names[i] == "foo" && lx.Sym != foo {
			t.Errorf("lexeme %d resolves to %d, want %d", i, lx.Sym, foo)
		}
	}
}

func TestScanLiterals(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		sType SymbolType
		value int32
	}{
		{"int", "42", SymLiteralInt, 42},
		{"zero", "0", SymLiteralInt, 0},
		{"float", "2.5", SymLiteralFloat, int32(math.Float32bits(2.5))},
		{"char", "'A'", SymLiteralInt, 65},
		{"escaped char", `'\n'`, SymLiteralInt, 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lex, sym, _ := scanSource(t, tc.src)
			if len(lex) != 1 {
				t.Fatalf("got %d lexemes, want 1", len(lex))
			}
			si := sym.Get(lex[0].Sym)
			if si.SType != tc.sType {
				t.Fatalf("symbol type %v, want %v", si.SType, tc.sType)
			}
			if si.Value != tc.value {
				t.Errorf("value %d, want %d", si.Value, tc.value)
			}
		})
	}
}

func TestScanStringInterning(t *testing.T) {
	lex, sym, pool := scanSource(t, `"hi" "there" "hi"`)
	if len(lex) != 3 {
		t.Fatalf("got %d lexemes, want 3", len(lex))
	}
	first := sym.Get(lex[0].Sym)
	second := sym.Get(lex[1].Sym)
	third := sym.Get(lex[2].Sym)

	if first.SType != SymLiteralString || first.Scope != ScopeStrings {
		t.Fatalf("string literal symbol: type %v scope %v", first.SType, first.Scope)
	}
	if lex[0].Sym != lex[2].Sym {
		t.Errorf("identical literals interned as different symbols")
	}
	if first.SOffset == second.SOffset {
		t.Errorf("distinct literals share offset %d", first.SOffset)
	}
	if third.SOffset != first.SOffset {
		t.Errorf("repeated literal at offset %d, want %d", third.SOffset, first.SOffset)
	}

	// "hi\0there\0" is the whole repository
	if len(pool.blob) != len("hi")+1+len("there")+1 {
		t.Errorf("repository is %d bytes, want %d", len(pool.blob), len("hi")+1+len("there")+1)
	}
}

func TestScanComments(t *testing.T) {
	lex, _, _ := scanSource(t, "1 // line comment\n/* block\ncomment */ 2")
	if len(lex) != 2 {
		t.Fatalf("got %d lexemes, want 2", len(lex))
	}
	if lex[1].Line != 3 {
		t.Errorf("second lexeme on line %d, want 3", lex[1].Line)
	}
}

func TestScanOperatorsLongestMatch(t *testing.T) {
	lex, sym, _ := scanSource(t, "a <= b == c && d++")
	var ops []string
	for _, lx := range lex {
		if si := sym.Get(lx.Sym); si.SType == SymOperator || si.SType == SymAssignSOp {
			ops = append(ops, si.Name)
		}
	}
	want := []string{"<=", "==", "&&", "++"}
	if len(ops) != len(want) {
		t.Fatalf("operators %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("operator %d = %q, want %q", i, ops[i], want[i])
		}
	}
}

func TestScanErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated string", `"never closed`},
		{"unterminated block comment", "/* forever"},
		{"stray character", "a $ b"},
		{"unterminated char", "'x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sym := NewSymbolTable()
			seedSymbols(sym)
			if _, err := newScanner(tc.src, sym, newStringPool()).ScanAll(); err == nil {
				t.Errorf("scan %q succeeded, want error", tc.src)
			}
		})
	}
}
