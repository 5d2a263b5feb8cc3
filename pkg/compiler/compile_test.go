package compiler

import (
	"reflect"
	"strings"
	"testing"

	"scriptc/pkg/bytecode"
)

func compileOK(t *testing.T, src string) (*bytecode.Module, *MessageHandler) {
	t.Helper()
	mod, msgs := Compile("test", src)
	if mod == nil {
		t.Fatalf("compile failed: %+v", msgs.GetError())
	}
	return mod, msgs
}

func compileErr(t *testing.T, src string) Message {
	t.Helper()
	mod, msgs := Compile("test", src)
	if mod != nil {
		t.Fatalf("compile succeeded, want an error")
	}
	e := msgs.GetError()
	if e.Severity != SeverityError {
		t.Fatalf("no error recorded for failed compile")
	}
	return e
}

// mnemonics disassembles the module into its opcode names, skipping
// operand cells, so tests can assert on code shape.
func mnemonics(t *testing.T, mod *bytecode.Module) []string {
	t.Helper()
	var out []string
	for loc := 0; loc < len(mod.Code); {
		args := bytecode.Args(mod.Code[loc])
		if args < 0 {
			t.Fatalf("cell %d holds unknown opcode %d", loc, mod.Code[loc])
		}
		out = append(out, bytecode.OpName(mod.Code[loc]))
		loc += 1 + args
	}
	return out
}

func countOps(ops []string, name string) int {
	n := 0
	for _, op := range ops {
		if op == name {
			n++
		}
	}
	return n
}

func TestGlobalWriteEmitsFixup(t *testing.T) {
	mod, _ := compileOK(t, `
		int x;
		void main() {
			x = 5;
		}
	`)
	if mod.GlobalDataSize != 4 {
		t.Errorf("global data size %d, want 4", mod.GlobalDataSize)
	}
	var globalFixups int
	for _, fx := range mod.Fixups {
		if fx.Type == bytecode.FixupGlobalData {
			globalFixups++
			if mod.Code[fx.Loc] != 0 {
				t.Errorf("global fixup cell holds %d, want offset 0", mod.Code[fx.Loc])
			}
		}
	}
	if globalFixups != 1 {
		t.Errorf("%d globaldata fixups, want 1", globalFixups)
	}

	// x was never exported
	for _, ex := range mod.Exports {
		if ex.Name == "x" {
			t.Errorf("x appears in the export table")
		}
	}
}

func TestImportCallShape(t *testing.T) {
	mod, _ := compileOK(t, `
		import void Display(int value);
		void main() {
			Display(3);
		}
	`)
	if !reflect.DeepEqual(mod.Imports, []string{"Display"}) {
		t.Fatalf("import table %v", mod.Imports)
	}

	ops := mnemonics(t, mod)
	joined := strings.Join(ops, " ")
	for _, want := range []string{"farpush", "farcall", "farsubsp"} {
		if !strings.Contains(joined, want) {
			t.Errorf("code %v lacks %s", ops, want)
		}
	}

	var importFixups int
	for _, fx := range mod.Fixups {
		if fx.Type == bytecode.FixupImport {
			importFixups++
			if mod.Code[fx.Loc] != 0 {
				t.Errorf("import fixup cell holds slot %d, want 0", mod.Code[fx.Loc])
			}
		}
	}
	if importFixups != 1 {
		t.Errorf("%d import fixups, want 1", importFixups)
	}
}

func TestNearCallForwardPatched(t *testing.T) {
	mod, _ := compileOK(t, `
		int twice(int a);
		void main() {
			twice(2);
		}
		int twice(int a) {
			return a + a;
		}
	`)
	var fnFixups []bytecode.Fixup
	for _, fx := range mod.Fixups {
		if fx.Type == bytecode.FixupFunction {
			fnFixups = append(fnFixups, fx)
		}
	}
	if len(fnFixups) != 1 {
		t.Fatalf("%d function fixups, want 1", len(fnFixups))
	}

	var twiceEntry bytecode.CodeLoc = -1
	for _, ex := range mod.Exports {
		if ex.Name == "twice" {
			twiceEntry = ex.Loc
			if ex.NumArgs != 1 {
				t.Errorf("twice exported with %d args, want 1", ex.NumArgs)
			}
		}
	}
	if twiceEntry < 0 {
		t.Fatal("twice missing from the export table")
	}
	if mod.Code[fnFixups[0].Loc] != twiceEntry {
		t.Errorf("call operand %d, want patched entry %d", mod.Code[fnFixups[0].Loc], twiceEntry)
	}
}

func TestConstIncrementFails(t *testing.T) {
	e := compileErr(t, `
		const int LIMIT = 10;
		void main() {
			LIMIT++;
		}
	`)
	if !strings.Contains(e.Text, "const") {
		t.Errorf("error %q does not mention const", e.Text)
	}
	if e.Line != 4 {
		t.Errorf("error on line %d, want 4", e.Line)
	}
}

func TestIncompleteStructAccessNamesStruct(t *testing.T) {
	e := compileErr(t, `
		struct Weapon;
		void main() {
			Weapon *w;
			w.damage = 3;
		}
	`)
	if !strings.Contains(e.Text, "Weapon") {
		t.Errorf("error %q does not name the struct", e.Text)
	}
}

func TestUnusedLocalWarnsOnce(t *testing.T) {
	mod, msgs := Compile("test", `
		void main() {
			int unused;
			int used;
			used = 2;
			used = used + 1;
		}
	`)
	if mod == nil {
		t.Fatalf("compile failed: %+v", msgs.GetError())
	}
	if e := msgs.GetError(); e.Severity != SeverityNone {
		t.Fatalf("GetError returned %+v, want the no-error sentinel", e)
	}
	var warnings []Message
	for _, m := range msgs.GetMessages() {
		if m.Severity == SeverityWarning {
			warnings = append(warnings, m)
		}
	}
	if len(warnings) != 1 {
		t.Fatalf("%d warnings, want exactly 1: %+v", len(warnings), warnings)
	}
	if !strings.Contains(warnings[0].Text, "unused") {
		t.Errorf("warning %q does not name the variable", warnings[0].Text)
	}
}

func TestStringRepositoryDeduplicates(t *testing.T) {
	mod, _ := compileOK(t, `
		import void Say(string msg);
		void main() {
			Say("hi");
			Say("hi");
		}
	`)
	if want := len("hi") + 1; len(mod.Strings) != want {
		t.Fatalf("repository is %d bytes, want %d", len(mod.Strings), want)
	}
	var stringCells []bytecode.CodeCell
	for _, fx := range mod.Fixups {
		if fx.Type == bytecode.FixupString {
			stringCells = append(stringCells, mod.Code[fx.Loc])
		}
	}
	if len(stringCells) != 2 {
		t.Fatalf("%d string fixups, want 2", len(stringCells))
	}
	if stringCells[0] != stringCells[1] {
		t.Errorf("references %v point at different copies", stringCells)
	}
	s, err := mod.StringAt(stringCells[0])
	if err != nil || s != "hi" {
		t.Errorf("StringAt(%d) = %q, %v", stringCells[0], s, err)
	}
}

func TestDeterministicOutput(t *testing.T) {
	src := `
		int counter;
		export counter;
		struct Point {
			int x;
			int y;
		};
		Point origin;
		float scale(float f) {
			return f * 2.0;
		}
		void main() {
			counter = counter + 1;
			origin.x = 3;
		}
	`
	first, msgs := Compile("test", src)
	if first == nil {
		t.Fatalf("compile failed: %+v", msgs.GetError())
	}
	second, _ := Compile("test", src)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two compiles of identical source differ")
	}
}

func TestResolveAgainstBases(t *testing.T) {
	mod, _ := compileOK(t, `
		int x;
		import void Ping();
		void main() {
			x = 1;
			Ping();
		}
	`)
	resolved := &bytecode.Module{
		Code:           append([]bytecode.CodeCell(nil), mod.Code...),
		Fixups:         mod.Fixups,
		Strings:        mod.Strings,
		Imports:        mod.Imports,
		Exports:        mod.Exports,
		GlobalDataSize: mod.GlobalDataSize,
	}
	bases := bytecode.Bases{
		Code:    100,
		Globals: 2000,
		Strings: 3000,
		Imports: map[string]int32{"Ping": 777},
	}
	if err := bytecode.Resolve(resolved, bases); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, fx := range mod.Fixups {
		switch fx.Type {
		case bytecode.FixupGlobalData:
			if resolved.Code[fx.Loc] != mod.Code[fx.Loc]+2000 {
				t.Errorf("global cell %d resolved to %d", fx.Loc, resolved.Code[fx.Loc])
			}
		case bytecode.FixupImport:
			if resolved.Code[fx.Loc] != 777 {
				t.Errorf("import cell %d resolved to %d, want 777", fx.Loc, resolved.Code[fx.Loc])
			}
		}
	}
}

func TestLineNumbersMarked(t *testing.T) {
	mod, _ := compileOK(t, `
		void main() {
			int a;
			a = 1;
			a = a + 1;
		}
	`)
	ops := mnemonics(t, mod)
	if countOps(ops, "sourceline") < 3 {
		t.Errorf("only %d linenum markers in %v", countOps(ops, "sourceline"), ops)
	}
}

func TestValidateAcceptsOutput(t *testing.T) {
	mod, _ := compileOK(t, `
		managed struct Critter {
			int health;
		};
		import void Log(string msg, int n);
		int hurt(Critter *c, int by) {
			if (c == null) {
				return 0;
			}
			c.health = c.health - by;
			Log("hurt", c.health);
			return c.health;
		}
	`)
	if err := bytecode.Validate(mod); err != nil {
		t.Errorf("emitted module fails validation: %v", err)
	}
}
