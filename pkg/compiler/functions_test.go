package compiler

import (
	"strings"
	"testing"

	"scriptc/pkg/bytecode"
)

func TestFunctionParamsAddressable(t *testing.T) {
	mod, _ := compileOK(t, `
		int add3(int a, int b, int c) {
			return a + b + c;
		}
	`)
	checkJumpTargets(t, mod)
	ops := mnemonics(t, mod)
	if countOps(ops, "load.sp.offs") != 3 {
		t.Errorf("%d parameter loads in %v, want 3", countOps(ops, "load.sp.offs"), ops)
	}
}

func TestVoidReturnValueRejected(t *testing.T) {
	e := compileErr(t, `
		void main() {
			return 3;
		}
	`)
	if !strings.Contains(e.Text, "void") {
		t.Errorf("error %q does not mention void", e.Text)
	}
}

func TestMissingReturnValueRejected(t *testing.T) {
	e := compileErr(t, `
		int answer() {
			return;
		}
	`)
	if !strings.Contains(e.Text, "must return a value") {
		t.Errorf("unexpected error %q", e.Text)
	}
}

func TestArgumentCountChecked(t *testing.T) {
	e := compileErr(t, `
		int twice(int a) {
			return a + a;
		}
		void main() {
			twice(1, 2);
		}
	`)
	if !strings.Contains(e.Text, "expects 1 argument(s), 2 given") {
		t.Errorf("unexpected error %q", e.Text)
	}
}

func TestArgumentTypeChecked(t *testing.T) {
	e := compileErr(t, `
		import void SetSpeed(float speed);
		void main() {
			SetSpeed(3);
		}
	`)
	if !strings.Contains(e.Text, "type mismatch") {
		t.Errorf("unexpected error %q", e.Text)
	}
}

func TestImportRedeclarationConfirms(t *testing.T) {
	mod, _ := compileOK(t, `
		import int GetTime(int real);
		import int GetTime(int real);
		void main() {
			GetTime(1);
		}
	`)
	if len(mod.Imports) != 1 || mod.Imports[0] != "GetTime" {
		t.Errorf("import table %v, want [GetTime]", mod.Imports)
	}
}

func TestImportMismatchRejected(t *testing.T) {
	e := compileErr(t, `
		import int GetTime(int real);
		import int GetTime(float real);
	`)
	if !strings.Contains(e.Text, "does not match") {
		t.Errorf("unexpected error %q", e.Text)
	}
}

func TestImportSupersededByDefinition(t *testing.T) {
	mod, _ := compileOK(t, `
		import int Area(int w);
		int Area(int w) {
			return w * w;
		}
		void main() {
			Area(4);
		}
	`)
	// the local body wins: the call must be a near call, not a farcall
	ops := mnemonics(t, mod)
	if countOps(ops, "farcall") != 0 {
		t.Errorf("call still goes through the import table: %v", ops)
	}
	if countOps(ops, "call") == 0 {
		t.Errorf("no near call in %v", ops)
	}

	exported := false
	for _, ex := range mod.Exports {
		if ex.Name == "Area" && ex.Type == bytecode.ExportFunction {
			exported = true
		}
	}
	if !exported {
		t.Errorf("defined function Area missing from the export table")
	}
}

func TestDoubleDefinitionRejected(t *testing.T) {
	e := compileErr(t, `
		int f() { return 1; }
		int f() { return 2; }
	`)
	if !strings.Contains(e.Text, "already defined") {
		t.Errorf("unexpected error %q", e.Text)
	}
}

func TestNoLoopCheckEmitsPrefix(t *testing.T) {
	mod, _ := compileOK(t, `
		noloopcheck void spin() {
			int i;
			while (i < 100000) {
				i = i + 1;
			}
		}
	`)
	ops := mnemonics(t, mod)
	if countOps(ops, "loopcheckoff") != 1 {
		t.Errorf("%d loopcheckoff in %v, want 1", countOps(ops, "loopcheckoff"), ops)
	}
	// the prefix must be the first real instruction of the body
	first := ops[0]
	if first == "sourceline" && len(ops) > 1 {
		first = ops[1]
	}
	if first != "loopcheckoff" {
		t.Errorf("function starts with %q, want loopcheckoff", first)
	}
}

func TestTooManyParameters(t *testing.T) {
	e := compileErr(t, `
		import void Big(int a1, int a2, int a3, int a4, int a5, int a6, int a7, int a8,
			int a9, int a10, int a11, int a12, int a13, int a14, int a15, int a16);
	`)
	if !strings.Contains(e.Text, "too many parameters") {
		t.Errorf("unexpected error %q", e.Text)
	}
}

func TestRecursionCompiles(t *testing.T) {
	mod, _ := compileOK(t, `
		int fact(int n) {
			if (n <= 1) {
				return 1;
			}
			return n * fact(n - 1);
		}
	`)
	checkJumpTargets(t, mod)
	var fnFixups int
	for _, fx := range mod.Fixups {
		if fx.Type == bytecode.FixupFunction {
			fnFixups++
			if mod.Code[fx.Loc] != 0 {
				t.Errorf("recursive call cell holds %d, want entry 0", mod.Code[fx.Loc])
			}
		}
	}
	if fnFixups != 1 {
		t.Errorf("%d function fixups, want 1", fnFixups)
	}
}

func TestStructByValueParameterRejected(t *testing.T) {
	e := compileErr(t, `
		struct Point {
			int x;
			int y;
		};
		void Move(Point p) {
			p.y = 2;
		}
	`)
	if !strings.Contains(e.Text, "cannot be passed by value") {
		t.Errorf("unexpected error %q", e.Text)
	}
}

func TestUndefinedCallReportedInDeclarationOrder(t *testing.T) {
	e := compileErr(t, `
		void First();
		void Second();
		void main() {
			Second();
			First();
		}
	`)
	if !strings.Contains(e.Text, "'First'") {
		t.Errorf("error %q, want the earliest declared missing function named", e.Text)
	}
	if !strings.Contains(e.Text, "never defined") {
		t.Errorf("unexpected error %q", e.Text)
	}
}
