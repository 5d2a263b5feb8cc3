package compiler

import (
	"strings"
	"testing"
)

func TestConstAssignmentRejected(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"plain assign", `
			const int MAX = 5;
			void main() { MAX = 6; }
		`},
		{"compound assign", `
			const int MAX = 5;
			void main() { MAX += 1; }
		`},
		{"decrement", `
			const int MAX = 5;
			void main() { MAX--; }
		`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := compileErr(t, tc.src)
			if !strings.Contains(e.Text, "const") {
				t.Errorf("error %q does not mention const", e.Text)
			}
		})
	}
}

func TestConstFoldsLiteral(t *testing.T) {
	mod, _ := compileOK(t, `
		const int LIMIT = 42;
		int get() {
			return LIMIT;
		}
	`)
	// a constant is inlined, so no global data and no data fixups
	if mod.GlobalDataSize != 0 {
		t.Errorf("global data size %d, want 0", mod.GlobalDataSize)
	}
	if len(mod.Fixups) != 0 {
		t.Errorf("constants produced fixups: %+v", mod.Fixups)
	}
	found := false
	for _, cell := range mod.Code {
		if cell == 42 {
			found = true
		}
	}
	if !found {
		t.Errorf("folded value 42 not present in the code")
	}
}

func TestNegativeConst(t *testing.T) {
	mod, _ := compileOK(t, `
		const int FLOOR = -8;
		int get() {
			return FLOOR;
		}
	`)
	found := false
	for _, cell := range mod.Code {
		if cell == -8 {
			found = true
		}
	}
	if !found {
		t.Errorf("folded value -8 not present in the code")
	}
}

func TestReadonlyLocal(t *testing.T) {
	e := compileErr(t, `
		void main() {
			readonly int r = 3;
			r = 4;
		}
	`)
	if !strings.Contains(e.Text, "readonly") {
		t.Errorf("error %q does not mention readonly", e.Text)
	}
}

func TestReadonlyNeedsInitializer(t *testing.T) {
	e := compileErr(t, `
		void main() {
			readonly int r;
		}
	`)
	if !strings.Contains(e.Text, "must be initialized") {
		t.Errorf("unexpected error %q", e.Text)
	}
}

func TestWriteprotectedGlobal(t *testing.T) {
	e := compileErr(t, `
		writeprotected int health;
		void main() {
			health = 10;
		}
	`)
	if !strings.Contains(e.Text, "writeprotected") {
		t.Errorf("error %q does not mention writeprotected", e.Text)
	}
}

func TestConstWriteprotectedConflict(t *testing.T) {
	e := compileErr(t, `
		const writeprotected int x = 1;
	`)
	if !strings.Contains(e.Text, "cannot be combined") {
		t.Errorf("unexpected error %q", e.Text)
	}
}

func TestProtectedFunctionNotExported(t *testing.T) {
	mod, _ := compileOK(t, `
		protected int secret() {
			return 1;
		}
		int peek() {
			return secret();
		}
	`)
	for _, ex := range mod.Exports {
		if ex.Name == "secret" {
			t.Errorf("protected function appears in the export table")
		}
	}
}

func TestQualifierOnLocalRejected(t *testing.T) {
	e := compileErr(t, `
		void main() {
			managed int x;
		}
	`)
	if !strings.Contains(e.Text, "cannot be applied to a local variable") {
		t.Errorf("unexpected error %q", e.Text)
	}
}
