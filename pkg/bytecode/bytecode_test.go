package bytecode

import "testing"

func TestArgs(t *testing.T) {
	cases := []struct {
		op   CodeCell
		want int
	}{
		{OpRet, 0},
		{OpMemRead, 1},
		{OpAddReg, 2},
		{OpNewArray, 3},
		{OpLineNum, 1},
		{999, -1},
	}
	for _, c := range cases {
		if got := Args(c.op); got != c.want {
			t.Errorf("Args(%s): expected %d, got %d", OpName(c.op), c.want, got)
		}
	}
}

func TestOpTableCoversContiguousRange(t *testing.T) {
	// Opcodes 1..OpNewUserObject are a dense range; a gap would mean a
	// mnemonic or operand count went missing.
	for op := CodeCell(1); op <= OpNewUserObject; op++ {
		if Args(op) < 0 {
			t.Errorf("opcode %d has no table entry", op)
		}
	}
}

func TestStringAt(t *testing.T) {
	m := &Module{Strings: []byte("hi\x00there\x00")}

	s, err := m.StringAt(0)
	if err != nil {
		t.Fatalf("StringAt(0): %v", err)
	}
	if s != "hi" {
		t.Errorf("StringAt(0): expected %q, got %q", "hi", s)
	}

	s, err = m.StringAt(3)
	if err != nil {
		t.Fatalf("StringAt(3): %v", err)
	}
	if s != "there" {
		t.Errorf("StringAt(3): expected %q, got %q", "there", s)
	}

	if _, err := m.StringAt(100); err == nil {
		t.Errorf("StringAt(100) succeeded, expected out-of-range error")
	}
}
