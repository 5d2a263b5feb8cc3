package compiler

import (
	"fmt"

	"scriptc/pkg/bytecode"
)

// compilation is the per-unit context threaded through every stage. Two
// units never share one; that is what makes parallel compilation of
// independent scripts safe.
type compilation struct {
	section string
	msg     *MessageHandler
	sym     *SymbolTable
	types   *TypeRegistry
	pool    *stringPool
	em      *emitter
	pre     predefs

	lex []Lexeme
	pos int

	imports   []string
	importIdx map[string]int32

	globalSize int32

	// call sites of functions whose bodies have not been emitted yet:
	// operand cell locations awaiting the entry point.
	forwardCalls map[Symbol][]bytecode.CodeLoc

	fn funcContext
}

// funcContext is the state of the function body currently being compiled.
type funcContext struct {
	sym     Symbol // NoSymbol outside any function
	retType Vartype
	retPtr  bool
	curSP   int32 // bytes pushed onto the frame since entry
	loops   []loopContext
}

type loopContext struct {
	spAtEntry       int32
	breakPatches    []bytecode.CodeLoc
	continuePatches []bytecode.CodeLoc
}

func newCompilation(section string, msg *MessageHandler) *compilation {
	sym := NewSymbolTable()
	c := &compilation{
		section:      section,
		msg:          msg,
		sym:          sym,
		types:        NewTypeRegistry(),
		pool:         newStringPool(),
		em:           newEmitter(),
		pre:          seedSymbols(sym),
		importIdx:    make(map[string]int32),
		forwardCalls: make(map[Symbol][]bytecode.CodeLoc),
	}
	c.fn.sym = NoSymbol
	return c
}

// userError records a source-level problem and returns it. The first user
// error aborts the unit.
func (c *compilation) userError(line int, format string, a ...any) error {
	text := fmt.Sprintf(format, a...)
	c.msg.AddMessage(SeverityError, c.section, line, text)
	return fmt.Errorf("%s:%d: %s", c.section, line, text)
}

// internalError records a broken compiler invariant. Distinct from a user
// error so tooling can tell a bad script from a bad compiler.
func (c *compilation) internalError(line int, format string, a ...any) error {
	text := "internal compiler error: " + fmt.Sprintf(format, a...)
	c.msg.AddMessage(SeverityError, c.section, line, text)
	return fmt.Errorf("%s:%d: %s", c.section, line, text)
}

func (c *compilation) warn(line int, format string, a ...any) {
	c.msg.AddMessage(SeverityWarning, c.section, line, fmt.Sprintf(format, a...))
}

// peek returns the current lexeme without consuming it; at end of input it
// returns the end-of-input sentinel.
func (c *compilation) peek() Lexeme {
	if c.pos >= len(c.lex) {
		line := 0
		if n := len(c.lex); n > 0 {
			line = c.lex[n-1].Line
		}
		return Lexeme{Sym: c.pre.eof, Line: line}
	}
	return c.lex[c.pos]
}

func (c *compilation) peekAt(offset int) Lexeme {
	if c.pos+offset >= len(c.lex) {
		return Lexeme{Sym: c.pre.eof, Line: c.peek().Line}
	}
	return c.lex[c.pos+offset]
}

func (c *compilation) atEnd() bool {
	return c.pos >= len(c.lex)
}

// next consumes and returns the current lexeme.
func (c *compilation) next() Lexeme {
	lx := c.peek()
	if c.pos < len(c.lex) {
		c.pos++
	}
	return lx
}

// info is a shorthand for the symbol table entry of a lexeme's symbol.
func (c *compilation) info(lx Lexeme) *SymbolInfo {
	return c.sym.Get(lx.Sym)
}

// expect consumes the current lexeme if it is exactly want, otherwise
// reports a user error.
func (c *compilation) expect(want Symbol, context string) (Lexeme, error) {
	lx := c.next()
	if lx.Sym != want {
		return lx, c.userError(lx.Line, "expected '%s' %s, found '%s'",
			c.sym.Name(want), context, c.sym.Name(lx.Sym))
	}
	return lx, nil
}

// importSlot returns the import table slot for name, appending a new entry
// on first use.
func (c *compilation) importSlot(name string) int32 {
	if idx, ok := c.importIdx[name]; ok {
		return idx
	}
	idx := int32(len(c.imports))
	c.imports = append(c.imports, name)
	c.importIdx[name] = idx
	return idx
}

// isIntFamily reports whether vt is one of the integer types, which mix
// freely in arithmetic.
func isIntFamily(vt Vartype) bool {
	switch vt {
	case VTInt, VTChar, VTShort, VTLong:
		return true
	}
	return false
}

// vartypeSize returns the in-memory size of a variable of the given type,
// with pointers always cell-sized.
func (c *compilation) vartypeSize(vt Vartype, isPointer bool) (int32, error) {
	if isPointer {
		return bytecode.SizeOfDynPointer, nil
	}
	return c.types.SizeOf(vt)
}
