package compiler

import "scriptc/pkg/bytecode"

// Compile turns one source unit into a relocatable bytecode module. All
// diagnostics, including warnings for a successful run, are on the
// returned MessageHandler; the module is nil exactly when an error was
// recorded.
func Compile(section, source string) (*bytecode.Module, *MessageHandler) {
	msg := NewMessageHandler()
	c := newCompilation(section, msg)

	sc := newScanner(source, c.sym, c.pool)
	lex, err := sc.ScanAll()
	if err != nil {
		msg.AddMessage(SeverityError, section, sc.line, err.Error())
		return nil, msg
	}
	c.lex = lex

	if err := c.parseProgram(); err != nil {
		return nil, msg
	}

	exports, err := c.buildExports()
	if err != nil {
		return nil, msg
	}

	m := &bytecode.Module{
		Code:           c.em.code,
		Fixups:         c.em.fixups,
		Strings:        c.pool.blob,
		Imports:        c.imports,
		Exports:        exports,
		GlobalDataSize: alignUp(c.globalSize),
	}

	// a module that fails its own validity rules is a compiler bug, not
	// a script bug
	if err := bytecode.Validate(m); err != nil {
		c.internalError(0, "emitted an invalid module: %v", err)
		return nil, msg
	}
	return m, msg
}
