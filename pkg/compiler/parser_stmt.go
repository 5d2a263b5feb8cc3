package compiler

import "scriptc/pkg/bytecode"

// parseStatement compiles one statement inside a function body.
func (c *compilation) parseStatement() error {
	lx := c.peek()
	c.em.lineNum(lx.Line)

	switch lx.Sym {
	case c.pre.lbrace:
		return c.parseBlock()
	case c.pre.kwIf:
		return c.parseIf()
	case c.pre.kwWhile:
		return c.parseWhile()
	case c.pre.kwDo:
		return c.parseDoWhile()
	case c.pre.kwFor:
		return c.parseFor()
	case c.pre.kwBreak:
		return c.parseBreak()
	case c.pre.kwContinue:
		return c.parseContinue()
	case c.pre.kwReturn:
		return c.parseReturn()
	case c.pre.semicolon:
		c.next()
		return nil
	}

	si := c.info(lx)
	if si == nil {
		return c.internalError(lx.Line, "lexeme references unknown symbol %d", int(lx.Sym))
	}

	// a qualifier or type starts a local declaration
	if _, isQual := c.pre.qualifiers[lx.Sym]; isQual || si.SType == SymVartype || si.SType == SymUndefinedStruct {
		return c.parseLocalDecl()
	}
	if si.SType == SymImport {
		return c.userError(lx.Line, "'%s' is only allowed at global scope, not on a local variable", si.Name)
	}

	switch si.SType {
	case SymFunction:
		c.next()
		if _, err := c.parseCall(lx); err != nil {
			return err
		}
		_, err := c.expect(c.pre.semicolon, "after the function call")
		return err
	case SymGlobalVar, SymLocalVar:
		return c.parseAssignment()
	case SymConstant:
		return c.constModError(lx)
	case SymNoType:
		return c.userError(lx.Line, "undeclared identifier '%s'", si.Name)
	}
	return c.userError(lx.Line, "unexpected %v '%s' at the start of a statement", si.SType, si.Name)
}

// constModError reports an attempted modification of a constant, naming
// the qualifier that forbids it.
func (c *compilation) constModError(lx Lexeme) error {
	name := c.sym.Name(lx.Sym)
	c.next()
	op := c.peek()
	opInfo := c.info(op)
	if opInfo != nil && (opInfo.SType == SymAssign || opInfo.SType == SymAssignMod || opInfo.SType == SymAssignSOp) {
		return c.userError(op.Line, "cannot apply '%s' to '%s': it is declared const", opInfo.Name, name)
	}
	return c.userError(lx.Line, "unexpected constant '%s' at the start of a statement", name)
}

// checkWritable rejects stores into targets whose qualifiers forbid them.
func (c *compilation) checkWritable(a access, opName string, line int) error {
	if a.attr != nil {
		if a.attr.TQ.Has(TQReadonly) {
			return c.userError(line, "cannot apply '%s' to '%s': the attribute is readonly", opName, a.name)
		}
		return nil
	}
	switch {
	case a.tq.Has(TQConst):
		return c.userError(line, "cannot apply '%s' to '%s': it is declared const", opName, a.name)
	case a.tq.Has(TQReadonly):
		return c.userError(line, "cannot apply '%s' to '%s': it is declared readonly", opName, a.name)
	case a.tq.Has(TQWriteprotected):
		return c.userError(line, "cannot apply '%s' to '%s': it is writeprotected", opName, a.name)
	}
	return nil
}

// dstType returns the value type an assignment to a must supply.
func dstType(a access) (Vartype, bool) {
	if a.attr != nil {
		return a.attr.Vartype, a.attr.IsPointer
	}
	return a.vartype, a.isPointer
}

// parseAssignment handles all three assignment kinds: plain, modifying
// ("+=" family) and single-operand ("++"/"--").
func (c *compilation) parseAssignment() error {
	a, err := c.parseAccess()
	if err != nil {
		return err
	}
	opLx := c.next()
	opInfo := c.info(opLx)
	if opInfo == nil {
		return c.internalError(opLx.Line, "lexeme references unknown symbol %d", int(opLx.Sym))
	}
	switch opInfo.SType {
	case SymAssign:
		if err := c.checkWritable(a, opInfo.Name, opLx.Line); err != nil {
			return err
		}
		v, err := c.parseExpression()
		if err != nil {
			return err
		}
		vt, ptr := dstType(a)
		if err := c.checkAssignable(opLx.Line, vt, ptr, v, "'"+a.name+"'"); err != nil {
			return err
		}
		if err := c.emitWrite(a); err != nil {
			return err
		}

	case SymAssignMod:
		if err := c.checkWritable(a, opInfo.Name, opLx.Line); err != nil {
			return err
		}
		// read-modify-write against the current value
		cur, err := c.emitRead(a)
		if err != nil {
			return err
		}
		c.pushReg(bytecode.RegAX)
		v, err := c.parseExpression()
		if err != nil {
			return err
		}
		c.popReg(bytecode.RegBX)
		fold, err := c.emitBinaryOp(opLx, cur, v)
		if err != nil {
			return err
		}
		vt, ptr := dstType(a)
		if err := c.checkAssignable(opLx.Line, vt, ptr, fold, "'"+a.name+"'"); err != nil {
			return err
		}
		if err := c.emitWrite(a); err != nil {
			return err
		}

	case SymAssignSOp:
		if err := c.checkWritable(a, opInfo.Name, opLx.Line); err != nil {
			return err
		}
		vt, ptr := dstType(a)
		if ptr || !isIntFamily(vt) {
			return c.userError(opLx.Line, "cannot apply '%s' to '%s' of type '%s'",
				opInfo.Name, a.name, c.types.Name(vt))
		}
		if _, err := c.emitRead(a); err != nil {
			return err
		}
		c.em.writeCmd(opInfo.OpcodeInt, bytecode.RegAX, 1)
		if err := c.emitWrite(a); err != nil {
			return err
		}

	default:
		return c.userError(opLx.Line, "expected an assignment operator after '%s', found '%s'",
			a.name, opInfo.Name)
	}

	_, err = c.expect(c.pre.semicolon, "after the assignment")
	return err
}

// parseBlock compiles "{ ... }" in its own scope, releasing the scope's
// locals and reporting the unused ones when it closes.
func (c *compilation) parseBlock() error {
	if _, err := c.expect(c.pre.lbrace, "to open the block"); err != nil {
		return err
	}
	c.sym.PushScope()
	spAtEntry := c.fn.curSP
	for c.peek().Sym != c.pre.rbrace {
		if c.atEnd() {
			return c.userError(c.peek().Line, "end of input inside a block; '}' missing")
		}
		if err := c.parseStatement(); err != nil {
			return err
		}
	}
	c.next() // consume '}'
	c.closeScope(spAtEntry)
	return nil
}

// closeScope frees the stack space of the innermost scope and warns about
// its unused locals.
func (c *compilation) closeScope(spAtEntry int32) {
	if freed := c.fn.curSP - spAtEntry; freed > 0 {
		c.em.writeCmd(bytecode.OpSub, bytecode.RegSP, freed)
		c.fn.curSP = spAtEntry
	}
	for _, sym := range c.sym.PopScope() {
		si := c.sym.Get(sym)
		if si.SType == SymLocalVar && !si.Flags.Has(FlagAccessed) {
			c.warn(si.DeclLine, "variable '%s' is declared but never used", si.Name)
		}
	}
}

func (c *compilation) parseIf() error {
	c.next() // if
	if _, err := c.expect(c.pre.lparen, "after 'if'"); err != nil {
		return err
	}
	if _, err := c.parseExpression(); err != nil {
		return err
	}
	if _, err := c.expect(c.pre.rparen, "to close the 'if' condition"); err != nil {
		return err
	}
	elsePatch := c.em.jumpSrc(bytecode.OpJZ)
	if err := c.parseStatement(); err != nil {
		return err
	}
	if c.peek().Sym == c.pre.kwElse {
		c.next()
		endPatch := c.em.jumpSrc(bytecode.OpJmp)
		c.em.patchJumpToHere(elsePatch)
		if err := c.parseStatement(); err != nil {
			return err
		}
		c.em.patchJumpToHere(endPatch)
	} else {
		c.em.patchJumpToHere(elsePatch)
	}
	return nil
}

func (c *compilation) pushLoop() {
	c.fn.loops = append(c.fn.loops, loopContext{spAtEntry: c.fn.curSP})
}

func (c *compilation) popLoop() loopContext {
	last := c.fn.loops[len(c.fn.loops)-1]
	c.fn.loops = c.fn.loops[:len(c.fn.loops)-1]
	return last
}

func (c *compilation) parseWhile() error {
	c.next() // while
	if _, err := c.expect(c.pre.lparen, "after 'while'"); err != nil {
		return err
	}
	condLoc := c.em.here()
	c.pushLoop()
	if _, err := c.parseExpression(); err != nil {
		return err
	}
	if _, err := c.expect(c.pre.rparen, "to close the 'while' condition"); err != nil {
		return err
	}
	endPatch := c.em.jumpSrc(bytecode.OpJZ)
	if err := c.parseStatement(); err != nil {
		return err
	}
	done := c.popLoop()
	// continue re-evaluates the condition
	for _, p := range done.continuePatches {
		c.em.code[p] = condLoc - (p + 1)
	}
	c.em.jumpTo(bytecode.OpJmp, condLoc)
	c.em.patchJumpToHere(endPatch)
	for _, p := range done.breakPatches {
		c.em.patchJumpToHere(p)
	}
	return nil
}

func (c *compilation) parseDoWhile() error {
	c.next() // do
	bodyLoc := c.em.here()
	c.pushLoop()
	if err := c.parseStatement(); err != nil {
		return err
	}
	condLoc := c.em.here()
	if _, err := c.expect(c.pre.kwWhile, "after the 'do' body"); err != nil {
		return err
	}
	if _, err := c.expect(c.pre.lparen, "after 'while'"); err != nil {
		return err
	}
	if _, err := c.parseExpression(); err != nil {
		return err
	}
	if _, err := c.expect(c.pre.rparen, "to close the 'while' condition"); err != nil {
		return err
	}
	if _, err := c.expect(c.pre.semicolon, "after the 'do'..'while' loop"); err != nil {
		return err
	}
	c.em.jumpTo(bytecode.OpJNZ, bodyLoc)
	done := c.popLoop()
	for _, p := range done.continuePatches {
		c.em.code[p] = condLoc - (p + 1)
	}
	for _, p := range done.breakPatches {
		c.em.patchJumpToHere(p)
	}
	return nil
}

// parseFor compiles "for (init; cond; post) body". The clauses are
// compiled in textual order; jump threading puts them in execution order:
//
//	init
//	cond:  ... JZ end; JMP body
//	post:  ... JMP cond
//	body:  ... JMP post
//	end:
func (c *compilation) parseFor() error {
	c.next() // for
	if _, err := c.expect(c.pre.lparen, "after 'for'"); err != nil {
		return err
	}
	c.sym.PushScope()
	spAtEntry := c.fn.curSP

	// init clause: declaration, assignment or empty
	if c.peek().Sym != c.pre.semicolon {
		initLx := c.peek()
		initInfo := c.info(initLx)
		_, isQual := c.pre.qualifiers[initLx.Sym]
		if isQual || (initInfo != nil && (initInfo.SType == SymVartype || initInfo.SType == SymUndefinedStruct)) {
			if err := c.parseLocalDecl(); err != nil {
				return err
			}
		} else {
			if err := c.parseAssignment(); err != nil {
				return err
			}
		}
	} else {
		c.next()
	}

	condLoc := c.em.here()
	c.pushLoop()
	if c.peek().Sym != c.pre.semicolon {
		if _, err := c.parseExpression(); err != nil {
			return err
		}
	} else {
		c.em.writeCmd(bytecode.OpLitToReg, bytecode.RegAX, 1)
	}
	if _, err := c.expect(c.pre.semicolon, "after the 'for' condition"); err != nil {
		return err
	}
	endPatch := c.em.jumpSrc(bytecode.OpJZ)
	bodyPatch := c.em.jumpSrc(bytecode.OpJmp)

	postLoc := c.em.here()
	if c.peek().Sym != c.pre.rparen {
		if err := c.parsePostClause(); err != nil {
			return err
		}
	}
	if _, err := c.expect(c.pre.rparen, "to close the 'for' header"); err != nil {
		return err
	}
	c.em.jumpTo(bytecode.OpJmp, condLoc)

	c.em.patchJumpToHere(bodyPatch)
	if err := c.parseStatement(); err != nil {
		return err
	}
	c.em.jumpTo(bytecode.OpJmp, postLoc)
	c.em.patchJumpToHere(endPatch)

	done := c.popLoop()
	for _, p := range done.continuePatches {
		c.em.code[p] = postLoc - (p + 1)
	}
	for _, p := range done.breakPatches {
		c.em.patchJumpToHere(p)
	}

	c.closeScope(spAtEntry)
	return nil
}

// parsePostClause is the update clause of a 'for' header: an assignment
// (any kind) or a call, without the trailing semicolon.
func (c *compilation) parsePostClause() error {
	lx := c.peek()
	si := c.info(lx)
	if si == nil {
		return c.internalError(lx.Line, "lexeme references unknown symbol %d", int(lx.Sym))
	}
	switch si.SType {
	case SymFunction:
		c.next()
		_, err := c.parseCall(lx)
		return err
	case SymGlobalVar, SymLocalVar:
		a, err := c.parseAccess()
		if err != nil {
			return err
		}
		opLx := c.next()
		opInfo := c.info(opLx)
		if opInfo == nil || opInfo.SType != SymAssignSOp {
			return c.userError(opLx.Line, "expected '++' or '--' in the 'for' update clause")
		}
		if err := c.checkWritable(a, opInfo.Name, opLx.Line); err != nil {
			return err
		}
		vt, ptr := dstType(a)
		if ptr || !isIntFamily(vt) {
			return c.userError(opLx.Line, "cannot apply '%s' to '%s' of type '%s'",
				opInfo.Name, a.name, c.types.Name(vt))
		}
		if _, err := c.emitRead(a); err != nil {
			return err
		}
		c.em.writeCmd(opInfo.OpcodeInt, bytecode.RegAX, 1)
		return c.emitWrite(a)
	}
	return c.userError(lx.Line, "expected an update clause in the 'for' header, found '%s'", si.Name)
}

func (c *compilation) parseBreak() error {
	lx := c.next()
	if _, err := c.expect(c.pre.semicolon, "after 'break'"); err != nil {
		return err
	}
	if len(c.fn.loops) == 0 {
		return c.userError(lx.Line, "'break' is only allowed inside a loop")
	}
	loop := &c.fn.loops[len(c.fn.loops)-1]
	if freed := c.fn.curSP - loop.spAtEntry; freed > 0 {
		c.em.writeCmd(bytecode.OpSub, bytecode.RegSP, freed)
	}
	loop.breakPatches = append(loop.breakPatches, c.em.jumpSrc(bytecode.OpJmp))
	return nil
}

func (c *compilation) parseContinue() error {
	lx := c.next()
	if _, err := c.expect(c.pre.semicolon, "after 'continue'"); err != nil {
		return err
	}
	if len(c.fn.loops) == 0 {
		return c.userError(lx.Line, "'continue' is only allowed inside a loop")
	}
	loop := &c.fn.loops[len(c.fn.loops)-1]
	if freed := c.fn.curSP - loop.spAtEntry; freed > 0 {
		c.em.writeCmd(bytecode.OpSub, bytecode.RegSP, freed)
	}
	loop.continuePatches = append(loop.continuePatches, c.em.jumpSrc(bytecode.OpJmp))
	return nil
}

func (c *compilation) parseReturn() error {
	lx := c.next()
	fnInfo := c.sym.Get(c.fn.sym)
	if c.peek().Sym != c.pre.semicolon {
		v, err := c.parseExpression()
		if err != nil {
			return err
		}
		if c.fn.retType == VTVoid {
			return c.userError(lx.Line, "function '%s' is void and cannot return a value", fnInfo.Name)
		}
		if err := c.checkAssignable(lx.Line, c.fn.retType, c.fn.retPtr, v,
			"the return value of '"+fnInfo.Name+"'"); err != nil {
			return err
		}
	} else {
		if c.fn.retType != VTVoid {
			return c.userError(lx.Line, "function '%s' must return a value of type '%s'",
				fnInfo.Name, c.types.Name(c.fn.retType))
		}
		c.em.writeCmd(bytecode.OpLitToReg, bytecode.RegAX, 0)
	}
	if _, err := c.expect(c.pre.semicolon, "after the return statement"); err != nil {
		return err
	}
	if c.fn.curSP > 0 {
		c.em.writeCmd(bytecode.OpSub, bytecode.RegSP, c.fn.curSP)
	}
	c.em.writeCmd(bytecode.OpRet)
	return nil
}
