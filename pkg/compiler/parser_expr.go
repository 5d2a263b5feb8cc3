package compiler

import (
	"fmt"

	"scriptc/pkg/bytecode"
)

// exprValue describes what an evaluated expression left in AX.
type exprValue struct {
	vartype   Vartype
	isPointer bool
	isNull    bool
	line      int
}

// accessStep is one link of a member chain after the root variable: either
// a plain offset into the enclosing struct, or a managed-pointer
// dereference followed by an offset.
type accessStep struct {
	deref  bool
	offset int32
}

// access describes a resolved variable reference (root variable plus
// member chain) without emitting any code yet, so the same resolution
// serves both reads and writes.
type access struct {
	rootSym   Symbol
	rootScope ScopeType
	rootOff   int32
	steps     []accessStep
	vartype   Vartype
	isPointer bool
	tq        TypeQualifierSet // effective writeability qualifiers
	attr      *Member          // set when the terminal member is an attribute
	attrOwner Vartype
	name      string // dotted path for diagnostics
	line      int
}

// push/pop helpers keep curSP honest so local addressing stays correct
// while expression temporaries are on the stack.

func (c *compilation) pushReg(reg bytecode.CodeCell) {
	c.em.writeCmd(bytecode.OpPushReg, reg)
	c.fn.curSP += bytecode.SizeOfStackCell
}

func (c *compilation) popReg(reg bytecode.CodeCell) {
	c.em.writeCmd(bytecode.OpPopReg, reg)
	c.fn.curSP -= bytecode.SizeOfStackCell
}

// parseExpression evaluates one expression; the result ends up in AX.
func (c *compilation) parseExpression() (exprValue, error) {
	return c.parseBinary(1)
}

// parseBinary is precedence-climbing over the operator symbols' Prec
// field. Both operands of a binary operator are evaluated; the left is
// parked on the stack while the right is computed.
func (c *compilation) parseBinary(minPrec int) (exprValue, error) {
	left, err := c.parseUnary()
	if err != nil {
		return exprValue{}, err
	}
	for {
		lx := c.peek()
		si := c.info(lx)
		if si == nil || si.SType != SymOperator || si.Prec < minPrec || si.Prec == 0 {
			return left, nil
		}
		c.next()
		c.pushReg(bytecode.RegAX)
		right, err := c.parseBinary(si.Prec + 1)
		if err != nil {
			return exprValue{}, err
		}
		c.popReg(bytecode.RegBX)
		left, err = c.emitBinaryOp(lx, left, right)
		if err != nil {
			return exprValue{}, err
		}
	}
}

// emitBinaryOp type-checks the operands (left in BX, right in AX), emits
// the operation and a move of the result back to AX.
func (c *compilation) emitBinaryOp(opLx Lexeme, left, right exprValue) (exprValue, error) {
	si := c.info(opLx)
	opName := c.sym.Name(opLx.Sym)
	isCompare := si.Prec == precEquality || si.Prec == precRelational

	var op bytecode.CodeCell
	switch {
	case left.vartype == VTString && right.vartype == VTString:
		if si.Prec != precEquality {
			return exprValue{}, c.userError(opLx.Line, "operator '%s' cannot be applied to strings", opName)
		}
		op = bytecode.OpStringsEqual
		if si.OpcodeInt == bytecode.OpNotEqual {
			op = bytecode.OpStringsNotEq
		}
	case left.isPointer || right.isPointer || left.isNull || right.isNull:
		if si.Prec != precEquality {
			return exprValue{}, c.userError(opLx.Line, "operator '%s' cannot be applied to managed pointers", opName)
		}
		if !c.pointerComparable(left, right) {
			return exprValue{}, c.userError(opLx.Line, "type mismatch: cannot compare '%s' with '%s'",
				c.exprTypeName(left), c.exprTypeName(right))
		}
		op = si.OpcodeInt
	case left.vartype == VTFloat || right.vartype == VTFloat:
		if left.vartype != VTFloat || right.vartype != VTFloat {
			return exprValue{}, c.userError(opLx.Line, "type mismatch: cannot mix 'float' and '%s' with operator '%s'",
				c.exprTypeName(pickNonFloat(left, right)), opName)
		}
		if si.OpcodeFloat == 0 {
			return exprValue{}, c.userError(opLx.Line, "operator '%s' cannot be applied to 'float' operands", opName)
		}
		op = si.OpcodeFloat
	case isIntFamily(left.vartype) && isIntFamily(right.vartype):
		op = si.OpcodeInt
	default:
		return exprValue{}, c.userError(opLx.Line, "type mismatch: operator '%s' cannot combine '%s' and '%s'",
			opName, c.exprTypeName(left), c.exprTypeName(right))
	}

	c.em.writeCmd(op, bytecode.RegBX, bytecode.RegAX)
	c.em.writeCmd(bytecode.OpRegToReg, bytecode.RegBX, bytecode.RegAX)

	out := exprValue{vartype: VTInt, line: opLx.Line}
	if !isCompare && si.Prec != precLogicalAnd && si.Prec != precLogicalOr {
		if left.vartype == VTFloat {
			out.vartype = VTFloat
		}
	}
	return out, nil
}

func pickNonFloat(a, b exprValue) exprValue {
	if a.vartype != VTFloat {
		return a
	}
	return b
}

func (c *compilation) pointerComparable(a, b exprValue) bool {
	if a.isNull || b.isNull {
		return a.isPointer || a.isNull || b.isPointer || b.isNull
	}
	return a.isPointer && b.isPointer && a.vartype == b.vartype
}

// exprTypeName renders an expression's type for diagnostics.
func (c *compilation) exprTypeName(v exprValue) string {
	if v.isNull {
		return "null"
	}
	name := c.types.Name(v.vartype)
	if v.isPointer {
		return name + "*"
	}
	return name
}

func (c *compilation) parseUnary() (exprValue, error) {
	lx := c.peek()
	switch lx.Sym {
	case c.pre.minus:
		c.next()
		v, err := c.parseUnary()
		if err != nil {
			return exprValue{}, err
		}
		if v.vartype == VTFloat {
			c.em.writeCmd(bytecode.OpLitToReg, bytecode.RegBX, 0)
			c.em.writeCmd(bytecode.OpFSubReg, bytecode.RegBX, bytecode.RegAX)
		} else if isIntFamily(v.vartype) && !v.isPointer {
			c.em.writeCmd(bytecode.OpLitToReg, bytecode.RegBX, 0)
			c.em.writeCmd(bytecode.OpSubReg, bytecode.RegBX, bytecode.RegAX)
		} else {
			return exprValue{}, c.userError(lx.Line, "cannot negate a value of type '%s'", c.exprTypeName(v))
		}
		c.em.writeCmd(bytecode.OpRegToReg, bytecode.RegBX, bytecode.RegAX)
		return v, nil

	case c.pre.not:
		c.next()
		v, err := c.parseUnary()
		if err != nil {
			return exprValue{}, err
		}
		if !isIntFamily(v.vartype) || v.isPointer {
			return exprValue{}, c.userError(lx.Line, "operator '!' requires an integer operand, not '%s'", c.exprTypeName(v))
		}
		c.em.writeCmd(bytecode.OpNotReg, bytecode.RegAX)
		return exprValue{vartype: VTInt, line: lx.Line}, nil

	case c.pre.tilde:
		c.next()
		v, err := c.parseUnary()
		if err != nil {
			return exprValue{}, err
		}
		if !isIntFamily(v.vartype) || v.isPointer {
			return exprValue{}, c.userError(lx.Line, "operator '~' requires an integer operand, not '%s'", c.exprTypeName(v))
		}
		c.em.writeCmd(bytecode.OpLitToReg, bytecode.RegBX, -1)
		c.em.writeCmd(bytecode.OpXorReg, bytecode.RegAX, bytecode.RegBX)
		return exprValue{vartype: VTInt, line: lx.Line}, nil

	case c.pre.kwNew:
		return c.parseNew()
	}
	return c.parsePrimary()
}

// parseNew handles "new Type" for managed structs.
func (c *compilation) parseNew() (exprValue, error) {
	kw := c.next() // new
	lx := c.next()
	si := c.info(lx)
	if si == nil || si.SType != SymVartype {
		return exprValue{}, c.userError(lx.Line, "expected a type after 'new', found '%s'", c.sym.Name(lx.Sym))
	}
	vt := si.Vartype
	vi := c.types.Get(vt)
	if vi == nil || !vi.IsStruct() || !vi.IsManaged() {
		return exprValue{}, c.userError(lx.Line, "'new' requires a managed struct type, and '%s' is not one", c.types.Name(vt))
	}
	if vi.Flags.Has(FlagStructBuiltin) {
		return exprValue{}, c.userError(lx.Line, "built-in type '%s' cannot be instantiated with 'new'", vi.Name)
	}
	if !vi.Complete {
		return exprValue{}, c.userError(lx.Line, "struct '%s' is only forward-declared here and cannot be instantiated", vi.Name)
	}
	c.em.writeCmd(bytecode.OpNewUserObject, bytecode.RegAX, bytecode.CodeCell(vi.Size))
	return exprValue{vartype: vt, isPointer: true, line: kw.Line}, nil
}

func (c *compilation) parsePrimary() (exprValue, error) {
	lx := c.peek()
	si := c.info(lx)
	if si == nil {
		return exprValue{}, c.internalError(lx.Line, "lexeme references unknown symbol %d", int(lx.Sym))
	}

	if lx.Sym == c.pre.lparen {
		c.next()
		v, err := c.parseExpression()
		if err != nil {
			return exprValue{}, err
		}
		if _, err := c.expect(c.pre.rparen, "to close the parenthesized expression"); err != nil {
			return exprValue{}, err
		}
		return v, nil
	}

	switch si.SType {
	case SymNoType:
		return exprValue{}, c.userError(lx.Line, "undeclared identifier '%s'", si.Name)

	case SymLiteralInt:
		c.next()
		c.em.writeCmd(bytecode.OpLitToReg, bytecode.RegAX, si.Value)
		return exprValue{vartype: VTInt, line: lx.Line}, nil

	case SymLiteralFloat:
		c.next()
		c.em.writeCmd(bytecode.OpLitToReg, bytecode.RegAX, si.Value)
		return exprValue{vartype: VTFloat, line: lx.Line}, nil

	case SymLiteralString:
		c.next()
		c.em.writeCell(bytecode.OpLitToReg)
		c.em.writeCell(bytecode.RegAX)
		if err := c.em.writeFixedUp(si.SOffset, bytecode.FixupString); err != nil {
			return exprValue{}, c.internalError(lx.Line, "%v", err)
		}
		return exprValue{vartype: VTString, line: lx.Line}, nil

	case SymConstant:
		c.next()
		c.em.writeCmd(bytecode.OpLitToReg, bytecode.RegAX, si.Value)
		return exprValue{vartype: si.Vartype, isPointer: si.IsPointer, isNull: lx.Sym == c.pre.kwNull, line: lx.Line}, nil

	case SymFunction:
		c.next()
		return c.parseCall(lx)

	case SymGlobalVar, SymLocalVar:
		a, err := c.parseAccess()
		if err != nil {
			return exprValue{}, err
		}
		return c.emitRead(a)
	}

	return exprValue{}, c.userError(lx.Line, "cannot use %v '%s' in an expression", si.SType, si.Name)
}

// parseAccess consumes a variable and any trailing member chain, resolving
// it against the owning structs' completed layouts.
func (c *compilation) parseAccess() (access, error) {
	lx := c.next()
	si := c.info(lx)
	a := access{
		rootSym:   lx.Sym,
		rootScope: si.Scope,
		rootOff:   si.SOffset,
		vartype:   si.Vartype,
		isPointer: si.IsPointer,
		tq:        si.TQ,
		name:      si.Name,
		line:      lx.Line,
	}

	for c.peek().Sym == c.pre.dot {
		if a.attr != nil {
			return access{}, c.userError(a.line, "cannot access members of attribute '%s'", a.name)
		}
		c.next()
		memberLx := c.next()
		memberName := c.sym.Name(memberLx.Sym)

		vi := c.types.Get(a.vartype)
		if vi == nil || !vi.IsStruct() {
			return access{}, c.userError(memberLx.Line, "'%s' is of type '%s', which has no members",
				a.name, c.types.Name(a.vartype))
		}
		if !vi.Complete {
			return access{}, c.userError(memberLx.Line,
				"cannot access '%s.%s': struct '%s' is only forward-declared at this point",
				a.name, memberName, vi.Name)
		}
		m, ok := vi.FindMember(memberName)
		if !ok {
			return access{}, c.userError(memberLx.Line, "'%s' is not a member of struct '%s'", memberName, vi.Name)
		}

		if m.TQ.Has(TQAttribute) {
			if !a.isPointer {
				return access{}, c.userError(memberLx.Line,
					"attribute '%s.%s' can only be accessed through a managed pointer", vi.Name, memberName)
			}
			attr := m
			a.attr = &attr
			a.attrOwner = a.vartype
			a.name += "." + memberName
			continue
		}

		if a.isPointer {
			a.steps = append(a.steps, accessStep{deref: true, offset: m.Offset})
		} else if n := len(a.steps); n > 0 {
			a.steps[n-1].offset += m.Offset
		} else {
			a.steps = append(a.steps, accessStep{offset: m.Offset})
		}
		a.vartype = m.Vartype
		a.isPointer = m.IsPointer
		a.tq |= m.TQ
		a.name += "." + memberName
	}
	if len(a.steps) > 0 || a.attr != nil {
		// reaching a member consumes the root's value even on a write
		c.sym.Get(a.rootSym).Flags.Set(FlagAccessed)
	}
	return a, nil
}

// emitAddress sets MAR to the address of a (which must not be an
// attribute). It leaves AX untouched so a value to store can ride along.
func (c *compilation) emitAddress(a access) error {
	steps := a.steps
	switch a.rootScope {
	case ScopeGlobal:
		off := a.rootOff
		if len(steps) > 0 && !steps[0].deref {
			off += steps[0].offset
			steps = steps[1:]
		}
		c.em.writeCell(bytecode.OpLitToReg)
		c.em.writeCell(bytecode.RegMAR)
		if err := c.em.writeFixedUp(off, bytecode.FixupGlobalData); err != nil {
			return c.internalError(a.line, "%v", err)
		}
	case ScopeLocal:
		off := a.rootOff
		if len(steps) > 0 && !steps[0].deref {
			off += steps[0].offset
			steps = steps[1:]
		}
		c.em.writeCmd(bytecode.OpLoadSPOffs, c.fn.curSP-off)
	case ScopeImport:
		c.em.writeCell(bytecode.OpLitToReg)
		c.em.writeCell(bytecode.RegMAR)
		if err := c.em.writeFixedUp(a.rootOff, bytecode.FixupImport); err != nil {
			return c.internalError(a.line, "%v", err)
		}
	default:
		return c.internalError(a.line, "variable '%s' has no addressable scope (%v)", a.name, a.rootScope)
	}

	for _, st := range steps {
		if st.deref {
			c.em.writeCmd(bytecode.OpMemReadPtr, bytecode.RegMAR)
			c.em.writeCmd(bytecode.OpCheckNull)
		}
		if st.offset != 0 {
			c.em.writeCmd(bytecode.OpAdd, bytecode.RegMAR, st.offset)
		}
	}
	return nil
}

// emitRead loads the value of a into AX and marks the root symbol as
// accessed.
func (c *compilation) emitRead(a access) (exprValue, error) {
	root := c.sym.Get(a.rootSym)
	root.Flags.Set(FlagAccessed)

	if a.attr != nil {
		return c.emitAttributeRead(a)
	}
	if err := c.emitAddress(a); err != nil {
		return exprValue{}, err
	}
	switch {
	case a.isPointer:
		c.em.writeCmd(bytecode.OpMemReadPtr, bytecode.RegAX)
	case a.vartype == VTChar:
		c.em.writeCmd(bytecode.OpMemReadB, bytecode.RegAX)
	case a.vartype == VTShort:
		c.em.writeCmd(bytecode.OpMemReadW, bytecode.RegAX)
	default:
		c.em.writeCmd(bytecode.OpMemRead, bytecode.RegAX)
	}
	return exprValue{vartype: a.vartype, isPointer: a.isPointer, line: a.line}, nil
}

// emitWrite stores AX into a. The caller has already checked writeability
// and type compatibility.
func (c *compilation) emitWrite(a access) error {
	if a.attr != nil {
		return c.emitAttributeWrite(a)
	}
	if err := c.emitAddress(a); err != nil {
		return err
	}
	switch {
	case a.isPointer:
		c.em.writeCmd(bytecode.OpMemWritePtr, bytecode.RegAX)
	case a.vartype == VTChar:
		c.em.writeCmd(bytecode.OpMemWriteB, bytecode.RegAX)
	case a.vartype == VTShort:
		c.em.writeCmd(bytecode.OpMemWriteW, bytecode.RegAX)
	default:
		c.em.writeCmd(bytecode.OpMemWrite, bytecode.RegAX)
	}
	return nil
}

// Attributes have no storage; they resolve to accessor imports bound at
// load time, called with the owning object in OP.

func (c *compilation) attrAccessorSlot(owner Vartype, m *Member, setter bool) int32 {
	kind := "get_"
	if setter {
		kind = "set_"
	}
	return c.importSlot(c.types.Name(owner) + "::" + kind + m.Name)
}

func (c *compilation) emitAttributeRead(a access) (exprValue, error) {
	// object pointer value into AX
	obj := a
	obj.attr = nil
	obj.vartype = a.attrOwner
	obj.isPointer = true
	if _, err := c.emitRead(obj); err != nil {
		return exprValue{}, err
	}
	c.em.writeCmd(bytecode.OpCallObj, bytecode.RegAX)
	c.em.writeCell(bytecode.OpLitToReg)
	c.em.writeCell(bytecode.RegAX)
	if err := c.em.writeFixedUp(c.attrAccessorSlot(a.attrOwner, a.attr, false), bytecode.FixupImport); err != nil {
		return exprValue{}, c.internalError(a.line, "%v", err)
	}
	c.em.writeCmd(bytecode.OpCallExt, bytecode.RegAX)
	c.em.writeCmd(bytecode.OpSubRealStack, 0)
	return exprValue{vartype: a.attr.Vartype, isPointer: a.attr.IsPointer, line: a.line}, nil
}

func (c *compilation) emitAttributeWrite(a access) error {
	// value to store is in AX; park it while we fetch the object
	c.pushReg(bytecode.RegAX)
	obj := a
	obj.attr = nil
	obj.vartype = a.attrOwner
	obj.isPointer = true
	if _, err := c.emitRead(obj); err != nil {
		return err
	}
	c.em.writeCmd(bytecode.OpCallObj, bytecode.RegAX)
	c.popReg(bytecode.RegAX)
	c.em.writeCmd(bytecode.OpPushReal, bytecode.RegAX)
	c.fn.curSP += bytecode.SizeOfStackCell
	c.em.writeCell(bytecode.OpLitToReg)
	c.em.writeCell(bytecode.RegAX)
	if err := c.em.writeFixedUp(c.attrAccessorSlot(a.attrOwner, a.attr, true), bytecode.FixupImport); err != nil {
		return c.internalError(a.line, "%v", err)
	}
	c.em.writeCmd(bytecode.OpCallExt, bytecode.RegAX)
	c.em.writeCmd(bytecode.OpSubRealStack, 1)
	c.fn.curSP -= bytecode.SizeOfStackCell
	return nil
}

// parseCall compiles a function call; the callee lexeme has already been
// consumed. Near calls always go through a function fixup; import calls
// through an import fixup.
func (c *compilation) parseCall(fnLx Lexeme) (exprValue, error) {
	si := c.info(fnLx)
	si.Flags.Set(FlagAccessed)
	name := si.Name
	imported := si.TQ.IsImported()
	numArgs := si.NumArgs
	params := si.Params
	retType := si.Vartype
	retPtr := si.IsPointer
	slot := si.SOffset
	entry := si.FuncLoc

	if _, err := c.expect(c.pre.lparen, "to open the argument list of "+name); err != nil {
		return exprValue{}, err
	}

	argc := 0
	if c.peek().Sym != c.pre.rparen {
		for {
			v, err := c.parseExpression()
			if err != nil {
				return exprValue{}, err
			}
			if argc < len(params) {
				p := params[argc]
				what := fmt.Sprintf("argument %d of %s", argc+1, name)
				if err := c.checkAssignable(v.line, p.Vartype, p.IsPointer, v, what); err != nil {
					return exprValue{}, err
				}
			}
			if imported {
				c.em.writeCmd(bytecode.OpPushReal, bytecode.RegAX)
			} else {
				c.em.writeCmd(bytecode.OpPushReg, bytecode.RegAX)
			}
			c.fn.curSP += bytecode.SizeOfStackCell
			argc++
			if c.peek().Sym != c.pre.comma {
				break
			}
			c.next()
		}
	}
	if _, err := c.expect(c.pre.rparen, "to close the argument list of "+name); err != nil {
		return exprValue{}, err
	}
	if argc != numArgs {
		return exprValue{}, c.userError(fnLx.Line, "function '%s' expects %d argument(s), %d given", name, numArgs, argc)
	}

	if imported {
		c.em.writeCell(bytecode.OpLitToReg)
		c.em.writeCell(bytecode.RegAX)
		if err := c.em.writeFixedUp(slot, bytecode.FixupImport); err != nil {
			return exprValue{}, c.internalError(fnLx.Line, "%v", err)
		}
		c.em.writeCmd(bytecode.OpCallExt, bytecode.RegAX)
		c.em.writeCmd(bytecode.OpSubRealStack, bytecode.CodeCell(argc))
	} else {
		c.em.writeCell(bytecode.OpLitToReg)
		c.em.writeCell(bytecode.RegAX)
		var cell bytecode.CodeCell
		if entry >= 0 {
			cell = entry
		}
		loc := c.em.writeCell(cell)
		if err := c.em.addFixup(loc, bytecode.FixupFunction); err != nil {
			return exprValue{}, c.internalError(fnLx.Line, "%v", err)
		}
		if entry < 0 {
			c.forwardCalls[fnLx.Sym] = append(c.forwardCalls[fnLx.Sym], loc)
		}
		c.em.writeCmd(bytecode.OpCall, bytecode.RegAX)
		if argc > 0 {
			c.em.writeCmd(bytecode.OpSub, bytecode.RegSP,
				bytecode.CodeCell(argc*bytecode.SizeOfStackCell))
		}
	}
	c.fn.curSP -= int32(argc * bytecode.SizeOfStackCell)

	return exprValue{vartype: retType, isPointer: retPtr, line: fnLx.Line}, nil
}

// checkAssignable verifies that a value may be stored into a destination
// of the given type, including the managed-pointer rule: a pointer value
// only ever lands in a managed target.
func (c *compilation) checkAssignable(line int, dstVt Vartype, dstPtr bool, src exprValue, what string) error {
	if dstPtr {
		if src.isNull {
			return nil
		}
		if src.isPointer && src.vartype == dstVt {
			return nil
		}
		return c.userError(line, "type mismatch: cannot assign '%s' to %s of type '%s*'",
			c.exprTypeName(src), what, c.types.Name(dstVt))
	}
	if src.isPointer || src.isNull {
		return c.userError(line, "type mismatch: '%s' holds a managed pointer but %s of type '%s' is not a managed target",
			c.exprTypeName(src), what, c.types.Name(dstVt))
	}
	if dstVt == VTFloat || src.vartype == VTFloat {
		if dstVt == src.vartype {
			return nil
		}
		return c.userError(line, "type mismatch: cannot assign '%s' to %s of type '%s'",
			c.exprTypeName(src), what, c.types.Name(dstVt))
	}
	if dstVt == VTString {
		if src.vartype == VTString {
			return nil
		}
		return c.userError(line, "type mismatch: cannot assign '%s' to %s of type 'string'",
			c.exprTypeName(src), what)
	}
	if isIntFamily(dstVt) && isIntFamily(src.vartype) {
		return nil
	}
	return c.userError(line, "type mismatch: cannot assign '%s' to %s of type '%s'",
		c.exprTypeName(src), what, c.types.Name(dstVt))
}
