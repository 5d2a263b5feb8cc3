package compiler

import (
	"math"

	"scriptc/pkg/bytecode"
)

// parseProgram drives the whole unit: a sequence of struct declarations,
// function declarations and definitions, global variables and export
// statements.
func (c *compilation) parseProgram() error {
	for !c.atEnd() {
		if err := c.parseTopLevel(); err != nil {
			return err
		}
	}
	return c.finishForwardCalls()
}

func (c *compilation) parseTopLevel() error {
	lx := c.peek()
	if lx.Sym == c.pre.kwExport {
		return c.parseExport()
	}
	if lx.Sym == c.pre.semicolon {
		c.next()
		return nil
	}

	tq, noLoopCheck, importKind, err := c.parseQualifiers()
	if err != nil {
		return err
	}

	if c.peek().Sym == c.pre.kwStruct {
		if noLoopCheck {
			return c.userError(c.peek().Line, "'noloopcheck' can only be applied to a function")
		}
		return c.parseStruct(tq)
	}

	vt, isPointer, typeLine, err := c.parseTypeSpec()
	if err != nil {
		return err
	}

	nameLx := c.next()
	nameInfo := c.info(nameLx)
	if nameInfo == nil {
		return c.internalError(nameLx.Line, "lexeme references unknown symbol %d", int(nameLx.Sym))
	}

	if c.peek().Sym == c.pre.lparen {
		return c.parseFunction(tq, noLoopCheck, importKind, vt, isPointer, nameLx)
	}
	if noLoopCheck {
		return c.userError(typeLine, "'noloopcheck' can only be applied to a function")
	}
	return c.parseGlobalVars(tq, importKind, vt, isPointer, nameLx)
}

// parseQualifiers collects the run of qualifier keywords in front of a
// declaration. const and writeprotected contradict each other and are
// rejected at the second of the two.
func (c *compilation) parseQualifiers() (TypeQualifierSet, bool, TypeQualifier, error) {
	var tq TypeQualifierSet
	noLoopCheck := false
	var importKind TypeQualifier
	for {
		lx := c.peek()
		switch {
		case lx.Sym == c.pre.kwNoLoopCheck:
			c.next()
			noLoopCheck = true
			continue
		case lx.Sym == c.pre.kwImport:
			c.next()
			importKind = TQImportStd
			tq = tq.With(TQImportStd)
			continue
		case lx.Sym == c.pre.kwTryImport:
			c.next()
			importKind = TQImportTry
			tq = tq.With(TQImportTry)
			continue
		}
		q, ok := c.pre.qualifiers[lx.Sym]
		if !ok {
			return tq, noLoopCheck, importKind, nil
		}
		c.next()
		if (q == TQConst && tq.Has(TQWriteprotected)) || (q == TQWriteprotected && tq.Has(TQConst)) {
			return tq, false, 0, c.userError(lx.Line,
				"qualifiers 'const' and 'writeprotected' cannot be combined")
		}
		tq = tq.With(q)
	}
}

// parseTypeSpec consumes a type name and an optional '*'. Autoptr structs
// are pointers without the star; only managed structs may carry one.
func (c *compilation) parseTypeSpec() (Vartype, bool, int, error) {
	lx := c.next()
	si := c.info(lx)
	if si == nil {
		return NoVartype, false, lx.Line, c.internalError(lx.Line, "lexeme references unknown symbol %d", int(lx.Sym))
	}
	if si.SType != SymVartype && si.SType != SymUndefinedStruct {
		return NoVartype, false, lx.Line, c.userError(lx.Line, "expected a type, found %v '%s'", si.SType, si.Name)
	}
	vt := si.Vartype
	vi := c.types.Get(vt)
	isPointer := vi != nil && vi.IsAutoptr()

	if c.peek().Sym == c.pre.star {
		starLx := c.next()
		if isPointer {
			return NoVartype, false, lx.Line, c.userError(starLx.Line,
				"'*' must not be used with autoptr type '%s'", si.Name)
		}
		if vi == nil || !vi.IsStruct() {
			return NoVartype, false, lx.Line, c.userError(starLx.Line,
				"'*' can only be applied to a managed struct, not '%s'", si.Name)
		}
		// a forward-declared struct is assumed managed until completed;
		// "new" will reject it if it turns out otherwise
		if vi.Complete && !vi.IsManaged() {
			return NoVartype, false, lx.Line, c.userError(starLx.Line,
				"struct '%s' is not managed; it cannot be used through a pointer", si.Name)
		}
		isPointer = true
	}
	return vt, isPointer, lx.Line, nil
}

// structQualifiers are the only qualifiers that mean anything on a struct.
const structQualifiers = TypeQualifierSet(TQManaged) |
	TypeQualifierSet(TQBuiltin) |
	TypeQualifierSet(TQAutoptr) |
	TypeQualifierSet(TQStringstruct)

// parseStruct handles both the forward declaration "struct X;" and the
// full definition with a member list.
func (c *compilation) parseStruct(tq TypeQualifierSet) error {
	c.next() // struct
	if bad := tq.Bits() &^ structQualifiers.Bits(); bad != 0 {
		return c.userError(c.peek().Line, "qualifier '%s' cannot be applied to a struct",
			TypeQualifier(bad&-bad))
	}

	nameLx := c.next()
	si := c.info(nameLx)
	if si == nil {
		return c.internalError(nameLx.Line, "lexeme references unknown symbol %d", int(nameLx.Sym))
	}
	name := si.Name

	var vt Vartype
	switch si.SType {
	case SymNoType:
		vt = c.types.DeclareStruct(name)
		if err := c.sym.Declare(nameLx.Sym, SymUndefinedStruct); err != nil {
			return c.userError(nameLx.Line, "%v", err)
		}
		si = c.info(nameLx)
		si.Vartype = vt
		si.DeclLine = nameLx.Line
	case SymUndefinedStruct:
		vt = si.Vartype
	case SymVartype:
		if vi := c.types.Get(si.Vartype); vi != nil && vi.IsStruct() {
			return c.userError(nameLx.Line, "struct '%s' is already defined", name)
		}
		return c.userError(nameLx.Line, "'%s' already names a built-in type", name)
	default:
		return c.userError(nameLx.Line, "'%s' is already declared as a %v", name, si.SType)
	}

	if c.peek().Sym == c.pre.semicolon {
		c.next()
		if tq.Bits() != 0 {
			return c.userError(nameLx.Line,
				"qualifiers belong on the definition of struct '%s', not its forward declaration", name)
		}
		return nil
	}

	if _, err := c.expect(c.pre.lbrace, "to open the body of struct '"+name+"'"); err != nil {
		return err
	}

	var members []Member
	var size int32
	for c.peek().Sym != c.pre.rbrace {
		if c.atEnd() {
			return c.userError(c.peek().Line, "end of input inside struct '%s'; '}' missing", name)
		}
		m, msize, err := c.parseStructMember(name, vt, members)
		if err != nil {
			return err
		}
		if !m.TQ.Has(TQAttribute) {
			m.Offset = alignOffset(size, msize)
			size = m.Offset + msize
		}
		members = append(members, m)
	}
	c.next() // '}'
	if _, err := c.expect(c.pre.semicolon, "after the definition of struct '"+name+"'"); err != nil {
		return err
	}

	var flags SymbolFlagSet
	flags.Set(FlagStructVartype)
	if tq.Has(TQManaged) {
		flags.Set(FlagStructManaged)
	}
	if tq.Has(TQBuiltin) {
		flags.Set(FlagStructBuiltin)
	}
	if tq.Has(TQAutoptr) {
		flags.Set(FlagStructAutoPtr)
	}
	si = c.info(nameLx)
	si.SType = SymVartype
	si.TQ = tq
	if err := c.types.CompleteStruct(vt, members, alignUp(size), flags); err != nil {
		return c.internalError(nameLx.Line, "%v", err)
	}
	return nil
}

// alignOffset aligns a member offset to its natural boundary: chars pack
// tightly, shorts to 2 bytes, everything else to a full cell.
func alignOffset(off, msize int32) int32 {
	var align int32
	switch {
	case msize == bytecode.SizeOfChar:
		align = 1
	case msize == bytecode.SizeOfShort:
		align = 2
	default:
		align = bytecode.StructAlignTo
	}
	rem := off % align
	if rem == 0 {
		return off
	}
	return off + align - rem
}

// parseStructMember compiles one member declaration inside a struct body
// and interns its qualified "Owner::member" symbol.
func (c *compilation) parseStructMember(owner string, ownerVt Vartype, declared []Member) (Member, int32, error) {
	tq, noLoopCheck, _, err := c.parseQualifiers()
	if err != nil {
		return Member{}, 0, err
	}
	if noLoopCheck {
		return Member{}, 0, c.userError(c.peek().Line, "'noloopcheck' can only be applied to a function")
	}
	if tq.IsImported() {
		return Member{}, 0, c.userError(c.peek().Line, "struct members cannot be imported individually")
	}

	vt, isPointer, line, err := c.parseTypeSpec()
	if err != nil {
		return Member{}, 0, err
	}
	if vt == ownerVt && !isPointer {
		return Member{}, 0, c.userError(line, "struct '%s' cannot contain itself by value", owner)
	}

	nameLx := c.next()
	memberName := c.sym.Name(nameLx.Sym)
	for _, m := range declared {
		if m.Name == memberName {
			return Member{}, 0, c.userError(nameLx.Line, "'%s' is already a member of struct '%s'", memberName, owner)
		}
	}
	if _, err := c.expect(c.pre.semicolon, "after struct member '"+memberName+"'"); err != nil {
		return Member{}, 0, err
	}

	var msize int32
	if !tq.Has(TQAttribute) {
		msize, err = c.vartypeSize(vt, isPointer)
		if err != nil {
			return Member{}, 0, c.userError(line, "member '%s.%s': %v", owner, memberName, err)
		}
	}

	// intern the qualified component symbol so member names never
	// collide with plain identifiers
	compSym := c.sym.FindOrAdd(owner + "::" + memberName)
	comp := c.sym.Get(compSym)
	comp.SType = SymStructComponent
	comp.TQ = tq
	comp.Vartype = vt
	comp.IsPointer = isPointer
	comp.Parent = ownerVt
	comp.DeclLine = nameLx.Line
	comp.Flags.Set(FlagStructMember)

	return Member{
		Name:      memberName,
		Sym:       compSym,
		Vartype:   vt,
		IsPointer: isPointer,
		TQ:        tq,
	}, msize, nil
}

// paramFrameOffset is where parameter i of numArgs lives relative to the
// frame base: below the return address, last parameter on top.
func paramFrameOffset(i, numArgs int) int32 {
	return -int32(numArgs-i+1) * bytecode.SizeOfStackCell
}

// parseFunction handles prototypes (import declarations and forward
// declarations) and definitions. The name lexeme and the return type are
// already consumed; the current lexeme is '('.
func (c *compilation) parseFunction(tq TypeQualifierSet, noLoopCheck bool, importKind TypeQualifier,
	retType Vartype, retPtr bool, nameLx Lexeme) error {

	si := c.info(nameLx)
	name := si.Name
	line := nameLx.Line

	if c.fn.sym != NoSymbol {
		return c.userError(line, "function '%s' cannot be declared inside another function", name)
	}

	params, paramNames, err := c.parseParamList(name)
	if err != nil {
		return err
	}

	isProto := c.peek().Sym == c.pre.semicolon
	isImport := importKind != 0

	switch si.SType {
	case SymNoType:
		if err := c.sym.Declare(nameLx.Sym, SymFunction); err != nil {
			return c.userError(line, "%v", err)
		}
		si = c.info(nameLx)
		si.TQ = tq
		si.Vartype = retType
		si.IsPointer = retPtr
		si.NumArgs = len(params)
		si.Params = params
		si.FuncLoc = -1
		si.DeclLine = line
		if isImport {
			si.Scope = ScopeImport
			si.SOffset = c.importSlot(name)
		} else {
			si.Scope = ScopeGlobal
		}
	case SymFunction:
		if !si.TQ.IsImported() && si.FuncLoc >= 0 {
			return c.userError(line, "function '%s' is already defined", name)
		}
		if si.Vartype != retType || si.IsPointer != retPtr || si.NumArgs != len(params) {
			return c.userError(line, "declaration of '%s' does not match its earlier declaration on line %d",
				name, si.DeclLine)
		}
		for i, p := range params {
			if si.Params[i] != p {
				return c.userError(line, "declaration of '%s' does not match its earlier declaration on line %d",
					name, si.DeclLine)
			}
		}
		if isProto {
			// a matching repeat declaration just confirms the first
			return c.expectSemicolonAfterProto(name)
		}
		if si.TQ.IsImported() {
			// the unit supplies its own body; the import declaration is
			// superseded
			si.TQ = si.TQ.Without(TQImportStd).Without(TQImportTry)
			si.Scope = ScopeGlobal
		}
	default:
		return c.userError(line, "'%s' is already declared as a %v", name, si.SType)
	}

	if isProto {
		return c.expectSemicolonAfterProto(name)
	}
	if isImport {
		return c.userError(line, "imported function '%s' cannot have a body", name)
	}

	si.Exported = !tq.Has(TQStatic) && !tq.Has(TQProtected)

	if _, err := c.expect(c.pre.lbrace, "to open the body of '"+name+"'"); err != nil {
		return err
	}

	si.FuncLoc = c.em.here()
	for _, loc := range c.forwardCalls[nameLx.Sym] {
		c.em.patchCell(loc, si.FuncLoc)
	}
	delete(c.forwardCalls, nameLx.Sym)

	c.fn = funcContext{sym: nameLx.Sym, retType: retType, retPtr: retPtr}
	c.sym.PushScope()
	for i, pname := range paramNames {
		if pname == "" {
			return c.userError(line, "parameter %d of '%s' needs a name in the definition", i+1, name)
		}
		psym := c.sym.Find(pname)
		if err := c.sym.Declare(psym, SymLocalVar); err != nil {
			return c.userError(line, "%v", err)
		}
		pi := c.sym.Get(psym)
		pi.Scope = ScopeLocal
		pi.Vartype = params[i].Vartype
		pi.IsPointer = params[i].IsPointer
		pi.SOffset = paramFrameOffset(i, len(params))
		pi.SSize = bytecode.SizeOfStackCell
		pi.DeclLine = line
		pi.Flags.Set(FlagAccessed) // parameters are never reported unused
	}

	c.em.lineNum(line)
	if noLoopCheck {
		si.Flags.Set(FlagNoLoopCheck)
		c.em.writeCmd(bytecode.OpLoopCheckOff)
	}

	for c.peek().Sym != c.pre.rbrace {
		if c.atEnd() {
			return c.userError(c.peek().Line, "end of input inside function '%s'; '}' missing", name)
		}
		if err := c.parseStatement(); err != nil {
			return err
		}
	}
	endLx := c.next() // '}'

	// implicit epilogue for paths that fall off the end
	c.em.lineNum(endLx.Line)
	if c.fn.curSP > 0 {
		c.em.writeCmd(bytecode.OpSub, bytecode.RegSP, c.fn.curSP)
	}
	c.em.writeCmd(bytecode.OpLitToReg, bytecode.RegAX, 0)
	c.em.writeCmd(bytecode.OpRet)

	c.fn.curSP = 0
	c.closeScope(0)
	c.fn = funcContext{sym: NoSymbol}
	return nil
}

func (c *compilation) expectSemicolonAfterProto(name string) error {
	_, err := c.expect(c.pre.semicolon, "after the declaration of '"+name+"'")
	return err
}

// parseParamList consumes "( type [*] [name], ... )". Prototype parameters
// may be anonymous; definition parameters must be named, which the caller
// enforces.
func (c *compilation) parseParamList(fnName string) ([]ParamType, []string, error) {
	if _, err := c.expect(c.pre.lparen, "to open the parameter list of '"+fnName+"'"); err != nil {
		return nil, nil, err
	}
	var params []ParamType
	var names []string
	if c.peek().Sym == c.pre.rparen {
		c.next()
		return params, names, nil
	}
	for {
		if len(params) >= bytecode.MaxFunctionParameters {
			return nil, nil, c.userError(c.peek().Line,
				"function '%s' has too many parameters; the limit is %d",
				fnName, bytecode.MaxFunctionParameters)
		}
		vt, isPointer, line, err := c.parseTypeSpec()
		if err != nil {
			return nil, nil, err
		}
		if vt == VTVoid && !isPointer {
			return nil, nil, c.userError(line, "'void' is not a valid parameter type")
		}
		if vi := c.types.Get(vt); vi != nil && vi.IsStruct() && !isPointer {
			return nil, nil, c.userError(line,
				"struct '%s' cannot be passed by value; use a pointer parameter", vi.Name)
		}
		pname := ""
		if lx := c.peek(); lx.Sym != c.pre.comma && lx.Sym != c.pre.rparen {
			nameLx := c.next()
			pname = c.sym.Name(nameLx.Sym)
		}
		params = append(params, ParamType{Vartype: vt, IsPointer: isPointer})
		names = append(names, pname)
		if c.peek().Sym != c.pre.comma {
			break
		}
		c.next()
	}
	if _, err := c.expect(c.pre.rparen, "to close the parameter list of '"+fnName+"'"); err != nil {
		return nil, nil, err
	}
	return params, names, nil
}

// parseGlobalVars compiles one comma-separated run of global variable
// declarations. The first name lexeme is already consumed.
func (c *compilation) parseGlobalVars(tq TypeQualifierSet, importKind TypeQualifier,
	vt Vartype, isPointer bool, nameLx Lexeme) error {

	for {
		if err := c.declareGlobalVar(tq, importKind, vt, isPointer, nameLx); err != nil {
			return err
		}
		if c.peek().Sym != c.pre.comma {
			break
		}
		c.next()
		nameLx = c.next()
	}
	_, err := c.expect(c.pre.semicolon, "after the variable declaration")
	return err
}

func (c *compilation) declareGlobalVar(tq TypeQualifierSet, importKind TypeQualifier,
	vt Vartype, isPointer bool, nameLx Lexeme) error {

	si := c.info(nameLx)
	if si == nil {
		return c.internalError(nameLx.Line, "lexeme references unknown symbol %d", int(nameLx.Sym))
	}
	name := si.Name
	line := nameLx.Line

	if tq.Has(TQConst) {
		return c.declareConstant(tq, vt, isPointer, nameLx)
	}

	if vi := c.types.Get(vt); vi != nil && vi.IsManaged() && !isPointer {
		return c.userError(line, "managed struct '%s' can only be used through a pointer", vi.Name)
	}
	if vt == VTVoid && !isPointer {
		return c.userError(line, "'void' is not a valid variable type")
	}

	if si.isDeclared() {
		// a repeated import declaration of the same shape confirms the
		// first one
		if si.SType == SymGlobalVar && si.TQ.IsImported() && importKind != 0 &&
			si.Vartype == vt && si.IsPointer == isPointer {
			return nil
		}
		return c.userError(line, "'%s' is already declared as a %v", name, si.SType)
	}

	if err := c.sym.Declare(nameLx.Sym, SymGlobalVar); err != nil {
		return c.userError(line, "%v", err)
	}
	si = c.info(nameLx)
	si.TQ = tq
	si.Vartype = vt
	si.IsPointer = isPointer
	si.DeclLine = line

	size, err := c.vartypeSize(vt, isPointer)
	if err != nil {
		return c.userError(line, "cannot declare '%s': %v", name, err)
	}
	si.SSize = size

	if importKind != 0 {
		si.Scope = ScopeImport
		si.SOffset = c.importSlot(name)
	} else {
		si.Scope = ScopeGlobal
		si.SOffset = alignOffset(c.globalSize, size)
		c.globalSize = si.SOffset + size
	}

	if c.peek().Sym == c.pre.assign {
		return c.userError(c.peek().Line,
			"global variable '%s' cannot have an initializer; assign to it in a function instead", name)
	}
	return nil
}

// declareConstant folds "const <type> NAME = <literal>;" into a named
// compile-time constant. Constants occupy no global data.
func (c *compilation) declareConstant(tq TypeQualifierSet, vt Vartype, isPointer bool, nameLx Lexeme) error {
	name := c.sym.Name(nameLx.Sym)
	line := nameLx.Line
	if isPointer {
		return c.userError(line, "a const declaration cannot have pointer type")
	}
	if !isIntFamily(vt) && vt != VTFloat {
		return c.userError(line, "const '%s' must be of a numeric type, not '%s'", name, c.types.Name(vt))
	}
	if _, err := c.expect(c.pre.assign, "in the declaration of const '"+name+"'"); err != nil {
		return err
	}
	value, valueVt, err := c.parseConstLiteral()
	if err != nil {
		return err
	}
	if (vt == VTFloat) != (valueVt == VTFloat) {
		return c.userError(line, "the value of const '%s' does not have type '%s'", name, c.types.Name(vt))
	}

	if err := c.sym.Declare(nameLx.Sym, SymConstant); err != nil {
		return c.userError(line, "%v", err)
	}
	si := c.info(nameLx)
	si.TQ = tq
	si.Vartype = vt
	si.Value = value
	si.DeclLine = line
	return nil
}

func negateFloatBits(bits int32) int32 {
	return int32(math.Float32bits(-math.Float32frombits(uint32(bits))))
}

// parseConstLiteral accepts an optionally negated numeric literal.
func (c *compilation) parseConstLiteral() (int32, Vartype, error) {
	negate := false
	if c.peek().Sym == c.pre.minus {
		c.next()
		negate = true
	}
	lx := c.next()
	si := c.info(lx)
	if si == nil || (si.SType != SymLiteralInt && si.SType != SymLiteralFloat) {
		return 0, NoVartype, c.userError(lx.Line, "expected a numeric literal, found '%s'", c.sym.Name(lx.Sym))
	}
	value := si.Value
	vt := VTInt
	if si.SType == SymLiteralFloat {
		vt = VTFloat
		if negate {
			value = negateFloatBits(value)
		}
	} else if negate {
		value = -value
	}
	return value, vt, nil
}

// parseExport marks already-declared globals and functions for the export
// table. Imported symbols come from elsewhere and cannot be re-exported.
func (c *compilation) parseExport() error {
	c.next() // export
	for {
		lx := c.next()
		si := c.info(lx)
		if si == nil || !si.isDeclared() {
			return c.userError(lx.Line, "cannot export '%s': it is not declared", c.sym.Name(lx.Sym))
		}
		switch si.SType {
		case SymGlobalVar, SymFunction:
			if si.TQ.IsImported() {
				return c.userError(lx.Line, "cannot export '%s': it is imported from elsewhere", si.Name)
			}
			si.Exported = true
		default:
			return c.userError(lx.Line, "cannot export '%s': only global variables and functions can be exported", si.Name)
		}
		if c.peek().Sym != c.pre.comma {
			break
		}
		c.next()
	}
	_, err := c.expect(c.pre.semicolon, "after the export statement")
	return err
}

// finishForwardCalls fails the unit if any called function never got a
// body. Symbols are checked in id order so the reported function is the
// same on every run.
func (c *compilation) finishForwardCalls() error {
	for sym := Symbol(0); int(sym) < c.sym.Len(); sym++ {
		if len(c.forwardCalls[sym]) == 0 {
			continue
		}
		si := c.sym.Get(sym)
		return c.userError(si.DeclLine, "function '%s' is called but never defined", si.Name)
	}
	return nil
}

// parseLocalDecl compiles one local variable declaration statement inside
// a function body.
func (c *compilation) parseLocalDecl() error {
	tq, noLoopCheck, importKind, err := c.parseQualifiers()
	if err != nil {
		return err
	}
	if noLoopCheck {
		return c.userError(c.peek().Line, "'noloopcheck' can only be applied to a function")
	}
	if importKind != 0 {
		return c.userError(c.peek().Line, "'import' is only allowed at global scope, not on a local variable")
	}
	if bad := tq.Bits() &^ (TypeQualifierSet(TQConst) | TypeQualifierSet(TQReadonly)).Bits(); bad != 0 {
		return c.userError(c.peek().Line, "qualifier '%s' cannot be applied to a local variable",
			TypeQualifier(bad&-bad))
	}

	vt, isPointer, typeLine, err := c.parseTypeSpec()
	if err != nil {
		return err
	}
	if vt == VTVoid && !isPointer {
		return c.userError(typeLine, "'void' is not a valid variable type")
	}
	if vi := c.types.Get(vt); vi != nil && vi.IsManaged() && !isPointer {
		return c.userError(typeLine, "managed struct '%s' can only be used through a pointer", vi.Name)
	}

	for {
		nameLx := c.next()
		if err := c.declareLocalVar(tq, vt, isPointer, nameLx); err != nil {
			return err
		}
		if c.peek().Sym != c.pre.comma {
			break
		}
		c.next()
	}
	_, err = c.expect(c.pre.semicolon, "after the variable declaration")
	return err
}

func (c *compilation) declareLocalVar(tq TypeQualifierSet, vt Vartype, isPointer bool, nameLx Lexeme) error {
	name := c.sym.Name(nameLx.Sym)
	line := nameLx.Line

	if tq.Has(TQConst) {
		return c.declareConstant(tq, vt, isPointer, nameLx)
	}

	size, err := c.vartypeSize(vt, isPointer)
	if err != nil {
		return c.userError(line, "cannot declare '%s': %v", name, err)
	}

	vi := c.types.Get(vt)
	isStructValue := !isPointer && vi != nil && vi.IsStruct()

	hasInit := false
	if c.peek().Sym == c.pre.assign {
		if isStructValue {
			return c.userError(c.peek().Line, "struct variable '%s' cannot have an initializer", name)
		}
		c.next()
		v, err := c.parseExpression()
		if err != nil {
			return err
		}
		if err := c.checkAssignable(line, vt, isPointer, v, "'"+name+"'"); err != nil {
			return err
		}
		hasInit = true
	} else if tq.Has(TQReadonly) {
		return c.userError(line, "readonly variable '%s' must be initialized where it is declared", name)
	}

	if err := c.sym.Declare(nameLx.Sym, SymLocalVar); err != nil {
		return c.userError(line, "%v", err)
	}
	si := c.info(nameLx)
	si.TQ = tq
	si.Scope = ScopeLocal
	si.Vartype = vt
	si.IsPointer = isPointer
	si.DeclLine = line
	si.SOffset = c.fn.curSP

	c.em.lineNum(line)
	if isStructValue {
		allocated := alignUp(size)
		si.SSize = allocated
		c.em.writeCmd(bytecode.OpLoadSPOffs, 0)
		c.em.writeCmd(bytecode.OpZeroMemory, allocated)
		c.em.writeCmd(bytecode.OpAdd, bytecode.RegSP, allocated)
		c.fn.curSP += allocated
		return nil
	}

	si.SSize = bytecode.SizeOfStackCell
	if !hasInit {
		c.em.writeCmd(bytecode.OpLitToReg, bytecode.RegAX, 0)
	}
	c.pushReg(bytecode.RegAX)
	return nil
}
