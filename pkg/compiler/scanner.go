package compiler

import (
	"fmt"
	"math"
	"strconv"
	"unicode"
)

// Lexeme is one element of the scanner's output: a symbol id already
// resolved against the symbol table, with the line it came from.
type Lexeme struct {
	Sym  Symbol
	Line int
}

// stringPool is the string literal repository. Each distinct literal is
// appended once, NUL-terminated; repeats reuse the first offset.
type stringPool struct {
	blob  []byte
	index map[string]int32
}

func newStringPool() *stringPool {
	return &stringPool{index: make(map[string]int32)}
}

// intern returns the repository offset for s, appending it on first sight.
func (p *stringPool) intern(s string) int32 {
	if loc, ok := p.index[s]; ok {
		return loc
	}
	loc := int32(len(p.blob))
	p.blob = append(p.blob, s...)
	p.blob = append(p.blob, 0)
	p.index[s] = loc
	return loc
}

// Scanner turns source text into the preprocessed symbol sequence the
// parser consumes. Identifiers, literals and operators are interned into
// the symbol table as they are seen; a fresh identifier stays unclassified
// until a declaration gives it a meaning.
type Scanner struct {
	src  []rune
	pos  int
	line int
	sym  *SymbolTable
	pool *stringPool
}

func newScanner(src string, sym *SymbolTable, pool *stringPool) *Scanner {
	return &Scanner{src: []rune(src), line: 1, sym: sym, pool: pool}
}

func (s *Scanner) peek() rune {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *Scanner) peek2() rune {
	if s.pos+1 >= len(s.src) {
		return 0
	}
	return s.src[s.pos+1]
}

func (s *Scanner) advance() rune {
	if s.pos >= len(s.src) {
		return 0
	}
	r := s.src[s.pos]
	s.pos++
	if r == '\n' {
		s.line++
	}
	return r
}

func (s *Scanner) skipWhitespaceAndComments() error {
	for {
		for s.pos < len(s.src) && unicode.IsSpace(s.peek()) {
			s.advance()
		}
		if s.peek() == '/' && s.peek2() == '/' {
			for s.pos < len(s.src) && s.peek() != '\n' {
				s.advance()
			}
			continue
		}
		if s.peek() == '/' && s.peek2() == '*' {
			startLine := s.line
			s.advance()
			s.advance()
			for {
				if s.pos >= len(s.src) {
					return fmt.Errorf("unterminated block comment (opened on line %d)", startLine)
				}
				if s.peek() == '*' && s.peek2() == '/' {
					s.advance()
					s.advance()
					break
				}
				s.advance()
			}
			continue
		}
		return nil
	}
}

// scanIdent collects an identifier or keyword and interns it.
func (s *Scanner) scanIdent() Lexeme {
	line := s.line
	start := s.pos
	for s.pos < len(s.src) {
		r := s.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		s.advance()
	}
	name := string(s.src[start:s.pos])
	return Lexeme{Sym: s.sym.FindOrAdd(name), Line: line}
}

// scanNumber collects an integer or float literal. Identical literal text
// interns to the same symbol.
func (s *Scanner) scanNumber() (Lexeme, error) {
	line := s.line
	start := s.pos
	for s.pos < len(s.src) && unicode.IsDigit(s.peek()) {
		s.advance()
	}
	isFloat := false
	if s.peek() == '.' && unicode.IsDigit(s.peek2()) {
		isFloat = true
		s.advance()
		for s.pos < len(s.src) && unicode.IsDigit(s.peek()) {
			s.advance()
		}
	}
	text := string(s.src[start:s.pos])

	sym := s.sym.FindOrAdd(text)
	si := s.sym.Get(sym)
	if si.SType != SymNoType {
		// already interned by an earlier occurrence
		return Lexeme{Sym: sym, Line: line}, nil
	}
	if isFloat {
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Lexeme{}, fmt.Errorf("malformed float literal '%s' on line %d", text, line)
		}
		si.SType = SymLiteralFloat
		si.Vartype = VTFloat
		si.Value = int32(math.Float32bits(float32(f)))
	} else {
		v, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Lexeme{}, fmt.Errorf("integer literal '%s' out of range on line %d", text, line)
		}
		si.SType = SymLiteralInt
		si.Vartype = VTInt
		si.Value = int32(v)
	}
	return Lexeme{Sym: sym, Line: line}, nil
}

// scanChar collects a character literal and interns it as an int literal
// holding its character value.
func (s *Scanner) scanChar() (Lexeme, error) {
	line := s.line
	s.advance() // opening '
	r := s.peek()
	if r == '\'' {
		return Lexeme{}, fmt.Errorf("empty character literal on line %d", line)
	}
	var val rune
	if r == '\\' {
		s.advance()
		esc, err := s.escape(line)
		if err != nil {
			return Lexeme{}, err
		}
		val = esc
	} else {
		val = r
		s.advance()
	}
	if s.peek() != '\'' {
		return Lexeme{}, fmt.Errorf("unterminated character literal on line %d", line)
	}
	s.advance()

	text := strconv.Itoa(int(val))
	sym := s.sym.FindOrAdd(text)
	si := s.sym.Get(sym)
	if si.SType == SymNoType {
		si.SType = SymLiteralInt
		si.Vartype = VTInt
		si.Value = int32(val)
	}
	return Lexeme{Sym: sym, Line: line}, nil
}

func (s *Scanner) escape(line int) (rune, error) {
	next := s.peek()
	s.advance()
	switch next {
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case '0':
		return 0, nil
	case '\\':
		return '\\', nil
	case '\'':
		return '\'', nil
	case '"':
		return '"', nil
	}
	return 0, fmt.Errorf("unknown escape sequence \\%c on line %d", next, line)
}

// scanString collects a string literal, appends it to the string
// repository on first occurrence, and interns a symbol carrying the
// repository offset. The symbol key is quote-wrapped so a literal can
// never collide with an identifier of the same spelling.
func (s *Scanner) scanString() (Lexeme, error) {
	line := s.line
	s.advance() // opening "
	var val []rune
	for {
		if s.pos >= len(s.src) || s.peek() == '\n' {
			return Lexeme{}, fmt.Errorf("unterminated string literal on line %d", line)
		}
		r := s.peek()
		if r == '"' {
			s.advance()
			break
		}
		if r == '\\' {
			s.advance()
			esc, err := s.escape(line)
			if err != nil {
				return Lexeme{}, err
			}
			val = append(val, esc)
			continue
		}
		val = append(val, r)
		s.advance()
	}

	text := string(val)
	sym := s.sym.FindOrAdd("\"" + text + "\"")
	si := s.sym.Get(sym)
	if si.SType == SymNoType {
		si.SType = SymLiteralString
		si.Vartype = VTString
		si.Scope = ScopeStrings
		si.SOffset = s.pool.intern(text)
	}
	return Lexeme{Sym: sym, Line: line}, nil
}

// twoCharOps lists every operator whose first rune could also start a
// shorter operator; longest match wins.
var twoCharOps = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true,
	"&&": true, "||": true, "<<": true, ">>": true,
	"+=": true, "-=": true, "*=": true, "/=": true,
	"++": true, "--": true,
}

func (s *Scanner) scanOperator() (Lexeme, error) {
	line := s.line
	first := s.advance()
	text := string(first)
	if twoCharOps[text+string(s.peek())] {
		text += string(s.advance())
	}
	sym := s.sym.Find(text)
	if sym == NoSymbol {
		return Lexeme{}, fmt.Errorf("unexpected character %q on line %d", first, line)
	}
	return Lexeme{Sym: sym, Line: line}, nil
}

// next returns the next lexeme, or ok=false at end of input.
func (s *Scanner) next() (Lexeme, bool, error) {
	if err := s.skipWhitespaceAndComments(); err != nil {
		return Lexeme{}, false, err
	}
	if s.pos >= len(s.src) {
		return Lexeme{}, false, nil
	}
	ch := s.peek()
	switch {
	case unicode.IsLetter(ch) || ch == '_':
		return s.lexemeOK(s.scanIdent())
	case unicode.IsDigit(ch):
		lx, err := s.scanNumber()
		return lx, err == nil, err
	case ch == '"':
		lx, err := s.scanString()
		return lx, err == nil, err
	case ch == '\'':
		lx, err := s.scanChar()
		return lx, err == nil, err
	default:
		lx, err := s.scanOperator()
		return lx, err == nil, err
	}
}

func (s *Scanner) lexemeOK(lx Lexeme) (Lexeme, bool, error) {
	return lx, true, nil
}

// ScanAll drains the scanner and returns the full symbol sequence.
func (s *Scanner) ScanAll() ([]Lexeme, error) {
	var out []Lexeme
	for {
		lx, ok, err := s.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, lx)
	}
}
