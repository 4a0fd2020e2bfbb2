package schema

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"go.followtheprocess.codes/stache/internal/types"
)

const eof = rune(-1) // eof signifies we have reached the end of the input.

// kind is the kind of a type expression token.
type kind int

const (
	kindEOF    kind = iota // EOF
	kindError              // Error
	kindIdent              // Ident
	kindLParen             // LParen
	kindRParen             // RParen
	kindComma              // Comma
)

// String implements [fmt.Stringer] for a [kind].
func (k kind) String() string {
	switch k {
	case kindEOF:
		return "EOF"
	case kindError:
		return "Error"
	case kindIdent:
		return "Ident"
	case kindLParen:
		return "'('"
	case kindRParen:
		return "')'"
	case kindComma:
		return "','"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// token is a lexical token in a type expression.
type token struct {
	kind  kind // The kind of token this is
	start int  // Byte offset from the start of the expression to the start of this token
	end   int  // Byte offset from the start of the expression to the end of this token
}

// scanFn represents the state of the scanner as a function that does the work
// associated with the current state, then returns the next state.
type scanFn func(*scanner) scanFn

// scanner tokenises a type expression e.g. "Map(String,List(Integer))".
type scanner struct {
	src    string  // Raw expression text
	msg    string  // Message of the first error, if any
	tokens []token // Tokens scanned so far
	start  int     // The start position of the current token
	pos    int     // Current scanner position in src
}

// scan tokenises src, the final token is always an EOF or an Error.
func scan(src string) *scanner {
	s := &scanner{src: src}
	for state := scanStart; state != nil; {
		state = state(s)
	}

	return s
}

// next returns the next utf8 rune in the input, or [eof], and advances the scanner
// over that rune.
func (s *scanner) next() rune {
	if s.pos >= len(s.src) {
		return eof
	}

	char, width := utf8.DecodeRuneInString(s.src[s.pos:])
	s.pos += width

	return char
}

// peek returns the next utf8 rune in the input, or [eof], but does not
// advance the scanner.
func (s *scanner) peek() rune {
	if s.pos >= len(s.src) {
		return eof
	}

	char, _ := utf8.DecodeRuneInString(s.src[s.pos:])

	return char
}

// takeWhile consumes characters so long as the predicate returns true.
func (s *scanner) takeWhile(predicate func(r rune) bool) {
	for predicate(s.peek()) {
		s.next()
	}
}

// emit records a token of the given kind spanning the current start and position.
func (s *scanner) emit(k kind) {
	s.tokens = append(s.tokens, token{kind: k, start: s.start, end: s.pos})
	s.start = s.pos
}

// errorf emits an error token, recording the formatted message.
func (s *scanner) errorf(format string, a ...any) {
	s.msg = fmt.Sprintf(format, a...)
	s.emit(kindError)
}

// scanStart is the initial state of the scanner.
func scanStart(s *scanner) scanFn {
	s.takeWhile(isSpace)
	s.start = s.pos

	switch char := s.next(); {
	case char == eof:
		s.emit(kindEOF)
		return nil
	case char == '(':
		s.emit(kindLParen)
	case char == ',':
		s.emit(kindComma)
	case char == ')':
		s.emit(kindRParen)
	case isAlpha(char) || char == '_':
		return scanIdent
	default:
		s.errorf("unrecognised character: %q", char)
		return nil
	}

	return scanStart
}

// scanIdent scans an identifier, the first character has already been consumed.
func scanIdent(s *scanner) scanFn {
	s.takeWhile(isIdent)
	s.emit(kindIdent)

	return scanStart
}

// isAlpha reports whether r is an alpha character.
func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// isIdent reports whether r is a valid identifier character.
func isIdent(r rune) bool {
	return isAlpha(r) || (r >= '0' && r <= '9') || r == '_'
}

// isSpace reports whether r is a space or tab.
func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

// resolver looks up a named struct type.
type resolver func(name string) (*types.Type, error)

// parser parses a type expression into a type.
//
//	expr := ident [ "(" expr { "," expr } ")" ]
type parser struct {
	cache   *types.Cache
	resolve resolver
	src     string
	tokens  []token
	pos     int
}

// ParseType parses a type expression using cache to build compound types.
//
// The expression is a primitive (String, Integer, Float, Boolean), a List(T), a
// Map(K, V) or the name of a struct which is looked up with resolve. A nil resolve
// knows no structs.
func ParseType(cache *types.Cache, expr string, resolve func(name string) (*types.Type, error)) (*types.Type, error) {
	if resolve == nil {
		resolve = func(name string) (*types.Type, error) {
			return nil, fmt.Errorf("unknown type %q", name)
		}
	}

	s := scan(expr)
	if s.msg != "" {
		last := s.tokens[len(s.tokens)-1]
		return nil, fmt.Errorf("%w: %q:%d: %s", ErrSchema, expr, last.start+1, s.msg)
	}

	p := &parser{cache: cache, resolve: resolve, src: expr, tokens: s.tokens}

	t, err := p.parseType()
	if err != nil {
		return nil, err
	}

	if tok := p.current(); tok.kind != kindEOF {
		return nil, p.errorf(tok, "unexpected %s after type", p.describe(tok))
	}

	return t, nil
}

// current returns the token under the parser.
func (p *parser) current() token {
	return p.tokens[p.pos]
}

// advance moves the parser onto the next token, never past the EOF.
func (p *parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

// expect consumes a token of one of the given kinds, returning an error if the
// current token is something else.
func (p *parser) expect(kinds ...kind) (token, error) {
	tok := p.current()
	if !slices.Contains(kinds, tok.kind) {
		return token{}, p.errorf(tok, "expected %s, got %s", kinds[0], p.describe(tok))
	}

	p.advance()

	return tok, nil
}

// text returns the source text of tok.
func (p *parser) text(tok token) string {
	return p.src[tok.start:tok.end]
}

// describe returns a description of tok for error messages.
func (p *parser) describe(tok token) string {
	if tok.kind == kindIdent {
		return fmt.Sprintf("%q", p.text(tok))
	}

	return tok.kind.String()
}

// errorf returns an [ErrSchema] pointing at tok.
func (p *parser) errorf(tok token, format string, a ...any) error {
	return fmt.Errorf("%w: %q:%d: %s", ErrSchema, p.src, tok.start+1, fmt.Sprintf(format, a...))
}

// parseType parses a single, possibly parameterised, type.
func (p *parser) parseType() (*types.Type, error) {
	name, err := p.expect(kindIdent)
	if err != nil {
		return nil, err
	}

	var params []*types.Type

	if p.current().kind == kindLParen {
		p.advance()

		for {
			param, err := p.parseType()
			if err != nil {
				return nil, err
			}

			params = append(params, param)

			tok, err := p.expect(kindComma, kindRParen)
			if err != nil {
				return nil, err
			}

			if tok.kind == kindRParen {
				break
			}
		}
	}

	return p.build(name, params)
}

// build constructs the type named by tok with the given parameters.
func (p *parser) build(tok token, params []*types.Type) (*types.Type, error) {
	name := p.text(tok)

	arity := func(n int) error {
		if len(params) != n {
			return p.errorf(tok, "%s takes %d type parameter(s), got %d", name, n, len(params))
		}

		return nil
	}

	switch name {
	case "String", "Integer", "Float", "Boolean":
		if err := arity(0); err != nil {
			return nil, err
		}

		return p.cache.Reify(types.Signature{Factory: name})
	case "List":
		if err := arity(1); err != nil {
			return nil, err
		}

		return p.cache.List(params[0]), nil
	case "Map":
		if err := arity(2); err != nil {
			return nil, err
		}

		return p.cache.Map(params[0], params[1]), nil
	default:
		if err := arity(0); err != nil {
			return nil, err
		}

		t, err := p.resolve(name)
		if err != nil {
			if errors.Is(err, ErrSchema) {
				return nil, err
			}

			return nil, p.errorf(tok, "%v", err)
		}

		return t, nil
	}
}
