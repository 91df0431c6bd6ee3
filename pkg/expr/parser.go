package expr

import (
	"fmt"
	"strconv"
)

// knownFuncs is the set of functions a formula may call. "if" is the
// three-argument conditional; the rest are numeric.
var knownFuncs = map[string]bool{
	"if":     true,
	"log":    true,
	"log10":  true,
	"exp":    true,
	"sqrt":   true,
	"abs":    true,
	"min":    true,
	"max":    true,
	"mean":   true,
	"median": true,
}

// Parser parses formula tokens into an expression tree.
type Parser struct {
	tokens []Token
	pos    int
	errors []error
}

// Parse tokenizes and parses a formula in one step.
func Parse(input string) (Expr, error) {
	tokens := NewLexer(input).Tokenize()
	return NewParser(tokens).ParseExpr()
}

// NewParser creates a new parser for the given tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		pos:    0,
		errors: []error{},
	}
}

// ParseExpr parses the tokens into a single expression. Trailing tokens
// after a complete expression are an error.
func (p *Parser) ParseExpr() (Expr, error) {
	e := p.parseOr()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	if !p.isAtEnd() {
		return nil, fmt.Errorf("col %d: unexpected trailing token %v", p.peek().Col, p.peek())
	}
	return e, nil
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()

	for p.check(TokenOr) {
		p.advance()
		right := p.parseAnd()
		left = &BinaryExpr{Left: left, Op: TokenOr, Right: right}
	}

	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseEquality()

	for p.check(TokenAnd) {
		p.advance()
		right := p.parseEquality()
		left = &BinaryExpr{Left: left, Op: TokenAnd, Right: right}
	}

	return left
}

func (p *Parser) parseEquality() Expr {
	left := p.parseComparison()

	for p.check(TokenEQ) || p.check(TokenNE) {
		op := p.advance().Type
		right := p.parseComparison()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()

	for p.check(TokenLT) || p.check(TokenLE) || p.check(TokenGT) || p.check(TokenGE) {
		op := p.advance().Type
		right := p.parseAdditive()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()

	for p.check(TokenPlus) || p.check(TokenMinus) {
		op := p.advance().Type
		right := p.parseMultiplicative()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()

	for p.check(TokenStar) || p.check(TokenSlash) || p.check(TokenPercent) {
		op := p.advance().Type
		right := p.parseUnary()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseUnary() Expr {
	if p.check(TokenNot) || p.check(TokenMinus) {
		op := p.advance().Type
		right := p.parseUnary()
		return &UnaryExpr{Op: op, Right: right}
	}

	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Expr {
	switch {
	case p.check(TokenInt):
		val, _ := strconv.ParseFloat(p.advance().Value, 64)
		return &NumberLit{Value: val}

	case p.check(TokenFloat):
		val, _ := strconv.ParseFloat(p.advance().Value, 64)
		return &NumberLit{Value: val}

	case p.check(TokenString):
		return &StringLit{Value: p.advance().Value}

	case p.check(TokenTrue):
		p.advance()
		return &BoolLit{Value: true}

	case p.check(TokenFalse):
		p.advance()
		return &BoolLit{Value: false}

	case p.check(TokenIdent):
		name := p.advance().Value
		if p.check(TokenLParen) {
			return p.parseCall(name)
		}
		return &ColumnRef{Name: name}

	case p.check(TokenLParen):
		p.advance()
		e := p.parseOr()
		p.expect(TokenRParen)
		return e

	default:
		p.error(fmt.Sprintf("unexpected token: %v", p.peek()))
		return nil
	}
}

func (p *Parser) parseCall(name string) Expr {
	if !knownFuncs[name] {
		p.error(fmt.Sprintf("unknown function: %s", name))
	}
	p.expect(TokenLParen)

	args := []Expr{}
	for !p.check(TokenRParen) && !p.isAtEnd() {
		arg := p.parseOr()
		args = append(args, arg)

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}

	p.expect(TokenRParen)

	if name == "if" && len(args) != 3 {
		p.error(fmt.Sprintf("if() takes 3 arguments, got %d", len(args)))
	}

	return &CallExpr{Func: name, Args: args}
}

// Helper methods

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	if p.isAtEnd() {
		return p.peek()
	}
	p.pos++
	return p.tokens[p.pos-1]
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) expect(t TokenType) Token {
	if p.check(t) {
		return p.advance()
	}
	p.error(fmt.Sprintf("expected %v, got %v", t, p.peek().Type))
	return Token{}
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) error(msg string) {
	tok := p.peek()
	err := fmt.Errorf("col %d: %s", tok.Col, msg)
	p.errors = append(p.errors, err)
	p.advance() // skip problematic token
}
