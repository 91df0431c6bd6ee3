package expr

import (
	"strings"
	"unicode"
)

// Lexer tokenizes a single column formula.
type Lexer struct {
	input  string
	pos    int
	col    int
	tokens []Token
}

// NewLexer creates a new lexer for the given formula.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		pos:    0,
		col:    1,
		tokens: []Token{},
	}
}

// Tokenize tokenizes the entire input and returns the tokens.
func (l *Lexer) Tokenize() []Token {
	for l.pos < len(l.input) {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}

		ch := l.peek()

		switch {
		case ch == '"' || ch == '\'':
			l.scanString(ch)

		case ch == '|':
			if l.peekNext() == '|' {
				l.emit(TokenOr, "||")
				l.advance()
				l.advance()
			} else {
				l.advance() // skip unknown
			}

		case ch == '&':
			if l.peekNext() == '&' {
				l.emit(TokenAnd, "&&")
				l.advance()
				l.advance()
			} else {
				l.advance() // skip unknown
			}

		case ch == '=':
			if l.peekNext() == '=' {
				l.emit(TokenEQ, "==")
				l.advance()
				l.advance()
			} else {
				l.advance() // bare '=' has no meaning in a formula
			}

		case ch == '!':
			if l.peekNext() == '=' {
				l.emit(TokenNE, "!=")
				l.advance()
				l.advance()
			} else {
				l.emit(TokenNot, "!")
				l.advance()
			}

		case ch == '<':
			if l.peekNext() == '=' {
				l.emit(TokenLE, "<=")
				l.advance()
				l.advance()
			} else {
				l.emit(TokenLT, "<")
				l.advance()
			}

		case ch == '>':
			if l.peekNext() == '=' {
				l.emit(TokenGE, ">=")
				l.advance()
				l.advance()
			} else {
				l.emit(TokenGT, ">")
				l.advance()
			}

		case ch == '+':
			l.emit(TokenPlus, "+")
			l.advance()

		case ch == '-':
			l.emit(TokenMinus, "-")
			l.advance()

		case ch == '*':
			l.emit(TokenStar, "*")
			l.advance()

		case ch == '/':
			l.emit(TokenSlash, "/")
			l.advance()

		case ch == '%':
			l.emit(TokenPercent, "%")
			l.advance()

		case ch == '(':
			l.emit(TokenLParen, "(")
			l.advance()

		case ch == ')':
			l.emit(TokenRParen, ")")
			l.advance()

		case ch == ',':
			l.emit(TokenComma, ",")
			l.advance()

		case unicode.IsDigit(rune(ch)):
			l.scanNumber()

		case unicode.IsLetter(rune(ch)) || ch == '_':
			l.scanIdentifier()

		default:
			// Unknown character, skip it
			l.advance()
		}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Col: l.col})
	return l.tokens
}

func (l *Lexer) emit(t TokenType, value string) {
	l.tokens = append(l.tokens, Token{Type: t, Value: value, Col: l.col})
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		l.pos++
		l.col++
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' {
			l.col++
			l.pos++
		} else {
			break
		}
	}
}

func (l *Lexer) scanString(quote byte) {
	startCol := l.col
	l.advance() // skip opening quote
	start := l.pos

	for l.pos < len(l.input) && l.input[l.pos] != quote {
		l.advance()
	}

	value := l.input[start:l.pos]
	l.tokens = append(l.tokens, Token{Type: TokenString, Value: value, Col: startCol})

	if l.pos < len(l.input) {
		l.advance() // skip closing quote
	}
}

func (l *Lexer) scanNumber() {
	startCol := l.col
	start := l.pos
	isFloat := false

	for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
		l.advance()
	}

	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		if l.pos+1 < len(l.input) && unicode.IsDigit(rune(l.input[l.pos+1])) {
			isFloat = true
			l.advance() // consume the dot

			for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
				l.advance()
			}
		}
	}

	// Scientific notation: 1e-4, 2.5E+10
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		next := l.pos + 1
		if next < len(l.input) && (l.input[next] == '+' || l.input[next] == '-') {
			next++
		}
		if next < len(l.input) && unicode.IsDigit(rune(l.input[next])) {
			isFloat = true
			for l.pos < next {
				l.advance()
			}
			for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
				l.advance()
			}
		}
	}

	value := l.input[start:l.pos]

	if isFloat {
		l.tokens = append(l.tokens, Token{Type: TokenFloat, Value: value, Col: startCol})
	} else {
		l.tokens = append(l.tokens, Token{Type: TokenInt, Value: value, Col: startCol})
	}
}

func (l *Lexer) scanIdentifier() {
	startCol := l.col
	start := l.pos

	l.advance()

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_' {
			l.advance()
		} else {
			break
		}
	}

	value := l.input[start:l.pos]
	tokenType := LookupIdent(strings.ToLower(value))
	l.tokens = append(l.tokens, Token{Type: tokenType, Value: value, Col: startCol})
}
