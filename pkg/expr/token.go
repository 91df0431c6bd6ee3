package expr

import "fmt"

// TokenType represents the type of a formula token.
type TokenType uint8

const (
	TokenEOF TokenType = iota
	TokenIdent   // column references, function names
	TokenInt     // integer literals
	TokenFloat   // float literals
	TokenString  // "quoted strings"

	// Operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEQ      // ==
	TokenNE      // !=
	TokenLT      // <
	TokenLE      // <=
	TokenGT      // >
	TokenGE      // >=
	TokenAnd     // and, &&
	TokenOr      // or, ||
	TokenNot     // not, !

	// Delimiters
	TokenLParen // (
	TokenRParen // )
	TokenComma  // ,

	// Literals
	TokenTrue  // true
	TokenFalse // false
)

// String returns the string representation of a token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenIdent:
		return "IDENT"
	case TokenInt:
		return "INT"
	case TokenFloat:
		return "FLOAT"
	case TokenString:
		return "STRING"
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenSlash:
		return "/"
	case TokenPercent:
		return "%"
	case TokenEQ:
		return "=="
	case TokenNE:
		return "!="
	case TokenLT:
		return "<"
	case TokenLE:
		return "<="
	case TokenGT:
		return ">"
	case TokenGE:
		return ">="
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenComma:
		return ","
	case TokenTrue:
		return "TRUE"
	case TokenFalse:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Col   int
}

// String returns a human-readable representation of the token for debugging.
func (t Token) String() string {
	if t.Value != "" {
		return fmt.Sprintf("%s(%s)@%d", t.Type, t.Value, t.Col)
	}
	return fmt.Sprintf("%s@%d", t.Type, t.Col)
}

// keywords maps keyword strings to token types.
var keywords = map[string]TokenType{
	"and":   TokenAnd,
	"or":    TokenOr,
	"not":   TokenNot,
	"true":  TokenTrue,
	"false": TokenFalse,
}

// LookupIdent returns the token type for an identifier.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}
