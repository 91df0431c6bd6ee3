// Package expr implements the formula language for derived columns.
//
// A formula is a single expression over column names, literals, and a
// small set of functions. Formulas are evaluated per row; missing
// operands propagate to a missing result, and undefined numeric
// operations (division by zero, log of a non-positive value) yield a
// missing value instead of an error.
//
// Basic usage:
//
//	e, err := expr.Parse("Nodes / SolvingTime")
//	refs := expr.Refs(e)                  // ["Nodes", "SolvingTime"]
//	s, err := expr.Evaluate(e, df, "nps") // one value per row
package expr

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
}

// Expr is the interface implemented by all expression nodes.
type Expr interface {
	Node
	expr()
}

// ColumnRef references a column of the enriched table by name.
type ColumnRef struct {
	Name string
}

func (*ColumnRef) node() {}
func (*ColumnRef) expr() {}

// NumberLit represents a numeric literal. Integers and floats share one
// representation; formulas compute in float64.
type NumberLit struct {
	Value float64
}

func (*NumberLit) node() {}
func (*NumberLit) expr() {}

// StringLit represents a string literal.
type StringLit struct {
	Value string
}

func (*StringLit) node() {}
func (*StringLit) expr() {}

// BoolLit represents a boolean literal.
type BoolLit struct {
	Value bool
}

func (*BoolLit) node() {}
func (*BoolLit) expr() {}

// BinaryExpr represents a binary expression.
// Example: Nodes / SolvingTime, Status == "timelimit"
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) node() {}
func (*BinaryExpr) expr() {}

// UnaryExpr represents a unary expression.
// Example: not solved, -Gap
type UnaryExpr struct {
	Op    TokenType
	Right Expr
}

func (*UnaryExpr) node() {}
func (*UnaryExpr) expr() {}

// CallExpr represents a function call.
// Example: log10(Nodes), min(SolvingTime, TimeLimit),
// if(Status == "timelimit", TimeLimit, SolvingTime)
type CallExpr struct {
	Func string
	Args []Expr
}

func (*CallExpr) node() {}
func (*CallExpr) expr() {}

// Refs returns the column names referenced by an expression, in first
// appearance order, without duplicates.
func Refs(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *ColumnRef:
			if !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
		case *BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *UnaryExpr:
			walk(n.Right)
		case *CallExpr:
			for _, arg := range n.Args {
				walk(arg)
			}
		}
	}
	if e != nil {
		walk(e)
	}
	return names
}
