// Package keys implements the DataKey registry: the named column
// definitions an evaluation may reference. A DataKey is either raw
// (looked up in the experiment's data table), derived (a formula over
// other keys), or a constant.
package keys

import (
	"errors"
	"fmt"
	"iter"
	"regexp"

	"github.com/leoneifler/ipet/pkg/expr"
)

// Error definitions
var (
	ErrDuplicateKey = errors.New("duplicate data key")
	ErrUnknownKey   = errors.New("unknown data key")
	ErrBadPattern   = errors.New("invalid key pattern")
	ErrBadFormula   = errors.New("invalid key formula")
)

// Kind discriminates the ways a DataKey produces its value.
type Kind uint8

const (
	Raw Kind = iota
	Derived
	Constant
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Raw:
		return "raw"
	case Derived:
		return "derived"
	case Constant:
		return "constant"
	default:
		return "unknown"
	}
}

// Definition specifies how a single column value is produced per
// instance.
type Definition struct {
	Name     string
	Kind     Kind
	Column   string    // raw: column name in the experiment data table
	Formula  expr.Expr // derived: parsed formula
	Constant float64   // constant: the literal value
}

// Dependencies returns the data keys this definition reads, empty for
// raw and constant keys.
func (d Definition) Dependencies() []string {
	if d.Kind != Derived {
		return nil
	}
	return expr.Refs(d.Formula)
}

// RawDef builds a raw key definition. An empty column means the key
// name doubles as the raw column name.
func RawDef(name, column string) Definition {
	if column == "" {
		column = name
	}
	return Definition{Name: name, Kind: Raw, Column: column}
}

// DerivedDef builds a derived key definition from a formula string.
func DerivedDef(name, formula string) (Definition, error) {
	e, err := expr.Parse(formula)
	if err != nil {
		return Definition{}, fmt.Errorf("%w: key %s: %v", ErrBadFormula, name, err)
	}
	return Definition{Name: name, Kind: Derived, Formula: e}, nil
}

// ConstDef builds a constant key definition.
func ConstDef(name string, value float64) Definition {
	return Definition{Name: name, Kind: Constant, Constant: value}
}

// Registry maps key names to definitions. Registration order is
// preserved for deterministic enumeration.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
	}
}

// Register adds a definition. Registering an existing name fails with
// ErrDuplicateKey unless override is set, in which case the previous
// definition is replaced in place.
func (r *Registry) Register(def Definition, override bool) error {
	if _, exists := r.defs[def.Name]; exists {
		if !override {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, def.Name)
		}
		r.defs[def.Name] = def
		return nil
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Resolve looks up a definition by name.
func (r *Registry) Resolve(name string) (Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	return def, nil
}

// Has reports whether a key of the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Names returns all registered key names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// MatchingKeys returns a lazy sequence of registered key names matching
// the regular expression, in registration order.
func (r *Registry) MatchingKeys(pattern string) (iter.Seq[string], error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadPattern, pattern, err)
	}
	return func(yield func(string) bool) {
		for _, name := range r.order {
			if re.MatchString(name) {
				if !yield(name) {
					return
				}
			}
		}
	}, nil
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	return len(r.order)
}
