// Package ast defines the grammar tree that the bootstrap parser produces
// and every compiler pass consumes. It is a tagged-variant sum type per
// node kind rather than a single struct with optional fields, so that a
// pass dispatching on Go's type switch gets exhaustiveness checking from
// the type system instead of from discipline.
package ast

// Expression is the sum type of every PEG expression node. Concrete
// variants are always pointers, so a bare Expression value can be used as
// a map key in a metadata side table (see Meta) without extra plumbing.
type Expression interface {
	exprNode()
	Loc() Location
}

// Code is an opaque host-language code block: an initializer, an action,
// a semantic predicate, or a scope block. The compiler never parses its
// text; it only extracts the label names referenced from it (see
// internal/passes/labels.go).
type Code struct {
	Text     string   `json:"text"`
	Location Location `json:"location"`
}

// Literal matches a fixed string, case-sensitively or not.
type Literal struct {
	Value      string
	IgnoreCase bool
	Location   Location
}

func (*Literal) exprNode()        {}
func (n *Literal) Loc() Location  { return n.Location }

// ClassRange is one member of a character class: a single code point when
// Lo == Hi, otherwise an inclusive range.
type ClassRange struct {
	Lo, Hi rune
}

func (r ClassRange) Single() bool { return r.Lo == r.Hi }

// Class matches one code point against a set of ranges/singletons,
// optionally inverted and/or case-folded.
type Class struct {
	Parts      []ClassRange
	Inverted   bool
	IgnoreCase bool
	Location   Location
}

func (*Class) exprNode()       {}
func (n *Class) Loc() Location { return n.Location }

// Any matches a single code point; it fails at end-of-input.
type Any struct {
	Location Location
}

func (*Any) exprNode()       {}
func (n *Any) Loc() Location { return n.Location }

// End succeeds only at end-of-input and consumes nothing.
type End struct {
	Location Location
}

func (*End) exprNode()       {}
func (n *End) Loc() Location { return n.Location }

// RuleRef invokes another rule by name. Index is -1 until the reference
// checker resolves it; it is re-resolved once more after annotation
// processing, since pruning can remove the rule a reference named.
type RuleRef struct {
	Name     string
	Index    int
	Location Location
}

func (*RuleRef) exprNode()       {}
func (n *RuleRef) Loc() Location { return n.Location }

// Sequence matches each element in order; its result is the tuple of
// sub-results.
type Sequence struct {
	Elements []Expression
	Location Location
}

func (*Sequence) exprNode()       {}
func (n *Sequence) Loc() Location { return n.Location }

// Choice tries each alternative in order and commits on the first match.
type Choice struct {
	Alternatives []Expression
	Location     Location
}

func (*Choice) exprNode()       {}
func (n *Choice) Loc() Location { return n.Location }

// Optional matches Expr zero or one time.
type Optional struct {
	Expr     Expression
	Location Location
}

func (*Optional) exprNode()       {}
func (n *Optional) Loc() Location { return n.Location }

// ZeroOrMore matches Expr zero or more times, greedily.
type ZeroOrMore struct {
	Expr     Expression
	Location Location
}

func (*ZeroOrMore) exprNode()       {}
func (n *ZeroOrMore) Loc() Location { return n.Location }

// OneOrMore matches Expr one or more times, greedily.
type OneOrMore struct {
	Expr     Expression
	Location Location
}

func (*OneOrMore) exprNode()       {}
func (n *OneOrMore) Loc() Location { return n.Location }

// Text matches Expr and returns the matched substring instead of Expr's
// own result.
type Text struct {
	Expr     Expression
	Location Location
}

func (*Text) exprNode()       {}
func (n *Text) Loc() Location { return n.Location }

// SimpleAnd is positive lookahead: matches if Expr matches, consumes
// nothing.
type SimpleAnd struct {
	Expr     Expression
	Location Location
}

func (*SimpleAnd) exprNode()       {}
func (n *SimpleAnd) Loc() Location { return n.Location }

// SimpleNot is negative lookahead: matches if Expr does not match,
// consumes nothing.
type SimpleNot struct {
	Expr     Expression
	Location Location
}

func (*SimpleNot) exprNode()       {}
func (n *SimpleNot) Loc() Location { return n.Location }

// SemanticAnd is a predicate evaluated from host code; it matches if the
// code returns a truthy result.
type SemanticAnd struct {
	Code     Code
	Location Location
}

func (*SemanticAnd) exprNode()       {}
func (n *SemanticAnd) Loc() Location { return n.Location }

// SemanticNot is a predicate evaluated from host code; it matches if the
// code returns a falsy result.
type SemanticNot struct {
	Code     Code
	Location Location
}

func (*SemanticNot) exprNode()       {}
func (n *SemanticNot) Loc() Location { return n.Location }

// Labeled binds Expr's result under Label for enclosing action code.
type Labeled struct {
	Label    string
	Expr     Expression
	Location Location
}

func (*Labeled) exprNode()       {}
func (n *Labeled) Loc() Location { return n.Location }

// Action matches Expr, then runs Code; the code's return value replaces
// the result.
type Action struct {
	Expr     Expression
	Code     Code
	Location Location
}

func (*Action) exprNode()       {}
func (n *Action) Loc() Location { return n.Location }

// Scope runs Code before attempting Expr; the code block introduces
// bindings visible inside Expr.
type Scope struct {
	Expr     Expression
	Code     Code
	Location Location
}

func (*Scope) exprNode()       {}
func (n *Scope) Loc() Location { return n.Location }

// Named rebrands failure messages produced inside Expr with DisplayName.
type Named struct {
	DisplayName string
	Expr        Expression
	Location    Location
}

func (*Named) exprNode()       {}
func (n *Named) Loc() Location { return n.Location }

// Annotated wraps Expr with one or more annotations. It is how @if and
// generic annotations attach to an individual choice alternative, as
// opposed to a whole rule (which carries its annotations directly on
// Rule.Annotations).
type Annotated struct {
	Annotations []Annotation
	Expr        Expression
	Location    Location
}

func (*Annotated) exprNode()       {}
func (n *Annotated) Loc() Location { return n.Location }

// Children returns the direct subexpressions of n, in evaluation order.
// Leaf nodes (Literal, Class, Any, End, RuleRef, the two semantic
// predicates) return nil.
func Children(n Expression) []Expression {
	switch n := n.(type) {
	case *Sequence:
		return n.Elements
	case *Choice:
		return n.Alternatives
	case *Optional:
		return []Expression{n.Expr}
	case *ZeroOrMore:
		return []Expression{n.Expr}
	case *OneOrMore:
		return []Expression{n.Expr}
	case *Text:
		return []Expression{n.Expr}
	case *SimpleAnd:
		return []Expression{n.Expr}
	case *SimpleNot:
		return []Expression{n.Expr}
	case *Labeled:
		return []Expression{n.Expr}
	case *Action:
		return []Expression{n.Expr}
	case *Scope:
		return []Expression{n.Expr}
	case *Named:
		return []Expression{n.Expr}
	case *Annotated:
		return []Expression{n.Expr}
	default:
		return nil
	}
}
