package passes

import (
	"fmt"
	"strings"

	"github.com/arcanis/pegjs/ast"
)

// InferTypes assigns a symbolic result type string to every node, by
// structural propagation rules, and to every rule by iterating to a fixed
// point over the rule table (a ruleRef's type depends on the referenced
// rule's type, which can in turn depend back on it through recursion).
//
// A node keeps the first type it gets other than "unknown": an @type
// override an earlier pass stamped on it (internal/passes/annotations.go)
// or the first one a round of the loop computes. Nodes still at "unknown"
// are recomputed on every round until no rule's type changes. A composite
// node typed in an earlier round keeps the string it got then, even where
// a part of that string was "unknown" at the time.
func InferTypes(g *ast.Grammar, meta *ast.Meta) ast.Diagnostics {
	ruleTypes := make([]string, len(g.Rules))
	for i := range ruleTypes {
		ruleTypes[i] = "unknown"
	}

	for {
		changed := false
		for i, rule := range g.Rules {
			t := inferExpr(rule.Expr, meta, g, ruleTypes)
			if t != ruleTypes[i] {
				ruleTypes[i] = t
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	var diags ast.Diagnostics
	for _, rule := range g.Rules {
		ast.Walk(rule.Expr, func(n ast.Expression) bool {
			if meta.Type(n) == "unknown" {
				diags.Add(ast.Diagnostic{
					Code:     ast.ErrTypeConflict,
					Message:  fmt.Sprintf("could not resolve a type for %T", n),
					Location: n.Loc(),
					Fatal:    true,
				})
			}
			return true
		})
	}
	return diags
}

// inferExpr computes e's type, recording it on meta, and returns it.
// ruleTypes holds the current fixed-point estimate for every rule,
// indexed by Rule.Index; ruleRef nodes read from it directly rather than
// recursing into the referenced rule, which is what keeps convergence
// over cyclic grammars linear in the number of passes instead of
// infinite.
func inferExpr(e ast.Expression, meta *ast.Meta, g *ast.Grammar, ruleTypes []string) string {
	if e == nil {
		return "undefined"
	}
	if meta.HasType(e) && meta.Type(e) != "unknown" {
		// An @type annotation or an earlier round already fixed this
		// node's type; still walk children so nodes left at "unknown"
		// get another try.
		walkChildrenForTypes(e, meta, g, ruleTypes)
		return meta.Type(e)
	}

	var t string
	switch n := e.(type) {
	case *ast.Literal, *ast.Class, *ast.Any:
		t = "string"
	case *ast.End:
		t = "undefined"
	case *ast.RuleRef:
		if n.Index >= 0 && n.Index < len(ruleTypes) {
			t = ruleTypes[n.Index]
		} else {
			t = "unknown"
		}
	case *ast.Sequence:
		parts := make([]string, len(n.Elements))
		for i, el := range n.Elements {
			parts[i] = inferExpr(el, meta, g, ruleTypes)
		}
		t = "[" + strings.Join(parts, ", ") + "]"
	case *ast.Choice:
		parts := make([]string, len(n.Alternatives))
		for i, alt := range n.Alternatives {
			parts[i] = inferExpr(alt, meta, g, ruleTypes)
		}
		t = strings.Join(dedupeTypes(parts), " | ")
	case *ast.Optional:
		inner := inferExpr(n.Expr, meta, g, ruleTypes)
		t = inner + " | null"
	case *ast.ZeroOrMore:
		t = "Array<" + inferExpr(n.Expr, meta, g, ruleTypes) + ">"
	case *ast.OneOrMore:
		t = "Array<" + inferExpr(n.Expr, meta, g, ruleTypes) + ">"
	case *ast.Text:
		inferExpr(n.Expr, meta, g, ruleTypes)
		t = "string"
	case *ast.SimpleAnd:
		inferExpr(n.Expr, meta, g, ruleTypes)
		t = "undefined"
	case *ast.SimpleNot:
		inferExpr(n.Expr, meta, g, ruleTypes)
		t = "undefined"
	case *ast.SemanticAnd, *ast.SemanticNot:
		t = "undefined"
	case *ast.Labeled:
		t = inferExpr(n.Expr, meta, g, ruleTypes)
	case *ast.Action:
		inferExpr(n.Expr, meta, g, ruleTypes)
		t = "any" // the compiler never parses code, so no declared return type is available
	case *ast.Scope:
		t = inferExpr(n.Expr, meta, g, ruleTypes)
	case *ast.Named:
		t = inferExpr(n.Expr, meta, g, ruleTypes)
	case *ast.Annotated:
		t = inferExpr(n.Expr, meta, g, ruleTypes)
	default:
		t = "unknown"
	}

	meta.SetType(e, t)
	return t
}

// walkChildrenForTypes resolves every descendant of a node whose type is
// already fixed, without touching the node's own type.
func walkChildrenForTypes(e ast.Expression, meta *ast.Meta, g *ast.Grammar, ruleTypes []string) {
	for _, child := range ast.Children(e) {
		inferExpr(child, meta, g, ruleTypes)
	}
}

func dedupeTypes(types []string) []string {
	seen := make(map[string]bool, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
