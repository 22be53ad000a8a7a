package passes

import "github.com/arcanis/pegjs/ast"

// CollectLabels walks every rule and records, on meta, the ordered label
// manifest visible to each Action/Scope/SemanticAnd/SemanticNot node: the
// labels bound earlier in the same sequence, plus whatever the nearest
// enclosing Scope already bound, in the order they were declared. A label
// declared again inside a nested scope shadows the outer one of the same
// name for everything inside that scope, matching ordinary lexical
// scoping.
func CollectLabels(g *ast.Grammar, meta *ast.Meta) {
	for _, rule := range g.Rules {
		collectLabels(rule.Expr, nil, meta)
	}
}

func collectLabels(e ast.Expression, visible []ast.LabelBinding, meta *ast.Meta) []ast.LabelBinding {
	switch n := e.(type) {
	case nil:
		return visible

	case *ast.Sequence:
		acc := visible
		for _, el := range n.Elements {
			acc = collectLabels(el, acc, meta)
		}
		return acc

	case *ast.Choice:
		// Alternatives don't see each other's labels; each starts fresh
		// from the incoming scope.
		for _, alt := range n.Alternatives {
			collectLabels(alt, visible, meta)
		}
		return visible

	case *ast.Labeled:
		inner := collectLabels(n.Expr, visible, meta)
		binding := ast.LabelBinding{Label: n.Label, Node: n.Expr, Type: typeOf(meta, n.Expr)}
		return appendShadowing(inner, binding)

	case *ast.Action:
		// Unlike Scope and the two predicate kinds below, Action's code
		// runs after matching its own Expr, so the labels visible to it
		// are whatever Expr itself just bound (commonly a Sequence of
		// Labeled elements), not the labels already in scope before it.
		inner := collectLabels(n.Expr, visible, meta)
		if meta != nil {
			meta.SetLabels(n, inner)
		}
		return visible

	case *ast.Scope:
		if meta != nil {
			meta.SetLabels(n, visible)
		}
		// The scope's own bindings become visible to its child but not to
		// anything outside the scope.
		collectLabels(n.Expr, visible, meta)
		return visible

	case *ast.SemanticAnd:
		if meta != nil {
			meta.SetLabels(n, visible)
		}
		return visible

	case *ast.SemanticNot:
		if meta != nil {
			meta.SetLabels(n, visible)
		}
		return visible

	case *ast.Optional:
		collectLabels(n.Expr, visible, meta)
		return visible
	case *ast.ZeroOrMore:
		collectLabels(n.Expr, visible, meta)
		return visible
	case *ast.OneOrMore:
		collectLabels(n.Expr, visible, meta)
		return visible
	case *ast.Text:
		collectLabels(n.Expr, visible, meta)
		return visible
	case *ast.SimpleAnd:
		collectLabels(n.Expr, visible, meta)
		return visible
	case *ast.SimpleNot:
		collectLabels(n.Expr, visible, meta)
		return visible
	case *ast.Named:
		collectLabels(n.Expr, visible, meta)
		return visible

	default:
		return visible
	}
}

// appendShadowing adds binding to visible, dropping any earlier entry
// with the same label so a reference in code always resolves to the
// nearest (last-declared) one.
func appendShadowing(visible []ast.LabelBinding, binding ast.LabelBinding) []ast.LabelBinding {
	out := make([]ast.LabelBinding, 0, len(visible)+1)
	for _, b := range visible {
		if b.Label != binding.Label {
			out = append(out, b)
		}
	}
	return append(out, binding)
}

func typeOf(meta *ast.Meta, e ast.Expression) string {
	if meta == nil {
		return "unknown"
	}
	return meta.Type(e)
}
