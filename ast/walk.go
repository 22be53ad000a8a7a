package ast

// Visitor is called once per node during a Walk, depth-first, parent
// before children. Returning false skips the node's children.
type Visitor func(n Expression) bool

// Walk performs a depth-first, pre-order traversal of n and its
// subexpressions, calling visit for each.
func Walk(n Expression, visit Visitor) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, visit)
	}
}

// WalkGrammar walks every rule's expression tree in g, in rule order.
func WalkGrammar(g *Grammar, visit Visitor) {
	for _, r := range g.Rules {
		Walk(r.Expr, visit)
	}
}

// RuleRefs returns every RuleRef node reachable from n.
func RuleRefs(n Expression) []*RuleRef {
	var refs []*RuleRef
	Walk(n, func(e Expression) bool {
		if ref, ok := e.(*RuleRef); ok {
			refs = append(refs, ref)
		}
		return true
	})
	return refs
}
