// Package passes implements the ordered grammar-transformation pipeline:
// reference checking, duplicate-rule checking, annotation processing,
// label analysis, type inference, and finally bytecode generation (which
// lives in internal/bytecode but is invoked from the same pipeline, see
// compile/pipeline.go).
package passes

import (
	"fmt"

	"github.com/arcanis/pegjs/ast"
)

// CheckReferences verifies every RuleRef names a rule that exists,
// resolving RuleRef.Index in place as it goes. It collects every
// undefined reference before returning rather than stopping at the
// first one, so a single run reports the whole set of broken names
// instead of forcing one fix-and-recompile cycle per reference.
func CheckReferences(g *ast.Grammar) ast.Diagnostics {
	var diags ast.Diagnostics
	for _, rule := range g.Rules {
		ast.Walk(rule.Expr, func(n ast.Expression) bool {
			switch n := n.(type) {
			case *ast.RuleRef:
				target, idx, found := g.RuleByName(n.Name)
				if !found {
					diags.Add(ast.Diagnostic{
						Code:     ast.ErrUndefinedRule,
						Message:  fmt.Sprintf("rule %q is not defined", n.Name),
						Location: n.Location,
						Fatal:    true,
					})
					return true
				}
				n.Index = idx
				_ = target
			case *ast.Class:
				for _, part := range n.Parts {
					if part.Lo > part.Hi {
						diags.Add(ast.Diagnostic{
							Code:     ast.ErrInvalidRange,
							Message:  fmt.Sprintf("invalid character range [%c-%c]: lower bound is greater than upper bound", part.Lo, part.Hi),
							Location: n.Location,
							Fatal:    true,
						})
					}
				}
			}
			return true
		})
	}
	return diags
}

// CheckDuplicateRules reports every rule name declared more than once.
// The first declaration wins implicitly (RuleByName always returns the
// first match); later ones are reported but left in place so later
// passes still see a complete tree.
func CheckDuplicateRules(g *ast.Grammar) ast.Diagnostics {
	var diags ast.Diagnostics
	seen := make(map[string]*ast.Rule, len(g.Rules))
	for _, rule := range g.Rules {
		if prior, ok := seen[rule.Name]; ok {
			diags.Add(ast.Diagnostic{
				Code:     ast.ErrDuplicateRule,
				Message:  fmt.Sprintf("rule %q is already defined at %s", rule.Name, prior.Location),
				Location: rule.Location,
				Fatal:    true,
			})
			continue
		}
		seen[rule.Name] = rule
	}
	return diags
}

// RevalidateReferences re-runs reference resolution after a pass that can
// remove rules (the annotation processor's @if pruning). A RuleRef that
// resolved fine before pruning but now names a vanished rule must be
// reported the same way an originally-undefined one would be.
func RevalidateReferences(g *ast.Grammar) ast.Diagnostics {
	return CheckReferences(g)
}
