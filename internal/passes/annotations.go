package passes

import (
	"fmt"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/bytecode"
)

// ConditionSet is the set of @if condition names that evaluate true for
// this compilation (e.g. {"debug": true} from compile.Options.Parameters).
// Any condition absent from the set evaluates false.
type ConditionSet map[string]bool

// ProcessAnnotations runs the single top-down pass over the grammar that
// both prunes @if-guarded rules/alternatives and rewrites the generic
// annotations (@token, @separator, @type). It never re-scans a subtree it
// just rewrote or pruned: an annotation introduced by rewriting another
// annotation is not itself processed.
func ProcessAnnotations(g *ast.Grammar, conds ConditionSet, meta *ast.Meta) ast.Diagnostics {
	var diags ast.Diagnostics

	kept := g.Rules[:0]
	for _, rule := range g.Rules {
		if !ifConditionsHold(rule.Annotations, conds) {
			continue
		}
		rule.Expr = processExpr(rule.Expr, conds, meta, &diags)
		for _, ann := range rule.Annotations {
			applyGenericRuleAnnotation(rule, ann, meta, &diags)
		}
		kept = append(kept, rule)
	}
	g.Rules = kept
	g.ReindexRules()

	if g.StartRule() == nil {
		diags.Add(ast.Diagnostic{
			Code:    ast.ErrEmptyGrammar,
			Message: "no rules remain after @if pruning",
			Fatal:   true,
		})
		return diags
	}

	diags = append(diags, RevalidateReferences(g)...)
	return diags
}

// processExpr walks e top-down, dropping any *ast.Annotated child whose
// @if conditions evaluate false and unwrapping the survivors, applying
// generic annotations as it goes. It does not recurse back into a node it
// just produced by unwrapping.
func processExpr(e ast.Expression, conds ConditionSet, meta *ast.Meta, diags *ast.Diagnostics) ast.Expression {
	if e == nil {
		return nil
	}

	if ann, ok := e.(*ast.Annotated); ok {
		if !ifConditionsHold(ann.Annotations, conds) {
			return nil
		}
		inner := processExpr(ann.Expr, conds, meta, diags)
		for _, a := range ann.Annotations {
			if a.Kind == ast.AnnotationGeneric {
				inner = applyGenericExprAnnotation(inner, a, meta, diags)
			}
		}
		return inner
	}

	switch n := e.(type) {
	case *ast.Sequence:
		n.Elements = processList(n.Elements, conds, meta, diags)
	case *ast.Choice:
		n.Alternatives = processList(n.Alternatives, conds, meta, diags)
	case *ast.Optional:
		n.Expr = processExpr(n.Expr, conds, meta, diags)
	case *ast.ZeroOrMore:
		n.Expr = processExpr(n.Expr, conds, meta, diags)
	case *ast.OneOrMore:
		n.Expr = processExpr(n.Expr, conds, meta, diags)
	case *ast.Text:
		n.Expr = processExpr(n.Expr, conds, meta, diags)
	case *ast.SimpleAnd:
		n.Expr = processExpr(n.Expr, conds, meta, diags)
	case *ast.SimpleNot:
		n.Expr = processExpr(n.Expr, conds, meta, diags)
	case *ast.Labeled:
		n.Expr = processExpr(n.Expr, conds, meta, diags)
	case *ast.Action:
		n.Expr = processExpr(n.Expr, conds, meta, diags)
	case *ast.Scope:
		n.Expr = processExpr(n.Expr, conds, meta, diags)
	case *ast.Named:
		n.Expr = processExpr(n.Expr, conds, meta, diags)
	}
	return e
}

func processList(list []ast.Expression, conds ConditionSet, meta *ast.Meta, diags *ast.Diagnostics) []ast.Expression {
	out := list[:0]
	for _, e := range list {
		if r := processExpr(e, conds, meta, diags); r != nil {
			out = append(out, r)
		}
	}
	return out
}

func ifConditionsHold(anns []ast.Annotation, conds ConditionSet) bool {
	for _, a := range anns {
		if a.Kind != ast.AnnotationIf {
			continue
		}
		for _, c := range a.Conditions {
			if !conds[c] {
				return false
			}
		}
	}
	return true
}

// applyGenericRuleAnnotation handles @token/@separator/@type when attached
// to a whole rule (`@token rule = ...;`) rather than to one choice
// alternative. It delegates to the same logic applyGenericExprAnnotation
// uses for the expression form, applied to the rule's top-level Expr, so
// a rule-level annotation and an expression-level one behave identically.
// Unrecognized names are reported non-fatally as E-UNKNOWN-ANNOTATION.
func applyGenericRuleAnnotation(rule *ast.Rule, ann ast.Annotation, meta *ast.Meta, diags *ast.Diagnostics) {
	if ann.Kind != ast.AnnotationGeneric {
		return
	}
	switch ann.Name {
	case "token", "separator", "type":
		rule.Expr = applyGenericExprAnnotation(rule.Expr, ann, meta, diags)
	default:
		diags.Add(ast.Diagnostic{
			Code:     ast.ErrUnknownAnnot,
			Message:  fmt.Sprintf("unknown annotation @%s on rule %q", ann.Name, rule.Name),
			Location: ann.Location,
			Fatal:    false,
		})
	}
}

// applyGenericExprAnnotation handles annotations attached to a single
// choice alternative or subexpression. @separator rewrites a `+`/`*`
// repetition into the flattened separated-list idiom (see
// rewriteSeparator); @token marks the subtree as an atomic token
// boundary for the emitter's tokenizer mode; @type attaches without
// rewriting the tree, leaving its effect to internal/passes/types.go.
func applyGenericExprAnnotation(e ast.Expression, ann ast.Annotation, meta *ast.Meta, diags *ast.Diagnostics) ast.Expression {
	switch ann.Name {
	case "separator":
		return rewriteSeparator(e, ann, diags)
	case "token":
		if meta != nil {
			meta.SetToken(e, true)
		}
		return e
	case "type":
		if meta != nil {
			if t, ok := ann.Params["type"]; ok {
				meta.SetType(e, t.String())
			}
		}
		return e
	default:
		diags.Add(ast.Diagnostic{
			Code:     ast.ErrUnknownAnnot,
			Message:  fmt.Sprintf("unknown annotation @%s", ann.Name),
			Location: ann.Location,
			Fatal:    false,
		})
		return e
	}
}

// rewriteSeparator turns `@separator(expr: <E>) X+` (or `X*`) into the
// idiomatic separated-list shape `X (E X)*`, but keeps the annotated
// node's result shape a flat Array<X> rather than the nested
// `[X, [[E,X], [E,X], ...]]` tuple a literal Sequence/ZeroOrMore
// compilation would produce: it labels the first element and the
// trailing repetition, then wraps both in an action that drops the
// separator values and concatenates what's left.
//
// expr: accepts either an identifier (a rule name, e.g.
// @separator(expr: comma)) or a string literal naming the separator
// inline (@separator(expr: ",")), per ast/grammar.go's own example.
func rewriteSeparator(e ast.Expression, ann ast.Annotation, diags *ast.Diagnostics) ast.Expression {
	sepParam, ok := ann.Params["expr"]
	if !ok {
		diags.Add(ast.Diagnostic{
			Code:     ast.ErrUnknownAnnot,
			Message:  "@separator requires an expr: <rule> or expr: \"<literal>\" parameter",
			Location: ann.Location,
			Fatal:    false,
		})
		return e
	}

	var sep ast.Expression
	switch sepParam.Kind {
	case ast.ValueIdent:
		sep = &ast.RuleRef{Name: sepParam.Str, Location: ann.Location}
	case ast.ValueString:
		sep = &ast.Literal{Value: sepParam.Str, Location: ann.Location}
	default:
		diags.Add(ast.Diagnostic{
			Code:     ast.ErrUnknownAnnot,
			Message:  "@separator's expr: parameter must be a rule name or a string literal",
			Location: ann.Location,
			Fatal:    false,
		})
		return e
	}

	elem, ok := separatorElement(e)
	if !ok {
		diags.Add(ast.Diagnostic{
			Code:     ast.ErrUnknownAnnot,
			Message:  "@separator must annotate a `+` or `*` repetition",
			Location: ann.Location,
			Fatal:    false,
		})
		return e
	}

	first := &ast.Labeled{Label: "first", Expr: elem, Location: ann.Location}
	rest := &ast.Labeled{
		Label: "rest",
		Expr: &ast.ZeroOrMore{
			Expr:     &ast.Sequence{Elements: []ast.Expression{sep, cloneExpr(elem)}, Location: ann.Location},
			Location: ann.Location,
		},
		Location: ann.Location,
	}

	return &ast.Action{
		Expr:     &ast.Sequence{Elements: []ast.Expression{first, rest}, Location: ann.Location},
		Code:     ast.Code{Text: bytecode.SeparatorFlattenCode, Location: ann.Location},
		Location: ann.Location,
	}
}

// separatorElement unwraps a `+`/`*` repetition into its repeated
// element, which is what @separator actually distributes the separator
// across; any other shape isn't something @separator knows how to
// rewrite.
func separatorElement(e ast.Expression) (ast.Expression, bool) {
	switch n := e.(type) {
	case *ast.OneOrMore:
		return n.Expr, true
	case *ast.ZeroOrMore:
		return n.Expr, true
	default:
		return nil, false
	}
}

// cloneExpr deep-copies e. The @separator rewrite needs the repeated
// element to occupy two distinct positions in the tree (once as the
// leading "first" match, once inside the trailing repetition) without
// aliasing the same node pointer twice — every pass downstream of here
// keys off node identity (Meta's side tables, label-to-sequence-index
// resolution), so two tree positions sharing one pointer would silently
// corrupt both.
func cloneExpr(e ast.Expression) ast.Expression {
	switch n := e.(type) {
	case nil:
		return nil
	case *ast.Literal:
		c := *n
		return &c
	case *ast.Class:
		c := *n
		c.Parts = append([]ast.ClassRange(nil), n.Parts...)
		return &c
	case *ast.Any:
		c := *n
		return &c
	case *ast.End:
		c := *n
		return &c
	case *ast.RuleRef:
		c := *n
		return &c
	case *ast.Sequence:
		c := *n
		c.Elements = cloneList(n.Elements)
		return &c
	case *ast.Choice:
		c := *n
		c.Alternatives = cloneList(n.Alternatives)
		return &c
	case *ast.Optional:
		c := *n
		c.Expr = cloneExpr(n.Expr)
		return &c
	case *ast.ZeroOrMore:
		c := *n
		c.Expr = cloneExpr(n.Expr)
		return &c
	case *ast.OneOrMore:
		c := *n
		c.Expr = cloneExpr(n.Expr)
		return &c
	case *ast.Text:
		c := *n
		c.Expr = cloneExpr(n.Expr)
		return &c
	case *ast.SimpleAnd:
		c := *n
		c.Expr = cloneExpr(n.Expr)
		return &c
	case *ast.SimpleNot:
		c := *n
		c.Expr = cloneExpr(n.Expr)
		return &c
	case *ast.SemanticAnd:
		c := *n
		return &c
	case *ast.SemanticNot:
		c := *n
		return &c
	case *ast.Labeled:
		c := *n
		c.Expr = cloneExpr(n.Expr)
		return &c
	case *ast.Action:
		c := *n
		c.Expr = cloneExpr(n.Expr)
		return &c
	case *ast.Scope:
		c := *n
		c.Expr = cloneExpr(n.Expr)
		return &c
	case *ast.Named:
		c := *n
		c.Expr = cloneExpr(n.Expr)
		return &c
	case *ast.Annotated:
		c := *n
		c.Annotations = append([]ast.Annotation(nil), n.Annotations...)
		c.Expr = cloneExpr(n.Expr)
		return &c
	default:
		panic(fmt.Sprintf("passes: cloneExpr: unhandled node type %T", e))
	}
}

func cloneList(list []ast.Expression) []ast.Expression {
	out := make([]ast.Expression, len(list))
	for i, e := range list {
		out[i] = cloneExpr(e)
	}
	return out
}
