package passes_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/passes"
)

func TestProcessAnnotationsPrunesFalseIfRule(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.Literal{Value: "a"}},
		{
			Name:        "debugOnly",
			Expr:        &ast.Literal{Value: "b"},
			Annotations: []ast.Annotation{{Kind: ast.AnnotationIf, Conditions: []string{"debug"}}},
		},
	}}

	diags := passes.ProcessAnnotations(g, passes.ConditionSet{}, ast.NewMeta())
	require.Empty(t, diags)
	require.Len(t, g.Rules, 1)
	require.Equal(t, "start", g.Rules[0].Name)
	require.Equal(t, 0, g.Rules[0].Index)
}

func TestProcessAnnotationsKeepsRuleWhenConditionHolds(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{
			Name:        "start",
			Expr:        &ast.Literal{Value: "a"},
			Annotations: []ast.Annotation{{Kind: ast.AnnotationIf, Conditions: []string{"debug"}}},
		},
	}}

	diags := passes.ProcessAnnotations(g, passes.ConditionSet{"debug": true}, ast.NewMeta())
	require.Empty(t, diags)
	require.Len(t, g.Rules, 1)
}

func TestProcessAnnotationsEmptyGrammarIsFatal(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{
			Name:        "start",
			Expr:        &ast.Literal{Value: "a"},
			Annotations: []ast.Annotation{{Kind: ast.AnnotationIf, Conditions: []string{"debug"}}},
		},
	}}

	diags := passes.ProcessAnnotations(g, passes.ConditionSet{}, ast.NewMeta())
	require.NotEmpty(t, diags)
	require.Equal(t, ast.ErrEmptyGrammar, diags[0].Code)
	require.True(t, diags[0].Fatal)
}

func TestProcessAnnotationsPrunesAlternative(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.Choice{Alternatives: []ast.Expression{
			&ast.Annotated{
				Annotations: []ast.Annotation{{Kind: ast.AnnotationIf, Conditions: []string{"legacy"}}},
				Expr:        &ast.Literal{Value: "old"},
			},
			&ast.Literal{Value: "new"},
		}}},
	}}

	diags := passes.ProcessAnnotations(g, passes.ConditionSet{}, ast.NewMeta())
	require.Empty(t, diags)
	choice := g.Rules[0].Expr.(*ast.Choice)
	require.Len(t, choice.Alternatives, 1)
	lit := choice.Alternatives[0].(*ast.Literal)
	require.Equal(t, "new", lit.Value)
}

func TestProcessAnnotationsTokenMarksExprLevelAnnotation(t *testing.T) {
	ident := &ast.Class{Parts: []ast.ClassRange{{Lo: 'a', Hi: 'z'}}}
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.Annotated{
			Annotations: []ast.Annotation{{Kind: ast.AnnotationGeneric, Name: "token"}},
			Expr:        ident,
		}},
	}}
	meta := ast.NewMeta()

	diags := passes.ProcessAnnotations(g, passes.ConditionSet{}, meta)
	require.Empty(t, diags)
	require.True(t, meta.IsToken(g.Rules[0].Expr))
}

func TestProcessAnnotationsTokenMarksWholeRule(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{
			Name:        "identifier",
			Expr:        &ast.Class{Parts: []ast.ClassRange{{Lo: 'a', Hi: 'z'}}},
			Annotations: []ast.Annotation{{Kind: ast.AnnotationGeneric, Name: "token"}},
		},
	}}
	meta := ast.NewMeta()

	diags := passes.ProcessAnnotations(g, passes.ConditionSet{}, meta)
	require.Empty(t, diags)
	require.True(t, meta.IsToken(g.Rules[0].Expr))
}

func TestProcessAnnotationsUnknownNameIsNonFatal(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{
			Name:        "start",
			Expr:        &ast.Literal{Value: "a"},
			Annotations: []ast.Annotation{{Kind: ast.AnnotationGeneric, Name: "bogus"}},
		},
	}}

	diags := passes.ProcessAnnotations(g, passes.ConditionSet{}, ast.NewMeta())
	require.Len(t, diags, 1)
	require.Equal(t, ast.ErrUnknownAnnot, diags[0].Code)
	require.False(t, diags[0].Fatal)
}

func TestProcessAnnotationsSeparatorRewrite(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.Annotated{
			Annotations: []ast.Annotation{{
				Kind: ast.AnnotationGeneric,
				Name: "separator",
				Params: map[string]ast.Value{
					"expr": {Kind: ast.ValueIdent, Str: "comma"},
				},
			}},
			Expr: &ast.OneOrMore{Expr: &ast.RuleRef{Name: "item"}},
		}},
		{Name: "item", Expr: &ast.Literal{Value: "x"}},
		{Name: "comma", Expr: &ast.Literal{Value: ","}},
	}}

	diags := passes.ProcessAnnotations(g, passes.ConditionSet{}, ast.NewMeta())
	require.Empty(t, diags)

	action, ok := g.Rules[0].Expr.(*ast.Action)
	require.True(t, ok)
	seq, ok := action.Expr.(*ast.Sequence)
	require.True(t, ok)
	require.Len(t, seq.Elements, 2)
	first, ok := seq.Elements[0].(*ast.Labeled)
	require.True(t, ok)
	require.Equal(t, "first", first.Label)
	rest, ok := seq.Elements[1].(*ast.Labeled)
	require.True(t, ok)
	require.Equal(t, "rest", rest.Label)
	_, ok = rest.Expr.(*ast.ZeroOrMore)
	require.True(t, ok)
}

// TestProcessAnnotationsSeparatorRequiresRepetition pins down that
// @separator rejects a non-repetition target rather than silently
// wrapping it, since there is no single element to distribute the
// separator across.
func TestProcessAnnotationsSeparatorRequiresRepetition(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.Annotated{
			Annotations: []ast.Annotation{{
				Kind: ast.AnnotationGeneric,
				Name: "separator",
				Params: map[string]ast.Value{
					"expr": {Kind: ast.ValueIdent, Str: "comma"},
				},
			}},
			Expr: &ast.RuleRef{Name: "item"},
		}},
		{Name: "item", Expr: &ast.Literal{Value: "x"}},
		{Name: "comma", Expr: &ast.Literal{Value: ","}},
	}}

	diags := passes.ProcessAnnotations(g, passes.ConditionSet{}, ast.NewMeta())
	require.Len(t, diags, 1)
	require.False(t, diags[0].Fatal)
	_, ok := g.Rules[0].Expr.(*ast.RuleRef)
	require.True(t, ok)
}
