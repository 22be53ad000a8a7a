package passes_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/passes"
)

func TestCheckReferencesResolvesIndex(t *testing.T) {
	ref := &ast.RuleRef{Name: "digit", Index: -1}
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: ref},
		{Name: "digit", Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}},
	}}

	diags := passes.CheckReferences(g)
	require.Empty(t, diags)
	require.Equal(t, 1, ref.Index)
}

func TestCheckReferencesReportsAllUndefined(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.Sequence{Elements: []ast.Expression{
			&ast.RuleRef{Name: "missingA"},
			&ast.RuleRef{Name: "missingB"},
		}}},
	}}

	diags := passes.CheckReferences(g)
	require.Len(t, diags, 2)
	for _, d := range diags {
		require.Equal(t, ast.ErrUndefinedRule, d.Code)
		require.True(t, d.Fatal)
	}
}

func TestCheckReferencesReportsInvalidClassRange(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '9', Hi: '0'}}}},
	}}

	diags := passes.CheckReferences(g)
	require.Len(t, diags, 1)
	require.Equal(t, ast.ErrInvalidRange, diags[0].Code)
	require.True(t, diags[0].Fatal)
}

func TestCheckDuplicateRules(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "a", Expr: &ast.Literal{Value: "x"}},
		{Name: "a", Expr: &ast.Literal{Value: "y"}},
		{Name: "b", Expr: &ast.Literal{Value: "z"}},
	}}

	diags := passes.CheckDuplicateRules(g)
	require.Len(t, diags, 1)
	require.Equal(t, ast.ErrDuplicateRule, diags[0].Code)
}
