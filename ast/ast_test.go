package ast_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/ast"
)

func sampleGrammar() *ast.Grammar {
	return &ast.Grammar{
		Rules: []*ast.Rule{
			{
				Name: "start",
				Expr: &ast.Sequence{
					Elements: []ast.Expression{
						&ast.Literal{Value: "a"},
						&ast.Labeled{
							Label: "b",
							Expr:  &ast.OneOrMore{Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}},
						},
					},
				},
				Annotations: []ast.Annotation{
					{Kind: ast.AnnotationIf, Conditions: []string{"debug"}},
				},
			},
			{Name: "digit", Index: 1, Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}},
		},
	}
}

func TestGrammarJSONRoundTrip(t *testing.T) {
	g := sampleGrammar()
	data, err := json.Marshal(g)
	require.NoError(t, err)

	var g2 ast.Grammar
	require.NoError(t, json.Unmarshal(data, &g2))

	if diff := cmp.Diff(g, &g2, cmp.Comparer(func(a, b ast.Expression) bool {
		da, _ := json.Marshal(a)
		db, _ := json.Marshal(b)
		return string(da) == string(db)
	})); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 0, g2.Rules[0].Index)
	require.Equal(t, 1, g2.Rules[1].Index)
}

func TestStartRule(t *testing.T) {
	g := sampleGrammar()
	require.Equal(t, "start", g.StartRule().Name)

	empty := &ast.Grammar{}
	require.Nil(t, empty.StartRule())
}

func TestRuleByName(t *testing.T) {
	g := sampleGrammar()
	r, idx, ok := g.RuleByName("digit")
	require.True(t, ok)
	require.Equal(t, 1, idx)
	require.Equal(t, "digit", r.Name)

	_, _, ok = g.RuleByName("missing")
	require.False(t, ok)
}

func TestWalkCollectsRuleRefs(t *testing.T) {
	expr := &ast.Sequence{Elements: []ast.Expression{
		&ast.RuleRef{Name: "a", Index: -1},
		&ast.Choice{Alternatives: []ast.Expression{
			&ast.RuleRef{Name: "b", Index: -1},
			&ast.Literal{Value: "x"},
		}},
	}}
	refs := ast.RuleRefs(expr)
	require.Len(t, refs, 2)
	require.Equal(t, "a", refs[0].Name)
	require.Equal(t, "b", refs[1].Name)
}

func TestDiagnosticsDedupe(t *testing.T) {
	var diags ast.Diagnostics
	diags.Add(ast.Diagnostic{Code: ast.ErrUndefinedRule, Message: "rule X not found", Fatal: true})
	diags.Add(ast.Diagnostic{Code: ast.ErrUndefinedRule, Message: "rule X not found", Fatal: true})
	diags.Add(ast.Diagnostic{Code: ast.ErrUndefinedRule, Message: "rule Y not found", Fatal: true})

	err := diags.Err()
	require.Error(t, err)
	require.True(t, diags.Fatal())

	deduped, ok := err.(ast.Diagnostics)
	require.True(t, ok)
	require.Len(t, deduped, 2)
}

func TestMetaSideTable(t *testing.T) {
	m := ast.NewMeta()
	lit := &ast.Literal{Value: "a"}
	require.Equal(t, "unknown", m.Type(lit))
	require.False(t, m.HasType(lit))

	m.SetType(lit, "string")
	require.Equal(t, "string", m.Type(lit))
	require.True(t, m.HasType(lit))

	act := &ast.Action{}
	m.SetLabels(act, []ast.LabelBinding{{Label: "b", Node: lit, Type: "string"}})
	require.Len(t, m.Labels(act), 1)
}
