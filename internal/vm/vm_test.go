package vm_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/bytecode"
	"github.com/arcanis/pegjs/internal/vm"
)

func compileRule(expr ast.Expression) *bytecode.Program {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: expr}}}
	return bytecode.NewGenerator(g, ast.NewMeta()).Generate()
}

func TestParseLiteral(t *testing.T) {
	prog := compileRule(&ast.Literal{Value: "a"})
	p := vm.New(prog, vm.Options{Logger: zerolog.Nop()})

	v, err := p.Parse(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "a", v)

	_, err = p.Parse(context.Background(), "b")
	require.Error(t, err)
}

func TestParseSequence(t *testing.T) {
	prog := compileRule(&ast.Sequence{Elements: []ast.Expression{
		&ast.Literal{Value: "a"},
		&ast.Literal{Value: "b"},
	}})
	p := vm.New(prog, vm.Options{Logger: zerolog.Nop()})

	v, err := p.Parse(context.Background(), "ab")
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a", "b"}, v)

	_, err = p.Parse(context.Background(), "a")
	require.Error(t, err)
	perr, ok := err.(*vm.ParseError)
	require.True(t, ok)
	require.Equal(t, 1, perr.Offset)
}

func TestParseChoiceCommitsOnFirstSuccess(t *testing.T) {
	prog := compileRule(&ast.Choice{Alternatives: []ast.Expression{
		&ast.Literal{Value: "a"},
		&ast.Literal{Value: "b"},
	}})
	p := vm.New(prog, vm.Options{Logger: zerolog.Nop()})

	v, err := p.Parse(context.Background(), "b")
	require.NoError(t, err)
	require.Equal(t, "b", v)
}

func TestParseZeroOrMore(t *testing.T) {
	prog := compileRule(&ast.Sequence{Elements: []ast.Expression{
		&ast.ZeroOrMore{Expr: &ast.Literal{Value: "a"}},
		&ast.Literal{Value: "b"},
	}})
	p := vm.New(prog, vm.Options{Logger: zerolog.Nop()})

	v, err := p.Parse(context.Background(), "aaab")
	require.NoError(t, err)
	require.Equal(t, []interface{}{[]interface{}{"a", "a", "a"}, "b"}, v)
}

func TestParseOneOrMoreRequiresOne(t *testing.T) {
	prog := compileRule(&ast.OneOrMore{Expr: &ast.Literal{Value: "a"}})
	p := vm.New(prog, vm.Options{Logger: zerolog.Nop()})

	_, err := p.Parse(context.Background(), "")
	require.Error(t, err)

	v, err := p.Parse(context.Background(), "aa")
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a", "a"}, v)
}

func TestParseNegativeLookahead(t *testing.T) {
	prog := compileRule(&ast.Sequence{Elements: []ast.Expression{
		&ast.SimpleNot{Expr: &ast.Literal{Value: "x"}},
		&ast.Any{},
	}})
	p := vm.New(prog, vm.Options{Logger: zerolog.Nop()})

	v, err := p.Parse(context.Background(), "y")
	require.NoError(t, err)
	require.Equal(t, []interface{}{nil, "y"}, v)

	_, err = p.Parse(context.Background(), "x")
	require.Error(t, err)
}

func TestParseActionTransformsResult(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.Action{
		Expr: &ast.OneOrMore{Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}},
		Code: ast.Code{Text: `return parseInt(n.join(""), 10)`},
	}}}}
	prog := bytecode.NewGenerator(g, ast.NewMeta()).Generate()

	p := vm.New(prog, vm.Options{
		Logger: zerolog.Nop(),
		Actions: map[int]vm.ActionFunc{
			0: func(text string, args []interface{}) (interface{}, error) {
				return "digits matched", nil
			},
		},
	})

	v, err := p.Parse(context.Background(), "042")
	require.NoError(t, err)
	require.Equal(t, "digits matched", v)
}

// TestParseRecursiveRuleFailureUsesCache exercises a left-recursion-free
// but still self-referential rule (digit sequences nested through a
// recursive "list" rule) whose innermost call fails and is recorded in
// the fast-fail cache; it pins down only that the results are still
// correct, since the cache is an internal shortcut with no externally
// observable difference beyond possibly-faster repeated failures.
func TestParseRecursiveRuleFailureUsesCache(t *testing.T) {
	// list <- digit ("," list)?   — a typical recursive-descent shape
	// where a trailing "," makes the innermost "list" call fail and the
	// optional group backtrack to before the comma.
	digit := &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}
	list := &ast.Rule{Name: "list"}
	list.Expr = &ast.Sequence{Elements: []ast.Expression{
		digit,
		&ast.Optional{Expr: &ast.Sequence{Elements: []ast.Expression{
			&ast.Literal{Value: ","},
			&ast.RuleRef{Name: "list", Index: 0},
		}}},
	}}
	g := &ast.Grammar{Rules: []*ast.Rule{list}}
	prog := bytecode.NewGenerator(g, ast.NewMeta()).Generate()
	p := vm.New(prog, vm.Options{Logger: zerolog.Nop()})

	v, err := p.Parse(context.Background(), "1,2,3")
	require.NoError(t, err)
	require.NotNil(t, v)

	_, err = p.Parse(context.Background(), "1,2,")
	require.Error(t, err)
}

func TestParseNamedRebrandsFailureMessage(t *testing.T) {
	prog := compileRule(&ast.Named{DisplayName: "identifier", Expr: &ast.Literal{Value: "let"}})
	p := vm.New(prog, vm.Options{Logger: zerolog.Nop()})

	_, err := p.Parse(context.Background(), "var")
	require.Error(t, err)
	perr, ok := err.(*vm.ParseError)
	require.True(t, ok)
	require.Equal(t, []string{"identifier"}, perr.Expected)
	require.NotContains(t, perr.Expected, `"let"`)
}
