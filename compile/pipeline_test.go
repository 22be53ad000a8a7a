package compile_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/compile"
	"github.com/arcanis/pegjs/internal/vm"
)

func mustParser(t *testing.T, g *ast.Grammar, opts compile.Options) *compile.Result {
	t.Helper()
	opts.Output = compile.OutputParser
	res, err := compile.NewPipeline(zerolog.Nop()).Run(context.Background(), g, opts)
	require.NoError(t, err)
	require.NotNil(t, res.Parser)
	return res
}

func TestPipelineLiteral(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.Literal{Value: "a"}}}}
	res := mustParser(t, g, compile.Options{})

	v, err := res.Parser.Parse(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "a", v)
}

func TestPipelineSequenceSuccessAndFarthestFailure(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.Sequence{Elements: []ast.Expression{
		&ast.Literal{Value: "a"},
		&ast.Literal{Value: "b"},
	}}}}}
	res := mustParser(t, g, compile.Options{})

	v, err := res.Parser.Parse(context.Background(), "ab")
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a", "b"}, v)

	_, err = res.Parser.Parse(context.Background(), "a")
	require.Error(t, err)
}

func TestPipelineDigitsWithAction(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.Action{
		Expr: &ast.OneOrMore{Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}},
		Code: ast.Code{Text: `return digits.join("").length`},
	}}}}
	res := mustParser(t, g, compile.Options{})
	require.NotEmpty(t, res.Program.Pool.Codes)

	v, err := res.Parser.Parse(context.Background(), "042")
	require.NoError(t, err)
	_ = v // action isn't evaluated by the Go VM without a registered vm.ActionFunc
}

func TestPipelineZeroOrMoreThenLiteral(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.Sequence{Elements: []ast.Expression{
		&ast.ZeroOrMore{Expr: &ast.Literal{Value: "a"}},
		&ast.Literal{Value: "b"},
	}}}}}
	res := mustParser(t, g, compile.Options{})

	v, err := res.Parser.Parse(context.Background(), "aaab")
	require.NoError(t, err)
	require.Equal(t, []interface{}{[]interface{}{"a", "a", "a"}, "b"}, v)
}

func TestPipelineNegativeLookaheadThenAny(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.Sequence{Elements: []ast.Expression{
		&ast.SimpleNot{Expr: &ast.Literal{Value: "x"}},
		&ast.Any{},
	}}}}}
	res := mustParser(t, g, compile.Options{})

	v, err := res.Parser.Parse(context.Background(), "y")
	require.NoError(t, err)
	require.Equal(t, []interface{}{nil, "y"}, v)

	_, err = res.Parser.Parse(context.Background(), "x")
	require.Error(t, err)
}

func TestPipelineSeparatorAnnotation(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.Annotated{
			Annotations: []ast.Annotation{{
				Kind: ast.AnnotationGeneric,
				Name: "separator",
				Params: map[string]ast.Value{
					"expr": {Kind: ast.ValueIdent, Str: "comma"},
				},
			}},
			Expr: &ast.OneOrMore{Expr: &ast.RuleRef{Name: "digit"}},
		}},
		{Name: "digit", Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}},
		{Name: "comma", Expr: &ast.Literal{Value: ","}},
	}}
	res := mustParser(t, g, compile.Options{})

	v, err := res.Parser.Parse(context.Background(), "1,2,3")
	require.NoError(t, err)
	// @separator unwraps the `+` repetition and flattens the result back
	// to a plain array of the repeated element, dropping the separators.
	require.Equal(t, []interface{}{"1", "2", "3"}, v)
}

// TestPipelineSeparatorAnnotationStringLiteral exercises the expr: "<lit>"
// form (as opposed to expr: <rule>), which annotations.go turns into a
// Literal rather than a RuleRef.
func TestPipelineSeparatorAnnotationStringLiteral(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.Annotated{
			Annotations: []ast.Annotation{{
				Kind: ast.AnnotationGeneric,
				Name: "separator",
				Params: map[string]ast.Value{
					"expr": {Kind: ast.ValueString, Str: ","},
				},
			}},
			Expr: &ast.OneOrMore{Expr: &ast.RuleRef{Name: "digit"}},
		}},
		{Name: "digit", Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}},
	}}
	res := mustParser(t, g, compile.Options{})

	v, err := res.Parser.Parse(context.Background(), "1,2,3")
	require.NoError(t, err)
	require.Equal(t, []interface{}{"1", "2", "3"}, v)
}

// TestPipelineActionLabelSkipsUnlabeledElements pins down that an
// action's labels bind to their own position in the enclosing sequence's
// result, not to the first N positions — "value" here sits at index 2,
// after an unlabeled literal at index 1.
func TestPipelineActionLabelSkipsUnlabeledElements(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.Action{
		Expr: &ast.Sequence{Elements: []ast.Expression{
			&ast.Labeled{Label: "key", Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: 'a', Hi: 'z'}}}},
			&ast.Literal{Value: ":"},
			&ast.Labeled{Label: "value", Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}},
		}},
		Code: ast.Code{Text: `return key + "=" + value`},
	}}}}
	res, err := compile.NewPipeline(zerolog.Nop()).Run(context.Background(), g, compile.Options{Output: compile.OutputParser})
	require.NoError(t, err)
	require.Len(t, res.Program.Pool.Codes, 1)

	parser := vm.New(res.Program, vm.Options{Actions: map[int]vm.ActionFunc{
		0: func(_ string, args []interface{}) (interface{}, error) {
			return fmt.Sprintf("%v=%v", args[0], args[1]), nil
		},
	}})
	v, err := parser.Parse(context.Background(), "a:5")
	require.NoError(t, err)
	require.Equal(t, "a=5", v)
}

// TestPipelineActionSingleLabelNoSequence covers the other labelIndices
// branch: an action wrapping a bare Labeled (no enclosing Sequence) gets
// its one argument from the whole match result directly.
func TestPipelineActionSingleLabelNoSequence(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.Action{
		Expr: &ast.Labeled{Label: "digits", Expr: &ast.OneOrMore{Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}}},
		Code: ast.Code{Text: `return digits.join("")`},
	}}}}
	res, err := compile.NewPipeline(zerolog.Nop()).Run(context.Background(), g, compile.Options{Output: compile.OutputParser})
	require.NoError(t, err)

	parser := vm.New(res.Program, vm.Options{Actions: map[int]vm.ActionFunc{
		0: func(_ string, args []interface{}) (interface{}, error) {
			digits := args[0].([]interface{})
			out := ""
			for _, d := range digits {
				out += d.(string)
			}
			return out, nil
		},
	}})
	v, err := parser.Parse(context.Background(), "042")
	require.NoError(t, err)
	require.Equal(t, "042", v)
}

func TestPipelineUndefinedRuleIsFatal(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.RuleRef{Name: "missing"}}}}
	_, err := compile.NewPipeline(zerolog.Nop()).Run(context.Background(), g, compile.Options{Output: compile.OutputParser})
	require.Error(t, err)
}

func TestPipelineSourceRendersAllFormats(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.Literal{Value: "a"}}}}

	for _, format := range []string{"bare", "commonjs", "esm"} {
		res, err := compile.NewPipeline(zerolog.Nop()).Run(context.Background(), g, compile.Options{Format: format})
		require.NoError(t, err)
		require.NotEmpty(t, res.Source)
	}
}

func TestPipelineTypesOutput(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: &ast.Literal{Value: "a"}}}}
	res, err := compile.NewPipeline(zerolog.Nop()).Run(context.Background(), g, compile.Options{Output: compile.OutputTypes})
	require.NoError(t, err)
	require.Contains(t, res.Types, "start:")
}
