package emit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/bytecode"
	"github.com/arcanis/pegjs/internal/emit"
)

func ruleGrammar(expr ast.Expression) *ast.Grammar {
	return &ast.Grammar{Rules: []*ast.Rule{{Name: "start", Expr: expr, Index: 0}}}
}

func TestSourceBareContainsRuntimeAndExport(t *testing.T) {
	g := ruleGrammar(&ast.Literal{Value: "a"})
	meta := ast.NewMeta()
	meta.SetType(g.Rules[0].Expr, "string")
	prog := bytecode.NewGenerator(g, meta).Generate()

	src := emit.New(g, meta, prog).Source(emit.FormatBare)

	require.Contains(t, src, "class PegSyntaxError")
	require.Contains(t, src, "function parse(input, options)")
	require.Contains(t, src, "peg$parseRule0")
	require.Contains(t, src, "var peg$exports = { parse: parse")
}

func TestSourceCommonJSExportsModuleExports(t *testing.T) {
	g := ruleGrammar(&ast.Literal{Value: "a"})
	meta := ast.NewMeta()
	prog := bytecode.NewGenerator(g, meta).Generate()

	src := emit.New(g, meta, prog).Source(emit.FormatCommonJS)
	require.Contains(t, src, "module.exports = {")
}

func TestSourceESMUsesExportKeyword(t *testing.T) {
	g := ruleGrammar(&ast.Literal{Value: "a"})
	meta := ast.NewMeta()
	prog := bytecode.NewGenerator(g, meta).Generate()

	src := emit.New(g, meta, prog).Source(emit.FormatESM)
	require.Contains(t, src, "export {")
}

func TestSourceEmitsOneFunctionPerRule(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.RuleRef{Name: "digit", Index: 1}, Index: 0},
		{Name: "digit", Expr: &ast.Class{Parts: []ast.ClassRange{{Lo: '0', Hi: '9'}}}, Index: 1},
	}}
	meta := ast.NewMeta()
	prog := bytecode.NewGenerator(g, meta).Generate()

	src := emit.New(g, meta, prog).Source(emit.FormatBare)
	require.Contains(t, src, "peg$parseRule0")
	require.Contains(t, src, "peg$parseRule1")
	require.Equal(t, 2, strings.Count(src, "function peg$parseRule"))
}

func TestSourceRendersActionFunctionBody(t *testing.T) {
	g := ruleGrammar(&ast.Action{
		Expr: &ast.Literal{Value: "a"},
		Code: ast.Code{Text: `return text.toUpperCase()`},
	})
	meta := ast.NewMeta()
	prog := bytecode.NewGenerator(g, meta).Generate()

	src := emit.New(g, meta, prog).Source(emit.FormatBare)
	require.Contains(t, src, "function peg$f0(")
	require.Contains(t, src, `return text.toUpperCase()`)
}

func TestSourceWithTokenizerAddsIterator(t *testing.T) {
	g := ruleGrammar(&ast.Literal{Value: "a"})
	meta := ast.NewMeta()
	prog := bytecode.NewGenerator(g, meta).Generate()

	src := emit.New(g, meta, prog).WithTokenizer(true).Source(emit.FormatCommonJS)
	require.Contains(t, src, "peg$makeTokenizer")
	require.Contains(t, src, "module.exports.tokenize")
}

func TestTypesRendersOneLinePerRule(t *testing.T) {
	g := &ast.Grammar{Rules: []*ast.Rule{
		{Name: "start", Expr: &ast.Literal{Value: "a"}, Index: 0},
	}}
	meta := ast.NewMeta()
	meta.SetType(g.Rules[0].Expr, "string")
	prog := bytecode.NewGenerator(g, meta).Generate()

	types := emit.New(g, meta, prog).Types()
	require.Equal(t, "start: string\n", types)
}

func TestParseFormatDefaultsToBare(t *testing.T) {
	require.Equal(t, emit.FormatBare, emit.ParseFormat("nonsense"))
	require.Equal(t, emit.FormatCommonJS, emit.ParseFormat("commonjs"))
	require.Equal(t, emit.FormatESM, emit.ParseFormat("esm"))
}
