// Package emit renders a compiled bytecode.Program as JS source text,
// the "source" and "types" output modes. It does not evaluate any of the
// JS it produces — see internal/vm for the Go-native interpreter that
// backs the "parser" output mode instead.
package emit

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/bytecode"
)

//go:embed templates/runtime.js.in
var runtimePrelude string

//go:embed templates/tokenizer.js.in
var tokenizerPrelude string

// Emitter renders one compiled grammar's bytecode as JS text.
type Emitter struct {
	grammar   *ast.Grammar
	meta      *ast.Meta
	prog      *bytecode.Program
	tokenizer bool
}

// New returns an Emitter for prog, using meta for the "types" output and
// grammar for rule names and parameter declarations.
func New(grammar *ast.Grammar, meta *ast.Meta, prog *bytecode.Program) *Emitter {
	return &Emitter{grammar: grammar, meta: meta, prog: prog}
}

// WithTokenizer toggles the streaming tokenizer prelude (a next()-style
// iterator driving peg$makeState) in addition to the plain parser.
func (e *Emitter) WithTokenizer(v bool) *Emitter {
	e.tokenizer = v
	return e
}

// Source renders the full generated parser module in the requested
// format.
func (e *Emitter) Source(format Format) string {
	var body strings.Builder
	body.WriteString(runtimePrelude)
	body.WriteString("\n")
	body.WriteString(e.actionFunctions())
	body.WriteString("\n")
	body.WriteString(e.makeStateFunction())
	body.WriteString("\n")
	body.WriteString(e.parseEntryFunction())
	if e.tokenizer {
		body.WriteString("\n")
		body.WriteString(e.tokenRuleIndicesConst())
		body.WriteString(tokenizerPrelude)
		body.WriteString("\n")
	}

	var out strings.Builder
	fmt.Fprintf(&out, "// Code generated by the grammar compiler. DO NOT EDIT.\n\n")
	out.WriteString(body.String())
	out.WriteString(format.footer("parse"))
	if e.tokenizer {
		out.WriteString(format.footer2("peg$makeTokenizer"))
	}
	return out.String()
}

// actionFunctions renders one top-level function per pooled code block,
// named peg$fN and parameterized by its label manifest, so the generated
// parse function can invoke it with plain positional arguments.
func (e *Emitter) actionFunctions() string {
	var b strings.Builder
	for i, c := range e.prog.Pool.Codes {
		fmt.Fprintf(&b, "function %s(%s) {\n%s\n}\n", actionFuncName(i), strings.Join(c.Params, ", "), c.Text)
	}
	return b.String()
}

// makeStateFunction renders peg$makeState(input), a factory producing one
// set of rule-parsing closures plus the mutable cursor/failure-tracking
// state they share. parse() and peg$makeTokenizer() both call it instead
// of sharing module-level mutable state, so a tokenizer's next() can
// drive individual rule functions directly without interfering with any
// other in-flight parse over the same grammar.
func (e *Emitter) makeStateFunction() string {
	w := newOutputWriter("  ")
	w.writeil("function peg$makeState(input) {")
	w.push()
	w.writeil(`let peg$currPos = 0;`)
	w.writeil(`let peg$silentFails = 0;`)
	w.writeil(`let peg$maxFailPos = 0;`)
	w.writeil(`let peg$maxFailExpected = [];`)
	w.writeil("")
	w.writeil(`function peg$fail(description) {`)
	w.push()
	w.writeil(`if (peg$silentFails > 0) return;`)
	w.writeil(`if (peg$currPos < peg$maxFailPos) return;`)
	w.writeil(`if (peg$currPos > peg$maxFailPos) {`)
	w.push()
	w.writeil(`peg$maxFailPos = peg$currPos;`)
	w.writeil(`peg$maxFailExpected = [];`)
	w.pop()
	w.writeil(`}`)
	w.writeil(`if (peg$maxFailExpected.indexOf(description) === -1) {`)
	w.push()
	w.writeil(`peg$maxFailExpected.push(description);`)
	w.pop()
	w.writeil(`}`)
	w.pop()
	w.writeil(`}`)
	w.writeil("")

	for _, rp := range e.prog.Rules {
		w.buf.WriteString(indentBlock(genRuleFunc(e.prog, rp), w.indent, w.depth))
	}

	w.writeil(`return {`)
	w.push()
	w.writeil(`rules: [%s],`, strings.Join(ruleFuncNames(e.prog), ", "))
	w.writeil(`getPos() { return peg$currPos; },`)
	w.writeil(`setPos(pos) { peg$currPos = pos; },`)
	w.writeil(`getMaxFailPos() { return peg$maxFailPos; },`)
	w.writeil(`getMaxFailExpected() { return peg$maxFailExpected; },`)
	w.pop()
	w.writeil(`};`)
	w.pop()
	w.writeil(`}`)
	return w.String()
}

func ruleFuncNames(prog *bytecode.Program) []string {
	names := make([]string, len(prog.Rules))
	for _, rp := range prog.Rules {
		names[rp.RuleIndex] = ruleFuncName(rp.RuleIndex)
	}
	return names
}

// parseEntryFunction renders the public parse(input, options) entry
// point: it spins up one peg$makeState, drives the grammar's start rule
// to completion, and turns a short match or a failed match into a
// PegSyntaxError built from the farthest failure recorded.
func (e *Emitter) parseEntryFunction() string {
	w := newOutputWriter("  ")
	start := e.grammar.StartRule()
	startIdx := 0
	if start != nil {
		startIdx = start.Index
	}
	w.writeil("function parse(input, options) {")
	w.push()
	w.writeil(`options = options || {};`)
	w.writeil(`const peg$state = peg$makeState(input);`)
	w.writeil(`const peg$startResult = peg$state.rules[%d]();`, startIdx)
	w.writeil(`if (peg$startResult !== peg$FAILED && peg$state.getPos() === input.length) {`)
	w.push()
	w.writeil(`return peg$startResult;`)
	w.pop()
	w.writeil(`}`)
	w.writeil(`const details = peg$computePosDetails(input, peg$state.getMaxFailPos());`)
	w.writeil(`const found = peg$state.getMaxFailPos() < input.length ? input.charAt(peg$state.getMaxFailPos()) : null;`)
	w.writeil(`throw peg$buildError(peg$state.getMaxFailPos(), details.line, details.column, peg$state.getMaxFailExpected(), found);`)
	w.pop()
	w.writeil(`}`)
	return w.String()
}

// tokenRuleIndicesConst renders the list of rule indices peg$makeTokenizer
// tries at each cursor position: every rule whose body was marked
// @token, in declaration order. A grammar with no @token-marked rule
// falls back to the start rule, so tokenizer mode still does something
// sensible (one token spanning the whole input) rather than never
// producing a token at all.
func (e *Emitter) tokenRuleIndicesConst() string {
	var idxs []int
	for _, rp := range e.prog.Rules {
		if rp.IsToken {
			idxs = append(idxs, rp.RuleIndex)
		}
	}
	if len(idxs) == 0 {
		start := e.grammar.StartRule()
		startIdx := 0
		if start != nil {
			startIdx = start.Index
		}
		idxs = []int{startIdx}
	}
	parts := make([]string, len(idxs))
	for i, idx := range idxs {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("const peg$tokenRuleIndices = [%s];\n", strings.Join(parts, ", "))
}

// indentBlock re-indents a self-contained, zero-indented text block by
// depth levels of indent, so genRuleFunc's output nests correctly inside
// makeStateFunction's body without genRuleFunc needing to know its
// caller's depth.
func indentBlock(s, indent string, depth int) string {
	prefix := strings.Repeat(indent, depth)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l == "" {
			continue
		}
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}

// Types renders a plain-text summary of each rule's inferred result
// type, the "types" output mode.
func (e *Emitter) Types() string {
	var b strings.Builder
	for _, r := range e.grammar.Rules {
		fmt.Fprintf(&b, "%s: %s\n", r.Name, e.meta.Type(r.Expr))
	}
	return b.String()
}
