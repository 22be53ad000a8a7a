// Package vm executes a bytecode.Program directly, without going through
// the JS emitter: this is what backs the compiler's "parser" output mode,
// and it is also how the pipeline's own round-trip tests exercise
// generated bytecode without needing a JavaScript runtime.
//
// The interpreter walks the nested Then/Else instruction tree
// bytecode.Instr already carries rather than first linearizing it into
// bytecode.Flat; the tree's structure already encodes exactly what a
// flattened, address-resolved stream would (see bytecode.Flat's doc
// comment), and a tree-walking interpreter is a direct, idiomatic
// adaptation of a bytecode dispatch loop that avoids hand
// managing jump targets.
package vm

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/arcanis/pegjs/internal/bytecode"
)

// failed is the sentinel value the V-stack holds for a failed match.
type failedT struct{}

var failed = failedT{}

func isFailed(v interface{}) bool {
	_, ok := v.(failedT)
	return ok
}

// ActionFunc implements one pooled user code block. text is the raw
// action/predicate/scope source; args are the bound label values, in
// manifest order. The VM cannot evaluate the JS text itself — callers needing real
// executable semantics register one ActionFunc per code index they care
// about.
type ActionFunc func(text string, args []interface{}) (interface{}, error)

// Options configures a single Parser.
type Options struct {
	// Actions maps a code pool index to its Go implementation. A missing
	// entry falls back to returning the bound args as a []interface{}
	// (an unimplemented predicate always matches, and the @separator
	// flattening code runs natively), which is enough to exercise
	// pure-structural grammars; every execution of a missing entry is
	// logged at warn level.
	Actions map[int]ActionFunc
	Logger  zerolog.Logger
}

// Parser runs one compiled grammar's bytecode against input text.
type Parser struct {
	prog *bytecode.Program
	opts Options
}

// New returns a Parser for prog.
func New(prog *bytecode.Program, opts Options) *Parser {
	return &Parser{prog: prog, opts: opts}
}

// ParseError reports the failure with the greatest input offset seen
// during a parse, merging expected lists (deduped, order-preserving) on
// ties.
type ParseError struct {
	Offset, Line, Col int
	Expected          []string
	Found             string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d (offset %d): expected %v, found %q", e.Line, e.Col, e.Offset, e.Expected, e.Found)
}

type cursor struct {
	offset, line, col int
}

// run is the interpreter state of one ParseRule call: cursor, position
// and value stacks, and farthest-failure record. Every CALL the parse
// makes runs on this same state; call() takes each rule's result back
// off the value stack before the CALL instruction pushes it.
type run struct {
	ctx    context.Context
	input  []rune
	pos    cursor
	posSt  []cursor
	valSt  []interface{}
	silent int

	maxFail    cursor
	maxFailSet bool
	expected   map[string]bool
	expOrder   []string

	// failCache records, for a (rule, offset) pair that has already been
	// tried and failed once during this parse, that it will fail again —
	// PEG rule matching is pure in the cursor position, so a repeat call
	// can skip straight to returning failed instead of re-walking the
	// rule's bytecode. This only ever shortcuts a failure already proven
	// once, and only failures reached outside silent mode are cached, so
	// the farthest-failure expectation for it was recorded the first time
	// and skipping the rerun loses nothing a caller can observe. Bounded by failCacheMax: once full, the cache simply stops
	// accepting new entries rather than evicting (a recursive grammar
	// pathological enough to fill it runs uncached from then on, slower
	// but still correct).
	failCache map[failKey]bool

	parser *Parser
}

type failKey struct {
	rule, offset int
}

const failCacheMax = 8192

// Parse executes the grammar's start rule (rule index 0) against input
// and returns the action-transformed result, or a *ParseError.
func (p *Parser) Parse(ctx context.Context, input string) (interface{}, error) {
	return p.ParseRule(ctx, 0, input)
}

// ParseRule executes a specific rule by index, useful for testing
// sub-grammars in isolation.
func (p *Parser) ParseRule(ctx context.Context, ruleIdx int, input string) (interface{}, error) {
	r := &run{
		ctx:       ctx,
		input:     []rune(input),
		expected:  make(map[string]bool),
		failCache: make(map[failKey]bool),
		parser:    p,
	}
	v := r.call(ruleIdx)
	if isFailed(v) {
		return nil, r.failure()
	}
	if r.pos.offset < len(r.input) {
		r.recordExpected("end of input")
		return nil, r.failure()
	}
	return v, nil
}

func (r *run) failure() *ParseError {
	found := "end of input"
	if r.maxFail.offset < len(r.input) {
		found = fmt.Sprintf("%c", r.input[r.maxFail.offset])
	}
	return &ParseError{
		Offset:   r.maxFail.offset,
		Line:     r.maxFail.line,
		Col:      r.maxFail.col,
		Expected: r.expOrder,
		Found:    found,
	}
}

func (r *run) recordExpected(desc string) {
	if r.silent > 0 {
		return
	}
	if !r.maxFailSet || r.pos.offset > r.maxFail.offset {
		r.maxFail = r.pos
		r.maxFailSet = true
		r.expected = map[string]bool{}
		r.expOrder = nil
	}
	if r.pos.offset == r.maxFail.offset && !r.expected[desc] {
		r.expected[desc] = true
		r.expOrder = append(r.expOrder, desc)
	}
}

func (r *run) call(ruleIdx int) interface{} {
	key := failKey{ruleIdx, r.pos.offset}
	if r.failCache[key] {
		return failed
	}

	rp := r.parser.prog.RuleByIndex(ruleIdx)
	if rp == nil {
		panic(fmt.Sprintf("vm: no such rule index %d", ruleIdx))
	}
	v := r.exec(rp.Instrs)
	// exec leaves the rule's result on the shared value stack; take it back
	// off so the CALL that invoked this rule pushes it exactly once.
	r.valSt = r.valSt[:len(r.valSt)-1]
	if isFailed(v) && r.silent == 0 && len(r.failCache) < failCacheMax {
		r.failCache[key] = true
	}
	return v
}

// exec runs a chunk of instructions, leaving exactly one new value on the
// value stack (the chunk's net effect), per the stack model documented on
// internal/bytecode.Generator.
func (r *run) exec(instrs []bytecode.Instr) interface{} {
	for _, in := range instrs {
		if in.Op.IsBranch() {
			r.execBranch(in)
			continue
		}
		r.execOne(in)
	}
	if n := len(r.valSt); n > 0 {
		return r.valSt[n-1]
	}
	return nil
}

func (r *run) execBranch(in bytecode.Instr) {
	switch in.Op {
	case bytecode.If, bytecode.IfNot:
		n := len(r.valSt) - 1
		top := r.valSt[n]
		r.valSt = r.valSt[:n] // the raw match bool is never needed by either branch
		b, _ := top.(bool)
		take := b
		if in.Op == bytecode.IfNot {
			take = !b
		}
		if take {
			r.exec(in.Then)
		} else {
			r.exec(in.Else)
		}
	case bytecode.IfError, bytecode.IfNotError:
		top := r.valSt[len(r.valSt)-1]
		isErr := isFailed(top)
		take := isErr
		if in.Op == bytecode.IfNotError {
			take = !isErr
		}
		if take {
			r.exec(in.Then)
		} else {
			r.exec(in.Else)
		}
	case bytecode.IfArrlenMin:
		top := r.valSt[len(r.valSt)-1]
		arr, _ := top.([]interface{})
		if len(arr) >= in.Args[0] {
			r.exec(in.Then)
		} else {
			r.exec(in.Else)
		}
	}
}

func (r *run) execOne(in bytecode.Instr) {
	switch in.Op {
	case bytecode.PushCurrPos:
		r.posSt = append(r.posSt, r.pos)

	case bytecode.Pop:
		if bytecode.Stack(in.Args[0]) == bytecode.StackPos {
			r.posSt = r.posSt[:len(r.posSt)-1]
		} else {
			r.valSt = r.valSt[:len(r.valSt)-1]
		}

	case bytecode.PopCurrPos:
		n := len(r.posSt) - 1
		r.pos = r.posSt[n]
		r.posSt = r.posSt[:n]

	case bytecode.PopN:
		n := in.Args[1]
		if bytecode.Stack(in.Args[0]) == bytecode.StackPos {
			r.posSt = r.posSt[:len(r.posSt)-n]
		} else {
			r.valSt = r.valSt[:len(r.valSt)-n]
		}

	case bytecode.Load:
		r.valSt = append(r.valSt, r.parser.prog.Pool.Strings[in.Args[0]])

	case bytecode.MatchString:
		s := r.parser.prog.Pool.Strings[in.Args[0]]
		_, ok := matchLiteral(s, false, r.input, r.pos.offset)
		r.valSt = append(r.valSt, ok)

	case bytecode.MatchStringIC:
		s := r.parser.prog.Pool.Strings[in.Args[0]]
		_, ok := matchLiteral(s, true, r.input, r.pos.offset)
		r.valSt = append(r.valSt, ok)

	case bytecode.MatchClass:
		c := r.parser.prog.Pool.Classes[in.Args[0]]
		ok := r.pos.offset < len(r.input) && matchClass(c, r.input[r.pos.offset])
		r.valSt = append(r.valSt, ok)

	case bytecode.MatchAny:
		r.valSt = append(r.valSt, r.pos.offset < len(r.input))

	case bytecode.MatchEnd:
		r.valSt = append(r.valSt, r.pos.offset >= len(r.input))

	case bytecode.AcceptN:
		n := in.Args[0]
		if n == 0 {
			// Used by Text: slice from the saved checkpoint to the
			// current position, without advancing further.
			start := r.posSt[len(r.posSt)-1]
			r.posSt = r.posSt[:len(r.posSt)-1]
			r.valSt = append(r.valSt, string(r.input[start.offset:r.pos.offset]))
			return
		}
		s := string(r.input[r.pos.offset : r.pos.offset+n])
		r.advance(n)
		r.valSt = append(r.valSt, s)

	case bytecode.AcceptString:
		s := r.parser.prog.Pool.Strings[in.Args[0]]
		n := utf8.RuneCountInString(s)
		r.advance(n)
		r.valSt = append(r.valSt, s)

	case bytecode.Fail:
		exp := r.parser.prog.Pool.Expectations[in.Args[0]]
		r.recordExpected(exp.Description)
		r.valSt = append(r.valSt, failed)

	case bytecode.Call:
		r.valSt = append(r.valSt, r.call(in.Args[0]))

	case bytecode.Rule:
		r.valSt = append(r.valSt, r.call(in.Args[0]))

	case bytecode.SilentFailsOn:
		r.silent++

	case bytecode.SilentFailsOff:
		r.silent--

	case bytecode.Append:
		top := r.valSt[len(r.valSt)-1]
		arr := r.valSt[len(r.valSt)-2].([]interface{})
		r.valSt = r.valSt[:len(r.valSt)-2]
		r.valSt = append(r.valSt, append(append([]interface{}{}, arr...), top))

	case bytecode.PushSpecial:
		switch bytecode.SpecialValue(in.Args[0]) {
		case bytecode.SpecialNil:
			r.valSt = append(r.valSt, nil)
		case bytecode.SpecialFailed:
			r.valSt = append(r.valSt, failed)
		case bytecode.SpecialEmptyArray:
			r.valSt = append(r.valSt, []interface{}{})
		}

	case bytecode.Execute:
		r.execCode(in)

	default:
		panic(fmt.Sprintf("vm: unhandled opcode %s", in.Op))
	}
}

// flattenSeparated implements bytecode.SeparatorFlattenCode's JS body in
// Go: args holds the "first" element and the "rest" array of
// [separator, element] pairs a rewritten @separator repetition produces,
// and the result is the flat element list with separators dropped. The
// VM never evaluates JS text, so this is the interpreter's native
// equivalent of the generated action function the JS emitter produces
// from the same code text.
func flattenSeparated(args []interface{}) []interface{} {
	out := []interface{}{args[0]}
	rest, _ := args[1].([]interface{})
	for _, pair := range rest {
		p, ok := pair.([]interface{})
		if ok && len(p) > 1 {
			out = append(out, p[1])
		}
	}
	return out
}

func (r *run) execCode(in bytecode.Instr) {
	codeIdx, argc := in.Args[0], in.Args[3]
	code := r.parser.prog.Pool.Codes[codeIdx]

	// EXECUTE always consumes exactly one value stack entry: the child's
	// matched result for an action, or a placeholder the generator pushed
	// for a scope/predicate that has no preceding child to consume (see
	// bytecode.Generator.compileScope/compilePredicate).
	n := len(r.valSt) - 1
	top := r.valSt[n]
	r.valSt = r.valSt[:n]

	// in.Args[4:] holds one index per label: a non-negative index reads
	// that position out of top (a Sequence's own accumulator array,
	// positionally aligned with its Elements since Labeled is a
	// passthrough), and the -1 sentinel means top itself is the whole
	// labeled value (no array to index into).
	indices := in.Args[4:]
	args := make([]interface{}, argc)
	arr, isArr := top.([]interface{})
	for i := 0; i < argc; i++ {
		idx := indices[i]
		if idx < 0 {
			args[i] = top
			continue
		}
		if isArr && idx < len(arr) {
			args[i] = arr[idx]
		}
	}

	impl := r.parser.opts.Actions[codeIdx]
	isPredicate := in.Args[1] == 1
	if impl == nil {
		if code.Text == bytecode.SeparatorFlattenCode {
			r.valSt = append(r.valSt, flattenSeparated(args))
			return
		}
		r.parser.opts.Logger.Warn().Int("code", codeIdx).Msg("no action implementation registered; using args passthrough")
		if isPredicate {
			r.valSt = append(r.valSt, nil) // treat an unimplemented predicate as always matching
			return
		}
		r.valSt = append(r.valSt, args)
		return
	}

	result, err := impl(code.Text, args)
	if err != nil {
		r.parser.opts.Logger.Error().Err(err).Int("code", codeIdx).Msg("action code returned an error")
	}
	if isPredicate {
		ok, _ := result.(bool)
		if in.Args[2] == 1 { // invert, for semanticNot
			ok = !ok
		}
		if ok {
			r.valSt = append(r.valSt, nil)
		} else {
			r.valSt = append(r.valSt, failed)
		}
		return
	}
	r.valSt = append(r.valSt, result)
}

func (r *run) advance(n int) {
	for i := 0; i < n && r.pos.offset < len(r.input); i++ {
		if r.input[r.pos.offset] == '\n' {
			r.pos.line++
			r.pos.col = 0
		} else {
			r.pos.col++
		}
		r.pos.offset++
	}
}
