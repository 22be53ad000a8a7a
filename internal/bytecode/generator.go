package bytecode

import (
	"fmt"

	"github.com/arcanis/pegjs/ast"
)

// Generator lowers a grammar's rule bodies into bytecode.RuleProgram
// instruction trees, following the compilation rules a stack-based PEG VM
// needs for each expression variant: save/restore the cursor around
// anything that can partially consume before failing, thread match
// results through the value stack, and hand predicate/action code blocks
// the ordered label manifest a prior pass (internal/passes/labels.go)
// already computed and stored on Meta.
//
// Stack model, fixed once here so every compile* helper agrees with the
// VM that executes the result (internal/vm):
//
//   - the position stack (P) holds saved cursor checkpoints, manipulated
//     only by PushCurrPos/Pop(StackPos)/PopCurrPos/PopN(StackPos, n);
//   - the value stack (V) holds match results: a real value, the
//     PushSpecial(SpecialFailed) sentinel, or (mid-sequence) an
//     accumulator array built by PushSpecial(SpecialEmptyArray)+Append;
//   - IF and IF_NOT pop the raw match boolean a MATCH_* instruction
//     pushed before choosing Then or Else; IF_ERROR, IF_NOT_ERROR and
//     IF_ARRLEN_MIN peek (do not pop) the top of V, leaving branch bodies
//     responsible for discarding it with an explicit Pop(StackVal) when
//     they don't otherwise consume it;
//   - compiling any expression leaves exactly one new value on V and
//     restores the cursor to its pre-call position on failure. Composite
//     nodes get this cursor invariant for free from their children and
//     only need their own PushCurrPos/PopCurrPos when they can fail after
//     more than one child has already consumed input (Sequence) or need
//     to try several starting points (nothing here needs that besides
//     Sequence, since Choice's alternatives already restore on their own).
type Generator struct {
	grammar *ast.Grammar
	meta    *ast.Meta
	pool    *Pool
}

// NewGenerator returns a bytecode generator for g, consulting meta for the
// label manifests and inferred types earlier passes attached to its
// nodes.
func NewGenerator(g *ast.Grammar, meta *ast.Meta) *Generator {
	return &Generator{grammar: g, meta: meta, pool: NewPool()}
}

// Generate lowers every surviving rule into a RuleProgram.
func (g *Generator) Generate() *Program {
	prog := &Program{Pool: g.pool}
	for _, r := range g.grammar.Rules {
		body := g.compileRule(r)
		prog.Rules = append(prog.Rules, RuleProgram{
			RuleIndex: r.Index,
			RuleName:  r.Name,
			Instrs:    body,
			IsToken:   g.meta.IsToken(r.Expr),
		})
	}
	return prog
}

// compileRule wraps a rule body with the save/restore envelope every call
// site (CALL) relies on: on failure the cursor is exactly where it was
// when the rule was entered.
func (g *Generator) compileRule(r *ast.Rule) []Instr {
	return seq(
		one(Instr{Op: PushCurrPos}),
		g.compileExpr(r.Expr),
		one(Instr{
			Op: IfError,
			Then: one(Instr{Op: PopCurrPos}),
			Else: one(Instr{Op: Pop, Args: []int{int(StackPos)}}),
		}),
	)
}

func (g *Generator) compileExpr(e ast.Expression) []Instr {
	switch n := e.(type) {
	case *ast.Literal:
		return g.compileLiteral(n)
	case *ast.Class:
		return g.compileClass(n)
	case *ast.Any:
		return g.compileAny(n)
	case *ast.End:
		return g.compileEnd(n)
	case *ast.RuleRef:
		return one(Instr{Op: Call, Args: []int{n.Index, 0}})
	case *ast.Sequence:
		return g.compileSequence(n)
	case *ast.Choice:
		return g.compileChoice(n)
	case *ast.Optional:
		return g.compileOptional(n)
	case *ast.ZeroOrMore:
		return g.compileZeroOrMore(n)
	case *ast.OneOrMore:
		return g.compileOneOrMore(n)
	case *ast.Text:
		return g.compileText(n)
	case *ast.SimpleAnd:
		return g.compileLookahead(n.Expr, false)
	case *ast.SimpleNot:
		return g.compileLookahead(n.Expr, true)
	case *ast.SemanticAnd:
		return g.compilePredicate(n, n.Code, false)
	case *ast.SemanticNot:
		return g.compilePredicate(n, n.Code, true)
	case *ast.Labeled:
		return g.compileExpr(n.Expr)
	case *ast.Action:
		return g.compileAction(n)
	case *ast.Scope:
		return g.compileScope(n)
	case *ast.Named:
		return g.compileNamed(n)
	case *ast.Annotated:
		// By the time bytecode generation runs, the annotation pass has
		// already stripped every Annotated wrapper whose condition
		// evaluated false and unwrapped the rest. A survivor here means
		// it reached generation unprocessed; compile through it rather
		// than lose the subtree.
		return g.compileExpr(n.Expr)
	default:
		panic(fmt.Sprintf("bytecode: unhandled expression %T", e))
	}
}

func (g *Generator) compileLiteral(n *ast.Literal) []Instr {
	op := MatchString
	text := n.Value
	if n.IgnoreCase {
		op = MatchStringIC
	}
	k := g.pool.String(text)
	expK := g.pool.Expectation(Expectation{Type: "literal", Description: quoteLiteral(n.Value, n.IgnoreCase)})
	return seq(
		one(Instr{Op: op, Args: []int{k}}),
		one(Instr{
			Op:   If,
			Then: one(Instr{Op: AcceptString, Args: []int{k}}),
			Else: one(Instr{Op: Fail, Args: []int{expK}}),
		}),
	)
}

func (g *Generator) compileClass(n *ast.Class) []Instr {
	k := g.pool.Class(ClassConst{Parts: n.Parts, Inverted: n.Inverted, IgnoreCase: n.IgnoreCase})
	expK := g.pool.Expectation(Expectation{Type: "class", Description: describeClass(n)})
	return seq(
		one(Instr{Op: MatchClass, Args: []int{k}}),
		one(Instr{
			Op:   If,
			Then: one(Instr{Op: AcceptN, Args: []int{1}}),
			Else: one(Instr{Op: Fail, Args: []int{expK}}),
		}),
	)
}

func (g *Generator) compileAny(n *ast.Any) []Instr {
	expK := g.pool.Expectation(Expectation{Type: "any", Description: "any character"})
	return seq(
		one(Instr{Op: MatchAny}),
		one(Instr{
			Op:   If,
			Then: one(Instr{Op: AcceptN, Args: []int{1}}),
			Else: one(Instr{Op: Fail, Args: []int{expK}}),
		}),
	)
}

func (g *Generator) compileEnd(n *ast.End) []Instr {
	expK := g.pool.Expectation(Expectation{Type: "end", Description: "end of input"})
	return seq(
		one(Instr{Op: MatchEnd}),
		one(Instr{
			Op:   If,
			Then: one(Instr{Op: PushSpecial, Args: []int{int(SpecialNil)}}),
			Else: one(Instr{Op: Fail, Args: []int{expK}}),
		}),
	)
}

// compileSequence threads an accumulator array through each element,
// restoring to the sequence's own start position the moment any element
// fails.
func (g *Generator) compileSequence(n *ast.Sequence) []Instr {
	if len(n.Elements) == 0 {
		return one(Instr{Op: PushSpecial, Args: []int{int(SpecialEmptyArray)}})
	}
	return seq(
		one(Instr{Op: PushCurrPos}),
		one(Instr{Op: PushSpecial, Args: []int{int(SpecialEmptyArray)}}),
		g.compileSequenceChain(n.Elements, 0),
	)
}

func (g *Generator) compileSequenceChain(elements []ast.Expression, i int) []Instr {
	if i == len(elements) {
		// Success: the accumulator on top of V is the result; discard the
		// saved start position without restoring.
		return one(Instr{Op: Pop, Args: []int{int(StackPos)}})
	}
	fail := seq(
		one(Instr{Op: Pop, Args: []int{int(StackVal)}}), // discard the failed element's result
		one(Instr{Op: Pop, Args: []int{int(StackVal)}}), // discard the accumulator built so far
		one(Instr{Op: PopCurrPos}),                       // restore to sequence start
		one(Instr{Op: PushSpecial, Args: []int{int(SpecialFailed)}}),
	)
	return seq(
		g.compileExpr(elements[i]),
		one(Instr{
			Op:   IfNotError,
			Then: seq(one(Instr{Op: Append}), g.compileSequenceChain(elements, i+1)),
			Else: fail,
		}),
	)
}

// compileChoice relies on every alternative restoring its own starting
// cursor on failure, so no extra bookkeeping is needed between tries.
func (g *Generator) compileChoice(n *ast.Choice) []Instr {
	return g.compileChoiceChain(n.Alternatives, 0)
}

func (g *Generator) compileChoiceChain(alts []ast.Expression, i int) []Instr {
	if i == len(alts)-1 {
		return g.compileExpr(alts[i])
	}
	return seq(
		g.compileExpr(alts[i]),
		one(Instr{
			Op: IfError,
			Then: seq(
				one(Instr{Op: Pop, Args: []int{int(StackVal)}}),
				g.compileChoiceChain(alts, i+1),
			),
			Else: nil,
		}),
	)
}

func (g *Generator) compileOptional(n *ast.Optional) []Instr {
	return seq(
		g.compileExpr(n.Expr),
		one(Instr{
			Op: IfError,
			Then: seq(
				one(Instr{Op: Pop, Args: []int{int(StackVal)}}),
				one(Instr{Op: PushSpecial, Args: []int{int(SpecialNil)}}),
			),
			Else: nil,
		}),
	)
}

// compileZeroOrMore loops, checkpointing the cursor before every attempt
// and stopping (without consuming the failed attempt) the first time an
// iteration fails.
func (g *Generator) compileZeroOrMore(n *ast.ZeroOrMore) []Instr {
	return seq(
		one(Instr{Op: PushSpecial, Args: []int{int(SpecialEmptyArray)}}),
		g.compileRepeatStep(n.Expr),
	)
}

// compileOneOrMore reuses the zero-or-more loop, then checks the
// resulting array has at least one element.
func (g *Generator) compileOneOrMore(n *ast.OneOrMore) []Instr {
	return seq(
		g.compileZeroOrMore(&ast.ZeroOrMore{Expr: n.Expr, Location: n.Location}),
		one(Instr{
			Op:   IfArrlenMin,
			Args: []int{1},
			Then: nil,
			Else: seq(
				one(Instr{Op: Pop, Args: []int{int(StackVal)}}),
				one(Instr{Op: PushSpecial, Args: []int{int(SpecialFailed)}}),
			),
		}),
	)
}

func (g *Generator) compileRepeatStep(e ast.Expression) []Instr {
	loopBody := seq(
		one(Instr{Op: PushCurrPos}),
		g.compileExpr(e),
		one(Instr{
			Op: IfNotError,
			Then: seq(
				one(Instr{Op: Pop, Args: []int{int(StackPos)}}),
				one(Instr{Op: Append}),
				g.compileRepeatStep(e),
			),
			Else: seq(
				one(Instr{Op: Pop, Args: []int{int(StackVal)}}),
				one(Instr{Op: PopCurrPos}),
			),
		}),
	)
	return loopBody
}

// compileText discards the structured result of Expr and substitutes the
// raw substring consumed between the saved start position and wherever
// the cursor ended up.
func (g *Generator) compileText(n *ast.Text) []Instr {
	return seq(
		one(Instr{Op: PushCurrPos}),
		g.compileExpr(n.Expr),
		one(Instr{
			Op: IfNotError,
			Then: seq(
				one(Instr{Op: Pop, Args: []int{int(StackVal)}}),
				one(Instr{Op: AcceptN, Args: []int{0}}), // VM computes the slice from the saved start to current pos
			),
			Else: one(Instr{Op: Pop, Args: []int{int(StackPos)}}),
		}),
	)
}

// compileLookahead implements & and !: the expression is tried under
// silent failure reporting, the cursor always rewinds, and success is
// inverted for negative lookahead.
func (g *Generator) compileLookahead(e ast.Expression, negate bool) []Instr {
	matchResult := Instr{
		Op:   Pop,
		Args: []int{int(StackVal)},
	}
	success := seq(one(matchResult), one(Instr{Op: PushSpecial, Args: []int{int(SpecialNil)}}))
	failure := seq(one(matchResult), one(Instr{Op: PushSpecial, Args: []int{int(SpecialFailed)}}))
	then, els := success, failure
	if negate {
		then, els = failure, success
	}
	return seq(
		one(Instr{Op: PushCurrPos}),
		one(Instr{Op: SilentFailsOn}),
		g.compileExpr(e),
		one(Instr{Op: SilentFailsOff}),
		one(Instr{Op: PopCurrPos}),
		one(Instr{Op: IfError, Then: then, Else: els}),
	)
}

func (g *Generator) compilePredicate(n ast.Expression, code ast.Code, negate bool) []Instr {
	labels := g.meta.Labels(n)
	k := g.pool.Code(CodeConst{Text: code.Text, Params: labelNames(labels)})
	invert := 0
	if negate {
		invert = 1
	}
	// Predicates have no preceding child result (they match nothing of
	// their own), so EXECUTE's placeholder is always empty and every
	// label index is the -1 whole-value sentinel: there is nothing to
	// index into. Real argument threading here is future work (see
	// Scope below, same limitation).
	args := append([]int{k, 1 /* isPredicate */, invert, len(labels)}, wholeValueIndices(len(labels))...)
	return seq(
		one(Instr{Op: PushSpecial, Args: []int{int(SpecialEmptyArray)}}), // EXECUTE always consumes one value; predicates have no preceding child result to give it
		one(Instr{Op: Execute, Args: args}),
	)
}

func (g *Generator) compileAction(n *ast.Action) []Instr {
	labels := g.meta.Labels(n)
	k := g.pool.Code(CodeConst{Text: n.Code.Text, Params: labelNames(labels)})
	args := append([]int{k, 0 /* isPredicate */, 0, len(labels)}, labelIndices(n.Expr, labels)...)
	return seq(
		one(Instr{Op: PushCurrPos}),
		g.compileExpr(n.Expr),
		one(Instr{
			Op:   IfError,
			Then: one(Instr{Op: PopCurrPos}),
			Else: seq(
				one(Instr{Op: Pop, Args: []int{int(StackPos)}}),
				one(Instr{Op: Execute, Args: args}),
			),
		}),
	)
}

func (g *Generator) compileScope(n *ast.Scope) []Instr {
	labels := g.meta.Labels(n)
	k := g.pool.Code(CodeConst{Text: n.Code.Text, Params: labelNames(labels)})
	// Same limitation as compilePredicate: scope code runs before n.Expr
	// is even attempted, so EXECUTE's placeholder carries nothing to
	// index into yet.
	args := append([]int{k, 2 /* scope */, 0, len(labels)}, wholeValueIndices(len(labels))...)
	return seq(
		one(Instr{Op: PushSpecial, Args: []int{int(SpecialEmptyArray)}}), // placeholder for EXECUTE to consume
		one(Instr{Op: Execute, Args: args}),
		one(Instr{Op: Pop, Args: []int{int(StackVal)}}), // scope code runs for bindings/side effects, not a value
		g.compileExpr(n.Expr),
	)
}

// compileNamed parses Expr with failure reporting silenced, then — only if
// it failed — records a single "other" expectation under DisplayName in
// place of whatever it would otherwise have reported, the same
// named-expression rebranding the generated on-failure handling performs.
// A successful match is unaffected; SilentFailsOn/Off bracket exactly the
// span that must not contribute its own expected entries.
func (g *Generator) compileNamed(n *ast.Named) []Instr {
	expK := g.pool.Expectation(Expectation{Type: "other", Description: n.DisplayName})
	return seq(
		one(Instr{Op: SilentFailsOn}),
		g.compileExpr(n.Expr),
		one(Instr{Op: SilentFailsOff}),
		one(Instr{
			Op: IfError,
			Then: seq(
				one(Instr{Op: Pop, Args: []int{int(StackVal)}}),
				one(Instr{Op: Fail, Args: []int{expK}}),
			),
			Else: nil,
		}),
	)
}

func labelNames(labels []ast.LabelBinding) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Label
	}
	return names
}

// labelIndices resolves each label binding to the position EXECUTE must
// read it from: when expr is the Sequence whose elements the bindings
// were collected from, that's the element's own index in the sequence's
// result array (Labeled just passes its child's result through
// unchanged, so accumulator position and Elements index line up
// one-to-one); otherwise expr's own match result already IS the single
// labeled value (e.g. `n:number { ... }` with no enclosing sequence), so
// the -1 sentinel tells execCode/peg$bindArgs to use it directly rather
// than index into it.
func labelIndices(expr ast.Expression, labels []ast.LabelBinding) []int {
	seqExpr, isSeq := expr.(*ast.Sequence)
	idx := make([]int, len(labels))
	for i, lb := range labels {
		if isSeq {
			idx[i] = findLabelIndexInSequence(seqExpr, lb.Node)
		} else {
			idx[i] = -1
		}
	}
	return idx
}

// findLabelIndexInSequence returns the index of the direct Sequence
// element labeling target, or -1 if target isn't labeled directly inside
// s (e.g. it came from an enclosing scope rather than this sequence).
func findLabelIndexInSequence(s *ast.Sequence, target ast.Expression) int {
	for i, el := range s.Elements {
		if lb, ok := el.(*ast.Labeled); ok && lb.Expr == target {
			return i
		}
	}
	return -1
}

// wholeValueIndices returns n copies of the -1 whole-value sentinel, for
// code blocks whose EXECUTE placeholder never carries per-label data.
func wholeValueIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = -1
	}
	return idx
}

func quoteLiteral(s string, ignoreCase bool) string {
	q := fmt.Sprintf("%q", s)
	if ignoreCase {
		return q + "i"
	}
	return q
}

func describeClass(n *ast.Class) string {
	var desc string
	if n.Inverted {
		desc = "not "
	}
	desc += "character class"
	return desc
}
