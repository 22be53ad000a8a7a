package emit

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/arcanis/pegjs/internal/bytecode"
)

// jsGen lowers one rule's nested Instr tree into JS statements. It walks
// the same tree internal/vm's interpreter executes, but instead of
// maintaining a runtime value/position stack it tracks the *depth* of
// those stacks at code-generation time and names each slot posN/sN by
// its depth — the generated JS then reuses those locals exactly the way
// a hand-written recursive-descent parser would, rather than allocating
// a fresh variable per value. This mirrors the variable-reuse shape
// real pegjs-family output has (s0, s1, ... reused across a rule's
// control flow) and is sound here because bytecode.Generator guarantees
// every If/IfNot/IfError/IfNotError/IfArrlenMin branch pair leaves the
// stacks at the same depth on both sides, the same invariant the tree
// walking VM interpreter (internal/vm) relies on.
type jsGen struct {
	prog           *bytecode.Program
	out            *outputWriter
	maxPos, maxVal int
}

func posVar(d int) string { return fmt.Sprintf("pos%d", d) }
func valVar(d int) string { return fmt.Sprintf("s%d", d) }

func ruleFuncName(idx int) string   { return fmt.Sprintf("peg$parseRule%d", idx) }
func actionFuncName(idx int) string { return fmt.Sprintf("peg$f%d", idx) }

func (g *jsGen) bump(posDepth, valDepth int) {
	if posDepth > g.maxPos {
		g.maxPos = posDepth
	}
	if valDepth > g.maxVal {
		g.maxVal = valDepth
	}
}

func (g *jsGen) genBlock(instrs []bytecode.Instr, posDepth, valDepth int) (int, int) {
	for _, in := range instrs {
		if in.Op.IsBranch() {
			posDepth, valDepth = g.genBranch(in, posDepth, valDepth)
			continue
		}
		posDepth, valDepth = g.genOne(in, posDepth, valDepth)
	}
	return posDepth, valDepth
}

func (g *jsGen) genBranch(in bytecode.Instr, posDepth, valDepth int) (int, int) {
	var cond string
	nextVal := valDepth

	switch in.Op {
	case bytecode.If, bytecode.IfNot:
		cond = valVar(valDepth - 1)
		if in.Op == bytecode.IfNot {
			cond = "!" + cond
		}
		nextVal = valDepth - 1 // the raw match bool is consumed by both branches
	case bytecode.IfError, bytecode.IfNotError:
		op := "==="
		if in.Op == bytecode.IfNotError {
			op = "!=="
		}
		cond = fmt.Sprintf("%s %s peg$FAILED", valVar(valDepth-1), op)
	case bytecode.IfArrlenMin:
		cond = fmt.Sprintf("%s.length >= %d", valVar(valDepth-1), in.Args[0])
	default:
		panic("emit: unreachable branch op " + in.Op.String())
	}

	g.out.writeil("if (%s) {", cond)
	g.out.push()
	pThen, vThen := g.genBlock(in.Then, posDepth, nextVal)
	g.out.pop()
	g.out.writeil("} else {")
	g.out.push()
	g.genBlock(in.Else, posDepth, nextVal)
	g.out.pop()
	g.out.writeil("}")

	return pThen, vThen
}

func (g *jsGen) genOne(in bytecode.Instr, posDepth, valDepth int) (int, int) {
	pool := g.prog.Pool

	switch in.Op {
	case bytecode.PushCurrPos:
		g.out.writeil("%s = peg$currPos;", posVar(posDepth))
		posDepth++

	case bytecode.Pop:
		if bytecode.Stack(in.Args[0]) == bytecode.StackPos {
			posDepth--
		} else {
			valDepth--
		}

	case bytecode.PopCurrPos:
		posDepth--
		g.out.writeil("peg$currPos = %s;", posVar(posDepth))

	case bytecode.PopN:
		n := in.Args[1]
		if bytecode.Stack(in.Args[0]) == bytecode.StackPos {
			posDepth -= n
		} else {
			valDepth -= n
		}

	case bytecode.Load:
		g.out.writeil("%s = %s;", valVar(valDepth), quoteJS(pool.Strings[in.Args[0]]))
		valDepth++

	case bytecode.MatchString:
		s := pool.Strings[in.Args[0]]
		g.out.writeil("%s = input.startsWith(%s, peg$currPos);", valVar(valDepth), quoteJS(s))
		valDepth++

	case bytecode.MatchStringIC:
		s := pool.Strings[in.Args[0]]
		g.out.writeil("%s = input.substr(peg$currPos, %d).toLowerCase() === %s;",
			valVar(valDepth), utf8.RuneCountInString(s), quoteJS(strings.ToLower(s)))
		valDepth++

	case bytecode.MatchClass:
		c := pool.Classes[in.Args[0]]
		g.out.writeil("%s = peg$currPos < input.length && %s.test(input.charAt(peg$currPos));",
			valVar(valDepth), classRegex(c))
		valDepth++

	case bytecode.MatchAny:
		g.out.writeil("%s = peg$currPos < input.length;", valVar(valDepth))
		valDepth++

	case bytecode.MatchEnd:
		g.out.writeil("%s = peg$currPos >= input.length;", valVar(valDepth))
		valDepth++

	case bytecode.AcceptN:
		n := in.Args[0]
		if n == 0 {
			posDepth--
			g.out.writeil("%s = input.substring(%s, peg$currPos);", valVar(valDepth), posVar(posDepth))
		} else {
			g.out.writeil("%s = input.substr(peg$currPos, %d); peg$currPos += %d;", valVar(valDepth), n, n)
		}
		valDepth++

	case bytecode.AcceptString:
		s := pool.Strings[in.Args[0]]
		n := utf8.RuneCountInString(s)
		g.out.writeil("%s = %s; peg$currPos += %d;", valVar(valDepth), quoteJS(s), n)
		valDepth++

	case bytecode.Fail:
		exp := pool.Expectations[in.Args[0]]
		g.out.writeil("peg$fail(%s); %s = peg$FAILED;", quoteJS(exp.Description), valVar(valDepth))
		valDepth++

	case bytecode.Call, bytecode.Rule:
		g.out.writeil("%s = %s();", valVar(valDepth), ruleFuncName(in.Args[0]))
		valDepth++

	case bytecode.SilentFailsOn:
		g.out.writeil("peg$silentFails++;")

	case bytecode.SilentFailsOff:
		g.out.writeil("peg$silentFails--;")

	case bytecode.Append:
		g.out.writeil("%s = %s.concat([%s]);", valVar(valDepth-2), valVar(valDepth-2), valVar(valDepth-1))
		valDepth--

	case bytecode.PushSpecial:
		var lit string
		switch bytecode.SpecialValue(in.Args[0]) {
		case bytecode.SpecialNil:
			lit = "null"
		case bytecode.SpecialFailed:
			lit = "peg$FAILED"
		case bytecode.SpecialEmptyArray:
			lit = "[]"
		}
		g.out.writeil("%s = %s;", valVar(valDepth), lit)
		valDepth++

	case bytecode.Execute:
		g.genExecute(in, valDepth-1)

	default:
		panic(fmt.Sprintf("emit: unhandled opcode %s", in.Op))
	}

	g.bump(posDepth, valDepth)
	return posDepth, valDepth
}

// genExecute lowers EXECUTE, which always consumes exactly one value
// stack slot (the child match, or the placeholder the generator pushes
// ahead of a scope/predicate) and leaves exactly one in its place, same
// as internal/vm's execCode.
func (g *jsGen) genExecute(in bytecode.Instr, slot int) {
	codeIdx, kind, invert := in.Args[0], in.Args[1], in.Args[2]
	indices := in.Args[4:]
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	call := fmt.Sprintf("%s.apply(null, peg$bindArgs(%s, [%s]))", actionFuncName(codeIdx), valVar(slot), strings.Join(parts, ", "))

	if kind == 1 { // predicate
		if invert == 1 {
			call = "!(" + call + ")"
		}
		g.out.writeil("%s = (%s) ? null : peg$FAILED;", valVar(slot), call)
		return
	}
	g.out.writeil("%s = %s;", valVar(slot), call)
}

// genRuleFunc renders one rule's full peg$parseRuleN function, including
// its local var declarations sized to the deepest stack the rule's
// bytecode reaches.
func genRuleFunc(prog *bytecode.Program, rp bytecode.RuleProgram) string {
	body := newOutputWriter("  ")
	body.depth = 1

	g := &jsGen{prog: prog, out: body}
	_, valEnd := g.genBlock(rp.Instrs, 0, 0)

	header := newOutputWriter("  ")
	header.writeil("// %s", rp.RuleName)
	header.writeil("function %s() {", ruleFuncName(rp.RuleIndex))
	header.push()
	if g.maxPos > 0 {
		header.writeil("var %s;", declList("pos", g.maxPos))
	}
	if g.maxVal > 0 {
		header.writeil("var %s;", declList("s", g.maxVal))
	}
	header.pop()

	var out strings.Builder
	out.WriteString(header.String())
	out.WriteString(body.String())
	out.WriteString(fmt.Sprintf("  return %s;\n", valVar(valEnd-1)))
	out.WriteString("}\n")
	return out.String()
}

func declList(prefix string, n int) string {
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(names, ", ")
}

func quoteJS(s string) string {
	return strconv.Quote(s)
}

// classRegex renders a character class matcher as a JS regex literal
// tested against a single character, the same technique pegjs-family
// generators use for MATCH_CLASS.
func classRegex(c bytecode.ClassConst) string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteByte('[')
	if c.Inverted {
		b.WriteByte('^')
	}
	for _, p := range c.Parts {
		b.WriteString(escapeClassRune(p.Lo))
		if !p.Single() {
			b.WriteByte('-')
			b.WriteString(escapeClassRune(p.Hi))
		}
	}
	b.WriteByte(']')
	b.WriteByte('/')
	if c.IgnoreCase {
		b.WriteByte('i')
	}
	return b.String()
}

func escapeClassRune(r rune) string {
	switch r {
	case '\\', ']', '^', '-':
		return "\\" + string(r)
	case '\n':
		return "\\n"
	case '\r':
		return "\\r"
	case '\t':
		return "\\t"
	default:
		return string(r)
	}
}
