package bytecode

import (
	"fmt"
	"strings"

	"github.com/arcanis/pegjs/ast"
)

// ClassConst is the constant-pool representation of a character class
// matcher.
type ClassConst struct {
	Parts      []ast.ClassRange
	Inverted   bool
	IgnoreCase bool
}

func (c ClassConst) key() string {
	var b strings.Builder
	b.WriteString("class:")
	if c.Inverted {
		b.WriteByte('^')
	}
	if c.IgnoreCase {
		b.WriteByte('i')
	}
	for _, p := range c.Parts {
		fmt.Fprintf(&b, "[%d-%d]", p.Lo, p.Hi)
	}
	return b.String()
}

// Expectation is the {type, description} pair FAIL records for error
// reporting, matching the `expected` entry shape callers see.
type Expectation struct {
	Type        string // "literal", "class", "any", "end", "other"
	Description string
}

func (e Expectation) key() string { return e.Type + "\x00" + e.Description }

// CodeConst is a user action/predicate/scope code block plus the ordered
// label manifest the emitter uses to build its positional parameter list.
type CodeConst struct {
	Text   string
	Params []string
}

// SeparatorFlattenCode is the action body internal/passes/annotations.go
// installs for a rewritten @separator repetition: given the "first"
// element and the "rest" array of [separator, element] pairs the
// repetition's Sequence produces, it drops the separator values and
// returns the flat element list @separator's documented result shape
// promises. internal/vm recognizes this exact text and evaluates it
// directly (the interpreter can't run arbitrary JS); internal/emit emits
// it unchanged as a generated action function body, where it runs as
// real JS.
const SeparatorFlattenCode = `return [first].concat(rest.map(function (t) { return t[1]; }))`

func (c CodeConst) key() string { return c.Text + "\x00" + strings.Join(c.Params, ",") }

// Pool is the generator's deduplicated constant table: strings, character
// classes, failure expectations, and user code blocks. Entries are kept
// in first-occurrence order during a deterministic depth-first AST
// traversal, so that two compilations of the same grammar produce
// byte-identical pools.
type Pool struct {
	Strings      []string
	Classes      []ClassConst
	Expectations []Expectation
	Codes        []CodeConst

	stringIdx      map[string]int
	classIdx       map[string]int
	expectationIdx map[string]int
	codeIdx        map[string]int
}

// NewPool returns an empty constant pool.
func NewPool() *Pool {
	return &Pool{
		stringIdx:      make(map[string]int),
		classIdx:       make(map[string]int),
		expectationIdx: make(map[string]int),
		codeIdx:        make(map[string]int),
	}
}

// String interns s, returning its pool index.
func (p *Pool) String(s string) int {
	if ix, ok := p.stringIdx[s]; ok {
		return ix
	}
	ix := len(p.Strings)
	p.Strings = append(p.Strings, s)
	p.stringIdx[s] = ix
	return ix
}

// Class interns a character class matcher, returning its pool index.
func (p *Pool) Class(c ClassConst) int {
	k := c.key()
	if ix, ok := p.classIdx[k]; ok {
		return ix
	}
	ix := len(p.Classes)
	p.Classes = append(p.Classes, c)
	p.classIdx[k] = ix
	return ix
}

// Expectation interns a failure expectation, returning its pool index.
func (p *Pool) Expectation(e Expectation) int {
	k := e.key()
	if ix, ok := p.expectationIdx[k]; ok {
		return ix
	}
	ix := len(p.Expectations)
	p.Expectations = append(p.Expectations, e)
	p.expectationIdx[k] = ix
	return ix
}

// Code interns a user code block, returning its pool index.
func (p *Pool) Code(c CodeConst) int {
	k := c.key()
	if ix, ok := p.codeIdx[k]; ok {
		return ix
	}
	ix := len(p.Codes)
	p.Codes = append(p.Codes, c)
	p.codeIdx[k] = ix
	return ix
}
