package bytecode

// Instr is one bytecode instruction. Args carries small integer operands
// (constant pool indices, counts, rule indices); Then and Else carry the
// nested instruction chunks for the IF family, per the doc comment on
// Op.IsBranch.
type Instr struct {
	Op   Op
	Args []int
	Then []Instr
	Else []Instr
}

// Flat is the shape of one instruction in a linearized, address-resolved
// program, where branch instructions become conditional/unconditional
// jumps over absolute instruction indices. Nothing in this module builds
// or executes that form: the VM interpreter walks the Instr tree directly.
type Flat struct {
	Op   Op
	Args []int
}

// RuleProgram is the nested-chunk bytecode generated for a single rule.
type RuleProgram struct {
	RuleIndex int
	RuleName  string
	Instrs    []Instr
	// IsToken reports whether the rule's body was marked @token, making it
	// a lexeme boundary the tokenizer entry point can call directly
	// instead of only the grammar's start rule.
	IsToken bool
}

// Program is the generator's output: one RuleProgram per surviving rule,
// plus the shared constants pool.
type Program struct {
	Rules []RuleProgram
	Pool  *Pool
}

// RuleByIndex finds a rule's program by its grammar rule index.
func (p *Program) RuleByIndex(idx int) *RuleProgram {
	for i := range p.Rules {
		if p.Rules[i].RuleIndex == idx {
			return &p.Rules[i]
		}
	}
	return nil
}

// seq is a small helper for building a flat run of instructions in the
// generator: simple append calls instead of a builder type.
func seq(chunks ...[]Instr) []Instr {
	var out []Instr
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func one(i Instr) []Instr { return []Instr{i} }
