// Package bytecode lowers a grammar's expression trees into nested
// instruction trees, the minimum instruction set needed to express PEG
// semantics over a stack-based matching VM.
//
// The instruction encoding uses an opcode plus a small integer argument
// list, keeping arguments as a plain []int rather than a bit-packed
// uint64, and represents conditional branches (IF and friends) as
// structural Then/Else sub-slices rather than a flat stream with
// skip-length arguments. Both forms carry the same information (a skip
// length is simply len(Then)/len(Else)), but the tree form is far less
// error-prone to build and to walk for the two consumers this package
// feeds, both of which walk the tree recursively: the JS-emitting visitor
// (internal/emit) and the Go interpreter (internal/vm).
package bytecode

// Op is a bytecode opcode.
type Op int

const (
	PushCurrPos Op = iota
	Pop
	PopCurrPos
	PopN
	Load
	MatchString
	MatchStringIC
	MatchClass
	MatchAny
	MatchEnd
	AcceptN
	AcceptString
	Fail
	If
	IfNot
	IfError
	IfNotError
	IfArrlenMin
	Call
	Rule
	SilentFailsOn
	SilentFailsOff
	Execute

	// Append and PushSpecial are generator/VM-internal helpers needed to
	// actually assemble sequence/repetition results and to push the
	// well-known sentinel values (nil, match-failed, empty array) that
	// appear throughout the generated chunks. PushSpecial selects one of
	// those sentinels by a small SpecialValue enum; Append accumulates a
	// new value onto an in-progress result array, or short-circuits to
	// failed if either side already failed.
	Append
	PushSpecial
	opMax
)

// Stack selects which VM stack a Pop/PopN targets: POP is used both to
// discard cursor-stack entries and plain value-stack entries; the stack
// selector is carried in Args[0].
type Stack int

const (
	StackPos Stack = iota
	StackVal
)

// SpecialValue is a PushSpecial operand naming one of a small table of
// well-known values (nil, match-failed, empty array).
type SpecialValue int

const (
	SpecialNil SpecialValue = iota
	SpecialFailed
	SpecialEmptyArray
)

var opNames = [...]string{
	PushCurrPos:   "PUSH_CURR_POS",
	Pop:           "POP",
	PopCurrPos:    "POP_CURR_POS",
	PopN:          "POP_N",
	Load:          "LOAD",
	MatchString:   "MATCH_STRING",
	MatchStringIC: "MATCH_STRING_IC",
	MatchClass:    "MATCH_CLASS",
	MatchAny:      "MATCH_ANY",
	MatchEnd:      "MATCH_END",
	AcceptN:       "ACCEPT_N",
	AcceptString:  "ACCEPT_STRING",
	Fail:          "FAIL",
	If:            "IF",
	IfNot:         "IF_NOT",
	IfError:       "IF_ERROR",
	IfNotError:    "IF_NOT_ERROR",
	IfArrlenMin:   "IF_ARRLEN_MIN",
	Call:          "CALL",
	Rule:          "RULE",
	SilentFailsOn: "SILENT_FAILS_ON",
	SilentFailsOff: "SILENT_FAILS_OFF",
	Execute:       "EXECUTE",
	Append:        "APPEND",
	PushSpecial:   "PUSH_SPECIAL",
}

func (op Op) String() string {
	if op >= 0 && int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "OP(?)"
}

// IsBranch reports whether op carries Then/Else sub-chunks.
func (op Op) IsBranch() bool {
	switch op {
	case If, IfNot, IfError, IfNotError, IfArrlenMin:
		return true
	default:
		return false
	}
}
