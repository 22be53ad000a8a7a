package vm

import (
	"unicode"

	"github.com/arcanis/pegjs/internal/bytecode"
)

// matchClass reports whether r belongs to the pooled character class c,
// the same chars/ranges/inverted/ignoreCase model a generated character
// class matcher uses, specialized to the rune-range representation
// ast.ClassRange already carries.
func matchClass(c bytecode.ClassConst, r rune) bool {
	if c.IgnoreCase {
		r = unicode.ToLower(r)
	}
	for _, part := range c.Parts {
		lo, hi := part.Lo, part.Hi
		if c.IgnoreCase {
			lo, hi = unicode.ToLower(lo), unicode.ToLower(hi)
		}
		if r >= lo && r <= hi {
			return !c.Inverted
		}
	}
	return c.Inverted
}

func matchLiteral(want string, ignoreCase bool, input []rune, at int) (int, bool) {
	wantRunes := []rune(want)
	if at+len(wantRunes) > len(input) {
		return 0, false
	}
	for i, w := range wantRunes {
		got := input[at+i]
		if ignoreCase {
			w, got = unicode.ToLower(w), unicode.ToLower(got)
		}
		if w != got {
			return 0, false
		}
	}
	return len(wantRunes), true
}
