package emit

// Format selects the module wrapper placed around the generated parser
// body: a bare global assignment, a CommonJS module, and an ES
// module.
type Format int

const (
	FormatBare Format = iota
	FormatCommonJS
	FormatESM
)

func (f Format) String() string {
	switch f {
	case FormatBare:
		return "bare"
	case FormatCommonJS:
		return "commonjs"
	case FormatESM:
		return "esm"
	default:
		return "bare"
	}
}

// ParseFormat maps a compile-option string onto a Format, defaulting to
// FormatBare for anything unrecognized, the same way unknown enum
// values elsewhere in this codebase fall back to their zero default
// rather than erroring at option-parse time.
func ParseFormat(s string) Format {
	switch s {
	case "commonjs":
		return FormatCommonJS
	case "esm":
		return FormatESM
	default:
		return FormatBare
	}
}

// footer appends the module-format-specific export statement after the
// shared `function parse(input, options) { ... }` body funcName names.
func (f Format) footer(funcName string) string {
	switch f {
	case FormatCommonJS:
		return "module.exports = { parse: " + funcName + ", PegSyntaxError: PegSyntaxError };\n"
	case FormatESM:
		return "export { " + funcName + " as parse, PegSyntaxError };\n"
	default:
		return "var peg$exports = { parse: " + funcName + ", PegSyntaxError: PegSyntaxError };\n"
	}
}

// footer2 exports a second top-level binding alongside parse(), used for
// the tokenizer mode's peg$makeTokenizer factory.
func (f Format) footer2(funcName string) string {
	switch f {
	case FormatCommonJS:
		return "module.exports.tokenize = " + funcName + ";\n"
	case FormatESM:
		return "export { " + funcName + " as tokenize };\n"
	default:
		return "peg$exports.tokenize = " + funcName + ";\n"
	}
}
