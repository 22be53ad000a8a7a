// Package compile wires the fixed six-pass pipeline (reference check,
// duplicate check, annotation processing, label analysis, type
// inference, bytecode generation) into a single entry point, and drives
// the JS emitter / Go-native VM off its result.
package compile

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/arcanis/pegjs/internal/emit"
	"github.com/arcanis/pegjs/internal/passes"
)

// OutputKind selects what Pipeline.Run produces from a grammar: rendered JS
// source text, a plain-text type summary, or an in-memory Go-native
// parser.
type OutputKind string

const (
	OutputSource OutputKind = "source"
	OutputTypes  OutputKind = "types"
	OutputParser OutputKind = "parser"
)

// Options configures one compilation run.
type Options struct {
	// Parameters is the @if condition set a build activates, e.g.
	// {"debug": true} to keep @if(debug)-guarded alternatives.
	Parameters map[string]bool `toml:"parameters"`

	// Tokenizer switches the emitter to the streaming lexer prelude
	// (templates/tokenizer.js.in) instead of the plain parse() runtime.
	Tokenizer bool `toml:"tokenizer"`

	// Format selects the module wrapper for OutputSource: "bare",
	// "commonjs", or "esm".
	Format string `toml:"format"`

	// Output selects what Pipeline.Run produces; defaults to OutputSource.
	Output OutputKind `toml:"output"`
}

// conditionSet adapts Options.Parameters to the shape the annotation
// pass expects.
func (o Options) conditionSet() passes.ConditionSet {
	return passes.ConditionSet(o.Parameters)
}

func (o Options) format() emit.Format {
	return emit.ParseFormat(o.Format)
}

func (o Options) outputKind() OutputKind {
	if o.Output == "" {
		return OutputSource
	}
	return o.Output
}

// LoadOptions reads a TOML options file, the way dekarrin-tunaq's server
// config is loaded from disk for its CLI front end.
func LoadOptions(path string) (Options, error) {
	var opts Options
	f, err := os.Open(path)
	if err != nil {
		return opts, err
	}
	defer f.Close()

	if _, err := toml.NewDecoder(f).Decode(&opts); err != nil {
		return opts, err
	}
	return opts, nil
}
