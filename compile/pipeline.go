package compile

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/bytecode"
	"github.com/arcanis/pegjs/internal/emit"
	"github.com/arcanis/pegjs/internal/passes"
	"github.com/arcanis/pegjs/internal/vm"
)

// Result is what a successful (or partially successful, non-fatal)
// compilation run produces. Exactly one of Source, Types, or Parser is
// populated, chosen by Options.Output.
type Result struct {
	Diagnostics ast.Diagnostics
	Program     *bytecode.Program

	Source string
	Types  string
	Parser *vm.Parser
}

// Pipeline runs the fixed six-pass compilation order over a grammar:
// reference check, duplicate check, annotation processing, label
// analysis, type inference, bytecode generation. Each pass's diagnostics
// accumulate; a fatal diagnostic aborts the run before the next pass.
type Pipeline struct {
	Logger zerolog.Logger
}

// NewPipeline returns a Pipeline that logs to logger. Pass zerolog.Nop()
// to run silently.
func NewPipeline(logger zerolog.Logger) *Pipeline {
	return &Pipeline{Logger: logger}
}

// Run compiles g per opts. ctx is not handed to the passes themselves:
// it is checked before each analysis pass, and a cancelled ctx stops the
// run with a fatal E-CANCELLED diagnostic.
func (p *Pipeline) Run(ctx context.Context, g *ast.Grammar, opts Options) (*Result, error) {
	runID := uuid.New().String()
	log := p.Logger.With().Str("run_id", runID).Logger()
	log.Debug().Int("rules", len(g.Rules)).Msg("compile: starting pipeline")

	res := &Result{}
	meta := ast.NewMeta()

	fatal := false
	runPass := func(name string, fn func() ast.Diagnostics) {
		if fatal {
			return
		}
		if err := ctx.Err(); err != nil {
			res.Diagnostics.Add(ast.Diagnostic{Code: "E-CANCELLED", Message: err.Error(), Fatal: true})
			fatal = true
			return
		}
		log.Debug().Str("pass", name).Msg("compile: pass start")
		diags := fn()
		res.Diagnostics = append(res.Diagnostics, diags...)
		log.Debug().Str("pass", name).Int("diagnostics", len(diags)).Msg("compile: pass done")
		if diags.Fatal() {
			fatal = true
		}
	}

	runPass("reference-check", func() ast.Diagnostics { return passes.CheckReferences(g) })
	runPass("duplicate-check", func() ast.Diagnostics { return passes.CheckDuplicateRules(g) })
	// ProcessAnnotations re-resolves references itself once it has finished
	// pruning @if-guarded rules and rewriting @separator, since pruning can
	// both remove a rule a surviving reference named and introduce fresh
	// RuleRefs (the @separator rewrite's injected separator reference).
	runPass("annotations", func() ast.Diagnostics { return passes.ProcessAnnotations(g, opts.conditionSet(), meta) })
	runPass("labels", func() ast.Diagnostics {
		passes.CollectLabels(g, meta)
		return nil
	})
	runPass("type-inference", func() ast.Diagnostics { return passes.InferTypes(g, meta) })

	if fatal {
		log.Error().Int("diagnostics", len(res.Diagnostics)).Msg("compile: pipeline aborted")
		return res, res.Diagnostics.Err()
	}

	log.Debug().Msg("compile: pass bytecode-generation start")
	prog := bytecode.NewGenerator(g, meta).Generate()
	res.Program = prog
	log.Debug().Int("rules", len(prog.Rules)).Msg("compile: pass bytecode-generation done")

	switch opts.outputKind() {
	case OutputTypes:
		res.Types = emit.New(g, meta, prog).Types()
	case OutputParser:
		res.Parser = vm.New(prog, vm.Options{Logger: log})
	default:
		res.Source = emit.New(g, meta, prog).WithTokenizer(opts.Tokenizer).Source(opts.format())
	}

	log.Debug().Msg("compile: pipeline finished")
	return res, nil
}
