// Command pegc compiles a JSON-shaped grammar AST into a generated JS
// parser or a type summary. With --output=parser it builds the Go-native
// VM parser in memory and prints only a note saying so; it parses no
// sample input.
//
// pegc never parses `.peg` grammar text itself — it reads the JSON AST
// a bootstrap text-to-JSON step (or any other tool following the same
// contract) produces upstream of it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/compile"
)

var (
	outputFlag    = flag.StringP("output", "t", "source", `what to produce: "source", "types", or "parser"`)
	formatFlag    = flag.StringP("format", "f", "bare", `module format for --output=source: "bare", "commonjs", or "esm"`)
	optionsFlag   = flag.String("options", "", "TOML file of compile.Options to load before applying flags")
	outFileFlag   = flag.StringP("out", "o", "", "output file, defaults to stdout")
	tokenizerFlag = flag.Bool("tokenizer", false, "emit the streaming tokenizer runtime instead of the plain parser")
	debugFlag     = flag.Bool("debug", false, "log pass tracing to stderr")
	shortHelp     = flag.BoolP("help", "h", false, "show help")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *shortHelp {
		flag.Usage()
		os.Exit(0)
	}
	if flag.NArg() > 1 {
		argError(1, "expected at most one argument (grammar JSON file), got %d", flag.NArg())
	}

	opts := compile.Options{}
	if *optionsFlag != "" {
		loaded, err := compile.LoadOptions(*optionsFlag)
		if err != nil {
			fatalf(2, "loading options: %v", err)
		}
		opts = loaded
	}
	opts.Output = compile.OutputKind(*outputFlag)
	opts.Format = *formatFlag
	opts.Tokenizer = *tokenizerFlag

	grammar, err := readGrammar(input())
	if err != nil {
		fatalf(3, "parsing grammar JSON: %v", err)
	}

	logger := zerolog.Nop()
	if *debugFlag {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	res, err := compile.NewPipeline(logger).Run(context.Background(), grammar, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile error(s):")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(4)
	}
	if len(res.Diagnostics) > 0 {
		fmt.Fprintln(os.Stderr, "warnings:")
		fmt.Fprintln(os.Stderr, res.Diagnostics.Error())
	}

	out := output(*outFileFlag)
	defer out.Close()

	switch opts.Output {
	case compile.OutputTypes:
		fmt.Fprint(out, res.Types)
	case compile.OutputParser:
		fmt.Fprintln(out, "parser output mode loads an in-memory vm.Parser; it is meant to be")
		fmt.Fprintln(out, "consumed as a library (see compile.Result.Parser), not printed.")
	default:
		fmt.Fprint(out, res.Source)
	}
}

func readGrammar(r io.Reader) (*ast.Grammar, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var g ast.Grammar
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func input() io.Reader {
	if flag.NArg() == 1 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			fatalf(2, "%v", err)
		}
		return f
	}
	return os.Stdin
}

func output(filename string) io.WriteCloser {
	if filename == "" || filename == "-" {
		return nopCloser{os.Stdout}
	}
	f, err := os.Create(filename)
	if err != nil {
		fatalf(5, "%v", err)
	}
	return f
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func fatalf(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}

func argError(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	flag.Usage()
	os.Exit(code)
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s [options] [GRAMMAR_JSON_FILE]

pegc compiles a JSON-shaped PEG grammar into a generated parser. By
default it reads the grammar from stdin and writes to stdout.

`, os.Args[0])
	flag.PrintDefaults()
}
