// Command ember is the Ember language front end's CLI: it wires the
// lexer/parser/compiler pipeline to the execution engine's driver, running
// either a source file (`ember run <file>`) or an interactive session
// (`ember repl`), matching cmd/hey's own split between batch execution and
// a persistent REPL loop.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/emberlang/ember/block"
	"github.com/emberlang/ember/builtin"
	"github.com/emberlang/ember/compiler"
	"github.com/emberlang/ember/driver"
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/parser"
	"github.com/emberlang/ember/symbol"
	"github.com/emberlang/ember/values"
	"github.com/emberlang/ember/vm"
)

func main() {
	app := &cli.Command{
		Name:  "ember",
		Usage: "run and explore the Ember language",
		Commands: []*cli.Command{
			runCommand,
			replCommand,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if isatty.IsTerminal(os.Stdin.Fd()) {
				return runRepl()
			}
			src, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			return runFile(string(src), "<stdin>", false)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		diag.Println(err)
		os.Exit(1)
	}
}

// diag prints one-line fatal diagnostics to stderr with no timestamp or
// prefix, matching cmd/hey's own error output and spec §7's "single-line
// message to standard error."
var diag = log.New(os.Stderr, "", 0)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "run an Ember source file",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "dump VM and heap state after every step",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() != 1 {
			return fmt.Errorf("ember run: expected exactly one file argument, got %d", cmd.Args().Len())
		}
		path := cmd.Args().First()
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return runFile(string(src), path, cmd.Bool("trace"))
	},
}

var replCommand = &cli.Command{
	Name:  "repl",
	Usage: "start an interactive Ember session",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return runRepl()
	},
}

// runFile parses, compiles, and drives src to completion as one whole
// program, the batch path cmd/hey's parseAndExecuteFile plays for PHP.
// When trace is set it dumps the full driver state after every step, the
// CLI's entry point into Driver.DebugDump.
func runFile(src, filename string, trace bool) error {
	interner := symbol.New()

	program, err := parser.ParseProgram(src)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	blocks, err := compiler.Compile(program, interner)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	h := heap.New(0)
	resolver := &env.Resolver{Heap: h}
	builtins := builtin.New(h, builtin.DefaultOptions())
	defer builtins.Close()

	d := driver.New(h, blocks, resolver, driver.DefaultOptions())
	builtins.Bind(interner, func(sym symbol.Symbol, v values.Value) {
		if err := d.BindGlobal(sym, v); err != nil {
			panic(err) // frame 0 is always live right after driver.New
		}
	})

	if !trace {
		if err := d.Run(); err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
		return nil
	}

	for {
		more, err := d.Tick()
		if err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
		d.DebugDump(os.Stderr)
		if !more {
			return nil
		}
	}
}

// replSession holds the state one interactive session keeps alive across
// lines: a single heap and block store (so closures and record types
// created on one line stay valid on the next), and the global environment
// every line's VM resumes in.
type replSession struct {
	heap       *heap.Heap
	blocks     *block.Store
	resolver   *env.Resolver
	interner   *symbol.Interner
	builtins   *builtin.Registry
	globalEnv  *env.Environment
	globalRef  heap.Handle
	compiler   *compiler.Session
}

func newReplSession() *replSession {
	h := heap.New(0)
	blocks := block.NewStore()
	resolver := &env.Resolver{Heap: h}
	interner := symbol.New()
	globalEnv := env.New(env.NoParent, false)
	globalRef := h.Alloc(globalEnv)

	builtins := builtin.New(h, builtin.DefaultOptions())
	builtins.Bind(interner, func(sym symbol.Symbol, v values.Value) {
		globalEnv.Create(sym, v)
	})

	return &replSession{
		heap:      h,
		blocks:    blocks,
		resolver:  resolver,
		interner:  interner,
		builtins:  builtins,
		globalEnv: globalEnv,
		globalRef: globalRef,
		compiler:  compiler.NewSession(blocks, interner),
	}
}

func (s *replSession) close() error {
	return s.builtins.Close()
}

// eval compiles and runs one line as a fresh block resuming in the
// session's persistent global environment, returning the value its
// sequence produced.
func (s *replSession) eval(line string) (values.Value, error) {
	program, err := parser.ParseProgram(line)
	if err != nil {
		return values.Value{}, err
	}

	ref, err := s.compiler.CompileLine(program)
	if err != nil {
		return values.Value{}, err
	}

	m := vm.NewWithEnv(s.heap, s.blocks, s.resolver, ref, s.globalRef, vm.DefaultOptions())

	var result values.Value
	for !m.Halted() {
		if len(m.Stack) > 0 {
			result = m.Stack[len(m.Stack)-1]
		}
		if _, err := m.Step(); err != nil {
			return values.Value{}, err
		}
	}

	s.heap.UnmarkAll()
	s.heap.MarkReachable(s.globalRef)
	s.heap.Sweep()

	return result, nil
}

func runRepl() error {
	sess := newReplSession()
	defer sess.close()

	rl, err := readline.New("ember> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line, err = readFullExpression(rl, line)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		result, err := sess.eval(line)
		if err != nil {
			diag.Println(err)
			continue
		}
		if result.Kind != values.Nothing {
			fmt.Println(builtin.Render(sess.heap, result))
		}
	}
}

// readFullExpression accumulates further lines from rl while line has
// unbalanced braces, parentheses, or brackets — the same bracket-counting
// heuristic cmd/hey's REPL uses to let a multiline `fn`/`type`/`if` body
// span several Enter presses before it's handed to the parser.
func readFullExpression(rl *readline.Instance, line string) (string, error) {
	for needsMoreInput(line) {
		rl.SetPrompt("    > ")
		next, err := rl.Readline()
		if err != nil {
			return "", err
		}
		line += "\n" + next
	}
	rl.SetPrompt("ember> ")
	return line, nil
}

func needsMoreInput(code string) bool {
	depth := 0
	for _, ch := range code {
		switch ch {
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			depth--
		}
	}
	return depth > 0
}
