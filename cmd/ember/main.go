// Command ember is the CLI front end for the language: run a script,
// disassemble a chunk, or start an interactive REPL. Grounded on
// kristofer-smog/cmd/smog/main.go's subcommand set
// (run/repl/compile/disassemble/version/help), generalized from its
// hand-rolled os.Args switch to github.com/urfave/cli/v2, with
// github.com/peterh/liner for REPL editing and github.com/fatih/color +
// github.com/mattn/go-colorable for diagnostic coloring.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"github.com/kristofer/ember/pkg/bytecode"
	"github.com/kristofer/ember/pkg/compiler"
	"github.com/kristofer/ember/pkg/object"
	"github.com/kristofer/ember/pkg/vm"
)

const version = "0.1.0"

var (
	stderr  = colorable.NewColorableStderr()
	errorFg = color.New(color.FgRed, color.Bold)
)

func main() {
	app := &cli.App{
		Name:    "ember",
		Usage:   "run and inspect ember scripts",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "step through execution in the interactive debugger"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return runREPL(c)
			}
			return runFile(c, c.Args().First())
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run a script file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() == 0 {
						return cli.Exit("run: no file specified", 1)
					}
					return runFile(c, c.Args().First())
				},
			},
			{
				Name:  "repl",
				Usage: "start the interactive REPL",
				Action: func(c *cli.Context) error {
					return runREPL(c)
				},
			},
			{
				Name:      "compile",
				Usage:     "compile a script to a disassembly listing",
				ArgsUsage: "<input>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "o", Usage: "output file (default: stdout)"},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() == 0 {
						return cli.Exit("compile: no file specified", 1)
					}
					return compileFile(c, c.Args().First(), c.String("o"))
				},
			},
			{
				Name:      "disassemble",
				Aliases:   []string{"disasm"},
				Usage:     "disassemble a script's compiled chunks",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() == 0 {
						return cli.Exit("disassemble: no file specified", 1)
					}
					return compileFile(c, c.Args().First(), "")
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		errorFg.Fprintf(stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// newVM wires a VM with CompileSource/ReadFile so `import` can recompile
// sibling source files against the same string pool (spec §4.6).
func newVM() *vm.VM {
	v := vm.New()
	v.CompileSource = func(source, name string) (*object.Chunk, error) {
		return compiler.Compile(source, name, v.Pool)
	}
	v.ReadFile = func(path string) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return v
}

func runFile(c *cli.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %s", path, err), 1)
	}

	v := newVM()
	chunk, err := compiler.Compile(string(data), filepath.Base(path), v.Pool)
	if err != nil {
		return cli.Exit(fmt.Sprintf("compile error: %s", err), 1)
	}

	if c.Bool("debug") {
		dbg := vm.NewDebugger(v, os.Stdin, os.Stdout)
		dbg.SetStepMode(true)
		if _, err := v.RunWithDebugger(chunk, dbg); err != nil {
			return cli.Exit(fmt.Sprintf("runtime error: %s", err), 1)
		}
		return nil
	}

	if _, err := v.Run(chunk); err != nil {
		return cli.Exit(fmt.Sprintf("runtime error: %s", err), 1)
	}
	return nil
}

func compileFile(c *cli.Context, inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %s", inputPath, err), 1)
	}
	v := newVM()
	chunk, err := compiler.Compile(string(data), filepath.Base(inputPath), v.Pool)
	if err != nil {
		return cli.Exit(fmt.Sprintf("compile error: %s", err), 1)
	}

	listing := bytecode.Disassemble(chunk)
	if outputPath == "" {
		fmt.Println(listing)
		return nil
	}
	return os.WriteFile(outputPath, []byte(listing), 0o644)
}

func runREPL(c *cli.Context) error {
	fmt.Printf("ember %s\n", version)
	fmt.Println("Type :quit or :exit to leave.")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	v := newVM()
	historyPath := replHistoryPath()
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		input, err := line.Prompt("ember> ")
		if err != nil {
			break
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == ":quit" || trimmed == ":exit" {
			break
		}
		if trimmed == "" {
			continue
		}
		line.AppendHistory(input)

		chunk, err := compiler.Compile(input, "<repl>", v.Pool)
		if err != nil {
			errorFg.Fprintf(stderr, "compile error: %s\n", err)
			continue
		}
		result, err := v.Run(chunk)
		if err != nil {
			errorFg.Fprintf(stderr, "runtime error: %s\n", err)
			continue
		}
		if !result.IsNil() {
			fmt.Printf("=> %s\n", v.Format(result))
		}
	}
	return nil
}

func replHistoryPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".ember_history")
	}
	return ".ember_history"
}
