// Command gvmssa compiles stack-VM bytecode (or its text assembly form)
// into SSA and prints the resulting program.
//
// Adapted from _examples/KTStephano-GVM/main.go's file-list-to-VM
// pipeline (NewVirtualMachine reading one or more source files off disk
// and assembling them into a runnable program), retargeted at
// ssa.CompileFunction and given an urfave/cli/v2 front end in place of
// the teacher's bare flag package.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/ktstephano/gvmssa/internal/cache"
	"github.com/ktstephano/gvmssa/internal/config"
	"github.com/ktstephano/gvmssa/internal/gvmlog"
	"github.com/ktstephano/gvmssa/internal/metrics"
	"github.com/ktstephano/gvmssa/vm/asm"
	"github.com/ktstephano/gvmssa/vm/pool"
	"github.com/ktstephano/gvmssa/vm/ssa"
)

func main() {
	app := &cli.App{
		Name:  "gvmssa",
		Usage: "compile stack-VM bytecode into SSA",
		Commands: []*cli.Command{
			compileCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "compile one or more .gasm (assembly) or .gvmb (raw bytecode) files",
		ArgsUsage: "<file> [file...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a TOML config file"},
			&cli.IntFlag{Name: "workers", Usage: "override the configured worker count"},
			&cli.BoolFlag{Name: "json", Usage: "print each function's program as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("usage: gvmssa compile <file> [file...]", 1)
			}

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if c.IsSet("workers") {
				cfg.Workers = c.Int("workers")
			}
			if c.IsSet("json") {
				cfg.JSON = c.Bool("json")
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
				level = slog.LevelInfo
			}
			logger := gvmlog.New(level, os.Stderr)
			recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
			compileCache := cache.New(cfg.CacheBytes)
			ctx := &ssa.Context{Logger: logger, Metrics: recorder}
			p := pool.New(ctx, compileCache, cfg.Workers)

			fns := make([]ssa.Function, c.NArg())
			names := make([]string, c.NArg())
			for i := 0; i < c.NArg(); i++ {
				path := c.Args().Get(i)
				bytecode, err := loadBytecode(path)
				if err != nil {
					return fmt.Errorf("loading %s: %w", path, err)
				}
				fns[i] = ssa.Function{Bytecode: bytecode}
				names[i] = path
			}

			results := p.CompileAll(c.Context, fns)

			failed := false
			for i, r := range results {
				if r.Err != nil {
					failed = true
					fmt.Fprintf(os.Stderr, "%s: %v\n", names[i], r.Err)
					continue
				}
				if cfg.JSON {
					if err := printJSON(names[i], r); err != nil {
						return err
					}
				} else {
					printPlain(names[i], r)
				}
			}

			if failed {
				return cli.Exit("one or more files failed to compile", 1)
			}
			return nil
		},
	}
}

// loadBytecode reads path into memory via mmap.Map when it holds raw
// bytecode (.gvmb), or through vm/asm.Assemble when it is text assembly
// (.gasm or anything else) -- mirroring the teacher's NewVirtualMachine,
// which reads whole files up front before any instruction is decoded.
func loadBytecode(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer m.Unmap()

	if hasRawExtension(path) {
		out := make([]byte, len(m))
		copy(out, m)
		return out, nil
	}

	bytecode, _, err := asm.Assemble(string(m))
	return bytecode, err
}

func hasRawExtension(path string) bool {
	n := len(path)
	return n >= 5 && path[n-5:] == ".gvmb"
}

type jsonBlock struct {
	ID           uint32   `json:"id"`
	StackEntry   uint32   `json:"stack_entry"`
	Instructions []string `json:"instructions"`
}

type jsonProgram struct {
	File     string      `json:"file"`
	CacheHit bool        `json:"cache_hit"`
	Blocks   []jsonBlock `json:"blocks"`
}

func printJSON(name string, r pool.Result) error {
	blocks := r.Program.Blocks()
	out := jsonProgram{File: name, CacheHit: r.CacheHit, Blocks: make([]jsonBlock, len(blocks))}
	for i, b := range blocks {
		instr := make([]string, len(b.Instructions))
		for j, in := range b.Instructions {
			instr[j] = in.String()
		}
		out.Blocks[i] = jsonBlock{ID: b.ID, StackEntry: b.StackEntry, Instructions: instr}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printPlain(name string, r pool.Result) {
	hit := ""
	if r.CacheHit {
		hit = " (cache hit)"
	}
	fmt.Printf("%s%s:\n", name, hit)
	for _, b := range r.Program.Blocks() {
		fmt.Printf("  block %d (stack_entry=%d):\n", b.ID, b.StackEntry)
		for _, in := range b.Instructions {
			fmt.Printf("    %s\n", in)
		}
	}
}
