// Package pool fans ssa.CompileFunction out across a bounded number of
// worker goroutines and, when given a cache, skips recompiling a function
// whose bytecode it has already seen. It is scheduling and memoization
// around the compile pass, not part of the pass itself.
//
// Grounded in the teacher repo's devices.go goroutine-per-request style
// (the console device's reader goroutine draining a request channel),
// scaled up to a fixed worker count bounded by a semaphore rather than
// one goroutine per device.
package pool

import (
	"bytes"
	"context"
	"encoding/gob"
	"sync"

	"github.com/ktstephano/gvmssa/internal/cache"
	"github.com/ktstephano/gvmssa/vm/ssa"
)

// Result is one function's outcome from a Pool compile run.
type Result struct {
	Program  *ssa.Program
	Err      error
	CacheHit bool
}

// Pool compiles independent functions concurrently. Disjoint functions
// are safe to compile in parallel because ssa.CompileFunction keeps no
// state outside one call's own stack — Pool adds only scheduling and the
// cache lookup around it, never shares a translator between workers.
type Pool struct {
	ctx     *ssa.Context
	cache   *cache.Cache
	workers int
}

// New returns a Pool that runs up to workers compiles concurrently,
// consulting c before each one if c is non-nil. workers < 1 is treated
// as 1.
func New(ctx *ssa.Context, c *cache.Cache, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{ctx: ctx, cache: c, workers: workers}
}

// CompileAll compiles every entry of fns and returns one Result per
// input, in the same order. Cancelling ctx stops scheduling work not yet
// started; compiles already running finish regardless, since
// ssa.CompileFunction has no cancellation point of its own (it never
// blocks).
func (p *Pool) CompileAll(ctx context.Context, fns []ssa.Function) []Result {
	results := make([]Result, len(fns))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, fn := range fns {
		select {
		case <-ctx.Done():
			results[i] = Result{Err: ctx.Err()}
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, fn ssa.Function) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.compileOne(fn)
		}(i, fn)
	}

	wg.Wait()
	return results
}

func (p *Pool) compileOne(fn ssa.Function) Result {
	if p.cache == nil {
		prog, err := ssa.CompileFunction(p.ctx, fn)
		return Result{Program: prog, Err: err}
	}

	digest := cache.Digest(fn.Bytecode)
	if stored, ok := p.cache.Get(digest); ok {
		if prog, err := decodeProgram(stored); err == nil {
			return Result{Program: prog, CacheHit: true}
		}
		// A corrupt or stale cache entry falls through to a real compile.
	}

	prog, err := ssa.CompileFunction(p.ctx, fn)
	if err == nil {
		if encoded, encErr := encodeProgram(prog); encErr == nil {
			p.cache.Put(digest, encoded)
		}
	}
	return Result{Program: prog, Err: err}
}

// serialBlock mirrors ssa.Block minus its Next pointer: gob has no reason
// to walk the linked list when the encoding slice's order already
// captures it, and NewProgramFromBlocks rebuilds Next on decode.
type serialBlock struct {
	ID           uint32
	StackEntry   uint32
	Instructions []ssa.Instruction
}

func encodeProgram(prog *ssa.Program) ([]byte, error) {
	blocks := prog.Blocks()
	serial := make([]serialBlock, len(blocks))
	for i, b := range blocks {
		serial[i] = serialBlock{ID: b.ID, StackEntry: b.StackEntry, Instructions: b.Instructions}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(serial); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeProgram(data []byte) (*ssa.Program, error) {
	var serial []serialBlock
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&serial); err != nil {
		return nil, err
	}

	blocks := make([]*ssa.Block, len(serial))
	for i, b := range serial {
		blocks[i] = &ssa.Block{ID: b.ID, StackEntry: b.StackEntry, Instructions: b.Instructions}
	}
	return ssa.NewProgramFromBlocks(blocks), nil
}
