package ssa

import (
	"log/slog"
	"time"

	"github.com/ktstephano/gvmssa/internal/gvmlog"
	"github.com/ktstephano/gvmssa/internal/metrics"
)

// Context is the narrowed "vm_ctx" collaborator: a logger and a metrics
// recorder, and nothing else mutable — CompileFunction needs no
// allocator handle, Go's allocator being implicit.
type Context struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// Background returns a Context suitable for callers that don't care
// about logging or metrics (most tests).
func Background() *Context {
	return &Context{Logger: gvmlog.Default}
}

// Block is one node of the singly linked, reverse-creation-order block
// list the translator builds.
type Block struct {
	ID           uint32
	StackEntry   uint32
	Instructions []Instruction
	Next         *Block
}

// Program is the successful output of CompileFunction: the block chain
// plus its original creation-order count.
type Program struct {
	head  *Block
	count int
}

// Blocks returns every block in creation (= textual, ascending ID) order.
// The translator links blocks in reverse creation order because each
// block is only known to be complete once its successor's leader is
// reached; Blocks() undoes that for callers that want forward order.
func (p *Program) Blocks() []*Block {
	out := make([]*Block, p.count)
	i := p.count - 1
	for b := p.head; b != nil; b = b.Next {
		out[i] = b
		i--
	}
	return out
}

func (p *Program) BlockCount() int { return p.count }

// NewProgramFromBlocks reconstructs a Program from blocks in creation
// (ascending ID) order — the same order Blocks() returns them in. It
// exists for vm/pool, which rehydrates a cached compile's block list
// without re-running Translate; blocks must not be shared with another
// Program, since their Next fields are overwritten in place.
func NewProgramFromBlocks(blocks []*Block) *Program {
	var head *Block
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		b.Next = head
		head = b
	}
	return &Program{head: head, count: len(blocks)}
}

// CompileFunction runs the three-phase pipeline — Scan, NumberBlocks,
// Translate — over fn and returns its SSA program. Single-threaded and
// synchronous: no suspension points, no cancellation inside one call
// (vm/pool honors that by only ever calling this from one goroutine at a
// time per in-flight function).
func CompileFunction(ctx *Context, fn Function) (*Program, error) {
	start := time.Now()

	prog, err := compile(fn)

	if ctx != nil && ctx.Metrics != nil {
		if err != nil {
			var mb *MalformedBytecode
			if e, ok := err.(*MalformedBytecode); ok {
				mb = e
			}
			reason := "unknown"
			if mb != nil {
				reason = mb.Reason.String()
			}
			ctx.Metrics.RecordFailure(reason)
		} else {
			n := 0
			for _, b := range prog.Blocks() {
				n += len(b.Instructions)
			}
			ctx.Metrics.RecordSuccess(time.Since(start), n)
		}
	}

	if ctx != nil && ctx.Logger != nil {
		if err != nil {
			ctx.Logger.Debug("compile failed", "error", err)
		} else {
			ctx.Logger.Debug("compile ok", "blocks", prog.BlockCount())
		}
	}

	return prog, err
}

func compile(fn Function) (*Program, error) {
	markers, blockCount, err := Scan(fn.Bytecode, fn.Parameters)
	if err != nil {
		return nil, err
	}
	if len(markers) == 0 {
		return &Program{}, nil
	}

	if err := NumberBlocks(markers); err != nil {
		return nil, err
	}

	return Translate(fn, markers, blockCount)
}
