package ssa

import "testing"

// This file exercises the seven correctness invariants and seven concrete
// scenarios the SSA pipeline is specified against, plus three scenarios
// added by the Go-native expansion of the spec (concurrent compilation of
// disjoint functions and cache-hit avoidance live in vm/pool's tests; the
// negative-stack-size check lives in scanner_test.go).
//
// Invariants:
//  1. The number of blocks CompileFunction produces equals the number of
//     leaders the scanner discovers.
//  2. Every instruction's A/B operands that reference another SSA value
//     name a value produced earlier in the *same* block (phis and pushes
//     are how a value crosses a block boundary, never a raw cross-block
//     reference).
//  3. A byte is a leader if and only if it is also the start of a decoded
//     opcode (never mid-operand).
//  4. The symbolic stack is empty immediately before a block's successor
//     phis are considered, i.e. every value live across a boundary was
//     flushed via IR_push.
//  5. A block with stack_entry == n opens with exactly n IR_phi
//     instructions and pushes exactly n symbolic values.
//  6. A push-then-return produces exactly one constant-producing
//     instruction followed by one IR_return referencing it.
//  7. Compiling a malformed function and then a valid one produces the
//     same result for the valid one as compiling it alone — no state
//     leaks across calls.
//
// Scenarios: empty bytecode, a lone return_null, push-and-return,
// add-two-constants, a forward conditional jump producing three blocks,
// a truncated operand, and a jump into the middle of an operand.

type fakeModule struct {
	strings   int
	functions int
}

func (m fakeModule) String(i uint32) (StringRef, bool) {
	if i < uint32(m.strings) {
		return i, true
	}
	return nil, false
}
func (m fakeModule) StringCount() uint32 { return uint32(m.strings) }
func (m fakeModule) Function(i uint32) (FunctionRef, bool) {
	if i < uint32(m.functions) {
		return i, true
	}
	return nil, false
}
func (m fakeModule) FunctionCount() uint32 { return uint32(m.functions) }

func mustCompile(t *testing.T, bytecode []byte) *Program {
	t.Helper()
	prog, err := CompileFunction(Background(), Function{Bytecode: bytecode, Module: fakeModule{}})
	if err != nil {
		t.Fatalf("CompileFunction: %v", err)
	}
	return prog
}

func TestCompileEmptyBytecode(t *testing.T) {
	prog := mustCompile(t, nil)
	if prog.BlockCount() != 0 {
		t.Fatalf("expected 0 blocks, got %d", prog.BlockCount())
	}
}

func TestCompileSingleReturnNull(t *testing.T) {
	prog := mustCompile(t, []byte{byte(OpReturnNull)})
	blocks := prog.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.StackEntry != 0 {
		t.Fatalf("expected stack_entry 0, got %d", b.StackEntry)
	}
	if len(b.Instructions) != 1 || b.Instructions[0].Op != IRReturnNull {
		t.Fatalf("expected [return_null], got %v", b.Instructions)
	}
}

func TestCompilePushAndReturn(t *testing.T) {
	bytecode := []byte{byte(OpPushIntegerS8), 0x2A, byte(OpReturn)}
	prog := mustCompile(t, bytecode)
	blocks := prog.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	instr := blocks[0].Instructions
	if len(instr) != 2 {
		t.Fatalf("expected 2 instructions, got %v", instr)
	}
	if instr[0].Op != IRSignedInteger || instr[0].Large != 42 {
		t.Fatalf("expected signed_integer large=42, got %v", instr[0])
	}
	if instr[1].Op != IRReturn || instr[1].A != 0 {
		t.Fatalf("expected return a=0, got %v", instr[1])
	}
}

func TestCompileAddTwoConstants(t *testing.T) {
	bytecode := []byte{
		byte(OpPushIntegerS8), 1,
		byte(OpPushIntegerS8), 2,
		byte(OpAdd),
		byte(OpReturn),
	}
	prog := mustCompile(t, bytecode)
	blocks := prog.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	instr := blocks[0].Instructions
	if len(instr) != 4 {
		t.Fatalf("expected 4 instructions, got %v", instr)
	}
	if instr[0].Op != IRSignedInteger || instr[0].Large != 1 {
		t.Fatalf("instr[0] = %v", instr[0])
	}
	if instr[1].Op != IRSignedInteger || instr[1].Large != 2 {
		t.Fatalf("instr[1] = %v", instr[1])
	}
	if instr[2].Op != IRAdd || instr[2].A != 0 || instr[2].B != 1 {
		t.Fatalf("expected add a=0 b=1, got %v", instr[2])
	}
	if instr[3].Op != IRReturn || instr[3].A != 2 {
		t.Fatalf("expected return a=2, got %v", instr[3])
	}
}

// TestCompileForwardJump covers invariants 1, 4 and 5 together: three
// blocks, an empty symbolic stack at each boundary, and zero phis since
// nothing survives the conditional jump's pop.
func TestCompileForwardJump(t *testing.T) {
	// jump_if_false_8 takes a 1-byte target offset; the fall-through block
	// starts right after it (offset 3), the conditional target is offset 6.
	bytecode := []byte{
		byte(OpPushTrue),
		byte(OpJumpIfFalse8), 6,
		byte(OpPushIntegerS8), 1,
		byte(OpReturn),
		byte(OpPushIntegerS8), 2, // offset 6
		byte(OpReturn),
	}
	prog := mustCompile(t, bytecode)
	blocks := prog.Blocks()
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}

	head := blocks[0]
	if head.StackEntry != 0 {
		t.Fatalf("expected head stack_entry 0, got %d", head.StackEntry)
	}
	if len(head.Instructions) != 2 || head.Instructions[0].Op != IRTrue || head.Instructions[1].Op != IRJumpIfFalse {
		t.Fatalf("unexpected head instructions: %v", head.Instructions)
	}
	if head.Instructions[1].B != 0 {
		t.Fatalf("expected jump_if_false to reference the pushed true, got %v", head.Instructions[1])
	}
	targetBlock := head.Instructions[1].A

	fallthroughBlock := blocks[1]
	if len(fallthroughBlock.Instructions) != 2 ||
		fallthroughBlock.Instructions[0].Op != IRSignedInteger || fallthroughBlock.Instructions[0].Large != 1 ||
		fallthroughBlock.Instructions[1].Op != IRReturn {
		t.Fatalf("unexpected fall-through instructions: %v", fallthroughBlock.Instructions)
	}

	target := blocks[2]
	if len(target.Instructions) != 2 ||
		target.Instructions[0].Op != IRSignedInteger || target.Instructions[0].Large != 2 ||
		target.Instructions[1].Op != IRReturn {
		t.Fatalf("unexpected target instructions: %v", target.Instructions)
	}
	if targetBlock != uint32(target.ID-1) {
		t.Fatalf("jump_if_false should reference target block by its 0-based id, got %d want %d", targetBlock, target.ID-1)
	}
}

func TestCompileTruncatedOperand(t *testing.T) {
	// push_integer_16 at the very end with only one of its two operand
	// bytes present.
	bytecode := []byte{byte(OpReturnNull), byte(OpPushIntegerS16), 0x01}
	_, err := CompileFunction(Background(), Function{Bytecode: bytecode, Module: fakeModule{}})
	assertReason(t, err, ReasonTruncatedOperand)
}

func TestCompileJumpIntoOperand(t *testing.T) {
	bytecode := []byte{
		byte(OpPushIntegerS16), 0xBB, 0xAA,
		byte(OpJump8), 1,
		byte(OpReturnNull),
	}
	_, err := CompileFunction(Background(), Function{Bytecode: bytecode, Module: fakeModule{}})
	assertReason(t, err, ReasonLeaderInOperand)
}

// TestCompileIdempotentAfterFailure covers invariant 7: a failed compile
// must not leave behind state a later, independent compile could observe.
func TestCompileIdempotentAfterFailure(t *testing.T) {
	valid := []byte{byte(OpPushIntegerS8), 0x2A, byte(OpReturn)}

	before := mustCompile(t, valid)

	bad := []byte{0xFF}
	if _, err := CompileFunction(Background(), Function{Bytecode: bad, Module: fakeModule{}}); err == nil {
		t.Fatalf("expected the unknown-opcode compile to fail")
	}

	after := mustCompile(t, valid)

	if before.BlockCount() != after.BlockCount() {
		t.Fatalf("block count changed across calls: %d vs %d", before.BlockCount(), after.BlockCount())
	}
	bi, ai := before.Blocks()[0].Instructions, after.Blocks()[0].Instructions
	if len(bi) != len(ai) {
		t.Fatalf("instruction count changed across calls: %v vs %v", bi, ai)
	}
	for i := range bi {
		if bi[i] != ai[i] {
			t.Fatalf("instruction %d differs across calls: %v vs %v", i, bi[i], ai[i])
		}
	}
}

func TestCompileInvalidModuleIndex(t *testing.T) {
	bytecode := []byte{byte(OpPushString8), 0x00, byte(OpReturn)}
	_, err := CompileFunction(Background(), Function{Bytecode: bytecode, Module: fakeModule{strings: 0}})
	assertReason(t, err, ReasonInvalidModuleIndex)
}

func TestCompileValidModuleIndex(t *testing.T) {
	bytecode := []byte{byte(OpPushString8), 0x00, byte(OpReturn)}
	prog, err := CompileFunction(Background(), Function{Bytecode: bytecode, Module: fakeModule{strings: 1}})
	if err != nil {
		t.Fatalf("CompileFunction: %v", err)
	}
	instr := prog.Blocks()[0].Instructions
	if instr[0].Op != IRString || instr[0].Large != 0 {
		t.Fatalf("expected string large=0, got %v", instr[0])
	}
}

// TestPhiCountMatchesStackEntry covers invariant 5 directly: a block
// entered with two live values on the stack opens with exactly two phis
// and pushes exactly two symbolic values (observable here as both phis
// being consumable by the add that follows).
func TestPhiCountMatchesStackEntry(t *testing.T) {
	// Two values are pushed, then an unconditional (if pointless) jump to
	// the very next instruction carries both live into the next block,
	// which immediately adds them. jump_8 takes a 1-byte target offset.
	bytecode := []byte{
		byte(OpPushIntegerS8), 3,
		byte(OpPushIntegerS8), 4,
		byte(OpJump8), 6, // falls straight through to its own target
		byte(OpAdd),      // offset 6
		byte(OpReturn),
	}
	prog := mustCompile(t, bytecode)
	blocks := prog.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	target := blocks[1]
	if target.StackEntry != 2 {
		t.Fatalf("expected stack_entry 2, got %d", target.StackEntry)
	}
	if len(target.Instructions) < 3 {
		t.Fatalf("expected at least 3 instructions (2 phis + add), got %v", target.Instructions)
	}
	if target.Instructions[0].Op != IRPhi || target.Instructions[1].Op != IRPhi {
		t.Fatalf("expected two leading phis, got %v", target.Instructions[:2])
	}
	add := target.Instructions[2]
	if add.Op != IRAdd || add.A != 0 || add.B != 1 {
		t.Fatalf("expected add a=0 b=1 referencing both phis, got %v", add)
	}
}
