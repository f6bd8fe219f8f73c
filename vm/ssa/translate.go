package ssa

import "github.com/ktstephano/gvmssa/vm/stack"

// Translate is phase 3: it replays the bytecode a second time, now guided
// by the block boundaries NumberBlocks assigned, and turns the abstract
// operand stack into explicit SSA values. A block's incoming stack
// values become IR_phi instructions at its head; whatever a predecessor
// still has on the abstract stack when it falls into (or jumps to) a
// successor is bridged across with IR_push, one per surviving value.
//
// Translate assumes markers has already passed Scan and NumberBlocks —
// it does not re-validate jump targets or leader/opcode alignment.
func Translate(fn Function, markers []marker, blockCount int) (*Program, error) {
	t := &translator{
		fn:      fn,
		markers: markers,
		sym:     stack.New[uint32](8),
	}

	bytecode := fn.Bytecode
	pos := 0
	opened := false

	for pos < len(bytecode) {
		m := markers[pos]
		if m.isLeader() {
			if opened {
				t.flush()
				t.closeBlock()
			}
			opened = true
			t.openBlock(m)
		}

		op := Opcode(bytecode[pos])
		width := op.operandWidth()
		var operand uint64
		if width > 0 {
			operand = readOperand(bytecode[pos+1:pos+1+width], width)
		}

		if err := t.translateOne(op, operand, pos, width); err != nil {
			return nil, err
		}

		pos += 1 + width
	}

	if opened {
		t.closeBlock()
	}

	return &Program{head: t.head, count: t.blockCount}, nil
}

type translator struct {
	fn      Function
	markers []marker

	sym   *stack.Stack[uint32]
	instr []Instruction
	code  uint32

	blockID    uint32
	stackEntry uint32

	head       *Block
	blockCount int
}

// openBlock clears the per-block accumulators and emits the phi
// instructions for m's incoming stack depth, pushing one symbolic value
// per phi in reverse order so the oldest incoming value ends up deepest.
func (t *translator) openBlock(m marker) {
	t.instr = nil
	t.code = 0
	t.blockID = m.blockID
	t.stackEntry = uint32(m.stackIn)

	for i := uint32(0); i < t.stackEntry; i++ {
		id := t.append(Instruction{Op: IRPhi, A: t.stackEntry - i - 1})
		t.sym.Push(id)
	}
}

// closeBlock finalizes the block under construction onto the reverse
// creation order list Program.Blocks() later un-reverses.
func (t *translator) closeBlock() {
	t.head = &Block{ID: t.blockID, StackEntry: t.stackEntry, Instructions: t.instr, Next: t.head}
	t.blockCount++
}

// flush bridges every value still live on the symbolic stack across a
// block boundary with an IR_push, in pop order (deepest value last).
func (t *translator) flush() {
	for t.sym.Len() > 0 {
		v, _ := t.sym.Pop()
		t.append(Instruction{Op: IRPush, A: v})
	}
}

// append records inst at the current code position and returns that
// position as the SSA value ID a producer instruction is known by.
func (t *translator) append(inst Instruction) uint32 {
	t.instr = append(t.instr, inst)
	id := t.code
	t.code++
	return id
}

func (t *translator) pop(pos int) (uint32, error) {
	v, ok := t.sym.Pop()
	if !ok {
		return 0, malformed(ReasonStackUnderflow, pos)
	}
	return v, nil
}

func (t *translator) get(pos int, index uint32) (uint32, error) {
	if int(index) >= t.sym.Len() {
		return 0, malformed(ReasonStackUnderflow, pos)
	}
	return t.sym.Get(int(index)), nil
}

func (t *translator) set(pos int, index uint32, v uint32) error {
	if int(index) >= t.sym.Len() {
		return malformed(ReasonStackUnderflow, pos)
	}
	t.sym.Set(int(index), v)
	return nil
}

// binaryOps covers every two-operand opcode whose translation is the
// same shape: pop the top value (the op's "b"), pop the next (its "a"),
// emit IR_X(a, b), push the result. Arithmetic, bitwise, comparison,
// load_element and every load_buffer_* variant all share it — see
// original_source/turkey/ssa.cpp's add/subtract/.../load_buffer_* cases.
var binaryOps = map[Opcode]IROp{
	OpAdd: IRAdd, OpSub: IRSub, OpMul: IRMul, OpDiv: IRDiv, OpMod: IRMod,
	OpAnd: IRAnd, OpOr: IROr, OpXor: IRXor, OpShl: IRShl, OpShr: IRShr,
	OpRol: IRRol, OpRor: IRRor, OpEq: IREq, OpNe: IRNe, OpLt: IRLt, OpGt: IRGt,
	OpLe: IRLe, OpGe: IRGe,

	OpLoadElement:    IRLoadElement,
	OpLoadBufferU8:   IRLoadBufferU8,
	OpLoadBufferU16:  IRLoadBufferU16,
	OpLoadBufferU32:  IRLoadBufferU32,
	OpLoadBufferU64:  IRLoadBufferU64,
	OpLoadBufferS8:   IRLoadBufferS8,
	OpLoadBufferS16:  IRLoadBufferS16,
	OpLoadBufferS32:  IRLoadBufferS32,
	OpLoadBufferS64:  IRLoadBufferS64,
	OpLoadBufferF32:  IRLoadBufferF32,
	OpLoadBufferF64:  IRLoadBufferF64,
}

// unaryOps covers every one-operand, one-result opcode: pop a, emit
// IR_X(a), push the result. OpNewBuffer deliberately maps to IRNewArray,
// not a distinct IR op — §9.3's new_buffer/IR_new_array aliasing.
var unaryOps = map[Opcode]IROp{
	OpNot: IRNot, OpIncrement: IRIncrement, OpDecrement: IRDecrement,
	OpIsNull: IRIsNull, OpIsNotNull: IRIsNotNull, OpIsTrue: IRIsTrue, OpIsFalse: IRIsFalse,
	OpNewArray: IRNewArray, OpNewBuffer: IRNewArray,
	OpToInteger: IRToInteger, OpToUnsignedInteger: IRToUnsignedInteger,
	OpToFloat: IRToFloat, OpToString: IRToString,
	OpGetType: IRGetType, OpRequire: IRRequire, OpInvert: IRInvert,
}

// storeOps covers every three-operand, no-result opcode that stores a
// value into a container at a key/address: pop the container, pop the
// key/address, pop the value, bridge the value with an IR_push (so the
// store instruction's operand slots stay free for key and container),
// then emit IR_X(key, container). save_element and every
// store_buffer_* variant share this shape.
var storeOps = map[Opcode]IROp{
	OpStoreElement:    IRSaveElement,
	OpStoreBufferU8:   IRStoreBufferU8,
	OpStoreBufferU16:  IRStoreBufferU16,
	OpStoreBufferU32:  IRStoreBufferU32,
	OpStoreBufferU64:  IRStoreBufferU64,
	OpStoreBufferS8:   IRStoreBufferS8,
	OpStoreBufferS16:  IRStoreBufferS16,
	OpStoreBufferS32:  IRStoreBufferS32,
	OpStoreBufferS64:  IRStoreBufferS64,
	OpStoreBufferF32:  IRStoreBufferF32,
	OpStoreBufferF64:  IRStoreBufferF64,
}

func (t *translator) translateOne(op Opcode, operand uint64, pos int, width int) error {
	if irop, ok := binaryOps[op]; ok {
		b, err := t.pop(pos)
		if err != nil {
			return err
		}
		a, err := t.pop(pos)
		if err != nil {
			return err
		}
		id := t.append(Instruction{Op: irop, A: a, B: b})
		t.sym.Push(id)
		return nil
	}

	if irop, ok := unaryOps[op]; ok {
		a, err := t.pop(pos)
		if err != nil {
			return err
		}
		id := t.append(Instruction{Op: irop, A: a})
		t.sym.Push(id)
		return nil
	}

	if irop, ok := storeOps[op]; ok {
		container, err := t.pop(pos)
		if err != nil {
			return err
		}
		key, err := t.pop(pos)
		if err != nil {
			return err
		}
		value, err := t.pop(pos)
		if err != nil {
			return err
		}
		t.append(Instruction{Op: IRPush, A: value})
		t.append(Instruction{Op: irop, A: key, B: container})
		return nil
	}

	switch op {
	case OpDeleteElement:
		object, err := t.pop(pos)
		if err != nil {
			return err
		}
		key, err := t.pop(pos)
		if err != nil {
			return err
		}
		t.append(Instruction{Op: IRDeleteElement, A: key, B: object})
		return nil

	case OpNewObject:
		id := t.append(Instruction{Op: IRNewObject})
		t.sym.Push(id)
		return nil

	case OpPushTrue:
		id := t.append(Instruction{Op: IRTrue})
		t.sym.Push(id)
		return nil
	case OpPushFalse:
		id := t.append(Instruction{Op: IRFalse})
		t.sym.Push(id)
		return nil
	case OpPushNull:
		id := t.append(Instruction{Op: IRNull})
		t.sym.Push(id)
		return nil

	case OpPushIntegerS8, OpPushIntegerS16, OpPushIntegerS32, OpPushIntegerS64:
		id := t.append(Instruction{Op: IRSignedInteger, Large: signExtend(operand, width)})
		t.sym.Push(id)
		return nil

	case OpPushUnsignedIntegerU8, OpPushUnsignedIntegerU16, OpPushUnsignedIntegerU32, OpPushUnsignedIntegerU64:
		id := t.append(Instruction{Op: IRUnsignedInteger, Large: operand})
		t.sym.Push(id)
		return nil

	case OpPushFloat:
		// operand already carries the raw little-endian IEEE-754 bit
		// pattern read by readOperand — no float conversion needed.
		id := t.append(Instruction{Op: IRFloat, Large: operand})
		t.sym.Push(id)
		return nil

	case OpPushString8, OpPushString16, OpPushString32:
		idx := uint32(operand)
		if _, ok := t.fn.Module.String(idx); !ok {
			return malformed(ReasonInvalidModuleIndex, pos)
		}
		id := t.append(Instruction{Op: IRString, Large: uint64(idx)})
		t.sym.Push(id)
		return nil

	case OpPushFunction:
		idx := uint32(operand)
		if _, ok := t.fn.Module.Function(idx); !ok {
			return malformed(ReasonInvalidModuleIndex, pos)
		}
		id := t.append(Instruction{Op: IRFunction, Large: uint64(idx)})
		t.sym.Push(id)
		return nil

	case OpLoadClosure8, OpLoadClosure16, OpLoadClosure32:
		id := t.append(Instruction{Op: IRLoadClosure, A: uint32(operand)})
		t.sym.Push(id)
		return nil

	// §9.2: store_closure_* deliberately emits IR_load_closure, the same
	// IR op as the load side — no distinct IR_store_closure exists.
	case OpStoreClosure8, OpStoreClosure16, OpStoreClosure32:
		v, err := t.pop(pos)
		if err != nil {
			return err
		}
		t.append(Instruction{Op: IRLoadClosure, A: uint32(operand), B: v})
		return nil

	case OpGrab8, OpGrab16, OpGrab32:
		v, err := t.get(pos, uint32(operand))
		if err != nil {
			return err
		}
		t.sym.Push(v)
		return nil

	case OpPushManyNulls8, OpPushManyNulls16, OpPushManyNulls32:
		n := uint32(operand)
		if n > 0 {
			id := t.append(Instruction{Op: IRNull})
			for i := uint32(0); i < n; i++ {
				t.sym.Push(id)
			}
		}
		return nil

	case OpPop:
		_, err := t.pop(pos)
		return err

	case OpPopMany8, OpPopMany16, OpPopMany32:
		for i := uint64(0); i < operand; i++ {
			if _, err := t.pop(pos); err != nil {
				return err
			}
		}
		return nil

	case OpStore8, OpStore16, OpStore32:
		v, err := t.pop(pos)
		if err != nil {
			return err
		}
		return t.set(pos, uint32(operand), v)

	case OpSwap8, OpSwap16, OpSwap32:
		half := width / 2
		idxA := uint32(readOperand(t.fn.Bytecode[pos+1:pos+1+half], half))
		idxB := uint32(readOperand(t.fn.Bytecode[pos+1+half:pos+1+width], half))
		va, err := t.get(pos, idxA)
		if err != nil {
			return err
		}
		vb, err := t.get(pos, idxB)
		if err != nil {
			return err
		}
		if err := t.set(pos, idxA, vb); err != nil {
			return err
		}
		return t.set(pos, idxB, va)

	case OpCallFunction8, OpCallFunction16, OpCallFunction32:
		return t.translateCall(pos, uint32(operand), IRCallFunction, true)
	case OpCallProcedure8, OpCallProcedure16, OpCallProcedure32:
		return t.translateCall(pos, uint32(operand), IRCallPureFunction, true)
	case OpCallFunctionNoReturn8, OpCallFunctionNoReturn16, OpCallFunctionNoReturn32:
		return t.translateCall(pos, uint32(operand), IRCallFunction, false)

	case OpReturn:
		a, err := t.pop(pos)
		if err != nil {
			return err
		}
		t.append(Instruction{Op: IRReturn, A: a})
		return nil

	case OpReturnNull:
		t.append(Instruction{Op: IRReturnNull})
		return nil

	case OpJump8, OpJump16, OpJump32:
		bb := t.markers[int(operand)].blockID - 1
		t.flush()
		t.append(Instruction{Op: IRJump, A: bb})
		return nil

	case OpJumpIfTrue8, OpJumpIfTrue16, OpJumpIfTrue32:
		return t.translateCondJump(pos, operand, IRJumpIfTrue)
	case OpJumpIfFalse8, OpJumpIfFalse16, OpJumpIfFalse32:
		return t.translateCondJump(pos, operand, IRJumpIfFalse)
	case OpJumpIfNull8, OpJumpIfNull16, OpJumpIfNull32:
		return t.translateCondJump(pos, operand, IRJumpIfNull)
	case OpJumpIfNotNull8, OpJumpIfNotNull16, OpJumpIfNotNull32:
		return t.translateCondJump(pos, operand, IRJumpIfNotNull)
	}

	return malformed(ReasonUnknownOpcode, pos)
}

// translateCall pops the callable, then pops args values one at a time,
// re-emitting each as an IR_push in pop order (original_source/turkey/
// ssa.cpp's call_function_*/call_procedure_* cases: the callable sits
// above its arguments on the operand stack, so it is popped first).
func (t *translator) translateCall(pos int, args uint32, irop IROp, hasResult bool) error {
	fn, err := t.pop(pos)
	if err != nil {
		return err
	}
	for i := uint32(0); i < args; i++ {
		a, err := t.pop(pos)
		if err != nil {
			return err
		}
		t.append(Instruction{Op: IRPush, A: a})
	}
	id := t.append(Instruction{Op: irop, A: args, B: fn})
	if hasResult {
		t.sym.Push(id)
	}
	return nil
}

func (t *translator) translateCondJump(pos int, operand uint64, irop IROp) error {
	bb := t.markers[int(operand)].blockID - 1
	cond, err := t.pop(pos)
	if err != nil {
		return err
	}
	t.flush()
	t.append(Instruction{Op: irop, A: bb, B: cond})
	return nil
}

func signExtend(operand uint64, width int) uint64 {
	switch width {
	case 1:
		return uint64(int64(int8(operand)))
	case 2:
		return uint64(int64(int16(operand)))
	case 4:
		return uint64(int64(int32(operand)))
	default:
		return operand
	}
}
