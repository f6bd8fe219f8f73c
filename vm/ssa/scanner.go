package ssa

import "encoding/binary"

// Scan is phase 1: a single linear pass over bytecode that discovers
// basic-block leaders and the abstract operand-stack depth before every
// opcode. It never allocates anything beyond the returned marker table.
func Scan(bytecode []byte, params int) ([]marker, int, error) {
	length := len(bytecode)
	if length == 0 {
		return nil, 0, nil
	}

	markers := make([]marker, length)
	markers[0].blockID = leaderSentinel
	blockCount := 1

	stackSize := params
	nextIsLeader := false
	pos := 0

	for pos < length {
		if nextIsLeader {
			// Don't overwrite it if it's already a leader (e.g. jumping ahead).
			if markers[pos].blockID == 0 {
				markers[pos].blockID = leaderSentinel
				blockCount++
			}
			nextIsLeader = false
		}

		markers[pos].isOpcode = true
		markers[pos].stackIn = int32(stackSize)

		op := Opcode(bytecode[pos])
		if !op.valid() {
			return nil, 0, malformed(ReasonUnknownOpcode, pos)
		}

		width := op.operandWidth()
		// Preserved verbatim: the source checks cursor+width >= L (cursor at
		// the first operand byte) rather than > L, rejecting an operand
		// that ends exactly on the last byte. See §9.1.
		if width > 0 && pos+1+width >= length {
			return nil, 0, malformed(ReasonTruncatedOperand, pos)
		}
		for i := pos + 1; i <= pos+width; i++ {
			markers[i].isOpcode = false
		}

		var operand uint64
		if width > 0 {
			operand = readOperand(bytecode[pos+1:pos+1+width], width)
		}

		delta, dataDependent := opcodeStaticDelta(op)
		if dataDependent {
			delta = operandDelta(op, operand)
		}
		stackSize += int(delta)

		if op.isJump() {
			target := int(operand)
			if target >= length {
				return nil, 0, malformed(ReasonBranchOutOfRange, pos)
			}
			if markers[target].blockID == 0 {
				markers[target].blockID = leaderSentinel
				blockCount++
			}
			nextIsLeader = true
		} else if op == OpReturn || op == OpReturnNull {
			nextIsLeader = true
		}

		if stackSize < 0 {
			return nil, 0, malformed(ReasonNegativeStackSize, pos)
		}

		pos += 1 + width
	}

	return markers, blockCount, nil
}

func readOperand(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		return 0
	}
}

// operandDelta computes the stack delta for opcodes whose effect on the
// stack depends on the value of their operand, not just its presence.
func operandDelta(op Opcode, operand uint64) int32 {
	switch op {
	case OpPushManyNulls8, OpPushManyNulls16, OpPushManyNulls32:
		return int32(operand)
	case OpPopMany8, OpPopMany16, OpPopMany32:
		return -int32(operand)
	case OpCallFunction8, OpCallFunction16, OpCallFunction32,
		OpCallProcedure8, OpCallProcedure16, OpCallProcedure32:
		// -(args+1)+1 == -args
		return -int32(operand)
	case OpCallFunctionNoReturn8, OpCallFunctionNoReturn16, OpCallFunctionNoReturn32:
		return -(int32(operand) + 1)
	default:
		return 0
	}
}

// opcodeStaticDelta returns the fixed stack-effect delta for op, and
// whether the true delta instead depends on the operand's runtime value
// (in which case the caller uses operandDelta).
func opcodeStaticDelta(op Opcode) (int32, bool) {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor, OpShl, OpShr, OpRol, OpRor,
		OpEq, OpNe, OpLt, OpGt, OpLe, OpGe,
		OpLoadElement, OpLoadBufferU8, OpLoadBufferU16, OpLoadBufferU32, OpLoadBufferU64,
		OpLoadBufferS8, OpLoadBufferS16, OpLoadBufferS32, OpLoadBufferS64,
		OpLoadBufferF32, OpLoadBufferF64:
		return -1, false

	case OpNot, OpIncrement, OpDecrement, OpIsNull, OpIsNotNull, OpIsTrue, OpIsFalse,
		OpNewArray, OpNewBuffer, OpToInteger, OpToUnsignedInteger, OpToFloat, OpToString,
		OpGetType, OpRequire, OpInvert:
		return 0, false

	case OpStoreElement, OpStoreBufferU8, OpStoreBufferU16, OpStoreBufferU32, OpStoreBufferU64,
		OpStoreBufferS8, OpStoreBufferS16, OpStoreBufferS32, OpStoreBufferS64,
		OpStoreBufferF32, OpStoreBufferF64:
		return -3, false

	case OpPushTrue, OpPushFalse, OpPushNull,
		OpPushIntegerS8, OpPushIntegerS16, OpPushIntegerS32, OpPushIntegerS64,
		OpPushUnsignedIntegerU8, OpPushUnsignedIntegerU16, OpPushUnsignedIntegerU32, OpPushUnsignedIntegerU64,
		OpPushFloat, OpPushString8, OpPushString16, OpPushString32, OpPushFunction,
		OpNewObject, OpGrab8, OpGrab16, OpGrab32, OpLoadClosure8, OpLoadClosure16, OpLoadClosure32:
		return 1, false

	case OpPushManyNulls8, OpPushManyNulls16, OpPushManyNulls32:
		return 0, true

	case OpDeleteElement:
		return -2, false

	case OpPop:
		return -1, false

	case OpPopMany8, OpPopMany16, OpPopMany32:
		return 0, true

	case OpStore8, OpStore16, OpStore32, OpStoreClosure8, OpStoreClosure16, OpStoreClosure32:
		return -1, false

	case OpSwap8, OpSwap16, OpSwap32:
		return 0, false

	case OpCallFunction8, OpCallFunction16, OpCallFunction32,
		OpCallProcedure8, OpCallProcedure16, OpCallProcedure32,
		OpCallFunctionNoReturn8, OpCallFunctionNoReturn16, OpCallFunctionNoReturn32:
		return 0, true

	case OpReturn:
		return -1, false
	case OpReturnNull:
		return 0, false

	case OpJump8, OpJump16, OpJump32:
		return 0, false

	case OpJumpIfTrue8, OpJumpIfTrue16, OpJumpIfTrue32,
		OpJumpIfFalse8, OpJumpIfFalse16, OpJumpIfFalse32,
		OpJumpIfNull8, OpJumpIfNull16, OpJumpIfNull32,
		OpJumpIfNotNull8, OpJumpIfNotNull16, OpJumpIfNotNull32:
		return -1, false

	default:
		return 0, false
	}
}
