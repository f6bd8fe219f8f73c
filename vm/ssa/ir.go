package ssa

import "fmt"

// IROp is the SSA instruction opcode space: distinct from the bytecode
// Opcode space in opcode.go. The §4.3 mapping from bytecode to IR is the
// normative compatibility surface for anything downstream of this pass
// (there is no such downstream consumer in this module; optimization and
// codegen are explicit non-goals).
type IROp byte

const (
	IRAdd IROp = iota
	IRSub
	IRMul
	IRDiv
	IRMod
	IRAnd
	IROr
	IRXor
	IRShl
	IRShr
	IRRol
	IRRor
	IREq
	IRNe
	IRLt
	IRGt
	IRLe
	IRGe

	IRLoadElement
	IRLoadBufferU8
	IRLoadBufferU16
	IRLoadBufferU32
	IRLoadBufferU64
	IRLoadBufferS8
	IRLoadBufferS16
	IRLoadBufferS32
	IRLoadBufferS64
	IRLoadBufferF32
	IRLoadBufferF64

	IRNot
	IRIncrement
	IRDecrement
	IRIsNull
	IRIsNotNull
	IRIsTrue
	IRIsFalse
	// IRNewArray also stands in for new_buffer — §9.3, aliasing preserved.
	IRNewArray
	IRToInteger
	IRToUnsignedInteger
	IRToFloat
	IRToString
	IRGetType
	IRRequire
	IRInvert

	IRSaveElement
	IRStoreBufferU8
	IRStoreBufferU16
	IRStoreBufferU32
	IRStoreBufferU64
	IRStoreBufferS8
	IRStoreBufferS16
	IRStoreBufferS32
	IRStoreBufferS64
	IRStoreBufferF32
	IRStoreBufferF64

	IRTrue
	IRFalse
	IRNull
	IRSignedInteger
	IRUnsignedInteger
	IRFloat
	IRString
	IRFunction
	IRNewObject
	// IRLoadClosure also stands in for store_closure_* — §9.2, aliasing
	// preserved rather than introducing a distinct IR_store_closure.
	IRLoadClosure

	IRDeleteElement

	IRPush
	IRPhi

	IRCallFunction
	IRCallPureFunction

	IRReturn
	IRReturnNull

	IRJump
	IRJumpIfTrue
	IRJumpIfFalse
	IRJumpIfNull
	IRJumpIfNotNull

	irOpCount
)

var irOpNames = [irOpCount]string{
	IRAdd: "add", IRSub: "sub", IRMul: "mul", IRDiv: "div", IRMod: "mod",
	IRAnd: "and", IROr: "or", IRXor: "xor", IRShl: "shl", IRShr: "shr",
	IRRol: "rol", IRRor: "ror", IREq: "eq", IRNe: "ne", IRLt: "lt", IRGt: "gt",
	IRLe: "le", IRGe: "ge",

	IRLoadElement: "load_element", IRLoadBufferU8: "load_buffer_u8",
	IRLoadBufferU16: "load_buffer_u16", IRLoadBufferU32: "load_buffer_u32",
	IRLoadBufferU64: "load_buffer_u64", IRLoadBufferS8: "load_buffer_s8",
	IRLoadBufferS16: "load_buffer_s16", IRLoadBufferS32: "load_buffer_s32",
	IRLoadBufferS64: "load_buffer_s64", IRLoadBufferF32: "load_buffer_f32",
	IRLoadBufferF64: "load_buffer_f64",

	IRNot: "not", IRIncrement: "increment", IRDecrement: "decrement",
	IRIsNull: "is_null", IRIsNotNull: "is_not_null", IRIsTrue: "is_true",
	IRIsFalse: "is_false", IRNewArray: "new_array", IRToInteger: "to_integer",
	IRToUnsignedInteger: "to_unsigned_integer", IRToFloat: "to_float",
	IRToString: "to_string", IRGetType: "get_type", IRRequire: "require",
	IRInvert: "invert",

	IRSaveElement: "save_element", IRStoreBufferU8: "store_buffer_u8",
	IRStoreBufferU16: "store_buffer_u16", IRStoreBufferU32: "store_buffer_u32",
	IRStoreBufferU64: "store_buffer_u64", IRStoreBufferS8: "store_buffer_s8",
	IRStoreBufferS16: "store_buffer_s16", IRStoreBufferS32: "store_buffer_s32",
	IRStoreBufferS64: "store_buffer_s64", IRStoreBufferF32: "store_buffer_f32",
	IRStoreBufferF64: "store_buffer_f64",

	IRTrue: "true", IRFalse: "false", IRNull: "null",
	IRSignedInteger: "signed_integer", IRUnsignedInteger: "unsigned_integer",
	IRFloat: "float", IRString: "string", IRFunction: "function",
	IRNewObject: "new_object", IRLoadClosure: "load_closure",

	IRDeleteElement: "delete_element",

	IRPush: "push", IRPhi: "phi",

	IRCallFunction: "call_function", IRCallPureFunction: "call_pure_function",

	IRReturn: "return", IRReturnNull: "return_null",

	IRJump: "jump", IRJumpIfTrue: "jump_if_true", IRJumpIfFalse: "jump_if_false",
	IRJumpIfNull: "jump_if_null", IRJumpIfNotNull: "jump_if_not_null",
}

func (op IROp) String() string {
	if op < irOpCount {
		if s := irOpNames[op]; s != "" {
			return s
		}
	}
	return fmt.Sprintf("irop(%d)", byte(op))
}

// Instruction is one SSA value: a tagged record rather than a class
// hierarchy, per §9's "polymorphism" note — the op determines which of
// A, B, Large are meaningful.
type Instruction struct {
	Op    IROp
	A, B  uint32
	Large uint64
}

func (i Instruction) String() string {
	switch i.Op {
	case IRSignedInteger, IRUnsignedInteger, IRFloat, IRString, IRFunction:
		return fmt.Sprintf("%s large=%d", i.Op, i.Large)
	case IRJump, IRReturnNull, IRNewObject, IRTrue, IRFalse, IRNull:
		return i.Op.String()
	case IRNot, IRIncrement, IRDecrement, IRIsNull, IRIsNotNull, IRIsTrue, IRIsFalse,
		IRNewArray, IRToInteger, IRToUnsignedInteger, IRToFloat, IRToString, IRGetType,
		IRRequire, IRInvert, IRPush, IRPhi, IRReturn:
		return fmt.Sprintf("%s a=%d", i.Op, i.A)
	default:
		return fmt.Sprintf("%s a=%d b=%d", i.Op, i.A, i.B)
	}
}
