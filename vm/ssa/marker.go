package ssa

// marker carries the per-byte metadata the scanner discovers and the
// block numberer refines. blockID is deliberately one field across both
// phases (phase 1's sentinel 1, phase 2's true ID): §9 note 4 of the
// spec this is adapted from calls out that splitting it only matters if
// the phases are reordered, and they are not.
type marker struct {
	blockID  uint32
	isOpcode bool
	stackIn  int32
}

const leaderSentinel uint32 = 1

func (m marker) isLeader() bool { return m.blockID != 0 }

// StringRef and FunctionRef are opaque handles a Module hands back;
// ssa never interprets their contents, only whether String/Function
// reported ok.
type StringRef any
type FunctionRef any

// Module is the read-only collaborator contract: interned string and
// function tables a function's bytecode indexes into via push_string_*
// and push_function. call_* operands are argument counts and
// load_closure_* operands are closure slots; neither consults Module.
type Module interface {
	String(i uint32) (StringRef, bool)
	StringCount() uint32
	Function(i uint32) (FunctionRef, bool)
	FunctionCount() uint32
}

// Function is one compile unit: a contiguous bytecode range, its
// parameter count, and the module it closes over for string/function
// table lookups.
type Function struct {
	Bytecode   []byte
	Parameters int
	Module     Module
}
