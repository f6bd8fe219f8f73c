// Package asm is a small text assembler for the stack-VM bytecode the
// vm/ssa compilation pass consumes. It exists so cmd/gvmssa has something
// human-writable to feed ssa.CompileFunction with; it is not part of the
// SSA pass itself and never imports anything from it beyond the opcode
// table.
//
// Adapted from the teacher repo's compile.go comment-stripping,
// label-resolution two-pass structure, retargeted at a variable-width
// (not fixed 8-byte) instruction encoding.
package asm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ktstephano/gvmssa/vm/ssa"
)

var comments = regexp.MustCompile(`//.*`)

type rawInstruction struct {
	line   int
	offset int
	op     ssa.Opcode
	args   []string
}

// Assemble turns newline-delimited assembly source into the binary
// bytecode ssa.Function.Bytecode expects, plus a label->offset table
// useful for debug output. Labels are a line of the form "name:"; every
// other non-blank, non-comment line is "mnemonic" or "mnemonic arg" (or,
// for swap_8/16/32, "mnemonic arg0 arg1").
func Assemble(source string) ([]byte, map[string]int, error) {
	labels := make(map[string]int)
	var instructions []rawInstruction

	offset := 0
	for lineNum, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(comments.ReplaceAllString(raw, ""))
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") {
			name := strings.TrimSuffix(line, ":")
			if strings.ContainsAny(name, " \t") {
				return nil, nil, fmt.Errorf("line %d: label contains whitespace: %q", lineNum+1, line)
			}
			if _, exists := labels[name]; exists {
				return nil, nil, fmt.Errorf("line %d: duplicate label %q", lineNum+1, name)
			}
			labels[name] = offset
			continue
		}

		fields := strings.Fields(line)
		mnemonic := fields[0]
		op, ok := ssa.LookupOpcode(mnemonic)
		if !ok {
			return nil, nil, fmt.Errorf("line %d: unknown mnemonic %q", lineNum+1, mnemonic)
		}

		width := op.OperandWidth()
		wantArgs := 0
		switch {
		case width == 0:
			wantArgs = 0
		case isSwap(op):
			wantArgs = 2
		default:
			wantArgs = 1
		}
		args := fields[1:]
		if len(args) != wantArgs {
			return nil, nil, fmt.Errorf("line %d: %s wants %d operand(s), got %d", lineNum+1, mnemonic, wantArgs, len(args))
		}

		instructions = append(instructions, rawInstruction{line: lineNum + 1, offset: offset, op: op, args: args})
		offset += 1 + width
	}

	out := make([]byte, offset)
	for _, ins := range instructions {
		if err := encode(out, ins, labels); err != nil {
			return nil, nil, err
		}
	}

	return out, labels, nil
}

func isSwap(op ssa.Opcode) bool {
	name := op.String()
	return name == "swap_8" || name == "swap_16" || name == "swap_32"
}

func encode(out []byte, ins rawInstruction, labels map[string]int) error {
	pos := ins.offset
	out[pos] = byte(ins.op)
	pos++

	width := ins.op.OperandWidth()
	if width == 0 {
		return nil
	}

	if isSwap(ins.op) {
		half := width / 2
		for _, arg := range ins.args {
			v, err := resolveOperand(ins.line, arg, labels, half)
			if err != nil {
				return err
			}
			putUint(out[pos:pos+half], half, v)
			pos += half
		}
		return nil
	}

	if ins.op.String() == "push_float" {
		v, err := parseFloat(ins.line, ins.args[0])
		if err != nil {
			return err
		}
		putUint(out[pos:pos+width], width, v)
		return nil
	}

	v, err := resolveOperand(ins.line, ins.args[0], labels, width)
	if err != nil {
		return err
	}
	putUint(out[pos:pos+width], width, v)
	return nil
}

// resolveOperand interprets arg as a label reference (for jump targets),
// otherwise as a decimal or 0x-prefixed hexadecimal integer, and checks it
// fits in width bytes.
func resolveOperand(line int, arg string, labels map[string]int, width int) (uint64, error) {
	limit := uint64(math.MaxUint64)
	if width < 8 {
		limit = uint64(1)<<(8*width) - 1
	}
	if target, ok := labels[arg]; ok {
		if uint64(target) > limit {
			return 0, fmt.Errorf("line %d: operand %q does not fit in %d byte(s)", line, arg, width)
		}
		return uint64(target), nil
	}

	base := 10
	neg := false
	s := arg
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}

	if neg {
		n, err := strconv.ParseInt("-"+s, base, 64)
		if err != nil {
			return 0, fmt.Errorf("line %d: invalid operand %q: %w", line, arg, err)
		}
		if n < -int64(limit/2)-1 {
			return 0, fmt.Errorf("line %d: operand %q does not fit in %d byte(s)", line, arg, width)
		}
		return maskToWidth(uint64(n), width), nil
	}

	n, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid operand %q: %w", line, arg, err)
	}
	if n > limit {
		return 0, fmt.Errorf("line %d: operand %q does not fit in %d byte(s)", line, arg, width)
	}
	return n, nil
}

func maskToWidth(v uint64, width int) uint64 {
	switch width {
	case 1:
		return uint64(uint8(v))
	case 2:
		return uint64(uint16(v))
	case 4:
		return uint64(uint32(v))
	default:
		return v
	}
}

func parseFloat(line int, arg string) (uint64, error) {
	f, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid float operand %q: %w", line, arg, err)
	}
	return math.Float64bits(f), nil
}

func putUint(b []byte, width int, v uint64) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		b[0] = byte(v)
		b[1] = byte(v >> 8)
	case 4:
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
	case 8:
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
	}
}
