// This file is part of ttff-sub001.
//
// ttff-sub001 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ttff-sub001 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ttff-sub001.  If not, see <https://www.gnu.org/licenses/>.

// Package pcode defines the micro-op intermediate representation the
// lifter produces and the evaluator interprets: Space, Varnode, Opcode,
// PCodeData, Instruction, and Location.
//
// Grounded on arm.DisasmEntry (a data-only record describing one decoded
// instruction) generalised from a single fixed disassembly record into a
// generic sequence-of-micro-ops record; the disassembly text field
// (Address/Operator/Operand in the teacher) survives here as Instruction's
// Disassembly string.
package pcode

import "fmt"

// Space names the disjoint operand spaces a Varnode can address.
type Space int

const (
	// SpaceRegister addresses the architectural register file.
	SpaceRegister Space = iota
	// SpaceUnique addresses per-instruction temporaries.
	SpaceUnique
	// SpaceConstant encodes a literal value directly in Offset.
	SpaceConstant
	// SpaceDefault addresses main (byte-granular) memory.
	SpaceDefault
)

func (s Space) String() string {
	switch s {
	case SpaceRegister:
		return "register"
	case SpaceUnique:
		return "unique"
	case SpaceConstant:
		return "constant"
	case SpaceDefault:
		return "default"
	default:
		return "?"
	}
}

// Varnode describes one micro-op operand: which space it lives in, its
// offset within that space (or, for SpaceConstant, the literal value
// itself), and its width in bytes.
type Varnode struct {
	Space  Space
	Offset uint64
	Size   int
}

func (v Varnode) String() string {
	return fmt.Sprintf("%s[%#x:%d]", v.Space, v.Offset, v.Size)
}

// Const builds a SpaceConstant varnode carrying the literal val in width
// bytes — the idiom used throughout the lifter for immediates.
func Const(val uint64, width int) Varnode {
	return Varnode{Space: SpaceConstant, Offset: val, Size: width}
}

// Opcode enumerates every micro-op kind the lifter emits.
type Opcode int

const (
	OpCopy Opcode = iota
	OpSubpiece

	// integer binary
	OpIntAdd
	OpIntSub
	OpIntMul
	OpIntDiv
	OpIntSDiv
	OpIntRem
	OpIntSRem
	OpIntAnd
	OpIntOr
	OpIntXor
	OpIntShiftL
	OpIntShiftR
	OpIntShiftSR
	OpIntEq
	OpIntNe
	OpIntLt
	OpIntSLe
	OpIntCarry
	OpIntSCarry
	OpIntSBorrow

	// integer unary
	OpIntNeg
	OpIntNot
	OpIntSExt
	OpIntZExt
	OpIntLZCount
	OpIntPopCount

	// boolean
	OpBoolNegate
	OpBoolAnd
	OpBoolOr
	OpBoolXor

	// memory
	OpLoad
	OpStore

	// branch family
	OpBranch
	OpCBranch
	OpIBranch
	OpCall
	OpICall
	OpReturn
	OpCallOther
)

var opcodeNames = map[Opcode]string{
	OpCopy: "copy", OpSubpiece: "subpiece",
	OpIntAdd: "int_add", OpIntSub: "int_sub", OpIntMul: "int_mul",
	OpIntDiv: "int_div", OpIntSDiv: "int_sdiv", OpIntRem: "int_rem", OpIntSRem: "int_srem",
	OpIntAnd: "int_and", OpIntOr: "int_or", OpIntXor: "int_xor",
	OpIntShiftL: "int_shl", OpIntShiftR: "int_shr", OpIntShiftSR: "int_sshr",
	OpIntEq: "int_eq", OpIntNe: "int_ne", OpIntLt: "int_lt", OpIntSLe: "int_sle",
	OpIntCarry: "int_carry", OpIntSCarry: "int_scarry", OpIntSBorrow: "int_sborrow",
	OpIntNeg: "int_neg", OpIntNot: "int_not", OpIntSExt: "int_sext", OpIntZExt: "int_zext",
	OpIntLZCount: "int_lzcount", OpIntPopCount: "int_popcount",
	OpBoolNegate: "bool_negate", OpBoolAnd: "bool_and", OpBoolOr: "bool_or", OpBoolXor: "bool_xor",
	OpLoad: "load", OpStore: "store",
	OpBranch: "branch", OpCBranch: "cbranch", OpIBranch: "ibranch",
	OpCall: "call", OpICall: "icall", OpReturn: "return", OpCallOther: "callother",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("opcode(%d)", int(op))
}

// IsBranchFamily reports whether op terminates a basic block (§4.B).
func (op Opcode) IsBranchFamily() bool {
	switch op {
	case OpBranch, OpCBranch, OpIBranch, OpCall, OpICall, OpReturn, OpCallOther:
		return true
	default:
		return false
	}
}

// PCodeData is one micro-op: an opcode, its inputs, and an optional output
// varnode (nil when the opcode has no destination, e.g. store/branch).
type PCodeData struct {
	Opcode Opcode
	Inputs []Varnode
	Output *Varnode
}

func (p PCodeData) String() string {
	if p.Output != nil {
		return fmt.Sprintf("%s = %s %v", p.Output, p.Opcode, p.Inputs)
	}
	return fmt.Sprintf("%s %v", p.Opcode, p.Inputs)
}

// Instruction is a concrete immutable record of one decoded machine
// instruction: its disassembly text, its expansion into micro-ops, and its
// length in bytes. Value equality (via reflect.DeepEqual in tests) is used
// only as a test oracle, never for cache identity.
type Instruction struct {
	Disassembly string
	PCode       []PCodeData
	Length      int
}

// Location is the evaluator's intra-instruction program counter: the
// address of the current instruction plus the index of the micro-op within
// its PCode slice currently being evaluated.
type Location struct {
	Address  uint64
	Position int
}

func (l Location) String() string {
	return fmt.Sprintf("%#x.%d", l.Address, l.Position)
}
