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

package eval

import (
	"encoding/binary"
	"fmt"

	"github.com/rchtsang/ttff-sub001/bitvec"
	"github.com/rchtsang/ttff-sub001/pcode"
	"github.com/rchtsang/ttff-sub001/taint"
)

// UserOpResult is what a user-op handler hands back to the evaluator: the
// (value, tag) to write to callother's output varnode (ignored if the
// micro-op has no output) plus an optional redirect that moves pc the way
// an exception-entry sequence or a mode switch would (§4.H.1: "a user-op
// may return an optional Location that redirects the PC").
type UserOpResult struct {
	Value    bitvec.BitVec
	Tag      taint.Tag
	Redirect *pcode.Location
}

// UserOpTable dispatches a callother's user-op index to an
// architecture-specific handler (§4.H.2).
type UserOpTable interface {
	Dispatch(ctx Context, idx int, inputs []bitvec.BitVec, tags []taint.Tag, output *pcode.Varnode) (UserOpResult, error)
}

// Unsupported is the well-defined error a handler returns for a user-op
// that is present in the table but architecturally irrelevant to concrete
// emulation (§4.H.2: "allowed to return Unsupported; the evaluator
// translates that to a fatal error") — the entry exists and is named, it
// simply refuses to execute, rather than being absent from the table.
type Unsupported struct {
	Name string
}

func (e *Unsupported) Error() string {
	return fmt.Sprintf("user-op %q unsupported", e.Name)
}

// Indices into the default ARMv7-M user-op table (§4.H.2's worked list).
// Decoder code that emits a CallOther references these by name.
const (
	UserOpCountLeadingZeroes = iota
	UserOpCoprocessorMove
	UserOpBarrier
	UserOpVectorOp
	UserOpSignedSaturate
	UserOpUnsignedSaturate
	UserOpPrivilegeSwitch
	UserOpWaitForEvent
	UserOpWaitForInterrupt
	UserOpSetEndian
	UserOpBitfieldReverse
	numUserOps
)

type userOpHandler func(ctx Context, inputs []bitvec.BitVec, tags []taint.Tag, output *pcode.Varnode) (UserOpResult, error)

// armUserOps is the default table named in §4.H.2: "an indexed table keyed
// by decode-time constant". Grounded on arm/instructions_thumb.go's
// CLZ/SSAT/USAT/CPS/REV-family case handling in arm/arm.go's stepFunction,
// generalised from "decode and execute one Thumb opcode" into "execute one
// already-decoded user-op given materialised (BitVec, Tag) operands".
type armUserOps struct {
	handlers [numUserOps]userOpHandler
}

// DefaultUserOps returns the ARMv7-M user-op table. Every index named in
// the const block above has an entry — some execute concretely, the rest
// return Unsupported — so a table lookup never finds a hole (§9 design
// note: "unimplemented entries are present and return a well-defined
// Unsupported error instead of absent entries").
func DefaultUserOps() UserOpTable {
	t := &armUserOps{}
	t.handlers[UserOpCountLeadingZeroes] = clzOp
	t.handlers[UserOpCoprocessorMove] = unsupportedOp("coprocessor_move")
	t.handlers[UserOpBarrier] = barrierOp
	t.handlers[UserOpVectorOp] = unsupportedOp("vector_op")
	t.handlers[UserOpSignedSaturate] = ssatOp
	t.handlers[UserOpUnsignedSaturate] = usatOp
	t.handlers[UserOpPrivilegeSwitch] = unsupportedOp("privilege_switch")
	t.handlers[UserOpWaitForEvent] = noopOp
	t.handlers[UserOpWaitForInterrupt] = noopOp
	t.handlers[UserOpSetEndian] = unsupportedOp("set_endian")
	t.handlers[UserOpBitfieldReverse] = revOp
	return t
}

func (t *armUserOps) Dispatch(ctx Context, idx int, inputs []bitvec.BitVec, tags []taint.Tag, output *pcode.Varnode) (UserOpResult, error) {
	if idx < 0 || idx >= numUserOps || t.handlers[idx] == nil {
		return UserOpResult{}, &Unsupported{Name: fmt.Sprintf("index %d", idx)}
	}
	return t.handlers[idx](ctx, inputs, tags, output)
}

func unsupportedOp(name string) userOpHandler {
	return func(ctx Context, inputs []bitvec.BitVec, tags []taint.Tag, output *pcode.Varnode) (UserOpResult, error) {
		return UserOpResult{}, &Unsupported{Name: name}
	}
}

// noopOp models WaitForEvent/WaitForInterrupt: concrete emulation never
// actually sleeps the core, it just falls through to the next instruction
// (§9 non-goal: no cycle-accurate timing or real suspend/wake modelling).
func noopOp(ctx Context, inputs []bitvec.BitVec, tags []taint.Tag, output *pcode.Varnode) (UserOpResult, error) {
	return UserOpResult{}, nil
}

// barrierOp models DMB/DSB/ISB: no-ops for a single-threaded interpreter
// with no instruction cache to flush.
func barrierOp(ctx Context, inputs []bitvec.BitVec, tags []taint.Tag, output *pcode.Varnode) (UserOpResult, error) {
	return UserOpResult{}, nil
}

func outWidth(output *pcode.Varnode) int {
	if output == nil {
		return 4
	}
	return output.Size
}

// clzOp counts leading zeroes in a 32-bit operand (Thumb CLZ).
func clzOp(ctx Context, inputs []bitvec.BitVec, tags []taint.Tag, output *pcode.Varnode) (UserOpResult, error) {
	if len(inputs) < 1 {
		return UserOpResult{}, &Unsupported{Name: "count_leading_zeroes: missing operand"}
	}
	return UserOpResult{
		Value: bitvec.FromUint64(uint64(inputs[0].LeadingZeros()), outWidth(output), false),
		Tag:   tags[0],
	}, nil
}

// revOp reverses byte order within a 32-bit word (Thumb REV).
func revOp(ctx Context, inputs []bitvec.BitVec, tags []taint.Tag, output *pcode.Varnode) (UserOpResult, error) {
	if len(inputs) < 1 {
		return UserOpResult{}, &Unsupported{Name: "bitfield_reverse: missing operand"}
	}
	b := inputs[0].Bytes(binary.LittleEndian)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return UserOpResult{
		Value: bitvec.FromBytes(b, len(b), false, binary.LittleEndian),
		Tag:   tags[0],
	}, nil
}

// ssatOp clamps a signed value to the range representable in sat_bits.
func ssatOp(ctx Context, inputs []bitvec.BitVec, tags []taint.Tag, output *pcode.Varnode) (UserOpResult, error) {
	if len(inputs) < 2 {
		return UserOpResult{}, &Unsupported{Name: "ssat: missing operands"}
	}
	satBits := uint(inputs[1].Uint64())
	v := inputs[0].Int64()
	hi := int64(1)<<(satBits-1) - 1
	lo := -(int64(1) << (satBits - 1))
	if v > hi {
		v = hi
	} else if v < lo {
		v = lo
	}
	return UserOpResult{
		Value: bitvec.FromInt64(v, outWidth(output)),
		Tag:   tags[0],
	}, nil
}

// usatOp clamps a signed value into the unsigned range representable in
// sat_bits.
func usatOp(ctx Context, inputs []bitvec.BitVec, tags []taint.Tag, output *pcode.Varnode) (UserOpResult, error) {
	if len(inputs) < 2 {
		return UserOpResult{}, &Unsupported{Name: "usat: missing operands"}
	}
	satBits := uint(inputs[1].Uint64())
	v := inputs[0].Int64()
	hi := int64(1)<<satBits - 1
	if v > hi {
		v = hi
	} else if v < 0 {
		v = 0
	}
	return UserOpResult{
		Value: bitvec.FromInt64(v, outWidth(output)),
		Tag:   tags[0],
	}, nil
}
