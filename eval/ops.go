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
	"fmt"

	"github.com/rchtsang/ttff-sub001/bitvec"
	"github.com/rchtsang/ttff-sub001/errors"
	"github.com/rchtsang/ttff-sub001/pcode"
	"github.com/rchtsang/ttff-sub001/taint"
)

func isInt2(op pcode.Opcode) bool {
	switch op {
	case pcode.OpIntAdd, pcode.OpIntSub, pcode.OpIntMul, pcode.OpIntDiv, pcode.OpIntSDiv,
		pcode.OpIntRem, pcode.OpIntSRem, pcode.OpIntAnd, pcode.OpIntOr, pcode.OpIntXor,
		pcode.OpIntShiftL, pcode.OpIntShiftR, pcode.OpIntShiftSR,
		pcode.OpIntEq, pcode.OpIntNe, pcode.OpIntLt, pcode.OpIntSLe,
		pcode.OpIntCarry, pcode.OpIntSCarry, pcode.OpIntSBorrow:
		return true
	default:
		return false
	}
}

func isInt1(op pcode.Opcode) bool {
	switch op {
	case pcode.OpIntNeg, pcode.OpIntNot, pcode.OpIntSExt, pcode.OpIntZExt,
		pcode.OpIntLZCount, pcode.OpIntPopCount:
		return true
	default:
		return false
	}
}

func isBool2(op pcode.Opcode) bool {
	switch op {
	case pcode.OpBoolAnd, pcode.OpBoolOr, pcode.OpBoolXor:
		return true
	default:
		return false
	}
}

// evalInt2 implements the two-operand integer micro-ops (§4.H.1): both
// operands are cast to the max of their widths before the operator is
// applied, then the result is cast to the destination width (or to 1 byte
// for comparison/flag opcodes, which always produce a boolean).
func evalInt2(op pcode.Opcode, a, b bitvec.BitVec, outWidth int) (bitvec.BitVec, error) {
	width := a.Width()
	if b.Width() > width {
		width = b.Width()
	}
	ua, ub := a.ZeroExtend(width).Uint64(), b.ZeroExtend(width).Uint64()
	sa, sb := a.SignExtend(width).Int64(), b.SignExtend(width).Int64()

	boolean := func(cond bool) (bitvec.BitVec, error) {
		return bitvec.FromUint64(boolUint(cond), 1, false), nil
	}

	switch op {
	case pcode.OpIntAdd:
		return bitvec.FromUint64(ua+ub, outWidth, false), nil
	case pcode.OpIntSub:
		return bitvec.FromUint64(ua-ub, outWidth, false), nil
	case pcode.OpIntMul:
		return bitvec.FromUint64(ua*ub, outWidth, false), nil
	case pcode.OpIntDiv:
		if ub == 0 {
			return bitvec.BitVec{}, fmt.Errorf("int_div by zero")
		}
		return bitvec.FromUint64(ua/ub, outWidth, false), nil
	case pcode.OpIntSDiv:
		if sb == 0 {
			return bitvec.BitVec{}, fmt.Errorf("int_sdiv by zero")
		}
		return bitvec.FromInt64(sa/sb, outWidth), nil
	case pcode.OpIntRem:
		if ub == 0 {
			return bitvec.BitVec{}, fmt.Errorf("int_rem by zero")
		}
		return bitvec.FromUint64(ua%ub, outWidth, false), nil
	case pcode.OpIntSRem:
		if sb == 0 {
			return bitvec.BitVec{}, fmt.Errorf("int_srem by zero")
		}
		return bitvec.FromInt64(sa%sb, outWidth), nil
	case pcode.OpIntAnd:
		return bitvec.FromUint64(ua&ub, outWidth, false), nil
	case pcode.OpIntOr:
		return bitvec.FromUint64(ua|ub, outWidth, false), nil
	case pcode.OpIntXor:
		return bitvec.FromUint64(ua^ub, outWidth, false), nil
	case pcode.OpIntShiftL:
		return bitvec.FromUint64(ua<<uint(ub), outWidth, false), nil
	case pcode.OpIntShiftR:
		return bitvec.FromUint64(ua>>uint(ub), outWidth, false), nil
	case pcode.OpIntShiftSR:
		return bitvec.FromInt64(sa>>uint(ub), outWidth), nil
	case pcode.OpIntEq:
		return boolean(ua == ub)
	case pcode.OpIntNe:
		return boolean(ua != ub)
	case pcode.OpIntLt:
		return boolean(ua < ub)
	case pcode.OpIntSLe:
		return boolean(sa <= sb)
	case pcode.OpIntCarry:
		return boolean(ua+ub > mask(width))
	case pcode.OpIntSCarry:
		result := bitvec.FromInt64(sa+sb, width).Int64()
		return boolean(signOf(sa) == signOf(sb) && signOf(result) != signOf(sa))
	case pcode.OpIntSBorrow:
		result := bitvec.FromInt64(sa-sb, width).Int64()
		return boolean(signOf(sa) != signOf(sb) && signOf(result) != signOf(sa))
	default:
		return bitvec.BitVec{}, fmt.Errorf("unhandled int2 opcode %v", op)
	}
}

func mask(width int) uint64 {
	bitWidth := uint(width) * 8
	if bitWidth >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bitWidth) - 1
}

func signOf(v int64) bool { return v < 0 }

// evalInt1 implements the one-operand integer micro-ops (§4.H.1).
func evalInt1(op pcode.Opcode, a bitvec.BitVec, outWidth int) bitvec.BitVec {
	switch op {
	case pcode.OpIntNeg:
		return bitvec.FromInt64(-a.Int64(), outWidth)
	case pcode.OpIntNot:
		return bitvec.FromUint64(^a.Uint64(), outWidth, false)
	case pcode.OpIntSExt:
		return a.SignExtend(outWidth)
	case pcode.OpIntZExt:
		return a.ZeroExtend(outWidth)
	case pcode.OpIntLZCount:
		return bitvec.FromUint64(uint64(a.LeadingZeros()), outWidth, false)
	case pcode.OpIntPopCount:
		return bitvec.FromUint64(uint64(a.PopCount()), outWidth, false)
	default:
		panic(fmt.Sprintf("eval: unhandled int1 opcode %v", op))
	}
}

// evalBool2 implements the two-operand boolean micro-ops; operands and
// result are single-byte 0/1 values.
func evalBool2(op pcode.Opcode, a, b bitvec.BitVec) bitvec.BitVec {
	av, bv := !a.IsZero(), !b.IsZero()
	var r bool
	switch op {
	case pcode.OpBoolAnd:
		r = av && bv
	case pcode.OpBoolOr:
		r = av || bv
	case pcode.OpBoolXor:
		r = av != bv
	}
	return bitvec.FromUint64(boolUint(r), 1, false)
}

// evalCallOther implements the callother opcode (§4.H.1, §4.H.2):
// input[0] is a constant user-op index, the remaining inputs and the
// output are passed to the architecture's user-op table. A handler may
// return a redirect Location (to model e.g. an exception entry sequence)
// and/or a result written back to op.Output through check_assign, same as
// any other value-producing micro-op.
func (e *Evaluator) evalCallOther(ctx Context, addr uint64, op pcode.PCodeData, vals []bitvec.BitVec, tags []taint.Tag) (FlowKind, error) {
	if len(op.Inputs) < 1 {
		return FlowFall, boundaryErr(errors.KindInvalidUserOp, "callother", addr, fmt.Errorf("missing user-op index"))
	}
	idx := int(vals[0].Uint64())
	result, err := e.UserOps.Dispatch(ctx, idx, vals[1:], tags[1:], op.Output)
	if err != nil {
		return FlowFall, boundaryErr(errors.KindInvalidUserOp, "callother", addr, err)
	}
	if op.Output != nil {
		if cerr := e.Policy.CheckAssign(*op.Output, result.Value, result.Tag); cerr != nil {
			return FlowFall, boundaryErr(errors.KindPolicyViolation, "check_assign", addr, cerr)
		}
		if werr := ctx.Write(*op.Output, result.Value, result.Tag); werr != nil {
			return FlowFall, boundaryErr(errors.KindUnmapped, "Write", addr, werr)
		}
	}
	if result.Redirect != nil {
		e.setPC(*result.Redirect, taint.CLEAN)
		return FlowBranch, nil
	}
	return FlowFall, nil
}
