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

	"github.com/rchtsang/ttff-sub001/errors"
	"github.com/rchtsang/ttff-sub001/pcode"
	"github.com/rchtsang/ttff-sub001/taint"
)

// evalLoad implements `load(space, addr_vnd) -> dst` (§4.H.1).
func (e *Evaluator) evalLoad(ctx Context, addr uint64, op pcode.PCodeData) error {
	if len(op.Inputs) < 2 || op.Output == nil {
		return boundaryErr(errors.KindUnsupportedOpcode, "eval", addr, fmt.Errorf("malformed load"))
	}
	addrVal, addrTag, err := ctx.Read(op.Inputs[1])
	if err != nil {
		return boundaryErr(errors.KindUnmapped, "Read", addr, err)
	}
	if e.Hooks.PreMemAccess != nil {
		if herr := e.Hooks.PreMemAccess(e.pc, addrVal.Uint64(), op.Output.Size, false); herr != nil {
			return herr
		}
	}
	if lc, ok := e.Policy.(loadChecker); ok {
		if cerr := lc.CheckLoadMem(addrVal.Uint64(), addrTag); cerr != nil {
			return boundaryErr(errors.KindPolicyViolation, "check_load_mem", addr, cerr)
		}
	}
	memVal, memTag, err := ctx.Load(addrVal.Uint64(), op.Output.Size)
	if err != nil {
		return boundaryErr(errors.KindOOBRead, "Load", addr, err)
	}
	tag := e.Policy.PropagateLoad(memVal, memTag, addrVal, addrTag)
	if cerr := e.Policy.CheckAssign(*op.Output, memVal, tag); cerr != nil {
		return boundaryErr(errors.KindPolicyViolation, "check_assign", addr, cerr)
	}
	if werr := ctx.Write(*op.Output, memVal, tag); werr != nil {
		return boundaryErr(errors.KindUnmapped, "Write", addr, werr)
	}
	return nil
}

// evalStore implements `store(space, addr_vnd, src_vnd)` (§4.H.1).
func (e *Evaluator) evalStore(ctx Context, addr uint64, op pcode.PCodeData) error {
	if len(op.Inputs) < 3 {
		return boundaryErr(errors.KindUnsupportedOpcode, "eval", addr, fmt.Errorf("malformed store"))
	}
	addrVal, addrTag, err := ctx.Read(op.Inputs[1])
	if err != nil {
		return boundaryErr(errors.KindUnmapped, "Read", addr, err)
	}
	srcVal, srcTag, err := ctx.Read(op.Inputs[2])
	if err != nil {
		return boundaryErr(errors.KindUnmapped, "Read", addr, err)
	}
	if e.Hooks.PreMemAccess != nil {
		if herr := e.Hooks.PreMemAccess(e.pc, addrVal.Uint64(), srcVal.Width(), true); herr != nil {
			return herr
		}
	}
	tag := e.Policy.PropagateStore(srcVal, srcTag, addrVal, addrTag)
	if cerr := e.Policy.CheckWriteMem(addrVal.Uint64(), srcVal, tag); cerr != nil {
		return boundaryErr(errors.KindPolicyViolation, "check_write_mem", addr, cerr)
	}
	if werr := ctx.Store(addrVal.Uint64(), srcVal, tag); werr != nil {
		return boundaryErr(errors.KindOOBWrite, "Store", addr, werr)
	}
	return nil
}

// evalBranch implements branch/cbranch/ibranch/call/icall/return (§4.H.1).
// A constant-space target is an absolute address at position 0 — see the
// decoder's note on why the intra-instruction-position-offset form of a
// constant-space target never arises from this lifter.
func (e *Evaluator) evalBranch(ctx Context, addr uint64, op pcode.PCodeData) (FlowKind, error) {
	switch op.Opcode {
	case pcode.OpBranch, pcode.OpCall:
		loc, tag, err := e.resolveTarget(ctx, addr, op.Inputs[0])
		if err != nil {
			return FlowFall, err
		}
		e.setPC(loc, tag)
		if op.Opcode == pcode.OpCall {
			return FlowCall, nil
		}
		return FlowBranch, nil

	case pcode.OpCBranch:
		cond, condTag, err := ctx.Read(op.Inputs[1])
		if err != nil {
			return FlowFall, boundaryErr(errors.KindUnmapped, "Read", addr, err)
		}
		if cerr := e.Policy.CheckCondBranch(op.Opcode, cond, condTag); cerr != nil {
			return FlowFall, boundaryErr(errors.KindPolicyViolation, "check_cond_branch", addr, cerr)
		}
		if cond.IsZero() {
			return FlowFall, nil
		}
		loc, tag, err := e.resolveTarget(ctx, addr, op.Inputs[0])
		if err != nil {
			return FlowFall, err
		}
		e.setPC(loc, tag)
		return FlowBranch, nil

	case pcode.OpIBranch, pcode.OpICall, pcode.OpReturn:
		target, targetTag, err := ctx.Read(op.Inputs[0])
		if err != nil {
			return FlowFall, boundaryErr(errors.KindUnmapped, "Read", addr, err)
		}
		if cerr := e.Policy.CheckBranch(op.Opcode, target, targetTag); cerr != nil {
			return FlowFall, boundaryErr(errors.KindPolicyViolation, "check_branch", addr, cerr)
		}
		e.setPC(pcode.Location{Address: target.Uint64() &^ 1, Position: 0}, targetTag)
		switch op.Opcode {
		case pcode.OpICall:
			return FlowCall, nil
		case pcode.OpReturn:
			return FlowReturn, nil
		default:
			return FlowBranch, nil
		}

	default:
		return FlowFall, boundaryErr(errors.KindUnsupportedOpcode, "eval", addr, fmt.Errorf("opcode %v not implemented", op.Opcode))
	}
}

// resolveTarget treats a constant-space target as an absolute address
// rather than §4.H.1's literal "position offset within the same
// instruction" reading of a constant source space; every decoder this
// evaluator runs against emits single-exit straight-line p-code per
// instruction, so the position-offset form never arises in practice (see
// DESIGN.md).
func (e *Evaluator) resolveTarget(ctx Context, addr uint64, v pcode.Varnode) (pcode.Location, taint.Tag, error) {
	if v.Space == pcode.SpaceConstant {
		return pcode.Location{Address: v.Offset, Position: 0}, taint.CLEAN, nil
	}
	val, tag, err := ctx.Read(v)
	if err != nil {
		return pcode.Location{}, taint.CLEAN, boundaryErr(errors.KindUnmapped, "Read", addr, err)
	}
	return pcode.Location{Address: val.Uint64(), Position: 0}, tag, nil
}
