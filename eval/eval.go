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

// Package eval implements the evaluator (§4.H): a mutable intra-instruction
// program counter plus a micro-op interpreter driven by a Policy and a
// user-op table, stepping one instruction at a time against a Context.
//
// Grounded on arm/thumb.go's per-opcode stepFunction dispatch (rerouted
// from "decode and execute one Thumb instruction" to "interpret a slice
// of already-lifted micro-ops") and arm/arm.go's Run() outer loop,
// generalised from "one Thumb opcode per step" into "one micro-op per
// step, tracking Location.Position across the instruction's p-code".
package eval

import (
	"fmt"

	"github.com/rchtsang/ttff-sub001/bitvec"
	"github.com/rchtsang/ttff-sub001/errors"
	"github.com/rchtsang/ttff-sub001/pcode"
	"github.com/rchtsang/ttff-sub001/policy"
	"github.com/rchtsang/ttff-sub001/taint"
)

// Context is the subset of emuctx.Context the evaluator drives. Defined
// here, rather than imported, so eval depends on a narrow interface
// instead of the full context implementation (§4.F's Request/Response
// table reduced to the operations step actually issues).
type Context interface {
	Fetch(address uint64) (pcode.Instruction, error)
	Read(v pcode.Varnode) (bitvec.BitVec, taint.Tag, error)
	Write(v pcode.Varnode, val bitvec.BitVec, tag taint.Tag) error
	Load(addr uint64, size int) (bitvec.BitVec, taint.Tag, error)
	Store(addr uint64, val bitvec.BitVec, tag taint.Tag) error
	ReadPc() uint32
	WritePc(addr uint32)
	ReadSp() uint32
	WriteSp(addr uint32)
}

// loadChecker is the optional address-taint check a policy may expose for
// the load side of a memory access; CheckWriteMem is the only load/store
// check named directly in the Policy interface (§4.G), so load-side
// symmetry is offered as an optional capability in the style of io's
// ReaderFrom/WriterTo rather than widening Policy for every policy that
// doesn't need it.
type loadChecker interface {
	CheckLoadMem(addr uint64, tag taint.Tag) error
}

// Hooks are the evaluator-side analysis plugin callbacks (§4.J). Any
// callback may be nil. Returning a non-nil error aborts the step exactly
// like an internal evaluator error.
type Hooks struct {
	PreInsn      func(addr uint64, insn pcode.Instruction) error
	PostInsn     func(addr uint64, insn pcode.Instruction) error
	PrePCode     func(loc pcode.Location, op pcode.PCodeData) error
	PostPCode    func(loc pcode.Location, op pcode.PCodeData) error
	PreMemAccess func(loc pcode.Location, addr uint64, size int, write bool) error
}

// FlowKind classifies how a micro-op redirected control flow, mirroring
// the FlowKind the CFG labels edges with (§4.H step 3, §4.I).
type FlowKind int

const (
	FlowFall FlowKind = iota
	FlowBranch
	FlowCall
	FlowReturn
)

func (k FlowKind) String() string {
	switch k {
	case FlowBranch:
		return "branch"
	case FlowCall:
		return "call"
	case FlowReturn:
		return "return"
	default:
		return "fall"
	}
}

// Evaluator holds the intra-instruction program counter and its taint tag
// (§4.H: "Holds a mutable pc: Location and a corresponding pc_tag").
type Evaluator struct {
	pc       pcode.Location
	pcTag    taint.Tag
	lastFrom uint64
	lastFlow FlowKind
	Policy   policy.Policy
	UserOps  UserOpTable
	Hooks    Hooks
}

// New returns an Evaluator using p for taint decisions and ops for
// CallOther dispatch. If ops is nil, DefaultUserOps() is used.
func New(p policy.Policy, ops UserOpTable) *Evaluator {
	if ops == nil {
		ops = DefaultUserOps()
	}
	return &Evaluator{Policy: p, UserOps: ops}
}

// PC returns the evaluator's current intra-instruction location.
func (e *Evaluator) PC() pcode.Location { return e.pc }

// PCTag returns the taint tag of the value that produced the current pc
// (§4.H: "a corresponding pc_tag"). CLEAN for a fall-through or a direct
// branch/call, since a constant-space target carries no taint.
func (e *Evaluator) PCTag() taint.Tag { return e.pcTag }

// setPC updates both halves of the evaluator's intra-instruction program
// counter together, keeping pc and pc_tag in lockstep.
func (e *Evaluator) setPC(loc pcode.Location, tag taint.Tag) {
	e.pc = loc
	e.pcTag = tag
}

// LastEdge reports the flow kind and (parent, child) addresses of the most
// recently completed Step, for a caller (e.g. pdb.ProgramDB) to feed into
// add_edge/pre_edge_cb (§4.I: "On edge-generating events... it calls
// add_edge(parent, child, flow_kind)"). Valid only after at least one
// successful Step.
func (e *Evaluator) LastEdge() (parent uint64, child uint64, kind FlowKind) {
	return e.lastFrom, e.pc.Address, e.lastFlow
}

// Step performs one machine instruction (§4.H).
func (e *Evaluator) Step(ctx Context) error {
	addr := uint64(ctx.ReadPc())
	insn, err := ctx.Fetch(addr)
	if err != nil {
		return err
	}
	if e.Hooks.PreInsn != nil {
		if err := e.Hooks.PreInsn(addr, insn); err != nil {
			return err
		}
	}

	pos := 0
	if e.pc.Address == addr {
		pos = e.pc.Position
	}

	flow := FlowFall
	for ; pos < len(insn.PCode); pos++ {
		loc := pcode.Location{Address: addr, Position: pos}
		op := insn.PCode[pos]
		if e.Hooks.PrePCode != nil {
			if err := e.Hooks.PrePCode(loc, op); err != nil {
				return err
			}
		}
		kind, err := e.evalOp(ctx, addr, op)
		if err != nil {
			e.pc = loc
			return err
		}
		if e.Hooks.PostPCode != nil {
			if err := e.Hooks.PostPCode(loc, op); err != nil {
				e.pc = loc
				return err
			}
		}
		if kind != FlowFall {
			flow = kind
			break
		}
	}

	if flow == FlowFall {
		e.setPC(pcode.Location{Address: addr + uint64(insn.Length), Position: 0}, taint.CLEAN)
	}
	e.lastFrom, e.lastFlow = addr, flow
	ctx.WritePc(uint32(e.pc.Address))

	if e.Hooks.PostInsn != nil {
		if err := e.Hooks.PostInsn(addr, insn); err != nil {
			return err
		}
	}
	return nil
}

func boundaryErr(kind errors.Kind, op string, addr uint64, err error) error {
	return &errors.Error{Kind: kind, Op: op, Addr: addr, Err: err}
}

func (e *Evaluator) evalOp(ctx Context, addr uint64, op pcode.PCodeData) (FlowKind, error) {
	switch {
	case op.Opcode == pcode.OpCallOther:
		return e.evalCallOtherOp(ctx, addr, op)
	case op.Opcode.IsBranchFamily():
		return e.evalBranch(ctx, addr, op)
	case op.Opcode == pcode.OpLoad:
		return FlowFall, e.evalLoad(ctx, addr, op)
	case op.Opcode == pcode.OpStore:
		return FlowFall, e.evalStore(ctx, addr, op)
	default:
		return FlowFall, e.evalValueOp(ctx, addr, op)
	}
}

// evalCallOtherOp reads callother's inputs (§4.H.1: "input[0] is a
// constant user-op index, the remaining inputs and the output are passed
// to the architecture's user-op table") and dispatches to evalCallOther.
func (e *Evaluator) evalCallOtherOp(ctx Context, addr uint64, op pcode.PCodeData) (FlowKind, error) {
	vals := make([]bitvec.BitVec, len(op.Inputs))
	tags := make([]taint.Tag, len(op.Inputs))
	for i, in := range op.Inputs {
		v, t, err := ctx.Read(in)
		if err != nil {
			return FlowFall, boundaryErr(errors.KindUnmapped, "Read", addr, err)
		}
		vals[i] = v
		tags[i] = t
	}
	return e.evalCallOther(ctx, addr, op, vals, tags)
}

// evalValueOp handles copy/subpiece/int*/bool* — every opcode that reads
// zero or more varnodes, computes a (BitVec, Tag), and writes it to
// op.Output through check_assign.
func (e *Evaluator) evalValueOp(ctx Context, addr uint64, op pcode.PCodeData) error {
	vals := make([]bitvec.BitVec, len(op.Inputs))
	tags := make([]taint.Tag, len(op.Inputs))
	for i, in := range op.Inputs {
		v, t, err := ctx.Read(in)
		if err != nil {
			return boundaryErr(errors.KindUnmapped, "Read", addr, err)
		}
		vals[i] = v
		tags[i] = t
	}

	outWidth := 4
	if op.Output != nil {
		outWidth = op.Output.Size
	}

	var result bitvec.BitVec
	var tag taint.Tag
	var err error
	switch {
	case op.Opcode == pcode.OpCopy:
		result, tag = vals[0].Truncate(outWidth), tags[0]
	case op.Opcode == pcode.OpSubpiece:
		off := int(vals[1].Uint64())
		result = vals[0].SubPiece(off, outWidth)
		tag = e.Policy.PropagateSubpiece(tags[0])
	case isInt2(op.Opcode):
		result, err = evalInt2(op.Opcode, vals[0], vals[1], outWidth)
		if err != nil {
			return boundaryErr(errors.KindDivideByZero, "eval", addr, err)
		}
		var perr error
		tag, perr = e.Policy.PropagateInt2(op.Opcode, vals[0], vals[1], tags[0], tags[1])
		if perr != nil {
			return boundaryErr(errors.KindPolicyViolation, "eval", addr, perr)
		}
	case isInt1(op.Opcode):
		result = evalInt1(op.Opcode, vals[0], outWidth)
		tag = e.Policy.PropagateInt1(op.Opcode, vals[0], tags[0])
	case isBool2(op.Opcode):
		result = evalBool2(op.Opcode, vals[0], vals[1])
		tag = e.Policy.PropagateBool2(tags[0], tags[1])
	case op.Opcode == pcode.OpBoolNegate:
		result = bitvec.FromUint64(boolUint(vals[0].IsZero()), 1, false)
		tag = e.Policy.PropagateBool1(tags[0])
	default:
		return boundaryErr(errors.KindUnsupportedOpcode, "eval", addr, fmt.Errorf("opcode %v not implemented", op.Opcode))
	}

	if op.Output == nil {
		return nil
	}
	if cerr := e.Policy.CheckAssign(*op.Output, result, tag); cerr != nil {
		return boundaryErr(errors.KindPolicyViolation, "check_assign", addr, cerr)
	}
	if werr := ctx.Write(*op.Output, result, tag); werr != nil {
		return boundaryErr(errors.KindUnmapped, "Write", addr, werr)
	}
	return nil
}

func boolUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
