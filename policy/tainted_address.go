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

package policy

import (
	"github.com/rchtsang/ttff-sub001/bitvec"
	"github.com/rchtsang/ttff-sub001/taint"
)

// Frame is a call-stack frame as the callstack plugin sees it: the return
// address and stack pointer captured at call time (§4.G canonical policy
// 2: "A frame is defined by {pc, sp}").
type Frame struct {
	PC uint32
	SP uint32
}

// FrameUpdate is one push (call) or pop (return) notification from an
// external callstack-tracking plugin.
type FrameUpdate struct {
	Push  bool
	Frame Frame
}

// TaintedAddress flags loads/stores whose address is tainted, unless the
// address falls within the current stack frame (§4.G canonical policy 2).
// It tracks frames by draining a FrameUpdate channel before each check —
// pull-based rather than callback-based, matching the event-queue
// discipline the rest of the emulator uses for architectural side effects
// (peripheral.EventQueue) instead of handing the plugin a live reference
// into policy state.
type TaintedAddress struct {
	BasePolicy
	Updates  <-chan FrameUpdate
	stackTop uint32 // upper bound of the outermost frame (e.g. initial SP)
	frames   []Frame
}

// NewTaintedAddress returns a policy that treats every address as
// out-of-frame until a FrameUpdate arrives. stackTop bounds the outermost
// frame from above (typically the initial stack pointer read from the
// firmware's vector table).
func NewTaintedAddress(updates <-chan FrameUpdate, stackTop uint32) *TaintedAddress {
	return &TaintedAddress{Updates: updates, stackTop: stackTop}
}

// drain consumes any pending frame updates without blocking.
func (p *TaintedAddress) drain() {
	if p.Updates == nil {
		return
	}
	for {
		select {
		case u := <-p.Updates:
			if u.Push {
				p.frames = append(p.frames, u.Frame)
			} else if len(p.frames) > 0 {
				p.frames = p.frames[:len(p.frames)-1]
			}
		default:
			return
		}
	}
}

// inCurrentFrame reports whether addr lies within the current (topmost)
// frame's stack span: [frame.SP, callerSP), where callerSP is the SP the
// enclosing frame captured at its own call site, or stackTop for the
// outermost frame. The ARMv7-M stack grows down, so a frame's valid range
// sits between its own SP and the SP of whoever called into it.
func (p *TaintedAddress) inCurrentFrame(addr uint32) bool {
	p.drain()
	if len(p.frames) == 0 {
		return false
	}
	cur := p.frames[len(p.frames)-1]
	bound := p.stackTop
	if len(p.frames) > 1 {
		bound = p.frames[len(p.frames)-2].SP
	}
	return addr >= cur.SP && addr < bound
}

func (p *TaintedAddress) checkAddress(addr bitvec.BitVec, tag taint.Tag) error {
	if tag&(taint.TaintedValue|taint.TaintedLocation) == 0 {
		return nil
	}
	if p.inCurrentFrame(addr.Uint32()) {
		return nil
	}
	return &Violation{Rule: "tainted-address", Detail: "memory access address is tainted outside the current stack frame"}
}

// CheckWriteMem implements the address-taint check for stores; load-side
// checking happens in the evaluator's load path via CheckLoadMem.
func (p *TaintedAddress) CheckWriteMem(addr uint64, _ bitvec.BitVec, tag taint.Tag) error {
	return p.checkAddress(bitvec.FromUint64(addr, 4, false), tag)
}

// CheckLoadMem is the load-side counterpart to CheckWriteMem; it is not
// part of the Policy interface (loads have no check_* hook named in §4.G
// beyond propagate_load) but TaintedAddress exposes it so the evaluator
// can apply the same in-frame exemption symmetrically to loads, which the
// spec's prose ("loads/stores whose address is tainted are violations")
// requires even though only check_write_mem is named explicitly.
func (p *TaintedAddress) CheckLoadMem(addr uint64, tagAddr taint.Tag) error {
	return p.checkAddress(bitvec.FromUint64(addr, 4, false), tagAddr)
}
