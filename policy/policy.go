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

// Package policy defines the taint-policy strategy interface the
// evaluator consults on every assignment, branch, and memory access
// (§4.G), plus a default bitwise-or propagation base and the three
// canonical policies.
//
// The policy-as-strategy-object split is dictated directly by the design
// note that every policy function receives already-materialised
// (value, tag) pairs rather than a handle into live state — there is no
// teacher equivalent to ground the interface shape on (arm.ARM checks
// taint nowhere), so BasePolicy is grounded instead on arm/status.go's
// Status flags as the model for "small bitflag state consulted by
// multiple independent checks".
package policy

import (
	"fmt"

	"github.com/rchtsang/ttff-sub001/bitvec"
	"github.com/rchtsang/ttff-sub001/pcode"
	"github.com/rchtsang/ttff-sub001/taint"
)

// pcRegisterOffset mirrors emuctx's register-space layout (offset = index *
// 4 bytes); duplicated here rather than imported to keep policy free of a
// dependency on the context package it is itself a strategy plugged into.
const (
	pcRegisterOffset = 15 * 4
)

// Violation is the error a policy check returns to flag a taint rule
// breach (§6 PolicyViolation). The evaluator wraps it in errors.Error with
// Kind: errors.KindPolicyViolation before it reaches the harness boundary.
type Violation struct {
	Rule   string
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("policy violation (%s): %s", v.Rule, v.Detail)
}

// Policy is the taint strategy interface (§4.G). Every method receives
// fully materialised BitVec/Tag pairs — never a mutable handle into
// evaluator or context state — so policies stay independently testable.
type Policy interface {
	// CheckAssign is called before writing (val, tag) to dst.
	CheckAssign(dst pcode.Varnode, val bitvec.BitVec, tag taint.Tag) error
	// CheckCondBranch is called before a cbranch evaluates its condition.
	CheckCondBranch(op pcode.Opcode, cond bitvec.BitVec, tag taint.Tag) error
	// CheckBranch is called before ibranch/icall/return resolve their target.
	CheckBranch(op pcode.Opcode, target bitvec.BitVec, tag taint.Tag) error
	// CheckWriteMem is called before a store commits to memory.
	CheckWriteMem(addr uint64, val bitvec.BitVec, tag taint.Tag) error

	// PropagateSubpiece returns the result tag of a subpiece extraction.
	PropagateSubpiece(src taint.Tag) taint.Tag
	// PropagateInt2 returns the result tag (and, for overflow-checking
	// policies, a violation error) of a two-operand integer micro-op.
	PropagateInt2(op pcode.Opcode, a, b bitvec.BitVec, ta, tb taint.Tag) (taint.Tag, error)
	// PropagateInt1 returns the result tag of a one-operand integer micro-op.
	PropagateInt1(op pcode.Opcode, a bitvec.BitVec, ta taint.Tag) taint.Tag
	// PropagateBool2 returns the result tag of a two-operand boolean micro-op.
	PropagateBool2(ta, tb taint.Tag) taint.Tag
	// PropagateBool1 returns the result tag of a one-operand boolean micro-op.
	PropagateBool1(ta taint.Tag) taint.Tag
	// PropagateLoad combines value-source and address-source taint for a load.
	PropagateLoad(val bitvec.BitVec, tagVal taint.Tag, addr bitvec.BitVec, tagAddr taint.Tag) taint.Tag
	// PropagateStore combines value-source and address-source taint for a store.
	PropagateStore(val bitvec.BitVec, tagVal taint.Tag, addr bitvec.BitVec, tagAddr taint.Tag) taint.Tag
}

// BasePolicy implements the default or-monoid propagation (§4.G
// "Propagation default is bitwise-or") with no violations raised by any
// check. Canonical policies embed BasePolicy and override only the checks
// or propagation rules they add.
type BasePolicy struct{}

func (BasePolicy) CheckAssign(pcode.Varnode, bitvec.BitVec, taint.Tag) error         { return nil }
func (BasePolicy) CheckCondBranch(pcode.Opcode, bitvec.BitVec, taint.Tag) error      { return nil }
func (BasePolicy) CheckBranch(pcode.Opcode, bitvec.BitVec, taint.Tag) error          { return nil }
func (BasePolicy) CheckWriteMem(uint64, bitvec.BitVec, taint.Tag) error              { return nil }
func (BasePolicy) PropagateSubpiece(src taint.Tag) taint.Tag                        { return src }
func (BasePolicy) PropagateInt1(_ pcode.Opcode, _ bitvec.BitVec, a taint.Tag) taint.Tag {
	return a
}
func (BasePolicy) PropagateBool2(a, b taint.Tag) taint.Tag { return a | b }
func (BasePolicy) PropagateBool1(a taint.Tag) taint.Tag    { return a }

func (BasePolicy) PropagateInt2(_ pcode.Opcode, _, _ bitvec.BitVec, ta, tb taint.Tag) (taint.Tag, error) {
	return ta | tb, nil
}

func (BasePolicy) PropagateLoad(_ bitvec.BitVec, tagVal taint.Tag, _ bitvec.BitVec, tagAddr taint.Tag) taint.Tag {
	return tagVal | tagAddr
}

func (BasePolicy) PropagateStore(_ bitvec.BitVec, tagVal taint.Tag, _ bitvec.BitVec, tagAddr taint.Tag) taint.Tag {
	return tagVal | tagAddr
}
