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
	"github.com/rchtsang/ttff-sub001/pcode"
	"github.com/rchtsang/ttff-sub001/taint"
)

// TaintedJump flags a tainted-value assignment into the program counter,
// or a tainted target on an indirect branch family opcode, as a violation
// (§4.G canonical policy 1).
type TaintedJump struct {
	BasePolicy
}

func (TaintedJump) CheckAssign(dst pcode.Varnode, _ bitvec.BitVec, tag taint.Tag) error {
	if dst.Space == pcode.SpaceRegister && dst.Offset == pcRegisterOffset && tag&taint.TaintedValue != 0 {
		return &Violation{Rule: "tainted-jump", Detail: "assignment of a tainted value into pc"}
	}
	return nil
}

func (TaintedJump) CheckBranch(op pcode.Opcode, _ bitvec.BitVec, tag taint.Tag) error {
	switch op {
	case pcode.OpIBranch, pcode.OpICall, pcode.OpReturn:
		if tag&taint.TaintedValue != 0 {
			return &Violation{Rule: "tainted-jump", Detail: "indirect branch target is tainted"}
		}
	}
	return nil
}
