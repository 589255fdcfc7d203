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

// TaintedOverflow flags int_add/int_mul on tainted operands whose concrete
// result overflows the operand width (§4.G canonical policy 3).
// Multiplication is checked by computing in double width and inspecting
// the high half, since BitVec tops out at 8 bytes and ARMv7-M words are
// at most 4 — doubling never exceeds the BitVec's native uint64 backing
// store.
type TaintedOverflow struct {
	BasePolicy
}

func (TaintedOverflow) PropagateInt2(op pcode.Opcode, a, b bitvec.BitVec, ta, tb taint.Tag) (taint.Tag, error) {
	tag := ta | tb
	if ta&taint.TaintedValue == 0 && tb&taint.TaintedValue == 0 {
		return tag, nil
	}
	width := a.Width()
	if b.Width() > width {
		width = b.Width()
	}
	switch op {
	case pcode.OpIntAdd:
		sum := a.Uint64() + b.Uint64()
		if overflowsWidth(sum, width) {
			return tag, &Violation{Rule: "tainted-overflow", Detail: "int_add overflows operand width on tainted operands"}
		}
	case pcode.OpIntMul:
		product := a.Uint64() * b.Uint64() // double-width product; a,b already masked to width*8 bits each
		if overflowsWidth(product, width) {
			return tag, &Violation{Rule: "tainted-overflow", Detail: "int_mul overflows operand width on tainted operands"}
		}
	}
	return tag, nil
}

// overflowsWidth reports whether v needs more than width bytes to
// represent — the "inspect the high half of a double-width result" check,
// expressed directly against the native uint64 the product/sum already
// occupies rather than materialising a second BitVec.
func overflowsWidth(v uint64, width int) bool {
	bitWidth := uint(width) * 8
	if bitWidth >= 64 {
		return false
	}
	return v>>bitWidth != 0
}
