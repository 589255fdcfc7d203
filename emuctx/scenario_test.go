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

package emuctx_test

import (
	goerrors "errors"
	"testing"

	"github.com/rchtsang/ttff-sub001/bitvec"
	"github.com/rchtsang/ttff-sub001/emuctx"
	"github.com/rchtsang/ttff-sub001/errors"
	"github.com/rchtsang/ttff-sub001/eval"
	"github.com/rchtsang/ttff-sub001/lift"
	"github.com/rchtsang/ttff-sub001/policy"
	"github.com/rchtsang/ttff-sub001/scs"
	"github.com/rchtsang/ttff-sub001/state"
	"github.com/rchtsang/ttff-sub001/taint"
)

// squareProgram computes 9*9*9*9 = 6561 into r0 and halts by branching to
// itself at 0x04 (the end-to-end "square program" scenario). Layout:
//
//	0x00  b    #0x06          ; skip the halt trap
//	0x02  (unreached filler)
//	0x04  b    #0x04          ; halt: branch to self
//	0x06  movs r0, #9         ; r0 = accumulator, starts at 9
//	0x08  movs r1, #9         ; r1 = constant multiplier
//	0x0a  movs r2, #3         ; r2 = remaining multiplications
//	0x0c  muls r0, r1         ; loop: r0 *= r1
//	0x0e  subs r2, #1
//	0x10  bne  #0x0c
//	0x12  b    #0x04          ; done: branch to the halt trap
func squareProgram() []byte {
	return []byte{
		0x01, 0xE0, // 0x00: b #0x06
		0x00, 0x00, // 0x02: unreached
		0xFE, 0xE7, // 0x04: b #0x04 (self)
		0x09, 0x20, // 0x06: movs r0, #9
		0x09, 0x21, // 0x08: movs r1, #9
		0x03, 0x22, // 0x0a: movs r2, #3
		0x48, 0x43, // 0x0c: muls r0, r1
		0x01, 0x3A, // 0x0e: subs r2, #1
		0xFC, 0xD1, // 0x10: bne #0x0c
		0xF7, 0xE7, // 0x12: b #0x04
	}
}

func TestSquareProgramComputesNinthPowerFourAndHalts(t *testing.T) {
	ctx := emuctx.New(lift.NewThumbDecoder(), 32)
	if err := ctx.MapMemory("ram", 0, 0x2000, state.PermRead|state.PermWrite|state.PermExecute); err != nil {
		t.Fatalf("MapMemory: %v", err)
	}
	if err := ctx.MemoryRegion(0).WriteBytes(0, squareProgram()); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	ctx.WritePc(0)
	ctx.WriteSp(0x2000)

	ev := eval.New(policy.BasePolicy{}, nil)

	steps := 0
	for ctx.ReadPc() != 0x04 {
		if steps >= 50 {
			t.Fatalf("program did not reach the halt trap within 50 steps (pc=%#x)", ctx.ReadPc())
		}
		if err := ev.Step(ctx); err != nil {
			t.Fatalf("step %d: %v", steps, err)
		}
		steps++
	}

	if steps < 10 {
		t.Fatalf("expected at least ten instructions executed, got %d", steps)
	}
	r0, _ := ctx.ReadRegister(0)
	if r0 != 6561 {
		t.Fatalf("r0 = %d, want 6561", r0)
	}
}

func TestStoreToReadOnlySCSRegisterRaisesWriteAccessViolation(t *testing.T) {
	ctx := emuctx.New(lift.NewThumbDecoder(), 32)
	err := ctx.Store(scs.Base+scs.OffSysTickCALIB, bitvec.FromUint64(0, 4, false), taint.CLEAN)
	if err == nil {
		t.Fatalf("expected an error writing read-only CALIB")
	}
	var berr *errors.Error
	if !goerrors.As(err, &berr) || berr.Kind != errors.KindWriteAccessViolation {
		t.Fatalf("expected KindWriteAccessViolation, got %v", err)
	}
}
