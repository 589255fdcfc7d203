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

package fuzz

import (
	"context"
	"testing"
	"time"

	"github.com/rchtsang/ttff-sub001/bitvec"
	"github.com/rchtsang/ttff-sub001/errors"
	"github.com/rchtsang/ttff-sub001/eval"
	"github.com/rchtsang/ttff-sub001/pcode"
	"github.com/rchtsang/ttff-sub001/pdb"
	"github.com/rchtsang/ttff-sub001/policy"
	"github.com/rchtsang/ttff-sub001/taint"
)

// loopCtx is a minimal eval.Context running an unconditional two-instruction
// loop: 0x1000 (a no-op Copy) falls through to 0x1002, a branch back to
// 0x1000. Never terminates on its own, so a Runner can only leave it via
// MaxSteps or ctx.Done().
type loopCtx struct {
	pc uint32
}

func (c *loopCtx) Fetch(addr uint64) (pcode.Instruction, error) {
	switch addr {
	case 0x1000:
		return pcode.Instruction{Length: 2, PCode: []pcode.PCodeData{{Opcode: pcode.OpCopy, Inputs: []pcode.Varnode{pcode.Const(0, 4)}}}}, nil
	case 0x1002:
		return pcode.Instruction{Length: 2, PCode: []pcode.PCodeData{
			{Opcode: pcode.OpBranch, Inputs: []pcode.Varnode{pcode.Const(0x1000, 4)}},
		}}, nil
	default:
		return pcode.Instruction{}, &errors.Error{Kind: errors.KindUnmapped, Op: "Fetch", Addr: addr}
	}
}
func (c *loopCtx) Read(pcode.Varnode) (bitvec.BitVec, taint.Tag, error) {
	return bitvec.Zero, taint.CLEAN, nil
}
func (c *loopCtx) Write(pcode.Varnode, bitvec.BitVec, taint.Tag) error { return nil }
func (c *loopCtx) Load(uint64, int) (bitvec.BitVec, taint.Tag, error) {
	return bitvec.Zero, taint.CLEAN, nil
}
func (c *loopCtx) Store(uint64, bitvec.BitVec, taint.Tag) error { return nil }
func (c *loopCtx) ReadPc() uint32                               { return c.pc }
func (c *loopCtx) WritePc(addr uint32)                          { c.pc = addr }
func (c *loopCtx) ReadSp() uint32                                { return 0 }
func (c *loopCtx) WriteSp(uint32)                                {}

// crashCtx faults on the second fetch, simulating a target that runs off
// into unmapped memory.
type crashCtx struct {
	loopCtx
	steps int
}

func (c *crashCtx) Fetch(addr uint64) (pcode.Instruction, error) {
	c.steps++
	if c.steps > 1 {
		return pcode.Instruction{}, &errors.Error{Kind: errors.KindUnmapped, Op: "Fetch", Addr: addr}
	}
	return c.loopCtx.Fetch(addr)
}

func TestRunTargetReturnsCrashOnBoundaryError(t *testing.T) {
	e := eval.New(policy.BasePolicy{}, nil)
	ctx := &crashCtx{loopCtx: loopCtx{pc: 0x1000}}
	r := NewRunner(e, ctx, nil)

	kind, err := r.RunTarget(context.Background(), nil)
	if kind != errors.ExitCrash {
		t.Errorf("ExitKind = %v, want ExitCrash", kind)
	}
	if err == nil {
		t.Fatal("expected a non-nil error")
	}
}

func TestRunTargetReturnsTimeoutOnMaxSteps(t *testing.T) {
	e := eval.New(policy.BasePolicy{}, nil)
	ctx := &loopCtx{pc: 0x1000}
	r := NewRunner(e, ctx, nil)
	r.MaxSteps = 10

	kind, err := r.RunTarget(context.Background(), nil)
	if kind != errors.ExitTimeout {
		t.Errorf("ExitKind = %v, want ExitTimeout", kind)
	}
	if err == nil {
		t.Fatal("expected a non-nil error")
	}
}

func TestRunTargetReturnsTimeoutOnContextDeadline(t *testing.T) {
	e := eval.New(policy.BasePolicy{}, nil)
	ctx := &loopCtx{pc: 0x1000}
	r := NewRunner(e, ctx, nil)

	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	kind, err := r.RunTarget(cctx, nil)
	if kind != errors.ExitTimeout {
		t.Errorf("ExitKind = %v, want ExitTimeout", kind)
	}
	if err == nil {
		t.Fatal("expected a non-nil error")
	}
}

func TestRunTargetRecordsCoverageViaProgramDB(t *testing.T) {
	e := eval.New(policy.BasePolicy{}, nil)
	ctx := &loopCtx{pc: 0x1000}
	db := pdb.New(ctx)
	cov := NewCoverageMap(64)
	db.Register(EdgePlugin{Map: cov})

	r := NewRunner(e, db, db)
	r.MaxSteps = 4

	kind, err := r.RunTarget(context.Background(), nil)
	if kind != errors.ExitTimeout {
		t.Errorf("ExitKind = %v, want ExitTimeout", kind)
	}
	if err == nil {
		t.Fatal("expected a non-nil error")
	}

	hit := false
	for _, b := range cov.Bytes() {
		if b != 0 {
			hit = true
			break
		}
	}
	if !hit {
		t.Error("expected at least one non-zero coverage entry after looping through a branch")
	}
}
