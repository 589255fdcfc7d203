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
	goerrors "errors"
	"testing"

	"github.com/rchtsang/ttff-sub001/bitvec"
	"github.com/rchtsang/ttff-sub001/errors"
	"github.com/rchtsang/ttff-sub001/pcode"
	"github.com/rchtsang/ttff-sub001/policy"
	"github.com/rchtsang/ttff-sub001/taint"
)

// fakeCtx is a minimal in-memory Context for evaluator tests, in the style
// of the teacher's own arm_test.go SharedMemory stand-ins.
type fakeCtx struct {
	regs     map[uint64]bitvec.BitVec
	regTags  map[uint64]taint.Tag
	uniques  map[uint64]bitvec.BitVec
	uniqTags map[uint64]taint.Tag
	mem      map[uint64]byte
	memTags  map[uint64]taint.Tag
	program  map[uint64]pcode.Instruction
	pc       uint32
	sp       uint32
}

func newFakeCtx() *fakeCtx {
	return &fakeCtx{
		regs:     make(map[uint64]bitvec.BitVec),
		regTags:  make(map[uint64]taint.Tag),
		uniques:  make(map[uint64]bitvec.BitVec),
		uniqTags: make(map[uint64]taint.Tag),
		mem:      make(map[uint64]byte),
		memTags:  make(map[uint64]taint.Tag),
		program:  make(map[uint64]pcode.Instruction),
	}
}

func (c *fakeCtx) Fetch(address uint64) (pcode.Instruction, error) {
	insn, ok := c.program[address]
	if !ok {
		return pcode.Instruction{}, errors.New(errors.KindAddressNotLifted, "Fetch", address, nil)
	}
	return insn, nil
}

func (c *fakeCtx) Read(v pcode.Varnode) (bitvec.BitVec, taint.Tag, error) {
	switch v.Space {
	case pcode.SpaceConstant:
		return bitvec.FromUint64(v.Offset, v.Size, false), taint.CLEAN, nil
	case pcode.SpaceRegister:
		return c.regs[v.Offset], c.regTags[v.Offset], nil
	case pcode.SpaceUnique:
		return c.uniques[v.Offset], c.uniqTags[v.Offset], nil
	default:
		return bitvec.BitVec{}, taint.CLEAN, goerrors.New("fakeCtx: unsupported space")
	}
}

func (c *fakeCtx) Write(v pcode.Varnode, val bitvec.BitVec, tag taint.Tag) error {
	switch v.Space {
	case pcode.SpaceRegister:
		c.regs[v.Offset] = val
		c.regTags[v.Offset] = tag
	case pcode.SpaceUnique:
		c.uniques[v.Offset] = val
		c.uniqTags[v.Offset] = tag
	default:
		return goerrors.New("fakeCtx: unsupported write space")
	}
	return nil
}

func (c *fakeCtx) Load(addr uint64, size int) (bitvec.BitVec, taint.Tag, error) {
	buf := make([]byte, size)
	var tag taint.Tag
	for i := 0; i < size; i++ {
		buf[i] = c.mem[addr+uint64(i)]
		tag = tag.Or(c.memTags[addr+uint64(i)])
	}
	return bitvec.FromBytes(buf, size, false, binary.LittleEndian), tag, nil
}

func (c *fakeCtx) Store(addr uint64, val bitvec.BitVec, tag taint.Tag) error {
	buf := val.Bytes(binary.LittleEndian)
	for i, b := range buf {
		c.mem[addr+uint64(i)] = b
		c.memTags[addr+uint64(i)] = tag
	}
	return nil
}

func (c *fakeCtx) ReadPc() uint32   { return c.pc }
func (c *fakeCtx) WritePc(v uint32) { c.pc = v }
func (c *fakeCtx) ReadSp() uint32   { return c.sp }
func (c *fakeCtx) WriteSp(v uint32) { c.sp = v }

const (
	r0Offset = 0 * 4
	spOffset = 13 * 4
	pcOffset = 15 * 4
)

func reg(offset uint64, size int) pcode.Varnode {
	return pcode.Varnode{Space: pcode.SpaceRegister, Offset: offset, Size: size}
}

func TestStepCopyMovesValueAndTag(t *testing.T) {
	ctx := newFakeCtx()
	ctx.regs[r0Offset] = bitvec.FromUint64(0, 4, false)
	const dstOffset = 1 * 4
	insn := pcode.Instruction{
		Length: 2,
		PCode: []pcode.PCodeData{
			{Opcode: pcode.OpCopy, Inputs: []pcode.Varnode{pcode.Const(42, 4)}, Output: ptrVarnode(reg(dstOffset, 4))},
		},
	}
	ctx.program[0x1000] = insn
	ctx.pc = 0x1000

	e := New(policy.BasePolicy{}, nil)
	if err := e.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := ctx.regs[dstOffset].Uint64(); got != 42 {
		t.Errorf("dst = %d, want 42", got)
	}
	if ctx.pc != 0x1002 {
		t.Errorf("pc = %#x, want 0x1002", ctx.pc)
	}
}

func TestStepIntMulComputesResult(t *testing.T) {
	ctx := newFakeCtx()
	const aOffset, bOffset, dstOffset = 0 * 4, 1 * 4, 2 * 4
	ctx.regs[aOffset] = bitvec.FromUint64(9, 4, false)
	ctx.regs[bOffset] = bitvec.FromUint64(9, 4, false)
	insn := pcode.Instruction{
		Length: 2,
		PCode: []pcode.PCodeData{
			{Opcode: pcode.OpIntMul, Inputs: []pcode.Varnode{reg(aOffset, 4), reg(bOffset, 4)}, Output: ptrVarnode(reg(dstOffset, 4))},
		},
	}
	ctx.program[0x2000] = insn
	ctx.pc = 0x2000

	e := New(policy.BasePolicy{}, nil)
	if err := e.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := ctx.regs[dstOffset].Uint64(); got != 81 {
		t.Errorf("9*9 = %d, want 81", got)
	}
}

// TestStepDivideByZeroIsFatal is the §8 testable property: "every integer
// divide/remainder micro-op with rhs=0 returns DivideByZero{addr}".
func TestStepDivideByZeroIsFatal(t *testing.T) {
	ctx := newFakeCtx()
	const aOffset, bOffset, dstOffset = 0 * 4, 1 * 4, 2 * 4
	ctx.regs[aOffset] = bitvec.FromUint64(10, 4, false)
	ctx.regs[bOffset] = bitvec.FromUint64(0, 4, false)
	insn := pcode.Instruction{
		Length: 2,
		PCode: []pcode.PCodeData{
			{Opcode: pcode.OpIntDiv, Inputs: []pcode.Varnode{reg(aOffset, 4), reg(bOffset, 4)}, Output: ptrVarnode(reg(dstOffset, 4))},
		},
	}
	ctx.program[0x3000] = insn
	ctx.pc = 0x3000

	e := New(policy.BasePolicy{}, nil)
	err := e.Step(ctx)
	if err == nil {
		t.Fatal("Step: expected DivideByZero error, got nil")
	}
	var berr *errors.Error
	if !goerrors.As(err, &berr) {
		t.Fatalf("Step: error %v is not *errors.Error", err)
	}
	if berr.Kind != errors.KindDivideByZero {
		t.Errorf("Kind = %v, want DivideByZero", berr.Kind)
	}
	if berr.Addr != 0x3000 {
		t.Errorf("Addr = %#x, want 0x3000", berr.Addr)
	}
}

// TestTaintedJumpScenario is §8 scenario 6: "ldr r0, [sp, #0]" then
// "bx r0" against a pre-tainted stack word raises a violation on the
// second step, with pc left at the bx instruction's address.
func TestTaintedJumpScenario(t *testing.T) {
	ctx := newFakeCtx()
	ctx.sp = 0x2000
	ctx.regs[spOffset] = bitvec.FromUint64(uint64(ctx.sp), 4, false)
	ctx.mem[0x2000] = 0x04
	ctx.mem[0x2001] = 0x10
	ctx.mem[0x2002] = 0x00
	ctx.mem[0x2003] = 0x00
	for i := uint64(0x2000); i < 0x2004; i++ {
		ctx.memTags[i] = taint.TaintedValue
	}

	ldr := pcode.Instruction{
		Length: 2,
		PCode: []pcode.PCodeData{
			{Opcode: pcode.OpLoad, Inputs: []pcode.Varnode{pcode.Const(0, 4), reg(spOffset, 4)}, Output: ptrVarnode(reg(r0Offset, 4))},
		},
	}
	bx := pcode.Instruction{
		Length: 2,
		PCode: []pcode.PCodeData{
			{Opcode: pcode.OpIBranch, Inputs: []pcode.Varnode{reg(r0Offset, 4)}},
		},
	}
	ctx.program[0x1000] = ldr
	ctx.program[0x1002] = bx
	ctx.pc = 0x1000

	e := New(policy.TaintedJump{}, nil)
	if err := e.Step(ctx); err != nil {
		t.Fatalf("first step (ldr): unexpected error %v", err)
	}
	if ctx.pc != 0x1002 {
		t.Fatalf("pc after ldr = %#x, want 0x1002", ctx.pc)
	}

	err := e.Step(ctx)
	if err == nil {
		t.Fatal("second step (bx): expected a tainted-jump violation, got nil")
	}
	var berr *errors.Error
	if !goerrors.As(err, &berr) {
		t.Fatalf("second step: error %v is not *errors.Error", err)
	}
	if berr.Kind != errors.KindPolicyViolation {
		t.Errorf("Kind = %v, want PolicyViolation", berr.Kind)
	}
	if e.PC().Address != 0x1002 {
		t.Errorf("evaluator pc left at %#x, want 0x1002 (the bx instruction)", e.PC().Address)
	}
}

func TestStepDirectBranchRedirectsPc(t *testing.T) {
	ctx := newFakeCtx()
	insn := pcode.Instruction{
		Length: 2,
		PCode: []pcode.PCodeData{
			{Opcode: pcode.OpBranch, Inputs: []pcode.Varnode{pcode.Const(0x4010, 8)}},
		},
	}
	ctx.program[0x4000] = insn
	ctx.pc = 0x4000

	e := New(policy.BasePolicy{}, nil)
	if err := e.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if ctx.pc != 0x4010 {
		t.Errorf("pc = %#x, want 0x4010", ctx.pc)
	}
	if e.PCTag() != taint.CLEAN {
		t.Errorf("PCTag() = %v, want CLEAN after a direct branch", e.PCTag())
	}
}

func ptrVarnode(v pcode.Varnode) *pcode.Varnode { return &v }
