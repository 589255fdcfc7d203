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

package lift

import (
	"encoding/binary"
	"fmt"

	"github.com/rchtsang/ttff-sub001/errors"
	"github.com/rchtsang/ttff-sub001/pcode"
)

// ThumbDecoder is a representative, non-exhaustive Thumb/Thumb2 decoder.
// It covers the subset of 16-bit Thumb formats needed to express simple
// ALU/load/store/branch programs and the two canonical test scenarios
// (§8): arithmetic-into-register loops and a tainted indirect branch.
// Formats it does not recognise return a BackendDecodeError rather than
// guessing — unsupported opcodes are never silently skipped (§7), the
// same discipline arm/thumb.go's decodeThumb table follows by returning a
// nil decodeFunction on an unrecognised pattern.
//
// Grounded on arm/thumb.go's descending-format if/else-if bitmask dispatch
// (decodeThumb), reworked to emit pcode.PCodeData instead of calling a Go
// closure that executes the instruction directly.
type ThumbDecoder struct {
	// RegCPSR is the register-space offset (in bytes) of the pseudo
	// condition-flags register this decoder uses to hold N/Z/C/V; it must
	// not alias any architectural register the evaluator also addresses
	// as r0-r15.
	RegCPSR uint64
}

// NewThumbDecoder returns a decoder that keeps condition flags in the
// register-space slot immediately after r0-r15 (offset 16*4).
func NewThumbDecoder() *ThumbDecoder {
	return &ThumbDecoder{RegCPSR: 16 * 4}
}

const (
	flagN uint32 = 1 << 31
	flagZ uint32 = 1 << 30
	flagC uint32 = 1 << 29
	flagV uint32 = 1 << 28
)

// builder accumulates pcode for one instruction and allocates unique
// (per-instruction temporary) varnodes from a small bump offset, reset at
// the start of every Decode call — unique storage is scoped to one
// instruction by construction (§3 Varnode: "unique (per-instruction
// temporaries)").
type builder struct {
	ops      []pcode.PCodeData
	uniqueOf uint64
}

func (b *builder) tmp(size int) pcode.Varnode {
	v := pcode.Varnode{Space: pcode.SpaceUnique, Offset: b.uniqueOf, Size: size}
	b.uniqueOf += uint64(size)
	return v
}

func (b *builder) emit(op pcode.Opcode, out *pcode.Varnode, inputs ...pcode.Varnode) {
	b.ops = append(b.ops, pcode.PCodeData{Opcode: op, Inputs: inputs, Output: out})
}

func reg(n int) pcode.Varnode {
	return pcode.Varnode{Space: pcode.SpaceRegister, Offset: uint64(n) * 4, Size: 4}
}

func (d *ThumbDecoder) cpsr() pcode.Varnode {
	return pcode.Varnode{Space: pcode.SpaceRegister, Offset: d.RegCPSR, Size: 4}
}

// negativeBit tests bit (8*size-1) of v, i.e. the sign bit of a two's
// complement value of v's own width.
func (b *builder) negativeBit(v pcode.Varnode) pcode.Varnode {
	signMask := uint64(1) << uint(8*v.Size-1)
	masked := b.tmp(v.Size)
	b.emit(pcode.OpIntAnd, &masked, v, pcode.Const(signMask, v.Size))
	n := b.tmp(1)
	b.emit(pcode.OpIntNe, &n, masked, pcode.Const(0, v.Size))
	return n
}

// setNZ emits micro-ops updating only the N and Z flags from result.
func (d *ThumbDecoder) setNZ(b *builder, result pcode.Varnode) {
	n := b.negativeBit(result)
	z := b.tmp(1)
	b.emit(pcode.OpIntEq, &z, result, pcode.Const(0, result.Size))
	d.mergeFlags(b, &n, &z, nil, nil)
}

// setNZCV emits micro-ops updating all four flags from an add/sub result.
func (d *ThumbDecoder) setNZCV(b *builder, op pcode.Opcode, result, lhs, rhs pcode.Varnode) {
	n := b.negativeBit(result)
	z := b.tmp(1)
	b.emit(pcode.OpIntEq, &z, result, pcode.Const(0, result.Size))
	c := b.tmp(1)
	if op == pcode.OpIntAdd {
		b.emit(pcode.OpIntCarry, &c, lhs, rhs)
	} else {
		// subtraction sets C when no borrow occurs, i.e. lhs >= rhs unsigned
		borrow := b.tmp(1)
		b.emit(pcode.OpIntLt, &borrow, lhs, rhs)
		b.emit(pcode.OpBoolNegate, &c, borrow)
	}
	v := b.tmp(1)
	if op == pcode.OpIntAdd {
		b.emit(pcode.OpIntSCarry, &v, lhs, rhs)
	} else {
		b.emit(pcode.OpIntSBorrow, &v, lhs, rhs)
	}
	d.mergeFlags(b, &n, &z, &c, &v)
}

// mergeFlags assembles whichever of n/z/c/v are non-nil into the CPSR
// register, preserving the untouched flag bits.
func (d *ThumbDecoder) mergeFlags(b *builder, n, z, c, v *pcode.Varnode) {
	cpsr := d.cpsr()
	acc := cpsr
	type bit struct {
		src  *pcode.Varnode
		mask uint32
		pos  uint64
	}
	for _, bt := range []bit{{n, flagN, 31}, {z, flagZ, 30}, {c, flagC, 29}, {v, flagV, 28}} {
		if bt.src == nil {
			continue
		}
		masked := b.tmp(4)
		b.emit(pcode.OpIntAnd, &masked, acc, pcode.Const(uint64(^bt.mask), 4))
		widened := b.tmp(4)
		b.emit(pcode.OpIntZExt, &widened, *bt.src)
		shifted := b.tmp(4)
		b.emit(pcode.OpIntShiftL, &shifted, widened, pcode.Const(bt.pos, 4))
		next := b.tmp(4)
		b.emit(pcode.OpIntOr, &next, masked, shifted)
		acc = next
	}
	out := cpsr
	b.emit(pcode.OpCopy, &out, acc)
}

// branchCond builds the boolean varnode testing Thumb condition code cc
// (bits 11:8 of a format-16 conditional branch opcode) against the CPSR
// flags.
func (d *ThumbDecoder) branchCond(b *builder, cc uint16) pcode.Varnode {
	cpsr := d.cpsr()
	flagBit := func(mask uint32) pcode.Varnode {
		masked := b.tmp(4)
		b.emit(pcode.OpIntAnd, &masked, cpsr, pcode.Const(uint64(mask), 4))
		nz := b.tmp(1)
		b.emit(pcode.OpIntNe, &nz, masked, pcode.Const(0, 4))
		return nz
	}
	switch cc {
	case 0x0: // EQ
		return flagBit(flagZ)
	case 0x1: // NE
		z := flagBit(flagZ)
		out := b.tmp(1)
		b.emit(pcode.OpBoolNegate, &out, z)
		return out
	case 0x2: // CS
		return flagBit(flagC)
	case 0x3: // CC
		c := flagBit(flagC)
		out := b.tmp(1)
		b.emit(pcode.OpBoolNegate, &out, c)
		return out
	case 0x4: // MI
		return flagBit(flagN)
	case 0x5: // PL
		n := flagBit(flagN)
		out := b.tmp(1)
		b.emit(pcode.OpBoolNegate, &out, n)
		return out
	default:
		// decodeConditionalBranch rejects every condition code above PL
		// before calling here, so this case is not reached from Decode.
		out := b.tmp(1)
		b.emit(pcode.OpCopy, &out, pcode.Const(1, 1))
		return out
	}
}

// Decode implements Lifter.
func (d *ThumbDecoder) Decode(addr uint64, raw []byte) (pcode.Instruction, error) {
	if len(raw) < 2 {
		return pcode.Instruction{}, fmt.Errorf("lift: truncated fetch at %#x", addr)
	}
	opcode := binary.LittleEndian.Uint16(raw)
	b := &builder{}

	switch {
	case opcode&0xE000 == 0x0000 && opcode&0x1800 != 0x1800:
		// format 1: LSL/LSR/ASR Rd, Rm, #imm5 — only the LSL (op=00) case
		// is modelled; LSR/ASR fall through to the unsupported fallback
		// below via the op-field check inside decodeLSLImmediate.
		return d.decodeLSLImmediate(addr, opcode, b)
	case opcode&0xF800 == 0x1800:
		return d.decodeAddSubtract(addr, opcode, b)
	case opcode&0xE000 == 0x2000:
		return d.decodeMovCmpAddSubImm(addr, opcode, b)
	case opcode&0xFFC0 == 0x4340:
		return d.decodeMuls(addr, opcode, b)
	case opcode&0xFC00 == 0x4400 || opcode&0xFF00 == 0x4700:
		return d.decodeHiRegOpsBranchExchange(addr, opcode, b)
	case opcode&0xE000 == 0x6000:
		return d.decodeLoadStoreImmOffset(addr, opcode, b)
	case opcode&0xF000 == 0x9000:
		return d.decodeSPRelativeLoadStore(addr, opcode, b)
	case opcode&0xFF00 == 0xDF00:
		return pcode.Instruction{}, &errors.Error{Kind: errors.KindUnsupportedOpcode, Op: "Decode", Addr: addr, Err: fmt.Errorf("svc not modelled")}
	case opcode&0xF000 == 0xD000:
		return d.decodeConditionalBranch(addr, opcode, b)
	case opcode&0xF800 == 0xE000:
		return d.decodeUnconditionalBranch(addr, opcode, b)
	default:
		return pcode.Instruction{}, &errors.Error{Kind: errors.KindBackendDecode, Op: "Decode", Addr: addr,
			Err: fmt.Errorf("opcode %#04x at %#x not recognised by the representative decoder", opcode, addr)}
	}
}

func regLo(opcode uint16, shift uint) int { return int((opcode >> shift) & 0x7) }

// decodeLSLImmediate: format 1, op=00, "LSLS Rd, Rm, #imm5". LSR/ASR (op=01/10)
// are not modelled by the representative decoder.
func (d *ThumbDecoder) decodeLSLImmediate(addr uint64, opcode uint16, b *builder) (pcode.Instruction, error) {
	if (opcode>>11)&0x3 != 0 {
		return pcode.Instruction{}, &errors.Error{Kind: errors.KindBackendDecode, Op: "Decode", Addr: addr,
			Err: fmt.Errorf("lsr/asr immediate not modelled by the representative decoder")}
	}
	imm5 := uint64((opcode >> 6) & 0x1F)
	rm := reg(regLo(opcode, 3))
	rd := reg(regLo(opcode, 0))
	b.emit(pcode.OpIntShiftL, &rd, rm, pcode.Const(imm5, 4))
	d.setNZ(b, rd)
	return finish(addr, fmt.Sprintf("lsls r%d, r%d, #%d", regLo(opcode, 0), regLo(opcode, 3), imm5), b, 2)
}

// decodeAddSubtract: format 2, "ADDS/SUBS Rd, Rn, Rm|#imm3".
func (d *ThumbDecoder) decodeAddSubtract(addr uint64, opcode uint16, b *builder) (pcode.Instruction, error) {
	isSub := opcode&0x0200 != 0
	isImm := opcode&0x0400 != 0
	rn := reg(regLo(opcode, 3))
	rd := reg(regLo(opcode, 0))
	var rhs pcode.Varnode
	if isImm {
		rhs = pcode.Const(uint64((opcode>>6)&0x7), 4)
	} else {
		rhs = reg(regLo(opcode, 6))
	}
	op := pcode.OpIntAdd
	mnem := "adds"
	if isSub {
		op = pcode.OpIntSub
		mnem = "subs"
	}
	b.emit(op, &rd, rn, rhs)
	d.setNZCV(b, op, rd, rn, rhs)
	return finish(addr, fmt.Sprintf("%s r%d, r%d, ...", mnem, regLo(opcode, 0), regLo(opcode, 3)), b, 2)
}

// decodeMovCmpAddSubImm: format 3, "MOVS/CMP/ADDS/SUBS Rd, #imm8".
func (d *ThumbDecoder) decodeMovCmpAddSubImm(addr uint64, opcode uint16, b *builder) (pcode.Instruction, error) {
	sub := (opcode >> 11) & 0x3
	rd := reg(regLo(opcode, 8))
	imm := pcode.Const(uint64(opcode&0xFF), 4)
	switch sub {
	case 0: // MOVS
		b.emit(pcode.OpCopy, &rd, imm)
		d.setNZ(b, rd)
		return finish(addr, fmt.Sprintf("movs r%d, #%d", regLo(opcode, 8), opcode&0xFF), b, 2)
	case 1: // CMP
		result := b.tmp(4)
		b.emit(pcode.OpIntSub, &result, rd, imm)
		d.setNZCV(b, pcode.OpIntSub, result, rd, imm)
		return finish(addr, fmt.Sprintf("cmp r%d, #%d", regLo(opcode, 8), opcode&0xFF), b, 2)
	case 2: // ADDS
		b.emit(pcode.OpIntAdd, &rd, rd, imm)
		d.setNZCV(b, pcode.OpIntAdd, rd, rd, imm)
		return finish(addr, fmt.Sprintf("adds r%d, #%d", regLo(opcode, 8), opcode&0xFF), b, 2)
	default: // SUBS
		b.emit(pcode.OpIntSub, &rd, rd, imm)
		d.setNZCV(b, pcode.OpIntSub, rd, rd, imm)
		return finish(addr, fmt.Sprintf("subs r%d, #%d", regLo(opcode, 8), opcode&0xFF), b, 2)
	}
}

// decodeMuls: format 4 ALU op 1101, "MULS Rd, Rm" (Rd := Rd * Rm). Per the
// ARMv7-M ARM, MULS updates N and Z only; C and V are unaffected.
func (d *ThumbDecoder) decodeMuls(addr uint64, opcode uint16, b *builder) (pcode.Instruction, error) {
	rm := reg(regLo(opcode, 3))
	rd := reg(regLo(opcode, 0))
	b.emit(pcode.OpIntMul, &rd, rd, rm)
	d.setNZ(b, rd)
	return finish(addr, fmt.Sprintf("muls r%d, r%d", regLo(opcode, 0), regLo(opcode, 3)), b, 2)
}

// decodeHiRegOpsBranchExchange: format 5, covers only BX Rm (branch
// exchange), the subset this decoder supports. BLX Rm (bit 7 set) decodes
// to the same plain indirect branch; LR is not written.
func (d *ThumbDecoder) decodeHiRegOpsBranchExchange(addr uint64, opcode uint16, b *builder) (pcode.Instruction, error) {
	if opcode&0xFF00 != 0x4700 {
		return pcode.Instruction{}, &errors.Error{Kind: errors.KindBackendDecode, Op: "Decode", Addr: addr,
			Err: fmt.Errorf("hi-register ALU ops not modelled by the representative decoder")}
	}
	rm := int((opcode >> 3) & 0xF)
	target := reg(rm)
	b.emit(pcode.OpIBranch, nil, target)
	return finish(addr, fmt.Sprintf("bx r%d", rm), b, 2)
}

// decodeLoadStoreImmOffset: format 9, word and byte variants,
// "LDR/STR Rd, [Rn, #imm5*4]" and "LDRB/STRB Rd, [Rn, #imm5]".
func (d *ThumbDecoder) decodeLoadStoreImmOffset(addr uint64, opcode uint16, b *builder) (pcode.Instruction, error) {
	isLoad := opcode&0x0800 != 0
	isByte := opcode&0x1000 != 0
	imm5 := uint64((opcode >> 6) & 0x1F)
	size := 4
	if isByte {
		size = 1
	} else {
		imm5 *= 4
	}
	rn := reg(regLo(opcode, 3))
	rd := reg(regLo(opcode, 0))
	addrv := b.tmp(4)
	b.emit(pcode.OpIntAdd, &addrv, rn, pcode.Const(imm5, 4))
	mnem := "str"
	if isLoad {
		mnem = "ldr"
		out := rd
		out.Size = size
		b.emit(pcode.OpLoad, &out, pcode.Const(0, 4), addrv)
	} else {
		src := rd
		src.Size = size
		b.emit(pcode.OpStore, nil, pcode.Const(0, 4), addrv, src)
	}
	return finish(addr, fmt.Sprintf("%s r%d, [r%d, #%d]", mnem, regLo(opcode, 0), regLo(opcode, 3), imm5), b, 2)
}

// decodeSPRelativeLoadStore: format 11, "LDR/STR Rd, [SP, #imm8*4]".
func (d *ThumbDecoder) decodeSPRelativeLoadStore(addr uint64, opcode uint16, b *builder) (pcode.Instruction, error) {
	isLoad := opcode&0x0800 != 0
	imm8 := uint64(opcode&0xFF) * 4
	rd := reg(regLo(opcode, 8))
	sp := reg(13)
	addrv := b.tmp(4)
	b.emit(pcode.OpIntAdd, &addrv, sp, pcode.Const(imm8, 4))
	mnem := "str"
	if isLoad {
		mnem = "ldr"
		b.emit(pcode.OpLoad, &rd, pcode.Const(0, 4), addrv)
	} else {
		b.emit(pcode.OpStore, nil, pcode.Const(0, 4), addrv, rd)
	}
	return finish(addr, fmt.Sprintf("%s r%d, [sp, #%d]", mnem, regLo(opcode, 8), imm8), b, 2)
}

// decodeConditionalBranch: format 16, "Bcc label".
func (d *ThumbDecoder) decodeConditionalBranch(addr uint64, opcode uint16, b *builder) (pcode.Instruction, error) {
	cc := (opcode >> 8) & 0xF
	if cc > 0x5 {
		return pcode.Instruction{}, &errors.Error{Kind: errors.KindBackendDecode, Op: "Decode", Addr: addr,
			Err: fmt.Errorf("condition code %#x not modelled by the representative decoder", cc)}
	}
	imm8 := int8(opcode & 0xFF)
	target := addr + 4 + uint64(int64(imm8)*2)
	cond := d.branchCond(b, cc)
	// the evaluator treats a constant-space branch target as an absolute
	// address at position 0, not an intra-instruction position offset —
	// every instruction this decoder emits is single-exit straight-line
	// p-code, so the position-offset form never arises.
	b.emit(pcode.OpCBranch, nil, pcode.Varnode{Space: pcode.SpaceConstant, Offset: target, Size: 4}, cond)
	return finish(addr, fmt.Sprintf("bcc.%d #%#x", cc, target), b, 2)
}

// decodeUnconditionalBranch: format 18, "B label".
func (d *ThumbDecoder) decodeUnconditionalBranch(addr uint64, opcode uint16, b *builder) (pcode.Instruction, error) {
	imm11 := int32(opcode & 0x7FF)
	signed := (imm11 << 21) >> 21 // sign-extend 11-bit field
	target := uint64(int64(addr) + 4 + int64(signed)*2)
	b.emit(pcode.OpBranch, nil, pcode.Varnode{Space: pcode.SpaceConstant, Offset: target, Size: 4})
	return finish(addr, fmt.Sprintf("b #%#x", target), b, 2)
}

func finish(addr uint64, disasm string, b *builder, length int) (pcode.Instruction, error) {
	return pcode.Instruction{Disassembly: disasm, PCode: b.ops, Length: length}, nil
}
