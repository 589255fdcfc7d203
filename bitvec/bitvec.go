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

// Package bitvec implements the BitVec type (spec §3): an arbitrary
// bit-width integer value with explicit signedness and byte-order
// conversions. Every p-code operand materialises as a BitVec.
//
// The teacher's ARM core (hardware/memory/cartridge/arm/status.go) only
// ever works in native uint32 registers and inlines its sign/overflow
// bit-twiddling at each call site; BitVec generalises that same style of
// direct bit manipulation to the 1/2/4/8-byte widths a p-code varnode may
// carry, since loads, stores, and sub-word micro-ops all need an explicit
// width distinct from Go's native integer widths.
package bitvec

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// BitVec is an immutable value holding up to 64 bits of data, a declared
// byte width (1, 2, 4, or 8), and a signedness used only by conversions to
// Int64/String — the raw bits are always stored masked to Width*8 bits.
type BitVec struct {
	width  int // width in BYTES
	signed bool
	bits   uint64
}

// Zero is the BitVec equivalent of CLEAN: a 4-byte zero.
var Zero = FromUint64(0, 4, false)

// FromUint64 constructs an unsigned-or-signed BitVec of the given byte
// width from a native uint64, masking off any bits beyond width*8.
func FromUint64(val uint64, width int, signed bool) BitVec {
	if width <= 0 || width > 8 {
		panic(fmt.Sprintf("bitvec: invalid width %d bytes", width))
	}
	return BitVec{width: width, signed: signed, bits: mask(val, width)}
}

// FromInt64 constructs a signed BitVec from a native int64.
func FromInt64(val int64, width int) BitVec {
	return FromUint64(uint64(val), width, true)
}

func mask(v uint64, width int) uint64 {
	bitWidth := uint(width) * 8
	if bitWidth >= 64 {
		return v
	}
	return v & ((uint64(1) << bitWidth) - 1)
}

// FromBytes decodes width bytes of src (len(src) must be >= width) into a
// BitVec using the given byte order.
func FromBytes(src []byte, width int, signed bool, order binary.ByteOrder) BitVec {
	if len(src) < width {
		panic("bitvec: FromBytes: short buffer")
	}
	var buf [8]byte
	copy(buf[:width], src[:width])
	var raw uint64
	switch width {
	case 1:
		raw = uint64(buf[0])
	case 2:
		raw = uint64(order.Uint16(buf[:2]))
	case 4:
		raw = uint64(order.Uint32(buf[:4]))
	case 8:
		raw = order.Uint64(buf[:8])
	default:
		// odd widths (e.g. 3-byte subpiece extraction) decoded byte-by-byte
		if order == binary.LittleEndian {
			for i := width - 1; i >= 0; i-- {
				raw = raw<<8 | uint64(buf[i])
			}
		} else {
			for i := 0; i < width; i++ {
				raw = raw<<8 | uint64(buf[i])
			}
		}
	}
	return FromUint64(raw, width, signed)
}

// Bytes encodes the BitVec's width bytes using the given byte order.
func (v BitVec) Bytes(order binary.ByteOrder) []byte {
	out := make([]byte, v.width)
	switch v.width {
	case 1:
		out[0] = byte(v.bits)
	case 2:
		order.PutUint16(out, uint16(v.bits))
	case 4:
		order.PutUint32(out, uint32(v.bits))
	case 8:
		order.PutUint64(out, v.bits)
	default:
		// reconstruct byte-by-byte: sum of byte_k << (8*k), see spec §9 open
		// question on the reconstruction bug to avoid repeating.
		if order == binary.LittleEndian {
			for i := 0; i < v.width; i++ {
				out[i] = byte(v.bits >> (8 * uint(i)))
			}
		} else {
			for i := 0; i < v.width; i++ {
				out[v.width-1-i] = byte(v.bits >> (8 * uint(i)))
			}
		}
	}
	return out
}

// Width returns the byte width of the value.
func (v BitVec) Width() int { return v.width }

// Signed reports whether the value should be interpreted as signed by
// Int64/String.
func (v BitVec) Signed() bool { return v.signed }

// Uint64 returns the raw, zero-extended bit pattern.
func (v BitVec) Uint64() uint64 { return v.bits }

// Uint32 is a convenience truncation of Uint64, valid for width <= 4.
func (v BitVec) Uint32() uint32 { return uint32(v.bits) }

// Int64 returns the value sign-extended from its declared width.
func (v BitVec) Int64() int64 {
	bitWidth := uint(v.width) * 8
	if bitWidth >= 64 {
		return int64(v.bits)
	}
	signBit := uint64(1) << (bitWidth - 1)
	if v.bits&signBit != 0 {
		return int64(v.bits | ^((signBit << 1) - 1))
	}
	return int64(v.bits)
}

// IsZero reports whether every bit of the value is zero.
func (v BitVec) IsZero() bool { return v.bits == 0 }

// Negative reports whether the most-significant bit of the declared width
// is set (the ARM "N" flag test, arm/status.go isNegative generalised to
// arbitrary width).
func (v BitVec) Negative() bool {
	bitWidth := uint(v.width) * 8
	if bitWidth == 0 {
		return false
	}
	signBit := uint64(1) << (bitWidth - 1)
	return v.bits&signBit != 0
}

// ZeroExtend returns a copy of v widened to newWidth bytes with zero fill.
func (v BitVec) ZeroExtend(newWidth int) BitVec {
	return FromUint64(v.bits, newWidth, v.signed)
}

// SignExtend returns a copy of v widened to newWidth bytes, replicating the
// sign bit of the current width.
func (v BitVec) SignExtend(newWidth int) BitVec {
	return FromInt64(v.Int64(), newWidth)
}

// Truncate returns the low newWidth bytes of v.
func (v BitVec) Truncate(newWidth int) BitVec {
	return FromUint64(v.bits, newWidth, v.signed)
}

// SubPiece extracts size bytes of v starting at byte offset off (spec
// §4.A subpiece), using the declared byte order to determine which physical
// bytes "offset 0" refers to. ARMv7-M is little-endian throughout, so this
// always extracts from the low end.
func (v BitVec) SubPiece(off, size int) BitVec {
	shifted := v.bits >> (uint(off) * 8)
	return FromUint64(shifted, size, false)
}

// LeadingZeros returns the count of leading zero bits within the declared
// width (used by the CLZ user-op, spec §4.H.2).
func (v BitVec) LeadingZeros() int {
	bitWidth := v.width * 8
	if v.bits == 0 {
		return bitWidth
	}
	return bits.LeadingZeros64(v.bits) - (64 - bitWidth)
}

// PopCount returns the number of set bits.
func (v BitVec) PopCount() int {
	return bits.OnesCount64(v.bits)
}

func (v BitVec) String() string {
	if v.signed {
		return fmt.Sprintf("%d:%d", v.Int64(), v.width)
	}
	return fmt.Sprintf("%#x:%d", v.bits, v.width)
}
