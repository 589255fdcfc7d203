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

package bitvec_test

import (
	"encoding/binary"
	"testing"

	"github.com/rchtsang/ttff-sub001/bitvec"
)

func TestEndianRoundTrip(t *testing.T) {
	widths := []int{1, 2, 4, 8}
	orders := []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}
	for _, w := range widths {
		for _, order := range orders {
			v := bitvec.FromUint64(0x0102030405060708, w, false)
			b := v.Bytes(order)
			got := bitvec.FromBytes(b, w, false, order)
			if got.Uint64() != v.Uint64() {
				t.Fatalf("round trip width=%d order=%v: got %#x want %#x", w, order, got.Uint64(), v.Uint64())
			}
		}
	}
}

func TestSignExtend(t *testing.T) {
	v := bitvec.FromUint64(0xff, 1, true) // -1 as int8
	ext := v.SignExtend(4)
	if ext.Int64() != -1 {
		t.Fatalf("sign extend -1: got %d", ext.Int64())
	}

	v2 := bitvec.FromUint64(0x7f, 1, true) // 127
	ext2 := v2.SignExtend(4)
	if ext2.Int64() != 127 {
		t.Fatalf("sign extend 127: got %d", ext2.Int64())
	}
}

func TestNegativeAndZero(t *testing.T) {
	v := bitvec.FromUint64(0x80000000, 4, false)
	if !v.Negative() {
		t.Fatalf("expected negative (MSB set)")
	}
	if bitvec.FromUint64(0, 4, false).Negative() {
		t.Fatalf("zero should not be negative")
	}
	if !bitvec.FromUint64(0, 4, false).IsZero() {
		t.Fatalf("expected IsZero")
	}
}

func TestSubPiece(t *testing.T) {
	v := bitvec.FromUint64(0x11223344, 4, false)
	lo := v.SubPiece(0, 1)
	if lo.Uint64() != 0x44 {
		t.Fatalf("subpiece(0,1): got %#x", lo.Uint64())
	}
	hi := v.SubPiece(2, 2)
	if hi.Uint64() != 0x1122 {
		t.Fatalf("subpiece(2,2): got %#x", hi.Uint64())
	}
}

func TestLeadingZerosAndPopCount(t *testing.T) {
	v := bitvec.FromUint64(0x00000001, 4, false)
	if v.LeadingZeros() != 31 {
		t.Fatalf("leading zeros: got %d want 31", v.LeadingZeros())
	}
	if v.PopCount() != 1 {
		t.Fatalf("popcount: got %d want 1", v.PopCount())
	}
	zero := bitvec.FromUint64(0, 4, false)
	if zero.LeadingZeros() != 32 {
		t.Fatalf("leading zeros of zero: got %d want 32", zero.LeadingZeros())
	}
}
