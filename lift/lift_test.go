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

package lift_test

import (
	"encoding/binary"
	"testing"

	"github.com/rchtsang/ttff-sub001/lift"
	"github.com/rchtsang/ttff-sub001/pcode"
)

// byteSource is a flat in-memory ByteSource for decoder/cache tests.
type byteSource struct {
	base uint64
	buf  []byte
}

func (s *byteSource) ViewBytes(addr uint64, n int) ([]byte, error) {
	off := int(addr - s.base)
	if off < 0 || off >= len(s.buf) {
		return nil, &unmapped{addr}
	}
	end := off + n
	if end > len(s.buf) {
		end = len(s.buf)
	}
	return s.buf[off:end], nil
}

type unmapped struct{ addr uint64 }

func (u *unmapped) Error() string { return "unmapped" }

func encode16(vals ...uint16) []byte {
	buf := make([]byte, 0, len(vals)*2)
	for _, v := range vals {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		buf = append(buf, b[:]...)
	}
	return buf
}

func TestFetchIsReferentiallyTransparent(t *testing.T) {
	// movs r0, #1 ; movs r1, #2 ; b . (self-branch terminates the block)
	src := &byteSource{base: 0x1000, buf: encode16(0x2001, 0x2102, 0xE7FE)}
	d := lift.NewThumbDecoder()
	cache := lift.NewTranslationCache()

	first, err := cache.Fetch(0x1000, d, src)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := cache.Fetch(0x1000, d, src)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if first.Disassembly != second.Disassembly || len(first.PCode) != len(second.PCode) {
		t.Fatalf("repeated Fetch at the same address produced different results: %+v vs %+v", first, second)
	}
	if first.Disassembly != "movs r0, #1" {
		t.Fatalf("unexpected disassembly: %q", first.Disassembly)
	}
}

func TestFetchLiftsWholeBlock(t *testing.T) {
	// movs r0, #1 ; movs r1, #2 ; b .
	src := &byteSource{base: 0x1000, buf: encode16(0x2001, 0x2102, 0xE7FE)}
	d := lift.NewThumbDecoder()
	cache := lift.NewTranslationCache()

	if _, err := cache.Fetch(0x1000, d, src); err != nil {
		t.Fatalf("fetch block head: %v", err)
	}
	// the second and third instructions of the block must already be
	// cached as a side effect of lifting the first, without re-decoding.
	second, err := cache.Fetch(0x1002, d, src)
	if err != nil {
		t.Fatalf("fetch mid-block instruction: %v", err)
	}
	if second.Disassembly != "movs r1, #2" {
		t.Fatalf("unexpected mid-block disassembly: %q", second.Disassembly)
	}
}

func TestFetchUnmappedAddressErrors(t *testing.T) {
	src := &byteSource{base: 0x1000, buf: encode16(0x2001)}
	d := lift.NewThumbDecoder()
	cache := lift.NewTranslationCache()
	if _, err := cache.Fetch(0x9000, d, src); err == nil {
		t.Fatalf("expected an error fetching an unmapped address")
	}
}

func TestDecodeMovsSetsZeroAndNegativeFlags(t *testing.T) {
	d := lift.NewThumbDecoder()
	insn, err := d.Decode(0x1000, encode16(0x2000)) // movs r0, #0
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if insn.Length != 2 {
		t.Fatalf("expected 2-byte instruction, got %d", insn.Length)
	}
	var sawCopy, sawFlagMerge bool
	for _, op := range insn.PCode {
		if op.Opcode == pcode.OpCopy && op.Output != nil && op.Output.Space == pcode.SpaceRegister && op.Output.Offset == 0 {
			sawCopy = true
		}
		if op.Opcode == pcode.OpCopy && op.Output != nil && op.Output.Offset == 16*4 {
			sawFlagMerge = true
		}
	}
	if !sawCopy {
		t.Fatalf("expected a copy into r0, got %+v", insn.PCode)
	}
	if !sawFlagMerge {
		t.Fatalf("expected a copy into the cpsr pseudo-register, got %+v", insn.PCode)
	}
}

func TestDecodeBXEmitsIBranch(t *testing.T) {
	d := lift.NewThumbDecoder()
	insn, err := d.Decode(0x1000, encode16(0x4700)) // bx r0
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	last := insn.PCode[len(insn.PCode)-1]
	if last.Opcode != pcode.OpIBranch {
		t.Fatalf("expected trailing ibranch, got %v", last.Opcode)
	}
	if !last.Opcode.IsBranchFamily() {
		t.Fatalf("ibranch must be classified as branch family")
	}
}

func TestDecodeUnsupportedOpcodeReturnsError(t *testing.T) {
	d := lift.NewThumbDecoder()
	// 0xBF00 is a hint-space instruction (NOP-class) this decoder does not model.
	if _, err := d.Decode(0x1000, encode16(0xBF00)); err == nil {
		t.Fatalf("expected an error for an unmodelled opcode")
	}
}
