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

package elf

import (
	"encoding/binary"
	"testing"

	"github.com/rchtsang/ttff-sub001/state"
)

// fakeWriter is a single flat memory region spanning the whole 32-bit
// address space, enough to exercise segment placement without needing a
// full emuctx.Context.
type fakeWriter struct {
	region state.Region
	fs     *state.FixedState
}

func newFakeWriter(base state.Address, size uint64) *fakeWriter {
	return &fakeWriter{
		region: state.Region{Name: "flash", Base: base, Size: size, Entry: state.MapEntry{Kind: state.EntryMemory, Index: 0}},
		fs:     state.NewFixedState("flash", int(size)),
	}
}

func (w *fakeWriter) Lookup(addr state.Address) (state.Region, error) {
	if addr < w.region.Base || addr >= w.region.End() {
		return state.Region{}, &state.UnmappedError{Addr: addr}
	}
	return w.region, nil
}

func (w *fakeWriter) MemoryRegion(idx int) *state.FixedState { return w.fs }

// buildELF32 assembles a minimal, single-PT_LOAD-segment, section-header-free
// ARM little-endian ELF32 executable with segment data placed immediately
// after the combined header+phdr region.
func buildELF32(paddr uint32, segment []byte) []byte {
	const (
		ehsize = 52
		phsize = 32
	)
	const (
		etExec  = 2
		emARM   = 40
		evCur   = 1
		ptLoad  = 1
		pfRWX   = 7
		elfClass32 = 1
		elfData2LSB = 1
	)

	buf := make([]byte, ehsize+phsize+len(segment))
	// e_ident
	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = elfClass32
	buf[5] = elfData2LSB
	buf[6] = evCur

	le := binary.LittleEndian
	le.PutUint16(buf[16:], etExec)
	le.PutUint16(buf[18:], emARM)
	le.PutUint32(buf[20:], evCur)
	le.PutUint32(buf[24:], paddr) // e_entry, unused by Load but filled in for realism
	le.PutUint32(buf[28:], ehsize) // e_phoff
	le.PutUint32(buf[32:], 0)      // e_shoff
	le.PutUint32(buf[36:], 0)      // e_flags
	le.PutUint16(buf[40:], ehsize)
	le.PutUint16(buf[42:], phsize)
	le.PutUint16(buf[44:], 1) // e_phnum
	le.PutUint16(buf[46:], 0)
	le.PutUint16(buf[48:], 0)
	le.PutUint16(buf[50:], 0)

	ph := buf[ehsize : ehsize+phsize]
	le.PutUint32(ph[0:], ptLoad)
	le.PutUint32(ph[4:], ehsize+phsize) // p_offset
	le.PutUint32(ph[8:], paddr)         // p_vaddr
	le.PutUint32(ph[12:], paddr)        // p_paddr
	le.PutUint32(ph[16:], uint32(len(segment)))
	le.PutUint32(ph[20:], uint32(len(segment)))
	le.PutUint32(ph[24:], pfRWX)
	le.PutUint32(ph[28:], 4)

	copy(buf[ehsize+phsize:], segment)
	return buf
}

func TestLoadReadsResetVectorAndInitialSP(t *testing.T) {
	segment := make([]byte, 16)
	binary.LittleEndian.PutUint32(segment[0:], 0x2001_0000) // initial SP
	binary.LittleEndian.PutUint32(segment[4:], 0x0000_0201) // reset vector
	for i := 8; i < len(segment); i++ {
		segment[i] = byte(i)
	}

	const paddr = 0x0000_0000
	img := buildELF32(paddr, segment)

	w := newFakeWriter(0, 0x10000)
	result, err := Load(w, img)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.InitialSP != 0x2001_0000 {
		t.Errorf("InitialSP = %#x, want 0x2001_0000", result.InitialSP)
	}
	if result.ResetVector != 0x0000_0201 {
		t.Errorf("ResetVector = %#x, want 0x0000_0201", result.ResetVector)
	}

	loaded, err := w.fs.ViewBytes(0, len(segment))
	if err != nil {
		t.Fatalf("ViewBytes: %v", err)
	}
	for i, b := range segment {
		if loaded[i] != b {
			t.Fatalf("byte %d = %#x, want %#x", i, loaded[i], b)
		}
	}
}

func TestLoadRejectsNonARM(t *testing.T) {
	img := buildELF32(0, make([]byte, 16))
	img[18] = 0 // zero out e_machine's low byte -> not EM_ARM
	img[19] = 0

	w := newFakeWriter(0, 0x10000)
	if _, err := Load(w, img); err == nil {
		t.Fatal("Load: expected an error for a non-ARM image, got nil")
	}
}

func TestLoadRejectsUnmappedSegment(t *testing.T) {
	segment := make([]byte, 16)
	img := buildELF32(0x9000_0000, segment) // far outside the mapped region

	w := newFakeWriter(0, 0x10000)
	if _, err := Load(w, img); err == nil {
		t.Fatal("Load: expected an error for an unmapped segment, got nil")
	}
}
