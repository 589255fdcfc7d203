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

// Package elf implements the firmware image loader (spec §6 Firmware
// image): an ELF binary whose ALLOC-flagged loadable segments are copied
// into the context's mapped memory regions at their physical addresses,
// with the reset vector and initial stack pointer read from the first
// loaded segment.
//
// Grounded on gtrevg-Gopher2600's hardware/memory/cartridge/elf/elf.go,
// which opens a cartridge ELF with stdlib debug/elf, sanity-checks its
// machine/byte-order/version, and copies ALLOC sections into cartridge
// RAM; generalised here from "one fixed two-region Atari cartridge memory
// model" to "whatever memory regions the platform description mapped".
package elf

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/rchtsang/ttff-sub001/errors"
	"github.com/rchtsang/ttff-sub001/state"
)

// MemoryWriter is the subset of emuctx.Context a firmware load needs:
// resolving an address to its owning region and writing raw bytes into it.
type MemoryWriter interface {
	Lookup(addr state.Address) (state.Region, error)
	MemoryRegion(idx int) *state.FixedState
}

// Image is the result of loading a firmware ELF: the entry points the
// platform needs before the first instruction is fetched (spec §6: "The
// reset vector is read as a little-endian 32-bit word from offset 4 of the
// first loaded segment; the initial SP is at offset 0").
type Image struct {
	ResetVector uint32
	InitialSP   uint32
}

// Load parses an ARM little-endian ELF image, copies every ALLOC-flagged
// loadable segment into mw's memory regions at its physical address, and
// returns the reset vector and initial stack pointer read out of the first
// loaded segment.
func Load(mw MemoryWriter, data []byte) (Image, error) {
	f, err := elf.NewFile(sectionReaderOf(data))
	if err != nil {
		return Image{}, errors.Curatedf("elf: %v", err)
	}
	defer f.Close()

	if f.FileHeader.Machine != elf.EM_ARM {
		return Image{}, errors.Curatedf("elf: not an ARM image")
	}
	if f.FileHeader.ByteOrder != binary.LittleEndian {
		return Image{}, errors.Curatedf("elf: not little-endian")
	}

	var firstSeg []byte
	loaded := 0
	for _, prog := range f.Progs {
		// PT_LOAD is ELF's "this segment carries the ALLOC flag; map it"
		// segment type (spec §6: "segments carrying the ALLOC flag").
		if prog.Type != elf.PT_LOAD {
			continue
		}
		buf := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(buf, 0); err != nil {
			return Image{}, errors.Curatedf("elf: reading segment at %#x: %v", prog.Paddr, err)
		}
		if err := writeSegment(mw, uint64(prog.Paddr), buf); err != nil {
			return Image{}, err
		}
		if loaded == 0 {
			firstSeg = buf
		}
		loaded++
	}
	if loaded == 0 {
		return Image{}, errors.Curatedf("elf: no loadable (ALLOC) segments")
	}
	if len(firstSeg) < 8 {
		return Image{}, errors.Curatedf("elf: first loaded segment too small to hold SP/reset vector")
	}

	return Image{
		InitialSP:   binary.LittleEndian.Uint32(firstSeg[0:4]),
		ResetVector: binary.LittleEndian.Uint32(firstSeg[4:8]),
	}, nil
}

func writeSegment(mw MemoryWriter, paddr uint64, buf []byte) error {
	for off := 0; off < len(buf); {
		region, err := mw.Lookup(state.Address(paddr + uint64(off)))
		if err != nil {
			return errors.Curatedf("elf: segment at %#x is not mapped: %v", paddr, err)
		}
		if region.Entry.Kind != state.EntryMemory {
			return errors.Curatedf("elf: segment at %#x targets a non-memory region %q", paddr, region.Name)
		}
		regionOff := state.Address(paddr+uint64(off)) - region.Base
		n := len(buf) - off
		if avail := int(region.Size - uint64(regionOff)); avail < n {
			n = avail
		}
		fs := mw.MemoryRegion(region.Entry.Index)
		if err := fs.WriteBytes(regionOff, buf[off:off+n]); err != nil {
			return errors.Curatedf("elf: writing segment into %q: %v", region.Name, err)
		}
		off += n
	}
	return nil
}

// sectionReaderOf adapts an in-memory image to the io.ReaderAt debug/elf
// needs, without requiring callers to open a file.
func sectionReaderOf(data []byte) *bytesReaderAt {
	return &bytesReaderAt{data: data}
}

type bytesReaderAt struct{ data []byte }

func (r *bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.data)) {
		return 0, fmt.Errorf("elf: read past end of image at offset %d", off)
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("elf: short read at offset %d", off)
	}
	return n, nil
}
