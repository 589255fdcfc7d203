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

// Package state implements FixedState and the memory map (spec §4.C): a
// flat, bounds-checked byte buffer per mapped region, and an ordered
// interval map routing addresses to the region that owns them.
//
// Grounded on hardware/memory/cartridge/arm/memory_access.go's bounds
// checked read8bit/write8bit/read32bit/write32bit family and
// architecture.Map's address-range fields, generalised from a fixed
// two-region (flash/sram) map into an arbitrary-region interval map.
package state

import (
	"encoding/binary"
	"fmt"

	"github.com/rchtsang/ttff-sub001/bitvec"
)

// Address is a 64-bit unsigned address; ARMv7-M only ever uses the low 32
// bits of it (spec §3 Address).
type Address uint64

// OOBError reports an out-of-bounds FixedState access (spec §4.C).
type OOBError struct {
	Op     string
	Offset Address
	Size   int
	Cap    int
}

func (e *OOBError) Error() string {
	return fmt.Sprintf("%s: offset %#x size %d exceeds capacity %#x", e.Op, e.Offset, e.Size, e.Cap)
}

// FixedState is a flat byte buffer used for register space, unique space,
// and each mapped RAM region.
type FixedState struct {
	name string
	buf  []byte
}

// NewFixedState allocates a zeroed FixedState of the given size.
func NewFixedState(name string, size int) *FixedState {
	return &FixedState{name: name, buf: make([]byte, size)}
}

// Name returns the region's label, used in error messages and logging.
func (s *FixedState) Name() string { return s.name }

// Len returns the capacity of the underlying buffer.
func (s *FixedState) Len() int { return len(s.buf) }

func (s *FixedState) checkBounds(op string, offset Address, size int) error {
	if size < 0 || int(offset)+size > len(s.buf) || int64(offset) < 0 {
		return &OOBError{Op: op, Offset: offset, Size: size, Cap: len(s.buf)}
	}
	return nil
}

// ViewBytes returns a read-only slice of n bytes starting at offset.
func (s *FixedState) ViewBytes(offset Address, n int) ([]byte, error) {
	if err := s.checkBounds("ViewBytes", offset, n); err != nil {
		return nil, err
	}
	return s.buf[offset : int(offset)+n], nil
}

// ViewBytesMut returns a writable slice of n bytes starting at offset.
func (s *FixedState) ViewBytesMut(offset Address, n int) ([]byte, error) {
	if err := s.checkBounds("ViewBytesMut", offset, n); err != nil {
		return nil, err
	}
	return s.buf[offset : int(offset)+n], nil
}

// ReadBytes copies len(dst) bytes starting at offset into dst.
func (s *FixedState) ReadBytes(offset Address, dst []byte) error {
	if err := s.checkBounds("ReadBytes", offset, len(dst)); err != nil {
		return err
	}
	copy(dst, s.buf[offset:int(offset)+len(dst)])
	return nil
}

// WriteBytes copies src into the buffer starting at offset.
func (s *FixedState) WriteBytes(offset Address, src []byte) error {
	if err := s.checkBounds("WriteBytes", offset, len(src)); err != nil {
		return err
	}
	copy(s.buf[offset:int(offset)+len(src)], src)
	return nil
}

// ReadValWith loads n bytes starting at offset and decodes them as a BitVec
// of the given width/signedness using order.
func (s *FixedState) ReadValWith(offset Address, n int, signed bool, order binary.ByteOrder) (bitvec.BitVec, error) {
	buf := make([]byte, n)
	if err := s.ReadBytes(offset, buf); err != nil {
		return bitvec.BitVec{}, err
	}
	return bitvec.FromBytes(buf, n, signed, order), nil
}

// WriteValWith encodes v using order and writes it at offset.
func (s *FixedState) WriteValWith(offset Address, v bitvec.BitVec, order binary.ByteOrder) error {
	return s.WriteBytes(offset, v.Bytes(order))
}
