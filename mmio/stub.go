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

package mmio

import "github.com/rchtsang/ttff-sub001/peripheral"

// Stub is a named, zero-behavior peripheral: reads always return CLEAN
// zero bytes, writes are always accepted and discarded. CLOCK, FICR, UICR,
// and GPIOTE are nRF52-specific register blocks with no behaviour beyond
// constant readback in this system (SPEC_FULL.md "Concrete peripherals
// beyond SCS"), so they are given this shared implementation rather than
// four near-identical structs.
type Stub struct {
	Name       string
	base, size uint64
}

// NewStub returns a Stub peripheral named name, mapped at [base, base+size).
func NewStub(name string, base, size uint64) *Stub {
	return &Stub{Name: name, base: base, size: size}
}

func (s *Stub) Base() uint64 { return s.base }
func (s *Stub) Size() uint64 { return s.size }

func (s *Stub) ReadBytes(addr uint64, dst []byte, q *peripheral.EventQueue) error {
	for i := range dst {
		dst[i] = 0
	}
	return nil
}

func (s *Stub) WriteBytes(addr uint64, src []byte, q *peripheral.EventQueue) error {
	return nil
}
