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

import (
	"math/rand"

	"github.com/rchtsang/ttff-sub001/peripheral"
)

// RNG register offsets (spec.md's "concrete peripheral models beyond SCS";
// SPEC_FULL.md "Random-number and extra peripheral scaffolding").
const (
	OffRNGCR = 0x00
	OffRNGSR = 0x04
	OffRNGDR = 0x08

	rngCREnable = 1 << 2
)

// RNG returns a random 32-bit word whenever its data register is read,
// enabled or not — the model is a sketch, not a cycle-accurate STM32 RNG,
// matching the teacher's own stated scope for this peripheral.
//
// Grounded on arm/peripherals/rng.go: a control register tracking an
// enabled flag, a status register that always reports "ready", and a data
// register that draws from math/rand on every read.
type RNG struct {
	base, size uint64
	control    uint32
	source     *rand.Rand
}

// NewRNG returns an RNG mapped at [base, base+12). src may be nil, in which
// case the package-level math/rand source is used; tests pass a seeded
// *rand.Rand for determinism.
func NewRNG(base uint64, src *rand.Rand) *RNG {
	return &RNG{base: base, size: 0x0C, source: src}
}

func (r *RNG) Base() uint64 { return r.base }
func (r *RNG) Size() uint64 { return r.size }

func (r *RNG) next() uint32 {
	if r.source != nil {
		return r.source.Uint32()
	}
	return rand.Uint32()
}

func (r *RNG) ReadBytes(addr uint64, dst []byte, q *peripheral.EventQueue) error {
	off := addr - r.base
	var val uint32
	switch off {
	case OffRNGCR:
		val = r.control
	case OffRNGSR:
		val = 0b1 // always ready to return a random number
	case OffRNGDR:
		val = r.next()
	default:
		return &peripheral.RegError{Peripheral: "rng", Addr: addr, Reason: "unmapped register"}
	}
	fillWord(dst, val)
	return nil
}

func (r *RNG) WriteBytes(addr uint64, src []byte, q *peripheral.EventQueue) error {
	off := addr - r.base
	switch off {
	case OffRNGCR:
		r.control = wordOf(src)
	case OffRNGSR, OffRNGDR:
		// status/data are not writable; accepted and ignored.
	default:
		return &peripheral.RegError{Peripheral: "rng", Addr: addr, Reason: "unmapped register"}
	}
	return nil
}

// Enabled reports the control register's enable bit, mirroring the
// teacher's extracted-flag style for WriteBytes-driven state.
func (r *RNG) Enabled() bool { return r.control&rngCREnable != 0 }
