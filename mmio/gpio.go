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
	"github.com/rchtsang/ttff-sub001/peripheral"
)

// GPIO register offsets, following the teacher's TIMx/RNG style of a flat
// register struct addressed by a small offset switch (scs/scs.go's own
// per-peripheral dispatch generalised to a single bank of pins).
const (
	OffOUT = 0x00 // output latch, read/write
	OffIN  = 0x04 // input pin state, read-only from software
	OffDIR = 0x08 // direction: 1 = output, 0 = input
)

// GPIO is a bank of up to 32 pins with output-latch, input-state, and
// direction registers (SPEC_FULL.md: "a bank of input/output/direction
// registers").
type GPIO struct {
	base, size uint64
	out        uint32
	in         uint32
	dir        uint32
}

// NewGPIO returns a GPIO bank mapped at [base, base+12).
func NewGPIO(base uint64) *GPIO {
	return &GPIO{base: base, size: 0x0C}
}

func (g *GPIO) Base() uint64 { return g.base }
func (g *GPIO) Size() uint64 { return g.size }

// SetInput drives the IN register from outside the emulated CPU — the
// harness's way of feeding an external signal (e.g. a button press) into
// firmware under test.
func (g *GPIO) SetInput(bits uint32) { g.in = bits }

// Out returns the current output latch, for a harness to observe what
// firmware has driven onto the pins configured as outputs.
func (g *GPIO) Out() uint32 { return g.out & g.dir }

func (g *GPIO) ReadBytes(addr uint64, dst []byte, q *peripheral.EventQueue) error {
	off := addr - g.base
	var val uint32
	switch off {
	case OffOUT:
		val = g.out
	case OffIN:
		val = g.in
	case OffDIR:
		val = g.dir
	default:
		return &peripheral.RegError{Peripheral: "gpio", Addr: addr, Reason: "unmapped register"}
	}
	fillWord(dst, val)
	return nil
}

func (g *GPIO) WriteBytes(addr uint64, src []byte, q *peripheral.EventQueue) error {
	off := addr - g.base
	val := wordOf(src)
	switch off {
	case OffOUT:
		g.out = val
	case OffIN:
		// IN is read-only from software; silently ignored, as the teacher's
		// RNG model does for its own read-only registers.
	case OffDIR:
		g.dir = val
	default:
		return &peripheral.RegError{Peripheral: "gpio", Addr: addr, Reason: "unmapped register"}
	}
	return nil
}

func wordOf(src []byte) uint32 {
	var v uint32
	for i, b := range src {
		if i >= 4 {
			break
		}
		v |= uint32(b) << (8 * uint(i))
	}
	return v
}
