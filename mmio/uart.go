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

// Package mmio gives the concrete peripheral models beyond SCS named in
// spec.md's list of external collaborators (UART, GPIO, CLOCK, FICR, UICR,
// GPIOTE), per SPEC_FULL.md's "Concrete peripherals beyond SCS" section.
package mmio

import (
	"github.com/rchtsang/ttff-sub001/peripheral"
)

// UART register offsets. RXD/TXD are single-byte; STATUS is a word with a
// single RXREADY bit.
const (
	OffRXD    = 0x00
	OffTXD    = 0x04
	OffSTATUS = 0x08

	statusRxReady = 1 << 0
)

// UART is the channel-backed input peripheral the fuzzing front-end drives
// (spec §5: "A channel-backed peripheral used for fuzzer input shares an
// MPSC queue of bytes between the fuzzing front-end and the peripheral").
// A read of RXD with an empty queue raises the RxChannel error named in §5
// ("becomes a peripheral error which becomes a policy-like crash").
type UART struct {
	base, size uint64
	rx         <-chan byte
	tx         []byte
}

// NewUART returns a UART mapped at [base, base+16), receiving bytes from
// rx. rx is typically the consumer end of the fuzzing front-end's MPSC
// queue (fuzz.InputQueue).
func NewUART(base uint64, rx <-chan byte) *UART {
	return &UART{base: base, size: 0x10, rx: rx}
}

func (u *UART) Base() uint64 { return u.base }
func (u *UART) Size() uint64 { return u.size }

// Transmitted returns every byte written to TXD so far, in write order —
// used by tests and an interactive front-end to observe firmware output.
func (u *UART) Transmitted() []byte { return u.tx }

func (u *UART) ReadBytes(addr uint64, dst []byte, q *peripheral.EventQueue) error {
	off := addr - u.base
	switch off {
	case OffRXD:
		select {
		case b := <-u.rx:
			fillByte(dst, b)
			return nil
		default:
			return &peripheral.RegError{Peripheral: "uart", Addr: addr, Reason: "RxChannel: receive queue empty"}
		}
	case OffSTATUS:
		status := uint32(0)
		if len(u.rx) > 0 {
			status = statusRxReady
		}
		fillWord(dst, status)
		return nil
	default:
		return &peripheral.RegError{Peripheral: "uart", Addr: addr, Reason: "unmapped register"}
	}
}

func (u *UART) WriteBytes(addr uint64, src []byte, q *peripheral.EventQueue) error {
	off := addr - u.base
	switch off {
	case OffTXD:
		if len(src) > 0 {
			u.tx = append(u.tx, src[0])
		}
		return nil
	case OffSTATUS:
		// STATUS is read-only; writes are accepted and ignored, matching
		// the teacher's RNG status-register write handling.
		return nil
	default:
		return &peripheral.RegError{Peripheral: "uart", Addr: addr, Reason: "unmapped register"}
	}
}

func fillByte(dst []byte, b byte) {
	for i := range dst {
		dst[i] = 0
	}
	if len(dst) > 0 {
		dst[0] = b
	}
}

func fillWord(dst []byte, v uint32) {
	for i := range dst {
		if i < 4 {
			dst[i] = byte(v >> (8 * uint(i)))
		} else {
			dst[i] = 0
		}
	}
}
