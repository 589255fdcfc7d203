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

// Package scs implements the ARMv7-M System Control Space: the
// fixed-base, fixed-size memory-mapped region holding the System Control
// Block (SCB), SysTick, NVIC, and MPU register files, including the
// per-bit write semantics and architectural Event generation §4.E.2
// describes.
//
// Grounded on architecture.Map's register-address-as-struct-field pattern
// and arm/peripherals/timer.go's switch-on-offset read/write dispatch,
// scaled up to the full ARMv7-M SCS register set.
package scs

import (
	"encoding/binary"

	"github.com/rchtsang/ttff-sub001/peripheral"
)

// Base and Size of the System Control Space (§4.E.2, §6).
const (
	Base = 0xE000E000
	Size = 0x1000
)

// writeWordFromBytes reconstructs a little-endian word from a byte slice
// written at a sub-word offset within a 4-byte register. The source
// reports a sibling bug where the reconstruction used byte<<i instead of
// byte<<(8*i); this is the corrected formula (spec §9 open question 1).
func writeWordFromBytes(existing uint32, offset int, src []byte) uint32 {
	word := existing
	for i, b := range src {
		shift := uint((offset + i) * 8)
		mask := uint32(0xFF) << shift
		word = (word &^ mask) | (uint32(b) << shift)
	}
	return word
}

func readBytesFromWord(word uint32, offset int, dst []byte) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)
	copy(dst, buf[offset:])
}

// bitChanged reports whether bit n differs between before and after.
func bitChanged(before, after uint32, n uint) bool {
	mask := uint32(1) << n
	return before&mask != after&mask
}

// RegError aliases peripheral.RegError for scs-local construction.
type RegError = peripheral.RegError
