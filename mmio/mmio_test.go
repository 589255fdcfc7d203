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
	"testing"

	goerrors "errors"

	"github.com/rchtsang/ttff-sub001/peripheral"
)

func TestUARTReadDrainsQueueAndErrorsWhenEmpty(t *testing.T) {
	ch := make(chan byte, 4)
	ch <- 'h'
	ch <- 'i'
	u := NewUART(0x40000000, ch)
	var q peripheral.EventQueue

	dst := make([]byte, 1)
	if err := u.ReadBytes(0x40000000+OffRXD, dst, &q); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if dst[0] != 'h' {
		t.Errorf("first byte = %q, want 'h'", dst[0])
	}
	if err := u.ReadBytes(0x40000000+OffRXD, dst, &q); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if dst[0] != 'i' {
		t.Errorf("second byte = %q, want 'i'", dst[0])
	}

	err := u.ReadBytes(0x40000000+OffRXD, dst, &q)
	if err == nil {
		t.Fatal("ReadBytes: expected an RxChannel error on empty queue, got nil")
	}
	var regErr *peripheral.RegError
	if !goerrors.As(err, &regErr) {
		t.Fatalf("error %v is not *peripheral.RegError", err)
	}
}

func TestUARTWriteAccumulatesTransmitted(t *testing.T) {
	u := NewUART(0x40000000, make(chan byte))
	var q peripheral.EventQueue
	for _, b := range []byte("ok") {
		if err := u.WriteBytes(0x40000000+OffTXD, []byte{b}, &q); err != nil {
			t.Fatalf("WriteBytes: %v", err)
		}
	}
	if got := string(u.Transmitted()); got != "ok" {
		t.Errorf("Transmitted() = %q, want %q", got, "ok")
	}
}

func TestGPIOOutRespectsDirection(t *testing.T) {
	g := NewGPIO(0x50000000)
	var q peripheral.EventQueue

	word := func(v uint32) []byte {
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	}
	if err := g.WriteBytes(0x50000000+OffDIR, word(0b0011), &q); err != nil {
		t.Fatalf("WriteBytes DIR: %v", err)
	}
	if err := g.WriteBytes(0x50000000+OffOUT, word(0b1111), &q); err != nil {
		t.Fatalf("WriteBytes OUT: %v", err)
	}
	if got := g.Out(); got != 0b0011 {
		t.Errorf("Out() = %#b, want 0b0011 (masked by direction)", got)
	}

	g.SetInput(0b0101)
	dst := make([]byte, 4)
	if err := g.ReadBytes(0x50000000+OffIN, dst, &q); err != nil {
		t.Fatalf("ReadBytes IN: %v", err)
	}
	if got := wordOf(dst); got != 0b0101 {
		t.Errorf("IN = %#b, want 0b0101", got)
	}
}

func TestRNGReadDrawsFromSeededSource(t *testing.T) {
	r := NewRNG(0x60000000, rand.New(rand.NewSource(42)))
	var q peripheral.EventQueue
	dst := make([]byte, 4)
	if err := r.ReadBytes(0x60000000+OffRNGDR, dst, &q); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	first := wordOf(dst)
	if err := r.ReadBytes(0x60000000+OffRNGDR, dst, &q); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if wordOf(dst) == first {
		t.Error("two successive RNG reads returned the same value, expected them to differ")
	}
}

func TestStubReadsAreCleanZero(t *testing.T) {
	s := NewStub("clock0", 0x70000000, 0x100)
	var q peripheral.EventQueue
	dst := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if err := s.ReadBytes(0x70000000, dst, &q); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	for i, b := range dst {
		if b != 0 {
			t.Errorf("dst[%d] = %#x, want 0", i, b)
		}
	}
	if err := s.WriteBytes(0x70000000, []byte{1, 2, 3, 4}, &q); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
}
