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

package state_test

import (
	"encoding/binary"
	"testing"

	"github.com/rchtsang/ttff-sub001/bitvec"
	"github.com/rchtsang/ttff-sub001/state"
)

func TestFixedStateRoundTrip(t *testing.T) {
	fs := state.NewFixedState("ram", 0x100)
	b := []byte{1, 2, 3, 4}
	if err := fs.WriteBytes(0x10, b); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := make([]byte, 4)
	if err := fs.ReadBytes(0x10, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	for i := range b {
		if got[i] != b[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], b[i])
		}
	}
}

func TestFixedStateOOB(t *testing.T) {
	fs := state.NewFixedState("ram", 0x10)
	err := fs.WriteBytes(0x0c, []byte{1, 2, 3, 4, 5})
	if err == nil {
		t.Fatalf("expected OOB error")
	}
}

func TestFixedStateValEndianRoundTrip(t *testing.T) {
	fs := state.NewFixedState("ram", 0x10)
	v := bitvec.FromUint64(0xdeadbeef, 4, false)
	if err := fs.WriteValWith(0, v, binary.LittleEndian); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := fs.ReadValWith(0, 4, false, binary.LittleEndian)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Uint64() != v.Uint64() {
		t.Fatalf("got %#x want %#x", got.Uint64(), v.Uint64())
	}
}

func TestMemoryMapNonOverlapping(t *testing.T) {
	m := state.NewMemoryMap()
	if err := m.Insert(state.Region{Name: "ram", Base: 0x20000000, Size: 0x1000, Entry: state.MapEntry{Kind: state.EntryMemory, Index: 0}}); err != nil {
		t.Fatalf("insert ram: %v", err)
	}
	if err := m.Insert(state.Region{Name: "scs", Base: 0xE000E000, Size: 0x1000, Entry: state.MapEntry{Kind: state.EntryScs}}); err != nil {
		t.Fatalf("insert scs: %v", err)
	}

	err := m.Insert(state.Region{Name: "overlap", Base: 0x20000ff0, Size: 0x100, Entry: state.MapEntry{Kind: state.EntryMemory, Index: 1}})
	if err == nil {
		t.Fatalf("expected overlap error")
	}

	r, err := m.Lookup(0x20000004)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if r.Name != "ram" {
		t.Fatalf("got region %q", r.Name)
	}

	if _, err := m.Lookup(0x50000000); err == nil {
		t.Fatalf("expected unmapped error")
	}
}

func TestMemoryMapAlignment(t *testing.T) {
	m := state.NewMemoryMap()
	err := m.Insert(state.Region{Name: "bad", Base: 0x1001, Size: 0x100})
	if err == nil {
		t.Fatalf("expected alignment error")
	}
}
