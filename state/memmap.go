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

package state

import (
	"fmt"
	"sort"
)

// EntryKind distinguishes the three kinds of map-entry a Region can carry
// (spec §3 Memory map: "Memory(index), Mmio(index), Scs").
type EntryKind int

const (
	EntryMemory EntryKind = iota
	EntryMmio
	EntryScs
)

func (k EntryKind) String() string {
	switch k {
	case EntryMemory:
		return "Memory"
	case EntryMmio:
		return "Mmio"
	case EntryScs:
		return "Scs"
	default:
		return "?"
	}
}

// MapEntry tags a Region with the kind of backing store and, for Memory and
// Mmio entries, the index into the owning vector of regions/peripherals.
type MapEntry struct {
	Kind  EntryKind
	Index int
}

// Region is one non-overlapping interval of the address space.
type Region struct {
	Name  string
	Base  Address
	Size  uint64 // in bytes
	Entry MapEntry
	Perms Perms // zero value (no permissions) for entries that don't carry one, e.g. Scs
}

// End returns the first address past the region (exclusive).
func (r Region) End() Address {
	return r.Base + Address(r.Size)
}

func (r Region) contains(addr Address) bool {
	return addr >= r.Base && addr < r.End()
}

// UnmappedError reports a memory-map lookup miss (spec §4.B, §6).
type UnmappedError struct {
	Addr Address
}

func (e *UnmappedError) Error() string {
	return fmt.Sprintf("unmapped address %#x", e.Addr)
}

// MapConflictError reports an overlapping or misaligned Insert (spec §3
// invariant: "Memory-map intervals are non-overlapping at all times").
type MapConflictError struct {
	New      Region
	Existing Region
	Reason   string
}

func (e *MapConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("map conflict inserting %s [%#x,%#x): %s", e.New.Name, e.New.Base, e.New.End(), e.Reason)
	}
	return fmt.Sprintf("map conflict: %s [%#x,%#x) overlaps %s [%#x,%#x)",
		e.New.Name, e.New.Base, e.New.End(), e.Existing.Name, e.Existing.Base, e.Existing.End())
}

// MemoryMap is an ordered-by-base set of non-overlapping Regions (spec §4.C
// "ordered-by-start interval tree"). A sorted slice with binary-search
// lookup is a correct, simple interval structure for the modest region
// counts (low tens) an MCU platform description ever produces; no interval
// tree library appears anywhere in the example corpus, so this mirrors the
// teacher's own "compare against a handful of address ranges" style
// (architecture.Map.IsFlash) scaled up to N regions instead of 2.
type MemoryMap struct {
	regions []Region
}

// NewMemoryMap constructs an empty map.
func NewMemoryMap() *MemoryMap {
	return &MemoryMap{}
}

// Insert adds a new region. Both base and size must be word-aligned (spec
// §4.C "Insertion requires non-overlap and word alignment of both base and
// size"), and the region must not overlap any existing region.
func (m *MemoryMap) Insert(r Region) error {
	if r.Base%4 != 0 || r.Size%4 != 0 {
		return &MapConflictError{New: r, Reason: "base and size must be word-aligned"}
	}
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].Base >= r.Base })
	if i > 0 {
		prev := m.regions[i-1]
		if prev.End() > r.Base {
			return &MapConflictError{New: r, Existing: prev}
		}
	}
	if i < len(m.regions) {
		next := m.regions[i]
		if r.End() > next.Base {
			return &MapConflictError{New: r, Existing: next}
		}
	}
	m.regions = append(m.regions, Region{})
	copy(m.regions[i+1:], m.regions[i:])
	m.regions[i] = r
	return nil
}

// Lookup returns the Region covering addr, or an UnmappedError.
func (m *MemoryMap) Lookup(addr Address) (Region, error) {
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].End() > addr })
	if i < len(m.regions) && m.regions[i].contains(addr) {
		return m.regions[i], nil
	}
	return Region{}, &UnmappedError{Addr: addr}
}

// Regions returns the regions in address order (read-only use; callers must
// not mutate the returned slice's backing array).
func (m *MemoryMap) Regions() []Region {
	return m.regions
}
