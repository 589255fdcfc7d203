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

// Package shadow implements the shadow state (spec §3, §4.D): a
// byte-addressable Tag store that mirrors a state.FixedState one-for-one.
// Every map_memory / map_mmio in emuctx creates a matching FixedTagState of
// the same size, preserving the coextensivity invariant: any concrete
// read/write of N bytes is always accompanied by a tag read/write of the
// same N-byte range.
package shadow

import (
	"fmt"

	"github.com/rchtsang/ttff-sub001/state"
	"github.com/rchtsang/ttff-sub001/taint"
)

// FixedTagState is the tag-shadow analogue of state.FixedState.
type FixedTagState struct {
	name string
	tags []taint.Tag
}

// NewFixedTagState allocates a CLEAN-initialised shadow of the given size.
func NewFixedTagState(name string, size int) *FixedTagState {
	return &FixedTagState{name: name, tags: make([]taint.Tag, size)}
}

// Len returns the number of shadowed bytes.
func (s *FixedTagState) Len() int { return len(s.tags) }

// ReadTags or-reduces the n tag bytes starting at offset into one Tag
// (spec §3: loads or-reduce). An out-of-bounds shadow access is a
// programming bug — the shadow must be coextensive with the concrete state
// by construction (spec §4.D) — so this panics rather than returning an
// error, the way a slice index out of range would.
func (s *FixedTagState) ReadTags(offset state.Address, n int) taint.Tag {
	s.checkBounds("ReadTags", offset, n)
	return taint.Reduce(s.tags[offset : int(offset)+n])
}

// WriteTags broadcasts tag across n bytes starting at offset.
func (s *FixedTagState) WriteTags(offset state.Address, n int, tag taint.Tag) {
	s.checkBounds("WriteTags", offset, n)
	copy(s.tags[offset:int(offset)+n], taint.Broadcast(tag, n))
}

// WriteTagBytes writes an explicit per-byte tag slice starting at offset,
// used when a multi-byte store carries distinct per-byte provenance (rare;
// most callers use WriteTags with one combined Tag per §3's broadcast rule).
func (s *FixedTagState) WriteTagBytes(offset state.Address, tags []taint.Tag) {
	s.checkBounds("WriteTagBytes", offset, len(tags))
	copy(s.tags[offset:int(offset)+len(tags)], tags)
}

func (s *FixedTagState) checkBounds(op string, offset state.Address, n int) {
	if n < 0 || int64(offset) < 0 || int(offset)+n > len(s.tags) {
		panic(fmt.Sprintf("shadow %s: %s out of bounds: offset %#x size %d cap %#x (coextensivity violated)",
			s.name, op, offset, n, len(s.tags)))
	}
}
