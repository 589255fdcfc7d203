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

// Package fuzz implements the fuzzing front-end named in §1/§6: coverage
// recording, the channel-backed fuzzer-input conduit, and the per-iteration
// run loop (SPEC_FULL.md "Fuzzing front-end").
//
// Grounded on rcornwell/S370's emu/sys_channel MPSC byte-queue idiom for
// channel-backed device I/O, generalised into a fuzzer-facing coverage map
// and run loop that has no direct teacher analogue — a genuinely new
// component, built in the corpus's idiom rather than copied from it.
package fuzz

import (
	"github.com/rchtsang/ttff-sub001/eval"
	"github.com/rchtsang/ttff-sub001/pdb"
)

// DefaultCoverageSize is the default shared coverage array size (spec §6
// Fuzzing interface: "coverage recorded in a fixed-size shared byte array
// (default 8192 entries)").
const DefaultCoverageSize = 8192

// CoverageMap is the fixed-size edge-coverage array a pdb.Plugin's
// pre_edge_cb writes into (spec §6: "addressed by (parent_addr XOR
// child_addr) mod size").
type CoverageMap struct {
	bits []byte
}

// NewCoverageMap returns a zeroed map of the given size. size <= 0 uses
// DefaultCoverageSize.
func NewCoverageMap(size int) *CoverageMap {
	if size <= 0 {
		size = DefaultCoverageSize
	}
	return &CoverageMap{bits: make([]byte, size)}
}

// Hit records one traversal of the (parent, child) edge, saturating at 255
// rather than wrapping, so a hot edge doesn't cycle back to looking cold.
func (m *CoverageMap) Hit(parent, child uint64) {
	idx := (parent ^ child) % uint64(len(m.bits))
	if m.bits[idx] < 255 {
		m.bits[idx]++
	}
}

// Bytes returns the live coverage array; callers that need a stable
// snapshot (e.g. to diff "new coverage this run" against a corpus-wide
// map) should copy it.
func (m *CoverageMap) Bytes() []byte { return m.bits }

// Reset zeroes every entry, for reuse across fuzzing iterations that want
// per-run (rather than cumulative) coverage.
func (m *CoverageMap) Reset() {
	for i := range m.bits {
		m.bits[i] = 0
	}
}

// EdgePlugin adapts a CoverageMap into a pdb.Plugin, recording a hit on
// every runtime-resolved CFG edge.
type EdgePlugin struct {
	Map *CoverageMap
}

// PreEdge implements pdb.Plugin.
func (p EdgePlugin) PreEdge(parent, child uint64, kind eval.FlowKind) error {
	p.Map.Hit(parent, child)
	return nil
}

// PostLiftBlock implements pdb.Plugin; coverage is edge-keyed, so newly
// lifted blocks need no action here.
func (p EdgePlugin) PostLiftBlock(block *pdb.BasicBlock) {}
