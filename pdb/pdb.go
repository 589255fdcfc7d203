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

// Package pdb implements ProgramDB (§4.I): a thin wrapper around an
// eval.Context that materialises a control-flow graph from the
// instructions the evaluator fetches, and the pdb-side analysis plugin
// surface (§4.J: pre_edge_cb, post_lift_block_cb).
//
// Grounded on coprocessor/developer/callstack (address-keyed frame
// bookkeeping driven by the same call/return events a CFG's edges are
// labelled with) and coprocessor/developer/breakpoints (an address-keyed
// table consulted on every fetch, with a pre/post style hook around the
// event it watches for) — ProgramDB generalises both into one
// fetch-intercepting, edge-recording component.
package pdb

import (
	"sync"

	"github.com/rchtsang/ttff-sub001/bitvec"
	"github.com/rchtsang/ttff-sub001/eval"
	"github.com/rchtsang/ttff-sub001/pcode"
	"github.com/rchtsang/ttff-sub001/taint"
)

// Edge is one CFG successor: a flow kind and the address it leads to
// (glossary "Basic block": "successors: set<(FlowKind, target_address)>").
type Edge struct {
	Kind   eval.FlowKind
	Target uint64
}

// BasicBlock is a CFG node (glossary Basic block): a contiguous run of
// instructions ending in a branch-family opcode, plus the set of edges
// runtime execution has so far resolved out of it.
type BasicBlock struct {
	Start, End uint64
	Insns      []uint64
	Successors map[Edge]struct{}
}

// Plugin is the pdb-side analysis plugin surface (§4.J).
type Plugin interface {
	// PreEdge is called before an edge is added to the CFG. Returning a
	// non-nil error aborts the step that triggered it.
	PreEdge(parent, child uint64, kind eval.FlowKind) error
	// PostLiftBlock is called after a new block enters the CFG.
	PostLiftBlock(block *BasicBlock)
}

// ProgramDB sits between the evaluator and the context for fetch (§4.I):
// it delegates every Context operation to the wrapped base context, but
// intercepts Fetch to grow the CFG one instruction at a time, sealing a
// BasicBlock when the fetched instruction's final micro-op is in the
// branch family.
type ProgramDB struct {
	base eval.Context

	mu        sync.Mutex
	blocks    map[uint64]*BasicBlock // keyed by block start address
	addrBlock map[uint64]uint64      // instruction address -> owning block start
	building  *BasicBlock
	plugins   []Plugin
}

// New returns a ProgramDB wrapping base. base is typically an
// *emuctx.Context; ProgramDB itself satisfies eval.Context so it can be
// passed to Evaluator.Step in base's place.
func New(base eval.Context) *ProgramDB {
	return &ProgramDB{
		base:      base,
		blocks:    make(map[uint64]*BasicBlock),
		addrBlock: make(map[uint64]uint64),
	}
}

// Register adds an analysis plugin. Plugins fire in registration order.
func (p *ProgramDB) Register(pl Plugin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plugins = append(p.plugins, pl)
}

// Block returns the CFG node starting at addr, if one has been sealed.
func (p *ProgramDB) Block(addr uint64) (*BasicBlock, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.blocks[addr]
	return b, ok
}

// Fetch delegates to base.Fetch, then grows the CFG with the result
// (§4.I: "On first fetch of an address, it triggers a basic-block lift
// and materialises a CFG node for that block").
func (p *ProgramDB) Fetch(addr uint64) (pcode.Instruction, error) {
	insn, err := p.base.Fetch(addr)
	if err != nil {
		return insn, err
	}
	p.observe(addr, insn)
	return insn, nil
}

func (p *ProgramDB) observe(addr uint64, insn pcode.Instruction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.addrBlock[addr]; ok {
		// Already part of a sealed block from a prior fetch; re-executing
		// it (e.g. a loop) grows no new CFG structure.
		return
	}
	if p.building == nil || p.building.End != addr {
		p.building = &BasicBlock{Start: addr, Successors: make(map[Edge]struct{})}
	}
	p.building.Insns = append(p.building.Insns, addr)
	p.building.End = addr + uint64(insn.Length)
	p.addrBlock[addr] = p.building.Start

	sealed := len(insn.PCode) == 0 || insn.PCode[len(insn.PCode)-1].Opcode.IsBranchFamily()
	if !sealed {
		return
	}
	block := p.building
	p.blocks[block.Start] = block
	p.building = nil
	for _, pl := range p.plugins {
		pl.PostLiftBlock(block)
	}
}

// AddEdge records a runtime-resolved CFG edge out of the block containing
// parent (§4.I: "On edge-generating events... it calls
// add_edge(parent, child, flow_kind) and notifies analysis plugins").
// parent/child are typically read from an Evaluator's LastEdge() after a
// Step that terminated in anything but a fall-through.
func (p *ProgramDB) AddEdge(parent, child uint64, kind eval.FlowKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pl := range p.plugins {
		if err := pl.PreEdge(parent, child, kind); err != nil {
			return err
		}
	}
	start, ok := p.addrBlock[parent]
	if !ok {
		return nil
	}
	block := p.blocks[start]
	if block == nil {
		return nil
	}
	block.Successors[Edge{Kind: kind, Target: child}] = struct{}{}
	return nil
}

func (p *ProgramDB) Read(v pcode.Varnode) (bitvec.BitVec, taint.Tag, error) {
	return p.base.Read(v)
}

func (p *ProgramDB) Write(v pcode.Varnode, val bitvec.BitVec, tag taint.Tag) error {
	return p.base.Write(v, val, tag)
}

func (p *ProgramDB) Load(addr uint64, size int) (bitvec.BitVec, taint.Tag, error) {
	return p.base.Load(addr, size)
}

func (p *ProgramDB) Store(addr uint64, val bitvec.BitVec, tag taint.Tag) error {
	return p.base.Store(addr, val, tag)
}

func (p *ProgramDB) ReadPc() uint32    { return p.base.ReadPc() }
func (p *ProgramDB) WritePc(v uint32)  { p.base.WritePc(v) }
func (p *ProgramDB) ReadSp() uint32    { return p.base.ReadSp() }
func (p *ProgramDB) WriteSp(v uint32)  { p.base.WriteSp(v) }
