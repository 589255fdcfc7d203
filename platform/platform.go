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

// Package platform implements the platform description loader (spec §6
// Platform description): a YAML document naming memory regions and MMIO
// region names with identical {name, base, size, perms} shape, consumed
// once on start to populate an emuctx.Context's memory map.
package platform

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rchtsang/ttff-sub001/state"
)

// RegionDesc is one memory-region or MMIO-region entry (spec §6: "set of
// memory regions with {name, base, size, perms}... MMIO region names with
// identical structure").
type RegionDesc struct {
	Name  string `yaml:"name"`
	Base  uint32 `yaml:"base"`
	Size  uint32 `yaml:"size"`
	Perms string `yaml:"perms"`
}

// Description is the parsed platform file: the memory regions to map
// verbatim, and the MMIO region names a caller resolves against its own
// concrete peripheral table (mmio package) before mapping.
type Description struct {
	Memory []RegionDesc `yaml:"memory"`
	Mmio   []RegionDesc `yaml:"mmio"`
}

// Parse decodes a platform description document.
func Parse(data []byte) (Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Description{}, fmt.Errorf("platform: parsing description: %w", err)
	}
	for _, r := range d.Memory {
		if r.Size%4 != 0 || r.Base%4 != 0 {
			return Description{}, fmt.Errorf("platform: memory region %q: base and size must be word-aligned", r.Name)
		}
	}
	return d, nil
}

// MemoryMapper is the subset of emuctx.Context a platform load populates.
type MemoryMapper interface {
	MapMemory(name string, base state.Address, size uint64, perms state.Perms) error
}

// Apply maps every memory region in d onto ctx (spec §6: "consumed once on
// start to populate the memory map"). MMIO regions are the caller's
// responsibility, since mapping one requires a concrete peripheral
// instance the platform description alone doesn't provide — see the mmio
// package's own loader, which consumes d.Mmio by name.
func Apply(ctx MemoryMapper, d Description) error {
	for _, r := range d.Memory {
		perms := state.ParsePerms(r.Perms)
		if err := ctx.MapMemory(r.Name, state.Address(r.Base), uint64(r.Size), perms); err != nil {
			return fmt.Errorf("platform: mapping %q: %w", r.Name, err)
		}
	}
	return nil
}
