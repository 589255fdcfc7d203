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
	"fmt"
	"math/rand"

	"github.com/rchtsang/ttff-sub001/peripheral"
	"github.com/rchtsang/ttff-sub001/platform"
)

// PeripheralMapper is the subset of emuctx.Context a platform's mmio
// section populates.
type PeripheralMapper interface {
	MapPeripheral(name string, dev peripheral.PeripheralState) error
}

// Apply maps each MMIO region named in d against its concrete
// implementation: "uart0" gets a channel-backed UART fed by rx, "gpio0"
// a GPIO bank, "rng0" an RNG, and anything unrecognised a Stub — so an
// unfamiliar platform description still maps cleanly instead of failing to
// load (spec §6 treats peripheral identity as the platform description's
// business, not the core's).
func Apply(ctx PeripheralMapper, d platform.Description, rx <-chan byte) error {
	for _, r := range d.Mmio {
		dev, err := deviceFor(r.Name, uint64(r.Base), uint64(r.Size), rx)
		if err != nil {
			return fmt.Errorf("mmio: %w", err)
		}
		if err := ctx.MapPeripheral(r.Name, dev); err != nil {
			return fmt.Errorf("mmio: mapping %q: %w", r.Name, err)
		}
	}
	return nil
}

func deviceFor(name string, base, size uint64, rx <-chan byte) (peripheral.PeripheralState, error) {
	switch name {
	case "uart0":
		return NewUART(base, rx), nil
	case "gpio0":
		return NewGPIO(base), nil
	case "rng0":
		return NewRNG(base, rand.New(rand.NewSource(1))), nil
	default:
		return NewStub(name, base, size), nil
	}
}
