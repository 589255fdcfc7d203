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

package scs

// MPU register offsets, relative to Base (§4.E.2 MPU registers, §6).
const (
	OffMPUType = 0xD90
	OffMPUCtrl = 0xD94
	OffMPURNR  = 0xD98
	OffMPURBAR0 = 0xD9C
	OffMPURASR0 = 0xDA0
	OffMPURBAR1 = 0xDA4
	OffMPURASR1 = 0xDA8
	OffMPURBAR2 = 0xDAC
	OffMPURASR2 = 0xDB0
	OffMPURBAR3 = 0xDB4
	OffMPURASR3 = 0xDB8
)

const mpuRegionBitsMask = 0xF // RBAR.REGION field, bits 3:0
const mpuRbarValid = 1 << 4   // RBAR.VALID

// MPU models the optional Memory Protection Unit register file. Region
// enforcement itself (address-range permission checks) is out of scope
// for this emulator's core (the spec's memory map already enforces
// mapping at a coarser grain); MPU here exposes only the bit-exact
// register storage §4.E.2 and §6 require.
type MPU struct {
	typ  uint32
	ctrl uint32
	rnr  uint32
	rbar [4]uint32
	rasr [4]uint32
}

// NewMPU returns an MPU advertising 4 regions, no unified/separate I+D
// support (a common minimal Cortex-M0+/M3 configuration).
func NewMPU() *MPU {
	return &MPU{typ: 4 << 8} // DREGION=4, IREGION=0, SEPARATE=0
}

func (m *MPU) ReadType() uint32 { return m.typ }
func (m *MPU) ReadCtrl() uint32 { return m.ctrl }
func (m *MPU) WriteCtrl(v uint32) { m.ctrl = v & 0x7 }
func (m *MPU) ReadRNR() uint32  { return m.rnr }
func (m *MPU) WriteRNR(v uint32) { m.rnr = v & 0xF }

func (m *MPU) ReadRBAR(n int) uint32 { return m.rbar[n] }

// WriteRBAR updates region n's base address register. When VALID is set,
// RNR.REGION is updated to the encoded REGION field as a side effect
// (§4.E.2 "Writes to RBAR with VALID=1 update RNR.REGION").
func (m *MPU) WriteRBAR(n int, v uint32) {
	m.rbar[n] = v
	if v&mpuRbarValid != 0 {
		m.rnr = v & mpuRegionBitsMask
	}
}

func (m *MPU) ReadRASR(n int) uint32   { return m.rasr[n] }
func (m *MPU) WriteRASR(n int, v uint32) { m.rasr[n] = v }
