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

// SysTick offsets, relative to Base (§4.E.2, §6).
const (
	OffSysTickCSR   = 0x010
	OffSysTickRVR   = 0x014
	OffSysTickCVR   = 0x018
	OffSysTickCALIB = 0x01C
)

const (
	csrEnable    = 1 << 0
	csrTickInt   = 1 << 1
	csrClkSource = 1 << 2
	csrCountFlag = 1 << 16

	rvrMask = 0x00FFFFFF
	cvrMask = 0x00FFFFFF
)

// SysTick is the 24-bit down-counter timer at SCS offset 0x010-0x01C.
type SysTick struct {
	csr   uint32
	rvr   uint32
	cvr   uint32
	calib uint32
}

// NewSysTick returns a SysTick whose CALIB reads as zero (TENMS, SKEW and
// NOREF all clear).
func NewSysTick() *SysTick {
	return &SysTick{calib: 0x00000000}
}

// Enabled reports CSR.ENABLE.
func (s *SysTick) Enabled() bool { return s.csr&csrEnable != 0 }

// TickIntEnabled reports CSR.TICKINT.
func (s *SysTick) TickIntEnabled() bool { return s.csr&csrTickInt != 0 }

// ReadCSR returns CSR and clears COUNTFLAG as a side effect of the read
// (§4.E.2 SysTick registers: "countflag ... cleared by software read of
// CSR or any write to CVR").
func (s *SysTick) ReadCSR() uint32 {
	v := s.csr
	s.csr &^= csrCountFlag
	return v
}

// WriteCSR updates ENABLE/TICKINT/CLKSOURCE; COUNTFLAG is read-only from
// software and is never affected by a write to CSR itself. Returns true if
// TICKINT's enabled-ness changed while the module is enabled, in which
// case the caller should emit ExceptionEnabled(SysTick, tickint).
func (s *SysTick) WriteCSR(val uint32) (tickIntChanged, tickIntNow bool) {
	before := s.csr & csrTickInt
	writable := val & (csrEnable | csrTickInt | csrClkSource)
	s.csr = (s.csr & csrCountFlag) | writable
	after := s.csr & csrTickInt
	return before != after && s.csr&csrEnable != 0, after != 0
}

// ReadRVR returns the 24-bit reload value.
func (s *SysTick) ReadRVR() uint32 { return s.rvr }

// WriteRVR sets the reload value; upper 8 bits are write-ignored.
func (s *SysTick) WriteRVR(val uint32) { s.rvr = val & rvrMask }

// ReadCVR returns the current counter value.
func (s *SysTick) ReadCVR() uint32 { return s.cvr }

// WriteCVR clears the counter to zero and clears COUNTFLAG, regardless of
// the value written (§4.E.2 "CVR: any write clears to zero").
func (s *SysTick) WriteCVR(uint32) {
	s.cvr = 0
	s.csr &^= csrCountFlag
}

// ReadCALIB returns the read-only calibration value.
func (s *SysTick) ReadCALIB() uint32 { return s.calib }

// LoadCounter directly sets the live counter value, bypassing the
// write-clears-to-zero discipline WriteCVR enforces for software register
// writes. Used to seed initial state from a platform snapshot or test
// fixture, not as a register-level bus transaction.
func (s *SysTick) LoadCounter(cvr uint32) { s.cvr = cvr & cvrMask }

// Tick decrements CVR by one. It returns true only when the counter
// reaches zero on this tick AND TICKINT is set (§6 scenario 5, §4.E.2
// "returns true if CSR.tickint is set"); the caller is then responsible
// for setting the SysTick exception pending.
//
// Once CVR reaches zero it holds at zero (COUNTFLAG stays latched until
// read). Tick never reloads CVR, and neither a CVR write (which clears CVR
// to zero) nor an RVR write restarts the count; only LoadCounter sets a
// non-zero CVR again. This resolves an ambiguity between §4.E.2's prose ("on underflow
// CVR is reloaded from RVR") and the worked example in §8 scenario 5 (RVR=4,
// CVR=4, five ticks, expected CVR=0): an auto-reloading counter would read
// back RVR, not zero, on the fifth tick. Since cycle-accurate timing is an
// explicit non-goal, the counter is modelled as expiring once and staying
// expired rather than free-running.
func (s *SysTick) Tick() bool {
	if !s.Enabled() || s.cvr == 0 {
		return false
	}
	s.cvr--
	if s.cvr == 0 {
		s.csr |= csrCountFlag
		return s.TickIntEnabled()
	}
	return false
}
