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

import "github.com/rchtsang/ttff-sub001/peripheral"

// SCB register offsets, relative to Base (§4.E.2 SCB key registers, §6).
const (
	OffICTR  = 0x004
	OffACTLR = 0x008
	OffCPUID = 0xD00
	OffICSR  = 0xD04
	OffVTOR  = 0xD08
	OffAIRCR = 0xD0C
	OffSCR   = 0xD10
	OffCCR   = 0xD14
	OffSHPR1 = 0xD18
	OffSHPR2 = 0xD1C
	OffSHPR3 = 0xD20
	OffSHCSR = 0xD24
	OffCFSR  = 0xD28
	OffHFSR  = 0xD2C
	OffDFSR  = 0xD30
	OffMMFAR = 0xD34
	OffBFAR  = 0xD38
	OffAFSR  = 0xD3C
	OffCPACR = 0xD88
	OffSTIR  = 0xF00
)

// ICSR bit positions.
const (
	icsrVectActiveMask  = 0x1FF
	icsrRetToBase       = 1 << 11
	icsrVectPendingMask = 0x1FF << 12
	icsrIsrPending      = 1 << 22
	icsrPendStClr       = 1 << 25
	icsrPendStSet       = 1 << 26
	icsrPendSvClr       = 1 << 27
	icsrPendSvSet       = 1 << 28
	icsrNmiPendSet      = 1 << 31
)

// AIRCR bit positions.
const (
	aircrVectReset     = 1 << 0
	aircrVectClrActive = 1 << 1
	aircrSysResetReq   = 1 << 2
	aircrPrigroupMask  = 0x7 << 8
	aircrVectKeyMask   = 0xFFFF << 16
	aircrVectKey       = 0x05FA << 16
	aircrVectKeyStat   = 0xFA05 << 16
)

// SCR bit positions.
const (
	scrSleepOnExit = 1 << 1
	scrSleepDeep   = 1 << 2
	scrSevOnPend   = 1 << 4
)

// CCR bit positions.
const (
	ccrNonBaseThrdEna = 1 << 0
	ccrUserSetMpEnd   = 1 << 1
	ccrUnalignTrp     = 1 << 3
	ccrDiv0Trp        = 1 << 4
	ccrBfhfnmign      = 1 << 8
	ccrStkAlign       = 1 << 9
)

// SHCSR bit positions.
const (
	shcsrMemFaultAct     = 1 << 0
	shcsrBusFaultAct     = 1 << 1
	shcsrUsgFaultAct     = 1 << 3
	shcsrSvCallAct       = 1 << 7
	shcsrMonitorAct      = 1 << 8
	shcsrPendSvAct       = 1 << 10
	shcsrSysTickAct      = 1 << 11
	shcsrUsgFaultPending = 1 << 12
	shcsrMemFaultPending = 1 << 13
	shcsrBusFaultPending = 1 << 14
	shcsrSvCallPending   = 1 << 15
	shcsrMemFaultEna     = 1 << 16
	shcsrBusFaultEna     = 1 << 17
	shcsrUsgFaultEna     = 1 << 18
)

// CFSR (MMFSR | BFSR<<8 | UFSR<<16) bit positions.
const (
	mmfsrMmarValid = 1 << 7
	bfsrBfarValid  = 1 << (8 + 7)
)

// HFSR bit positions.
const (
	hfsrVectTbl   = 1 << 1
	hfsrForced    = 1 << 30
	hfsrDebugEvt  = 1 << 31
)

// SCB is the System Control Block, SCS offsets 0xD00-0xD8F plus ICTR/ACTLR.
type SCB struct {
	ictr  uint32
	actlr uint32
	cpuid uint32
	icsr  uint32
	vtor  uint32
	aircr uint32
	scr   uint32
	ccr   uint32
	shpr  [12]byte // SHPR1..3 as 12 priority bytes, handlers 4..15
	shcsr uint32
	cfsr  uint32
	hfsr  uint32
	dfsr  uint32
	mmfar uint32
	bfar  uint32
	afsr  uint32
	cpacr uint32
}

// NewSCB returns an SCB with CPUID describing an ARMv7-M implementation
// (ARM, variant 0, architecture 0xF=ARMv7-M profile encoding, partno
// Cortex-M4-shaped for a representative concrete value, revision 1) and
// one NVIC external-interrupt line bank advertised via ICTR.
func NewSCB(numIntLines int) *SCB {
	intlinesnum := uint32((numIntLines+31)/32 - 1)
	return &SCB{
		ictr:  intlinesnum & 0xF,
		cpuid: 0x410FC241,
	}
}

func (b *SCB) ReadICTR() uint32  { return b.ictr }
func (b *SCB) ReadACTLR() uint32 { return b.actlr }
func (b *SCB) WriteACTLR(v uint32) { b.actlr = v }
func (b *SCB) ReadCPUID() uint32 { return b.cpuid }

func (b *SCB) ReadICSR() uint32 { return b.icsr }

// WriteICSR applies the set/clr write discipline and returns the events
// raised (§4.E.2 ICSR).
func (b *SCB) WriteICSR(v uint32) []peripheral.Event {
	var evs []peripheral.Event
	if v&icsrPendStSet != 0 && b.icsr&icsrPendStSet == 0 {
		b.icsr |= icsrPendStSet
		evs = append(evs, excSetEvent(peripheral.ExceptionSysTick, peripheral.SetPending, true))
	}
	if v&icsrPendStClr != 0 {
		b.icsr &^= icsrPendStSet
		evs = append(evs, excSetEvent(peripheral.ExceptionSysTick, peripheral.SetPending, false))
	}
	if v&icsrPendSvSet != 0 && b.icsr&icsrPendSvSet == 0 {
		b.icsr |= icsrPendSvSet
		evs = append(evs, excSetEvent(peripheral.ExceptionPendSV, peripheral.SetPending, true))
	}
	if v&icsrPendSvClr != 0 {
		b.icsr &^= icsrPendSvSet
		evs = append(evs, excSetEvent(peripheral.ExceptionPendSV, peripheral.SetPending, false))
	}
	if v&icsrNmiPendSet != 0 {
		b.icsr |= icsrNmiPendSet
		evs = append(evs, excSetEvent(peripheral.ExceptionNMI, peripheral.SetPending, true))
	}
	return evs
}

// SetVectActive updates the read-only VECTACTIVE/RETTOBASE/VECTPENDING/
// ISRPENDING fields; these are derived state the NVIC/context computes,
// not directly software-writable.
func (b *SCB) SetVectActive(active int) {
	b.icsr = (b.icsr &^ icsrVectActiveMask) | uint32(active)&icsrVectActiveMask
}

func (b *SCB) ReadVTOR() uint32 { return b.vtor }

// WriteVTOR masks to the TBLOFF field (bits 31:7, i.e. 128-byte aligned)
// and returns the VectorTableOffsetWrite event.
func (b *SCB) WriteVTOR(v uint32) peripheral.Event {
	b.vtor = v &^ 0x7F
	return peripheral.Event{Kind: peripheral.EventVectorTableOffsetWrite, U32: b.vtor}
}

func (b *SCB) ReadAIRCR() uint32 {
	return (b.aircr &^ aircrVectKeyMask) | aircrVectKeyStat
}

// WriteAIRCR enforces the VECTKEY guard (§4.E.2 AIRCR): a write whose bits
// 31:16 do not equal 0x05FA is entirely ignored (no state change, no
// events), matching §8 scenario 3.
func (b *SCB) WriteAIRCR(v uint32) []peripheral.Event {
	if v&aircrVectKeyMask != aircrVectKey {
		return nil
	}
	var evs []peripheral.Event
	if v&aircrVectReset != 0 {
		evs = append(evs, peripheral.Event{Kind: peripheral.EventLocalSysResetRequest})
	}
	if v&aircrVectClrActive != 0 {
		evs = append(evs, peripheral.Event{Kind: peripheral.EventExceptionClrAllActive})
	}
	if v&aircrSysResetReq != 0 {
		evs = append(evs, peripheral.Event{Kind: peripheral.EventExternSysResetRequest})
	}
	oldPrigroup := b.aircr & aircrPrigroupMask
	newPrigroup := v & aircrPrigroupMask
	b.aircr = (b.aircr &^ aircrPrigroupMask) | newPrigroup
	if oldPrigroup != newPrigroup {
		evs = append(evs, peripheral.Event{Kind: peripheral.EventSetPriorityGrouping, U32: newPrigroup >> 8})
	}
	return evs
}

func (b *SCB) ReadSCR() uint32 { return b.scr }

// WriteSCR emits an event for each bit that changes.
func (b *SCB) WriteSCR(v uint32) []peripheral.Event {
	var evs []peripheral.Event
	if bitChanged(b.scr, v, 1) {
		evs = append(evs, peripheral.Event{Kind: peripheral.EventSetSleepOnExit, Bool: v&scrSleepOnExit != 0})
	}
	if bitChanged(b.scr, v, 2) {
		evs = append(evs, peripheral.Event{Kind: peripheral.EventSetDeepSleep, Bool: v&scrSleepDeep != 0})
	}
	if bitChanged(b.scr, v, 4) {
		evs = append(evs, peripheral.Event{Kind: peripheral.EventSetSevOnPend, Bool: v&scrSevOnPend != 0})
	}
	b.scr = v & (scrSleepOnExit | scrSleepDeep | scrSevOnPend)
	return evs
}

func (b *SCB) ReadCCR() uint32 { return b.ccr }

var ccrBitNames = map[uint32]string{
	ccrNonBaseThrdEna: "NONBASETHRDENA",
	ccrUserSetMpEnd:   "USERSETMPEND",
	ccrUnalignTrp:     "UNALIGN_TRP",
	ccrDiv0Trp:        "DIV_0_TRP",
	ccrBfhfnmign:      "BFHFNMIGN",
	ccrStkAlign:       "STKALIGN",
}

// WriteCCR emits a CcrPolicyChanged event per changed bit.
func (b *SCB) WriteCCR(v uint32) []peripheral.Event {
	var evs []peripheral.Event
	for mask, name := range ccrBitNames {
		if b.ccr&mask != v&mask {
			evs = append(evs, peripheral.Event{Kind: peripheral.EventCcrPolicyChanged, CcrBit: name})
		}
	}
	b.ccr = v
	return evs
}

// UserSetMpEndEnabled reports CCR.USERSETMPEND, gating unprivileged STIR
// writes (§4.E.2 STIR).
func (b *SCB) UserSetMpEndEnabled() bool { return b.ccr&ccrUserSetMpEnd != 0 }
func (b *SCB) UnalignTrpEnabled() bool   { return b.ccr&ccrUnalignTrp != 0 }
func (b *SCB) Div0TrpEnabled() bool      { return b.ccr&ccrDiv0Trp != 0 }

// handler IDs for SHPR byte offsets, handlers 4..15 (MemManage=4 ...
// SysTick=15).
const (
	HandlerMemManage     = 4
	HandlerBusFault      = 5
	HandlerUsageFault    = 6
	HandlerSVCall        = 11
	HandlerDebugMonitor  = 12
	HandlerPendSV        = 14
	HandlerSysTick       = 15
)

// ReadSHPR returns the priority byte for system handler id (4-15).
func (b *SCB) ReadSHPR(id int) byte { return b.shpr[id-4] }

// WriteSHPR sets the priority byte for system handler id, returning
// whether it changed (caller emits SetSystemHandlerPriority).
func (b *SCB) WriteSHPR(id int, v byte) bool {
	changed := b.shpr[id-4] != v
	b.shpr[id-4] = v
	return changed
}

func (b *SCB) ReadSHCSR() uint32 { return b.shcsr }

// WriteSHCSR updates active/pending/enable bits; emits ExceptionEnabled
// for each enable bit that changes.
func (b *SCB) WriteSHCSR(v uint32) []peripheral.Event {
	var evs []peripheral.Event
	if bitChanged(b.shcsr, v, 16) {
		evs = append(evs, excSetEvent(peripheral.ExceptionMemManage, peripheral.SetEnabled, v&shcsrMemFaultEna != 0))
	}
	if bitChanged(b.shcsr, v, 17) {
		evs = append(evs, excSetEvent(peripheral.ExceptionBusFault, peripheral.SetEnabled, v&shcsrBusFaultEna != 0))
	}
	if bitChanged(b.shcsr, v, 18) {
		evs = append(evs, excSetEvent(peripheral.ExceptionUsageFault, peripheral.SetEnabled, v&shcsrUsgFaultEna != 0))
	}
	b.shcsr = v
	return evs
}

func (b *SCB) ReadCFSR() uint32 { return b.cfsr }

// WriteCFSR implements write-1-to-clear for each fault-status bit; a
// cleared MMFSR/BFSR group also clears its ...VALID sticky bit (§9 open
// question 2, ARMv7-M ARM B3.2.15/B3.2.16: the address register is only
// meaningful while the fault it describes is still indicated).
func (b *SCB) WriteCFSR(v uint32) []peripheral.Event {
	var evs []peripheral.Event
	mmfsrBits := v & 0xFF
	if mmfsrBits != 0 {
		b.cfsr &^= mmfsrBits
		if mmfsrBits&^mmfsrMmarValid != 0 {
			b.cfsr &^= mmfsrMmarValid
		}
		evs = append(evs, peripheral.Event{Kind: peripheral.EventFaultStatusClr, Fault: peripheral.FaultMemManage})
	}
	bfsrBits := v & (0xFF << 8)
	if bfsrBits != 0 {
		b.cfsr &^= bfsrBits
		if bfsrBits&^bfsrBfarValid != 0 {
			b.cfsr &^= bfsrBfarValid
		}
		evs = append(evs, peripheral.Event{Kind: peripheral.EventFaultStatusClr, Fault: peripheral.FaultBus})
	}
	ufsrBits := v & (0xFFFF << 16)
	if ufsrBits != 0 {
		b.cfsr &^= ufsrBits
		evs = append(evs, peripheral.Event{Kind: peripheral.EventFaultStatusClr, Fault: peripheral.FaultUsage})
	}
	return evs
}

func (b *SCB) ReadHFSR() uint32 { return b.hfsr }

// WriteHFSR applies the same write-1-to-clear discipline as CFSR.
func (b *SCB) WriteHFSR(v uint32) []peripheral.Event {
	if v == 0 {
		return nil
	}
	b.hfsr &^= v
	return []peripheral.Event{{Kind: peripheral.EventFaultStatusClr, Fault: peripheral.FaultHard}}
}

func (b *SCB) ReadDFSR() uint32    { return b.dfsr }
func (b *SCB) WriteDFSR(v uint32) { b.dfsr &^= v }
func (b *SCB) ReadMMFAR() uint32  { return b.mmfar }
func (b *SCB) WriteMMFAR(v uint32) { b.mmfar = v }
func (b *SCB) ReadBFAR() uint32   { return b.bfar }
func (b *SCB) WriteBFAR(v uint32) { b.bfar = v }
func (b *SCB) ReadAFSR() uint32   { return b.afsr }
func (b *SCB) WriteAFSR(v uint32) { b.afsr = v }
func (b *SCB) ReadCPACR() uint32  { return b.cpacr }
func (b *SCB) WriteCPACR(v uint32) { b.cpacr = v }

func excSetEvent(exc peripheral.ExceptionKind, kind peripheral.SetKind, val bool) peripheral.Event {
	return peripheral.Event{
		Kind:      peripheral.EventExceptionSet,
		Exception: peripheral.Exception{Kind: exc},
		SetKind:   kind,
		Bool:      val,
	}
}
