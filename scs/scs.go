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

import (
	"encoding/binary"

	"github.com/rchtsang/ttff-sub001/peripheral"
)

// Offset ranges partitioning the SCS (§4.E.2 table).
const (
	regionSysTickStart = 0x010
	regionSysTickEnd   = 0x0FF
	regionNVICStart    = 0x100
	regionNVICEnd      = 0xCFF
	regionSCBStart     = 0xD00
	regionSCBEnd       = 0xD8F
	regionMPUStart     = 0xD90
	regionMPUEnd       = 0xDEC
	regionDebugStart   = 0xDF0
	regionDebugEnd     = 0xEFF
	regionSTIR         = 0xF00
	regionIDStart      = 0xFD0
	regionIDEnd        = 0xFFC
)

// SCS is the unified System Control Space peripheral: SCB + SysTick + NVIC
// + MPU, mapped at [Base, Base+Size) (§4.E.2).
type SCS struct {
	SCB     *SCB
	SysTick *SysTick
	NVIC    *NVIC
	MPU     *MPU
}

// New returns an SCS model wired for numExtInterrupts external interrupt
// lines (rounded up to a multiple of 32 for ICTR purposes).
func New(numExtInterrupts int) *SCS {
	return &SCS{
		SCB:     NewSCB(numExtInterrupts),
		SysTick: NewSysTick(),
		NVIC:    NewNVIC(),
		MPU:     NewMPU(),
	}
}

func (s *SCS) Base() uint64 { return Base }
func (s *SCS) Size() uint64 { return Size }

// alignmentError reports a misaligned SCS access (§4.E.2 "Accesses are
// word-aligned except for ... IPR and STIR").
func alignmentError(addr uint64) error {
	return &RegError{Peripheral: "scs", Addr: addr, Reason: "misaligned access"}
}

func allowsSubWord(off uint64) bool {
	return (off >= OffIPR0 && off <= OffIPR123) || off == regionSTIR
}

// ReadBytes implements peripheral.PeripheralState.
func (s *SCS) ReadBytes(addr uint64, dst []byte, q *peripheral.EventQueue) error {
	off := addr - Base
	if off%4 != 0 && !allowsSubWord(off) {
		return alignmentError(addr)
	}
	if off >= OffIPR0 && off <= OffIPR123 {
		idx := int(off - OffIPR0)
		for i := range dst {
			dst[i] = s.NVIC.ReadIPR(idx + i)
		}
		return nil
	}
	word, err := s.readWord(off &^ 3)
	if err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)
	copy(dst, buf[off%4:])
	return nil
}

// WriteBytes implements peripheral.PeripheralState.
func (s *SCS) WriteBytes(addr uint64, src []byte, q *peripheral.EventQueue) error {
	off := addr - Base
	if off%4 != 0 && !allowsSubWord(off) {
		return alignmentError(addr)
	}
	if off >= OffIPR0 && off <= OffIPR123 {
		idx := int(off - OffIPR0)
		for i, b := range src {
			extIrq := idx + i
			if s.NVIC.WriteIPR(extIrq, b) {
				q.Push(peripheral.Event{
					Kind:      peripheral.EventSetSystemHandlerPriority,
					Exception: peripheral.Exception{Kind: peripheral.ExternalInterrupt, N: 16 + extIrq},
					Priority:  b,
				})
			}
		}
		return nil
	}
	if off == regionSTIR {
		// privilege gating (CCR.USERSETMPEND) is enforced by the caller,
		// which knows the current execution mode; the register model
		// itself is unconditional.
		intid := uint32(0)
		for i, b := range src {
			intid |= uint32(b) << uint(8*i)
		}
		intid &= 0x1FF
		q.Push(peripheral.Event{
			Kind:      peripheral.EventExceptionSet,
			SetKind:   peripheral.SetActive,
			Exception: peripheral.Exception{Kind: peripheral.ExternalInterrupt, N: int(intid) + 16},
			Bool:      true,
		})
		return nil
	}

	wordOff := off &^ 3
	existing, err := s.readWord(wordOff)
	if err != nil {
		return err
	}
	newWord := writeWordFromBytes(existing, int(off%4), src)
	return s.writeWord(wordOff, newWord, q)
}

func (s *SCS) readWord(off uint64) (uint32, error) {
	switch {
	case off == OffICTR:
		return s.SCB.ReadICTR(), nil
	case off == OffACTLR:
		return s.SCB.ReadACTLR(), nil
	case off == OffSysTickCSR:
		return s.SysTick.ReadCSR(), nil
	case off == OffSysTickRVR:
		return s.SysTick.ReadRVR(), nil
	case off == OffSysTickCVR:
		return s.SysTick.ReadCVR(), nil
	case off == OffSysTickCALIB:
		return s.SysTick.ReadCALIB(), nil
	case off >= OffISER0 && off <= OffISER15:
		return s.NVIC.ReadEnable(int((off - OffISER0) / 4)), nil
	case off >= OffICER0 && off <= OffICER15:
		return s.NVIC.ReadEnable(int((off - OffICER0) / 4)), nil
	case off >= OffISPR0 && off <= OffISPR15:
		return s.NVIC.ReadPending(int((off - OffISPR0) / 4)), nil
	case off >= OffICPR0 && off <= OffICPR15:
		return s.NVIC.ReadPending(int((off - OffICPR0) / 4)), nil
	case off >= OffIABR0 && off <= OffIABR15:
		return s.NVIC.ReadActive(int((off - OffIABR0) / 4)), nil
	case off == OffCPUID:
		return s.SCB.ReadCPUID(), nil
	case off == OffICSR:
		return s.SCB.ReadICSR(), nil
	case off == OffVTOR:
		return s.SCB.ReadVTOR(), nil
	case off == OffAIRCR:
		return s.SCB.ReadAIRCR(), nil
	case off == OffSCR:
		return s.SCB.ReadSCR(), nil
	case off == OffCCR:
		return s.SCB.ReadCCR(), nil
	case off >= OffSHPR1 && off <= OffSHPR3+3:
		return shprWord(s.SCB, off), nil
	case off == OffSHCSR:
		return s.SCB.ReadSHCSR(), nil
	case off == OffCFSR:
		return s.SCB.ReadCFSR(), nil
	case off == OffHFSR:
		return s.SCB.ReadHFSR(), nil
	case off == OffDFSR:
		return s.SCB.ReadDFSR(), nil
	case off == OffMMFAR:
		return s.SCB.ReadMMFAR(), nil
	case off == OffBFAR:
		return s.SCB.ReadBFAR(), nil
	case off == OffAFSR:
		return s.SCB.ReadAFSR(), nil
	case off == OffCPACR:
		return s.SCB.ReadCPACR(), nil
	case off == OffMPUType:
		return s.MPU.ReadType(), nil
	case off == OffMPUCtrl:
		return s.MPU.ReadCtrl(), nil
	case off == OffMPURNR:
		return s.MPU.ReadRNR(), nil
	case off == OffMPURBAR0, off == OffMPURBAR1, off == OffMPURBAR2, off == OffMPURBAR3:
		return s.MPU.ReadRBAR(mpuAliasIndex(off, true)), nil
	case off == OffMPURASR0, off == OffMPURASR1, off == OffMPURASR2, off == OffMPURASR3:
		return s.MPU.ReadRASR(mpuAliasIndex(off, false)), nil
	case off >= regionIDStart && off <= regionIDEnd:
		return identityRegister(off), nil
	case off >= regionDebugStart && off <= regionDebugEnd:
		return 0, nil
	default:
		return 0, &RegError{Peripheral: "scs", Addr: Base + off, Reason: "unimplemented register"}
	}
}

func (s *SCS) writeWord(off uint64, v uint32, q *peripheral.EventQueue) error {
	switch {
	case off == OffACTLR:
		s.SCB.WriteACTLR(v)
	case off == OffSysTickCSR:
		changed, now := s.SysTick.WriteCSR(v)
		if changed {
			q.Push(excSetEvent(peripheral.ExceptionSysTick, peripheral.SetEnabled, now))
		}
	case off == OffSysTickRVR:
		s.SysTick.WriteRVR(v)
	case off == OffSysTickCVR:
		s.SysTick.WriteCVR(v)
	case off == OffSysTickCALIB:
		return &RegError{Peripheral: "scs", Addr: Base + off, Reason: "CALIB is read-only", ReadOnly: true}
	case off >= OffISER0 && off <= OffISER15:
		bank := int((off - OffISER0) / 4)
		for _, n := range s.NVIC.WriteISER(bank, v) {
			q.Push(extEnabledEvent(n, true))
		}
	case off >= OffICER0 && off <= OffICER15:
		bank := int((off - OffICER0) / 4)
		for _, n := range s.NVIC.WriteICER(bank, v) {
			q.Push(extEnabledEvent(n, false))
		}
	case off >= OffISPR0 && off <= OffISPR15:
		bank := int((off - OffISPR0) / 4)
		for _, n := range s.NVIC.WriteISPR(bank, v) {
			q.Push(extPendingEvent(n, true))
		}
	case off >= OffICPR0 && off <= OffICPR15:
		bank := int((off - OffICPR0) / 4)
		for _, n := range s.NVIC.WriteICPR(bank, v) {
			q.Push(extPendingEvent(n, false))
		}
	case off >= OffIABR0 && off <= OffIABR15:
		return &RegError{Peripheral: "scs", Addr: Base + off, Reason: "IABRn is read-only", ReadOnly: true}
	case off == OffICSR:
		for _, ev := range s.SCB.WriteICSR(v) {
			q.Push(ev)
		}
	case off == OffVTOR:
		q.Push(s.SCB.WriteVTOR(v))
	case off == OffAIRCR:
		for _, ev := range s.SCB.WriteAIRCR(v) {
			q.Push(ev)
		}
	case off == OffSCR:
		for _, ev := range s.SCB.WriteSCR(v) {
			q.Push(ev)
		}
	case off == OffCCR:
		for _, ev := range s.SCB.WriteCCR(v) {
			q.Push(ev)
		}
	case off >= OffSHPR1 && off <= OffSHPR3+3:
		writeSHPRWord(s.SCB, off, v, q)
	case off == OffSHCSR:
		for _, ev := range s.SCB.WriteSHCSR(v) {
			q.Push(ev)
		}
	case off == OffCFSR:
		for _, ev := range s.SCB.WriteCFSR(v) {
			q.Push(ev)
		}
	case off == OffHFSR:
		for _, ev := range s.SCB.WriteHFSR(v) {
			q.Push(ev)
		}
	case off == OffDFSR:
		s.SCB.WriteDFSR(v)
	case off == OffMMFAR:
		s.SCB.WriteMMFAR(v)
	case off == OffBFAR:
		s.SCB.WriteBFAR(v)
	case off == OffAFSR:
		s.SCB.WriteAFSR(v)
	case off == OffCPACR:
		s.SCB.WriteCPACR(v)
	case off == OffMPUType:
		return &RegError{Peripheral: "scs", Addr: Base + off, Reason: "TYPE is read-only", ReadOnly: true}
	case off == OffMPUCtrl:
		s.MPU.WriteCtrl(v)
	case off == OffMPURNR:
		s.MPU.WriteRNR(v)
	case off == OffMPURBAR0, off == OffMPURBAR1, off == OffMPURBAR2, off == OffMPURBAR3:
		s.MPU.WriteRBAR(mpuAliasIndex(off, true), v)
	case off == OffMPURASR0, off == OffMPURASR1, off == OffMPURASR2, off == OffMPURASR3:
		s.MPU.WriteRASR(mpuAliasIndex(off, false), v)
	case off >= regionIDStart && off <= regionIDEnd:
		return &RegError{Peripheral: "scs", Addr: Base + off, Reason: "identification registers are read-only", ReadOnly: true}
	case off >= regionDebugStart && off <= regionDebugEnd:
		// debug register writes are accepted and ignored; no debugger is modelled
	default:
		return &RegError{Peripheral: "scs", Addr: Base + off, Reason: "unimplemented register"}
	}
	return nil
}

func shprWord(b *SCB, off uint64) uint32 {
	base := off &^ 3
	var buf [4]byte
	for i := 0; i < 4; i++ {
		id := shprHandlerID(base + uint64(i))
		if id >= 4 {
			buf[i] = b.ReadSHPR(id)
		}
	}
	return binary.LittleEndian.Uint32(buf[:])
}

func writeSHPRWord(b *SCB, off uint64, v uint32, q *peripheral.EventQueue) {
	base := off &^ 3
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	for i := 0; i < 4; i++ {
		id := shprHandlerID(base + uint64(i))
		if id < 4 {
			continue
		}
		if b.WriteSHPR(id, buf[i]) {
			q.Push(peripheral.Event{
				Kind:      peripheral.EventSetSystemHandlerPriority,
				Exception: peripheral.Exception{Kind: handlerExceptionKind(id)},
				Priority:  buf[i],
			})
		}
	}
}

// shprHandlerID maps a SHPR1..3 byte offset to its system handler id
// (4-15); SHPR1 byte 0 is handler 4, ..., SHPR3 byte 3 is handler 15.
func shprHandlerID(off uint64) int {
	return 4 + int(off-OffSHPR1)
}

// handlerExceptionKind maps a SHPR handler id (4-15) to the corresponding
// built-in ExceptionKind, for event reporting.
func handlerExceptionKind(id int) peripheral.ExceptionKind {
	switch id {
	case HandlerMemManage:
		return peripheral.ExceptionMemManage
	case HandlerBusFault:
		return peripheral.ExceptionBusFault
	case HandlerUsageFault:
		return peripheral.ExceptionUsageFault
	case HandlerSVCall:
		return peripheral.ExceptionSVCall
	case HandlerDebugMonitor:
		return peripheral.ExceptionDebugMonitor
	case HandlerPendSV:
		return peripheral.ExceptionPendSV
	case HandlerSysTick:
		return peripheral.ExceptionSysTick
	default:
		return peripheral.ExceptionReset
	}
}

func mpuAliasIndex(off uint64, rbar bool) int {
	if rbar {
		return int((off - OffMPURBAR0) / 8)
	}
	return int((off - OffMPURASR0) / 8)
}

func extEnabledEvent(n int, enabled bool) peripheral.Event {
	return peripheral.Event{
		Kind:      peripheral.EventExceptionSet,
		SetKind:   peripheral.SetEnabled,
		Exception: peripheral.Exception{Kind: peripheral.ExternalInterrupt, N: n},
		Bool:      enabled,
	}
}

func extPendingEvent(n int, pending bool) peripheral.Event {
	return peripheral.Event{
		Kind:      peripheral.EventExceptionSet,
		SetKind:   peripheral.SetPending,
		Exception: peripheral.Exception{Kind: peripheral.ExternalInterrupt, N: n},
		Bool:      pending,
	}
}

// identityRegister returns zero for every register of the identification
// block (0xFD0-0xFFC); no CoreSight PID/CID values are modelled. They
// carry no behavioural significance for taint tracking.
func identityRegister(off uint64) uint32 {
	idx := (off - regionIDStart) / 4
	if idx < 4 {
		return 0 // PID4-7 reserved in this minimal model
	}
	return 0
}
