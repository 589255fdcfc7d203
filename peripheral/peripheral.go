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

// Package peripheral defines the PeripheralState contract every
// memory-mapped device (SCS included) implements, and the closed Event
// enumeration those devices use to report architectural side effects back
// to the owning context.
//
// Grounded on arm/peripherals/timer.go's Read(addr) (val, ok, comment) /
// Write(addr, val) (ok, comment) shape, generalised to byte-slice bulk
// access plus an explicit event-queue output parameter per the no-callback,
// no-re-entrancy design note: a peripheral never holds a reference back to
// its owning context, it only appends to the EventQueue it is handed.
package peripheral

import "fmt"

// ExceptionKind names the kind of exception/interrupt an event refers to.
type ExceptionKind int

const (
	ExceptionReset ExceptionKind = iota
	ExceptionNMI
	ExceptionHardFault
	ExceptionMemManage
	ExceptionBusFault
	ExceptionUsageFault
	ExceptionSVCall
	ExceptionDebugMonitor
	ExceptionPendSV
	ExceptionSysTick
	// ExternalInterrupt carries its resolved interrupt number (16+) in N.
	ExternalInterrupt
)

// Exception identifies one of the 16 built-in exceptions or an external
// interrupt line by its resolved exception number (§3 Exception).
type Exception struct {
	Kind ExceptionKind
	N    int // interrupt number for ExternalInterrupt; unused otherwise
}

func (e Exception) String() string {
	switch e.Kind {
	case ExternalInterrupt:
		return fmt.Sprintf("ExternalInterrupt(%d)", e.N)
	case ExceptionReset:
		return "Reset"
	case ExceptionNMI:
		return "NMI"
	case ExceptionHardFault:
		return "HardFault"
	case ExceptionMemManage:
		return "MemManage"
	case ExceptionBusFault:
		return "BusFault"
	case ExceptionUsageFault:
		return "UsageFault"
	case ExceptionSVCall:
		return "SVCall"
	case ExceptionDebugMonitor:
		return "DebugMonitor"
	case ExceptionPendSV:
		return "PendSV"
	case ExceptionSysTick:
		return "SysTick"
	default:
		return "?"
	}
}

// ExcState is one of the four states an Exception object may occupy (§3).
type ExcState int

const (
	Inactive ExcState = iota
	Active
	Pending
	ActivePending
)

// SetKind distinguishes which of an exception's three settable flags an
// ExceptionSet event is reporting (§3 Event: "ExceptionSet(Active|Pending|Enabled, ...)").
type SetKind int

const (
	SetActive SetKind = iota
	SetPending
	SetEnabled
)

// FaultKind names one of the sticky fault-status groups cleared by a
// FaultStatusClr event (CFSR's three sub-registers plus HFSR).
type FaultKind int

const (
	FaultMemManage FaultKind = iota
	FaultBus
	FaultUsage
	FaultHard
)

// EventKind is the tag of the closed Event enumeration (§3 Event).
type EventKind int

const (
	EventExceptionSet EventKind = iota
	EventVectorTableOffsetWrite
	EventLocalSysResetRequest
	EventExternSysResetRequest
	EventExceptionClrAllActive
	EventSetSleepOnExit
	EventSetDeepSleep
	EventSetSevOnPend
	EventFaultStatusClr
	EventSetPriorityGrouping
	EventSetSystemHandlerPriority
	EventCcrPolicyChanged
)

// Event is the closed, bounded set of architectural side effects a
// peripheral write may raise (§3, §4.E.2, §4.E.3). Kind selects which
// payload fields are meaningful (noted per field below); this mirrors the
// teacher's (val, ok, comment) triple generalised into one tagged struct
// instead of per-event Go types, since events are queued and drained
// generically by the context without needing type switches on many
// distinct named types.
type Event struct {
	Kind EventKind

	Exception Exception // EventExceptionSet, EventFaultStatusClr(as N/A), EventSetSystemHandlerPriority
	SetKind   SetKind   // EventExceptionSet
	Bool      bool      // EventExceptionSet value; EventSetSleepOnExit/DeepSleep/SevOnPend
	U32       uint32    // EventVectorTableOffsetWrite tbloff; EventSetPriorityGrouping prigroup
	Fault     FaultKind // EventFaultStatusClr
	Priority  uint8     // EventSetSystemHandlerPriority
	CcrBit    string    // EventCcrPolicyChanged: name of the changed CCR bit
}

func (e Event) String() string {
	switch e.Kind {
	case EventExceptionSet:
		return fmt.Sprintf("ExceptionSet(%v, %v, %v)", e.SetKind, e.Exception, e.Bool)
	case EventVectorTableOffsetWrite:
		return fmt.Sprintf("VectorTableOffsetWrite(%#x)", e.U32)
	case EventLocalSysResetRequest:
		return "LocalSysResetRequest"
	case EventExternSysResetRequest:
		return "ExternSysResetRequest"
	case EventExceptionClrAllActive:
		return "ExceptionClrAllActive"
	case EventSetSleepOnExit:
		return fmt.Sprintf("SetSleepOnExit(%v)", e.Bool)
	case EventSetDeepSleep:
		return fmt.Sprintf("SetDeepSleep(%v)", e.Bool)
	case EventSetSevOnPend:
		return fmt.Sprintf("SetSevOnPend(%v)", e.Bool)
	case EventFaultStatusClr:
		return fmt.Sprintf("FaultStatusClr(%v)", e.Fault)
	case EventSetPriorityGrouping:
		return fmt.Sprintf("SetPriorityGrouping(%d)", e.U32)
	case EventSetSystemHandlerPriority:
		return fmt.Sprintf("SetSystemHandlerPriority{%v, %d}", e.Exception, e.Priority)
	case EventCcrPolicyChanged:
		return fmt.Sprintf("CcrPolicyChanged(%s)", e.CcrBit)
	default:
		return "?"
	}
}

func (k SetKind) String() string {
	switch k {
	case SetActive:
		return "Active"
	case SetPending:
		return "Pending"
	case SetEnabled:
		return "Enabled"
	default:
		return "?"
	}
}

func (k FaultKind) String() string {
	switch k {
	case FaultMemManage:
		return "MemManage"
	case FaultBus:
		return "Bus"
	case FaultUsage:
		return "Usage"
	case FaultHard:
		return "Hard"
	default:
		return "?"
	}
}

// EventQueue accumulates Events raised by one bus transaction. It is
// handed by value-carrying pointer to a peripheral's read/write methods so
// the peripheral can append without re-entering the context (§4.E.3, §9
// "Event-driven side effects on writes").
type EventQueue struct {
	events []Event
}

// Push appends ev to the queue.
func (q *EventQueue) Push(ev Event) {
	q.events = append(q.events, ev)
}

// Drain returns and clears all queued events, in the order they were
// pushed (§5 ordering guarantees).
func (q *EventQueue) Drain() []Event {
	out := q.events
	q.events = nil
	return out
}

// Len reports the number of events currently queued.
func (q *EventQueue) Len() int { return len(q.events) }

// PeripheralState is the contract every memory-mapped device implements
// (§4.E.1). Implementations that cannot support bulk byte-view access
// (because their value depends on side effects, e.g. SysTick's CVR) simply
// never get ViewBytes called — the context treats Mmio/Scs entries as
// access-only (§4.C).
type PeripheralState interface {
	// Base and Size report this peripheral's [Base, Base+Size) window.
	Base() uint64
	Size() uint64

	// ReadBytes reads len(dst) bytes starting at addr (absolute) into dst,
	// pushing zero or more Events onto q.
	ReadBytes(addr uint64, dst []byte, q *EventQueue) error

	// WriteBytes writes src into the peripheral starting at addr,
	// pushing zero or more Events onto q.
	WriteBytes(addr uint64, src []byte, q *EventQueue) error
}

// RegError reports an access to a peripheral register that is invalid for
// the kind of access attempted (read-only register written, or vice
// versa), or a structurally invalid register offset. ReadOnly marks the
// "written a read-only register" case specifically, so a caller can
// route it to a WriteAccessViolation rather than a generic invalid-access
// error.
type RegError struct {
	Peripheral string
	Addr       uint64
	Reason     string
	ReadOnly   bool
}

func (e *RegError) Error() string {
	return fmt.Sprintf("%s: invalid register access at %#x: %s", e.Peripheral, e.Addr, e.Reason)
}
