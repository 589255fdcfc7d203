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

// Package errors defines the closed error taxonomy surfaced at the
// emulator/harness boundary (see spec §6, §7) plus a small curated-error
// helper for user-facing fatal messages, in the style of the teacher's own
// errors/curated packages: each layer below (lift, state, scs, eval, policy)
// defines its own error type and wraps it with fmt.Errorf("%w", ...) on the
// way up, so a caller at the boundary can recover the originating Kind with
// errors.As regardless of how many layers wrapped it.
package errors

import (
	"fmt"
)

// Kind is the closed set of error categories visible at the harness
// boundary (spec §6).
type Kind int

const (
	KindUnknown Kind = iota
	KindPolicyViolation
	KindUnmapped
	KindMapConflict
	KindOOBRead
	KindOOBWrite
	KindAddressNotLifted
	KindBackendDecode
	KindInvalidPeripheralReg
	KindWriteAccessViolation
	KindReadAccessViolation
	KindDivideByZero
	KindUnsupportedOpcode
	KindInvalidUserOp
)

func (k Kind) String() string {
	switch k {
	case KindPolicyViolation:
		return "PolicyViolation"
	case KindUnmapped:
		return "Unmapped"
	case KindMapConflict:
		return "MapConflict"
	case KindOOBRead:
		return "OOB(read)"
	case KindOOBWrite:
		return "OOB(write)"
	case KindAddressNotLifted:
		return "AddressNotLifted"
	case KindBackendDecode:
		return "BackendDecode"
	case KindInvalidPeripheralReg:
		return "InvalidPeripheralReg"
	case KindWriteAccessViolation:
		return "WriteAccessViolation"
	case KindReadAccessViolation:
		return "ReadAccessViolation"
	case KindDivideByZero:
		return "DivideByZero"
	case KindUnsupportedOpcode:
		return "UnsupportedOpcode"
	case KindInvalidUserOp:
		return "InvalidUserOp"
	default:
		return "Unknown"
	}
}

// ExitKind is the fuzzing-harness level classification of an Error's Kind
// (spec §6: "Each maps to a distinct exit-kind in the harness").
type ExitKind int

const (
	ExitOk ExitKind = iota
	ExitCrash
	ExitTimeout
)

// ExitKind classifies the receiver for the fuzzing harness.
func (k Kind) ExitKind() ExitKind {
	switch k {
	case KindUnknown:
		return ExitOk
	default:
		return ExitCrash
	}
}

// Error is the concrete boundary error type. Every layer-specific error
// (see lift.LiftError, state.OOBError, scs.RegError, policy.Violation, ...)
// is convertible to one of these via its own Kind() method and gets wrapped
// here exactly once, at the point it crosses into the evaluator/context
// request-response boundary.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "Fetch", "Read", "Store"
	Addr uint64 // address involved, if any; zero if not applicable
	Err  error  // the underlying, more specific error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s at %#x", e.Op, e.Kind, e.Addr)
	}
	return fmt.Sprintf("%s: %s at %#x: %v", e.Op, e.Kind, e.Addr, e.Err)
}

// Unwrap exposes the wrapped, layer-specific error to errors.As/errors.Is.
func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a boundary Error.
func New(kind Kind, op string, addr uint64, err error) *Error {
	return &Error{Kind: kind, Op: op, Addr: addr, Err: err}
}

// Values is the type used to specify arguments to a curated, formatted
// error message (grounded on the teacher's errors.Values / curated.Errorf).
type Values []any

// curated is a fatal, user-facing error with a fixed message template. It is
// used sparingly, by cmd/ttffsub, for conditions that should be reported to
// a human rather than inspected programmatically.
type curated struct {
	message string
	values  Values
}

// Curatedf creates a new curated, user-facing error.
func Curatedf(message string, values ...any) error {
	return curated{message: message, values: values}
}

func (c curated) Error() string {
	return fmt.Sprintf(c.message, c.values...)
}
