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

// Package taint implements Tag (spec §3): a one-byte bitflag record that
// forms a commutative monoid under bitwise-or with identity CLEAN.
//
// Grounded on hardware/memory/cartridge/arm/status.go's Status type, a
// small bitflag struct with a compact String() rendering
// ("NzVc   itMask: 0000"); Tag follows the same "named bool flags plus a
// letter-coded String()" shape, generalised from CPU condition flags to
// taint metadata.
package taint

import "strings"

// Tag is a per-byte taint label. It is deliberately a single byte (spec §3
// "Tag size is one byte") so that shadow.FixedTagState can store one Tag per
// concrete byte with no padding.
type Tag uint8

// CLEAN is the identity element of the taint monoid.
const CLEAN Tag = 0

const (
	// TaintedValue marks that the value occupying this byte (or derived
	// from it) depends on untrusted input.
	TaintedValue Tag = 1 << iota // 1 << 0

	// TaintedLocation marks that the ADDRESS used to read or write this
	// byte depended on untrusted input, independent of the value found
	// there (spec §4.G: "location-taint independently").
	TaintedLocation // 1 << 1

	// Accessed marks that this byte has been read or written at least once
	// during the run; used by coverage/debugging tooling, not by any
	// policy check.
	Accessed // 1 << 2
)

// Or combines two tags; this is the monoid operation (spec §3 "Tags form a
// commutative monoid under bitwise-or").
func (t Tag) Or(other Tag) Tag {
	return t | other
}

// Reduce or-reduces a slice of per-byte tags into one Tag (spec §3: "a
// load/read of N bytes produces a single Tag by or-reducing the N byte
// tags").
func Reduce(tags []Tag) Tag {
	var acc Tag
	for _, t := range tags {
		acc = acc.Or(t)
	}
	return acc
}

// Broadcast returns a slice of n copies of t, used when writing one Tag
// across an N-byte range (spec §3: "writes broadcast one Tag byte to all N
// positions").
func Broadcast(t Tag, n int) []Tag {
	out := make([]Tag, n)
	for i := range out {
		out[i] = t
	}
	return out
}

// Tainted reports whether the value-taint bit is set.
func (t Tag) Tainted() bool {
	return t&TaintedValue != 0
}

// TaintedLoc reports whether the location-taint bit is set.
func (t Tag) TaintedLoc() bool {
	return t&TaintedLocation != 0
}

// IsAccessed reports whether the accessed bit is set.
func (t Tag) IsAccessed() bool {
	return t&Accessed != 0
}

func (t Tag) String() string {
	var b strings.Builder
	if t.Tainted() {
		b.WriteRune('V')
	} else {
		b.WriteRune('v')
	}
	if t.TaintedLoc() {
		b.WriteRune('L')
	} else {
		b.WriteRune('l')
	}
	if t.IsAccessed() {
		b.WriteRune('A')
	} else {
		b.WriteRune('a')
	}
	return b.String()
}
