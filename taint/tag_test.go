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

package taint_test

import (
	"testing"

	"github.com/rchtsang/ttff-sub001/taint"
)

func TestMonoidIdentity(t *testing.T) {
	for _, tag := range []taint.Tag{taint.CLEAN, taint.TaintedValue, taint.TaintedLocation, taint.Accessed} {
		if tag.Or(taint.CLEAN) != tag {
			t.Fatalf("CLEAN is not an identity for %v", tag)
		}
	}
}

func TestOrCommutative(t *testing.T) {
	a, b := taint.TaintedValue, taint.TaintedLocation
	if a.Or(b) != b.Or(a) {
		t.Fatalf("Or is not commutative")
	}
}

func TestReduceAndBroadcast(t *testing.T) {
	tags := []taint.Tag{taint.CLEAN, taint.CLEAN, taint.TaintedValue, taint.CLEAN}
	if r := taint.Reduce(tags); !r.Tainted() {
		t.Fatalf("expected reduce to surface tainted byte")
	}

	b := taint.Broadcast(taint.TaintedValue, 4)
	if len(b) != 4 {
		t.Fatalf("broadcast length: got %d", len(b))
	}
	for _, tg := range b {
		if !tg.Tainted() {
			t.Fatalf("broadcast entry not tainted")
		}
	}
}

func TestCleanIsUntainted(t *testing.T) {
	if taint.CLEAN.Tainted() || taint.CLEAN.TaintedLoc() || taint.CLEAN.IsAccessed() {
		t.Fatalf("CLEAN must report no flags set")
	}
}
