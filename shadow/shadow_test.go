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

package shadow_test

import (
	"testing"

	"github.com/rchtsang/ttff-sub001/shadow"
	"github.com/rchtsang/ttff-sub001/taint"
)

func TestFixedTagStateCleanByDefault(t *testing.T) {
	sh := shadow.NewFixedTagState("ram", 0x100)
	if tg := sh.ReadTags(0x10, 4); tg != taint.CLEAN {
		t.Fatalf("expected CLEAN, got %v", tg)
	}
}

func TestFixedTagStateWriteReadRoundTrip(t *testing.T) {
	sh := shadow.NewFixedTagState("ram", 0x100)
	sh.WriteTags(0x10, 4, taint.TaintedValue)
	if tg := sh.ReadTags(0x10, 4); !tg.Tainted() {
		t.Fatalf("expected tainted range, got %v", tg)
	}
	if tg := sh.ReadTags(0x20, 4); tg.Tainted() {
		t.Fatalf("unrelated range should remain clean, got %v", tg)
	}
}

func TestFixedTagStateOrReduceOnPartialOverlap(t *testing.T) {
	sh := shadow.NewFixedTagState("ram", 0x100)
	sh.WriteTags(0x10, 1, taint.TaintedValue)
	sh.WriteTags(0x13, 1, taint.TaintedLocation)
	tg := sh.ReadTags(0x10, 4)
	if !tg.Tainted() || !tg.TaintedLoc() {
		t.Fatalf("expected or-reduced tag carrying both flags, got %v", tg)
	}
}

func TestFixedTagStateOOBPanics(t *testing.T) {
	sh := shadow.NewFixedTagState("ram", 0x10)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-bounds shadow access")
		}
	}()
	sh.ReadTags(0x0c, 8)
}

func TestFixedTagStateWriteTagBytes(t *testing.T) {
	sh := shadow.NewFixedTagState("ram", 0x10)
	sh.WriteTagBytes(0, []taint.Tag{taint.TaintedValue, taint.CLEAN, taint.Accessed})
	if !sh.ReadTags(0, 1).Tainted() {
		t.Fatalf("byte 0 should be tainted")
	}
	if sh.ReadTags(1, 1).Tainted() {
		t.Fatalf("byte 1 should be clean")
	}
	if !sh.ReadTags(2, 1).IsAccessed() {
		t.Fatalf("byte 2 should be accessed")
	}
}
