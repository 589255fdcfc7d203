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

package errors_test

import (
	"fmt"
	"testing"

	stderrors "errors"

	ttfferrors "github.com/rchtsang/ttff-sub001/errors"
)

func TestErrorUnwrap(t *testing.T) {
	inner := stderrors.New("unmapped at 0x1000")
	e := ttfferrors.New(ttfferrors.KindUnmapped, "Fetch", 0x1000, inner)

	if !stderrors.Is(e, inner) {
		t.Fatalf("expected errors.Is to find the wrapped inner error")
	}

	var got *ttfferrors.Error
	wrapped := fmt.Errorf("context: %w", e)
	if !stderrors.As(wrapped, &got) {
		t.Fatalf("expected errors.As to recover *Error through an extra wrap")
	}
	if got.Kind != ttfferrors.KindUnmapped {
		t.Fatalf("got kind %v, want Unmapped", got.Kind)
	}
}

func TestExitKind(t *testing.T) {
	if ttfferrors.KindUnknown.ExitKind() != ttfferrors.ExitOk {
		t.Fatalf("unknown kind should map to ExitOk")
	}
	if ttfferrors.KindPolicyViolation.ExitKind() != ttfferrors.ExitCrash {
		t.Fatalf("policy violation should map to ExitCrash")
	}
}

func TestCuratedf(t *testing.T) {
	err := ttfferrors.Curatedf("platform file %q: %v", "plat.yaml", stderrors.New("not found"))
	want := `platform file "plat.yaml": not found`
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
}
