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

package logger_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/rchtsang/ttff-sub001/logger"
)

func TestLoggerBasic(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	if w.String() != "" {
		t.Fatalf("expected empty log, got %q", w.String())
	}

	log.Log(logger.Allow, "test", "this is a test")
	log.Write(w)
	if w.String() != "test: this is a test\n" {
		t.Fatalf("unexpected log contents: %q", w.String())
	}

	w.Reset()
	log.Log(logger.Allow, "test2", "this is another test")
	log.Write(w)
	want := "test: this is a test\ntest2: this is another test\n"
	if w.String() != want {
		t.Fatalf("got %q, want %q", w.String(), want)
	}

	w.Reset()
	log.Tail(w, 1)
	if w.String() != "test2: this is another test\n" {
		t.Fatalf("tail(1) got %q", w.String())
	}

	w.Reset()
	log.Tail(w, 0)
	if w.String() != "" {
		t.Fatalf("tail(0) should be empty, got %q", w.String())
	}
}

type prohibit struct{ allowed bool }

func (p prohibit) AllowLogging() bool { return p.allowed }

func TestLoggerPermission(t *testing.T) {
	log := logger.NewLogger(10)
	w := &strings.Builder{}

	log.Log(prohibit{false}, "tag", "detail")
	log.Write(w)
	if w.String() != "" {
		t.Fatalf("expected suppressed entry, got %q", w.String())
	}

	log.Log(prohibit{true}, "tag", "detail")
	log.Write(w)
	if w.String() != "tag: detail\n" {
		t.Fatalf("expected recorded entry, got %q", w.String())
	}
}

func TestLoggerErrorAndBound(t *testing.T) {
	log := logger.NewLogger(2)
	w := &strings.Builder{}

	log.Log(logger.Allow, "tag", errors.New("boom"))
	log.Log(logger.Allow, "tag", "second")
	log.Log(logger.Allow, "tag", "third")

	log.Write(w)
	want := "tag: second\ntag: third\n"
	if w.String() != want {
		t.Fatalf("ring buffer overflow mishandled: got %q want %q", w.String(), want)
	}
}

func TestCentralLogger(t *testing.T) {
	logger.Clear()
	w := &strings.Builder{}

	logger.Log("central", "hello")
	logger.Write(w)
	if w.String() != "central: hello\n" {
		t.Fatalf("got %q", w.String())
	}
}
