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

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/rchtsang/ttff-sub001/emuctx"
	"github.com/rchtsang/ttff-sub001/eval"
	"github.com/rchtsang/ttff-sub001/logger"
	"github.com/rchtsang/ttff-sub001/pdb"
)

// repl is the interactive debugger console (§spec "CLI / interactive
// front-end"): step, continue, regs, break <addr>, quit.
//
// Grounded on rcornwell/S370's command/reader.ConsoleReader, which wraps
// a liner.Liner with a completer and dispatches each line to a parser;
// dispatch here is a small verb table in the same style as
// command/parser's cmdList, simplified to this debugger's five verbs.
type repl struct {
	ev  *eval.Evaluator
	ctx *emuctx.Context
	db  *pdb.ProgramDB

	breakpoints map[uint32]struct{}
}

func newREPL(ev *eval.Evaluator, ctx *emuctx.Context, db *pdb.ProgramDB) *repl {
	return &repl{ev: ev, ctx: ctx, db: db, breakpoints: make(map[uint32]struct{})}
}

// Run drives the console until "quit" or the line reader reports the
// input stream is exhausted or aborted.
func (r *repl) Run() {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("ttffsub> ")
		if err != nil {
			return
		}
		line.AppendHistory(input)

		if r.dispatch(strings.TrimSpace(input)) {
			return
		}
	}
}

// dispatch executes one command line, returning true if the console
// should exit.
func (r *repl) dispatch(cmdLine string) bool {
	fields := strings.Fields(cmdLine)
	if len(fields) == 0 {
		return false
	}
	verb, args := fields[0], fields[1:]

	switch verb {
	case "step":
		r.step()
	case "continue":
		r.cont()
	case "regs":
		r.regs()
	case "break":
		r.setBreak(args)
	case "quit":
		return true
	default:
		fmt.Printf("unrecognized command: %s\n", verb)
	}
	return false
}

func (r *repl) step() {
	if err := r.ev.Step(r.db); err != nil {
		fmt.Printf("stopped: %v\n", err)
		return
	}
	fmt.Printf("pc=%#08x\n", r.ctx.ReadPc())
}

// cont runs until a breakpoint address is reached, the step returns an
// error, or no breakpoints are set (in which case it runs once, like
// step, to avoid spinning forever with nothing to stop at).
func (r *repl) cont() {
	if len(r.breakpoints) == 0 {
		fmt.Println("continue: no breakpoints set, stepping once")
		r.step()
		return
	}
	for {
		if err := r.ev.Step(r.db); err != nil {
			fmt.Printf("stopped: %v\n", err)
			return
		}
		pc := r.ctx.ReadPc()
		if _, hit := r.breakpoints[pc]; hit {
			fmt.Printf("breakpoint hit at pc=%#08x\n", pc)
			return
		}
	}
}

func (r *repl) regs() {
	for n := 0; n < 16; n++ {
		v, tag := r.ctx.ReadRegister(n)
		fmt.Printf("r%-2d = %#08x (tag=%s)\n", n, v, tag)
	}
}

func (r *repl) setBreak(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: break <addr>")
		return
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		fmt.Printf("break: %v\n", err)
		return
	}
	r.breakpoints[uint32(addr)] = struct{}{}
	logger.Logf("repl", "breakpoint set at %#08x", addr)
}
