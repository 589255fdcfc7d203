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

// Command ttffsub loads a platform description and a firmware ELF image
// into the emulation context, then either steps it interactively or runs
// it once against a fuzzer-supplied input buffer read from stdin.
//
// Grounded on rcornwell/S370's main.go: getopt flags for the run
// configuration, a config file parsed before the CPU exists, then either
// an interactive console reader or a straight run loop.
package main

import (
	"context"
	"io"
	"os"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rchtsang/ttff-sub001/elf"
	"github.com/rchtsang/ttff-sub001/emuctx"
	"github.com/rchtsang/ttff-sub001/eval"
	"github.com/rchtsang/ttff-sub001/fuzz"
	"github.com/rchtsang/ttff-sub001/lift"
	"github.com/rchtsang/ttff-sub001/logger"
	"github.com/rchtsang/ttff-sub001/mmio"
	"github.com/rchtsang/ttff-sub001/pdb"
	"github.com/rchtsang/ttff-sub001/platform"
	"github.com/rchtsang/ttff-sub001/policy"
)

func main() {
	optPlatform := getopt.StringLong("platform", 'p', "", "Platform description YAML")
	optFirmware := getopt.StringLong("firmware", 'f', "", "Firmware ELF image")
	optLimit := getopt.IntLong("limit", 'l', 0, "Step limit (0 = unbounded)")
	optInteractive := getopt.BoolLong("interactive", 'i', "Drop into the interactive debugger after loading")
	optFuzz := getopt.BoolLong("fuzz", 0, "Read one input buffer from stdin and run a single fuzzing iteration")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}
	if *optPlatform == "" || *optFirmware == "" {
		logger.Log("cmd", "a platform description (-p) and firmware image (-f) are required")
		getopt.Usage()
		os.Exit(1)
	}

	ctx, rxQueue, err := buildContext(*optPlatform)
	if err != nil {
		logger.Log("cmd", err)
		os.Exit(1)
	}

	firmware, err := os.ReadFile(*optFirmware)
	if err != nil {
		logger.Log("cmd", err)
		os.Exit(1)
	}
	image, err := elf.Load(ctx, firmware)
	if err != nil {
		logger.Log("cmd", err)
		os.Exit(1)
	}
	ctx.WritePc(image.ResetVector)
	ctx.WriteSp(image.InitialSP)

	ev := eval.New(policy.TaintedJump{}, nil)
	db := pdb.New(ctx)
	cov := fuzz.NewCoverageMap(fuzz.DefaultCoverageSize)
	db.Register(fuzz.EdgePlugin{Map: cov})

	runner := fuzz.NewRunner(ev, db, db)
	runner.MaxSteps = *optLimit
	runner.Queue = rxQueue

	switch {
	case *optFuzz:
		runFuzzOnce(runner)
	case *optInteractive:
		newREPL(ev, ctx, db).Run()
	default:
		runUntilDone(runner)
	}
}

// buildContext parses the platform description at path and applies its
// memory and MMIO sections to a fresh emuctx.Context, returning the input
// queue backing any channel-fed UART the description names.
func buildContext(path string) (*emuctx.Context, *fuzz.InputQueue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	desc, err := platform.Parse(data)
	if err != nil {
		return nil, nil, err
	}

	ctx := emuctx.New(lift.NewThumbDecoder(), 32)
	if err := platform.Apply(ctx, desc); err != nil {
		return nil, nil, err
	}

	queue := fuzz.NewInputQueue()
	if err := mmio.Apply(ctx, desc, queue.Receiver()); err != nil {
		return nil, nil, err
	}
	return ctx, queue, nil
}

// runFuzzOnce reads the entire stdin stream as one fuzzer-supplied input
// buffer and runs a single iteration (spec §6 Fuzzing interface: "one
// byte-buffer input per iteration, piped into a channel-backed
// peripheral").
func runFuzzOnce(runner *fuzz.Runner) {
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		logger.Log("fuzz", err)
		os.Exit(1)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kind, err := runner.RunTarget(runCtx, input)
	logger.Logf("fuzz", "exit=%d err=%v", kind, err)
	os.Exit(int(kind))
}

// runUntilDone steps the target to completion with no interactive
// front-end, for scripted/batch use.
func runUntilDone(runner *fuzz.Runner) {
	kind, err := runner.RunTarget(context.Background(), nil)
	logger.Logf("run", "exit=%d err=%v", kind, err)
	if kind != 0 {
		os.Exit(1)
	}
}
