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

package fuzz

import (
	"context"
	goerrors "errors"
	"fmt"

	"github.com/rchtsang/ttff-sub001/errors"
	"github.com/rchtsang/ttff-sub001/eval"
	"github.com/rchtsang/ttff-sub001/pdb"
)

// Runner drives one target under fuzzing: an Evaluator stepping against a
// Context (typically a *pdb.ProgramDB wrapping an *emuctx.Context), with a
// CoverageMap fed from the evaluator's resolved edges after each step
// (SPEC_FULL.md "Fuzzing front-end").
type Runner struct {
	Eval  *eval.Evaluator
	Ctx   eval.Context
	PDB   *pdb.ProgramDB // optional; edges are recorded only if set
	Queue *InputQueue    // optional; filled from RunTarget's input before stepping

	// MaxSteps bounds an iteration independently of ctx's deadline, as a
	// backstop against a target that never reaches a memory-mapped
	// deadlock or violation (e.g. a tight clean loop with no exit).
	MaxSteps int
}

// NewRunner returns a Runner wired for e stepping against c.
func NewRunner(e *eval.Evaluator, c eval.Context, db *pdb.ProgramDB) *Runner {
	return &Runner{Eval: e, Ctx: c, PDB: db}
}

// RunTarget executes one fuzzing iteration against input, returning the
// exit classification §6 names (Ok, Crash, Timeout) and the underlying
// error, if any. If r.Queue is set, input is loaded into it before
// stepping begins; the caller is otherwise responsible for resetting
// emulator/context state between iterations.
func (r *Runner) RunTarget(ctx context.Context, input []byte) (errors.ExitKind, error) {
	if r.Queue != nil {
		r.Queue.Fill(input)
	}

	steps := 0
	for {
		select {
		case <-ctx.Done():
			return errors.ExitTimeout, ctx.Err()
		default:
		}
		if r.MaxSteps > 0 && steps >= r.MaxSteps {
			return errors.ExitTimeout, fmt.Errorf("fuzz: exceeded %d steps", r.MaxSteps)
		}

		if err := r.Eval.Step(r.Ctx); err != nil {
			var berr *errors.Error
			if goerrors.As(err, &berr) {
				return berr.Kind.ExitKind(), err
			}
			return errors.ExitCrash, err
		}

		if r.PDB != nil {
			parent, child, kind := r.Eval.LastEdge()
			if kind != eval.FlowFall {
				if err := r.PDB.AddEdge(parent, child, kind); err != nil {
					return errors.ExitCrash, err
				}
			}
		}
		steps++
	}
}
