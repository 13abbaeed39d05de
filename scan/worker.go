// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tlsmate-go/tlsmate/tlserr"
)

// Worker is one independent probe against the target. Priority orders
// execution: lower numbers run first, and a later worker may rely on an
// earlier one having already populated Context.Profile (e.g. the group
// enumeration worker needs per-version cipher-suite results before it can
// decide which versions are worth probing further). This engine favors a
// small explicit, priority-ordered list of constructors over a decorator-
// style registration side table: there is no dynamic loading of workers at
// import time to support, so the indirection buys nothing.
type Worker interface {
	Name() string
	Priority() int
	Run(*Context) error
}

// Run executes workers in ascending Priority order against ctx, folding
// each worker's findings into ctx.Profile. Failure semantics:
//
//   - a *tlserr.ScanError is recorded on the profile under the worker's
//     name and the scan continues -- an individual probe failing (a
//     timeout, an unsupported feature) is itself a finding, not a fatal
//     condition;
//   - a *tlserr.RecorderMismatch aborts the whole scan: replay has
//     diverged from the recorded trace, so every worker run after this
//     point would be operating on an unreliable transcript;
//   - any other error (unexpected I/O failure, a bug) also aborts the
//     scan immediately.
func Run(ctx *Context, workers []Worker) error {
	if ctx.Progress != nil {
		defer ctx.Progress.Finish()
	}

	ordered := append([]Worker(nil), workers...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority() < ordered[j].Priority() })

	for _, w := range ordered {
		if ctx.Log != nil {
			ctx.Log.Debug("running worker", zap.String("worker", w.Name()), zap.Int("priority", w.Priority()))
		}

		err := w.Run(ctx)
		if ctx.Metrics != nil {
			ctx.Metrics.WorkerRunsTotal.WithLabelValues(w.Name()).Inc()
		}
		if err == nil {
			if ctx.Progress != nil {
				ctx.Progress.Advance(1, w.Name())
			}
			continue
		}

		var scanErr *tlserr.ScanError
		if errors.As(err, &scanErr) {
			ctx.Profile.AddStatus(w.Name(), scanErr.Error())
			if ctx.Metrics != nil {
				ctx.Metrics.WorkerFailuresTotal.WithLabelValues(w.Name()).Inc()
			}
			if ctx.Log != nil {
				ctx.Log.Warn("worker reported a scan error, continuing", zap.String("worker", w.Name()), zap.Error(err))
			}
			if ctx.Progress != nil {
				ctx.Progress.Advance(1, w.Name())
			}
			continue
		}

		var mismatch *tlserr.RecorderMismatch
		if errors.As(err, &mismatch) {
			if ctx.Metrics != nil {
				ctx.Metrics.RecorderMismatches.Inc()
			}
			if ctx.Log != nil {
				ctx.Log.Error("replay diverged from the recorded trace, aborting scan", zap.String("worker", w.Name()), zap.Error(err))
			}
			return err
		}

		if ctx.Log != nil {
			ctx.Log.Error("worker failed fatally, aborting scan", zap.String("worker", w.Name()), zap.Error(err))
		}
		return err
	}

	ctx.Profile.ScanInfo.EndTime = time.Now()
	return nil
}
