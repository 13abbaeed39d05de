// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// Progress reports coarse scan progress (workers completed / total) to a
// terminal, falling back to a quiet no-op when its writer isn't one -- scans
// piped into a file or CI log shouldn't fill up with carriage-return spam.
type Progress struct {
	out       io.Writer
	isTerminal bool
	total     int
	done      int
}

// NewProgress returns a Progress writing to w, auto-detecting whether w is a
// terminal (checked via golang.org/x/term when w is *os.File).
func NewProgress(w io.Writer, total int) *Progress {
	isTerm := false
	if f, ok := w.(*os.File); ok {
		isTerm = term.IsTerminal(int(f.Fd()))
	}
	return &Progress{out: w, isTerminal: isTerm, total: total}
}

// Advance marks n more units of work complete and, on a terminal, redraws
// the status line in place.
func (p *Progress) Advance(n int, label string) {
	p.done += n
	if !p.isTerminal {
		return
	}
	fmt.Fprintf(p.out, "\r\x1b[K[%s/%s] %s",
		humanize.Comma(int64(p.done)), humanize.Comma(int64(p.total)), label)
}

// Finish prints a final newline so subsequent output doesn't overwrite the
// last status line.
func (p *Progress) Finish() {
	if p.isTerminal {
		fmt.Fprintln(p.out)
	}
}
