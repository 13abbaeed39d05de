// SPDX-License-Identifier: Apache-2.0

// Package rectest adapts original_source/tlsmate/tlssuite.py's test-harness
// shape: a table of named recorded traces under testdata/, each replayed
// through a fresh recorder.Recorder so a scan worker's behaviour against a
// captured real-world handshake can be asserted without a live server.
package rectest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tlsmate-go/tlsmate/recorder"
)

// Case names one fixture file (without extension) under a package's
// testdata/recordings/ directory.
type Case struct {
	Name string
}

// Load opens dir/<name>.yaml and returns a Recorder ready for
// StartReplaying.
func Load(t *testing.T, dir, name string) *recorder.Recorder {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("rectest: opening fixture %s: %v", path, err)
	}
	defer f.Close()

	r := recorder.New()
	if err := r.Deserialize(f); err != nil {
		t.Fatalf("rectest: decoding fixture %s: %v", path, err)
	}
	r.StartReplaying()
	return r
}

// Run replays every Case in cases against fn, giving each its own
// subtest -- the pattern original_source's TlsSuiteTester used to drive one
// recorded conversation per registered test method.
func Run(t *testing.T, dir string, cases []Case, fn func(t *testing.T, r *recorder.Recorder)) {
	t.Helper()
	for _, c := range cases {
		c := c
		t.Run(c.Name, func(t *testing.T) {
			r := Load(t, dir, c.Name)
			fn(t, r)
		})
	}
}
