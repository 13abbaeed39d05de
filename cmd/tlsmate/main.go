// SPDX-License-Identifier: Apache-2.0

// Command tlsmate drives a TLS client engine against a server and reports
// on the protocol versions, cipher suites, extensions, and vulnerability
// classes it observes.
package main

import (
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	// Match the container's CPU quota rather than the host's full core
	// count. The real logger isn't configured until RunE parses
	// --log-level, so maxprocs gets a throwaway logger func here.
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {}))
	defer undo()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tlsmate: failed to set GOMAXPROCS: %v\n", err)
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
