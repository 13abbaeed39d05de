// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"net"

	"github.com/tlsmate-go/tlsmate/recorder"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlserr"
)

// ScanStart resolves the target host before any other worker connects and
// records the result on the profile. There
// is no separate scanend worker: scan.Run itself stamps ScanInfo.EndTime
// once every worker has returned, which is the entire job the original's
// scanend plugin did.
type ScanStart struct{}

func (ScanStart) Name() string  { return "scanstart" }
func (ScanStart) Priority() int { return 0 }

func (ScanStart) Run(ctx *scan.Context) error {
	ctx.Profile.Server.ResolvedName = ctx.Config.Host

	if ctx.Recorder != nil && ctx.Recorder.State() == recorder.StateReplaying {
		return nil
	}
	addrs, err := net.LookupHost(ctx.Config.Host)
	if err != nil {
		return tlserr.NewScanError("scanstart", "DNS resolution failed", err)
	}
	if len(addrs) > 0 {
		ctx.Profile.Server.IPAddress = addrs[0]
	}
	return nil
}
