// SPDX-License-Identifier: Apache-2.0

package workers

import "github.com/tlsmate-go/tlsmate/scan"

// ToolVersion can be overridden at build time (e.g. via -ldflags); it
// defaults to "dev".
var ToolVersion = "dev"

// VersionInfo records the tool's own version in the profile's Status map
// under "tlsmate_version". Grounded on
// the original `tlsmate/plugins/version.py`: not named in the
// worker list, but present in the original and harmless, so it runs last.
type VersionInfo struct{}

func (VersionInfo) Name() string  { return "versioninfo" }
func (VersionInfo) Priority() int { return 1000 }

func (VersionInfo) Run(ctx *scan.Context) error {
	if ctx.Profile.Status == nil {
		ctx.Profile.Status = make(map[string]string)
	}
	ctx.Profile.Status["tlsmate_version"] = ToolVersion
	return nil
}
