// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// ExtendedMasterSecret probes RFC 7627 support: whether the server echoes the extension, which
// this engine's own master-secret derivation already honours either way
// (continueTLS12 folds the session hash in whenever the extension is
// negotiated), so a full handshake completing is itself useful
// confirmation that the bit was handled consistently by both sides.
type ExtendedMasterSecret struct{}

func (ExtendedMasterSecret) Name() string  { return "extended_master_secret" }
func (ExtendedMasterSecret) Priority() int { return 31 }

func (ExtendedMasterSecret) Run(ctx *scan.Context) error {
	prof := emsProbeProfile(ctx.Config.Profile)
	if len(prof.Versions) == 0 {
		ctx.Profile.Features.ExtendedMasterSecret = profile.NotApplicable
		return nil
	}

	result, conn, err := ctx.Handshake(prof)
	if err != nil {
		ctx.Profile.Features.ExtendedMasterSecret = profile.Unknown
		return tlserr.NewScanError("extended_master_secret", "handshake failed", err)
	}
	conn.Close(false, 0)
	ctx.Profile.Features.ExtendedMasterSecret = boolTribool(hasExtension(result.ServerHello.Extensions, tlswire.ExtExtendedMasterSecret))
	return nil
}

func emsProbeProfile(base *clientprofile.ClientProfile) *clientprofile.ClientProfile {
	clone := *base
	clone.SupportExtendedMasterSecret = true
	var tls12 []tlswire.ProtocolVersion
	for _, v := range base.Versions {
		if v != tlswire.TLS13 {
			tls12 = append(tls12, v)
		}
	}
	clone.Versions = tls12
	return &clone
}
