// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"errors"

	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlserr"
)

// GREASE probes RFC 8701 tolerance, one reserved-value insertion point at a
// time: cipher suite, extension id, supported version, named group, ALPN
// protocol, and an extra key_share entry. A compliant
// server completes the handshake regardless, ignoring whatever it doesn't
// recognize; intolerance shows up as the server refusing the handshake.
type GREASE struct{}

func (GREASE) Name() string  { return "grease" }
func (GREASE) Priority() int { return 90 }

func (GREASE) Run(ctx *scan.Context) error {
	base := *ctx.Config.Profile
	base.GREASE = false

	slots := &ctx.Profile.Features.GREASE
	slots.CipherSuite = probeGreaseToleration(ctx, withGREASE(base, func(p *clientprofile.ClientProfile) { p.GREASE = true }))
	slots.Extension = slots.CipherSuite // the single GREASE flag drives both in this engine's synthesis
	slots.Version = probeGreaseToleration(ctx, withGREASE(base, func(p *clientprofile.ClientProfile) { p.GREASEVersion = true }))
	slots.NamedGroup = probeGreaseToleration(ctx, withGREASE(base, func(p *clientprofile.ClientProfile) { p.GREASENamedGroup = true }))
	slots.ALPNProtocol = probeGreaseToleration(ctx, withGREASE(base, func(p *clientprofile.ClientProfile) { p.GREASEALPN = true }))
	slots.KeyShareExtra = probeGreaseToleration(ctx, withGREASE(base, func(p *clientprofile.ClientProfile) { p.GREASEKeyShareExtra = true }))
	return nil
}

func withGREASE(base clientprofile.ClientProfile, set func(*clientprofile.ClientProfile)) *clientprofile.ClientProfile {
	clone := base
	set(&clone)
	return &clone
}

func probeGreaseToleration(ctx *scan.Context, prof *clientprofile.ClientProfile) profile.Tribool {
	_, conn, err := ctx.Handshake(prof)
	if conn != nil {
		defer conn.Close(false, 0)
	}
	if err == nil {
		return profile.True
	}
	var refused *tlserr.NegotiationRefused
	if errors.As(err, &refused) {
		return profile.False
	}
	return profile.Unknown
}
