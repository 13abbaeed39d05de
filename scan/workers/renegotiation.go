// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// scsvEmptyRenegotiationInfo is TLS_EMPTY_RENEGOTIATION_INFO_SCSV (RFC 5746
// §3.3): a signalling cipher-suite value a legacy client offers in place of
// the renegotiation_info extension.
const scsvEmptyRenegotiationInfo = tlswire.CipherSuite(0x00ff)

// Renegotiation probes the three independent facets  "renegotiation"
// calls for: whether the server tolerates an insecure (pre-RFC 5746)
// renegotiation, honours the SCSV signal in place of the extension, and
// supports RFC 5746 secure renegotiation proper. TLS 1.3 forbids
// renegotiation outright (RFC 8446 §D.2), so this worker only probes
// versions at or below TLS 1.2.
type Renegotiation struct{}

func (Renegotiation) Name() string  { return "renegotiation" }
func (Renegotiation) Priority() int { return 50 }

func (Renegotiation) Run(ctx *scan.Context) error {
	base := renegotiationBaseProfile(ctx.Config.Profile)
	if len(base.Versions) == 0 {
		ctx.Profile.Features.InsecureRenegotiation = profile.NotApplicable
		ctx.Profile.Features.RenegotiationSCSV = profile.NotApplicable
		ctx.Profile.Features.SecureRenegotiation = profile.NotApplicable
		return nil
	}

	ctx.Profile.Features.SecureRenegotiation = probeSecureRenegotiation(ctx, base)
	ctx.Profile.Features.RenegotiationSCSV = probeRenegotiationSCSV(ctx, base)
	ctx.Profile.Features.InsecureRenegotiation = probeInsecureRenegotiation(ctx, base)
	return nil
}

func renegotiationBaseProfile(base *clientprofile.ClientProfile) *clientprofile.ClientProfile {
	clone := *base
	var tls12 []tlswire.ProtocolVersion
	for _, v := range base.Versions {
		if v != tlswire.TLS13 {
			tls12 = append(tls12, v)
		}
	}
	clone.Versions = tls12
	return &clone
}

func probeSecureRenegotiation(ctx *scan.Context, base *clientprofile.ClientProfile) profile.Tribool {
	prof := *base
	prof.SupportRenegotiationInfo = true
	prof.RenegotiationVerifyData = nil
	result, conn, err := ctx.Handshake(&prof)
	if err != nil {
		return profile.Unknown
	}
	conn.Close(false, 0)
	return boolTribool(hasEmptyRenegotiationInfo(result.ServerHello.Extensions))
}

func probeRenegotiationSCSV(ctx *scan.Context, base *clientprofile.ClientProfile) profile.Tribool {
	prof := *base
	prof.SupportRenegotiationInfo = false
	prof.CipherSuites = append([]tlswire.CipherSuite{scsvEmptyRenegotiationInfo}, base.CipherSuites...)
	result, conn, err := ctx.Handshake(&prof)
	if err != nil {
		return profile.Unknown
	}
	conn.Close(false, 0)
	return boolTribool(hasEmptyRenegotiationInfo(result.ServerHello.Extensions))
}

// probeInsecureRenegotiation completes a plain handshake with no
// renegotiation_info at all, then sends a second ClientHello straight
// through the now-protected connection. A server that answers with another
// ServerHello instead of rejecting the message is still willing to
// renegotiate without the RFC 5746 binding, the CVE-2009-3555 class of
// vulnerability.
func probeInsecureRenegotiation(ctx *scan.Context, base *clientprofile.ClientProfile) profile.Tribool {
	prof := *base
	prof.SupportRenegotiationInfo = false
	result, conn, err := ctx.Handshake(&prof)
	if err != nil {
		return profile.Unknown
	}
	defer conn.Close(false, 0)
	if result.Resumed {
		return profile.Unknown
	}

	offer, err := clientprofile.Synthesize(&prof, ctx.Config.Host)
	if err != nil {
		return profile.Unknown
	}
	if err := conn.SendHandshake(offer.Hello); err != nil {
		return profile.Unknown
	}
	msg, err := conn.WaitHandshake()
	if err != nil {
		return profile.False
	}
	return boolTribool(isServerHello(msg))
}

func isServerHello(msg tlswire.Message) bool {
	_, ok := msg.(*tlswire.ServerHello)
	return ok
}

func hasEmptyRenegotiationInfo(exts []tlswire.Extension) bool {
	for _, ext := range exts {
		if ri, ok := ext.(*tlswire.RenegotiationInfoExtension); ok {
			return len(ri.VerifyData) == 0
		}
	}
	return false
}
