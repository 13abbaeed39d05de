// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"errors"

	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlsconn"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// CCSInjection probes the CVE-2014-0224 class of bug: a ChangeCipherSpec
// sent immediately after ServerHello, before any key material exists at
// all, should be rejected as out-of-order. If
// the handshake completes anyway, the server accepted a CCS it had no
// business accepting yet.
type CCSInjection struct{}

func (CCSInjection) Name() string  { return "ccs_injection" }
func (CCSInjection) Priority() int { return 60 }

func (CCSInjection) Run(ctx *scan.Context) error {
	prof := ccsInjectionProfile(ctx.Config.Profile)
	if len(prof.Versions) == 0 {
		ctx.Profile.Vulnerabilities.CCSInjection = profile.NotApplicable
		return nil
	}

	hooks := &tlsconn.HandshakeHooks{
		AfterServerHello: func(c *tlsconn.Connection, _ *tlswire.ServerHello) error {
			return c.Layer.SendFragment(tlswire.ContentChangeCipherSpec, tlswire.MarshalChangeCipherSpec())
		},
	}

	_, conn, err := ctx.HandshakeWithHooks(prof, hooks)
	if conn != nil {
		defer conn.Close(false, 0)
	}
	if err == nil {
		ctx.Profile.Vulnerabilities.CCSInjection = profile.True
		return nil
	}

	var refused *tlserr.NegotiationRefused
	if errors.As(err, &refused) {
		ctx.Profile.Vulnerabilities.CCSInjection = profile.False
		return nil
	}
	ctx.Profile.Vulnerabilities.CCSInjection = profile.Unknown
	return tlserr.NewScanError("ccs_injection", "probe failed", err)
}

// ccsInjectionProfile narrows to TLS <= 1.2: TLS 1.3 has no
// ChangeCipherSpec in its real protocol (only the compatibility no-op one
// sent after ServerHello/Finished), so the premature-CCS probe is
// meaningless there.
func ccsInjectionProfile(base *clientprofile.ClientProfile) *clientprofile.ClientProfile {
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
