// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// OCSPStapling probes whether the server staples an OCSP response under
// both the status_request (RFC 6066) and status_request_v2 (RFC 6961)
// shapes. TLS <= 1.2 carries the response in a
// dedicated CertificateStatus message; TLS 1.3 folds it into the leaf
// CertificateEntry's extension list (RFC 8446 §4.4.2.1).
type OCSPStapling struct{}

func (OCSPStapling) Name() string  { return "ocsp_stapling" }
func (OCSPStapling) Priority() int { return 80 }

func (OCSPStapling) Run(ctx *scan.Context) error {
	ctx.Profile.Features.OCSPStapling = probeStapling(ctx, true, false)
	ctx.Profile.Features.OCSPStaplingV2 = probeStapling(ctx, false, true)
	return nil
}

func probeStapling(ctx *scan.Context, v1, v2 bool) profile.Tribool {
	prof := *ctx.Config.Profile
	prof.SupportOCSP = v1
	prof.SupportOCSPV2 = v2

	result, conn, err := ctx.Handshake(&prof)
	if err != nil {
		return profile.Unknown
	}
	defer conn.Close(false, 0)

	if len(result.OCSPResponse) > 0 {
		return profile.True
	}
	if result.Version == tlswire.TLS13 {
		return boolTribool(hasStatusRequest(result.LeafCertificateExtensions))
	}
	return profile.False
}

func hasStatusRequest(exts []tlswire.Extension) bool {
	for _, ext := range exts {
		if ext.ID() == tlswire.ExtStatusRequest {
			return true
		}
	}
	return false
}
