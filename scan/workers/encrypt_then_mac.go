// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// EncryptThenMAC probes RFC 7366 support: whether the server echoes the
// extension for a CBC cipher suite, confirmed by completing the handshake
// under the negotiated EtM ordering (the record layer swaps MAC-then-
// encrypt for MAC-over-ciphertext once the extension is negotiated), the
// same pattern ExtendedMasterSecret uses for its own extension bit.
type EncryptThenMAC struct{}

func (EncryptThenMAC) Name() string  { return "encrypt_then_mac" }
func (EncryptThenMAC) Priority() int { return 30 }

func (EncryptThenMAC) Run(ctx *scan.Context) error {
	prof := etmProbeProfile(ctx.Config.Profile)
	if len(prof.Versions) == 0 || len(prof.CipherSuites) == 0 {
		ctx.Profile.Features.EncryptThenMAC = profile.NotApplicable
		return nil
	}

	result, conn, err := ctx.Handshake(prof)
	if err != nil {
		ctx.Profile.Features.EncryptThenMAC = profile.Unknown
		return tlserr.NewScanError("encrypt_then_mac", "handshake failed", err)
	}
	conn.Close(false, 0)
	ctx.Profile.Features.EncryptThenMAC = boolTribool(hasExtension(result.ServerHello.Extensions, tlswire.ExtEncryptThenMAC))
	return nil
}

func etmProbeProfile(base *clientprofile.ClientProfile) *clientprofile.ClientProfile {
	clone := *base
	clone.SupportEncryptThenMAC = true
	var tls12 []tlswire.ProtocolVersion
	for _, v := range base.Versions {
		if v != tlswire.TLS13 {
			tls12 = append(tls12, v)
		}
	}
	clone.Versions = tls12
	var cbc []tlswire.CipherSuite
	for _, cs := range base.CipherSuites {
		if info, ok := tlswire.LookupCipherSuite(cs); ok && info.Cipher.Type == tlswire.CipherBlock {
			cbc = append(cbc, cs)
		}
	}
	clone.CipherSuites = cbc
	return &clone
}

func hasExtension(exts []tlswire.Extension, id tlswire.ExtensionID) bool {
	for _, ext := range exts {
		if ext.ID() == id {
			return true
		}
	}
	return false
}
