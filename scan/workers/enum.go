// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"errors"

	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// maxSuitesPerHello bounds how many cipher suites one ClientHello offers
// during enumeration: this keeps the
// hello a reasonable size and works around servers that drop oversized ones.
const maxSuitesPerHello = 32

// Enum enumerates, per offered protocol version, which cipher suites the
// server accepts and whether it enforces its own preference order over the
// client's.
type Enum struct{}

func (Enum) Name() string  { return "enum" }
func (Enum) Priority() int { return 10 }

func (Enum) Run(ctx *scan.Context) error {
	for _, version := range ctx.Config.Profile.Versions {
		if err := enumerateVersion(ctx, version); err != nil {
			var refused *tlserr.NegotiationRefused
			var timeout *tlserr.Timeout
			if errors.As(err, &refused) || errors.As(err, &timeout) {
				vp := ctx.Profile.VersionEntry(uint16(version))
				vp.Supported = profile.False
				continue
			}
			return tlserr.NewScanError("enum", "enumeration failed for "+version.String(), err)
		}
	}
	return nil
}

func enumerateVersion(ctx *scan.Context, version tlswire.ProtocolVersion) error {
	candidates := suitesForVersion(ctx.Config.Profile.CipherSuites, version)
	vp := ctx.Profile.VersionEntry(uint16(version))
	if len(candidates) == 0 {
		vp.Supported = profile.NotApplicable
		return nil
	}

	var results []profile.CipherSuiteResult
	remaining := candidates
	for len(remaining) > 0 {
		head, rest := batch(remaining, maxSuitesPerHello)
		for len(head) > 0 {
			result, conn, err := ctx.Handshake(singleVersionProfile(ctx.Config.Profile, version, head))
			if err != nil {
				// Handshake failure flushes the rest of this sub-batch: we
				// cannot tell which suite in it the server would refuse.
				break
			}
			conn.Close(false, 0)

			selected := result.ServerHello.CipherSuite
			chainID := recordCertChain(ctx.Profile, keyExchangeLabel(result.Suite.KeyEx), result.CertChain)
			results = append(results, profile.CipherSuiteResult{
				Suite:   uint16(selected),
				Name:    result.Suite.Name,
				ChainID: chainID,
			})
			head = removeSuite(head, selected)
			remaining = removeSuite(remaining, selected)
		}
		remaining = rest
	}

	vp.Supported = boolTribool(len(results) > 0)
	vp.CipherSuites = results
	vp.ServerPreference = detectServerPreference(ctx, version, candidates)
	if len(results) > 0 {
		results[0].ServerPreferred = vp.ServerPreference == profile.True
	}
	return nil
}

// detectServerPreference implements the two-probe test: offer list
// L, observe s0; move s0 to the end and offer L', observe s1. If s1 differs
// from L'[0] the server enforced its own order; otherwise the client's
// first choice won both times, meaning the server just follows the client.
func detectServerPreference(ctx *scan.Context, version tlswire.ProtocolVersion, l []tlswire.CipherSuite) profile.Tribool {
	if len(l) < 2 {
		return profile.NotApplicable
	}
	first, _ := batch(l, maxSuitesPerHello)

	result0, conn0, err := ctx.Handshake(singleVersionProfile(ctx.Config.Profile, version, first))
	if err != nil {
		return profile.Unknown
	}
	conn0.Close(false, 0)
	s0 := result0.ServerHello.CipherSuite

	reordered := append(removeSuite(append([]tlswire.CipherSuite(nil), first...), s0), s0)
	if len(reordered) < 2 {
		return profile.NotApplicable
	}

	result1, conn1, err := ctx.Handshake(singleVersionProfile(ctx.Config.Profile, version, reordered))
	if err != nil {
		return profile.Unknown
	}
	conn1.Close(false, 0)

	if result1.ServerHello.CipherSuite != reordered[0] {
		return profile.True
	}
	return profile.False
}
