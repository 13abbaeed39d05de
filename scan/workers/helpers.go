// SPDX-License-Identifier: Apache-2.0

// Package workers holds the concrete scan workers (design component C9):
// one file per representative worker named in , each an
// independent probe that dials its own connection(s) and writes findings
// into the shared profile.ServerProfile.
package workers

import (
	"crypto/x509"

	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// singleVersionProfile narrows base to exactly one offered version and a
// caller-supplied suite list, keeping every other knob (groups, signature
// schemes, extension toggles) so a targeted probe still looks like a
// realistic client instead of a bare-bones one a server might special-case.
func singleVersionProfile(base *clientprofile.ClientProfile, version tlswire.ProtocolVersion, suites []tlswire.CipherSuite) *clientprofile.ClientProfile {
	clone := *base
	clone.Versions = []tlswire.ProtocolVersion{version}
	clone.CipherSuites = suites
	return &clone
}

// suitesForVersion returns the subset of candidate suites this engine
// considers valid to offer for version (its registered minimum version is
// at or below version).
func suitesForVersion(candidates []tlswire.CipherSuite, version tlswire.ProtocolVersion) []tlswire.CipherSuite {
	var out []tlswire.CipherSuite
	for _, cs := range candidates {
		info, ok := tlswire.LookupCipherSuite(cs)
		if !ok {
			continue
		}
		if !version.Less(info.MinVers) {
			out = append(out, cs)
		}
	}
	return out
}

func removeSuite(list []tlswire.CipherSuite, target tlswire.CipherSuite) []tlswire.CipherSuite {
	out := list[:0]
	for _, cs := range list {
		if cs != target {
			out = append(out, cs)
		}
	}
	return out
}

func boolTribool(b bool) profile.Tribool {
	if b {
		return profile.True
	}
	return profile.False
}

// batch returns up to n leading elements of list, and the rest.
func batch(list []tlswire.CipherSuite, n int) (head, rest []tlswire.CipherSuite) {
	if len(list) <= n {
		return list, nil
	}
	return list[:n], list[n:]
}

// keyExchangeLabel names the key-exchange method a certificate chain was
// observed under, used to key profile.CertChain's dedup.
func keyExchangeLabel(m tlswire.KeyExchangeMethod) string {
	switch m {
	case tlswire.KexRSA:
		return "RSA"
	case tlswire.KexDHE:
		return "DHE"
	case tlswire.KexDHAnon:
		return "DH_anon"
	case tlswire.KexECDHE:
		return "ECDHE"
	case tlswire.KexECDHAnon:
		return "ECDH_anon"
	case tlswire.KexPSK:
		return "PSK"
	case tlswire.KexPSKDHE:
		return "PSK_DHE"
	case tlswire.KexPSKECDHE:
		return "PSK_ECDHE"
	case tlswire.KexTLS13:
		return "TLS13"
	default:
		return "unknown"
	}
}

// recordCertChain dedups the certificate chain a handshake presented (if
// any) onto sp, returning the assigned chain id, or 0 for a PSK-only suite
// that presented no certificates at all.
func recordCertChain(sp *profile.ServerProfile, keyExchange string, chain []*x509.Certificate) int {
	if len(chain) == 0 {
		return 0
	}
	raw := make([][]byte, len(chain))
	for i, c := range chain {
		raw[i] = c.Raw
	}
	leaf := chain[0]
	return sp.AddCertChain(profile.CertChain{
		KeyExchange: keyExchange,
		Chain:       raw,
		Subject:     leaf.Subject.String(),
		Issuer:      leaf.Issuer.String(),
		NotBefore:   leaf.NotBefore,
		NotAfter:    leaf.NotAfter,
	})
}
