// SPDX-License-Identifier: Apache-2.0

// Package clientprofile is the client profile (design component C6): the
// set of versions, cipher suites, groups, and extensions this engine offers
// in a ClientHello, and the synthesis logic that turns a ClientProfile plus
// a target server name into a concrete wire-ready ClientHello. Four presets
// are provided: LEGACY, INTEROPERABILITY, MODERN, TLS13-only.
package clientprofile

import (
	"golang.org/x/net/idna"

	"github.com/tlsmate-go/tlsmate/tlswire"
)

// ClientProfile is the full set of knobs ClientHello synthesis draws from.
type ClientProfile struct {
	Name               string
	Versions           []tlswire.ProtocolVersion
	CipherSuites       []tlswire.CipherSuite
	Groups             []uint16
	SignatureSchemes   []uint16
	CompressionMethods []uint8
	SupportHeartbeat   bool
	SupportALPN        []string
	SupportOCSP        bool
	SupportOCSPV2      bool
	SupportSessionTicket bool
	SupportRenegotiationInfo bool
	SupportEncryptThenMAC  bool
	SupportExtendedMasterSecret bool
	GREASE             bool

	// The four GREASE toggles below are probed independently of the blanket GREASE flag
	// above, which only covers the cipher-suite list and a bare extension
	// id -- these cover the remaining RFC 8701 insertion points.
	GREASEVersion       bool
	GREASENamedGroup    bool
	GREASEALPN          bool
	GREASEKeyShareExtra bool

	// RenegotiationVerifyData, when non-nil, is echoed in the
	// renegotiation_info extension instead of an empty one -- used by the
	// "renegotiation" worker to offer the verify_data a secure
	// renegotiation handshake must carry on its second ClientHello (RFC
	// 5746 §3.5).
	RenegotiationVerifyData []byte

	// Resume, when set, carries a prior session's resumption material
	//: Synthesize offers SessionID and/or Ticket on
	// the ClientHello instead of an empty one, so the "resumption" worker
	// can probe whether the server accepts an abbreviated handshake.
	Resume *SessionState
}

// SessionState is what a completed handshake leaves behind for a later
// resumption attempt.
type SessionState struct {
	SessionID            []byte
	Ticket               []byte
	LifetimeHint         uint32
	CipherSuite          tlswire.CipherSuite
	Version              tlswire.ProtocolVersion
	MasterSecret         []byte
	ExtendedMasterSecret bool
}

// Groups referenced by the presets below (IANA named_group registry values).
const (
	GroupX25519    = 0x001d
	GroupX448      = 0x001e
	GroupSecp256r1 = 0x0017
	GroupSecp384r1 = 0x0018
	GroupSecp521r1 = 0x0019
	GroupFFDHE2048 = 0x0100
)

// Signature schemes referenced by the presets below.
const (
	SchemeRSAPSSRSAESHA256   = 0x0804
	SchemeECDSASECP256R1SHA256 = 0x0403
	SchemeRSAPKCS1SHA256     = 0x0401
	SchemeRSAPKCS1SHA1       = 0x0201
)

// Legacy offers the widest possible version/suite range -- every suite in
// tlswire.CipherSuites, anonymous (DH_anon) ones included -- to probe how
// permissive a server is.
func Legacy() *ClientProfile {
	return &ClientProfile{
		Name:     "LEGACY",
		Versions: []tlswire.ProtocolVersion{tlswire.SSL30, tlswire.TLS10, tlswire.TLS11, tlswire.TLS12},
		CipherSuites: allLegacySuites(),
		Groups:   []uint16{GroupSecp256r1, GroupSecp384r1, GroupFFDHE2048},
		SignatureSchemes: []uint16{SchemeRSAPKCS1SHA1, SchemeRSAPKCS1SHA256},
		CompressionMethods: []uint8{0},
		SupportRenegotiationInfo: true,
	}
}

// Interoperability mirrors a typical modern browser's offer: TLS 1.0
// through 1.3, broad but not obsolete suite coverage.
func Interoperability() *ClientProfile {
	return &ClientProfile{
		Name:     "INTEROPERABILITY",
		Versions: []tlswire.ProtocolVersion{tlswire.TLS10, tlswire.TLS11, tlswire.TLS12, tlswire.TLS13},
		CipherSuites: interopSuites(),
		Groups:   []uint16{GroupX25519, GroupSecp256r1, GroupSecp384r1},
		SignatureSchemes: []uint16{SchemeECDSASECP256R1SHA256, SchemeRSAPSSRSAESHA256, SchemeRSAPKCS1SHA256},
		CompressionMethods: []uint8{0},
		SupportALPN: []string{"h2", "http/1.1"},
		SupportOCSP: true,
		SupportSessionTicket: true,
		SupportRenegotiationInfo: true,
		SupportEncryptThenMAC: true,
		SupportExtendedMasterSecret: true,
		GREASE: true,
	}
}

// Modern restricts to TLS 1.2/1.3 with only forward-secret AEAD suites.
func Modern() *ClientProfile {
	return &ClientProfile{
		Name:     "MODERN",
		Versions: []tlswire.ProtocolVersion{tlswire.TLS12, tlswire.TLS13},
		CipherSuites: modernSuites(),
		Groups:   []uint16{GroupX25519, GroupX448, GroupSecp256r1, GroupSecp384r1},
		SignatureSchemes: []uint16{SchemeECDSASECP256R1SHA256, SchemeRSAPSSRSAESHA256},
		CompressionMethods: []uint8{0},
		SupportALPN: []string{"h2", "http/1.1"},
		SupportSessionTicket: true,
		SupportRenegotiationInfo: true,
		SupportEncryptThenMAC: true,
		SupportExtendedMasterSecret: true,
		GREASE: true,
	}
}

// TLS13Only offers exclusively TLS 1.3.
func TLS13Only() *ClientProfile {
	return &ClientProfile{
		Name:     "TLS13",
		Versions: []tlswire.ProtocolVersion{tlswire.TLS13},
		CipherSuites: []tlswire.CipherSuite{0x1301, 0x1302, 0x1303},
		Groups:   []uint16{GroupX25519, GroupSecp256r1, GroupSecp384r1},
		SignatureSchemes: []uint16{SchemeECDSASECP256R1SHA256, SchemeRSAPSSRSAESHA256},
		CompressionMethods: []uint8{0},
		SupportALPN: []string{"h2"},
		GREASE: true,
	}
}

func allLegacySuites() []tlswire.CipherSuite {
	var out []tlswire.CipherSuite
	for id := range tlswire.CipherSuites {
		out = append(out, id)
	}
	return out
}

func interopSuites() []tlswire.CipherSuite {
	return []tlswire.CipherSuite{
		0x1301, 0x1302, 0x1303,
		0xc02f, 0xc02b, 0xc030, 0xc02c,
		0xcca8, 0xcca9,
		0xc013, 0xc014, 0xc009, 0xc00a,
		0x009e, 0x009c,
		0x0033, 0x002f,
	}
}

func modernSuites() []tlswire.CipherSuite {
	return []tlswire.CipherSuite{
		0x1301, 0x1302, 0x1303,
		0xc02f, 0xc02b, 0xc030, 0xc02c,
		0xcca8, 0xcca9,
	}
}

// NormalizeServerName applies idna punycode normalization to a host name
// before it is placed in the server_name extension.
func NormalizeServerName(host string) (string, error) {
	return idna.Lookup.ToASCII(host)
}
