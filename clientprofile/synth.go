// SPDX-License-Identifier: Apache-2.0

package clientprofile

import (
	"crypto/rand"

	"github.com/tlsmate-go/tlsmate/tlskex"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// greaseValues are the sixteen RFC 8701 reserved {0x?A?A} values; one is
// picked per connection so repeated probes don't all look identical.
var greaseValues = []uint16{
	0x0a0a, 0x1a1a, 0x2a2a, 0x3a3a, 0x4a4a, 0x5a5a, 0x6a6a, 0x7a7a,
	0x8a8a, 0x9a9a, 0xaaaa, 0xbaba, 0xcaca, 0xdada, 0xeaea, 0xfafa,
}

func pickGREASE() uint16 {
	var b [1]byte
	_, _ = rand.Read(b[:])
	return greaseValues[int(b[0])%len(greaseValues)]
}

// greaseALPNProtocol formats a GREASE value as a two-byte ALPN protocol
// identifier -- there is no registered ALPN GREASE encoding, so this
// engine reuses the same reserved {0x?A?A} byte pair the other slots use.
func greaseALPNProtocol() string {
	v := pickGREASE()
	return string([]byte{byte(v >> 8), byte(v)})
}

// Offer is the per-connection state synthesis produces: the wire
// ClientHello plus whatever ephemeral key-exchange state (if any) must
// survive until the server's response arrives.
type Offer struct {
	Hello    *tlswire.ClientHello
	Exchange map[uint16]tlskex.Exchange // group id -> offered share's backing exchange, TLS 1.3/ECDHE only

	// Resume carries p.Resume through to the handshake driver, which needs
	// the cached master secret to continue an abbreviated (TLS <= 1.2)
	// handshake if the server accepts the resumption.
	Resume *SessionState
}

// Synthesize builds a ClientHello for profile p directed at host, in the
// teacher's "fixed extension ordering" idiom: the order below is the one this engine always emits, independent of
// iteration order over maps elsewhere in the profile.
func Synthesize(p *ClientProfile, host string) (*Offer, error) {
	normalizedHost, err := NormalizeServerName(host)
	if err != nil {
		normalizedHost = host
	}

	maxVers, _ := tlswire.MinMax(p.Versions)
	clientVersion := maxVers.AtMost(tlswire.TLS12)

	var random [32]byte
	if _, err := rand.Read(random[:]); err != nil {
		return nil, err
	}

	suites := append([]tlswire.CipherSuite(nil), p.CipherSuites...)
	if p.GREASE {
		suites = append([]tlswire.CipherSuite{tlswire.CipherSuite(pickGREASE())}, suites...)
	}

	offer := &Offer{Exchange: make(map[uint16]tlskex.Exchange), Resume: p.Resume}
	var extensions []tlswire.Extension

	var sessionID []byte
	if p.Resume != nil {
		sessionID = p.Resume.SessionID
	}

	if p.GREASE {
		extensions = append(extensions, &tlswire.GREASEExtension{Value: pickGREASE()})
	}
	if normalizedHost != "" {
		extensions = append(extensions, &tlswire.ServerNameExtension{HostName: normalizedHost})
	}
	if p.SupportExtendedMasterSecret {
		extensions = append(extensions, &tlswire.EmptyExtension{Ext: tlswire.ExtExtendedMasterSecret})
	}
	if p.SupportRenegotiationInfo {
		extensions = append(extensions, &tlswire.RenegotiationInfoExtension{VerifyData: p.RenegotiationVerifyData})
	}
	if len(p.Groups) > 0 {
		groups := p.Groups
		if p.GREASENamedGroup {
			groups = append([]uint16{pickGREASE()}, p.Groups...)
		}
		extensions = append(extensions, &tlswire.SupportedGroupsExtension{Groups: groups})
		extensions = append(extensions, &tlswire.ECPointFormatsExtension{Formats: []uint8{0}})
	}
	if p.SupportSessionTicket {
		var ticket []byte
		if p.Resume != nil {
			ticket = p.Resume.Ticket
		}
		extensions = append(extensions, &tlswire.SessionTicketExtension{Ticket: ticket})
	}
	if len(p.SignatureSchemes) > 0 {
		extensions = append(extensions, &tlswire.SignatureAlgorithmsExtension{Schemes: p.SignatureSchemes})
	}
	if p.SupportOCSP {
		extensions = append(extensions, &tlswire.StatusRequestExtension{})
	}
	if p.SupportOCSPV2 {
		extensions = append(extensions, &tlswire.StatusRequestV2Extension{})
	}
	if len(p.SupportALPN) > 0 {
		protos := p.SupportALPN
		if p.GREASEALPN {
			protos = append([]string{greaseALPNProtocol()}, p.SupportALPN...)
		}
		extensions = append(extensions, &tlswire.ALPNExtension{Protocols: protos})
	}
	if p.SupportEncryptThenMAC {
		extensions = append(extensions, &tlswire.EmptyExtension{Ext: tlswire.ExtEncryptThenMAC})
	}
	if p.SupportHeartbeat {
		extensions = append(extensions, &tlswire.HeartbeatExtension{Mode: 1})
	}

	offersTLS13 := false
	for _, v := range p.Versions {
		if v == tlswire.TLS13 {
			offersTLS13 = true
		}
	}
	if offersTLS13 {
		versions := append([]tlswire.ProtocolVersion(nil), p.Versions...)
		if p.GREASEVersion {
			versions = append([]tlswire.ProtocolVersion{tlswire.ProtocolVersion(pickGREASE())}, versions...)
		}
		extensions = append(extensions, &tlswire.SupportedVersionsExtension{Versions: versions})
		extensions = append(extensions, &tlswire.PSKKeyExchangeModesExtension{Modes: []uint8{1}}) // psk_dhe_ke

		var entries []tlswire.KeyShareEntry
		for _, g := range p.Groups {
			ex, err := tlskex.NewECDHExchange(g)
			if err != nil {
				continue // group not supported for an active share (e.g. FFDHE has no key_share form here)
			}
			share, err := ex.Offer()
			if err != nil {
				continue
			}
			entries = append(entries, tlswire.KeyShareEntry{Group: g, KeyExchange: share.Value})
			offer.Exchange[g] = ex
			if len(entries) >= 2 {
				break // two shares (one per likely-selected group) keeps the hello a reasonable size
			}
		}
		if p.GREASEKeyShareExtra {
			// An extra entry under a reserved group id, with no backing
			// Exchange: the server must ignore an unrecognized key_share
			// entry rather than fail the handshake (RFC 8701 §4).
			extra := make([]byte, 32)
			_, _ = rand.Read(extra)
			entries = append([]tlswire.KeyShareEntry{{Group: pickGREASE(), KeyExchange: extra}}, entries...)
		}
		extensions = append(extensions, &tlswire.KeyShareExtension{Entries: entries})
	}

	offer.Hello = &tlswire.ClientHello{
		ClientVersion:      clientVersion,
		Random:             random,
		SessionID:          sessionID,
		CipherSuites:       suites,
		CompressionMethods: p.CompressionMethods,
		Extensions:         extensions,
	}
	return offer, nil
}
