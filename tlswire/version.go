// SPDX-License-Identifier: Apache-2.0

// Package tlswire is the wire codec (encode/decode) for every TLS message
// and extension from SSL 2.0 through TLS 1.3. The codec is length-driven:
// every structure carries an explicit length, so decoding never guesses at
// boundaries. It never validates protocol semantics — a cipher suite the
// server selected but the client never offered decodes without error; the
// handshake state machine in tlsconn is the layer that judges that.
package tlswire

import "fmt"

// ProtocolVersion is the wire-format {major, minor} pair, represented as a
// single total-ordered 16-bit value exactly as TLS encodes it, so version
// comparisons are plain integer comparisons.
type ProtocolVersion uint16

// Recognized protocol versions, SSL 2.0 through TLS 1.3.
const (
	SSL20 ProtocolVersion = 0x0002 // not a real record-layer version; used only for SSLv2 ClientHello framing
	SSL30 ProtocolVersion = 0x0300
	TLS10 ProtocolVersion = 0x0301
	TLS11 ProtocolVersion = 0x0302
	TLS12 ProtocolVersion = 0x0303
	TLS13 ProtocolVersion = 0x0304
)

func (v ProtocolVersion) String() string {
	switch v {
	case SSL20:
		return "SSLv2"
	case SSL30:
		return "SSLv3"
	case TLS10:
		return "TLS1.0"
	case TLS11:
		return "TLS1.1"
	case TLS12:
		return "TLS1.2"
	case TLS13:
		return "TLS1.3"
	default:
		return fmt.Sprintf("unknown(0x%04x)", uint16(v))
	}
}

// Less reports whether v sorts before o in the total order SSL20 < ... < TLS13.
func (v ProtocolVersion) Less(o ProtocolVersion) bool { return v < o }

// AtMost clamps v to the given ceiling, used to compute the record-layer
// version which must never exceed TLS 1.2.
func (v ProtocolVersion) AtMost(ceiling ProtocolVersion) ProtocolVersion {
	if v > ceiling {
		return ceiling
	}
	return v
}

// RecordLayerVersion returns min(negotiated, TLS12), the version that must
// be placed on every outbound record header regardless of what was actually
// negotiated (accommodates version-intolerant middleboxes).
func RecordLayerVersion(negotiated ProtocolVersion) ProtocolVersion {
	return negotiated.AtMost(TLS12)
}

// MinMax returns the lowest and highest version in a non-empty set.
func MinMax(versions []ProtocolVersion) (min, max ProtocolVersion) {
	min, max = versions[0], versions[0]
	for _, v := range versions[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
