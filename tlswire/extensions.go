// SPDX-License-Identifier: Apache-2.0

package tlswire

// ExtensionID is the 16-bit IANA extension number.
type ExtensionID uint16

// Extension IDs referenced by the synthesiser and the scan workers.
const (
	ExtServerName              ExtensionID = 0
	ExtStatusRequest            ExtensionID = 5
	ExtSupportedGroups           ExtensionID = 10
	ExtECPointFormats           ExtensionID = 11
	ExtSignatureAlgorithms       ExtensionID = 13
	ExtHeartbeat                 ExtensionID = 15
	ExtALPN                      ExtensionID = 16
	ExtStatusRequestV2           ExtensionID = 17
	ExtSignedCertTimestamp       ExtensionID = 18
	ExtEncryptThenMAC            ExtensionID = 22
	ExtExtendedMasterSecret      ExtensionID = 23
	ExtSessionTicket             ExtensionID = 35
	ExtPreSharedKey              ExtensionID = 41
	ExtEarlyData                 ExtensionID = 42
	ExtSupportedVersions         ExtensionID = 43
	ExtCookie                    ExtensionID = 44
	ExtPSKKeyExchangeModes       ExtensionID = 45
	ExtKeyShare                  ExtensionID = 51
	ExtRenegotiationInfo         ExtensionID = 0xff01
)

// Extension is a tagged variant keyed by ExtensionID. It must be
// round-trippable: Marshal(Unmarshal(b)) == b for every b an Extension of
// this kind can legally carry, and for extension ids we don't recognize we
// retain the raw bytes verbatim under UnknownExtension so a worker can
// detect their presence without the codec needing to understand them.
type Extension interface {
	ID() ExtensionID
	Marshal() []byte
}

// UnknownExtension preserves an unrecognized extension's raw body so it can
// be re-serialized bit-exactly and so workers can detect its presence (e.g.
// GREASE probing relies on round-tripping extensions the codec doesn't
// otherwise understand).
type UnknownExtension struct {
	Ext ExtensionID
	Raw []byte
}

func (e *UnknownExtension) ID() ExtensionID { return e.Ext }
func (e *UnknownExtension) Marshal() []byte { return append([]byte(nil), e.Raw...) }

// ServerNameExtension carries SNI host names.
type ServerNameExtension struct{ HostName string }

func (e *ServerNameExtension) ID() ExtensionID { return ExtServerName }
func (e *ServerNameExtension) Marshal() []byte {
	name := []byte(e.HostName)
	entry := make([]byte, 3+len(name))
	entry[0] = 0 // name_type: host_name
	putUint16(entry[1:3], len(name))
	copy(entry[3:], name)
	return lengthPrefixed16(entry)
}

// SupportedGroupsExtension lists named curves / FFDHE groups, in preference
// order.
type SupportedGroupsExtension struct{ Groups []uint16 }

func (e *SupportedGroupsExtension) ID() ExtensionID { return ExtSupportedGroups }
func (e *SupportedGroupsExtension) Marshal() []byte {
	body := make([]byte, 2*len(e.Groups))
	for i, g := range e.Groups {
		putUint16(body[i*2:], int(g))
	}
	return lengthPrefixed16(body)
}

// ECPointFormatsExtension lists supported EC point formats.
type ECPointFormatsExtension struct{ Formats []uint8 }

func (e *ECPointFormatsExtension) ID() ExtensionID { return ExtECPointFormats }
func (e *ECPointFormatsExtension) Marshal() []byte {
	return lengthPrefixed8(e.Formats)
}

// SignatureAlgorithmsExtension lists (scheme) values in preference order.
type SignatureAlgorithmsExtension struct{ Schemes []uint16 }

func (e *SignatureAlgorithmsExtension) ID() ExtensionID { return ExtSignatureAlgorithms }
func (e *SignatureAlgorithmsExtension) Marshal() []byte {
	body := make([]byte, 2*len(e.Schemes))
	for i, s := range e.Schemes {
		putUint16(body[i*2:], int(s))
	}
	return lengthPrefixed16(body)
}

// ALPNExtension lists application-layer protocols in preference order.
type ALPNExtension struct{ Protocols []string }

func (e *ALPNExtension) ID() ExtensionID { return ExtALPN }
func (e *ALPNExtension) Marshal() []byte {
	var body []byte
	for _, p := range e.Protocols {
		body = append(body, byte(len(p)))
		body = append(body, p...)
	}
	return lengthPrefixed16(body)
}

// SupportedVersionsExtension is the TLS 1.3 signal carrying the client's
// preference-ordered list of offered versions.
type SupportedVersionsExtension struct{ Versions []ProtocolVersion }

func (e *SupportedVersionsExtension) ID() ExtensionID { return ExtSupportedVersions }
func (e *SupportedVersionsExtension) Marshal() []byte {
	body := make([]byte, 2*len(e.Versions))
	for i, v := range e.Versions {
		putUint16(body[i*2:], int(v))
	}
	return lengthPrefixed8(body)
}

// KeyShareEntry is one (group, key_exchange) pair offered or selected.
type KeyShareEntry struct {
	Group      uint16
	KeyExchange []byte
}

// KeyShareExtension carries the client's (or server's) key_share entries.
type KeyShareExtension struct{ Entries []KeyShareEntry }

func (e *KeyShareExtension) ID() ExtensionID { return ExtKeyShare }
func (e *KeyShareExtension) Marshal() []byte {
	var body []byte
	for _, ks := range e.Entries {
		entry := make([]byte, 4+len(ks.KeyExchange))
		putUint16(entry[0:2], int(ks.Group))
		putUint16(entry[2:4], len(ks.KeyExchange))
		copy(entry[4:], ks.KeyExchange)
		body = append(body, entry...)
	}
	return lengthPrefixed16(body)
}

// PSKKeyExchangeModesExtension advertises the PSK modes the client supports.
type PSKKeyExchangeModesExtension struct{ Modes []uint8 }

func (e *PSKKeyExchangeModesExtension) ID() ExtensionID { return ExtPSKKeyExchangeModes }
func (e *PSKKeyExchangeModesExtension) Marshal() []byte { return lengthPrefixed8(e.Modes) }

// EmptyExtension covers zero-length extensions (extended_master_secret,
// encrypt_then_mac, session_ticket when offering an empty one, status_request
// shorthand for the default form).
type EmptyExtension struct{ Ext ExtensionID }

func (e *EmptyExtension) ID() ExtensionID { return e.Ext }
func (e *EmptyExtension) Marshal() []byte { return nil }

// SessionTicketExtension offers (or echoes) an opaque session ticket.
type SessionTicketExtension struct{ Ticket []byte }

func (e *SessionTicketExtension) ID() ExtensionID { return ExtSessionTicket }
func (e *SessionTicketExtension) Marshal() []byte { return append([]byte(nil), e.Ticket...) }

// RenegotiationInfoExtension carries the renegotiation verify data (RFC 5746).
type RenegotiationInfoExtension struct{ VerifyData []byte }

func (e *RenegotiationInfoExtension) ID() ExtensionID { return ExtRenegotiationInfo }
func (e *RenegotiationInfoExtension) Marshal() []byte {
	return lengthPrefixed8(e.VerifyData)
}

// HeartbeatExtension advertises heartbeat mode (RFC 6520): 1 = peer_allowed_to_send.
type HeartbeatExtension struct{ Mode uint8 }

func (e *HeartbeatExtension) ID() ExtensionID { return ExtHeartbeat }
func (e *HeartbeatExtension) Marshal() []byte { return []byte{e.Mode} }

// StatusRequestExtension is the OCSP stapling request (status_type=1, no
// responder IDs / extensions, matching what a client normally sends).
type StatusRequestExtension struct{}

func (e *StatusRequestExtension) ID() ExtensionID { return ExtStatusRequest }
func (e *StatusRequestExtension) Marshal() []byte {
	return []byte{1, 0, 0, 0, 0} // status_type=ocsp, empty responder_id_list, empty extensions
}

// StatusRequestV2Extension is RFC 6961's multi-OCSP variant.
type StatusRequestV2Extension struct{}

func (e *StatusRequestV2Extension) ID() ExtensionID { return ExtStatusRequestV2 }
func (e *StatusRequestV2Extension) Marshal() []byte {
	inner := []byte{2, 0, 5, 1, 0, 0, 0, 0} // ocsp_multi, request: status_type=1, empty id_list/extensions
	return lengthPrefixed16(inner)
}

// GREASEExtension is an RFC 8701 reserved value inserted to detect
// intolerant servers. Any of the sixteen reserved {0x?A?A} ids is valid.
type GREASEExtension struct{ Value uint16 }

func (e *GREASEExtension) ID() ExtensionID { return ExtensionID(e.Value) }
func (e *GREASEExtension) Marshal() []byte { return nil }

// IsGREASE reports whether id is one of the sixteen RFC 8701 reserved values.
func IsGREASE(id uint16) bool {
	return id&0x0f0f == 0x0a0a
}

func putUint16(b []byte, v int) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func lengthPrefixed8(body []byte) []byte {
	out := make([]byte, 1+len(body))
	out[0] = byte(len(body))
	copy(out[1:], body)
	return out
}

func lengthPrefixed16(body []byte) []byte {
	out := make([]byte, 2+len(body))
	putUint16(out[0:2], len(body))
	copy(out[2:], body)
	return out
}
