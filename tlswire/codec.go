// SPDX-License-Identifier: Apache-2.0

package tlswire

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/tlsmate-go/tlsmate/tlserr"
)

// MarshalHandshake serialises a handshake Message to its wire form: a
// one-byte type, a three-byte length, and the body. The three-byte length
// is why handshake messages cannot exceed 2^24-1 bytes.
func MarshalHandshake(msg Message) []byte {
	body := marshalBody(msg)
	out := make([]byte, 4+len(body))
	out[0] = byte(msg.Kind())
	out[1] = byte(len(body) >> 16)
	out[2] = byte(len(body) >> 8)
	out[3] = byte(len(body))
	copy(out[4:], body)
	return out
}

func marshalBody(msg Message) []byte {
	var b cryptobyte.Builder
	switch m := msg.(type) {
	case *ClientHello:
		b.AddUint16(uint16(m.ClientVersion))
		b.AddBytes(m.Random[:])
		addOpaque8(&b, m.SessionID)
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, cs := range m.CipherSuites {
				b.AddUint16(uint16(cs))
			}
		})
		addOpaque8(&b, m.CompressionMethods)
		addExtensions(&b, m.Extensions)
	case *ServerHello:
		b.AddUint16(uint16(m.ServerVersion))
		b.AddBytes(m.Random[:])
		addOpaque8(&b, m.SessionID)
		b.AddUint16(uint16(m.CipherSuite))
		b.AddUint8(m.CompressionMethod)
		addExtensions(&b, m.Extensions)
	case *Certificate:
		// TLS 1.3 shape (RequestContext non-nil, even if zero-length) adds a
		// request_context prefix and a mandatory, possibly-empty extensions
		// list per entry; TLS <= 1.2 has neither (RFC 5246 §7.4.2 vs. RFC
		// 8446 §4.4.2).
		tls13Shape := m.RequestContext != nil
		if tls13Shape {
			addOpaque8(&b, m.RequestContext)
		}
		b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, c := range m.Chain {
				addOpaque24(b, c.Raw)
				if tls13Shape {
					addExtensions(b, c.Extensions)
				}
			}
		})
	case *ServerKeyExchange:
		b.AddBytes(m.Params)
		if m.HasSignatureScheme {
			b.AddUint16(m.SignatureScheme)
		}
		if m.Signature != nil {
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.Signature) })
		}
	case *CertificateRequest:
		addOpaque8(&b, m.CertificateTypes)
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, s := range m.SignatureSchemes {
				b.AddUint16(s)
			}
		})
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, a := range m.Authorities {
				addOpaque16(b, a)
			}
		})
	case *CertificateStatus:
		b.AddUint8(m.StatusType)
		b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.Response) })
	case *ServerHelloDone:
		// no body
	case *ClientKeyExchange:
		addOpaque16(&b, m.Exchange)
	case *CertificateVerify:
		b.AddUint16(m.SignatureScheme)
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.Signature) })
	case *Finished:
		b.AddBytes(m.VerifyData)
	case *NewSessionTicket:
		b.AddUint32(m.LifetimeHint)
		if len(m.Nonce) > 0 || len(m.Extensions) > 0 {
			b.AddUint32(m.AgeAdd)
			addOpaque8(&b, m.Nonce)
		}
		addOpaque16(&b, m.Ticket)
		if len(m.Extensions) > 0 {
			addExtensions(&b, m.Extensions)
		}
	case *EncryptedExtensions:
		addExtensions(&b, m.Extensions)
	case *KeyUpdate:
		if m.UpdateRequested {
			b.AddUint8(1)
		} else {
			b.AddUint8(0)
		}
	case *HelloRequest:
		// no body
	default:
		return nil
	}
	return b.BytesOrPanic()
}

func addOpaque8(b *cryptobyte.Builder, data []byte) {
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(data) })
}

func addOpaque16(b *cryptobyte.Builder, data []byte) {
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(data) })
}

func addOpaque24(b *cryptobyte.Builder, data []byte) {
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(data) })
}

func addExtensions(b *cryptobyte.Builder, exts []Extension) {
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, e := range exts {
			b.AddUint16(uint16(e.ID()))
			body := e.Marshal()
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(body) })
		}
	})
}

// UnmarshalHandshake reads one framed handshake message (type + 3-byte
// length + body) from data and returns it plus the unconsumed remainder.
// Truncation is reported as tlserr.ProtocolError{Alert: decode_error} per
// . version disambiguates the one handshake type whose wire shape
// actually depends on the negotiated protocol version: Certificate (RFC
// 8446 §4.4.2 adds a request_context and per-entry extensions TLS <= 1.2
// never had). Callers that have not yet negotiated a version (there are
// none on the Certificate path, since it never arrives before ServerHello)
// may pass the zero ProtocolVersion to get the TLS <= 1.2 shape.
func UnmarshalHandshake(data []byte, version ProtocolVersion) (Message, []byte, error) {
	if len(data) < 4 {
		return nil, nil, tlserr.NewDecodeError("handshake header truncated: have %d bytes", len(data))
	}
	typ := HandshakeType(data[0])
	length := int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	if len(data) < 4+length {
		return nil, nil, tlserr.NewDecodeError("handshake body truncated: want %d have %d", length, len(data)-4)
	}
	body := data[4 : 4+length]
	rest := data[4+length:]
	msg, err := unmarshalBody(typ, body, version)
	if err != nil {
		return nil, nil, err
	}
	return msg, rest, nil
}

func unmarshalBody(typ HandshakeType, body []byte, version ProtocolVersion) (Message, error) {
	s := cryptobyte.String(body)
	switch typ {
	case HandshakeClientHello:
		m := &ClientHello{}
		var vers uint16
		if !s.ReadUint16(&vers) || !s.CopyBytes(m.Random[:]) {
			return nil, tlserr.NewDecodeError("client_hello: short header")
		}
		m.ClientVersion = ProtocolVersion(vers)
		var sessID cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&sessID) {
			return nil, tlserr.NewDecodeError("client_hello: session_id")
		}
		m.SessionID = append([]byte(nil), sessID...)
		var suites cryptobyte.String
		if !s.ReadUint16LengthPrefixed(&suites) {
			return nil, tlserr.NewDecodeError("client_hello: cipher_suites")
		}
		for !suites.Empty() {
			var cs uint16
			if !suites.ReadUint16(&cs) {
				return nil, tlserr.NewDecodeError("client_hello: malformed cipher_suites")
			}
			m.CipherSuites = append(m.CipherSuites, CipherSuite(cs))
		}
		var comp cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&comp) {
			return nil, tlserr.NewDecodeError("client_hello: compression_methods")
		}
		m.CompressionMethods = append([]byte(nil), comp...)
		exts, err := readExtensions(&s)
		if err != nil {
			return nil, err
		}
		m.Extensions = exts
		return m, nil

	case HandshakeServerHello:
		m := &ServerHello{}
		var vers uint16
		if !s.ReadUint16(&vers) || !s.CopyBytes(m.Random[:]) {
			return nil, tlserr.NewDecodeError("server_hello: short header")
		}
		m.ServerVersion = ProtocolVersion(vers)
		var sessID cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&sessID) {
			return nil, tlserr.NewDecodeError("server_hello: session_id")
		}
		m.SessionID = append([]byte(nil), sessID...)
		var cs, cm uint8
		var csWide uint16
		if !s.ReadUint16(&csWide) || !s.ReadUint8(&cm) {
			return nil, tlserr.NewDecodeError("server_hello: suite/compression")
		}
		_ = cs
		m.CipherSuite = CipherSuite(csWide)
		m.CompressionMethod = cm
		if !s.Empty() {
			exts, err := readExtensions(&s)
			if err != nil {
				return nil, err
			}
			m.Extensions = exts
		}
		return m, nil

	case HandshakeCertificate:
		m := &Certificate{}
		if version == TLS13 {
			var ctx cryptobyte.String
			if !s.ReadUint8LengthPrefixed(&ctx) {
				return nil, tlserr.NewDecodeError("certificate: request_context")
			}
			m.RequestContext = append([]byte{}, ctx...)
			var chain cryptobyte.String
			if !s.ReadUint24LengthPrefixed(&chain) {
				return nil, tlserr.NewDecodeError("certificate: chain")
			}
			for !chain.Empty() {
				var raw cryptobyte.String
				if !chain.ReadUint24LengthPrefixed(&raw) {
					return nil, tlserr.NewDecodeError("certificate: entry")
				}
				exts, eerr := readExtensions(&chain)
				if eerr != nil {
					return nil, eerr
				}
				m.Chain = append(m.Chain, CertificateEntry{Raw: append([]byte(nil), raw...), Extensions: exts})
			}
			return m, nil
		}
		var chain cryptobyte.String
		if !s.ReadUint24LengthPrefixed(&chain) {
			return nil, tlserr.NewDecodeError("certificate: chain")
		}
		for !chain.Empty() {
			var raw cryptobyte.String
			if !chain.ReadUint24LengthPrefixed(&raw) {
				return nil, tlserr.NewDecodeError("certificate: entry")
			}
			m.Chain = append(m.Chain, CertificateEntry{Raw: append([]byte(nil), raw...)})
		}
		return m, nil

	case HandshakeServerKeyExchange:
		return &ServerKeyExchange{Params: append([]byte(nil), body...)}, nil

	case HandshakeCertificateRequest:
		m := &CertificateRequest{}
		var types cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&types) {
			return nil, tlserr.NewDecodeError("certificate_request: types")
		}
		m.CertificateTypes = append([]byte(nil), types...)
		var schemes cryptobyte.String
		if !s.ReadUint16LengthPrefixed(&schemes) {
			return nil, tlserr.NewDecodeError("certificate_request: schemes")
		}
		for !schemes.Empty() {
			var sch uint16
			if !schemes.ReadUint16(&sch) {
				return nil, tlserr.NewDecodeError("certificate_request: scheme")
			}
			m.SignatureSchemes = append(m.SignatureSchemes, sch)
		}
		return m, nil

	case HandshakeCertificateStatus:
		m := &CertificateStatus{}
		if !s.ReadUint8(&m.StatusType) {
			return nil, tlserr.NewDecodeError("certificate_status: status_type")
		}
		var resp cryptobyte.String
		if !s.ReadUint24LengthPrefixed(&resp) {
			return nil, tlserr.NewDecodeError("certificate_status: response")
		}
		m.Response = append([]byte(nil), resp...)
		return m, nil

	case HandshakeServerHelloDone:
		return &ServerHelloDone{}, nil

	case HandshakeClientKeyExchange:
		return &ClientKeyExchange{Exchange: append([]byte(nil), body...)}, nil

	case HandshakeCertificateVerify:
		m := &CertificateVerify{}
		if !s.ReadUint16(&m.SignatureScheme) {
			return nil, tlserr.NewDecodeError("certificate_verify: scheme")
		}
		var sig cryptobyte.String
		if !s.ReadUint16LengthPrefixed(&sig) {
			return nil, tlserr.NewDecodeError("certificate_verify: signature")
		}
		m.Signature = append([]byte(nil), sig...)
		return m, nil

	case HandshakeFinished:
		return &Finished{VerifyData: append([]byte(nil), body...)}, nil

	case HandshakeNewSessionTicket:
		m := &NewSessionTicket{}
		if !s.ReadUint32(&m.LifetimeHint) {
			return nil, tlserr.NewDecodeError("new_session_ticket: lifetime_hint")
		}
		var ticket cryptobyte.String
		if !s.ReadUint16LengthPrefixed(&ticket) {
			return nil, tlserr.NewDecodeError("new_session_ticket: ticket")
		}
		m.Ticket = append([]byte(nil), ticket...)
		return m, nil

	case HandshakeEncryptedExtensions:
		m := &EncryptedExtensions{}
		exts, err := readExtensions(&s)
		if err != nil {
			return nil, err
		}
		m.Extensions = exts
		return m, nil

	case HandshakeKeyUpdate:
		var v uint8
		if !s.ReadUint8(&v) {
			return nil, tlserr.NewDecodeError("key_update: body")
		}
		return &KeyUpdate{UpdateRequested: v == 1}, nil

	case HandshakeHelloRequest:
		return &HelloRequest{}, nil

	default:
		return &Any{CT: ContentHandshake, Body: append([]byte(nil), body...)}, nil
	}
}

func readExtensions(s *cryptobyte.String) ([]Extension, error) {
	if s.Empty() {
		return nil, nil
	}
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) {
		return nil, tlserr.NewDecodeError("extensions: length")
	}
	var out []Extension
	for !list.Empty() {
		var id uint16
		var body cryptobyte.String
		if !list.ReadUint16(&id) || !list.ReadUint16LengthPrefixed(&body) {
			return nil, tlserr.NewDecodeError("extensions: malformed entry")
		}
		out = append(out, decodeExtension(ExtensionID(id), []byte(body)))
	}
	return out, nil
}

// decodeExtension parses the extensions our workers actually inspect;
// anything else round-trips as UnknownExtension.
func decodeExtension(id ExtensionID, body []byte) Extension {
	switch id {
	case ExtServerName:
		s := cryptobyte.String(body)
		var list, name cryptobyte.String
		var nameType uint8
		if s.ReadUint16LengthPrefixed(&list) && list.ReadUint8(&nameType) && nameType == 0 && list.ReadUint16LengthPrefixed(&name) {
			return &ServerNameExtension{HostName: string(name)}
		}
	case ExtSupportedVersions:
		if n := len(body); n >= 3 && n%2 == 1 && int(body[0]) == n-1 {
			// client_hello form: one-byte list length, then 2-byte versions
			var versions []ProtocolVersion
			for i := 1; i+1 < n; i += 2 {
				versions = append(versions, ProtocolVersion(uint16(body[i])<<8|uint16(body[i+1])))
			}
			return &SupportedVersionsExtension{Versions: versions}
		}
		// server_hello form: single 2-byte version, no length prefix
		if len(body) == 2 {
			return &SupportedVersionsExtension{Versions: []ProtocolVersion{ProtocolVersion(uint16(body[0])<<8 | uint16(body[1]))}}
		}
	case ExtSupportedGroups:
		s := cryptobyte.String(body)
		var list cryptobyte.String
		if s.ReadUint16LengthPrefixed(&list) {
			var groups []uint16
			for !list.Empty() {
				var g uint16
				if !list.ReadUint16(&g) {
					break
				}
				groups = append(groups, g)
			}
			return &SupportedGroupsExtension{Groups: groups}
		}
	case ExtKeyShare:
		s := cryptobyte.String(body)
		// Server form: single entry with no outer length prefix.
		if len(body) > 0 {
			var group uint16
			var ke cryptobyte.String
			if s.ReadUint16(&group) && s.ReadUint16LengthPrefixed(&ke) {
				return &KeyShareExtension{Entries: []KeyShareEntry{{Group: group, KeyExchange: append([]byte(nil), ke...)}}}
			}
		}
	case ExtRenegotiationInfo:
		if len(body) >= 1 {
			return &RenegotiationInfoExtension{VerifyData: append([]byte(nil), body[1:]...)}
		}
	case ExtSessionTicket:
		return &SessionTicketExtension{Ticket: append([]byte(nil), body...)}
	case ExtALPN:
		s := cryptobyte.String(body)
		var list cryptobyte.String
		var protos []string
		if s.ReadUint16LengthPrefixed(&list) {
			for !list.Empty() {
				var p cryptobyte.String
				if !list.ReadUint8LengthPrefixed(&p) {
					break
				}
				protos = append(protos, string(p))
			}
			return &ALPNExtension{Protocols: protos}
		}
	case ExtHeartbeat:
		if len(body) == 1 {
			return &HeartbeatExtension{Mode: body[0]}
		}
	case ExtEncryptThenMAC, ExtExtendedMasterSecret:
		return &EmptyExtension{Ext: id}
	}
	if IsGREASE(uint16(id)) {
		return &GREASEExtension{Value: uint16(id)}
	}
	return &UnknownExtension{Ext: id, Raw: append([]byte(nil), body...)}
}

// MarshalAlert serialises a two-byte alert message.
func MarshalAlert(a *Alert) []byte {
	level := byte(1)
	if a.Fatal {
		level = 2
	}
	return []byte{level, a.Description}
}

// UnmarshalAlert parses a two-byte alert message.
func UnmarshalAlert(data []byte) (*Alert, error) {
	if len(data) != 2 {
		return nil, tlserr.NewDecodeError("alert: want 2 bytes, have %d", len(data))
	}
	return &Alert{Fatal: data[0] == 2, Description: data[1]}, nil
}

// MarshalChangeCipherSpec serialises the single-byte CCS message.
func MarshalChangeCipherSpec() []byte { return []byte{1} }

// UnmarshalChangeCipherSpec validates the single-byte CCS message.
func UnmarshalChangeCipherSpec(data []byte) (*ChangeCipherSpec, error) {
	if len(data) != 1 || data[0] != 1 {
		return nil, tlserr.NewDecodeError("change_cipher_spec: malformed body")
	}
	return &ChangeCipherSpec{}, nil
}

// MarshalHeartbeat serialises a heartbeat message honouring a possibly
// deliberately wrong PayloadLength (used by the heartbleed worker).
func MarshalHeartbeat(h *Heartbeat) []byte {
	out := make([]byte, 1+2+len(h.Payload)+len(h.Padding))
	out[0] = byte(h.Type)
	out[1] = byte(h.PayloadLength >> 8)
	out[2] = byte(h.PayloadLength)
	copy(out[3:], h.Payload)
	copy(out[3+len(h.Payload):], h.Padding)
	return out
}

// UnmarshalHeartbeat parses a heartbeat message without validating that
// PayloadLength matches len(Payload) -- that mismatch is exactly what the
// heartbleed worker is checking for.
func UnmarshalHeartbeat(data []byte) (*Heartbeat, error) {
	if len(data) < 3 {
		return nil, tlserr.NewDecodeError("heartbeat: truncated header")
	}
	h := &Heartbeat{Type: HeartbeatMessageType(data[0]), PayloadLength: uint16(data[1])<<8 | uint16(data[2])}
	rest := data[3:]
	n := int(h.PayloadLength)
	if n > len(rest) {
		n = len(rest)
	}
	h.Payload = append([]byte(nil), rest[:n]...)
	h.Padding = append([]byte(nil), rest[n:]...)
	return h, nil
}
