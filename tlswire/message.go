// SPDX-License-Identifier: Apache-2.0

package tlswire

// ContentType is the record-layer content-type classification each Message
// carries.
type ContentType uint8

const (
	ContentChangeCipherSpec ContentType = 20
	ContentAlert            ContentType = 21
	ContentHandshake        ContentType = 22
	ContentApplicationData  ContentType = 23
	ContentHeartbeat        ContentType = 24
)

// HandshakeType is the one-byte handshake message type tag.
type HandshakeType uint8

const (
	HandshakeHelloRequest       HandshakeType = 0
	HandshakeClientHello        HandshakeType = 1
	HandshakeServerHello        HandshakeType = 2
	HandshakeNewSessionTicket   HandshakeType = 4
	HandshakeEncryptedExtensions HandshakeType = 8
	HandshakeCertificate        HandshakeType = 11
	HandshakeServerKeyExchange  HandshakeType = 12
	HandshakeCertificateRequest HandshakeType = 13
	HandshakeCertificateStatus  HandshakeType = 22
	HandshakeServerHelloDone    HandshakeType = 14
	HandshakeCertificateVerify  HandshakeType = 15
	HandshakeClientKeyExchange  HandshakeType = 16
	HandshakeFinished           HandshakeType = 20
	HandshakeKeyUpdate          HandshakeType = 24
)

// Message is the tagged-variant interface every parsed TLS message
// implements (design note: "runtime-dispatched message classes -> tagged
// variants").
type Message interface {
	ContentType() ContentType
	// Kind distinguishes variants within handshake messages; for
	// non-handshake content types it returns 0xff.
	Kind() HandshakeType
}

// ClientHello is the message the client sends to open a handshake.
type ClientHello struct {
	ClientVersion      ProtocolVersion
	Random             [32]byte
	SessionID          []byte
	CipherSuites       []CipherSuite
	CompressionMethods []uint8
	Extensions         []Extension
}

func (m *ClientHello) ContentType() ContentType { return ContentHandshake }
func (m *ClientHello) Kind() HandshakeType       { return HandshakeClientHello }

// ServerHello is the server's response selecting version, suite, and
// extensions from the client's offer.
type ServerHello struct {
	ServerVersion     ProtocolVersion
	Random            [32]byte
	SessionID         []byte
	CipherSuite       CipherSuite
	CompressionMethod uint8
	Extensions        []Extension
}

func (m *ServerHello) ContentType() ContentType { return ContentHandshake }
func (m *ServerHello) Kind() HandshakeType       { return HandshakeServerHello }

// CertificateEntry is one DER certificate, optionally followed (TLS 1.3)
// by per-certificate extensions.
type CertificateEntry struct {
	Raw        []byte
	Extensions []Extension
}

// Certificate carries the server's (or client's) certificate chain,
// leaf-first.
type Certificate struct {
	RequestContext []byte // TLS 1.3 only; empty in the server's Certificate
	Chain          []CertificateEntry
}

func (m *Certificate) ContentType() ContentType { return ContentHandshake }
func (m *Certificate) Kind() HandshakeType       { return HandshakeCertificate }

// ServerKeyExchange carries key-exchange-method-specific parameters plus,
// for signed methods, the signature algorithm and signature over
// client_random || server_random || params. The codec does not interpret
// Params; the key-exchange engine (tlskex) does, based on the negotiated
// KeyExchangeMethod.
type ServerKeyExchange struct {
	Params            []byte
	SignatureScheme   uint16
	HasSignatureScheme bool
	Signature         []byte
}

func (m *ServerKeyExchange) ContentType() ContentType { return ContentHandshake }
func (m *ServerKeyExchange) Kind() HandshakeType       { return HandshakeServerKeyExchange }

// CertificateRequest asks the client to present a certificate.
type CertificateRequest struct {
	CertificateTypes []uint8
	SignatureSchemes []uint16
	Authorities      [][]byte
}

func (m *CertificateRequest) ContentType() ContentType { return ContentHandshake }
func (m *CertificateRequest) Kind() HandshakeType       { return HandshakeCertificateRequest }

// CertificateStatus carries the stapled OCSP response for TLS <= 1.2
// (RFC 6066/6961); TLS 1.3 staples the same response as a per-certificate
// extension on the Certificate message instead, so this type never appears
// in a 1.3 handshake.
type CertificateStatus struct {
	StatusType uint8 // 1 = ocsp
	Response   []byte
}

func (m *CertificateStatus) ContentType() ContentType { return ContentHandshake }
func (m *CertificateStatus) Kind() HandshakeType       { return HandshakeCertificateStatus }

// ServerHelloDone marks the end of the server's first flight.
type ServerHelloDone struct{}

func (m *ServerHelloDone) ContentType() ContentType { return ContentHandshake }
func (m *ServerHelloDone) Kind() HandshakeType       { return HandshakeServerHelloDone }

// ClientKeyExchange carries the client's share of the key agreement: an
// RSA-encrypted premaster secret, or a client ephemeral public value.
type ClientKeyExchange struct {
	Exchange []byte
}

func (m *ClientKeyExchange) ContentType() ContentType { return ContentHandshake }
func (m *ClientKeyExchange) Kind() HandshakeType       { return HandshakeClientKeyExchange }

// CertificateVerify carries the client's signature over the transcript,
// sent only when the server requested a client certificate.
type CertificateVerify struct {
	SignatureScheme uint16
	Signature       []byte
}

func (m *CertificateVerify) ContentType() ContentType { return ContentHandshake }
func (m *CertificateVerify) Kind() HandshakeType       { return HandshakeCertificateVerify }

// Finished carries verify_data computed over the transcript hash.
type Finished struct {
	VerifyData []byte
}

func (m *Finished) ContentType() ContentType { return ContentHandshake }
func (m *Finished) Kind() HandshakeType       { return HandshakeFinished }

// NewSessionTicket carries a session ticket. The TLS <= 1.2 shape is
// lifetime_hint + opaque ticket; AgeAdd, Nonce and Extensions hold the TLS
// 1.3 fields. MarshalHandshake writes them when Nonce or Extensions is
// non-empty; UnmarshalHandshake reads only the TLS <= 1.2 shape and leaves
// them unset.
type NewSessionTicket struct {
	LifetimeHint uint32
	AgeAdd       uint32 // TLS 1.3 only
	Nonce        []byte // TLS 1.3 only
	Ticket       []byte
	Extensions   []Extension // TLS 1.3 only
}

func (m *NewSessionTicket) ContentType() ContentType { return ContentHandshake }
func (m *NewSessionTicket) Kind() HandshakeType       { return HandshakeNewSessionTicket }

// EncryptedExtensions is the TLS 1.3 message following ServerHello carrying
// extensions that are not needed to select parameters for the remainder of
// the handshake.
type EncryptedExtensions struct {
	Extensions []Extension
}

func (m *EncryptedExtensions) ContentType() ContentType { return ContentHandshake }
func (m *EncryptedExtensions) Kind() HandshakeType       { return HandshakeEncryptedExtensions }

// KeyUpdate requests or informs of a TLS 1.3 traffic secret rotation.
type KeyUpdate struct {
	UpdateRequested bool
}

func (m *KeyUpdate) ContentType() ContentType { return ContentHandshake }
func (m *KeyUpdate) Kind() HandshakeType       { return HandshakeKeyUpdate }

// HelloRequest signals the server wants the client to renegotiate.
type HelloRequest struct{}

func (m *HelloRequest) ContentType() ContentType { return ContentHandshake }
func (m *HelloRequest) Kind() HandshakeType       { return HandshakeHelloRequest }

// HeartbeatMessageType distinguishes request from response (RFC 6520).
type HeartbeatMessageType uint8

const (
	HeartbeatRequestType  HeartbeatMessageType = 1
	HeartbeatResponseType HeartbeatMessageType = 2
)

// Heartbeat carries a (possibly deliberately mismatched) payload length and
// padding, used verbatim by the heartbleed worker to craft malformed probes.
type Heartbeat struct {
	Type          HeartbeatMessageType
	PayloadLength uint16 // advertised length; may exceed len(Payload)
	Payload       []byte
	Padding       []byte
}

func (m *Heartbeat) ContentType() ContentType { return ContentHeartbeat }
func (m *Heartbeat) Kind() HandshakeType       { return 0xff }

// Alert is a two-byte {level, description} message.
type Alert struct {
	Fatal       bool
	Description uint8
}

func (m *Alert) ContentType() ContentType { return ContentAlert }
func (m *Alert) Kind() HandshakeType       { return 0xff }

// ChangeCipherSpec is the single-byte CCS message.
type ChangeCipherSpec struct{}

func (m *ChangeCipherSpec) ContentType() ContentType { return ContentChangeCipherSpec }
func (m *ChangeCipherSpec) Kind() HandshakeType       { return 0xff }

// ApplicationData is an opaque application-data record fragment; the core
// offers no API above sending/receiving this verbatim.
type ApplicationData struct {
	Data []byte
}

func (m *ApplicationData) ContentType() ContentType { return ContentApplicationData }
func (m *ApplicationData) Kind() HandshakeType       { return 0xff }

// Any is the opaque fallback for a message the codec could frame (content
// type + length) but did not parse further, e.g. a deliberately malformed
// or recorder-injected body under test.
type Any struct {
	CT   ContentType
	Body []byte
}

func (m *Any) ContentType() ContentType { return m.CT }
func (m *Any) Kind() HandshakeType       { return 0xff }
