// SPDX-License-Identifier: Apache-2.0

package tlswire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientHelloRoundTrip(t *testing.T) {
	ch := &ClientHello{
		ClientVersion: TLS12,
		SessionID:     []byte{1, 2, 3},
		CipherSuites:  []CipherSuite{0xc02f, 0xc030, 0x1301},
		CompressionMethods: []uint8{0},
		Extensions: []Extension{
			&ServerNameExtension{HostName: "example.com"},
			&SupportedGroupsExtension{Groups: []uint16{0x001d, 0x0017}},
			&SignatureAlgorithmsExtension{Schemes: []uint16{0x0403, 0x0804}},
			&SupportedVersionsExtension{Versions: []ProtocolVersion{TLS13, TLS12}},
		},
	}
	for i := range ch.Random {
		ch.Random[i] = byte(i)
	}

	wire := MarshalHandshake(ch)
	require.Equal(t, HandshakeClientHello, HandshakeType(wire[0]))

	parsed, rest, err := UnmarshalHandshake(wire, TLS12)
	require.NoError(t, err)
	require.Empty(t, rest)

	got, ok := parsed.(*ClientHello)
	require.True(t, ok)
	require.Equal(t, ch.ClientVersion, got.ClientVersion)
	require.Equal(t, ch.Random, got.Random)
	require.Equal(t, ch.SessionID, got.SessionID)
	require.Equal(t, ch.CipherSuites, got.CipherSuites)
	require.Len(t, got.Extensions, len(ch.Extensions))

	sni, ok := got.Extensions[0].(*ServerNameExtension)
	require.True(t, ok)
	require.Equal(t, "example.com", sni.HostName)

	groups, ok := got.Extensions[1].(*SupportedGroupsExtension)
	require.True(t, ok)
	require.Equal(t, []uint16{0x001d, 0x0017}, groups.Groups)

	versions, ok := got.Extensions[3].(*SupportedVersionsExtension)
	require.True(t, ok)
	require.Equal(t, []ProtocolVersion{TLS13, TLS12}, versions.Versions)
}

func TestServerHelloRoundTrip(t *testing.T) {
	sh := &ServerHello{
		ServerVersion:     TLS12,
		SessionID:         []byte{9, 9},
		CipherSuite:       0xc02f,
		CompressionMethod: 0,
		Extensions: []Extension{
			&RenegotiationInfoExtension{VerifyData: []byte{0xaa, 0xbb}},
		},
	}
	wire := MarshalHandshake(sh)
	parsed, rest, err := UnmarshalHandshake(wire, TLS12)
	require.NoError(t, err)
	require.Empty(t, rest)

	got := parsed.(*ServerHello)
	require.Equal(t, sh.CipherSuite, got.CipherSuite)
	ri, ok := got.Extensions[0].(*RenegotiationInfoExtension)
	require.True(t, ok)
	require.Equal(t, []byte{0xaa, 0xbb}, ri.VerifyData)
}

func TestCertificateRoundTripTLS13Shape(t *testing.T) {
	cert := &Certificate{
		RequestContext: []byte{},
		Chain: []CertificateEntry{
			{Raw: []byte{0xde, 0xad, 0xbe, 0xef}, Extensions: []Extension{&UnknownExtension{Ext: ExtStatusRequest, Raw: []byte{1, 2, 3}}}},
			{Raw: []byte{0x01, 0x02}},
		},
	}
	wire := MarshalHandshake(cert)
	parsed, rest, err := UnmarshalHandshake(wire, TLS13)
	require.NoError(t, err)
	require.Empty(t, rest)

	got := parsed.(*Certificate)
	require.NotNil(t, got.RequestContext)
	require.Len(t, got.Chain, 2)
	require.Equal(t, cert.Chain[0].Raw, got.Chain[0].Raw)
	require.Len(t, got.Chain[0].Extensions, 1)
	require.Equal(t, ExtStatusRequest, got.Chain[0].Extensions[0].ID())
	require.Empty(t, got.Chain[1].Extensions)
}

func TestCertificateRoundTripTLS12Shape(t *testing.T) {
	cert := &Certificate{
		Chain: []CertificateEntry{{Raw: []byte{0xaa, 0xbb, 0xcc}}},
	}
	wire := MarshalHandshake(cert)
	parsed, rest, err := UnmarshalHandshake(wire, TLS12)
	require.NoError(t, err)
	require.Empty(t, rest)

	got := parsed.(*Certificate)
	require.Nil(t, got.RequestContext)
	require.Len(t, got.Chain, 1)
	require.Equal(t, cert.Chain[0].Raw, got.Chain[0].Raw)
}

func TestUnmarshalHandshakeTruncated(t *testing.T) {
	_, _, err := UnmarshalHandshake([]byte{0x01, 0x00, 0x00}, TLS12)
	require.Error(t, err)

	_, _, err = UnmarshalHandshake([]byte{0x01, 0x00, 0x00, 0x10}, TLS12)
	require.Error(t, err)
}

func TestFinishedRoundTrip(t *testing.T) {
	f := &Finished{VerifyData: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}
	wire := MarshalHandshake(f)
	parsed, rest, err := UnmarshalHandshake(wire, TLS12)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, f.VerifyData, parsed.(*Finished).VerifyData)
}

func TestUnknownExtensionRoundTrips(t *testing.T) {
	ext := decodeExtension(ExtensionID(0x9999), []byte{0xde, 0xad, 0xbe, 0xef})
	unk, ok := ext.(*UnknownExtension)
	require.True(t, ok)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, unk.Marshal())
}

func TestGREASEExtensionDetected(t *testing.T) {
	ext := decodeExtension(ExtensionID(0x0a0a), nil)
	_, ok := ext.(*GREASEExtension)
	require.True(t, ok)
}

func TestHeartbeatAllowsMismatchedLength(t *testing.T) {
	hb := &Heartbeat{Type: HeartbeatRequestType, PayloadLength: 0xffff, Payload: []byte("hi"), Padding: make([]byte, 16)}
	wire := MarshalHeartbeat(hb)
	parsed, err := UnmarshalHeartbeat(wire)
	require.NoError(t, err)
	require.Equal(t, uint16(0xffff), parsed.PayloadLength)
	require.Equal(t, []byte("hi"), parsed.Payload)
}

func TestAlertRoundTrip(t *testing.T) {
	a := &Alert{Fatal: true, Description: byte(AlertHandshakeFailureID)}
	wire := MarshalAlert(a)
	parsed, err := UnmarshalAlert(wire)
	require.NoError(t, err)
	require.Equal(t, a.Fatal, parsed.Fatal)
	require.Equal(t, a.Description, parsed.Description)
}

const AlertHandshakeFailureID = 40
