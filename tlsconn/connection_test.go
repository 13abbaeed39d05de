// SPDX-License-Identifier: Apache-2.0

package tlsconn

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

func plaintextRecord(ct tlswire.ContentType, payload []byte) []byte {
	h := make([]byte, 5)
	h[0] = byte(ct)
	binary.BigEndian.PutUint16(h[1:3], uint16(tlswire.TLS10))
	binary.BigEndian.PutUint16(h[3:5], uint16(len(payload)))
	return append(h, payload...)
}

func TestSendHandshakeWritesRecordAndAppendsTranscript(t *testing.T) {
	client, peer := net.Pipe()
	defer client.Close()
	defer peer.Close()

	conn := Open(client, nil)

	hello := &tlswire.ClientHello{
		ClientVersion:      tlswire.TLS12,
		CipherSuites:       []tlswire.CipherSuite{0xc02f},
		CompressionMethods: []uint8{0},
	}

	done := make(chan error, 1)
	go func() { done <- conn.SendHandshake(hello) }()

	header := make([]byte, 5)
	_, err := readFull(peer, header)
	require.NoError(t, err)
	require.Equal(t, byte(tlswire.ContentHandshake), header[0])
	length := int(binary.BigEndian.Uint16(header[3:5]))

	body := make([]byte, length)
	_, err = readFull(peer, body)
	require.NoError(t, err)
	require.NoError(t, <-done)

	msg, _, err := tlswire.UnmarshalHandshake(body, tlswire.TLS12)
	require.NoError(t, err)
	got, ok := msg.(*tlswire.ClientHello)
	require.True(t, ok)
	require.Equal(t, hello.ClientVersion, got.ClientVersion)

	sum := conn.TranscriptHash(tlswire.HashSHA256)
	require.Len(t, sum, 32)
}

func TestWaitHandshakeAssemblesMessageSplitAcrossRecords(t *testing.T) {
	client, peer := net.Pipe()
	defer client.Close()
	defer peer.Close()

	conn := Open(client, nil)

	sh := &tlswire.ServerHello{
		ServerVersion:     tlswire.TLS12,
		CipherSuite:       0xc02f,
		CompressionMethod: 0,
	}
	wire := tlswire.MarshalHandshake(sh)
	require.True(t, len(wire) > 4, "need a body to split")

	split := 4 + (len(wire)-4)/2
	go func() {
		_, _ = peer.Write(plaintextRecord(tlswire.ContentHandshake, wire[:split]))
		_, _ = peer.Write(plaintextRecord(tlswire.ContentHandshake, wire[split:]))
	}()

	msg, err := conn.WaitHandshake()
	require.NoError(t, err)
	got, ok := msg.(*tlswire.ServerHello)
	require.True(t, ok)
	require.Equal(t, sh.CipherSuite, got.CipherSuite)
}

func TestWaitHandshakeTranslatesServerAlertToNegotiationRefused(t *testing.T) {
	client, peer := net.Pipe()
	defer client.Close()
	defer peer.Close()

	conn := Open(client, nil)

	alert := tlswire.MarshalAlert(&tlswire.Alert{Fatal: true, Description: byte(tlserr.AlertHandshakeFailure)})
	go func() { _, _ = peer.Write(plaintextRecord(tlswire.ContentAlert, alert)) }()

	_, err := conn.WaitHandshake()
	require.Error(t, err)
	refused, ok := err.(*tlserr.NegotiationRefused)
	require.True(t, ok)
	require.Equal(t, tlserr.AlertHandshakeFailure, refused.Alert)
	require.True(t, refused.FromServer)
}

func TestCloseSendsFatalAlertBeforeClosing(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()

	conn := Open(client, nil)

	done := make(chan error, 1)
	go func() { done <- conn.Close(true, tlserr.AlertHandshakeFailure) }()

	header := make([]byte, 5)
	_, err := readFull(peer, header)
	require.NoError(t, err)
	require.Equal(t, byte(tlswire.ContentAlert), header[0])

	body := make([]byte, int(binary.BigEndian.Uint16(header[3:5])))
	_, err = readFull(peer, body)
	require.NoError(t, err)

	alert, err := tlswire.UnmarshalAlert(body)
	require.NoError(t, err)
	require.True(t, alert.Fatal)
	require.Equal(t, byte(tlserr.AlertHandshakeFailure), alert.Description)
	require.NoError(t, <-done)
}

func TestTranscriptHashTwoPhaseMatchesStraightHash(t *testing.T) {
	th := newTranscriptHash()
	th.Append([]byte("client-hello-bytes"))
	th.SetHashAlgorithm(tlswire.HashSHA256)
	th.Append([]byte("server-hello-bytes"))

	got := th.Sum()

	straight := newTranscriptHash()
	straight.SetHashAlgorithm(tlswire.HashSHA256)
	straight.Append([]byte("client-hello-bytes"))
	straight.Append([]byte("server-hello-bytes"))
	want := straight.Sum()

	require.Equal(t, want, got)
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
