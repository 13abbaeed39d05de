// SPDX-License-Identifier: Apache-2.0

package tlsrecord

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tlsmate-go/tlsmate/tlswire"
)

func aeadSuite() tlswire.CipherSuiteInfo {
	info, _ := tlswire.LookupCipherSuite(0x1301) // TLS_AES_128_GCM_SHA256
	return info
}

func TestAEADRecordRoundTripTLS13(t *testing.T) {
	key := make([]byte, 16)
	fixedIV := make([]byte, 12)
	km := KeyMaterial{BulkKey: key, FixedIV: fixedIV, TLS13: true}

	writeState, err := Rekey(aeadSuite(), tlswire.TLS13, km)
	require.NoError(t, err)
	readState, err := Rekey(aeadSuite(), tlswire.TLS13, km)
	require.NoError(t, err)

	rec, err := writeState.Protect(tlswire.ContentHandshake, []byte("finished-verify-data"))
	require.NoError(t, err)

	// header(5) + explicit_nonce(0, tls13 derives nonce from seq) + ciphertext + inner content type
	require.Equal(t, byte(tlswire.ContentApplicationData), rec[0])

	ct, plaintext, err := readState.Unprotect(tlswire.ContentType(rec[0]), rec[5:])
	require.NoError(t, err)
	require.Equal(t, tlswire.ContentHandshake, ct)
	require.Equal(t, []byte("finished-verify-data"), plaintext)
}

func TestAEADRecordRoundTripTLS12(t *testing.T) {
	key := make([]byte, 16)
	fixedIV := make([]byte, 4)
	km := KeyMaterial{BulkKey: key, FixedIV: fixedIV, TLS13: false}

	info, _ := tlswire.LookupCipherSuite(0xc02f)
	writeState, err := Rekey(info, tlswire.TLS12, km)
	require.NoError(t, err)
	readState, err := Rekey(info, tlswire.TLS12, km)
	require.NoError(t, err)

	rec, err := writeState.Protect(tlswire.ContentApplicationData, []byte("hello"))
	require.NoError(t, err)

	ct, plaintext, err := readState.Unprotect(tlswire.ContentType(rec[0]), rec[5:])
	require.NoError(t, err)
	require.Equal(t, tlswire.ContentApplicationData, ct)
	require.Equal(t, []byte("hello"), plaintext)
}

func TestCBCRecordRoundTrip(t *testing.T) {
	info, _ := tlswire.LookupCipherSuite(0xc013) // ECDHE_RSA_AES128_CBC_SHA
	km := KeyMaterial{BulkKey: make([]byte, 16), MACKey: make([]byte, 20)}

	writeState, err := Rekey(info, tlswire.TLS12, km)
	require.NoError(t, err)
	readState, err := Rekey(info, tlswire.TLS12, km)
	require.NoError(t, err)

	rec, err := writeState.Protect(tlswire.ContentApplicationData, []byte("application payload"))
	require.NoError(t, err)

	ct, plaintext, err := readState.Unprotect(tlswire.ContentType(rec[0]), rec[5:])
	require.NoError(t, err)
	require.Equal(t, tlswire.ContentApplicationData, ct)
	require.Equal(t, []byte("application payload"), plaintext)
}

func TestCBCRecordRoundTripEncryptThenMAC(t *testing.T) {
	info, _ := tlswire.LookupCipherSuite(0xc013) // ECDHE_RSA_AES128_CBC_SHA
	km := KeyMaterial{BulkKey: make([]byte, 16), MACKey: make([]byte, 20), EncryptThenMAC: true}

	writeState, err := Rekey(info, tlswire.TLS12, km)
	require.NoError(t, err)
	readState, err := Rekey(info, tlswire.TLS12, km)
	require.NoError(t, err)

	rec, err := writeState.Protect(tlswire.ContentApplicationData, []byte("application payload"))
	require.NoError(t, err)

	ct, plaintext, err := readState.Unprotect(tlswire.ContentType(rec[0]), rec[5:])
	require.NoError(t, err)
	require.Equal(t, tlswire.ContentApplicationData, ct)
	require.Equal(t, []byte("application payload"), plaintext)
}

func TestCBCRecordEncryptThenMACRejectsTamperedCiphertext(t *testing.T) {
	info, _ := tlswire.LookupCipherSuite(0xc013)
	km := KeyMaterial{BulkKey: make([]byte, 16), MACKey: make([]byte, 20), EncryptThenMAC: true}

	writeState, err := Rekey(info, tlswire.TLS12, km)
	require.NoError(t, err)
	readState, err := Rekey(info, tlswire.TLS12, km)
	require.NoError(t, err)

	rec, err := writeState.Protect(tlswire.ContentApplicationData, []byte("application payload"))
	require.NoError(t, err)

	// Flipping the trailing byte corrupts the MAC tag; EtM must catch this
	// before ever touching CBC decryption/padding.
	rec[len(rec)-1] ^= 0x01
	_, _, err = readState.Unprotect(tlswire.ContentType(rec[0]), rec[5:])
	require.Error(t, err)
}

func TestLayerFragmentsLargePayload(t *testing.T) {
	var buf bytes.Buffer
	layer := NewLayer(&buf)

	payload := bytes.Repeat([]byte{0x42}, MaxFragment+10)
	require.NoError(t, layer.SendFragment(tlswire.ContentApplicationData, payload))

	readLayer := NewLayer(&buf)
	ct1, p1, err := readLayer.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, tlswire.ContentApplicationData, ct1)
	require.Len(t, p1, MaxFragment)

	ct2, p2, err := readLayer.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, tlswire.ContentApplicationData, ct2)
	require.Len(t, p2, 10)
}
