// SPDX-License-Identifier: Apache-2.0

package tlscrypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tlsmate-go/tlsmate/tlswire"
)

func TestAEADRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	fixedIV := make([]byte, 12)
	for i := range key {
		key[i] = byte(i)
	}
	a, err := NewAEAD(tlswire.BulkCipher{Primitive: tlswire.PrimitiveAES, EncKeyLen: 16}, key, fixedIV, true)
	require.NoError(t, err)

	aad := []byte("header")
	pt := []byte("application data")
	ct := a.Seal(3, nil, aad, pt)

	got, err := a.Open(3, nil, aad, ct)
	require.NoError(t, err)
	require.Equal(t, pt, got)

	_, err = a.Open(4, nil, aad, ct)
	require.Error(t, err)
}

func TestCBCRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	c, err := NewCBCCipher(tlswire.BulkCipher{Primitive: tlswire.PrimitiveAES, BlockSize: 16}, key)
	require.NoError(t, err)

	pt := []byte("some plaintext that spans blocks of data")
	record, err := c.Encrypt(pt)
	require.NoError(t, err)

	got, err := c.Decrypt(record)
	require.NoError(t, err)
	require.Equal(t, pt, got)
}

func TestCBCDecryptRejectsMalformedPadding(t *testing.T) {
	key := make([]byte, 16)
	c, err := NewCBCCipher(tlswire.BulkCipher{Primitive: tlswire.PrimitiveAES, BlockSize: 16}, key)
	require.NoError(t, err)

	record, err := c.Encrypt([]byte("hello"))
	require.NoError(t, err)
	record[len(record)-1] ^= 0xff

	_, err = c.Decrypt(record)
	require.Error(t, err)
}

func TestPRF12Deterministic(t *testing.T) {
	secret := []byte("secret")
	seed := []byte("seed")
	out1, err := PRF12(tlswire.HashSHA256, secret, "master secret", seed, 48)
	require.NoError(t, err)
	out2, err := PRF12(tlswire.HashSHA256, secret, "master secret", seed, 48)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
	require.Len(t, out1, 48)
}

func TestHKDFExpandLabelLength(t *testing.T) {
	secret := make([]byte, 32)
	out, err := HKDFExpandLabel(tlswire.HashSHA256, secret, "derived", nil, 32)
	require.NoError(t, err)
	require.Len(t, out, 32)
}

func TestX25519SharedSecretMatches(t *testing.T) {
	a, err := GenerateX25519()
	require.NoError(t, err)
	b, err := GenerateX25519()
	require.NoError(t, err)

	s1, err := X25519SharedSecret(a, b.Public[:])
	require.NoError(t, err)
	s2, err := X25519SharedSecret(b, a.Public[:])
	require.NoError(t, err)
	require.Equal(t, s1, s2)
}

func TestECDHSharedSecretMatches(t *testing.T) {
	a, err := GenerateECDH(GroupSecp256r1)
	require.NoError(t, err)
	b, err := GenerateECDH(GroupSecp256r1)
	require.NoError(t, err)

	s1, err := ECDHSharedSecret(a, b.Public)
	require.NoError(t, err)
	s2, err := ECDHSharedSecret(b, a.Public)
	require.NoError(t, err)
	require.Equal(t, s1, s2)
}
