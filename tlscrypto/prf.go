// SPDX-License-Identifier: Apache-2.0

package tlscrypto

import (
	"crypto/hmac"
	"hash"

	"golang.org/x/crypto/hkdf"

	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// PRF12 implements the TLS 1.0-1.2 pseudo-random function: P_hash(secret,
// label || seed) truncated to length bytes, using the suite's transcript
// hash (SHA-256 by default, SHA-384 for the suites that specify it).
func PRF12(p tlswire.HashPrimitive, secret []byte, label string, seed []byte, length int) ([]byte, error) {
	newHash := func() (hash.Hash, error) { return NewHash(p) }
	if _, err := newHash(); err != nil {
		return nil, err
	}

	seedFull := append([]byte(label), seed...)
	out := make([]byte, 0, length)

	a := seedFull
	for len(out) < length {
		mac := hmac.New(func() hash.Hash { nh, _ := newHash(); return nh }, secret)
		mac.Write(a)
		a = mac.Sum(nil)

		mac2 := hmac.New(func() hash.Hash { nh, _ := newHash(); return nh }, secret)
		mac2.Write(a)
		mac2.Write(seedFull)
		out = append(out, mac2.Sum(nil)...)
	}
	return out[:length], nil
}

// PRF10 implements the SSLv3/TLS 1.0 dual MD5+SHA1 PRF (RFC 2246 §5): the
// two P_hash outputs are XORed together. Present only so the engine can
// negotiate down to TLS 1.0 suites that predate the single-hash PRF; never
// used for anything beyond that.
func PRF10(secret []byte, label string, seed []byte, length int) ([]byte, error) {
	half := (len(secret) + 1) / 2
	s1, s2 := secret[:half], secret[len(secret)-half:]

	md5Out, err := PRF12(tlswire.HashMD5, s1, label, seed, length)
	if err != nil {
		return nil, err
	}
	shaOut, err := PRF12(tlswire.HashSHA1, s2, label, seed, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = md5Out[i] ^ shaOut[i]
	}
	return out, nil
}

// HKDFExtract and HKDFExpandLabel implement the TLS 1.3 key schedule
// primitives (RFC 8446 §7.1), built on golang.org/x/crypto/hkdf.
func HKDFExtract(p tlswire.HashPrimitive, salt, ikm []byte) ([]byte, error) {
	newHash := func() hash.Hash { h, _ := NewHash(p); return h }
	return hkdf.Extract(newHash, ikm, salt), nil
}

// HKDFExpandLabel derives length bytes per RFC 8446 §7.1's
// HkdfLabel{length, "tls13 "+label, context} structure.
func HKDFExpandLabel(p tlswire.HashPrimitive, secret []byte, label string, context []byte, length int) ([]byte, error) {
	hkdfLabel := buildHKDFLabel(label, context, length)
	newHash := func() hash.Hash { h, _ := NewHash(p); return h }
	reader := hkdf.Expand(newHash, secret, hkdfLabel)
	out := make([]byte, length)
	if _, err := reader.Read(out); err != nil {
		return nil, tlserr.NewCryptoError(tlserr.AlertInternalError, "hkdf expand: %v", err)
	}
	return out, nil
}

func buildHKDFLabel(label string, context []byte, length int) []byte {
	full := "tls13 " + label
	out := make([]byte, 0, 2+1+len(full)+1+len(context))
	out = append(out, byte(length>>8), byte(length))
	out = append(out, byte(len(full)))
	out = append(out, full...)
	out = append(out, byte(len(context)))
	out = append(out, context...)
	return out
}
