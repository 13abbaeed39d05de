// SPDX-License-Identifier: Apache-2.0

// Package tlscrypto is the crypto façade (design component C3): every
// primitive the record layer and key-exchange engine need, wrapped behind a
// small set of functions so that (a) the wire-facing packages never import
// crypto/* directly and (b) every non-deterministic primitive -- RSA
// PKCS#1v1.5 encryption's random padding chief among them -- can be routed
// through the recorder for replay / §6.
package tlscrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// NewHash returns a fresh hash.Hash for the given primitive.
func NewHash(p tlswire.HashPrimitive) (hash.Hash, error) {
	switch p {
	case tlswire.HashSHA256:
		return sha256.New(), nil
	case tlswire.HashSHA384:
		return sha512.New384(), nil
	case tlswire.HashSHA1:
		return sha1.New(), nil
	case tlswire.HashMD5:
		return md5.New(), nil
	default:
		return nil, tlserr.NewSemanticError(tlserr.AlertInternalError, "no hash for primitive %d", p)
	}
}

// HMAC computes HMAC(key, data) using the named hash primitive.
func HMAC(p tlswire.HashPrimitive, key, data []byte) ([]byte, error) {
	if _, err := NewHash(p); err != nil {
		return nil, err
	}
	mac := hmac.New(func() hash.Hash { nh, _ := NewHash(p); return nh }, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

// AEAD describes a record-layer AEAD instance, wrapping the cipher.AEAD with
// the fixed (salt) portion of the nonce so callers only ever provide the
// per-record sequence number.
type AEAD struct {
	aead    cipher.AEAD
	fixedIV []byte // XORed with the big-endian 8-byte sequence number (TLS1.3) or followed by the explicit nonce (TLS1.2 GCM)
	tls13   bool
}

// NewAEAD builds an AEAD instance for the given BulkCipher and key material.
func NewAEAD(cs tlswire.BulkCipher, key, fixedIV []byte, tls13 bool) (*AEAD, error) {
	var a cipher.AEAD
	var err error
	switch cs.Primitive {
	case tlswire.PrimitiveAES:
		block, aerr := aes.NewCipher(key)
		if aerr != nil {
			return nil, aerr
		}
		a, err = cipher.NewGCM(block)
	case tlswire.PrimitiveChaCha20:
		a, err = chacha20poly1305.New(key)
	default:
		return nil, tlserr.NewSemanticError(tlserr.AlertInternalError, "no AEAD for primitive %d", cs.Primitive)
	}
	if err != nil {
		return nil, err
	}
	return &AEAD{aead: a, fixedIV: fixedIV, tls13: tls13}, nil
}

// nonce derives the 12-byte IV for sequence number seq: TLS 1.3 XORs the
// 8-byte big-endian sequence number into the low bytes of the fixed IV; TLS
// 1.2 GCM instead appends the explicit per-record nonce that the caller
// supplies as explicitNonce to the 4-byte fixed salt (RFC 5288 §3). TLS 1.2
// ChaCha20-Poly1305 has no explicit nonce and takes the seq-derived path
// (used whenever explicitNonce is nil).
func (a *AEAD) nonce(seq uint64, explicitNonce []byte) []byte {
	if !a.tls13 && explicitNonce != nil {
		return append(append([]byte(nil), a.fixedIV...), explicitNonce...)
	}
	n := make([]byte, len(a.fixedIV))
	copy(n, a.fixedIV)
	for i := 0; i < 8; i++ {
		n[len(n)-1-i] ^= byte(seq >> (8 * i))
	}
	return n
}

// Seal encrypts plaintext under sequence number seq with aad as additional
// data, per RFC 5288/8446.
func (a *AEAD) Seal(seq uint64, explicitNonce, aad, plaintext []byte) []byte {
	return a.aead.Seal(nil, a.nonce(seq, explicitNonce), plaintext, aad)
}

// Open decrypts ciphertext, returning tlserr.AlertBadRecordMAC on failure.
func (a *AEAD) Open(seq uint64, explicitNonce, aad, ciphertext []byte) ([]byte, error) {
	pt, err := a.aead.Open(nil, a.nonce(seq, explicitNonce), ciphertext, aad)
	if err != nil {
		return nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "AEAD open failed: %v", err)
	}
	return pt, nil
}

// Overhead returns the tag length added by Seal.
func (a *AEAD) Overhead() int { return a.aead.Overhead() }

// NonceSize returns the suite's explicit per-record nonce length (cs.IVLen:
// 8 for AES-GCM, 0 for ChaCha20-Poly1305). It does not depend on the
// protocol version; the record layer sends no explicit nonce under TLS 1.3.
func NonceSize(cs tlswire.BulkCipher) int { return cs.IVLen }
