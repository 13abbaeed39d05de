// SPDX-License-Identifier: Apache-2.0

package tlscrypto

import (
	"crypto"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"io"
	"math/big"

	"github.com/cloudflare/circl/dh/x448"
	"golang.org/x/crypto/curve25519"

	"github.com/tlsmate-go/tlsmate/tlserr"
)

// RandomReader is the source of randomness used by every non-deterministic
// primitive in this package. It is swappable so the recorder can splice in
// a replay-deterministic reader.
var RandomReader io.Reader = rand.Reader

// DHNumbers is a finite-field Diffie-Hellman group (RFC 7919 FFDHE or a
// server-chosen custom group, per ServerKeyExchange).
type DHNumbers struct {
	P, G *big.Int
}

// DHKeyPair holds a freshly generated FFDHE private/public pair.
type DHKeyPair struct {
	Numbers DHNumbers
	Private *big.Int
	Public  *big.Int
}

// GenerateDH creates a fresh private exponent and the corresponding public
// value g^x mod p.
func GenerateDH(numbers DHNumbers) (*DHKeyPair, error) {
	priv, err := rand.Int(RandomReader, numbers.P)
	if err != nil {
		return nil, err
	}
	pub := new(big.Int).Exp(numbers.G, priv, numbers.P)
	return &DHKeyPair{Numbers: numbers, Private: priv, Public: pub}, nil
}

// DHSharedSecret computes peerPublic^private mod p.
func DHSharedSecret(kp *DHKeyPair, peerPublic *big.Int) []byte {
	shared := new(big.Int).Exp(peerPublic, kp.Private, kp.Numbers.P)
	return shared.Bytes()
}

// ECDHGroup identifies one of the NIST curves usable with crypto/ecdh.
type ECDHGroup uint16

const (
	GroupSecp256r1 ECDHGroup = 23
	GroupSecp384r1 ECDHGroup = 24
	GroupSecp521r1 ECDHGroup = 25
	GroupX25519    ECDHGroup = 29
	GroupX448      ECDHGroup = 30
)

func ecdhCurve(g ECDHGroup) (ecdh.Curve, error) {
	switch g {
	case GroupSecp256r1:
		return ecdh.P256(), nil
	case GroupSecp384r1:
		return ecdh.P384(), nil
	case GroupSecp521r1:
		return ecdh.P521(), nil
	default:
		return nil, tlserr.NewSemanticError(tlserr.AlertInternalError, "no crypto/ecdh curve for group %d", g)
	}
}

// ECDHKeyPair is a generated ephemeral NIST-curve key pair.
type ECDHKeyPair struct {
	Group   ECDHGroup
	private *ecdh.PrivateKey
	Public  []byte
}

// GenerateECDH creates a fresh ephemeral key pair on one of the NIST curves.
func GenerateECDH(g ECDHGroup) (*ECDHKeyPair, error) {
	curve, err := ecdhCurve(g)
	if err != nil {
		return nil, err
	}
	priv, err := curve.GenerateKey(RandomReader)
	if err != nil {
		return nil, err
	}
	return &ECDHKeyPair{Group: g, private: priv, Public: priv.PublicKey().Bytes()}, nil
}

// ECDHSharedSecret computes the shared secret against a peer's uncompressed
// public point.
func ECDHSharedSecret(kp *ECDHKeyPair, peerPublic []byte) ([]byte, error) {
	curve, err := ecdhCurve(kp.Group)
	if err != nil {
		return nil, err
	}
	pub, err := curve.NewPublicKey(peerPublic)
	if err != nil {
		return nil, tlserr.NewSemanticError(tlserr.AlertIllegalParameter, "bad peer ECDH point: %v", err)
	}
	return kp.private.ECDH(pub)
}

// X25519KeyPair is a Curve25519 key-share pair (RFC 7748).
type X25519KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateX25519 creates a fresh X25519 key pair.
func GenerateX25519() (*X25519KeyPair, error) {
	var kp X25519KeyPair
	if _, err := io.ReadFull(RandomReader, kp.Private[:]); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(kp.Public[:], pub)
	return &kp, nil
}

// X25519SharedSecret computes the shared secret, rejecting the known
// all-zero low-order-point output (RFC 7748 §6.1).
func X25519SharedSecret(kp *X25519KeyPair, peerPublic []byte) ([]byte, error) {
	shared, err := curve25519.X25519(kp.Private[:], peerPublic)
	if err != nil {
		return nil, tlserr.NewSemanticError(tlserr.AlertIllegalParameter, "bad X25519 point: %v", err)
	}
	return shared, nil
}

// X448KeyPair is a Curve448 key-share pair (RFC 7748), generated with circl
// since crypto/ecdh and golang.org/x/crypto/curve25519 only cover X25519.
type X448KeyPair struct {
	Private x448.Key
	Public  x448.Key
}

// GenerateX448 creates a fresh X448 key pair.
func GenerateX448() (*X448KeyPair, error) {
	var kp X448KeyPair
	if _, err := io.ReadFull(RandomReader, kp.Private[:]); err != nil {
		return nil, err
	}
	x448.KeyGen(&kp.Public, &kp.Private)
	return &kp, nil
}

// X448SharedSecret computes the shared secret, rejecting the all-zero
// low-order-point output the same way X25519SharedSecret does.
func X448SharedSecret(kp *X448KeyPair, peerPublic []byte) ([]byte, error) {
	if len(peerPublic) != x448.Size {
		return nil, tlserr.NewSemanticError(tlserr.AlertIllegalParameter, "bad X448 point: want %d bytes, have %d", x448.Size, len(peerPublic))
	}
	var peer, shared x448.Key
	copy(peer[:], peerPublic)
	if !x448.Shared(&shared, &kp.Private, &peer) {
		return nil, tlserr.NewSemanticError(tlserr.AlertIllegalParameter, "X448 shared secret is the all-zero low-order point")
	}
	return shared[:], nil
}

// RSAEncryptPKCS1v15 encrypts premaster under the server's RSA public key,
// RFC 5246 §7.4.7.1. The random padding makes this non-deterministic:
// callers that want replay-stable behaviour must run it against the
// recorder-supplied RandomReader.
func RSAEncryptPKCS1v15(pub *rsa.PublicKey, premaster []byte) ([]byte, error) {
	return rsa.EncryptPKCS1v15(RandomReader, pub, premaster)
}

// RSASignPKCS1v15 signs a transcript digest for CertificateVerify under a
// PKCS#1v1.5 scheme.
func RSASignPKCS1v15(priv *rsa.PrivateKey, digest []byte) ([]byte, error) {
	return rsa.SignPKCS1v15(RandomReader, priv, 0, digest)
}

// RSAVerifyPSS verifies an RSA-PSS signature (the signature schemes the
// signature_algorithms extension advertises for TLS 1.2+/1.3).
func RSAVerifyPSS(pub *rsa.PublicKey, digest, sig []byte) error {
	return rsa.VerifyPSS(pub, crypto.SHA256, digest, sig, nil)
}

// ParseCertificate parses one DER-encoded X.509 certificate, used by the
// key-exchange engine to pull the server's public key and by the scanner's
// certificate-chain worker to record issuer/subject/validity.
func ParseCertificate(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, tlserr.NewSemanticError(tlserr.AlertBadCertificate, "certificate parse failed: %v", err)
	}
	return cert, nil
}

// TranscriptDigest returns the SHA-256 digest of data, for callers that need
// a plain digest rather than an HMAC/PRF. It takes no hash primitive and
// never uses SHA-384.
func TranscriptDigest(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
