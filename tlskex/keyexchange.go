// SPDX-License-Identifier: Apache-2.0

// Package tlskex is the key-exchange engine (design component C4): given a
// negotiated CipherSuite's KeyExchangeMethod, it generates the client's
// share, completes the exchange against the server's share, and derives
// the symmetric key material the record layer needs -- the TLS <=1.2
// PRF-based master-secret schedule (RFC 5246 §6.3 / §8.1) or the TLS 1.3
// HKDF-based key schedule (RFC 8446 §7.1).
package tlskex

import (
	"crypto/rsa"
	"math/big"

	"github.com/tlsmate-go/tlsmate/tlscrypto"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// ClientShare is what the client sends in ClientKeyExchange (<=TLS1.2) or
// in the key_share extension (TLS 1.3/ECDHE-style groups only; PSK-only
// modes produce no share).
type ClientShare struct {
	Group uint16 // named group / FFDHE group id, 0 if not applicable (RSA, plain PSK)
	Value []byte
}

// Exchange is the tagged-variant interface every key-exchange method
// implements: Offer produces the client's share (if any), Complete derives
// the raw shared/premaster secret from the server's response.
type Exchange interface {
	Method() tlswire.KeyExchangeMethod
	Offer() (ClientShare, error)
	Complete(serverParams []byte) ([]byte, error)
}

// IANA named-group ids this engine can generate a share for;
// NewECDHExchange maps each onto the tlscrypto primitive that implements it.
const (
	groupX25519    = 0x001d
	groupX448      = 0x001e
	groupSecp256r1 = 0x0017
	groupSecp384r1 = 0x0018
	groupSecp521r1 = 0x0019
)

// ECDHExchange drives NIST-curve and X25519/X448 (EC)DHE, both the TLS<=1.2
// ServerKeyExchange/ClientKeyExchange form and the TLS 1.3 key_share form.
type ECDHExchange struct {
	group  uint16
	x25519 *tlscrypto.X25519KeyPair
	x448   *tlscrypto.X448KeyPair
	nist   *tlscrypto.ECDHKeyPair
}

// NewECDHExchange generates a fresh ephemeral share for the given group.
func NewECDHExchange(group uint16) (*ECDHExchange, error) {
	switch group {
	case groupX25519:
		kp, err := tlscrypto.GenerateX25519()
		if err != nil {
			return nil, err
		}
		return &ECDHExchange{group: group, x25519: kp}, nil
	case groupX448:
		kp, err := tlscrypto.GenerateX448()
		if err != nil {
			return nil, err
		}
		return &ECDHExchange{group: group, x448: kp}, nil
	case groupSecp256r1, groupSecp384r1, groupSecp521r1:
		kp, err := tlscrypto.GenerateECDH(nistGroup(group))
		if err != nil {
			return nil, err
		}
		return &ECDHExchange{group: group, nist: kp}, nil
	default:
		return nil, tlserr.NewSemanticError(tlserr.AlertInsufficientSecurity, "unsupported ECDHE group 0x%04x", group)
	}
}

func nistGroup(g uint16) tlscrypto.ECDHGroup {
	switch g {
	case groupSecp256r1:
		return tlscrypto.GroupSecp256r1
	case groupSecp384r1:
		return tlscrypto.GroupSecp384r1
	case groupSecp521r1:
		return tlscrypto.GroupSecp521r1
	}
	return 0
}

func (e *ECDHExchange) Method() tlswire.KeyExchangeMethod { return tlswire.KexECDHE }

func (e *ECDHExchange) Offer() (ClientShare, error) {
	switch {
	case e.x25519 != nil:
		return ClientShare{Group: e.group, Value: e.x25519.Public[:]}, nil
	case e.x448 != nil:
		return ClientShare{Group: e.group, Value: e.x448.Public[:]}, nil
	default:
		return ClientShare{Group: e.group, Value: e.nist.Public}, nil
	}
}

func (e *ECDHExchange) Complete(peerPublic []byte) ([]byte, error) {
	switch {
	case e.x25519 != nil:
		return tlscrypto.X25519SharedSecret(e.x25519, peerPublic)
	case e.x448 != nil:
		return tlscrypto.X448SharedSecret(e.x448, peerPublic)
	default:
		return tlscrypto.ECDHSharedSecret(e.nist, peerPublic)
	}
}

// DHExchange drives finite-field DHE using server-supplied (p, g, Y)
// parameters from ServerKeyExchange.
type DHExchange struct {
	kp *tlscrypto.DHKeyPair
}

// NewDHExchange generates a fresh exponent for the server's advertised group.
func NewDHExchange(p, g *big.Int) (*DHExchange, error) {
	kp, err := tlscrypto.GenerateDH(tlscrypto.DHNumbers{P: p, G: g})
	if err != nil {
		return nil, err
	}
	return &DHExchange{kp: kp}, nil
}

func (e *DHExchange) Method() tlswire.KeyExchangeMethod { return tlswire.KexDHE }

func (e *DHExchange) Offer() (ClientShare, error) {
	return ClientShare{Value: e.kp.Public.Bytes()}, nil
}

func (e *DHExchange) Complete(serverPublic []byte) ([]byte, error) {
	peer := new(big.Int).SetBytes(serverPublic)
	return tlscrypto.DHSharedSecret(e.kp, peer), nil
}

// RSAExchange drives static-RSA key exchange: the client generates the
// premaster secret itself and encrypts it under the server's certificate
// public key (RFC 5246 §7.4.7.1).
type RSAExchange struct {
	clientVersion tlswire.ProtocolVersion
	premaster     []byte
}

// NewRSAExchange generates a fresh 48-byte premaster secret with the
// client's offered version in the first two bytes (the classic
// version-rollback check field).
func NewRSAExchange(clientVersion tlswire.ProtocolVersion) (*RSAExchange, error) {
	premaster := make([]byte, 48)
	if _, err := tlscrypto.RandomReader.Read(premaster); err != nil {
		return nil, err
	}
	premaster[0] = byte(clientVersion >> 8)
	premaster[1] = byte(clientVersion)
	return &RSAExchange{clientVersion: clientVersion, premaster: premaster}, nil
}

func (e *RSAExchange) Method() tlswire.KeyExchangeMethod { return tlswire.KexRSA }

// Offer returns no client share directly; EncryptPremaster produces the
// ClientKeyExchange body once the server's certificate is known.
func (e *RSAExchange) Offer() (ClientShare, error) { return ClientShare{}, nil }

// Complete is not used for RSA: the "shared secret" is just the premaster
// this side generated, available via Premaster.
func (e *RSAExchange) Complete(_ []byte) ([]byte, error) { return e.premaster, nil }

// Premaster returns the generated premaster secret.
func (e *RSAExchange) Premaster() []byte { return e.premaster }

// EncryptPremaster encrypts the premaster secret under the server's RSA
// public key for the ClientKeyExchange message body.
func (e *RSAExchange) EncryptPremaster(pub *rsa.PublicKey) ([]byte, error) {
	return tlscrypto.RSAEncryptPKCS1v15(pub, e.premaster)
}
