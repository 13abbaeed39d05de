// SPDX-License-Identifier: Apache-2.0

package tlskex

import (
	"github.com/tlsmate-go/tlsmate/tlscrypto"
	"github.com/tlsmate-go/tlsmate/tlsrecord"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// Schedule13 drives the TLS 1.3 key schedule (RFC 8446 §7.1): a chain of
// HKDF-Extract/HKDF-Expand-Label calls through early, handshake, and master
// secrets, each stage deriving the traffic secrets active at that point in
// the handshake.
type Schedule13 struct {
	hash tlswire.HashPrimitive

	earlySecret      []byte
	handshakeSecret  []byte
	masterSecret     []byte
	hashLen          int
}

func hashLen(p tlswire.HashPrimitive) int {
	switch p {
	case tlswire.HashSHA384:
		return 48
	default:
		return 32
	}
}

// NewSchedule13 starts the schedule. psk is nil for a non-PSK handshake (the
// early secret is then HKDF-Extract(0, 0), per RFC 8446 §7.1).
func NewSchedule13(hash tlswire.HashPrimitive, psk []byte) (*Schedule13, error) {
	n := hashLen(hash)
	if psk == nil {
		psk = make([]byte, n)
	}
	salt := make([]byte, n)
	early, err := tlscrypto.HKDFExtract(hash, salt, psk)
	if err != nil {
		return nil, err
	}
	return &Schedule13{hash: hash, earlySecret: early, hashLen: n}, nil
}

func (s *Schedule13) deriveSecret(secret []byte, label string, transcriptHash []byte) ([]byte, error) {
	return tlscrypto.HKDFExpandLabel(s.hash, secret, label, transcriptHash, s.hashLen)
}

// AdvanceHandshake feeds the (EC)DHE/KEM shared secret and the transcript
// hash through ClientHello..ServerHello to derive the handshake secret and
// both handshake traffic secrets.
func (s *Schedule13) AdvanceHandshake(sharedSecret, transcriptHash []byte) (clientHS, serverHS []byte, err error) {
	derivedEarly, err := s.deriveSecret(s.earlySecret, "derived", emptyHash(s.hash))
	if err != nil {
		return nil, nil, err
	}
	s.handshakeSecret, err = tlscrypto.HKDFExtract(s.hash, derivedEarly, sharedSecret)
	if err != nil {
		return nil, nil, err
	}
	clientHS, err = s.deriveSecret(s.handshakeSecret, "c hs traffic", transcriptHash)
	if err != nil {
		return nil, nil, err
	}
	serverHS, err = s.deriveSecret(s.handshakeSecret, "s hs traffic", transcriptHash)
	return clientHS, serverHS, err
}

// AdvanceMaster derives the master secret and both application traffic
// secrets from the transcript hash through ServerFinished.
func (s *Schedule13) AdvanceMaster(transcriptHash []byte) (clientAP, serverAP, exporterMaster []byte, err error) {
	derivedHS, err := s.deriveSecret(s.handshakeSecret, "derived", emptyHash(s.hash))
	if err != nil {
		return nil, nil, nil, err
	}
	zeros := make([]byte, s.hashLen)
	s.masterSecret, err = tlscrypto.HKDFExtract(s.hash, derivedHS, zeros)
	if err != nil {
		return nil, nil, nil, err
	}
	clientAP, err = s.deriveSecret(s.masterSecret, "c ap traffic", transcriptHash)
	if err != nil {
		return nil, nil, nil, err
	}
	serverAP, err = s.deriveSecret(s.masterSecret, "s ap traffic", transcriptHash)
	if err != nil {
		return nil, nil, nil, err
	}
	exporterMaster, err = s.deriveSecret(s.masterSecret, "exp master", transcriptHash)
	return clientAP, serverAP, exporterMaster, err
}

// TrafficKeys derives the per-direction record-layer key + IV from a
// traffic secret (RFC 8446 §7.3).
func TrafficKeys(hash tlswire.HashPrimitive, trafficSecret []byte, cipher tlswire.BulkCipher) (tlsrecord.KeyMaterial, error) {
	key, err := tlscrypto.HKDFExpandLabel(hash, trafficSecret, "key", nil, cipher.EncKeyLen)
	if err != nil {
		return tlsrecord.KeyMaterial{}, err
	}
	// The TLS 1.3 per-record nonce is 12 bytes for every AEAD suite: the
	// TLS 1.2 fixed salt plus explicit-nonce lengths.
	iv, err := tlscrypto.HKDFExpandLabel(hash, trafficSecret, "iv", nil, cipher.FixedIVLen+cipher.IVLen)
	if err != nil {
		return tlsrecord.KeyMaterial{}, err
	}
	return tlsrecord.KeyMaterial{BulkKey: key, FixedIV: iv, TLS13: true}, nil
}

// FinishedKey derives the HMAC key used to compute/verify a TLS 1.3
// Finished message (RFC 8446 §4.4.4).
func FinishedKey(hash tlswire.HashPrimitive, trafficSecret []byte) ([]byte, error) {
	return tlscrypto.HKDFExpandLabel(hash, trafficSecret, "finished", nil, hashLen(hash))
}

// VerifyData13 computes HMAC(finished_key, transcript_hash).
func VerifyData13(hash tlswire.HashPrimitive, finishedKey, transcriptHash []byte) ([]byte, error) {
	return tlscrypto.HMAC(hash, finishedKey, transcriptHash)
}

func emptyHash(p tlswire.HashPrimitive) []byte {
	h, err := tlscrypto.NewHash(p)
	if err != nil {
		return nil
	}
	return h.Sum(nil)
}
