// SPDX-License-Identifier: Apache-2.0

// Package tlsrecord is the record layer (design component C2): fragmenting
// and reassembling the byte stream into records, and encrypting/decrypting
// each record's payload once a cipher suite is active. It never interprets
// a handshake message's contents -- that is tlsconn's job -- it only knows
// how to turn a (content_type, plaintext) pair into wire bytes and back.
package tlsrecord

import (
	"encoding/binary"

	"github.com/tlsmate-go/tlsmate/tlscrypto"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// MaxFragment is the largest plaintext payload a single record may carry
// (RFC 8446 §5.1 / RFC 5246 §6.2.1): 2^14 bytes.
const MaxFragment = 1 << 14

// CipherMode classifies how a RecordState protects outgoing/incoming
// records, mirroring the RecordState.mode.
type CipherMode uint8

const (
	ModeNone CipherMode = iota
	ModeBlock
	ModeAEAD
)

// KeyMaterial bundles the derived keys a RecordState needs to start
// protecting records under a newly negotiated cipher suite.
type KeyMaterial struct {
	BulkKey []byte
	MACKey  []byte // unused for AEAD
	FixedIV []byte // AEAD: salt; CBC uses a random explicit IV per record instead
	TLS13   bool   // selects RFC 8446 §5.2 inner-content-type framing over RFC 5246 §6.2.3

	// EncryptThenMAC selects RFC 7366 ordering for CBC suites: MAC over the
	// ciphertext (including its explicit IV) instead of over the plaintext.
	// Meaningless for AEAD suites, which carry no separate record MAC.
	EncryptThenMAC bool
}

// RecordState is one direction (read or write) of the record layer's
// protection state, updated atomically by update_write_state /
// update_read_state.
type RecordState struct {
	recordVersion  tlswire.ProtocolVersion
	mode           CipherMode
	cipher         tlswire.BulkCipher
	mac            tlswire.MACDescriptor
	seq            uint64
	tls13          bool
	encryptThenMAC bool

	aead *tlscrypto.AEAD
	cbc  *tlscrypto.CBCCipher
	hmac []byte
}

// NewPlaintextState returns the initial, unprotected RecordState every
// connection starts in. The record-layer version starts at TLS1.0 for the
// very first ClientHello record (the invariant that the record-layer
// version is min(negotiated, TLS1.2) holds trivially since nothing is
// negotiated yet).
func NewPlaintextState() *RecordState {
	return &RecordState{mode: ModeNone, recordVersion: tlswire.TLS10}
}

// Rekey installs new protection state, called once per direction when the
// handshake activates a cipher suite (ChangeCipherSpec for <=TLS1.2, or the
// TLS 1.3 key schedule transitioning into handshake/application traffic).
func Rekey(info tlswire.CipherSuiteInfo, negotiated tlswire.ProtocolVersion, km KeyMaterial) (*RecordState, error) {
	rs := &RecordState{
		recordVersion: tlswire.RecordLayerVersion(negotiated),
		cipher:        info.Cipher,
		mac:           info.MAC,
		tls13:         km.TLS13,
	}
	switch info.Cipher.Type {
	case tlswire.CipherAEAD:
		rs.mode = ModeAEAD
		a, err := tlscrypto.NewAEAD(info.Cipher, km.BulkKey, km.FixedIV, km.TLS13)
		if err != nil {
			return nil, err
		}
		rs.aead = a
	case tlswire.CipherBlock:
		rs.mode = ModeBlock
		c, err := tlscrypto.NewCBCCipher(info.Cipher, km.BulkKey)
		if err != nil {
			return nil, err
		}
		rs.cbc = c
		rs.hmac = km.MACKey
		rs.encryptThenMAC = km.EncryptThenMAC
	default:
		return nil, tlserr.NewSemanticError(tlserr.AlertInternalError, "record layer does not support cipher type %d", info.Cipher.Type)
	}
	return rs, nil
}

func recordHeader(ct tlswire.ContentType, vers tlswire.ProtocolVersion, length int) []byte {
	h := make([]byte, 5)
	h[0] = byte(ct)
	binary.BigEndian.PutUint16(h[1:3], uint16(vers))
	binary.BigEndian.PutUint16(h[3:5], uint16(length))
	return h
}

// Protect produces the wire bytes for one record: header + (possibly
// encrypted) payload, advancing the sequence number. Callers fragment
// plaintext into <=MaxFragment chunks themselves and call Protect once per
// fragment.
func (rs *RecordState) Protect(ct tlswire.ContentType, plaintext []byte) ([]byte, error) {
	switch rs.mode {
	case ModeNone:
		return append(recordHeader(ct, rs.recordVersion, len(plaintext)), plaintext...), nil

	case ModeAEAD:
		inner := plaintext
		outerCT := ct
		if rs.tls13 {
			inner = append(append([]byte(nil), plaintext...), byte(ct))
			outerCT = tlswire.ContentApplicationData
		}
		var explicitNonce []byte
		if n := tlscrypto.NonceSize(rs.cipher); n > 0 && !rs.tls13 {
			explicitNonce = make([]byte, n)
			binary.BigEndian.PutUint64(explicitNonce[n-8:], rs.seq)
		}
		aad := recordHeader(outerCT, rs.recordVersion, len(inner)+rs.aead.Overhead())
		ciphertext := rs.aead.Seal(rs.seq, explicitNonce, aad, inner)
		rs.seq++
		body := append(append([]byte(nil), explicitNonce...), ciphertext...)
		return append(recordHeader(outerCT, rs.recordVersion, len(body)), body...), nil

	case ModeBlock:
		if rs.encryptThenMAC {
			// RFC 7366: encrypt first, then MAC the ciphertext (which
			// already carries its explicit IV) instead of the plaintext.
			body, err := rs.cbc.Encrypt(plaintext)
			if err != nil {
				return nil, err
			}
			mac, err := tlscrypto.HMAC(rs.mac.HashAlgo, rs.hmac, macAAD(ct, rs.recordVersion, rs.seq, body))
			if err != nil {
				return nil, err
			}
			rs.seq++
			out := append(body, mac...)
			return append(recordHeader(ct, rs.recordVersion, len(out)), out...), nil
		}
		macInput := macAAD(ct, rs.recordVersion, rs.seq, plaintext)
		mac, err := tlscrypto.HMAC(rs.mac.HashAlgo, rs.hmac, macInput)
		if err != nil {
			return nil, err
		}
		body, err := rs.cbc.Encrypt(append(append([]byte(nil), plaintext...), mac...))
		if err != nil {
			return nil, err
		}
		rs.seq++
		return append(recordHeader(ct, rs.recordVersion, len(body)), body...), nil

	default:
		return nil, tlserr.NewSemanticError(tlserr.AlertInternalError, "unsupported record protection mode %d", rs.mode)
	}
}

// Unprotect recovers the plaintext payload and real content type of one
// record whose header has already been parsed into (ct, ciphertext). For
// TLS 1.3, ct is always application_data on the wire; the returned
// ContentType is the one recovered from the inner framing.
func (rs *RecordState) Unprotect(ct tlswire.ContentType, ciphertext []byte) (tlswire.ContentType, []byte, error) {
	switch rs.mode {
	case ModeNone:
		return ct, ciphertext, nil

	case ModeAEAD:
		var explicitNonce []byte
		if n := tlscrypto.NonceSize(rs.cipher); n > 0 && !rs.tls13 {
			if len(ciphertext) < n {
				return 0, nil, tlserr.NewDecodeError("AEAD record shorter than explicit nonce")
			}
			explicitNonce = ciphertext[:n]
			ciphertext = ciphertext[n:]
		}
		aad := recordHeader(ct, rs.recordVersion, len(ciphertext))
		plaintext, err := rs.aead.Open(rs.seq, explicitNonce, aad, ciphertext)
		rs.seq++
		if err != nil {
			return 0, nil, err
		}
		if !rs.tls13 {
			return ct, plaintext, nil
		}
		innerCT, inner, err := stripTLS13Padding(plaintext)
		if err != nil {
			return 0, nil, err
		}
		return innerCT, inner, nil

	case ModeBlock:
		if rs.encryptThenMAC {
			macLen := rs.mac.MacLen
			if len(ciphertext) < macLen {
				rs.seq++
				return 0, nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "CBC payload shorter than MAC")
			}
			body := ciphertext[:len(ciphertext)-macLen]
			gotMAC := ciphertext[len(ciphertext)-macLen:]
			wantMAC, err := tlscrypto.HMAC(rs.mac.HashAlgo, rs.hmac, macAAD(ct, rs.recordVersion, rs.seq, body))
			if err != nil {
				rs.seq++
				return 0, nil, err
			}
			if !hmacEqual(gotMAC, wantMAC) {
				rs.seq++
				return 0, nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "CBC MAC mismatch")
			}
			plaintext, err := rs.cbc.Decrypt(body)
			rs.seq++
			if err != nil {
				return 0, nil, err
			}
			return ct, plaintext, nil
		}
		decrypted, err := rs.cbc.Decrypt(ciphertext)
		if err != nil {
			rs.seq++
			return 0, nil, err
		}
		macLen := rs.mac.MacLen
		if len(decrypted) < macLen {
			rs.seq++
			return 0, nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "CBC payload shorter than MAC")
		}
		plaintext := decrypted[:len(decrypted)-macLen]
		gotMAC := decrypted[len(decrypted)-macLen:]
		wantMAC, err := tlscrypto.HMAC(rs.mac.HashAlgo, rs.hmac, macAAD(ct, rs.recordVersion, rs.seq, plaintext))
		rs.seq++
		if err != nil {
			return 0, nil, err
		}
		if !hmacEqual(gotMAC, wantMAC) {
			return 0, nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "CBC MAC mismatch")
		}
		return ct, plaintext, nil

	default:
		return 0, nil, tlserr.NewSemanticError(tlserr.AlertInternalError, "unsupported record protection mode %d", rs.mode)
	}
}

// stripTLS13Padding scans from the end for the first non-zero byte, which
// is the real content type (RFC 8446 §5.2); everything after it was zero
// padding and everything before it is the plaintext fragment.
func stripTLS13Padding(plaintext []byte) (tlswire.ContentType, []byte, error) {
	i := len(plaintext) - 1
	for i >= 0 && plaintext[i] == 0 {
		i--
	}
	if i < 0 {
		return 0, nil, tlserr.NewDecodeError("TLS 1.3 record has no inner content type")
	}
	return tlswire.ContentType(plaintext[i]), plaintext[:i], nil
}

func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

// macAAD builds the MAC-then-encrypt input for TLS 1.0-1.2 CBC suites:
// seq_num(8) || content_type(1) || version(2) || length(2) || fragment.
func macAAD(ct tlswire.ContentType, vers tlswire.ProtocolVersion, seq uint64, plaintext []byte) []byte {
	out := make([]byte, 13+len(plaintext))
	binary.BigEndian.PutUint64(out[0:8], seq)
	out[8] = byte(ct)
	binary.BigEndian.PutUint16(out[9:11], uint16(vers))
	binary.BigEndian.PutUint16(out[11:13], uint16(len(plaintext)))
	copy(out[13:], plaintext)
	return out
}
