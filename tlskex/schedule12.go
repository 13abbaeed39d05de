// SPDX-License-Identifier: Apache-2.0

package tlskex

import (
	"github.com/tlsmate-go/tlsmate/tlscrypto"
	"github.com/tlsmate-go/tlsmate/tlsrecord"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// Schedule12 holds the TLS 1.0-1.2 master-secret-derived state (RFC 5246
// §6.3, §8.1): the master secret itself plus the key block split into the
// four (or two, for AEAD) symmetric components.
type Schedule12 struct {
	MasterSecret []byte
	ClientWrite  tlsrecord.KeyMaterial
	ServerWrite  tlsrecord.KeyMaterial
}

// prf dispatches to the version-mandated PRF: the dual MD5+SHA1 PRF10 below
// TLS 1.2 (RFC 2246 §5), the single-hash PRF12 at TLS 1.2 and above (RFC
// 5246 §5) keyed on the suite's own hash primitive. The hash primitive
// argument is meaningless below TLS 1.2, where the PRF always mixes MD5 and
// SHA-1 regardless of the negotiated suite.
func prf(version tlswire.ProtocolVersion, hashPrimitive tlswire.HashPrimitive, secret []byte, label string, seed []byte, length int) ([]byte, error) {
	if version < tlswire.TLS12 {
		return tlscrypto.PRF10(secret, label, seed, length)
	}
	return tlscrypto.PRF12(hashPrimitive, secret, label, seed, length)
}

// DeriveMasterSecret12 computes master_secret = PRF(pre_master_secret,
// "master secret", client_random || server_random, 48), or, when
// extendedMasterSecret is true, substitutes the session_hash per RFC 7627
// (supplemented feature: original_source's extended_master_secret worker
// exercises this path; the crypto façade only provides the PRF primitive,
// not which seed to use -- that decision belongs here).
func DeriveMasterSecret12(version tlswire.ProtocolVersion, hashPrimitive tlswire.HashPrimitive, preMaster, clientRandom, serverRandom, sessionHash []byte, extendedMasterSecret bool) ([]byte, error) {
	if extendedMasterSecret {
		return prf(version, hashPrimitive, preMaster, "extended master secret", sessionHash, 48)
	}
	seed := append(append([]byte(nil), clientRandom...), serverRandom...)
	return prf(version, hashPrimitive, preMaster, "master secret", seed, 48)
}

// DeriveKeyBlock12 expands the master secret into the key block and slices
// it into each direction's MAC key / bulk key / IV per RFC 5246 §6.3.
func DeriveKeyBlock12(version tlswire.ProtocolVersion, hashPrimitive tlswire.HashPrimitive, masterSecret, clientRandom, serverRandom []byte, cipher tlswire.BulkCipher, mac tlswire.MACDescriptor) (clientKM, serverKM tlsrecord.KeyMaterial, err error) {
	macKeyLen := cipher.MacKeyLen(mac)
	ivLen := cipher.IVLen
	if cipher.Type == tlswire.CipherAEAD {
		ivLen = cipher.FixedIVLen // explicit nonce is carried per-record, not in the key block
	}
	total := 2*macKeyLen + 2*cipher.EncKeyLen + 2*ivLen

	seed := append(append([]byte(nil), serverRandom...), clientRandom...)
	block, err := prf(version, hashPrimitive, masterSecret, "key expansion", seed, total)
	if err != nil {
		return clientKM, serverKM, err
	}

	off := 0
	take := func(n int) []byte {
		b := block[off : off+n]
		off += n
		return b
	}

	clientMAC := take(macKeyLen)
	serverMAC := take(macKeyLen)
	clientKey := take(cipher.EncKeyLen)
	serverKey := take(cipher.EncKeyLen)
	clientIV := take(ivLen)
	serverIV := take(ivLen)

	clientKM = tlsrecord.KeyMaterial{BulkKey: clientKey, MACKey: clientMAC, FixedIV: clientIV}
	serverKM = tlsrecord.KeyMaterial{BulkKey: serverKey, MACKey: serverMAC, FixedIV: serverIV}
	return clientKM, serverKM, nil
}

// VerifyData12 computes the 12-byte Finished verify_data (RFC 5246 §7.4.9):
// PRF(master_secret, label, transcript_hash, 12).
func VerifyData12(version tlswire.ProtocolVersion, hashPrimitive tlswire.HashPrimitive, masterSecret []byte, label string, transcriptHash []byte) ([]byte, error) {
	return prf(version, hashPrimitive, masterSecret, label, transcriptHash, 12)
}

const (
	LabelClientFinished = "client finished"
	LabelServerFinished = "server finished"
)
