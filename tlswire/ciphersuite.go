// SPDX-License-Identifier: Apache-2.0

package tlswire

import "strings"

// KeyExchangeMethod identifies how the premaster/shared secret for a
// CipherSuite is agreed upon.
type KeyExchangeMethod uint8

const (
	KexUnknown KeyExchangeMethod = iota
	KexRSA
	KexDHE
	KexDHAnon
	KexECDHE
	KexECDHAnon
	KexPSK
	KexPSKDHE
	KexPSKECDHE
	KexTLS13 // key schedule driven entirely by (EC)DHE/KEM key_share, see tlskex
)

// CipherType classifies how a BulkCipher protects a record.
type CipherType uint8

const (
	CipherStream CipherType = iota
	CipherBlock
	CipherAEAD
)

// BulkCipherPrimitive names the symmetric algorithm family.
type BulkCipherPrimitive uint8

const (
	PrimitiveNone BulkCipherPrimitive = iota
	PrimitiveRC4
	Primitive3DES
	PrimitiveAES
	PrimitiveChaCha20
	PrimitiveARIA
)

// HashPrimitive names the hash algorithm used for the MAC / PRF / transcript.
type HashPrimitive uint8

const (
	HashNone HashPrimitive = iota
	HashMD5
	HashSHA1
	HashSHA256
	HashSHA384
)

// BulkCipher describes one symmetric cipher variant. For AEAD ciphers
// MacKeyLen is forced to zero: the AEAD
// construction derives its nonce from a fixed IV and sequence number, it
// does not use a separate MAC key.
type BulkCipher struct {
	Primitive  BulkCipherPrimitive
	Algo       string // descriptive algorithm variant, e.g. "AES-128-GCM"
	Type       CipherType
	EncKeyLen  int
	BlockSize  int
	IVLen      int // explicit nonce/IV length carried on the wire per record
	FixedIVLen int // AEAD fixed (salt) portion of the nonce, derived from the key block
}

func (c BulkCipher) MacKeyLen(mac MACDescriptor) int {
	if c.Type == CipherAEAD {
		return 0
	}
	return mac.MacKeyLen
}

// MACDescriptor describes the MAC used by non-AEAD cipher suites.
type MACDescriptor struct {
	HashAlgo  HashPrimitive
	MacLen    int
	MacKeyLen int
	HMACAlgo  string
}

// CipherSuite is the 16-bit IANA registry value plus its derived triple.
type CipherSuite uint16

// CipherSuiteInfo is the static, derived (key_exchange, bulk_cipher, mac)
// triple for a registered suite.
type CipherSuiteInfo struct {
	Name    string
	KeyEx   KeyExchangeMethod
	Cipher  BulkCipher
	MAC     MACDescriptor
	MinVers ProtocolVersion
}

// Signalling cipher-suite values (SCSVs).
const (
	SuiteEmptyRenegotiationInfoSCSV CipherSuite = 0x00ff
	SuiteFallbackSCSV               CipherSuite = 0x5600
)

var (
	gcm128 = BulkCipher{Primitive: PrimitiveAES, Algo: "AES-128-GCM", Type: CipherAEAD, EncKeyLen: 16, IVLen: 8, FixedIVLen: 4}
	gcm256 = BulkCipher{Primitive: PrimitiveAES, Algo: "AES-256-GCM", Type: CipherAEAD, EncKeyLen: 32, IVLen: 8, FixedIVLen: 4}
	cbc128 = BulkCipher{Primitive: PrimitiveAES, Algo: "AES-128-CBC", Type: CipherBlock, EncKeyLen: 16, BlockSize: 16, IVLen: 16}
	cbc256 = BulkCipher{Primitive: PrimitiveAES, Algo: "AES-256-CBC", Type: CipherBlock, EncKeyLen: 32, BlockSize: 16, IVLen: 16}
	chacha = BulkCipher{Primitive: PrimitiveChaCha20, Algo: "CHACHA20-POLY1305", Type: CipherAEAD, EncKeyLen: 32, IVLen: 0, FixedIVLen: 12}
	rc4    = BulkCipher{Primitive: PrimitiveRC4, Algo: "RC4-128", Type: CipherStream, EncKeyLen: 16}
	tripd  = BulkCipher{Primitive: Primitive3DES, Algo: "3DES-EDE-CBC", Type: CipherBlock, EncKeyLen: 24, BlockSize: 8, IVLen: 8}

	md5Mac    = MACDescriptor{HashAlgo: HashMD5, MacLen: 16, MacKeyLen: 16, HMACAlgo: "HMAC-MD5"}
	sha1Mac   = MACDescriptor{HashAlgo: HashSHA1, MacLen: 20, MacKeyLen: 20, HMACAlgo: "HMAC-SHA1"}
	sha256Mac = MACDescriptor{HashAlgo: HashSHA256, MacLen: 32, MacKeyLen: 32, HMACAlgo: "HMAC-SHA256"}
	sha384Mac = MACDescriptor{HashAlgo: HashSHA384, MacLen: 48, MacKeyLen: 48, HMACAlgo: "HMAC-SHA384"}
	aeadMac   = MACDescriptor{HashAlgo: HashNone, MacLen: 0, MacKeyLen: 0}
)

// CipherSuites is the static registry table (design note: "cipher-suite
// name-string parsing to derive key-ex/cipher/hash -> static table"). It
// covers the suites the scanner presets offer and enumerate; an id absent
// from this table parses fine on the wire but is flagged "unsupported for
// handshake" by LookupCipherSuite.
var CipherSuites = map[CipherSuite]CipherSuiteInfo{
	0x0005: {"TLS_RSA_WITH_RC4_128_SHA", KexRSA, rc4, sha1Mac, SSL30},
	0x000a: {"TLS_RSA_WITH_3DES_EDE_CBC_SHA", KexRSA, tripd, sha1Mac, SSL30},
	0x002f: {"TLS_RSA_WITH_AES_128_CBC_SHA", KexRSA, cbc128, sha1Mac, SSL30},
	0x0035: {"TLS_RSA_WITH_AES_256_CBC_SHA", KexRSA, cbc256, sha1Mac, SSL30},
	0x003c: {"TLS_RSA_WITH_AES_128_CBC_SHA256", KexRSA, cbc128, sha256Mac, TLS12},
	0x009c: {"TLS_RSA_WITH_AES_128_GCM_SHA256", KexRSA, gcm128, aeadMac, TLS12},
	0x009d: {"TLS_RSA_WITH_AES_256_GCM_SHA384", KexRSA, gcm256, aeadMac, TLS12},
	0x0018: {"TLS_DH_anon_WITH_RC4_128_MD5", KexDHAnon, rc4, md5Mac, SSL30},
	0x001b: {"TLS_DH_anon_WITH_3DES_EDE_CBC_SHA", KexDHAnon, tripd, sha1Mac, SSL30},
	0x0034: {"TLS_DH_anon_WITH_AES_128_CBC_SHA", KexDHAnon, cbc128, sha1Mac, SSL30},
	0x0033: {"TLS_DHE_RSA_WITH_AES_128_CBC_SHA", KexDHE, cbc128, sha1Mac, SSL30},
	0x0039: {"TLS_DHE_RSA_WITH_AES_256_CBC_SHA", KexDHE, cbc256, sha1Mac, SSL30},
	0x0067: {"TLS_DHE_RSA_WITH_AES_128_CBC_SHA256", KexDHE, cbc128, sha256Mac, TLS12},
	0x009e: {"TLS_DHE_RSA_WITH_AES_128_GCM_SHA256", KexDHE, gcm128, aeadMac, TLS12},
	0x009f: {"TLS_DHE_RSA_WITH_AES_256_GCM_SHA384", KexDHE, gcm256, aeadMac, TLS12},
	0xc007: {"TLS_ECDHE_ECDSA_WITH_RC4_128_SHA", KexECDHE, rc4, sha1Mac, TLS10},
	0xc009: {"TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA", KexECDHE, cbc128, sha1Mac, TLS10},
	0xc00a: {"TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA", KexECDHE, cbc256, sha1Mac, TLS10},
	0xc013: {"TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA", KexECDHE, cbc128, sha1Mac, TLS10},
	0xc014: {"TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA", KexECDHE, cbc256, sha1Mac, TLS10},
	0xc023: {"TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256", KexECDHE, cbc128, sha256Mac, TLS12},
	0xc027: {"TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256", KexECDHE, cbc128, sha256Mac, TLS12},
	0xc02b: {"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256", KexECDHE, gcm128, aeadMac, TLS12},
	0xc02c: {"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384", KexECDHE, gcm256, aeadMac, TLS12},
	0xc02f: {"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256", KexECDHE, gcm128, aeadMac, TLS12},
	0xc030: {"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384", KexECDHE, gcm256, aeadMac, TLS12},
	0xcca8: {"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256", KexECDHE, chacha, aeadMac, TLS12},
	0xcca9: {"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256", KexECDHE, chacha, aeadMac, TLS12},
	0xccaa: {"TLS_DHE_RSA_WITH_CHACHA20_POLY1305_SHA256", KexDHE, chacha, aeadMac, TLS12},
	// PSK
	0x008c: {"TLS_PSK_WITH_AES_128_CBC_SHA", KexPSK, cbc128, sha1Mac, SSL30},
	0x00a8: {"TLS_PSK_WITH_AES_128_GCM_SHA256", KexPSK, gcm128, aeadMac, TLS12},
	0x00aa: {"TLS_DHE_PSK_WITH_AES_128_GCM_SHA256", KexPSKDHE, gcm128, aeadMac, TLS12},
	0xc0a8: {"TLS_PSK_WITH_AES_128_CCM", KexPSK, gcm128, aeadMac, TLS12},
	// TLS 1.3 (key exchange is entirely governed by the key_share/PSK
	// extensions; KeyEx is recorded as KexTLS13 so the key schedule engine
	// knows to use the HKDF-based derivation instead of the TLS<=1.2 PRF).
	0x1301: {"TLS_AES_128_GCM_SHA256", KexTLS13, gcm128, MACDescriptor{HashAlgo: HashSHA256}, TLS13},
	0x1302: {"TLS_AES_256_GCM_SHA384", KexTLS13, gcm256, MACDescriptor{HashAlgo: HashSHA384}, TLS13},
	0x1303: {"TLS_CHACHA20_POLY1305_SHA256", KexTLS13, chacha, MACDescriptor{HashAlgo: HashSHA256}, TLS13},
}

// LookupCipherSuite returns the static info for id, and false if id is not
// in our registry (the wire codec still parses such an id; only the
// handshake state machine treats it as "unsupported for handshake").
func LookupCipherSuite(id CipherSuite) (CipherSuiteInfo, bool) {
	info, ok := CipherSuites[id]
	return info, ok
}

// TranscriptHash returns the hash primitive used for the PRF, Finished
// computation, and (at TLS 1.2) the transcript digest: SHA-384 for suites
// whose name says so, SHA-256 otherwise (RFC 5246 §7.4.9's default, and the
// TLS 1.3 suites that don't specify SHA-384). This is independent of the
// suite's record MAC -- a GCM/ChaCha suite has no record MAC at all
// (aeadMac), and even CBC suites with a SHA-1 record MAC (e.g.
// TLS_RSA_WITH_AES_128_CBC_SHA) use SHA-256 here once negotiated at TLS 1.2.
// Callers below TLS 1.2 ignore this and use the version-mandated dual
// MD5+SHA1 PRF/transcript instead (tlscrypto.PRF10).
func (info CipherSuiteInfo) TranscriptHash() HashPrimitive {
	if strings.HasSuffix(info.Name, "_SHA384") {
		return HashSHA384
	}
	return HashSHA256
}
