// SPDX-License-Identifier: Apache-2.0

package tlscrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"io"

	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// CBCCipher wraps a block cipher in CBC mode for the non-AEAD record path.
type CBCCipher struct {
	block     cipher.Block
	blockSize int
}

// NewCBCCipher builds a CBC cipher for the given BulkCipher and key.
func NewCBCCipher(cs tlswire.BulkCipher, key []byte) (*CBCCipher, error) {
	var block cipher.Block
	var err error
	switch cs.Primitive {
	case tlswire.PrimitiveAES:
		block, err = aes.NewCipher(key)
	case tlswire.Primitive3DES:
		block, err = des.NewTripleDESCipher(key)
	default:
		return nil, tlserr.NewSemanticError(tlserr.AlertInternalError, "no CBC cipher for primitive %d", cs.Primitive)
	}
	if err != nil {
		return nil, err
	}
	return &CBCCipher{block: block, blockSize: block.BlockSize()}, nil
}

func (c *CBCCipher) BlockSize() int { return c.blockSize }

// Encrypt prepends a fresh random IV (explicit-IV mode, RFC 5246 §6.2.3.2 --
// CBC suites always carry an explicit IV in this engine, never the implicit
// SSLv3/TLS1.0 chained-IV mode) and PKCS#7-pads plaintext to a block
// boundary before encrypting.
func (c *CBCCipher) Encrypt(plaintext []byte) ([]byte, error) {
	iv := make([]byte, c.blockSize)
	if _, err := io.ReadFull(RandomReader, iv); err != nil {
		return nil, err
	}
	padded := padCBC(plaintext, c.blockSize)
	out := make([]byte, c.blockSize+len(padded))
	copy(out, iv)
	mode := cipher.NewCBCEncrypter(c.block, iv)
	mode.CryptBlocks(out[c.blockSize:], padded)
	return out, nil
}

// Decrypt splits off the explicit IV, decrypts, and strips padding,
// returning tlserr.AlertBadRecordMAC on any structural inconsistency so a
// padding-oracle cannot be distinguished from a MAC failure by timing or
// error kind (the edge case  calls out for bad_record_mac).
func (c *CBCCipher) Decrypt(record []byte) ([]byte, error) {
	if len(record) < 2*c.blockSize || (len(record)-c.blockSize)%c.blockSize != 0 {
		return nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "CBC record malformed")
	}
	iv := record[:c.blockSize]
	ct := record[c.blockSize:]
	out := make([]byte, len(ct))
	mode := cipher.NewCBCDecrypter(c.block, iv)
	mode.CryptBlocks(out, ct)
	return unpadCBC(out)
}

func padCBC(data []byte, blockSize int) []byte {
	padLen := blockSize - (len(data)+1)%blockSize
	if padLen < 0 {
		padLen += blockSize
	}
	out := append([]byte(nil), data...)
	for i := 0; i <= padLen; i++ {
		out = append(out, byte(padLen))
	}
	return out
}

func unpadCBC(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "empty CBC record")
	}
	padLen := int(data[len(data)-1])
	if padLen+1 > len(data) {
		return nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "CBC padding too long")
	}
	for _, b := range data[len(data)-padLen-1:] {
		if int(b) != padLen {
			return nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "CBC padding malformed")
		}
	}
	return data[:len(data)-padLen-1], nil
}
