// SPDX-License-Identifier: Apache-2.0

package tlsconn

import (
	"crypto/rsa"
	"crypto/x509"
	"math/big"

	"golang.org/x/crypto/cryptobyte"

	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/tlscrypto"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlskex"
	"github.com/tlsmate-go/tlsmate/tlsrecord"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// HandshakeResult is what a completed (or partially completed, for workers
// that only care about the ServerHello) handshake yields back to the
// caller.
type HandshakeResult struct {
	Version      tlswire.ProtocolVersion
	Suite        tlswire.CipherSuiteInfo
	ServerHello  *tlswire.ServerHello
	CertChain    []*x509.Certificate
	Resumed      bool
	OCSPResponse []byte // stapled response, TLS <= 1.2's separate CertificateStatus message

	// SessionTicket holds the server's NewSessionTicket, if it sent one
	// before CCS_RECV; also sent post-handshake by a TLS 1.3 server, which
	// this engine does not wait for since completing the handshake does
	// not depend on it.
	SessionTicket *tlswire.NewSessionTicket

	// MasterSecret is the negotiated TLS <= 1.2 master secret, kept so a
	// worker can build a clientprofile.SessionState for a later resumption
	// attempt. Unset (nil) for TLS 1.3, whose resumption uses PSK binders
	// instead of a cacheable master secret.
	MasterSecret []byte

	// EncryptedExtensions holds the TLS 1.3 EncryptedExtensions message's
	// extension list (nil for a TLS <= 1.2 handshake), so callers can check
	// what the server echoed there (e.g. supported_groups).
	EncryptedExtensions []tlswire.Extension

	// DHGroupBits is the server-generated finite-field DHE modulus's bit
	// length, 0 unless the negotiated suite used DHE.
	DHGroupBits int

	// LeafCertificateExtensions holds the first CertificateEntry's
	// extension list from a TLS 1.3 Certificate message (nil for TLS <=
	// 1.2, which has no per-entry extensions at all) -- the only place a
	// TLS 1.3 server can staple an OCSP response (RFC 8446 §4.4.2.1).
	LeafCertificateExtensions []tlswire.Extension
}

// HandshakeHooks lets a caller interpose at specific points in
// PerformHandshake's TLS <= 1.2 flight, for scan workers that probe
// protocol robustness rather than drive a normal handshake to completion.
type HandshakeHooks struct {
	// AfterServerHello runs once the ServerHello is parsed, before the rest
	// of the server's flight is read. Returning an error aborts the
	// handshake with that error.
	AfterServerHello func(*Connection, *tlswire.ServerHello) error
}

// PerformHandshake drives a full handshake using offer against the peer
// already connected on c, dispatching to the TLS 1.2-and-earlier or TLS 1.3
// driver based on what the server actually selects -- the client always
// offers its full version range and follows the server's choice.
func PerformHandshake(c *Connection, offer *clientprofile.Offer) (*HandshakeResult, error) {
	return PerformHandshakeWithHooks(c, offer, nil)
}

// PerformHandshakeWithHooks is PerformHandshake with the caller able to
// interpose at points HandshakeHooks exposes; nil hooks behaves exactly
// like PerformHandshake.
func PerformHandshakeWithHooks(c *Connection, offer *clientprofile.Offer, hooks *HandshakeHooks) (*HandshakeResult, error) {
	if err := c.SendHandshake(offer.Hello); err != nil {
		return nil, err
	}
	c.ClientRandom = offer.Hello.Random

	msg, err := c.WaitHandshake()
	if err != nil {
		return nil, err
	}
	sh, ok := msg.(*tlswire.ServerHello)
	if !ok {
		return nil, tlserr.NewSemanticError(tlserr.AlertUnexpectedMessage, "expected server_hello, got %T", msg)
	}
	c.ServerRandom = sh.Random

	negotiated := negotiatedVersion(sh)
	suite, ok := tlswire.LookupCipherSuite(sh.CipherSuite)
	if !ok {
		return nil, tlserr.NewSemanticError(tlserr.AlertHandshakeFailure, "server selected unknown cipher suite 0x%04x", sh.CipherSuite)
	}
	c.NegotiatedVersion = negotiated
	c.SelectedSuite = suite

	if hooks != nil && hooks.AfterServerHello != nil {
		if err := hooks.AfterServerHello(c, sh); err != nil {
			return nil, err
		}
	}

	if negotiated == tlswire.TLS13 {
		return continueTLS13(c, offer, sh, suite)
	}
	return continueTLS12(c, offer, sh, suite)
}

// negotiatedVersion reads the supported_versions extension when present
// (TLS 1.3 signals its real version there, not in ServerHello.ServerVersion,
// per RFC 8446 §4.1.3).
func negotiatedVersion(sh *tlswire.ServerHello) tlswire.ProtocolVersion {
	for _, ext := range sh.Extensions {
		if sv, ok := ext.(*tlswire.SupportedVersionsExtension); ok && len(sv.Versions) == 1 {
			return sv.Versions[0]
		}
	}
	return sh.ServerVersion
}

func continueTLS12(c *Connection, offer *clientprofile.Offer, sh *tlswire.ServerHello, suite tlswire.CipherSuiteInfo) (*HandshakeResult, error) {
	extendedMasterSecret := hasEmptyExtension(sh.Extensions, tlswire.ExtExtendedMasterSecret)
	hashAlgo := suite.TranscriptHash()

	first, err := c.WaitHandshake()
	if err != nil {
		return nil, err
	}
	var abbreviatedTicket *tlswire.NewSessionTicket
	if nst, ok := first.(*tlswire.NewSessionTicket); ok {
		// [NewSessionTicket] can precede the abbreviated flow's CCS too
		// (RFC 5246 Appendix F.1.4); keep it and look at the next message.
		abbreviatedTicket = nst
		first, err = c.WaitHandshake()
		if err != nil {
			return nil, err
		}
	}
	if any, ok := first.(*tlswire.Any); ok && any.CT == tlswire.ContentChangeCipherSpec {
		// Server skipped straight to ChangeCipherSpec: an abbreviated
		// (session-id or ticket) resumption. Only valid if this connection actually
		// offered something to resume.
		if offer.Resume == nil {
			return nil, tlserr.NewSemanticError(tlserr.AlertUnexpectedMessage, "server resumed a session this client never offered")
		}
		if extendedMasterSecret != offer.Resume.ExtendedMasterSecret {
			return nil, tlserr.NewSemanticError(tlserr.AlertHandshakeFailure, "resumption extended_master_secret bit mismatch")
		}
		result, err := continueAbbreviated12(c, suite, hashAlgo, offer.Resume.MasterSecret, hasEmptyExtension(sh.Extensions, tlswire.ExtEncryptThenMAC))
		if err != nil {
			return nil, err
		}
		result.SessionTicket = abbreviatedTicket
		return result, nil
	}
	if abbreviatedTicket != nil {
		return nil, tlserr.NewSemanticError(tlserr.AlertUnexpectedMessage, "unexpected new_session_ticket outside abbreviated handshake")
	}

	var certs []*x509.Certificate
	var serverPub *rsa.PublicKey
	var exchange tlskex.Exchange
	var serverShare []byte
	var ocspResponse []byte
	var dhGroupBits int

	msg := first
readLoop:
	for {
		switch m := msg.(type) {
		case *tlswire.Certificate:
			for _, entry := range m.Chain {
				cert, perr := tlscrypto.ParseCertificate(entry.Raw)
				if perr != nil {
					return nil, perr
				}
				certs = append(certs, cert)
			}
			if len(certs) > 0 {
				if pub, ok := certs[0].PublicKey.(*rsa.PublicKey); ok {
					serverPub = pub
				}
			}
		case *tlswire.CertificateStatus:
			if m.StatusType == 1 {
				ocspResponse = m.Response
			}
		case *tlswire.ServerKeyExchange:
			ex, share, bits, perr := buildServerKeyExchange(suite, m)
			if perr != nil {
				return nil, perr
			}
			exchange = ex
			serverShare = share
			dhGroupBits = bits
		case *tlswire.ServerHelloDone:
			break readLoop
		default:
			return nil, tlserr.NewSemanticError(tlserr.AlertUnexpectedMessage, "unexpected message %T during server flight", msg)
		}
		msg, err = c.WaitHandshake()
		if err != nil {
			return nil, err
		}
	}

	var premaster []byte
	var cke *tlswire.ClientKeyExchange

	switch suite.KeyEx {
	case tlswire.KexRSA:
		rsaEx, err := tlskex.NewRSAExchange(offer.Hello.ClientVersion)
		if err != nil {
			return nil, err
		}
		if serverPub == nil {
			return nil, tlserr.NewSemanticError(tlserr.AlertHandshakeFailure, "no RSA certificate presented for RSA key exchange")
		}
		enc, err := rsaEx.EncryptPremaster(serverPub)
		if err != nil {
			return nil, err
		}
		premaster = rsaEx.Premaster()
		cke = &tlswire.ClientKeyExchange{Exchange: enc}

	case tlswire.KexDHE, tlswire.KexECDHE:
		if exchange == nil {
			return nil, tlserr.NewSemanticError(tlserr.AlertHandshakeFailure, "no server_key_exchange for key exchange method %d", suite.KeyEx)
		}
		share, err := exchange.Offer()
		if err != nil {
			return nil, err
		}
		secret, err := exchange.Complete(serverShare)
		if err != nil {
			return nil, err
		}
		premaster = secret
		cke = &tlswire.ClientKeyExchange{Exchange: share.Value}

	default:
		return nil, tlserr.NewSemanticError(tlserr.AlertHandshakeFailure, "unsupported key exchange method %d", suite.KeyEx)
	}

	if err := c.SendHandshake(cke); err != nil {
		return nil, err
	}

	var sessionHash []byte
	if extendedMasterSecret {
		sessionHash = c.TranscriptDigest(hashAlgo)
	}
	masterSecret, err := tlskex.DeriveMasterSecret12(c.NegotiatedVersion, hashAlgo, premaster, c.ClientRandom[:], c.ServerRandom[:], sessionHash, extendedMasterSecret)
	if err != nil {
		return nil, err
	}

	encryptThenMAC := hasEmptyExtension(sh.Extensions, tlswire.ExtEncryptThenMAC)
	clientKM, serverKM, err := tlskex.DeriveKeyBlock12(c.NegotiatedVersion, hashAlgo, masterSecret, c.ClientRandom[:], c.ServerRandom[:], suite.Cipher, suite.MAC)
	if err != nil {
		return nil, err
	}
	clientKM.EncryptThenMAC = encryptThenMAC
	serverKM.EncryptThenMAC = encryptThenMAC

	if err := c.Layer.SendFragment(tlswire.ContentChangeCipherSpec, tlswire.MarshalChangeCipherSpec()); err != nil {
		return nil, err
	}
	writeState, err := tlsrecord.Rekey(suite, c.NegotiatedVersion, clientKM)
	if err != nil {
		return nil, err
	}
	c.Layer.SetWriteState(writeState)

	finishedHash := c.TranscriptDigest(hashAlgo)
	verifyData, err := tlskex.VerifyData12(c.NegotiatedVersion, hashAlgo, masterSecret, tlskex.LabelClientFinished, finishedHash)
	if err != nil {
		return nil, err
	}
	if err := c.SendHandshake(&tlswire.Finished{VerifyData: verifyData}); err != nil {
		return nil, err
	}

	// [NewSessionTicket], then CCS + Finished (RFC 5246 Appendix F.1.1 puts
	// NewSessionTicket, when sent, right before the server's CCS).
	var ticket *tlswire.NewSessionTicket
	ccsMsg, err := c.WaitHandshake()
	if err != nil {
		return nil, err
	}
	if nst, ok := ccsMsg.(*tlswire.NewSessionTicket); ok {
		ticket = nst
		ccsMsg, err = c.WaitHandshake()
		if err != nil {
			return nil, err
		}
	}
	if _, ok := ccsMsg.(*tlswire.Any); !ok {
		return nil, tlserr.NewSemanticError(tlserr.AlertUnexpectedMessage, "expected change_cipher_spec, got %T", ccsMsg)
	}
	readState, err := tlsrecord.Rekey(suite, c.NegotiatedVersion, serverKM)
	if err != nil {
		return nil, err
	}
	c.Layer.SetReadState(readState)

	serverFinishedHash := c.TranscriptDigest(hashAlgo)
	serverMsg, err := c.WaitHandshake()
	if err != nil {
		return nil, err
	}
	serverFin, ok := serverMsg.(*tlswire.Finished)
	if !ok {
		return nil, tlserr.NewSemanticError(tlserr.AlertUnexpectedMessage, "expected finished, got %T", serverMsg)
	}
	wantServerVerify, err := tlskex.VerifyData12(c.NegotiatedVersion, hashAlgo, masterSecret, tlskex.LabelServerFinished, serverFinishedHash)
	if err != nil {
		return nil, err
	}
	// A verify_data mismatch always fails the handshake.
	if !constantTimeEqual(serverFin.VerifyData, wantServerVerify) {
		return nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "server Finished verify_data mismatch")
	}

	return &HandshakeResult{
		Version:       c.NegotiatedVersion,
		Suite:         suite,
		ServerHello:   sh,
		CertChain:     certs,
		OCSPResponse:  ocspResponse,
		DHGroupBits:   dhGroupBits,
		SessionTicket: ticket,
		MasterSecret:  masterSecret,
	}, nil
}

// continueAbbreviated12 finishes a resumed TLS <= 1.2 handshake once the
// server has skipped straight to ChangeCipherSpec after ServerHello: the
// server's flight is just CCS + Finished, derived from the cached master
// secret instead of a fresh key exchange (RFC 5246 Appendix F.1.4).
func continueAbbreviated12(c *Connection, suite tlswire.CipherSuiteInfo, hashAlgo tlswire.HashPrimitive, masterSecret []byte, encryptThenMAC bool) (*HandshakeResult, error) {
	clientKM, serverKM, err := tlskex.DeriveKeyBlock12(c.NegotiatedVersion, hashAlgo, masterSecret, c.ClientRandom[:], c.ServerRandom[:], suite.Cipher, suite.MAC)
	if err != nil {
		return nil, err
	}
	clientKM.EncryptThenMAC = encryptThenMAC
	serverKM.EncryptThenMAC = encryptThenMAC

	readState, err := tlsrecord.Rekey(suite, c.NegotiatedVersion, serverKM)
	if err != nil {
		return nil, err
	}
	c.Layer.SetReadState(readState)

	serverFinishedHash := c.TranscriptDigest(hashAlgo)
	serverMsg, err := c.WaitHandshake()
	if err != nil {
		return nil, err
	}
	serverFin, ok := serverMsg.(*tlswire.Finished)
	if !ok {
		return nil, tlserr.NewSemanticError(tlserr.AlertUnexpectedMessage, "expected finished, got %T", serverMsg)
	}
	wantServerVerify, err := tlskex.VerifyData12(c.NegotiatedVersion, hashAlgo, masterSecret, tlskex.LabelServerFinished, serverFinishedHash)
	if err != nil {
		return nil, err
	}
	if !constantTimeEqual(serverFin.VerifyData, wantServerVerify) {
		return nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "server Finished verify_data mismatch")
	}

	if err := c.Layer.SendFragment(tlswire.ContentChangeCipherSpec, tlswire.MarshalChangeCipherSpec()); err != nil {
		return nil, err
	}
	writeState, err := tlsrecord.Rekey(suite, c.NegotiatedVersion, clientKM)
	if err != nil {
		return nil, err
	}
	c.Layer.SetWriteState(writeState)

	finishedHash := c.TranscriptDigest(hashAlgo)
	verifyData, err := tlskex.VerifyData12(c.NegotiatedVersion, hashAlgo, masterSecret, tlskex.LabelClientFinished, finishedHash)
	if err != nil {
		return nil, err
	}
	if err := c.SendHandshake(&tlswire.Finished{VerifyData: verifyData}); err != nil {
		return nil, err
	}

	return &HandshakeResult{
		Version:      c.NegotiatedVersion,
		Suite:        suite,
		Resumed:      true,
		MasterSecret: masterSecret,
	}, nil
}

func continueTLS13(c *Connection, offer *clientprofile.Offer, sh *tlswire.ServerHello, suite tlswire.CipherSuiteInfo) (*HandshakeResult, error) {
	var serverGroup uint16
	var serverShare []byte
	for _, ext := range sh.Extensions {
		if ks, ok := ext.(*tlswire.KeyShareExtension); ok && len(ks.Entries) == 1 {
			serverGroup = ks.Entries[0].Group
			serverShare = ks.Entries[0].KeyExchange
		}
	}
	exchange, ok := offer.Exchange[serverGroup]
	if !ok {
		return nil, tlserr.NewSemanticError(tlserr.AlertHandshakeFailure, "server selected a group 0x%04x the client never offered a share for", serverGroup)
	}
	sharedSecret, err := exchange.Complete(serverShare)
	if err != nil {
		return nil, err
	}

	hashAlgo := suite.TranscriptHash()
	sched, err := tlskex.NewSchedule13(hashAlgo, nil)
	if err != nil {
		return nil, err
	}
	transcriptAfterSH := c.TranscriptHash(hashAlgo)
	clientHS, serverHS, err := sched.AdvanceHandshake(sharedSecret, transcriptAfterSH)
	if err != nil {
		return nil, err
	}

	serverKM, err := tlskex.TrafficKeys(hashAlgo, serverHS, suite.Cipher)
	if err != nil {
		return nil, err
	}
	readState, err := tlsrecord.Rekey(suite, tlswire.TLS13, serverKM)
	if err != nil {
		return nil, err
	}
	c.Layer.SetReadState(readState)

	clientKM, err := tlskex.TrafficKeys(hashAlgo, clientHS, suite.Cipher)
	if err != nil {
		return nil, err
	}
	writeState, err := tlsrecord.Rekey(suite, tlswire.TLS13, clientKM)
	if err != nil {
		return nil, err
	}

	var certs []*x509.Certificate
	var leafExtensions []tlswire.Extension
	var encryptedExtensions []tlswire.Extension
readLoop:
	for {
		msg, err := c.WaitHandshake()
		if err != nil {
			return nil, err
		}
		switch m := msg.(type) {
		case *tlswire.EncryptedExtensions:
			encryptedExtensions = m.Extensions
		case *tlswire.CertificateRequest:
			// client certificates are out of scope; continue
		case *tlswire.Certificate:
			for i, entry := range m.Chain {
				cert, perr := tlscrypto.ParseCertificate(entry.Raw)
				if perr != nil {
					return nil, perr
				}
				certs = append(certs, cert)
				if i == 0 {
					leafExtensions = entry.Extensions
				}
			}
		case *tlswire.CertificateVerify:
			// signature verification against the leaf certificate is the
			// scan's job when it cares.
		case *tlswire.Finished:
			transcriptBeforeFinished := c.TranscriptHash(hashAlgo)
			finishedKey, ferr := tlskex.FinishedKey(hashAlgo, serverHS)
			if ferr != nil {
				return nil, ferr
			}
			want, ferr := tlskex.VerifyData13(hashAlgo, finishedKey, transcriptBeforeFinished)
			if ferr != nil {
				return nil, ferr
			}
			if !constantTimeEqual(m.VerifyData, want) {
				return nil, tlserr.NewCryptoError(tlserr.AlertBadRecordMAC, "server Finished verify_data mismatch")
			}
			break readLoop
		default:
			return nil, tlserr.NewSemanticError(tlserr.AlertUnexpectedMessage, "unexpected message %T in TLS 1.3 server flight", msg)
		}
	}

	clientFinishedTranscript := c.TranscriptHash(hashAlgo)
	clientFinishedKey, err := tlskex.FinishedKey(hashAlgo, clientHS)
	if err != nil {
		return nil, err
	}
	clientVerify, err := tlskex.VerifyData13(hashAlgo, clientFinishedKey, clientFinishedTranscript)
	if err != nil {
		return nil, err
	}
	c.Layer.SetWriteState(writeState)
	if err := c.SendHandshake(&tlswire.Finished{VerifyData: clientVerify}); err != nil {
		return nil, err
	}

	masterTranscript := c.TranscriptHash(hashAlgo)
	clientAP, serverAP, _, err := sched.AdvanceMaster(masterTranscript)
	if err != nil {
		return nil, err
	}
	serverAppKM, err := tlskex.TrafficKeys(hashAlgo, serverAP, suite.Cipher)
	if err != nil {
		return nil, err
	}
	readAppState, err := tlsrecord.Rekey(suite, tlswire.TLS13, serverAppKM)
	if err != nil {
		return nil, err
	}
	c.Layer.SetReadState(readAppState)

	clientAppKM, err := tlskex.TrafficKeys(hashAlgo, clientAP, suite.Cipher)
	if err != nil {
		return nil, err
	}
	writeAppState, err := tlsrecord.Rekey(suite, tlswire.TLS13, clientAppKM)
	if err != nil {
		return nil, err
	}
	c.Layer.SetWriteState(writeAppState)

	return &HandshakeResult{
		Version:                   tlswire.TLS13,
		Suite:                     suite,
		ServerHello:               sh,
		CertChain:                 certs,
		EncryptedExtensions:       encryptedExtensions,
		LeafCertificateExtensions: leafExtensions,
	}, nil
}

func hasEmptyExtension(exts []tlswire.Extension, id tlswire.ExtensionID) bool {
	for _, e := range exts {
		if e.ID() == id {
			return true
		}
	}
	return false
}

// buildServerKeyExchange parses ServerKeyExchange.Params for the negotiated
// key-exchange method and returns both the Exchange primitive (which
// generates the client's own share) and the server's share bytes needed to
// complete it. The signature trailing Params (SignatureAndHashAlgorithm +
// signature, for signed cipher suites) is left unparsed: certificate-chain
// trust and server-signature verification are the scan's job, not this
// engine's.
func buildServerKeyExchange(suite tlswire.CipherSuiteInfo, ske *tlswire.ServerKeyExchange) (tlskex.Exchange, []byte, int, error) {
	switch suite.KeyEx {
	case tlswire.KexECDHE:
		if len(ske.Params) < 4 {
			return nil, nil, 0, tlserr.NewDecodeError("server_key_exchange: truncated ECDHE params")
		}
		if curveType := ske.Params[0]; curveType != 3 {
			return nil, nil, 0, tlserr.NewSemanticError(tlserr.AlertHandshakeFailure, "unsupported ECParameters curve_type %d", curveType)
		}
		group := uint16(ske.Params[1])<<8 | uint16(ske.Params[2])
		pubLen := int(ske.Params[3])
		if len(ske.Params) < 4+pubLen {
			return nil, nil, 0, tlserr.NewDecodeError("server_key_exchange: truncated EC public value")
		}
		ex, err := tlskex.NewECDHExchange(group)
		if err != nil {
			return nil, nil, 0, err
		}
		return ex, append([]byte(nil), ske.Params[4:4+pubLen]...), 0, nil

	case tlswire.KexDHE:
		s := cryptobyte.String(ske.Params)
		var p, g, ys cryptobyte.String
		if !s.ReadUint16LengthPrefixed(&p) || !s.ReadUint16LengthPrefixed(&g) || !s.ReadUint16LengthPrefixed(&ys) {
			return nil, nil, 0, tlserr.NewDecodeError("server_key_exchange: truncated DHE params")
		}
		pInt := new(big.Int).SetBytes(p)
		ex, err := tlskex.NewDHExchange(pInt, new(big.Int).SetBytes(g))
		if err != nil {
			return nil, nil, 0, err
		}
		return ex, append([]byte(nil), ys...), pInt.BitLen(), nil

	default:
		return nil, nil, 0, tlserr.NewSemanticError(tlserr.AlertInternalError, "unexpected server_key_exchange for method %d", suite.KeyEx)
	}
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
