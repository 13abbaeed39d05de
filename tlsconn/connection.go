// SPDX-License-Identifier: Apache-2.0

// Package tlsconn is the connection and handshake state machine (design
// component C5): scoped acquisition of a transport (closing it and, on an
// abnormal exit, emitting a FATAL alert first), the two-phase transcript
// hash buffer, and the message store a worker's handshake drives through.
package tlsconn

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"net"
	"time"

	"github.com/tlsmate-go/tlsmate/recorder"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlsrecord"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// Connection is one TLS connection attempt: the record layer, the
// handshake transcript, and whatever state the handshake driver needs to
// carry between messages.
type Connection struct {
	Layer    *tlsrecord.Layer
	conn     net.Conn
	recorder *recorder.Recorder

	transcript *transcriptHash

	NegotiatedVersion tlswire.ProtocolVersion
	ClientRandom      [32]byte
	ServerRandom      [32]byte
	SelectedSuite     tlswire.CipherSuiteInfo

	closed bool
}

// transcriptHash buffers every handshake message's wire bytes. Before the
// cipher suite (and therefore the transcript hash algorithm) is known, raw
// bytes accumulate in buf; once SetHashAlgorithm is called the buffered
// bytes are fed into a live hash.Hash and further Append calls stream
// directly into it, exactly mirroring RFC 8446's "start with SHA-256,
// possibly widen to SHA-384" allowance and RFC 5246's fixed-SHA-256-or-mix
// transcript. Below TLS 1.2 the transcript is instead the concatenation of
// a running MD5 and a running SHA-1 digest (RFC 2246 §5) -- SetDualHash
// switches the buffer into that mode instead.
type transcriptHash struct {
	buf    []byte
	h      hash.Hash
	md5    hash.Hash
	sha1   hash.Hash
	dual   bool
	hashed bool
}

func newTranscriptHash() *transcriptHash { return &transcriptHash{} }

func (t *transcriptHash) Append(data []byte) {
	if t.dual {
		t.md5.Write(data)
		t.sha1.Write(data)
		return
	}
	if t.h != nil {
		t.h.Write(data)
		return
	}
	t.buf = append(t.buf, data...)
}

func (t *transcriptHash) SetHashAlgorithm(p tlswire.HashPrimitive) {
	if t.h != nil || t.dual {
		return
	}
	switch p {
	case tlswire.HashSHA384:
		t.h = sha512.New384()
	default:
		t.h = sha256.New()
	}
	t.h.Write(t.buf)
	t.buf = nil
}

// SetDualHash switches the transcript into TLS 1.0/1.1's MD5+SHA1 mode,
// seeding both digests with whatever was buffered before the version (and
// therefore the PRF) was known.
func (t *transcriptHash) SetDualHash() {
	if t.dual || t.h != nil {
		return
	}
	t.dual = true
	t.md5 = md5.New()
	t.sha1 = sha1.New()
	t.md5.Write(t.buf)
	t.sha1.Write(t.buf)
	t.buf = nil
}

func (t *transcriptHash) Sum() []byte {
	if t.dual {
		return append(t.md5.Sum(nil), t.sha1.Sum(nil)...)
	}
	if t.h == nil {
		sum := sha256.Sum256(t.buf)
		return sum[:]
	}
	return t.h.Sum(nil)
}

// Open wraps conn as an active, unprotected Connection. If rec is
// RECORDING or REPLAYING, the transport is additionally wrapped so every
// byte sent/received is traced/replayed.
func Open(conn net.Conn, rec *recorder.Recorder) *Connection {
	var rw net.Conn = conn
	if rec != nil && rec.State() != recorder.StateInactive {
		rw = recorder.Wrap(conn, rec)
	}
	return &Connection{
		Layer:      tlsrecord.NewLayer(rw),
		conn:       conn,
		recorder:   rec,
		transcript: newTranscriptHash(),
	}
}

// Close closes the underlying socket. If fatal is true, a FATAL alert with
// the given description is sent first -- the scoped-acquisition-with-
// cleanup idiom (design note) guarantees this runs on every exit path,
// normal or abnormal, via the caller's defer.
func (c *Connection) Close(fatal bool, desc tlserr.AlertDescription) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if fatal {
		rec := &tlswire.Alert{Fatal: true, Description: byte(desc)}
		_ = c.Layer.SendFragment(tlswire.ContentAlert, tlswire.MarshalAlert(rec))
	}
	return c.conn.Close()
}

// SendHandshake marshals msg, feeds its wire bytes into the transcript, and
// writes it through the record layer.
func (c *Connection) SendHandshake(msg tlswire.Message) error {
	wire := tlswire.MarshalHandshake(msg)
	c.transcript.Append(wire)
	return c.Layer.SendFragment(tlswire.ContentHandshake, wire)
}

// SetDeadline propagates a single read/write deadline to the underlying
// socket directly, bypassing any recorder.Conn wrapper.
func (c *Connection) SetDeadline(d time.Duration) error {
	return c.conn.SetDeadline(time.Now().Add(d))
}

// WaitHandshake reads (and buffers, across records as needed) until one
// complete handshake message is available, parses it, and feeds its exact
// wire bytes into the transcript before returning it. Non-handshake
// content (Alert, stray ChangeCipherSpec) is translated into
// tlserr.NegotiationRefused or returned as an *Any for the caller to
// recognize.
func (c *Connection) WaitHandshake() (tlswire.Message, error) {
	for {
		ct, buf, err := c.Layer.ReadHandshakeFragment()
		if err != nil {
			return nil, err
		}
		if ct == tlswire.ContentAlert {
			alert, aerr := tlswire.UnmarshalAlert(buf)
			if aerr != nil {
				return nil, aerr
			}
			return nil, &tlserr.NegotiationRefused{Alert: tlserr.AlertDescription(alert.Description), FromServer: true, Msg: "server sent alert"}
		}
		if ct != tlswire.ContentHandshake {
			return &tlswire.Any{CT: ct, Body: buf}, nil
		}
		if len(buf) < 4 {
			continue // wait for more bytes of the 4-byte handshake header
		}
		length := int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
		if len(buf) < 4+length {
			continue // message spans more records; wait_fragment keeps accumulating
		}
		msg, _, perr := tlswire.UnmarshalHandshake(buf[:4+length], c.NegotiatedVersion)
		if perr != nil {
			return nil, perr
		}
		c.transcript.Append(buf[:4+length])
		c.Layer.Consume(tlswire.ContentHandshake, 4+length)
		return msg, nil
	}
}

// TranscriptHash returns the transcript digest computed so far, under the
// given hash primitive (set once the suite is known).
func (c *Connection) TranscriptHash(p tlswire.HashPrimitive) []byte {
	c.transcript.SetHashAlgorithm(p)
	return c.transcript.Sum()
}

// TranscriptDigest is TranscriptHash, except below TLS 1.2 it switches the
// transcript into the version-mandated dual MD5+SHA1 mode instead of using
// p -- the TLS 1.0/1.1 PRF and Finished computation never use a single
// suite-selected hash.
func (c *Connection) TranscriptDigest(p tlswire.HashPrimitive) []byte {
	if c.NegotiatedVersion < tlswire.TLS12 {
		c.transcript.SetDualHash()
		return c.transcript.Sum()
	}
	return c.TranscriptHash(p)
}
