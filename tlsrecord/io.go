// SPDX-License-Identifier: Apache-2.0

package tlsrecord

import (
	"encoding/binary"
	"io"

	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// Layer is the record layer for one connection: a read state, a write
// state, and the underlying transport. tlsconn drives it with send_message
// / wait_fragment semantics; Layer itself does not know what a
// handshake message is, only how to carry opaque content-typed fragments.
type Layer struct {
	rw    io.ReadWriter
	write *RecordState
	read  *RecordState

	// pending holds handshake-content bytes that have been unprotected but
	// not yet consumed as whole messages; tlsconn's wait_fragment pulls
	// from here so a message spanning multiple records (or multiple
	// messages packed into one record) is handled transparently.
	pending map[tlswire.ContentType][]byte
}

// NewLayer wraps a transport in an initially unprotected record layer.
func NewLayer(rw io.ReadWriter) *Layer {
	return &Layer{
		rw:      rw,
		write:   NewPlaintextState(),
		read:    NewPlaintextState(),
		pending: make(map[tlswire.ContentType][]byte),
	}
}

// SetWriteState installs new write-direction protection, called right
// after sending ChangeCipherSpec (<=TLS1.2) or right after deriving
// handshake/application traffic write keys (TLS1.3).
func (l *Layer) SetWriteState(rs *RecordState) { l.write = rs }

// SetReadState installs new read-direction protection, the read-side
// counterpart of SetWriteState.
func (l *Layer) SetReadState(rs *RecordState) { l.read = rs }

// SendFragment protects and writes one content-typed payload, splitting it
// into <=MaxFragment chunks as needed.
func (l *Layer) SendFragment(ct tlswire.ContentType, payload []byte) error {
	if len(payload) == 0 {
		rec, err := l.write.Protect(ct, payload)
		if err != nil {
			return err
		}
		_, err = l.rw.Write(rec)
		return err
	}
	for len(payload) > 0 {
		n := len(payload)
		if n > MaxFragment {
			n = MaxFragment
		}
		rec, err := l.write.Protect(ct, payload[:n])
		if err != nil {
			return err
		}
		if _, err := l.rw.Write(rec); err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}

// ReadRecord reads and unprotects exactly one record off the transport,
// returning its (recovered) content type and plaintext. A TLS 1.3 record
// whose inner content type is change_cipher_spec (the compatibility CCS)
// is surfaced to the caller like any other record; tlsconn is responsible
// for recognizing and discarding it per RFC 8446 §5.
func (l *Layer) ReadRecord() (tlswire.ContentType, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(l.rw, header); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, tlserr.NewDecodeError("record header read failed: %v", err)
	}
	ct := tlswire.ContentType(header[0])
	length := int(binary.BigEndian.Uint16(header[3:5]))
	if length > MaxFragment+2048 {
		return 0, nil, tlserr.NewSemanticError(tlserr.AlertRecordOverflow, "record length %d exceeds maximum", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(l.rw, body); err != nil {
		return 0, nil, tlserr.NewDecodeError("record body read failed: %v", err)
	}
	return l.read.Unprotect(ct, body)
}

// Append stores bytes of content type ct for later Peek/Consume calls,
// used when a caller reads ahead (e.g. coalescing records of the same
// content type into one logical message stream).
func (l *Layer) Append(ct tlswire.ContentType, data []byte) {
	l.pending[ct] = append(l.pending[ct], data...)
}

// Peek returns the bytes currently buffered for ct without consuming them.
func (l *Layer) Peek(ct tlswire.ContentType) []byte { return l.pending[ct] }

// Consume removes the first n bytes buffered for ct.
func (l *Layer) Consume(ct tlswire.ContentType, n int) {
	l.pending[ct] = l.pending[ct][n:]
}

// ReadHandshakeFragment reads one record, expects it (or coalesces it) as
// handshake content, and returns the accumulated buffer for the caller to
// try parsing a complete message from. Non-handshake records (Alert,
// ChangeCipherSpec encountered mid-handshake, HeartbeatRequest) are
// returned immediately so tlsconn's state machine can react to them
// out-of-band.
func (l *Layer) ReadHandshakeFragment() (tlswire.ContentType, []byte, error) {
	if buf := l.pending[tlswire.ContentHandshake]; len(buf) > 0 {
		return tlswire.ContentHandshake, buf, nil
	}
	ct, payload, err := l.ReadRecord()
	if err != nil {
		return 0, nil, err
	}
	if ct != tlswire.ContentHandshake {
		return ct, payload, nil
	}
	l.Append(ct, payload)
	return ct, l.pending[ct], nil
}
