// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"io"
	"net"
	"time"
)

// Conn wraps a net.Conn so every byte sent and received passes through the
// Recorder under AttrSocketSend/AttrSocketRecv. While INACTIVE it is a
// transparent passthrough; while RECORDING it traces in addition to doing
// the real I/O; while REPLAYING it never touches the underlying net.Conn at
// all -- Write and Read are satisfied entirely from the trace.
type Conn struct {
	net.Conn
	rec *Recorder
}

// Wrap returns a Conn around inner, traced/replayed through rec.
func Wrap(inner net.Conn, rec *Recorder) *Conn {
	return &Conn{Conn: inner, rec: rec}
}

func (c *Conn) Write(p []byte) (int, error) {
	switch c.rec.State() {
	case StateReplaying:
		if _, err := c.rec.Inject(AttrSocketSend); err != nil {
			return 0, err
		}
		return len(p), nil
	case StateRecording:
		c.rec.Trace(AttrSocketSend, p)
		return c.Conn.Write(p)
	default:
		return c.Conn.Write(p)
	}
}

func (c *Conn) Read(p []byte) (int, error) {
	switch c.rec.State() {
	case StateReplaying:
		chunk, err := c.rec.Inject(AttrSocketRecv)
		if err != nil {
			return 0, err
		}
		if len(chunk) == 0 {
			return 0, io.EOF
		}
		n := copy(p, chunk)
		return n, nil
	case StateRecording:
		n, err := c.Conn.Read(p)
		if n > 0 {
			c.rec.Trace(AttrSocketRecv, p[:n])
		}
		return n, err
	default:
		return c.Conn.Read(p)
	}
}

// SetDeadline/SetReadDeadline/SetWriteDeadline are no-ops while replaying:
// there is no real socket whose deadline would matter.
func (c *Conn) SetDeadline(t time.Time) error {
	if c.rec.State() == StateReplaying {
		return nil
	}
	return c.Conn.SetDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	if c.rec.State() == StateReplaying {
		return nil
	}
	return c.Conn.SetReadDeadline(t)
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	if c.rec.State() == StateReplaying {
		return nil
	}
	return c.Conn.SetWriteDeadline(t)
}

func (c *Conn) Close() error {
	if c.rec.State() == StateReplaying {
		return nil
	}
	return c.Conn.Close()
}
