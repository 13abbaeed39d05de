// SPDX-License-Identifier: Apache-2.0

// Package scan is the worker framework (design component C8): a Context
// every worker's Run receives, a priority-ordered registry, and the
// orchestrator that runs the registry against one target and folds the
// results into a profile.ServerProfile.
package scan

import (
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/recorder"
	"github.com/tlsmate-go/tlsmate/telemetry"
	"github.com/tlsmate-go/tlsmate/tlsconfig"
	"github.com/tlsmate-go/tlsmate/tlsconn"
)

// Context is the shared state passed to every worker: the resolved
// configuration, the result tree workers write findings into, and the
// ambient services (recorder, metrics, logger) Dial/Handshake need.
type Context struct {
	Config   *tlsconfig.Config
	Profile  *profile.ServerProfile
	Recorder *recorder.Recorder
	Metrics  *telemetry.Metrics
	Log      *zap.Logger

	// Progress reports worker completion to a terminal, if the caller set
	// one up; Run advances it once per worker and finishes it when the
	// scan ends. Nil disables progress reporting entirely.
	Progress *telemetry.Progress
}

// NewContext builds a Context for a fresh scan of cfg.Host:cfg.Port.
func NewContext(scanID string, cfg *tlsconfig.Config, rec *recorder.Recorder, metrics *telemetry.Metrics) *Context {
	log := telemetry.Log()
	return &Context{
		Config:   cfg,
		Profile:  profile.New(scanID, cfg.Host, cfg.Port),
		Recorder: rec,
		Metrics:  metrics,
		Log:      log,
	}
}

// Dial opens a fresh transport to the target, honouring the configured
// connect timeout. While replaying a recorded trace, no real socket is
// opened at all -- a net.Pipe with its peer end immediately discarded
// stands in, since recorder.Conn satisfies every Read/Write from the
// trace and never touches the underlying net.Conn in that state. Workers
// never share a connection: each independently dials, handshakes, and
// closes.
func (c *Context) Dial() (*tlsconn.Connection, error) {
	var conn net.Conn
	if c.Recorder != nil && c.Recorder.State() == recorder.StateReplaying {
		local, remote := net.Pipe()
		_ = remote.Close()
		conn = local
	} else {
		d := net.Dialer{Timeout: c.Config.ConnectTimeout}
		dialed, err := d.Dial("tcp", net.JoinHostPort(c.Config.Host, strconv.Itoa(c.Config.Port)))
		if err != nil {
			c.countConnection("dial_error")
			return nil, err
		}
		conn = dialed
	}
	c.countConnection("opened")

	tc := tlsconn.Open(conn, c.Recorder)
	if err := tc.SetDeadline(c.Config.ReadTimeout); err != nil {
		_ = tc.Close(false, 0)
		return nil, err
	}
	return tc, nil
}

func (c *Context) countConnection(outcome string) {
	if c.Metrics != nil {
		c.Metrics.ConnectionsTotal.WithLabelValues(outcome).Inc()
	}
}

// Handshake dials, synthesizes a ClientHello from prof against the
// configured host, and drives the handshake to completion -- the
// single-shot dial/handshake/inspect pattern most workers need. The
// caller owns the returned Connection and must Close it (successful
// handshake, no alert) once done inspecting HandshakeResult.
func (c *Context) Handshake(prof *clientprofile.ClientProfile) (*tlsconn.HandshakeResult, *tlsconn.Connection, error) {
	return c.HandshakeWithHooks(prof, nil)
}

// HandshakeWithHooks is Handshake with the caller able to interpose on the
// handshake via tlsconn.HandshakeHooks -- used by workers that probe
// protocol robustness rather than a plain successful negotiation (e.g. the
// ccs_injection worker's out-of-order ChangeCipherSpec).
func (c *Context) HandshakeWithHooks(prof *clientprofile.ClientProfile, hooks *tlsconn.HandshakeHooks) (*tlsconn.HandshakeResult, *tlsconn.Connection, error) {
	offer, err := clientprofile.Synthesize(prof, c.Config.Host)
	if err != nil {
		return nil, nil, err
	}
	conn, err := c.Dial()
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	result, err := tlsconn.PerformHandshakeWithHooks(conn, offer, hooks)
	if c.Metrics != nil {
		label := prof.Name
		if result != nil {
			label = result.Version.String()
		}
		c.Metrics.HandshakeDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, conn, err
	}
	return result, conn, nil
}
