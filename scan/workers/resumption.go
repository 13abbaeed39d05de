// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"time"

	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlsconn"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// Resumption probes whether the server honours session-id and
// session-ticket resumption: an initial handshake
// establishes a session, a second offers it back and checks whether the
// server actually resumed (abbreviated handshake) instead of negotiating a
// fresh one. TLS 1.3 PSK resumption is out of scope here.
type Resumption struct{}

func (Resumption) Name() string  { return "resumption" }
func (Resumption) Priority() int { return 40 }

func (Resumption) Run(ctx *scan.Context) error {
	base := resumptionBaseProfile(ctx.Config.Profile)
	if len(base.Versions) == 0 {
		ctx.Profile.Features.SessionID = profile.NotApplicable
		ctx.Profile.Features.SessionTicket = profile.NotApplicable
		return nil
	}

	result1, conn1, err := ctx.Handshake(base)
	if err != nil {
		ctx.Profile.Features.SessionID = profile.Unknown
		ctx.Profile.Features.SessionTicket = profile.Unknown
		return tlserr.NewScanError("resumption", "initial handshake failed", err)
	}
	conn1.Close(false, 0)

	if len(result1.ServerHello.SessionID) > 0 {
		ctx.Profile.Features.SessionID = probeResume(ctx, base, sessionStateFor(base, result1, result1.ServerHello.SessionID, nil))
	} else {
		ctx.Profile.Features.SessionID = profile.False
	}

	if result1.SessionTicket != nil && len(result1.SessionTicket.Ticket) > 0 {
		ctx.Profile.Features.SessionTicketLifetime = time.Duration(result1.SessionTicket.LifetimeHint) * time.Second
		ctx.Profile.Features.SessionTicket = probeResume(ctx, base, sessionStateFor(base, result1, nil, result1.SessionTicket.Ticket))
	} else {
		ctx.Profile.Features.SessionTicket = profile.False
	}

	return nil
}

func sessionStateFor(base *clientprofile.ClientProfile, result *tlsconn.HandshakeResult, sessionID, ticket []byte) *clientprofile.SessionState {
	return &clientprofile.SessionState{
		SessionID:            sessionID,
		Ticket:               ticket,
		MasterSecret:         result.MasterSecret,
		Version:              result.Version,
		CipherSuite:          tlswire.CipherSuite(result.ServerHello.CipherSuite),
		ExtendedMasterSecret: base.SupportExtendedMasterSecret,
	}
}

func probeResume(ctx *scan.Context, base *clientprofile.ClientProfile, resume *clientprofile.SessionState) profile.Tribool {
	clone := *base
	clone.Versions = []tlswire.ProtocolVersion{resume.Version}
	clone.Resume = resume
	result, conn, err := ctx.Handshake(&clone)
	if err != nil {
		return profile.Unknown
	}
	conn.Close(false, 0)
	return boolTribool(result.Resumed)
}

// resumptionBaseProfile narrows base to TLS <= 1.2 (the only versions this
// engine's resumption support covers) and makes sure session tickets are
// actually offered so a ticket-capable server has a chance to issue one.
func resumptionBaseProfile(base *clientprofile.ClientProfile) *clientprofile.ClientProfile {
	clone := *base
	var tls12 []tlswire.ProtocolVersion
	for _, v := range base.Versions {
		if v != tlswire.TLS13 {
			tls12 = append(tls12, v)
		}
	}
	clone.Versions = tls12
	clone.SupportSessionTicket = true
	return &clone
}
