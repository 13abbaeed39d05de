// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlsconn"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// Heartbleed probes the CVE-2014-0160 class of bug: a heartbeat request
// whose advertised payload length exceeds what was actually sent must be
// rejected; a vulnerable server instead echoes PayloadLength bytes read
// straight out of its own memory.
type Heartbleed struct{}

func (Heartbleed) Name() string  { return "heartbleed" }
func (Heartbleed) Priority() int { return 70 }

func (Heartbleed) Run(ctx *scan.Context) error {
	prof := *ctx.Config.Profile
	prof.SupportHeartbeat = true

	result, conn, err := ctx.Handshake(&prof)
	if err != nil {
		ctx.Profile.Features.Heartbeat = profile.Unknown
		ctx.Profile.Vulnerabilities.Heartbleed = profile.Unknown
		return tlserr.NewScanError("heartbleed", "handshake failed", err)
	}
	defer conn.Close(false, 0)

	if !serverSupportsHeartbeat(result) {
		ctx.Profile.Features.Heartbeat = profile.False
		ctx.Profile.Vulnerabilities.Heartbleed = profile.NotApplicable
		return nil
	}
	ctx.Profile.Features.Heartbeat = profile.True

	sentPayload := []byte("tlsmate")
	probe := &tlswire.Heartbeat{
		Type:          tlswire.HeartbeatRequestType,
		PayloadLength: 0x4000, // far beyond what's actually carried below
		Payload:       sentPayload,
		Padding:       make([]byte, 16),
	}
	if err := conn.Layer.SendFragment(tlswire.ContentHeartbeat, tlswire.MarshalHeartbeat(probe)); err != nil {
		ctx.Profile.Vulnerabilities.Heartbleed = profile.Unknown
		return tlserr.NewScanError("heartbleed", "probe send failed", err)
	}

	ct, body, err := conn.Layer.ReadRecord()
	if err != nil {
		// closed connection or alert: the server rejected the malformed probe
		ctx.Profile.Vulnerabilities.Heartbleed = profile.False
		return nil
	}
	if ct != tlswire.ContentHeartbeat {
		ctx.Profile.Vulnerabilities.Heartbleed = profile.False
		return nil
	}
	resp, err := tlswire.UnmarshalHeartbeat(body)
	if err != nil {
		ctx.Profile.Vulnerabilities.Heartbleed = profile.Unknown
		return nil
	}
	ctx.Profile.Vulnerabilities.Heartbleed = boolTribool(len(resp.Payload) > len(sentPayload))
	return nil
}

func serverSupportsHeartbeat(result *tlsconn.HandshakeResult) bool {
	for _, ext := range result.ServerHello.Extensions {
		if ext.ID() == tlswire.ExtHeartbeat {
			return true
		}
	}
	for _, ext := range result.EncryptedExtensions {
		if ext.ID() == tlswire.ExtHeartbeat {
			return true
		}
	}
	return false
}
