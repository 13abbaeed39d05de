// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/profile"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/tlsconn"
	"github.com/tlsmate-go/tlsmate/tlserr"
	"github.com/tlsmate-go/tlsmate/tlswire"
)

// Groups enumerates, per offered version that enum found to be supported,
// which named groups (elliptic curves / FFDHE) the server accepts, whether
// it enforces its own group preference order, and -- for TLS 1.3 -- whether
// EncryptedExtensions echoes supported_groups.
type Groups struct{}

func (Groups) Name() string  { return "groups" }
func (Groups) Priority() int { return 20 }

func (Groups) Run(ctx *scan.Context) error {
	for i := range ctx.Profile.Versions {
		vp := &ctx.Profile.Versions[i]
		if vp.Supported != profile.True {
			continue
		}
		version := tlswire.ProtocolVersion(vp.Version)
		if err := enumerateGroups(ctx, version, vp); err != nil {
			return tlserr.NewScanError("groups", "group enumeration failed for "+version.String(), err)
		}
	}
	return nil
}

func enumerateGroups(ctx *scan.Context, version tlswire.ProtocolVersion, vp *profile.VersionProfile) error {
	candidates := ctx.Config.Profile.Groups
	if len(candidates) == 0 {
		vp.GroupServerPreference = profile.NotApplicable
		return nil
	}

	var results []profile.GroupResult
	var maxDHBits int
	remaining := append([]uint16(nil), candidates...)
	for _, group := range remaining {
		prof := groupProbeProfile(ctx.Config.Profile, version, group)
		result, conn, err := ctx.Handshake(prof)
		if err != nil {
			continue
		}
		conn.Close(false, 0)

		results = append(results, profile.GroupResult{Group: group, Name: groupName(group)})
		if result.DHGroupBits > maxDHBits {
			maxDHBits = result.DHGroupBits
		}
		if version == tlswire.TLS13 {
			vp.EncryptedExtensionsAdvertisesGroups = boolTribool(encryptedExtensionsHasGroups(result.EncryptedExtensions))
		}
	}

	vp.SupportedGroups = results
	if maxDHBits > 0 {
		vp.DHGroupSizes = append(vp.DHGroupSizes, maxDHBits)
	}
	vp.GroupServerPreference = detectGroupPreference(ctx, version, groupIDs(results))
	if len(results) > 0 {
		results[0].ServerPreferred = vp.GroupServerPreference == profile.True
	}
	return nil
}

// groupProbeProfile narrows base to one version and offers exactly one
// named group, so a successful handshake unambiguously means the server
// accepted that group.
func groupProbeProfile(base *clientprofile.ClientProfile, version tlswire.ProtocolVersion, group uint16) *clientprofile.ClientProfile {
	clone := *base
	clone.Versions = []tlswire.ProtocolVersion{version}
	clone.Groups = []uint16{group}
	return &clone
}

func groupIDs(results []profile.GroupResult) []uint16 {
	out := make([]uint16, len(results))
	for i, r := range results {
		out[i] = r.Group
	}
	return out
}

// detectGroupPreference reuses the same two-probe order-swap test enum.go
// applies to cipher suites, here against the server's selected key_share
// group.
func detectGroupPreference(ctx *scan.Context, version tlswire.ProtocolVersion, groups []uint16) profile.Tribool {
	if len(groups) < 2 {
		return profile.NotApplicable
	}

	prof0 := *ctx.Config.Profile
	prof0.Versions = []tlswire.ProtocolVersion{version}
	prof0.Groups = groups
	result0, conn0, err := ctx.Handshake(&prof0)
	if err != nil {
		return profile.Unknown
	}
	conn0.Close(false, 0)
	s0 := selectedGroup(result0)
	if s0 == 0 {
		return profile.Unknown
	}

	reordered := append(removeGroup(append([]uint16(nil), groups...), s0), s0)
	if len(reordered) < 2 {
		return profile.NotApplicable
	}

	prof1 := *ctx.Config.Profile
	prof1.Versions = []tlswire.ProtocolVersion{version}
	prof1.Groups = reordered
	result1, conn1, err := ctx.Handshake(&prof1)
	if err != nil {
		return profile.Unknown
	}
	conn1.Close(false, 0)

	if selectedGroup(result1) != reordered[0] {
		return profile.True
	}
	return profile.False
}

func removeGroup(list []uint16, target uint16) []uint16 {
	out := list[:0]
	for _, g := range list {
		if g != target {
			out = append(out, g)
		}
	}
	return out
}

// selectedGroup recovers which group the server actually chose from the
// ServerHello key_share entry (TLS 1.3); 0 if there is none. The
// ServerKeyExchange curve id is not read, so a TLS <= 1.2 handshake always
// yields 0.
func selectedGroup(r *tlsconn.HandshakeResult) uint16 {
	for _, ext := range r.ServerHello.Extensions {
		if ks, ok := ext.(*tlswire.KeyShareExtension); ok && len(ks.Entries) == 1 {
			return ks.Entries[0].Group
		}
	}
	return 0
}

func encryptedExtensionsHasGroups(exts []tlswire.Extension) bool {
	for _, ext := range exts {
		if ext.ID() == tlswire.ExtSupportedGroups {
			return true
		}
	}
	return false
}

func groupName(group uint16) string {
	if info, ok := tlswire.LookupGroup(group); ok {
		return info.Name
	}
	return "unknown"
}
