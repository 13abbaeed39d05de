// SPDX-License-Identifier: Apache-2.0

package clientprofile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tlsmate-go/tlsmate/tlswire"
)

func TestSynthesizeInteroperabilityHasSNI(t *testing.T) {
	offer, err := Synthesize(Interoperability(), "example.com")
	require.NoError(t, err)
	require.Equal(t, tlswire.TLS12, offer.Hello.ClientVersion)

	found := false
	for _, ext := range offer.Hello.Extensions {
		if sni, ok := ext.(*tlswire.ServerNameExtension); ok {
			require.Equal(t, "example.com", sni.HostName)
			found = true
		}
	}
	require.True(t, found)
}

func TestSynthesizeTLS13IncludesKeyShare(t *testing.T) {
	offer, err := Synthesize(TLS13Only(), "example.com")
	require.NoError(t, err)

	var ks *tlswire.KeyShareExtension
	for _, ext := range offer.Hello.Extensions {
		if k, ok := ext.(*tlswire.KeyShareExtension); ok {
			ks = k
		}
	}
	require.NotNil(t, ks)
	require.NotEmpty(t, ks.Entries)
	require.NotEmpty(t, offer.Exchange)
}

func TestSynthesizeModernOffersX448Share(t *testing.T) {
	offer, err := Synthesize(Modern(), "example.com")
	require.NoError(t, err)

	var ks *tlswire.KeyShareExtension
	for _, ext := range offer.Hello.Extensions {
		if k, ok := ext.(*tlswire.KeyShareExtension); ok {
			ks = k
		}
	}
	require.NotNil(t, ks)

	found := false
	for _, entry := range ks.Entries {
		if entry.Group == GroupX448 {
			found = true
			require.Len(t, entry.KeyExchange, 56)
		}
	}
	require.True(t, found)
	require.Contains(t, offer.Exchange, uint16(GroupX448))
}

func TestSynthesizeIDNAHost(t *testing.T) {
	offer, err := Synthesize(Modern(), "münchen.de")
	require.NoError(t, err)
	for _, ext := range offer.Hello.Extensions {
		if sni, ok := ext.(*tlswire.ServerNameExtension); ok {
			require.Equal(t, "xn--mnchen-3ya.de", sni.HostName)
		}
	}
}

func TestRecordLayerVersionClampedToTLS12(t *testing.T) {
	require.Equal(t, tlswire.TLS12, tlswire.RecordLayerVersion(tlswire.TLS13))
	require.Equal(t, tlswire.TLS11, tlswire.RecordLayerVersion(tlswire.TLS11))
}
