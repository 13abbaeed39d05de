// SPDX-License-Identifier: Apache-2.0

package tlsconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c, err := New("example.com", 443)
	require.NoError(t, err)
	require.Equal(t, "INTEROPERABILITY", c.Profile.Name)
	require.Greater(t, c.ConnectTimeout.Seconds(), 0.0)
}

func TestWithCACertFileResolvesAbsolute(t *testing.T) {
	c, err := New("example.com", 443, WithCACertFile("ca.pem"))
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(c.CACertFile))
}

func TestWithTimeoutsRejectsNonPositive(t *testing.T) {
	_, err := New("example.com", 443, WithTimeouts(0, 0))
	require.Error(t, err)
}

func TestWithProfileRejectsNil(t *testing.T) {
	_, err := New("example.com", 443, WithProfile(nil))
	require.Error(t, err)
}
