// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestConfigureInstallsLogger(t *testing.T) {
	closer, err := Configure(Options{Level: "debug"})
	require.NoError(t, err)
	defer closer()

	require.NotNil(t, Log())
}

func TestConfigureRejectsBadLevel(t *testing.T) {
	_, err := Configure(Options{Level: "not-a-level"})
	require.Error(t, err)
}

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ConnectionsTotal.WithLabelValues("ok").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestProgressNonTerminalIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 10)
	p.Advance(1, "scanning")
	p.Finish()
	require.Empty(t, buf.String())
}
