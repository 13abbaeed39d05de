// SPDX-License-Identifier: Apache-2.0

package rectest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tlsmate-go/tlsmate/recorder"
)

// writeFixture records a trivial trace and saves it under dir/<name>.yaml,
// the shape a captured scan would have produced via recorder.Serialize.
func writeFixture(t *testing.T, dir, name string) {
	t.Helper()
	r := recorder.New()
	r.StartRecording()
	r.Trace(recorder.AttrRandom, []byte{0x00, 0x01, 0x02, 0x03})
	r.Trace(recorder.AttrSocketSend, []byte("client hello bytes"))
	r.Trace(recorder.AttrSocketRecv, []byte("server hello bytes"))

	f, err := os.Create(filepath.Join(dir, name+".yaml"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, r.Serialize(f))
}

func TestRunReplaysEachCaseAsASubtest(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "handshake-one")
	writeFixture(t, dir, "handshake-two")

	var seen []string
	Run(t, dir, []Case{{Name: "handshake-one"}, {Name: "handshake-two"}}, func(t *testing.T, r *recorder.Recorder) {
		seen = append(seen, t.Name())
		require.Equal(t, recorder.StateReplaying, r.State())

		random, err := r.Inject(recorder.AttrRandom)
		require.NoError(t, err)
		require.Equal(t, []byte{0x00, 0x01, 0x02, 0x03}, random)

		sent, err := r.Inject(recorder.AttrSocketSend)
		require.NoError(t, err)
		require.Equal(t, []byte("client hello bytes"), sent)

		recv, err := r.Inject(recorder.AttrSocketRecv)
		require.NoError(t, err)
		require.Equal(t, []byte("server hello bytes"), recv)
	})

	require.Len(t, seen, 2)
}
