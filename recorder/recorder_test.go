// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraceAndInjectRoundTrip(t *testing.T) {
	r := New()
	r.StartRecording()
	r.Trace(AttrRandom, []byte{1, 2, 3})
	r.Trace(AttrRandom, []byte{4, 5, 6})

	var buf bytes.Buffer
	require.NoError(t, r.Serialize(&buf))

	r2 := New()
	require.NoError(t, r2.Deserialize(&buf))
	r2.StartReplaying()

	v1, err := r2.Inject(AttrRandom)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, v1)

	v2, err := r2.Inject(AttrRandom)
	require.NoError(t, err)
	require.Equal(t, []byte{4, 5, 6}, v2)

	_, err = r2.Inject(AttrRandom)
	require.Error(t, err)
}

func TestInactiveRecorderTraceIsNoop(t *testing.T) {
	r := New()
	r.Trace(AttrRandom, []byte{1})
	require.Empty(t, r.attrs[AttrRandom])
}

func TestInjectWhileNotReplayingErrors(t *testing.T) {
	r := New()
	_, err := r.Inject(AttrRandom)
	require.Error(t, err)
}
