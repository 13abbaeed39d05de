// SPDX-License-Identifier: Apache-2.0

// Package recorder is the record/replay determinism harness (design
// component C7). Values are traced under a named key while RECORDING and
// handed back in the same order while REPLAYING. The only call sites are
// in Conn: socket bytes sent and received are traced, and on replay reads
// are served from the trace instead of the network. RNG output, clock
// reads and RSA padding are not routed through the recorder, so a replay
// reproduces the server's bytes but not the client's ephemeral values.
package recorder

import (
	"encoding/hex"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tlsmate-go/tlsmate/tlserr"
)

// State is the recorder's three-way mode, mirroring
// original_source/tlsmate/recorder.py's RecorderState enum.
type State uint8

const (
	StateInactive State = iota
	StateRecording
	StateReplaying
)

// Recorder traces and replays named, ordered sequences of values. Each name
// accumulates a list; trace appends, inject pops from the front in the same
// order they were recorded -- the connection code calls both in the same
// sequence every run, recording or replaying, so order alone identifies
// which occurrence is being asked for.
type Recorder struct {
	mu    sync.Mutex
	state State
	attrs map[string][][]byte
	cursors map[string]int
}

// New returns an inactive Recorder: Trace is a no-op, Inject returns an
// error, and socket hooks pass through untouched.
func New() *Recorder {
	return &Recorder{state: StateInactive, attrs: make(map[string][][]byte), cursors: make(map[string]int)}
}

// State returns the current mode.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StartRecording switches to RECORDING, clearing any prior trace.
func (r *Recorder) StartRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateRecording
	r.attrs = make(map[string][][]byte)
	r.cursors = make(map[string]int)
}

// StartReplaying switches to REPLAYING using a previously loaded trace.
func (r *Recorder) StartReplaying() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateReplaying
	r.cursors = make(map[string]int)
}

// Trace appends a value under name. A no-op unless RECORDING.
func (r *Recorder) Trace(name string, value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	r.attrs[name] = append(r.attrs[name], append([]byte(nil), value...))
}

// Inject returns the next recorded value for name. Only valid while
// REPLAYING; returns a RecorderMismatch if the trace is exhausted, which
// indicates the connection diverged from the recording (e.g. a worker now
// sends one more probe than it did when the trace was captured).
func (r *Recorder) Inject(name string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateReplaying {
		return nil, tlserr.NewScanError("recorder", "inject called while not replaying", nil)
	}
	values := r.attrs[name]
	i := r.cursors[name]
	if i >= len(values) {
		return nil, &tlserr.RecorderMismatch{Name: name, Expected: "a recorded value", Actual: "trace exhausted"}
	}
	r.cursors[name] = i + 1
	return values[i], nil
}

// document is the on-disk shape: map of name -> ordered list of hex-encoded
// values, using a "map-of-lists, hex strings for bytes" YAML format.
type document map[string][]string

// Serialize writes the current trace as YAML.
func (r *Recorder) Serialize(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := make(document, len(r.attrs))
	for name, values := range r.attrs {
		encoded := make([]string, len(values))
		for i, v := range values {
			encoded[i] = hex.EncodeToString(v)
		}
		doc[name] = encoded
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(doc)
}

// Deserialize loads a previously serialized trace, ready for
// StartReplaying.
func (r *Recorder) Deserialize(reader io.Reader) error {
	var doc document
	if err := yaml.NewDecoder(reader).Decode(&doc); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attrs = make(map[string][][]byte, len(doc))
	for name, encoded := range doc {
		values := make([][]byte, len(encoded))
		for i, hx := range encoded {
			b, err := hex.DecodeString(hx)
			if err != nil {
				return err
			}
			values[i] = b
		}
		r.attrs[name] = values
	}
	r.cursors = make(map[string]int)
	return nil
}

// Trace keys, kept here so every producer and consumer of a traced value
// agrees on the key. Only AttrSocketSend and AttrSocketRecv are used by
// call sites in this module (Conn).
const (
	AttrSocketSend = "socket_sendall"
	AttrSocketRecv = "socket_recv"
	AttrRandom     = "random_bytes"
	AttrTimestamp  = "timestamp"
	AttrRSAPadding = "rsa_pkcs1v15_padding"
)
