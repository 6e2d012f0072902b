package remote

import (
	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
)

// Kind discriminates envelope roles on the wire.
type Kind string

const (
	KindInit        Kind = "init"        // controller -> worker, first message
	KindReady       Kind = "ready"       // worker -> controller, init succeeded
	KindFault       Kind = "fault"       // worker -> controller, init failed
	KindCall        Kind = "call"        // controller -> worker, method invocation
	KindResult      Kind = "result"      // worker -> controller, correlated reply
	KindSubscribe   Kind = "subscribe"   // controller -> worker, start stream pushes
	KindUnsubscribe Kind = "unsubscribe" // controller -> worker, stop stream pushes
	KindPush        Kind = "push"        // worker -> controller, one stream value
	KindComplete    Kind = "complete"    // worker -> controller, stream closed
)

var knownKinds = map[Kind]struct{}{
	KindInit: {}, KindReady: {}, KindFault: {},
	KindCall: {}, KindResult: {},
	KindSubscribe: {}, KindUnsubscribe: {},
	KindPush: {}, KindComplete: {},
}

// Envelope is the single wire frame for every protocol interaction.
// ID correlates call with result; Name addresses a method or stream.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Encode serializes the envelope. Failure here means the payload holds a
// live reference and is a programmer error surfaced to the caller.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Unserializable(errors.PhaseEncode, "envelope", err)
	}
	return data, nil
}

// DecodeEnvelope parses a wire frame. It reports ok=false for anything
// that does not look like a protocol envelope; callers drop such frames.
func DecodeEnvelope(data []byte) (Envelope, bool) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, false
	}
	if _, known := knownKinds[e.Kind]; !known {
		return Envelope{}, false
	}
	return e, true
}
