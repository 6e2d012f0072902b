package proxyevent

import (
	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
)

// Event type tags. One tag per proxied event class; adding a class means
// one new tag, one forwarder method, and one dispatch-table entry.
const (
	TypePointerLock = "pointerlock"
	TypePointerMove = "pointermove"
	TypeKey         = "key"
	TypeResize      = "resize"
)

// PointerLock reports pointer-lock engagement toggling.
type PointerLock struct {
	Type   string `json:"type"`
	Locked bool   `json:"locked"`
}

// PointerMove carries one relative pointer movement.
type PointerMove struct {
	Type      string  `json:"type"`
	MovementX float64 `json:"movementX"`
	MovementY float64 `json:"movementY"`
}

// Key carries one key transition.
type Key struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Pressed bool   `json:"pressed"`
}

// Resize carries the effective surface dimensions plus its offset for
// coordinate mapping. X/Width and Y/Height are duplicated intentionally:
// consumers read either pair.
type Resize struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// typeTag is the minimal header used to route an encoded event.
type typeTag struct {
	Type string `json:"type"`
}

// Tag extracts the event type from an encoded envelope.
func Tag(payload []byte) (string, error) {
	var t typeTag
	if err := json.Unmarshal(payload, &t); err != nil {
		return "", errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "event envelope")
	}
	if t.Type == "" {
		return "", errors.InvalidData(errors.PhaseDecode, "event envelope missing type tag")
	}
	return t.Type, nil
}
