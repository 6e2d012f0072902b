package proxyevent

import (
	"context"

	"github.com/offstagehq/offstage/json"
)

// Caller relays an encoded payload to a named remote method. The remote
// proxy satisfies this; workers never see a live controller reference.
type Caller interface {
	Call(ctx context.Context, name string, in any) (json.RawMessage, error)
}

// Viewport reports the controlling context's current visible dimensions.
type Viewport interface {
	Size() (width, height float64)
}

// SurfaceGeometry reports the explicit surface dimensions and its offset
// within the controlling context.
type SurfaceGeometry interface {
	Size() (width, height float64)
	Offset() (top, left float64)
}

// Forwarder captures controlling-side input and viewport events, reduces
// each to a minimal plain-data envelope, and relays it to the worker. It
// holds no render state; all side effects happen worker-side.
type Forwarder struct {
	caller     Caller
	viewport   Viewport
	surface    SurfaceGeometry
	fullScreen bool
}

// NewForwarder wires a forwarder to a remote caller. With fullScreen
// set, resize events use the viewport dimensions; otherwise the explicit
// surface dimensions.
func NewForwarder(caller Caller, viewport Viewport, surf SurfaceGeometry, fullScreen bool) *Forwarder {
	return &Forwarder{
		caller:     caller,
		viewport:   viewport,
		surface:    surf,
		fullScreen: fullScreen,
	}
}

// PointerLock forwards a pointer-lock toggle.
func (f *Forwarder) PointerLock(ctx context.Context, locked bool) error {
	_, err := f.caller.Call(ctx, "pointer-lock", PointerLock{Type: TypePointerLock, Locked: locked})
	return err
}

// PointerMove forwards one relative pointer movement.
func (f *Forwarder) PointerMove(ctx context.Context, movementX, movementY float64) error {
	_, err := f.caller.Call(ctx, "pointer-move", PointerMove{
		Type:      TypePointerMove,
		MovementX: movementX,
		MovementY: movementY,
	})
	return err
}

// Key forwards one key transition.
func (f *Forwarder) Key(ctx context.Context, code string, pressed bool) error {
	_, err := f.caller.Call(ctx, "key-event", Key{Type: TypeKey, Code: code, Pressed: pressed})
	return err
}

// Resize forwards the current effective dimensions. Full-screen mode
// tracks the viewport; otherwise the explicit surface size applies. The
// payload carries the surface offset either way.
func (f *Forwarder) Resize(ctx context.Context) error {
	_, err := f.caller.Call(ctx, "resize", f.resizePayload())
	return err
}

func (f *Forwarder) resizePayload() Resize {
	var width, height float64
	if f.fullScreen {
		width, height = f.viewport.Size()
	} else {
		width, height = f.surface.Size()
	}
	top, left := f.surface.Offset()

	return Resize{
		Type:   TypeResize,
		X:      width,
		Y:      height,
		Top:    top,
		Left:   left,
		Width:  width,
		Height: height,
	}
}
