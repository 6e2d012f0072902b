package render

import (
	"context"
	"testing"
	"time"

	offstage "github.com/offstagehq/offstage"
	"github.com/offstagehq/offstage/json"
	"github.com/offstagehq/offstage/pool"
	"github.com/offstagehq/offstage/proxyevent"
	"github.com/offstagehq/offstage/surface"
)

const testTimeout = 2 * time.Second

func startRender(t *testing.T, subject Subject, opts Options, transfer ...offstage.Transferable) (*pool.Pool, *pool.Handle, error) {
	t.Helper()
	reg := pool.NewRegistry()
	Register(reg, opts)
	p := pool.New(reg, nil)
	t.Cleanup(func() { p.TerminateAll(context.Background()) })

	h, err := p.Run(context.Background(), pool.Descriptor{
		Path:     ModulePath,
		Subject:  subject,
		Transfer: transfer,
	})
	return p, h, err
}

func recvPush(t *testing.T, c <-chan []byte) []byte {
	t.Helper()
	select {
	case data, ok := <-c:
		if !ok {
			t.Fatal("stream completed unexpectedly")
		}
		return data
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for stream push")
	}
	return nil
}

func TestInit_AdoptsTransferredSurface(t *testing.T) {
	fc := &FrameCounter{}
	surf := surface.New("stage", 800, 600)

	_, h, err := startRender(t, Subject{Width: 1024, Height: 768}, Options{Renderer: fc}, surf)
	if err != nil {
		t.Fatal(err)
	}

	if !surf.Transferred() {
		t.Fatal("surface ownership should have moved into the worker")
	}
	if err := surf.SetSize(1, 1); err == nil {
		t.Fatal("controlling side must lose owning operations after transfer")
	}

	var s Stats
	if err := h.Remote.CallInto(context.Background(), "stats", nil, &s); err != nil {
		t.Fatal(err)
	}
	if s.Phase != "INITIALIZED" {
		t.Fatalf("phase = %s, want INITIALIZED", s.Phase)
	}

	// Subject dimensions override the transferred geometry.
	if w, hgt := fc.Size(); w != 1024 || hgt != 768 {
		t.Fatalf("renderer sized %vx%v, want 1024x768", w, hgt)
	}
}

func TestInit_FaultsWithoutSurface(t *testing.T) {
	p, _, err := startRender(t, Subject{}, Options{})
	if err == nil {
		t.Fatal("init without a transferred surface must fault the handshake")
	}
	if n := p.Len(); n != 0 {
		t.Fatalf("pool tracks %d workers after faulted spawn", n)
	}
}

func TestInit_RejectsUnknownCameraMode(t *testing.T) {
	surf := surface.New("stage", 800, 600)
	_, _, err := startRender(t, Subject{CameraMode: "drone"}, Options{}, surf)
	if err == nil {
		t.Fatal("unknown camera mode must fault the handshake")
	}
}

func TestUpdateTicks_BracketedByLifecycle(t *testing.T) {
	fc := &FrameCounter{}
	world := &TickWorld{}
	timer := NewManualTimer()
	surf := surface.New("stage", 800, 600)

	_, h, err := startRender(t, Subject{StartTimer: true},
		Options{Renderer: fc, World: world, Timer: timer}, surf)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	sub, err := h.Remote.Subscribe(ctx, StreamLifecycle)
	if err != nil {
		t.Fatal(err)
	}

	phase := func() string {
		var ev LifecycleEvent
		if err := json.Unmarshal(recvPush(t, sub.C), &ev); err != nil {
			t.Fatal(err)
		}
		return ev.Phase
	}

	for i := 0; i < 2; i++ {
		timer.Tick()
		if got := phase(); got != "UPDATE_STARTED" {
			t.Fatalf("tick %d: first event %s, want UPDATE_STARTED", i, got)
		}
		if got := phase(); got != "UPDATE_ENDED" {
			t.Fatalf("tick %d: second event %s, want UPDATE_ENDED", i, got)
		}
	}

	var s Stats
	if err := h.Remote.CallInto(ctx, "stats", nil, &s); err != nil {
		t.Fatal(err)
	}
	if s.Frames != 2 || s.Steps != 2 {
		t.Fatalf("frames=%d steps=%d after two ticks", s.Frames, s.Steps)
	}
}

func TestResize_AppliesAndAcks(t *testing.T) {
	fc := &FrameCounter{}
	surf := surface.New("stage", 800, 600)

	_, h, err := startRender(t, Subject{}, Options{Renderer: fc}, surf)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	sub, err := h.Remote.Subscribe(ctx, StreamResize)
	if err != nil {
		t.Fatal(err)
	}

	err = h.Remote.CallInto(ctx, "resize", proxyevent.Resize{
		Type: proxyevent.TypeResize,
		X:    640, Y: 360, Width: 640, Height: 360,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var ack SizeAck
	if err := json.Unmarshal(recvPush(t, sub.C), &ack); err != nil {
		t.Fatal(err)
	}
	if ack.Width != 640 || ack.Height != 360 {
		t.Fatalf("ack = %+v", ack)
	}
	if w, hgt := fc.Size(); w != 640 || hgt != 360 {
		t.Fatalf("renderer sized %vx%v after resize", w, hgt)
	}
}

func TestSetSize_Method(t *testing.T) {
	fc := &FrameCounter{}
	surf := surface.New("stage", 800, 600)

	_, h, err := startRender(t, Subject{}, Options{Renderer: fc}, surf)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := h.Remote.CallInto(ctx, "set-size", SizeAck{Width: 300, Height: 200}, nil); err != nil {
		t.Fatal(err)
	}
	if w, hgt := fc.Size(); w != 300 || hgt != 200 {
		t.Fatalf("renderer sized %vx%v", w, hgt)
	}

	if err := h.Remote.CallInto(ctx, "set-size", SizeAck{Width: -1, Height: 200}, nil); err == nil {
		t.Fatal("non-positive dimensions must be rejected")
	}
}

func TestPointerAndKeyEvents_DriveCamera(t *testing.T) {
	rig := NewOrbitRig()
	surf := surface.New("stage", 800, 600)

	_, h, err := startRender(t, Subject{}, Options{Camera: rig}, surf)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// Movement while the pointer is not captured is ignored.
	if err := h.Remote.CallInto(ctx, "pointer-move", proxyevent.PointerMove{
		Type: proxyevent.TypePointerMove, MovementX: 9, MovementY: 9,
	}, nil); err != nil {
		t.Fatal(err)
	}
	if yaw, pitch := rig.Orientation(); yaw != 0 || pitch != 0 {
		t.Fatalf("unlocked movement reached the camera: %v,%v", yaw, pitch)
	}

	if err := h.Remote.CallInto(ctx, "pointer-lock", proxyevent.PointerLock{
		Type: proxyevent.TypePointerLock, Locked: true,
	}, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.Remote.CallInto(ctx, "pointer-move", proxyevent.PointerMove{
		Type: proxyevent.TypePointerMove, MovementX: 5, MovementY: 3,
	}, nil); err != nil {
		t.Fatal(err)
	}
	if yaw, pitch := rig.Orientation(); yaw != 5 || pitch != 3 {
		t.Fatalf("orientation = %v,%v, want 5,3", yaw, pitch)
	}

	if err := h.Remote.CallInto(ctx, "key-event", proxyevent.Key{
		Type: proxyevent.TypeKey, Code: "KeyW", Pressed: true,
	}, nil); err != nil {
		t.Fatal(err)
	}
	if !rig.Pressed("KeyW") {
		t.Fatal("key press did not reach the rig")
	}
}

func TestMiniCamera_Enabled(t *testing.T) {
	rig := NewOrbitRig()
	surf := surface.New("stage", 800, 600)

	_, _, err := startRender(t, Subject{MiniCamera: true}, Options{Camera: rig}, surf)
	if err != nil {
		t.Fatal(err)
	}
	if !rig.MiniEnabled() {
		t.Fatal("mini camera requested but not enabled on the rig")
	}
}

func TestTerminate_DeliversDisposedThenCompletes(t *testing.T) {
	surf := surface.New("stage", 800, 600)
	p, h, err := startRender(t, Subject{}, Options{}, surf)
	if err != nil {
		t.Fatal(err)
	}

	sub, err := h.Remote.Subscribe(context.Background(), StreamLifecycle)
	if err != nil {
		t.Fatal(err)
	}

	// The port is FIFO, so a completed call proves the worker has
	// registered the subscription.
	var s Stats
	if err := h.Remote.CallInto(context.Background(), "stats", nil, &s); err != nil {
		t.Fatal(err)
	}

	if err := p.TerminateAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The terminal DISPOSED must cross the boundary before the stream
	// completes; completion alone is not enough.
	var phases []string
	deadline := time.After(testTimeout)
	for {
		select {
		case data, ok := <-sub.C:
			if !ok {
				if len(phases) == 0 || phases[len(phases)-1] != "DISPOSED" {
					t.Fatalf("stream completed without terminal DISPOSED, observed %v", phases)
				}
				return
			}
			var ev LifecycleEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatal(err)
			}
			phases = append(phases, ev.Phase)
		case <-deadline:
			t.Fatal("lifecycle stream never completed after termination")
		}
	}
}
