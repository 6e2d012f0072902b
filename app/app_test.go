package app

import (
	"context"
	"testing"
	"time"

	"github.com/offstagehq/offstage/loader"
	"github.com/offstagehq/offstage/pool"
	"github.com/offstagehq/offstage/proxyevent"
	"github.com/offstagehq/offstage/render"
	"github.com/offstagehq/offstage/surface"
)

const testTimeout = 2 * time.Second

type fixture struct {
	app      *App
	pool     *pool.Pool
	renderer *render.FrameCounter
	rig      *render.OrbitRig
	timer    *render.ManualTimer
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		renderer: &render.FrameCounter{},
		rig:      render.NewOrbitRig(),
		timer:    render.NewManualTimer(),
	}

	reg := pool.NewRegistry()
	render.Register(reg, render.Options{
		Renderer: f.renderer,
		Camera:   f.rig,
		Timer:    f.timer,
	})
	loader.Register(reg, loader.Static{
		"clips/idle.json": []byte(`{"name":"idle"}`),
	}, nil)

	f.pool = pool.New(reg, nil)
	f.app = New(cfg, f.pool, nil, nil)
	t.Cleanup(func() { f.app.Dispose(context.Background()) })
	return f
}

func TestInit_BringsUpSession(t *testing.T) {
	f := newFixture(t, Config{
		Surface:    surface.Config{Name: "stage", Width: 1280, Height: 720},
		FullScreen: false,
	})
	ctx := context.Background()

	if err := f.app.Init(ctx); err != nil {
		t.Fatal(err)
	}

	if f.app.Forwarder() == nil {
		t.Fatal("forwarder missing after init")
	}
	if f.app.Render() == nil {
		t.Fatal("render handle missing after init")
	}
	surf := f.app.Surface()
	if !surf.Transferred() {
		t.Fatal("surface ownership should have moved into the render worker")
	}
	if w, h := f.renderer.Size(); w != 1280 || h != 720 {
		t.Fatalf("renderer sized %vx%v", w, h)
	}
}

func TestInit_ReentrantIsNoOp(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if err := f.app.Init(ctx); err != nil {
		t.Fatal(err)
	}
	first := f.app.Render()

	if err := f.app.Init(ctx); err != nil {
		t.Fatalf("re-entrant init must be silent, got %v", err)
	}
	if f.app.Render() != first {
		t.Fatal("re-entrant init replaced the render worker")
	}
	if n := f.pool.Len(); n != 1 {
		t.Fatalf("pool tracks %d workers after double init", n)
	}
}

func TestInit_FailureIsRetryable(t *testing.T) {
	f := newFixture(t, Config{CameraMode: "nonsense"})
	ctx := context.Background()

	if err := f.app.Init(ctx); err == nil {
		t.Fatal("unknown camera mode should fault the spawn")
	}
	if n := f.pool.Len(); n != 0 {
		t.Fatalf("pool tracks %d workers after failed init", n)
	}

	f.app.cfg.CameraMode = render.ModeOrbit
	if err := f.app.Init(ctx); err != nil {
		t.Fatalf("retried init: %v", err)
	}
}

func TestInit_FailedSpawnConsumesCallerSurface(t *testing.T) {
	own := surface.New("mine", 640, 480)
	f := newFixture(t, Config{
		Surface:    surface.Config{Existing: own},
		CameraMode: "nonsense",
	})
	ctx := context.Background()

	if err := f.app.Init(ctx); err == nil {
		t.Fatal("unknown camera mode should fault the spawn")
	}
	if !own.Transferred() {
		t.Fatal("surface ownership moves with the failed handoff")
	}

	// A caller-supplied surface cannot back a retry: its ownership was
	// consumed, so only selector and fallback surfaces make Init
	// retryable.
	f.app.cfg.CameraMode = render.ModeOrbit
	if err := f.app.Init(ctx); err == nil {
		t.Fatal("retry with a consumed surface should fail")
	}
}

func TestForwarder_ReachesWorker(t *testing.T) {
	f := newFixture(t, Config{
		Surface: surface.Config{Width: 800, Height: 600},
	})
	ctx := context.Background()

	if err := f.app.Init(ctx); err != nil {
		t.Fatal(err)
	}
	fwd := f.app.Forwarder()

	if err := fwd.PointerLock(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := fwd.PointerMove(ctx, 4, 2); err != nil {
		t.Fatal(err)
	}
	if yaw, pitch := f.rig.Orientation(); yaw != 4 || pitch != 2 {
		t.Fatalf("orientation = %v,%v", yaw, pitch)
	}

	// Windowed resize forwards the surface dimensions.
	if err := fwd.Resize(ctx); err != nil {
		t.Fatal(err)
	}
	if w, h := f.renderer.Size(); w != 800 || h != 600 {
		t.Fatalf("renderer sized %vx%v after forwarded resize", w, h)
	}
}

type fixedViewport struct{ w, h float64 }

func (v fixedViewport) Size() (float64, float64) { return v.w, v.h }

func TestForwarder_FullScreenUsesViewport(t *testing.T) {
	f := newFixture(t, Config{
		Surface:    surface.Config{Width: 800, Height: 600},
		FullScreen: true,
		Viewport:   fixedViewport{w: 1920, h: 1080},
	})
	ctx := context.Background()

	if err := f.app.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.app.Forwarder().Resize(ctx); err != nil {
		t.Fatal(err)
	}
	if w, h := f.renderer.Size(); w != 1920 || h != 1080 {
		t.Fatalf("renderer sized %vx%v, want viewport dimensions", w, h)
	}
}

func TestLifecycle_DeliversUpdateBrackets(t *testing.T) {
	f := newFixture(t, Config{StartTimer: true})
	ctx := context.Background()

	if err := f.app.Init(ctx); err != nil {
		t.Fatal(err)
	}

	f.timer.Tick()

	want := []string{"UPDATE_STARTED", "UPDATE_ENDED"}
	for _, phase := range want {
		select {
		case ev := <-f.app.Lifecycle():
			if ev.Phase != phase {
				t.Fatalf("phase = %s, want %s", ev.Phase, phase)
			}
		case <-time.After(testTimeout):
			t.Fatalf("timed out waiting for %s", phase)
		}
	}
}

func TestLoadResources_RunsAlongsideRendering(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if err := f.app.Init(ctx); err != nil {
		t.Fatal(err)
	}

	s, err := f.app.LoadResources(ctx, []loader.Resource{
		{Kind: loader.KindClip, Source: "clips/idle.json"},
	}, loader.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	select {
	case p, ok := <-s.Progress():
		if !ok {
			t.Fatal("progress closed before any event")
		}
		if p.LoadedCount != 1 || p.ToLoadCount != 1 {
			t.Fatalf("progress = %d/%d", p.LoadedCount, p.ToLoadCount)
		}
	case <-time.After(testTimeout):
		t.Fatal("no progress event")
	}

	select {
	case p, ok := <-s.Completed():
		if !ok {
			t.Fatal("completed closed before any event")
		}
		if p.Error != "" {
			t.Fatalf("clip failed to process: %s", p.Error)
		}
		if p.Resource == nil {
			t.Fatal("completed event carries no payload")
		}
	case <-time.After(testTimeout):
		t.Fatal("no completed event")
	}

	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatal("load session never drained")
	}

	// The render worker is untouched by the loader's disposal.
	var stats render.Stats
	if err := f.app.Render().Remote.CallInto(ctx, "stats", nil, &stats); err != nil {
		t.Fatal(err)
	}
}

func TestDispose_IdempotentAndReleasesFallback(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if err := f.app.Init(ctx); err != nil {
		t.Fatal(err)
	}
	surf := f.app.Surface()
	if !surf.Fallback() {
		t.Fatal("empty config should resolve to a fallback surface")
	}

	// The port is FIFO, so a completed call proves the worker has
	// registered the lifecycle subscription.
	var s render.Stats
	if err := f.app.Render().Remote.CallInto(ctx, "stats", nil, &s); err != nil {
		t.Fatal(err)
	}

	if err := f.app.Dispose(ctx); err != nil {
		t.Fatal(err)
	}
	if !surf.Released() {
		t.Fatal("fallback surface should be released on dispose")
	}
	if n := f.pool.Len(); n != 0 {
		t.Fatalf("pool tracks %d workers after dispose", n)
	}

	if err := f.app.Dispose(ctx); err != nil {
		t.Fatalf("second dispose: %v", err)
	}

	// The terminal DISPOSED arrives, then the channel completes.
	var last string
	deadline := time.After(testTimeout)
	for {
		select {
		case ev, ok := <-f.app.Lifecycle():
			if !ok {
				if last != "DISPOSED" {
					t.Fatalf("lifecycle completed with last phase %q, want DISPOSED", last)
				}
				return
			}
			last = ev.Phase
		case <-deadline:
			t.Fatal("lifecycle channel never completed")
		}
	}
}

func TestDispose_KeepsCallerSuppliedSurface(t *testing.T) {
	own := surface.New("mine", 640, 480)
	f := newFixture(t, Config{Surface: surface.Config{Existing: own}})
	ctx := context.Background()

	if err := f.app.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.app.Dispose(ctx); err != nil {
		t.Fatal(err)
	}
	if own.Released() {
		t.Fatal("caller-supplied surface must not be released")
	}
}

func TestInit_AfterDisposeFails(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if err := f.app.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.app.Dispose(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.app.Init(ctx); err == nil {
		t.Fatal("init after dispose must fail")
	}
}

var _ proxyevent.Viewport = fixedViewport{}
