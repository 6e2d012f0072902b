package render

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/offstagehq/offstage/errors"
)

// Renderer draws the world into the surface. External collaborator; the
// in-repo default only counts frames so the pipeline runs without a GPU.
type Renderer interface {
	SetSize(width, height float64)
	Render() error
}

// CameraRig positions and aims the camera from proxied input.
type CameraRig interface {
	SetViewport(width, height float64)
	SetMode(mode string) error
	Look(dx, dy float64)
	Move(code string, pressed bool)
}

// World advances simulation state once per update tick.
type World interface {
	Step(dt time.Duration)
}

// Timer paces the update loop. C delivers ticks only between Start and
// Stop.
type Timer interface {
	Start()
	Stop()
	C() <-chan time.Time
}

// Camera modes accepted by the default rig.
const (
	ModeOrbit  = "orbit"
	ModeFree   = "free"
	ModeFollow = "follow"
)

// FrameCounter is the default renderer. It records the last size it was
// given and counts Render calls.
type FrameCounter struct {
	frames atomic.Int64
	width  atomic.Float64
	height atomic.Float64
}

func (f *FrameCounter) SetSize(width, height float64) {
	f.width.Store(width)
	f.height.Store(height)
}

func (f *FrameCounter) Render() error {
	f.frames.Inc()
	return nil
}

// Frames returns the number of frames rendered so far.
func (f *FrameCounter) Frames() int64 { return f.frames.Load() }

// Size returns the last size the renderer was given.
func (f *FrameCounter) Size() (width, height float64) {
	return f.width.Load(), f.height.Load()
}

// OrbitRig is the default camera rig: it accumulates look deltas and
// tracks pressed movement keys.
type OrbitRig struct {
	mu       sync.Mutex
	mode     string
	width    float64
	height   float64
	yaw      float64
	pitch    float64
	pressed  map[string]bool
	miniView bool
}

func NewOrbitRig() *OrbitRig {
	return &OrbitRig{mode: ModeOrbit, pressed: make(map[string]bool)}
}

func (r *OrbitRig) SetViewport(width, height float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
}

// SetMode switches the rig's control scheme. Unknown modes are rejected.
func (r *OrbitRig) SetMode(mode string) error {
	switch mode {
	case "", ModeOrbit:
		mode = ModeOrbit
	case ModeFree, ModeFollow:
	default:
		return errors.InvalidData(errors.PhaseSetup, "unknown camera mode "+mode)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	return nil
}

func (r *OrbitRig) Mode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

func (r *OrbitRig) Look(dx, dy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.yaw += dx
	r.pitch += dy
}

// Orientation returns the accumulated yaw and pitch.
func (r *OrbitRig) Orientation() (yaw, pitch float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.yaw, r.pitch
}

func (r *OrbitRig) Move(code string, pressed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pressed {
		r.pressed[code] = true
	} else {
		delete(r.pressed, code)
	}
}

// Pressed reports whether a movement key is currently held.
func (r *OrbitRig) Pressed(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pressed[code]
}

// EnableMini toggles the secondary overview viewport.
func (r *OrbitRig) EnableMini(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.miniView = on
}

// MiniEnabled reports whether the overview viewport is on.
func (r *OrbitRig) MiniEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.miniView
}

// TickWorld is the default world: it only counts steps.
type TickWorld struct {
	steps atomic.Int64
}

func (w *TickWorld) Step(dt time.Duration) { w.steps.Inc() }

// Steps returns the number of simulation steps taken.
func (w *TickWorld) Steps() int64 { return w.steps.Load() }

// IntervalTimer is the default timer, a fixed-interval ticker. Start and
// Stop are idempotent; a stopped timer can be started again.
type IntervalTimer struct {
	interval time.Duration

	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
	c      chan time.Time
}

// NewIntervalTimer creates a timer firing every interval.
func NewIntervalTimer(interval time.Duration) *IntervalTimer {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &IntervalTimer{
		interval: interval,
		c:        make(chan time.Time, 1),
	}
}

func (t *IntervalTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker != nil {
		return
	}
	t.ticker = time.NewTicker(t.interval)
	t.stop = make(chan struct{})
	go t.forward(t.ticker, t.stop)
}

func (t *IntervalTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	close(t.stop)
	t.ticker = nil
	t.stop = nil
}

func (t *IntervalTimer) C() <-chan time.Time { return t.c }

func (t *IntervalTimer) forward(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			select {
			case t.c <- now:
			default:
				// Consumer mid-tick; drop rather than queue stale ticks.
			}
		}
	}
}

// ManualTimer is a timer driven by explicit Tick calls. Tests and the
// command-line runner use it to pace updates deterministically.
type ManualTimer struct {
	started atomic.Bool
	c       chan time.Time
}

func NewManualTimer() *ManualTimer {
	return &ManualTimer{c: make(chan time.Time, 1)}
}

func (t *ManualTimer) Start() { t.started.Store(true) }
func (t *ManualTimer) Stop()  { t.started.Store(false) }

func (t *ManualTimer) C() <-chan time.Time { return t.c }

// Tick fires one update. Ticks while stopped are ignored.
func (t *ManualTimer) Tick() {
	if !t.started.Load() {
		return
	}
	t.c <- time.Now()
}
