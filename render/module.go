package render

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
	"github.com/offstagehq/offstage/lifecycle"
	"github.com/offstagehq/offstage/pool"
	"github.com/offstagehq/offstage/proxyevent"
	"github.com/offstagehq/offstage/remote"
	"github.com/offstagehq/offstage/stream"
	"github.com/offstagehq/offstage/surface"
)

// ModulePath is the registry path of the render worker module.
const ModulePath = "offstage/render"

// Stream names exposed by the render module.
const (
	StreamLifecycle = "lifecycle"
	StreamResize    = "resize"
)

// Subject is the render worker's init state. The surface itself rides
// the transfer list, not the subject: it is a moved resource, not data.
type Subject struct {
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	StartTimer bool    `json:"startTimer"`
	CameraMode string  `json:"cameraMode,omitempty"`
	MiniCamera bool    `json:"miniCamera"`
	FullScreen bool    `json:"fullScreen"`
}

// LifecycleEvent is the encoded shape of one lifecycle stream push.
type LifecycleEvent struct {
	Phase string `json:"phase"`
}

// SizeAck is the encoded shape of one resize stream push, acknowledging
// the dimensions the worker actually applied.
type SizeAck struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Stats is the snapshot returned by the stats method.
type Stats struct {
	Frames int64  `json:"frames"`
	Steps  int64  `json:"steps"`
	Phase  string `json:"phase"`
}

// Options inject the worker's subsystems. Nil fields get the in-repo
// defaults, which run without any GPU or display.
type Options struct {
	Renderer Renderer
	Camera   CameraRig
	World    World
	Timer    Timer
	Logger   *zap.Logger
}

// Module is the worker-resident render pipeline: surface, camera, world,
// renderer and timer behind the remote-module protocol.
type Module struct {
	logger   *zap.Logger
	renderer Renderer
	camera   CameraRig
	world    World
	timer    Timer

	subject Subject
	surf    *surface.Surface
	machine *lifecycle.Machine
	table   *proxyevent.Table

	lifecycleOut *stream.Stream[[]byte]
	resizeOut    *stream.Stream[[]byte]

	locked   bool // pointer lock state, touched only by method dispatch
	lastTick time.Time

	cancel     context.CancelFunc
	done       chan struct{}
	bridgeDone chan struct{}
}

// NewModule creates a render module with the given subsystems.
func NewModule(opts Options) *Module {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Renderer == nil {
		opts.Renderer = &FrameCounter{}
	}
	if opts.Camera == nil {
		opts.Camera = NewOrbitRig()
	}
	if opts.World == nil {
		opts.World = &TickWorld{}
	}
	if opts.Timer == nil {
		opts.Timer = NewIntervalTimer(16 * time.Millisecond)
	}

	m := &Module{
		logger:       opts.Logger,
		renderer:     opts.Renderer,
		camera:       opts.Camera,
		world:        opts.World,
		timer:        opts.Timer,
		machine:      lifecycle.New(opts.Logger),
		lifecycleOut: stream.New[[]byte](opts.Logger),
		resizeOut:    stream.New[[]byte](opts.Logger),
		done:         make(chan struct{}),
	}
	m.table = proxyevent.NewTable(opts.Logger).
		Bind(proxyevent.TypeResize, m.onResize).
		Bind(proxyevent.TypePointerLock, m.onPointerLock).
		Bind(proxyevent.TypePointerMove, m.onPointerMove).
		Bind(proxyevent.TypeKey, m.onKey)
	return m
}

// Register adds the render module to a worker registry. Each spawn gets
// a fresh module with fresh default subsystems.
func Register(r *pool.Registry, opts Options) {
	r.Register(ModulePath, func() remote.Module {
		return NewModule(opts)
	})
}

// Init brings the pipeline up stage by stage: surface, sizing, camera,
// world, renderer, timer, then the lifecycle transition. Any stage
// failure aborts init and faults the handshake.
func (m *Module) Init(ctx context.Context, init remote.Init) error {
	if err := json.Unmarshal(init.Subject, &m.subject); err != nil {
		return errors.Wrap(errors.PhaseHandshake, errors.KindInvalidData, err, "render subject")
	}

	if err := m.adoptSurface(init); err != nil {
		m.logger.Error("surface adoption failed", zap.Error(err))
		return err
	}

	width, height := m.subject.Width, m.subject.Height
	if width <= 0 || height <= 0 {
		width, height = m.surf.Size()
	}
	if err := m.surf.SetSize(width, height); err != nil {
		m.logger.Error("surface sizing failed", zap.Error(err))
		return err
	}

	m.camera.SetViewport(width, height)
	if err := m.camera.SetMode(m.subject.CameraMode); err != nil {
		m.logger.Error("camera setup failed", zap.Error(err))
		return err
	}
	if mini, ok := m.camera.(interface{ EnableMini(bool) }); ok {
		mini.EnableMini(m.subject.MiniCamera)
	}

	m.renderer.SetSize(width, height)

	events := m.machine.Events().Subscribe()
	m.bridgeDone = make(chan struct{})
	go m.bridgeLifecycle(events.C)

	if err := m.machine.Initialize(); err != nil {
		m.logger.Error("lifecycle initialization failed", zap.Error(err))
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	go m.loop(loopCtx)

	if m.subject.StartTimer {
		m.timer.Start()
	}

	m.logger.Info("render pipeline initialized",
		zap.Float64("width", width),
		zap.Float64("height", height),
		zap.Bool("timer", m.subject.StartTimer),
		zap.Bool("fullScreen", m.subject.FullScreen))
	return nil
}

// adoptSurface takes ownership of the transferred surface. The first
// transfer-list entry must be the surface; the worker rebuilds its own
// owned copy from the moved geometry.
func (m *Module) adoptSurface(init remote.Init) error {
	if len(init.Transfer) == 0 {
		return errors.Handshake("no surface transferred", nil)
	}
	src, ok := init.Transfer[0].(*surface.Surface)
	if !ok {
		return errors.Handshake("transfer[0] is not a surface", nil)
	}
	if !src.Transferred() {
		return errors.Handshake("surface arrived without ownership", nil)
	}
	m.surf = surface.FromDescriptor(src.Describe())
	return nil
}

func (m *Module) Methods() map[string]remote.Method {
	dispatch := func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, m.table.Dispatch(payload)
	}
	return map[string]remote.Method{
		"resize":       dispatch,
		"pointer-lock": dispatch,
		"pointer-move": dispatch,
		"key-event":    dispatch,
		"set-size": func(ctx context.Context, payload []byte) ([]byte, error) {
			var size SizeAck
			if err := json.Unmarshal(payload, &size); err != nil {
				return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "set-size payload")
			}
			return nil, m.applySize(size.Width, size.Height)
		},
		"stats": func(ctx context.Context, _ []byte) ([]byte, error) {
			return json.Marshal(m.stats())
		},
	}
}

func (m *Module) Streams() map[string]*stream.Stream[[]byte] {
	return map[string]*stream.Stream[[]byte]{
		StreamLifecycle: m.lifecycleOut,
		StreamResize:    m.resizeOut,
	}
}

// Dispose stops the timer and update loop, runs the lifecycle disposal
// transition, and waits until the bridge has republished the terminal
// DISPOSED, so remote subscribers observe it before their stream
// completes.
func (m *Module) Dispose(ctx context.Context) error {
	m.timer.Stop()
	if m.cancel != nil {
		m.cancel()
		select {
		case <-m.done:
		case <-ctx.Done():
			return errors.Canceled(errors.PhaseRuntime, ctx.Err())
		}
	}
	m.machine.Dispose()
	if m.bridgeDone != nil {
		select {
		case <-m.bridgeDone:
		case <-ctx.Done():
			return errors.Canceled(errors.PhaseRuntime, ctx.Err())
		}
	}
	return nil
}

// loop is the update loop: one lifecycle-bracketed step+render per tick.
func (m *Module) loop(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case now, ok := <-m.timer.C():
			if !ok {
				return
			}
			m.tick(now)
		}
	}
}

func (m *Module) tick(now time.Time) {
	if err := m.machine.BeginUpdate(); err != nil {
		m.logger.Debug("tick skipped", zap.Error(err))
		return
	}

	dt := time.Duration(0)
	if !m.lastTick.IsZero() {
		dt = now.Sub(m.lastTick)
	}
	m.lastTick = now

	m.world.Step(dt)
	if err := m.renderer.Render(); err != nil {
		m.logger.Warn("render failed", zap.Error(err))
	}

	if err := m.machine.EndUpdate(); err != nil {
		m.logger.Debug("update end rejected", zap.Error(err))
	}
}

// bridgeLifecycle republishes machine transitions as encoded stream
// events for remote subscribers.
func (m *Module) bridgeLifecycle(phases <-chan lifecycle.Phase) {
	defer close(m.bridgeDone)
	for phase := range phases {
		data, err := json.Marshal(LifecycleEvent{Phase: phase.String()})
		if err != nil {
			continue
		}
		m.lifecycleOut.Publish(data)
	}
	m.lifecycleOut.Close()
}

func (m *Module) onResize(payload []byte) error {
	var ev proxyevent.Resize
	if err := json.Unmarshal(payload, &ev); err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "resize event")
	}
	return m.applySize(ev.Width, ev.Height)
}

// applySize resizes surface, camera and renderer together and publishes
// the acknowledged dimensions.
func (m *Module) applySize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return errors.InvalidData(errors.PhaseDispatch, "non-positive dimensions")
	}
	if err := m.surf.SetSize(width, height); err != nil {
		return err
	}
	m.camera.SetViewport(width, height)
	m.renderer.SetSize(width, height)

	if data, err := json.Marshal(SizeAck{Width: width, Height: height}); err == nil {
		m.resizeOut.Publish(data)
	}
	return nil
}

func (m *Module) onPointerLock(payload []byte) error {
	var ev proxyevent.PointerLock
	if err := json.Unmarshal(payload, &ev); err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "pointer-lock event")
	}
	m.locked = ev.Locked
	return nil
}

func (m *Module) onPointerMove(payload []byte) error {
	var ev proxyevent.PointerMove
	if err := json.Unmarshal(payload, &ev); err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "pointer-move event")
	}
	// Look input only steers the camera while the pointer is captured.
	if m.locked {
		m.camera.Look(ev.MovementX, ev.MovementY)
	}
	return nil
}

func (m *Module) onKey(payload []byte) error {
	var ev proxyevent.Key
	if err := json.Unmarshal(payload, &ev); err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "key event")
	}
	m.camera.Move(ev.Code, ev.Pressed)
	return nil
}

func (m *Module) stats() Stats {
	s := Stats{Phase: m.machine.Phase().String()}
	if fc, ok := m.renderer.(*FrameCounter); ok {
		s.Frames = fc.Frames()
	}
	if tw, ok := m.world.(*TickWorld); ok {
		s.Steps = tw.Steps()
	}
	return s
}
