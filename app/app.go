package app

import (
	"context"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	offstage "github.com/offstagehq/offstage"
	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
	"github.com/offstagehq/offstage/loader"
	"github.com/offstagehq/offstage/pool"
	"github.com/offstagehq/offstage/proxyevent"
	"github.com/offstagehq/offstage/render"
	"github.com/offstagehq/offstage/surface"
)

// Config is the application's construction-time state. Everything the
// session needs is named here; nothing is read from ambient globals.
type Config struct {
	Surface    surface.Config
	CameraMode string
	MiniCamera bool
	FullScreen bool
	StartTimer bool

	// Viewport supplies the visible dimensions for full-screen resize
	// forwarding. Nil falls back to the resolved surface geometry.
	Viewport proxyevent.Viewport
}

// App is one rendering session: a resolved surface whose ownership moved
// into a render worker, the input forwarder feeding that worker, and the
// loader spawner. Construct with New, bring up with Init, tear down with
// Dispose.
type App struct {
	cfg     Config
	logger  *zap.Logger
	pool    *pool.Pool
	locator surface.Locator

	surf      *surface.Surface
	handle    *pool.Handle
	forwarder *proxyevent.Forwarder
	loaders   *loader.Client

	lifecycle chan render.LifecycleEvent

	initialized atomic.Bool
	disposed    atomic.Bool
}

// New constructs an application context. The pool must have the render
// and loader modules registered; locator and logger may be nil.
func New(cfg Config, p *pool.Pool, locator surface.Locator, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:       cfg,
		logger:    logger,
		pool:      p,
		locator:   locator,
		loaders:   loader.NewClient(p, logger),
		lifecycle: make(chan render.LifecycleEvent, 64),
	}
}

// Init brings the session up: resolve the surface, move its ownership
// into a freshly spawned render worker, wire input forwarding, and
// subscribe to the worker's lifecycle. Calling Init on an initialized
// app is a silent no-op. Spawn and handshake failures are returned and
// leave the app uninitialized; a retry resolves the surface again. A
// caller-supplied surface is consumed by the failed handoff and cannot
// back a retry, so only selector and fallback surfaces make Init
// retryable.
func (a *App) Init(ctx context.Context) error {
	if a.disposed.Load() {
		return errors.Closed(errors.PhaseSetup, "application")
	}
	if !a.initialized.CompareAndSwap(false, true) {
		a.logger.Debug("re-entrant init ignored")
		return nil
	}

	surf := surface.Resolve(a.cfg.Surface, a.locator, a.logger)

	h, err := a.pool.Run(ctx, pool.Descriptor{
		Path: render.ModulePath,
		Subject: render.Subject{
			StartTimer: a.cfg.StartTimer,
			CameraMode: a.cfg.CameraMode,
			MiniCamera: a.cfg.MiniCamera,
			FullScreen: a.cfg.FullScreen,
		},
		Transfer: []offstage.Transferable{surf},
	})
	if err != nil {
		surf.Release()
		a.initialized.Store(false)
		return err
	}

	viewport := a.cfg.Viewport
	if viewport == nil {
		viewport = surf
	}

	a.surf = surf
	a.handle = h
	a.forwarder = proxyevent.NewForwarder(h.Remote, viewport, surf, a.cfg.FullScreen)

	sub, err := h.Remote.Subscribe(ctx, render.StreamLifecycle)
	if err != nil {
		a.logger.Warn("lifecycle subscription failed", zap.Error(err))
	} else {
		go a.pumpLifecycle(sub.C)
	}

	a.logger.Info("session initialized",
		zap.String("surface", surf.Name()),
		zap.Bool("fullScreen", a.cfg.FullScreen))
	return nil
}

// Forwarder returns the input forwarder. Nil before Init succeeds.
func (a *App) Forwarder() *proxyevent.Forwarder {
	return a.forwarder
}

// Surface returns the resolved surface. Geometry stays readable after
// the ownership transfer; owning operations do not.
func (a *App) Surface() *surface.Surface {
	return a.surf
}

// Render returns the handle of the render worker. Nil before Init.
func (a *App) Render() *pool.Handle {
	return a.handle
}

// Lifecycle delivers the render worker's lifecycle transitions. The
// channel closes when the worker terminates.
func (a *App) Lifecycle() <-chan render.LifecycleEvent {
	return a.lifecycle
}

// LoadResources spawns a loader worker for the given resources. The
// loader runs concurrently with, and independently of, rendering.
func (a *App) LoadResources(ctx context.Context, resources []loader.Resource, opts loader.Options) (*loader.Session, error) {
	return a.loaders.LoadResources(ctx, resources, opts)
}

// Dispose tears the session down: every worker context terminates and a
// fallback surface is released. A caller-supplied surface is left to its
// owner. Idempotent.
func (a *App) Dispose(ctx context.Context) error {
	if !a.disposed.CompareAndSwap(false, true) {
		return nil
	}

	err := a.pool.TerminateAll(ctx)
	if a.surf != nil {
		a.surf.Release()
	}

	a.logger.Info("session disposed")
	return err
}

func (a *App) pumpLifecycle(c <-chan []byte) {
	defer close(a.lifecycle)
	for data := range c {
		var ev render.LifecycleEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			a.logger.Debug("dropping malformed lifecycle event", zap.Error(err))
			continue
		}
		select {
		case a.lifecycle <- ev:
		default:
			a.logger.Debug("lifecycle consumer behind, dropping event",
				zap.String("phase", ev.Phase))
		}
	}
}
