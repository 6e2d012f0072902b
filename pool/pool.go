package pool

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	offstage "github.com/offstagehq/offstage"
	"github.com/offstagehq/offstage/channel"
	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
	"github.com/offstagehq/offstage/remote"
)

// Descriptor names a module to load into a fresh worker context, along
// with its initialization state. Immutable once submitted to Run.
type Descriptor struct {
	// Path locates the module in the registry.
	Path string

	// Subject is arbitrary serializable init state. Live references
	// fail the spawn before any context is created.
	Subject any

	// Transfer lists resources whose ownership moves into the worker.
	Transfer []offstage.Transferable
}

// Context is an opaque reference to one worker execution context.
type Context struct {
	path   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error // Serve result, valid after done closes
}

// Path returns the module path this context is running.
func (c *Context) Path() string { return c.path }

// Done closes when the context has fully terminated.
func (c *Context) Done() <-chan struct{} { return c.done }

// Handle is the caller's grip on a spawned worker: the execution context
// plus the remote-module proxy. Run never returns a handle with only one
// of the two; a worker that cannot produce both is a fatal error instead.
type Handle struct {
	Context *Context
	Remote  *remote.Proxy
	Queued  bool
}

// Registry maps module paths to constructors. Spawning instantiates a
// fresh module per worker; constructors must not share mutable state.
type Registry struct {
	mu    sync.RWMutex
	paths map[string]func() remote.Module
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{paths: make(map[string]func() remote.Module)}
}

// Register binds a module path to its constructor.
func (r *Registry) Register(path string, fn func() remote.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[path] = fn
}

func (r *Registry) lookup(path string) (func() remote.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.paths[path]
	return fn, ok
}

// Pool spawns and tracks worker execution contexts. The handle set is
// owned by whoever constructed the pool and must be drained through
// TerminateAll before process-wide teardown.
type Pool struct {
	registry *Registry
	logger   *zap.Logger

	mu         sync.Mutex
	workers    []*worker
	terminated bool
}

type worker struct {
	ctx   *Context
	proxy *remote.Proxy
}

// New creates a pool backed by the given module registry.
func New(registry *Registry, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{registry: registry, logger: logger}
}

// Run spawns a worker context, loads the module at descriptor.Path,
// delivers the init payload (moving ownership of listed resources), and
// blocks until the module signals readiness. It returns a fully usable
// handle or an error; half-initialized workers are torn down, never
// returned. No timeout is imposed here: a module that never becomes
// ready leaves Run pending until ctx ends. The pool does not retry;
// retry policy belongs to the caller.
func (p *Pool) Run(ctx context.Context, desc Descriptor) (*Handle, error) {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return nil, errors.Closed(errors.PhaseSpawn, "pool")
	}
	p.mu.Unlock()

	construct, ok := p.registry.lookup(desc.Path)
	if !ok {
		return nil, errors.Spawn("unknown module path "+desc.Path, nil)
	}

	subject, err := json.Marshal(desc.Subject)
	if err != nil {
		return nil, errors.Unserializable(errors.PhaseSpawn, "init subject", err)
	}

	mod := construct()
	controllerPort, workerPort := channel.Pair(0)

	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	wc := &Context{path: desc.Path, cancel: cancel, done: make(chan struct{})}

	log := p.logger.With(zap.String("module", desc.Path))
	go func() {
		defer close(wc.done)
		wc.err = remote.Serve(wctx, mod, workerPort, log)
		if wc.err != nil {
			log.Debug("worker exited with error", zap.Error(wc.err))
		}
	}()

	initEnv, err := remote.Envelope{Kind: remote.KindInit, Payload: subject}.Encode()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := controllerPort.Send(ctx, channel.Message{Data: initEnv, Transfer: desc.Transfer}); err != nil {
		cancel()
		return nil, errors.Spawn("deliver init payload", err)
	}

	if err := awaitReady(ctx, controllerPort); err != nil {
		cancel()
		return nil, err
	}

	handle := &Handle{
		Context: wc,
		Remote:  remote.NewProxy(controllerPort, log),
	}

	p.mu.Lock()
	if p.terminated {
		// TerminateAll raced us; this worker must not escape it.
		p.mu.Unlock()
		p.stop(&worker{ctx: wc, proxy: handle.Remote})
		return nil, errors.Closed(errors.PhaseSpawn, "pool")
	}
	p.workers = append(p.workers, &worker{ctx: wc, proxy: handle.Remote})
	p.mu.Unlock()

	log.Info("worker ready")
	return handle, nil
}

// awaitReady consumes handshake frames until ready or fault, filtering
// anything malformed.
func awaitReady(ctx context.Context, port *channel.Port) error {
	for {
		msg, err := port.Recv(ctx)
		if err != nil {
			return errors.Handshake("worker never signaled readiness", err)
		}
		env, ok := remote.DecodeEnvelope(msg.Data)
		if !ok {
			continue
		}
		switch env.Kind {
		case remote.KindReady:
			return nil
		case remote.KindFault:
			return errors.Handshake(env.Error, nil)
		}
	}
}

// Len returns the number of live workers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Terminate tears down a single worker handle. The proxy completes its
// streams; the context is canceled and awaited.
func (p *Pool) Terminate(h *Handle) {
	if h == nil || h.Context == nil {
		return
	}
	p.mu.Lock()
	for i, w := range p.workers {
		if w.ctx == h.Context {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	p.stop(&worker{ctx: h.Context, proxy: h.Remote})
}

// TerminateAll tears down every context spawned by this pool. Idempotent
// and final: terminated workers are never resurrected, and all remote
// streams backed by them complete.
func (p *Pool) TerminateAll(ctx context.Context) error {
	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.terminated = true
	p.mu.Unlock()

	var g errgroup.Group
	for _, w := range workers {
		g.Go(func() error {
			p.stop(w)
			return nil
		})
	}
	waitErr := g.Wait()

	var errs error
	for _, w := range workers {
		if w.ctx.err != nil {
			errs = multierr.Append(errs, w.ctx.err)
		}
	}
	return multierr.Append(waitErr, errs)
}

// stop cancels a worker and waits for it to unwind before closing the
// proxy. The proxy must keep receiving until then: the worker flushes
// terminal stream events during its teardown, and closing the port
// early would discard them.
func (p *Pool) stop(w *worker) {
	w.ctx.cancel()
	<-w.ctx.done
	if w.proxy != nil {
		w.proxy.Close()
	}
}
