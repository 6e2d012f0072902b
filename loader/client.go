package loader

import (
	"context"

	"go.uber.org/zap"

	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
	"github.com/offstagehq/offstage/pool"
)

// Options tune one loading run. Use DefaultOptions as the base; the
// zero value disables both behaviors.
type Options struct {
	// DisposeOnComplete terminates the loader worker once the run is
	// drained.
	DisposeOnComplete bool

	// ImmediateLoad starts the run at init. When false, call
	// Session.Load to start it.
	ImmediateLoad bool
}

// DefaultOptions enables both disposal-on-completion and immediate
// loading.
func DefaultOptions() Options {
	return Options{DisposeOnComplete: true, ImmediateLoad: true}
}

// Client spawns loader workers and exposes their progress as typed
// events. The loader worker is independent of any render worker; runs
// proceed concurrently with rendering.
type Client struct {
	pool   *pool.Pool
	logger *zap.Logger
}

// NewClient creates a loader client over a worker pool.
func NewClient(p *pool.Pool, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{pool: p, logger: logger}
}

// Session is one loading run in one worker. Each resource shows up
// twice: once on Progress when its bytes are fetched, once on Completed
// with the processed payload. Done closes once the run is drained and,
// when the run was configured to, the worker has been terminated.
type Session struct {
	handle *pool.Handle
	pool   *pool.Pool
	opts   Options
	logger *zap.Logger

	progress  chan Progress
	completed chan Progress
	done      chan struct{}
}

// Progress delivers one fetch-stage event per resource. Closed when the
// run drains or the worker terminates.
func (s *Session) Progress() <-chan Progress { return s.progress }

// Completed delivers one event per fully processed resource, carrying
// the final payload. Closed when the run drains or the worker
// terminates.
func (s *Session) Completed() <-chan Progress { return s.completed }

// Done closes once the run has fully drained.
func (s *Session) Done() <-chan struct{} { return s.done }

// Load starts a deferred run. Calling it on an immediate or already
// started run is a no-op on the worker side.
func (s *Session) Load(ctx context.Context) error {
	return s.handle.Remote.CallInto(ctx, "load", nil, nil)
}

// Terminate stops the worker early, before the run drains.
func (s *Session) Terminate() {
	s.pool.Terminate(s.handle)
}

// LoadResources spawns a loader worker for the given resources and
// returns the session tracking it. Spawn and handshake failures are
// fatal and returned to the caller.
func (c *Client) LoadResources(ctx context.Context, resources []Resource, opts Options) (*Session, error) {
	// The manifest is always deferred here: the run must not start
	// before the progress subscriptions are in place, or early events
	// would be published to nobody. Immediate loading is the client
	// triggering the run itself right after subscribing.
	h, err := c.pool.Run(ctx, pool.Descriptor{
		Path:    ModulePath,
		Subject: Manifest{Resources: resources},
	})
	if err != nil {
		return nil, err
	}

	progressSub, err := h.Remote.Subscribe(ctx, StreamProgress)
	if err != nil {
		c.pool.Terminate(h)
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindFatal, err, "subscribe progress")
	}
	completedSub, err := h.Remote.Subscribe(ctx, StreamCompleted)
	if err != nil {
		c.pool.Terminate(h)
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindFatal, err, "subscribe completion")
	}

	s := &Session{
		handle:    h,
		pool:      c.pool,
		opts:      opts,
		logger:    c.logger,
		progress:  make(chan Progress, len(resources)+1),
		completed: make(chan Progress, len(resources)+1),
		done:      make(chan struct{}),
	}
	go s.pump(progressSub.C, completedSub.C)

	if opts.ImmediateLoad {
		if err := s.Load(ctx); err != nil {
			c.pool.Terminate(h)
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindFatal, err, "start load")
		}
	}
	return s, nil
}

// pump decodes raw stream pushes into typed events. Both remote streams
// close when the run drains or the worker terminates; the session is
// done once both are gone.
func (s *Session) pump(progress, completed <-chan []byte) {
	defer close(s.done)
	defer close(s.completed)
	defer close(s.progress)

	for progress != nil || completed != nil {
		select {
		case data, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			s.forward(s.progress, data)

		case data, ok := <-completed:
			if !ok {
				completed = nil
				continue
			}
			s.forward(s.completed, data)
		}
	}

	if s.opts.DisposeOnComplete {
		s.logger.Debug("run drained, terminating loader worker",
			zap.String("path", s.handle.Context.Path()))
		s.pool.Terminate(s.handle)
	}
}

func (s *Session) forward(out chan Progress, data []byte) {
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Debug("dropping malformed progress event", zap.Error(err))
		return
	}
	select {
	case out <- p:
	default:
		s.logger.Debug("progress consumer behind, dropping event",
			zap.Int("loaded", p.LoadedCount))
	}
}
