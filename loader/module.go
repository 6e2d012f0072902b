package loader

import (
	"context"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
	"github.com/offstagehq/offstage/pool"
	"github.com/offstagehq/offstage/remote"
	"github.com/offstagehq/offstage/scenegraph"
	"github.com/offstagehq/offstage/stream"
)

// ModulePath is the registry path of the loader worker module.
const ModulePath = "offstage/loader"

// Stream names exposed by the loader module.
const (
	StreamProgress  = "progress"
	StreamCompleted = "progressCompleted"
)

// Module is the worker-resident loader. It fetches every manifest
// resource through its Fetcher, post-processes it, and reports each
// step on the progress stream. One module runs one manifest.
type Module struct {
	fetcher Fetcher
	logger  *zap.Logger

	manifest Manifest
	loaded   atomic.Int64
	started  atomic.Bool

	progress  *stream.Stream[[]byte]
	completed *stream.Stream[[]byte]
	runCtx    context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewModule creates a loader module. A nil fetcher falls back to the
// process working directory; a nil logger is replaced with a no-op one.
func NewModule(fetcher Fetcher, logger *zap.Logger) *Module {
	if fetcher == nil {
		fetcher = Dir(".")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		fetcher:   fetcher,
		logger:    logger,
		progress:  stream.New[[]byte](logger),
		completed: stream.New[[]byte](logger),
		done:      make(chan struct{}),
	}
}

// Register adds the loader module to a worker registry. Each spawn gets
// a fresh module sharing only the fetcher.
func Register(r *pool.Registry, fetcher Fetcher, logger *zap.Logger) {
	r.Register(ModulePath, func() remote.Module {
		return NewModule(fetcher, logger)
	})
}

// Init decodes the manifest and, when it asks for immediate loading,
// starts the run right away.
func (m *Module) Init(ctx context.Context, init remote.Init) error {
	if err := json.Unmarshal(init.Subject, &m.manifest); err != nil {
		return errors.Wrap(errors.PhaseHandshake, errors.KindInvalidData, err, "loader manifest")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.runCtx = runCtx
	m.cancel = cancel

	m.logger.Debug("loader initialized",
		zap.Int("resources", len(m.manifest.Resources)),
		zap.Bool("immediate", m.manifest.ImmediateLoad))

	if m.manifest.ImmediateLoad {
		m.start(runCtx)
	}
	return nil
}

// Methods exposes the load trigger. Calling load on a run that already
// started is a no-op.
func (m *Module) Methods() map[string]remote.Method {
	return map[string]remote.Method{
		"load": func(ctx context.Context, _ []byte) ([]byte, error) {
			m.start(m.runCtx)
			return nil, nil
		},
	}
}

// Streams exposes per-resource progress and the drained signal.
func (m *Module) Streams() map[string]*stream.Stream[[]byte] {
	return map[string]*stream.Stream[[]byte]{
		StreamProgress:  m.progress,
		StreamCompleted: m.completed,
	}
}

// Dispose stops an in-flight run and waits for it to unwind.
func (m *Module) Dispose(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.started.Load() {
		select {
		case <-m.done:
		case <-ctx.Done():
			return errors.Canceled(errors.PhaseRuntime, ctx.Err())
		}
	}
	return nil
}

func (m *Module) start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go m.run(ctx)
}

// run works through the manifest in order. Each resource produces one
// progress event once fetched and one progressCompleted event once
// post-processed; a resource that fails still advances the count, so a
// drained run always reaches loaded == toLoad.
func (m *Module) run(ctx context.Context) {
	defer close(m.done)
	defer m.completed.Close()
	defer m.progress.Close()

	total := len(m.manifest.Resources)
	for _, res := range m.manifest.Resources {
		if ctx.Err() != nil {
			m.logger.Debug("load run canceled",
				zap.Int64("loaded", m.loaded.Load()),
				zap.Int("total", total))
			return
		}

		step := Progress{
			ToLoadCount: total,
			Source:      res,
		}

		data, err := m.fetcher.Fetch(ctx, res.Source)
		if err != nil {
			m.logger.Warn("resource fetch failed",
				zap.String("source", res.Source),
				zap.String("kind", string(res.Kind)),
				zap.Error(err))
			step.Error = err.Error()
		}

		step.LoadedCount = int(m.loaded.Inc())
		m.publish(m.progress, step)

		if step.Error == "" {
			payload, err := m.process(res, data)
			if err != nil {
				m.logger.Warn("resource processing failed",
					zap.String("source", res.Source),
					zap.Error(err))
				step.Error = err.Error()
			} else {
				step.Resource = payload
			}
		}
		m.publish(m.completed, step)
	}
}

// process converts fetched bytes by resource kind. Scene assets are
// parsed and re-encoded so the consumer receives a validated document
// rather than raw bytes.
func (m *Module) process(res Resource, data []byte) (json.RawMessage, error) {
	switch res.Kind {
	case KindScene:
		doc, err := scenegraph.UnmarshalDocument(data)
		if err != nil {
			return nil, err
		}
		return doc.Marshal()
	case KindGeometry, KindTexture, KindClip:
		if !json.Valid(data) {
			return json.Marshal(struct {
				Bytes []byte `json:"bytes"`
			}{Bytes: data})
		}
		return json.RawMessage(data), nil
	default:
		return nil, errors.InvalidData(errors.PhaseLoad, "unknown resource kind "+string(res.Kind))
	}
}

func (m *Module) publish(s *stream.Stream[[]byte], p Progress) {
	data, err := json.Marshal(p)
	if err != nil {
		m.logger.Error("progress event unserializable", zap.Error(err))
		return
	}
	s.Publish(data)
}
