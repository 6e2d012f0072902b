package surface

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
)

// Default fallback dimensions, used when neither the caller nor the
// locator supplies a surface.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Surface is a rendering target whose ownership can move into a worker
// context. Owning operations are valid only while this context holds
// ownership; after a transfer they fail.
type Surface struct {
	name   string
	width  float64
	height float64
	top    float64
	left   float64

	fallback    bool
	transferred atomic.Bool
	released    atomic.Bool

	logger *zap.Logger
}

// Config describes how to obtain a surface. Resolution precedence:
// Existing, then Selector through a Locator, then a fresh fallback.
type Config struct {
	// Existing is a caller-supplied surface used as-is. The caller
	// keeps responsibility for its release.
	Existing *Surface `json:"-"`

	// Selector is resolved through the Locator when no explicit
	// surface is given.
	Selector string `json:"selector,omitempty"`

	Name   string  `json:"name,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Top    float64 `json:"top,omitempty"`
	Left   float64 `json:"left,omitempty"`
}

// Locator resolves a selector to an existing surface in the controlling
// context. External collaborator; absence is not an error.
type Locator interface {
	Locate(selector string) (*Surface, error)
}

// New creates a caller-owned surface.
func New(name string, width, height float64) *Surface {
	return &Surface{
		name:   name,
		width:  width,
		height: height,
		logger: zap.NewNop(),
	}
}

// Resolve obtains the surface to render into. Failures never abort
// setup: an unresolvable selector is logged and a fresh fallback surface
// is created instead.
func Resolve(cfg Config, loc Locator, logger *zap.Logger) *Surface {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Existing != nil {
		logger.Debug("using caller-supplied surface", zap.String("name", cfg.Existing.name))
		return cfg.Existing
	}

	if cfg.Selector != "" && loc != nil {
		s, err := loc.Locate(cfg.Selector)
		if err == nil && s != nil {
			logger.Debug("surface resolved by selector",
				zap.String("selector", cfg.Selector),
				zap.String("name", s.name))
			return s
		}
		logger.Warn("surface selector unresolved, creating fallback",
			zap.String("selector", cfg.Selector),
			zap.Error(err))
	}

	width, height := cfg.Width, cfg.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	name := cfg.Name
	if name == "" {
		name = "offstage-surface"
	}

	logger.Info("created fallback surface",
		zap.String("name", name),
		zap.Float64("width", width),
		zap.Float64("height", height))

	return &Surface{
		name:     name,
		width:    width,
		height:   height,
		top:      cfg.Top,
		left:     cfg.Left,
		fallback: true,
		logger:   logger,
	}
}

// Name returns the surface's identifying name.
func (s *Surface) Name() string { return s.name }

// Size returns the surface dimensions. Readable in any ownership state.
func (s *Surface) Size() (width, height float64) { return s.width, s.height }

// Offset returns the surface placement within the controlling context.
func (s *Surface) Offset() (top, left float64) { return s.top, s.left }

// Fallback reports whether this surface was created by Resolve rather
// than supplied or located.
func (s *Surface) Fallback() bool { return s.fallback }

// SetSize resizes the surface. Owning operation: fails once ownership
// has moved to a worker.
func (s *Surface) SetSize(width, height float64) error {
	if s.transferred.Load() {
		return errors.AlreadyTransferred("surface " + s.name)
	}
	s.width, s.height = width, height
	return nil
}

// Transfer moves ownership out of this context. One-way and once; the
// second transfer errors.
func (s *Surface) Transfer() error {
	if !s.transferred.CompareAndSwap(false, true) {
		return errors.AlreadyTransferred("surface " + s.name)
	}
	return nil
}

// Transferred reports whether ownership has moved.
func (s *Surface) Transferred() bool {
	return s.transferred.Load()
}

// Release detaches a fallback surface from the controlling context. A
// caller-supplied or located surface stays attached; its owner decides
// its fate. Idempotent.
func (s *Surface) Release() {
	if !s.fallback {
		return
	}
	if s.released.CompareAndSwap(false, true) {
		if s.logger != nil {
			s.logger.Debug("fallback surface released", zap.String("name", s.name))
		}
	}
}

// Released reports whether a fallback surface was detached.
func (s *Surface) Released() bool {
	return s.released.Load()
}

// Descriptor is the plain-data shape of a surface, safe to cross the
// boundary alongside the ownership transfer.
type Descriptor struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
}

// Describe snapshots the surface as plain data.
func (s *Surface) Describe() Descriptor {
	return Descriptor{
		Name:   s.name,
		Width:  s.width,
		Height: s.height,
		Top:    s.top,
		Left:   s.left,
	}
}

// FromDescriptor rebuilds a worker-side surface from its plain-data
// shape. The rebuilt surface is owned by the worker.
func FromDescriptor(d Descriptor) *Surface {
	return &Surface{
		name:   d.Name,
		width:  d.Width,
		height: d.Height,
		top:    d.Top,
		left:   d.Left,
		logger: zap.NewNop(),
	}
}

// MarshalJSON encodes the surface as its descriptor.
func (s *Surface) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Describe())
}
