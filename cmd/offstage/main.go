package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/offstagehq/offstage/app"
	"github.com/offstagehq/offstage/loader"
	"github.com/offstagehq/offstage/pool"
	"github.com/offstagehq/offstage/render"
	"github.com/offstagehq/offstage/surface"
)

func main() {
	var (
		frames      = flag.Int("frames", 120, "Number of update frames to run")
		width       = flag.Float64("width", 1280, "Surface width")
		height      = flag.Float64("height", 720, "Surface height")
		camera      = flag.String("camera", "orbit", "Camera mode (orbit, free, follow)")
		fullscreen  = flag.Bool("fullscreen", false, "Track the viewport instead of the surface size")
		assets      = flag.String("assets", "", "Asset directory for resource loading")
		load        = flag.String("load", "", "Resources to load (kind:source,kind:source)")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger = l
		defer logger.Sync()
	}

	cfg := sessionConfig{
		width:      *width,
		height:     *height,
		camera:     *camera,
		fullscreen: *fullscreen,
		assets:     *assets,
		resources:  parseResources(*load),
		logger:     logger,
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *frames); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type sessionConfig struct {
	width      float64
	height     float64
	camera     string
	fullscreen bool
	assets     string
	resources  []loader.Resource
	logger     *zap.Logger
}

// session is the wired-up application plus the handles the command needs
// to drive and observe it.
type session struct {
	app      *app.App
	pool     *pool.Pool
	renderer *render.FrameCounter
	world    *render.TickWorld
	timer    *render.ManualTimer
}

// newSession builds the pool, registers the worker modules, and brings
// the application up. The spawn is retried with exponential backoff:
// a worker that fails to come up is the caller's problem to retry, not
// the pool's.
func newSession(ctx context.Context, cfg sessionConfig) (*session, error) {
	s := &session{
		renderer: &render.FrameCounter{},
		world:    &render.TickWorld{},
		timer:    render.NewManualTimer(),
	}

	reg := pool.NewRegistry()
	render.Register(reg, render.Options{
		Renderer: s.renderer,
		World:    s.world,
		Timer:    s.timer,
		Logger:   cfg.logger,
	})

	var fetcher loader.Fetcher
	if cfg.assets != "" {
		fetcher = loader.Dir(cfg.assets)
	}
	loader.Register(reg, fetcher, cfg.logger)

	s.pool = pool.New(reg, cfg.logger)
	s.app = app.New(app.Config{
		Surface:    surface.Config{Name: "offstage", Width: cfg.width, Height: cfg.height},
		CameraMode: cfg.camera,
		FullScreen: cfg.fullscreen,
		StartTimer: true,
	}, s.pool, nil, cfg.logger)

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(func() error { return s.app.Init(ctx) }, policy); err != nil {
		return nil, fmt.Errorf("bring up session: %w", err)
	}
	return s, nil
}

func run(cfg sessionConfig, frames int) error {
	ctx := context.Background()

	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.app.Dispose(ctx)

	surf := s.app.Surface()
	w, h := surf.Size()
	fmt.Printf("Surface: %s (%gx%g)\n", surf.Name(), w, h)

	if len(cfg.resources) > 0 {
		if err := loadAssets(ctx, s, cfg.resources); err != nil {
			return err
		}
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		s.timer.Tick()
	}
	if err := awaitFrames(ctx, s, int64(frames)); err != nil {
		return err
	}
	elapsed := time.Since(start)

	var stats render.Stats
	if err := s.app.Render().Remote.CallInto(ctx, "stats", nil, &stats); err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	fmt.Printf("\nFrames rendered: %d\n", stats.Frames)
	fmt.Printf("World steps:     %d\n", stats.Steps)
	fmt.Printf("Phase:           %s\n", stats.Phase)
	if stats.Frames > 0 {
		fmt.Printf("Avg frame time:  %v\n", elapsed/time.Duration(stats.Frames))
	}
	return nil
}

// awaitFrames blocks until the renderer has drawn the requested number
// of frames. Ticks are queued through the timer, so the count catches up
// shortly after the last tick.
func awaitFrames(ctx context.Context, s *session, want int64) error {
	deadline := time.After(10 * time.Second)
	for s.renderer.Frames() < want {
		select {
		case <-deadline:
			return fmt.Errorf("rendered %d of %d frames before timeout", s.renderer.Frames(), want)
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}

func loadAssets(ctx context.Context, s *session, resources []loader.Resource) error {
	fmt.Printf("\nLoading %d resources...\n", len(resources))

	sess, err := s.app.LoadResources(ctx, resources, loader.DefaultOptions())
	if err != nil {
		return fmt.Errorf("start load: %w", err)
	}

	for p := range sess.Completed() {
		status := "ok"
		if p.Error != "" {
			status = p.Error
		}
		fmt.Printf("  [%d/%d] %s %s: %s\n", p.LoadedCount, p.ToLoadCount, p.Source.Kind, p.Source.Source, status)
	}
	<-sess.Done()
	return nil
}

// parseResources reads a kind:source,kind:source flag value.
func parseResources(s string) []loader.Resource {
	if s == "" {
		return nil
	}
	var resources []loader.Resource
	for _, entry := range strings.Split(s, ",") {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		resources = append(resources, loader.Resource{
			Kind:   loader.ResourceKind(parts[0]),
			Source: parts[1],
		})
	}
	return resources
}
