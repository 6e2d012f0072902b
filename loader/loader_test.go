package loader

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
	"github.com/offstagehq/offstage/pool"
	"github.com/offstagehq/offstage/scenegraph"
)

const testTimeout = 2 * time.Second

func testAssets(t *testing.T) Static {
	t.Helper()

	doc, err := scenegraph.Encode(&scenegraph.Node{
		Kind:      scenegraph.KindGroup,
		Transform: scenegraph.Identity(),
		Children: []*scenegraph.Node{
			{Kind: scenegraph.KindMesh, Name: "hero", Transform: scenegraph.Identity()},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	scene, err := doc.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	return Static{
		"meshes/cube.json":  []byte(`{"name":"cube","positions":[0,0,0]}`),
		"clips/idle.json":   []byte(`{"name":"idle","duration":1.5}`),
		"textures/wood.bin": {0x89, 0x50, 0x4e, 0x47},
		"scenes/intro.json": scene,
	}
}

func testPool(t *testing.T, fetcher Fetcher) *pool.Pool {
	t.Helper()
	reg := pool.NewRegistry()
	Register(reg, fetcher, nil)
	p := pool.New(reg, nil)
	t.Cleanup(func() { p.TerminateAll(context.Background()) })
	return p
}

func collect(t *testing.T, c <-chan Progress, want int) []Progress {
	t.Helper()
	var events []Progress
	deadline := time.After(testTimeout)
	for {
		select {
		case p, ok := <-c:
			if !ok {
				if len(events) != want {
					t.Fatalf("run drained after %d events, want %d", len(events), want)
				}
				return events
			}
			events = append(events, p)
		case <-deadline:
			t.Fatalf("timed out after %d events, want %d", len(events), want)
		}
	}
}

func TestLoadResources_ProgressMonotoneAndDrains(t *testing.T) {
	p := testPool(t, testAssets(t))
	c := NewClient(p, nil)
	ctx := context.Background()

	resources := []Resource{
		{Kind: KindGeometry, Source: "meshes/cube.json"},
		{Kind: KindClip, Source: "clips/idle.json"},
		{Kind: KindTexture, Source: "textures/wood.bin"},
	}

	s, err := c.LoadResources(ctx, resources, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	events := collect(t, s.Completed(), len(resources))

	prev := 0
	for i, e := range events {
		if e.LoadedCount <= prev {
			t.Fatalf("event %d: loaded count %d not monotone (prev %d)", i, e.LoadedCount, prev)
		}
		if e.LoadedCount > e.ToLoadCount {
			t.Fatalf("event %d: loaded %d exceeds total %d", i, e.LoadedCount, e.ToLoadCount)
		}
		if e.ToLoadCount != len(resources) {
			t.Fatalf("event %d: total = %d, want %d", i, e.ToLoadCount, len(resources))
		}
		if e.Source != resources[i] {
			t.Fatalf("event %d: source = %+v, want %+v", i, e.Source, resources[i])
		}
		if e.Error != "" {
			t.Fatalf("event %d: unexpected failure %q", i, e.Error)
		}
		prev = e.LoadedCount
	}
	if last := events[len(events)-1]; last.LoadedCount != last.ToLoadCount {
		t.Fatalf("final event %d/%d, want drained", last.LoadedCount, last.ToLoadCount)
	}

	// The fetch-stage stream saw every resource too, without payloads.
	fetches := collect(t, s.Progress(), len(resources))
	for i, e := range fetches {
		if e.Resource != nil {
			t.Fatalf("fetch event %d carries a payload", i)
		}
	}

	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatal("session never reported done")
	}

	// DisposeOnComplete tears the worker down once drained.
	if n := p.Len(); n != 0 {
		t.Fatalf("pool still tracks %d workers after drained run", n)
	}
}

func TestLoadResources_DeferredLoad(t *testing.T) {
	p := testPool(t, testAssets(t))
	c := NewClient(p, nil)
	ctx := context.Background()

	opts := DefaultOptions()
	opts.ImmediateLoad = false

	s, err := c.LoadResources(ctx, []Resource{
		{Kind: KindGeometry, Source: "meshes/cube.json"},
	}, opts)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-s.Progress():
		t.Fatalf("deferred run produced event before load: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}

	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	collect(t, s.Completed(), 1)
}

func TestLoadResources_KeepWorker(t *testing.T) {
	p := testPool(t, testAssets(t))
	c := NewClient(p, nil)
	ctx := context.Background()

	opts := DefaultOptions()
	opts.DisposeOnComplete = false

	s, err := c.LoadResources(ctx, []Resource{
		{Kind: KindClip, Source: "clips/idle.json"},
	}, opts)
	if err != nil {
		t.Fatal(err)
	}
	collect(t, s.Completed(), 1)

	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatal("session never reported done")
	}
	if n := p.Len(); n != 1 {
		t.Fatalf("pool tracks %d workers, want the kept loader", n)
	}
	s.Terminate()
	if n := p.Len(); n != 0 {
		t.Fatalf("pool tracks %d workers after terminate", n)
	}
}

func TestLoadResources_SceneReencoded(t *testing.T) {
	p := testPool(t, testAssets(t))
	c := NewClient(p, nil)

	s, err := c.LoadResources(context.Background(), []Resource{
		{Kind: KindScene, Source: "scenes/intro.json"},
	}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, s.Completed(), 1)

	doc, err := scenegraph.UnmarshalDocument(events[0].Resource)
	if err != nil {
		t.Fatalf("scene payload is not a document: %v", err)
	}
	graph, err := scenegraph.Decode(doc)
	if err != nil {
		t.Fatal(err)
	}
	kinds := graph.Root.Kinds()
	if len(kinds) != 2 || kinds[0] != scenegraph.KindGroup || kinds[1] != scenegraph.KindMesh {
		t.Fatalf("round-tripped scene kinds = %v", kinds)
	}
}

func TestLoadResources_FailedResourceStillDrains(t *testing.T) {
	p := testPool(t, testAssets(t))
	c := NewClient(p, nil)

	s, err := c.LoadResources(context.Background(), []Resource{
		{Kind: KindGeometry, Source: "meshes/cube.json"},
		{Kind: KindGeometry, Source: "meshes/missing.json"},
	}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, s.Completed(), 2)

	if events[0].Error != "" {
		t.Fatalf("first resource should succeed, got %q", events[0].Error)
	}
	if events[1].Error == "" {
		t.Fatal("missing resource should carry an error")
	}
	if events[1].Resource != nil {
		t.Fatal("failed resource should carry no payload")
	}
	if last := events[1]; last.LoadedCount != last.ToLoadCount {
		t.Fatalf("run did not drain: %d/%d", last.LoadedCount, last.ToLoadCount)
	}
}

func TestLoadResources_RawBytesWrapped(t *testing.T) {
	p := testPool(t, testAssets(t))
	c := NewClient(p, nil)

	s, err := c.LoadResources(context.Background(), []Resource{
		{Kind: KindTexture, Source: "textures/wood.bin"},
	}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, s.Completed(), 1)

	var wrapped struct {
		Bytes []byte `json:"bytes"`
	}
	if err := json.Unmarshal(events[0].Resource, &wrapped); err != nil {
		t.Fatal(err)
	}
	if len(wrapped.Bytes) != 4 || wrapped.Bytes[0] != 0x89 {
		t.Fatalf("wrapped bytes = %v", wrapped.Bytes)
	}
}

func TestDirFetcher(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"ok":true}`), 0o644); err != nil {
		t.Fatal(err)
	}

	f := Dir(dir)
	data, err := f.Fetch(context.Background(), "a.json")
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Fatalf("unexpected payload %q", data)
	}

	_, err = f.Fetch(context.Background(), "b.json")
	var oerr *errors.Error
	if !stderrors.As(err, &oerr) || oerr.Kind != errors.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestStaticFetcher_Missing(t *testing.T) {
	_, err := Static{}.Fetch(context.Background(), "nowhere")
	var oerr *errors.Error
	if !stderrors.As(err, &oerr) || oerr.Kind != errors.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}
