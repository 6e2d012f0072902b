package loader

import (
	"context"
	"io/fs"
	"os"

	"github.com/offstagehq/offstage/errors"
)

// Fetcher retrieves raw asset bytes for a resource source. Fetching is
// the loader's only external IO; everything after it is in-process.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// FS fetches sources as paths inside a file system.
type FS struct {
	Root fs.FS
}

// Dir returns a fetcher rooted at a directory on the host file system.
func Dir(path string) FS {
	return FS{Root: os.DirFS(path)}
}

// Fetch reads the source path from the root file system.
func (f FS) Fetch(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(errors.PhaseLoad, err)
	}
	data, err := fs.ReadFile(f.Root, source)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Cause(err).
			Detail("resource %q", source).
			Build()
	}
	return data, nil
}

// Static serves sources from an in-memory map. Useful for tests and for
// embedding small default assets.
type Static map[string][]byte

// Fetch looks the source up in the map.
func (s Static) Fetch(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(errors.PhaseLoad, err)
	}
	data, ok := s[source]
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "resource", source)
	}
	return data, nil
}
