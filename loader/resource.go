package loader

import (
	"github.com/offstagehq/offstage/json"
)

// ResourceKind tags what a resource decodes into once fetched.
type ResourceKind string

const (
	KindGeometry ResourceKind = "geometry"
	KindTexture  ResourceKind = "texture"
	KindScene    ResourceKind = "scene"
	KindClip     ResourceKind = "clip"
)

// Resource names one asset to load: what it is and where to fetch it.
type Resource struct {
	Kind   ResourceKind `json:"kind"`
	Source string       `json:"source"`
}

// Progress is one loading step as seen by subscribers. LoadedCount is
// monotone non-decreasing and never exceeds ToLoadCount; the run is
// drained when the two are equal.
type Progress struct {
	// Resource is the processed asset payload. Set only on
	// progressCompleted events of resources that loaded cleanly.
	Resource json.RawMessage `json:"resource,omitempty"`

	LoadedCount int `json:"loadedCount"`
	ToLoadCount int `json:"toLoadCount"`

	// Source identifies which manifest entry this step covers.
	Source Resource `json:"source"`

	// Error carries the failure message for a resource that could not
	// be fetched or processed. The run continues past failed entries.
	Error string `json:"error,omitempty"`
}

// Manifest is the loader worker's init subject.
type Manifest struct {
	Resources []Resource `json:"resources"`

	// ImmediateLoad starts the run during init. When false the run
	// waits for an explicit load call.
	ImmediateLoad bool `json:"immediateLoad"`
}
