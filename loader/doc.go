// Package loader loads external resources in a dedicated worker context
// and streams per-resource progress back to the controlling side.
//
// The worker half is Module: it receives a Manifest at init, fetches
// each resource through a Fetcher, and post-processes it by kind (scene
// assets are parsed and re-encoded as validated scene documents). Each
// resource produces one event on the progress stream when its bytes are
// fetched and one on the progressCompleted stream once fully processed,
// carrying the final payload. The loaded count is monotone and never
// exceeds the total; a resource that fails still advances the count so
// a run always drains, at which point both streams close.
//
// The controller half is Client: LoadResources spawns a loader worker,
// subscribes to its streams, and exposes the run as a Session with
// typed events. Loader workers run independently of render workers.
package loader
