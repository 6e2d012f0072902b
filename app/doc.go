// Package app assembles one rendering session from its parts.
//
// The App is constructed once with everything it needs: configuration,
// the worker pool, the surface locator and the logger. There are no
// ambient singletons; two independent sessions are two App values.
//
// Init resolves the rendering surface, moves its ownership into a fresh
// render worker, wires the input forwarder to that worker, and
// subscribes to its lifecycle stream. Re-entrant Init is a silent no-op;
// a failed Init leaves the app uninitialized so it can be retried.
// Dispose terminates every worker and releases a fallback surface, and
// is idempotent.
package app
