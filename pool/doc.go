// Package pool manages the lifecycle of worker execution contexts:
// spawn, load a module by path with an initialization payload, await
// readiness, and bulk-terminate.
//
// Each worker is goroutine-confined and owns whatever resources were
// transferred into it; termination is the only way to reclaim them, and
// it is final. Readiness is an explicit result: Run returns a handle
// with both a live context and a live remote proxy, or an error.
package pool
