// Package offstage provides cross-context orchestration for rendering
// workloads that run inside isolated worker execution contexts.
//
// A controlling context spawns workers, hands one of them exclusive
// ownership of a rendering surface, and from then on drives and observes
// the worker purely through message passing: remote method calls, event
// stream subscriptions, and forwarded input events.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	offstage/            Root package with the Transferable ownership interface
//	├── channel/         FIFO message ports with ownership-transferring payloads
//	├── stream/          Event streams with deterministic close semantics
//	├── remote/          Request/response + publish/subscribe protocol over a port
//	├── pool/            Worker lifecycle: spawn, load a module, terminate
//	├── lifecycle/       Per-module init/update/dispose state machine
//	├── proxyevent/      Input and resize event forwarding across the boundary
//	├── scenegraph/      Acyclic scene-graph encoding with shared side tables
//	├── loader/          Asset loading worker with streamed progress
//	├── surface/         Rendering surface resolution and one-way transfer
//	├── render/          The render worker module itself
//	├── app/             Application context wiring it all together
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Spawn a render worker and drive it from the controlling context:
//
//	p := pool.New(registry, logger)
//	defer p.TerminateAll(ctx)
//
//	handle, err := p.Run(ctx, pool.Descriptor{
//	    Path:     render.ModulePath,
//	    Subject:  render.Subject{Width: 800, Height: 600, StartTimer: true},
//	    Transfer: []offstage.Transferable{surf},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sub, _ := handle.Remote.Subscribe(ctx, "lifecycle")
//	for raw := range sub.C {
//	    // observe INITIALIZED, UPDATE_STARTED/UPDATE_ENDED pairs, DISPOSED
//	    _ = raw
//	}
//
// # Concurrency Model
//
// Workers are single-threaded internally and share no mutable memory with
// their spawner; the only way state crosses the boundary is a copied
// message or an explicitly transferred resource. Within one port,
// request/response and push ordering is FIFO. Across two workers there is
// no relative ordering guarantee.
//
// # Ownership
//
// A Transferable resource has exactly one owner at any time. Sending it
// across a port moves ownership irreversibly; the origin context must not
// perform owning operations on it afterward, and implementations enforce
// this by failing such calls.
package offstage
