// Package render is the worker-resident rendering pipeline.
//
// The Module runs inside a pool worker context. At init it adopts the
// transferred surface, sizes the camera and renderer, and brings the
// lifecycle machine to INITIALIZED; a failure in any stage faults the
// handshake. From then on the timer paces update ticks, each one
// bracketed by the lifecycle machine:
//
//	BeginUpdate → world.Step → renderer.Render → EndUpdate
//
// Proxied input (resize, pointer lock, pointer movement, keys) arrives
// as remote method calls and is routed through a proxyevent dispatch
// table. Lifecycle transitions and applied resizes are published on the
// module's streams for controlling-side subscribers.
//
// Renderer, CameraRig, World and Timer are external collaborators. The
// in-repo defaults (frame-counting renderer, orbit rig, tick-counting
// world, interval timer) run the whole pipeline without a GPU, which is
// what the tests and the command-line runner use.
package render
