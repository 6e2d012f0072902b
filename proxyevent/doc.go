// Package proxyevent keeps a one-way replica of controlling-context
// input and viewport state inside the worker without sharing mutable
// memory.
//
// The controlling side captures pointer-lock, pointer-move, key, and
// resize events, reduces each to a minimal plain-data envelope, and
// relays it through the remote module protocol. The worker side routes
// each envelope through a static dispatch table to the subsystem that
// owns the matching state.
package proxyevent
