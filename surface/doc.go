// Package surface models the rendering target and its ownership.
//
// A Surface is obtained once per session through Resolve, which tries an
// explicitly supplied surface, then a selector through the Locator, and
// finally creates a fallback, so surface resolution never fails setup.
//
// Ownership moves into the render worker exactly once via Transfer.
// After the move, owning operations in the controlling context error;
// the controlling side keeps read access to the last known geometry for
// event forwarding. On dispose a fallback surface is released; a
// caller-supplied one is left to its owner.
package surface
