// Package stream provides the event-stream abstraction used on both sides
// of the context boundary: a single publisher, any number of independent
// subscribers, and deterministic closure.
//
// Subscribers must be able to distinguish "no events right now" from
// "no events ever again", so Close propagates to every subscription
// channel. Publishing never blocks the producing worker.
package stream
