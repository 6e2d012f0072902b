// Package remote implements the protocol that exposes a worker-resident
// module's methods and event streams across the context boundary.
//
// A module registers a fixed set of named methods and named streams. The
// worker side runs Serve, which answers call envelopes and forwards
// stream values as push envelopes; all subscribed streams funnel through
// one sender, so pushes leave in publish order even across streams. The
// controlling side holds a Proxy whose Call and Subscribe relay over the
// same transfer channel, correlated by envelope ID. All traffic for one
// worker multiplexes over one channel, so ordering is FIFO within that
// worker.
//
// Envelope payloads are plain serialized data. A value that cannot be
// serialized (a live object reference) fails the call immediately rather
// than silently dropping; structured renderer objects must cross through
// the scenegraph encoding instead.
//
// Malformed envelopes arriving on the channel are silently filtered with a
// debug log, tolerating unrelated messages on a shared low-level conduit.
package remote
