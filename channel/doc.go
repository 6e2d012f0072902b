// Package channel implements the transfer channel between a controlling
// context and a worker context.
//
// A channel is a pair of connected Ports. Payloads are plain bytes; large
// or exclusive resources ride alongside in the message's transfer list and
// have their ownership moved, not copied, at send time. Ordering is FIFO
// within one port and unspecified across ports.
package channel
