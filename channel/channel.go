package channel

import (
	"context"

	"go.uber.org/atomic"

	offstage "github.com/offstagehq/offstage"
	"github.com/offstagehq/offstage/errors"
)

// Message is a single payload crossing the boundary: encoded plain data
// plus an optional list of ownership-moved resources.
type Message struct {
	Data     []byte
	Transfer []offstage.Transferable
}

// Port is one end of a bidirectional transfer channel. Delivery is FIFO
// per port: two messages sent on the same port are received in send order.
// There is no ordering guarantee between two different channels.
type Port struct {
	out      chan<- Message
	in       <-chan Message
	done     chan struct{}
	peerDone chan struct{}
	closed   *atomic.Bool
}

// Pair creates two connected ports. Messages sent on one are received on
// the other. The buffer size applies per direction.
func Pair(buffer int) (*Port, *Port) {
	if buffer <= 0 {
		buffer = 64
	}
	ab := make(chan Message, buffer)
	ba := make(chan Message, buffer)

	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &Port{out: ab, in: ba, done: aDone, peerDone: bDone, closed: atomic.NewBool(false)}
	b := &Port{out: ba, in: ab, done: bDone, peerDone: aDone, closed: atomic.NewBool(false)}
	return a, b
}

// Send transfers ownership of every listed resource, then enqueues the
// message. A resource that was already transferred fails the whole send
// before anything is enqueued; this is the fail-fast path for double
// ownership moves.
func (p *Port) Send(ctx context.Context, msg Message) error {
	if p.closed.Load() {
		return errors.Closed(errors.PhaseRuntime, "port")
	}

	for _, t := range msg.Transfer {
		if err := t.Transfer(); err != nil {
			return err
		}
	}

	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return errors.Closed(errors.PhaseRuntime, "port")
	case <-p.peerDone:
		return errors.Closed(errors.PhaseRuntime, "peer port")
	case <-ctx.Done():
		return errors.Canceled(errors.PhaseRuntime, ctx.Err())
	}
}

// Recv dequeues the next message in FIFO order. It blocks until a message
// arrives, the peer closes, or ctx ends.
func (p *Port) Recv(ctx context.Context) (Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		// Drain anything already enqueued before reporting closure.
		select {
		case msg := <-p.in:
			return msg, nil
		default:
			return Message{}, errors.Closed(errors.PhaseRuntime, "port")
		}
	case <-p.peerDone:
		select {
		case msg := <-p.in:
			return msg, nil
		default:
			return Message{}, errors.Closed(errors.PhaseRuntime, "peer port")
		}
	case <-ctx.Done():
		return Message{}, errors.Canceled(errors.PhaseRuntime, ctx.Err())
	}
}

// Close shuts down this end of the channel. Idempotent. The peer's
// pending and future operations observe closure once both the buffer and
// this signal drain.
func (p *Port) Close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.done)
	}
}

// Closed reports whether this end has been closed.
func (p *Port) Closed() bool {
	return p.closed.Load()
}
