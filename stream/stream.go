package stream

import (
	"sync"

	"go.uber.org/zap"
)

// subscriptionBuffer is the per-subscriber channel capacity. Publish never
// blocks; a subscriber that falls this far behind loses the oldest-pending
// slot for the new value, which is logged at debug level.
const subscriptionBuffer = 256

// Stream is a publisher with any number of independent subscribers.
// Closing the stream closes every subscriber channel, so subscribers
// observe completion rather than silence.
type Stream[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]chan T
	tagged map[uint64]taggedSub[T]
	nextID uint64
	closed bool
	logger *zap.Logger
}

// Tagged is one value of a funneled subscription, labeled with the
// name the subscriber registered. Closed marks the stream's completion
// and carries no value.
type Tagged[T any] struct {
	Name   string
	Value  T
	Closed bool
}

type taggedSub[T any] struct {
	name string
	sink chan<- Tagged[T]
}

// Subscription is one subscriber's view of a stream. Values arrive on C;
// C is closed when the subscription is canceled or the stream closes.
type Subscription[T any] struct {
	C      <-chan T
	cancel func()
	once   sync.Once
}

// Cancel detaches the subscription and closes C. Further pushes are not
// delivered. Canceling does not affect the stream or other subscribers.
func (s *Subscription[T]) Cancel() {
	s.once.Do(s.cancel)
}

// New creates an open stream. A nil logger is replaced with a no-op one.
func New[T any](logger *zap.Logger) *Stream[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream[T]{
		subs:   make(map[uint64]chan T),
		tagged: make(map[uint64]taggedSub[T]),
		logger: logger,
	}
}

// Subscribe attaches a new independent subscriber. Subscribing to a
// closed stream yields an already-completed subscription.
func (s *Stream[T]) Subscribe() *Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, subscriptionBuffer)
	if s.closed {
		close(ch)
		return &Subscription[T]{C: ch, cancel: func() {}}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	return &Subscription[T]{
		C: ch,
		cancel: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		},
	}
}

// SubscribeTagged attaches a subscriber that delivers into a shared
// sink, labeling every value with name. Several streams funneled into
// one sink keep their relative publish order as long as the publishes
// come from a single goroutine. Completion is a final Tagged value with
// Closed set; it is delivered even when the sink is full, so the sink
// must be drained until every funneled stream completes. cancel
// detaches without the completion marker.
func (s *Stream[T]) SubscribeTagged(name string, sink chan<- Tagged[T]) (cancel func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sink <- Tagged[T]{Name: name, Closed: true}
		return func() {}
	}

	id := s.nextID
	s.nextID++
	s.tagged[id] = taggedSub[T]{name: name, sink: sink}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tagged, id)
	}
}

// Publish delivers v to every current subscriber. Publishing to a closed
// stream is a no-op.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	for id, ch := range s.subs {
		select {
		case ch <- v:
		default:
			s.logger.Debug("stream subscriber overflow, dropping value",
				zap.Uint64("subscriber", id))
		}
	}
	for id, t := range s.tagged {
		select {
		case t.sink <- Tagged[T]{Name: t.name, Value: v}:
		default:
			s.logger.Debug("stream sink overflow, dropping value",
				zap.Uint64("subscriber", id))
		}
	}
}

// Close completes the stream. Every subscriber channel is closed and
// every funneled sink receives its completion marker; subsequent
// Publish calls are no-ops. Idempotent.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	tagged := s.tagged
	s.tagged = make(map[uint64]taggedSub[T])
	s.mu.Unlock()

	// Completion must reach every sink, so these sends block rather
	// than drop.
	for _, t := range tagged {
		t.sink <- Tagged[T]{Name: t.name, Closed: true}
	}
}

// Closed reports whether the stream has completed.
func (s *Stream[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Len returns the current subscriber count, funneled sinks included.
func (s *Stream[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) + len(s.tagged)
}
