package remote

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/offstagehq/offstage/channel"
	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
	"github.com/offstagehq/offstage/stream"
)

// Proxy is the controlling-side stand-in for a worker-resident module.
// Method calls and stream subscriptions are relayed over the transfer
// channel; the surface mirrors the worker implementation, so the two are
// substitutable for callers that only invoke and subscribe.
type Proxy struct {
	port   *channel.Port
	logger *zap.Logger

	mu         sync.Mutex
	pending    map[string]chan Envelope
	streams    map[string]*stream.Stream[[]byte]
	subscribed map[string]bool
	closed     bool
	done       chan struct{}
}

// NewProxy wraps an already-handshaken port and starts the receive loop.
func NewProxy(port *channel.Port, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Proxy{
		port:       port,
		logger:     logger,
		pending:    make(map[string]chan Envelope),
		streams:    make(map[string]*stream.Stream[[]byte]),
		subscribed: make(map[string]bool),
		done:       make(chan struct{}),
	}
	go p.recvLoop()
	return p
}

// Call invokes a named remote method and blocks until its correlated
// result arrives. A payload that cannot be serialized fails immediately:
// live references never cross the boundary.
func (p *Proxy) Call(ctx context.Context, name string, in any) (json.RawMessage, error) {
	var payload json.RawMessage
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Unserializable(errors.PhaseEncode, "call argument for "+name, err)
		}
		payload = data
	}

	id := uuid.NewString()
	ch := make(chan Envelope, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.Closed(errors.PhaseRuntime, "remote proxy")
	}
	p.pending[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	env := Envelope{Kind: KindCall, ID: id, Name: name, Payload: payload}
	if err := p.send(ctx, env); err != nil {
		return nil, err
	}

	select {
	case result := <-ch:
		if result.Error != "" {
			return nil, errors.Wrap(errors.PhaseDispatch, errors.KindInvalidData, nil, result.Error)
		}
		return result.Payload, nil
	case <-p.done:
		return nil, errors.Closed(errors.PhaseRuntime, "remote proxy")
	case <-ctx.Done():
		return nil, errors.Canceled(errors.PhaseRuntime, ctx.Err())
	}
}

// CallInto invokes a remote method and decodes the result into out.
func (p *Proxy) CallInto(ctx context.Context, name string, in, out any) error {
	result, err := p.Call(ctx, name, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode result of "+name)
	}
	return nil
}

// Subscribe attaches to a named remote stream. The subscribe request is
// sent once per stream name; later subscribers share the relayed feed.
// The subscription completes when the remote stream closes, the proxy
// closes, or the backing context terminates.
func (p *Proxy) Subscribe(ctx context.Context, name string) (*stream.Subscription[[]byte], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.Closed(errors.PhaseRuntime, "remote proxy")
	}
	local, ok := p.streams[name]
	if !ok {
		local = stream.New[[]byte](p.logger)
		p.streams[name] = local
	}
	needSend := !p.subscribed[name]
	p.subscribed[name] = true
	p.mu.Unlock()

	if needSend {
		if err := p.send(ctx, Envelope{Kind: KindSubscribe, Name: name}); err != nil {
			p.mu.Lock()
			p.subscribed[name] = false
			p.mu.Unlock()
			return nil, err
		}
	}

	return local.Subscribe(), nil
}

// Unsubscribe stops remote pushes for a stream and completes its local
// subscriptions. Unsubscribing does not terminate the worker.
func (p *Proxy) Unsubscribe(ctx context.Context, name string) error {
	p.mu.Lock()
	local := p.streams[name]
	delete(p.streams, name)
	delete(p.subscribed, name)
	closed := p.closed
	p.mu.Unlock()

	if local != nil {
		local.Close()
	}
	if closed {
		return nil
	}
	return p.send(ctx, Envelope{Kind: KindUnsubscribe, Name: name})
}

// Close tears down the proxy: pending calls fail, local streams complete.
// The backing worker is not terminated; that is the pool's job.
func (p *Proxy) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	streams := p.streams
	p.streams = make(map[string]*stream.Stream[[]byte])
	p.mu.Unlock()

	for _, s := range streams {
		s.Close()
	}
	// Closing our end unblocks both the receive loop and the worker.
	p.port.Close()
}

// recvLoop routes results to pending calls and pushes to local streams.
func (p *Proxy) recvLoop() {
	ctx := context.Background()
	for {
		select {
		case <-p.done:
			return
		default:
		}

		msg, err := p.port.Recv(ctx)
		if err != nil {
			// Port closed underneath us: the worker is gone, so every
			// local stream completes and the proxy shuts down.
			p.Close()
			return
		}

		env, ok := DecodeEnvelope(msg.Data)
		if !ok {
			p.logger.Debug("dropping malformed envelope", zap.Int("bytes", len(msg.Data)))
			continue
		}

		switch env.Kind {
		case KindResult:
			p.mu.Lock()
			ch, ok := p.pending[env.ID]
			p.mu.Unlock()
			if !ok {
				p.logger.Debug("result for unknown call", zap.String("id", env.ID))
				continue
			}
			ch <- env

		case KindPush:
			p.mu.Lock()
			local := p.streams[env.Name]
			p.mu.Unlock()
			if local == nil {
				p.logger.Debug("push for unknown stream", zap.String("stream", env.Name))
				continue
			}
			local.Publish(env.Payload)

		case KindComplete:
			p.mu.Lock()
			local := p.streams[env.Name]
			delete(p.streams, env.Name)
			delete(p.subscribed, env.Name)
			p.mu.Unlock()
			if local != nil {
				local.Close()
			}

		default:
			p.logger.Debug("unexpected envelope on controller side", zap.String("kind", string(env.Kind)))
		}
	}
}

func (p *Proxy) send(ctx context.Context, env Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return p.port.Send(ctx, channel.Message{Data: data})
}
