package remote

import (
	"context"

	"go.uber.org/zap"

	offstage "github.com/offstagehq/offstage"
	"github.com/offstagehq/offstage/channel"
	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/stream"
)

// pushBuffer is the capacity of the worker's one push funnel. Every
// subscribed stream shares it, so frames leave the port in publish
// order.
const pushBuffer = 256

// Serve runs the worker side of the protocol: it waits for the init
// envelope, initializes mod, then answers calls and pumps stream pushes
// until ctx ends or the port closes. On exit the module is disposed and
// its streams complete.
//
// Serve is the body of a worker execution context; everything the module
// does happens on this goroutine, except the push sender. Subscribed
// streams funnel through one sender goroutine, so pushes leave the port
// in publish order even across streams.
func Serve(ctx context.Context, mod Module, port *channel.Port, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		pushes     chan stream.Tagged[[]byte]
		senderDone chan struct{}
	)
	defer func() {
		// Dispose must run even when ctx is already done. Anything it
		// publishes still reaches subscribed sinks, so terminal events
		// cross the boundary before the streams complete.
		if err := mod.Dispose(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("module dispose failed", zap.Error(err))
		}
		for _, s := range mod.Streams() {
			s.Close()
		}
		if pushes != nil {
			close(pushes)
			<-senderDone
		}
		port.Close()
	}()

	init, transfer, err := awaitInit(ctx, port, logger)
	if err != nil {
		return err
	}

	if err := mod.Init(ctx, Init{Subject: init.Payload, Transfer: transfer}); err != nil {
		reply(ctx, port, Envelope{Kind: KindFault, Error: err.Error()}, logger)
		return errors.Handshake("module init", err)
	}

	if err := sendEnvelope(ctx, port, Envelope{Kind: KindReady}); err != nil {
		return err
	}

	methods := mod.Methods()
	streams := mod.Streams()

	// One sender drains the funnel for the worker's whole life. It uses
	// an uncancelable context so terminal pushes flush during teardown.
	pushes = make(chan stream.Tagged[[]byte], pushBuffer)
	senderDone = make(chan struct{})
	go sendPushes(context.WithoutCancel(ctx), port, pushes, senderDone, logger)

	cancels := make(map[string]func())

	for {
		msg, err := port.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil || port.Closed() {
				return nil
			}
			// Peer closed; the worker has nothing left to serve.
			return nil
		}

		env, ok := DecodeEnvelope(msg.Data)
		if !ok {
			// Lenient policy: unrelated or malformed frames on the shared
			// channel are filtered, not surfaced.
			logger.Debug("dropping malformed envelope", zap.Int("bytes", len(msg.Data)))
			continue
		}

		switch env.Kind {
		case KindCall:
			handleCall(ctx, port, methods, env, logger)

		case KindSubscribe:
			src, ok := streams[env.Name]
			if !ok {
				logger.Debug("subscribe to unknown stream", zap.String("stream", env.Name))
				continue
			}
			if _, active := cancels[env.Name]; active {
				continue
			}
			cancels[env.Name] = src.SubscribeTagged(env.Name, pushes)

		case KindUnsubscribe:
			if cancel, active := cancels[env.Name]; active {
				cancel()
				delete(cancels, env.Name)
			}

		default:
			logger.Debug("unexpected envelope on worker side", zap.String("kind", string(env.Kind)))
		}
	}
}

// awaitInit blocks until the first well-formed init envelope arrives. The
// transferables riding on the init message become the module's property.
func awaitInit(ctx context.Context, port *channel.Port, logger *zap.Logger) (Envelope, []offstage.Transferable, error) {
	for {
		msg, err := port.Recv(ctx)
		if err != nil {
			return Envelope{}, nil, errors.Handshake("init never delivered", err)
		}
		env, ok := DecodeEnvelope(msg.Data)
		if !ok || env.Kind != KindInit {
			logger.Debug("dropping pre-init frame")
			continue
		}
		return env, msg.Transfer, nil
	}
}

func handleCall(ctx context.Context, port *channel.Port, methods map[string]Method, env Envelope, logger *zap.Logger) {
	result := Envelope{Kind: KindResult, ID: env.ID, Name: env.Name}

	method, ok := methods[env.Name]
	if !ok {
		result.Error = errors.NotFound(errors.PhaseDispatch, "method", env.Name).Error()
		reply(ctx, port, result, logger)
		return
	}

	out, err := method(ctx, env.Payload)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Payload = out
	}
	reply(ctx, port, result, logger)
}

// sendPushes forwards funneled stream values as push envelopes, in
// publish order, announcing each stream's completion as it closes. It
// keeps draining after a send failure so the funnel always empties.
func sendPushes(ctx context.Context, port *channel.Port, pushes <-chan stream.Tagged[[]byte], done chan<- struct{}, logger *zap.Logger) {
	defer close(done)
	for t := range pushes {
		env := Envelope{Kind: KindPush, Name: t.Name, Payload: t.Value}
		if t.Closed {
			env = Envelope{Kind: KindComplete, Name: t.Name}
		}
		if err := sendEnvelope(ctx, port, env); err != nil {
			logger.Debug("push failed", zap.String("stream", t.Name), zap.Error(err))
		}
	}
}

func reply(ctx context.Context, port *channel.Port, env Envelope, logger *zap.Logger) {
	if err := sendEnvelope(ctx, port, env); err != nil {
		logger.Debug("reply failed", zap.String("kind", string(env.Kind)), zap.Error(err))
	}
}

func sendEnvelope(ctx context.Context, port *channel.Port, env Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return port.Send(ctx, channel.Message{Data: data})
}
