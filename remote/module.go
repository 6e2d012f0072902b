package remote

import (
	"context"

	offstage "github.com/offstagehq/offstage"
	"github.com/offstagehq/offstage/stream"
)

// Method is a single remote-callable operation. Payload and result are
// plain serialized data; nil results are valid for void methods.
type Method func(ctx context.Context, payload []byte) ([]byte, error)

// Init carries the module's initialization state across the boundary:
// the serialized subject plus any ownership-moved resources.
type Init struct {
	Subject  []byte
	Transfer []offstage.Transferable
}

// Module is a worker-resident object exposed over the protocol. Methods
// and Streams must return stable sets; the surface is fixed at init time.
type Module interface {
	// Init runs the module's setup with the delivered payload. Serve
	// replies ready on nil, fault on error.
	Init(ctx context.Context, init Init) error

	// Methods returns the named method surface.
	Methods() map[string]Method

	// Streams returns the named event-stream surface. Values are
	// pre-encoded; a closed stream completes remote subscriptions.
	Streams() map[string]*stream.Stream[[]byte]

	// Dispose tears the module down. Called once when the worker
	// context terminates.
	Dispose(ctx context.Context) error
}
