package proxyevent

import (
	"go.uber.org/zap"

	"github.com/offstagehq/offstage/errors"
)

// Handler consumes one decoded-enough event payload on the worker side.
type Handler func(payload []byte) error

// Table is the worker-side static dispatch table: event tag to handler,
// built once at module initialization. Routing through the table means a
// new event kind needs one Bind call, not new channel plumbing.
type Table struct {
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewTable creates an empty dispatch table.
func NewTable(logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Bind registers the handler for one event tag, replacing any previous
// binding.
func (t *Table) Bind(tag string, h Handler) *Table {
	t.handlers[tag] = h
	return t
}

// Dispatch routes an encoded event to its bound handler. An unknown tag
// is a wiring error on the worker's own surface and is reported, unlike
// foreign frames on the shared channel which are filtered earlier.
func (t *Table) Dispatch(payload []byte) error {
	tag, err := Tag(payload)
	if err != nil {
		return err
	}
	h, ok := t.handlers[tag]
	if !ok {
		return errors.NotFound(errors.PhaseDispatch, "event handler", tag)
	}
	t.logger.Debug("dispatching proxied event", zap.String("type", tag))
	return h(payload)
}
