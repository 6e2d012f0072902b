package offstage

// Transferable is a resource whose ownership can be moved across an
// execution-context boundary. The move is one-way and irreversible: after a
// successful Transfer the origin context must not perform owning operations
// on the resource.
type Transferable interface {
	// Transfer marks the resource as moved to a new owner. It returns an
	// error if ownership was already moved.
	Transfer() error

	// Transferred reports whether ownership has already been moved.
	Transferred() bool
}

// Releaser is implemented by transferable resources that hold something
// worth reclaiming once their owning context terminates.
type Releaser interface {
	Release()
}
