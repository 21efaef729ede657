package domain

// WorkItem is one unit of toolchain work submitted to the worker pool. The
// payload is opaque to the pool; only the worker handler interprets it.
type WorkItem struct {
	// ID correlates the item with its result. Results arrive in no
	// particular order; callers must match by ID, never by submission order.
	ID string
	// Fingerprint identifies the worker configuration this item requires.
	// A worker is only reused for items with a matching fingerprint.
	Fingerprint string
	// Payload is the serialized work to execute.
	Payload []byte
}

// WorkResult is the outcome of exactly one WorkItem. Every submitted item
// produces exactly one result; a worker crash or timeout surfaces here as
// Err, never as a silently dropped item.
type WorkResult struct {
	ID    string
	Value []byte
	Err   error
}
