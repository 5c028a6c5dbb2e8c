package interfaces

// Connection represents one attached client
// ARCHITECTURAL DISCOVERY: Pure abstraction without transport details
// so the registry and coordinator can be exercised with in-memory fakes
type Connection interface {
	// WriteJSON queues v for delivery (thread-safe)
	// FUNCTIONAL DISCOVERY: Implementations serialize writes through a
	// single writer to keep per-connection FIFO order
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its resources
	Close() error

	// ID returns the connection identifier, stable for the connection lifetime
	ID() string
}
