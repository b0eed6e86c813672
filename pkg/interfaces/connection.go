package interfaces

// Connection is one live client connection as seen by the registry, hub and
// relay. Implementations must make WriteJSON safe for concurrent use; the
// WebSocket implementation serializes writes through a single writer
// goroutine.
type Connection interface {
	// WriteJSON sends a JSON message to the client (thread-safe).
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its resources. Idempotent.
	Close() error

	// ConnectionID returns the unique ID of this connection instance. Two
	// connections from the same user have distinct connection IDs.
	ConnectionID() string

	// UserID returns the authenticated user's ID.
	UserID() string

	// DisplayName returns the authenticated user's display name.
	DisplayName() string

	// PhotoURL returns the authenticated user's avatar URL, possibly empty.
	PhotoURL() string

	// ClassroomID returns the classroom this connection authenticated for.
	// Immutable for the connection's lifetime.
	ClassroomID() string
}
