package ws

// Connection is the sendable side of a live transport handle.
type Connection interface {
	// Deliver queues message for the peer. It reports false when the peer could not take it.
	Deliver(message []byte) bool
}

// ConnectionRegistry maps connection ids to live transport handles. A connection is added
// when its socket opens and removed once its disconnect has been handled.
type ConnectionRegistry interface {
	Add(connectionID int64, conn Connection)
	Remove(connectionID int64)
	Get(connectionID int64) (Connection, bool)
	Clear()
	Count() int
}

// FrameHandler applies connection events to the session state. Errors for which
// exception.IsFatal holds stop the hub.
type FrameHandler interface {
	Join(connectionID int64, req JoinRequest) error
	Handle(connectionID int64, raw []byte) error
}
