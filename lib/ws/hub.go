package ws

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ether/collabpads-go/lib/exception"
	"github.com/ether/collabpads-go/lib/ws/protocol"
	"go.uber.org/zap"
)

// InboundFrame is a text frame read from a client socket.
type InboundFrame struct {
	ConnectionID int64
	Raw          []byte
}

// Hub owns the live connections and runs the single loop that applies every connection
// event in order.
type Hub struct {
	// Registered connections by id.
	connections        map[int64]Connection
	connectionsRWMutex sync.RWMutex

	// Inbound frames from the Clients.
	Inbound chan InboundFrame

	// Register requests from the Clients.
	Register chan *Client

	// Unregister requests from Clients.
	Unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once
	nextID   atomic.Int64
	logger   *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		connections: make(map[int64]Connection),
		Inbound:     make(chan InboundFrame),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// NextConnectionID hands out ids that stay unique for the lifetime of the hub.
func (h *Hub) NextConnectionID() int64 {
	return h.nextID.Add(1)
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Add(connectionID int64, conn Connection) {
	h.connectionsRWMutex.Lock()
	defer h.connectionsRWMutex.Unlock()
	h.connections[connectionID] = conn
	activeConnections.Set(float64(len(h.connections)))
}

func (h *Hub) Remove(connectionID int64) {
	h.connectionsRWMutex.Lock()
	defer h.connectionsRWMutex.Unlock()
	delete(h.connections, connectionID)
	activeConnections.Set(float64(len(h.connections)))
}

func (h *Hub) Get(connectionID int64) (Connection, bool) {
	h.connectionsRWMutex.RLock()
	defer h.connectionsRWMutex.RUnlock()
	conn, ok := h.connections[connectionID]
	return conn, ok
}

func (h *Hub) Clear() {
	h.connectionsRWMutex.Lock()
	defer h.connectionsRWMutex.Unlock()
	h.connections = make(map[int64]Connection)
	activeConnections.Set(0)
}

func (h *Hub) Count() int {
	h.connectionsRWMutex.RLock()
	defer h.connectionsRWMutex.RUnlock()
	return len(h.connections)
}

// Run processes registrations, inbound frames and disconnects one at a time until ctx is
// cancelled or the handler reports a fatal error. Every client still connected is closed
// on return.
func (h *Hub) Run(ctx context.Context, handler FrameHandler) error {
	defer h.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case client := <-h.Register:
			if client == nil {
				continue
			}
			h.Add(client.ID, client)
			if err := handler.Join(client.ID, client.JoinRequest); err != nil {
				if exception.IsFatal(err) {
					return err
				}
				h.logger.Warnw("Refusing connection", "connection", client.ID, "error", err)
				h.Remove(client.ID)
				client.refuse(err.Error())
			}
		case frame := <-h.Inbound:
			if err := handler.Handle(frame.ConnectionID, frame.Raw); err != nil {
				if exception.IsFatal(err) {
					return err
				}
				h.logger.Warnw("Error handling frame", "connection", frame.ConnectionID, "error", err)
			}
		case client := <-h.Unregister:
			if client == nil {
				continue
			}
			if _, ok := h.Get(client.ID); !ok {
				continue
			}
			err := handler.Handle(client.ID, []byte(protocol.EventDisconnect))
			h.Remove(client.ID)
			client.closeSend()
			if err != nil {
				if exception.IsFatal(err) {
					return err
				}
				h.logger.Warnw("Error handling disconnect", "connection", client.ID, "error", err)
			}
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.connectionsRWMutex.Lock()
		defer h.connectionsRWMutex.Unlock()
		for id, conn := range h.connections {
			if client, ok := conn.(*Client); ok {
				_ = client.Conn.Close()
			}
			delete(h.connections, id)
		}
		activeConnections.Set(0)
	})
}
