package ws

import (
	"fmt"
	"slices"

	"github.com/ether/collabpads-go/lib/db"
	"go.uber.org/zap"
)

// Delivery routes outbound frames of a session to live connections.
type Delivery struct {
	sessions db.SessionStore
	registry ConnectionRegistry
	logger   *zap.SugaredLogger
}

func NewDelivery(sessions db.SessionStore, registry ConnectionRegistry, logger *zap.SugaredLogger) *Delivery {
	return &Delivery{
		sessions: sessions,
		registry: registry,
		logger:   logger,
	}
}

// Deliver sends message to relevant minus excluded. A nil relevant set means the active
// connections of the session as stored right now. Recipients the registry no longer holds
// are skipped.
func (d *Delivery) Deliver(sessionID int64, event string, message []byte, relevant []int64, excluded ...int64) error {
	if relevant == nil {
		active, err := d.sessions.GetActiveConnections(sessionID)
		if err != nil {
			return fmt.Errorf("error loading recipients of session %d: %w", sessionID, err)
		}
		relevant = active
	}

	sent := 0
	for _, connectionID := range relevant {
		if slices.Contains(excluded, connectionID) {
			continue
		}
		conn, ok := d.registry.Get(connectionID)
		if !ok {
			continue
		}
		if conn.Deliver(message) {
			sent++
		}
	}
	deliveriesTotal.WithLabelValues(event).Add(float64(sent))
	d.logger.Debugw("Sent message", "session", sessionID, "event", event, "recipients", sent)
	return nil
}

// SendTo delivers message to a single connection.
func (d *Delivery) SendTo(connectionID int64, event string, message []byte) {
	conn, ok := d.registry.Get(connectionID)
	if !ok {
		return
	}
	if conn.Deliver(message) {
		deliveriesTotal.WithLabelValues(event).Inc()
	}
}
