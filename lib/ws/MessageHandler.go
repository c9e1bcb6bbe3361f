package ws

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/ether/collabpads-go/lib/author"
	"github.com/ether/collabpads-go/lib/db"
	"github.com/ether/collabpads-go/lib/exception"
	"github.com/ether/collabpads-go/lib/ws/protocol"
	"go.uber.org/zap"
)

// MessageHandler applies inbound frames to the session state and routes the responses.
type MessageHandler struct {
	sessions db.SessionStore
	authors  *author.Manager
	delivery *Delivery
	joiner   *JoinHandler
	logger   *zap.SugaredLogger
}

func NewMessageHandler(sessions db.SessionStore, authors *author.Manager, registry ConnectionRegistry, logger *zap.SugaredLogger) *MessageHandler {
	delivery := NewDelivery(sessions, registry, logger)
	return &MessageHandler{
		sessions: sessions,
		authors:  authors,
		delivery: delivery,
		joiner:   NewJoinHandler(sessions, authors, delivery, logger),
		logger:   logger,
	}
}

func (h *MessageHandler) Join(connectionID int64, req JoinRequest) error {
	return h.joiner.Join(connectionID, req)
}

// origin is the author and session a connection belongs to.
type origin struct {
	connectionID int64
	authorID     int64
	sessionID    int64
}

// Handle processes one raw frame received on connectionID. Frames that cannot be parsed, come
// from unknown connections or carry unknown events are logged and dropped.
func (h *MessageHandler) Handle(connectionID int64, raw []byte) error {
	frame, err := protocol.Decode(raw)
	if err != nil {
		framesTotal.WithLabelValues(protocol.Unrecognized.String()).Inc()
		h.logger.Errorw("Error decoding frame", "connection", connectionID, "error", err)
		return nil
	}
	framesTotal.WithLabelValues(frameLabel(frame)).Inc()

	from, ok, err := h.resolve(connectionID)
	if err != nil {
		return err
	}
	if !ok {
		h.logger.Warnw("Frame from unknown connection", "connection", connectionID, "event", frame.EventID)
		return nil
	}
	h.logger.Debugw("Received message", "connection", connectionID, "author", from.authorID, "session", from.sessionID, "event", frame.EventID, "name", frame.Name)

	switch frame.Kind {
	case protocol.KeepAlive:
		h.delivery.SendTo(connectionID, protocol.EventKeepAlive, protocol.Encode(protocol.EventKeepAlive, "", nil))
		return nil
	case protocol.DisconnectNotice:
		return h.authorDisconnect(from)
	case protocol.Content:
		return h.handleContent(from, frame)
	default:
		h.logger.Errorw("Unknown EventType", "connection", connectionID, "event", frame.EventID)
		return nil
	}
}

func (h *MessageHandler) handleContent(from origin, frame protocol.Frame) error {
	switch frame.Name {
	case protocol.NameChangeAuthor:
		return h.authorChange(from, frame.Payload)
	case protocol.NameSubmitChange:
		return h.newChange(from, frame.Payload)
	case protocol.NameDeleteSession:
		return h.deleteSession(from)
	case protocol.NameSaveRevision:
		message := protocol.EncodeContent(protocol.NameSaveRevision, strconv.AppendInt(nil, from.authorID, 10))
		h.logger.Infow("Author saved revision", "session", from.sessionID, "author", from.authorID)
		return h.delivery.Deliver(from.sessionID, protocol.NameSaveRevision, message, nil, from.connectionID)
	case protocol.NameLogEvent:
		return nil
	default:
		h.logger.Errorw("Unknown ContentName", "connection", from.connectionID, "name", frame.Name)
		return nil
	}
}

func (h *MessageHandler) resolve(connectionID int64) (origin, bool, error) {
	connected, err := h.authors.GetAuthorByConnection(connectionID)
	if err != nil {
		return origin{}, false, err
	}
	if connected == nil {
		return origin{}, false, nil
	}
	sessionID, ok := connected.SessionFor(connectionID)
	if !ok {
		return origin{}, false, nil
	}
	return origin{
		connectionID: connectionID,
		authorID:     connected.Id,
		sessionID:    sessionID,
	}, true, nil
}

// authorDisconnect drops the connection from the entry and the author record. Only the last
// connection of an author makes the others see authorDisconnect.
func (h *MessageHandler) authorDisconnect(from origin) error {
	entry, err := h.sessions.GetAuthorEntry(from.sessionID, from.authorID)
	if err != nil {
		return err
	}
	if entry == nil {
		// The session is gone; only the stale pair on the author is left.
		return h.authors.ReleaseConnection(from.authorID, from.connectionID)
	}

	stillActive := len(entry.RemainingConnections(from.connectionID)) > 0
	if err := h.sessions.DeactivateAuthor(from.sessionID, from.authorID, from.connectionID, stillActive); err != nil {
		return err
	}
	if err := h.authors.ReleaseConnection(from.authorID, from.connectionID); err != nil {
		return err
	}
	h.logger.Infow("Author disconnected", "session", from.sessionID, "author", from.authorID, "connection", from.connectionID, "stillActive", stillActive)
	if stillActive {
		return nil
	}

	message := protocol.EncodeContent(protocol.NameAuthorDisconnect, strconv.AppendInt(nil, int64(entry.Slot), 10))
	return h.delivery.Deliver(from.sessionID, protocol.NameAuthorDisconnect, message, nil, from.connectionID)
}

// authorChange stores every field of the payload except name on the entry and announces the
// resulting entry to the whole session.
func (h *MessageHandler) authorChange(from origin, payload json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := protocol.DecodePayload(payload, &fields); err != nil {
		h.logger.Errorw("Error decoding changeAuthor", "connection", from.connectionID, "error", err)
		return nil
	}

	for field, value := range fields {
		if field == "name" {
			continue
		}
		if err := h.sessions.SetAuthorField(from.sessionID, from.authorID, field, opaqueText(value)); err != nil {
			if !exception.IsFatal(err) {
				h.logger.Warnw("Ignoring author field", "session", from.sessionID, "author", from.authorID, "field", field, "error", err)
				continue
			}
			return err
		}
	}

	entry, err := h.sessions.GetAuthorEntry(from.sessionID, from.authorID)
	if err != nil {
		return err
	}
	if entry == nil {
		h.logger.Warnw("Author left the session before the change applied", "session", from.sessionID, "author", from.authorID)
		return nil
	}
	h.logger.Infow("Author data changed", "session", from.sessionID, "author", from.authorID)

	message, err := protocol.EncodeContentValue(protocol.NameAuthorChange, NewAuthorChange(*entry))
	if err != nil {
		return err
	}
	return h.delivery.Deliver(from.sessionID, protocol.NameAuthorChange, message, nil)
}

// newChange appends the transactions and non-null stores of a change in payload order and
// echoes the change to every active connection of the session, the sender included.
func (h *MessageHandler) newChange(from origin, payload json.RawMessage) error {
	var submitted SubmitChange
	if err := protocol.DecodePayload(payload, &submitted); err != nil {
		h.logger.Errorw("Error decoding submitChange", "connection", from.connectionID, "error", err)
		return nil
	}
	if len(submitted.Change) == 0 || bytes.Equal(submitted.Change, []byte("null")) {
		h.logger.Warnw("submitChange without change", "connection", from.connectionID)
		return nil
	}
	var change SubmittedChange
	if err := json.Unmarshal(submitted.Change, &change); err != nil {
		h.logger.Errorw("Malformed change", "connection", from.connectionID, "error", err)
		return nil
	}

	if len(change.Transactions) > 0 {
		for _, transaction := range change.Transactions {
			if err := h.sessions.AppendHistory(from.sessionID, compactJSON(transaction)); err != nil {
				return err
			}
		}
		for _, store := range change.Stores {
			if bytes.Equal(store, []byte("null")) {
				continue
			}
			if err := h.sessions.AppendStore(from.sessionID, compactJSON(store)); err != nil {
				return err
			}
		}
	}

	message := protocol.EncodeContent(protocol.NameNewChange, []byte(compactJSON(submitted.Change)))
	return h.delivery.Deliver(from.sessionID, protocol.NameNewChange, message, nil)
}

// deleteSession tells the connections that were active before the deletion, except the
// requester, that the session is gone.
func (h *MessageHandler) deleteSession(from origin) error {
	recipients, err := h.sessions.GetActiveConnections(from.sessionID)
	if err != nil {
		return err
	}
	if recipients == nil {
		recipients = []int64{}
	}
	if err := h.sessions.DeleteSession(from.sessionID); err != nil {
		return err
	}
	h.logger.Infow("Session deleted", "session", from.sessionID, "author", from.authorID)

	message := protocol.EncodeContent(protocol.NameDeleteSession, strconv.AppendInt(nil, from.authorID, 10))
	return h.delivery.Deliver(from.sessionID, protocol.NameDeleteSession, message, recipients, from.connectionID)
}

func frameLabel(frame protocol.Frame) string {
	if frame.Kind == protocol.Content {
		return frame.Name
	}
	return frame.Kind.String()
}

// opaqueText keeps JSON strings as their text and anything else as compact JSON. Used for
// author fields, which are plain text columns.
func opaqueText(value json.RawMessage) string {
	var text string
	if err := json.Unmarshal(value, &text); err == nil {
		return text
	}
	return compactJSON(value)
}

// compactJSON is the stored form of history and store entries: the entry as sent, minus
// insignificant whitespace.
func compactJSON(value json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return string(value)
	}
	return buf.String()
}

var _ FrameHandler = (*MessageHandler)(nil)
