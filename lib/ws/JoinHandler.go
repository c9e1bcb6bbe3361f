package ws

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ether/collabpads-go/lib/author"
	"github.com/ether/collabpads-go/lib/db"
	modelsdb "github.com/ether/collabpads-go/lib/models/db"
	"github.com/ether/collabpads-go/lib/ws/protocol"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// JoinRequest binds a new connection to an author and a document.
type JoinRequest struct {
	ScriptPath  string `validate:"required"`
	Title       string `validate:"required"`
	Namespace   int    `validate:"gte=0"`
	AuthorName  string `validate:"required"`
	AuthorColor string `validate:"omitempty,hexcolor"`
	RealName    string
}

// ParseJoinRequest reads a join request from the socket URL. A namespace that is not a
// number fails validation later on.
func ParseJoinRequest(values url.Values) JoinRequest {
	namespace := 0
	if raw := values.Get("pageNamespace"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			parsed = -1
		}
		namespace = parsed
	}
	return JoinRequest{
		ScriptPath:  values.Get("wikiScriptPath"),
		Title:       values.Get("pageTitle"),
		Namespace:   namespace,
		AuthorName:  values.Get("authorName"),
		AuthorColor: values.Get("authorColor"),
		RealName:    values.Get("realName"),
	}
}

func (r JoinRequest) Locator() modelsdb.DocLocator {
	return modelsdb.DocLocator{
		ScriptPath: r.ScriptPath,
		Title:      r.Title,
		Namespace:  r.Namespace,
	}
}

type JoinHandler struct {
	sessions db.SessionStore
	authors  *author.Manager
	delivery *Delivery
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func NewJoinHandler(sessions db.SessionStore, authors *author.Manager, delivery *Delivery, logger *zap.SugaredLogger) *JoinHandler {
	return &JoinHandler{
		sessions: sessions,
		authors:  authors,
		delivery: delivery,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Join binds connectionID to the requesting author in the session of the requested
// document, creating author and session on first use. The joiner receives the connect
// acknowledgement and the session snapshot; everybody else learns about the joiner.
func (j *JoinHandler) Join(connectionID int64, req JoinRequest) error {
	if err := j.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid join request: %w", err)
	}

	joined, created, err := j.authors.EnsureAuthor(req.AuthorName)
	if err != nil {
		return fmt.Errorf("error resolving author %q: %w", req.AuthorName, err)
	}
	if created {
		j.logger.Infow("Author created", "author", joined.Id, "name", joined.Name)
	}

	descriptor, err := j.ensureSession(req.Locator(), joined.Id)
	if err != nil {
		return err
	}
	sessionID := descriptor.ID

	inSession, err := j.sessions.IsAuthorInSession(sessionID, joined.Id)
	if err != nil {
		return err
	}
	if inSession {
		if err := j.sessions.ActivateAuthor(sessionID, joined.Id, connectionID); err != nil {
			return err
		}
	} else {
		color := j.authors.PickColor(req.AuthorColor)
		if _, err := j.sessions.AddAuthorToSession(sessionID, joined.Id, joined.Name, color, true, connectionID); err != nil {
			return err
		}
	}

	if err := j.admit(connectionID, *descriptor, joined, req); err != nil {
		j.abandon(sessionID, joined.Id, connectionID)
		return err
	}
	return nil
}

// admit finishes a join once the entry holds the connection.
func (j *JoinHandler) admit(connectionID int64, descriptor modelsdb.SessionDescriptor, joined *author.Author, req JoinRequest) error {
	sessionID := descriptor.ID
	entry, err := j.sessions.GetAuthorEntry(sessionID, joined.Id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("session %d lost the entry of author %d", sessionID, joined.Id)
	}
	if err := j.fillEntry(sessionID, joined.Id, *entry, req); err != nil {
		return err
	}
	if err := j.authors.BindConnection(joined.Id, sessionID, connectionID); err != nil {
		return err
	}

	entry, err = j.sessions.GetAuthorEntry(sessionID, joined.Id)
	if err != nil {
		return err
	}
	j.logger.Infow("Author joined session", "session", sessionID, "author", joined.Id, "slot", entry.Slot, "connection", connectionID)

	initSession, err := j.snapshot(descriptor, entry.Slot)
	if err != nil {
		return err
	}
	initMessage, err := protocol.EncodeContentValue(protocol.NameInitSession, initSession)
	if err != nil {
		return err
	}
	j.delivery.SendTo(connectionID, protocol.EventConnect, protocol.Encode(protocol.EventConnect, "", nil))
	j.delivery.SendTo(connectionID, protocol.NameInitSession, initMessage)

	changeMessage, err := protocol.EncodeContentValue(protocol.NameAuthorChange, NewAuthorChange(*entry))
	if err != nil {
		return err
	}
	return j.delivery.Deliver(sessionID, protocol.NameAuthorChange, changeMessage, nil, connectionID)
}

// abandon takes connectionID back out of the entry and the author record after a failed
// join. The entry stays active only if other connections remain.
func (j *JoinHandler) abandon(sessionID int64, authorID int64, connectionID int64) {
	entry, err := j.sessions.GetAuthorEntry(sessionID, authorID)
	if err == nil && entry != nil {
		stillActive := len(entry.RemainingConnections(connectionID)) > 0
		err = j.sessions.DeactivateAuthor(sessionID, authorID, connectionID, stillActive)
	}
	if err != nil {
		j.logger.Warnw("Error undoing join", "session", sessionID, "author", authorID, "connection", connectionID, "error", err)
	}
	if err := j.authors.ReleaseConnection(authorID, connectionID); err != nil {
		j.logger.Warnw("Error releasing connection", "author", authorID, "connection", connectionID, "error", err)
	}
}

func (j *JoinHandler) ensureSession(locator modelsdb.DocLocator, ownerID int64) (*modelsdb.SessionDescriptor, error) {
	descriptor, err := j.sessions.FindSessionByLocator(locator)
	if err != nil || descriptor != nil {
		return descriptor, err
	}
	sessionID, err := j.sessions.CreateSession(locator, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error creating session for %q: %w", locator.Title, err)
	}
	j.logger.Infow("Session created", "session", sessionID, "title", locator.Title, "owner", ownerID)
	descriptor, err = j.sessions.FindSessionByLocator(locator)
	if err != nil {
		return nil, err
	}
	if descriptor == nil {
		return nil, fmt.Errorf("session %d vanished after creation", sessionID)
	}
	return descriptor, nil
}

// fillEntry writes the display data of the request onto the entry. The owner entry is
// created without a name or colour and receives them on the first join.
func (j *JoinHandler) fillEntry(sessionID int64, authorID int64, entry modelsdb.SessionAuthor, req JoinRequest) error {
	if entry.Name == "" {
		if err := j.sessions.SetAuthorField(sessionID, authorID, "name", req.AuthorName); err != nil {
			return err
		}
	}
	if entry.Color == "" || (req.AuthorColor != "" && req.AuthorColor != entry.Color) {
		if err := j.sessions.SetAuthorField(sessionID, authorID, "color", j.authors.PickColor(req.AuthorColor)); err != nil {
			return err
		}
	}
	if req.RealName != "" {
		if err := j.sessions.SetAuthorField(sessionID, authorID, "realName", req.RealName); err != nil {
			return err
		}
	}
	return nil
}

func (j *JoinHandler) snapshot(descriptor modelsdb.SessionDescriptor, slot int) (InitSession, error) {
	entries, err := j.sessions.ListActiveAuthors(descriptor.ID)
	if err != nil {
		return InitSession{}, err
	}
	history, err := j.sessions.GetFullHistory(descriptor.ID)
	if err != nil {
		return InitSession{}, err
	}
	stores, err := j.sessions.GetFullStores(descriptor.ID)
	if err != nil {
		return InitSession{}, err
	}

	authors := make([]AuthorChange, 0, len(entries))
	for _, entry := range entries {
		authors = append(authors, NewAuthorChange(entry))
	}
	return InitSession{
		SessionID: descriptor.ID,
		Token:     descriptor.Token,
		AuthorID:  slot,
		OwnerID:   modelsdb.OwnerSlot,
		Authors:   authors,
		History:   rawEntries(history),
		Stores:    rawEntries(stores),
	}, nil
}
