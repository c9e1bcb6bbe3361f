// Package protocol parses and builds the text frames exchanged with editing clients.
//
// A frame is an event id optionally followed by a bracketed event name and JSON payload:
//
//	2
//	42["submitChange",{"change":{"transactions":[]}}]
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	EventAlive      = "2"
	EventKeepAlive  = "3"
	EventConnect    = "40"
	EventDisconnect = "41"
	EventContent    = "42"
)

const (
	NameChangeAuthor     = "changeAuthor"
	NameSubmitChange     = "submitChange"
	NameDeleteSession    = "deleteSession"
	NameSaveRevision     = "saveRevision"
	NameLogEvent         = "logEvent"
	NameAuthorChange     = "authorChange"
	NameAuthorDisconnect = "authorDisconnect"
	NameNewChange        = "newChange"
	NameInitSession      = "initSession"
)

type Kind int

const (
	Unrecognized Kind = iota
	KeepAlive
	DisconnectNotice
	Content
	// UnknownEvent is a well formed frame whose event id the hub does not handle.
	UnknownEvent
)

func (k Kind) String() string {
	switch k {
	case KeepAlive:
		return "keepAlive"
	case DisconnectNotice:
		return "disconnect"
	case Content:
		return "content"
	case UnknownEvent:
		return "unknown"
	default:
		return "unrecognized"
	}
}

// Frame is a decoded inbound frame. Payload is nil when the frame carried none.
type Frame struct {
	Kind    Kind
	EventID string
	Name    string
	Payload json.RawMessage
}

var ErrMalformedFrame = errors.New("malformed frame")

// Decode parses a single text frame. Frames that do not follow the grammar yield a frame of
// kind Unrecognized together with an error describing the problem.
func Decode(raw []byte) (Frame, error) {
	text := strings.TrimSpace(string(raw))

	idEnd := 0
	for idEnd < len(text) && isWordChar(text[idEnd]) {
		idEnd++
	}
	if idEnd == 0 {
		return Frame{Kind: Unrecognized}, fmt.Errorf("%w: missing event id", ErrMalformedFrame)
	}

	frame := Frame{EventID: text[:idEnd]}
	if rest := text[idEnd:]; rest != "" {
		name, payload, err := parseArguments(rest)
		if err != nil {
			return Frame{Kind: Unrecognized}, err
		}
		frame.Name = name
		frame.Payload = payload
	}

	switch frame.EventID {
	case EventAlive:
		frame.Kind = KeepAlive
	case EventDisconnect:
		frame.Kind = DisconnectNotice
	case EventContent:
		frame.Kind = Content
	default:
		frame.Kind = UnknownEvent
	}
	return frame, nil
}

// parseArguments reads `["name"]` or `["name",payload]`.
func parseArguments(rest string) (string, json.RawMessage, error) {
	if len(rest) < 2 || rest[0] != '[' || rest[len(rest)-1] != ']' {
		return "", nil, fmt.Errorf("%w: expected bracketed arguments", ErrMalformedFrame)
	}
	inner := strings.TrimSpace(rest[1 : len(rest)-1])
	if len(inner) < 2 || inner[0] != '"' {
		return "", nil, fmt.Errorf("%w: expected quoted event name", ErrMalformedFrame)
	}

	nameEnd := 1
	for nameEnd < len(inner) && isWordChar(inner[nameEnd]) {
		nameEnd++
	}
	if nameEnd == 1 || nameEnd >= len(inner) || inner[nameEnd] != '"' {
		return "", nil, fmt.Errorf("%w: invalid event name", ErrMalformedFrame)
	}
	name := inner[1:nameEnd]

	tail := strings.TrimSpace(inner[nameEnd+1:])
	if tail == "" {
		return name, nil, nil
	}
	if tail[0] != ',' {
		return "", nil, fmt.Errorf("%w: expected comma after event name", ErrMalformedFrame)
	}
	payload := strings.TrimSpace(tail[1:])
	if payload == "" {
		return "", nil, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}
	return name, json.RawMessage(payload), nil
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}

// Encode builds `eventID["name",payload]`. The payload is embedded verbatim and must already be
// JSON. An empty name produces the bare event id.
func Encode(eventID string, name string, payload []byte) []byte {
	if name == "" {
		return []byte(eventID)
	}
	var b strings.Builder
	b.Grow(len(eventID) + len(name) + len(payload) + 6)
	b.WriteString(eventID)
	b.WriteString(`["`)
	b.WriteString(name)
	b.WriteByte('"')
	if len(payload) > 0 {
		b.WriteByte(',')
		b.Write(payload)
	}
	b.WriteByte(']')
	return []byte(b.String())
}

// EncodeContent wraps a named event in the content event id.
func EncodeContent(name string, payload []byte) []byte {
	return Encode(EventContent, name, payload)
}

// EncodeContentValue marshals v and wraps it as a content event.
func EncodeContentValue(name string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error marshaling %s payload: %w", name, err)
	}
	return EncodeContent(name, payload), nil
}
