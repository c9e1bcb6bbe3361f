package db

import "github.com/ether/collabpads-go/lib/exception"

const SessionAlreadyExistsError = "session for this document already exists"
const AuthorAlreadyExistsError = "author with this name already exists"
const AuthorAlreadyInSessionError = "author is already part of the session"
const AuthorNotFoundError = "author not found"
const ConnectionAlreadyBoundError = "connection is already bound to an author"

// Entry fields only the hub itself may change.
var reservedAuthorFields = map[string]struct{}{
	"authorId":    {},
	"slot":        {},
	"active":      {},
	"connection":  {},
	"connections": {},
}

const (
	fieldName     = "name"
	fieldColor    = "color"
	fieldRealName = "realName"
)

func checkAuthorField(field string) error {
	if field == "" {
		return exception.NewReservedFieldError(field)
	}
	if _, ok := reservedAuthorFields[field]; ok {
		return exception.NewReservedFieldError(field)
	}
	return nil
}
