package exception

import "fmt"

type SessionNotFoundError struct {
	*AppError
	SessionId int64
}

func NewSessionNotFoundError(sessionId int64) *SessionNotFoundError {
	return &SessionNotFoundError{
		AppError: &AppError{
			Code:    "SESSION_NOT_FOUND",
			Message: fmt.Sprintf("session with id '%d' does not exist", sessionId),
		},
		SessionId: sessionId,
	}
}

type AuthorNotFoundError struct {
	*AppError
	AuthorId int64
}

func NewAuthorNotFoundError(authorId int64) *AuthorNotFoundError {
	return &AuthorNotFoundError{
		AppError: &AppError{
			Code:    "AUTHOR_NOT_FOUND",
			Message: fmt.Sprintf("author with id '%d' is not part of the session", authorId),
		},
		AuthorId: authorId,
	}
}

// ReservedFieldError is returned when a client tries to overwrite a field of a session
// entry that only the hub manages.
type ReservedFieldError struct {
	*AppError
	Field string
}

func NewReservedFieldError(field string) *ReservedFieldError {
	return &ReservedFieldError{
		AppError: &AppError{
			Code:    "RESERVED_FIELD",
			Message: fmt.Sprintf("field '%s' can not be changed", field),
		},
		Field: field,
	}
}
