package exception

import "errors"

// DatabaseError marks an infrastructure failure of a store. The hub does not try to
// recover from it; the supervisor restarts the whole process image instead.
type DatabaseError struct {
	*AppError
}

func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{
		AppError: &AppError{
			Code:    "DATABASE_ERROR",
			Message: message,
			Cause:   cause,
		},
	}
}

// IsFatal reports whether err must escalate past the message loop.
func IsFatal(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr)
}
