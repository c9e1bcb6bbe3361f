package exception

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	cause := errors.New("connection refused")
	dbErr := NewDatabaseError("append history", cause)

	assert.True(t, IsFatal(dbErr))
	assert.True(t, IsFatal(fmt.Errorf("submit change: %w", dbErr)))
	assert.ErrorIs(t, dbErr, cause)

	assert.False(t, IsFatal(NewSessionNotFoundError(12)))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "SESSION_NOT_FOUND: session with id '7' does not exist", NewSessionNotFoundError(7).Error())
	assert.Equal(t, "RESERVED_FIELD: field 'active' can not be changed", NewReservedFieldError("active").Error())
	assert.Contains(t, NewDatabaseError("ping", errors.New("boom")).Error(), "boom")
}
