package db

import (
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
)

// newSessionID returns a random positive session id. Collisions are treated as practically
// impossible, the stores reject them through their primary key anyway.
func newSessionID() int64 {
	return rand.Int64N(math.MaxInt32) + 1
}

// newSessionToken returns the access-gating token of a session. It is not a credential.
func newSessionToken() string {
	return uuid.NewString()
}
