package achem

import (
	"time"

	"github.com/google/uuid"
)

// NewRandomID returns a random UUID string.
func NewRandomID() string {
	return uuid.NewString()
}

// seedFromClock is used when a scenario leaves the seed unset.
func seedFromClock() uint64 {
	return uint64(time.Now().UnixNano())
}
