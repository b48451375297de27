package id

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// New generates a ULID for the current instant. Used as the session token
// `jti`, so two tokens for the same member never compare equal.
func New() string {
	return NewAt(time.Now())
}

// NewAt generates a ULID whose time component is t. Sliding-window entries
// use it as the sorted-set member so requests in the same millisecond stay distinct.
func NewAt(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
