package id

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GenerateULID returns a prefixed, lexicographically time-ordered identifier,
// e.g. ntf_01J9Z3Q4X8M2B7K5N6P0R1S2T3.
func GenerateULID(prefix string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}

// GenerateUUID returns a random v4 UUID string.
func GenerateUUID() string {
	return uuid.NewString()
}
