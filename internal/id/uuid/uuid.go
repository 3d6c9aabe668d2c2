// Package uuid provides request ID generation.
package uuid

import (
	"strings"

	"github.com/google/uuid"
)

// maxIncomingLen caps client-supplied request IDs echoed back in headers and logs.
const maxIncomingLen = 128

// NewString returns a time-ordered UUIDv7, or a random UUIDv4 if the v7
// clock source fails.
func NewString() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RequestID returns incoming when it is safe to reuse as a request ID and a
// fresh ID otherwise.
func RequestID(incoming string) string {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" || len(incoming) > maxIncomingLen {
		return NewString()
	}
	for _, r := range incoming {
		if r < 0x21 || r > 0x7e {
			return NewString()
		}
	}
	return incoming
}
