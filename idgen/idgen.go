// Package idgen generates the identifiers used across progsync: trace ids
// for requests, event ids for the observability log and opaque state values
// for the OAuth round-trip.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NanoID returns a Generator that produces base-36 IDs of the given length.
func NanoID(length int) Generator {
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator that produces time-sortable RFC 9562 UUIDs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID of gen (e.g. "evt_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

var (
	// Default is UUIDv7.
	Default Generator = UUIDv7()

	// Trace produces the short ids attached to every HTTP request.
	Trace Generator = NanoID(8)

	// State produces unguessable values for the OAuth state cookie.
	State Generator = NanoID(32)
)

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
