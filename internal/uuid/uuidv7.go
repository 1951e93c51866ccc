// Package uuid generates the time-ordered identifiers used for request ids
// and event ids.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string. Ids sort by creation time, which keeps the
// event queue and request logs easy to scan.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
