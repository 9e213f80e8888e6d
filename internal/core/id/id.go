// Package id provides UUIDv7 identifiers for ledger entities.
// UUIDv7 sorts by creation time, which keeps the id tie-break in list
// ordering stable across devices.
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type of every entity.
type ID = uuid.UUID

// New generates a new UUIDv7.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
