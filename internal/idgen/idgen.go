// Package idgen issues boot session identifiers. Tests replace NewFunc to get
// stable values.
package idgen

import "github.com/google/uuid"

var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique session identifier.
func New() string { return NewFunc() }

// Short returns the first block of id, for banners.
func Short(id string) string {
	for i, c := range id {
		if c == '-' {
			return id[:i]
		}
	}
	return id
}
