package core

import "github.com/google/uuid"

// NewID returns a new unique message or session id.
func NewID() string {
	return uuid.New().String()
}
