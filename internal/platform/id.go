package platform

import "github.com/google/uuid"

// NewID returns a process-unique identifier for payment intents and lease
// lock tokens.
func NewID() string {
	return uuid.New().String()
}
