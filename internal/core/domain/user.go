package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an identity record. Immutable after registration except FullName.
// Every user owns exactly one wallet, created in the same atomic unit.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Opaque credential hash, never exposed
	FullName     string    `json:"full_name"`
	CreatedAt    time.Time `json:"created_at"`
}
