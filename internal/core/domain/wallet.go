package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is a per-user monetary account. Balance is held in integer minor
// units (cents) to avoid floating-point drift, and must never go negative.
// Invariant: balance equals the sum of signed effects of all completed
// transactions referencing this wallet. Only the ledger service mutates it,
// inside a committed store transaction.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"` // minor units
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
