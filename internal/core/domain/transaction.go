package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit TransactionType = "deposit"
	TransactionTypeP2P     TransactionType = "p2p"
)

// TransactionStatus represents the lifecycle state of a transaction.
// Allowed transitions: pending -> completed | failed | cancelled.
// Completed, failed and cancelled are terminal.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Transaction is an immutable ledger entry once completed. A nil sender
// wallet means an external source (provider deposit); a nil receiver wallet
// means an external sink. They are never both nil.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	SenderWalletID   *uuid.UUID        `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID *uuid.UUID        `json:"receiver_wallet_id,omitempty"`
	Amount           int64             `json:"amount"` // minor units, always > 0
	Type             TransactionType   `json:"type"`
	Status           TransactionStatus `json:"status"`
	ExternalRef      *string           `json:"external_ref,omitempty"` // provider correlation id
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusCancelled
}

// CanTransitionTo reports whether the status state machine permits moving to
// the target status.
func (t *Transaction) CanTransitionTo(target TransactionStatus) bool {
	if t.Status != TransactionStatusPending {
		return false
	}
	switch target {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	default:
		return false
	}
}

// Effect returns the signed balance effect of a completed transaction on the
// given wallet: positive when the wallet is the receiver, negative when it is
// the sender, zero otherwise (or while not completed).
func (t *Transaction) Effect(walletID uuid.UUID) int64 {
	if t.Status != TransactionStatusCompleted {
		return 0
	}
	var effect int64
	if t.ReceiverWalletID != nil && *t.ReceiverWalletID == walletID {
		effect += t.Amount
	}
	if t.SenderWalletID != nil && *t.SenderWalletID == walletID {
		effect -= t.Amount
	}
	return effect
}
