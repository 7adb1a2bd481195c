package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// PaymentGateway isolates the ledger from the external payment provider.
// Calls carry the configured timeout and surface gateway failures without
// retrying; they are never made while holding a wallet lock.
type PaymentGateway interface {
	// CreateCharge creates a remote payment intent and returns the provider
	// correlation id together with the buyer-facing approval URL.
	CreateCharge(ctx context.Context, amount int64, returnURL, cancelURL string) (*ChargeIntent, error)
	// CaptureCharge captures a previously approved charge.
	CaptureCharge(ctx context.Context, externalRef string) (*CaptureResult, error)
	// ParseWebhook validates a provider push notification payload and
	// extracts the correlation id. It does not trust anything else in it.
	ParseWebhook(payload []byte) (*WebhookEvent, error)
	// VerifyWebhookSignature checks provider authenticity of a raw webhook
	// body before its contents may be acted upon.
	VerifyWebhookSignature(payload []byte, signature string) bool
}

// ChargeIntent is the provider-side handle for a created charge.
type ChargeIntent struct {
	ExternalRef string
	ApprovalURL string
}

// CaptureResult is the provider's answer to a capture request.
type CaptureResult struct {
	Status string // provider status, e.g. "COMPLETED"
	Amount int64  // minor units, 0 if the provider omitted it
}

// WebhookEvent is the validated shape of a provider push notification.
type WebhookEvent struct {
	EventType   string
	ExternalRef string
}

// Completed reports whether the event signals a finished charge.
func (e *WebhookEvent) Completed() bool {
	return e.EventType == "CHECKOUT.ORDER.COMPLETED" ||
		e.EventType == "PAYMENT.CAPTURE.COMPLETED"
}

// --- Service Ports (Business Logic) ---

// LedgerService is the transaction engine: the only component permitted to
// mutate wallet balances or advance transaction records.
type LedgerService interface {
	InitiateDeposit(ctx context.Context, req DepositRequest) (*DepositIntent, error)
	// CaptureDeposit captures the provider charge and then confirms. Buyer
	// redirect path only; webhooks use ConfirmDeposit.
	CaptureDeposit(ctx context.Context, externalRef string) (*domain.Transaction, error)
	// ConfirmDeposit is a pure ledger operation: no provider call is made.
	ConfirmDeposit(ctx context.Context, externalRef string) (*domain.Transaction, error)
	CancelDeposit(ctx context.Context, externalRef string) (*domain.Transaction, error)
	TransferP2P(ctx context.Context, req TransferRequest) (*domain.Transaction, error)
	GetHistory(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
}

// DepositRequest holds validated input for initiating a deposit.
type DepositRequest struct {
	UserID    uuid.UUID
	Amount    int64 // minor units
	ReturnURL string
	CancelURL string
}

// DepositIntent is the result of a successfully initiated deposit: the
// pending ledger entry plus the provider-facing redirect data.
type DepositIntent struct {
	TransactionID uuid.UUID
	ExternalRef   string
	ApprovalURL   string
}

// TransferRequest holds validated input for a peer-to-peer transfer.
type TransferRequest struct {
	SenderUserID   uuid.UUID
	ReceiverUserID uuid.UUID
	Amount         int64 // minor units
}

// AuthService defines account provisioning and login.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Email    string
	Password string
	FullName string
}

// RegisterResponse holds the ids created atomically at registration.
type RegisterResponse struct {
	UserID   uuid.UUID
	WalletID uuid.UUID
}

// HashService handles password hashing.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secret string, payload []byte) string
	Verify(secret string, payload []byte, signature string) bool
}

// ConfirmationCache is a fast-path cache of already confirmed deposits,
// consulted before hitting the store on duplicate webhook bursts. Best
// effort only: the transaction row status remains the source of truth.
type ConfirmationCache interface {
	Get(ctx context.Context, externalRef string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, externalRef string, value []byte, ttl time.Duration) error
}
