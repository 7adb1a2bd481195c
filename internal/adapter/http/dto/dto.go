package dto

import (
	"wallet-ledger/internal/core/domain"
)

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	FullName string `json:"full_name" binding:"required,min=1,max=100"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// FundRequest is the request body for initiating a deposit. Amount is a
// decimal string ("50.00"), converted to integer minor units at this
// boundary.
type FundRequest struct {
	Amount    string `json:"amount" binding:"required"`
	ReturnURL string `json:"return_url" binding:"omitempty,url"`
	CancelURL string `json:"cancel_url" binding:"omitempty,url"`
}

// FundResponse is the response body for an initiated deposit.
type FundResponse struct {
	TransactionID string `json:"transaction_id"`
	OrderID       string `json:"order_id"`
	ApprovalURL   string `json:"approval_url"`
}

// TransferRequest is the request body for a peer-to-peer transfer.
type TransferRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required,uuid"`
	Amount     string `json:"amount" binding:"required"`
}

// TransactionResponse is the response body for a single ledger entry.
type TransactionResponse struct {
	ID               string  `json:"id"`
	SenderWalletID   *string `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID *string `json:"receiver_wallet_id,omitempty"`
	Amount           int64   `json:"amount"`
	Type             string  `json:"type"`
	Status           string  `json:"status"`
	OrderID          *string `json:"order_id,omitempty"`
	CreatedAt        string  `json:"created_at"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Balance int64 `json:"balance"` // minor units
}

// PaymentResultResponse is the response for deposit confirmation/cancel.
type PaymentResultResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// ToTransactionResponse converts a domain transaction to its wire shape.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:        txn.ID.String(),
		Amount:    txn.Amount,
		Type:      string(txn.Type),
		Status:    string(txn.Status),
		OrderID:   txn.ExternalRef,
		CreatedAt: txn.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if txn.SenderWalletID != nil {
		s := txn.SenderWalletID.String()
		resp.SenderWalletID = &s
	}
	if txn.ReceiverWalletID != nil {
		r := txn.ReceiverWalletID.String()
		resp.ReceiverWalletID = &r
	}
	if txn.CompletedAt != nil {
		c := txn.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.CompletedAt = &c
	}
	return resp
}
