package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger Business Logic (LED) ----

func ErrInvalidAmount() *AppError {
	return New("LED_001", "Amount must be positive", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("LED_002", "Insufficient funds in wallet", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDuplicateEmail() *AppError {
	return New("LED_004", "Email already exists", http.StatusBadRequest)
}

func ErrSelfTransfer() *AppError {
	return New("LED_005", "Sender and receiver wallets must differ", http.StatusConflict)
}

func ErrUnknownTransaction() *AppError {
	return New("LED_006", "Transaction not found", http.StatusNotFound)
}

func ErrAlreadyFinalized() *AppError {
	return New("LED_007", "Transaction already finalized", http.StatusConflict)
}

// ---- Payment Gateway (GW) ----

func ErrGateway(err error) *AppError {
	return Wrap("GW_001", "Payment gateway request failed", http.StatusBadRequest, err)
}

func ErrCaptureIncomplete(status string) *AppError {
	return New("GW_002", fmt.Sprintf("Payment capture not completed: %s", status), http.StatusBadRequest)
}

func ErrInvalidWebhook() *AppError {
	return New("GW_003", "Invalid webhook payload", http.StatusBadRequest)
}

func ErrWebhookSignature() *AppError {
	return New("GW_004", "Webhook signature verification failed", http.StatusUnauthorized)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
// Storage failures roll back atomically, so the whole operation is retryable.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_001-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("LED_001", message, http.StatusBadRequest)
}
