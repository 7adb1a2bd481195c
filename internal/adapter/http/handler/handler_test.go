package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	userID := uuid.New()
	walletID := uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Email:    "alice@example.com",
		Password: "password123",
		FullName: "Alice",
	}).Return(&ports.RegisterResponse{
		UserID:   userID,
		WalletID: walletID,
	}, nil)

	body, _ := json.Marshal(dto.RegisterRequest{
		Email:    "alice@example.com",
		Password: "password123",
		FullName: "Alice",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/users/register", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, userID.String(), data["user_id"])
	assert.Equal(t, walletID.String(), data["wallet_id"])
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	// Empty body => binding error
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/users/register", bytes.NewReader([]byte("{}")))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDuplicateEmail())

	body, _ := json.Marshal(dto.RegisterRequest{
		Email:    "taken@example.com",
		Password: "password123",
		FullName: "Bob",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/users/register", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "LED_004")
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "alice@example.com", "password123").
		Return("jwt-token", expiry, nil)

	body, _ := json.Marshal(dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/users/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "jwt-token", data["token"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), "alice@example.com", "wrong").
		Return("", time.Time{}, apperror.ErrInvalidCredentials())

	body, _ := json.Marshal(dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/users/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_001")
}

// --- Wallet Handler Tests ---

func authedContext(w *httptest.ResponseRecorder, userID uuid.UUID, req *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(middleware.CtxUserID, userID)
	return c
}

func TestFund_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	userID := uuid.New()
	txnID := uuid.New()
	mockLedger.EXPECT().InitiateDeposit(gomock.Any(), ports.DepositRequest{
		UserID:    userID,
		Amount:    5000,
		ReturnURL: "https://app/ok",
		CancelURL: "https://app/no",
	}).Return(&ports.DepositIntent{
		TransactionID: txnID,
		ExternalRef:   "ORDER-123",
		ApprovalURL:   "https://provider/approve",
	}, nil)

	body, _ := json.Marshal(dto.FundRequest{
		Amount:    "50.00",
		ReturnURL: "https://app/ok",
		CancelURL: "https://app/no",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/wallets/fund", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c := authedContext(w, userID, req)

	h.Fund(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ORDER-123", data["order_id"])
	assert.Equal(t, "https://provider/approve", data["approval_url"])
}

func TestFund_BadAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	for _, amount := range []string{"-5.00", "0", "abc", "1.005"} {
		body, _ := json.Marshal(dto.FundRequest{Amount: amount})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/wallets/fund", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		c := authedContext(w, uuid.New(), req)

		h.Fund(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, amount)
	}
}

func TestGetBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	userID := uuid.New()
	mockLedger.EXPECT().GetBalance(gomock.Any(), userID).Return(int64(4200), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/wallets/balance", nil)
	c := authedContext(w, userID, req)

	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(4200), data["balance"])
}

func TestGetTransactions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	userID := uuid.New()
	walletID := uuid.New()
	mockLedger.EXPECT().GetHistory(gomock.Any(), userID).Return([]domain.Transaction{
		{ID: uuid.New(), ReceiverWalletID: &walletID, Amount: 5000, Type: domain.TransactionTypeDeposit, Status: domain.TransactionStatusCompleted},
		{ID: uuid.New(), SenderWalletID: &walletID, Amount: 1000, Type: domain.TransactionTypeP2P, Status: domain.TransactionStatusCompleted},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/wallets/transactions/"+userID.String(), nil)
	c.Params = gin.Params{{Key: "user_id", Value: userID.String()}}

	h.GetTransactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].([]interface{})
	assert.Len(t, data, 2)
}

func TestGetTransactions_UnknownUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	userID := uuid.New()
	mockLedger.EXPECT().GetHistory(gomock.Any(), userID).Return(nil, apperror.ErrNotFound("wallet"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/wallets/transactions/"+userID.String(), nil)
	c.Params = gin.Params{{Key: "user_id", Value: userID.String()}}

	h.GetTransactions(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransferP2P_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	senderID := uuid.New()
	receiverID := uuid.New()
	senderWallet := uuid.New()
	receiverWallet := uuid.New()
	now := time.Now()

	mockLedger.EXPECT().TransferP2P(gomock.Any(), ports.TransferRequest{
		SenderUserID:   senderID,
		ReceiverUserID: receiverID,
		Amount:         2000,
	}).Return(&domain.Transaction{
		ID:               uuid.New(),
		SenderWalletID:   &senderWallet,
		ReceiverWalletID: &receiverWallet,
		Amount:           2000,
		Type:             domain.TransactionTypeP2P,
		Status:           domain.TransactionStatusCompleted,
		CreatedAt:        now,
		CompletedAt:      &now,
	}, nil)

	body, _ := json.Marshal(dto.TransferRequest{
		ReceiverID: receiverID.String(),
		Amount:     "20.00",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions/p2p", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c := authedContext(w, senderID, req)

	h.TransferP2P(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "p2p", data["type"])
	assert.Equal(t, "completed", data["status"])
}

func TestTransferP2P_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	senderID := uuid.New()
	mockLedger.EXPECT().TransferP2P(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInsufficientFunds())

	body, _ := json.Marshal(dto.TransferRequest{
		ReceiverID: uuid.New().String(),
		Amount:     "9999.00",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions/p2p", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c := authedContext(w, senderID, req)

	h.TransferP2P(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "LED_002")
}

// --- Payment Handler Tests ---

func TestPaymentSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	mockGateway := mocks.NewMockPaymentGateway(ctrl)
	h := NewPaymentHandler(mockLedger, mockGateway, zerolog.Nop())

	walletID := uuid.New()
	now := time.Now()
	ref := "ORDER-123"
	mockLedger.EXPECT().CaptureDeposit(gomock.Any(), ref).Return(&domain.Transaction{
		ID:               uuid.New(),
		ReceiverWalletID: &walletID,
		Amount:           5000,
		Type:             domain.TransactionTypeDeposit,
		Status:           domain.TransactionStatusCompleted,
		ExternalRef:      &ref,
		CompletedAt:      &now,
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/payment/success?order_id=ORDER-123", nil)

	h.Success(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Payment successful")
}

func TestPaymentSuccess_MissingOrderID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	mockGateway := mocks.NewMockPaymentGateway(ctrl)
	h := NewPaymentHandler(mockLedger, mockGateway, zerolog.Nop())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/payment/success", nil)

	h.Success(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	mockGateway := mocks.NewMockPaymentGateway(ctrl)
	h := NewPaymentHandler(mockLedger, mockGateway, zerolog.Nop())

	ref := "ORDER-123"
	walletID := uuid.New()
	mockLedger.EXPECT().CancelDeposit(gomock.Any(), ref).Return(&domain.Transaction{
		ID:               uuid.New(),
		ReceiverWalletID: &walletID,
		Status:           domain.TransactionStatusCancelled,
		ExternalRef:      &ref,
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/payment/cancel?order_id=ORDER-123", nil)

	h.Cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Payment cancelled")
}

func TestWebhook_CompletedEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	mockGateway := mocks.NewMockPaymentGateway(ctrl)
	h := NewPaymentHandler(mockLedger, mockGateway, zerolog.Nop())

	payload := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"ORDER-123"}}`)
	walletID := uuid.New()

	mockGateway.EXPECT().VerifyWebhookSignature(payload, "good-sig").Return(true)
	mockGateway.EXPECT().ParseWebhook(payload).Return(&ports.WebhookEvent{
		EventType:   "PAYMENT.CAPTURE.COMPLETED",
		ExternalRef: "ORDER-123",
	}, nil)
	mockLedger.EXPECT().ConfirmDeposit(gomock.Any(), "ORDER-123").Return(&domain.Transaction{
		ID:               uuid.New(),
		ReceiverWalletID: &walletID,
		Status:           domain.TransactionStatusCompleted,
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	c.Request.Header.Set(HeaderWebhookSignature, "good-sig")

	h.Webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "received")
}

func TestWebhook_BadSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	mockGateway := mocks.NewMockPaymentGateway(ctrl)
	h := NewPaymentHandler(mockLedger, mockGateway, zerolog.Nop())

	payload := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"ORDER-123"}}`)
	mockGateway.EXPECT().VerifyWebhookSignature(payload, "bad-sig").Return(false)
	// ConfirmDeposit is never reached.

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	c.Request.Header.Set(HeaderWebhookSignature, "bad-sig")

	h.Webhook(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "GW_004")
}

func TestWebhook_IgnoredEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	mockGateway := mocks.NewMockPaymentGateway(ctrl)
	h := NewPaymentHandler(mockLedger, mockGateway, zerolog.Nop())

	payload := []byte(`{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-123"}}`)
	mockGateway.EXPECT().VerifyWebhookSignature(payload, "good-sig").Return(true)
	mockGateway.EXPECT().ParseWebhook(payload).Return(&ports.WebhookEvent{
		EventType:   "CHECKOUT.ORDER.APPROVED",
		ExternalRef: "ORDER-123",
	}, nil)
	// Non-completion events do not touch the ledger.

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	c.Request.Header.Set(HeaderWebhookSignature, "good-sig")

	h.Webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

// --- Health Handler Tests ---

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(_ context.Context) error { return f.err }
func (f fakeChecker) Name() string                 { return f.name }

func TestHealthCheck_AllHealthy(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck(fakeChecker{name: "postgres"}, fakeChecker{name: "redis"}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestHealthCheck_Degraded(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck(
		fakeChecker{name: "postgres"},
		fakeChecker{name: "redis", err: errors.New("connection refused")},
	))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}
