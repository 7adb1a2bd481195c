package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet funding, balance and history endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// Fund handles POST /wallets/fund. It initiates a provider deposit and
// returns the approval URL the user must visit.
func (h *WalletHandler) Fund(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := dto.MinorUnits(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	intent, err := h.ledgerSvc.InitiateDeposit(c.Request.Context(), ports.DepositRequest{
		UserID:    userID.(uuid.UUID),
		Amount:    amount,
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FundResponse{
		TransactionID: intent.TransactionID.String(),
		OrderID:       intent.ExternalRef,
		ApprovalURL:   intent.ApprovalURL,
	})
}

// GetBalance handles GET /wallets/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.ledgerSvc.GetBalance(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// GetTransactions handles GET /wallets/transactions/:user_id.
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.Error(c, apperror.Validation("user_id must be a UUID"))
		return
	}

	txns, err := h.ledgerSvc.GetHistory(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.ToTransactionResponse(&txns[i]))
	}
	response.OK(c, items)
}

// TransferP2P handles POST /transactions/p2p. The sender is taken from the
// JWT, never from the request body.
func (h *WalletHandler) TransferP2P(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		response.Error(c, apperror.Validation("receiver_id must be a UUID"))
		return
	}

	amount, err := dto.MinorUnits(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	txn, err := h.ledgerSvc.TransferP2P(c.Request.Context(), ports.TransferRequest{
		SenderUserID:   userID.(uuid.UUID),
		ReceiverUserID: receiverID,
		Amount:         amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToTransactionResponse(txn))
}
