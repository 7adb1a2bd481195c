package handler

import (
	"io"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderWebhookSignature carries the provider's HMAC signature of the raw
// webhook body.
const HeaderWebhookSignature = "X-Webhook-Signature"

// PaymentHandler handles the provider redirect and webhook endpoints.
type PaymentHandler struct {
	ledgerSvc ports.LedgerService
	gateway   ports.PaymentGateway
	log       zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(ledgerSvc ports.LedgerService, gateway ports.PaymentGateway, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{ledgerSvc: ledgerSvc, gateway: gateway, log: log}
}

// Success handles GET /payment/success?order_id=. The provider redirects the
// buyer here after approval; the deposit is captured and confirmed. Revisiting
// the URL returns the recorded transaction without capturing or crediting
// again.
func (h *PaymentHandler) Success(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		response.Error(c, apperror.Validation("order_id is required"))
		return
	}

	txn, err := h.ledgerSvc.CaptureDeposit(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.PaymentResultResponse{
		Message:       "Payment successful",
		TransactionID: txn.ID.String(),
		Status:        string(txn.Status),
	})
}

// Cancel handles GET /payment/cancel?order_id=. The pending deposit is marked
// cancelled; the wallet was never credited.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		response.Error(c, apperror.Validation("order_id is required"))
		return
	}

	txn, err := h.ledgerSvc.CancelDeposit(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.PaymentResultResponse{
		Message:       "Payment cancelled",
		TransactionID: txn.ID.String(),
		Status:        string(txn.Status),
	})
}

// Webhook handles POST /webhook. The raw body signature is verified before
// anything in the payload is trusted. Completion events mean the provider has
// already captured, so the deposit is confirmed without another capture call;
// other event types are acknowledged and ignored. Duplicate deliveries are
// safe: confirmation is idempotent per correlation id.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	signature := c.GetHeader(HeaderWebhookSignature)
	if !h.gateway.VerifyWebhookSignature(body, signature) {
		response.Error(c, apperror.ErrWebhookSignature())
		return
	}

	event, err := h.gateway.ParseWebhook(body)
	if err != nil {
		response.Error(c, err)
		return
	}

	if !event.Completed() {
		h.log.Debug().Str("event_type", event.EventType).Msg("webhook event ignored")
		response.OK(c, gin.H{"status": "ignored"})
		return
	}

	if _, err := h.ledgerSvc.ConfirmDeposit(c.Request.Context(), event.ExternalRef); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"status": "received"})
}
