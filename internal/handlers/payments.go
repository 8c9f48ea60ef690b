package handlers

import (
	"io"
	"net/http"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/logger"
	"gigbook/internal/models"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 64 << 10

// ConfirmPayment - POST /api/gigs/:gigId/payments
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	var req models.ConfirmPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.services.Payments.ConfirmPayment(c.Request.Context(), actor(c), c.Param("gigId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RefundPayment - POST /api/payments/refunds
func (h *Handlers) RefundPayment(c *gin.Context) {
	var req models.RefundRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.services.Payments.RefundPayment(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// Balance - GET /api/users/me/balance
func (h *Handlers) Balance(c *gin.Context) {
	balance, err := h.services.Payments.Balance(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// StripeWebhook - POST /webhooks/stripe
// The raw body is needed for signature verification.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, apperrors.InvalidArgument("failed to read body"))
		return
	}

	if err := h.services.Payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, err)
		return
	}

	logger.WithContext(c.Request.Context()).Debug("Webhook processed")
	c.Status(http.StatusOK)
}

// LogDispute - POST /api/disputes
func (h *Handlers) LogDispute(c *gin.Context) {
	var req models.LogDisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.services.Escrow.LogDispute(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FindPendingFee - GET /api/gigs/:gigId/fee?performerId=
func (h *Handlers) FindPendingFee(c *gin.Context) {
	performerID := c.Query("performerId")
	if performerID == "" {
		respondError(c, apperrors.InvalidArgument("performerId is required"))
		return
	}

	fee, err := h.services.Escrow.FindPendingFee(c.Request.Context(), actor(c), c.Param("gigId"), performerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fee)
}

// ListPerformerFees - GET /api/performers/:performerId/fees
func (h *Handlers) ListPerformerFees(c *gin.Context) {
	fees, err := h.services.Escrow.ListPerformerFees(c.Request.Context(), actor(c), c.Param("performerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fees": fees})
}

// ClearDueFees - POST /internal/fees/clear-due
func (h *Handlers) ClearDueFees(c *gin.Context) {
	resp, err := h.services.Escrow.ClearDueFees(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ClearFee - POST /internal/fees/:feeId/clear
func (h *Handlers) ClearFee(c *gin.Context) {
	if err := h.services.Escrow.MarkFeeCleared(c.Request.Context(), c.Param("feeId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
