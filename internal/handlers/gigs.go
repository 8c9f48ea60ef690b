package handlers

import (
	"net/http"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateGig - POST /api/gigs
func (h *Handlers) CreateGig(c *gin.Context) {
	var req models.CreateGigRequest
	if !bindJSON(c, &req) {
		return
	}

	gig, err := h.services.Gigs.CreateGig(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gig)
}

// GetGig - GET /api/gigs/:gigId
func (h *Handlers) GetGig(c *gin.Context) {
	gig, err := h.services.Gigs.GetGig(c.Request.Context(), actor(c), c.Param("gigId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// ListVenueGigs - GET /api/venues/:id/gigs
func (h *Handlers) ListVenueGigs(c *gin.Context) {
	gigs, err := h.services.Gigs.ListVenueGigs(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gigs": gigs})
}

// DeleteGig - DELETE /api/gigs/:gigId
func (h *Handlers) DeleteGig(c *gin.Context) {
	if err := h.services.Gigs.DeleteGig(c.Request.Context(), actor(c), c.Param("gigId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SearchGigs - GET /api/gigs/search
func (h *Handlers) SearchGigs(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured", "code": apperrors.CodeInternal})
		return
	}

	var req models.SearchGigsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, apperrors.InvalidArgument("%v", err))
		return
	}

	resp, err := h.search.Search(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ApplyToGig - POST /api/gigs/:gigId/apply
func (h *Handlers) ApplyToGig(c *gin.Context) {
	var req models.ApplyRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.services.Gigs.ApplyToGig(c.Request.Context(), actor(c), c.Param("gigId"), &req)
	h.respondApplicants(c, resp, err)
}

// InviteToGig - POST /api/gigs/:gigId/invite
func (h *Handlers) InviteToGig(c *gin.Context) {
	var req models.InviteRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.services.Gigs.InviteToGig(c.Request.Context(), actor(c), c.Param("gigId"), &req)
	h.respondApplicants(c, resp, err)
}

// NegotiateFee - POST /api/gigs/:gigId/negotiate
func (h *Handlers) NegotiateFee(c *gin.Context) {
	var req models.NegotiateRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.services.Gigs.NegotiateFee(c.Request.Context(), actor(c), c.Param("gigId"), &req)
	h.respondApplicants(c, resp, err)
}

// AcceptOffer - POST /api/gigs/:gigId/accept
func (h *Handlers) AcceptOffer(c *gin.Context) {
	var req models.ApplicantActionRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.services.Gigs.AcceptOffer(c.Request.Context(), actor(c), c.Param("gigId"), &req)
	h.respondApplicants(c, resp, err)
}

// DeclineApplication - POST /api/gigs/:gigId/decline
func (h *Handlers) DeclineApplication(c *gin.Context) {
	var req models.ApplicantActionRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.services.Gigs.DeclineApplication(c.Request.Context(), actor(c), c.Param("gigId"), &req)
	h.respondApplicants(c, resp, err)
}

// WithdrawApplication - POST /api/gigs/:gigId/withdraw
func (h *Handlers) WithdrawApplication(c *gin.Context) {
	var req models.WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.services.Gigs.WithdrawApplication(c.Request.Context(), actor(c), c.Param("gigId"), &req)
	h.respondApplicants(c, resp, err)
}

// ConfirmBooking - POST /api/gigs/:gigId/confirm
func (h *Handlers) ConfirmBooking(c *gin.Context) {
	var req models.ConfirmBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.services.Gigs.ConfirmPaymentAndBooking(c.Request.Context(), actor(c), c.Param("gigId"), &req)
	h.respondApplicants(c, resp, err)
}

// CancelBooking - POST /api/gigs/:gigId/cancel
func (h *Handlers) CancelBooking(c *gin.Context) {
	var req models.CancelBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.services.Gigs.CancelBooking(c.Request.Context(), actor(c), c.Param("gigId"), &req)
	h.respondApplicants(c, resp, err)
}

// MarkApplicantsViewed - POST /api/gigs/:gigId/viewed
func (h *Handlers) MarkApplicantsViewed(c *gin.Context) {
	resp, err := h.services.Gigs.MarkApplicantsViewed(c.Request.Context(), actor(c), c.Param("gigId"))
	h.respondApplicants(c, resp, err)
}

func (h *Handlers) respondApplicants(c *gin.Context, resp *models.ApplicantsResponse, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
