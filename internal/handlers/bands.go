package handlers

import (
	"net/http"

	"gigbook/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateBand - POST /api/bands
func (h *Handlers) CreateBand(c *gin.Context) {
	var req models.CreateBandRequest
	if !bindJSON(c, &req) {
		return
	}
	band, err := h.services.Bands.CreateBand(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, band)
}

// DeleteBand - DELETE /api/bands/:bandId
func (h *Handlers) DeleteBand(c *gin.Context) {
	if err := h.services.Bands.DeleteBand(c.Request.Context(), actor(c), c.Param("bandId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CreateBandInvite - POST /api/bands/:bandId/invites
func (h *Handlers) CreateBandInvite(c *gin.Context) {
	var req models.CreateBandInviteRequest
	if !bindJSON(c, &req) {
		return
	}
	invite, err := h.services.Bands.CreateBandInvite(c.Request.Context(), actor(c), c.Param("bandId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invite)
}

// AcceptBandInvite - POST /api/band-invites/:inviteId/accept
func (h *Handlers) AcceptBandInvite(c *gin.Context) {
	var req models.BandMembershipRequest
	if !bindJSON(c, &req) {
		return
	}
	band, err := h.services.Bands.AcceptBandInvite(c.Request.Context(), actor(c), c.Param("inviteId"), &req)
	h.respondBand(c, band, err)
}

// JoinBand - POST /api/bands/:bandId/join
func (h *Handlers) JoinBand(c *gin.Context) {
	var req models.BandMembershipRequest
	if !bindJSON(c, &req) {
		return
	}
	band, err := h.services.Bands.JoinBandByPassword(c.Request.Context(), actor(c), c.Param("bandId"), &req)
	h.respondBand(c, band, err)
}

// LeaveBand - POST /api/bands/:bandId/leave
func (h *Handlers) LeaveBand(c *gin.Context) {
	var req models.BandMembershipRequest
	if !bindJSON(c, &req) {
		return
	}
	band, err := h.services.Bands.LeaveBand(c.Request.Context(), actor(c), c.Param("bandId"), &req)
	h.respondBand(c, band, err)
}

// RemoveBandMember - DELETE /api/bands/:bandId/members/:profileId
func (h *Handlers) RemoveBandMember(c *gin.Context) {
	band, err := h.services.Bands.RemoveBandMember(c.Request.Context(), actor(c), c.Param("bandId"), c.Param("profileId"))
	h.respondBand(c, band, err)
}

// SetBandAdmin - PUT /api/bands/:bandId/admin
func (h *Handlers) SetBandAdmin(c *gin.Context) {
	var req models.BandMembershipRequest
	if !bindJSON(c, &req) {
		return
	}
	band, err := h.services.Bands.SetBandAdmin(c.Request.Context(), actor(c), c.Param("bandId"), &req)
	h.respondBand(c, band, err)
}

func (h *Handlers) respondBand(c *gin.Context, band *models.Band, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, band)
}
