package handlers

import (
	"net/http"

	"gigbook/internal/models"

	"github.com/gin-gonic/gin"
)

// UpsertUser - PUT /api/users/me
func (h *Handlers) UpsertUser(c *gin.Context) {
	var req models.UpsertUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.services.Teams.UpsertUser(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateVenue - POST /api/venues
func (h *Handlers) CreateVenue(c *gin.Context) {
	var req models.CreateVenueRequest
	if !bindJSON(c, &req) {
		return
	}
	venue, err := h.services.Teams.CreateVenue(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, venue)
}

// CreateArtist - POST /api/artists
func (h *Handlers) CreateArtist(c *gin.Context) {
	var req models.CreateArtistRequest
	if !bindJSON(c, &req) {
		return
	}
	artist, err := h.services.Teams.CreateArtistProfile(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, artist)
}

// CreateMusician - POST /api/musicians
func (h *Handlers) CreateMusician(c *gin.Context) {
	var req models.CreateMusicianRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.services.Teams.CreateMusicianProfile(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// The member routes are shared by venues and artists; kind is fixed when
// the route is registered.

// ListMembers - GET /api/{venues|artists}/:id/members
func (h *Handlers) ListMembers(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := h.services.Teams.ListMembers(c.Request.Context(), actor(c), kind, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"members": members})
	}
}

// UpdateMemberPermissions - PATCH /api/{venues|artists}/:id/members/:userId
func (h *Handlers) UpdateMemberPermissions(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UpdatePermissionsRequest
		if !bindJSON(c, &req) {
			return
		}
		member, err := h.services.Teams.UpdateMemberPermissions(c.Request.Context(), actor(c), kind, c.Param("id"), c.Param("userId"), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, member)
	}
}

// RemoveMember - DELETE /api/{venues|artists}/:id/members/:userId
func (h *Handlers) RemoveMember(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.services.Teams.RemoveMember(c.Request.Context(), actor(c), kind, c.Param("id"), c.Param("userId")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// TransferOwnership - POST /api/{venues|artists}/:id/transfer-ownership
func (h *Handlers) TransferOwnership(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.TransferOwnershipRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := h.services.Teams.TransferOwnership(c.Request.Context(), actor(c), kind, c.Param("id"), &req); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// CreateInvite - POST /api/{venues|artists}/:id/invites
func (h *Handlers) CreateInvite(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateInviteRequest
		if !bindJSON(c, &req) {
			return
		}
		invite, err := h.services.Teams.CreateInvite(c.Request.Context(), actor(c), kind, c.Param("id"), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invite)
	}
}

// AcceptInvite - POST /api/invites/:inviteId/accept
func (h *Handlers) AcceptInvite(c *gin.Context) {
	member, err := h.services.Teams.AcceptInvite(c.Request.Context(), actor(c), c.Param("inviteId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// SetPayoutShare - PUT /api/artists/:id/members/:userId/payout-share
func (h *Handlers) SetPayoutShare(c *gin.Context) {
	var req models.SetPayoutShareRequest
	if !bindJSON(c, &req) {
		return
	}
	member, err := h.services.Teams.SetPayoutShare(c.Request.Context(), actor(c), c.Param("id"), c.Param("userId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}
