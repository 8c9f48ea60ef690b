package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"gigbook/internal/app"
	"gigbook/internal/handlers"
	"gigbook/internal/metrics"
	"gigbook/internal/middleware"
	"gigbook/internal/models"

	"github.com/gin-gonic/gin"
)

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// RouterConfig carries the settings the routes depend on.
type RouterConfig struct {
	JWTSecret         string
	SchedulerUser     string
	SchedulerPassword string
	RequestTimeout    time.Duration
	Probes            map[string]Probe
}

// Server is the HTTP API
type Server struct {
	router *gin.Engine
	app    *app.App
}

// NewServer builds the router on top of an initialized App
func NewServer(a *app.App) *Server {
	gin.SetMode(a.Config.GinMode)

	var searcher handlers.GigSearcher
	if a.Index != nil {
		searcher = a.Index
	}

	h := handlers.NewHandlers(a.Services, searcher)
	router := NewRouter(h, RouterConfig{
		JWTSecret:         a.Config.Auth.JWTSecret,
		SchedulerUser:     a.Config.Auth.SchedulerUser,
		SchedulerPassword: a.Config.Auth.SchedulerPassword,
		RequestTimeout:    a.Config.RequestTimeout,
		Probes:            probes(a),
	})

	return &Server{router: router, app: a}
}

// NewRouter registers every route on a new engine.
func NewRouter(h *handlers.Handlers, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(metrics.Middleware())
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	router.GET("/health", healthCheck(cfg.Probes))
	router.GET("/metrics", metrics.Handler())
	router.POST("/webhooks/stripe", h.StripeWebhook)

	internal := router.Group("/internal")
	internal.Use(middleware.BasicAuth(cfg.SchedulerUser, cfg.SchedulerPassword))
	{
		internal.POST("/fees/clear-due", h.ClearDueFees)
		internal.POST("/fees/:feeId/clear", h.ClearFee)
	}

	api := router.Group("/api")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	{
		api.PUT("/users/me", h.UpsertUser)
		api.GET("/users/me/balance", h.Balance)

		api.POST("/musicians", h.CreateMusician)
		api.GET("/performers/:performerId/fees", h.ListPerformerFees)

		venues := api.Group("/venues")
		{
			venues.POST("", h.CreateVenue)
			venues.GET("/:id/gigs", h.ListVenueGigs)
			registerTeamRoutes(venues, h, models.EntityVenue)
		}

		artists := api.Group("/artists")
		{
			artists.POST("", h.CreateArtist)
			registerTeamRoutes(artists, h, models.EntityArtist)
			artists.PUT("/:id/members/:userId/payout-share", h.SetPayoutShare)
		}

		api.POST("/invites/:inviteId/accept", h.AcceptInvite)

		gigs := api.Group("/gigs")
		{
			gigs.POST("", h.CreateGig)
			gigs.GET("/search", h.SearchGigs)
			gigs.GET("/:gigId", h.GetGig)
			gigs.DELETE("/:gigId", h.DeleteGig)
			gigs.POST("/:gigId/apply", h.ApplyToGig)
			gigs.POST("/:gigId/invite", h.InviteToGig)
			gigs.POST("/:gigId/negotiate", h.NegotiateFee)
			gigs.POST("/:gigId/accept", h.AcceptOffer)
			gigs.POST("/:gigId/decline", h.DeclineApplication)
			gigs.POST("/:gigId/withdraw", h.WithdrawApplication)
			gigs.POST("/:gigId/confirm", h.ConfirmBooking)
			gigs.POST("/:gigId/cancel", h.CancelBooking)
			gigs.POST("/:gigId/viewed", h.MarkApplicantsViewed)
			gigs.POST("/:gigId/payments", h.ConfirmPayment)
			gigs.GET("/:gigId/fee", h.FindPendingFee)
		}

		api.POST("/disputes", h.LogDispute)
		api.POST("/payments/refunds", h.RefundPayment)

		bands := api.Group("/bands")
		{
			bands.POST("", h.CreateBand)
			bands.DELETE("/:bandId", h.DeleteBand)
			bands.POST("/:bandId/invites", h.CreateBandInvite)
			bands.POST("/:bandId/join", h.JoinBand)
			bands.POST("/:bandId/leave", h.LeaveBand)
			bands.DELETE("/:bandId/members/:profileId", h.RemoveBandMember)
			bands.PUT("/:bandId/admin", h.SetBandAdmin)
		}
		api.POST("/band-invites/:inviteId/accept", h.AcceptBandInvite)
	}

	return router
}

func registerTeamRoutes(g *gin.RouterGroup, h *handlers.Handlers, kind models.EntityKind) {
	g.GET("/:id/members", h.ListMembers(kind))
	g.PATCH("/:id/members/:userId", h.UpdateMemberPermissions(kind))
	g.DELETE("/:id/members/:userId", h.RemoveMember(kind))
	g.POST("/:id/transfer-ownership", h.TransferOwnership(kind))
	g.POST("/:id/invites", h.CreateInvite(kind))
}

func probes(a *app.App) map[string]Probe {
	p := map[string]Probe{}
	if a.DB != nil {
		p["database"] = func(ctx context.Context) error {
			hc := a.DB.HealthCheck(ctx)
			a.DB.ValidateConnectionPool()
			if hc.Status != "healthy" {
				return errors.New(hc.Error)
			}
			return nil
		}
	}
	if a.Index != nil {
		p["search"] = a.Index.HealthCheck
	}
	return p
}

// healthCheck answers 503 when any probe fails.
func healthCheck(probes map[string]Probe) gin.HandlerFunc {
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{}
		for _, name := range names {
			if err := probes[name](c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":  state,
			"service": "gigbook-api",
			"version": "1.0.0",
			"checks":  checks,
		})
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return fmt.Sprintf(":%s", s.app.Config.Port)
}

// GetRouter returns the router for tests and the http.Server
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
