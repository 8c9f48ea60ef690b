package handlers

import (
	"context"
	"net/http"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/logger"
	"gigbook/internal/middleware"
	"gigbook/internal/models"
	"gigbook/internal/service"

	"github.com/gin-gonic/gin"
)

// GigSearcher answers gig search queries. search.GigIndex implements it.
type GigSearcher interface {
	Search(ctx context.Context, req *models.SearchGigsRequest) (*models.SearchGigsResponse, error)
}

type Handlers struct {
	services *service.Services
	search   GigSearcher
}

// NewHandlers wires the HTTP handlers. A nil searcher makes the search
// endpoint report 503.
func NewHandlers(services *service.Services, search GigSearcher) *Handlers {
	return &Handlers{
		services: services,
		search:   search,
	}
}

// respondError writes err with the HTTP status of its code. Internal
// errors are logged and their details hidden from the caller.
func respondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeInternal {
		logger.WithContext(c.Request.Context()).Error("Request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(apperrors.HTTPStatus(code), gin.H{
		"error": apperrors.MessageOf(err),
		"code":  code,
	})
}

// bindJSON decodes the body into req and answers 400 when it does not fit.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  apperrors.CodeInvalidArgument,
		})
		return false
	}
	return true
}

func actor(c *gin.Context) string {
	return middleware.ActorID(c)
}
