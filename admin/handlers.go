package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/filterkit/component"
	"github.com/kbukum/filterkit/errors"
	"github.com/kbukum/filterkit/lifecycle"
	"github.com/kbukum/filterkit/sse"
	"github.com/kbukum/filterkit/version"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     component.HealthStatus `json:"status"`
	Service    string                 `json:"service"`
	Timestamp  string                 `json:"timestamp"`
	Components []component.Health     `json:"components"`
}

// FiltersResponse is the body of GET /filters.
type FiltersResponse struct {
	Count         int                   `json:"count"`
	Installations int                   `json:"installations"`
	Filters       []lifecycle.EntryInfo `json:"filters"`
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/version", s.handleVersion)
	s.engine.GET("/filters", s.handleFilters)
	if s.events != nil {
		s.engine.GET("/events", s.handleEvents)
	}
	s.engine.NoRoute(func(c *gin.Context) {
		respondWithError(c, errors.NotFound("route", c.Request.URL.Path))
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	components := s.checker(c.Request.Context())
	status := component.Overall(components)

	httpStatus := http.StatusOK
	if status == component.StatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, HealthResponse{
		Status:     status,
		Service:    s.service,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

func (s *Server) handleFilters(c *gin.Context) {
	entries := s.inspector.Snapshot()
	resp := FiltersResponse{Count: len(entries), Filters: entries}
	for _, e := range entries {
		resp.Installations += e.RefCount
	}
	c.JSON(http.StatusOK, resp)
}

// handleEvents streams lifecycle transitions whose "<kind>:<operation>"
// topic matches the optional ?match glob.
func (s *Server) handleEvents(c *gin.Context) {
	pattern := c.DefaultQuery("match", sse.MatchAll)
	if !sse.ValidPattern(pattern) {
		respondWithError(c, errors.InvalidInput("match", "malformed glob pattern"))
		return
	}
	sse.ServeSSE(s.events, c.Writer, c.Request, uuid.NewString(), pattern)
}

// respondWithError renders err as an AppError body, falling back to a 500.
func respondWithError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, errors.Internal(err).ToResponse())
}
