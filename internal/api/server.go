package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pollcast/pkg/interfaces"
	"pollcast/pkg/types"
)

// SessionView is the read-only slice of the session the API exposes
type SessionView interface {
	Students() []*types.Student
	CurrentPoll() *types.Poll
	CurrentResults() *types.Results
}

// Registry interface to avoid tight coupling to websocket.Registry implementation
type Registry interface {
	GetStats() map[string]int
}

// HealthChecker is a dependency /health reports on
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ErrNotFound is what an Archive returns for an unknown poll; the server maps
// any error matching it to 404
var ErrNotFound = errors.New("not found")

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
// Clean separation - no business logic, only HTTP handling and JSON serialization
type Server struct {
	session  SessionView
	registry Registry
	archive  interfaces.Archive // nil when history is disabled
	notFound error
	feed     HealthChecker // nil when the results feed is disabled
	logger   *slog.Logger
	started  time.Time
	engine   *gin.Engine
}

// Option configures a Server
type Option func(*Server)

// WithArchive serves poll history from archive; notFound is the archive's
// sentinel for unknown polls
func WithArchive(archive interfaces.Archive, notFound error) Option {
	return func(s *Server) {
		s.archive = archive
		s.notFound = notFound
	}
}

// WithFeed reports the results feed in /health
func WithFeed(feed HealthChecker) Option {
	return func(s *Server) {
		s.feed = feed
	}
}

// WithWebSocket mounts the upgrade handler on /ws and /socket
func WithWebSocket(handler http.Handler) Option {
	return func(s *Server) {
		s.engine.GET("/ws", gin.WrapH(handler))
		s.engine.GET("/socket", gin.WrapH(handler))
	}
}

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer builds the router. Options run after the core routes are registered.
func NewServer(session SessionView, registry Registry, opts ...Option) *Server {
	s := &Server{
		session:  session,
		registry: registry,
		notFound: ErrNotFound,
		logger:   slog.Default(),
		started:  time.Now(),
		engine:   gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())
	s.setupRoutes()

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ARCHITECTURAL DISCOVERY: Route setup follows REST conventions with middleware applied globally
func (s *Server) setupRoutes() {
	s.engine.GET("/", s.root)
	s.engine.GET("/health", s.healthCheck)

	api := s.engine.Group("/api")
	api.GET("/poll", s.currentPoll)
	api.GET("/students", s.students)
	api.GET("/polls", s.listPolls)
	api.GET("/polls/:id", s.getPoll)
}

// FUNCTIONAL DISCOVERY: Implement http.Handler interface for integration with standard HTTP server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Uptime      string         `json:"uptime"`
	Archive     string         `json:"archive"`
	Feed        string         `json:"feed"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type PollResponse struct {
	Poll    *types.Poll    `json:"poll"`
	Results *types.Results `json:"results"`
}

type StudentsResponse struct {
	Students []*types.Student `json:"students"`
	Count    int              `json:"count"`
}

type PollsResponse struct {
	Polls []*types.PollRecord `json:"polls"`
}

// root is the liveness probe
func (s *Server) root(c *gin.Context) {
	c.String(http.StatusOK, "Server is running")
}

// FUNCTIONAL DISCOVERY: GET /health - System health check with component validation
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	check := func(dep HealthChecker) string {
		if dep == nil {
			return "disabled"
		}
		if err := dep.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			return "error: " + err.Error()
		}
		return "healthy"
	}

	var archive HealthChecker
	if s.archive != nil {
		archive = s.archive
	}
	archiveStatus := check(archive)
	feedStatus := check(s.feed)

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Archive:     archiveStatus,
		Feed:        feedStatus,
		Connections: s.registry.GetStats(),
	})
}

// currentPoll returns the latest poll, active or ended, with its live tally
func (s *Server) currentPoll(c *gin.Context) {
	poll := s.session.CurrentPoll()
	if poll == nil {
		s.sendError(c, "No poll has been created", http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, PollResponse{Poll: poll, Results: s.session.CurrentResults()})
}

func (s *Server) students(c *gin.Context) {
	students := s.session.Students()
	c.JSON(http.StatusOK, StudentsResponse{Students: students, Count: len(students)})
}

// listPolls returns archived polls newest first, ?limit= caps the count
func (s *Server) listPolls(c *gin.Context) {
	if s.archive == nil {
		s.sendError(c, "Poll history is disabled", http.StatusNotFound)
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			s.sendError(c, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	polls, err := s.archive.ListPolls(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list archived polls", "error", err)
		s.sendError(c, "Failed to list polls", http.StatusInternalServerError)
		return
	}
	if polls == nil {
		polls = []*types.PollRecord{}
	}
	c.JSON(http.StatusOK, PollsResponse{Polls: polls})
}

func (s *Server) getPoll(c *gin.Context) {
	if s.archive == nil {
		s.sendError(c, "Poll history is disabled", http.StatusNotFound)
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.sendError(c, "Invalid poll id", http.StatusBadRequest)
		return
	}

	record, err := s.archive.GetPoll(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, s.notFound) {
			s.sendError(c, "Poll not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to load archived poll", "poll", id, "error", err)
		s.sendError(c, "Failed to load poll", http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, record)
}

// FUNCTIONAL DISCOVERY: Consistent error response format
func (s *Server) sendError(c *gin.Context, message string, code int) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// ARCHITECTURAL DISCOVERY: CORS middleware enables browser clients served from any origin
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
