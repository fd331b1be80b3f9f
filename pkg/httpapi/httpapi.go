// Package httpapi exposes the suggestion service over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bastiangx/tripserve/internal/logger"
	"github.com/bastiangx/tripserve/pkg/config"
	"github.com/bastiangx/tripserve/pkg/engine"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// SuggestRequest is the POST /suggest body. Omitted fields take the configured defaults.
type SuggestRequest struct {
	Query          string `json:"query"`
	CursorPosition int    `json:"cursor_position,omitempty"`
	Max            int    `json:"max,omitempty"`
	Placeholder    *bool  `json:"placeholder,omitempty"`
	SkipCache      bool   `json:"skip_cache,omitempty"`
}

// SuggestResponse is engine.Result plus the request id.
type SuggestResponse struct {
	RequestID string `json:"request_id"`
	engine.Result
}

// Handler serves the API routes.
type Handler struct {
	service      *engine.Service
	defaultLimit int
	maxLimit     int
	maxQueryLen  int
	placeholder  bool
	log          *log.Logger
}

// NewHandler creates a new handler
func NewHandler(service *engine.Service, cfg *config.Config) *Handler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handler{
		service:      service,
		defaultLimit: cfg.Engine.MaxSuggestions,
		maxLimit:     cfg.Server.MaxLimit,
		maxQueryLen:  cfg.Server.MaxQueryLen,
		placeholder:  cfg.Engine.Placeholder,
		log:          logger.New("http"),
	}
}

// NewRouter builds the gin engine with CORS, request ids and the API routes.
func NewRouter(service *engine.Service, cfg *config.Config) *gin.Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	h := NewHandler(service, cfg)

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), h.accessLog())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = cfg.HTTP.AllowAllOrigins
	if !cfg.HTTP.AllowAllOrigins {
		corsConfig.AllowOriginFunc = isLocalOrigin
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.POST("/suggest", h.Suggest)
	router.GET("/health", h.Health)
	router.POST("/clear-cache", h.ClearCache)
	return router
}

// isLocalOrigin accepts a browser page served from this machine on any port.
func isLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// requestID keeps a client supplied id or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"id", c.GetString("request_id"),
			"took", time.Since(start))
	}
}

// Suggest handles POST /suggest
func (h *Handler) Suggest(c *gin.Context) {
	var req SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if len(req.Query) > h.maxQueryLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query too long"})
		return
	}

	if req.Max <= 0 {
		req.Max = h.defaultLimit
	}
	if req.Max > h.maxLimit {
		req.Max = h.maxLimit
	}
	placeholder := h.placeholder
	if req.Placeholder != nil {
		placeholder = *req.Placeholder
	}

	res := h.service.Complete(c.Request.Context(), engine.Request{
		Query:          req.Query,
		CursorPosition: req.CursorPosition,
		Max:            req.Max,
		Placeholder:    placeholder,
		SkipCache:      req.SkipCache,
	})
	c.JSON(http.StatusOK, SuggestResponse{RequestID: c.GetString("request_id"), Result: res})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"stats":  h.service.Engine().Stats(),
	})
}

// ClearCache handles POST /clear-cache
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.service.Engine().ClearCache(c.Request.Context()); err != nil {
		h.log.Error("clear cache failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cache: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "cache_cleared",
		"message": "Query cache has been cleared",
	})
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("Shutting down HTTP API")
		return srv.Shutdown(shutdownCtx)
	}
}
