package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"CommunityInsights/internal/control"
	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
)

const (
	apiKeyHeader     = "X-API-Key"
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// Workflows is the part of the runner the HTTP surface drives.
type Workflows interface {
	Trigger(kind domain.WorkflowKind) error
	Status() control.Snapshot
}

// Handler exposes workflow triggers over HTTP.
type Handler struct {
	workflows Workflows
	runs      ports.RunRecorder
	apiKey    string
	logger    *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(workflows Workflows, runs ports.RunRecorder, apiKey string, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{workflows: workflows, runs: runs, apiKey: apiKey, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog())

	r.GET("/", h.Health)

	authorized := r.Group("/")
	authorized.Use(h.APIKeyRequired())
	{
		authorized.POST("/trigger-scrape", h.TriggerScrape)
		authorized.POST("/generate-posts", h.GeneratePosts)
		authorized.GET("/runs", h.Runs)
	}
	return r
}

// APIKeyRequired rejects requests without the configured X-API-Key.
func (h *Handler) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
			h.logger.Warn("unauthorized request", "path", c.FullPath(), "remote", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// Health reports liveness and which workflows are running.
func (h *Handler) Health(c *gin.Context) {
	s := h.workflows.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":               "Server running",
		"scrapingInProgress":   s.Scraping,
		"generationInProgress": s.Generating,
	})
}

// TriggerScrape starts a scrape in the background.
func (h *Handler) TriggerScrape(c *gin.Context) {
	err := h.workflows.Trigger(domain.WorkflowScrape)
	switch {
	case errors.Is(err, control.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"message": "Scraping already in progress."})
	case err != nil:
		h.logger.Error("trigger scrape", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not start scraping."})
	default:
		h.logger.Info("scrape accepted")
		c.JSON(http.StatusAccepted, gin.H{"message": "Scraping process accepted and started."})
	}
}

// GeneratePosts starts draft generation in the background.
func (h *Handler) GeneratePosts(c *gin.Context) {
	err := h.workflows.Trigger(domain.WorkflowGenerate)
	switch {
	case errors.Is(err, control.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"message": "Generation already in progress."})
	case errors.Is(err, control.ErrScrapeInProgress):
		c.JSON(http.StatusConflict, gin.H{"message": "Scraping is currently in progress. Cannot start generation."})
	case err != nil:
		h.logger.Error("trigger generation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not start generation."})
	default:
		h.logger.Info("generation accepted")
		c.JSON(http.StatusAccepted, gin.H{"message": "Post generation process accepted and started."})
	}
}

// Runs lists the most recent workflow reports.
func (h *Handler) Runs(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []domain.RunReport{}})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	reports, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load run history."})
		return
	}
	if reports == nil {
		reports = []domain.RunReport{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": reports})
}

func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		h.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down within timeout.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return <-errCh
}
