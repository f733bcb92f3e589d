package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/newscurator/internal/ingest"
	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/metrics"
	"github.com/deusflow/newscurator/internal/news"
)

const (
	defaultCategoryLimit = 10
	maxCategoryLimit     = 100
)

var sourceNameRe = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.&]+$`)

type Scanner interface {
	FetchAll(ctx context.Context) (*news.CompleteScanResult, error)
	FetchSource(ctx context.Context, name string) (*news.ScanResult, error)
}

type NewsReader interface {
	All(ctx context.Context) (*news.AllNews, error)
	ByCategory(ctx context.Context, category news.Category, limit int) ([]news.Article, error)
}

type RefreshStore interface {
	LastRefresh(ctx context.Context) (time.Time, bool, error)
	SetLastRefresh(ctx context.Context, t time.Time) error
}

type Server struct {
	scanner Scanner
	reader  NewsReader
	refresh RefreshStore
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewServer(scanner Scanner, reader NewsReader, refresh RefreshStore, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.Global
	}
	return &Server{scanner: scanner, reader: reader, refresh: refresh, metrics: m, now: time.Now}
}

// NewRouter returns a gin engine with every route registered.
func (s *Server) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", s.stats)

	a := r.Group("/api")
	{
		a.GET("/news", s.allNews)
		a.GET("/news/:category", s.categoryNews)
		a.GET("/news/:category/rss", s.categoryFeed)
		a.POST("/news/fetch", s.fetch)
		a.GET("/metadata/last-refresh", s.lastRefresh)
		a.POST("/metadata/last-refresh", s.setLastRefresh)
	}
}

func (s *Server) health(c *gin.Context) {
	stats := s.metrics.GetStats()

	status, code := "ok", http.StatusOK
	if !s.metrics.Healthy() {
		status, code = "error", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.GetStats())
}

func (s *Server) allNews(c *gin.Context) {
	all, err := s.reader.All(c.Request.Context())
	if err != nil {
		logger.Error("failed to get news", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get news"})
		return
	}
	c.JSON(http.StatusOK, all)
}

// curatedCategory answers with 400 or 500 itself and reports false when
// the request can not be served.
func (s *Server) curatedCategory(c *gin.Context) (news.Category, []news.Article, bool) {
	category, err := news.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return "", nil, false
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultCategoryLimit)))
	if err != nil || limit <= 0 {
		limit = defaultCategoryLimit
	}
	if limit > maxCategoryLimit {
		limit = maxCategoryLimit
	}

	items, err := s.reader.ByCategory(c.Request.Context(), category, limit)
	if err != nil {
		logger.Error("failed to get news by category", "category", category, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get news"})
		return "", nil, false
	}
	return category, items, true
}

func (s *Server) categoryNews(c *gin.Context) {
	if _, items, ok := s.curatedCategory(c); ok {
		c.JSON(http.StatusOK, items)
	}
}

// fetch runs a scan synchronously. With ?source= only that source is
// scanned.
func (s *Server) fetch(c *gin.Context) {
	ctx := c.Request.Context()
	source, single := c.GetQuery("source")

	if !single || source == "" {
		result, err := s.scanner.FetchAll(ctx)
		if err != nil {
			logger.Error("scan failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch news"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "News fetched successfully", "result": result})
		return
	}

	if !sourceNameRe.MatchString(source) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":        false,
			"error":          "Invalid source parameter format",
			"allowedPattern": "alphanumeric, spaces, hyphens, underscores, dots, and ampersands",
		})
		return
	}

	result, err := s.scanner.FetchSource(ctx, source)
	if errors.Is(err, ingest.ErrSourceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Source %q not found", source)})
		return
	}
	if err != nil {
		logger.Error("source scan failed", "source", source, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch news"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("News fetched successfully for %s", source),
		"result":  result,
	})
}

func (s *Server) lastRefresh(c *gin.Context) {
	t, ok, err := s.refresh.LastRefresh(c.Request.Context())
	if err != nil {
		logger.Error("failed to get last refresh", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get last refresh timestamp"})
		return
	}
	c.JSON(http.StatusOK, s.refreshBody(t, ok))
}

type setRefreshRequest struct {
	Timestamp *time.Time `json:"timestamp"`
}

func (s *Server) setLastRefresh(c *gin.Context) {
	var req setRefreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	t := s.now()
	if req.Timestamp != nil {
		t = *req.Timestamp
	}
	if err := s.refresh.SetLastRefresh(c.Request.Context(), t); err != nil {
		logger.Error("failed to set last refresh", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update last refresh timestamp"})
		return
	}

	body := s.refreshBody(t, true)
	body["success"] = true
	c.JSON(http.StatusOK, body)
}

func (s *Server) refreshBody(t time.Time, ok bool) gin.H {
	if !ok {
		return gin.H{"timestamp": nil, "formatted": never, "relative": never}
	}
	return gin.H{
		"timestamp": t.UTC().Format(time.RFC3339),
		"formatted": FormatTimestamp(t),
		"relative":  RelativeTime(t, s.now()),
	}
}
