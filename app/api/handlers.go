package api

import (
	"cmp"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/stream-comb/app/aggregator"
	"github.com/lysyi3m/stream-comb/app/cache"
	"github.com/lysyi3m/stream-comb/app/cfg"
	"github.com/lysyi3m/stream-comb/app/database"
	"github.com/lysyi3m/stream-comb/app/feed"
	"github.com/lysyi3m/stream-comb/app/metrics"
	"github.com/lysyi3m/stream-comb/app/source"
)

const (
	defaultFeedLimit = 25
	maxLimit         = 500
)

func NewHandler(agg AggregatorInterface, configCache ConfigInterface,
	sourceRepo database.SourceRepository, c cache.Cache, baseURL string) *Handler {
	return &Handler{
		aggregator:  agg,
		generator:   feed.NewGenerator(),
		configCache: configCache,
		sourceRepo:  sourceRepo,
		cache:       c,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		clock:       time.Now,
	}
}

func (h *Handler) GetRSS(c *gin.Context) {
	req := rssRequest{}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "rss", err)
		return
	}

	q := aggregator.Query{
		Sources: []feed.SourceKind{feed.SourceRSS},
		Feeds:   splitCSV(req.Feeds),
		Limit:   parseLimit(req.Limit, feed.DefaultRSSLimit, maxLimit),
	}

	result, err := h.aggregator.Run(c.Request.Context(), q)
	if err != nil {
		slog.Error("RSS aggregation failed", "feeds", len(q.Feeds), "error", err)
		metrics.RecordAggregation("rss", "error", 0)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to fetch RSS feeds", Items: []feed.Item{}})
		return
	}

	feeds := make([]string, 0, len(result.Endpoints))
	for _, e := range result.Endpoints {
		feeds = append(feeds, e.URL)
	}

	metrics.RecordAggregation("rss", "ok", len(result.Items))

	c.JSON(http.StatusOK, rssResponse{
		Items:     result.Items,
		Count:     len(result.Items),
		Feeds:     feeds,
		Timestamp: h.now(),
	})
}

// SearchSocial never fails with a 5xx: upstream trouble shows up as isMock or
// rateLimited in the payload.
func (h *Handler) SearchSocial(c *gin.Context) {
	req := searchRequest{}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "social", err)
		return
	}

	query := cmp.Or(strings.TrimSpace(req.Query), feed.DefaultSocialQuery)

	limit := parseLimit(req.Limit, feed.DefaultSocialLimit, source.MaxSocialLimit)

	outcome := h.aggregator.Search(c.Request.Context(), query, limit)
	if outcome.Err != nil {
		slog.Warn("Social search degraded",
			"query", query,
			"status", outcome.Status(),
			"items", len(outcome.Items),
			"error", outcome.Err)
	}

	items := outcome.Items
	if items == nil {
		items = []feed.Item{}
	}

	metrics.RecordAggregation("social", outcome.Status(), len(items))

	c.JSON(http.StatusOK, searchResponse{
		Items:       items,
		Count:       len(items),
		Query:       query,
		Timestamp:   h.now(),
		IsMock:      outcome.IsMock,
		RateLimited: outcome.RateLimited,
	})
}

func (h *Handler) GetFeed(c *gin.Context) {
	q, ok := h.bindFeedQuery(c, "feed")
	if !ok {
		return
	}

	result, err := h.aggregator.Run(c.Request.Context(), q)
	if err != nil {
		slog.Error("Feed aggregation failed", "sources", q.Sources, "error", err)
		metrics.RecordAggregation("feed", "error", 0)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to fetch feed", Items: []feed.Item{}})
		return
	}

	metrics.RecordAggregation("feed", "ok", len(result.Items))

	c.JSON(http.StatusOK, feedResponse{
		Items:       result.Items,
		Count:       len(result.Items),
		LastUpdated: formatOptional(result.LastUpdated),
		IsLoading:   result.IsLoading,
		Sources:     result.Sources,
		Timestamp:   h.now(),
	})
}

func (h *Handler) GetFeedStatus(c *gin.Context) {
	q, ok := h.bindFeedQuery(c, "status")
	if !ok {
		return
	}

	loading, lastUpdated := h.aggregator.Status(q)

	c.JSON(http.StatusOK, statusResponse{
		LastUpdated: formatOptional(lastUpdated),
		IsLoading:   loading,
		Timestamp:   h.now(),
	})
}

func (h *Handler) GetFeedXML(c *gin.Context) {
	q, ok := h.bindFeedQuery(c, "xml")
	if !ok {
		return
	}

	result, err := h.aggregator.Run(c.Request.Context(), q)
	if err != nil {
		slog.Error("Feed aggregation failed", "sources", q.Sources, "error", err)
		metrics.RecordAggregation("xml", "error", 0)
		c.Status(http.StatusInternalServerError)
		return
	}

	channel := feed.Channel{
		Title:     "Stream Comb",
		Link:      h.baseURL,
		SelfLink:  h.selfLink(c),
		Generator: "Stream Comb " + cfg.GetVersion(),
	}

	rss, err := h.generator.Run(channel, result.Items)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		metrics.RecordAggregation("xml", "error", 0)
		c.Status(http.StatusInternalServerError)
		return
	}

	metrics.RecordAggregation("xml", "ok", len(result.Items))

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(result.Items)))
	if !result.LastUpdated.IsZero() {
		c.Header("X-Last-Updated", result.LastUpdated.UTC().Format(time.RFC3339))
	}

	c.String(http.StatusOK, rss)
}

func (h *Handler) ListSources(c *gin.Context) {
	endpoints := h.configCache.AllEndpoints()
	sources := make([]sourceInfo, 0, len(endpoints))

	persisted := make(map[string]*database.Source)
	if h.sourceRepo != nil {
		rows, err := h.sourceRepo.ListSources(c.Request.Context())
		if err != nil {
			slog.Error("Database error", "operation", "list_sources", "error", err)
		}
		for i := range rows {
			persisted[rows[i].Key] = &rows[i]
		}
	}

	for _, e := range endpoints {
		sources = append(sources, sourceInfo{Endpoint: e, Status: persisted[e.CacheKey()]})
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) GetSource(c *gin.Context) {
	name := c.Param("name")

	endpoint, ok := h.configCache.GetEndpoint(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
		return
	}

	info := sourceInfo{Endpoint: endpoint}

	if h.sourceRepo != nil {
		status, err := h.sourceRepo.GetSource(c.Request.Context(), endpoint.CacheKey())
		if err != nil {
			slog.Error("Database error", "operation", "get_source", "endpoint", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		info.Status = status
	}

	c.JSON(http.StatusOK, info)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":                "ok",
		"version":               cfg.GetVersion(),
		"timestamp":             h.clock().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	if h.cache != nil {
		health["cache"] = h.cache.Health(c.Request.Context())
	}

	if h.sourceRepo != nil {
		if count, err := h.sourceRepo.GetSourceCount(c.Request.Context()); err == nil {
			health["sources"] = count
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) bindFeedQuery(c *gin.Context, handler string) (aggregator.Query, bool) {
	req := feedRequest{}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, handler, err)
		return aggregator.Query{}, false
	}

	var sources []feed.SourceKind
	for _, s := range splitCSV(req.Sources) {
		kind, err := feed.ParseSourceKind(strings.ToLower(s))
		if err != nil {
			h.badRequest(c, handler, err)
			return aggregator.Query{}, false
		}
		sources = append(sources, kind)
	}

	return aggregator.Query{
		Sources:     sources,
		Keywords:    splitCSV(req.Keywords),
		Limit:       parseLimit(req.Limit, defaultFeedLimit, maxLimit),
		SocialQuery: req.Query,
		Feeds:       splitCSV(req.Feeds),
		Dedupe:      req.Dedupe,
	}, true
}

func (h *Handler) badRequest(c *gin.Context, handler string, err error) {
	slog.Debug("Invalid request", "path", c.Request.URL.Path, "error", err)
	metrics.RecordAggregation(handler, "invalid", 0)
	c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("Invalid request: %v", err), Items: []feed.Item{}})
}

func (h *Handler) selfLink(c *gin.Context) string {
	if h.baseURL == "" {
		return ""
	}
	return h.baseURL + c.Request.URL.RequestURI()
}

func (h *Handler) now() string {
	return feed.FormatTimestamp(h.clock())
}

func formatOptional(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := feed.FormatTimestamp(t)
	return &s
}

// parseLimit falls back to def for a missing, malformed or non-positive limit
// and caps it at max.
func parseLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, max)
}

// splitCSV splits a comma-separated parameter, dropping blank entries.
func splitCSV(s string) []string {
	var parts []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
