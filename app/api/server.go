package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lysyi3m/stream-comb/app/feed"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-ID"

func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(requestID())

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\" %s\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
				param.Request.Header.Get(requestIDHeader),
			)
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))

	// A panic anywhere in a handler still answers with a well-formed body.
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("Request panicked", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error: "Internal server error",
			Items: []feed.Item{},
		})
	}))

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	social := r.Group("/api/social")
	{
		social.GET("/rss", handler.GetRSS)
		social.GET("/bluesky", handler.SearchSocial)
		social.GET("/feed", handler.GetFeed)
		social.GET("/feed/status", handler.GetFeedStatus)
		social.GET("/feed.xml", handler.GetFeedXML)
	}

	r.GET("/api/sources", handler.ListSources)
	r.GET("/api/sources/:name", handler.GetSource)
	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// requestID tags every request with an X-Request-ID, keeping one supplied by
// the client.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(requestIDHeader, id)
		}
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
