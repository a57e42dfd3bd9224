// Package httpapi wires the admin HTTP server: liveness, Prometheus
// metrics, and a read/write surface for operational data (open requests
// and archive rules). This server is internal operator tooling, not a
// public API.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/tbourn/go-request-bot/internal/http/middleware"
	"github.com/tbourn/go-request-bot/internal/repo"
)

// NewRouter builds the admin router over the shared database handle.
func NewRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.GET("/requests", listOpenRequests(db))
	api.GET("/requests/:id/tasks", listRequestTasks(db))
	api.PUT("/archive-rules/:from", putArchiveRule(db))

	return r
}

// listOpenRequests returns all non-archived requests, newest first.
func listOpenRequests(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := repo.ListOpenRequests(c.Request.Context(), db)
		if err != nil {
			middleware.LoggerFrom(c).Error().Err(err).Msg("list open requests")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": out})
	}
}

// listRequestTasks returns the tasks of one request in display order.
func listRequestTasks(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := repo.GetRequest(c.Request.Context(), db, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
				return
			}
			middleware.LoggerFrom(c).Error().Err(err).Str("request_id", id).Msg("load request")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		tasks, err := repo.ListTasksByRequest(c.Request.Context(), db, id)
		if err != nil {
			middleware.LoggerFrom(c).Error().Err(err).Str("request_id", id).Msg("list tasks")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": tasks})
	}
}

// archiveRuleBody is the PUT payload for an archive rule.
type archiveRuleBody struct {
	ToChannelID int64 `json:"to_channel" binding:"required"`
}

// putArchiveRule creates or replaces the rule routing archived requests
// out of the :from channel.
func putArchiveRule(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var from int64
		if err := parseSnowflake(c.Param("from"), &from); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from channel must be a numeric id"})
			return
		}
		var body archiveRuleBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to_channel is required"})
			return
		}
		if err := repo.PutArchiveRule(c.Request.Context(), db, from, body.ToChannelID); err != nil {
			middleware.LoggerFrom(c).Error().Err(err).Int64("from", from).Msg("put archive rule")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"from_channel": from, "to_channel": body.ToChannelID})
	}
}
