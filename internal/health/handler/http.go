// Package handler exposes liveness and readiness endpoints for load
// balancers, Kubernetes probes, and CI.
package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler serves health checks. db may be nil; readiness then reports only
// process liveness.
type Handler struct {
	db *sql.DB
}

// NewHandler returns a health Handler probing db.
func NewHandler(db *sql.DB) *Handler {
	return &Handler{db: db}
}

// Register mounts the health routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.live)
	r.GET("/readyz", h.ready)
}

func (h *Handler) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ready(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
