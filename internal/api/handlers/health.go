package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/fpl-optimizer/internal/services"
)

type HealthHandler struct {
	pool *services.PoolService
}

func NewHealthHandler(pool *services.PoolService) *HealthHandler {
	return &HealthHandler{pool: pool}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
		"pool":   h.pool.Status(),
	})
}
