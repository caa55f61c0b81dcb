package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker is a dependency the readiness probe pings.
type Checker interface {
	Name() string
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checkers []Checker
	timeout  time.Duration
}

func NewHealthHandler(checkers ...Checker) *HealthHandler {
	return &HealthHandler{checkers: checkers, timeout: 2 * time.Second}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checkers))
	for _, chk := range h.checkers {
		if err := chk.Ping(ctx); err != nil {
			checks[chk.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[chk.Name()] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
