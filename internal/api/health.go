package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// HealthChecker runs registered component checks for the health and
// readiness endpoints.
type HealthChecker struct {
	mu     sync.RWMutex
	checks map[string]func(ctx context.Context) error
	logger observability.Logger
}

// NewHealthChecker creates an empty health checker
func NewHealthChecker(logger observability.Logger) *HealthChecker {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &HealthChecker{
		checks: make(map[string]func(ctx context.Context) error),
		logger: logger,
	}
}

// RegisterCheck registers a named component check
func (h *HealthChecker) RegisterCheck(name string, check func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

func (h *HealthChecker) run(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	checks := make(map[string]func(ctx context.Context) error, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	components := make(map[string]string, len(checks))
	healthy := true
	for name, check := range checks {
		if err := check(ctx); err != nil {
			components[name] = "unhealthy: " + err.Error()
			healthy = false
			h.logger.Warn("Health check failed", map[string]interface{}{
				"component": name,
				"error":     err.Error(),
			})
			continue
		}
		components[name] = "healthy"
	}
	return components, healthy
}

// HealthHandler reports overall health with per-component detail
func (h *HealthChecker) HealthHandler(c *gin.Context) {
	components, healthy := h.run(c.Request.Context())

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":     overall,
		"components": components,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}

// LivenessHandler answers the process-is-up probe
func (h *HealthChecker) LivenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReadinessHandler reports whether the service can take traffic
func (h *HealthChecker) ReadinessHandler(c *gin.Context) {
	components, healthy := h.run(c.Request.Context())
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
