package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/kingbora/easy-law-sub001/pkg/common/config"
	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// RequestLogger middleware logs HTTP requests
func RequestLogger(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := map[string]interface{}{
			"client_ip": c.ClientIP(),
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"method":    c.Request.Method,
			"path":      path,
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		logger.Info("HTTP request", fields)
	}
}

// RecoveryMiddleware turns panics into 500 responses instead of dropped
// connections.
func RecoveryMiddleware(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered in handler", map[string]interface{}{
					"panic":  r,
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// MetricsMiddleware records per-request API metrics
func MetricsMiddleware(metrics observability.MetricsClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		metrics.RecordAPIOperation("rest", c.Request.Method+" "+c.FullPath(), status < 500, time.Since(start).Seconds())
		metrics.IncrementCounterWithLabels("api_requests", 1, map[string]string{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": strconv.Itoa(status),
		})
	}
}

// CORSMiddleware handles cross-origin requests for the configured origins.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok || allowAll {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key, X-Tenant-ID, If-Match")
				c.Header("Access-Control-Expose-Headers", "ETag")
				c.Header("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RateLimiterStorage keeps one token bucket per client plus a shared global
// bucket. Idle client buckets are evicted by a background sweep.
type RateLimiterStorage struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	global   *rate.Limiter
	cfg      config.RateLimitConfig
	done     chan struct{}
	sweep    sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiterStorage creates rate limiter storage from the API config
func NewRateLimiterStorage(cfg config.RateLimitConfig) *RateLimiterStorage {
	return &RateLimiterStorage{
		limiters: make(map[string]*clientLimiter),
		global:   rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

func (s *RateLimiterStorage) allow(key string) bool {
	if !s.global.Allow() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cl, ok := s.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(s.cfg.TenantRPS), s.cfg.TenantBurst)}
		s.limiters[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

// Stop terminates the eviction sweep goroutine
func (s *RateLimiterStorage) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *RateLimiterStorage) startSweep() {
	s.sweep.Do(func() {
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-s.done:
					return
				case <-ticker.C:
					cutoff := time.Now().Add(-10 * time.Minute)
					s.mu.Lock()
					for key, cl := range s.limiters {
						if cl.lastSeen.Before(cutoff) {
							delete(s.limiters, key)
						}
					}
					s.mu.Unlock()
				}
			}
		}()
	})
}

// RateLimiter limits requests per client. The client key is the tenant
// when authentication already ran, otherwise the caller's IP.
func RateLimiter(storage *RateLimiterStorage) gin.HandlerFunc {
	storage.startSweep()
	return func(c *gin.Context) {
		key := c.ClientIP()
		if tenantID, ok := TenantFromContext(c); ok {
			key = tenantID.String()
		}
		if !storage.allow(key) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
