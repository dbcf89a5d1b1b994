package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/kingbora/easy-law-sub001/pkg/common/config"
	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// Context keys set by the auth middleware
const (
	contextKeyTenantID = "tenant_id"
	contextKeyActorID  = "actor_id"
	contextKeyRole     = "role"
)

// Claims are the JWT claims this service understands. Authorization policy
// (may this actor write these fields) is decided upstream; the middleware
// only establishes WHO is calling and for WHICH tenant.
type Claims struct {
	TenantID string   `json:"tenant_id"`
	UserID   string   `json:"user_id"`
	Role     string   `json:"role,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware authenticates requests with a Bearer JWT or a static API
// key and stores tenant and actor identity on the request context. With
// require_auth disabled (local development), identity falls back to the
// X-Tenant-ID and X-Actor-ID headers.
func AuthMiddleware(cfg config.AuthConfig, logger observability.Logger) gin.HandlerFunc {
	apiKeyHeader := cfg.APIKeyHeader
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}

	return func(c *gin.Context) {
		if !cfg.RequireAuth {
			tenantID, err := uuid.Parse(c.GetHeader("X-Tenant-ID"))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-Tenant-ID header"})
				return
			}
			actorID := c.GetHeader("X-Actor-ID")
			if actorID == "" {
				actorID = "anonymous"
			}
			setIdentity(c, tenantID, actorID, "")
			return
		}

		if token := bearerToken(c.GetHeader("Authorization")); token != "" {
			claims, err := validateJWT(token, cfg.JWTSecret)
			if err != nil {
				logger.Debug("JWT validation failed", map[string]interface{}{"error": err.Error()})
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			tenantID, err := uuid.Parse(claims.TenantID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token carries no valid tenant"})
				return
			}
			actorID := claims.UserID
			if actorID == "" {
				actorID = claims.Subject
			}
			setIdentity(c, tenantID, actorID, claims.Role)
			return
		}

		if key := c.GetHeader(apiKeyHeader); key != "" {
			settings, ok := cfg.APIKeys[key]
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
				return
			}
			tenantID, err := uuid.Parse(settings.TenantID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "api key carries no valid tenant"})
				return
			}
			actorID := settings.UserID
			if actorID == "" {
				actorID = "api-key"
			}
			setIdentity(c, tenantID, actorID, settings.Role)
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
}

func validateJWT(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt auth is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func setIdentity(c *gin.Context, tenantID uuid.UUID, actorID, role string) {
	c.Set(contextKeyTenantID, tenantID)
	c.Set(contextKeyActorID, actorID)
	if role != "" {
		c.Set(contextKeyRole, role)
	}
	c.Next()
}

// TenantFromContext returns the authenticated tenant id
func TenantFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(contextKeyTenantID)
	if !ok {
		return uuid.Nil, false
	}
	tenantID, ok := v.(uuid.UUID)
	return tenantID, ok
}

// ActorFromContext returns the authenticated actor id
func ActorFromContext(c *gin.Context) string {
	return c.GetString(contextKeyActorID)
}
