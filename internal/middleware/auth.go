package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"logima-backend/internal/auth"
	"logima-backend/internal/config"
	"logima-backend/internal/models"
)

const (
	UserIDKey     = "user_id"
	AuthSourceKey = "auth_source"

	AccessTokenCookie = "access_token"
	CSRFTokenCookie   = "csrf_token"
	CSRFHeader        = "X-CSRF-Token"

	AuthSourceBearer = "bearer"
	AuthSourceCookie = "cookie"
)

// AuthMiddleware accepts a Bearer token or the access_token cookie and stores the
// token subject under UserIDKey.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	secret := []byte(cfg.SecretKey)
	return func(c *gin.Context) {
		tokenString, source := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "not authenticated"})
			return
		}

		sub, err := auth.SubjectFromToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "invalid token",
				Message: err.Error(),
			})
			return
		}

		c.Set(UserIDKey, sub)
		c.Set(AuthSourceKey, source)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, string) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1]), AuthSourceBearer
		}
		return "", ""
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie, AuthSourceCookie
	}
	return "", ""
}
