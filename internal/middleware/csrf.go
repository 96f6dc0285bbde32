package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"logima-backend/internal/models"
)

// CSRFMiddleware enforces the double submit check on unsafe methods for requests
// authenticated by cookie. It must run after AuthMiddleware.
func CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if c.GetString(AuthSourceKey) == AuthSourceBearer {
			c.Next()
			return
		}

		cookie, _ := c.Cookie(CSRFTokenCookie)
		header := c.GetHeader(CSRFHeader)
		if cookie == "" || header == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: "CSRF validation failed"})
			return
		}
		c.Next()
	}
}
