package apikeys

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/forgeflow/forgeflow/pkg/forgeflow/auth"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// abortWithAuthError translates a credential failure into the HTTP response
// and aborts the request.
func abortWithAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMissingCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
	case errors.Is(err, ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not available"})
	default:
		// Invalid, expired and orphaned keys get the same response
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired API key"})
	}
	c.Abort()
}

// CombinedAuthMiddleware returns a middleware that authenticates via JWT or API key.
// Both are passed in the Authorization header as "Bearer <token>".
// JWTs contain dots, API keys are hex strings without dots.
func CombinedAuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c)
		if !ok {
			abortWithAuthError(c, ErrMissingCredential)
			return
		}

		// Try JWT first (JWTs contain dots)
		if strings.Contains(token, ".") {
			claims, err := auth.ValidateToken(token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				c.Abort()
				return
			}

			c.Set(auth.ContextKeyUserID, claims.UserID)
			c.Set(auth.ContextKeyEmail, claims.Email)
			c.Next()
			return
		}

		// Try API key (hex string without dots)
		user, err := Authenticate(db, token, time.Now().UTC())
		if err != nil {
			abortWithAuthError(c, err)
			return
		}

		c.Set(auth.ContextKeyUserID, user.ID)
		c.Set(auth.ContextKeyEmail, user.Email)

		c.Next()
	}
}
