package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey carries the static admin key.
const HeaderAPIKey = "X-API-Key"

// Admin holds the credentials guarding administrative routes.
type Admin struct {
	APIKey     string
	SigningKey string
	Issuer     string
}

// Enabled reports whether an admin key is configured.
func (a Admin) Enabled() bool { return a.APIKey != "" }

// CheckKey compares key with the configured admin key.
func (a Admin) CheckKey(key string) bool {
	return a.Enabled() && subtle.ConstantTimeCompare([]byte(key), []byte(a.APIKey)) == 1
}

// RequireAPIKey enforces the X-API-Key header. It is a no-op when no key is configured.
func (a Admin) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() || a.CheckKey(c.GetHeader(HeaderAPIKey)) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key."})
	}
}

// RequireAdmin accepts either the X-API-Key header or a bearer JWT minted from it.
// It is a no-op when no key is configured.
func (a Admin) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() || a.CheckKey(c.GetHeader(HeaderAPIKey)) {
			c.Next()
			return
		}
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token or api key"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, a.SigningKey, a.Issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}
