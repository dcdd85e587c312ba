package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"estatehub/api/internal/auth"
)

// ContextKeyIdentity holds the verified caller in the Gin context.
const ContextKeyIdentity = "identity"

// IIdentityVerifier turns an Authorization header value into an identity.
type IIdentityVerifier interface {
	Verify(token string) (auth.Identity, error)
}

func unauthorized(c *gin.Context, err error) {
	log.Printf("Rejected credential for %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}

// AuthMiddleware requires a valid bearer token.
func AuthMiddleware(verifier IIdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.Verify(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, err)
			return
		}
		c.Set(ContextKeyIdentity, identity)
		c.Next()
	}
}

// OptionalAuth lets anonymous requests through but still rejects a token
// that is present and invalid.
func OptionalAuth(verifier IIdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		identity, err := verifier.Verify(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, err)
			return
		}
		c.Set(ContextKeyIdentity, identity)
		c.Next()
	}
}

// IdentityFrom returns the caller set by AuthMiddleware or OptionalAuth.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ContextKeyIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}
