package handlers

import (
	"log"

	"github.com/gin-gonic/gin"

	"estatehub/api/internal/api/middleware"
	"estatehub/api/internal/apperr"
	"estatehub/api/internal/auth"
)

// respondError maps a classified error to its status and JSON body.
// Internal detail is logged, never returned.
func respondError(c *gin.Context, err error) {
	e := apperr.From(err)
	_ = c.Error(err)
	if e.Kind == apperr.Internal {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}

	body := gin.H{"error": e.PublicMessage()}
	if len(e.Fields) > 0 {
		body["details"] = e.Fields
	}
	c.AbortWithStatusJSON(e.Kind.HTTPStatus(), body)
}

// actor returns the authenticated caller. Routes using it sit behind
// AuthMiddleware, so a missing identity is a wiring fault.
func actor(c *gin.Context) (auth.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		respondError(c, apperr.NewUnauthenticated("no identity on request"))
	}
	return identity, ok
}

// viewer returns the caller if there is one.
func viewer(c *gin.Context) *auth.Identity {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return nil
	}
	return &identity
}
