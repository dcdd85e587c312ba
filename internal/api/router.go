package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"estatehub/api/internal/api/handlers"
	"estatehub/api/internal/api/middleware"
	"estatehub/api/internal/config"
	"estatehub/api/internal/email"
)

// Handlers groups what the public router dispatches to.
type Handlers struct {
	Listings    *handlers.ListingHandler
	Auth        *handlers.AuthHandler
	Verifier    middleware.IIdentityVerifier
	RateLimiter *middleware.RateLimiterMiddleware
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.Default()

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	if h.RateLimiter != nil {
		r.Use(h.RateLimiter.Limit())
	}

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
		v1.POST("/auth/login", h.Auth.Login)

		// Reads are open to anonymous callers but see more when signed in.
		public := v1.Group("/")
		public.Use(middleware.OptionalAuth(h.Verifier))
		{
			public.GET("/listings", h.Listings.SearchListings)
			public.GET("/listings/:id", h.Listings.GetListing)
		}

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(h.Verifier))
		{
			authRequired.POST("/listings", h.Listings.CreateListing)
			authRequired.PATCH("/listings/:id", h.Listings.UpdateListing)
			authRequired.DELETE("/listings/:id", h.Listings.DeleteListing)
			authRequired.POST("/listings/:id/favorite", h.Listings.ToggleFavorite)
			authRequired.POST("/listings/:id/images", h.Listings.RequestImageUpload)
			authRequired.POST("/listings/:id/images/complete", h.Listings.CompleteImageUpload)
			authRequired.GET("/users/me/favorites", h.Listings.MyFavorites)
		}
	}

	log.Printf("Router ready (mode %s)", cfg.RunMode)
	return r
}

// SetupServiceRouter configures and returns the service Gin engine used by
// operators and end-to-end tests.
func SetupServiceRouter(rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled.")
			}
		case "getTestEmail":
			var args []string // ["kind", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			getTestEmail(c, rdb, email.MockEmailKey(args[1], args[0]))
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// getTestEmail polls Redis briefly for a mocked message, since notices are
// sent by a worker after the request that triggered them has returned.
func getTestEmail(c *gin.Context, rdb *redis.Client, key string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var raw string
	found := false
	for i := 0; i < 10; i++ {
		var err error
		raw, err = rdb.Get(ctx, key).Result()
		if err == nil {
			found = true
			rdb.Del(ctx, key)
			break
		}
		if err != redis.Nil {
			log.Printf("ERROR: Service API: reading %s from Redis: %v", key, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", key)})
		return
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		log.Printf("ERROR: Service API: decoding %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}
