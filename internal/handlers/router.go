package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/hive/internal/access"
	"github.com/yukikurage/hive/internal/auth"
	"github.com/yukikurage/hive/internal/logger"
	"github.com/yukikurage/hive/internal/middleware"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Auth    *AuthHandler
	Queries *QueryHandler
	Members *MemberHandler
	Tokens  *auth.TokenManager
	Log     *logger.Logger
	// DB is optional; when set /health reports database reachability.
	DB Pinger
}

// NewRouter builds the gin engine with all routes mounted under /api.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.AccessLog(deps.Log),
		middleware.Recovery(deps.Log),
		middleware.CORS(),
	)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "degraded",
					"message": "database unreachable",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "HIVE API is running",
		})
	})

	requireAuth := middleware.RequireAuth(deps.Tokens)

	api := r.Group("/api")
	{
		// Account routes (public)
		api.POST("/signup", deps.Auth.Signup)
		api.POST("/login", deps.Auth.Login)
		api.POST("/logout", deps.Auth.Logout)
		api.POST("/send-otp", deps.Auth.SendOTP)
		api.POST("/verify-otp", deps.Auth.VerifyOTP)
		api.POST("/reset-password", deps.Auth.ResetPassword)
		api.GET("/me", requireAuth, deps.Auth.GetCurrentUser)

		// Query routes (protected)
		protected := api.Group("")
		protected.Use(requireAuth)
		{
			protected.POST("/add-query", middleware.RequireCapability(access.OpCreateQuery), deps.Queries.AddQuery)
			protected.GET("/queries", middleware.RequireCapability(access.OpViewQueries), deps.Queries.ListQueries)
			protected.GET("/queries/:id", middleware.RequireCapability(access.OpViewQueries), deps.Queries.GetQuery)
			protected.GET("/query-stats", middleware.RequireCapability(access.OpViewQueries), deps.Queries.QueryStats)
			protected.PUT("/queries/:id/assign", middleware.RequireCapability(access.OpAssign), deps.Queries.Assign)
			protected.PUT("/queries/:id/resolve", middleware.RequireCapability(access.OpResolve), deps.Queries.Resolve)
			protected.PUT("/queries/:id/dismantle", middleware.RequireCapability(access.OpDismantle), deps.Queries.Dismantle)
			protected.POST("/queries/:id/suggest-reply", middleware.RequireCapability(access.OpSuggestReply), deps.Queries.SuggestReply)

			protected.GET("/heads", deps.Members.ListHeads)
			protected.GET("/leaderboard", deps.Members.Leaderboard)
		}
	}

	return r
}
