package handler

import (
	"net/http"

	"github.com/falconsupport/api/internal/auth"
	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/guide"
	"github.com/falconsupport/api/internal/identity"
	"github.com/falconsupport/api/internal/middleware"
	"github.com/falconsupport/api/internal/ratelimit"
	"github.com/falconsupport/api/internal/ticket"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
)

// StatusReporter is satisfied by background jobs exposing their state.
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

type Deps struct {
	Identity      *identity.Service
	Tickets       *ticket.Service
	Guides        *guide.Service
	Blobs         blob.Store
	Limiter       *ratelimit.Limiter
	Sessions      *auth.SessionCodec
	GoogleConfig  *oauth2.Config
	JWTSecret     string
	FrontendURL   string
	PublicBaseURL string
	Sweeper       StatusReporter
}

// NewRouter builds the API, file and page routes.
func NewRouter(d Deps) *gin.Engine {
	authHandler := NewAuthHandler(d.Identity, d.Sessions, d.GoogleConfig, d.FrontendURL)
	requestHandler := NewRequestHandler(d.Tickets, d.Blobs, d.PublicBaseURL)
	adminHandler := NewAdminHandler(d.Tickets, d.Identity)
	exportHandler := NewExportHandler(d.Tickets)
	guideHandler := NewGuideHandler(d.Guides)
	uploadHandler := NewUploadHandler(d.Blobs, d.PublicBaseURL)

	requireAuth := middleware.AuthMiddleware(d.JWTSecret, d.Sessions)
	requireAdmin := middleware.AdminMiddleware(d.JWTSecret, d.Sessions)
	limit := func(action string) gin.HandlerFunc {
		return middleware.RateLimit(d.Limiter, action)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.CORS(d.FrontendURL))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/scheduler/status", func(c *gin.Context) {
		if d.Sweeper != nil {
			c.JSON(http.StatusOK, d.Sweeper.GetStatus())
		} else {
			c.JSON(http.StatusOK, gin.H{"enabled": false, "message": "Sweeper is disabled"})
		}
	})

	r.GET("/files/*key", uploadHandler.Serve)
	r.GET("/assets/code.css", CodeStylesheet)

	// Google sign-in redirects live outside /api
	r.GET("/auth/google", authHandler.GoogleAuth)
	r.GET("/auth/google/callback", authHandler.GoogleCallback)

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", limit(ratelimit.ActionSignup), authHandler.Signup)
			authGroup.POST("/login", limit(ratelimit.ActionLogin), authHandler.Login)
			authGroup.POST("/verify", authHandler.VerifyEmail)
			authGroup.POST("/resend-verification", limit(ratelimit.ActionSignup), authHandler.ResendVerification)
			authGroup.POST("/forgot-password", limit(ratelimit.ActionPasswordReset), authHandler.ForgotPassword)
			authGroup.POST("/reset-password", limit(ratelimit.ActionPasswordReset), authHandler.ResetPassword)
			authGroup.POST("/refresh", authHandler.RefreshToken)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.GET("/me", requireAuth, authHandler.Me)
		}

		// Guide reads are available to any signed-in user
		guides := api.Group("/guides", requireAuth)
		{
			guides.GET("", guideHandler.List)
			guides.GET("/:id", guideHandler.Get)
		}

		api.POST("/requests", requireAuth, limit(ratelimit.ActionSubmit), requestHandler.Submit)
		api.GET("/requests/mine", requireAuth, requestHandler.Mine)
		api.POST("/uploads/attachment", requireAuth, limit(ratelimit.ActionSubmit), requestHandler.UploadAttachment)

		admin := api.Group("/admin", requireAdmin)
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/stats", adminHandler.GetStats)
			admin.GET("/export", exportHandler.Export)

			admin.GET("/requests", adminHandler.ListRequests)
			admin.GET("/requests/:id", adminHandler.GetRequest)
			admin.PATCH("/requests/:id", adminHandler.UpdateRequest)
			admin.POST("/requests/:id/comments", adminHandler.AddComment)
			admin.DELETE("/requests/:id", adminHandler.DeleteRequest)

			admin.POST("/guides", guideHandler.Create)
			admin.POST("/guides/import", guideHandler.Import)
			admin.PUT("/guides/:id", guideHandler.Update)
			admin.PATCH("/guides/:id/tags", guideHandler.EditTags)
			admin.DELETE("/guides/:id", guideHandler.Delete)

			admin.POST("/uploads/image", uploadHandler.Image)
			admin.POST("/uploads/attachment", uploadHandler.Attachment)

			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users/grant", adminHandler.GrantAdmin)
			admin.POST("/users/revoke", adminHandler.RevokeAdmin)
		}
	}

	optional := middleware.OptionalAuthMiddleware(d.JWTSecret, d.Sessions)
	for _, p := range PublicPages {
		r.GET(p.Path, optional, p.Render())
	}
	sessionGate := middleware.PageGate(d.JWTSecret, d.Sessions, false)
	for _, p := range SessionPages {
		r.GET(p.Path, sessionGate, p.Render())
	}
	adminGate := middleware.PageGate(d.JWTSecret, d.Sessions, true)
	for _, p := range AdminPages {
		r.GET(p.Path, adminGate, p.Render())
	}

	return r
}
