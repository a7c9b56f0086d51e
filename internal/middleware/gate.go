package middleware

import (
	"net/http"

	"github.com/falconsupport/api/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	LoginRoute   = "/auth"
	LandingRoute = "/"
)

// PageGate guards routed pages. Without a live session it redirects to the
// login route; when requireAdmin is set and the admin claim is absent it
// redirects to the landing route. It never explains why.
func PageGate(jwtSecret string, sessions *auth.SessionCodec, requireAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c, sessions)
		if problem != "" {
			c.Redirect(http.StatusFound, LoginRoute)
			c.Abort()
			return
		}

		claims, err := auth.ValidateAccessToken(token, jwtSecret)
		if err != nil {
			c.Redirect(http.StatusFound, LoginRoute)
			c.Abort()
			return
		}

		if requireAdmin && !claims.Admin {
			c.Redirect(http.StatusFound, LandingRoute)
			c.Abort()
			return
		}

		setPrincipal(c, claims)
		c.Next()
	}
}
