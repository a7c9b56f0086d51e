package middleware

import (
	"net/http"
	"strings"

	"github.com/falconsupport/api/internal/auth"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// bearerToken returns the token from the Authorization header, falling back
// to the session cookie when sessions is set.
func bearerToken(c *gin.Context, sessions *auth.SessionCodec) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", "invalid authorization header format"
		}
		return parts[1], ""
	}
	if sessions != nil {
		if token, ok := sessions.Token(c.Request); ok {
			return token, ""
		}
	}
	return "", "authorization header required"
}

func authenticate(c *gin.Context, jwtSecret string, sessions *auth.SessionCodec) (*auth.Claims, bool) {
	token, problem := bearerToken(c, sessions)
	if problem != "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": problem})
		c.Abort()
		return nil, false
	}

	claims, err := auth.ValidateAccessToken(token, jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		c.Abort()
		return nil, false
	}

	setPrincipal(c, claims)
	return claims, true
}

func setPrincipal(c *gin.Context, claims *auth.Claims) {
	c.Set(principalKey, claims.Principal())
	c.Set("userID", claims.UserID)
	c.Set("userEmail", claims.Email)
}

// CurrentPrincipal returns the caller set by one of the auth middlewares.
func CurrentPrincipal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

// AuthMiddleware requires a valid JWT token
func AuthMiddleware(jwtSecret string, sessions *auth.SessionCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticate(c, jwtSecret, sessions); !ok {
			return
		}
		c.Next()
	}
}

// AdminMiddleware requires a valid JWT token carrying the admin claim
func AdminMiddleware(jwtSecret string, sessions *auth.SessionCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, jwtSecret, sessions)
		if !ok {
			return
		}
		if !claims.Admin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware extracts user info if token is present, but doesn't require it
func OptionalAuthMiddleware(jwtSecret string, sessions *auth.SessionCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c, sessions)
		if problem == "" {
			if claims, err := auth.ValidateAccessToken(token, jwtSecret); err == nil {
				setPrincipal(c, claims)
			}
		}
		c.Next()
	}
}
