package handler

import (
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/falconsupport/api/internal/auth"
	"github.com/falconsupport/api/internal/identity"
	"github.com/falconsupport/api/internal/middleware"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

type AuthHandler struct {
	identity     *identity.Service
	sessions     *auth.SessionCodec
	googleConfig *oauth2.Config
	frontendURL  string
}

func NewAuthHandler(identity *identity.Service, sessions *auth.SessionCodec, googleConfig *oauth2.Config, frontendURL string) *AuthHandler {
	return &AuthHandler{
		identity:     identity,
		sessions:     sessions,
		googleConfig: googleConfig,
		frontendURL:  frontendURL,
	}
}

type CredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// Signup registers an institutional account and mails a verification link
func (h *AuthHandler) Signup(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := h.identity.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, identity.ErrDomainNotAllowed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Please use your @" + h.identity.Domain() + " email address."})
			return
		}
		respondError(c, err, "failed to create account")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "message": "verification email sent"})
}

// Login exchanges credentials for tokens and sets the page session cookie
func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	tokens, err := h.identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "failed to sign in")
		return
	}

	h.setSession(c, tokens.AccessToken)
	c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) setSession(c *gin.Context, accessToken string) {
	if h.sessions == nil {
		return
	}
	cookie, err := h.sessions.Cookie(accessToken)
	if err != nil {
		log.Printf("Failed to encode session cookie: %v", err)
		return
	}
	http.SetCookie(c.Writer, cookie)
}

type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	user, err := h.identity.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err, "failed to verify email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "message": "email verified"})
}

type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	if err := h.identity.ResendVerification(c.Request.Context(), req.Email); err != nil {
		log.Printf("Failed to resend verification: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the account exists and is unverified, a new link was sent"})
}

// ForgotPassword always answers 200 so addresses cannot be probed
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	if err := h.identity.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		log.Printf("Failed to start password reset: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the account exists, a reset link was sent"})
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and password are required"})
		return
	}
	if err := h.identity.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err, "failed to reset password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// GoogleAuth redirects to Google OAuth authorization URL
func (h *AuthHandler) GoogleAuth(c *gin.Context) {
	if h.googleConfig == nil || h.googleConfig.ClientID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "google sign-in is not configured"})
		return
	}
	state, err := auth.GenerateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start sign-in"})
		return
	}
	// Store state in cookie for CSRF protection
	c.SetCookie("oauth_state", state, 600, "/", "", false, true)

	authURL := h.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("hd", h.identity.Domain()))
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

func (h *AuthHandler) failRedirect(c *gin.Context, code string) {
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/auth?error="+url.QueryEscape(code))
}

// GoogleCallback handles Google OAuth callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.googleConfig == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "google sign-in is not configured"})
		return
	}

	// Verify state for CSRF protection
	state := c.Query("state")
	savedState, err := c.Cookie("oauth_state")
	if err != nil || state == "" || state != savedState {
		h.failRedirect(c, "invalid_state")
		return
	}
	c.SetCookie("oauth_state", "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		h.failRedirect(c, "no_code")
		return
	}

	token, err := h.googleConfig.Exchange(c.Request.Context(), code)
	if err != nil {
		log.Printf("Failed to exchange code: %v", err)
		h.failRedirect(c, "exchange_failed")
		return
	}

	userInfo, err := auth.GetGoogleUserInfo(c.Request.Context(), h.googleConfig, token)
	if err != nil {
		log.Printf("Failed to get user info: %v", err)
		h.failRedirect(c, "user_info_failed")
		return
	}

	tokens, err := h.identity.GoogleSignIn(c.Request.Context(), userInfo)
	switch {
	case errors.Is(err, identity.ErrDomainNotAllowed):
		h.failRedirect(c, "domain_not_allowed")
		return
	case err != nil:
		log.Printf("Failed to sign in with google: %v", err)
		h.failRedirect(c, "sign_in_failed")
		return
	}

	h.setSession(c, tokens.AccessToken)

	// Redirect to frontend with tokens
	q := url.Values{}
	q.Set("accessToken", tokens.AccessToken)
	q.Set("refreshToken", tokens.RefreshToken)
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/?"+q.Encode())
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken refreshes access token using refresh token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}

	accessToken, _, err := h.identity.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}

	h.setSession(c, accessToken)
	c.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"expiresIn":   int(auth.AccessTokenExpiry.Seconds()),
	})
}

// Logout invalidates refresh token and clears the session cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}

	if err := h.identity.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		log.Printf("Failed to revoke refresh token: %v", err)
	}
	if h.sessions != nil {
		http.SetCookie(c.Writer, h.sessions.Clear())
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

// Me returns current user info
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.identity.Me(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, err, "failed to load user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "admin": p.Admin})
}
