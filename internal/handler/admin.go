package handler

import (
	"net/http"
	"strings"

	"github.com/falconsupport/api/internal/identity"
	"github.com/falconsupport/api/internal/middleware"
	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/store"
	"github.com/falconsupport/api/internal/ticket"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	tickets  *ticket.Service
	identity *identity.Service
}

func NewAdminHandler(tickets *ticket.Service, identity *identity.Service) *AdminHandler {
	return &AdminHandler{tickets: tickets, identity: identity}
}

// Dashboard returns both collections partitioned by status
func (h *AdminHandler) Dashboard(c *gin.Context) {
	d, err := h.tickets.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetStats returns dashboard statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.tickets.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to load stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func requestFilter(c *gin.Context) (store.RequestFilter, bool) {
	var f store.RequestFilter
	if k := c.Query("kind"); k != "" {
		kind, ok := model.ParseKind(k)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
			return f, false
		}
		f.Kind = kind
	}
	if s := c.Query("status"); s != "" {
		if !model.Status(s).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return f, false
		}
		f.Status = model.Status(s)
	}
	return f, true
}

// ListRequests returns requests filtered by kind and status
func (h *AdminHandler) ListRequests(c *gin.Context) {
	f, ok := requestFilter(c)
	if !ok {
		return
	}
	list, err := h.tickets.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, "failed to list requests")
		return
	}
	if list == nil {
		list = []model.Request{}
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "totalCount": len(list)})
}

func (h *AdminHandler) GetRequest(c *gin.Context) {
	r, err := h.tickets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to load request")
		return
	}
	c.JSON(http.StatusOK, r)
}

// UpdateRequest sets priority and/or status and optionally appends a comment
func (h *AdminHandler) UpdateRequest(c *gin.Context) {
	var req ticket.Patch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	p, _ := middleware.CurrentPrincipal(c)
	updated, err := h.tickets.Update(c.Request.Context(), c.Param("id"), req, p.Email)
	if err != nil {
		respondError(c, err, "failed to update request")
		return
	}

	middleware.RecordRequestEvent(string(updated.Kind), "updated")
	c.JSON(http.StatusOK, updated)
}

type AddCommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// AddComment appends one comment atomically
func (h *AdminHandler) AddComment(c *gin.Context) {
	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	p, _ := middleware.CurrentPrincipal(c)
	updated, err := h.tickets.AddComment(c.Request.Context(), c.Param("id"), req.Text, p.Email)
	if err != nil {
		respondError(c, err, "failed to add comment")
		return
	}

	middleware.RecordRequestEvent(string(updated.Kind), "commented")
	c.JSON(http.StatusOK, updated)
}

func (h *AdminHandler) DeleteRequest(c *gin.Context) {
	if err := h.tickets.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "failed to delete request")
		return
	}
	middleware.RecordRequestEvent("", "deleted")
	c.Status(http.StatusNoContent)
}

// ListUsers returns every account with verification and admin state
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.identity.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

type ElevationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *AdminHandler) GrantAdmin(c *gin.Context) {
	h.setAdmin(c, true)
}

func (h *AdminHandler) RevokeAdmin(c *gin.Context) {
	h.setAdmin(c, false)
}

func (h *AdminHandler) setAdmin(c *gin.Context, admin bool) {
	var req ElevationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	p, _ := middleware.CurrentPrincipal(c)
	if !admin && strings.EqualFold(p.Email, req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot revoke your own admin access"})
		return
	}

	listing, err := h.identity.SetAdmin(c.Request.Context(), req.Email, admin)
	if err != nil {
		respondError(c, err, "failed to update admin access")
		return
	}
	c.JSON(http.StatusOK, listing)
}
