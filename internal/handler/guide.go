package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/falconsupport/api/internal/guide"
	"github.com/falconsupport/api/internal/middleware"
	"github.com/falconsupport/api/internal/model"
	"github.com/gin-gonic/gin"
)

type GuideHandler struct {
	guides *guide.Service
}

func NewGuideHandler(guides *guide.Service) *GuideHandler {
	return &GuideHandler{guides: guides}
}

// List returns guide metadata; bodies are fetched one at a time with Get
func (h *GuideHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	q := model.GuideQuery{
		Search: strings.TrimSpace(c.Query("q")),
		Tag:    strings.TrimSpace(c.Query("tag")),
		Limit:  limit,
	}

	list, err := h.guides.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err, "failed to list guides")
		return
	}

	middleware.RecordGuideSearch(q.Search != "", q.Tag != "")
	c.JSON(http.StatusOK, gin.H{"data": list, "totalCount": len(list)})
}

func (h *GuideHandler) Get(c *gin.Context) {
	detail, err := h.guides.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to load guide")
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *GuideHandler) Create(c *gin.Context) {
	var req guide.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	p, _ := middleware.CurrentPrincipal(c)
	g, err := h.guides.Create(c.Request.Context(), req, p.Email)
	if err != nil {
		respondError(c, err, "failed to create guide")
		return
	}

	middleware.RecordGuideMutation("create")
	c.JSON(http.StatusCreated, g)
}

func (h *GuideHandler) Update(c *gin.Context) {
	var req guide.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	g, err := h.guides.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err, "failed to update guide")
		return
	}

	middleware.RecordGuideMutation("update")
	c.JSON(http.StatusOK, g)
}

// EditTags applies {add, remove} or rewrites from {text}
func (h *GuideHandler) EditTags(c *gin.Context) {
	var req guide.TagEdit
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	g, err := h.guides.EditTags(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err, "failed to update tags")
		return
	}

	middleware.RecordGuideMutation("tags")
	c.JSON(http.StatusOK, g)
}

func (h *GuideHandler) Delete(c *gin.Context) {
	if err := h.guides.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "failed to delete guide")
		return
	}
	middleware.RecordGuideMutation("delete")
	c.Status(http.StatusNoContent)
}

// Import turns an uploaded .md file into a markdown guide
func (h *GuideHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	p, _ := middleware.CurrentPrincipal(c)
	g, err := h.guides.Import(c.Request.Context(), fh.Filename, f, p.Email)
	if err != nil {
		respondError(c, err, "failed to import guide")
		return
	}

	middleware.RecordGuideMutation("import")
	c.JSON(http.StatusCreated, g)
}
