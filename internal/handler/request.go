package handler

import (
	"net/http"
	"time"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/middleware"
	"github.com/falconsupport/api/internal/ticket"
	"github.com/gin-gonic/gin"
)

const maxUploadSize = 10 << 20

type RequestHandler struct {
	tickets *ticket.Service
	blobs   blob.Store
	baseURL string
}

func NewRequestHandler(tickets *ticket.Service, blobs blob.Store, publicBaseURL string) *RequestHandler {
	return &RequestHandler{tickets: tickets, blobs: blobs, baseURL: publicBaseURL}
}

// Submit creates a feature request or bug report for the caller
func (h *RequestHandler) Submit(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req ticket.Submission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.tickets.Submit(c.Request.Context(), ticket.Submitter{UserID: p.UserID, Email: p.Email}, req)
	if err != nil {
		respondError(c, err, "failed to submit request")
		return
	}

	middleware.RecordRequestEvent(string(created.Kind), "submitted")
	c.JSON(http.StatusCreated, created)
}

// Mine lists the caller's own submissions
func (h *RequestHandler) Mine(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	list, err := h.tickets.Mine(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, err, "failed to list requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "totalCount": len(list)})
}

// UploadAttachment stores a file to reference from a submission
func (h *RequestHandler) UploadAttachment(c *gin.Context) {
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

	key := blob.RequestAttachmentKey(time.Now(), fh.Filename)
	obj, err := h.blobs.Put(c.Request.Context(), key, f)
	if err != nil {
		respondError(c, err, "failed to store attachment")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": obj.Key, "url": blob.URL(h.baseURL, obj.Key), "size": obj.Size})
}
