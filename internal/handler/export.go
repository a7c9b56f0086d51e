package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/ticket"
	"github.com/gin-gonic/gin"
)

type ExportHandler struct {
	tickets *ticket.Service
}

func NewExportHandler(tickets *ticket.Service) *ExportHandler {
	return &ExportHandler{tickets: tickets}
}

// Export downloads requests (filtered like ListRequests) as json, csv or md
func (h *ExportHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	f, ok := requestFilter(c)
	if !ok {
		return
	}

	list, err := h.tickets.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, "failed to export requests")
		return
	}

	name := "requests-" + time.Now().Format("20060102")
	switch format {
	case "json":
		h.exportJSON(c, name, list)
	case "csv":
		h.exportCSV(c, name, list)
	case "md", "markdown":
		h.exportMarkdown(c, name, list)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format. Use json, csv, or md"})
	}
}

func (h *ExportHandler) exportJSON(c *gin.Context, name string, list []model.Request) {
	if list == nil {
		list = []model.Request{}
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", name))
	c.JSON(http.StatusOK, list)
}

func (h *ExportHandler) exportCSV(c *gin.Context, name string, list []model.Request) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	// Header
	writer.Write([]string{"ID", "Collection", "Title", "Priority", "Status", "Submitted By", "Rank", "Job Title", "Submitted", "Comments"})

	for _, r := range list {
		writer.Write([]string{
			r.ID,
			r.Kind.Collection(),
			r.Title,
			string(r.Priority),
			string(r.Status),
			r.UserEmail,
			r.UserRank,
			r.JobTitle,
			r.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%d", len(r.Comments)),
		})
	}

	writer.Flush()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", name))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (h *ExportHandler) exportMarkdown(c *gin.Context, name string, list []model.Request) {
	var buf bytes.Buffer

	buf.WriteString("# Requests\n\n")
	buf.WriteString(fmt.Sprintf("**Exported:** %s\n\n", time.Now().Format("2006-01-02 15:04:05")))

	for _, r := range list {
		buf.WriteString(fmt.Sprintf("## %s\n\n", r.Title))
		buf.WriteString(fmt.Sprintf("**Collection:** %s | **Priority:** %s | **Status:** %s\n\n", r.Kind.Collection(), r.Priority, r.Status))
		buf.WriteString(fmt.Sprintf("**Submitted:** %s by %s %s (%s)\n\n", r.Timestamp.Format("2006-01-02 15:04"), r.UserRank, r.UserName, r.UserEmail))
		buf.WriteString(r.Description + "\n\n")

		for _, cm := range r.Comments {
			buf.WriteString(fmt.Sprintf("> %s — %s, %s\n\n", cm.Text, cm.AuthorEmail, cm.Timestamp.Format("2006-01-02 15:04")))
		}

		buf.WriteString("---\n\n")
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.md", name))
	c.Data(http.StatusOK, "text/markdown", buf.Bytes())
}
