package handler

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/editor"
	"github.com/falconsupport/api/internal/model"
	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	blobs   blob.Store
	baseURL string
}

func NewUploadHandler(blobs blob.Store, publicBaseURL string) *UploadHandler {
	return &UploadHandler{blobs: blobs, baseURL: publicBaseURL}
}

// Image stores an editor image under images/<filename>
func (h *UploadHandler) Image(c *gin.Context) {
	h.upload(c, editor.RefImage, func(name string) string { return blob.ImageKey(name) })
}

// Attachment stores an editor attachment under guideAttachments/<millis>-<filename>
func (h *UploadHandler) Attachment(c *gin.Context) {
	h.upload(c, editor.RefAttachment, func(name string) string { return blob.AttachmentKey(time.Now(), name) })
}

// upload stores the file and answers with its key, URL and a snippet in
// the requested format. If the form also carries a body, the reference is
// spliced into it.
func (h *UploadHandler) upload(c *gin.Context, kind editor.RefKind, keyFor func(string) string) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if kind == editor.RefImage && !strings.HasPrefix(mime.TypeByExtension(path.Ext(fh.Filename)), "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "images must have an image file extension"})
		return
	}

	format := model.BodyFormat(c.DefaultPostForm("format", string(model.FormatHTML)))
	if !format.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid format"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	obj, err := h.blobs.Put(c.Request.Context(), keyFor(fh.Filename), f)
	if err != nil {
		respondError(c, err, "failed to store upload")
		return
	}

	ref := editor.Reference{Kind: kind, URL: blob.URL(h.baseURL, obj.Key), Key: obj.Key}
	snippet, _ := editor.Snippet(format, ref)
	resp := gin.H{"key": obj.Key, "url": ref.URL, "snippet": snippet, "size": obj.Size}

	if body, ok := c.GetPostForm("body"); ok {
		embedded, err := editor.Embed(format, body, ref)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "key": obj.Key, "url": ref.URL})
			return
		}
		resp["body"] = embedded
	}

	c.JSON(http.StatusCreated, resp)
}

// Serve streams a blob with a BLAKE3 ETag so clients can revalidate
func (h *UploadHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	f, obj, err := h.blobs.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidKey) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		respondError(c, err, "failed to open file")
		return
	}
	defer f.Close()

	c.Header("ETag", obj.ETag)
	c.Header("Cache-Control", "public, max-age=300")
	if strings.HasPrefix(key, blob.AttachmentPrefix) || strings.HasPrefix(key, blob.RequestAttachmentPrefix) {
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": editor.Reference{Key: key}.DisplayName(),
		}))
	}
	http.ServeContent(c.Writer, c.Request, path.Base(key), obj.ModTime, f)
}
