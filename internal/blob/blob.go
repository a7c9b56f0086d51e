// Package blob stores uploaded images and guide attachments under
// slash-separated keys and hands out public URLs for them.
package blob

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

const (
	ImagePrefix             = "images/"
	AttachmentPrefix        = "guideAttachments/"
	RequestAttachmentPrefix = "requestAttachments/"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// Object describes a stored blob.
type Object struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	ETag    string    `json:"etag"`
}

type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (*Object, error)
	Open(ctx context.Context, key string) (io.ReadSeekCloser, *Object, error)
	Stat(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// CleanName reduces an uploaded filename to a single safe path segment.
func CleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case r == '/', r == ':':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// ImageKey is images/<filename>. Re-uploading the same name overwrites.
func ImageKey(filename string) string {
	return ImagePrefix + CleanName(filename)
}

// AttachmentKey is guideAttachments/<unix millis>-<filename>.
func AttachmentKey(now time.Time, filename string) string {
	return fmt.Sprintf("%s%d-%s", AttachmentPrefix, now.UnixMilli(), CleanName(filename))
}

// RequestAttachmentKey is requestAttachments/<unix millis>-<filename>, for
// files submitted alongside a feature request or bug report.
func RequestAttachmentKey(now time.Time, filename string) string {
	return fmt.Sprintf("%s%d-%s", RequestAttachmentPrefix, now.UnixMilli(), CleanName(filename))
}

// ValidateKey rejects empty, absolute and traversing keys.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

// URL is the public download URL for key under baseURL.
func URL(baseURL, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(baseURL, "/") + "/files/" + strings.Join(segs, "/")
}

// KeyFromURL recovers the key from a URL produced by URL. ok is false for
// URLs that do not point into this store.
func KeyFromURL(baseURL, raw string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/files/"
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(raw, prefix))
	if err != nil || ValidateKey(key) != nil {
		return "", false
	}
	return key, true
}

// ETag hashes content with BLAKE3 and returns a strong, quoted entity tag.
func ETag(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return etagFromSum(h.Sum(nil)), nil
}

func etagFromSum(sum []byte) string {
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
