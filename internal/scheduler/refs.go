package scheduler

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/store"
)

var fileRef = regexp.MustCompile(`/files/([^\s"'()<>\\]+)`)

// KeysIn extracts every blob key linked from text through a /files/ URL.
// It works on HTML, markdown and serialized rich text alike.
func KeysIn(text string) []string {
	var keys []string
	for _, m := range fileRef.FindAllStringSubmatch(text, -1) {
		key, err := url.PathUnescape(m[1])
		if err != nil || blob.ValidateKey(key) != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// GuideKeys lists the blobs a guide depends on.
func GuideKeys(g model.Guide) []string {
	keys := KeysIn(g.Body)
	keys = append(keys, KeysIn(string(g.Document))...)
	keys = append(keys, KeysIn(g.FileURL)...)
	return keys
}

// RequestKey returns the attachment key of a request, if any. Older records
// may hold the full URL instead of the key.
func RequestKey(r model.Request) (string, bool) {
	a := strings.TrimSpace(r.Attachment)
	if a == "" {
		return "", false
	}
	if keys := KeysIn(a); len(keys) > 0 {
		return keys[0], true
	}
	if blob.ValidateKey(a) != nil {
		return "", false
	}
	return a, true
}

// References collects the set of blob keys still linked from any record.
func References(ctx context.Context, guides store.GuideStore, requests store.RequestStore) (map[string]bool, error) {
	refs := make(map[string]bool)

	all, err := guides.AllGuides(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range all {
		for _, k := range GuideKeys(g) {
			refs[k] = true
		}
	}

	reqs, err := requests.ListRequests(ctx, store.RequestFilter{})
	if err != nil {
		return nil, err
	}
	for _, r := range reqs {
		if k, ok := RequestKey(r); ok {
			refs[k] = true
		}
	}
	return refs, nil
}
