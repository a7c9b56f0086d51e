// Package editor splices uploaded images and attachments into a guide body
// in whatever format the body is stored.
package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"path"
	"regexp"
	"strings"

	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/render"
)

type RefKind string

const (
	RefImage      RefKind = "image"
	RefAttachment RefKind = "attachment"
)

// Reference points at an uploaded blob by its public URL.
type Reference struct {
	Kind RefKind
	URL  string
	Key  string
}

var ErrUnknownFormat = errors.New("unknown body format")

var timestampPrefix = regexp.MustCompile(`^\d+-`)

// DisplayName is the file name shown for a reference, without the upload
// timestamp prefix.
func (r Reference) DisplayName() string {
	return timestampPrefix.ReplaceAllString(path.Base(r.Key), "")
}

// Snippet renders the reference alone in the given format. For rich text it
// is a single JSON node.
func Snippet(format model.BodyFormat, ref Reference) (string, error) {
	name := ref.DisplayName()
	switch format {
	case model.FormatHTML:
		if ref.Kind == RefImage {
			return fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(ref.URL), html.EscapeString(name)), nil
		}
		return fmt.Sprintf(`<attachment-card data-url="%s"></attachment-card>`, html.EscapeString(ref.URL)), nil
	case model.FormatMarkdown:
		label := strings.NewReplacer("[", `\[`, "]", `\]`).Replace(name)
		target := strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29").Replace(ref.URL)
		if ref.Kind == RefImage {
			return fmt.Sprintf("![%s](%s)", label, target), nil
		}
		return fmt.Sprintf("[%s](%s)", label, target), nil
	case model.FormatRichText:
		b, err := json.Marshal(node(ref))
		return string(b), err
	}
	return "", ErrUnknownFormat
}

func node(ref Reference) render.Node {
	if ref.Kind == RefImage {
		return render.Node{Type: "image", Attrs: map[string]interface{}{"src": ref.URL, "alt": ref.DisplayName()}}
	}
	return render.Node{Type: "attachment", Attrs: map[string]interface{}{"fileUrl": ref.URL}}
}

// Embed appends the reference to body and returns the new body.
func Embed(format model.BodyFormat, body string, ref Reference) (string, error) {
	switch format {
	case model.FormatHTML:
		s, _ := Snippet(format, ref)
		return body + s, nil
	case model.FormatMarkdown:
		s, _ := Snippet(format, ref)
		if body == "" {
			return s + "\n", nil
		}
		return strings.TrimRight(body, "\n") + "\n\n" + s + "\n", nil
	case model.FormatRichText:
		return embedRichText(body, ref)
	}
	return "", ErrUnknownFormat
}

func embedRichText(body string, ref Reference) (string, error) {
	doc := render.Node{Type: "doc"}
	if strings.TrimSpace(body) != "" {
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return "", fmt.Errorf("failed to parse rich text document: %w", err)
		}
	}
	doc.Content = append(doc.Content, node(ref))
	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
