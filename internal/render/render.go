// Package render turns a guide body, whatever format it was stored in, into
// one sanitized HTML string.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/falconsupport/api/internal/model"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown

	policyOnce sync.Once
	policy     *bluemonday.Policy

	// chroma token classes and the language-* class on plain code
	codeClass = regexp.MustCompile(`^[a-z][a-z0-9-]{0,31}$`)
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			// Raw HTML passes through here and is cleaned by the policy.
			goldmark.WithRendererOptions(html.WithUnsafe()),
			highlightOption(),
		)
	})
	return markdown
}

// Policy is UGC sanitizing plus the attachment card element the editor emits.
func Policy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowElements("attachment-card", "u")
		p.AllowAttrs("data-url").OnElements("attachment-card")
		p.AllowAttrs("target").Matching(bluemonday.SpaceSeparatedTokens).OnElements("a")
		p.AllowAttrs("class").Matching(codeClass).OnElements("pre", "code", "span")
		p.RequireNoReferrerOnLinks(true)
		policy = p
	})
	return policy
}

func Markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := getMarkdown().Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return Policy().Sanitize(buf.String()), nil
}

func HTML(src string) string {
	return Policy().Sanitize(src)
}

// RichText renders an editor document (a tree of typed nodes with marks).
func RichText(doc []byte) (string, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return "", nil
	}
	var root Node
	if err := json.Unmarshal(doc, &root); err != nil {
		return "", fmt.Errorf("failed to parse rich text document: %w", err)
	}
	var buf bytes.Buffer
	writeNode(&buf, &root)
	return Policy().Sanitize(buf.String()), nil
}

// Resolve picks the renderer for the guide's format. A rich-text guide with
// no document falls back to its body as HTML.
func Resolve(g *model.Guide) (string, error) {
	switch g.Format {
	case model.FormatMarkdown:
		return Markdown(g.Body)
	case model.FormatRichText:
		if len(g.Document) > 0 && string(g.Document) != "null" {
			return RichText(g.Document)
		}
		return HTML(g.Body), nil
	default:
		return HTML(g.Body), nil
	}
}
