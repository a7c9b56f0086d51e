package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/render"
	"github.com/falconsupport/api/internal/scheduler"
)

type Issue struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Type    string `json:"type"`
	Details string `json:"details"`
}

// Auditor checks stored records against the blob store.
type Auditor struct {
	blobs blob.Store
}

func (a *Auditor) missing(ctx context.Context, key string) bool {
	_, err := a.blobs.Stat(ctx, key)
	return errors.Is(err, blob.ErrNotFound)
}

func (a *Auditor) Guide(ctx context.Context, g model.Guide) []Issue {
	var issues []Issue
	add := func(typ, details string) {
		issues = append(issues, Issue{Kind: "guide", ID: g.ID, Type: typ, Details: details})
	}

	if !g.Format.Valid() {
		add("UNKNOWN_FORMAT", fmt.Sprintf("Format '%s' is not html, markdown or richtext", g.Format))
	}

	switch g.Format {
	case model.FormatRichText:
		if len(g.Document) == 0 {
			add("EMPTY_BODY", "Rich-text guide has no document")
		} else if _, err := render.RichText(g.Document); err != nil {
			add("INVALID_DOCUMENT", fmt.Sprintf("Document does not parse: %v", err))
		}
	default:
		if strings.TrimSpace(g.Body) == "" && g.FileURL == "" {
			add("EMPTY_BODY", "Guide has neither body nor source file")
		}
	}

	if strings.TrimSpace(g.Title) == "" {
		add("EMPTY_TITLE", "Guide title is empty")
	}

	seen := make(map[string]bool)
	for _, key := range scheduler.GuideKeys(g) {
		if seen[key] {
			continue
		}
		seen[key] = true
		if a.missing(ctx, key) {
			add("MISSING_BLOB", fmt.Sprintf("Referenced file '%s' does not exist", key))
		}
	}
	return issues
}

func (a *Auditor) Request(ctx context.Context, r model.Request) []Issue {
	var issues []Issue
	add := func(typ, details string) {
		issues = append(issues, Issue{Kind: "request", ID: r.ID, Type: typ, Details: details})
	}

	if !r.Kind.Valid() {
		add("UNKNOWN_KIND", fmt.Sprintf("Kind '%s' is not feature or bug", r.Kind))
	}
	if !r.Status.Valid() {
		add("UNKNOWN_STATUS", fmt.Sprintf("Status '%s' is not a known status", r.Status))
	}
	if !r.Priority.Valid() {
		add("UNKNOWN_PRIORITY", fmt.Sprintf("Priority '%s' is not a known priority", r.Priority))
	}
	if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Description) == "" {
		add("MISSING_FIELDS", "Title or description is empty")
	}

	if key, ok := scheduler.RequestKey(r); ok && a.missing(ctx, key) {
		add("MISSING_ATTACHMENT", fmt.Sprintf("Attachment '%s' does not exist", key))
	} else if !ok && r.Attachment != "" {
		add("INVALID_ATTACHMENT", fmt.Sprintf("Attachment '%s' is not a blob key", r.Attachment))
	}
	return issues
}

// GroupByType buckets issues for the summary.
func GroupByType(issues []Issue) map[string][]Issue {
	out := make(map[string][]Issue)
	for _, issue := range issues {
		out[issue.Type] = append(out[issue.Type], issue)
	}
	return out
}
