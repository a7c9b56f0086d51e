package main

import (
	"context"
	"strings"
	"testing"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/model"
	"gorm.io/datatypes"
)

func types(issues []Issue) map[string]bool {
	out := make(map[string]bool)
	for _, i := range issues {
		out[i.Type] = true
	}
	return out
}

func TestAuditGuide(t *testing.T) {
	ctx := context.Background()
	blobs, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	blobs.Put(ctx, "images/present.png", strings.NewReader("png"))
	a := &Auditor{blobs: blobs}

	clean := model.Guide{
		ID:     "g1",
		Title:  "Clean",
		Format: model.FormatHTML,
		Body:   `<img src="http://api.test/files/images/present.png">`,
	}
	if issues := a.Guide(ctx, clean); len(issues) != 0 {
		t.Errorf("clean guide issues = %+v", issues)
	}

	broken := model.Guide{
		ID:     "g2",
		Title:  "Broken",
		Format: model.FormatMarkdown,
		Body:   "![gone](http://api.test/files/images/gone.png)",
	}
	if got := types(a.Guide(ctx, broken)); !got["MISSING_BLOB"] {
		t.Errorf("missing blob not flagged: %v", got)
	}

	badDoc := model.Guide{ID: "g3", Title: "Doc", Format: model.FormatRichText, Document: datatypes.JSON(`{"type":`)}
	if got := types(a.Guide(ctx, badDoc)); !got["INVALID_DOCUMENT"] {
		t.Errorf("invalid document not flagged: %v", got)
	}
}

func TestAuditRequest(t *testing.T) {
	ctx := context.Background()
	blobs, _ := blob.NewDiskStore(t.TempDir())
	a := &Auditor{blobs: blobs}

	r := model.Request{
		ID:          "r1",
		Kind:        model.KindBug,
		Title:       "Crash",
		Description: "on save",
		Priority:    model.PriorityLow,
		Status:      "archived",
		Attachment:  "requestAttachments/1-missing.log",
	}
	got := types(a.Request(ctx, r))
	if !got["UNKNOWN_STATUS"] || !got["MISSING_ATTACHMENT"] {
		t.Errorf("issues = %v", got)
	}
	if got["UNKNOWN_PRIORITY"] || got["UNKNOWN_KIND"] {
		t.Errorf("valid fields flagged: %v", got)
	}
}
