package guide

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/store"
	"github.com/falconsupport/api/internal/store/memstore"
	"github.com/falconsupport/api/internal/validator"
)

const admin = "admin@afacademy.af.edu"

func newService(t *testing.T) (*Service, blob.Store) {
	t.Helper()
	blobs, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	return NewService(memstore.New(), blobs, validator.New(), "http://localhost:4000"), blobs
}

func TestListNeverCarriesBody(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	g, err := svc.Create(ctx, Input{Title: "VPN", Format: "markdown", Body: "SECRET-BODY-TEXT", Tags: []string{"network"}}, admin)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := svc.List(ctx, model.GuideQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	raw, _ := json.Marshal(list)
	if strings.Contains(string(raw), "SECRET-BODY-TEXT") || strings.Contains(string(raw), `"body"`) {
		t.Errorf("list payload leaks body: %s", raw)
	}

	detail, err := svc.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.Body != "SECRET-BODY-TEXT" || !strings.Contains(detail.HTML, "SECRET-BODY-TEXT") {
		t.Errorf("detail = %+v", detail)
	}
}

func TestSearchMatchesBodyServerSide(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	svc.Create(ctx, Input{Title: "Printing", Body: "<p>Use the Papercut portal</p>"}, admin)
	svc.Create(ctx, Input{Title: "Email", Body: "<p>Outlook setup</p>", Tags: []string{"O365"}}, admin)

	hits, _ := svc.List(ctx, model.GuideQuery{Search: "papercut"})
	if len(hits) != 1 || hits[0].Title != "Printing" {
		t.Errorf("body search = %+v", hits)
	}
	byTag, _ := svc.List(ctx, model.GuideQuery{Tag: "o365"})
	if len(byTag) != 1 || byTag[0].Title != "Email" {
		t.Errorf("tag filter = %+v", byTag)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	if _, err := svc.Create(ctx, Input{Title: "  "}, admin); !errors.Is(err, validator.ErrInvalid) {
		t.Errorf("blank title err = %v", err)
	}
	if _, err := svc.Create(ctx, Input{Title: "x", Format: "docx"}, admin); !errors.Is(err, validator.ErrInvalid) {
		t.Errorf("bad format err = %v", err)
	}
	if _, err := svc.Create(ctx, Input{Title: "x", Format: "richtext", Document: json.RawMessage(`[1,2`)}, admin); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("bad document err = %v", err)
	}
}

func TestUpdateStampsLastUpdated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	g, _ := svc.Create(ctx, Input{Title: "Old"}, admin)
	first := g.LastUpdated

	updated, err := svc.Update(ctx, g.ID, Input{Title: "New", Format: "markdown", Body: "# New"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "New" || updated.Format != model.FormatMarkdown || updated.LastUpdated.Before(first) {
		t.Errorf("updated = %+v", updated)
	}
	if updated.CreatedBy != admin {
		t.Errorf("createdBy changed to %q", updated.CreatedBy)
	}
	if _, err := svc.Update(ctx, "missing", Input{Title: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("update missing err = %v", err)
	}
}

func TestEditTags(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	g, _ := svc.Create(ctx, Input{Title: "VPN", Tags: []string{"network", "remote"}}, admin)

	got, err := svc.EditTags(ctx, g.ID, TagEdit{Add: []string{"vpn", "network"}, Remove: []string{"remote"}})
	if err != nil {
		t.Fatalf("EditTags: %v", err)
	}
	if !reflect.DeepEqual([]string(got.Tags), []string{"network", "vpn"}) {
		t.Errorf("tags after add/remove = %v", got.Tags)
	}

	text := "wifi, Wi-Fi , , eduroam"
	got, _ = svc.EditTags(ctx, g.ID, TagEdit{Text: &text})
	if !reflect.DeepEqual([]string(got.Tags), []string{"Wi-Fi", "eduroam", "wifi"}) {
		t.Errorf("tags after rewrite = %v", got.Tags)
	}
}

func TestImportMarkdown(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)

	if _, err := svc.Import(ctx, "notes.txt", strings.NewReader("x"), admin); !errors.Is(err, ErrNotMarkdown) {
		t.Errorf("txt import err = %v", err)
	}

	g, err := svc.Import(ctx, "vpn.md", strings.NewReader("intro\n\n# Connecting to VPN\n\nSteps."), admin)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if g.Title != "Connecting to VPN" || g.Format != model.FormatMarkdown {
		t.Errorf("guide = %+v", g)
	}
	key, ok := blob.KeyFromURL("http://localhost:4000", g.FileURL)
	if !ok || !strings.HasPrefix(key, blob.AttachmentPrefix) || !strings.HasSuffix(key, "-vpn.md") {
		t.Fatalf("fileUrl = %q (key %q)", g.FileURL, key)
	}
	if _, err := blobs.Stat(ctx, key); err != nil {
		t.Errorf("imported file not stored: %v", err)
	}

	untitled, _ := svc.Import(ctx, "Printer Help.md", strings.NewReader("no heading"), admin)
	if untitled.Title != "Printer Help" {
		t.Errorf("fallback title = %q", untitled.Title)
	}
}
