package editor

import (
	"strings"
	"testing"

	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/render"
)

var attachment = Reference{
	Kind: RefAttachment,
	URL:  "http://localhost:4000/files/guideAttachments/1700000000000-VPN%20Setup.pdf",
	Key:  "guideAttachments/1700000000000-VPN Setup.pdf",
}

var image = Reference{
	Kind: RefImage,
	URL:  "http://localhost:4000/files/images/diagram.png",
	Key:  "images/diagram.png",
}

func TestDisplayNameDropsTimestamp(t *testing.T) {
	if got := attachment.DisplayName(); got != "VPN Setup.pdf" {
		t.Errorf("DisplayName = %q", got)
	}
}

func TestEmbedHTML(t *testing.T) {
	out, err := Embed(model.FormatHTML, "<p>Steps</p>", attachment)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !strings.HasPrefix(out, "<p>Steps</p>") || !strings.Contains(out, `<attachment-card data-url="`+attachment.URL+`">`) {
		t.Errorf("Embed html = %s", out)
	}
	// The card must survive rendering.
	if !strings.Contains(render.HTML(out), "attachment-card") {
		t.Error("attachment card stripped by sanitizer")
	}
}

func TestEmbedMarkdown(t *testing.T) {
	out, _ := Embed(model.FormatMarkdown, "# VPN\n", image)
	if out != "# VPN\n\n![diagram.png](http://localhost:4000/files/images/diagram.png)\n" {
		t.Errorf("Embed markdown = %q", out)
	}
	rendered, _ := render.Markdown(out)
	if !strings.Contains(rendered, `<img src="http://localhost:4000/files/images/diagram.png"`) {
		t.Errorf("rendered = %s", rendered)
	}
}

func TestEmbedRichText(t *testing.T) {
	body := `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"intro"}]}]}`
	out, err := Embed(model.FormatRichText, body, image)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	rendered, err := render.RichText([]byte(out))
	if err != nil {
		t.Fatalf("RichText: %v", err)
	}
	if !strings.Contains(rendered, "<p>intro</p>") || !strings.Contains(rendered, `src="http://localhost:4000/files/images/diagram.png"`) {
		t.Errorf("rendered = %s", rendered)
	}

	fresh, err := Embed(model.FormatRichText, "", attachment)
	if err != nil || !strings.Contains(fresh, `"type":"attachment"`) {
		t.Errorf("Embed on empty doc = %s, %v", fresh, err)
	}

	if _, err := Embed(model.FormatRichText, "{broken", image); err == nil {
		t.Error("broken document accepted")
	}
}

func TestUnknownFormat(t *testing.T) {
	if _, err := Embed("docx", "", image); err != ErrUnknownFormat {
		t.Errorf("err = %v", err)
	}
}
