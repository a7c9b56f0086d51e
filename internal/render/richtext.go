package render

import (
	"bytes"
	"html"
	"strconv"
	"strings"
)

// Node is one element of a rich-text document.
type Node struct {
	Type    string                 `json:"type"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Content []Node                 `json:"content,omitempty"`
	Marks   []Mark                 `json:"marks,omitempty"`
	Text    string                 `json:"text,omitempty"`
}

type Mark struct {
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

var blockTags = map[string]string{
	"paragraph":   "p",
	"blockquote":  "blockquote",
	"bulletList":  "ul",
	"orderedList": "ol",
	"listItem":    "li",
}

var markTags = map[string]string{
	"bold":      "strong",
	"italic":    "em",
	"underline": "u",
	"strike":    "s",
	"code":      "code",
}

func attr(attrs map[string]interface{}, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func writeChildren(buf *bytes.Buffer, n *Node) {
	for i := range n.Content {
		writeNode(buf, &n.Content[i])
	}
}

func writeNode(buf *bytes.Buffer, n *Node) {
	switch n.Type {
	case "doc", "":
		writeChildren(buf, n)
	case "text":
		writeText(buf, n)
	case "heading":
		level := attr(n.Attrs, "level")
		if level < "1" || level > "6" || len(level) != 1 {
			level = "2"
		}
		buf.WriteString("<h" + level + ">")
		writeChildren(buf, n)
		buf.WriteString("</h" + level + ">")
	case "codeBlock":
		var code strings.Builder
		for _, c := range n.Content {
			code.WriteString(c.Text)
		}
		buf.WriteString(Highlight(attr(n.Attrs, "language"), code.String()))
	case "hardBreak":
		buf.WriteString("<br>")
	case "horizontalRule":
		buf.WriteString("<hr>")
	case "image":
		buf.WriteString(`<img src="` + html.EscapeString(attr(n.Attrs, "src")) + `" alt="` + html.EscapeString(attr(n.Attrs, "alt")) + `">`)
	case "attachment":
		buf.WriteString(`<attachment-card data-url="` + html.EscapeString(attr(n.Attrs, "fileUrl")) + `"></attachment-card>`)
	default:
		tag, ok := blockTags[n.Type]
		if !ok {
			writeChildren(buf, n)
			return
		}
		buf.WriteString("<" + tag + ">")
		writeChildren(buf, n)
		buf.WriteString("</" + tag + ">")
	}
}

func writeText(buf *bytes.Buffer, n *Node) {
	var closers []string
	for _, m := range n.Marks {
		if m.Type == "link" {
			buf.WriteString(`<a href="` + html.EscapeString(attr(m.Attrs, "href")) + `">`)
			closers = append(closers, "</a>")
			continue
		}
		if tag, ok := markTags[m.Type]; ok {
			buf.WriteString("<" + tag + ">")
			closers = append(closers, "</"+tag+">")
		}
	}
	buf.WriteString(html.EscapeString(n.Text))
	for i := len(closers) - 1; i >= 0; i-- {
		buf.WriteString(closers[i])
	}
}
