package render

import (
	"bytes"
	"html"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// HighlightStyle is the chroma style served as the code stylesheet.
const HighlightStyle = "github"

// Highlighted code carries chroma token classes rather than inline styles
// so the sanitizer only has to allow class names.
var codeFormatter = chromahtml.New(chromahtml.WithClasses(true))

// Highlight renders a code block. Unknown or missing languages fall back to
// a plain escaped block.
func Highlight(language, code string) string {
	plain := "<pre><code>" + html.EscapeString(code) + "</code></pre>"
	language = strings.TrimSpace(language)
	if language == "" {
		return plain
	}
	lexer := lexers.Get(language)
	if lexer == nil {
		return plain
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return plain
	}
	var buf bytes.Buffer
	if err := codeFormatter.Format(&buf, styles.Get(HighlightStyle), iterator); err != nil {
		return plain
	}
	return buf.String()
}

// WriteStylesheet writes the CSS for the token classes Highlight emits.
func WriteStylesheet(w io.Writer) error {
	return codeFormatter.WriteCSS(w, styles.Get(HighlightStyle))
}

// codeBlockRenderer replaces goldmark's fenced code output with Highlight.
type codeBlockRenderer struct{}

func (codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, renderFencedCode)
}

func renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}
	_, _ = w.WriteString(Highlight(string(n.Language(source)), code.String()))
	return ast.WalkSkipChildren, nil
}

func highlightOption() goldmark.Option {
	return goldmark.WithRendererOptions(
		renderer.WithNodeRenderers(util.Prioritized(codeBlockRenderer{}, 100)),
	)
}
