package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	gmtext "github.com/yuin/goldmark/text"
)

// deriveText returns the whitespace-normalized text of the document's body.
// The pipeline does not call it; Run derives Document.Text from the
// converted markdown via textFromMarkdown instead.
func deriveText(doc *goquery.Document) string {
	raw := doc.Find("body").Text()
	return normalizeWhitespace(raw)
}

// textFromMarkdown parses markdown and renders it to plain text by walking
// the AST, dropping formatting markers and link targets (a link's text is
// kept, its URL is not) and preserving paragraph boundaries as blank lines.
func textFromMarkdown(markdown string) string {
	md := goldmark.New(goldmark.WithParserOptions(parser.WithAutoHeadingID()))
	source := []byte(markdown)
	root := md.Parser().Parse(gmtext.NewReader(source))

	var b strings.Builder
	renderer := &textRenderer{source: source, out: &b}
	if err := renderer.render(root); err != nil {
		return normalizeWhitespace(markdown)
	}
	return strings.TrimSpace(b.String())
}

type textRenderer struct {
	source []byte
	out    *strings.Builder
}

func (r *textRenderer) render(n ast.Node) error {
	return ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch node.Kind() {
			case ast.KindParagraph, ast.KindHeading, ast.KindListItem:
				r.out.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			r.out.Write(v.Segment.Value(r.source))
		case *ast.String:
			r.out.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.TrimSpace(strings.Join(fields, " "))
}
