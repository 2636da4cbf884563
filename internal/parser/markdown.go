package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/docx2dita/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings and plain
// paragraphs are body text, ordered and bullet list items are steps, and
// nested list items are substeps.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	b := newBuilder(filename)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		mdBlock(b, n, src, 0)
	}
	return b.src, nil
}

// mdBlock emits paragraphs for a block node. depth is the list nesting level.
func mdBlock(b *builder, n ast.Node, src []byte, depth int) {
	switch node := n.(type) {
	case *ast.List:
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			mdListItem(b, item, src, depth+1)
		}
	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			mdBlock(b, c, src, depth)
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		b.paragraph(buf.String(), doctree.Body, "code")
	case *ast.ThematicBreak:
	case *ast.Heading:
		mdParagraph(b, n, src, doctree.Body, "heading")
	default:
		mdParagraph(b, n, src, doctree.Body, "")
	}
}

// mdListItem emits the item's first text block at its list level. Further
// blocks in the item follow as body text; nested lists recurse.
func mdListItem(b *builder, item ast.Node, src []byte, depth int) {
	style := doctree.ListLevel1
	if depth > 1 {
		style = doctree.ListLevel2
	}
	first := true
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		if _, ok := c.(*ast.List); ok {
			mdBlock(b, c, src, depth)
			continue
		}
		if first {
			mdParagraph(b, c, src, style, "list")
			first = false
			continue
		}
		mdBlock(b, c, src, depth)
	}
	if first {
		b.paragraph("", style, "list")
	}
}

func mdParagraph(b *builder, n ast.Node, src []byte, style doctree.Style, styleName string) {
	var buf strings.Builder
	var imgs [][]byte
	mdInline(&buf, &imgs, n, src)
	idx := b.paragraph(buf.String(), style, styleName)
	for _, data := range imgs {
		b.image(data, "", idx)
	}
}

// mdInline collects inline text and any data-URI images under n.
func mdInline(buf *strings.Builder, imgs *[][]byte, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.URL(src))
		case *ast.Image:
			if data, ok := decodeDataURI(string(node.Destination)); ok {
				*imgs = append(*imgs, data)
			}
		default:
			mdInline(buf, imgs, c, src)
		}
	}
}
