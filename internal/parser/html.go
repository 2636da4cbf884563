package parser

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/dgallion1/docx2dita/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Block elements become body paragraphs, list
// items become steps, and nested list items become substeps. Inline images
// are kept only when they are data URIs.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	b := newBuilder(filename)
	body := findElement(doc, "body")
	if body == nil {
		body = doc
	}
	if findElement(body, "h1") == nil {
		if title := findElement(doc, "title"); title != nil {
			b.paragraph(textContent(title), doctree.Body, "title")
		}
	}

	htmlBlock(b, body, 0)
	return b.src, nil
}

func htmlBlock(b *builder, n *html.Node, depth int) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				b.paragraph(collapseSpace(c.Data), doctree.Body, "")
			}
			continue
		case html.ElementNode:
		default:
			continue
		}

		switch c.Data {
		case "script", "style", "nav", "footer", "header", "head":
		case "h1", "h2", "h3", "h4", "h5", "h6", "p", "pre", "dt", "dd", "figcaption", "td", "th":
			htmlParagraph(b, c, doctree.Body, c.Data)
		case "ol", "ul":
			for li := c.FirstChild; li != nil; li = li.NextSibling {
				if li.Type == html.ElementNode && li.Data == "li" {
					htmlListItem(b, li, depth+1)
				}
			}
		case "img":
			if data, ok := decodeDataURI(attr(c, "src")); ok {
				b.image(data, "", len(b.src.Paragraphs)-1)
			}
		default:
			htmlBlock(b, c, depth)
		}
	}
}

func htmlListItem(b *builder, li *html.Node, depth int) {
	style := doctree.ListLevel1
	if depth > 1 {
		style = doctree.ListLevel2
	}

	var buf strings.Builder
	var imgs [][]byte
	var nested []*html.Node
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "ol" || c.Data == "ul") {
			nested = append(nested, c)
			continue
		}
		inlineText(&buf, &imgs, c)
	}
	idx := b.paragraph(collapseSpace(buf.String()), style, "li")
	for _, data := range imgs {
		b.image(data, "", idx)
	}
	for _, list := range nested {
		for item := list.FirstChild; item != nil; item = item.NextSibling {
			if item.Type == html.ElementNode && item.Data == "li" {
				htmlListItem(b, item, depth+1)
			}
		}
	}
}

func htmlParagraph(b *builder, n *html.Node, style doctree.Style, styleName string) {
	var buf strings.Builder
	var imgs [][]byte
	inlineText(&buf, &imgs, n)
	idx := b.paragraph(collapseSpace(buf.String()), style, styleName)
	for _, data := range imgs {
		b.image(data, "", idx)
	}
}

func inlineText(buf *strings.Builder, imgs *[][]byte, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style":
			return
		case "br":
			buf.WriteByte(' ')
			return
		case "img":
			if data, ok := decodeDataURI(attr(n, "src")); ok {
				*imgs = append(*imgs, data)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		inlineText(buf, imgs, c)
	}
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return collapseSpace(buf.String())
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// decodeDataURI returns the payload of a "data:" URI. Remote references are
// never fetched.
func decodeDataURI(s string) ([]byte, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, false
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, false
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, false
		}
		return data, true
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, false
	}
	return []byte(unescaped), true
}
