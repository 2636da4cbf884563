package parser

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/dgallion1/docx2dita/internal/doctree"
	"github.com/fumiama/go-docx"
)

// builtinStyles maps normalized Word style ids and names to paragraph styles.
var builtinStyles = map[string]doctree.Style{
	"normal":        doctree.Body,
	"bodytext":      doctree.Body,
	"listparagraph": doctree.ListLevel1,
	"listnumber":    doctree.ListLevel1,
	"listbullet":    doctree.ListLevel1,
	"listnumber2":   doctree.ListLevel2,
	"listbullet2":   doctree.ListLevel2,
	"listcontinue2": doctree.ListLevel2,
}

// DOCXParser handles .docx files.
type DOCXParser struct {
	StyleMap map[string]doctree.Style
}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	// go-docx needs a ReaderAt+size, so write to temp file.
	tmp, err := os.CreateTemp("", "docx2dita-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	b := newBuilder(filename)
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}

		styleName, style, known := p.paragraphStyle(para)
		if !known {
			b.src.UnknownStyles++
		}
		idx := b.paragraph(docxParagraphText(para), style, styleName)

		for _, embed := range docxImageRefs(para) {
			target, err := doc.ReferTarget(embed)
			if err != nil {
				continue
			}
			name := path.Base(target)
			m := doc.Media(name)
			if m == nil {
				continue
			}
			b.image(m.Data, m.Name, idx)
		}
	}
	return b.src, nil
}

// paragraphStyle resolves the classifier style. A list-numbered paragraph
// without a known style still counts as a list item, by indent level.
func (p *DOCXParser) paragraphStyle(para *docx.Paragraph) (string, doctree.Style, bool) {
	if para.Properties == nil {
		return "", doctree.Body, true
	}
	var name string
	if para.Properties.Style != nil {
		name = para.Properties.Style.Val
	}
	if name == "" {
		if lvl, ok := numLevel(para); ok {
			return "", lvl, true
		}
		return "", doctree.Body, true
	}

	key := normalizeStyle(name)
	if s, ok := p.StyleMap[key]; ok {
		return name, s, true
	}
	if s, ok := builtinStyles[key]; ok {
		if s == doctree.ListLevel1 {
			if lvl, ok := numLevel(para); ok {
				s = lvl
			}
		}
		return name, s, true
	}
	if lvl, ok := numLevel(para); ok {
		return name, lvl, true
	}
	return name, doctree.Unstyled, false
}

func numLevel(para *docx.Paragraph) (doctree.Style, bool) {
	np := para.Properties.NumProperties
	if np == nil || np.NumID == nil || np.NumID.Val == "" || np.NumID.Val == "0" {
		return doctree.Unstyled, false
	}
	if np.Ilvl != nil && np.Ilvl.Val != "" && np.Ilvl.Val != "0" {
		return doctree.ListLevel2, true
	}
	return doctree.ListLevel1, true
}

// normalizeStyle folds "List Number 2" and "ListNumber2" to the same key.
func normalizeStyle(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			runText(&buf, c)
		case *docx.Hyperlink:
			runText(&buf, &c.Run)
		}
	}
	return strings.TrimSpace(buf.String())
}

func runText(buf *strings.Builder, run *docx.Run) {
	for _, rc := range run.Children {
		switch t := rc.(type) {
		case *docx.Text:
			buf.WriteString(t.Text)
		case *docx.Tab:
			buf.WriteByte('\t')
		case *docx.BarterRabbet:
			buf.WriteByte(' ')
		}
	}
}

// docxImageRefs returns relationship ids of pictures embedded in para.
func docxImageRefs(para *docx.Paragraph) []string {
	var refs []string
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			d, ok := rc.(*docx.Drawing)
			if !ok {
				continue
			}
			var g *docx.AGraphic
			switch {
			case d.Inline != nil:
				g = d.Inline.Graphic
			case d.Anchor != nil:
				g = d.Anchor.Graphic
			}
			if g == nil || g.GraphicData == nil || g.GraphicData.Pic == nil || g.GraphicData.Pic.BlipFill == nil {
				continue
			}
			if id := g.GraphicData.Pic.BlipFill.Blip.Embed; id != "" {
				refs = append(refs, id)
			}
		}
	}
	return refs
}
