package parser

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docx2dita/internal/doctree"
	"github.com/gabriel-vasile/mimetype"
)

// Parser converts raw document bytes into a paragraph stream.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Source, error)
}

// Options tunes the adapters returned by New.
type Options struct {
	// StyleMap adds or overrides .docx style mappings. Keys are normalized
	// the same way as built-in style names.
	StyleMap map[string]doctree.Style

	// PDFFallback shells out to pdftotext when the Go reader fails.
	PDFFallback bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".docx":     true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".txt":      true,
	".pdf":      true,
}

// ForFile returns the appropriate parser for a filename with default options.
func ForFile(filename string) (Parser, error) {
	return New(filename, Options{})
}

// New returns the parser for filename's extension.
func New(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".docx":
		return &DOCXParser{StyleMap: opts.StyleMap}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallback}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Sniff returns the extension implied by the content of data. It is used for
// uploads whose name carries no usable extension.
func Sniff(data []byte) string {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
			return ".docx"
		case m.Is("application/pdf"):
			return ".pdf"
		case m.Is("text/html"):
			return ".html"
		case m.Is("text/plain"):
			return ".txt"
		}
	}
	return ""
}

// Open picks a parser from the filename, falling back to content sniffing,
// and parses data.
func Open(data []byte, filename string, opts Options) (*doctree.Source, error) {
	name := filename
	if !IsSupportedExtension(name) {
		ext := Sniff(data)
		if ext == "" {
			return nil, fmt.Errorf("unsupported file: %q", filename)
		}
		name = strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
	}
	p, err := New(name, opts)
	if err != nil {
		return nil, err
	}
	return p.Parse(bytes.NewReader(data), name)
}

// baseName strips the directory and extension from filename.
func baseName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// builder appends paragraphs and images to a Source, numbering as it goes.
type builder struct {
	src *doctree.Source
}

func newBuilder(filename string) *builder {
	return &builder{src: &doctree.Source{Name: baseName(filename)}}
}

func (b *builder) paragraph(text string, style doctree.Style, styleName string) int {
	idx := len(b.src.Paragraphs)
	b.src.Paragraphs = append(b.src.Paragraphs, doctree.Paragraph{
		Text:      strings.TrimSpace(text),
		Style:     style,
		Index:     idx,
		StyleName: styleName,
	})
	return idx
}

func (b *builder) image(data []byte, name string, para int) {
	if len(data) == 0 {
		return
	}
	if para >= 0 && para < len(b.src.Paragraphs) {
		b.src.Paragraphs[para].HasImage = true
	}
	b.src.Images = append(b.src.Images, doctree.ImageRecord{
		Data:        data,
		Name:        name,
		ContentType: mimetype.Detect(data).String(),
		Paragraph:   para,
	})
}
