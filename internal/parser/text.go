package parser

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docx2dita/internal/doctree"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// TextParser handles plain text files. The first block is the title, lines
// numbered "1." or "1)" are steps, and lines lettered "a." or indented
// bullets are substeps. Blank lines separate paragraphs and wrapped lines are
// joined.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b := newBuilder(filename)
	if err := scanParagraphs(b, decodeText(data)); err != nil {
		return nil, err
	}
	return b.src, nil
}

var (
	stepMarker    = regexp.MustCompile(`^(?:\d+[.)]|[-*•])\s+`)
	substepMarker = regexp.MustCompile(`^(?:[a-z][.)]|[ivx]+[.)])\s+`)
)

// classifyLine strips a list marker from line and reports its style. ok is
// false for lines with no marker.
func classifyLine(line string) (string, doctree.Style, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	indented := len(line)-len(trimmed) >= 2

	if m := substepMarker.FindString(trimmed); m != "" {
		return trimmed[len(m):], doctree.ListLevel2, true
	}
	if m := stepMarker.FindString(trimmed); m != "" {
		if indented {
			return trimmed[len(m):], doctree.ListLevel2, true
		}
		return trimmed[len(m):], doctree.ListLevel1, true
	}
	return trimmed, doctree.Body, false
}

func scanParagraphs(b *builder, text string) error {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current strings.Builder
	style := doctree.Body
	flush := func() {
		if current.Len() > 0 {
			b.paragraph(current.String(), style, "")
			current.Reset()
		}
		style = doctree.Body
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r\f")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		content, s, marked := classifyLine(line)
		if marked {
			flush()
			style = s
			current.WriteString(content)
			continue
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(strings.TrimSpace(content))
	}
	flush()
	return scanner.Err()
}

// decodeText detects the encoding of data and decodes it to UTF-8.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}

	results, err := chardet.NewTextDetector().DetectAll(data)
	if err == nil {
		for _, r := range results {
			enc := lookupEncoding(r.Charset)
			if enc == nil {
				continue
			}
			decoded, err := enc.NewDecoder().Bytes(data)
			if err == nil && utf8.Valid(decoded) && !bytes.ContainsRune(decoded, utf8.RuneError) {
				return string(decoded)
			}
		}
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

// lookupEncoding maps charset names to Go encoding implementations.
func lookupEncoding(charset string) encoding.Encoding {
	switch strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(charset, "-", ""), "_", "")) {
	case "utf8", "ascii", "usascii":
		return unicode.UTF8
	case "utf16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "utf16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case "iso88591", "latin1":
		return charmap.ISO8859_1
	case "iso88592":
		return charmap.ISO8859_2
	case "iso88595":
		return charmap.ISO8859_5
	case "iso88597":
		return charmap.ISO8859_7
	case "iso88599":
		return charmap.ISO8859_9
	case "iso885915":
		return charmap.ISO8859_15
	case "windows1250", "cp1250":
		return charmap.Windows1250
	case "windows1251", "cp1251":
		return charmap.Windows1251
	case "windows1252", "cp1252":
		return charmap.Windows1252
	case "koi8r":
		return charmap.KOI8R
	case "shiftjis", "sjis", "cp932":
		return japanese.ShiftJIS
	case "eucjp":
		return japanese.EUCJP
	case "euckr", "cp949":
		return korean.EUCKR
	case "gb2312", "gbk", "gb18030":
		return simplifiedchinese.GBK
	case "big5":
		return traditionalchinese.Big5
	}
	return nil
}
