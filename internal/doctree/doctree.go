package doctree

// Style is the classifier-facing category of a source paragraph.
type Style int

const (
	Unstyled Style = iota
	Body
	ListLevel1
	ListLevel2
)

func (s Style) String() string {
	switch s {
	case Body:
		return "body"
	case ListLevel1:
		return "list1"
	case ListLevel2:
		return "list2"
	}
	return "unstyled"
}

// IsList reports whether s is one of the list levels.
func (s Style) IsList() bool {
	return s == ListLevel1 || s == ListLevel2
}

// Paragraph is one record of the source paragraph stream.
type Paragraph struct {
	Text      string // Paragraph text, trimmed
	Style     Style
	Index     int    // Position in the source stream
	StyleName string // Raw source style (e.g. "ListParagraph"), empty if none
	HasImage  bool   // Paragraph carries at least one embedded image
}

// ImageRecord is an embedded image in document order.
type ImageRecord struct {
	Data        []byte
	Name        string // Suggested file name from the source, may be empty
	ContentType string
	Paragraph   int // Index of the carrier paragraph, -1 if unknown
}

// Source is everything an adapter extracts from an input document.
type Source struct {
	Name       string // Source file name without extension
	Paragraphs []Paragraph
	Images     []ImageRecord

	// UnknownStyles counts paragraphs whose source style had no mapping.
	UnknownStyles int
}
