package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docx2dita/internal/doctree"
)

func TestTextParser_NumberedLines(t *testing.T) {
	input := "Replace the filter\n\nTurn off the unit.\n\n1. Open the cover.\n2. Remove the old filter\n   by pulling the tab.\n   a. Check the seal.\n   - Wipe the housing.\n3. Insert the new filter.\n"
	src, err := (&TextParser{}).Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Name != "notes" {
		t.Errorf("expected name %q, got %q", "notes", src.Name)
	}

	want := []struct {
		text  string
		style doctree.Style
	}{
		{"Replace the filter", doctree.Body},
		{"Turn off the unit.", doctree.Body},
		{"Open the cover.", doctree.ListLevel1},
		{"Remove the old filter by pulling the tab.", doctree.ListLevel1},
		{"Check the seal.", doctree.ListLevel2},
		{"Wipe the housing.", doctree.ListLevel2},
		{"Insert the new filter.", doctree.ListLevel1},
	}
	if len(src.Paragraphs) != len(want) {
		t.Fatalf("expected %d paragraphs, got %d: %+v", len(want), len(src.Paragraphs), src.Paragraphs)
	}
	for i, w := range want {
		got := src.Paragraphs[i]
		if got.Text != w.text || got.Style != w.style {
			t.Errorf("paragraph %d: got (%q, %s), want (%q, %s)", i, got.Text, got.Style, w.text, w.style)
		}
	}
}

func TestTextParser_Latin1(t *testing.T) {
	// ISO-8859-1 bytes for accented French text.
	input := []byte("Pr\xe9paration du caf\xe9 cr\xe8me et de la cr\xe8me br\xfbl\xe9e pour la soir\xe9e d\xe9j\xe0 pr\xe9vue\n\n1. Brew.\n")
	src, err := (&TextParser{}).Parse(strings.NewReader(string(input)), "cafe.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Préparation du café crème et de la crème brûlée pour la soirée déjà prévue"
	if len(src.Paragraphs) == 0 || src.Paragraphs[0].Text != want {
		t.Fatalf("expected decoded title, got %+v", src.Paragraphs)
	}
}

func TestTextParser_Empty(t *testing.T) {
	src, err := (&TextParser{}).Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.Paragraphs) != 0 {
		t.Errorf("expected 0 paragraphs, got %d", len(src.Paragraphs))
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line   string
		text   string
		style  doctree.Style
		marked bool
	}{
		{"1. Do it", "Do it", doctree.ListLevel1, true},
		{"12) Do it", "Do it", doctree.ListLevel1, true},
		{"- Do it", "Do it", doctree.ListLevel1, true},
		{"  * Do it", "Do it", doctree.ListLevel2, true},
		{"b) Do it", "Do it", doctree.ListLevel2, true},
		{"iv. Do it", "Do it", doctree.ListLevel2, true},
		{"Plain text", "Plain text", doctree.Body, false},
		{"1.5 liters of water", "1.5 liters of water", doctree.Body, false},
	}
	for _, tt := range tests {
		text, style, marked := classifyLine(tt.line)
		if text != tt.text || style != tt.style || marked != tt.marked {
			t.Errorf("classifyLine(%q) = (%q, %s, %v), want (%q, %s, %v)",
				tt.line, text, style, marked, tt.text, tt.style, tt.marked)
		}
	}
}
