package parser

import (
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"a.docx", false},
		{"A.DOCX", false},
		{"a.md", false},
		{"a.markdown", false},
		{"a.html", false},
		{"a.htm", false},
		{"a.txt", false},
		{"a.pdf", false},
		{"a.csv", true},
		{"noext", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if IsSupportedExtension(tt.name) == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q) disagrees with ForFile", tt.name)
		}
	}
}

func TestOpenSniffsContent(t *testing.T) {
	src, err := Open([]byte("Title\n\n1. Step one.\n"), "upload", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Name != "upload" || len(src.Paragraphs) != 2 {
		t.Fatalf("unexpected source: %+v", src)
	}
}

func TestOpenRejectsBinary(t *testing.T) {
	if _, err := Open([]byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00}, "blob", Options{}); err == nil {
		t.Fatal("expected error for unknown binary content")
	}
}
