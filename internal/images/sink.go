package images

import (
	"context"
	"sync"

	"github.com/dgallion1/docx2dita/internal/doctree"
	"github.com/dgallion1/docx2dita/internal/fsutil"
)

// Sink stores image bytes and, for PerImagePrompt, picks destinations.
type Sink interface {
	Write(ctx context.Context, path string, data []byte) error
	// Choose returns the destination for image n, or "" to skip it.
	Choose(ctx context.Context, rec doctree.ImageRecord, n int, suggested string) string
}

// Chooser picks a destination for one image. An empty result declines.
type Chooser func(ctx context.Context, rec doctree.ImageRecord, n int, suggested string) string

// DirSink writes images to the filesystem.
type DirSink struct {
	Chooser Chooser
}

func (s *DirSink) Write(_ context.Context, path string, data []byte) error {
	return fsutil.WriteFileAtomic(path, data, 0o644)
}

func (s *DirSink) Choose(ctx context.Context, rec doctree.ImageRecord, n int, suggested string) string {
	if s.Chooser == nil {
		return ""
	}
	return s.Chooser(ctx, rec, n, suggested)
}

// File is one image held by a MemorySink.
type File struct {
	Path string
	Data []byte
}

// MemorySink collects images in memory, in write order.
type MemorySink struct {
	Chooser Chooser

	mu    sync.Mutex
	files []File
}

func (s *MemorySink) Write(_ context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, File{Path: path, Data: data})
	return nil
}

func (s *MemorySink) Choose(ctx context.Context, rec doctree.ImageRecord, n int, suggested string) string {
	if s.Chooser == nil {
		return ""
	}
	return s.Chooser(ctx, rec, n, suggested)
}

// Files returns the collected images.
func (s *MemorySink) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}
