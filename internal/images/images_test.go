package images

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgallion1/docx2dita/internal/doctree"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func taskWithSteps(n int) *doctree.Task {
	t := doctree.NewTask("t", "T")
	for i := 0; i < n; i++ {
		t.Steps.Items = append(t.Steps.Items, &doctree.Step{Command: "step"})
	}
	return t
}

type failingSink struct {
	MemorySink
	failOn string
}

func (s *failingSink) Write(ctx context.Context, path string, data []byte) error {
	if path == s.failOn {
		return errors.New("disk full")
	}
	return s.MemorySink.Write(ctx, path, data)
}

func TestAttachPromptDeclined(t *testing.T) {
	task := taskWithSteps(1)
	sink := &MemorySink{Chooser: func(context.Context, doctree.ImageRecord, int, string) string { return "" }}
	rep, err := Attach(context.Background(), task, []doctree.ImageRecord{{Data: pngHeader, Paragraph: -1}},
		Policy{Mode: PerImagePrompt}, sink, Options{}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(task.Figures()) != 0 {
		t.Errorf("expected zero figures, got %d", len(task.Figures()))
	}
	if rep.Skipped != 1 || rep.Figures != 0 || len(sink.Files()) != 0 {
		t.Errorf("expected one skipped image and nothing written, got %+v", rep)
	}
}

func TestAttachAutoName(t *testing.T) {
	dir := t.TempDir()
	task := taskWithSteps(2)
	records := []doctree.ImageRecord{
		{Data: pngHeader, Name: "image7.PNG", Paragraph: -1},
		{Data: []byte("GIF89a\x01\x00\x01\x00"), Paragraph: -1},
		{Data: []byte{0x01, 0x02}, Paragraph: -1},
	}
	rep, err := Attach(context.Background(), task, records, Policy{Mode: AutoName, Dir: dir}, &DirSink{}, Options{HrefRoot: dir}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"image1.png", "image2.gif", "image3.png"}
	if rep.Figures != 3 || len(rep.Written) != 3 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	for i, name := range want {
		if rep.Written[i] != filepath.Join(dir, name) {
			t.Errorf("written[%d] = %q, want %q", i, rep.Written[i], filepath.Join(dir, name))
		}
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected file %s: %v", name, err)
		}
	}

	steps := task.StepList()
	if len(steps[0].Infos) != 0 {
		t.Error("last-step placement should leave the first step alone")
	}
	figs := task.Figures()
	if len(figs) != 3 || figs[0].Href != "image1.png" {
		t.Errorf("unexpected figures: %+v", figs)
	}
}

func TestAttachWriteFailureContinues(t *testing.T) {
	task := taskWithSteps(1)
	sink := &failingSink{failOn: "out/image1.png"}
	records := []doctree.ImageRecord{{Data: pngHeader, Paragraph: -1}, {Data: pngHeader, Paragraph: -1}}
	rep, err := Attach(context.Background(), task, records, Policy{Mode: AutoName, Dir: "out"}, sink, Options{}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Index != 1 {
		t.Fatalf("expected one write error for image 1, got %+v", rep.Errors)
	}
	var werr *ImageWriteError
	if !errors.As(error(rep.Errors[0]), &werr) || werr.Unwrap() == nil {
		t.Error("expected an unwrappable ImageWriteError")
	}
	if rep.Figures != 1 || rep.Skipped != 1 {
		t.Errorf("expected 1 figure and 1 skipped, got %+v", rep)
	}
	if files := sink.Files(); len(files) != 1 || files[0].Path != "out/image2.png" {
		t.Errorf("second image should still be written, got %+v", files)
	}
}

func TestAttachNoStepDropsFigure(t *testing.T) {
	task := taskWithSteps(0)
	sink := &MemorySink{}
	rep, err := Attach(context.Background(), task, []doctree.ImageRecord{{Data: pngHeader, Paragraph: -1}},
		Policy{Mode: AutoName, Dir: "x"}, sink, Options{}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Dropped != 1 || len(sink.Files()) != 0 {
		t.Errorf("expected a dropped, unwritten image, got %+v", rep)
	}
}

func TestAttachAnchored(t *testing.T) {
	task := taskWithSteps(2)
	steps := task.StepList()
	stepAt := []*doctree.Step{nil, nil, steps[0], steps[0], steps[1]}
	records := []doctree.ImageRecord{
		{Data: pngHeader, Paragraph: 1}, // before any step
		{Data: pngHeader, Paragraph: 3},
		{Data: pngHeader, Paragraph: 4},
		{Data: pngHeader, Paragraph: -1}, // unknown carrier falls back to last step
	}
	rep, err := Attach(context.Background(), task, records, Policy{Mode: AutoName, Dir: "d"}, &MemorySink{},
		Options{Placement: PlaceAnchored, StepAt: stepAt}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Dropped != 1 || rep.Figures != 3 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(steps[0].Infos) != 1 || steps[0].Infos[0].Figure.Href != "d/image2.png" {
		t.Errorf("step one figures: %+v", steps[0].Infos)
	}
	if len(steps[1].Infos) != 2 {
		t.Errorf("step two should hold two figures, got %d", len(steps[1].Infos))
	}
}

func TestAttachSkip(t *testing.T) {
	task := taskWithSteps(1)
	rep, err := Attach(context.Background(), task, []doctree.ImageRecord{{}, {}}, Policy{Mode: Skip}, &MemorySink{}, Options{}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Skipped != 2 || len(task.Figures()) != 0 {
		t.Errorf("unexpected report: %+v", rep)
	}
}

func TestAttachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Attach(ctx, taskWithSteps(1), []doctree.ImageRecord{{Data: pngHeader}}, Policy{Mode: AutoName, Dir: "d"}, &MemorySink{}, Options{}, testLogger())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseModeAndPlacement(t *testing.T) {
	for _, m := range []Mode{Skip, AutoName, PerImagePrompt} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMode("sometimes"); err == nil {
		t.Error("expected error for unknown mode")
	}
	for _, p := range []Placement{PlaceLastStep, PlaceAnchored} {
		got, err := ParsePlacement(p.String())
		if err != nil || got != p {
			t.Errorf("ParsePlacement(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParsePlacement("first"); err == nil {
		t.Error("expected error for unknown placement")
	}
}
