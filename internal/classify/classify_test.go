package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dgallion1/docx2dita/internal/decide"
	"github.com/dgallion1/docx2dita/internal/doctree"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func paras(specs ...any) []doctree.Paragraph {
	var out []doctree.Paragraph
	for i := 0; i < len(specs); i += 2 {
		out = append(out, doctree.Paragraph{
			Text:  specs[i].(string),
			Style: specs[i+1].(doctree.Style),
			Index: len(out),
		})
	}
	return out
}

func build(t *testing.T, ps []doctree.Paragraph, d decide.Decider, opts Options) *Result {
	t.Helper()
	res, err := Build(context.Background(), ps, d, opts, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res
}

func TestBuildTitleFromFirstParagraph(t *testing.T) {
	ps := paras("  Install the driver ", doctree.Body, "Body text", doctree.Body)
	res := build(t, ps, decide.Always(false), Options{TaskID: "t1"})
	if res.Task.Title != "  Install the driver " {
		t.Errorf("title should be verbatim, got %q", res.Task.Title)
	}
	if res.Task.ID != "t1" {
		t.Errorf("expected id t1, got %q", res.Task.ID)
	}
}

func TestBuildMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		ps   []doctree.Paragraph
	}{
		{"empty", nil},
		{"title only", paras("Title", doctree.Body)},
		{"blank title", paras("   ", doctree.Body, "Step", doctree.ListLevel1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(context.Background(), tt.ps, decide.Always(true), Options{}, testLogger())
			if !errors.Is(err, ErrMalformedInput) {
				t.Fatalf("expected ErrMalformedInput, got %v", err)
			}
		})
	}
}

func TestBuildTwoSteps(t *testing.T) {
	ps := paras(
		"Install the driver", doctree.Body,
		"Download the package.", doctree.ListLevel1,
		"Extract the archive.", doctree.ListLevel1,
	)
	res := build(t, ps, decide.Always(true), Options{DetectShortDesc: true, DetectNotes: true})
	steps := res.Task.StepList()
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Command != "Download the package." || steps[1].Command != "Extract the archive." {
		t.Errorf("unexpected commands: %q, %q", steps[0].Command, steps[1].Command)
	}
	for i, s := range steps {
		if len(s.Infos) != 0 || len(s.Substeps) != 0 {
			t.Errorf("step %d should have no infos or substeps: %+v", i, s)
		}
	}
	if res.Task.ShortDesc != nil {
		t.Error("list-styled second paragraph must not be asked as a short description")
	}
	if len(res.Decisions) != 0 {
		t.Errorf("expected no decisions, got %+v", res.Decisions)
	}
}

func TestBuildShortDesc(t *testing.T) {
	ps := paras(
		"Title", doctree.Body,
		"Summary of the task.", doctree.Body,
		"Do it.", doctree.ListLevel1,
	)

	res := build(t, ps, decide.Always(true), Options{DetectShortDesc: true})
	if res.Task.ShortDesc == nil || res.Task.ShortDesc.Text != "Summary of the task." {
		t.Fatalf("expected short description, got %+v", res.Task.ShortDesc)
	}
	if len(res.Task.Steps.Items) != 1 {
		t.Errorf("short description must not also be emitted in steps: %+v", res.Task.Steps.Items)
	}
	if len(res.Decisions) != 1 || res.Decisions[0].Kind != decide.ShortDescCandidate || !res.Decisions[0].Verdict {
		t.Errorf("unexpected transcript: %+v", res.Decisions)
	}

	res = build(t, ps, decide.Always(false), Options{DetectShortDesc: true})
	if res.Task.ShortDesc != nil {
		t.Fatal("declined short description should not be emitted")
	}
	info, ok := res.Task.Steps.Items[0].(*doctree.Info)
	if !ok || info.Text != "Summary of the task." {
		t.Errorf("declined candidate should become container info, got %+v", res.Task.Steps.Items[0])
	}

	res = build(t, ps, decide.Always(true), Options{})
	if res.Task.ShortDesc != nil || len(res.Decisions) != 0 {
		t.Error("detection disabled should never ask")
	}
}

func TestBuildSubstepsAttachToLatestStep(t *testing.T) {
	ps := paras(
		"Title", doctree.Body,
		"Orphan substep", doctree.ListLevel2,
		"Step one", doctree.ListLevel1,
		"Sub 1a", doctree.ListLevel2,
		"Sub 1b", doctree.ListLevel2,
		"Step two", doctree.ListLevel1,
		"Sub 2a", doctree.ListLevel2,
	)
	res := build(t, ps, decide.Always(false), Options{})
	if res.Dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", res.Dropped)
	}
	steps := res.Task.StepList()
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if len(steps[0].Substeps) != 2 || steps[0].Substeps[1].Command != "Sub 1b" {
		t.Errorf("step one substeps: %+v", steps[0].Substeps)
	}
	if len(steps[1].Substeps) != 1 || steps[1].Substeps[0].Command != "Sub 2a" {
		t.Errorf("step two substeps should start a fresh group: %+v", steps[1].Substeps)
	}
	if len(res.Task.Steps.Items) != 2 {
		t.Errorf("dropped substep must not be attached anywhere: %+v", res.Task.Steps.Items)
	}
}

func TestBuildOrphanSubstepOnly(t *testing.T) {
	ps := paras("Title", doctree.Body, "Orphan", doctree.ListLevel2)
	res := build(t, ps, decide.Always(true), Options{})
	if res.Dropped != 1 || len(res.Task.Steps.Items) != 0 {
		t.Errorf("expected one dropped and no items, got dropped=%d items=%d", res.Dropped, len(res.Task.Steps.Items))
	}
}

func TestBuildNotes(t *testing.T) {
	ps := paras(
		"Title", doctree.Body,
		"Note: Before you begin", doctree.Body,
		"Step", doctree.ListLevel1,
		"Note: Be careful", doctree.Body,
		"note: lowercase is body", doctree.Body,
		"Note:", doctree.Body,
	)

	res := build(t, ps, decide.Always(false), Options{DetectNotes: true})
	container, ok := res.Task.Steps.Items[0].(*doctree.Info)
	if !ok || container.Note == nil || container.Note.Text != "Before you begin" {
		t.Fatalf("expected container-level note, got %+v", res.Task.Steps.Items[0])
	}
	step := res.Task.StepList()[0]
	if len(step.Infos) != 3 {
		t.Fatalf("expected 3 infos on step, got %d", len(step.Infos))
	}
	if step.Infos[0].Note == nil || step.Infos[0].Note.Text != "Be careful" {
		t.Errorf("expected note 'Be careful', got %+v", step.Infos[0])
	}
	if step.Infos[1].Note != nil || step.Infos[1].Text != "note: lowercase is body" {
		t.Errorf("lowercase prefix must be plain info, got %+v", step.Infos[1])
	}
	if step.Infos[2].Note == nil || step.Infos[2].Note.Text != "" {
		t.Errorf("bare prefix should be an empty note, got %+v", step.Infos[2])
	}
	if len(res.Decisions) != 0 {
		t.Error("unconfirmed notes should not ask")
	}
}

func TestBuildNotesDetectionDisabled(t *testing.T) {
	ps := paras("Title", doctree.Body, "Step", doctree.ListLevel1, "Note: Be careful", doctree.Body)
	res := build(t, ps, decide.Always(true), Options{})
	info := res.Task.StepList()[0].Infos[0]
	if info.Note != nil || info.Text != "Note: Be careful" {
		t.Errorf("expected plain info with prefix kept, got %+v", info)
	}
}

func TestBuildConfirmNotes(t *testing.T) {
	ps := paras(
		"Title", doctree.Body,
		"Step", doctree.ListLevel1,
		"Note: Keep this", doctree.Body,
		"Note: Demote this", doctree.Body,
	)
	d := decide.DeciderFunc(func(_ context.Context, dec decide.Decision) bool {
		return dec.Content == "Keep this"
	})
	res := build(t, ps, d, Options{DetectNotes: true, ConfirmNotes: true})
	infos := res.Task.StepList()[0].Infos
	if len(infos) != 2 {
		t.Fatalf("expected 2 infos, got %d", len(infos))
	}
	if infos[0].Note == nil || infos[0].Note.Text != "Keep this" {
		t.Errorf("confirmed note: %+v", infos[0])
	}
	if infos[1].Note != nil || infos[1].Text != "Demote this" {
		t.Errorf("declined note should become plain info without prefix: %+v", infos[1])
	}
	if len(res.Decisions) != 2 || res.Decisions[0].Kind != decide.NoteCandidate || res.Decisions[1].Verdict {
		t.Errorf("unexpected transcript: %+v", res.Decisions)
	}
}

func TestBuildNoteBeatsListStyle(t *testing.T) {
	ps := paras("Title", doctree.Body, "Note: styled as a step", doctree.ListLevel1)
	res := build(t, ps, decide.Always(true), Options{DetectNotes: true})
	if len(res.Task.StepList()) != 0 {
		t.Fatal("note prefix takes precedence over list style")
	}
}

func TestBuildInfoAndBlank(t *testing.T) {
	ps := paras(
		"Title", doctree.Body,
		"Intro", doctree.Unstyled,
		"", doctree.Body,
		"Step", doctree.ListLevel1,
		"Detail", doctree.Body,
		"   ", doctree.ListLevel1,
	)
	res := build(t, ps, decide.Always(true), Options{})
	if res.Blank != 2 {
		t.Errorf("expected 2 blank, got %d", res.Blank)
	}
	if len(res.Task.Steps.Items) != 2 {
		t.Fatalf("expected container info and one step, got %+v", res.Task.Steps.Items)
	}
	if in, ok := res.Task.Steps.Items[0].(*doctree.Info); !ok || in.Text != "Intro" {
		t.Errorf("expected container info, got %+v", res.Task.Steps.Items[0])
	}
	step := res.Task.StepList()[0]
	if len(step.Infos) != 1 || step.Infos[0].Text != "Detail" {
		t.Errorf("expected step info, got %+v", step.Infos)
	}
}

func TestBuildStepAt(t *testing.T) {
	ps := paras(
		"Title", doctree.Body,
		"Intro", doctree.Body,
		"One", doctree.ListLevel1,
		"Detail", doctree.Body,
		"Two", doctree.ListLevel1,
	)
	res := build(t, ps, decide.Always(true), Options{})
	steps := res.Task.StepList()
	want := []*doctree.Step{nil, nil, steps[0], steps[0], steps[1]}
	for i, w := range want {
		if res.StepAt[i] != w {
			t.Errorf("StepAt[%d] = %p, want %p", i, res.StepAt[i], w)
		}
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ps := paras("Title", doctree.Body, "Step", doctree.ListLevel1)
	if _, err := Build(ctx, ps, decide.Always(true), Options{}, testLogger()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
