// Package classify turns a flat paragraph stream into a task tree.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/docx2dita/internal/decide"
	"github.com/dgallion1/docx2dita/internal/doctree"
)

// ErrMalformedInput is returned when the stream has no usable title or body.
var ErrMalformedInput = errors.New("malformed input")

// NotePrefix marks a paragraph as a note candidate. Matching is
// case-sensitive and the colon is required.
const NotePrefix = "Note:"

// Options controls the optional detection passes.
type Options struct {
	TaskID string

	DetectShortDesc bool
	DetectNotes     bool
	ConfirmNotes    bool
}

// Result is the built tree plus what the scan could not place.
type Result struct {
	Task *doctree.Task

	// Dropped counts level-2 paragraphs seen before any step was open.
	Dropped int
	// Blank counts whitespace-only paragraphs that were skipped.
	Blank int
	// Decisions is the transcript of every verdict requested.
	Decisions []decide.Record
	// StepAt[i] is the step open after paragraph i was processed, or nil.
	StepAt []*doctree.Step
}

// Build runs the single forward classification pass. The decider is only
// consulted for short description and note candidates.
func Build(ctx context.Context, paragraphs []doctree.Paragraph, d decide.Decider, opts Options, log *slog.Logger) (*Result, error) {
	if len(paragraphs) < 2 {
		return nil, fmt.Errorf("%w: need a title and at least one body paragraph, got %d paragraphs", ErrMalformedInput, len(paragraphs))
	}
	title := strings.TrimSpace(paragraphs[0].Text)
	if title == "" {
		return nil, fmt.Errorf("%w: first paragraph is empty", ErrMalformedInput)
	}

	rec := decide.NewRecorder(d)
	b := &builder{
		task: doctree.NewTask(opts.TaskID, paragraphs[0].Text),
		res:  &Result{StepAt: make([]*doctree.Step, len(paragraphs))},
		log:  log,
	}
	b.res.Task = b.task

	consumed := -1
	if opts.DetectShortDesc {
		p := paragraphs[1]
		if !p.Style.IsList() && strings.TrimSpace(p.Text) != "" {
			if rec.Decide(ctx, decide.Decision{Kind: decide.ShortDescCandidate, Content: p.Text}) {
				b.task.ShortDesc = &doctree.ShortDesc{Text: p.Text}
				consumed = 1
			}
		}
	}

	for i := 1; i < len(paragraphs); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i != consumed {
			b.paragraph(ctx, paragraphs[i], rec, opts)
		}
		b.res.StepAt[i] = b.step
	}

	b.res.Decisions = rec.Records()
	log.Debug("classified paragraphs",
		"paragraphs", len(paragraphs),
		"steps", len(b.task.StepList()),
		"dropped", b.res.Dropped,
		"blank", b.res.Blank,
		"decisions", len(b.res.Decisions),
	)
	return b.res, nil
}

type builder struct {
	task *doctree.Task
	res  *Result
	log  *slog.Logger

	// step is the most recently opened step. Substeps only ever attach here.
	step *doctree.Step
}

func (b *builder) paragraph(ctx context.Context, p doctree.Paragraph, d decide.Decider, opts Options) {
	if opts.DetectNotes && strings.HasPrefix(p.Text, NotePrefix) {
		content := strings.TrimSpace(p.Text[len(NotePrefix):])
		if !opts.ConfirmNotes || d.Decide(ctx, decide.Decision{Kind: decide.NoteCandidate, Content: content}) {
			b.info(&doctree.Info{Note: &doctree.Note{Text: content}})
		} else {
			b.info(&doctree.Info{Text: content})
		}
		return
	}

	switch {
	case strings.TrimSpace(p.Text) == "":
		b.res.Blank++
	case p.Style == doctree.ListLevel1:
		b.step = &doctree.Step{Command: p.Text}
		b.task.Steps.Items = append(b.task.Steps.Items, b.step)
	case p.Style == doctree.ListLevel2 && b.step != nil:
		b.step.Substeps = append(b.step.Substeps, &doctree.Step{Command: p.Text})
	case p.Style == doctree.ListLevel2:
		b.res.Dropped++
		b.log.Warn("dropping substep with no open step", "index", p.Index, "text", p.Text)
	default:
		b.info(&doctree.Info{Text: p.Text})
	}
}

// info attaches to the open step, or to the steps container when none is open.
func (b *builder) info(in *doctree.Info) {
	if b.step != nil {
		b.step.Infos = append(b.step.Infos, in)
		return
	}
	b.task.Steps.Items = append(b.task.Steps.Items, in)
}
