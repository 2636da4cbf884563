// Package convert runs a whole conversion: classify, attach images,
// serialize, substitute, then write the result out atomically.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docx2dita/internal/classify"
	"github.com/dgallion1/docx2dita/internal/decide"
	"github.com/dgallion1/docx2dita/internal/dita"
	"github.com/dgallion1/docx2dita/internal/doctree"
	"github.com/dgallion1/docx2dita/internal/fsutil"
	"github.com/dgallion1/docx2dita/internal/images"
	"github.com/dgallion1/docx2dita/internal/substitute"
)

var (
	ErrMalformedInput = classify.ErrMalformedInput
	ErrSerialization  = dita.ErrSerialization
	ErrPreferenceLoad = substitute.ErrPreferenceLoad
	ErrMissingTaskID  = errors.New("missing task id")
)

// Extension is appended to output paths that lack it.
const Extension = ".dita"

// Request carries everything one conversion needs. It is read, never
// modified.
type Request struct {
	TaskID string

	DetectShortDesc bool
	DetectNotes     bool
	ConfirmNotes    bool
	Decider         decide.Decider

	Rules []substitute.Rule

	Images    images.Policy
	Placement images.Placement
	Sink      images.Sink
	HrefRoot  string
}

// Result is the rendered document and what happened on the way.
type Result struct {
	Output      string      `json:"-"`
	Steps       int         `json:"steps"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Run converts src. Paragraph and image problems are recovered and reported
// in the diagnostics; only missing input and serialization faults fail.
func Run(ctx context.Context, src *doctree.Source, req Request, log *slog.Logger) (*Result, error) {
	if strings.TrimSpace(req.TaskID) == "" {
		return nil, ErrMissingTaskID
	}
	if src == nil {
		return nil, fmt.Errorf("%w: no source document", ErrMalformedInput)
	}
	d := req.Decider
	if d == nil {
		d = decide.Always(false)
	}
	log = log.With("task_id", req.TaskID, "source", src.Name)

	built, err := classify.Build(ctx, src.Paragraphs, d, classify.Options{
		TaskID:          req.TaskID,
		DetectShortDesc: req.DetectShortDesc,
		DetectNotes:     req.DetectNotes,
		ConfirmNotes:    req.ConfirmNotes,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	sink := req.Sink
	if sink == nil {
		sink = &images.DirSink{}
	}
	imgRep, err := images.Attach(ctx, built.Task, src.Images, req.Images, sink, images.Options{
		Placement: req.Placement,
		StepAt:    built.StepAt,
		HrefRoot:  req.HrefRoot,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("attach images: %w", err)
	}

	rendered, err := dita.Serialize(built.Task)
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}

	body, reports := substitute.Apply(strings.TrimPrefix(rendered, dita.Preamble), req.Rules)
	out := dita.Preamble + body

	diag := Diagnostics{
		Dropped:        built.Dropped,
		Blank:          built.Blank,
		SkippedImages:  imgRep.Skipped,
		DroppedFigures: imgRep.Dropped,
		WrittenImages:  imgRep.Written,
		Substitutions:  reports,
		Decisions:      built.Decisions,
		UnknownStyles:  src.UnknownStyles,
	}
	for _, e := range imgRep.Errors {
		diag.ImageErrors = append(diag.ImageErrors, e.Error())
	}
	if err := dita.Validate(out); err != nil {
		diag.Warnings = append(diag.Warnings, "substitutions left the document malformed: "+err.Error())
		log.Warn("output is not well-formed after substitution", "error", err)
	}

	log.Info("conversion complete",
		"steps", len(built.Task.StepList()),
		"figures", len(built.Task.Figures()),
		"dropped", diag.Dropped,
		"skipped_images", diag.SkippedImages,
		"substitutions", diag.AppliedSubstitutions(),
	)
	return &Result{Output: out, Steps: len(built.Task.StepList()), Diagnostics: diag}, nil
}

// EnsureExt appends the .dita extension when path lacks it.
func EnsureExt(path string) string {
	if strings.EqualFold(filepath.Ext(path), Extension) {
		return path
	}
	return path + Extension
}

// WriteFile writes output to path in one atomic step. A cancelled context
// leaves nothing on disk.
func WriteFile(ctx context.Context, path, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, []byte(output), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
