// Package images writes embedded images out and binds them into the task
// tree as figures.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docx2dita/internal/doctree"
	"github.com/gabriel-vasile/mimetype"
)

// Mode selects how image destinations are chosen.
type Mode int

const (
	Skip Mode = iota
	AutoName
	PerImagePrompt
)

func (m Mode) String() string {
	switch m {
	case AutoName:
		return "auto"
	case PerImagePrompt:
		return "prompt"
	}
	return "skip"
}

// ParseMode accepts the names printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip", "":
		return Skip, nil
	case "auto":
		return AutoName, nil
	case "prompt":
		return PerImagePrompt, nil
	}
	return Skip, fmt.Errorf("unknown image mode %q (want skip, auto or prompt)", s)
}

// Placement selects which step receives a figure.
type Placement int

const (
	// PlaceLastStep attaches every figure to the last step of the finished
	// tree.
	PlaceLastStep Placement = iota
	// PlaceAnchored attaches a figure to the step that was open when its
	// carrier paragraph was read.
	PlaceAnchored
)

func (p Placement) String() string {
	if p == PlaceAnchored {
		return "anchored"
	}
	return "last"
}

func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "last", "":
		return PlaceLastStep, nil
	case "anchored":
		return PlaceAnchored, nil
	}
	return PlaceLastStep, fmt.Errorf("unknown image placement %q (want last or anchored)", s)
}

// Policy says whether and where images are written.
type Policy struct {
	Mode Mode
	Dir  string // Target directory for AutoName
}

// Options controls figure placement and references.
type Options struct {
	Placement Placement
	// StepAt maps a paragraph index to the step open after it. Required for
	// PlaceAnchored.
	StepAt []*doctree.Step
	// HrefRoot, when set, makes figure references relative to it.
	HrefRoot string
}

// Report summarizes an Attach pass.
type Report struct {
	Written []string           `json:"written"`
	Figures int                `json:"figures"`
	Skipped int                `json:"skipped"`
	Dropped int                `json:"dropped"`
	Errors  []*ImageWriteError `json:"-"`
}

// ImageWriteError is a failed write of one image. It never stops the pass.
type ImageWriteError struct {
	Index int // 1-based image number
	Path  string
	Err   error
}

func (e *ImageWriteError) Error() string {
	return fmt.Sprintf("write image %d to %s: %v", e.Index, e.Path, e.Err)
}

func (e *ImageWriteError) Unwrap() error { return e.Err }

// Attach writes each record through sink and attaches a figure for it. Records
// are handled in order; a failed write is recorded and the image skipped.
func Attach(ctx context.Context, task *doctree.Task, records []doctree.ImageRecord, policy Policy, sink Sink, opts Options, log *slog.Logger) (Report, error) {
	var rep Report
	if policy.Mode == Skip {
		rep.Skipped = len(records)
		return rep, nil
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n := i + 1

		step := targetStep(task, rec, opts)
		if step == nil {
			rep.Dropped++
			log.Warn("dropping image with no step to attach to", "image", n, "paragraph", rec.Paragraph)
			continue
		}

		name := fmt.Sprintf("image%d%s", n, Extension(rec))
		var dest string
		switch policy.Mode {
		case AutoName:
			dest = filepath.Join(policy.Dir, name)
		case PerImagePrompt:
			dest = sink.Choose(ctx, rec, n, name)
		}
		if dest == "" {
			rep.Skipped++
			log.Info("image skipped", "image", n)
			continue
		}

		if err := sink.Write(ctx, dest, rec.Data); err != nil {
			werr := &ImageWriteError{Index: n, Path: dest, Err: err}
			rep.Errors = append(rep.Errors, werr)
			rep.Skipped++
			log.Error("image write failed", "image", n, "path", dest, "error", err)
			continue
		}
		rep.Written = append(rep.Written, dest)

		step.Infos = append(step.Infos, &doctree.Info{Figure: &doctree.Figure{Href: href(dest, opts.HrefRoot)}})
		rep.Figures++
	}
	return rep, nil
}

func targetStep(task *doctree.Task, rec doctree.ImageRecord, opts Options) *doctree.Step {
	if opts.Placement == PlaceAnchored && rec.Paragraph >= 0 && rec.Paragraph < len(opts.StepAt) {
		return opts.StepAt[rec.Paragraph]
	}
	return task.LastStep()
}

func href(dest, root string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, dest); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(dest)
}

// Extension picks a file extension for rec: the source name's, else one
// implied by the content type or the bytes, else ".png".
func Extension(rec doctree.ImageRecord) string {
	if ext := path.Ext(rec.Name); ext != "" {
		return strings.ToLower(ext)
	}
	if rec.ContentType != "" {
		if mt := mimetype.Lookup(rec.ContentType); mt != nil && mt.Extension() != "" {
			return mt.Extension()
		}
	}
	if len(rec.Data) > 0 {
		if ext := mimetype.Detect(rec.Data).Extension(); ext != "" {
			return ext
		}
	}
	return ".png"
}
