package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docx2dita/internal/convert"
	"github.com/dgallion1/docx2dita/internal/decide"
	"github.com/dgallion1/docx2dita/internal/images"
	"github.com/dgallion1/docx2dita/internal/parser"
)

// ImageDir is the directory images are placed under inside a result archive.
const ImageDir = "images"

// Worker processes a single conversion job.
type Worker struct {
	decider    decide.Decider
	parserOpts parser.Options
	log        *slog.Logger
}

// NewWorker builds a worker. decider answers kinds the job leaves open and
// may be nil, in which case they are declined.
func NewWorker(decider decide.Decider, parserOpts parser.Options, log *slog.Logger) *Worker {
	return &Worker{
		decider:    decider,
		parserOpts: parserOpts,
		log:        log,
	}
}

// Process runs parse and convert for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "task_id", job.TaskID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	src, err := parser.Open(job.FileData(), job.Filename, w.parserOpts)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetParsed(len(src.Paragraphs), len(src.Images))
	log.Info("parsed document", "paragraphs", len(src.Paragraphs), "images", len(src.Images))

	// Phase 2: Convert
	job.SetStatus(StatusConverting, "converting")
	opts := job.Options
	sink := &images.MemorySink{}
	policy := images.Policy{Mode: images.Skip}
	if opts.IncludeImages {
		policy = images.Policy{Mode: images.AutoName, Dir: ImageDir}
	}
	res, err := convert.Run(ctx, src, convert.Request{
		TaskID:          job.TaskID,
		DetectShortDesc: opts.DetectShortDesc,
		DetectNotes:     opts.DetectNotes,
		ConfirmNotes:    opts.ConfirmNotes,
		Decider:         w.jobDecider(opts),
		Rules:           opts.Rules,
		Images:          policy,
		Placement:       opts.Placement,
		Sink:            sink,
	}, log)
	if err != nil {
		log.Error("conversion failed", "error", err)
		job.AddError(fmt.Sprintf("convert: %s", err))
		job.SetStatus(StatusFailed, "converting")
		return
	}
	for _, e := range res.Diagnostics.ImageErrors {
		job.AddError(e)
	}

	job.Complete(&Result{
		Output:      res.Output,
		Diagnostics: res.Diagnostics,
		Images:      sink.Files(),
	}, res.Steps)
}

// jobDecider answers with the verdicts the request supplied and falls back
// to the worker's decider for the rest.
func (w *Worker) jobDecider(opts Options) decide.Decider {
	known := decide.Fixed{}
	if opts.ShortDescVerdict != nil {
		known[decide.ShortDescCandidate] = *opts.ShortDescVerdict
	}
	if opts.NoteVerdict != nil {
		known[decide.NoteCandidate] = *opts.NoteVerdict
	}
	return decide.Verdicts{Known: known, Next: w.decider}
}
