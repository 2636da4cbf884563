// Package decide resolves ambiguous paragraph classifications.
//
// The classifier never talks to a user interface directly. It hands a
// Decision to a Decider and blocks until a verdict comes back. Deciders must
// always return; a policy that cannot reach its backend falls back to a fixed
// verdict instead of hanging.
package decide

import (
	"context"
	"sync"
)

// Kind is the type of question being asked.
type Kind string

const (
	ShortDescCandidate Kind = "shortdesc"
	NoteCandidate      Kind = "note"
)

// Decision is a yes/no question about one paragraph.
type Decision struct {
	Kind    Kind   `json:"kind"`
	Content string `json:"content"`
}

// Question renders the decision as the prompt shown to a human.
func (d Decision) Question() string {
	switch d.Kind {
	case ShortDescCandidate:
		return "Is this the short description?"
	case NoteCandidate:
		return "Is this a note?"
	}
	return "Accept this paragraph?"
}

// Decider answers decisions synchronously.
type Decider interface {
	Decide(ctx context.Context, d Decision) bool
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, d Decision) bool

func (f DeciderFunc) Decide(ctx context.Context, d Decision) bool { return f(ctx, d) }

// Always answers every decision with the same verdict.
func Always(verdict bool) Decider {
	return DeciderFunc(func(context.Context, Decision) bool { return verdict })
}

// Fixed answers with a per-kind verdict. Unknown kinds get false.
type Fixed map[Kind]bool

func (f Fixed) Decide(_ context.Context, d Decision) bool {
	return f[d.Kind]
}

// Record is one answered decision.
type Record struct {
	Decision
	Verdict bool `json:"verdict"`
}

// Recorder wraps a Decider and keeps the transcript of every answer.
type Recorder struct {
	next Decider

	mu      sync.Mutex
	records []Record
}

func NewRecorder(next Decider) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) Decide(ctx context.Context, d Decision) bool {
	v := r.next.Decide(ctx, d)
	r.mu.Lock()
	r.records = append(r.records, Record{Decision: d, Verdict: v})
	r.mu.Unlock()
	return v
}

// Records returns a copy of the transcript.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Verdicts answers kinds with a preset verdict and defers the rest to Next.
// With no Next, unanswered kinds get false.
type Verdicts struct {
	Known Fixed
	Next  Decider
}

func (v Verdicts) Decide(ctx context.Context, d Decision) bool {
	if verdict, ok := v.Known[d.Kind]; ok {
		return verdict
	}
	if v.Next == nil {
		return false
	}
	return v.Next.Decide(ctx, d)
}
