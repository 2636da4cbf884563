package convert

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docx2dita/internal/decide"
	"github.com/dgallion1/docx2dita/internal/substitute"
)

// Diagnostics is returned with every successful conversion.
type Diagnostics struct {
	Dropped        int                 `json:"dropped"`
	Blank          int                 `json:"blank"`
	SkippedImages  int                 `json:"skipped_images"`
	DroppedFigures int                 `json:"dropped_figures"`
	WrittenImages  []string            `json:"written_images,omitempty"`
	ImageErrors    []string            `json:"image_errors,omitempty"`
	Substitutions  []substitute.Report `json:"substitutions,omitempty"`
	Decisions      []decide.Record     `json:"decisions,omitempty"`
	UnknownStyles  int                 `json:"unknown_styles"`
	Warnings       []string            `json:"warnings,omitempty"`
}

// AppliedSubstitutions counts rules that matched at least once.
func (d Diagnostics) AppliedSubstitutions() int {
	n := 0
	for _, r := range d.Substitutions {
		if r.Applied {
			n++
		}
	}
	return n
}

// Summary renders the diagnostics for a terminal.
func (d Diagnostics) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "dropped substeps: %d\n", d.Dropped)
	fmt.Fprintf(&sb, "skipped images: %d\n", d.SkippedImages)
	if d.DroppedFigures > 0 {
		fmt.Fprintf(&sb, "figures with no step: %d\n", d.DroppedFigures)
	}
	if len(d.WrittenImages) > 0 {
		fmt.Fprintf(&sb, "written images: %d\n", len(d.WrittenImages))
	}
	fmt.Fprintf(&sb, "applied substitutions: %d of %d\n", d.AppliedSubstitutions(), len(d.Substitutions))
	for _, r := range d.Substitutions {
		if r.Applied {
			fmt.Fprintf(&sb, "  %q -> %q (%d)\n", r.Rule.From, r.Rule.Replacement(), r.Count)
		}
	}
	if d.Blank > 0 {
		fmt.Fprintf(&sb, "blank paragraphs skipped: %d\n", d.Blank)
	}
	if d.UnknownStyles > 0 {
		fmt.Fprintf(&sb, "paragraphs with unknown styles: %d\n", d.UnknownStyles)
	}
	for _, rec := range d.Decisions {
		verdict := "no"
		if rec.Verdict {
			verdict = "yes"
		}
		fmt.Fprintf(&sb, "decision %s: %s (%q)\n", rec.Kind, verdict, rec.Content)
	}
	for _, e := range d.ImageErrors {
		fmt.Fprintf(&sb, "image error: %s\n", e)
	}
	for _, w := range d.Warnings {
		fmt.Fprintf(&sb, "warning: %s\n", w)
	}
	return sb.String()
}
