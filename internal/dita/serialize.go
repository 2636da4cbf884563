// Package dita renders task trees as DITA task topics and reads them back.
package dita

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docx2dita/internal/doctree"
)

// ErrSerialization reports a tree that has no markup mapping.
var ErrSerialization = errors.New("serialization error")

// Preamble is the fixed declaration and doctype that starts every document.
const Preamble = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<!DOCTYPE task PUBLIC "-//OASIS//DTD DITA Task//EN" "task.dtd">` + "\n"

// Element names for each node kind. Structural wrappers that have no node of
// their own are listed separately below.
var elementNames = map[doctree.Kind]string{
	doctree.KindTask:      "task",
	doctree.KindShortDesc: "shortdesc",
	doctree.KindSteps:     "steps",
	doctree.KindStep:      "step",
	doctree.KindInfo:      "info",
	doctree.KindNote:      "note",
	doctree.KindFigure:    "fig",
}

const (
	elemTitle    = "title"
	elemTaskBody = "taskbody"
	elemCmd      = "cmd"
	elemSubsteps = "substeps"
	elemSubstep  = "substep"
	elemImage    = "image"
)

// Serialize renders t with two-space indentation. The same tree always yields
// the same bytes.
func Serialize(t *doctree.Task) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: nil task", ErrSerialization)
	}
	root, err := taskElement(t)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(Preamble)
	root.write(&sb, 0)
	return sb.String(), nil
}

// element is the rendering form of a node.
type element struct {
	name     string
	attrs    [][2]string
	text     string
	children []*element
}

func elementFor(n doctree.Node) (*element, error) {
	name, ok := elementNames[n.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: no element for node kind %d", ErrSerialization, n.Kind())
	}
	return &element{name: name}, nil
}

func taskElement(t *doctree.Task) (*element, error) {
	el, err := elementFor(t)
	if err != nil {
		return nil, err
	}
	el.attrs = [][2]string{{"id", t.ID}}
	el.children = append(el.children, &element{name: elemTitle, text: t.Title})

	if t.ShortDesc != nil {
		sd, err := elementFor(t.ShortDesc)
		if err != nil {
			return nil, err
		}
		sd.text = t.ShortDesc.Text
		el.children = append(el.children, sd)
	}

	steps := t.Steps
	if steps == nil {
		steps = &doctree.Steps{}
	}
	stepsEl, err := elementFor(steps)
	if err != nil {
		return nil, err
	}
	for _, item := range steps.Items {
		var child *element
		switch n := item.(type) {
		case *doctree.Step:
			child, err = stepElement(n, false)
		case *doctree.Info:
			child, err = infoElement(n)
		default:
			err = fmt.Errorf("%w: %T cannot appear in steps", ErrSerialization, item)
		}
		if err != nil {
			return nil, err
		}
		stepsEl.children = append(stepsEl.children, child)
	}
	el.children = append(el.children, &element{name: elemTaskBody, children: []*element{stepsEl}})
	return el, nil
}

// stepElement renders cmd, then infos, then substeps.
func stepElement(s *doctree.Step, sub bool) (*element, error) {
	el, err := elementFor(s)
	if err != nil {
		return nil, err
	}
	if sub {
		el.name = elemSubstep
	}
	el.children = append(el.children, &element{name: elemCmd, text: s.Command})
	for _, in := range s.Infos {
		child, err := infoElement(in)
		if err != nil {
			return nil, err
		}
		el.children = append(el.children, child)
	}
	if len(s.Substeps) > 0 {
		if sub {
			return nil, fmt.Errorf("%w: substeps cannot nest", ErrSerialization)
		}
		group := &element{name: elemSubsteps}
		for _, ss := range s.Substeps {
			child, err := stepElement(ss, true)
			if err != nil {
				return nil, err
			}
			group.children = append(group.children, child)
		}
		el.children = append(el.children, group)
	}
	return el, nil
}

func infoElement(in *doctree.Info) (*element, error) {
	el, err := elementFor(in)
	if err != nil {
		return nil, err
	}
	switch {
	case in.Note != nil:
		note, err := elementFor(in.Note)
		if err != nil {
			return nil, err
		}
		note.text = in.Note.Text
		el.children = []*element{note}
	case in.Figure != nil:
		fig, err := elementFor(in.Figure)
		if err != nil {
			return nil, err
		}
		if in.Figure.Title != "" {
			fig.children = append(fig.children, &element{name: elemTitle, text: in.Figure.Title})
		}
		fig.children = append(fig.children, &element{name: elemImage, attrs: [][2]string{{"href", in.Figure.Href}}})
		el.children = []*element{fig}
	default:
		el.text = in.Text
	}
	return el, nil
}

func (e *element) write(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	sb.WriteString(indent)
	sb.WriteByte('<')
	sb.WriteString(e.name)
	for _, a := range e.attrs {
		sb.WriteByte(' ')
		sb.WriteString(a[0])
		sb.WriteString(`="`)
		sb.WriteString(escape(a[1], true))
		sb.WriteByte('"')
	}

	switch {
	case len(e.children) > 0:
		sb.WriteString(">\n")
		for _, c := range e.children {
			c.write(sb, depth+1)
		}
		sb.WriteString(indent)
	case e.text != "":
		sb.WriteByte('>')
		sb.WriteString(escape(e.text, false))
	default:
		sb.WriteString("/>\n")
		return
	}
	sb.WriteString("</")
	sb.WriteString(e.name)
	sb.WriteString(">\n")
}

// escape replaces markup characters and drops runes XML 1.0 cannot carry.
func escape(s string, attr bool) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '&':
			sb.WriteString("&amp;")
		case r == '<':
			sb.WriteString("&lt;")
		case r == '>':
			sb.WriteString("&gt;")
		case r == '"' && attr:
			sb.WriteString("&quot;")
		case r == '\r':
			sb.WriteString("&#xD;")
		case (r == '\n' || r == '\t') && attr:
			fmt.Fprintf(&sb, "&#x%X;", r)
		case !xmlChar(r) || (r == utf8.RuneError && size == 1):
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func xmlChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}
