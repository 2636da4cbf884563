package dita

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docx2dita/internal/doctree"
)

// ErrUnexpectedElement is returned by Parse for markup outside the task
// subset this package writes.
var ErrUnexpectedElement = errors.New("unexpected element")

// node is a generic parsed element.
type node struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []*node
}

// Parse reads a task topic back into a tree. Only the structure produced by
// Serialize is understood.
func Parse(r io.Reader) (*doctree.Task, error) {
	root, err := readTree(r)
	if err != nil {
		return nil, err
	}
	return toTask(root)
}

// Validate checks that s is well-formed markup with a single root element.
func Validate(s string) error {
	_, err := readTree(strings.NewReader(s))
	return err
}

func readTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read markup: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("read markup: multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			} else if strings.TrimSpace(string(t)) != "" {
				return nil, fmt.Errorf("read markup: text outside root element")
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("read markup: no root element")
	}
	return root, nil
}

// leafText returns the text of an element with no children.
func (n *node) leafText() (string, error) {
	if len(n.children) > 0 {
		return "", fmt.Errorf("%w: <%s> inside <%s>", ErrUnexpectedElement, n.children[0].name, n.name)
	}
	return n.text.String(), nil
}

func toTask(n *node) (*doctree.Task, error) {
	if n.name != "task" {
		return nil, fmt.Errorf("%w: root <%s>", ErrUnexpectedElement, n.name)
	}
	t := doctree.NewTask(n.attrs["id"], "")
	for _, c := range n.children {
		switch c.name {
		case elemTitle:
			text, err := c.leafText()
			if err != nil {
				return nil, err
			}
			t.Title = text
		case "shortdesc":
			text, err := c.leafText()
			if err != nil {
				return nil, err
			}
			t.ShortDesc = &doctree.ShortDesc{Text: text}
		case elemTaskBody:
			for _, body := range c.children {
				if body.name != "steps" {
					return nil, fmt.Errorf("%w: <%s> in taskbody", ErrUnexpectedElement, body.name)
				}
				if err := toSteps(body, t.Steps); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("%w: <%s> in task", ErrUnexpectedElement, c.name)
		}
	}
	return t, nil
}

func toSteps(n *node, steps *doctree.Steps) error {
	for _, c := range n.children {
		switch c.name {
		case "step":
			s, err := toStep(c, false)
			if err != nil {
				return err
			}
			steps.Items = append(steps.Items, s)
		case "info":
			in, err := toInfo(c)
			if err != nil {
				return err
			}
			steps.Items = append(steps.Items, in)
		default:
			return fmt.Errorf("%w: <%s> in steps", ErrUnexpectedElement, c.name)
		}
	}
	return nil
}

func toStep(n *node, sub bool) (*doctree.Step, error) {
	s := &doctree.Step{}
	for _, c := range n.children {
		switch {
		case c.name == elemCmd:
			text, err := c.leafText()
			if err != nil {
				return nil, err
			}
			s.Command = text
		case c.name == "info":
			in, err := toInfo(c)
			if err != nil {
				return nil, err
			}
			s.Infos = append(s.Infos, in)
		case c.name == elemSubsteps && !sub:
			for _, ss := range c.children {
				if ss.name != elemSubstep {
					return nil, fmt.Errorf("%w: <%s> in substeps", ErrUnexpectedElement, ss.name)
				}
				child, err := toStep(ss, true)
				if err != nil {
					return nil, err
				}
				s.Substeps = append(s.Substeps, child)
			}
		default:
			return nil, fmt.Errorf("%w: <%s> in <%s>", ErrUnexpectedElement, c.name, n.name)
		}
	}
	return s, nil
}

func toInfo(n *node) (*doctree.Info, error) {
	if len(n.children) == 0 {
		return &doctree.Info{Text: n.text.String()}, nil
	}
	if len(n.children) > 1 {
		return nil, fmt.Errorf("%w: info with %d children", ErrUnexpectedElement, len(n.children))
	}
	c := n.children[0]
	switch c.name {
	case "note":
		text, err := c.leafText()
		if err != nil {
			return nil, err
		}
		return &doctree.Info{Note: &doctree.Note{Text: text}}, nil
	case "fig":
		fig := &doctree.Figure{}
		for _, fc := range c.children {
			switch fc.name {
			case elemTitle:
				text, err := fc.leafText()
				if err != nil {
					return nil, err
				}
				fig.Title = text
			case elemImage:
				fig.Href = fc.attrs["href"]
			default:
				return nil, fmt.Errorf("%w: <%s> in fig", ErrUnexpectedElement, fc.name)
			}
		}
		return &doctree.Info{Figure: fig}, nil
	}
	return nil, fmt.Errorf("%w: <%s> in info", ErrUnexpectedElement, c.name)
}
