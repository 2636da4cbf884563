package doctree

// Kind identifies a node variant of the task tree.
type Kind int

const (
	KindTask Kind = iota + 1
	KindShortDesc
	KindSteps
	KindStep
	KindInfo
	KindNote
	KindFigure
)

// Node is implemented by every task tree variant.
type Node interface {
	Kind() Kind
}

// Task is the root of a converted document.
type Task struct {
	ID        string
	Title     string
	ShortDesc *ShortDesc
	Steps     *Steps
}

// ShortDesc is the optional one-paragraph summary after the title.
type ShortDesc struct {
	Text string
}

// Steps is the ordered steps container. Items holds *Step and
// container-level *Info nodes in document order.
type Steps struct {
	Items []Node
}

// Step is an instructional unit. Substeps never carry substeps of their own.
type Step struct {
	Command  string
	Infos    []*Info
	Substeps []*Step
}

// Info carries exactly one of Text, Note or Figure.
type Info struct {
	Text   string
	Note   *Note
	Figure *Figure
}

// Note is a callout wrapped in an Info.
type Note struct {
	Text string
}

// Figure references an externally written image.
type Figure struct {
	Title string
	Href  string
}

func (*Task) Kind() Kind      { return KindTask }
func (*ShortDesc) Kind() Kind { return KindShortDesc }
func (*Steps) Kind() Kind     { return KindSteps }
func (*Step) Kind() Kind      { return KindStep }
func (*Info) Kind() Kind      { return KindInfo }
func (*Note) Kind() Kind      { return KindNote }
func (*Figure) Kind() Kind    { return KindFigure }

// NewTask returns a task with an empty steps container.
func NewTask(id, title string) *Task {
	return &Task{ID: id, Title: title, Steps: &Steps{}}
}

// StepList returns the top-level steps in order, skipping container-level infos.
func (t *Task) StepList() []*Step {
	if t.Steps == nil {
		return nil
	}
	var out []*Step
	for _, n := range t.Steps.Items {
		if s, ok := n.(*Step); ok {
			out = append(out, s)
		}
	}
	return out
}

// LastStep returns the most recently appended top-level step, or nil.
func (t *Task) LastStep() *Step {
	if t.Steps == nil {
		return nil
	}
	for i := len(t.Steps.Items) - 1; i >= 0; i-- {
		if s, ok := t.Steps.Items[i].(*Step); ok {
			return s
		}
	}
	return nil
}

// Figures returns every figure attached anywhere in the tree.
func (t *Task) Figures() []*Figure {
	var out []*Figure
	collect := func(infos []*Info) {
		for _, in := range infos {
			if in.Figure != nil {
				out = append(out, in.Figure)
			}
		}
	}
	for _, s := range t.StepList() {
		collect(s.Infos)
		for _, sub := range s.Substeps {
			collect(sub.Infos)
		}
	}
	return out
}
