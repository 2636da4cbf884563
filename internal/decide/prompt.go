package decide

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Prompt asks decisions on a terminal. Anything other than an explicit yes is
// a no, and so is EOF on the input.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

func (p *Prompt) Decide(ctx context.Context, d Decision) bool {
	if ctx.Err() != nil {
		return false
	}
	fmt.Fprintf(p.out, "%s\n\n  %s\n\n[y/N]: ", d.Question(), d.Content)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	return isYes(line)
}

// Path asks for a file path. An empty answer declines.
func (p *Prompt) Path(ctx context.Context, question, suggested string) string {
	if ctx.Err() != nil {
		return ""
	}
	fmt.Fprintf(p.out, "%s [%s, empty to skip]: ", question, suggested)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return ""
	}
	return strings.TrimSpace(line)
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1":
		return true
	}
	return false
}
