// Package substitute applies ordered literal find/replace rules to rendered
// markup and persists them as the preferences store.
package substitute

import (
	"strings"
)

// Rule replaces every occurrence of From. A keyref rule replaces it with a
// keyword cross-reference to the key named by To.
type Rule struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Keyref bool   `json:"keyref,omitempty"`
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `"`, "&quot;")

// Replacement is the literal text that stands in for From.
func (r Rule) Replacement() string {
	if r.Keyref {
		return `<keyword keyref="` + attrEscaper.Replace(r.To) + `"></keyword>`
	}
	return r.To
}

// Report records whether a rule matched during Apply.
type Report struct {
	Rule    Rule `json:"rule"`
	Applied bool `json:"applied"`
	Count   int  `json:"count"`
}

// Apply runs rules in order over the whole of text. Each rule sees the
// output of the previous one, so replacements cascade. Rules with an empty
// From never match.
func Apply(text string, rules []Rule) (string, []Report) {
	reports := make([]Report, 0, len(rules))
	for _, r := range rules {
		rep := Report{Rule: r}
		if r.From != "" {
			rep.Count = strings.Count(text, r.From)
			if rep.Count > 0 {
				text = strings.ReplaceAll(text, r.From, r.Replacement())
				rep.Applied = true
			}
		}
		reports = append(reports, rep)
	}
	return text, reports
}

// Table is an insertion-ordered rule set keyed by From.
type Table struct {
	rules []Rule
}

func NewTable(rules ...Rule) *Table {
	t := &Table{}
	for _, r := range rules {
		t.Set(r)
	}
	return t
}

// Set adds r, or replaces the rule with the same From in place.
func (t *Table) Set(r Rule) {
	for i := range t.rules {
		if t.rules[i].From == r.From {
			t.rules[i] = r
			return
		}
	}
	t.rules = append(t.rules, r)
}

// Delete removes the rule for from and reports whether one existed.
func (t *Table) Delete(from string) bool {
	for i := range t.rules {
		if t.rules[i].From == from {
			t.rules = append(t.rules[:i], t.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns a copy of the rules in order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

func (t *Table) Len() int { return len(t.rules) }

// ParseLines reads one "ORIGINAL : NEW" rule per line. The line is split on
// the first colon and both sides are trimmed. Lines without a colon or with
// an empty left side are ignored.
func ParseLines(text string) []Rule {
	var rules []Rule
	for _, line := range strings.Split(text, "\n") {
		from, to, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		from = strings.TrimSpace(from)
		if from == "" {
			continue
		}
		rules = append(rules, Rule{From: from, To: strings.TrimSpace(to)})
	}
	return rules
}

// FormatLines renders literal rules in the ParseLines format. Keyref rules
// are skipped because the format cannot express them.
func FormatLines(rules []Rule) string {
	var sb strings.Builder
	for _, r := range rules {
		if r.Keyref {
			continue
		}
		sb.WriteString(r.From)
		sb.WriteString(" : ")
		sb.WriteString(r.To)
		sb.WriteByte('\n')
	}
	return sb.String()
}
