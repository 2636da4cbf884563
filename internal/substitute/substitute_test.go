package substitute

import (
	"reflect"
	"testing"
)

func TestApplyCascades(t *testing.T) {
	got, reports := Apply("A", []Rule{{From: "A", To: "B"}, {From: "B", To: "C"}})
	if got != "C" {
		t.Fatalf("expected cascading result %q, got %q", "C", got)
	}
	if !reports[0].Applied || !reports[1].Applied {
		t.Errorf("both rules should report applied: %+v", reports)
	}
}

func TestApplyOrderSensitive(t *testing.T) {
	got, _ := Apply("A", []Rule{{From: "B", To: "C"}, {From: "A", To: "B"}})
	if got != "B" {
		t.Fatalf("expected %q when the later rule cannot see earlier output, got %q", "B", got)
	}
}

func TestApplyReports(t *testing.T) {
	rules := []Rule{
		{From: "Widget", To: "Gadget"},
		{From: "missing", To: "x"},
		{From: "", To: "never"},
	}
	got, reports := Apply("Widget and Widget", rules)
	if got != "Gadget and Gadget" {
		t.Errorf("got %q", got)
	}
	want := []Report{
		{Rule: rules[0], Applied: true, Count: 2},
		{Rule: rules[1], Applied: false, Count: 0},
		{Rule: rules[2], Applied: false, Count: 0},
	}
	if !reflect.DeepEqual(reports, want) {
		t.Errorf("reports = %+v, want %+v", reports, want)
	}
}

func TestApplyRewritesMarkup(t *testing.T) {
	in := "<cmd>Open</cmd>\n<info>x</info>"
	got, _ := Apply(in, []Rule{{From: "<info>x</info>", To: "<info>y</info>"}})
	if got != "<cmd>Open</cmd>\n<info>y</info>" {
		t.Errorf("whole-document markup should be rewritable, got %q", got)
	}
}

func TestApplyKeyref(t *testing.T) {
	got, _ := Apply("<cmd>Start Acme Server.</cmd>", []Rule{{From: "Acme Server", To: "product-name", Keyref: true}})
	want := `<cmd>Start <keyword keyref="product-name"></keyword>.</cmd>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if r := (Rule{To: `a"b`, Keyref: true}).Replacement(); r != `<keyword keyref="a&quot;b"></keyword>` {
		t.Errorf("keyref id should be escaped, got %q", r)
	}
}

func TestTableOrder(t *testing.T) {
	tbl := NewTable(Rule{From: "a", To: "1"}, Rule{From: "b", To: "2"}, Rule{From: "c", To: "3"})
	tbl.Set(Rule{From: "a", To: "one"})
	tbl.Set(Rule{From: "d", To: "4"})
	if !tbl.Delete("b") {
		t.Error("expected delete to report existing rule")
	}
	if tbl.Delete("zzz") {
		t.Error("expected delete of missing rule to report false")
	}
	want := []Rule{{From: "a", To: "one"}, {From: "c", To: "3"}, {From: "d", To: "4"}}
	if got := tbl.Rules(); !reflect.DeepEqual(got, want) {
		t.Errorf("rules = %+v, want %+v", got, want)
	}
	if tbl.Len() != 3 {
		t.Errorf("len = %d", tbl.Len())
	}
}

func TestParseLines(t *testing.T) {
	text := "Acme : ACME Corp\nno colon here\n  : empty left\nURL: http://example.com\n\nspaced   :   value  \n"
	want := []Rule{
		{From: "Acme", To: "ACME Corp"},
		{From: "URL", To: "http://example.com"},
		{From: "spaced", To: "value"},
	}
	if got := ParseLines(text); !reflect.DeepEqual(got, want) {
		t.Errorf("ParseLines = %+v, want %+v", got, want)
	}
}

func TestFormatLinesRoundTrip(t *testing.T) {
	rules := []Rule{{From: "a", To: "b"}, {From: "k", To: "id", Keyref: true}, {From: "c", To: "d"}}
	got := ParseLines(FormatLines(rules))
	want := []Rule{{From: "a", To: "b"}, {From: "c", To: "d"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
