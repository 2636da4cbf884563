package substitute

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	tbl, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if tbl.Len() != 0 {
		t.Errorf("expected empty table, got %d rules", tbl.Len())
	}
}

func TestLoadJSONKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	data := `{"zeta": "last letter", "alpha": "first letter", "Acme": {"keyref": "company"}, "blank": null}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []Rule{
		{From: "zeta", To: "last letter"},
		{From: "alpha", To: "first letter"},
		{From: "Acme", To: "company", Keyref: true},
		{From: "blank", To: ""},
	}
	if got := tbl.Rules(); !reflect.DeepEqual(got, want) {
		t.Errorf("rules = %+v, want %+v", got, want)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":   "{not: [valid",
		"sequence": "- a\n- b\n",
		"nested":   "a:\n  b: c\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "prefs.yaml")
			if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
				t.Fatal(err)
			}
			tbl, err := Load(path)
			if !errors.Is(err, ErrPreferenceLoad) {
				t.Fatalf("expected ErrPreferenceLoad, got %v", err)
			}
			if tbl == nil || tbl.Len() != 0 {
				t.Error("a failed load should still return an empty table")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs", "preferences.yaml")
	tbl := NewTable(
		Rule{From: "yes", To: "no"},
		Rule{From: "100", To: "one hundred"},
		Rule{From: "Widget: v2", To: "Gadget"},
		Rule{From: "Acme", To: "company", Keyref: true},
		Rule{From: "a", To: ""},
	)
	if err := Save(path, tbl); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Rules(), tbl.Rules()) {
		t.Errorf("round trip = %+v, want %+v", loaded.Rules(), tbl.Rules())
	}
}

func TestDecodeEmpty(t *testing.T) {
	for _, data := range []string{"", "{}", "# just a comment\n"} {
		tbl, err := Decode([]byte(data))
		if err != nil || tbl.Len() != 0 {
			t.Errorf("Decode(%q) = %d rules, %v", data, tbl.Len(), err)
		}
	}
}

func TestStoreReplacePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("open missing store: %v", err)
	}
	if len(s.Rules()) != 0 {
		t.Fatalf("expected empty store, got %v", s.Rules())
	}

	if err := s.Replace(NewTable(Rule{From: "a", To: "b"}, Rule{From: "Acme", To: "acme", Keyref: true})); err != nil {
		t.Fatalf("replace: %v", err)
	}
	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := reopened.Rules()
	if len(got) != 2 || got[0].From != "a" || !got[1].Keyref {
		t.Errorf("unexpected rules after reopen: %+v", got)
	}
}

func TestStoreReplaceFailureKeepsTable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := &Store{path: filepath.Join(blocker, "prefs.yaml"), table: NewTable(Rule{From: "x", To: "y"})}
	if err := s.Replace(NewTable()); err == nil {
		t.Fatal("expected save error under a regular file")
	}
	if len(s.Rules()) != 1 {
		t.Errorf("failed replace should keep the old table, got %v", s.Rules())
	}
}
