package substitute

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dgallion1/docx2dita/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// ErrPreferenceLoad wraps every failure to read the preferences store.
// Callers are expected to continue with an empty table.
var ErrPreferenceLoad = errors.New("preference load error")

const keyrefKey = "keyref"

// Load reads the preferences store at path. A missing file is an empty
// table, not an error.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewTable(), nil
	}
	if err != nil {
		return NewTable(), fmt.Errorf("%w: read %s: %w", ErrPreferenceLoad, path, err)
	}
	t, err := Decode(data)
	if err != nil {
		return NewTable(), fmt.Errorf("%w: %s: %w", ErrPreferenceLoad, path, err)
	}
	return t, nil
}

// Decode parses a flat YAML or JSON mapping, keeping key order. A value is
// either a replacement string or a mapping of the form {keyref: ID}.
func Decode(data []byte) (*Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse preferences: %w", err)
	}
	t := NewTable()
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return t, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return t, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse preferences: line %d: expected a mapping", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("parse preferences: line %d: key must be a string", key.Line)
		}
		rule, err := decodeValue(key.Value, val)
		if err != nil {
			return nil, err
		}
		t.Set(rule)
	}
	return t, nil
}

func decodeValue(from string, val *yaml.Node) (Rule, error) {
	switch val.Kind {
	case yaml.ScalarNode:
		if val.Tag == "!!null" {
			return Rule{From: from}, nil
		}
		return Rule{From: from, To: val.Value}, nil
	case yaml.MappingNode:
		if len(val.Content) == 2 && val.Content[0].Value == keyrefKey && val.Content[1].Kind == yaml.ScalarNode {
			return Rule{From: from, To: val.Content[1].Value, Keyref: true}, nil
		}
	}
	return Rule{}, fmt.Errorf("parse preferences: line %d: value for %q must be a string or {keyref: ID}", val.Line, from)
}

// Encode renders t in the format Decode reads.
func (t *Table) Encode() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, r := range t.rules {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: r.From}
		var val *yaml.Node
		if r.Keyref {
			val = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Tag: "!!str", Value: keyrefKey},
				{Kind: yaml.ScalarNode, Tag: "!!str", Value: r.To},
			}}
		} else {
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: r.To}
		}
		root.Content = append(root.Content, key, val)
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	return yaml.Marshal(doc)
}

// Save writes t to path atomically.
func Save(path string, t *Table) error {
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// Store guards a table shared between requests and persists each change.
type Store struct {
	mu    sync.Mutex
	path  string
	table *Table
}

// OpenStore loads path into a Store. On a load error the store starts empty
// and the error is returned alongside it.
func OpenStore(path string) (*Store, error) {
	t, err := Load(path)
	return &Store{path: path, table: t}, err
}

// Rules returns a snapshot of the current rules.
func (s *Store) Rules() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Rules()
}

// Replace swaps in t and saves it. The in-memory table is only replaced
// when the save succeeds.
func (s *Store) Replace(t *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		if err := Save(s.path, t); err != nil {
			return err
		}
	}
	s.table = NewTable(t.Rules()...)
	return nil
}
