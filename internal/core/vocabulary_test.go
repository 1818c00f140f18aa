package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()
	if err := v.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if len(v.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(v.Sections))
	}
	if n := len(v.Descriptions()); n != 15 {
		t.Fatalf("expected 15 descriptions, got %d", n)
	}
	if !v.Contains("Oil & Filter Change") {
		t.Error("expected to contain Oil & Filter Change")
	}
	if !v.Contains("Windshield Wiper Repl.") {
		t.Error("expected to contain Windshield Wiper Repl.")
	}
	// Matching is exact, not case-insensitive or trimmed.
	if v.Contains("oil & filter change") || v.Contains(" Oil & Filter Change") {
		t.Error("matching must be exact")
	}
}

func TestLoadVocabulary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.json")
	content := `{"sections":[{"name":"Engine","descriptions":["Oil Change"]},{"name":"Body","descriptions":["Paint Touch-up"]}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if len(v.Sections) != 2 || !v.Contains("Paint Touch-up") {
		t.Fatalf("unexpected vocabulary: %+v", v)
	}

	if _, err := LoadVocabulary(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"sections":[]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadVocabulary(bad); err == nil {
		t.Fatal("expected error for empty sections")
	}
}

func TestVocabularyValidateRejectsDuplicates(t *testing.T) {
	v := Vocabulary{Sections: []VocabularySection{
		{Name: "A", Descriptions: []string{"Oil Change"}},
		{Name: "B", Descriptions: []string{"Oil Change"}},
	}}
	if err := v.Validate(); err == nil {
		t.Fatal("expected error for duplicate description across sections")
	}
}
