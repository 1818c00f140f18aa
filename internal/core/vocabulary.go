package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// VocabularySection groups recognized maintenance descriptions under a named
// category for display.
type VocabularySection struct {
	Name         string   `json:"name"`
	Descriptions []string `json:"descriptions"`
}

// Vocabulary is the closed set of maintenance description strings the
// category breakdown recognizes. Matching is exact: descriptions outside the
// vocabulary are excluded from the breakdown (they still count toward the
// plain monthly cost totals).
type Vocabulary struct {
	Sections []VocabularySection `json:"sections"`
}

// DefaultVocabulary returns the built-in engine/chassis/misc grouping.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{Sections: []VocabularySection{
		{
			Name: "Engine",
			Descriptions: []string{
				"Oil & Filter Change", "Air Filter Change", "Fuel Filter Change",
				"Transmission Fluid", "Engine Coolant", "Hose Replacement",
				"Belt Replacement", "Battery Replacement",
			},
		},
		{
			Name: "Chassis",
			Descriptions: []string{
				"Tire Repair / Replacement", "Tire Rotation / Balance",
				"Tire Alignment", "Brake Pad Replacement",
			},
		},
		{
			Name: "Misc",
			Descriptions: []string{
				"Windshield Wiper Repl.", "Bulb Replacement", "Other",
			},
		},
	}}
}

// LoadVocabulary reads a vocabulary from a JSON file. The file replaces the
// defaults wholesale; callers fall back to DefaultVocabulary on their own.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary file: %w", err)
	}
	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary file: %w", err)
	}
	if err := v.Validate(); err != nil {
		return Vocabulary{}, err
	}
	return v, nil
}

func (v Vocabulary) Validate() error {
	if len(v.Sections) == 0 {
		return errors.New("vocabulary has no sections")
	}
	seen := map[string]string{}
	for _, sec := range v.Sections {
		if strings.TrimSpace(sec.Name) == "" {
			return errors.New("vocabulary section without a name")
		}
		if len(sec.Descriptions) == 0 {
			return fmt.Errorf("vocabulary section %q has no descriptions", sec.Name)
		}
		for _, d := range sec.Descriptions {
			if strings.TrimSpace(d) == "" {
				return fmt.Errorf("vocabulary section %q has an empty description", sec.Name)
			}
			if prev, dup := seen[d]; dup {
				return fmt.Errorf("description %q appears in both %q and %q", d, prev, sec.Name)
			}
			seen[d] = sec.Name
		}
	}
	return nil
}

// Contains reports whether desc exactly matches a vocabulary string.
func (v Vocabulary) Contains(desc string) bool {
	for _, sec := range v.Sections {
		for _, d := range sec.Descriptions {
			if d == desc {
				return true
			}
		}
	}
	return false
}

// Descriptions returns every recognized description, flattened in section
// order. The category breakdown uses this as its row order.
func (v Vocabulary) Descriptions() []string {
	var out []string
	for _, sec := range v.Sections {
		out = append(out, sec.Descriptions...)
	}
	return out
}
