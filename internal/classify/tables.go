package classify

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var keywordsYAML []byte

// Family is a tag and the keywords that imply it.
type Family struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
	// Match is "any" (default) or "all".
	Match string `yaml:"match"`
}

// Matches reports whether text satisfies the family. text must already be lower case.
func (f Family) Matches(text string) bool {
	if len(f.Keywords) == 0 {
		return false
	}
	all := f.Match == "all"
	for _, kw := range f.Keywords {
		hit := strings.Contains(text, kw)
		if hit && !all {
			return true
		}
		if !hit && all {
			return false
		}
	}
	return all
}

type IntensityRule struct {
	RestKeyword string  `yaml:"rest_keyword"`
	LowAbove    float64 `yaml:"low_above"`
	HighBelow   float64 `yaml:"high_below"`
}

// Tables is the versioned keyword data behind every classification.
type Tables struct {
	Version            int                `yaml:"version"`
	CalorieRates       map[string]float64 `yaml:"calorie_rates"`
	DefaultCalorieRate float64            `yaml:"default_calorie_rate"`
	PreferenceTags     []Family           `yaml:"preference_tags"`
	BodyTags           []Family           `yaml:"body_tags"`
	MuscleGroups       []Family           `yaml:"muscle_groups"`
	Categories         []Family           `yaml:"categories"`
	DefaultCategory    string             `yaml:"default_category"`
	Intensity          IntensityRule      `yaml:"intensity"`
	Equipment          []Family           `yaml:"equipment"`
	DefaultEquipment   string             `yaml:"default_equipment"`
}

// Load parses keyword tables and lower-cases every keyword.
func Load(b []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse keyword tables: %w", err)
	}
	if t.Version == 0 {
		return nil, fmt.Errorf("keyword tables: missing version")
	}
	for _, fams := range [][]Family{t.PreferenceTags, t.BodyTags, t.MuscleGroups, t.Categories, t.Equipment} {
		for i := range fams {
			for j, kw := range fams[i].Keywords {
				fams[i].Keywords[j] = strings.ToLower(kw)
			}
		}
	}
	return &t, nil
}

// Default is the embedded table set.
var Default = mustLoad(keywordsYAML)

func mustLoad(b []byte) *Tables {
	t, err := Load(b)
	if err != nil {
		panic(err)
	}
	return t
}
