// Package classify attaches tags, muscle groups, calorie estimates and a
// library category to a workout plan by keyword matching.
package classify

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/aaronromeo/fittrack/internal/workout"
)

type Intensity string

const (
	Low      Intensity = "low"
	Moderate Intensity = "moderate"
	High     Intensity = "high"
)

type Result struct {
	Tags               []string  `json:"tags"`
	TargetMuscleGroups []string  `json:"targetMuscleGroups"`
	EstimatedCalories  int       `json:"estimatedCalories"`
	Category           string    `json:"category"`
	Intensity          Intensity `json:"intensity"`
	Equipment          []string  `json:"equipment"`
	TimeOfDay          string    `json:"timeOfDay"`
	TargetAudience     string    `json:"targetAudience"`
	TablesVersion      int       `json:"tablesVersion"`
}

// Classify uses the embedded tables.
func Classify(p workout.Plan, req workout.GenerationRequest) Result {
	return Default.Classify(p, req)
}

// EstimateCalories uses the embedded tables.
func EstimateCalories(durationMinutes int, difficulty string) int {
	return Default.EstimateCalories(durationMinutes, difficulty)
}

// Classify never fails; an empty plan yields empty sets and the defaults.
func (t *Tables) Classify(p workout.Plan, req workout.GenerationRequest) Result {
	req = req.WithDefaults()
	text := PlanText(p)

	res := Result{
		Tags:               t.tags(text, req),
		TargetMuscleGroups: matching(t.MuscleGroups, text),
		EstimatedCalories:  t.EstimateCalories(req.DurationMinutes, req.Difficulty),
		Category:           t.category(text),
		Intensity:          t.intensity(p, text),
		Equipment:          matching(t.Equipment, text),
		TablesVersion:      t.Version,
	}
	if len(res.Equipment) == 0 && t.DefaultEquipment != "" {
		res.Equipment = []string{t.DefaultEquipment}
	}
	res.TimeOfDay = timeOfDay(res.Category, res.Intensity)
	res.TargetAudience = audience(workout.DifficultyOrDefault(req.Difficulty), res.Intensity)
	return res
}

func (t *Tables) EstimateCalories(durationMinutes int, difficulty string) int {
	rate, ok := t.CalorieRates[strings.ToLower(strings.TrimSpace(difficulty))]
	if !ok {
		rate = t.DefaultCalorieRate
	}
	return int(math.Round(float64(durationMinutes) * rate))
}

func (t *Tables) tags(text string, req workout.GenerationRequest) []string {
	set := map[string]struct{}{
		strings.ToLower(req.Difficulty):          {},
		fmt.Sprintf("%dmin", req.DurationMinutes): {},
	}
	for _, e := range req.Equipment {
		e = strings.TrimSpace(e)
		if e == "" || strings.EqualFold(e, "none") {
			continue
		}
		set[e] = struct{}{}
	}
	prefs := strings.ToLower(req.Preferences)
	for _, f := range t.PreferenceTags {
		if f.Matches(prefs) {
			set[f.Tag] = struct{}{}
		}
	}
	for _, f := range t.BodyTags {
		if f.Matches(text) {
			set[f.Tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}

func (t *Tables) category(text string) string {
	for _, f := range t.Categories {
		if f.Matches(text) {
			return f.Tag
		}
	}
	return t.DefaultCategory
}

// intensity compares rest mentions with the size of the main block.
func (t *Tables) intensity(p workout.Plan, text string) Intensity {
	rule := t.Intensity
	rests := 0
	if rule.RestKeyword != "" {
		rests = strings.Count(text, rule.RestKeyword)
	}
	for _, s := range p.Main {
		if s.RestSeconds != nil {
			rests++
		}
	}
	n := float64(len(p.Main))
	switch {
	case float64(rests) > n*rule.LowAbove:
		return Low
	case float64(rests) < n*rule.HighBelow:
		return High
	default:
		return Moderate
	}
}

func matching(fams []Family, text string) []string {
	out := []string{}
	for _, f := range fams {
		if f.Matches(text) {
			out = append(out, f.Tag)
		}
	}
	slices.Sort(out)
	return out
}

func timeOfDay(category string, in Intensity) string {
	switch {
	case category == "flexibility" || in == Low:
		return "evening"
	case category == "hiit" || in == High:
		return "morning"
	default:
		return "anytime"
	}
}

func audience(d workout.Difficulty, in Intensity) string {
	switch {
	case d == workout.Beginner && in == Low:
		return "beginners"
	case d == workout.Advanced && in == High:
		return "athletes"
	default:
		return "intermediate"
	}
}

// PlanText is the lower-cased text keyword tables are matched against: every
// human-readable value of the plan, one per line. Field names are excluded so
// keys like "warmup" cannot trip a keyword.
func PlanText(p workout.Plan) string {
	var b strings.Builder
	line := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			b.WriteString(strings.ToLower(s))
			b.WriteByte('\n')
		}
	}
	line(p.Name)
	line(p.Description)
	for _, block := range [][]workout.ExerciseStep{p.Warmup, p.Main, p.Cooldown} {
		for _, s := range block {
			line(s.Name)
			if s.Reps != nil && s.Reps.Text != "" {
				line(s.Reps.Text)
			}
			line(s.Instructions)
		}
	}
	return b.String()
}
