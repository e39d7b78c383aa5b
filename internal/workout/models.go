// Package workout holds the value objects that flow through the generation
// pipeline and the persisted record shape.
package workout

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

const (
	DefaultDurationMinutes = 30
	DefaultPreferences     = "general fitness"
)

// ParseDifficulty normalizes s and reports whether it names a known level.
func ParseDifficulty(s string) (Difficulty, bool) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Beginner, Intermediate, Advanced:
		return d, true
	}
	return d, false
}

// DifficultyOrDefault maps unknown or empty levels to Intermediate.
func DifficultyOrDefault(s string) Difficulty {
	if d, ok := ParseDifficulty(s); ok {
		return d
	}
	return Intermediate
}

// GenerationRequest is what the user asked for. It is never persisted on its own.
type GenerationRequest struct {
	UserID          int64    `json:"userId"`
	Preferences     string   `json:"preferences"`
	DurationMinutes int      `json:"duration"`
	Difficulty      string   `json:"difficulty"`
	Equipment       []string `json:"equipment,omitempty"`
}

// WithDefaults returns a copy with the duration, difficulty and preferences filled in.
// Equipment is left untouched.
func (r GenerationRequest) WithDefaults() GenerationRequest {
	if r.DurationMinutes <= 0 {
		r.DurationMinutes = DefaultDurationMinutes
	}
	r.Difficulty = string(DifficultyOrDefault(r.Difficulty))
	if strings.TrimSpace(r.Preferences) == "" {
		r.Preferences = DefaultPreferences
	}
	return r
}

// Plan is a single generated or hand-written routine. Edits create a new plan.
type Plan struct {
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	DurationMinutes int            `json:"duration,omitempty"`
	Difficulty      string         `json:"difficulty,omitempty"`
	Warmup          []ExerciseStep `json:"warmup,omitempty"`
	Main            []ExerciseStep `json:"main"`
	Cooldown        []ExerciseStep `json:"cooldown,omitempty"`
}

// ExerciseStep is one exercise in a block. Optional fields are nil when the
// model did not provide them.
type ExerciseStep struct {
	Name            string    `json:"name"`
	Sets            *Quantity `json:"sets,omitempty"`
	Reps            *Reps     `json:"reps,omitempty"`
	DurationSeconds *Quantity `json:"duration,omitempty"`
	RestSeconds     *Quantity `json:"rest,omitempty"`
	Instructions    string    `json:"instructions,omitempty"`
}

// UnmarshalJSON reads name and instructions as Text so a list of cues or a
// stray number does not fail the whole step.
func (s *ExerciseStep) UnmarshalJSON(b []byte) error {
	type step ExerciseStep
	aux := struct {
		*step
		Name         Text `json:"name"`
		Instructions Text `json:"instructions"`
	}{step: (*step)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.Name = string(aux.Name)
	s.Instructions = string(aux.Instructions)
	return nil
}

// HasVolume reports whether the step carries sets and reps or a duration.
func (s ExerciseStep) HasVolume() bool {
	if s.Sets != nil && *s.Sets > 0 && s.Reps != nil && !s.Reps.IsZero() {
		return true
	}
	return s.DurationSeconds != nil && *s.DurationSeconds > 0
}

// Quantity is a non-negative integer that models sometimes send as a string
// such as "45" or "45 seconds". Strings without a leading number decode as 0.
type Quantity int

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = Quantity(leadingInt(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*q = Quantity(clampCount(f))
	return nil
}

// clampCount rounds f to the nearest integer within [0, MaxInt32].
func clampCount(f float64) int {
	f = math.Round(f)
	switch {
	case math.IsNaN(f), f <= 0:
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}

// Reps is either a count or free text such as "8-12" or "AMRAP".
type Reps struct {
	Count int
	Text  string
}

func (r Reps) IsZero() bool { return r.Count == 0 && strings.TrimSpace(r.Text) == "" }

func (r Reps) String() string {
	if r.Text != "" {
		return r.Text
	}
	return strconv.Itoa(r.Count)
}

func (r Reps) MarshalJSON() ([]byte, error) {
	if r.Text != "" {
		return json.Marshal(r.Text)
	}
	return json.Marshal(r.Count)
}

func (r *Reps) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Reps{Text: strings.TrimSpace(s)}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Reps{Count: clampCount(f)}
	return nil
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == -1 {
		end = len(s)
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return clampCount(n)
}

// Text is free text that models sometimes send as a list of lines or as a
// bare number. Lists are joined with spaces; objects, booleans and null
// decode as empty.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		*t = ""
		return nil
	}
	switch {
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case b[0] == '[':
		var parts []Text
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		kept := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = Text(strings.TrimSpace(string(p))); p != "" {
				kept = append(kept, string(p))
			}
		}
		*t = Text(strings.Join(kept, " "))
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*t = Text(b)
	default:
		*t = ""
	}
	return nil
}

// Analytics is the only part of a Record mutated after creation.
type Analytics struct {
	TimesCompleted  int        `json:"timesCompleted"`
	LastCompletedAt *time.Time `json:"lastCompletedAt,omitempty"`
}

// Record is a persisted plan with its classification metadata.
type Record struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"userId"`
	Plan
	CreatedAt          time.Time  `json:"createdAt"`
	Tags               []string   `json:"tags"`
	TargetMuscleGroups []string   `json:"targetMuscleGroups"`
	EstimatedCalories  int        `json:"estimatedCalories"`
	Category           string     `json:"category,omitempty"`
	Intensity          string     `json:"intensity,omitempty"`
	AutoGenerated      bool       `json:"autoGenerated"`
	Fingerprint        string     `json:"fingerprint,omitempty"`
	Archived           bool       `json:"archived"`
	ArchivedAt         *time.Time `json:"archivedAt,omitempty"`
	Analytics          Analytics  `json:"analytics"`
}
