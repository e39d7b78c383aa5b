// Package recommend suggests the next workout and a weekly skeleton from a pattern summary.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aaronromeo/fittrack/internal/patterns"
	"github.com/aaronromeo/fittrack/internal/prompt"
	"github.com/aaronromeo/fittrack/internal/workout"
)

// Rotation is the full muscle list the deterministic path rotates through.
var Rotation = []string{"chest", "back", "legs", "shoulders", "arms", "core"}

var defaultWeeklyTypes = []string{"strength", "cardio", "flexibility"}

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

const (
	SourceRotation = "rotation"
	SourceAI       = "ai"
)

// Completer is the slice of the LLM gateway the composer needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type NextWorkout struct {
	Recommendation  string             `json:"recommendation"`
	Reasoning       string             `json:"reasoning"`
	DurationMinutes int                `json:"duration"`
	Difficulty      workout.Difficulty `json:"difficulty"`
	Focus           []string           `json:"focus"`
	Source          string             `json:"source"`
}

type DayPlan struct {
	Day             string             `json:"day"`
	Type            string             `json:"type"`
	DurationMinutes int                `json:"duration"`
	Difficulty      workout.Difficulty `json:"difficulty,omitempty"`
}

type Recommendation struct {
	NextWorkout      NextWorkout     `json:"nextWorkout"`
	WeeklyPlan       []DayPlan       `json:"weeklyPlan"`
	ImprovementAreas []patterns.Area `json:"improvementAreas"`
}

type Composer struct {
	completer Completer
	logger    *slog.Logger
}

type Option func(*Composer)

func WithCompleter(c Completer) Option {
	return func(cm *Composer) { cm.completer = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cm *Composer) {
		if l != nil {
			cm.logger = l
		}
	}
}

func New(opts ...Option) *Composer {
	c := &Composer{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recommend never fails; enrichment problems fall back to the rotation suggestion.
func (c *Composer) Recommend(ctx context.Context, s patterns.Summary, last *workout.Record) Recommendation {
	var lastMuscles []string
	if last != nil {
		lastMuscles = last.TargetMuscleGroups
	}
	focus := Focus(lastMuscles)
	next := Fallback(s, focus)
	if c.completer != nil {
		if enriched, ok := c.enrich(ctx, s, lastMuscles, focus); ok {
			next = enriched
		}
	}
	return Recommendation{
		NextWorkout:      next,
		WeeklyPlan:       WeeklyPlan(s),
		ImprovementAreas: patterns.ImprovementAreas(s),
	}
}

// Focus returns the rotation minus the muscles the last workout hit.
func Focus(lastMuscles []string) []string {
	var out []string
	for _, mg := range Rotation {
		if !slices.Contains(lastMuscles, mg) {
			out = append(out, mg)
		}
	}
	if len(out) == 0 {
		return slices.Clone(Rotation)
	}
	return out
}

// Fallback is the deterministic next workout.
func Fallback(s patterns.Summary, focus []string) NextWorkout {
	duration := s.AverageDurationMinutes
	if duration <= 0 {
		duration = workout.DefaultDurationMinutes
	}
	return NextWorkout{
		Recommendation:  fmt.Sprintf("%d-minute %s workout", duration, focus[0]),
		Reasoning:       "Muscle group rotation for optimal recovery",
		DurationMinutes: duration,
		Difficulty:      workout.DifficultyOrDefault(string(s.PreferredDifficulty)),
		Focus:           focus[:min(2, len(focus))],
		Source:          SourceRotation,
	}
}

func (c *Composer) enrich(ctx context.Context, s patterns.Summary, lastMuscles, focus []string) (NextWorkout, bool) {
	p := prompt.Recommendation(prompt.RecommendationInput{
		PreferredDifficulty: string(s.PreferredDifficulty),
		AverageDuration:     s.AverageDurationMinutes,
		FavoriteTags:        s.FavoriteTags,
		Frequency:           string(s.WorkoutFrequency),
		LastMuscles:         lastMuscles,
		Focus:               focus,
	})
	text, err := c.completer.Complete(ctx, p)
	if err != nil {
		c.logger.DebugContext(ctx, "recommendation enrichment unavailable", slog.Any("err", err))
		return NextWorkout{}, false
	}
	next, err := parseNext(text)
	if err != nil {
		c.logger.WarnContext(ctx, "recommendation enrichment unparseable", slog.Any("err", err))
		return NextWorkout{}, false
	}
	if next.DurationMinutes <= 0 {
		next.DurationMinutes = s.AverageDurationMinutes
	}
	if _, ok := workout.ParseDifficulty(string(next.Difficulty)); !ok {
		next.Difficulty = workout.DifficultyOrDefault(string(s.PreferredDifficulty))
	}
	if len(next.Focus) == 0 {
		next.Focus = focus[:min(2, len(focus))]
	}
	next.Source = SourceAI
	return next, true
}

type answer struct {
	Recommendation string           `json:"recommendation"`
	Reasoning      string           `json:"reasoning"`
	Duration       workout.Quantity `json:"duration"`
	Difficulty     string           `json:"difficulty"`
	Focus          []string         `json:"focus"`
}

// parseNext reads the first JSON object in text.
func parseNext(text string) (NextWorkout, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return NextWorkout{}, fmt.Errorf("no JSON object in reply")
	}
	var a answer
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return NextWorkout{}, fmt.Errorf("decode recommendation: %w", err)
	}
	if strings.TrimSpace(a.Recommendation) == "" {
		return NextWorkout{}, fmt.Errorf("recommendation is empty")
	}
	d, _ := workout.ParseDifficulty(a.Difficulty)
	return NextWorkout{
		Recommendation:  strings.TrimSpace(a.Recommendation),
		Reasoning:       strings.TrimSpace(a.Reasoning),
		DurationMinutes: int(a.Duration),
		Difficulty:      d,
		Focus:           a.Focus,
	}, nil
}

// WeeklyPlan lays out Monday to Sunday with every third day resting. Workout
// days take the type at their weekday index, so rest days skip a type.
func WeeklyPlan(s patterns.Summary) []DayPlan {
	types := s.FavoriteTags
	if len(types) == 0 {
		types = defaultWeeklyTypes
	}
	plan := make([]DayPlan, 0, len(weekdays))
	for i, day := range weekdays {
		if i%3 == 2 {
			plan = append(plan, DayPlan{Day: day, Type: "rest"})
			continue
		}
		plan = append(plan, DayPlan{
			Day:             day,
			Type:            types[i%len(types)],
			DurationMinutes: s.AverageDurationMinutes,
			Difficulty:      s.PreferredDifficulty,
		})
	}
	return plan
}
