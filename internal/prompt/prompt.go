// Package prompt turns requests and pattern summaries into model prompts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/aaronromeo/fittrack/internal/routine"
	"github.com/aaronromeo/fittrack/internal/workout"
)

// Build renders the generation prompt. It never fails; missing values are
// defaulted and equipment is echoed as given.
func Build(req workout.GenerationRequest) string {
	req = req.WithDefaults()
	m := routine.Primary
	return fmt.Sprintf(generateTemplate,
		req.DurationMinutes, req.Difficulty,
		req.Preferences,
		equipmentLine(req.Equipment),
		workout.MainSetBudget(req.DurationMinutes),
		m.Begin,
		req.DurationMinutes, req.Difficulty,
		m.End,
	)
}

func equipmentLine(eq []string) string {
	var kept []string
	for _, e := range eq {
		if e = strings.TrimSpace(e); e != "" && !strings.EqualFold(e, "none") {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return "none (bodyweight only)"
	}
	return strings.Join(kept, ", ")
}

// ChatSystem is the system prompt for conversational replies.
func ChatSystem() string {
	return fmt.Sprintf(chatSystemTemplate, routine.Primary.Begin, routine.Primary.End)
}

// RecommendationInput is what the enrichment prompt needs to know.
type RecommendationInput struct {
	PreferredDifficulty string
	AverageDuration     int
	FavoriteTags        []string
	Frequency           string
	LastMuscles         []string
	Focus               []string
}

// Recommendation renders the next-workout enrichment prompt.
func Recommendation(in RecommendationInput) string {
	return fmt.Sprintf(recommendTemplate,
		in.PreferredDifficulty,
		in.AverageDuration,
		listOr(in.FavoriteTags, "none yet"),
		in.Frequency,
		listOr(in.LastMuscles, "nothing recorded"),
		listOr(in.Focus, "full body"),
	)
}

func listOr(xs []string, empty string) string {
	if len(xs) == 0 {
		return empty
	}
	return strings.Join(xs, ", ")
}
