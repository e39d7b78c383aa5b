// Package patterns derives a user's training habits from persisted workout history.
package patterns

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/aaronromeo/fittrack/internal/workout"
)

// HistoryLimit is how many of the most recent records feed an analysis.
const HistoryLimit = 50

type Frequency string

const (
	Daily      Frequency = "daily"
	Regular    Frequency = "regular"
	Weekly     Frequency = "weekly"
	Occasional Frequency = "occasional"
	NewUser    Frequency = "new-user"
)

// Summary is recomputed per request and never persisted.
type Summary struct {
	PreferredDifficulty     workout.Difficulty `json:"preferredDifficulty"`
	AverageDurationMinutes  int                `json:"averageDurationMinutes"`
	FavoriteTags            []string           `json:"favoriteTags"`
	WorkoutFrequency        Frequency          `json:"workoutFrequencyClass"`
	MuscleGroupDistribution map[string]int     `json:"muscleGroupDistribution"`
}

// Analyze aggregates history, most recent first.
func Analyze(history []workout.Record) Summary {
	return Summary{
		PreferredDifficulty:     preferredDifficulty(history),
		AverageDurationMinutes:  averageDuration(history),
		FavoriteTags:            favoriteTags(history, 3),
		WorkoutFrequency:        frequency(history),
		MuscleGroupDistribution: distribution(history),
	}
}

func preferredDifficulty(history []workout.Record) workout.Difficulty {
	counts := map[workout.Difficulty]int{}
	var order []workout.Difficulty
	for _, r := range history {
		d, ok := workout.ParseDifficulty(r.Difficulty)
		if !ok {
			continue
		}
		if counts[d] == 0 {
			order = append(order, d)
		}
		counts[d]++
	}
	best := workout.Intermediate
	max := 0
	for _, d := range order {
		if counts[d] > max {
			best, max = d, counts[d]
		}
	}
	return best
}

func averageDuration(history []workout.Record) int {
	if len(history) == 0 {
		return workout.DefaultDurationMinutes
	}
	sum := 0
	for _, r := range history {
		d := r.DurationMinutes
		if d <= 0 {
			d = workout.DefaultDurationMinutes
		}
		sum += d
	}
	avg := int(math.Round(float64(sum) / float64(len(history))))
	if avg <= 0 {
		return workout.DefaultDurationMinutes
	}
	return avg
}

// favoriteTags ranks by count; ties keep first-seen order.
func favoriteTags(history []workout.Record, n int) []string {
	counts := map[string]int{}
	order := []string{}
	for _, r := range history {
		for _, tag := range r.Tags {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

func frequency(history []workout.Record) Frequency {
	if len(history) < 2 {
		return NewUser
	}
	dates := make([]time.Time, len(history))
	for i, r := range history {
		dates[i] = r.CreatedAt
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return b.Compare(a) })

	var total time.Duration
	for i := 1; i < len(dates); i++ {
		total += dates[i-1].Sub(dates[i])
	}
	return Bucket(total.Hours() / 24 / float64(len(dates)-1))
}

// Bucket classifies a mean gap between workouts, in days.
func Bucket(meanGapDays float64) Frequency {
	switch {
	case meanGapDays < 2:
		return Daily
	case meanGapDays < 4:
		return Regular
	case meanGapDays < 8:
		return Weekly
	default:
		return Occasional
	}
}

// distribution counts records per muscle group, not exercises.
func distribution(history []workout.Record) map[string]int {
	out := map[string]int{}
	for _, r := range history {
		for _, mg := range r.TargetMuscleGroups {
			out[mg]++
		}
	}
	return out
}

// Area is a suggested focus for the user.
type Area struct {
	Area       string `json:"area"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// ImprovementAreas flags muscle groups under 10% of the distribution and infrequent training.
func ImprovementAreas(s Summary) []Area {
	areas := []Area{}
	total := 0
	muscles := make([]string, 0, len(s.MuscleGroupDistribution))
	for mg, n := range s.MuscleGroupDistribution {
		total += n
		muscles = append(muscles, mg)
	}
	sort.Strings(muscles)
	for _, mg := range muscles {
		if float64(s.MuscleGroupDistribution[mg])*100/float64(total) < 10 {
			areas = append(areas, Area{
				Area:       mg,
				Message:    fmt.Sprintf("You've been neglecting %s workouts", mg),
				Suggestion: fmt.Sprintf("Add more %s-focused exercises", mg),
			})
		}
	}
	if s.WorkoutFrequency == Occasional {
		areas = append(areas, Area{
			Area:       "consistency",
			Message:    "Your workout frequency could be improved",
			Suggestion: "Try to maintain a more regular schedule",
		})
	}
	return areas
}
