package routine

import (
	"encoding/json"

	"github.com/aaronromeo/fittrack/internal/workout"
)

// legacyRoutine is the v1 multi-day payload.
type legacyRoutine struct {
	Name        workout.Text `json:"name"`
	Description workout.Text `json:"description"`
	Days        []legacyDay  `json:"days"`
}

type legacyDay struct {
	Name      workout.Text     `json:"name"`
	Exercises []legacyExercise `json:"exercises"`
	Duration  workout.Quantity `json:"duration"`
}

type legacyExercise struct {
	Name  workout.Text      `json:"name"`
	Sets  *workout.Quantity `json:"sets"`
	Reps  *workout.Reps     `json:"reps"`
	Rest  *workout.Quantity `json:"rest"`
	Notes workout.Text      `json:"notes"`
}

// decodeLegacy flattens every day of a v1 routine into the main block. Bodies
// without days are read as the single-session shape.
func decodeLegacy(body string) (*workout.Plan, error) {
	var lr legacyRoutine
	if err := json.Unmarshal([]byte(body), &lr); err != nil {
		return nil, err
	}
	if lr.Days == nil {
		return decodePlan(body)
	}
	p := &workout.Plan{Name: string(lr.Name), Description: string(lr.Description)}
	for _, d := range lr.Days {
		p.DurationMinutes += int(d.Duration)
		for _, ex := range d.Exercises {
			p.Main = append(p.Main, workout.ExerciseStep{
				Name:         string(ex.Name),
				Sets:         ex.Sets,
				Reps:         ex.Reps,
				RestSeconds:  ex.Rest,
				Instructions: string(ex.Notes),
			})
		}
	}
	return p, nil
}
