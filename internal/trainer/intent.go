package trainer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aaronromeo/fittrack/internal/workout"
)

var (
	workoutIntent   = regexp.MustCompile(`create|generate|make|design|give me|build|suggest.*workout|routine|exercise|training`)
	durationPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:minute|min)`)
	beginnerWords   = regexp.MustCompile(`(?i)beginner|easy|simple`)
	advancedWords   = regexp.MustCompile(`(?i)advanced|hard|challenging`)
)

var preferenceWords = []struct {
	name string
	re   *regexp.Regexp
}{
	{"cardio", regexp.MustCompile(`(?i)cardio`)},
	{"strength", regexp.MustCompile(`(?i)strength`)},
	{"flexibility", regexp.MustCompile(`(?i)flexibility|stretch`)},
	{"hiit", regexp.MustCompile(`(?i)hiit`)},
	{"yoga", regexp.MustCompile(`(?i)yoga`)},
}

// IsWorkoutRequest reports whether a chat message asks for a routine.
func IsWorkoutRequest(message string) bool {
	return workoutIntent.MatchString(strings.ToLower(message))
}

// ParseDuration returns the first "N min"/"N minutes" in message, or 0.
func ParseDuration(message string) int {
	m := durationPattern.FindStringSubmatch(message)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func ParseDifficulty(message string) workout.Difficulty {
	switch {
	case beginnerWords.MatchString(message):
		return workout.Beginner
	case advancedWords.MatchString(message):
		return workout.Advanced
	default:
		return workout.Intermediate
	}
}

func ParsePreferences(message string) string {
	var prefs []string
	for _, p := range preferenceWords {
		if p.re.MatchString(message) {
			prefs = append(prefs, p.name)
		}
	}
	if len(prefs) == 0 {
		return workout.DefaultPreferences
	}
	return strings.Join(prefs, ", ")
}

// RequestFromMessage derives generation parameters from free chat text.
func RequestFromMessage(userID int64, message string) workout.GenerationRequest {
	return workout.GenerationRequest{
		UserID:          userID,
		Preferences:     ParsePreferences(message),
		DurationMinutes: ParseDuration(message),
		Difficulty:      string(ParseDifficulty(message)),
	}.WithDefaults()
}
