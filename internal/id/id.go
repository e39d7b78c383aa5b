package id

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/aaronromeo/fittrack/internal/workout"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases name and collapses punctuation and spaces into single dashes.
func Slug(name string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// Fingerprint identifies a plan by difficulty, duration and exercise sequence.
// Names are compared by slug, so "Push-ups" and "push ups" collide.
func Fingerprint(p workout.Plan) string {
	var b strings.Builder
	b.WriteString(string(workout.DifficultyOrDefault(p.Difficulty)))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(p.DurationMinutes))
	for _, section := range [][]workout.ExerciseStep{p.Warmup, p.Main, p.Cooldown} {
		b.WriteByte('|')
		for i, s := range section {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(Slug(s.Name))
		}
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}
