package routine

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/aaronromeo/fittrack/internal/workout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var extractions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fittrack_extractions_total",
		Help: "Structured plan extraction attempts by result",
	},
	[]string{"result"},
)

// Extract scans raw with DefaultGrammar. A nil plan means the reply carried no
// usable block, which is a normal outcome for conversational answers.
func Extract(raw string) *workout.Plan {
	return DefaultGrammar.Extract(raw, slog.Default())
}

// Block returns the trimmed text between the first marker pair found in raw.
// The end marker is searched for after the begin marker, so an end marker
// quoted earlier in the reply cannot produce an inverted block.
func (g Grammar) Block(raw string) (string, Markers, bool) {
	for _, m := range g {
		start := strings.Index(raw, m.Begin)
		if start == -1 {
			continue
		}
		body := raw[start+len(m.Begin):]
		end := strings.Index(body, m.End)
		if end == -1 {
			continue
		}
		return strings.TrimSpace(body[:end]), m, true
	}
	return "", Markers{}, false
}

// Strip removes the first delimited block, markers included, and trims the rest.
func (g Grammar) Strip(raw string) string {
	for _, m := range g {
		start := strings.Index(raw, m.Begin)
		if start == -1 {
			continue
		}
		end := strings.Index(raw[start+len(m.Begin):], m.End)
		if end == -1 {
			continue
		}
		end += start + len(m.Begin) + len(m.End)
		return strings.TrimSpace(raw[:start] + raw[end:])
	}
	return strings.TrimSpace(raw)
}

// Extract parses the first delimited block into a plan. Parse failures are
// logged and reported as a miss; Extract never panics on model output.
func (g Grammar) Extract(raw string, logger *slog.Logger) *workout.Plan {
	body, m, ok := g.Block(raw)
	if !ok {
		extractions.WithLabelValues("miss").Inc()
		return nil
	}
	body = stripFence(body)

	var plan *workout.Plan
	var err error
	if m == Legacy {
		plan, err = decodeLegacy(body)
	} else {
		plan, err = decodePlan(body)
	}
	if err != nil {
		if logger != nil {
			logger.Warn("discarding unparseable plan block",
				slog.String("markers", m.Version),
				slog.Int("bytes", len(body)),
				slog.String("error", err.Error()))
		}
		extractions.WithLabelValues("invalid_json").Inc()
		return nil
	}
	extractions.WithLabelValues("plan").Inc()
	return plan
}

// planPayload is the wire shape of a primary block. Top-level scalars decode
// leniently; only malformed JSON is a miss.
type planPayload struct {
	Name            workout.Text           `json:"name"`
	Description     workout.Text           `json:"description"`
	DurationMinutes workout.Quantity       `json:"duration"`
	Difficulty      workout.Text           `json:"difficulty"`
	Warmup          []workout.ExerciseStep `json:"warmup"`
	Main            []workout.ExerciseStep `json:"main"`
	Cooldown        []workout.ExerciseStep `json:"cooldown"`
}

func decodePlan(body string) (*workout.Plan, error) {
	var p planPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, err
	}
	return &workout.Plan{
		Name:            string(p.Name),
		Description:     string(p.Description),
		DurationMinutes: int(p.DurationMinutes),
		Difficulty:      string(p.Difficulty),
		Warmup:          p.Warmup,
		Main:            p.Main,
		Cooldown:        p.Cooldown,
	}, nil
}

// stripFence removes a ```json fence some models wrap around the block.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
