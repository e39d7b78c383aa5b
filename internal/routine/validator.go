package routine

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aaronromeo/fittrack/internal/workout"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/plan-v1.json
var PlanSchema string

var ErrInvalidPlan = errors.New("invalid workout plan")

var planSchema = gojsonschema.NewStringLoader(PlanSchema)

// Validate checks an extracted plan against the plan schema. Extraction only
// guarantees the block was JSON; callers run Validate before trusting it.
func Validate(p *workout.Plan) error {
	if p == nil {
		return fmt.Errorf("%w: nil plan", ErrInvalidPlan)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	result, err := gojsonschema.Validate(planSchema, gojsonschema.NewBytesLoader(b))
	if err != nil {
		return fmt.Errorf("validate plan: %w", err)
	}
	if !result.Valid() {
		extractions.WithLabelValues("invalid_plan").Inc()
		return fmt.Errorf("%w: %s", ErrInvalidPlan, collect(result.Errors()))
	}
	return nil
}

func collect(errs []gojsonschema.ResultError) string {
	var buf bytes.Buffer
	for _, e := range errs {
		buf.WriteString(e.String())
		buf.WriteByte(';')
	}
	return buf.String()
}
