// Command fittrackctl runs the generation pipeline stages offline against files.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aaronromeo/fittrack/internal/classify"
	"github.com/aaronromeo/fittrack/internal/patterns"
	"github.com/aaronromeo/fittrack/internal/prompt"
	"github.com/aaronromeo/fittrack/internal/recommend"
	"github.com/aaronromeo/fittrack/internal/routine"
	"github.com/aaronromeo/fittrack/internal/workout"
)

var version = "dev"

// errNoPlan is returned by extract when the input carries no routine.
var errNoPlan = errors.New("no workout plan found")

// request holds the generation flags shared by prompt and classify.
var request struct {
	duration    int
	difficulty  string
	preferences string
	equipment   []string
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fittrackctl",
	Short:   "Offline tools for the fittrack workout pipeline",
	Version: version,
}

func init() {
	for _, c := range []*cobra.Command{promptCmd, classifyCmd} {
		c.Flags().IntVar(&request.duration, "duration", workout.DefaultDurationMinutes, "session length in minutes")
		c.Flags().StringVar(&request.difficulty, "difficulty", string(workout.Intermediate), "beginner, intermediate or advanced")
		c.Flags().StringVar(&request.preferences, "preferences", "", "free-text preferences")
		c.Flags().StringSliceVar(&request.equipment, "equipment", nil, "available equipment, comma separated")
	}
	rootCmd.AddCommand(promptCmd, extractCmd, classifyCmd, analyzeCmd)
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the generation prompt for a request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), prompt.Build(generationRequest()))
		return err
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Extract the marker-delimited plan from a model reply",
	Long: `Extract reads a raw model reply and prints the embedded workout plan as JSON.
It exits with status 1 when no plan is found.

Examples:
  fittrackctl extract reply.txt
  cat reply.txt | fittrackctl extract -`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		plan := routine.Extract(string(raw))
		if plan == nil {
			return errNoPlan
		}
		return printJSON(cmd.OutOrStdout(), plan)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify [file|-]",
	Short: "Classify a plan given as JSON or as a raw model reply",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		plan := routine.Extract(string(raw))
		if plan == nil {
			plan = &workout.Plan{}
			if err := json.Unmarshal(raw, plan); err != nil {
				return fmt.Errorf("decode plan: %w", err)
			}
		}
		return printJSON(cmd.OutOrStdout(), classify.Classify(*plan, generationRequest()))
	},
}

type analysis struct {
	Summary        patterns.Summary          `json:"summary"`
	Recommendation recommend.Recommendation `json:"recommendation"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file|-]",
	Short: "Summarize a JSON array of workout records and suggest what comes next",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		var history []workout.Record
		if err := json.Unmarshal(raw, &history); err != nil {
			return fmt.Errorf("decode records: %w", err)
		}
		summary := patterns.Analyze(history)
		var last *workout.Record
		if len(history) > 0 {
			last = &history[0]
		}
		rec := recommend.New().Recommend(cmd.Context(), summary, last)
		return printJSON(cmd.OutOrStdout(), analysis{Summary: summary, Recommendation: rec})
	},
}

func generationRequest() workout.GenerationRequest {
	return workout.GenerationRequest{
		Preferences:     request.preferences,
		DurationMinutes: request.duration,
		Difficulty:      request.difficulty,
		Equipment:       request.equipment,
	}.WithDefaults()
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return b, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
