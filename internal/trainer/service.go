// Package trainer runs the workout generation pipeline and the AI trainer chat.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aaronromeo/fittrack/internal/classify"
	"github.com/aaronromeo/fittrack/internal/id"
	"github.com/aaronromeo/fittrack/internal/llm/provider"
	"github.com/aaronromeo/fittrack/internal/patterns"
	"github.com/aaronromeo/fittrack/internal/prompt"
	"github.com/aaronromeo/fittrack/internal/recommend"
	"github.com/aaronromeo/fittrack/internal/routine"
	"github.com/aaronromeo/fittrack/internal/sqlite"
	"github.com/aaronromeo/fittrack/internal/workout"
)

// ErrInvalidRequest marks caller input the pipeline refuses to act on.
var ErrInvalidRequest = errors.New("invalid request")

const (
	WelcomeMessage = "Hey! Good to see you here. What's going on today?"
	SavedMessage   = "Workout generated and automatically saved to your library"

	DefaultArchiveAfter = 30 * 24 * time.Hour
)

var generated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fittrack_workouts_generated_total",
		Help: "Workout records created by source",
	},
	[]string{"source"},
)

// Gateway is the LLM surface the pipeline uses.
type Gateway interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, system string, history []provider.Message) (string, error)
}

type WorkoutStore interface {
	Create(ctx context.Context, r workout.Record) (workout.Record, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]workout.Record, error)
	GetByID(ctx context.Context, id int64) (workout.Record, error)
	RecordCompletion(ctx context.Context, id int64, at time.Time) (workout.Record, error)
	Delete(ctx context.Context, id int64) error
	ArchiveStale(ctx context.Context, cutoff, now time.Time) (int64, error)
}

type ConversationStore interface {
	Create(ctx context.Context, userID int64, msgs []sqlite.ChatMessage) (sqlite.Conversation, error)
	Get(ctx context.Context, id int64) (sqlite.Conversation, error)
	Latest(ctx context.Context, userID int64) (sqlite.Conversation, error)
	Update(ctx context.Context, id int64, msgs []sqlite.ChatMessage) (sqlite.Conversation, error)
}

type Service struct {
	gateway       Gateway
	workouts      WorkoutStore
	conversations ConversationStore
	composer      *recommend.Composer
	logger        *slog.Logger
	historyLimit  int
	archiveAfter  time.Duration
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

func WithArchiveAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.archiveAfter = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(gw Gateway, workouts WorkoutStore, conversations ConversationStore, opts ...Option) *Service {
	s := &Service{
		gateway:       gw,
		workouts:      workouts,
		conversations: conversations,
		logger:        slog.Default(),
		historyLimit:  patterns.HistoryLimit,
		archiveAfter:  DefaultArchiveAfter,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.composer = recommend.New(recommend.WithCompleter(gw), recommend.WithLogger(s.logger))
	return s
}

// GenerateResult is the outcome of one generation request. Success is false,
// with nothing persisted, when the model produced no usable plan.
type GenerateResult struct {
	Success  bool            `json:"success"`
	Workout  *workout.Record `json:"workout,omitempty"`
	Message  string          `json:"message"`
	Degraded bool            `json:"-"`
}

// Generate runs prompt, gateway, extraction, validation, classification and
// persistence. Only persistence failures are returned as errors.
func (s *Service) Generate(ctx context.Context, req workout.GenerationRequest) (GenerateResult, error) {
	if req.UserID <= 0 {
		return GenerateResult{}, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	req = req.WithDefaults()

	text, err := s.gateway.Complete(ctx, prompt.Build(req))
	if err != nil {
		return GenerateResult{Message: text, Degraded: true}, nil
	}
	plan := s.extract(ctx, text)
	if plan == nil {
		return GenerateResult{Message: text}, nil
	}

	plan.DurationMinutes = req.DurationMinutes
	plan.Difficulty = req.Difficulty
	rec, err := s.save(ctx, *plan, req, true, "generate")
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{Success: true, Workout: &rec, Message: SavedMessage}, nil
}

// extract returns a plan only when the block parses and passes the schema.
func (s *Service) extract(ctx context.Context, text string) *workout.Plan {
	plan := routine.DefaultGrammar.Extract(text, s.logger)
	if plan == nil {
		return nil
	}
	if err := routine.Validate(plan); err != nil {
		s.logger.WarnContext(ctx, "discarding plan that failed validation", slog.Any("error", err))
		return nil
	}
	return plan
}

func (s *Service) save(ctx context.Context, plan workout.Plan, req workout.GenerationRequest, auto bool, source string) (workout.Record, error) {
	if strings.TrimSpace(plan.Name) == "" {
		plan.Name = fmt.Sprintf("%s %d-min Workout", req.Difficulty, req.DurationMinutes)
	}
	if strings.TrimSpace(plan.Description) == "" && auto {
		plan.Description = fmt.Sprintf("AI-generated %s workout", req.Difficulty)
	}
	c := classify.Classify(plan, req)
	rec, err := s.workouts.Create(ctx, workout.Record{
		UserID:             req.UserID,
		Plan:               plan,
		CreatedAt:          s.now(),
		Tags:               c.Tags,
		TargetMuscleGroups: c.TargetMuscleGroups,
		EstimatedCalories:  c.EstimatedCalories,
		Category:           c.Category,
		Intensity:          string(c.Intensity),
		AutoGenerated:      auto,
		Fingerprint:        id.Fingerprint(plan),
	})
	if err != nil {
		return workout.Record{}, fmt.Errorf("save workout: %w", err)
	}
	generated.WithLabelValues(source).Inc()
	s.logger.InfoContext(ctx, "workout saved",
		slog.Int64("workout_id", rec.ID),
		slog.String("source", source),
		slog.String("fingerprint", rec.Fingerprint))
	return rec, nil
}

// MessageReply is the assistant's answer to one chat message.
type MessageReply struct {
	Message          sqlite.ChatMessage `json:"message"`
	ConversationID   int64              `json:"conversationId"`
	WorkoutGenerated bool               `json:"workoutGenerated"`
	WorkoutID        *int64             `json:"workoutId,omitempty"`
}

// HandleMessage answers a chat message. Requests for a routine go through
// Generate; anything else is a conversational reply, which is still scanned
// for a plan block.
func (s *Service) HandleMessage(ctx context.Context, userID int64, message string, conversationID int64) (MessageReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return MessageReply{}, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	conv, err := s.conversation(ctx, userID, conversationID)
	if err != nil {
		return MessageReply{}, err
	}
	msgs := append(conv.Messages, sqlite.ChatMessage{Role: string(provider.RoleUser), Content: message, Timestamp: s.now()})

	var reply MessageReply
	if IsWorkoutRequest(message) {
		reply, err = s.generateFromChat(ctx, userID, message)
	} else {
		reply, err = s.chat(ctx, userID, message, msgs)
	}
	if err != nil {
		return MessageReply{}, err
	}

	if _, err = s.conversations.Update(ctx, conv.ID, append(msgs, reply.Message)); err != nil {
		return MessageReply{}, fmt.Errorf("update conversation: %w", err)
	}
	reply.ConversationID = conv.ID
	return reply, nil
}

func (s *Service) generateFromChat(ctx context.Context, userID int64, message string) (MessageReply, error) {
	req := RequestFromMessage(userID, message)
	res, err := s.Generate(ctx, req)
	if err != nil {
		return MessageReply{}, err
	}
	if !res.Success {
		return MessageReply{Message: s.assistant(res.Message)}, nil
	}
	return MessageReply{
		Message:          s.assistant(confirmation(req, res.Workout)),
		WorkoutGenerated: true,
		WorkoutID:        &res.Workout.ID,
	}, nil
}

func (s *Service) chat(ctx context.Context, userID int64, message string, msgs []sqlite.ChatMessage) (MessageReply, error) {
	history := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, provider.Message{Role: provider.Role(m.Role), Content: m.Content})
	}
	text, err := s.gateway.Chat(ctx, prompt.ChatSystem(), history)
	if err != nil {
		return MessageReply{Message: s.assistant(text)}, nil
	}

	plan := s.extract(ctx, text)
	if plan == nil {
		return MessageReply{Message: s.assistant(text)}, nil
	}
	req := RequestFromMessage(userID, message)
	if plan.DurationMinutes > 0 {
		req.DurationMinutes = plan.DurationMinutes
	}
	if d, ok := workout.ParseDifficulty(plan.Difficulty); ok {
		req.Difficulty = string(d)
	}
	plan.DurationMinutes = req.DurationMinutes
	plan.Difficulty = req.Difficulty

	rec, err := s.save(ctx, *plan, req, true, "chat")
	if err != nil {
		return MessageReply{}, err
	}
	content := routine.DefaultGrammar.Strip(text)
	if content == "" {
		content = confirmation(req, &rec)
	}
	return MessageReply{Message: s.assistant(content), WorkoutGenerated: true, WorkoutID: &rec.ID}, nil
}

func (s *Service) assistant(content string) sqlite.ChatMessage {
	return sqlite.ChatMessage{Role: string(provider.RoleAssistant), Content: content, Timestamp: s.now()}
}

func confirmation(req workout.GenerationRequest, rec *workout.Record) string {
	return fmt.Sprintf(`I've created a %d-minute %s workout for you! "%s" has been automatically saved to your library.

Here's what I've prepared:
- Warm-up: %d exercises
- Main workout: %d exercises
- Cool-down: %d exercises

Estimated calories burn: %d cal

Would you like me to walk you through the exercises, or would you prefer to start the workout now?`,
		req.DurationMinutes, req.Difficulty, rec.Name,
		len(rec.Warmup), len(rec.Main), len(rec.Cooldown),
		rec.EstimatedCalories)
}

// conversation loads the requested conversation, falling back to the user's
// latest and then to a fresh one.
func (s *Service) conversation(ctx context.Context, userID, conversationID int64) (sqlite.Conversation, error) {
	var (
		conv sqlite.Conversation
		err  error
	)
	if conversationID > 0 {
		conv, err = s.conversations.Get(ctx, conversationID)
		if err == nil && conv.UserID != userID {
			err = sqlite.ErrNotFound
		}
	} else {
		conv, err = s.conversations.Latest(ctx, userID)
	}
	switch {
	case err == nil:
		return conv, nil
	case errors.Is(err, sqlite.ErrNotFound):
		if conv, err = s.conversations.Create(ctx, userID, nil); err != nil {
			return sqlite.Conversation{}, fmt.Errorf("create conversation: %w", err)
		}
		return conv, nil
	default:
		return sqlite.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
}

// Conversation returns the user's latest conversation, starting one with a
// welcome message when there is none.
func (s *Service) Conversation(ctx context.Context, userID int64) (sqlite.Conversation, error) {
	conv, err := s.conversations.Latest(ctx, userID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sqlite.ErrNotFound) {
		return sqlite.Conversation{}, fmt.Errorf("latest conversation: %w", err)
	}
	conv, err = s.conversations.Create(ctx, userID, []sqlite.ChatMessage{s.assistant(WelcomeMessage)})
	if err != nil {
		return sqlite.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) history(ctx context.Context, userID int64) ([]workout.Record, error) {
	h, err := s.workouts.ListByUser(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return h, nil
}

func (s *Service) Patterns(ctx context.Context, userID int64) (patterns.Summary, error) {
	h, err := s.history(ctx, userID)
	if err != nil {
		return patterns.Summary{}, err
	}
	return patterns.Analyze(h), nil
}

// Recommendations never fails because of the gateway, only because of storage.
func (s *Service) Recommendations(ctx context.Context, userID int64) (recommend.Recommendation, error) {
	h, err := s.history(ctx, userID)
	if err != nil {
		return recommend.Recommendation{}, err
	}
	var last *workout.Record
	if len(h) > 0 {
		last = &h[0]
	}
	return s.composer.Recommend(ctx, patterns.Analyze(h), last), nil
}

// SaveManual stores a hand-written plan after the same validation and
// classification as generated ones.
func (s *Service) SaveManual(ctx context.Context, userID int64, plan workout.Plan) (workout.Record, error) {
	if userID <= 0 {
		return workout.Record{}, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	if err := routine.Validate(&plan); err != nil {
		return workout.Record{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req := workout.GenerationRequest{
		UserID:          userID,
		DurationMinutes: plan.DurationMinutes,
		Difficulty:      plan.Difficulty,
	}.WithDefaults()
	plan.DurationMinutes = req.DurationMinutes
	plan.Difficulty = req.Difficulty
	return s.save(ctx, plan, req, false, "manual")
}

func (s *Service) Workouts(ctx context.Context, userID int64) ([]workout.Record, error) {
	return s.workouts.ListByUser(ctx, userID, 0)
}

func (s *Service) Workout(ctx context.Context, id int64) (workout.Record, error) {
	return s.workouts.GetByID(ctx, id)
}

func (s *Service) Complete(ctx context.Context, id int64) (workout.Record, error) {
	return s.workouts.RecordCompletion(ctx, id, s.now())
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.workouts.Delete(ctx, id)
}

// Categorize re-runs the classifier over a stored record.
func (s *Service) Categorize(ctx context.Context, id int64) (classify.Result, error) {
	rec, err := s.workouts.GetByID(ctx, id)
	if err != nil {
		return classify.Result{}, err
	}
	return classify.Classify(rec.Plan, workout.GenerationRequest{
		UserID:          rec.UserID,
		DurationMinutes: rec.DurationMinutes,
		Difficulty:      rec.Difficulty,
	}), nil
}
