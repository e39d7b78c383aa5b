package trainer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/robfig/cron"

	"github.com/aaronromeo/fittrack/internal/llm"
	"github.com/aaronromeo/fittrack/internal/llm/provider"
	"github.com/aaronromeo/fittrack/internal/routine"
	"github.com/aaronromeo/fittrack/internal/sqlite"
	"github.com/aaronromeo/fittrack/internal/workout"
)

const legPlan = `{
  "name": "Leg Day Starter",
  "description": "Bodyweight lower body",
  "warmup": [{"name": "March in place", "duration": 60, "instructions": "Lift knees"}],
  "main": [{"name": "Bodyweight Squats", "sets": 3, "reps": 12, "rest": 45, "instructions": "Sit back into the hips"}],
  "cooldown": [{"name": "Quad stretch", "duration": 30, "instructions": "Hold each side"}]
}`

func withPlan(body string) string {
	return "Here you go!\n" + routine.Primary.Begin + "\n" + body + "\n" + routine.Primary.End
}

type fakeGateway struct {
	complete    string
	completeErr error
	chat        string
	chatErr     error

	prompts   []string
	histories [][]provider.Message
}

func (f *fakeGateway) Complete(ctx context.Context, p string) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.complete, f.completeErr
}

func (f *fakeGateway) Chat(ctx context.Context, system string, history []provider.Message) (string, error) {
	f.histories = append(f.histories, history)
	return f.chat, f.chatErr
}

func degraded() (string, error) {
	return llm.FallbackReply, &llm.UnavailableError{Provider: "fake", Kind: llm.FailureTimeout, Err: context.DeadlineExceeded}
}

var testNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	gw    *fakeGateway
	store *sqlite.WorkoutStore
	convs *sqlite.ConversationStore
}

func newFixture(t *testing.T, gw *fakeGateway) fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	db, err := sqlite.NewDatabase(context.Background(), ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := sqlite.NewWorkoutStore(db, logger)
	convs := sqlite.NewConversationStore(db, logger)
	svc := New(gw, store, convs, WithLogger(logger), WithClock(func() time.Time { return testNow }))
	return fixture{svc: svc, gw: gw, store: store, convs: convs}
}

func (f fixture) count(t *testing.T, userID int64) int {
	t.Helper()
	rs, err := f.store.ListByUser(context.Background(), userID, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	return len(rs)
}

func TestGenerate_SavesClassifiedPlan(t *testing.T) {
	f := newFixture(t, &fakeGateway{complete: withPlan(legPlan)})
	req := workout.GenerationRequest{UserID: 1, Preferences: "leg day", DurationMinutes: 20, Difficulty: "beginner", Equipment: []string{"none"}}

	res, err := f.svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(f.gw.prompts[0], "20") || !strings.Contains(f.gw.prompts[0], "beginner") {
		t.Fatalf("prompt missing request values: %q", f.gw.prompts[0])
	}
	if !res.Success || res.Workout == nil || res.Message != SavedMessage {
		t.Fatalf("unexpected result %+v", res)
	}
	w := res.Workout
	if w.Main[0].Name != "Bodyweight Squats" {
		t.Fatalf("main[0] = %q", w.Main[0].Name)
	}
	if w.EstimatedCalories != 100 {
		t.Fatalf("calories = %d, want 100", w.EstimatedCalories)
	}
	found := false
	for _, mg := range w.TargetMuscleGroups {
		found = found || mg == "legs"
	}
	if !found {
		t.Fatalf("expected legs in %v", w.TargetMuscleGroups)
	}
	if !w.AutoGenerated || w.Fingerprint == "" || w.ID == 0 || w.DurationMinutes != 20 || w.Difficulty != "beginner" {
		t.Fatalf("unexpected record %+v", w)
	}

	stored, err := f.store.GetByID(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if diff := cmp.Diff(*w, stored); diff != "" {
		t.Fatalf("stored record mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_NoMarkersIsConversational(t *testing.T) {
	f := newFixture(t, &fakeGateway{complete: "How about some squats today?"})
	res, err := f.svc.Generate(context.Background(), workout.GenerationRequest{UserID: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Success || res.Workout != nil || res.Message != "How about some squats today?" || res.Degraded {
		t.Fatalf("unexpected result %+v", res)
	}
	if n := f.count(t, 1); n != 0 {
		t.Fatalf("expected no records, got %d", n)
	}
}

func TestGenerate_UnavailableReturnsFallback(t *testing.T) {
	text, err := degraded()
	f := newFixture(t, &fakeGateway{complete: text, completeErr: err})
	res, gerr := f.svc.Generate(context.Background(), workout.GenerationRequest{UserID: 1})
	if gerr != nil {
		t.Fatalf("Generate should degrade, got %v", gerr)
	}
	if res.Success || res.Message != llm.FallbackReply || !res.Degraded {
		t.Fatalf("unexpected result %+v", res)
	}
	if n := f.count(t, 1); n != 0 {
		t.Fatalf("expected no records, got %d", n)
	}
}

func TestGenerate_InvalidPlansAreMisses(t *testing.T) {
	cases := map[string]string{
		"broken json": withPlan(`{"name": "x", "main": [`),
		"empty main":  withPlan(`{"name": "x", "main": []}`),
		"no volume":   withPlan(`{"name": "x", "main": [{"name": "Squats"}]}`),
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, &fakeGateway{complete: reply})
			res, err := f.svc.Generate(context.Background(), workout.GenerationRequest{UserID: 1})
			if err != nil || res.Success {
				t.Fatalf("expected unsuccessful result, got %+v %v", res, err)
			}
			if res.Message != reply {
				t.Fatalf("expected raw reply as message, got %q", res.Message)
			}
			if n := f.count(t, 1); n != 0 {
				t.Fatalf("expected no records, got %d", n)
			}
		})
	}
}

func TestGenerate_RequiresUser(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	if _, err := f.svc.Generate(context.Background(), workout.GenerationRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if len(f.gw.prompts) != 0 {
		t.Fatalf("gateway should not be called")
	}
}

func TestGenerate_DefaultsNameAndDescription(t *testing.T) {
	f := newFixture(t, &fakeGateway{complete: withPlan(`{"main": [{"name": "Plank", "duration": 45}]}`)})
	res, err := f.svc.Generate(context.Background(), workout.GenerationRequest{UserID: 1})
	if err == nil && res.Success {
		t.Fatalf("plan without a name should fail validation")
	}

	f = newFixture(t, &fakeGateway{complete: withPlan(`{"name": "Core", "main": [{"name": "Plank", "duration": 45}]}`)})
	res, err = f.svc.Generate(context.Background(), workout.GenerationRequest{UserID: 1})
	if err != nil || !res.Success {
		t.Fatalf("Generate: %+v %v", res, err)
	}
	if res.Workout.Description != "AI-generated intermediate workout" || res.Workout.DurationMinutes != 30 {
		t.Fatalf("unexpected defaults %+v", res.Workout)
	}
}

func TestHandleMessage_WorkoutIntent(t *testing.T) {
	f := newFixture(t, &fakeGateway{complete: withPlan(legPlan)})
	reply, err := f.svc.HandleMessage(context.Background(), 1, "Create a 20 min easy leg workout", 0)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !reply.WorkoutGenerated || reply.WorkoutID == nil || reply.ConversationID == 0 {
		t.Fatalf("unexpected reply %+v", reply)
	}
	for _, want := range []string{`I've created a 20-minute beginner workout for you! "Leg Day Starter"`, "Main workout: 1 exercises", "Estimated calories burn: 100 cal"} {
		if !strings.Contains(reply.Message.Content, want) {
			t.Fatalf("reply missing %q:\n%s", want, reply.Message.Content)
		}
	}
	if len(f.gw.histories) != 0 {
		t.Fatalf("workout intent should not use chat")
	}

	conv, err := f.convs.Get(context.Background(), reply.ConversationID)
	if err != nil {
		t.Fatalf("Get conversation: %v", err)
	}
	if len(conv.Messages) != 2 || conv.Messages[0].Role != "user" || conv.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected transcript %+v", conv.Messages)
	}
}

func TestHandleMessage_WorkoutIntentMissRepliesWithRawText(t *testing.T) {
	f := newFixture(t, &fakeGateway{complete: "Tell me more about your goals first."})
	reply, err := f.svc.HandleMessage(context.Background(), 1, "build me a routine", 0)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.WorkoutGenerated || reply.WorkoutID != nil || reply.Message.Content != "Tell me more about your goals first." {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if n := f.count(t, 1); n != 0 {
		t.Fatalf("expected no records, got %d", n)
	}
}

func TestHandleMessage_Conversational(t *testing.T) {
	f := newFixture(t, &fakeGateway{chat: "Rest days matter too!"})
	ctx := context.Background()

	first, err := f.svc.HandleMessage(ctx, 1, "I feel tired", 0)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if first.Message.Content != "Rest days matter too!" || first.WorkoutGenerated {
		t.Fatalf("unexpected reply %+v", first)
	}

	second, err := f.svc.HandleMessage(ctx, 1, "Thanks coach", first.ConversationID)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("conversation changed: %d -> %d", first.ConversationID, second.ConversationID)
	}
	hist := f.gw.histories[1]
	var roles []provider.Role
	for _, m := range hist {
		roles = append(roles, m.Role)
	}
	want := []provider.Role{provider.RoleUser, provider.RoleAssistant, provider.RoleUser}
	if diff := cmp.Diff(want, roles); diff != "" {
		t.Fatalf("history roles mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleMessage_ConversationalReplyCarryingPlan(t *testing.T) {
	f := newFixture(t, &fakeGateway{chat: withPlan(strings.Replace(legPlan, `"name": "Leg Day Starter",`, `"name": "Leg Day Starter", "duration": 25, "difficulty": "advanced",`, 1))})
	reply, err := f.svc.HandleMessage(context.Background(), 1, "legs are sore but let's go", 0)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !reply.WorkoutGenerated || reply.WorkoutID == nil {
		t.Fatalf("expected plan to be saved, got %+v", reply)
	}
	if reply.Message.Content != "Here you go!" {
		t.Fatalf("expected block stripped from reply, got %q", reply.Message.Content)
	}
	rec, err := f.store.GetByID(context.Background(), *reply.WorkoutID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.DurationMinutes != 25 || rec.Difficulty != "advanced" || rec.EstimatedCalories != 275 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestHandleMessage_Degraded(t *testing.T) {
	text, err := degraded()
	f := newFixture(t, &fakeGateway{chat: text, chatErr: err})
	reply, herr := f.svc.HandleMessage(context.Background(), 1, "hello", 0)
	if herr != nil {
		t.Fatalf("HandleMessage should degrade, got %v", herr)
	}
	if reply.Message.Content != llm.FallbackReply || reply.WorkoutGenerated {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestHandleMessage_ForeignConversationStartsFresh(t *testing.T) {
	f := newFixture(t, &fakeGateway{chat: "hi"})
	ctx := context.Background()
	other, err := f.convs.Create(ctx, 2, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	reply, err := f.svc.HandleMessage(ctx, 1, "hello", other.ID)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.ConversationID == other.ID {
		t.Fatalf("must not write into another user's conversation")
	}
}

func TestHandleMessage_EmptyMessage(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	if _, err := f.svc.HandleMessage(context.Background(), 1, "   ", 0); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestConversation_Welcome(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	ctx := context.Background()
	conv, err := f.svc.Conversation(ctx, 1)
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Content != WelcomeMessage {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	again, err := f.svc.Conversation(ctx, 1)
	if err != nil || again.ID != conv.ID {
		t.Fatalf("expected same conversation, got %+v %v", again, err)
	}
}

func seed(t *testing.T, f fixture, userID int64, daysAgo int, muscles, tags []string) workout.Record {
	t.Helper()
	three := workout.Quantity(3)
	r, err := f.store.Create(context.Background(), workout.Record{
		UserID:             userID,
		Plan:               workout.Plan{Name: "seed", DurationMinutes: 30, Difficulty: "beginner", Main: []workout.ExerciseStep{{Name: "x", Sets: &three, Reps: &workout.Reps{Count: 5}}}},
		CreatedAt:          testNow.AddDate(0, 0, -daysAgo),
		Tags:               tags,
		TargetMuscleGroups: muscles,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return r
}

func TestPatterns_DailyLegDominantHistory(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	seed(t, f, 1, 2, []string{"legs"}, []string{"legs"})
	seed(t, f, 1, 1, []string{"chest"}, []string{"chest"})
	seed(t, f, 1, 0, []string{"legs"}, []string{"legs"})

	s, err := f.svc.Patterns(context.Background(), 1)
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	if s.FavoriteTags[0] != "legs" {
		t.Fatalf("favorite tags = %v", s.FavoriteTags)
	}
	if diff := cmp.Diff(map[string]int{"legs": 2, "chest": 1}, s.MuscleGroupDistribution); diff != "" {
		t.Fatalf("distribution mismatch (-want +got):\n%s", diff)
	}
}

func TestRecommendations_FallbackWhenGatewayDown(t *testing.T) {
	text, err := degraded()
	f := newFixture(t, &fakeGateway{complete: text, completeErr: err})
	seed(t, f, 1, 1, []string{"chest"}, nil)
	seed(t, f, 1, 0, []string{"legs", "core"}, nil)

	rec, rerr := f.svc.Recommendations(context.Background(), 1)
	if rerr != nil {
		t.Fatalf("Recommendations: %v", rerr)
	}
	if rec.NextWorkout.Recommendation != "30-minute chest workout" {
		t.Fatalf("unexpected next workout %+v", rec.NextWorkout)
	}
	if len(rec.WeeklyPlan) != 7 {
		t.Fatalf("expected 7 days, got %d", len(rec.WeeklyPlan))
	}
}

func TestSaveManualAndCategorize(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	ctx := context.Background()
	three := workout.Quantity(3)
	plan := workout.Plan{
		Name:            "Push day",
		DurationMinutes: 40,
		Difficulty:      "Advanced",
		Main:            []workout.ExerciseStep{{Name: "Bench press", Sets: &three, Reps: &workout.Reps{Text: "8-10"}}},
	}
	rec, err := f.svc.SaveManual(ctx, 1, plan)
	if err != nil {
		t.Fatalf("SaveManual: %v", err)
	}
	if rec.AutoGenerated || rec.Difficulty != "advanced" || rec.EstimatedCalories != 440 {
		t.Fatalf("unexpected record %+v", rec)
	}

	cat, err := f.svc.Categorize(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Categorize: %v", err)
	}
	if cat.Category != rec.Category || cat.EstimatedCalories != 440 {
		t.Fatalf("unexpected categorization %+v", cat)
	}

	if _, err := f.svc.SaveManual(ctx, 1, workout.Plan{Name: "empty"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := f.svc.Categorize(ctx, 999); !errors.Is(err, sqlite.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteAndArchive(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	ctx := context.Background()
	stale := seed(t, f, 1, 45, nil, nil)
	used := seed(t, f, 1, 45, nil, nil)
	seed(t, f, 1, 3, nil, nil)

	done, err := f.svc.Complete(ctx, used.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Analytics.TimesCompleted != 1 {
		t.Fatalf("unexpected analytics %+v", done.Analytics)
	}

	n, err := f.svc.ArchiveStale(ctx)
	if err != nil {
		t.Fatalf("ArchiveStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("archived %d, want 1", n)
	}
	got, _ := f.svc.Workout(ctx, stale.ID)
	if !got.Archived {
		t.Fatalf("expected stale record archived")
	}
}

func TestScheduleArchive(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	c := cron.New()
	if err := f.svc.ScheduleArchive(c, "@daily"); err != nil {
		t.Fatalf("ScheduleArchive: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Fatalf("expected one entry, got %d", len(c.Entries()))
	}
	if err := f.svc.ScheduleArchive(c, "not a schedule"); err == nil {
		t.Fatalf("expected error for bad spec")
	}
}
