package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aaronromeo/fittrack/internal/classify"
	"github.com/aaronromeo/fittrack/internal/logging"
	"github.com/aaronromeo/fittrack/internal/patterns"
	"github.com/aaronromeo/fittrack/internal/recommend"
	"github.com/aaronromeo/fittrack/internal/sqlite"
	"github.com/aaronromeo/fittrack/internal/trainer"
	"github.com/aaronromeo/fittrack/internal/workout"
)

// Trainer is the pipeline surface the HTTP layer exposes.
type Trainer interface {
	Generate(ctx context.Context, req workout.GenerationRequest) (trainer.GenerateResult, error)
	HandleMessage(ctx context.Context, userID int64, message string, conversationID int64) (trainer.MessageReply, error)
	Conversation(ctx context.Context, userID int64) (sqlite.Conversation, error)
	Patterns(ctx context.Context, userID int64) (patterns.Summary, error)
	Recommendations(ctx context.Context, userID int64) (recommend.Recommendation, error)
	SaveManual(ctx context.Context, userID int64, plan workout.Plan) (workout.Record, error)
	Workouts(ctx context.Context, userID int64) ([]workout.Record, error)
	Workout(ctx context.Context, id int64) (workout.Record, error)
	Complete(ctx context.Context, id int64) (workout.Record, error)
	Delete(ctx context.Context, id int64) error
	Categorize(ctx context.Context, id int64) (classify.Result, error)
}

type server struct {
	trainer     Trainer
	logger      *slog.Logger
	defaultUser int64
	health      func(context.Context) error
}

type Option func(*server)

func WithLogger(l *slog.Logger) Option {
	return func(s *server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultUser sets the user for requests that do not name one.
func WithDefaultUser(id int64) Option {
	return func(s *server) {
		if id > 0 {
			s.defaultUser = id
		}
	}
}

// WithHealthCheck makes /healthz report 503 when check fails.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(s *server) { s.health = check }
}

func NewServer(t Trainer, opts ...Option) *fiber.App {
	s := &server{trainer: t, logger: slog.Default(), defaultUser: 1}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(s.requestContext)

	app.Get("/healthz", s.healthz)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Post("/generate-workout", s.generateWorkout)
	api.Post("/trainer/message", s.trainerMessage)
	api.Get("/trainer/conversation", s.trainerConversation)
	api.Get("/patterns/:userId", s.userPatterns)
	api.Get("/recommendations/:userId", s.userRecommendations)
	api.Get("/workouts", s.listWorkouts)
	api.Post("/workouts", s.saveWorkout)
	api.Get("/workouts/:id", s.getWorkout)
	api.Get("/workouts/:id/category", s.categorizeWorkout)
	api.Post("/workouts/:id/complete", s.completeWorkout)
	api.Delete("/workouts/:id", s.deleteWorkout)
	return app
}

// requestContext carries the request id into every log record for the request.
func (s *server) requestContext(c *fiber.Ctx) error {
	rid, _ := c.Locals("requestid").(string)
	c.SetUserContext(logging.WithAttrs(c.UserContext(), slog.String("request_id", rid)))
	return c.Next()
}

func (s *server) healthz(c *fiber.Ctx) error {
	if s.health != nil {
		if err := s.health(c.UserContext()); err != nil {
			s.logger.ErrorContext(c.UserContext(), "health check failed", slog.Any("error", err))
			return c.SendStatus(http.StatusServiceUnavailable)
		}
	}
	return c.SendStatus(http.StatusOK)
}

// errBadRequest marks malformed input detected by the HTTP layer itself.
var errBadRequest = errors.New("bad request")

func (s *server) handleError(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, trainer.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, sqlite.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &fe):
		status = fe.Code
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err))
		msg = http.StatusText(status)
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}
