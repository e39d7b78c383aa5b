package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/aaronromeo/fittrack/internal/logging"
	"github.com/aaronromeo/fittrack/internal/workout"
)

func decode(c *fiber.Ctx, v any) error {
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return fmt.Errorf("%w: invalid json: %w", errBadRequest, err)
	}
	return nil
}

func idParam(c *fiber.Ctx, name string) (int64, error) {
	n, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadRequest, name)
	}
	return n, nil
}

// withUser tags the request's log records with userID.
func withUser(c *fiber.Ctx, userID int64) {
	c.SetUserContext(logging.WithAttrs(c.UserContext(), slog.Int64("user_id", userID)))
}

func (s *server) userOrDefault(id int64) int64 {
	if id > 0 {
		return id
	}
	return s.defaultUser
}

func (s *server) generateWorkout(c *fiber.Ctx) error {
	var req workout.GenerationRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	req.UserID = s.userOrDefault(req.UserID)
	withUser(c, req.UserID)

	res, err := s.trainer.Generate(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

type messageRequest struct {
	Message        string `json:"message"`
	ConversationID int64  `json:"conversationId"`
}

func (s *server) trainerMessage(c *fiber.Ctx) error {
	var in messageRequest
	if err := decode(c, &in); err != nil {
		return err
	}
	withUser(c, s.defaultUser)
	reply, err := s.trainer.HandleMessage(c.UserContext(), s.defaultUser, in.Message, in.ConversationID)
	if err != nil {
		return err
	}
	return c.JSON(reply)
}

func (s *server) trainerConversation(c *fiber.Ctx) error {
	withUser(c, s.defaultUser)
	conv, err := s.trainer.Conversation(c.UserContext(), s.defaultUser)
	if err != nil {
		return err
	}
	return c.JSON(conv)
}

func (s *server) userPatterns(c *fiber.Ctx) error {
	userID, err := idParam(c, "userId")
	if err != nil {
		return err
	}
	withUser(c, userID)
	summary, err := s.trainer.Patterns(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (s *server) userRecommendations(c *fiber.Ctx) error {
	userID, err := idParam(c, "userId")
	if err != nil {
		return err
	}
	withUser(c, userID)
	rec, err := s.trainer.Recommendations(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (s *server) listWorkouts(c *fiber.Ctx) error {
	userID := s.userOrDefault(int64(c.QueryInt("userId")))
	withUser(c, userID)
	records, err := s.trainer.Workouts(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(records)
}

type manualWorkout struct {
	UserID int64 `json:"userId"`
	workout.Plan
}

func (s *server) saveWorkout(c *fiber.Ctx) error {
	var in manualWorkout
	if err := decode(c, &in); err != nil {
		return err
	}
	userID := s.userOrDefault(in.UserID)
	withUser(c, userID)
	rec, err := s.trainer.SaveManual(c.UserContext(), userID, in.Plan)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "workout": rec})
}

func (s *server) getWorkout(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	rec, err := s.trainer.Workout(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (s *server) categorizeWorkout(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	res, err := s.trainer.Categorize(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *server) completeWorkout(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	rec, err := s.trainer.Complete(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "workout": rec})
}

func (s *server) deleteWorkout(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.trainer.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
