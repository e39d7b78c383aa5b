package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaronromeo/fittrack/internal/workout"
)

// WorkoutStore persists workout records keyed by user.
type WorkoutStore struct {
	db     *Database
	logger *slog.Logger
}

func NewWorkoutStore(db *Database, logger *slog.Logger) *WorkoutStore {
	return &WorkoutStore{db: db, logger: logger}
}

type exercises struct {
	Warmup   []workout.ExerciseStep `json:"warmup"`
	Main     []workout.ExerciseStep `json:"main"`
	Cooldown []workout.ExerciseStep `json:"cooldown"`
}

const workoutColumns = `id, user_id, name, description, duration_minutes, difficulty, exercises, tags,
	target_muscle_groups, estimated_calories, category, intensity, auto_generated, fingerprint,
	archived, archived_at, times_completed, last_completed_at, created_at`

// Create inserts r and returns it with its id. A zero CreatedAt is set to now.
func (s *WorkoutStore) Create(ctx context.Context, r workout.Record) (workout.Record, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	ex, err := json.Marshal(exercises{Warmup: r.Warmup, Main: r.Main, Cooldown: r.Cooldown})
	if err != nil {
		return workout.Record{}, fmt.Errorf("marshal exercises: %w", err)
	}
	tags, err := marshalList(r.Tags)
	if err != nil {
		return workout.Record{}, fmt.Errorf("marshal tags: %w", err)
	}
	muscles, err := marshalList(r.TargetMuscleGroups)
	if err != nil {
		return workout.Record{}, fmt.Errorf("marshal muscle groups: %w", err)
	}

	query := `
		INSERT INTO workouts (user_id, name, description, duration_minutes, difficulty, exercises, tags,
		                      target_muscle_groups, estimated_calories, category, intensity, auto_generated,
		                      fingerprint, archived, archived_at, times_completed, last_completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + workoutColumns

	row := s.db.ReadWrite.QueryRowContext(ctx, query,
		r.UserID, r.Name, r.Description, r.DurationMinutes, r.Difficulty, string(ex), tags,
		muscles, r.EstimatedCalories, r.Category, r.Intensity, r.AutoGenerated,
		r.Fingerprint, r.Archived, nullTime(r.ArchivedAt), r.Analytics.TimesCompleted,
		nullTime(r.Analytics.LastCompletedAt), formatTime(r.CreatedAt))
	out, err := scanWorkout(row)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create workout", slog.Any("error", err))
		return workout.Record{}, fmt.Errorf("create workout: %w", err)
	}
	return out, nil
}

// ListByUser returns up to limit records, newest first. limit <= 0 means all.
func (s *WorkoutStore) ListByUser(ctx context.Context, userID int64, limit int) ([]workout.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + workoutColumns + `
		FROM workouts
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := s.db.ReadOnly.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	records := []workout.Record{}
	for rows.Next() {
		r, err := scanWorkout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workouts: %w", err)
	}
	return records, nil
}

func (s *WorkoutStore) GetByID(ctx context.Context, id int64) (workout.Record, error) {
	row := s.db.ReadOnly.QueryRowContext(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE id = ?`, id)
	r, err := scanWorkout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workout.Record{}, ErrNotFound
		}
		return workout.Record{}, fmt.Errorf("get workout: %w", err)
	}
	return r, nil
}

// RecordCompletion bumps the completion analytics and restores an archived record.
func (s *WorkoutStore) RecordCompletion(ctx context.Context, id int64, at time.Time) (workout.Record, error) {
	query := `
		UPDATE workouts
		SET times_completed   = times_completed + 1,
		    last_completed_at = ?,
		    archived          = 0,
		    archived_at       = NULL
		WHERE id = ?
		RETURNING ` + workoutColumns

	r, err := scanWorkout(s.db.ReadWrite.QueryRowContext(ctx, query, formatTime(at), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workout.Record{}, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "failed to record completion", slog.Int64("id", id), slog.Any("error", err))
		return workout.Record{}, fmt.Errorf("record completion: %w", err)
	}
	return r, nil
}

func (s *WorkoutStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ReadWrite.ExecContext(ctx, `DELETE FROM workouts WHERE id = ?`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete workout", slog.Int64("id", id), slog.Any("error", err))
		return fmt.Errorf("delete workout: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ArchiveStale archives records created before cutoff that have not been
// completed since. It returns the number of records archived.
func (s *WorkoutStore) ArchiveStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	query := `
		UPDATE workouts
		SET archived    = 1,
		    archived_at = ?
		WHERE archived = 0
		  AND created_at < ?
		  AND (last_completed_at IS NULL OR last_completed_at < ?)`

	c := formatTime(cutoff)
	result, err := s.db.ReadWrite.ExecContext(ctx, query, formatTime(now), c, c)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to archive workouts", slog.Any("error", err))
		return 0, fmt.Errorf("archive workouts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkout(sc scanner) (workout.Record, error) {
	var (
		r                       workout.Record
		ex, tags, muscles       string
		archivedAt, completedAt sql.NullString
		createdAt               string
	)
	err := sc.Scan(&r.ID, &r.UserID, &r.Name, &r.Description, &r.DurationMinutes, &r.Difficulty, &ex, &tags,
		&muscles, &r.EstimatedCalories, &r.Category, &r.Intensity, &r.AutoGenerated, &r.Fingerprint,
		&r.Archived, &archivedAt, &r.Analytics.TimesCompleted, &completedAt, &createdAt)
	if err != nil {
		return workout.Record{}, err
	}

	var e exercises
	if err = json.Unmarshal([]byte(ex), &e); err != nil {
		return workout.Record{}, fmt.Errorf("unmarshal exercises: %w", err)
	}
	r.Warmup, r.Main, r.Cooldown = e.Warmup, e.Main, e.Cooldown

	if err = json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return workout.Record{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err = json.Unmarshal([]byte(muscles), &r.TargetMuscleGroups); err != nil {
		return workout.Record{}, fmt.Errorf("unmarshal muscle groups: %w", err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return workout.Record{}, err
	}
	if r.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
		return workout.Record{}, err
	}
	if r.Analytics.LastCompletedAt, err = parseNullTime(completedAt); err != nil {
		return workout.Record{}, err
	}
	return r, nil
}

func marshalList(xs []string) (string, error) {
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	return string(b), err
}
