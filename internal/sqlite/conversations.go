package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"userId"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ConversationStore keeps trainer chat transcripts.
type ConversationStore struct {
	db     *Database
	logger *slog.Logger
}

func NewConversationStore(db *Database, logger *slog.Logger) *ConversationStore {
	return &ConversationStore{db: db, logger: logger}
}

const conversationColumns = `id, user_id, messages, created_at, updated_at`

func (s *ConversationStore) Create(ctx context.Context, userID int64, msgs []ChatMessage) (Conversation, error) {
	b, err := marshalMessages(msgs)
	if err != nil {
		return Conversation{}, err
	}
	now := formatTime(time.Now())
	query := `
		INSERT INTO conversations (user_id, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		RETURNING ` + conversationColumns

	c, err := scanConversation(s.db.ReadWrite.QueryRowContext(ctx, query, userID, b, now, now))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create conversation", slog.Any("error", err))
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

func (s *ConversationStore) Get(ctx context.Context, id int64) (Conversation, error) {
	row := s.db.ReadOnly.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// Latest returns the user's most recently updated conversation.
func (s *ConversationStore) Latest(ctx context.Context, userID int64) (Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`
	c, err := scanConversation(s.db.ReadOnly.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("latest conversation: %w", err)
	}
	return c, nil
}

// Update replaces the transcript of conversation id.
func (s *ConversationStore) Update(ctx context.Context, id int64, msgs []ChatMessage) (Conversation, error) {
	b, err := marshalMessages(msgs)
	if err != nil {
		return Conversation{}, err
	}
	query := `
		UPDATE conversations
		SET messages = ?, updated_at = ?
		WHERE id = ?
		RETURNING ` + conversationColumns

	c, err := scanConversation(s.db.ReadWrite.QueryRowContext(ctx, query, b, formatTime(time.Now()), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "failed to update conversation", slog.Int64("id", id), slog.Any("error", err))
		return Conversation{}, fmt.Errorf("update conversation: %w", err)
	}
	return c, nil
}

func scanConversation(sc scanner) (Conversation, error) {
	var (
		c                    Conversation
		msgs                 string
		createdAt, updatedAt string
	)
	if err := sc.Scan(&c.ID, &c.UserID, &msgs, &createdAt, &updatedAt); err != nil {
		return Conversation{}, err
	}
	if err := json.Unmarshal([]byte(msgs), &c.Messages); err != nil {
		return Conversation{}, fmt.Errorf("unmarshal messages: %w", err)
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Conversation{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

func marshalMessages(msgs []ChatMessage) (string, error) {
	if msgs == nil {
		msgs = []ChatMessage{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("marshal messages: %w", err)
	}
	return string(b), nil
}
