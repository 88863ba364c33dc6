package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx used by the store. Both *pgxpool.Pool and
// pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists chats and messages.
type Store struct {
	db Querier
}

// NewStore creates a chat store over the given querier.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// CreateChat inserts a chat. A nil ID is replaced with a fresh one.
func (s *Store) CreateChat(ctx context.Context, c *Chat) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO chats (id, user_id, title)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		c.ID, c.UserID, c.Title,
	).Scan(&c.CreatedAt)
	if err != nil {
		// The ID already existing means the chat belongs to another user;
		// lookups are scoped by user, so to this caller it does not exist.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrChatNotFound
		}
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

// ChatByID returns the chat if it exists and belongs to the user.
func (s *Store) ChatByID(ctx context.Context, id uuid.UUID, userID string) (*Chat, error) {
	var c Chat
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, title, created_at
		FROM chats
		WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query chat: %w", err)
	}
	return &c, nil
}

// DeleteChat removes a chat and, through the schema, its messages.
func (s *Store) DeleteChat(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM chats WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}
	return nil
}

// SaveMessage inserts a message. Replays of the same message ID are
// ignored, so a retried turn cannot duplicate history.
func (s *Store) SaveMessage(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	parts, err := json.Marshal(m.Parts)
	if err != nil {
		return fmt.Errorf("marshal message parts: %w", err)
	}
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO messages (id, chat_id, role, parts, attachments)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		m.ID, m.ChatID, string(m.Role), parts, attachments)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// MessagesByChat returns the chat's messages oldest first.
func (s *Store) MessagesByChat(ctx context.Context, chatID uuid.UUID) ([]Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, chat_id, role, parts, attachments, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m           Message
			role        string
			parts       []byte
			attachments []byte
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &role, &parts, &attachments, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = Role(role)
		if len(parts) > 0 {
			if err := json.Unmarshal(parts, &m.Parts); err != nil {
				return nil, fmt.Errorf("decode message parts: %w", err)
			}
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
				return nil, fmt.Errorf("decode attachments: %w", err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// aiRole maps the stored role onto the model request role. The assistant
// role is called "model" on the wire.
func aiRole(r Role) ai.Role {
	switch r {
	case RoleAssistant:
		return ai.RoleModel
	case RoleSystem:
		return ai.RoleSystem
	case RoleTool:
		return ai.RoleTool
	default:
		return ai.RoleUser
	}
}

// historyMessages converts stored messages into model request messages.
func historyMessages(msgs []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, &ai.Message{Role: aiRole(m.Role), Content: m.Parts})
	}
	return out
}
