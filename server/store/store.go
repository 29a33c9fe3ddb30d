package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"langmod/server/backend/domain"
)

var ErrNotFound = errors.New("not found")

type UserStore interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	CreateUser(ctx context.Context, user domain.User) error
	GetUserWithHistory(ctx context.Context, userID int64) (domain.User, error)
	AppendChatMessage(ctx context.Context, userID int64, msg domain.ChatMessage) error
	AttachAnalysis(ctx context.Context, chatID, messageID string, result []domain.LanguageScore) (bool, error)
	CountAnalyzedMessages(ctx context.Context, userID int64, chatID string) (int, error)
	SnapshotUsers(ctx context.Context) ([]domain.User, error)
}

type ChatStore interface {
	GetChat(ctx context.Context, chatID string) (domain.Chat, error)
	CreateChat(ctx context.Context, chat domain.Chat) error
	UpdateChatName(ctx context.Context, chatID, name string) error
	UpdateChatSettings(ctx context.Context, chatID string, settings domain.ChatSettings) error
}

type RestrictionStore interface {
	AppendRestriction(ctx context.Context, rec domain.RestrictionRecord) error
	RestrictionHistory(ctx context.Context, userID int64, chatID string) ([]domain.RestrictionRecord, error)
}

type Store interface {
	UserStore
	ChatStore
	RestrictionStore
}

// Postgres is the document-store used by every service. Appends are
// single INSERTs and analysis attachment a single UPDATE, so concurrent
// handlers never lose writes to read-modify-write races.
type Postgres struct {
	*UserRepository
	*ChatRepository
	*RestrictionRepository
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		UserRepository:        NewUserRepository(pool),
		ChatRepository:        NewChatRepository(pool),
		RestrictionRepository: NewRestrictionRepository(pool),
		pool:                  pool,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id   BIGINT PRIMARY KEY,
	name      TEXT NOT NULL DEFAULT '',
	username  TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS chat_messages (
	chat_id         TEXT NOT NULL,
	message_id      TEXT NOT NULL,
	user_id         BIGINT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	ts              TEXT NOT NULL DEFAULT '',
	analysis_result JSONB,
	PRIMARY KEY (chat_id, message_id)
);
CREATE INDEX IF NOT EXISTS chat_messages_user_idx ON chat_messages (user_id, chat_id);

CREATE TABLE IF NOT EXISTS chats (
	chat_id         TEXT PRIMARY KEY,
	last_known_name TEXT NOT NULL DEFAULT '',
	users           JSONB NOT NULL DEFAULT '[]',
	admins          JSONB NOT NULL DEFAULT '{}',
	settings        JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS restriction_records (
	id               BIGSERIAL PRIMARY KEY,
	user_id          BIGINT NOT NULL,
	chat_id          TEXT NOT NULL,
	message_id       TEXT NOT NULL,
	message_text     TEXT NOT NULL DEFAULT '',
	restriction_type TEXT NOT NULL,
	rule_index       INT NOT NULL,
	ts               TIMESTAMPTZ NOT NULL,
	duration_seconds BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS restriction_records_user_idx ON restriction_records (user_id, chat_id, ts);
`

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	return err
}
