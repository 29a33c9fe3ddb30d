package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"langmod/server/backend/domain"
)

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) GetChat(ctx context.Context, chatID string) (domain.Chat, error) {
	var chat domain.Chat
	var users, admins, settings []byte
	err := r.pool.QueryRow(ctx, `
		SELECT chat_id, last_known_name, users, admins, settings
		FROM chats WHERE chat_id=$1
	`, chatID).Scan(&chat.ChatID, &chat.LastKnownName, &users, &admins, &settings)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Chat{}, ErrNotFound
	}
	if err != nil {
		return domain.Chat{}, err
	}
	if err := json.Unmarshal(users, &chat.Users); err != nil {
		return domain.Chat{}, fmt.Errorf("decode chat users: %w", err)
	}
	if err := json.Unmarshal(admins, &chat.Admins); err != nil {
		return domain.Chat{}, fmt.Errorf("decode chat admins: %w", err)
	}
	if err := json.Unmarshal(settings, &chat.ChatSettings); err != nil {
		return domain.Chat{}, fmt.Errorf("decode chat settings: %w", err)
	}
	return chat, nil
}

func (r *ChatRepository) CreateChat(ctx context.Context, chat domain.Chat) error {
	users, err := json.Marshal(chat.Users)
	if err != nil {
		return fmt.Errorf("marshal chat users: %w", err)
	}
	admins, err := json.Marshal(chat.Admins)
	if err != nil {
		return fmt.Errorf("marshal chat admins: %w", err)
	}
	settings, err := json.Marshal(chat.ChatSettings)
	if err != nil {
		return fmt.Errorf("marshal chat settings: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO chats(chat_id, last_known_name, users, admins, settings)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id) DO NOTHING
	`, chat.ChatID, chat.LastKnownName, users, admins, settings)
	return err
}

func (r *ChatRepository) UpdateChatName(ctx context.Context, chatID, name string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE chats SET last_known_name=$1 WHERE chat_id=$2`, name, chatID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ChatRepository) UpdateChatSettings(ctx context.Context, chatID string, settings domain.ChatSettings) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal chat settings: %w", err)
	}
	cmd, err := r.pool.Exec(ctx, `UPDATE chats SET settings=$1 WHERE chat_id=$2`, body, chatID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
