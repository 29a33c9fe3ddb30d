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

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id=$1)`, userID).Scan(&exists)
	return exists, err
}

func (r *UserRepository) CreateUser(ctx context.Context, user domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users(user_id, name, username, is_active)
		VALUES($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`, user.UserID, user.Name, user.Username, user.IsActive)
	return err
}

func (r *UserRepository) GetUserWithHistory(ctx context.Context, userID int64) (domain.User, error) {
	var user domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, name, username, is_active FROM users WHERE user_id=$1
	`, userID).Scan(&user.UserID, &user.Name, &user.Username, &user.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}

	user.ChatHistory = map[string][]domain.ChatMessage{}
	rows, err := r.pool.Query(ctx, `
		SELECT chat_id, message_id, content, ts, analysis_result
		FROM chat_messages
		WHERE user_id=$1
		ORDER BY ts, message_id
	`, userID)
	if err != nil {
		return domain.User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return domain.User{}, err
		}
		user.ChatHistory[msg.ChatID] = append(user.ChatHistory[msg.ChatID], msg)
	}
	return user, rows.Err()
}

// AppendChatMessage records a message atomically; duplicate delivery of
// the same (chat_id, message_id) is a no-op.
func (r *UserRepository) AppendChatMessage(ctx context.Context, userID int64, msg domain.ChatMessage) error {
	var analysis any
	if msg.AnalysisResult != nil {
		body, err := json.Marshal(msg.AnalysisResult)
		if err != nil {
			return fmt.Errorf("marshal analysis result: %w", err)
		}
		analysis = body
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages(chat_id, message_id, user_id, content, ts, analysis_result)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chat_id, message_id) DO NOTHING
	`, msg.ChatID, msg.MessageID, userID, msg.Content, msg.Timestamp, analysis)
	return err
}

// AttachAnalysis sets a message's analysis result, the one update a
// recorded message ever receives. Returns false when no unanalyzed
// message matched.
func (r *UserRepository) AttachAnalysis(ctx context.Context, chatID, messageID string, result []domain.LanguageScore) (bool, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshal analysis result: %w", err)
	}
	cmd, err := r.pool.Exec(ctx, `
		UPDATE chat_messages
		SET analysis_result=$1
		WHERE chat_id=$2 AND message_id=$3 AND analysis_result IS NULL
	`, body, chatID, messageID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *UserRepository) CountAnalyzedMessages(ctx context.Context, userID int64, chatID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_messages
		WHERE user_id=$1 AND chat_id=$2 AND analysis_result IS NOT NULL
	`, userID, chatID).Scan(&count)
	return count, err
}

// SnapshotUsers loads every user with their complete chat histories for
// the aggregators. The snapshot is a point-in-time read, not a
// transaction across both tables.
func (r *UserRepository) SnapshotUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, name, username, is_active FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	index := map[int64]int{}
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.UserID, &user.Name, &user.Username, &user.IsActive); err != nil {
			return nil, err
		}
		user.ChatHistory = map[string][]domain.ChatMessage{}
		index[user.UserID] = len(users)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	msgRows, err := r.pool.Query(ctx, `
		SELECT user_id, chat_id, message_id, content, ts, analysis_result
		FROM chat_messages
		ORDER BY user_id, ts, message_id
	`)
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var userID int64
		var msg domain.ChatMessage
		var analysis []byte
		if err := msgRows.Scan(&userID, &msg.ChatID, &msg.MessageID, &msg.Content, &msg.Timestamp, &analysis); err != nil {
			return nil, err
		}
		if analysis != nil {
			if err := json.Unmarshal(analysis, &msg.AnalysisResult); err != nil {
				return nil, fmt.Errorf("decode analysis result: %w", err)
			}
		}
		i, ok := index[userID]
		if !ok {
			continue
		}
		users[i].ChatHistory[msg.ChatID] = append(users[i].ChatHistory[msg.ChatID], msg)
	}
	return users, msgRows.Err()
}

func scanChatMessage(rows pgx.Rows) (domain.ChatMessage, error) {
	var msg domain.ChatMessage
	var analysis []byte
	if err := rows.Scan(&msg.ChatID, &msg.MessageID, &msg.Content, &msg.Timestamp, &analysis); err != nil {
		return domain.ChatMessage{}, err
	}
	if analysis != nil {
		if err := json.Unmarshal(analysis, &msg.AnalysisResult); err != nil {
			return domain.ChatMessage{}, fmt.Errorf("decode analysis result: %w", err)
		}
	}
	return msg, nil
}
