package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"langmod/server/backend/domain"
)

type RestrictionRepository struct {
	pool *pgxpool.Pool
}

func NewRestrictionRepository(pool *pgxpool.Pool) *RestrictionRepository {
	return &RestrictionRepository{pool: pool}
}

func (r *RestrictionRepository) AppendRestriction(ctx context.Context, rec domain.RestrictionRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO restriction_records(user_id, chat_id, message_id, message_text, restriction_type, rule_index, ts, duration_seconds)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.UserID, rec.ChatID, rec.MessageID, rec.MessageText, rec.RestrictionType, rec.RuleIndex, rec.Timestamp, rec.DurationSeconds)
	return err
}

// RestrictionHistory returns a user's restriction records ordered from
// oldest to newest. An empty chatID returns records across all chats.
func (r *RestrictionRepository) RestrictionHistory(ctx context.Context, userID int64, chatID string) ([]domain.RestrictionRecord, error) {
	query := `
		SELECT chat_id, message_id, message_text, restriction_type, rule_index, ts, duration_seconds
		FROM restriction_records
		WHERE user_id=$1
		ORDER BY ts, id`
	args := []any{userID}
	if chatID != "" {
		query = `
		SELECT chat_id, message_id, message_text, restriction_type, rule_index, ts, duration_seconds
		FROM restriction_records
		WHERE user_id=$1 AND chat_id=$2
		ORDER BY ts, id`
		args = append(args, chatID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.RestrictionRecord
	for rows.Next() {
		rec := domain.RestrictionRecord{UserID: userID}
		if err := rows.Scan(&rec.ChatID, &rec.MessageID, &rec.MessageText, &rec.RestrictionType, &rec.RuleIndex, &rec.Timestamp, &rec.DurationSeconds); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
