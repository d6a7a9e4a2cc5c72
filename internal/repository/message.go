package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MML0/Assistant-Bot/internal/model"
)

var ErrDailyQuotaExceeded = errors.New("daily message quota exceeded")

func (r *Repository) AppendMessage(ctx context.Context, userID int64, kind model.MessageKind, content string) (*model.Message, error) {
	var msg model.Message
	query := `
		INSERT INTO messages (user_id, kind, content)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, kind, content, created_at`

	err := r.db.QueryRowxContext(ctx, query, userID, kind, content).StructScan(&msg)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return &msg, nil
}

// AppendExchange persists one USER/AI pair in a single transaction so a
// partial exchange is never visible. When maxPerDay > 0 the USER insert is
// conditional on the same-day USER count in one statement, which keeps
// concurrent duplicates from overshooting the quota; the whole exchange is
// rolled back and ErrDailyQuotaExceeded returned if the condition fails.
func (r *Repository) AppendExchange(ctx context.Context, userID int64, userText, aiText string, dayStart, dayEnd time.Time, maxPerDay int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin exchange: %w", err)
	}
	defer tx.Rollback()

	if maxPerDay > 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO messages (user_id, kind, content)
			SELECT $1, 'USER', $2
			WHERE (SELECT COUNT(*) FROM messages
			       WHERE user_id = $1 AND kind = 'USER'
			         AND created_at >= $3 AND created_at < $4) < $5`,
			userID, userText, dayStart, dayEnd, maxPerDay)
		if err != nil {
			return fmt.Errorf("failed to append user message: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrDailyQuotaExceeded
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages (user_id, kind, content) VALUES ($1, 'USER', $2)",
			userID, userText); err != nil {
			return fmt.Errorf("failed to append user message: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO messages (user_id, kind, content) VALUES ($1, 'AI', $2)",
		userID, aiText); err != nil {
		return fmt.Errorf("failed to append ai message: %w", err)
	}

	return tx.Commit()
}

// CountUserMessagesBetween counts USER rows created in [from, to), one round
// trip. Used for the calendar-day quota bucket.
func (r *Repository) CountUserMessagesBetween(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages
		WHERE user_id = $1 AND kind = 'USER' AND created_at >= $2 AND created_at < $3`,
		userID, from, to)
	return count, err
}

// FetchRecentMessages returns the newest limit messages for the user in
// chronological (oldest-first) order.
func (r *Repository) FetchRecentMessages(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *Repository) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM messages")
	return count, err
}
