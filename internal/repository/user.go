package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MML0/Assistant-Bot/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

func (r *Repository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetUserByChatID(ctx context.Context, chatID int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, "SELECT * FROM users WHERE chat_id = $1", chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a user keyed by chat_id. A concurrent duplicate insert
// folds into a profile refresh, so creation is safe under duplicate webhook
// delivery. The stored row (including column defaults) is written back into user.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (chat_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name
		RETURNING id, tier, pro_expire, model, created_at`

	return r.db.QueryRowContext(ctx, query,
		user.ChatID,
		user.Username,
		user.FirstName,
		user.LastName,
	).Scan(&user.ID, &user.Tier, &user.ProExpire, &user.Model, &user.CreatedAt)
}

func (r *Repository) UpdateUserProfile(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET
			username = $2,
			first_name = $3,
			last_name = $4
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
	)
	return err
}

func (r *Repository) UpdateUserModel(ctx context.Context, userID int64, m string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET model = $2 WHERE id = $1", userID, m)
	return err
}

// GrantProUntil extends pro access by duration, additive from the greater of
// now and the current expiry. One conditional statement, so concurrent grants
// both land and a lifetime row is never shortened.
func (r *Repository) GrantProUntil(ctx context.Context, userID int64, now time.Time, duration time.Duration) error {
	query := `
		UPDATE users SET
			tier = 'pro',
			pro_expire = GREATEST(COALESCE(pro_expire, $2::timestamptz), $2::timestamptz) + make_interval(secs => $3)
		WHERE id = $1 AND NOT (tier = 'pro' AND pro_expire IS NULL)`

	_, err := r.db.ExecContext(ctx, query, userID, now, duration.Seconds())
	if err != nil {
		return fmt.Errorf("failed to extend pro access: %w", err)
	}
	return nil
}

// GrantProLifetime upgrades a user to permanent pro access.
func (r *Repository) GrantProLifetime(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET tier = 'pro', pro_expire = NULL WHERE id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to grant lifetime pro: %w", err)
	}
	return nil
}

// DowngradeExpired moves users with a past pro_expire back to the free tier
// and resets their model to the baseline. Returns the number of users swept.
func (r *Repository) DowngradeExpired(ctx context.Context, now time.Time, baselineModel string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET tier = 'free', pro_expire = NULL, model = $2
		WHERE tier = 'pro' AND pro_expire IS NOT NULL AND pro_expire <= $1`,
		now, baselineModel)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users")
	return count, err
}
