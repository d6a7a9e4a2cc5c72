package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MML0/Assistant-Bot/internal/model"
)

// InsertReferralGrant records a referral reward. The unique referred_id
// constraint makes the insert lose silently when the referred user was
// already rewarded for, so duplicate onboarding deliveries cannot double
// reward. Returns false when the row already existed.
func (r *Repository) InsertReferralGrant(ctx context.Context, grant *model.ReferralGrant) (bool, error) {
	query := `
		INSERT INTO referral_grants (referrer_id, referred_id, reward_days)
		VALUES ($1, $2, $3)
		ON CONFLICT (referred_id) DO NOTHING
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		grant.ReferrerID,
		grant.ReferredID,
		grant.RewardDays,
	).Scan(&grant.ID, &grant.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteReferralGrant removes the ledger row for a referred user. Compensates
// a grant that failed after the insert, reopening the reward for redelivery.
func (r *Repository) DeleteReferralGrant(ctx context.Context, referredID int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM referral_grants WHERE referred_id = $1", referredID)
	return err
}

func (r *Repository) CountGrantsByReferrer(ctx context.Context, referrerID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM referral_grants WHERE referrer_id = $1", referrerID)
	return count, err
}
