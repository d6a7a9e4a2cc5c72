package service

import (
	"context"
	"time"

	"github.com/MML0/Assistant-Bot/internal/model"
)

// QuotaStore counts a user's USER-kind messages within a time window.
type QuotaStore interface {
	CountUserMessagesBetween(ctx context.Context, userID int64, from, to time.Time) (int, error)
}

// RateLimiter enforces the free-tier daily message quota. Entitled users are
// never limited. The bucket is the calendar day in the configured reference
// timezone and resets at local midnight; there is no rolling window and no
// carry-over.
type RateLimiter struct {
	store QuotaStore
	limit int
	loc   *time.Location
}

func NewRateLimiter(store QuotaStore, limit int, loc *time.Location) *RateLimiter {
	return &RateLimiter{store: store, limit: limit, loc: loc}
}

// Allow reports whether the user may send another message today. Denial is a
// normal outcome, not an error, and mutates nothing.
func (l *RateLimiter) Allow(ctx context.Context, user *model.User, now time.Time) (bool, error) {
	if user.EntitledAt(now) {
		return true, nil
	}

	dayStart, dayEnd := DayBounds(now, l.loc)
	count, err := l.store.CountUserMessagesBetween(ctx, user.ID, dayStart, dayEnd)
	if err != nil {
		return false, err
	}
	return count < l.limit, nil
}

func (l *RateLimiter) Limit() int {
	return l.limit
}

// DayBounds returns the [start, end) of the calendar day containing now in
// the given location.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
