package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MML0/Assistant-Bot/internal/model"
	"github.com/MML0/Assistant-Bot/internal/repository"
)

// EntitlementStore is the slice of the repository the entitlement manager needs.
type EntitlementStore interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByChatID(ctx context.Context, chatID int64) (*model.User, error)
	GrantProUntil(ctx context.Context, userID int64, now time.Time, duration time.Duration) error
	GrantProLifetime(ctx context.Context, userID int64) error
	UpdateUserModel(ctx context.Context, userID int64, m string) error
}

// GrantTarget identifies a user by internal id or external chat id. At least
// one must be set.
type GrantTarget struct {
	UserID int64
	ChatID int64
}

type EntitlementService struct {
	store         EntitlementStore
	baselineModel string
}

func NewEntitlementService(store EntitlementStore, baselineModel string) *EntitlementService {
	return &EntitlementService{store: store, baselineModel: baselineModel}
}

// IsEntitled is a pure function of the stored tier/expiry and the clock.
// Expiry in the past downgrades lazily; no write is needed to observe it.
func (s *EntitlementService) IsEntitled(user *model.User, now time.Time) bool {
	return user.EntitledAt(now)
}

// Grant extends or upgrades pro access. Logical failures (no identifier,
// unknown user) report false without an error; store failures propagate.
//
// A nil expireAt upgrades to lifetime pro, the only path to the permanent
// state. Otherwise the extension is additive from the greater of now and the
// current remaining entitlement, so repeated grants stack and can never
// shorten what the user already has. A lifetime user is left untouched.
func (s *EntitlementService) Grant(ctx context.Context, target GrantTarget, expireAt *time.Time, now time.Time) (bool, error) {
	var (
		user *model.User
		err  error
	)
	switch {
	case target.UserID != 0:
		user, err = s.store.GetUser(ctx, target.UserID)
	case target.ChatID != 0:
		user, err = s.store.GetUserByChatID(ctx, target.ChatID)
	default:
		return false, nil
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}

	if user.Lifetime() {
		return true, nil
	}

	if expireAt == nil {
		if err := s.store.GrantProLifetime(ctx, user.ID); err != nil {
			return false, err
		}
		return true, nil
	}

	duration := expireAt.Sub(now)
	if duration < 0 {
		duration = 0
	}
	if err := s.store.GrantProUntil(ctx, user.ID, now, duration); err != nil {
		return false, err
	}
	return true, nil
}

// ObserveExpiry applies the lazy-downgrade side effect: when a formerly pro
// user is seen with a past expiry, the selected model falls back to the
// baseline. The tier itself needs no write, IsEntitled already reads it as free.
func (s *EntitlementService) ObserveExpiry(ctx context.Context, user *model.User, now time.Time) {
	if user.Tier != model.TierPro || user.ProExpire == nil || user.ProExpire.After(now) {
		return
	}
	if user.Model == s.baselineModel {
		return
	}
	if err := s.store.UpdateUserModel(ctx, user.ID, s.baselineModel); err != nil {
		log.Printf("failed to reset model for expired user %d: %v", user.ID, err)
		return
	}
	user.Model = s.baselineModel
}

// SelectModel persists a model choice. Selection is a pro feature: for a
// non-entitled user nothing is written and false is returned.
func (s *EntitlementService) SelectModel(ctx context.Context, user *model.User, m string, now time.Time) (bool, error) {
	if !user.EntitledAt(now) {
		return false, nil
	}
	if err := s.store.UpdateUserModel(ctx, user.ID, m); err != nil {
		return false, err
	}
	user.Model = m
	return true, nil
}
