package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/MML0/Assistant-Bot/internal/model"
	"github.com/MML0/Assistant-Bot/internal/repository"
)

// ReferralStore is the slice of the repository the reward engine needs.
type ReferralStore interface {
	GetUserByChatID(ctx context.Context, chatID int64) (*model.User, error)
	InsertReferralGrant(ctx context.Context, grant *model.ReferralGrant) (bool, error)
	DeleteReferralGrant(ctx context.Context, referredID int64) error
	CountGrantsByReferrer(ctx context.Context, referrerID int64) (int, error)
}

// Granter extends a user's pro entitlement.
type Granter interface {
	Grant(ctx context.Context, target GrantTarget, expireAt *time.Time, now time.Time) (bool, error)
}

// ReferralService rewards a referrer with time-bounded pro access when a
// genuinely new user arrives through their invite link.
type ReferralService struct {
	store        ReferralStore
	entitlements Granter
	rewardDays   int
}

func NewReferralService(store ReferralStore, entitlements Granter, rewardDays int) *ReferralService {
	return &ReferralService{store: store, entitlements: entitlements, rewardDays: rewardDays}
}

var referralTokenRe = regexp.MustCompile(`ref([0-9]+)`)

// ParseReferralToken extracts the referrer chat id from a /start payload like
// "ref12345". Returns 0 when no token is present.
func ParseReferralToken(payload string) int64 {
	m := referralTokenRe.FindStringSubmatch(payload)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Apply processes the referral attached to an onboarding event.
//
// The reward is restricted to first-time contacts and is at-most-once per
// referred user: the grant ledger insert is conditional on a unique
// referred-user key, so a duplicate delivery of the same onboarding event
// loses the insert and performs no second grant.
func (s *ReferralService) Apply(ctx context.Context, isFirstContact bool, referrerChatID int64, newUser *model.User, now time.Time) (model.ReferralOutcome, error) {
	if referrerChatID == 0 || !isFirstContact {
		return model.ReferralNotApplicable, nil
	}
	if referrerChatID == newUser.ChatID {
		return model.ReferralSelfReferral, nil
	}

	referrer, err := s.store.GetUserByChatID(ctx, referrerChatID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.ReferralReferrerUnknown, nil
		}
		return model.ReferralNotApplicable, err
	}

	grant := &model.ReferralGrant{
		ReferrerID: referrer.ID,
		ReferredID: newUser.ID,
		RewardDays: s.rewardDays,
	}
	inserted, err := s.store.InsertReferralGrant(ctx, grant)
	if err != nil {
		return model.ReferralNotApplicable, err
	}
	if !inserted {
		// Lost the ledger race: this user already produced a reward.
		return model.ReferralNotApplicable, nil
	}

	expireAt := now.Add(time.Duration(s.rewardDays) * 24 * time.Hour)
	ok, err := s.entitlements.Grant(ctx, GrantTarget{UserID: referrer.ID}, &expireAt, now)
	if err != nil || !ok {
		// Release the ledger row so a redelivery can still reward; otherwise
		// the referred user stays marked rewarded with nothing granted.
		if derr := s.store.DeleteReferralGrant(ctx, newUser.ID); derr != nil {
			log.Printf("failed to release referral ledger row for user %d: %v", newUser.ID, derr)
		}
		if err != nil {
			return model.ReferralNotApplicable, err
		}
		return model.ReferralReferrerUnknown, nil
	}
	return model.ReferralRewarded, nil
}

func (s *ReferralService) RewardDays() int {
	return s.rewardDays
}

// ReferralLink builds the personal invite link embedding the caller's chat id.
func (s *ReferralService) ReferralLink(botUsername string, chatID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=ref%d", botUsername, chatID)
}

// ReferredCount returns how many users this referrer has been rewarded for.
func (s *ReferralService) ReferredCount(ctx context.Context, referrerID int64) (int, error) {
	return s.store.CountGrantsByReferrer(ctx, referrerID)
}
