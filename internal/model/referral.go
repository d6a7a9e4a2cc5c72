package model

import (
	"time"

	"github.com/google/uuid"
)

// ReferralGrant records that a referrer was rewarded for bringing in a
// specific user. The unique referred_id column makes the reward at-most-once
// per referred user, regardless of duplicate onboarding deliveries.
type ReferralGrant struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ReferrerID int64     `json:"referrer_id" db:"referrer_id"`
	ReferredID int64     `json:"referred_id" db:"referred_id"`
	RewardDays int       `json:"reward_days" db:"reward_days"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ReferralOutcome is the result of applying a referral token from an
// onboarding event.
type ReferralOutcome int

const (
	ReferralNotApplicable ReferralOutcome = iota
	ReferralSelfReferral
	ReferralReferrerUnknown
	ReferralRewarded
)

func (o ReferralOutcome) String() string {
	switch o {
	case ReferralSelfReferral:
		return "self_referral"
	case ReferralReferrerUnknown:
		return "referrer_unknown"
	case ReferralRewarded:
		return "rewarded"
	}
	return "not_applicable"
}
