package model

import (
	"time"
)

type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

type User struct {
	ID        int64      `json:"id" db:"id"`
	ChatID    int64      `json:"chat_id" db:"chat_id"`
	Username  *string    `json:"username,omitempty" db:"username"`
	FirstName *string    `json:"first_name,omitempty" db:"first_name"`
	LastName  *string    `json:"last_name,omitempty" db:"last_name"`
	Tier      Tier       `json:"tier" db:"tier"`
	ProExpire *time.Time `json:"pro_expire,omitempty" db:"pro_expire"`
	Model     string     `json:"model" db:"model"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// EntitledAt reports whether the user holds pro access at the given instant.
// A nil ProExpire on a pro user means lifetime access.
func (u *User) EntitledAt(now time.Time) bool {
	if u.Tier != TierPro {
		return false
	}
	return u.ProExpire == nil || u.ProExpire.After(now)
}

// Lifetime reports whether the user holds permanent pro access. Such a user
// is never downgraded or shortened by a time-bounded grant.
func (u *User) Lifetime() bool {
	return u.Tier == TierPro && u.ProExpire == nil
}

func (u *User) DisplayName() string {
	switch {
	case u.FirstName != nil && u.LastName != nil:
		return *u.FirstName + " " + *u.LastName
	case u.FirstName != nil:
		return *u.FirstName
	case u.Username != nil:
		return *u.Username
	}
	return ""
}
