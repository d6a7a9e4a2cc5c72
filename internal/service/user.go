package service

import (
	"context"
	"errors"

	"github.com/MML0/Assistant-Bot/internal/model"
	"github.com/MML0/Assistant-Bot/internal/repository"
)

// UserStore is the slice of the repository user resolution needs.
type UserStore interface {
	GetUserByChatID(ctx context.Context, chatID int64) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUserProfile(ctx context.Context, user *model.User) error
}

// Profile is the identity attached to an inbound chat event.
type Profile struct {
	ChatID    int64
	Username  *string
	FirstName *string
	LastName  *string
}

type UserService struct {
	store UserStore
}

func NewUserService(store UserStore) *UserService {
	return &UserService{store: store}
}

// GetOrCreate resolves the user behind a chat identity, creating the row on
// first contact. The returned bool reports whether this was a first contact.
// Display fields of known users are refreshed when they changed.
func (s *UserService) GetOrCreate(ctx context.Context, profile Profile) (*model.User, bool, error) {
	existing, err := s.store.GetUserByChatID(ctx, profile.ChatID)
	if err == nil {
		if profileChanged(existing, profile) {
			existing.Username = profile.Username
			existing.FirstName = profile.FirstName
			existing.LastName = profile.LastName
			if err := s.store.UpdateUserProfile(ctx, existing); err != nil {
				return nil, false, err
			}
		}
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, false, err
	}

	user := &model.User{
		ChatID:    profile.ChatID,
		Username:  profile.Username,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func profileChanged(user *model.User, profile Profile) bool {
	return !strPtrEq(user.Username, profile.Username) ||
		!strPtrEq(user.FirstName, profile.FirstName) ||
		!strPtrEq(user.LastName, profile.LastName)
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
