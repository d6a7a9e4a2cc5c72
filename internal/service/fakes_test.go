package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MML0/Assistant-Bot/internal/llm"
	"github.com/MML0/Assistant-Bot/internal/model"
	"github.com/MML0/Assistant-Bot/internal/repository"
)

// fakeStore is an in-memory stand-in for the repository, mirroring the SQL
// semantics of the real one (additive grant, conditional quota insert,
// unique referred-user ledger).
type fakeStore struct {
	mu        sync.Mutex
	users     map[int64]*model.User
	nextUser  int64
	messages  []model.Message
	nextMsg   int64
	grants    map[int64]*model.ReferralGrant // keyed by referred id
	userWrite int                            // counts user-row mutations
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[int64]*model.User),
		grants: make(map[int64]*model.ReferralGrant),
	}
}

func (f *fakeStore) addUser(u *model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUser++
	u.ID = f.nextUser
	if u.Tier == "" {
		u.Tier = model.TierFree
	}
	f.users[u.ID] = u
	cp := *u
	return &cp
}

func (f *fakeStore) addMessage(userID int64, kind model.MessageKind, content string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsg++
	f.messages = append(f.messages, model.Message{
		ID: f.nextMsg, UserID: userID, Kind: kind, Content: content, CreatedAt: at,
	})
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByChatID(_ context.Context, chatID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ChatID == chatID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ChatID == user.ChatID {
			user.ID = u.ID
			user.Tier = u.Tier
			user.ProExpire = u.ProExpire
			user.Model = u.Model
			return nil
		}
	}
	f.nextUser++
	user.ID = f.nextUser
	user.Tier = model.TierFree
	cp := *user
	f.users[user.ID] = &cp
	f.userWrite++
	return nil
}

func (f *fakeStore) UpdateUserProfile(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[user.ID]; ok {
		u.Username = user.Username
		u.FirstName = user.FirstName
		u.LastName = user.LastName
		f.userWrite++
	}
	return nil
}

func (f *fakeStore) UpdateUserModel(_ context.Context, userID int64, m string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.Model = m
		f.userWrite++
	}
	return nil
}

func (f *fakeStore) GrantProUntil(_ context.Context, userID int64, now time.Time, duration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil
	}
	if u.Tier == model.TierPro && u.ProExpire == nil {
		return nil
	}
	base := now
	if u.ProExpire != nil && u.ProExpire.After(now) {
		base = *u.ProExpire
	}
	expire := base.Add(duration)
	u.Tier = model.TierPro
	u.ProExpire = &expire
	f.userWrite++
	return nil
}

func (f *fakeStore) GrantProLifetime(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.Tier = model.TierPro
		u.ProExpire = nil
		f.userWrite++
	}
	return nil
}

func (f *fakeStore) CountUserMessagesBetween(_ context.Context, userID int64, from, to time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.messages {
		if m.UserID == userID && m.Kind == model.KindUser &&
			!m.CreatedAt.Before(from) && m.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) AppendMessage(_ context.Context, userID int64, kind model.MessageKind, content string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsg++
	msg := model.Message{
		ID: f.nextMsg, UserID: userID, Kind: kind, Content: content, CreatedAt: time.Now(),
	}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

func (f *fakeStore) FetchRecentMessages(_ context.Context, userID int64, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var own []model.Message
	for _, m := range f.messages {
		if m.UserID == userID {
			own = append(own, m)
		}
	}
	if len(own) > limit {
		own = own[len(own)-limit:]
	}
	return own, nil
}

func (f *fakeStore) AppendExchange(_ context.Context, userID int64, userText, aiText string, dayStart, dayEnd time.Time, maxPerDay int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if maxPerDay > 0 {
		count := 0
		for _, m := range f.messages {
			if m.UserID == userID && m.Kind == model.KindUser &&
				!m.CreatedAt.Before(dayStart) && m.CreatedAt.Before(dayEnd) {
				count++
			}
		}
		if count >= maxPerDay {
			return repository.ErrDailyQuotaExceeded
		}
	}
	now := time.Now()
	f.nextMsg++
	f.messages = append(f.messages, model.Message{ID: f.nextMsg, UserID: userID, Kind: model.KindUser, Content: userText, CreatedAt: now})
	f.nextMsg++
	f.messages = append(f.messages, model.Message{ID: f.nextMsg, UserID: userID, Kind: model.KindAI, Content: aiText, CreatedAt: now})
	return nil
}

func (f *fakeStore) InsertReferralGrant(_ context.Context, grant *model.ReferralGrant) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.grants[grant.ReferredID]; exists {
		return false, nil
	}
	grant.ID = uuid.New()
	grant.CreatedAt = time.Now()
	cp := *grant
	f.grants[grant.ReferredID] = &cp
	return true, nil
}

func (f *fakeStore) DeleteReferralGrant(_ context.Context, referredID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.grants, referredID)
	return nil
}

func (f *fakeStore) CountGrantsByReferrer(_ context.Context, referrerID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, g := range f.grants {
		if g.ReferrerID == referrerID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) summaryRows(userID int64) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.messages {
		if m.UserID == userID && m.Kind == model.KindSummary {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeStore) messageCount(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.messages {
		if m.UserID == userID {
			count++
		}
	}
	return count
}

// fakeCompleter is a scripted completion service.
type fakeCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]llm.Turn
	models  []string
}

func (f *fakeCompleter) Complete(_ context.Context, turns []llm.Turn, model string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make([]llm.Turn, len(turns))
	copy(copied, turns)
	f.calls = append(f.calls, copied)
	f.models = append(f.models, model)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "ok", nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
