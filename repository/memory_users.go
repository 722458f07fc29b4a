package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/holymark/auth"
)

// MemoryUsers is an in-process auth.UserStore, used for local runs and tests
type MemoryUsers struct {
	mu    sync.RWMutex
	byID  map[string]*auth.User
	order []string
}

var _ auth.UserStore = (*MemoryUsers)(nil)

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byID: map[string]*auth.User{}}
}

func (r *MemoryUsers) FindByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		u := r.byID[id]
		if u.Email == identifier || u.Username == identifier {
			return clone(u), nil
		}
	}
	return nil, auth.ErrRecordNotFound
}

func (r *MemoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if u := r.byID[id]; u.Email == email {
			return clone(u), nil
		}
	}
	return nil, auth.ErrRecordNotFound
}

func (r *MemoryUsers) FindByEmailOrUsername(_ context.Context, email, username string) ([]*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*auth.User{}
	for _, id := range r.order {
		if u := r.byID[id]; u.Email == email || u.Username == username {
			out = append(out, clone(u))
		}
	}
	return out, nil
}

func (r *MemoryUsers) Create(_ context.Context, user *auth.User) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, auth.ErrEmailTaken
		}
	}
	for _, u := range r.byID {
		if u.Username == user.Username {
			return nil, auth.ErrUsernameTaken
		}
	}

	record := clone(user)
	record.ID = uuid.NewString()
	r.byID[record.ID] = record
	r.order = append(r.order, record.ID)

	return clone(record), nil
}

// Count returns the number of stored users
func (r *MemoryUsers) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func clone(u *auth.User) *auth.User {
	c := *u
	return &c
}
