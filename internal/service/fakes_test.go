package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/refresh-session-auth/internal/domain"
	"github.com/sandeepkv93/refresh-session-auth/internal/repository"
)

type inMemorySessionRepo struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*domain.Session
	// hook runs after ListActiveForUser returns, outside the lock.
	afterList func()
}

func newInMemorySessionRepo() *inMemorySessionRepo {
	return &inMemorySessionRepo{nextID: 1, byID: map[uint]*domain.Session{}}
}

func (r *inMemorySessionRepo) Insert(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(s)
	return nil
}

func (r *inMemorySessionRepo) insertLocked(s *domain.Session) {
	s.ID = r.nextID
	r.nextID++
	s.CreatedAt = time.Now().UTC()
	s.RevokedAt = nil
	cp := *s
	r.byID[cp.ID] = &cp
}

func (r *inMemorySessionRepo) ListActiveForUser(_ context.Context, userID uint) ([]domain.Session, error) {
	r.mu.Lock()
	out := make([]domain.Session, 0)
	for _, s := range r.byID {
		if s.UserID == userID && s.RevokedAt == nil {
			out = append(out, *s)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if r.afterList != nil {
		r.afterList()
	}
	return out, nil
}

func (r *inMemorySessionRepo) RevokeIfActive(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokeLocked(id), nil
}

func (r *inMemorySessionRepo) revokeLocked(id uint) bool {
	s, ok := r.byID[id]
	if !ok || s.RevokedAt != nil {
		return false
	}
	now := time.Now().UTC()
	s.RevokedAt = &now
	return true
}

func (r *inMemorySessionRepo) Rotate(_ context.Context, oldID uint, next *domain.Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.revokeLocked(oldID) {
		return false, nil
	}
	r.insertLocked(next)
	return true, nil
}

func (r *inMemorySessionRepo) RevokeAllForUser(_ context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if s.UserID == userID && r.revokeLocked(id) {
			n++
		}
	}
	return n, nil
}

func (r *inMemorySessionRepo) RevokeByIDForUser(_ context.Context, userID, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; !ok || s.UserID != userID {
		return false, nil
	}
	return r.revokeLocked(id), nil
}

func (r *inMemorySessionRepo) RevokeOthersForUser(_ context.Context, userID, keepID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if s.UserID == userID && id != keepID && r.revokeLocked(id) {
			n++
		}
	}
	return n, nil
}

func (r *inMemorySessionRepo) FindByID(_ context.Context, id uint) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *inMemorySessionRepo) countActive(userID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.byID {
		if s.UserID == userID && s.RevokedAt == nil {
			n++
		}
	}
	return n
}

type inMemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*domain.User
	// emailLookups records FindByEmail arguments as received.
	emailLookups []string
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{nextID: 1, users: map[uint]*domain.User{}}
}

func (r *inMemoryUserRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emailLookups = append(r.emailLookups, email)
	email = repository.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = repository.NormalizeEmail(user.Email)
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = r.nextID
	r.nextID++
	cp := *user
	r.users[cp.ID] = &cp
	return nil
}

// noLocker leaves rotation safety entirely to the store's compare-and-set.
type noLocker struct{}

func (noLocker) Acquire(context.Context, string, time.Duration) (func(context.Context), error) {
	return func(context.Context) {}, nil
}
