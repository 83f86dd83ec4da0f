package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandeepkv93/refresh-session-auth/internal/observability"
)

// RotationLocker serialises rotation of a single session across concurrent
// requests. Acquire fails fast with ErrRotationInProgress when the key is held.
type RotationLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), err error)
}

type InMemoryRotationLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	now   func() time.Time
	clean time.Time
}

func NewInMemoryRotationLocker() *InMemoryRotationLocker {
	return &InMemoryRotationLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *InMemoryRotationLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.clean) {
		for k, exp := range l.held {
			if now.After(exp) {
				delete(l.held, k)
			}
		}
		l.clean = now.Add(time.Minute)
	}
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		observability.RecordRotationLock(ctx, "memory", "contended")
		return nil, ErrRotationInProgress
	}
	expiresAt := now.Add(ttl)
	l.held[key] = expiresAt
	observability.RecordRotationLock(ctx, "memory", "acquired")

	return func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		// a lease that expired and was re-acquired belongs to someone else
		if l.held[key].Equal(expiresAt) {
			delete(l.held, key)
		}
	}, nil
}

func sessionLockKey(sessionID uint) string {
	return fmt.Sprintf("session:%d", sessionID)
}
