package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/claimflow/internal/clock"
)

type entry struct {
	token   string
	expires time.Time
}

// localLocker keeps locks in process, for single-node deployments without Redis.
type localLocker struct {
	mu    sync.Mutex
	clock clock.Clock
	held  map[string]entry
}

func NewLocalLocker(clk clock.Clock) Locker {
	return &localLocker{clock: clk, held: make(map[string]entry)}
}

func (l *localLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := checkArgs(key, ttl); err != nil {
		return "", false, err
	}
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = entry{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *localLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.held[key]; ok && e.token == token {
		delete(l.held, key)
	}
	return nil
}
