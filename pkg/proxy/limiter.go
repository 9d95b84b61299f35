package proxy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
)

// DefaultLimiterIdleTTL is how long an untouched default limiter is kept.
const DefaultLimiterIdleTTL = 15 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// pinned entries carry limits set through SetLimiter and are never pruned
	pinned bool
}

// RateLimiterStore keeps one upload limiter per key. Keys are gateway IDs, or
// the remote host when an upload has no usable identify header. Default
// limiters idle for longer than IdleTTL are dropped by Prune.
type RateLimiterStore struct {
	IdleTTL time.Duration

	mu           sync.Mutex
	entries      map[string]*limiterEntry
	defaultRate  rate.Limit
	defaultBurst int
	now          func() time.Time
}

func NewRateLimiterStore(defaultRate rate.Limit, defaultBurst int) *RateLimiterStore {
	return &RateLimiterStore{
		IdleTTL:      DefaultLimiterIdleTTL,
		entries:      make(map[string]*limiterEntry),
		defaultRate:  defaultRate,
		defaultBurst: defaultBurst,
		now:          time.Now,
	}
}

func (s *RateLimiterStore) GetLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.defaultRate, s.defaultBurst)}
		s.entries[key] = e
	}
	e.lastSeen = s.now()
	return e.limiter
}

// SetLimiter installs explicit limits for key.
func (s *RateLimiterStore) SetLimiter(key string, r rate.Limit, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &limiterEntry{
		limiter:  rate.NewLimiter(r, burst),
		lastSeen: s.now(),
		pinned:   true,
	}
}

// Allow takes one token from the key's limiter.
func (s *RateLimiterStore) Allow(key string) bool {
	return s.GetLimiter(key).Allow()
}

// Len reports how many limiters are held.
func (s *RateLimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Prune drops default limiters not used since now-IdleTTL and returns how many
// went. A dropped key starts over with a full bucket on its next upload.
func (s *RateLimiterStore) Prune(now time.Time) int {
	if s.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.IdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for key, e := range s.entries {
		if !e.pinned && e.lastSeen.Before(cutoff) {
			delete(s.entries, key)
			pruned++
		}
	}
	return pruned
}

// RunPruner calls Prune every interval until ctx is done.
func (s *RateLimiterStore) RunPruner(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Prune(s.now()); n > 0 {
				common.GetLoggerWith(common.LoggerNameProxyCore,
					zap.String(common.LoggerFieldCategory, common.LoggerCategorySweep)).
					Debug("Idle limiters pruned", zap.Int("count", n), zap.Int("left", s.Len()))
			}
		}
	}
}
