package gateway

import (
	"sync"
	"time"

	"github.com/soyeahso/ragrelay/internal/config"
	"golang.org/x/time/rate"
)

const (
	// maxTrackedSenders caps the limiter map against senders rotating ids.
	maxTrackedSenders = 4096

	// senderIdleTTL is how long an untouched limiter is kept around.
	senderIdleTTL = 10 * time.Minute
)

type senderEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// senderLimiter applies a token bucket per webhook sender.
// Safe for concurrent use. A nil limiter allows everything.
type senderLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	max     int
	entries map[string]*senderEntry
	now     func() time.Time
}

// newSenderLimiter returns nil when rate limiting is disabled.
func newSenderLimiter(cfg config.RateLimitConfig) *senderLimiter {
	if cfg.PerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &senderLimiter{
		limit:   rate.Limit(cfg.PerSecond),
		burst:   burst,
		max:     maxTrackedSenders,
		entries: make(map[string]*senderEntry),
		now:     time.Now,
	}
}

// Allow reports whether key may send another webhook now.
func (l *senderLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.max {
			l.evict(now)
		}
		e = &senderEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// evict drops idle entries, then the least recently seen one if still full.
func (l *senderLimiter) evict(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) >= senderIdleTTL {
			delete(l.entries, k)
		}
	}
	for len(l.entries) >= l.max {
		var oldestKey string
		var oldest time.Time
		for k, e := range l.entries {
			if oldestKey == "" || e.lastSeen.Before(oldest) {
				oldestKey, oldest = k, e.lastSeen
			}
		}
		delete(l.entries, oldestKey)
	}
}

func (l *senderLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
