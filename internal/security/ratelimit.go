// internal/security/ratelimit.go
package security

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dilemma-gg/party/internal/config"
	"github.com/dilemma-gg/party/internal/models"
)

// rateLimiter tracks per-sender message timestamps in a sliding window.
// Check-and-record happens under one lock so near-simultaneous messages cannot
// both slip under the cap.
type rateLimiter struct {
	mu      sync.Mutex
	history map[uuid.UUID][]time.Time
	cfg     *config.Config

	now func() time.Time // overridable in tests
}

func newRateLimiter(cfg *config.Config) *rateLimiter {
	return &rateLimiter{
		history: make(map[uuid.UUID][]time.Time),
		cfg:     cfg,
		now:     time.Now,
	}
}

// allow records one message for the sender and reports whether it fits under
// both the window cap and the burst cap.
func (r *rateLimiter) allow(senderID uuid.UUID) models.ValidationResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	windowStart := now.Add(-r.cfg.RateLimitWindow)
	burstStart := now.Add(-r.cfg.BurstWindow)

	kept := r.history[senderID][:0]
	burst := 0
	for _, ts := range r.history[senderID] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
			if ts.After(burstStart) {
				burst++
			}
		}
	}
	r.history[senderID] = kept

	if len(kept) >= r.cfg.RateLimitMaxMessages {
		return models.Reject(models.ViolationMessageCountLimit, models.RiskMedium, "too many messages in window")
	}
	if burst >= r.cfg.BurstMaxMessages {
		return models.Reject(models.ViolationMessageRateLimit, models.RiskMedium, "message burst too fast")
	}

	r.history[senderID] = append(kept, now)
	return models.OK(models.RiskLow)
}

// trim drops senders whose entire history has aged out of the window.
func (r *rateLimiter) trim() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.cfg.RateLimitWindow)
	for id, entries := range r.history {
		kept := entries[:0]
		for _, ts := range entries {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(r.history, id)
		} else {
			r.history[id] = kept
		}
	}
}
