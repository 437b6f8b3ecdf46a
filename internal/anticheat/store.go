// internal/anticheat/store.go
package anticheat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/config"
	"github.com/dilemma-gg/party/internal/models"
)

// PlayerMetrics is the rolling anti-cheat record for one player.
type PlayerMetrics struct {
	SuspiciousActivityCount int
	FlaggedBehaviors        map[models.FlaggedBehavior]bool
	RiskScore               int
}

// session is a single tracked game-client session for a player.
type session struct {
	ID     string
	SeenAt time.Time
}

// Validator owns the anti-cheat rule set, the per-player metrics store and the
// session integrity tracker. All maps are guarded by one mutex; checks and
// mutations happen under it so concurrent registrations cannot both pass.
type Validator struct {
	mu       sync.Mutex
	metrics  map[uuid.UUID]*PlayerMetrics
	sessions map[uuid.UUID]*session

	cfg *config.Config
	log *logrus.Logger
	now func() time.Time
}

// NewValidator builds a validator with empty metrics and session stores.
func NewValidator(cfg *config.Config, log *logrus.Logger) *Validator {
	return &Validator{
		metrics:  make(map[uuid.UUID]*PlayerMetrics),
		sessions: make(map[uuid.UUID]*session),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// addViolation bumps the player's metrics and returns the new risk score.
func (v *Validator) addViolation(playerID uuid.UUID, risk models.SecurityRiskLevel, behavior models.FlaggedBehavior) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, ok := v.metrics[playerID]
	if !ok {
		m = &PlayerMetrics{FlaggedBehaviors: make(map[models.FlaggedBehavior]bool)}
		v.metrics[playerID] = m
	}
	m.SuspiciousActivityCount++
	m.FlaggedBehaviors[behavior] = true
	m.RiskScore += risk.Score()
	return m.RiskScore
}

// Metrics returns a copy of the player's metrics, if any exist.
func (v *Validator) Metrics(playerID uuid.UUID) (PlayerMetrics, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, ok := v.metrics[playerID]
	if !ok {
		return PlayerMetrics{}, false
	}
	out := PlayerMetrics{
		SuspiciousActivityCount: m.SuspiciousActivityCount,
		RiskScore:               m.RiskScore,
		FlaggedBehaviors:        make(map[models.FlaggedBehavior]bool, len(m.FlaggedBehaviors)),
	}
	for b := range m.FlaggedBehaviors {
		out.FlaggedBehaviors[b] = true
	}
	return out, true
}

// IsHighRisk reports whether the player's accumulated score crossed the
// configured threshold.
func (v *Validator) IsHighRisk(playerID uuid.UUID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, ok := v.metrics[playerID]
	return ok && m.RiskScore >= v.cfg.HighRiskThreshold
}

// TrackPlayerSession registers a game-client session for a player. A second
// concurrent session under the same identity is rejected; re-tracking the same
// session id refreshes its timestamp.
func (v *Validator) TrackPlayerSession(playerID uuid.UUID, sessionID string) models.ValidationResult {
	v.mu.Lock()
	existing, ok := v.sessions[playerID]
	if ok && existing.ID != sessionID {
		v.mu.Unlock()
		out := models.Reject(models.ViolationDuplicateSession, models.RiskHigh,
			"player already has an active session")
		v.recordViolation(out, models.BehaviorSessionAbuse, playerID)
		return out
	}
	v.sessions[playerID] = &session{ID: sessionID, SeenAt: v.now()}
	v.mu.Unlock()
	return models.OK(models.RiskLow)
}

// RemovePlayerSession clears the tracked session, after which tracking a new
// session succeeds again.
func (v *Validator) RemovePlayerSession(playerID uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.sessions, playerID)
}

// TouchSession refreshes the last-seen time of the player's session.
func (v *Validator) TouchSession(playerID uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.sessions[playerID]; ok {
		s.SeenAt = v.now()
	}
}

// SweepStaleSessions expires sessions idle beyond the configured max age and
// returns how many were removed. Runs on the server's maintenance ticker.
func (v *Validator) SweepStaleSessions() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	cutoff := v.now().Add(-v.cfg.SessionMaxAge)
	removed := 0
	for id, s := range v.sessions {
		if s.SeenAt.Before(cutoff) {
			delete(v.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		v.log.WithField("count", removed).Debug("expired stale sessions")
	}
	return removed
}
