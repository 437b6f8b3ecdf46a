// internal/anticheat/validator.go

// Package anticheat validates client-reported match results and tournament
// structure, and keeps rolling per-player risk metrics. The rules themselves
// are stateless per call; the metrics store accumulates violations so repeat
// offenders cross the high-risk threshold.
package anticheat

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/models"
)

// ValidateMatchResult checks a reported result against the active match it
// claims to resolve. Violations are recorded against both match participants.
func (v *Validator) ValidateMatchResult(active *models.TournamentMatch, res *models.MatchResult) models.ValidationResult {
	if res.MatchID != active.ID {
		out := models.Reject(models.ViolationMatchIDMismatch, models.RiskHigh,
			"reported matchId does not reference the active match")
		v.recordViolation(out, models.BehaviorResultTampering, active.Player1ID, active.Player2ID)
		return out
	}

	if !res.CompletedAt.After(active.StartTime.Add(v.cfg.MinMatchDuration)) {
		out := models.Reject(models.ViolationMatchTooShort, models.RiskHigh,
			fmt.Sprintf("match completed within %s of starting", v.cfg.MinMatchDuration))
		v.recordViolation(out, models.BehaviorImpossibleTiming, active.Player1ID, active.Player2ID)
		return out
	}

	st := res.Statistics
	if st.Player1Cooperations+st.Player1Betrayals != st.TotalRounds ||
		st.Player2Cooperations+st.Player2Betrayals != st.TotalRounds {
		out := models.Reject(models.ViolationInconsistentStatistics, models.RiskMedium,
			"cooperation and betrayal counts do not sum to total rounds")
		v.recordViolation(out, models.BehaviorStatisticsMismatch, active.Player1ID, active.Player2ID)
		return out
	}

	return models.OK(models.RiskLow)
}

// ValidateTournamentStructure sanity-checks a tournament before result
// processing: player count within the format's range, no duplicate player ids,
// non-negative round counter.
func (v *Validator) ValidateTournamentStructure(t *models.Tournament) models.ValidationResult {
	if !t.Format.ValidPlayerCount(len(t.Players)) {
		return models.Reject(models.ViolationInvalidPlayerCount, models.RiskMedium,
			fmt.Sprintf("%d players is invalid for %s", len(t.Players), t.Format))
	}
	seen := make(map[uuid.UUID]bool, len(t.Players))
	for _, p := range t.Players {
		if seen[p.ID] {
			return models.Reject(models.ViolationDuplicatePlayer, models.RiskHigh,
				fmt.Sprintf("player %s appears twice", p.ID))
		}
		seen[p.ID] = true
	}
	if t.CurrentRound < 0 {
		return models.Reject(models.ViolationInvalidRoundState, models.RiskMedium,
			"current round is negative")
	}
	return models.OK(models.RiskLow)
}

// recordViolation updates the rolling metrics for each offending player and
// logs when the risk level warrants it.
func (v *Validator) recordViolation(res models.ValidationResult, behavior models.FlaggedBehavior, playerIDs ...uuid.UUID) {
	for _, id := range playerIDs {
		score := v.addViolation(id, res.RiskLevel, behavior)
		if res.ShouldLog {
			v.log.WithFields(logrus.Fields{
				"player":   id,
				"code":     res.Code,
				"risk":     res.RiskLevel,
				"score":    score,
				"behavior": behavior,
			}).Warn("anti-cheat violation")
		}
	}
}
