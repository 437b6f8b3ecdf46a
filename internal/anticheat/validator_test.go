// internal/anticheat/validator_test.go
package anticheat

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dilemma-gg/party/internal/config"
	"github.com/dilemma-gg/party/internal/models"
)

func newTestValidator() *Validator {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewValidator(config.Load(), logger)
}

func activeMatch() *models.TournamentMatch {
	return &models.TournamentMatch{
		ID:        uuid.New(),
		Round:     1,
		Player1ID: uuid.New(),
		Player2ID: uuid.New(),
		Status:    models.MatchInProgress,
		StartTime: time.Now(),
	}
}

func validResultFor(m *models.TournamentMatch) *models.MatchResult {
	return &models.MatchResult{
		MatchID:      m.ID,
		Player1ID:    m.Player1ID,
		Player2ID:    m.Player2ID,
		WinnerID:     m.Player1ID,
		LoserID:      m.Player2ID,
		Player1Score: 30,
		Player2Score: 12,
		Statistics: models.MatchStatistics{
			TotalRounds:         10,
			Player1Cooperations: 6,
			Player1Betrayals:    4,
			Player2Cooperations: 8,
			Player2Betrayals:    2,
		},
		CompletedAt: m.StartTime.Add(time.Minute),
	}
}

func TestValidateMatchResultAccepts(t *testing.T) {
	v := newTestValidator()
	m := activeMatch()
	res := v.ValidateMatchResult(m, validResultFor(m))
	assert.True(t, res.Valid)
}

func TestValidateMatchResultIDMismatch(t *testing.T) {
	v := newTestValidator()
	m := activeMatch()
	r := validResultFor(m)
	r.MatchID = uuid.New()

	res := v.ValidateMatchResult(m, r)
	require.False(t, res.Valid)
	assert.Equal(t, models.ViolationMatchIDMismatch, res.Code)
	assert.Equal(t, models.RiskHigh, res.RiskLevel)

	// Violations are attributed to both match participants.
	for _, pid := range []uuid.UUID{m.Player1ID, m.Player2ID} {
		metrics, ok := v.Metrics(pid)
		require.True(t, ok)
		assert.Equal(t, 1, metrics.SuspiciousActivityCount)
		assert.True(t, metrics.FlaggedBehaviors[models.BehaviorResultTampering])
	}
}

func TestValidateMatchResultTooShort(t *testing.T) {
	v := newTestValidator()
	m := activeMatch()
	r := validResultFor(m)
	r.CompletedAt = m.StartTime.Add(3 * time.Second)

	res := v.ValidateMatchResult(m, r)
	require.False(t, res.Valid)
	assert.Equal(t, models.ViolationMatchTooShort, res.Code)
	assert.Equal(t, models.RiskHigh, res.RiskLevel)
}

func TestValidateMatchResultInconsistentStatistics(t *testing.T) {
	v := newTestValidator()
	m := activeMatch()
	r := validResultFor(m)
	r.Statistics.Player1Cooperations = 9 // 9+4 != 10

	res := v.ValidateMatchResult(m, r)
	require.False(t, res.Valid)
	assert.Equal(t, models.ViolationInconsistentStatistics, res.Code)
	assert.Equal(t, models.RiskMedium, res.RiskLevel)
}

func TestRepeatedTimingViolationsReachHighRisk(t *testing.T) {
	v := newTestValidator()
	m := activeMatch()
	r := validResultFor(m)
	r.CompletedAt = m.StartTime.Add(time.Second)

	for i := 0; i < 4; i++ {
		v.ValidateMatchResult(m, r)
		assert.False(t, v.IsHighRisk(m.Player1ID))
	}
	v.ValidateMatchResult(m, r)
	assert.True(t, v.IsHighRisk(m.Player1ID),
		"five HIGH violations score 15 and cross the default threshold")
	assert.True(t, v.IsHighRisk(m.Player2ID))
}

func TestValidateTournamentStructure(t *testing.T) {
	v := newTestValidator()
	players := []*models.TournamentPlayer{
		{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()},
	}
	tn := &models.Tournament{Format: models.FormatSingleElimination, Players: players, CurrentRound: 1}
	assert.True(t, v.ValidateTournamentStructure(tn).Valid)

	bad := &models.Tournament{Format: models.FormatSingleElimination, Players: players[:3], CurrentRound: 1}
	res := v.ValidateTournamentStructure(bad)
	require.False(t, res.Valid)
	assert.Equal(t, models.ViolationInvalidPlayerCount, res.Code)

	dup := &models.Tournament{
		Format:       models.FormatSingleElimination,
		Players:      []*models.TournamentPlayer{players[0], players[1], players[2], players[0]},
		CurrentRound: 1,
	}
	res = v.ValidateTournamentStructure(dup)
	require.False(t, res.Valid)
	assert.Equal(t, models.ViolationDuplicatePlayer, res.Code)
}

func TestTrackPlayerSessionRejectsDuplicates(t *testing.T) {
	v := newTestValidator()
	player := uuid.New()

	assert.True(t, v.TrackPlayerSession(player, "session-a").Valid)
	assert.True(t, v.TrackPlayerSession(player, "session-a").Valid, "same session refreshes")

	res := v.TrackPlayerSession(player, "session-b")
	require.False(t, res.Valid)
	assert.Equal(t, models.ViolationDuplicateSession, res.Code)
	assert.Equal(t, models.RiskHigh, res.RiskLevel)

	v.RemovePlayerSession(player)
	assert.True(t, v.TrackPlayerSession(player, "session-b").Valid,
		"a new session is allowed once the old one ends")
}

func TestSweepStaleSessions(t *testing.T) {
	v := newTestValidator()
	now := time.Now()
	v.now = func() time.Time { return now }

	require.True(t, v.TrackPlayerSession(uuid.New(), "old").Valid)
	v.now = func() time.Time { return now.Add(31 * time.Minute) }
	fresh := uuid.New()
	require.True(t, v.TrackPlayerSession(fresh, "fresh").Valid)

	removed := v.SweepStaleSessions()
	assert.Equal(t, 1, removed)

	// The fresh session survives.
	res := v.TrackPlayerSession(fresh, "other")
	assert.False(t, res.Valid)
}
