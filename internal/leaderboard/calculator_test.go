// internal/leaderboard/calculator_test.go
package leaderboard

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dilemma-gg/party/internal/models"
)

func TestTournamentPointsFormula(t *testing.T) {
	s := models.PlayerStatistics{
		MatchesPlayed: 2,
		MatchesWon:    2,
		TotalScore:    60, // avg 30
		Cooperations:  15,
		Betrayals:     5, // rate 0.75
	}
	// 2*100 + 30*10 + 0.75*5
	assert.InDelta(t, 503.75, TournamentPoints(s), 1e-9)
}

func TestAveragePointsZeroMatches(t *testing.T) {
	assert.Zero(t, AveragePoints(models.PlayerStatistics{TotalScore: 40}))
}

func TestRecordString(t *testing.T) {
	assert.Equal(t, "3-1", RecordString(models.PlayerStatistics{MatchesWon: 3, MatchesLost: 1}))
}

func tournamentOf(stats ...models.PlayerStatistics) *models.Tournament {
	tn := &models.Tournament{ID: uuid.New()}
	for _, s := range stats {
		tn.Players = append(tn.Players, &models.TournamentPlayer{ID: uuid.New(), Statistics: s})
	}
	tn.HeadToHead = make([][]int, len(stats))
	for i := range tn.HeadToHead {
		tn.HeadToHead[i] = make([]int, len(stats))
	}
	return tn
}

func TestRecomputeOrdersByPoints(t *testing.T) {
	tn := tournamentOf(
		models.PlayerStatistics{MatchesPlayed: 2, MatchesWon: 1, TotalScore: 40},
		models.PlayerStatistics{MatchesPlayed: 2, MatchesWon: 2, TotalScore: 50},
		models.PlayerStatistics{MatchesPlayed: 2, MatchesWon: 0, TotalScore: 10},
	)
	Recompute(tn)

	assert.Equal(t, 2, tn.Players[0].CurrentRank)
	assert.Equal(t, 1, tn.Players[1].CurrentRank)
	assert.Equal(t, 3, tn.Players[2].CurrentRank)
}

func TestRecomputeTieBreaksHeadToHeadThenJoinOrder(t *testing.T) {
	same := models.PlayerStatistics{MatchesPlayed: 2, MatchesWon: 1, TotalScore: 20, Cooperations: 5, Betrayals: 5}
	tn := tournamentOf(same, same, same)

	// Player 1 beat player 0 directly; players 0 and 2 never met.
	tn.HeadToHead[1][0] = 1
	Recompute(tn)

	assert.Equal(t, 1, tn.Players[1].CurrentRank, "head-to-head winner ranks above tied opponent")
	assert.Equal(t, 2, tn.Players[0].CurrentRank)
	assert.Equal(t, 3, tn.Players[2].CurrentRank, "remaining tie falls back to join order")
}

func TestRecomputeIsIdempotent(t *testing.T) {
	tn := tournamentOf(
		models.PlayerStatistics{MatchesPlayed: 1, MatchesWon: 1, TotalScore: 30},
		models.PlayerStatistics{MatchesPlayed: 1, MatchesWon: 0, TotalScore: 12},
	)
	Recompute(tn)
	first := []int{tn.Players[0].CurrentRank, tn.Players[1].CurrentRank}
	Recompute(tn)
	assert.Equal(t, first, []int{tn.Players[0].CurrentRank, tn.Players[1].CurrentRank})
}

func TestStandingsSortedByRank(t *testing.T) {
	tn := tournamentOf(
		models.PlayerStatistics{MatchesPlayed: 1, MatchesWon: 0, TotalScore: 5},
		models.PlayerStatistics{MatchesPlayed: 1, MatchesWon: 1, TotalScore: 30},
	)
	Recompute(tn)

	rows := Standings(tn)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, tn.Players[1].ID, rows[0].PlayerID)
	assert.Equal(t, "1-0", rows[0].Record)
}
