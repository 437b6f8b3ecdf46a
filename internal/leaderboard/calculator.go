// internal/leaderboard/calculator.go

// Package leaderboard derives live rankings from player statistics. The same
// ranking function serves live standings and final results, so recomputing
// over an identical statistics snapshot is idempotent.
package leaderboard

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dilemma-gg/party/internal/models"
)

// Scoring weights for the tournament-points formula. Wins dominate, average
// score per match separates equal records, cooperation rate nudges ties.
const (
	winWeight         = 100.0
	avgScoreWeight    = 10.0
	cooperationWeight = 5.0
)

// TournamentPoints computes the ranking score from a statistics snapshot:
//
//	wins*100 + avgScorePerMatch*10 + cooperationRate*5
func TournamentPoints(s models.PlayerStatistics) float64 {
	return float64(s.MatchesWon)*winWeight +
		AveragePoints(s)*avgScoreWeight +
		s.CooperationRate()*cooperationWeight
}

// AveragePoints is the player's mean score across played matches.
func AveragePoints(s models.PlayerStatistics) float64 {
	if s.MatchesPlayed == 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(s.MatchesPlayed)
}

// RecordString renders the win/loss record, e.g. "3-1".
func RecordString(s models.PlayerStatistics) string {
	return fmt.Sprintf("%d-%d", s.MatchesWon, s.MatchesLost)
}

// Recompute refreshes every player's tournament points and assigns ranks.
// Ordering: points descending, then head-to-head between the tied pair, then
// join order (arena index). Called after each accepted result and again for
// the final standings.
func Recompute(t *models.Tournament) {
	for _, p := range t.Players {
		p.Statistics.TournamentPoints = TournamentPoints(p.Statistics)
	}

	order := make([]int, len(t.Players))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		pi := t.Players[i].Statistics.TournamentPoints
		pj := t.Players[j].Statistics.TournamentPoints
		if pi != pj {
			return pi > pj
		}
		if t.HeadToHead != nil {
			if t.HeadToHead[i][j] != t.HeadToHead[j][i] {
				return t.HeadToHead[i][j] > t.HeadToHead[j][i]
			}
		}
		return i < j // join order
	})

	for rank, idx := range order {
		t.Players[idx].CurrentRank = rank + 1
	}
}

// Standing is one row of the computed leaderboard.
type Standing struct {
	PlayerID         uuid.UUID `json:"playerId"`
	Name             string    `json:"name"`
	Rank             int       `json:"rank"`
	Record           string    `json:"record"`
	TournamentPoints float64   `json:"tournamentPoints"`
	CooperationRate  float64   `json:"cooperationRate"`
	AveragePoints    float64   `json:"averagePoints"`
	Eliminated       bool      `json:"eliminated"`
}

// Standings renders the current ranking, best rank first. Assumes Recompute
// ran after the last mutation.
func Standings(t *models.Tournament) []Standing {
	out := make([]Standing, 0, len(t.Players))
	for _, p := range t.Players {
		out = append(out, Standing{
			PlayerID:         p.ID,
			Name:             p.Name,
			Rank:             p.CurrentRank,
			Record:           RecordString(p.Statistics),
			TournamentPoints: p.Statistics.TournamentPoints,
			CooperationRate:  p.Statistics.CooperationRate(),
			AveragePoints:    AveragePoints(p.Statistics),
			Eliminated:       p.IsEliminated,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}
