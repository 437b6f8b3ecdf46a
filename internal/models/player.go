// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerStatus tracks what a tournament player is currently doing.
type PlayerStatus string

const (
	PlayerWaiting      PlayerStatus = "WAITING"
	PlayerReady        PlayerStatus = "READY"
	PlayerInMatch      PlayerStatus = "IN_MATCH"
	PlayerEliminated   PlayerStatus = "ELIMINATED"
	PlayerSpectating   PlayerStatus = "SPECTATING"
	PlayerDisconnected PlayerStatus = "DISCONNECTED"
)

// PlayerStatistics accumulates per-player results across the tournament.
// Head-to-head records live on the Tournament as an index-based table rather
// than a nested map keyed by player id.
type PlayerStatistics struct {
	MatchesPlayed    int     `json:"matchesPlayed"`
	MatchesWon       int     `json:"matchesWon"`
	MatchesLost      int     `json:"matchesLost"`
	TotalScore       int     `json:"totalScore"`
	Cooperations     int     `json:"cooperations"`
	Betrayals        int     `json:"betrayals"`
	TournamentPoints float64 `json:"tournamentPoints"`
}

// CooperationRate is the fraction of decisions in which the player cooperated.
func (s PlayerStatistics) CooperationRate() float64 {
	total := s.Cooperations + s.Betrayals
	if total == 0 {
		return 0
	}
	return float64(s.Cooperations) / float64(total)
}

// TournamentPlayer is a lobby participant. Created on join and mutated by match
// results and host actions; never removed mid-tournament, only marked
// eliminated.
type TournamentPlayer struct {
	ID           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	IsHost       bool             `json:"isHost"`
	IsEliminated bool             `json:"isEliminated"`
	CurrentRank  int              `json:"currentRank"`
	Status       PlayerStatus     `json:"status"`
	Statistics   PlayerStatistics `json:"statistics"`
	JoinedAt     time.Time        `json:"joinedAt"`
}
