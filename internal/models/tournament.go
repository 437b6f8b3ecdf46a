// internal/models/tournament.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// TournamentStatus is the lifecycle state of a tournament.
type TournamentStatus string

const (
	TournamentNotStarted TournamentStatus = "NOT_STARTED"
	TournamentInProgress TournamentStatus = "IN_PROGRESS"
	TournamentCompleted  TournamentStatus = "COMPLETED"
	TournamentCancelled  TournamentStatus = "CANCELLED"
)

// MatchStatus is the lifecycle state of a single match.
type MatchStatus string

const (
	MatchScheduled  MatchStatus = "SCHEDULED"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchCompleted  MatchStatus = "COMPLETED"
	MatchCancelled  MatchStatus = "CANCELLED"
)

// TournamentMatch is a scheduled or in-flight pairing between two players.
// While SCHEDULED or IN_PROGRESS it is the "active match" the anti-cheat
// validator checks reported results against.
type TournamentMatch struct {
	ID           uuid.UUID   `json:"id"`
	TournamentID uuid.UUID   `json:"tournamentId"`
	Round        int         `json:"round"`
	Player1ID    uuid.UUID   `json:"player1Id"`
	Player2ID    uuid.UUID   `json:"player2Id"`
	Status       MatchStatus `json:"status"`
	Result       *MatchResult `json:"result,omitempty"`
	StartTime    time.Time   `json:"startTime,omitempty"`
	EndTime      time.Time   `json:"endTime,omitempty"`
}

// HasPlayer reports whether the given player is one of the two participants.
func (m *TournamentMatch) HasPlayer(id uuid.UUID) bool {
	return m.Player1ID == id || m.Player2ID == id
}

// MatchStatistics are the per-match decision counts reported by the client.
// For each side cooperations + betrayals must equal TotalRounds.
type MatchStatistics struct {
	TotalRounds         int           `json:"totalRounds"`
	Player1Cooperations int           `json:"player1Cooperations"`
	Player1Betrayals    int           `json:"player1Betrayals"`
	Player2Cooperations int           `json:"player2Cooperations"`
	Player2Betrayals    int           `json:"player2Betrayals"`
	Duration            time.Duration `json:"duration"`
}

// MatchResult is the client-reported outcome of a match. It is untrusted input
// until the anti-cheat validator accepts it.
type MatchResult struct {
	MatchID      uuid.UUID       `json:"matchId"`
	Player1ID    uuid.UUID       `json:"player1Id"`
	Player2ID    uuid.UUID       `json:"player2Id"`
	WinnerID     uuid.UUID       `json:"winnerId"`
	LoserID      uuid.UUID       `json:"loserId"`
	Player1Score int             `json:"player1Score"`
	Player2Score int             `json:"player2Score"`
	Statistics   MatchStatistics `json:"statistics"`
	CompletedAt  time.Time       `json:"completedAt"`
}

// TournamentRound groups the matches of one bracket round.
type TournamentRound struct {
	Number  int                `json:"number"`
	Matches []*TournamentMatch `json:"matches"`
}

// Completed reports whether every match in the round is resolved.
func (r *TournamentRound) Completed() bool {
	for _, m := range r.Matches {
		if m.Status != MatchCompleted && m.Status != MatchCancelled {
			return false
		}
	}
	return true
}

// TournamentBracket holds the round structure plus the in-flight match index.
// For elimination formats rounds are appended as they are generated; round
// robin brackets carry every round up front.
type TournamentBracket struct {
	Rounds        []*TournamentRound            `json:"rounds"`
	Eliminated    map[uuid.UUID]bool            `json:"eliminatedPlayers"`
	ActiveMatches map[uuid.UUID]*TournamentMatch `json:"-"`
	NextPairings  [][2]int                      `json:"nextMatchPairings,omitempty"`
}

// Round returns the round with the given number, or nil.
func (b *TournamentBracket) Round(number int) *TournamentRound {
	for _, r := range b.Rounds {
		if r.Number == number {
			return r
		}
	}
	return nil
}

// Tournament is owned exclusively by the tournament engine once created from a
// lobby. Players is the seed-ordered arena; HeadToHead[i][j] counts wins of
// player i over player j by arena index.
type Tournament struct {
	ID          uuid.UUID           `json:"id"`
	LobbyID     uuid.UUID           `json:"lobbyId"`
	Format      TournamentFormat    `json:"format"`
	Players     []*TournamentPlayer `json:"players"`
	Bracket     *TournamentBracket  `json:"bracket"`
	CurrentRound int                `json:"currentRound"`
	TotalRounds int                 `json:"totalRounds"`
	Status      TournamentStatus    `json:"status"`
	StartTime   time.Time           `json:"startTime,omitempty"`
	EndTime     time.Time           `json:"endTime,omitempty"`
	HeadToHead  [][]int             `json:"-"`

	// Losses tracks per-player loss counts by arena index. Double elimination
	// eliminates at two losses; single elimination at one.
	Losses []int `json:"-"`
}

// PlayerIndex resolves a player id to its arena index, or -1 if unknown.
func (t *Tournament) PlayerIndex(id uuid.UUID) int {
	for i, p := range t.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Survivors returns the arena indices of players still in contention, in seed
// order.
func (t *Tournament) Survivors() []int {
	var out []int
	for i, p := range t.Players {
		if !p.IsEliminated {
			out = append(out, i)
		}
	}
	return out
}
