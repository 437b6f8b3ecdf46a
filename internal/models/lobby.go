// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyStatus is the lifecycle state of a party lobby.
type LobbyStatus string

const (
	LobbyWaitingForPlayers    LobbyStatus = "WAITING_FOR_PLAYERS"
	LobbyReadyToStart         LobbyStatus = "READY_TO_START"
	LobbyTournamentInProgress LobbyStatus = "TOURNAMENT_IN_PROGRESS"
	LobbyTournamentCompleted  LobbyStatus = "TOURNAMENT_COMPLETED"
	LobbyClosed               LobbyStatus = "LOBBY_CLOSED"
)

// TournamentFormat selects how the bracket is built and how players are
// eliminated.
type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "SINGLE_ELIMINATION"
	FormatDoubleElimination TournamentFormat = "DOUBLE_ELIMINATION"
	FormatRoundRobin        TournamentFormat = "ROUND_ROBIN"
)

// PartySettings are the host-editable lobby settings.
type PartySettings struct {
	MaxPlayers      int              `json:"maxPlayers"` // 4..16
	RoundCount      int              `json:"roundCount"` // rounds per base-game match
	Format          TournamentFormat `json:"format"`
	AllowSpectators bool             `json:"allowSpectators"`
	ChatEnabled     bool             `json:"chatEnabled"`
}

// DefaultSettings returns the settings a fresh lobby starts with.
func DefaultSettings() PartySettings {
	return PartySettings{
		MaxPlayers:      8,
		RoundCount:      10,
		Format:          FormatSingleElimination,
		AllowSpectators: true,
		ChatEnabled:     true,
	}
}

// PartyLobby is the persisted shape of a lobby: membership, host, settings and
// derived status. The participant slice is ordered by join time; seat 0 is the
// original host.
type PartyLobby struct {
	ID           uuid.UUID           `json:"id"`
	Code         string              `json:"code"`
	HostPlayerID uuid.UUID           `json:"hostPlayerId"`
	Participants []*TournamentPlayer `json:"participants"`
	Settings     PartySettings       `json:"settings"`
	Status       LobbyStatus         `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// CurrentPlayerCount is always derived from the participant slice, never stored.
func (l *PartyLobby) CurrentPlayerCount() int {
	return len(l.Participants)
}

// Participant returns the participant with the given id, or nil.
func (l *PartyLobby) Participant(id uuid.UUID) *TournamentPlayer {
	for _, p := range l.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// MinimumPlayers is the smallest viable player count for a format.
// Elimination brackets need a full power-of-two field, so the minimum is 4;
// round robin likewise starts at 4.
func (f TournamentFormat) MinimumPlayers() int {
	return 4
}

// ValidPlayerCount reports whether n players can start a tournament in this
// format. Elimination formats take exactly 4, 8 or 16 entrants (no byes in
// round one); round robin accepts any count in [4,16].
func (f TournamentFormat) ValidPlayerCount(n int) bool {
	switch f {
	case FormatSingleElimination, FormatDoubleElimination:
		return n == 4 || n == 8 || n == 16
	case FormatRoundRobin:
		return n >= 4 && n <= 16
	default:
		return false
	}
}
