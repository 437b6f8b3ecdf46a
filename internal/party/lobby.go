// internal/party/lobby.go
package party

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dilemma-gg/party/internal/models"
)

// Lobby is a live party lobby: the persisted PartyLobby state plus the
// in-memory pieces (chat ring, lock). All state-mutating operations on one
// lobby serialize on Mu; reads that tolerate slight staleness may snapshot
// under the lock and release it before fan-out.
type Lobby struct {
	models.PartyLobby

	// Chat is the bounded per-lobby message history, newest last.
	Chat []models.ChatMessage `json:"-"`

	// Mu serializes every mutation of this lobby, including tournament
	// operations driven by the engine.
	Mu sync.Mutex `json:"-"`
}

// Snapshot copies the persisted lobby state. Assumes Mu is held.
func (l *Lobby) snapshotUnsafe() models.PartyLobby {
	out := l.PartyLobby
	out.Participants = make([]*models.TournamentPlayer, len(l.Participants))
	for i, p := range l.Participants {
		cp := *p
		out.Participants[i] = &cp
	}
	return out
}

// Snapshot returns a deep copy of the persisted lobby state.
func (l *Lobby) Snapshot() models.PartyLobby {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.snapshotUnsafe()
}

// recomputeStatusUnsafe derives the lobby status from the participant count
// and settings. It never overrides tournament or closed states; those are
// owned by the engine / close path. Assumes Mu is held.
func (l *Lobby) recomputeStatusUnsafe() {
	switch l.Status {
	case models.LobbyTournamentInProgress, models.LobbyTournamentCompleted, models.LobbyClosed:
		return
	}
	if l.CurrentPlayerCount() >= l.Settings.Format.MinimumPlayers() {
		l.Status = models.LobbyReadyToStart
	} else {
		l.Status = models.LobbyWaitingForPlayers
	}
}

// removeParticipantUnsafe drops a participant while preserving join order.
// Assumes Mu is held.
func (l *Lobby) removeParticipantUnsafe(id uuid.UUID) {
	for i, p := range l.Participants {
		if p.ID == id {
			l.Participants = append(l.Participants[:i], l.Participants[i+1:]...)
			return
		}
	}
}

// setHostUnsafe clears isHost on every participant and sets it on the new
// host, keeping the exactly-one-host invariant. Assumes Mu is held.
func (l *Lobby) setHostUnsafe(id uuid.UUID) {
	for _, p := range l.Participants {
		p.IsHost = p.ID == id
	}
	l.HostPlayerID = id
}

// appendChatUnsafe appends to the bounded chat ring, dropping the oldest
// entries past the limit. Assumes Mu is held.
func (l *Lobby) appendChatUnsafe(msg models.ChatMessage, limit int) {
	l.Chat = append(l.Chat, msg)
	if limit > 0 && len(l.Chat) > limit {
		l.Chat = l.Chat[len(l.Chat)-limit:]
	}
}

// statusPayloadUnsafe builds the membership snapshot broadcast alongside
// join/leave/kick events. Assumes Mu is held.
func (l *Lobby) statusPayloadUnsafe() map[string]interface{} {
	players := make([]map[string]interface{}, 0, len(l.Participants))
	for _, p := range l.Participants {
		players = append(players, map[string]interface{}{
			"id":      p.ID.String(),
			"name":    p.Name,
			"is_host": p.IsHost,
			"status":  p.Status,
		})
	}
	return map[string]interface{}{
		"lobby_id":     l.ID.String(),
		"code":         l.Code,
		"host_id":      l.HostPlayerID.String(),
		"status":       l.Status,
		"player_count": l.CurrentPlayerCount(),
		"max_players":  l.Settings.MaxPlayers,
		"players":      players,
	}
}
