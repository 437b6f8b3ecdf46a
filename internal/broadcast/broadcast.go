// internal/broadcast/broadcast.go
package broadcast

import (
	"github.com/google/uuid"
)

// Broadcaster is the transport collaborator the core packages emit events
// through. Framing, reconnection and wire encoding live behind it.
type Broadcaster interface {
	// BroadcastToLobby fans a message out to every connection in a lobby.
	BroadcastToLobby(lobbyID uuid.UUID, msg map[string]interface{})
	// SendToPlayer delivers a message to a single player's connection, if any.
	SendToPlayer(playerID uuid.UUID, msg map[string]interface{})
}

// Nop is a Broadcaster that drops everything. Used in tests and as the default
// until the websocket hub is wired in.
type Nop struct{}

func (Nop) BroadcastToLobby(uuid.UUID, map[string]interface{}) {}
func (Nop) SendToPlayer(uuid.UUID, map[string]interface{})     {}
