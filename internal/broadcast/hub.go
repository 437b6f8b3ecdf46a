// internal/broadcast/hub.go
package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Conn is a single player's live connection to the hub. OutChan is drained by
// the transport layer's write pump; Cancel tears down the read loop.
type Conn struct {
	PlayerID uuid.UUID
	LobbyID  uuid.UUID
	Cancel   func()
	OutChan  chan map[string]interface{}

	log *logrus.Logger
}

// Write pushes a message onto the connection's OutChan without blocking. A full
// or closed channel drops the message and logs a warning.
func (c *Conn) Write(msg map[string]interface{}) {
	select {
	case c.OutChan <- msg:
	default:
		if c.log != nil {
			msgType, _ := msg["type"].(string)
			c.log.WithFields(logrus.Fields{
				"player": c.PlayerID,
				"type":   msgType,
			}).Warn("outbound channel full, dropping message")
		}
	}
}

// WriteError is a convenience to push an error payload to the client.
func (c *Conn) WriteError(code, msg string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": msg,
	})
}

// Hub implements Broadcaster over in-memory connections grouped by lobby.
type Hub struct {
	mu      sync.Mutex
	conns   map[uuid.UUID]*Conn               // playerID -> connection
	lobbies map[uuid.UUID]map[uuid.UUID]*Conn // lobbyID -> playerID -> connection
	log     *logrus.Logger
}

// NewHub returns an empty hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		conns:   make(map[uuid.UUID]*Conn),
		lobbies: make(map[uuid.UUID]map[uuid.UUID]*Conn),
		log:     log,
	}
}

// NewConn builds a connection with a buffered outbound channel.
func (h *Hub) NewConn(lobbyID, playerID uuid.UUID, cancel func()) *Conn {
	return &Conn{
		PlayerID: playerID,
		LobbyID:  lobbyID,
		Cancel:   cancel,
		OutChan:  make(chan map[string]interface{}, 16),
		log:      h.log,
	}
}

// Register adds a connection to the hub. A previous connection for the same
// player is detached first, including from its own lobby's member map, which
// may differ from c.LobbyID when the player reconnects elsewhere. The replaced
// channel is closed exactly once, here; Unregister on the old conn becomes a
// no-op.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.conns[c.PlayerID]; ok && old != c {
		h.removeMemberUnsafe(old)
		close(old.OutChan)
		if old.Cancel != nil {
			old.Cancel()
		}
	}
	h.conns[c.PlayerID] = c
	members, ok := h.lobbies[c.LobbyID]
	if !ok {
		members = make(map[uuid.UUID]*Conn)
		h.lobbies[c.LobbyID] = members
	}
	members[c.PlayerID] = c
}

// Unregister drops a connection and closes its outbound channel. The lobby
// member map is cleaned even when the player map already points at a newer
// connection; the channel is closed only when this conn still owns the player
// slot, so a conn already replaced by Register is not closed twice.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeMemberUnsafe(c)
	if cur, ok := h.conns[c.PlayerID]; !ok || cur != c {
		return
	}
	delete(h.conns, c.PlayerID)
	close(c.OutChan)
	if c.Cancel != nil {
		c.Cancel()
	}
}

// Disconnect forcibly drops a player's live connection, cancelling its read
// loop. Used when a player is removed from a lobby server-side.
func (h *Hub) Disconnect(playerID uuid.UUID) {
	h.mu.Lock()
	c, ok := h.conns[playerID]
	h.mu.Unlock()
	if ok {
		h.Unregister(c)
	}
}

// removeMemberUnsafe deletes c from its lobby's member map if it is still the
// registered entry. Assumes h.mu is held.
func (h *Hub) removeMemberUnsafe(c *Conn) {
	members, ok := h.lobbies[c.LobbyID]
	if !ok || members[c.PlayerID] != c {
		return
	}
	delete(members, c.PlayerID)
	if len(members) == 0 {
		delete(h.lobbies, c.LobbyID)
	}
}

// BroadcastToLobby sends msg to every connection currently in the lobby.
func (h *Hub) BroadcastToLobby(lobbyID uuid.UUID, msg map[string]interface{}) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.lobbies[lobbyID]))
	for _, c := range h.lobbies[lobbyID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Write(msg)
	}
}

// SendToPlayer delivers msg to one player's connection if it exists.
func (h *Hub) SendToPlayer(playerID uuid.UUID, msg map[string]interface{}) {
	h.mu.Lock()
	c, ok := h.conns[playerID]
	h.mu.Unlock()
	if ok {
		c.Write(msg)
	}
}
