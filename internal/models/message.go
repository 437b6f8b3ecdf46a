// internal/models/message.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Real-time event types pushed to lobby members over the transport.
const (
	EventPlayerJoined       = "PLAYER_JOINED"
	EventPlayerLeft         = "PLAYER_LEFT"
	EventPlayerKicked       = "PLAYER_KICKED"
	EventHostChanged        = "HOST_CHANGED"
	EventSettingsUpdated    = "SETTINGS_UPDATED"
	EventTournamentStarted  = "TOURNAMENT_STARTED"
	EventTournamentComplete = "TOURNAMENT_COMPLETED"
	EventRoundStarted       = "ROUND_STARTED"
	EventRoundCompleted     = "ROUND_COMPLETED"
	EventMatchReady         = "MATCH_READY"
	EventMatchStarted       = "MATCH_STARTED"
	EventMatchCompleted     = "MATCH_COMPLETED"
	EventChatMessage        = "CHAT_MESSAGE"
	EventSystemMessage      = "SYSTEM_MESSAGE"
	EventBracketUpdate      = "BRACKET_UPDATE"
	EventPlayerStatusUpdate = "PLAYER_STATUS_UPDATE"
	EventStatisticsUpdate   = "STATISTICS_UPDATE"
)

// HostActionType enumerates the privileged commands a lobby host may issue.
type HostActionType string

const (
	ActionKickPlayer       HostActionType = "KICK_PLAYER"
	ActionUpdateSettings   HostActionType = "UPDATE_SETTINGS"
	ActionStartTournament  HostActionType = "START_TOURNAMENT"
	ActionCancelTournament HostActionType = "CANCEL_TOURNAMENT"
	ActionTransferHost     HostActionType = "TRANSFER_HOST"
	ActionCloseLobby       HostActionType = "CLOSE_LOBBY"
)

// requiresTarget lists the host actions that are meaningless without a target
// player.
var requiresTarget = map[HostActionType]bool{
	ActionKickPlayer:   true,
	ActionTransferHost: true,
}

// RequiresTarget reports whether the action must name a target player.
func (a HostActionType) RequiresTarget() bool {
	return requiresTarget[a]
}

// HostAction is an ephemeral privileged command. It is validated by the
// security gate before any state mutation.
type HostAction struct {
	Type        HostActionType `json:"type"`
	LobbyID     uuid.UUID      `json:"lobbyId"`
	RequesterID uuid.UUID      `json:"requesterId"`
	TargetID    uuid.UUID      `json:"targetId,omitempty"`
	Settings    *PartySettings `json:"settings,omitempty"`
}

// ChatMessage is appended to the bounded per-lobby history after passing
// content validation.
type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	LobbyID    uuid.UUID `json:"lobbyId"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sentAt"`
}

// PartyMessage is the inbound envelope from a client connection. Payload
// interpretation depends on Type; the security gate checks the envelope shape
// before dispatch.
type PartyMessage struct {
	Type     string                 `json:"type"`
	LobbyID  uuid.UUID              `json:"lobbyId,omitempty"`
	SenderID uuid.UUID              `json:"senderId"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}
