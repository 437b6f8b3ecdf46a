// internal/party/registry.go
package party

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/broadcast"
	"github.com/dilemma-gg/party/internal/config"
	"github.com/dilemma-gg/party/internal/models"
)

// Repository is the persistence collaborator for lobbies and chat. A nil
// repository keeps everything in memory, which is what the tests use.
type Repository interface {
	SaveLobby(ctx context.Context, l *models.PartyLobby) error
	DeleteLobby(ctx context.Context, id uuid.UUID) error
	SaveChatMessage(ctx context.Context, msg models.ChatMessage) error
}

// HostLeaveResult reports how the registry resolved a departing host.
type HostLeaveResult struct {
	// Action is "transferred" when another participant inherited the lobby,
	// "closed" when the host was the last member.
	Action  string
	NewHost *models.TournamentPlayer
	Lobby   *Lobby
}

// Registry owns every active lobby: lifecycle, membership, host privileges and
// settings. The registry map has its own lock; each lobby serializes its own
// mutations on Lobby.Mu so operations on different lobbies never block each
// other.
type Registry struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby
	codes   map[string]uuid.UUID // active join code -> lobby id

	cfg  *config.Config
	log  *logrus.Logger
	bc   broadcast.Broadcaster
	repo Repository
}

// NewRegistry builds an empty registry. repo may be nil.
func NewRegistry(cfg *config.Config, log *logrus.Logger, bc broadcast.Broadcaster, repo Repository) *Registry {
	if bc == nil {
		bc = broadcast.Nop{}
	}
	return &Registry{
		lobbies: make(map[uuid.UUID]*Lobby),
		codes:   make(map[string]uuid.UUID),
		cfg:     cfg,
		log:     log,
		bc:      bc,
		repo:    repo,
	}
}

// CreateLobby makes a new lobby with the host as sole participant and a fresh
// globally-unique join code.
func (r *Registry) CreateLobby(ctx context.Context, hostID uuid.UUID, hostName string, settings models.PartySettings) (*Lobby, error) {
	settings = clampSettings(settings)

	r.mu.Lock()
	code, err := r.uniqueCodeUnsafe()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	now := time.Now()
	lob := &Lobby{
		PartyLobby: models.PartyLobby{
			ID:           uuid.New(),
			Code:         code,
			HostPlayerID: hostID,
			Participants: []*models.TournamentPlayer{{
				ID:       hostID,
				Name:     hostName,
				IsHost:   true,
				Status:   models.PlayerWaiting,
				JoinedAt: now,
			}},
			Settings:  settings,
			Status:    models.LobbyWaitingForPlayers,
			CreatedAt: now,
		},
	}
	r.lobbies[lob.ID] = lob
	r.codes[code] = lob.ID
	r.mu.Unlock()

	r.persist(ctx, lob)
	r.log.WithFields(logrus.Fields{
		"lobby": lob.ID,
		"code":  code,
		"host":  hostID,
	}).Info("lobby created")
	return lob, nil
}

// uniqueCodeUnsafe generates a join code not held by any active lobby.
// Assumes r.mu is held.
func (r *Registry) uniqueCodeUnsafe() (string, error) {
	for {
		code, err := newJoinCode()
		if err != nil {
			return "", err
		}
		if _, taken := r.codes[code]; !taken {
			return code, nil
		}
	}
}

// GetLobby resolves a lobby by id.
func (r *Registry) GetLobby(id uuid.UUID) (*Lobby, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[id]
	return l, ok
}

// GetLobbyByCode resolves a lobby by join code.
func (r *Registry) GetLobbyByCode(code string) (*Lobby, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.codes[strings.ToUpper(code)]
	if !ok {
		return nil, false
	}
	l, ok := r.lobbies[id]
	return l, ok
}

// ListLobbies returns snapshots of all active lobbies, for the HTTP surface.
func (r *Registry) ListLobbies() []models.PartyLobby {
	r.mu.Lock()
	lobbies := make([]*Lobby, 0, len(r.lobbies))
	for _, l := range r.lobbies {
		lobbies = append(lobbies, l)
	}
	r.mu.Unlock()

	out := make([]models.PartyLobby, 0, len(lobbies))
	for _, l := range lobbies {
		out = append(out, l.Snapshot())
	}
	return out
}

// JoinLobby adds a player to the lobby matching code. Join order is preserved;
// the lobby status is recomputed from the new count.
func (r *Registry) JoinLobby(ctx context.Context, playerID uuid.UUID, playerName, code string) (*Lobby, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return nil, models.ErrInvalidLobbyCode
	}
	lob, ok := r.GetLobbyByCode(code)
	if !ok {
		return nil, models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if lob.Status != models.LobbyWaitingForPlayers && lob.Status != models.LobbyReadyToStart {
		lob.Mu.Unlock()
		return nil, models.ErrTournamentAlreadyStarted
	}
	if lob.Participant(playerID) != nil {
		lob.Mu.Unlock()
		return nil, models.ErrPlayerAlreadyInLobby
	}
	if lob.CurrentPlayerCount() >= lob.Settings.MaxPlayers {
		lob.Mu.Unlock()
		return nil, models.ErrLobbyFull
	}

	player := &models.TournamentPlayer{
		ID:       playerID,
		Name:     playerName,
		Status:   models.PlayerWaiting,
		JoinedAt: time.Now(),
	}
	lob.Participants = append(lob.Participants, player)
	lob.recomputeStatusUnsafe()
	payload := lob.statusPayloadUnsafe()
	lob.Mu.Unlock()

	r.persist(ctx, lob)
	r.bc.BroadcastToLobby(lob.ID, map[string]interface{}{
		"type":        models.EventPlayerJoined,
		"player_id":   playerID.String(),
		"player_name": playerName,
		"lobby":       payload,
	})
	r.log.WithFields(logrus.Fields{"lobby": lob.ID, "player": playerID}).Info("player joined lobby")
	return lob, nil
}

// KickPlayer removes target from the lobby on behalf of the host.
func (r *Registry) KickPlayer(ctx context.Context, lobbyID, requesterID, targetID uuid.UUID) error {
	lob, ok := r.GetLobby(lobbyID)
	if !ok {
		return models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if lob.HostPlayerID != requesterID {
		lob.Mu.Unlock()
		return models.ErrHostPrivilegesRequired
	}
	if requesterID == targetID {
		lob.Mu.Unlock()
		return models.ErrCannotKickSelf
	}
	if lob.Participant(targetID) == nil {
		lob.Mu.Unlock()
		return models.ErrPlayerNotInLobby
	}
	lob.removeParticipantUnsafe(targetID)
	lob.recomputeStatusUnsafe()
	payload := lob.statusPayloadUnsafe()
	lob.Mu.Unlock()

	r.persist(ctx, lob)
	r.bc.SendToPlayer(targetID, map[string]interface{}{
		"type":     models.EventPlayerKicked,
		"lobby_id": lobbyID.String(),
	})
	r.bc.BroadcastToLobby(lobbyID, map[string]interface{}{
		"type":      models.EventPlayerKicked,
		"player_id": targetID.String(),
		"lobby":     payload,
	})
	r.log.WithFields(logrus.Fields{"lobby": lobbyID, "target": targetID}).Info("player kicked")
	return nil
}

// TransferHost moves host privileges to another participant. Exactly one
// participant holds isHost afterwards.
func (r *Registry) TransferHost(ctx context.Context, lobbyID, currentHostID, newHostID uuid.UUID) error {
	lob, ok := r.GetLobby(lobbyID)
	if !ok {
		return models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if lob.HostPlayerID != currentHostID {
		lob.Mu.Unlock()
		return models.ErrHostPrivilegesRequired
	}
	if currentHostID == newHostID {
		lob.Mu.Unlock()
		return models.ErrCannotTransferToSelf
	}
	target := lob.Participant(newHostID)
	if target == nil {
		lob.Mu.Unlock()
		return models.ErrPlayerNotInLobby
	}
	lob.setHostUnsafe(newHostID)
	lob.Mu.Unlock()

	r.persist(ctx, lob)
	r.bc.BroadcastToLobby(lobbyID, map[string]interface{}{
		"type":        models.EventHostChanged,
		"new_host_id": newHostID.String(),
	})
	r.log.WithFields(logrus.Fields{"lobby": lobbyID, "new_host": newHostID}).Info("host transferred")
	return nil
}

// hostLeaveOutcome carries what hostLeaveUnsafe decided so the broadcasts and
// repository writes can run after the lock is released.
type hostLeaveOutcome struct {
	closed  bool
	newHost *models.TournamentPlayer
	payload map[string]interface{}
}

// hostLeaveUnsafe removes the departing host and either promotes the
// earliest-joined survivor or marks the lobby closed. Assumes lob.Mu is held.
func (r *Registry) hostLeaveUnsafe(lob *Lobby, hostID uuid.UUID) hostLeaveOutcome {
	lob.removeParticipantUnsafe(hostID)

	if lob.CurrentPlayerCount() == 0 {
		lob.Status = models.LobbyClosed
		return hostLeaveOutcome{closed: true}
	}

	// Participants keep join order, so index 0 is the earliest-joined survivor.
	newHost := lob.Participants[0]
	lob.setHostUnsafe(newHost.ID)
	lob.recomputeStatusUnsafe()
	return hostLeaveOutcome{newHost: newHost, payload: lob.statusPayloadUnsafe()}
}

// finishHostLeave performs the post-unlock effects of a host departure.
func (r *Registry) finishHostLeave(ctx context.Context, lob *Lobby, out hostLeaveOutcome) *HostLeaveResult {
	if out.closed {
		r.deleteLobby(ctx, lob)
		return &HostLeaveResult{Action: "closed"}
	}

	r.persist(ctx, lob)
	r.bc.BroadcastToLobby(lob.ID, map[string]interface{}{
		"type":        models.EventHostChanged,
		"new_host_id": out.newHost.ID.String(),
		"lobby":       out.payload,
	})
	r.log.WithFields(logrus.Fields{"lobby": lob.ID, "new_host": out.newHost.ID}).Info("host left, privileges transferred")
	return &HostLeaveResult{Action: "transferred", NewHost: out.newHost, Lobby: lob}
}

// HandleHostLeaving resolves the host's departure: transfer to the
// earliest-joined remaining participant, or close the lobby when nobody is
// left.
func (r *Registry) HandleHostLeaving(ctx context.Context, lobbyID, hostID uuid.UUID) (*HostLeaveResult, error) {
	lob, ok := r.GetLobby(lobbyID)
	if !ok {
		return nil, models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if lob.HostPlayerID != hostID {
		lob.Mu.Unlock()
		return nil, models.ErrHostPrivilegesRequired
	}
	out := r.hostLeaveUnsafe(lob, hostID)
	lob.Mu.Unlock()

	return r.finishHostLeave(ctx, lob, out), nil
}

// LeavePlayer removes a participant (disconnect or explicit leave). A
// departing host is resolved in the same critical section as the host check,
// so a concurrent transfer cannot slip between them.
func (r *Registry) LeavePlayer(ctx context.Context, lobbyID, playerID uuid.UUID) error {
	lob, ok := r.GetLobby(lobbyID)
	if !ok {
		return models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if lob.HostPlayerID == playerID {
		out := r.hostLeaveUnsafe(lob, playerID)
		lob.Mu.Unlock()
		r.finishHostLeave(ctx, lob, out)
		return nil
	}
	if lob.Participant(playerID) == nil {
		lob.Mu.Unlock()
		return models.ErrPlayerNotInLobby
	}
	lob.removeParticipantUnsafe(playerID)
	lob.recomputeStatusUnsafe()
	payload := lob.statusPayloadUnsafe()
	lob.Mu.Unlock()

	r.persist(ctx, lob)
	r.bc.BroadcastToLobby(lobbyID, map[string]interface{}{
		"type":      models.EventPlayerLeft,
		"player_id": playerID.String(),
		"lobby":     payload,
	})
	return nil
}

// UpdateSettings applies host-edited settings while the lobby is still open.
func (r *Registry) UpdateSettings(ctx context.Context, lobbyID, hostID uuid.UUID, settings models.PartySettings) error {
	lob, ok := r.GetLobby(lobbyID)
	if !ok {
		return models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if lob.HostPlayerID != hostID {
		lob.Mu.Unlock()
		return models.ErrHostPrivilegesRequired
	}
	if lob.Status != models.LobbyWaitingForPlayers && lob.Status != models.LobbyReadyToStart {
		lob.Mu.Unlock()
		return models.ErrTournamentAlreadyStarted
	}
	settings = clampSettings(settings)
	if settings.MaxPlayers < lob.CurrentPlayerCount() {
		settings.MaxPlayers = lob.CurrentPlayerCount()
	}
	lob.Settings = settings
	lob.recomputeStatusUnsafe()
	lob.Mu.Unlock()

	r.persist(ctx, lob)
	r.bc.BroadcastToLobby(lobbyID, map[string]interface{}{
		"type":     models.EventSettingsUpdated,
		"settings": settings,
	})
	return nil
}

// CloseLobby deletes the lobby and everything it owns (participants, chat) as
// one logical unit. Host only.
func (r *Registry) CloseLobby(ctx context.Context, lobbyID, hostID uuid.UUID) error {
	lob, ok := r.GetLobby(lobbyID)
	if !ok {
		return models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if lob.HostPlayerID != hostID {
		lob.Mu.Unlock()
		return models.ErrHostPrivilegesRequired
	}
	lob.Status = models.LobbyClosed
	lob.Mu.Unlock()

	r.bc.BroadcastToLobby(lobbyID, map[string]interface{}{
		"type":    models.EventSystemMessage,
		"message": "lobby closed by host",
	})
	r.deleteLobby(ctx, lob)
	return nil
}

// AppendChat stores a validated chat message in the bounded history and fans
// it out. Content and sender validation happen in the security gate first.
func (r *Registry) AppendChat(ctx context.Context, msg models.ChatMessage) error {
	lob, ok := r.GetLobby(msg.LobbyID)
	if !ok {
		return models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if lob.Participant(msg.SenderID) == nil {
		lob.Mu.Unlock()
		return models.ErrPlayerNotInLobby
	}
	lob.appendChatUnsafe(msg, r.cfg.ChatHistoryLimit)
	lob.Mu.Unlock()

	if r.repo != nil {
		if err := r.repo.SaveChatMessage(ctx, msg); err != nil {
			r.log.WithError(err).Warn("persisting chat message")
		}
	}
	r.bc.BroadcastToLobby(msg.LobbyID, map[string]interface{}{
		"type":        models.EventChatMessage,
		"message_id":  msg.ID.String(),
		"sender_id":   msg.SenderID.String(),
		"sender_name": msg.SenderName,
		"content":     msg.Content,
		"ts":          msg.SentAt.Unix(),
	})
	return nil
}

// ChatHistory returns a copy of the retained chat for a lobby, oldest first.
func (r *Registry) ChatHistory(lobbyID uuid.UUID) []models.ChatMessage {
	lob, ok := r.GetLobby(lobbyID)
	if !ok {
		return nil
	}
	lob.Mu.Lock()
	defer lob.Mu.Unlock()
	out := make([]models.ChatMessage, len(lob.Chat))
	copy(out, lob.Chat)
	return out
}

// deleteLobby removes the lobby from the maps and the repository.
func (r *Registry) deleteLobby(ctx context.Context, lob *Lobby) {
	r.mu.Lock()
	delete(r.lobbies, lob.ID)
	delete(r.codes, lob.Code)
	r.mu.Unlock()

	if r.repo != nil {
		if err := r.repo.DeleteLobby(ctx, lob.ID); err != nil {
			r.log.WithError(err).WithField("lobby", lob.ID).Warn("deleting lobby from repository")
		}
	}
	r.log.WithField("lobby", lob.ID).Info("lobby closed")
}

// persist writes the lobby snapshot through the repository, if configured.
func (r *Registry) persist(ctx context.Context, lob *Lobby) {
	if r.repo == nil {
		return
	}
	snap := lob.Snapshot()
	if err := r.repo.SaveLobby(ctx, &snap); err != nil {
		r.log.WithError(err).WithField("lobby", lob.ID).Warn("persisting lobby")
	}
}

// clampSettings bounds host-supplied settings to sane ranges.
func clampSettings(s models.PartySettings) models.PartySettings {
	if s.MaxPlayers < 4 {
		s.MaxPlayers = 4
	}
	if s.MaxPlayers > 16 {
		s.MaxPlayers = 16
	}
	if s.RoundCount <= 0 {
		s.RoundCount = 10
	}
	switch s.Format {
	case models.FormatSingleElimination, models.FormatDoubleElimination, models.FormatRoundRobin:
	default:
		s.Format = models.FormatSingleElimination
	}
	return s
}
