// internal/tournament/engine.go

// Package tournament drives the match-progression state machine: starting a
// tournament from a ready lobby, scheduling and resolving matches, advancing
// rounds, eliminating players and completing or cancelling the whole run.
// Every mutation of one tournament happens under its lobby's lock, so lobby
// operations and tournament operations cannot interleave destructively.
package tournament

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/anticheat"
	"github.com/dilemma-gg/party/internal/archive"
	"github.com/dilemma-gg/party/internal/bracket"
	"github.com/dilemma-gg/party/internal/broadcast"
	"github.com/dilemma-gg/party/internal/config"
	"github.com/dilemma-gg/party/internal/leaderboard"
	"github.com/dilemma-gg/party/internal/models"
	"github.com/dilemma-gg/party/internal/party"
	"github.com/dilemma-gg/party/internal/spectator"
)

// Repository persists tournament aggregates. Nil disables persistence.
type Repository interface {
	SaveTournament(ctx context.Context, t *models.Tournament) error
	SaveMatchResult(ctx context.Context, res models.MatchResult) error
}

// Archiver receives the durable summary of a completed tournament. Nil
// disables archiving.
type Archiver interface {
	ArchiveTournament(ctx context.Context, rec archive.Record) error
}

// ValidationError surfaces an anti-cheat rejection to the caller without
// losing the violation code or risk level.
type ValidationError struct {
	Result models.ValidationResult
}

func (e *ValidationError) Error() string { return string(e.Result.Code) }

// Engine owns every running tournament.
type Engine struct {
	mu          sync.Mutex
	tournaments map[uuid.UUID]*models.Tournament
	byLobby     map[uuid.UUID]uuid.UUID // lobbyID -> tournamentID
	matchIndex  map[uuid.UUID]uuid.UUID // matchID -> tournamentID

	registry   *party.Registry
	validator  *anticheat.Validator
	spectators *spectator.Coordinator
	bc         broadcast.Broadcaster
	archiver   Archiver
	repo       Repository
	cfg        *config.Config
	log        *logrus.Logger
}

// NewEngine wires the engine to its collaborators. archiver and repo may be
// nil.
func NewEngine(cfg *config.Config, log *logrus.Logger, reg *party.Registry, val *anticheat.Validator, bc broadcast.Broadcaster, archiver Archiver, repo Repository) *Engine {
	if bc == nil {
		bc = broadcast.Nop{}
	}
	return &Engine{
		tournaments: make(map[uuid.UUID]*models.Tournament),
		byLobby:     make(map[uuid.UUID]uuid.UUID),
		matchIndex:  make(map[uuid.UUID]uuid.UUID),
		registry:    reg,
		validator:   val,
		spectators:  spectator.NewCoordinator(),
		bc:          bc,
		archiver:    archiver,
		repo:        repo,
		cfg:         cfg,
		log:         log,
	}
}

// Spectators exposes the spectator coordinator for the transport layer.
func (e *Engine) Spectators() *spectator.Coordinator { return e.spectators }

// Tournament returns the tournament by id.
func (e *Engine) Tournament(id uuid.UUID) (*models.Tournament, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tournaments[id]
	return t, ok
}

// TournamentForLobby returns the lobby's tournament, if one exists.
func (e *Engine) TournamentForLobby(lobbyID uuid.UUID) (*models.Tournament, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.byLobby[lobbyID]
	if !ok {
		return nil, false
	}
	t, ok := e.tournaments[id]
	return t, ok
}

// StartTournament builds the bracket from the lobby's participants and moves
// lobby and tournament into their in-progress states. Host only; the lobby
// must be READY_TO_START with a player count valid for its format.
func (e *Engine) StartTournament(ctx context.Context, lobbyID, requesterID uuid.UUID) (*models.Tournament, error) {
	lob, ok := e.registry.GetLobby(lobbyID)
	if !ok {
		return nil, models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if lob.HostPlayerID != requesterID {
		lob.Mu.Unlock()
		return nil, models.ErrHostPrivilegesRequired
	}
	switch lob.Status {
	case models.LobbyReadyToStart:
	case models.LobbyTournamentInProgress:
		lob.Mu.Unlock()
		return nil, models.ErrTournamentAlreadyStarted
	default:
		lob.Mu.Unlock()
		return nil, models.ErrInsufficientPlayers
	}
	format := lob.Settings.Format
	if !format.ValidPlayerCount(lob.CurrentPlayerCount()) {
		lob.Mu.Unlock()
		return nil, models.ErrInsufficientPlayers
	}

	players := make([]*models.TournamentPlayer, len(lob.Participants))
	copy(players, lob.Participants)

	t := &models.Tournament{
		ID:           uuid.New(),
		LobbyID:      lobbyID,
		Format:       format,
		Players:      players,
		CurrentRound: 1,
		Status:       models.TournamentInProgress,
		StartTime:    time.Now(),
		Losses:       make([]int, len(players)),
	}
	t.HeadToHead = make([][]int, len(players))
	for i := range t.HeadToHead {
		t.HeadToHead[i] = make([]int, len(players))
	}

	br, totalRounds, err := bracket.Generate(t.ID, players, format)
	if err != nil {
		lob.Mu.Unlock()
		return nil, models.ErrBracketGenerationFailed
	}
	t.Bracket = br
	t.TotalRounds = totalRounds

	if res := e.validator.ValidateTournamentStructure(t); !res.Valid {
		lob.Mu.Unlock()
		return nil, &ValidationError{Result: res}
	}

	for _, p := range players {
		p.Status = models.PlayerReady
		p.IsEliminated = false
		p.CurrentRank = 0
		p.Statistics = models.PlayerStatistics{}
	}
	e.activateRoundUnsafe(t, 1)
	lob.Status = models.LobbyTournamentInProgress
	lob.Mu.Unlock()

	e.mu.Lock()
	e.tournaments[t.ID] = t
	e.byLobby[lobbyID] = t.ID
	for _, m := range t.Bracket.Round(1).Matches {
		e.matchIndex[m.ID] = t.ID
	}
	e.mu.Unlock()

	e.persist(ctx, t)
	e.bc.BroadcastToLobby(lobbyID, map[string]interface{}{
		"type":          models.EventTournamentStarted,
		"tournament_id": t.ID.String(),
		"format":        format,
		"total_rounds":  totalRounds,
	})
	e.broadcastRoundStart(t)
	e.log.WithFields(logrus.Fields{
		"tournament": t.ID,
		"lobby":      lobbyID,
		"format":     format,
		"players":    len(players),
	}).Info("tournament started")
	return t, nil
}

// BeginMatch transitions a scheduled match to IN_PROGRESS and stamps its start
// time. Both players move to IN_MATCH.
func (e *Engine) BeginMatch(ctx context.Context, matchID uuid.UUID) error {
	t, lob, err := e.resolveMatch(matchID)
	if err != nil {
		return err
	}

	lob.Mu.Lock()
	match, ok := t.Bracket.ActiveMatches[matchID]
	if !ok {
		lob.Mu.Unlock()
		return models.ErrMatchNotFound
	}
	if match.Status != models.MatchScheduled {
		lob.Mu.Unlock()
		return models.ErrMatchAlreadyInProgress
	}
	match.Status = models.MatchInProgress
	match.StartTime = time.Now()
	round := match.Round
	for _, pid := range []uuid.UUID{match.Player1ID, match.Player2ID} {
		if p := playerByID(t, pid); p != nil {
			p.Status = models.PlayerInMatch
		}
	}
	lob.Mu.Unlock()

	e.bc.BroadcastToLobby(t.LobbyID, map[string]interface{}{
		"type":     models.EventMatchStarted,
		"match_id": matchID.String(),
		"round":    round,
	})
	return nil
}

// CancelTournament aborts an in-progress tournament, releasing all in-flight
// match state. Host only. The lobby falls back to its pre-tournament status.
func (e *Engine) CancelTournament(ctx context.Context, lobbyID, requesterID uuid.UUID) error {
	t, ok := e.TournamentForLobby(lobbyID)
	if !ok {
		return models.ErrTournamentNotFound
	}
	lob, ok := e.registry.GetLobby(lobbyID)
	if !ok {
		return models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if lob.HostPlayerID != requesterID {
		lob.Mu.Unlock()
		return models.ErrHostPrivilegesRequired
	}
	if t.Status != models.TournamentInProgress && t.Status != models.TournamentNotStarted {
		lob.Mu.Unlock()
		return models.ErrTournamentCompleted
	}
	e.cancelUnsafe(t, lob)
	lob.Mu.Unlock()

	e.persist(ctx, t)
	e.bc.BroadcastToLobby(lobbyID, map[string]interface{}{
		"type":          models.EventSystemMessage,
		"message":       "tournament cancelled by host",
		"tournament_id": t.ID.String(),
	})
	e.log.WithField("tournament", t.ID).Info("tournament cancelled")
	return nil
}

// Shutdown cancels every in-progress tournament so no lobby is left pointing
// at a half-run bracket. Called from the server's teardown path.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	running := make([]*models.Tournament, 0, len(e.tournaments))
	for _, t := range e.tournaments {
		if t.Status == models.TournamentInProgress {
			running = append(running, t)
		}
	}
	e.mu.Unlock()

	for _, t := range running {
		lob, ok := e.registry.GetLobby(t.LobbyID)
		if !ok {
			continue
		}
		lob.Mu.Lock()
		if t.Status == models.TournamentInProgress {
			e.cancelUnsafe(t, lob)
		}
		lob.Mu.Unlock()
		e.persist(ctx, t)
		e.log.WithField("tournament", t.ID).Info("tournament cancelled on shutdown")
	}
}

// cancelUnsafe moves the tournament to CANCELLED and clears every in-flight
// match so no orphaned active entries remain. Assumes the lobby lock is held.
func (e *Engine) cancelUnsafe(t *models.Tournament, lob *party.Lobby) {
	for id, m := range t.Bracket.ActiveMatches {
		m.Status = models.MatchCancelled
		m.EndTime = time.Now()
		delete(t.Bracket.ActiveMatches, id)
	}
	t.Status = models.TournamentCancelled
	t.EndTime = time.Now()
	for _, p := range t.Players {
		if p.Status != models.PlayerDisconnected {
			p.Status = models.PlayerWaiting
		}
	}
	lob.Status = models.LobbyWaitingForPlayers
	lobStatusRecompute(lob)

	e.spectators.Clear(t.ID)
	e.dropIndexes(t)
}

// HandleDisconnect marks a player disconnected. If both participants of an
// in-flight match are gone the match is cancelled as a double forfeit: both
// take a loss, and in elimination formats both are eliminated.
func (e *Engine) HandleDisconnect(ctx context.Context, lobbyID, playerID uuid.UUID) error {
	t, ok := e.TournamentForLobby(lobbyID)
	if !ok {
		return models.ErrTournamentNotFound
	}
	lob, ok := e.registry.GetLobby(lobbyID)
	if !ok {
		return models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	p := playerByID(t, playerID)
	if p == nil {
		lob.Mu.Unlock()
		return models.ErrPlayerNotInTournament
	}
	p.Status = models.PlayerDisconnected

	var forfeited *models.TournamentMatch
	if m := activeMatchOf(t, playerID); m != nil {
		other := m.Player1ID
		if other == playerID {
			other = m.Player2ID
		}
		if op := playerByID(t, other); op != nil && op.Status == models.PlayerDisconnected {
			e.doubleForfeitUnsafe(t, m)
			forfeited = m
		}
	}
	adv := advanceResult{kind: advanceNone}
	if forfeited != nil {
		adv = e.maybeAdvanceUnsafe(t, lob)
	}
	lob.Mu.Unlock()

	e.bc.BroadcastToLobby(lobbyID, map[string]interface{}{
		"type":      models.EventPlayerStatusUpdate,
		"player_id": playerID.String(),
		"status":    models.PlayerDisconnected,
	})
	if forfeited != nil {
		e.bc.BroadcastToLobby(lobbyID, map[string]interface{}{
			"type":     models.EventMatchCompleted,
			"match_id": forfeited.ID.String(),
			"forfeit":  true,
		})
	}
	e.afterAdvance(ctx, t, adv)
	return nil
}

// HandleReconnect restores a disconnected player's status.
func (e *Engine) HandleReconnect(lobbyID, playerID uuid.UUID) {
	t, ok := e.TournamentForLobby(lobbyID)
	if !ok {
		return
	}
	lob, ok := e.registry.GetLobby(lobbyID)
	if !ok {
		return
	}
	lob.Mu.Lock()
	if p := playerByID(t, playerID); p != nil && p.Status == models.PlayerDisconnected {
		switch {
		case p.IsEliminated:
			p.Status = models.PlayerSpectating
		case activeMatchOf(t, playerID) != nil:
			p.Status = models.PlayerInMatch
		default:
			p.Status = models.PlayerWaiting
		}
	}
	lob.Mu.Unlock()
}

// doubleForfeitUnsafe cancels a match both participants abandoned. Both take a
// loss; elimination formats eliminate both. Assumes the lobby lock is held.
func (e *Engine) doubleForfeitUnsafe(t *models.Tournament, m *models.TournamentMatch) {
	m.Status = models.MatchCancelled
	m.EndTime = time.Now()
	delete(t.Bracket.ActiveMatches, m.ID)

	for _, pid := range []uuid.UUID{m.Player1ID, m.Player2ID} {
		idx := t.PlayerIndex(pid)
		p := t.Players[idx]
		p.Statistics.MatchesPlayed++
		p.Statistics.MatchesLost++
		t.Losses[idx]++
		if t.Format != models.FormatRoundRobin {
			e.eliminateUnsafe(t, idx)
		}
	}
	leaderboard.Recompute(t)
	e.log.WithFields(logrus.Fields{
		"tournament": t.ID,
		"match":      m.ID,
	}).Warn("double forfeit, match cancelled")
}

// eliminateUnsafe marks a player out of contention and hands them to the
// spectator coordinator. Assumes the lobby lock is held.
func (e *Engine) eliminateUnsafe(t *models.Tournament, idx int) {
	p := t.Players[idx]
	if p.IsEliminated {
		return
	}
	p.IsEliminated = true
	t.Bracket.Eliminated[p.ID] = true
	if p.Status != models.PlayerDisconnected {
		p.Status = models.PlayerSpectating
	}
	e.spectators.Add(t.ID, p.ID)
}

// resolveMatch maps a match id to its tournament and lobby.
func (e *Engine) resolveMatch(matchID uuid.UUID) (*models.Tournament, *party.Lobby, error) {
	e.mu.Lock()
	tid, ok := e.matchIndex[matchID]
	if !ok {
		e.mu.Unlock()
		return nil, nil, models.ErrMatchNotFound
	}
	t := e.tournaments[tid]
	e.mu.Unlock()

	lob, ok := e.registry.GetLobby(t.LobbyID)
	if !ok {
		return nil, nil, models.ErrLobbyNotFound
	}
	return t, lob, nil
}

// dropIndexes removes the tournament's match and lobby indexes. The
// tournament object itself stays queryable.
func (e *Engine) dropIndexes(t *models.Tournament) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.byLobby, t.LobbyID)
	for _, r := range t.Bracket.Rounds {
		for _, m := range r.Matches {
			delete(e.matchIndex, m.ID)
		}
	}
}

// persist writes the tournament through the repository, if configured.
func (e *Engine) persist(ctx context.Context, t *models.Tournament) {
	if e.repo == nil {
		return
	}
	if err := e.repo.SaveTournament(ctx, t); err != nil {
		e.log.WithError(err).WithField("tournament", t.ID).Warn("persisting tournament")
	}
}

// playerByID finds a tournament player by id.
func playerByID(t *models.Tournament, id uuid.UUID) *models.TournamentPlayer {
	idx := t.PlayerIndex(id)
	if idx < 0 {
		return nil
	}
	return t.Players[idx]
}

// activeMatchOf returns the in-flight match involving the player, if any.
func activeMatchOf(t *models.Tournament, playerID uuid.UUID) *models.TournamentMatch {
	for _, m := range t.Bracket.ActiveMatches {
		if m.HasPlayer(playerID) {
			return m
		}
	}
	return nil
}

// lobStatusRecompute re-derives the lobby status after the engine releases a
// lobby from tournament states.
func lobStatusRecompute(lob *party.Lobby) {
	if lob.CurrentPlayerCount() >= lob.Settings.Format.MinimumPlayers() {
		lob.Status = models.LobbyReadyToStart
	} else {
		lob.Status = models.LobbyWaitingForPlayers
	}
}
