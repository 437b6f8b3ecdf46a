// internal/tournament/engine_test.go
package tournament

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dilemma-gg/party/internal/anticheat"
	"github.com/dilemma-gg/party/internal/archive"
	"github.com/dilemma-gg/party/internal/config"
	"github.com/dilemma-gg/party/internal/models"
	"github.com/dilemma-gg/party/internal/party"
)

type captureArchiver struct {
	records []archive.Record
}

func (a *captureArchiver) ArchiveTournament(ctx context.Context, rec archive.Record) error {
	a.records = append(a.records, rec)
	return nil
}

type engineEnv struct {
	cfg      *config.Config
	registry *party.Registry
	engine   *Engine
	archiver *captureArchiver
	lobby    *party.Lobby
	hostID   uuid.UUID
	players  []uuid.UUID // join order, host first
}

// newEngineEnv builds a lobby with n members and an engine wired to a capture
// archiver. mutate may adjust the config before anything is constructed.
func newEngineEnv(t *testing.T, format models.TournamentFormat, n int, mutate func(*config.Config)) *engineEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg := config.Load()
	cfg.MinMatchDuration = 0
	if mutate != nil {
		mutate(cfg)
	}

	reg := party.NewRegistry(cfg, logger, nil, nil)
	val := anticheat.NewValidator(cfg, logger)
	arch := &captureArchiver{}
	eng := NewEngine(cfg, logger, reg, val, nil, arch, nil)

	ctx := context.Background()
	hostID := uuid.New()
	settings := models.DefaultSettings()
	settings.Format = format
	settings.MaxPlayers = 16
	lob, err := reg.CreateLobby(ctx, hostID, "host", settings)
	require.NoError(t, err)

	players := []uuid.UUID{hostID}
	code := lob.Snapshot().Code
	for i := 1; i < n; i++ {
		id := uuid.New()
		_, err := reg.JoinLobby(ctx, id, "player", code)
		require.NoError(t, err)
		players = append(players, id)
	}

	return &engineEnv{
		cfg:      cfg,
		registry: reg,
		engine:   eng,
		archiver: arch,
		lobby:    lob,
		hostID:   hostID,
		players:  players,
	}
}

// report submits a plausible result for the match, reported by the winner.
func (e *engineEnv) report(t *testing.T, m *models.TournamentMatch, winnerID uuid.UUID) {
	t.Helper()
	loserID := m.Player1ID
	if loserID == winnerID {
		loserID = m.Player2ID
	}
	p1Score, p2Score := 30, 12
	if m.Player2ID == winnerID {
		p1Score, p2Score = 12, 30
	}
	_, err := e.engine.AcceptMatchResult(context.Background(), e.lobby.ID, winnerID, &models.MatchResult{
		MatchID:      m.ID,
		Player1ID:    m.Player1ID,
		Player2ID:    m.Player2ID,
		WinnerID:     winnerID,
		LoserID:      loserID,
		Player1Score: p1Score,
		Player2Score: p2Score,
		Statistics: models.MatchStatistics{
			TotalRounds:         10,
			Player1Cooperations: 6,
			Player1Betrayals:    4,
			Player2Cooperations: 8,
			Player2Betrayals:    2,
		},
		CompletedAt: time.Now().Add(time.Second),
	})
	require.NoError(t, err)
}

func TestStartTournamentAuthorization(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()

	_, err := env.engine.StartTournament(ctx, env.lobby.ID, env.players[1])
	assert.ErrorIs(t, err, models.ErrHostPrivilegesRequired)

	_, err = env.engine.StartTournament(ctx, uuid.New(), env.hostID)
	assert.ErrorIs(t, err, models.ErrLobbyNotFound)
}

func TestStartTournamentRequiresReadyLobby(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 3, nil)

	_, err := env.engine.StartTournament(context.Background(), env.lobby.ID, env.hostID)
	assert.ErrorIs(t, err, models.ErrInsufficientPlayers)
}

func TestStartTournamentRejectsInvalidEliminationCount(t *testing.T) {
	// Six players make the lobby READY_TO_START but cannot fill an
	// elimination bracket.
	env := newEngineEnv(t, models.FormatSingleElimination, 6, nil)
	require.Equal(t, models.LobbyReadyToStart, env.lobby.Snapshot().Status)

	_, err := env.engine.StartTournament(context.Background(), env.lobby.ID, env.hostID)
	assert.ErrorIs(t, err, models.ErrInsufficientPlayers)
}

func TestStartTournamentBuildsBracket(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()

	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	assert.Equal(t, models.TournamentInProgress, tn.Status)
	assert.Equal(t, 1, tn.CurrentRound)
	assert.Equal(t, 2, tn.TotalRounds)
	assert.Len(t, tn.Bracket.Round(1).Matches, 2)
	assert.Len(t, tn.Bracket.ActiveMatches, 2)
	assert.Equal(t, models.LobbyTournamentInProgress, env.lobby.Snapshot().Status)

	_, err = env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	assert.ErrorIs(t, err, models.ErrTournamentAlreadyStarted)
}

func TestBeginMatchTransitions(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	m := tn.Bracket.Round(1).Matches[0]
	require.NoError(t, env.engine.BeginMatch(ctx, m.ID))
	assert.Equal(t, models.MatchInProgress, m.Status)
	assert.False(t, m.StartTime.IsZero())

	err = env.engine.BeginMatch(ctx, m.ID)
	assert.ErrorIs(t, err, models.ErrMatchAlreadyInProgress)

	err = env.engine.BeginMatch(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrMatchNotFound)
}

func TestSingleEliminationRunToCompletion(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	round1 := tn.Bracket.Round(1).Matches
	env.report(t, round1[0], round1[0].Player1ID)
	assert.Equal(t, 1, tn.CurrentRound, "round does not advance until all matches resolve")
	env.report(t, round1[1], round1[1].Player1ID)

	require.Equal(t, 2, tn.CurrentRound)
	final := tn.Bracket.Round(2)
	require.NotNil(t, final)
	require.Len(t, final.Matches, 1)
	assert.True(t, final.Matches[0].HasPlayer(round1[0].Player1ID))
	assert.True(t, final.Matches[0].HasPlayer(round1[1].Player1ID))

	champion := final.Matches[0].Player1ID
	env.report(t, final.Matches[0], champion)

	assert.Equal(t, models.TournamentCompleted, tn.Status)
	assert.False(t, tn.EndTime.IsZero())
	winner := tn.Players[tn.PlayerIndex(champion)]
	assert.Equal(t, 1, winner.CurrentRank)
	assert.Equal(t, 2, winner.Statistics.MatchesWon)

	// Lobby returns to a startable state for a rematch.
	assert.Equal(t, models.LobbyReadyToStart, env.lobby.Snapshot().Status)

	require.Len(t, env.archiver.records, 1)
	rec := env.archiver.records[0]
	assert.Equal(t, tn.ID, rec.TournamentID)
	assert.Equal(t, champion, rec.WinnerID)
	assert.Len(t, rec.Standings, 4)

	_, ok := env.engine.TournamentForLobby(env.lobby.ID)
	assert.False(t, ok, "completed tournament releases the lobby index")
}

func TestLoserIsEliminatedAndSpectates(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	m := tn.Bracket.Round(1).Matches[0]
	loserID := m.Player2ID
	env.report(t, m, m.Player1ID)

	loser := tn.Players[tn.PlayerIndex(loserID)]
	assert.True(t, loser.IsEliminated)
	assert.Equal(t, models.PlayerSpectating, loser.Status)
	assert.True(t, tn.Bracket.Eliminated[loserID])
	assert.Contains(t, env.engine.Spectators().Spectators(tn.ID), loserID)
}

func TestDoubleEliminationSurvivesFirstLoss(t *testing.T) {
	env := newEngineEnv(t, models.FormatDoubleElimination, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	round1 := tn.Bracket.Round(1).Matches
	firstLoser := round1[0].Player2ID
	env.report(t, round1[0], round1[0].Player1ID)

	loser := tn.Players[tn.PlayerIndex(firstLoser)]
	assert.False(t, loser.IsEliminated, "double elimination grants a second life")
	assert.Equal(t, 1, tn.Losses[tn.PlayerIndex(firstLoser)])

	env.report(t, round1[1], round1[1].Player1ID)
	require.Equal(t, 2, tn.CurrentRound)

	// Round two pairs the winners and the one-loss players separately.
	var lossMatch *models.TournamentMatch
	for _, m := range tn.Bracket.Round(2).Matches {
		if m.HasPlayer(firstLoser) {
			lossMatch = m
		}
	}
	require.NotNil(t, lossMatch)
	env.report(t, lossMatch, lossMatch.Player1ID)
	if lossMatch.Player1ID == firstLoser {
		assert.False(t, tn.Players[tn.PlayerIndex(firstLoser)].IsEliminated)
	} else {
		assert.True(t, tn.Players[tn.PlayerIndex(firstLoser)].IsEliminated,
			"a second loss eliminates")
	}
}

func TestRoundRobinCompletesAfterAllRounds(t *testing.T) {
	env := newEngineEnv(t, models.FormatRoundRobin, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)
	require.Equal(t, 3, tn.TotalRounds)

	for round := 1; round <= tn.TotalRounds; round++ {
		for _, m := range tn.Bracket.Round(round).Matches {
			env.report(t, m, m.Player1ID)
		}
	}

	assert.Equal(t, models.TournamentCompleted, tn.Status)
	for _, p := range tn.Players {
		assert.False(t, p.IsEliminated, "round robin never eliminates")
		assert.Equal(t, 3, p.Statistics.MatchesPlayed)
	}
	require.Len(t, env.archiver.records, 1)
}

func TestAcceptResultRejectsTooShortMatch(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, func(cfg *config.Config) {
		cfg.MinMatchDuration = 10 * time.Second
	})
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	m := tn.Bracket.Round(1).Matches[0]
	require.NoError(t, env.engine.BeginMatch(ctx, m.ID))

	_, err = env.engine.AcceptMatchResult(ctx, env.lobby.ID, m.Player1ID, &models.MatchResult{
		MatchID:   m.ID,
		Player1ID: m.Player1ID,
		Player2ID: m.Player2ID,
		WinnerID:  m.Player1ID,
		LoserID:   m.Player2ID,
		Statistics: models.MatchStatistics{
			TotalRounds:         10,
			Player1Cooperations: 6,
			Player1Betrayals:    4,
			Player2Cooperations: 8,
			Player2Betrayals:    2,
		},
		CompletedAt: m.StartTime.Add(2 * time.Second),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, models.ViolationMatchTooShort, verr.Result.Code)
	assert.Equal(t, models.MatchInProgress, m.Status, "rejected results leave the match live")
}

func TestAcceptResultRejectsWrongPairing(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	m := tn.Bracket.Round(1).Matches[0]
	outsider := uuid.New()
	_, err = env.engine.AcceptMatchResult(ctx, env.lobby.ID, m.Player1ID, &models.MatchResult{
		MatchID:   m.ID,
		Player1ID: m.Player1ID,
		Player2ID: m.Player2ID,
		WinnerID:  outsider,
		LoserID:   m.Player2ID,
		Statistics: models.MatchStatistics{
			TotalRounds:         10,
			Player1Cooperations: 10,
			Player2Cooperations: 10,
		},
		CompletedAt: time.Now().Add(time.Second),
	})
	assert.ErrorIs(t, err, models.ErrInvalidMatchPairing)
}

// Results are resolved from the reporter's own active match, so a lobby member
// cannot fabricate an outcome for a match they are not playing in.
func TestReportForSomeoneElsesMatchRejected(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	round1 := tn.Bracket.Round(1).Matches
	target := round1[0]
	meddler := round1[1].Player1ID
	require.False(t, target.HasPlayer(meddler))

	_, err = env.engine.AcceptMatchResult(ctx, env.lobby.ID, meddler, &models.MatchResult{
		MatchID:   target.ID,
		Player1ID: target.Player1ID,
		Player2ID: target.Player2ID,
		WinnerID:  target.Player1ID,
		LoserID:   target.Player2ID,
		Statistics: models.MatchStatistics{
			TotalRounds:         10,
			Player1Cooperations: 10,
			Player2Cooperations: 10,
		},
		CompletedAt: time.Now().Add(time.Second),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, models.ViolationMatchIDMismatch, verr.Result.Code)
	assert.Contains(t, tn.Bracket.ActiveMatches, target.ID, "the targeted match is untouched")

	// A reporter with no in-flight match at all cannot resolve anything.
	_, err = env.engine.AcceptMatchResult(ctx, env.lobby.ID, uuid.New(), &models.MatchResult{
		MatchID:     target.ID,
		Player1ID:   target.Player1ID,
		Player2ID:   target.Player2ID,
		WinnerID:    target.Player1ID,
		LoserID:     target.Player2ID,
		CompletedAt: time.Now().Add(time.Second),
	})
	assert.ErrorIs(t, err, models.ErrMatchNotFound)
}

func TestDuplicateResultIsIgnored(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	m := tn.Bracket.Round(1).Matches[0]
	winner := m.Player1ID
	env.report(t, m, winner)
	env.report(t, m, winner) // both clients report; second is a no-op

	w := tn.Players[tn.PlayerIndex(winner)]
	assert.Equal(t, 1, w.Statistics.MatchesPlayed, "duplicate reports must not double-count")
}

func TestCancelTournament(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	err = env.engine.CancelTournament(ctx, env.lobby.ID, env.players[1])
	assert.ErrorIs(t, err, models.ErrHostPrivilegesRequired)

	require.NoError(t, env.engine.CancelTournament(ctx, env.lobby.ID, env.hostID))
	assert.Equal(t, models.TournamentCancelled, tn.Status)
	assert.Empty(t, tn.Bracket.ActiveMatches)
	assert.Equal(t, models.LobbyReadyToStart, env.lobby.Snapshot().Status)
}

func TestDoubleForfeitOnBothDisconnecting(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	m := tn.Bracket.Round(1).Matches[0]
	require.NoError(t, env.engine.BeginMatch(ctx, m.ID))

	require.NoError(t, env.engine.HandleDisconnect(ctx, env.lobby.ID, m.Player1ID))
	assert.Equal(t, models.MatchInProgress, m.Status, "one disconnect leaves the match live")

	require.NoError(t, env.engine.HandleDisconnect(ctx, env.lobby.ID, m.Player2ID))
	assert.Equal(t, models.MatchCancelled, m.Status)
	for _, pid := range []uuid.UUID{m.Player1ID, m.Player2ID} {
		p := tn.Players[tn.PlayerIndex(pid)]
		assert.True(t, p.IsEliminated)
		assert.Equal(t, 1, p.Statistics.MatchesLost)
	}
}

func TestReconnectRestoresStatus(t *testing.T) {
	env := newEngineEnv(t, models.FormatSingleElimination, 4, nil)
	ctx := context.Background()
	tn, err := env.engine.StartTournament(ctx, env.lobby.ID, env.hostID)
	require.NoError(t, err)

	m := tn.Bracket.Round(1).Matches[0]
	require.NoError(t, env.engine.BeginMatch(ctx, m.ID))
	require.NoError(t, env.engine.HandleDisconnect(ctx, env.lobby.ID, m.Player1ID))
	p := tn.Players[tn.PlayerIndex(m.Player1ID)]
	require.Equal(t, models.PlayerDisconnected, p.Status)

	env.engine.HandleReconnect(env.lobby.ID, m.Player1ID)
	assert.Equal(t, models.PlayerInMatch, p.Status)
}
