// internal/party/registry_test.go
package party

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dilemma-gg/party/internal/config"
	"github.com/dilemma-gg/party/internal/models"
)

func newTestRegistry() *Registry {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewRegistry(config.Load(), logger, nil, nil)
}

func TestCreateLobbyAssignsHostAndCode(t *testing.T) {
	r := newTestRegistry()
	hostID := uuid.New()

	lob, err := r.CreateLobby(context.Background(), hostID, "Ada", models.DefaultSettings())
	require.NoError(t, err)

	snap := lob.Snapshot()
	assert.Len(t, snap.Code, 6)
	assert.Equal(t, hostID, snap.HostPlayerID)
	assert.Equal(t, models.LobbyWaitingForPlayers, snap.Status)
	require.Len(t, snap.Participants, 1)
	assert.True(t, snap.Participants[0].IsHost)
	assert.Equal(t, "Ada", snap.Participants[0].Name)

	byCode, ok := r.GetLobbyByCode(snap.Code)
	require.True(t, ok)
	assert.Equal(t, snap.ID, byCode.ID)
}

func TestJoinLobbyStatusTransitions(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	lob, err := r.CreateLobby(ctx, uuid.New(), "host", models.DefaultSettings())
	require.NoError(t, err)
	code := lob.Snapshot().Code

	for i := 0; i < 2; i++ {
		_, err := r.JoinLobby(ctx, uuid.New(), "p", code)
		require.NoError(t, err)
	}
	assert.Equal(t, models.LobbyWaitingForPlayers, lob.Snapshot().Status)

	_, err = r.JoinLobby(ctx, uuid.New(), "p4", code)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyReadyToStart, lob.Snapshot().Status,
		"four players should make the lobby startable")
}

func TestJoinLobbyRejections(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	settings := models.DefaultSettings()
	settings.MaxPlayers = 4
	lob, err := r.CreateLobby(ctx, uuid.New(), "host", settings)
	require.NoError(t, err)
	code := lob.Snapshot().Code

	_, err = r.JoinLobby(ctx, uuid.New(), "p", "ABC")
	assert.ErrorIs(t, err, models.ErrInvalidLobbyCode)

	_, err = r.JoinLobby(ctx, uuid.New(), "p", "ZZZZ99")
	assert.ErrorIs(t, err, models.ErrLobbyNotFound)

	dup := uuid.New()
	_, err = r.JoinLobby(ctx, dup, "p", code)
	require.NoError(t, err)
	_, err = r.JoinLobby(ctx, dup, "p", code)
	assert.ErrorIs(t, err, models.ErrPlayerAlreadyInLobby)

	for i := 0; i < 2; i++ {
		_, err = r.JoinLobby(ctx, uuid.New(), "p", code)
		require.NoError(t, err)
	}
	_, err = r.JoinLobby(ctx, uuid.New(), "late", code)
	assert.ErrorIs(t, err, models.ErrLobbyFull)

	lob.Mu.Lock()
	lob.Status = models.LobbyTournamentInProgress
	lob.Mu.Unlock()
	_, err = r.JoinLobby(ctx, uuid.New(), "p", code)
	assert.ErrorIs(t, err, models.ErrTournamentAlreadyStarted)
}

func TestKickPlayer(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	hostID := uuid.New()
	lob, err := r.CreateLobby(ctx, hostID, "host", models.DefaultSettings())
	require.NoError(t, err)
	code := lob.Snapshot().Code

	target := uuid.New()
	_, err = r.JoinLobby(ctx, target, "victim", code)
	require.NoError(t, err)

	err = r.KickPlayer(ctx, lob.ID, target, hostID)
	assert.ErrorIs(t, err, models.ErrHostPrivilegesRequired)

	err = r.KickPlayer(ctx, lob.ID, hostID, hostID)
	assert.ErrorIs(t, err, models.ErrCannotKickSelf)

	err = r.KickPlayer(ctx, lob.ID, hostID, uuid.New())
	assert.ErrorIs(t, err, models.ErrPlayerNotInLobby)

	err = r.KickPlayer(ctx, lob.ID, hostID, target)
	require.NoError(t, err)
	snap := lob.Snapshot()
	assert.Equal(t, 1, snap.CurrentPlayerCount())
	assert.Nil(t, snap.Participant(target))
}

func TestTransferHost(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	hostID := uuid.New()
	lob, err := r.CreateLobby(ctx, hostID, "host", models.DefaultSettings())
	require.NoError(t, err)
	code := lob.Snapshot().Code

	other := uuid.New()
	_, err = r.JoinLobby(ctx, other, "next", code)
	require.NoError(t, err)

	err = r.TransferHost(ctx, lob.ID, hostID, hostID)
	assert.ErrorIs(t, err, models.ErrCannotTransferToSelf)

	err = r.TransferHost(ctx, lob.ID, hostID, uuid.New())
	assert.ErrorIs(t, err, models.ErrPlayerNotInLobby)

	err = r.TransferHost(ctx, lob.ID, hostID, other)
	require.NoError(t, err)

	snap := lob.Snapshot()
	assert.Equal(t, other, snap.HostPlayerID)
	hostCount := 0
	for _, p := range snap.Participants {
		if p.IsHost {
			hostCount++
			assert.Equal(t, other, p.ID)
		}
	}
	assert.Equal(t, 1, hostCount, "exactly one participant may hold host")
}

func TestHostLeavingTransfersToEarliestJoiner(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	hostID := uuid.New()
	lob, err := r.CreateLobby(ctx, hostID, "host", models.DefaultSettings())
	require.NoError(t, err)
	code := lob.Snapshot().Code

	second := uuid.New()
	third := uuid.New()
	_, err = r.JoinLobby(ctx, second, "second", code)
	require.NoError(t, err)
	_, err = r.JoinLobby(ctx, third, "third", code)
	require.NoError(t, err)

	res, err := r.HandleHostLeaving(ctx, lob.ID, hostID)
	require.NoError(t, err)
	assert.Equal(t, "transferred", res.Action)
	require.NotNil(t, res.NewHost)
	assert.Equal(t, second, res.NewHost.ID, "earliest remaining joiner inherits the lobby")

	snap := lob.Snapshot()
	assert.Equal(t, second, snap.HostPlayerID)
	assert.Nil(t, snap.Participant(hostID))
}

func TestHostLeavingClosesEmptyLobby(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	hostID := uuid.New()
	lob, err := r.CreateLobby(ctx, hostID, "host", models.DefaultSettings())
	require.NoError(t, err)
	code := lob.Snapshot().Code

	res, err := r.HandleHostLeaving(ctx, lob.ID, hostID)
	require.NoError(t, err)
	assert.Equal(t, "closed", res.Action)

	_, ok := r.GetLobby(lob.ID)
	assert.False(t, ok)
	_, ok = r.GetLobbyByCode(code)
	assert.False(t, ok, "join code must be released when the lobby closes")
}

// LeavePlayer resolves a departing host directly, without re-checking host
// privileges under a second lock acquisition.
func TestLeavePlayerResolvesHostDeparture(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	hostID := uuid.New()
	lob, err := r.CreateLobby(ctx, hostID, "host", models.DefaultSettings())
	require.NoError(t, err)
	code := lob.Snapshot().Code

	second := uuid.New()
	_, err = r.JoinLobby(ctx, second, "second", code)
	require.NoError(t, err)

	require.NoError(t, r.LeavePlayer(ctx, lob.ID, hostID))
	snap := lob.Snapshot()
	assert.Equal(t, second, snap.HostPlayerID, "host departure transfers to the survivor")
	assert.Nil(t, snap.Participant(hostID))

	require.NoError(t, r.LeavePlayer(ctx, lob.ID, second))
	_, ok := r.GetLobby(lob.ID)
	assert.False(t, ok, "last member leaving closes the lobby")
}

func TestUpdateSettings(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	hostID := uuid.New()
	lob, err := r.CreateLobby(ctx, hostID, "host", models.DefaultSettings())
	require.NoError(t, err)
	code := lob.Snapshot().Code
	for i := 0; i < 4; i++ {
		_, err = r.JoinLobby(ctx, uuid.New(), "p", code)
		require.NoError(t, err)
	}

	newSettings := models.PartySettings{MaxPlayers: 2, RoundCount: 5, Format: models.FormatRoundRobin}
	err = r.UpdateSettings(ctx, lob.ID, uuid.New(), newSettings)
	assert.ErrorIs(t, err, models.ErrHostPrivilegesRequired)

	err = r.UpdateSettings(ctx, lob.ID, hostID, newSettings)
	require.NoError(t, err)
	snap := lob.Snapshot()
	assert.Equal(t, models.FormatRoundRobin, snap.Settings.Format)
	assert.Equal(t, 5, snap.Settings.RoundCount)
	assert.Equal(t, 5, snap.Settings.MaxPlayers,
		"max players can never drop below the current member count")

	lob.Mu.Lock()
	lob.Status = models.LobbyTournamentInProgress
	lob.Mu.Unlock()
	err = r.UpdateSettings(ctx, lob.ID, hostID, newSettings)
	assert.ErrorIs(t, err, models.ErrTournamentAlreadyStarted)
}

func TestChatHistoryBounded(t *testing.T) {
	r := newTestRegistry()
	r.cfg.ChatHistoryLimit = 5
	ctx := context.Background()
	hostID := uuid.New()
	lob, err := r.CreateLobby(ctx, hostID, "host", models.DefaultSettings())
	require.NoError(t, err)

	err = r.AppendChat(ctx, models.ChatMessage{
		ID: uuid.New(), LobbyID: lob.ID, SenderID: uuid.New(), Content: "hi",
	})
	assert.ErrorIs(t, err, models.ErrPlayerNotInLobby)

	for i := 0; i < 8; i++ {
		err = r.AppendChat(ctx, models.ChatMessage{
			ID: uuid.New(), LobbyID: lob.ID, SenderID: hostID, SenderName: "host", Content: "hello",
		})
		require.NoError(t, err)
	}
	assert.Len(t, r.ChatHistory(lob.ID), 5)
}

func TestJoinCodesAvoidWeakPatterns(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := newJoinCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, ch := range code {
			assert.Contains(t, codeAlphabet, string(ch))
		}
	}
}
