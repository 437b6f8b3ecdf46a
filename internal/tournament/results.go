// internal/tournament/results.go
package tournament

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/archive"
	"github.com/dilemma-gg/party/internal/bracket"
	"github.com/dilemma-gg/party/internal/leaderboard"
	"github.com/dilemma-gg/party/internal/models"
	"github.com/dilemma-gg/party/internal/party"
)

type advanceKind int

const (
	advanceNone advanceKind = iota
	advanceNextRound
	advanceCompleted
	advanceCancelled
)

// advanceResult carries what maybeAdvanceUnsafe decided, so the caller can
// broadcast and archive after releasing the lobby lock.
type advanceResult struct {
	kind   advanceKind
	round  int
	record *archive.Record
}

// AcceptMatchResult processes a match outcome reported by reporterID. The
// match is resolved from the reporter's own in-flight pairing, never from the
// untrusted MatchID in the result, so a member cannot resolve someone else's
// match; the anti-cheat validator then compares the claimed MatchID against
// it. A result for an already-completed match the reporter played in is
// ignored, so duplicate reports from both players are harmless.
func (e *Engine) AcceptMatchResult(ctx context.Context, lobbyID, reporterID uuid.UUID, res *models.MatchResult) (*models.Tournament, error) {
	t, ok := e.TournamentForLobby(lobbyID)
	if !ok {
		return nil, models.ErrTournamentNotFound
	}
	lob, ok := e.registry.GetLobby(lobbyID)
	if !ok {
		return nil, models.ErrLobbyNotFound
	}

	lob.Mu.Lock()
	if t.Status != models.TournamentInProgress {
		lob.Mu.Unlock()
		return nil, models.ErrTournamentCompleted
	}

	if sres := e.validator.ValidateTournamentStructure(t); !sres.Valid {
		// Corrupted bracket state is not recoverable from a client report.
		e.cancelUnsafe(t, lob)
		lob.Mu.Unlock()
		e.persist(ctx, t)
		e.log.WithFields(logrus.Fields{
			"tournament": t.ID,
			"code":       sres.Code,
			"reason":     sres.Reason,
		}).Error("tournament structure invalid, cancelling")
		return nil, &ValidationError{Result: sres}
	}

	if done := completedMatch(t, res.MatchID); done != nil && done.HasPlayer(reporterID) {
		lob.Mu.Unlock()
		return t, nil // duplicate report
	}
	match := activeMatchOf(t, reporterID)
	if match == nil {
		lob.Mu.Unlock()
		return nil, models.ErrMatchNotFound
	}

	// A result against a match that never formally started begins it now, so
	// the minimum-duration check runs against a real start time.
	if match.Status == models.MatchScheduled {
		match.Status = models.MatchInProgress
		match.StartTime = time.Now()
	}

	if vres := e.validator.ValidateMatchResult(match, res); !vres.Valid {
		lob.Mu.Unlock()
		return nil, &ValidationError{Result: vres}
	}
	if !validPairing(match, res) {
		lob.Mu.Unlock()
		return nil, models.ErrInvalidMatchPairing
	}

	e.applyResultUnsafe(t, match, res)
	leaderboard.Recompute(t)
	matchRound := match.Round
	standings := leaderboard.Standings(t)
	adv := e.maybeAdvanceUnsafe(t, lob)
	lob.Mu.Unlock()

	if e.repo != nil {
		if err := e.repo.SaveMatchResult(ctx, *res); err != nil {
			e.log.WithError(err).WithField("match", res.MatchID).Warn("persisting match result")
		}
	}
	e.persist(ctx, t)

	e.bc.BroadcastToLobby(t.LobbyID, map[string]interface{}{
		"type":      models.EventMatchCompleted,
		"match_id":  res.MatchID.String(),
		"winner_id": res.WinnerID.String(),
		"round":     matchRound,
	})
	e.bc.BroadcastToLobby(t.LobbyID, map[string]interface{}{
		"type":      models.EventStatisticsUpdate,
		"standings": standings,
	})
	e.afterAdvance(ctx, t, adv)
	return t, nil
}

// applyResultUnsafe commits the validated result: match bookkeeping,
// statistics, head-to-head, loss counts and elimination. Assumes the lobby
// lock is held.
func (e *Engine) applyResultUnsafe(t *models.Tournament, match *models.TournamentMatch, res *models.MatchResult) {
	match.Status = models.MatchCompleted
	match.Result = res
	match.EndTime = res.CompletedAt
	delete(t.Bracket.ActiveMatches, match.ID)

	wIdx := t.PlayerIndex(res.WinnerID)
	lIdx := t.PlayerIndex(res.LoserID)

	applySide := func(idx int, score, coops, betrayals int, won bool) {
		p := t.Players[idx]
		p.Statistics.MatchesPlayed++
		p.Statistics.TotalScore += score
		p.Statistics.Cooperations += coops
		p.Statistics.Betrayals += betrayals
		if won {
			p.Statistics.MatchesWon++
		} else {
			p.Statistics.MatchesLost++
		}
	}
	st := res.Statistics
	p1Idx := t.PlayerIndex(match.Player1ID)
	p2Idx := t.PlayerIndex(match.Player2ID)
	applySide(p1Idx, res.Player1Score, st.Player1Cooperations, st.Player1Betrayals, match.Player1ID == res.WinnerID)
	applySide(p2Idx, res.Player2Score, st.Player2Cooperations, st.Player2Betrayals, match.Player2ID == res.WinnerID)

	t.HeadToHead[wIdx][lIdx]++
	t.Losses[lIdx]++

	if limit := lossLimit(t.Format); limit > 0 && t.Losses[lIdx] >= limit {
		e.eliminateUnsafe(t, lIdx)
	}
	for _, idx := range []int{wIdx, lIdx} {
		p := t.Players[idx]
		if p.Status == models.PlayerInMatch {
			p.Status = models.PlayerWaiting
		}
	}
}

// tournamentFinished reports whether nothing remains to play: round robin runs
// a fixed schedule, elimination formats end when one survivor stands.
func tournamentFinished(t *models.Tournament) bool {
	if t.Format == models.FormatRoundRobin {
		return t.CurrentRound >= t.TotalRounds
	}
	return len(t.Survivors()) <= 1
}

// lossLimit is the loss count that eliminates a player, or 0 when the format
// never eliminates.
func lossLimit(f models.TournamentFormat) int {
	switch f {
	case models.FormatSingleElimination:
		return 1
	case models.FormatDoubleElimination:
		return 2
	}
	return 0
}

// maybeAdvanceUnsafe checks whether the current round is finished and either
// completes the tournament, schedules the next round, or cancels on an
// unrecoverable pairing invariant breach. Assumes the lobby lock is held.
func (e *Engine) maybeAdvanceUnsafe(t *models.Tournament, lob *party.Lobby) advanceResult {
	if t.Status != models.TournamentInProgress {
		return advanceResult{kind: advanceNone}
	}
	round := t.Bracket.Round(t.CurrentRound)
	if round == nil || !round.Completed() {
		return advanceResult{kind: advanceNone}
	}
	finished := t.CurrentRound
	if tournamentFinished(t) {
		rec := e.completeUnsafe(t, lob)
		return advanceResult{kind: advanceCompleted, round: finished, record: rec}
	}

	t.CurrentRound++
	var next *models.TournamentRound
	if t.Format == models.FormatRoundRobin {
		next = t.Bracket.Round(t.CurrentRound)
	} else {
		pairs := bracket.NextEliminationPairings(t)
		if !validPairings(t, pairs) {
			e.cancelUnsafe(t, lob)
			e.log.WithField("tournament", t.ID).Error("next-round pairings reference invalid players, cancelling")
			return advanceResult{kind: advanceCancelled, round: finished}
		}
		if len(pairs) == 0 {
			// Walkover left a single survivor standing.
			rec := e.completeUnsafe(t, lob)
			return advanceResult{kind: advanceCompleted, round: finished, record: rec}
		}
		t.Bracket.NextPairings = pairs
		next = bracket.BuildRound(t.ID, t.CurrentRound, pairs, t.Players)
		t.Bracket.Rounds = append(t.Bracket.Rounds, next)
		if t.CurrentRound > t.TotalRounds {
			t.TotalRounds = t.CurrentRound
		}
	}
	e.activateRoundUnsafe(t, t.CurrentRound)
	e.mu.Lock()
	for _, m := range next.Matches {
		e.matchIndex[m.ID] = t.ID
	}
	e.mu.Unlock()
	return advanceResult{kind: advanceNextRound, round: finished}
}

// completeUnsafe finalizes the tournament: final ranks, statuses, lobby state
// and the archive record. Assumes the lobby lock is held.
func (e *Engine) completeUnsafe(t *models.Tournament, lob *party.Lobby) *archive.Record {
	t.Status = models.TournamentCompleted
	t.EndTime = time.Now()
	leaderboard.Recompute(t)
	for _, p := range t.Players {
		if p.Status != models.PlayerDisconnected {
			p.Status = models.PlayerWaiting
		}
	}
	lob.Status = models.LobbyWaitingForPlayers
	lobStatusRecompute(lob)

	e.spectators.Clear(t.ID)
	e.dropIndexes(t)

	rec := &archive.Record{
		TournamentID: t.ID,
		LobbyID:      t.LobbyID,
		Format:       t.Format,
		Standings:    leaderboard.Standings(t),
		RoundsPlayed: t.CurrentRound,
		StartedAt:    t.StartTime,
		EndedAt:      t.EndTime,
	}
	for _, p := range t.Players {
		if p.CurrentRank == 1 {
			rec.WinnerID = p.ID
			break
		}
	}
	return rec
}

// afterAdvance performs the broadcasts and archive handoff decided under the
// lock. Runs without any lock held.
func (e *Engine) afterAdvance(ctx context.Context, t *models.Tournament, adv advanceResult) {
	switch adv.kind {
	case advanceNone:
		return
	case advanceCancelled:
		e.bc.BroadcastToLobby(t.LobbyID, map[string]interface{}{
			"type":          models.EventSystemMessage,
			"message":       "tournament cancelled due to bracket error",
			"tournament_id": t.ID.String(),
		})
		e.persist(ctx, t)
		return
	}

	e.bc.BroadcastToLobby(t.LobbyID, map[string]interface{}{
		"type":          models.EventRoundCompleted,
		"tournament_id": t.ID.String(),
		"round":         adv.round,
	})

	if adv.kind == advanceCompleted {
		e.bc.BroadcastToLobby(t.LobbyID, map[string]interface{}{
			"type":          models.EventTournamentComplete,
			"tournament_id": t.ID.String(),
			"winner_id":     adv.record.WinnerID.String(),
			"standings":     adv.record.Standings,
		})
		if e.archiver != nil {
			if err := e.archiver.ArchiveTournament(ctx, *adv.record); err != nil {
				e.log.WithError(err).WithField("tournament", t.ID).Warn("archiving tournament")
			}
		}
		e.persist(ctx, t)
		e.log.WithFields(logrus.Fields{
			"tournament": t.ID,
			"winner":     adv.record.WinnerID,
			"rounds":     adv.record.RoundsPlayed,
		}).Info("tournament completed")
		return
	}

	e.broadcastRoundStart(t)
	e.persist(ctx, t)
}

// activateRoundUnsafe moves a round's matches into the active index. Assumes
// the lobby lock is held.
func (e *Engine) activateRoundUnsafe(t *models.Tournament, number int) {
	round := t.Bracket.Round(number)
	if round == nil {
		return
	}
	for _, m := range round.Matches {
		t.Bracket.ActiveMatches[m.ID] = m
	}
}

// broadcastRoundStart announces the current round and each pairing in it.
func (e *Engine) broadcastRoundStart(t *models.Tournament) {
	round := t.Bracket.Round(t.CurrentRound)
	if round == nil {
		return
	}
	e.bc.BroadcastToLobby(t.LobbyID, map[string]interface{}{
		"type":          models.EventRoundStarted,
		"tournament_id": t.ID.String(),
		"round":         round.Number,
		"matches":       len(round.Matches),
	})
	for _, m := range round.Matches {
		e.bc.BroadcastToLobby(t.LobbyID, map[string]interface{}{
			"type":      models.EventMatchReady,
			"match_id":  m.ID.String(),
			"round":     m.Round,
			"player1":   m.Player1ID.String(),
			"player2":   m.Player2ID.String(),
		})
	}
}

// validPairing checks the reported winner and loser are exactly the two match
// participants.
func validPairing(m *models.TournamentMatch, res *models.MatchResult) bool {
	if res.WinnerID == res.LoserID {
		return false
	}
	if !m.HasPlayer(res.WinnerID) || !m.HasPlayer(res.LoserID) {
		return false
	}
	return true
}

// validPairings verifies next-round pairings only reference distinct surviving
// players, each at most once.
func validPairings(t *models.Tournament, pairs [][2]int) bool {
	used := make(map[int]bool)
	for _, pr := range pairs {
		for _, idx := range pr {
			if idx < 0 || idx >= len(t.Players) {
				return false
			}
			if t.Players[idx].IsEliminated {
				return false
			}
			if used[idx] {
				return false
			}
			used[idx] = true
		}
		if pr[0] == pr[1] {
			return false
		}
	}
	return true
}

// completedMatch finds a resolved match by id anywhere in the bracket.
func completedMatch(t *models.Tournament, id uuid.UUID) *models.TournamentMatch {
	for _, r := range t.Bracket.Rounds {
		for _, m := range r.Matches {
			if m.ID == id && (m.Status == models.MatchCompleted || m.Status == models.MatchCancelled) {
				return m
			}
		}
	}
	return nil
}
