// internal/database/tournament.go
package database

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/dilemma-gg/party/internal/archive"
	"github.com/dilemma-gg/party/internal/models"
)

// SaveTournament upserts the tournament row and every match in its bracket.
func (s *Store) SaveTournament(ctx context.Context, t *models.Tournament) error {
	tournamentQ := `
	INSERT INTO tournaments (
		id, lobby_id, format, status,
		current_round, total_rounds, start_time, end_time
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		status        = EXCLUDED.status,
		current_round = EXCLUDED.current_round,
		total_rounds  = EXCLUDED.total_rounds,
		end_time      = EXCLUDED.end_time
	`
	matchQ := `
	INSERT INTO tournament_matches (
		id, tournament_id, round, player1_id, player2_id, status, start_time, end_time
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		status     = EXCLUDED.status,
		start_time = EXCLUDED.start_time,
		end_time   = EXCLUDED.end_time
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, tournamentQ,
			t.ID, t.LobbyID, t.Format, t.Status,
			t.CurrentRound, t.TotalRounds, t.StartTime, t.EndTime,
		)
		if err != nil {
			return err
		}
		for _, r := range t.Bracket.Rounds {
			for _, m := range r.Matches {
				if _, err := tx.Exec(ctx, matchQ,
					m.ID, m.TournamentID, m.Round,
					m.Player1ID, m.Player2ID, m.Status,
					m.StartTime, m.EndTime,
				); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// SaveMatchResult records an accepted result, including the raw statistics as
// jsonb for later auditing.
func (s *Store) SaveMatchResult(ctx context.Context, res models.MatchResult) error {
	q := `
	INSERT INTO match_results (
		match_id, winner_id, loser_id,
		player1_score, player2_score, statistics, completed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (match_id) DO NOTHING
	`
	stats, err := json.Marshal(res.Statistics)
	if err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			res.MatchID, res.WinnerID, res.LoserID,
			res.Player1Score, res.Player2Score, stats, res.CompletedAt,
		)
		return err
	})
}

// InsertHistoryRecordTx writes one archived tournament summary inside an
// existing transaction. Used by the archivist when draining the Redis queue.
func InsertHistoryRecordTx(ctx context.Context, tx pgx.Tx, rec archive.Record) error {
	q := `
	INSERT INTO tournament_history (
		tournament_id, lobby_id, format, winner_id,
		standings, rounds_played, started_at, ended_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (tournament_id) DO NOTHING
	`
	standings, err := json.Marshal(rec.Standings)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, q,
		rec.TournamentID, rec.LobbyID, rec.Format, rec.WinnerID,
		standings, rec.RoundsPlayed, rec.StartedAt, rec.EndedAt,
	)
	return err
}
