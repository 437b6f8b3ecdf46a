// internal/database/lobby.go
package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dilemma-gg/party/internal/models"
)

// SaveLobby upserts the lobby row and rewrites its participant rows in one
// transaction, so the stored membership always matches the snapshot.
func (s *Store) SaveLobby(ctx context.Context, l *models.PartyLobby) error {
	lobbyQ := `
	INSERT INTO lobbies (
		id, code, host_player_id, status,
		max_players, round_count, format,
		allow_spectators, chat_enabled,
		created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		host_player_id   = EXCLUDED.host_player_id,
		status           = EXCLUDED.status,
		max_players      = EXCLUDED.max_players,
		round_count      = EXCLUDED.round_count,
		format           = EXCLUDED.format,
		allow_spectators = EXCLUDED.allow_spectators,
		chat_enabled     = EXCLUDED.chat_enabled
	`
	participantQ := `
	INSERT INTO lobby_participants (
		lobby_id, player_id, name, is_host, status, joined_at
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, lobbyQ,
			l.ID,
			l.Code,
			l.HostPlayerID,
			l.Status,
			l.Settings.MaxPlayers,
			l.Settings.RoundCount,
			l.Settings.Format,
			l.Settings.AllowSpectators,
			l.Settings.ChatEnabled,
			l.CreatedAt,
		)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM lobby_participants WHERE lobby_id = $1`, l.ID); err != nil {
			return err
		}
		for _, p := range l.Participants {
			if _, err := tx.Exec(ctx, participantQ,
				l.ID, p.ID, p.Name, p.IsHost, p.Status, p.JoinedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteLobby removes the lobby along with its participants and chat history.
func (s *Store) DeleteLobby(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM lobby_chat WHERE lobby_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM lobby_participants WHERE lobby_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM lobbies WHERE id = $1`, id)
		return err
	})
}
