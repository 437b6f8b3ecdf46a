// internal/database/chat.go
package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dilemma-gg/party/internal/models"
)

// SaveChatMessage appends a validated chat message to the lobby's history.
func (s *Store) SaveChatMessage(ctx context.Context, msg models.ChatMessage) error {
	q := `
	INSERT INTO lobby_chat (id, lobby_id, sender_id, sender_name, content, sent_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			msg.ID, msg.LobbyID, msg.SenderID, msg.SenderName, msg.Content, msg.SentAt,
		)
		return err
	})
}

// ChatHistory returns the lobby's most recent messages in send order, capped
// at limit.
func (s *Store) ChatHistory(ctx context.Context, lobbyID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	q := `
	SELECT id, lobby_id, sender_id, sender_name, content, sent_at
	FROM (
		SELECT id, lobby_id, sender_id, sender_name, content, sent_at
		FROM lobby_chat
		WHERE lobby_id = $1
		ORDER BY sent_at DESC
		LIMIT $2
	) recent
	ORDER BY sent_at ASC
	`
	rows, err := s.pool.Query(ctx, q, lobbyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.LobbyID, &m.SenderID, &m.SenderName, &m.Content, &m.SentAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
