// internal/archive/archive.go

// Package archive hands completed tournaments off to the history pipeline: the
// service pushes a record onto a Redis queue and the archivist binary drains
// the queue into postgres on its own schedule.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/leaderboard"
	"github.com/dilemma-gg/party/internal/models"
)

// DefaultQueueName is the Redis list the service pushes tournament history to.
const DefaultQueueName = "party_tournament_history"

// Record is the minimal durable summary of a completed tournament.
type Record struct {
	TournamentID uuid.UUID               `json:"tournament_id"`
	LobbyID      uuid.UUID               `json:"lobby_id"`
	Format       models.TournamentFormat `json:"format"`
	WinnerID     uuid.UUID               `json:"winner_id"`
	Standings    []leaderboard.Standing  `json:"standings"`
	RoundsPlayed int                     `json:"rounds_played"`
	StartedAt    time.Time               `json:"started_at"`
	EndedAt      time.Time               `json:"ended_at"`
}

// QueueArchiver publishes records to the Redis queue.
type QueueArchiver struct {
	rdb   *redis.Client
	queue string
	log   *logrus.Logger
}

// NewQueueArchiver wraps a connected Redis client. An empty queue name falls
// back to DefaultQueueName.
func NewQueueArchiver(rdb *redis.Client, queue string, log *logrus.Logger) *QueueArchiver {
	if queue == "" {
		queue = getEnv("HISTORY_QUEUE_NAME", DefaultQueueName)
	}
	return &QueueArchiver{rdb: rdb, queue: queue, log: log}
}

// ArchiveTournament serializes the record and pushes it onto the queue. This
// is a quick network send; it never blocks tournament completion beyond that.
func (a *QueueArchiver) ArchiveTournament(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling tournament record: %w", err)
	}
	if err := a.rdb.RPush(ctx, a.queue, data).Err(); err != nil {
		return fmt.Errorf("pushing to Redis list %q: %w", a.queue, err)
	}
	a.log.WithFields(logrus.Fields{
		"tournament": rec.TournamentID,
		"queue":      a.queue,
	}).Info("tournament archived to queue")
	return nil
}

// ConnectRedis initializes a Redis client from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis(ctx context.Context) (*redis.Client, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
