// cmd/archivist/main.go is an asynchronous archivist service that pops
// completed-tournament records from a Redis queue and persists them to a
// PostgreSQL database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/archive"
	"github.com/dilemma-gg/party/internal/database"
)

// ArchivistService drains the tournament-history queue into postgres in small
// batches.
type ArchivistService struct {
	redisClient *redis.Client
	pool        *pgxpool.Pool
	log         *logrus.Logger
	batchSize   int
	flushDelay  time.Duration
	queueName   string

	batchMu  sync.Mutex
	batch    []archive.Record
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewArchivistService constructs the service from environment variables or
// defaults.
func NewArchivistService(log *logrus.Logger) *ArchivistService {
	batchSize := getEnvInt("ARCHIVIST_BATCH_SIZE", 20)
	flushMs := getEnvInt("ARCHIVIST_FLUSH_MS", 500)

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &ArchivistService{
		redisClient: rdb,
		log:         log,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		queueName:   getEnv("HISTORY_QUEUE_NAME", archive.DefaultQueueName),
		batch:       make([]archive.Record, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database and starts the drain loop.
func (as *ArchivistService) Run() error {
	pool, err := database.Connect(as.ctx)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	as.pool = pool

	go as.readRedisLoop()

	as.log.Info("party-archivist service started")
	<-as.ctx.Done()
	as.flushBatchToDB()
	as.log.Info("party-archivist shutting down")
	return nil
}

// readRedisLoop continuously uses BLPop to retrieve records from the Redis queue.
func (as *ArchivistService) readRedisLoop() {
	ticker := time.NewTicker(as.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-as.ctx.Done():
			return

		case <-ticker.C:
			as.flushBatchToDB()

		default:
			// Use BLPop with a 3-second timeout so that context cancellation is handled.
			res, err := as.redisClient.BLPop(as.ctx, 3*time.Second, as.queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if as.ctx.Err() != nil {
					return
				}
				as.log.WithError(err).Error("BLPop")
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var rec archive.Record
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				as.log.WithError(err).Warn("invalid tournament record, dropping")
				continue
			}
			as.appendToBatch(rec)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the threshold is reached.
func (as *ArchivistService) appendToBatch(rec archive.Record) {
	as.batchMu.Lock()
	defer as.batchMu.Unlock()

	as.batch = append(as.batch, rec)
	if len(as.batch) >= as.batchSize {
		as.flushLocked()
	}
}

// flushBatchToDB flushes the current batch to the database in a single transaction.
func (as *ArchivistService) flushBatchToDB() {
	as.batchMu.Lock()
	defer as.batchMu.Unlock()
	as.flushLocked()
}

// flushLocked assumes batchMu is held.
func (as *ArchivistService) flushLocked() {
	if len(as.batch) == 0 {
		return
	}
	batchCopy := make([]archive.Record, len(as.batch))
	copy(batchCopy, as.batch)
	as.batch = as.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, as.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := database.InsertHistoryRecordTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("inserting history record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		as.log.WithError(err).Error("flushing history batch")
	} else {
		as.log.WithField("count", len(batchCopy)).Info("flushed tournament records to DB")
	}
}

// Stop gracefully stops the archivist service.
func (as *ArchivistService) Stop() {
	as.cancelFn()
}

func main() {
	logger := logrus.New()
	as := NewArchivistService(logger)

	go func() {
		if err := as.Run(); err != nil {
			logger.Fatalf("archivist exited: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	as.Stop()
	logger.Info("archivist shutdown complete")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
