package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adflow-systems/showads-connector/internal/customer"
)

const sentKeyPrefix = "showads:sent:"

// BatchRecord captures the outcome of one dispatched batch.
type BatchRecord struct {
	Batch     int
	Records   int
	Delivered bool
	Error     string
	SentAt    time.Time
}

// Journal tracks which visitor cookies were already delivered and keeps an
// audit log of batch outcomes.
type Journal interface {
	// FilterNew drops customers whose cookie was already confirmed delivered
	// within the dedup TTL.
	FilterNew(ctx context.Context, customers []customer.Customer) ([]customer.Customer, error)
	// MarkDelivered records the cookies of a confirmed batch.
	MarkDelivered(ctx context.Context, customers []customer.Customer) error
	// RecordBatch appends one batch outcome to the delivery log.
	RecordBatch(ctx context.Context, rec BatchRecord) error
	HealthCheck(ctx context.Context) error
	Close() error
}

type hybridJournal struct {
	redis  *redis.Client
	pg     *pgxpool.Pool
	logger *zap.Logger
	ttl    time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed journal. Either backend
// may be absent: without Redis every record passes FilterNew, without
// Postgres batch outcomes are only logged.
func NewHybrid(redisAddr string, redisDB int, redisPass, pgURL string, dedupTTL time.Duration, logger *zap.Logger) (Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			DB:       redisDB,
			Password: redisPass,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &hybridJournal{redis: rdb, pg: pgPool, logger: logger, ttl: dedupTTL}, nil
}

func (j *hybridJournal) FilterNew(ctx context.Context, customers []customer.Customer) ([]customer.Customer, error) {
	if j.redis == nil || len(customers) == 0 {
		return customers, nil
	}

	pipe := j.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(customers))
	for i, c := range customers {
		cmds[i] = pipe.Exists(ctx, sentKeyPrefix+c.Cookie)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("journal exists check: %w", err)
	}

	fresh := make([]customer.Customer, 0, len(customers))
	for i, c := range customers {
		if cmds[i].Val() == 0 {
			fresh = append(fresh, c)
		}
	}

	if dropped := len(customers) - len(fresh); dropped > 0 {
		j.logger.Info("journal.dedup_skipped",
			zap.Int("already_delivered", dropped),
			zap.Int("fresh", len(fresh)))
	}
	return fresh, nil
}

func (j *hybridJournal) MarkDelivered(ctx context.Context, customers []customer.Customer) error {
	if j.redis == nil || len(customers) == 0 {
		return nil
	}

	pipe := j.redis.Pipeline()
	for _, c := range customers {
		pipe.Set(ctx, sentKeyPrefix+c.Cookie, "1", j.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("journal mark delivered: %w", err)
	}
	return nil
}

func (j *hybridJournal) RecordBatch(ctx context.Context, rec BatchRecord) error {
	if j.pg == nil {
		j.logger.Debug("journal.batch_outcome",
			zap.Int("batch", rec.Batch),
			zap.Int("records", rec.Records),
			zap.Bool("delivered", rec.Delivered))
		return nil
	}

	const query = `
		INSERT INTO showads.delivery_log (
			batch_no,
			record_count,
			delivered,
			error,
			sent_at
		)
		VALUES ($1, $2, $3, $4, $5);
	`

	_, err := j.pg.Exec(ctx, query, rec.Batch, rec.Records, rec.Delivered, rec.Error, rec.SentAt)
	if err != nil {
		j.logger.Error("journal.record_batch_failed",
			zap.Int("batch", rec.Batch),
			zap.Error(err))
		return err
	}
	return nil
}

func (j *hybridJournal) HealthCheck(ctx context.Context) error {
	if j.redis != nil {
		if err := j.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if j.pg != nil {
		if err := j.pg.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

func (j *hybridJournal) Close() error {
	if j.pg != nil {
		j.pg.Close()
	}
	if j.redis != nil {
		return j.redis.Close()
	}
	return nil
}
